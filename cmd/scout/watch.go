package main

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/scout/internal/app"
	"github.com/five82/scout/internal/config"
)

type watchFlags struct {
	engagement  string
	pollSeconds int
	metricsAddr string
	headless    bool
}

// apply layers the command line over the loaded config.
func (f watchFlags) apply(cfg config.Config) config.Config {
	if v := strings.TrimSpace(f.engagement); v != "" {
		cfg.EngagementID = v
	}
	if f.pollSeconds > 0 {
		cfg.PollInterval = config.ClampPoll(time.Duration(f.pollSeconds) * time.Second)
	}
	if v := strings.TrimSpace(f.metricsAddr); v != "" {
		cfg.MetricsAddr = v
	}
	return cfg
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	var flags watchFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll an engagement and show its observations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			cfg = flags.apply(cfg)
			headless := isHeadless(flags.headless, os.Stdout.Fd())

			logger, closeLog, err := dashboardLogger(cmd.Context(), cfg, headless)
			if err != nil {
				return err
			}
			defer closeLog()

			return app.Watch(cmd.Context(), app.WatchOptions{Options: app.Options{
				Config:    cfg,
				PrefsPath: root.prefsPath,
				Headless:  headless,
				Logger:    logger,
			}})
		},
	}
	cmd.Flags().StringVar(&flags.engagement, "engagement", "", "engagement id to watch")
	cmd.Flags().IntVar(&flags.pollSeconds, "poll", 0, "poll interval in seconds (default from config, 5s)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&flags.headless, "headless", false, "log observations instead of running the dashboard")
	return cmd
}
