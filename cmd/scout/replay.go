package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/scout/internal/app"
	"github.com/five82/scout/internal/config"
	"github.com/five82/scout/internal/scenario"
)

func newReplayCmd(root *rootOptions) *cobra.Command {
	var (
		scenarioRef string
		watch       bool
		headless    bool
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Drive the dashboard from a scripted scenario",
		Long: "Replay a built-in scenario (" + strings.Join(scenario.BuiltinNames(), ", ") + ") or a YAML scenario file.\n" +
			"Without --scenario the config's scenario, then the dashboard scenario, is used.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			headless = isHeadless(headless, os.Stdout.Fd())

			logger, closeLog, err := dashboardLogger(cmd.Context(), cfg, headless)
			if err != nil {
				return err
			}
			defer closeLog()

			return app.Replay(cmd.Context(), app.ReplayOptions{
				Options: app.Options{
					Config:    cfg,
					PrefsPath: root.prefsPath,
					Headless:  headless,
					Logger:    logger,
				},
				Scenario: scenarioRef,
				Watch:    watch,
			})
		},
	}
	cmd.Flags().StringVar(&scenarioRef, "scenario", "", "built-in scenario name or YAML path")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the scenario file when it changes")
	cmd.Flags().BoolVar(&headless, "headless", false, "log replay steps instead of running the dashboard")
	return cmd
}
