package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"pkt.systems/psi"
	"pkt.systems/pslog"

	"github.com/five82/scout/internal/config"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	root := newRootCmd()
	root.SetArgs(os.Args[1:])
	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("scout command failed")
		return 1
	}
	return 0
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	prefsPath  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "scout",
		Short:         "Terminal dashboard for web reconnaissance engagements",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (default ~/.config/scout/config.toml)")
	root.PersistentFlags().StringVar(&opts.prefsPath, "prefs", "", "preferences file path (default ~/.config/scout/prefs.toml)")

	root.AddCommand(newWatchCmd(opts))
	root.AddCommand(newReplayCmd(opts))
	root.AddCommand(newMockServerCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// isHeadless reports whether the dashboard should skip the TUI: either the
// flag asks for it or fd is not a terminal.
func isHeadless(flag bool, fd uintptr) bool {
	if flag {
		return true
	}
	return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}

// dashboardLogger returns the logger for a dashboard run. Headless runs keep
// the command's logger; TUI runs write structured lines to cfg.LogFile so
// they do not tear the screen.
func dashboardLogger(ctx context.Context, cfg config.Config, headless bool) (logger pslog.Logger, closeFn func() error, err error) {
	if headless || cfg.LogFile == "" {
		return pslog.Ctx(ctx), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger = pslog.NewWithOptions(file, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
	log.SetOutput(pslog.LogLogger(logger).Writer())
	return logger, file.Close, nil
}
