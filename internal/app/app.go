package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"pkt.systems/pslog"

	"github.com/five82/scout/internal/config"
	"github.com/five82/scout/internal/engagement"
	"github.com/five82/scout/internal/metrics"
	"github.com/five82/scout/internal/prefs"
	"github.com/five82/scout/internal/state"
	"github.com/five82/scout/internal/ui"
)

// ErrNoEngagement is returned by Watch when no engagement id is configured.
var ErrNoEngagement = errors.New("engagement id is required")

// Options are shared by the dashboard modes.
type Options struct {
	Config    config.Config
	PrefsPath string // empty uses ~/.config/scout/prefs.toml
	// Headless skips the TUI; progress is only logged.
	Headless bool
	Logger   pslog.Logger
	// Metrics receives instrumentation; nil creates a private set, served
	// when Config.MetricsAddr is set.
	Metrics *metrics.Metrics
}

func (o *Options) logger() pslog.Logger {
	if o.Logger == nil {
		o.Logger = pslog.Ctx(context.Background())
	}
	return o.Logger
}

func (o *Options) metrics() *metrics.Metrics {
	if o.Metrics == nil {
		o.Metrics = metrics.New()
	}
	return o.Metrics
}

// WatchOptions configure the live dashboard.
type WatchOptions struct {
	Options
	// Fetcher replaces the HTTP client built from Config.APIBaseURL.
	Fetcher PageDataFetcher
}

// Watch polls the configured engagement and shows its observation log until
// ctx is cancelled or the user quits.
func Watch(ctx context.Context, opts WatchOptions) error {
	id := opts.Config.EngagementID
	if id == "" {
		return ErrNoEngagement
	}
	logger := opts.logger()

	fetcher := opts.Fetcher
	if fetcher == nil {
		client, err := engagement.NewClient(opts.Config.APIBaseURL)
		if err != nil {
			return fmt.Errorf("init engagement client: %w", err)
		}
		checkHealth(ctx, client, logger)
		fetcher = client
	}

	store := &state.Store{}
	store.SetSource(state.SourceLive, id)
	poller := NewPoller(PollerConfig{
		Fetcher:  fetcher,
		Subject:  id,
		Interval: opts.Config.PollInterval,
		Sessions: state.NewSessions(logger),
		Store:    store,
		Metrics:  opts.metrics(),
		Logger:   logger,
	})

	return runDashboard(ctx, opts.Options, store, poller, poller.Run)
}

// checkHealth warns when the backend is not ready. Polling starts anyway and
// the dashboard shows the outage.
func checkHealth(ctx context.Context, client *engagement.Client, logger pslog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Health(ctx); err != nil {
		logger.Warn("backend not healthy", "url", client.BaseURL(), "err", err)
	}
}

type task func(ctx context.Context) error

// runDashboard runs the background tasks next to the TUI, or next to a
// blocking wait when headless. The first task error, a TUI exit or ctx
// cancellation stops everything.
func runDashboard(ctx context.Context, opts Options, store *state.Store, control ui.Controller, tasks ...task) error {
	logger := opts.logger()
	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, t := range tasks {
		g.Go(func() error { return t(ctx) })
	}

	if addr := opts.Config.MetricsAddr; addr != "" {
		m := opts.metrics()
		g.Go(func() error { return metrics.Serve(ctx, addr, m, logger) })
	}

	g.Go(func() error {
		defer cancel()
		if opts.Headless {
			<-ctx.Done()
			return nil
		}
		prefsPath := opts.PrefsPath
		if prefsPath == "" {
			prefsPath = prefs.DefaultPath()
		}
		p, _ := prefs.Load(prefsPath)
		return ui.Run(ctx, ui.Options{
			Store:     store,
			Control:   control,
			ThemeName: p.Theme,
			PrefsPath: prefsPath,
		})
	})

	return g.Wait()
}
