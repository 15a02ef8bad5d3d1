package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/pslog"

	"github.com/five82/scout/internal/metrics"
	"github.com/five82/scout/internal/observe"
	"github.com/five82/scout/internal/replay"
	"github.com/five82/scout/internal/scenario"
	"github.com/five82/scout/internal/state"
)

// viewKey is the registry key of the session that drives the dashboard.
const viewKey = "view"

// ReplayOptions configure the replay dashboard.
type ReplayOptions struct {
	Options
	// Scenario is a built-in name or a YAML path; empty uses the dashboard
	// scenario.
	Scenario string
	// Watch reloads the scenario file when it changes.
	Watch bool
	// Clock drives step timers; nil uses the system clock.
	Clock replay.Clock
}

// Replay drives the dashboard from a scripted scenario instead of a backend.
func Replay(ctx context.Context, opts ReplayOptions) error {
	logger := opts.logger()
	ref := opts.Scenario
	if ref == "" {
		ref = opts.Config.Scenario
	}
	file, err := scenario.Resolve(ref)
	if err != nil {
		return err
	}

	store := &state.Store{}
	runner := newReplayRunner(replay.NewRegistry(logger), store, opts.metrics(), opts.Clock, logger)
	if err := runner.load(file); err != nil {
		return err
	}
	defer runner.registry.StopAll()

	every := opts.Config.PollInterval
	if every <= 0 {
		every = defaultPollInterval
	}
	tasks := []task{func(ctx context.Context) error { return runner.loop(ctx, every) }}

	if opts.Watch {
		if scenario.IsBuiltin(ref) || ref == "" {
			logger.Warn("built-in scenarios cannot be watched", "scenario", file.ID)
		} else {
			tasks = append(tasks, func(ctx context.Context) error { return runner.watch(ctx, ref) })
		}
	}

	return runDashboard(ctx, opts.Options, store, runner, tasks...)
}

// replayRunner keeps one view session registered, mirrors its notifications
// into the store and serves the dashboard's replay controls.
type replayRunner struct {
	registry *replay.Registry
	store    *state.Store
	metrics  *metrics.Metrics
	clock    replay.Clock
	log      pslog.Logger
	now      func() time.Time

	mu      sync.Mutex
	session *replay.Session[observe.View]
	unsub   func()

	// statusMu makes reading a session status and publishing it one step.
	statusMu sync.Mutex
}

func newReplayRunner(registry *replay.Registry, store *state.Store, m *metrics.Metrics, clock replay.Clock, logger pslog.Logger) *replayRunner {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	now := time.Now
	if clock != nil {
		now = clock.Now
	}
	return &replayRunner{
		registry: registry,
		store:    store,
		metrics:  m,
		clock:    clock,
		log:      logger,
		now:      now,
	}
}

// load registers f as the view session, replacing and stopping any previous
// one, and starts it. An invalid scenario leaves the current session alone.
func (r *replayRunner) load(f scenario.File) error {
	cfg := scenario.ToConfig[observe.View](f, r.clock, r.log.With("session", f.ID))
	sess, err := replay.Register(r.registry, viewKey, cfg)
	if err != nil {
		return fmt.Errorf("load scenario %s: %w", f.ID, err)
	}

	labels := make([]string, len(f.Timeline))
	for i, step := range f.Timeline {
		labels[i] = step.Label
	}

	r.mu.Lock()
	previous := r.unsub
	r.session = sess
	r.unsub = nil
	r.mu.Unlock()
	if previous != nil {
		previous()
	}

	r.store.SetSource(state.SourceReplay, f.ID)
	r.store.Note(fmt.Sprintf("%s  scenario %s loaded", r.stamp(), f.ID))

	var notified atomic.Bool
	unsub := sess.Subscribe(func(view observe.View) {
		r.apply(sess, f.ID, labels, view, !notified.Swap(true))
	})

	r.mu.Lock()
	if r.session == sess {
		r.unsub = unsub
		unsub = nil
	}
	r.mu.Unlock()
	if unsub != nil {
		unsub()
		return nil
	}

	sess.Start()
	r.syncStatus()
	return nil
}

func (r *replayRunner) apply(sess *replay.Session[observe.View], id string, labels []string, view observe.View, first bool) {
	if r.current() != sess {
		return
	}
	cursor := sess.Cursor()
	r.store.Update(&view, nil, nil)
	r.publishStatus(sess)
	r.metrics.ReplayNotified(id)
	r.metrics.SetTotals(id, view.Stats.PageCount, view.Stats.ExchangeCount)

	switch {
	case first:
	case cursor > 0 && cursor <= len(labels):
		label := labels[cursor-1]
		r.store.Note(fmt.Sprintf("%s  %s", r.stamp(), label))
		r.log.Info("replay step", "session", id, "step", cursor-1, "label", label,
			"pages", view.Stats.PageCount, "requests", view.Stats.ExchangeCount)
	case cursor == 0:
		r.store.Note(fmt.Sprintf("%s  replay reset", r.stamp()))
	}
}

func (r *replayRunner) current() *replay.Session[observe.View] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

func (r *replayRunner) syncStatus() {
	if sess := r.current(); sess != nil {
		r.publishStatus(sess)
	}
}

func (r *replayRunner) publishStatus(sess *replay.Session[observe.View]) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	r.store.SetReplayStatus(string(sess.Status()))
}

func (r *replayRunner) stamp() string {
	return r.now().Format("15:04:05")
}

// Refresh re-reads the session status.
func (r *replayRunner) Refresh() {
	r.syncStatus()
}

// Toggle stops a running replay, restarts a completed one and otherwise
// resumes it.
func (r *replayRunner) Toggle() {
	sess := r.current()
	if sess == nil {
		return
	}
	switch sess.Status() {
	case replay.StatusRunning:
		sess.Stop()
	case replay.StatusCompleted:
		sess.Reset(true)
	default:
		sess.Start()
	}
	r.syncStatus()
}

// Restart resets the replay and plays it from the first step.
func (r *replayRunner) Restart() {
	if sess := r.current(); sess != nil {
		sess.Reset(true)
		r.syncStatus()
	}
}

// loop restarts completed looping sessions every interval until ctx ends.
func (r *replayRunner) loop(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.restartCompleted()
		}
	}
}

func (r *replayRunner) restartCompleted() int {
	n := r.registry.RestartCompleted()
	if n > 0 {
		r.metrics.ReplayRestarted(n)
		r.log.Debug("replay restarted", "sessions", n)
		r.syncStatus()
	}
	return n
}

// watch reloads the scenario at path on change until ctx ends.
func (r *replayRunner) watch(ctx context.Context, path string) error {
	return scenario.Watch(ctx, path, scenario.DefaultDebounce,
		func(f scenario.File) {
			if err := r.load(f); err != nil {
				r.log.Warn("scenario reload rejected", "path", path, "err", err)
				return
			}
			r.log.Info("scenario reloaded", "path", path, "session", f.ID)
		},
		func(err error) {
			r.log.Warn("scenario watch error", "path", path, "err", err)
		},
	)
}
