package app

import (
	"context"
	"errors"
	"time"

	"pkt.systems/pslog"

	"github.com/five82/scout/internal/metrics"
	"github.com/five82/scout/internal/observe"
	"github.com/five82/scout/internal/state"
)

const (
	defaultPollInterval = 5 * time.Second
	maxBackoff          = 30 * time.Second
)

// PageDataFetcher returns the full observation log of an engagement.
type PageDataFetcher interface {
	FetchPageData(ctx context.Context, engagementID string) (observe.Snapshot, error)
}

// PollerConfig wires a Poller.
type PollerConfig struct {
	Fetcher  PageDataFetcher
	Subject  string
	Interval time.Duration
	Sessions *state.Sessions
	Store    *state.Store
	Metrics  *metrics.Metrics
	Logger   pslog.Logger
}

// Poller fetches one engagement's page data on an interval, reconciles it
// against the previous poll and publishes the result to the store. Only one
// poll is in flight at a time.
type Poller struct {
	fetcher  PageDataFetcher
	subject  string
	interval time.Duration
	sessions *state.Sessions
	store    *state.Store
	metrics  *metrics.Metrics
	log      pslog.Logger
	now      func() time.Time

	trigger  chan struct{}
	failures int
}

// NewPoller builds a poller. Missing stores are created.
func NewPoller(cfg PollerConfig) *Poller {
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = state.NewSessions(logger)
	}
	store := cfg.Store
	if store == nil {
		store = &state.Store{}
	}
	return &Poller{
		fetcher:  cfg.Fetcher,
		subject:  cfg.Subject,
		interval: interval,
		sessions: sessions,
		store:    store,
		metrics:  cfg.Metrics,
		log:      logger.With("engagement", cfg.Subject),
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
	}
}

// Run polls until ctx is cancelled. Failed polls back off exponentially.
func (p *Poller) Run(ctx context.Context) error {
	for {
		_, err := p.Poll(ctx)
		if ctx.Err() != nil {
			return nil
		}

		wait := p.interval
		if err != nil {
			wait = calculateBackoff(p.failures, p.interval)
		}
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-p.trigger:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Refresh asks Run to poll now instead of waiting for the next interval.
func (p *Poller) Refresh() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Toggle is a no-op: live polling cannot be paused.
func (p *Poller) Toggle() {}

// Restart is a no-op for live polling.
func (p *Poller) Restart() {}

// Poll performs one fetch and reconciliation and returns the new material.
func (p *Poller) Poll(ctx context.Context) (observe.Delta, error) {
	start := p.now()
	snap, err := p.fetcher.FetchPageData(ctx, p.subject)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, err
		}
		p.metrics.ObservePoll(p.now().Sub(start), err)
		p.failures++
		p.store.Update(nil, nil, err)
		p.log.Warn("page data poll failed", "err", err, "failures", p.failures)
		return nil, err
	}
	p.metrics.ObservePoll(p.now().Sub(start), nil)
	p.failures = 0

	delta := p.sessions.Reconcile(p.subject, snap)
	view := snap.View()
	p.store.Update(&view, delta, nil)
	p.metrics.SetTotals(p.subject, view.Stats.PageCount, view.Stats.ExchangeCount)

	if !delta.IsEmpty() {
		p.metrics.ObserveDelta(len(delta), delta.ExchangeCount())
		p.log.Info("new observations", "pages", len(delta), "requests", delta.ExchangeCount())
	}
	return delta, nil
}

// calculateBackoff doubles base for every consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	wait := base
	for i := 0; i < failures; i++ {
		wait *= 2
		if wait >= maxBackoff {
			return maxBackoff
		}
	}
	return wait
}
