package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"pkt.systems/pslog"

	"github.com/five82/scout/internal/engagement"
	"github.com/five82/scout/internal/mockapi"
	"github.com/five82/scout/internal/observe"
	"github.com/five82/scout/internal/replay"
	"github.com/five82/scout/internal/scenario"
)

const (
	// DefaultMockAddr matches the backend's default base URL.
	DefaultMockAddr = "127.0.0.1:8000"
	// DefaultFeedScenario drives the mock engagement's page data.
	DefaultFeedScenario = "crawl"
	// NoFeed disables the page data feed.
	NoFeed = "none"

	feedKey = "feed"
)

// MockOptions configure the mock backend.
type MockOptions struct {
	Addr         string
	EngagementID string // empty generates one
	Scenario     string // built-in name or path; empty uses crawl, "none" disables
	Clock        replay.Clock
	Logger       pslog.Logger
	// OnListen, when set, receives the bound address once the server listens.
	OnListen func(addr string)
}

// mockBackend is an in-memory backend whose engagement is fed by a replayed
// sequence of page data snapshots.
type mockBackend struct {
	server     *mockapi.Server
	registry   *replay.Registry
	engagement engagement.Engagement
	feed       *replay.Session[observe.Snapshot]
	log        pslog.Logger
}

func newMockBackend(opts MockOptions) (*mockBackend, error) {
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}

	srv := mockapi.New(logger)
	req := engagement.CreateRequest{Name: "Mock engagement", BaseURL: "http://target.local"}
	var eng engagement.Engagement
	if opts.EngagementID != "" {
		eng = srv.Ensure(opts.EngagementID, req)
	} else {
		eng = srv.Create(req)
	}

	b := &mockBackend{
		server:     srv,
		registry:   replay.NewRegistry(logger),
		engagement: eng,
		log:        logger.With("engagement", eng.ID),
	}

	ref := opts.Scenario
	if ref == "" {
		ref = DefaultFeedScenario
	}
	if ref == NoFeed {
		return b, nil
	}

	file, err := scenario.Resolve(ref)
	if err != nil {
		return nil, err
	}
	cfg := scenario.ToConfig[observe.Snapshot](file, opts.Clock, logger.With("session", file.ID))
	feed, err := replay.Register(b.registry, feedKey, cfg)
	if err != nil {
		return nil, fmt.Errorf("load feed scenario %s: %w", file.ID, err)
	}
	feed.Subscribe(b.apply)
	b.feed = feed
	return b, nil
}

func (b *mockBackend) apply(snap observe.Snapshot) {
	delta, err := b.server.Feed(b.engagement.ID, snap)
	if err != nil {
		b.log.Warn("feed page data failed", "err", err)
		return
	}
	if delta.IsEmpty() {
		return
	}
	b.log.Info("page data fed", "pages", len(delta), "requests", delta.ExchangeCount())
}

// start begins feeding page data.
func (b *mockBackend) start() {
	if b.feed != nil {
		b.feed.Start()
	}
}

// MockServer serves the mock backend until ctx is cancelled.
func MockServer(ctx context.Context, opts MockOptions) error {
	backend, err := newMockBackend(opts)
	if err != nil {
		return err
	}
	defer backend.registry.StopAll()

	addr := opts.Addr
	if addr == "" {
		addr = DefaultMockAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen mock backend %s: %w", addr, err)
	}
	srv := &http.Server{Handler: backend.server.Handler(), ReadHeaderTimeout: 5 * time.Second}

	backend.log.Info("mock backend listening", "addr", ln.Addr().String())
	if opts.OnListen != nil {
		opts.OnListen(ln.Addr().String())
	}
	backend.start()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve mock backend: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
