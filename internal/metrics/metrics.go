// Package metrics exposes Prometheus instrumentation for polling and replay.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"pkt.systems/pslog"
)

// Poll results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds Scout's collectors. A nil *Metrics ignores every call.
type Metrics struct {
	gatherer prometheus.Gatherer

	polls         *prometheus.CounterVec
	pollDuration  prometheus.Histogram
	deltaPages    prometheus.Histogram
	deltaRequests prometheus.Histogram
	pages         *prometheus.GaugeVec
	requests      *prometheus.GaugeVec
	replaySteps   *prometheus.CounterVec
	replayLoops   prometheus.Counter
}

// New registers collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWith(reg, reg)
}

// NewWith registers collectors on reg and serves them from gatherer.
func NewWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: gatherer,
		polls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_polls_total",
			Help: "Page data polls by result",
		}, []string{"result"}),
		pollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scout_poll_duration_seconds",
			Help:    "Page data poll latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		}),
		deltaPages: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scout_delta_pages",
			Help:    "Pages carried by each non-empty delta",
			Buckets: []float64{1, 2, 5, 10, 20, 50},
		}),
		deltaRequests: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scout_delta_requests",
			Help:    "Exchanges carried by each non-empty delta",
			Buckets: []float64{1, 5, 10, 50, 100, 500},
		}),
		pages: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scout_observed_pages",
			Help: "Pages in the latest view by engagement",
		}, []string{"engagement"}),
		requests: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scout_observed_requests",
			Help: "Exchanges in the latest view by engagement",
		}, []string{"engagement"}),
		replaySteps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_replay_notifications_total",
			Help: "Replay notifications delivered by session",
		}, []string{"session"}),
		replayLoops: factory.NewCounter(prometheus.CounterOpts{
			Name: "scout_replay_restarts_total",
			Help: "Completed looping sessions restarted",
		}),
	}
}

// ObservePoll records one poll outcome.
func (m *Metrics) ObservePoll(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.polls.WithLabelValues(result).Inc()
	m.pollDuration.Observe(d.Seconds())
}

// ObserveDelta records the size of a non-empty delta.
func (m *Metrics) ObserveDelta(pages, requests int) {
	if m == nil || pages == 0 {
		return
	}
	m.deltaPages.Observe(float64(pages))
	m.deltaRequests.Observe(float64(requests))
}

// SetTotals records the stats of the latest view.
func (m *Metrics) SetTotals(subject string, pages, requests int) {
	if m == nil {
		return
	}
	m.pages.WithLabelValues(subject).Set(float64(pages))
	m.requests.WithLabelValues(subject).Set(float64(requests))
}

// ReplayNotified counts a notification delivered by a replay session.
func (m *Metrics) ReplayNotified(session string) {
	if m == nil {
		return
	}
	m.replaySteps.WithLabelValues(session).Inc()
}

// ReplayRestarted counts looping sessions restarted after completion.
func (m *Metrics) ReplayRestarted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.replayLoops.Add(float64(n))
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, m *Metrics, logger pslog.Logger) error {
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen metrics %s: %w", addr, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
