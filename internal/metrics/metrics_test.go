package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RecordsPollsAndDeltas(t *testing.T) {
	m := New()

	m.ObservePoll(10*time.Millisecond, nil)
	m.ObservePoll(20*time.Millisecond, errors.New("boom"))
	m.ObservePoll(5*time.Millisecond, nil)

	if got := testutil.ToFloat64(m.polls.WithLabelValues(ResultOK)); got != 2 {
		t.Fatalf("ok polls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.polls.WithLabelValues(ResultError)); got != 1 {
		t.Fatalf("error polls = %v, want 1", got)
	}

	m.ObserveDelta(0, 0)
	m.ObserveDelta(2, 5)
	if got := testutil.CollectAndCount(m.deltaPages); got != 1 {
		t.Fatalf("delta pages series = %d, want 1", got)
	}

	m.SetTotals("e1", 4, 8)
	if got := testutil.ToFloat64(m.pages.WithLabelValues("e1")); got != 4 {
		t.Fatalf("pages gauge = %v, want 4", got)
	}

	m.ReplayNotified("dashboard")
	m.ReplayNotified("dashboard")
	m.ReplayRestarted(0)
	m.ReplayRestarted(3)
	if got := testutil.ToFloat64(m.replaySteps.WithLabelValues("dashboard")); got != 2 {
		t.Fatalf("replay notifications = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.replayLoops); got != 3 {
		t.Fatalf("replay restarts = %v, want 3", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObservePoll(time.Second, nil)
	m.ObserveDelta(1, 1)
	m.SetTotals("e", 1, 1)
	m.ReplayNotified("s")
	m.ReplayRestarted(1)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObservePoll(time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `scout_polls_total{result="ok"} 1`) {
		t.Fatalf("metrics output missing poll counter:\n%s", body)
	}
}
