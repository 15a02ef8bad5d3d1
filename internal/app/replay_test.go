package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/scout/internal/config"
	"github.com/five82/scout/internal/metrics"
	"github.com/five82/scout/internal/observe"
	"github.com/five82/scout/internal/replay"
	"github.com/five82/scout/internal/scenario"
	"github.com/five82/scout/internal/state"
)

func newTestRunner(t *testing.T, clock replay.Clock) (*replayRunner, *state.Store, *logCapture) {
	t.Helper()
	logs := &logCapture{}
	store := &state.Store{}
	runner := newReplayRunner(replay.NewRegistry(logs.logger()), store, metrics.New(), clock, logs.logger())
	return runner, store, logs
}

func hasLine(lines []string, substr string) bool {
	for _, line := range lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func TestReplayRunner_DashboardScenarioDrivesStore(t *testing.T) {
	clock := replay.NewFakeClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	runner, store, logs := newTestRunner(t, clock)

	file, err := scenario.Builtin("dashboard")
	require.NoError(t, err)
	require.NoError(t, runner.load(file))

	frame := store.Frame()
	assert.Equal(t, state.SourceReplay, frame.Source)
	assert.Equal(t, "dashboard", frame.Subject)
	assert.Equal(t, string(replay.StatusRunning), frame.ReplayStatus)
	require.True(t, frame.HasView)
	assert.Equal(t, observe.Stats{PageCount: 1, ExchangeCount: 1}, frame.View.Stats)
	assert.Equal(t, []string{"/"}, frame.View.TreeLines)

	clock.Advance(2 * time.Second)
	frame = store.Frame()
	assert.Equal(t, observe.Stats{PageCount: 4, ExchangeCount: 8}, frame.View.Stats)
	assert.True(t, hasLine(frame.Activity, "Spider discovers initial pages"), "activity = %v", frame.Activity)

	clock.Advance(3 * time.Second)
	clock.Advance(4 * time.Second)
	frame = store.Frame()
	assert.Equal(t, observe.Stats{PageCount: 24, ExchangeCount: 67}, frame.View.Stats)
	assert.Equal(t, string(replay.StatusCompleted), frame.ReplayStatus)
	assert.True(t, hasLine(frame.Activity, "03:04:14  Spider completes discovery"), "activity = %v", frame.Activity)

	assert.Equal(t, []string{"replay step", "replay step", "replay step"}, logs.messages("info"))
}

func TestReplayRunner_ToggleAndRestart(t *testing.T) {
	clock := replay.NewFakeClock(time.Unix(0, 0))
	runner, store, _ := newTestRunner(t, clock)
	file, err := scenario.Builtin("dashboard")
	require.NoError(t, err)
	require.NoError(t, runner.load(file))

	runner.Toggle()
	assert.Equal(t, string(replay.StatusStopped), store.Frame().ReplayStatus)
	clock.Advance(10 * time.Second)
	assert.Equal(t, 1, store.Frame().View.Stats.PageCount, "stopped replay must not advance")

	runner.Toggle()
	assert.Equal(t, string(replay.StatusRunning), store.Frame().ReplayStatus)
	clock.Advance(2 * time.Second)
	assert.Equal(t, 4, store.Frame().View.Stats.PageCount)

	runner.Restart()
	frame := store.Frame()
	assert.Equal(t, 1, frame.View.Stats.PageCount)
	assert.Equal(t, string(replay.StatusRunning), frame.ReplayStatus)
	assert.True(t, hasLine(frame.Activity, "replay reset"), "activity = %v", frame.Activity)

	clock.Advance(9 * time.Second)
	require.Equal(t, string(replay.StatusCompleted), store.Frame().ReplayStatus)
	runner.Toggle()
	assert.Equal(t, string(replay.StatusRunning), store.Frame().ReplayStatus, "toggle restarts a completed replay")
	assert.Equal(t, 1, store.Frame().View.Stats.PageCount)
}

func TestReplayRunner_RestartWhileRunningKeepsStoreInSync(t *testing.T) {
	runner, store, _ := newTestRunner(t, nil)
	defer runner.registry.StopAll()
	file, err := scenario.Parse([]byte(`
id: quick
initial:
  siteTreeLines: ["/"]
  spiderStats: {pages: 1, requests: 1}
timeline:
  - {delay: 1, label: one, patch: {spiderStats: {pages: 2}}}
  - {delay: 1, label: two, patch: {spiderStats: {pages: 3}}}
  - {delay: 1, label: three, patch: {spiderStats: {pages: 4}}}
`))
	require.NoError(t, err)
	require.NoError(t, runner.load(file))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if j%3 == 0 {
					runner.Toggle()
				} else {
					runner.Restart()
				}
				_ = store.Frame()
				time.Sleep(200 * time.Microsecond)
			}
		}()
	}
	wg.Wait()
	runner.Restart()

	require.Eventually(t, func() bool {
		frame := store.Frame()
		return frame.ReplayStatus == string(replay.StatusCompleted) && frame.View.Stats.PageCount == 4
	}, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, runner.current().CurrentData(), store.Frame().View)
}

func TestReplayRunner_RestartsCompletedLoopingScenario(t *testing.T) {
	clock := replay.NewFakeClock(time.Unix(0, 0))
	runner, store, _ := newTestRunner(t, clock)
	file, err := scenario.Parse([]byte(`
id: looping
loop: true
initial:
  siteTreeLines: ["/"]
  spiderStats: {pages: 1, requests: 0}
timeline:
  - delay: 10
    label: grow
    patch:
      spiderStats: {pages: 2}
`))
	require.NoError(t, err)
	require.NoError(t, runner.load(file))

	assert.Zero(t, runner.restartCompleted(), "running sessions are left alone")
	clock.Advance(10 * time.Millisecond)
	require.Equal(t, string(replay.StatusCompleted), store.Frame().ReplayStatus)

	assert.Equal(t, 1, runner.restartCompleted())
	frame := store.Frame()
	assert.Equal(t, string(replay.StatusRunning), frame.ReplayStatus)
	assert.Equal(t, 1, frame.View.Stats.PageCount)
}

func TestReplayRunner_InvalidScenarioKeepsCurrentSession(t *testing.T) {
	clock := replay.NewFakeClock(time.Unix(0, 0))
	runner, store, _ := newTestRunner(t, clock)
	good, err := scenario.Builtin("dashboard")
	require.NoError(t, err)
	require.NoError(t, runner.load(good))

	bad, err := scenario.Parse([]byte(`
id: broken
initial:
  spiderStats: {pages: 1}
timeline:
  - delay: 10
    patch:
      spiderStats: "not an object"
`))
	require.NoError(t, err)
	require.Error(t, runner.load(bad))

	assert.Equal(t, "dashboard", store.Frame().Subject)
	clock.Advance(2 * time.Second)
	assert.Equal(t, 4, store.Frame().View.Stats.PageCount, "previous session keeps running")
}

func TestReplayRunner_ReloadReplacesSession(t *testing.T) {
	clock := replay.NewFakeClock(time.Unix(0, 0))
	runner, store, _ := newTestRunner(t, clock)
	first, err := scenario.Builtin("dashboard")
	require.NoError(t, err)
	require.NoError(t, runner.load(first))
	old := runner.current()

	second, err := scenario.Parse([]byte(`
id: second
initial:
  siteTreeLines: ["/", "└─ /other"]
  spiderStats: {pages: 2, requests: 2}
timeline: []
`))
	require.NoError(t, err)
	require.NoError(t, runner.load(second))

	assert.Equal(t, replay.StatusStopped, old.Status(), "replaced session is stopped")
	frame := store.Frame()
	assert.Equal(t, "second", frame.Subject)
	assert.Equal(t, 2, frame.View.Stats.PageCount)
	assert.Equal(t, string(replay.StatusCompleted), frame.ReplayStatus)

	clock.Advance(10 * time.Second)
	assert.Equal(t, 2, store.Frame().View.Stats.PageCount, "old session no longer feeds the store")
}

func TestReplayRunner_WatchReloadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	write := func(id string) {
		body := "id: " + id + "\ninitial:\n  spiderStats: {pages: 1, requests: 1}\ntimeline:\n  - delay: 1h\n    patch: {}\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	write("before")

	runner, store, _ := newTestRunner(t, nil)
	defer runner.registry.StopAll()
	file, err := scenario.Load(path)
	require.NoError(t, err)
	require.NoError(t, runner.load(file))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- runner.watch(ctx, path) }()

	// Give the watcher time to register before the write.
	time.Sleep(100 * time.Millisecond)
	write("after")

	require.Eventually(t, func() bool { return store.Frame().Subject == "after" }, 3*time.Second, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestReplay_HeadlessRunsUntilCancelled(t *testing.T) {
	clock := replay.NewFakeClock(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Replay(ctx, ReplayOptions{
			Options:  Options{Config: config.Default(), Headless: true, Logger: (&logCapture{}).logger()},
			Scenario: "dashboard",
			Clock:    clock,
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Replay did not return after cancel")
	}
}

func TestReplay_UnknownScenario(t *testing.T) {
	err := Replay(context.Background(), ReplayOptions{
		Options:  Options{Config: config.Default(), Headless: true},
		Scenario: filepath.Join(t.TempDir(), "missing.yaml"),
	})
	require.Error(t, err)
}
