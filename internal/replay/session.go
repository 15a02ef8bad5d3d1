package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pkt.systems/pslog"
)

// Status is a session's lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
)

// Step is one entry of a timeline. Delay is measured from the moment the
// step is scheduled, which is when the previous step's notifications have
// returned or when the session starts.
type Step struct {
	Delay time.Duration
	Label string
	Patch Doc
}

// Config describes a replay session. Initial and every Patch are partial
// documents of T: keys missing from Initial decode to T's zero values.
type Config[T any] struct {
	ID       string
	Initial  Doc
	Timeline []Step
	// Loop asks the owner to restart the session once it completes. The
	// session itself never loops.
	Loop bool

	Codec  Codec[T] // defaults to JSONCodec[T]
	Clock  Clock    // defaults to SystemClock
	Logger pslog.Logger
}

// Session plays a fixed timeline of patches against an initial state and
// notifies subscribers after each step. It is safe for concurrent use.
type Session[T any] struct {
	id       string
	initial  Doc
	timeline []Step
	loop     bool
	codec    Codec[T]
	clock    Clock
	log      pslog.Logger

	// dispatch serializes deliveries. It is taken after mu is released and
	// never while mu is held.
	dispatch sync.Mutex

	mu      sync.Mutex
	current Doc
	version uint64 // bumped on every change of current
	cursor  int
	status  Status
	gen     uint64
	pending Timer
	subs    []subscriber[T]
	nextSub int
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// NewSession validates cfg and returns an idle session. Every intermediate
// state of the timeline is decoded once so that decoding cannot fail while
// the session runs.
func NewSession[T any](cfg Config[T]) (*Session[T], error) {
	codec := cfg.Codec
	if codec == nil {
		codec = JSONCodec[T]{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}

	initial, _ := DeepCopy(cfg.Initial).(Doc)
	if initial == nil {
		initial = Doc{}
	}
	timeline := make([]Step, len(cfg.Timeline))
	for i, step := range cfg.Timeline {
		if step.Delay < 0 {
			return nil, fmt.Errorf("replay %s: step %d has negative delay %s", cfg.ID, i, step.Delay)
		}
		patch, _ := DeepCopy(step.Patch).(Doc)
		timeline[i] = Step{Delay: step.Delay, Label: step.Label, Patch: patch}
	}

	state := initial
	if _, err := codec.Decode(state); err != nil {
		return nil, fmt.Errorf("replay %s: initial state: %w", cfg.ID, err)
	}
	for i, step := range timeline {
		state = MergeDeep(state, step.Patch)
		if _, err := codec.Decode(state); err != nil {
			return nil, fmt.Errorf("replay %s: step %d (%s): %w", cfg.ID, i, step.Label, err)
		}
	}

	return &Session[T]{
		id:       cfg.ID,
		initial:  initial,
		timeline: timeline,
		loop:     cfg.Loop,
		codec:    codec,
		clock:    clock,
		log:      logger.With("session", cfg.ID),
		current:  MergeDeep(initial, nil),
		status:   StatusIdle,
	}, nil
}

// ID returns the session's identifier.
func (s *Session[T]) ID() string { return s.id }

// Loop reports whether the owner should restart the session on completion.
func (s *Session[T]) Loop() bool { return s.loop }

// Len is the number of timeline steps.
func (s *Session[T]) Len() int { return len(s.timeline) }

// Status returns the lifecycle state.
func (s *Session[T]) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Cursor is the index of the next step to apply.
func (s *Session[T]) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// CurrentData returns a copy of the current state.
func (s *Session[T]) CurrentData() T {
	s.mu.Lock()
	doc := s.current
	s.mu.Unlock()
	return s.decode(doc)
}

// Start begins or resumes playback from the cursor. It is a no-op while
// running. A session whose cursor is past the last step completes at once.
func (s *Session[T]) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusRunning {
		return
	}
	s.gen++
	if s.cursor >= len(s.timeline) {
		s.status = StatusCompleted
		s.log.Debug("replay session completed", "step", s.cursor)
		return
	}
	s.status = StatusRunning
	s.log.Debug("replay session started", "step", s.cursor)
	s.scheduleLocked()
}

// Stop cancels the pending step. State and cursor are kept so Start resumes
// where playback left off.
func (s *Session[T]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.status = StatusStopped
	s.log.Debug("replay session stopped", "step", s.cursor)
}

// Reset returns the session to its initial state, notifies subscribers and,
// when restart is set, starts playback again. It must not be called from a
// subscriber.
func (s *Session[T]) Reset(restart bool) {
	s.mu.Lock()
	s.stopLocked()
	s.current = MergeDeep(s.initial, nil)
	s.version++
	s.cursor = 0
	s.status = StatusIdle
	doc, version := s.current, s.version
	subs := s.subscribersLocked()
	s.mu.Unlock()

	s.log.Debug("replay session reset", "restart", restart)
	s.notify(subs, doc, version)

	if restart {
		s.Start()
	}
}

// Subscribe registers fn, calls it once with the current state and returns
// a function that removes the registration. It must not be called from a
// subscriber.
func (s *Session[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	id := func() int {
		s.dispatch.Lock()
		defer s.dispatch.Unlock()
		s.mu.Lock()
		s.nextSub++
		id := s.nextSub
		s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})
		doc := s.current
		s.mu.Unlock()

		fn(s.decode(doc))
		return id
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Session[T]) stopLocked() {
	s.gen++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

func (s *Session[T]) scheduleLocked() {
	gen := s.gen
	step := s.timeline[s.cursor]
	s.pending = s.clock.AfterFunc(step.Delay, func() { s.fire(gen) })
}

func (s *Session[T]) fire(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.status != StatusRunning {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	index := s.cursor
	step := s.timeline[index]
	s.current = MergeDeep(s.current, step.Patch)
	s.version++
	s.cursor++
	done := s.cursor >= len(s.timeline)
	if done {
		s.status = StatusCompleted
	}
	doc, version := s.current, s.version
	subs := s.subscribersLocked()
	s.mu.Unlock()

	s.log.Debug("replay step", "step", index, "label", step.Label)
	s.notify(subs, doc, version)

	if done {
		s.log.Debug("replay session completed", "step", s.Cursor())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.status != StatusRunning {
		return
	}
	s.scheduleLocked()
}

func (s *Session[T]) subscribersLocked() []subscriber[T] {
	if len(s.subs) == 0 {
		return nil
	}
	out := make([]subscriber[T], len(s.subs))
	copy(out, s.subs)
	return out
}

// notify delivers doc one subscriber at a time. Once a newer change exists
// the remaining deliveries are dropped; the newer change notifies on its own.
func (s *Session[T]) notify(subs []subscriber[T], doc Doc, version uint64) {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()
	for _, sub := range subs {
		if !s.isLatest(version) {
			return
		}
		sub.fn(s.decode(doc))
	}
}

func (s *Session[T]) isLatest(version uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version == version
}

// decode never fails for documents reachable from the timeline because
// NewSession decoded each of them once.
func (s *Session[T]) decode(doc Doc) T {
	value, err := s.codec.Decode(doc)
	if err != nil {
		s.log.Error("replay state decode failed", "err", err)
	}
	return value
}
