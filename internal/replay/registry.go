package replay

import (
	"context"
	"sort"
	"sync"

	"pkt.systems/pslog"
)

// Replayer is the type-independent surface of a Session.
type Replayer interface {
	ID() string
	Start()
	Stop()
	Reset(restart bool)
	Status() Status
	Loop() bool
}

var _ Replayer = (*Session[Doc])(nil)

// Registry owns replay sessions by key. Sessions are independent; acting on
// one never touches another.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]Replayer
	log      pslog.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger pslog.Logger) *Registry {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Registry{sessions: make(map[string]Replayer), log: logger}
}

// Register builds a session from cfg and stores it under key. A session
// already registered under key is stopped and replaced. When cfg is invalid
// the registry is left unchanged.
func Register[T any](r *Registry, key string, cfg Config[T]) (*Session[T], error) {
	if cfg.ID == "" {
		cfg.ID = key
	}
	if cfg.Logger == nil {
		cfg.Logger = r.log
	}
	session, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	previous, replaced := r.sessions[key]
	r.sessions[key] = session
	r.mu.Unlock()

	if replaced {
		previous.Stop()
		r.log.Debug("replay session replaced", "session", key)
	}
	return session, nil
}

// Get returns the session registered under key when it replays T.
func Get[T any](r *Registry, key string) (*Session[T], bool) {
	replayer, ok := r.Lookup(key)
	if !ok {
		return nil, false
	}
	session, ok := replayer.(*Session[T])
	return session, ok
}

// Lookup returns the session under key regardless of its state type.
func (r *Registry) Lookup(key string) (Replayer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	replayer, ok := r.sessions[key]
	return replayer, ok
}

// Keys lists registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.sessions)
}

// Reset resets the named sessions without restarting them, or every session
// when no key is given. Unknown keys are ignored.
func (r *Registry) Reset(keys ...string) {
	for _, replayer := range r.pick(keys) {
		replayer.Reset(false)
	}
}

// StopAll halts every session without resetting it.
func (r *Registry) StopAll() {
	for _, replayer := range r.pick(nil) {
		replayer.Stop()
	}
}

// RestartCompleted resets and restarts every completed session that asks to
// loop. It returns how many sessions were restarted.
func (r *Registry) RestartCompleted() int {
	restarted := 0
	for _, replayer := range r.pick(nil) {
		if !replayer.Loop() || replayer.Status() != StatusCompleted {
			continue
		}
		replayer.Reset(true)
		restarted++
	}
	return restarted
}

func (r *Registry) pick(keys []string) []Replayer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(keys) == 0 {
		out := make([]Replayer, 0, len(r.sessions))
		for _, key := range sortedKeys(r.sessions) {
			out = append(out, r.sessions[key])
		}
		return out
	}
	out := make([]Replayer, 0, len(keys))
	for _, key := range keys {
		if replayer, ok := r.sessions[key]; ok {
			out = append(out, replayer)
		}
	}
	return out
}

func sortedKeys(m map[string]Replayer) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
