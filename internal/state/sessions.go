package state

import (
	"context"
	"sort"
	"sync"

	"pkt.systems/pslog"

	"github.com/five82/scout/internal/observe"
)

// UnknownSubject keys reconciliations that arrive without a subject id.
const UnknownSubject = "__unknown__"

// Sessions remembers, per subject, the last snapshot that brought new
// material and the ordered history of such snapshots.
type Sessions struct {
	mu       sync.Mutex
	last     map[string]observe.Snapshot
	timeline map[string][]observe.Snapshot
	// reported holds the regressions already logged per subject.
	reported map[string]map[observe.Regression]struct{}
	log      pslog.Logger
}

// NewSessions constructs an empty session store.
func NewSessions(logger pslog.Logger) *Sessions {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Sessions{
		last:     make(map[string]observe.Snapshot),
		timeline: make(map[string][]observe.Snapshot),
		reported: make(map[string]map[observe.Regression]struct{}),
		log:      logger,
	}
}

// Reconcile diffs next against the last snapshot recorded for subject. A
// non-empty delta makes next the new baseline and appends it to the
// subject's timeline; an empty delta leaves the subject untouched.
// Regressions against the baseline are logged once until they change.
func (s *Sessions) Reconcile(subject string, next observe.Snapshot) observe.Delta {
	key := subjectKey(subject)

	s.mu.Lock()
	defer s.mu.Unlock()

	prior, ok := s.last[key]
	if !ok {
		prior = observe.Empty()
	}

	delta := observe.Diff(prior, next)
	s.logRegressions(key, observe.Regressions(prior, next))
	if delta.IsEmpty() {
		return nil
	}

	s.last[key] = next
	s.timeline[key] = append(s.timeline[key], next)
	return delta
}

func (s *Sessions) logRegressions(key string, regressions []observe.Regression) {
	seen := s.reported[key]
	current := make(map[observe.Regression]struct{}, len(regressions))
	for _, r := range regressions {
		current[r] = struct{}{}
		if _, ok := seen[r]; ok {
			continue
		}
		s.log.With("engagement", key).Warn("observation log regressed",
			"page", r.Page, "kind", string(r.Kind), "before", r.Before, "after", r.After)
	}
	if len(current) == 0 {
		delete(s.reported, key)
		return
	}
	s.reported[key] = current
}

// Last returns the most recent baseline for subject.
func (s *Sessions) Last(subject string) (observe.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.last[subjectKey(subject)]
	return snap, ok
}

// Timeline returns a copy of the snapshots that introduced new material for
// subject, oldest first.
func (s *Sessions) Timeline(subject string) []observe.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.timeline[subjectKey(subject)]
	if len(history) == 0 {
		return nil
	}
	dup := make([]observe.Snapshot, len(history))
	copy(dup, history)
	return dup
}

// Subjects lists known subjects in sorted order.
func (s *Sessions) Subjects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.last))
	for key := range s.last {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Forget drops everything recorded for subject.
func (s *Sessions) Forget(subject string) {
	key := subjectKey(subject)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.last, key)
	delete(s.timeline, key)
	delete(s.reported, key)
}

func subjectKey(subject string) string {
	if subject == "" {
		return UnknownSubject
	}
	return subject
}
