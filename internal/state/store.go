package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/scout/internal/activity"
	"github.com/five82/scout/internal/observe"
)

// Source names where the current view comes from.
type Source string

const (
	SourceLive   Source = "live"
	SourceReplay Source = "replay"
)

// Frame is the latest data available to the UI.
type Frame struct {
	Source       Source
	Subject      string
	View         observe.View
	HasView      bool
	ReplayStatus string

	LastDeltaPages     int
	LastDeltaExchanges int
	LastChanged        time.Time

	Activity []string

	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive poll failures
}

// IsOffline returns true when the backend has been unreachable for multiple polls.
func (f Frame) IsOffline() bool {
	return f.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the frame.
type Store struct {
	mu       sync.RWMutex
	frame    Frame
	activity activity.Ring
}

// SetSource records where views come from and which subject they describe.
func (s *Store) SetSource(source Source, subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame.Source = source
	s.frame.Subject = subject
}

// Update replaces the stored view. When err is non-nil the previous view is
// kept but the error is recorded for visibility. A non-empty delta is
// summarized and written to the activity feed.
func (s *Store) Update(view *observe.View, delta observe.Delta, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if err != nil {
		s.frame.LastError = err
		s.frame.LastUpdated = now
		s.frame.ConsecutiveFailures++
		return
	}

	if view != nil {
		s.frame.View = view.Clone()
		s.frame.HasView = true
	}
	if !delta.IsEmpty() {
		s.frame.LastDeltaPages = len(delta)
		s.frame.LastDeltaExchanges = delta.ExchangeCount()
		s.frame.LastChanged = now
		for _, line := range activity.DeltaLines(now, delta) {
			s.activity.Add(line)
		}
	}
	s.frame.LastError = nil
	s.frame.LastUpdated = now
	s.frame.ConsecutiveFailures = 0
}

// SetReplayStatus records the replay session's lifecycle state.
func (s *Store) SetReplayStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame.ReplayStatus = status
}

// Note adds a line to the activity feed.
func (s *Store) Note(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity.Add(line)
}

// Frame returns a copy of the current frame.
func (s *Store) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()

	frame := s.frame
	frame.View = s.frame.View.Clone()
	frame.Activity = s.activity.Lines()
	if s.frame.LastError != nil {
		frame.LastError = fmt.Errorf("%w", s.frame.LastError)
	}
	return frame
}
