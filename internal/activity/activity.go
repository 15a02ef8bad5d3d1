// Package activity keeps a bounded feed of recent dashboard activity lines.
package activity

import (
	"fmt"
	"time"

	"github.com/five82/scout/internal/observe"
)

// DefaultCapacity bounds a zero-value Ring.
const DefaultCapacity = 200

// Ring holds at most Capacity lines, dropping the oldest first. The zero
// value is ready to use. A Ring is not safe for concurrent use on its own.
type Ring struct {
	Capacity int

	lines []string
	next  int
	count int
}

// Add appends a line, evicting the oldest one when full.
func (r *Ring) Add(line string) {
	if r.lines == nil {
		capacity := r.Capacity
		if capacity <= 0 {
			capacity = DefaultCapacity
		}
		r.lines = make([]string, capacity)
	}
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.count < len(r.lines) {
		r.count++
	}
}

// Lines returns the buffered lines, oldest first.
func (r *Ring) Lines() []string {
	if r.count == 0 {
		return nil
	}
	out := make([]string, r.count)
	if r.count == len(r.lines) {
		for i := 0; i < r.count; i++ {
			out[i] = r.lines[(r.next+i)%len(r.lines)]
		}
	} else {
		copy(out, r.lines[:r.count])
	}
	return out
}

// Tail returns at most n of the newest lines, oldest first.
func (r *Ring) Tail(n int) []string {
	lines := r.Lines()
	if n <= 0 {
		return nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// Len reports how many lines are buffered.
func (r *Ring) Len() int {
	return r.count
}

// DeltaLines describes a delta as one activity line per entry.
func DeltaLines(at time.Time, delta observe.Delta) []string {
	if delta.IsEmpty() {
		return nil
	}
	stamp := at.Format("15:04:05")
	out := make([]string, 0, len(delta))
	for _, entry := range delta {
		noun := "requests"
		if len(entry.Exchanges) == 1 {
			noun = "request"
		}
		out = append(out, fmt.Sprintf("%s  %s  +%d %s", stamp, entry.Page, len(entry.Exchanges), noun))
	}
	return out
}
