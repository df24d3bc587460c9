// Package tracking keeps a short position history per enemy unit and
// extrapolates where it will be.
package tracking

import (
	"github.com/cory-johannsen/vanguard/internal/game/geom"
)

// Sample is one observed position.
type Sample struct {
	Pos  geom.Point
	Loop float64
}

// Record holds the two most recent samples of one unit.
//
// Invariant: Previous.Loop <= Current.Loop when HasPrevious is true.
type Record struct {
	Current     Sample
	Previous    Sample
	HasPrevious bool
}

// Velocity returns distance per game loop between the two samples.
//
// Postcondition: ok is false with fewer than two samples or a zero time delta.
func (r Record) Velocity() (geom.Point, bool) {
	if !r.HasPrevious {
		return geom.Point{}, false
	}
	dt := r.Current.Loop - r.Previous.Loop
	if dt <= 0 {
		return geom.Point{}, false
	}
	return r.Current.Pos.Sub(r.Previous.Pos).Scale(1 / dt), true
}

// Tracker maps enemy tags to their recent samples.
//
// Not safe for concurrent use; the engine drives it from a single tick loop.
type Tracker struct {
	records map[string]*Record
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{records: make(map[string]*Record)}
}

// Update records a sample for tag, keeping only the latest two.
// Samples older than the current one are ignored; a sample at the same loop
// replaces the current position.
func (t *Tracker) Update(tag string, pos geom.Point, loop float64) {
	r, ok := t.records[tag]
	if !ok {
		t.records[tag] = &Record{Current: Sample{Pos: pos, Loop: loop}}
		return
	}
	switch {
	case loop < r.Current.Loop:
		return
	case loop == r.Current.Loop:
		r.Current.Pos = pos
	default:
		r.Previous = r.Current
		r.HasPrevious = true
		r.Current = Sample{Pos: pos, Loop: loop}
	}
}

// Project extrapolates the position of tag lookahead loops past its latest
// sample. It returns fallback unchanged when tag has fewer than two samples or
// a zero time delta.
func (t *Tracker) Project(tag string, fallback geom.Point, lookahead float64) geom.Point {
	r, ok := t.records[tag]
	if !ok {
		return fallback
	}
	v, ok := r.Velocity()
	if !ok {
		return fallback
	}
	return r.Current.Pos.Add(v.Scale(lookahead))
}

// Velocity returns the latest velocity estimate of tag.
func (t *Tracker) Velocity(tag string) (geom.Point, bool) {
	r, ok := t.records[tag]
	if !ok {
		return geom.Point{}, false
	}
	return r.Velocity()
}

// Record returns a copy of the record for tag.
func (t *Tracker) Record(tag string) (Record, bool) {
	r, ok := t.records[tag]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Evict removes tag from the history.
func (t *Tracker) Evict(tag string) {
	delete(t.records, tag)
}

// Expire removes every record whose latest sample is more than maxAge loops
// older than now, and returns the number removed.
func (t *Tracker) Expire(now, maxAge float64) int {
	n := 0
	for tag, r := range t.records {
		if now-r.Current.Loop > maxAge {
			delete(t.records, tag)
			n++
		}
	}
	return n
}

// Len returns the number of tracked tags.
func (t *Tracker) Len() int { return len(t.records) }

// Reset drops all history.
func (t *Tracker) Reset() {
	t.records = make(map[string]*Record)
}
