// Package timeslot holds the provisional slots produced by segmentation and
// consumed once by the persistency sink.
package timeslot

import (
	"time"

	"github.com/christopherklint97/slotwise/internal/smartguess"
	"github.com/christopherklint97/slotwise/internal/timeline"
)

// TemporarySlot is a candidate interval that has not been committed yet.
// A nil End means the slot is still open. Values are copied, never mutated in place.
type TemporarySlot struct {
	Start      time.Time
	End        *time.Time
	Category   timeline.Category
	Location   *timeline.Location
	SmartGuess *smartguess.Guess
}

func New(start time.Time) TemporarySlot {
	return TemporarySlot{Start: start, Category: timeline.Unknown}
}

func (s TemporarySlot) WithStart(start time.Time) TemporarySlot {
	s.Start = start
	return s
}

func (s TemporarySlot) WithEnd(end *time.Time) TemporarySlot {
	if end != nil {
		e := *end
		end = &e
	}
	s.End = end
	return s
}

func (s TemporarySlot) WithCategory(c timeline.Category) TemporarySlot {
	s.Category = c
	return s
}

func (s TemporarySlot) WithLocation(loc *timeline.Location) TemporarySlot {
	if loc != nil {
		l := *loc
		loc = &l
	}
	s.Location = loc
	return s
}

func (s TemporarySlot) WithSmartGuess(g *smartguess.Guess) TemporarySlot {
	if g != nil {
		cp := *g
		g = &cp
	}
	s.SmartGuess = g
	return s
}

// Duration is (End or now) - Start, never reaching past the midnight that
// follows Start in now's time zone and never negative.
func (s TemporarySlot) Duration(now time.Time) time.Duration {
	return ClampedDuration(s.Start, s.End, now)
}

// ClampedDuration is shared with persisted slots so both report the same length.
// The day boundary is taken in now's location, whatever zone start was written in.
func ClampedDuration(start time.Time, end *time.Time, now time.Time) time.Duration {
	stop := now
	if end != nil {
		stop = *end
	}
	if limit := NextMidnight(start.In(now.Location())); stop.After(limit) {
		stop = limit
	}
	if stop.Before(start) {
		return 0
	}
	return stop.Sub(start)
}

// NextMidnight returns 00:00 of the day after t, in t's location.
func NextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// ResolvedCategory is the category a slot is persisted with: the guess's
// category when one matched, the slot's own otherwise.
func (s TemporarySlot) ResolvedCategory() timeline.Category {
	if s.SmartGuess != nil {
		return s.SmartGuess.Category
	}
	if s.Category == "" {
		return timeline.Unknown
	}
	return s.Category
}
