// Package metrics carries the analytics events emitted when slots are created
// or edited, and the sinks they are delivered to.
package metrics

import (
	"time"

	"github.com/christopherklint97/slotwise/internal/timeline"
)

type Kind string

const (
	SlotCreated         Kind = "time_slot_created"
	SlotSmartGuessed    Kind = "time_slot_smart_guessed"
	SlotNotSmartGuessed Kind = "time_slot_not_smart_guessed"
	SlotEditing         Kind = "time_slot_editing"
	SlotManualCreation  Kind = "time_slot_manual_creation"
)

// Event is one analytics record. Duration is nil when the slot has no length yet.
// FromCategory is only set for SlotEditing.
type Event struct {
	Kind         Kind
	Date         time.Time
	Category     timeline.Category
	FromCategory timeline.Category
	Duration     *time.Duration
}

// Sink receives events. Implementations must not block and must not fail the caller.
type Sink interface {
	Log(e Event)
}

func Created(date time.Time, c timeline.Category, d *time.Duration) Event {
	return Event{Kind: SlotCreated, Date: date, Category: c, Duration: d}
}

func SmartGuessed(date time.Time, c timeline.Category, d time.Duration) Event {
	return Event{Kind: SlotSmartGuessed, Date: date, Category: c, Duration: &d}
}

func NotSmartGuessed(date time.Time, c timeline.Category, d time.Duration) Event {
	return Event{Kind: SlotNotSmartGuessed, Date: date, Category: c, Duration: &d}
}

func Editing(date time.Time, from, to timeline.Category, d time.Duration) Event {
	return Event{Kind: SlotEditing, Date: date, FromCategory: from, Category: to, Duration: &d}
}

func ManualCreation(date time.Time, c timeline.Category) Event {
	return Event{Kind: SlotManualCreation, Date: date, Category: c}
}

// Equal compares events by value, including the pointed-to duration.
func (e Event) Equal(o Event) bool {
	if e.Kind != o.Kind || !e.Date.Equal(o.Date) || e.Category != o.Category || e.FromCategory != o.FromCategory {
		return false
	}
	if e.Duration == nil || o.Duration == nil {
		return e.Duration == nil && o.Duration == nil
	}
	return *e.Duration == *o.Duration
}

// Multi delivers each event to every sink in order.
type Multi []Sink

func (m Multi) Log(e Event) {
	for _, s := range m {
		if s != nil {
			s.Log(e)
		}
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Log(Event) {}
