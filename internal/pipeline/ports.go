package pipeline

import (
	"context"
	"time"

	"github.com/christopherklint97/slotwise/internal/smartguess"
	"github.com/christopherklint97/slotwise/internal/store"
	"github.com/christopherklint97/slotwise/internal/timeline"
)

// SlotStore persists committed slots. Creation order is retrieval order.
type SlotStore interface {
	CreateSlot(ctx context.Context, s *store.Slot) (int64, error)
	GetSlot(ctx context.Context, id int64) (*store.Slot, error)
	UpdateSlotCategory(ctx context.Context, id int64, category timeline.Category) error
}

type SettingsStore interface {
	SetLastKnownLocation(ctx context.Context, loc timeline.Location) error
	LastKnownLocation(ctx context.Context) (*timeline.Location, error)
}

// GuessMemory is the write side of the smart guess memory.
type GuessMemory interface {
	Add(ctx context.Context, category timeline.Category, loc timeline.Location) (smartguess.Guess, error)
	Strike(ctx context.Context, id string) error
	Touch(ctx context.Context, id string, at time.Time) error
}

// EventBuffer is the raw track-event buffer. The sink is its only consumer.
type EventBuffer interface {
	DrainTrackEvents(ctx context.Context) ([]store.TrackEvent, error)
}

// ProcessLock excludes writers in other processes sharing the same store,
// such as the daemon and a one-off CLI commit.
type ProcessLock interface {
	Lock(ctx context.Context) error
	Unlock() error
}
