package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/christopherklint97/slotwise/internal/metrics"
	"github.com/christopherklint97/slotwise/internal/smartguess"
	"github.com/christopherklint97/slotwise/internal/store"
	"github.com/christopherklint97/slotwise/internal/timeline"
)

var errDiskGone = errors.New("disk gone")

type fakeSlots struct {
	mu      sync.Mutex
	created []store.Slot
	failAt  int // 1-based CreateSlot call that fails; 0 never
	calls   int
}

func (f *fakeSlots) CreateSlot(_ context.Context, s *store.Slot) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAt != 0 && f.calls >= f.failAt {
		return 0, errDiskGone
	}
	s.ID = int64(len(f.created) + 1)
	f.created = append(f.created, *s)
	return s.ID, nil
}

func (f *fakeSlots) GetSlot(_ context.Context, id int64) (*store.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id < 1 || int(id) > len(f.created) {
		return nil, store.ErrNotFound
	}
	s := f.created[id-1]
	return &s, nil
}

func (f *fakeSlots) UpdateSlotCategory(_ context.Context, id int64, c timeline.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id < 1 || int(id) > len(f.created) {
		return store.ErrNotFound
	}
	f.created[id-1].Category = c
	f.created[id-1].CategoryWasSetByUser = true
	return nil
}

type fakeSettings struct {
	last    *timeline.Location
	history []timeline.Location
	fail    bool
}

func (f *fakeSettings) SetLastKnownLocation(_ context.Context, loc timeline.Location) error {
	if f.fail {
		return errDiskGone
	}
	f.last = &loc
	f.history = append(f.history, loc)
	return nil
}

func (f *fakeSettings) LastKnownLocation(context.Context) (*timeline.Location, error) {
	return f.last, nil
}

type touch struct {
	id string
	at time.Time
}

type fakeGuesses struct {
	touches []touch
	strikes []string
	added   []smartguess.Guess
	fail    bool
}

func (f *fakeGuesses) Add(_ context.Context, c timeline.Category, loc timeline.Location) (smartguess.Guess, error) {
	if f.fail {
		return smartguess.Guess{}, errDiskGone
	}
	g := smartguess.Guess{ID: "added", Category: c, Location: loc}
	f.added = append(f.added, g)
	return g, nil
}

func (f *fakeGuesses) Strike(_ context.Context, id string) error {
	if f.fail {
		return errDiskGone
	}
	f.strikes = append(f.strikes, id)
	return nil
}

func (f *fakeGuesses) Touch(_ context.Context, id string, at time.Time) error {
	if f.fail {
		return errDiskGone
	}
	f.touches = append(f.touches, touch{id: id, at: at})
	return nil
}

type fakeBuffer struct {
	events []store.TrackEvent
	drains int
	fail   bool
}

func (f *fakeBuffer) DrainTrackEvents(context.Context) ([]store.TrackEvent, error) {
	if f.fail {
		return nil, errDiskGone
	}
	f.drains++
	out := f.events
	f.events = nil
	return out, nil
}

type fakeMetrics struct {
	mu     sync.Mutex
	events []metrics.Event
}

func (f *fakeMetrics) Log(e metrics.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeMetrics) count(kind metrics.Kind) int {
	n := 0
	for _, e := range f.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeMetrics) didLog(want metrics.Event) bool {
	for _, e := range f.events {
		if e.Equal(want) {
			return true
		}
	}
	return false
}
