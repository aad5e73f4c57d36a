package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/christopherklint97/slotwise/internal/metrics"
	"github.com/christopherklint97/slotwise/internal/store"
	"github.com/christopherklint97/slotwise/internal/timeline"
)

// Recategorize applies a category chosen by the user and feeds the choice
// back into the smart guess memory: a slot categorized by a guess strikes
// that guess, an unguessed slot with a location teaches a new one.
func (p *PersistencySink) Recategorize(ctx context.Context, id int64, category timeline.Category) error {
	if !category.Valid() {
		return fmt.Errorf("unknown category %q", category)
	}
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release()

	slot, err := p.slots.GetSlot(ctx, id)
	if err != nil {
		return fmt.Errorf("loading slot %d: %w", id, err)
	}
	if err := p.slots.UpdateSlotCategory(ctx, id, category); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	now := p.clock.Now()
	p.emit(metrics.Editing(now, slot.Category, category, slot.Duration(now)))

	switch {
	case !slot.CategoryWasSetByUser && slot.SmartGuessID != "":
		if err := p.guesses.Strike(ctx, slot.SmartGuessID); err != nil {
			p.logger.Warn("failed to strike smart guess", "id", slot.SmartGuessID, "error", err)
		}
	case slot.SmartGuessID == "" && slot.Location != nil:
		if _, err := p.guesses.Add(ctx, category, *slot.Location); err != nil {
			p.logger.Warn("failed to add smart guess", "slot", id, "error", err)
		}
	}

	p.logger.Info("slot recategorized", "slot", id, "from", slot.Category, "to", category)
	return nil
}

// AddSlot starts a user-categorized slot at start (now when zero), located at
// the last known location. The previously open slot is closed by the store.
func (p *PersistencySink) AddSlot(ctx context.Context, category timeline.Category, start time.Time) (store.Slot, error) {
	if !category.Valid() {
		return store.Slot{}, fmt.Errorf("unknown category %q", category)
	}
	if err := p.acquire(ctx); err != nil {
		return store.Slot{}, err
	}
	defer p.release()

	now := p.clock.Now()
	if start.IsZero() {
		start = now
	}

	loc, err := p.settings.LastKnownLocation(ctx)
	if err != nil {
		p.logger.Warn("failed to read last known location", "error", err)
		loc = nil
	}

	slot := store.Slot{
		Start:                start,
		Category:             category,
		Location:             loc,
		CategoryWasSetByUser: true,
		CreatedAt:            now,
	}
	if _, err := p.slots.CreateSlot(ctx, &slot); err != nil {
		return store.Slot{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if loc != nil {
		if _, err := p.guesses.Add(ctx, category, *loc); err != nil {
			p.logger.Warn("failed to add smart guess", "slot", slot.ID, "error", err)
		}
	}

	p.emit(metrics.ManualCreation(now, category))
	p.emit(metrics.Created(now, category, nil))

	if p.onSlotCreated != nil {
		p.onSlotCreated(slot)
	}
	return slot, nil
}
