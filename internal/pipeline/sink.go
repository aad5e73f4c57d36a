// Package pipeline commits provisional slots and keeps smart guesses,
// last known location and analytics in step with them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/christopherklint97/slotwise/internal/clock"
	"github.com/christopherklint97/slotwise/internal/metrics"
	"github.com/christopherklint97/slotwise/internal/store"
	"github.com/christopherklint97/slotwise/internal/timeline"
	"github.com/christopherklint97/slotwise/internal/timeslot"
)

// ErrStoreUnavailable marks a failed slot write, buffer purge or writer lock.
var ErrStoreUnavailable = errors.New("store unavailable")

// CommitError reports the batch index whose slot could not be persisted.
// Slots before Index are durable; the track-event buffer was not purged.
type CommitError struct {
	Index int
	Err   error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("committing slot %d: %v", e.Index, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// CommitResult lists the slots a commit persisted and how many track events it purged.
type CommitResult struct {
	CommitTime time.Time
	Committed  []store.Slot
	Purged     int
}

// PersistencySink is the single writer for slots, smart guesses and the
// last known location. Commit and the user edit flows never interleave
// within one sink, and across processes once a ProcessLock is set.
type PersistencySink struct {
	slots    SlotStore
	settings SettingsStore
	guesses  GuessMemory
	buffer   EventBuffer
	metrics  metrics.Sink
	clock    clock.Clock
	logger   *slog.Logger

	sem           chan struct{}
	lock          ProcessLock
	onSlotCreated func(store.Slot)
}

func NewPersistencySink(
	slots SlotStore,
	settings SettingsStore,
	guesses GuessMemory,
	buffer EventBuffer,
	sink metrics.Sink,
	clk clock.Clock,
	logger *slog.Logger,
) *PersistencySink {
	if sink == nil {
		sink = metrics.Discard{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PersistencySink{
		slots:    slots,
		settings: settings,
		guesses:  guesses,
		buffer:   buffer,
		metrics:  sink,
		clock:    clk,
		logger:   logger,
		sem:      make(chan struct{}, 1),
	}
}

// OnSlotCreated registers a callback run synchronously after each committed
// slot's side effects. Set it before the first commit.
func (p *PersistencySink) OnSlotCreated(fn func(store.Slot)) {
	p.onSlotCreated = fn
}

// UseProcessLock makes every commit and edit also hold l. Set it before the
// first commit.
func (p *PersistencySink) UseProcessLock(l ProcessLock) {
	p.lock = l
}

// Commit persists batch in order, then purges the track-event buffer.
//
// On a persistence failure the remaining slots are skipped and the buffer is
// kept, so the caller must re-derive a new batch from the buffered events
// rather than replay this one. The returned result lists the slots that were
// committed before the failure.
func (p *PersistencySink) Commit(ctx context.Context, batch []timeslot.TemporarySlot) (CommitResult, error) {
	if len(batch) == 0 {
		return CommitResult{}, nil
	}
	if err := timeslot.ValidateBatch(batch); err != nil {
		return CommitResult{}, err
	}

	if err := p.acquire(ctx); err != nil {
		return CommitResult{}, err
	}
	defer p.release()

	commitTime := p.clock.Now()
	result := CommitResult{CommitTime: commitTime}

	for i, tmp := range batch {
		slot, err := p.persist(ctx, tmp, commitTime)
		if err != nil {
			p.logger.Error("slot commit failed, keeping track events for retry",
				"index", i,
				"committed", len(result.Committed),
				"error", err,
			)
			return result, &CommitError{Index: i, Err: fmt.Errorf("%w: %w", ErrStoreUnavailable, err)}
		}

		p.touchSmartGuess(ctx, tmp)
		p.trackLocation(ctx, tmp)
		p.logCommitMetrics(tmp, commitTime)

		result.Committed = append(result.Committed, slot)
		if p.onSlotCreated != nil {
			p.onSlotCreated(slot)
		}
	}

	events, err := p.buffer.DrainTrackEvents(ctx)
	if err != nil {
		p.logger.Error("purging track events failed", "committed", len(result.Committed), "error", err)
		return result, fmt.Errorf("%w: purging track events: %w", ErrStoreUnavailable, err)
	}
	result.Purged = len(events)

	p.logger.Info("batch committed",
		"slots", len(result.Committed),
		"purged_events", result.Purged,
		"commit_time", commitTime,
	)
	return result, nil
}

func (p *PersistencySink) persist(ctx context.Context, tmp timeslot.TemporarySlot, commitTime time.Time) (store.Slot, error) {
	slot := store.Slot{
		Start:     tmp.Start,
		End:       tmp.End,
		Category:  tmp.ResolvedCategory(),
		Location:  tmp.Location,
		CreatedAt: commitTime,
	}
	if tmp.SmartGuess != nil {
		slot.SmartGuessID = tmp.SmartGuess.ID
	}

	if _, err := p.slots.CreateSlot(ctx, &slot); err != nil {
		return store.Slot{}, err
	}
	return slot, nil
}

// touchSmartGuess stamps the guess with the slot start, not the commit time,
// so recency reflects when the user was actually there.
func (p *PersistencySink) touchSmartGuess(ctx context.Context, tmp timeslot.TemporarySlot) {
	if tmp.SmartGuess == nil {
		return
	}
	if err := p.guesses.Touch(ctx, tmp.SmartGuess.ID, tmp.Start); err != nil {
		p.logger.Warn("failed to update smart guess", "id", tmp.SmartGuess.ID, "error", err)
	}
}

func (p *PersistencySink) trackLocation(ctx context.Context, tmp timeslot.TemporarySlot) {
	if tmp.Location == nil {
		return
	}
	if err := p.settings.SetLastKnownLocation(ctx, *tmp.Location); err != nil {
		p.logger.Warn("failed to save last known location", "error", err)
	}
}

func (p *PersistencySink) logCommitMetrics(tmp timeslot.TemporarySlot, commitTime time.Time) {
	duration := tmp.Duration(commitTime)
	category := tmp.Category
	if category == "" {
		category = timeline.Unknown
	}

	p.emit(metrics.Created(commitTime, category, &duration))
	if tmp.SmartGuess != nil {
		p.emit(metrics.SmartGuessed(commitTime, tmp.SmartGuess.Category, duration))
	} else {
		p.emit(metrics.NotSmartGuessed(commitTime, category, duration))
	}
}

func (p *PersistencySink) emit(e metrics.Event) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("metrics sink panicked", "kind", e.Kind, "panic", r)
		}
	}()
	p.metrics.Log(e)
}

func (p *PersistencySink) acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if p.lock == nil {
		return nil
	}
	if err := p.lock.Lock(ctx); err != nil {
		<-p.sem
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (p *PersistencySink) release() {
	if p.lock != nil {
		if err := p.lock.Unlock(); err != nil {
			p.logger.Warn("failed to release writer lock", "error", err)
		}
	}
	<-p.sem
}
