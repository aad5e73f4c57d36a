package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christopherklint97/slotwise/internal/clock"
	"github.com/christopherklint97/slotwise/internal/metrics"
	"github.com/christopherklint97/slotwise/internal/pipeline"
	"github.com/christopherklint97/slotwise/internal/smartguess"
	"github.com/christopherklint97/slotwise/internal/store"
	"github.com/christopherklint97/slotwise/internal/timeline"
	"github.com/christopherklint97/slotwise/internal/timeslot"
)

var (
	noon = time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	// commit happens half an hour into the last, open slot
	now = noon.Add(13*time.Hour + 30*time.Minute)

	locationA = timeline.Location{Latitude: 38.628060, Longitude: -117.848463}
	locationB = timeline.Location{Latitude: 37.628060, Longitude: -116.848463}
)

type harness struct {
	slots    *fakeSlots
	settings *fakeSettings
	guesses  *fakeGuesses
	buffer   *fakeBuffer
	metrics  *fakeMetrics
	sink     *pipeline.PersistencySink
}

func newHarness() *harness {
	h := &harness{
		slots:    &fakeSlots{},
		settings: &fakeSettings{},
		guesses:  &fakeGuesses{},
		buffer:   &fakeBuffer{},
		metrics:  &fakeMetrics{},
	}
	h.sink = pipeline.NewPersistencySink(h.slots, h.settings, h.guesses, h.buffer, h.metrics, clock.Fixed(now), nil)
	return h
}

func offset(h float64) time.Time {
	return noon.Add(time.Duration(h * float64(time.Hour)))
}

// testBatch is the day used throughout: seven contiguous slots from noon, the last one open.
func testBatch() []timeslot.TemporarySlot {
	bounds := []struct{ start, end float64 }{
		{0, 1}, {1, 4}, {4, 7}, {7, 9}, {9, 12}, {12, 13}, {13, -1},
	}
	batch := make([]timeslot.TemporarySlot, len(bounds))
	for i, b := range bounds {
		s := timeslot.New(offset(b.start))
		if b.end >= 0 {
			end := offset(b.end)
			s = s.WithEnd(&end)
		}
		batch[i] = s
	}
	return batch
}

func foodGuess() *smartguess.Guess {
	return &smartguess.Guess{
		ID:       "guess-food",
		Category: timeline.Food,
		Location: locationB,
		LastUsed: noon.Add(-500 * time.Second),
	}
}

func scenarioBatch() []timeslot.TemporarySlot {
	batch := testBatch()
	batch[4] = batch[4].WithLocation(&locationA)
	batch[5] = batch[5].WithLocation(&locationB).WithSmartGuess(foodGuess())
	return batch
}

func TestCommitScenario(t *testing.T) {
	h := newHarness()
	h.buffer.events = []store.TrackEvent{{Seq: 1, Kind: store.TrackEventLocation, At: noon}}
	batch := scenarioBatch()

	result, err := h.sink.Commit(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, now, result.CommitTime)
	assert.Len(t, result.Committed, 7)
	assert.Equal(t, 1, result.Purged)

	require.NotNil(t, h.settings.last)
	assert.Equal(t, locationB, *h.settings.last)

	require.Len(t, h.guesses.touches, 1)
	assert.Equal(t, "guess-food", h.guesses.touches[0].id)
	assert.Equal(t, offset(12), h.guesses.touches[0].at)

	assert.Equal(t, 7, h.metrics.count(metrics.SlotCreated))
	assert.Equal(t, 1, h.metrics.count(metrics.SlotSmartGuessed))
	assert.Equal(t, 6, h.metrics.count(metrics.SlotNotSmartGuessed))

	for i, s := range batch {
		d := s.Duration(now)
		assert.True(t, h.metrics.didLog(metrics.Created(now, timeline.Unknown, &d)), "created event for slot %d", i)
		if i == 5 {
			assert.True(t, h.metrics.didLog(metrics.SmartGuessed(now, timeline.Food, d)))
		} else {
			assert.True(t, h.metrics.didLog(metrics.NotSmartGuessed(now, timeline.Unknown, d)), "outcome event for slot %d", i)
		}
	}

	drained, err := h.buffer.DrainTrackEvents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drained)
}

func TestCommitPersistsInStartOrder(t *testing.T) {
	h := newHarness()
	batch := scenarioBatch()

	_, err := h.sink.Commit(context.Background(), batch)
	require.NoError(t, err)

	require.Len(t, h.slots.created, len(batch))
	for i, s := range h.slots.created {
		assert.Equal(t, batch[i].Start, s.Start)
		assert.False(t, s.CategoryWasSetByUser)
	}

	guessed := h.slots.created[5]
	assert.Equal(t, timeline.Food, guessed.Category)
	assert.Equal(t, "guess-food", guessed.SmartGuessID)
	require.NotNil(t, guessed.Location)
	assert.Equal(t, locationB, *guessed.Location)

	assert.Equal(t, timeline.Unknown, h.slots.created[0].Category)
	assert.Empty(t, h.slots.created[0].SmartGuessID)
	assert.Nil(t, h.slots.created[6].End)
}

func TestCommitMetricsUseOneCommitTime(t *testing.T) {
	h := newHarness()
	_, err := h.sink.Commit(context.Background(), testBatch())
	require.NoError(t, err)

	require.NotEmpty(t, h.metrics.events)
	for _, e := range h.metrics.events {
		assert.Equal(t, now, e.Date)
		require.NotNil(t, e.Duration)
	}
	// the open slot is measured up to the commit time
	last := h.metrics.events[len(h.metrics.events)-1]
	assert.Equal(t, 30*time.Minute, *last.Duration)
}

func TestLastLocationKeepsPreviousWhenBatchHasNone(t *testing.T) {
	h := newHarness()
	h.settings.last = &locationA

	_, err := h.sink.Commit(context.Background(), testBatch())
	require.NoError(t, err)

	require.NotNil(t, h.settings.last)
	assert.Equal(t, locationA, *h.settings.last)
	assert.Empty(t, h.settings.history)
}

func TestLastLocationLaterSlotWins(t *testing.T) {
	h := newHarness()
	batch := testBatch()
	batch[1] = batch[1].WithLocation(&locationB)
	batch[3] = batch[3].WithLocation(&locationA)

	_, err := h.sink.Commit(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, []timeline.Location{locationB, locationA}, h.settings.history)
	assert.Equal(t, locationA, *h.settings.last)
}

func TestCommitEmptyBatchIsNoop(t *testing.T) {
	h := newHarness()
	h.buffer.events = []store.TrackEvent{{Seq: 1}}

	result, err := h.sink.Commit(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Committed)
	assert.Zero(t, h.buffer.drains)
	assert.Len(t, h.buffer.events, 1)
	assert.Empty(t, h.metrics.events)
}

func TestCommitRejectsInvalidBatch(t *testing.T) {
	h := newHarness()
	batch := testBatch()
	batch[2], batch[3] = batch[3], batch[2]

	_, err := h.sink.Commit(context.Background(), batch)
	assert.ErrorIs(t, err, timeslot.ErrInvalidBatch)
	assert.Empty(t, h.slots.created)
	assert.Zero(t, h.buffer.drains)
}

func TestCommitStopsOnStoreFailure(t *testing.T) {
	h := newHarness()
	h.slots.failAt = 4
	h.buffer.events = []store.TrackEvent{{Seq: 1}, {Seq: 2}}

	result, err := h.sink.Commit(context.Background(), scenarioBatch())
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrStoreUnavailable)
	assert.ErrorIs(t, err, errDiskGone)

	var commitErr *pipeline.CommitError
	require.True(t, errors.As(err, &commitErr))
	assert.Equal(t, 3, commitErr.Index)

	assert.Len(t, result.Committed, 3)
	assert.Len(t, h.slots.created, 3)
	assert.Equal(t, 4, h.slots.calls)

	// later slots had no side effects and the buffer is intact
	assert.Nil(t, h.settings.last)
	assert.Empty(t, h.guesses.touches)
	assert.Equal(t, 3, h.metrics.count(metrics.SlotCreated))
	assert.Zero(t, h.buffer.drains)
	assert.Len(t, h.buffer.events, 2)
}

func TestCommitPurgeFailure(t *testing.T) {
	h := newHarness()
	h.buffer.fail = true

	result, err := h.sink.Commit(context.Background(), testBatch())
	assert.ErrorIs(t, err, pipeline.ErrStoreUnavailable)
	assert.Len(t, result.Committed, 7)
	assert.Zero(t, result.Purged)
}

func TestCommitToleratesPredictionAndSettingsFailures(t *testing.T) {
	h := newHarness()
	h.guesses.fail = true
	h.settings.fail = true

	result, err := h.sink.Commit(context.Background(), scenarioBatch())
	require.NoError(t, err)
	assert.Len(t, result.Committed, 7)
	assert.Equal(t, 1, h.metrics.count(metrics.SlotSmartGuessed))
	assert.Equal(t, 1, h.buffer.drains)
}

type panickingSink struct{}

func (panickingSink) Log(metrics.Event) { panic("analytics down") }

func TestCommitSurvivesPanickingMetrics(t *testing.T) {
	h := newHarness()
	sink := pipeline.NewPersistencySink(h.slots, h.settings, h.guesses, h.buffer, panickingSink{}, clock.Fixed(now), nil)

	result, err := sink.Commit(context.Background(), testBatch())
	require.NoError(t, err)
	assert.Len(t, result.Committed, 7)
}

func TestOnSlotCreatedObserver(t *testing.T) {
	h := newHarness()
	var seen []int64
	h.sink.OnSlotCreated(func(s store.Slot) { seen = append(seen, s.ID) })

	_, err := h.sink.Commit(context.Background(), testBatch())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7}, seen)
}

// blockingSlots parks the first CreateSlot until released.
type blockingSlots struct {
	fakeSlots
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSlots) CreateSlot(ctx context.Context, s *store.Slot) (int64, error) {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return b.fakeSlots.CreateSlot(ctx, s)
}

func TestCommitsAreSerialized(t *testing.T) {
	slots := &blockingSlots{entered: make(chan struct{}), release: make(chan struct{})}
	buffer := &fakeBuffer{}
	sink := pipeline.NewPersistencySink(slots, &fakeSettings{}, &fakeGuesses{}, buffer, &fakeMetrics{}, clock.Fixed(now), nil)

	first := make(chan error, 1)
	go func() {
		_, err := sink.Commit(context.Background(), testBatch())
		first <- err
	}()
	<-slots.entered

	// a second commit cannot start while the first holds the sink
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := sink.Commit(ctx, testBatch())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	second := make(chan error, 1)
	go func() {
		_, err := sink.Commit(context.Background(), testBatch())
		second <- err
	}()

	close(slots.release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	require.Len(t, slots.created, 14)
	for i := 0; i < 7; i++ {
		assert.Equal(t, slots.created[i].Start, slots.created[i+7].Start)
	}
	assert.Equal(t, 2, buffer.drains)
}
