package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christopherklint97/slotwise/internal/timeline"
)

var noon = time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestCreateAndGetSlot(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	in := &Slot{
		Start:        noon,
		End:          ptr(noon.Add(time.Hour)),
		Category:     timeline.Food,
		Location:     &timeline.Location{Latitude: 37.62806, Longitude: -116.848463},
		SmartGuessID: "guess-1",
	}
	id, err := db.CreateSlot(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, id, in.ID)

	got, err := db.GetSlot(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Start.Equal(noon))
	require.NotNil(t, got.End)
	assert.True(t, got.End.Equal(noon.Add(time.Hour)))
	assert.Equal(t, timeline.Food, got.Category)
	assert.Equal(t, *in.Location, *got.Location)
	assert.Equal(t, "guess-1", got.SmartGuessID)
	assert.False(t, got.CategoryWasSetByUser)
}

func TestCreateSlotDefaults(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	id, err := db.CreateSlot(ctx, &Slot{Start: noon})
	require.NoError(t, err)

	got, err := db.GetSlot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, timeline.Unknown, got.Category)
	assert.Nil(t, got.End)
	assert.Nil(t, got.Location)
	assert.Empty(t, got.SmartGuessID)
}

func TestCreateSlotClosesOpenPredecessor(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	first, err := db.CreateSlot(ctx, &Slot{Start: noon})
	require.NoError(t, err)
	_, err = db.CreateSlot(ctx, &Slot{Start: noon.Add(90 * time.Minute)})
	require.NoError(t, err)

	got, err := db.GetSlot(ctx, first)
	require.NoError(t, err)
	require.NotNil(t, got.End)
	assert.True(t, got.End.Equal(noon.Add(90*time.Minute)))

	last, err := db.LastSlot(ctx)
	require.NoError(t, err)
	assert.Nil(t, last.End)
}

func TestGetSlotNotFound(t *testing.T) {
	_, err := tempDB(t).GetSlot(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateSlotCategory(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	id, err := db.CreateSlot(ctx, &Slot{Start: noon})
	require.NoError(t, err)
	require.NoError(t, db.UpdateSlotCategory(ctx, id, timeline.Work))

	got, err := db.GetSlot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, timeline.Work, got.Category)
	assert.True(t, got.CategoryWasSetByUser)

	assert.ErrorIs(t, db.UpdateSlotCategory(ctx, id+1, timeline.Work), ErrNotFound)
}

func TestLastSlotEmpty(t *testing.T) {
	last, err := tempDB(t).LastSlot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestSlotsForDayKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	starts := []time.Duration{0, time.Hour, 4 * time.Hour, 13 * time.Hour}
	for i, off := range starts {
		s := &Slot{Start: noon.Add(off)}
		if i < len(starts)-1 {
			s.End = ptr(noon.Add(starts[i+1]))
		}
		_, err := db.CreateSlot(ctx, s)
		require.NoError(t, err)
	}

	day, err := db.SlotsForDay(ctx, noon)
	require.NoError(t, err)
	require.Len(t, day, 3) // the 01:00 slot belongs to the next day
	for i := 1; i < len(day); i++ {
		assert.True(t, day[i].Start.After(day[i-1].Start))
	}
}

func TestSlotDurationClamp(t *testing.T) {
	s := Slot{Start: noon.Add(10 * time.Hour)}
	assert.Equal(t, 2*time.Hour, s.Duration(noon.Add(20*time.Hour)))
}
