// Package inbox reads provisional slot batches written by the segmenter.
//
// A batch is a JSON file in the inbox directory. Files are committed in name
// order; a committed file is removed and a rejected one is renamed with a
// .failed suffix so it is never retried as-is.
package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/christopherklint97/slotwise/internal/smartguess"
	"github.com/christopherklint97/slotwise/internal/timeline"
	"github.com/christopherklint97/slotwise/internal/timeslot"
)

// Batch is the on-disk form of a commit batch.
type Batch struct {
	Slots []Entry `json:"slots" jsonschema:"required,minItems=1,description=Contiguous slots ordered by start; only the last may be open"`
}

// Entry is one slot of a batch. Times may carry any UTC offset; the day a
// slot is clamped to is the local day of the committing process.
type Entry struct {
	Start    time.Time          `json:"start" jsonschema:"required"`
	End      *time.Time         `json:"end,omitempty" jsonschema:"description=Omitted for a slot that is still running"`
	Category timeline.Category  `json:"category,omitempty" jsonschema:"enum=unknown,enum=commute,enum=food,enum=friends,enum=work,enum=leisure,enum=family,enum=hobby,enum=shopping,enum=sleep,default=unknown"`
	Location *timeline.Location `json:"location,omitempty"`
}

// Matcher finds the smart guess for a location, nil when none applies.
type Matcher interface {
	Match(ctx context.Context, loc timeline.Location) (*smartguess.Guess, error)
}

// Decode parses a batch, rejecting unknown fields.
func Decode(r io.Reader) (Batch, error) {
	var b Batch
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return Batch{}, fmt.Errorf("decoding batch: %w", err)
	}
	return b, nil
}

func ReadFile(path string) (Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return Batch{}, fmt.Errorf("opening batch: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func (b Batch) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// Slots converts the batch into provisional slots. Located slots are
// matched against the smart guess memory when m is non-nil.
func (b Batch) Slots(ctx context.Context, m Matcher) ([]timeslot.TemporarySlot, error) {
	out := make([]timeslot.TemporarySlot, 0, len(b.Slots))
	for i, e := range b.Slots {
		category, err := timeline.ParseCategory(string(e.Category))
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}

		s := timeslot.New(e.Start).
			WithEnd(e.End).
			WithCategory(category).
			WithLocation(e.Location)

		if m != nil && e.Location != nil {
			g, err := m.Match(ctx, *e.Location)
			if err != nil {
				return nil, fmt.Errorf("matching slot %d: %w", i, err)
			}
			s = s.WithSmartGuess(g)
		}
		out = append(out, s)
	}
	return out, nil
}

// FromSlots builds a batch from provisional slots. Smart guesses are not
// carried over; they are re-matched on load.
func FromSlots(slots []timeslot.TemporarySlot) Batch {
	b := Batch{Slots: make([]Entry, len(slots))}
	for i, s := range slots {
		b.Slots[i] = Entry{Start: s.Start, End: s.End, Category: s.Category, Location: s.Location}
	}
	return b
}
