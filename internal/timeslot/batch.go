package timeslot

import (
	"errors"
	"fmt"
)

var ErrInvalidBatch = errors.New("invalid batch")

// ValidateBatch checks the ordering contract segmentation must honor:
// ascending starts, no overlap, and only the last slot may be open.
func ValidateBatch(batch []TemporarySlot) error {
	for i, s := range batch {
		if s.Start.IsZero() {
			return fmt.Errorf("%w: slot %d has no start", ErrInvalidBatch, i)
		}
		if s.End != nil && s.End.Before(s.Start) {
			return fmt.Errorf("%w: slot %d ends before it starts", ErrInvalidBatch, i)
		}
		if s.End == nil && i != len(batch)-1 {
			return fmt.Errorf("%w: slot %d is open but not last", ErrInvalidBatch, i)
		}
		if s.Category != "" && !s.Category.Valid() {
			return fmt.Errorf("%w: slot %d has unknown category %q", ErrInvalidBatch, i, s.Category)
		}
		if s.Location != nil && !s.Location.Valid() {
			return fmt.Errorf("%w: slot %d has an invalid location", ErrInvalidBatch, i)
		}
		if i == 0 {
			continue
		}
		prev := batch[i-1]
		if s.Start.Before(prev.Start) {
			return fmt.Errorf("%w: slot %d starts before slot %d", ErrInvalidBatch, i, i-1)
		}
		if prev.End != nil && s.Start.Before(*prev.End) {
			return fmt.Errorf("%w: slot %d overlaps slot %d", ErrInvalidBatch, i, i-1)
		}
	}
	return nil
}
