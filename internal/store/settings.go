package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/christopherklint97/slotwise/internal/timeline"
)

const lastKnownLocationKey = "last_known_location"

func (db *DB) SetLastKnownLocation(ctx context.Context, loc timeline.Location) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("encoding location: %w", err)
	}
	if err := db.SetState(ctx, lastKnownLocationKey, string(data)); err != nil {
		return fmt.Errorf("saving last known location: %w", err)
	}
	return nil
}

// LastKnownLocation returns nil when no location was ever recorded.
func (db *DB) LastKnownLocation(ctx context.Context) (*timeline.Location, error) {
	value, err := db.GetState(ctx, lastKnownLocationKey)
	if err != nil {
		return nil, fmt.Errorf("reading last known location: %w", err)
	}
	if value == "" {
		return nil, nil
	}
	var loc timeline.Location
	if err := json.Unmarshal([]byte(value), &loc); err != nil {
		return nil, fmt.Errorf("decoding last known location: %w", err)
	}
	return &loc, nil
}
