package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/christopherklint97/slotwise/internal/timeline"
)

const (
	TrackEventLocation = "location"
	TrackEventMotion   = "motion"
)

// TrackEvent is a raw observation waiting for the next commit. Seq is the insertion order.
type TrackEvent struct {
	Seq     int64
	Kind    string
	At      time.Time
	Payload string
}

func NewLocationEvent(at time.Time, loc timeline.Location) (TrackEvent, error) {
	payload, err := json.Marshal(loc)
	if err != nil {
		return TrackEvent{}, fmt.Errorf("encoding location: %w", err)
	}
	return TrackEvent{Kind: TrackEventLocation, At: at, Payload: string(payload)}, nil
}

// Location decodes the payload of a location event.
func (e TrackEvent) Location() (timeline.Location, error) {
	if e.Kind != TrackEventLocation {
		return timeline.Location{}, fmt.Errorf("track event %d is a %s event", e.Seq, e.Kind)
	}
	var loc timeline.Location
	if err := json.Unmarshal([]byte(e.Payload), &loc); err != nil {
		return timeline.Location{}, fmt.Errorf("decoding location: %w", err)
	}
	return loc, nil
}

func (db *DB) AppendTrackEvent(ctx context.Context, e TrackEvent) (int64, error) {
	if e.Payload == "" {
		e.Payload = "{}"
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO track_events (kind, at, payload) VALUES (?, ?, ?)`,
		e.Kind, formatTime(e.At), e.Payload,
	)
	if err != nil {
		return 0, fmt.Errorf("appending track event: %w", err)
	}
	return result.LastInsertId()
}

// TrackEvents returns the buffered events without consuming them.
func (db *DB) TrackEvents(ctx context.Context) ([]TrackEvent, error) {
	return queryTrackEvents(ctx, db, `SELECT seq, kind, at, payload FROM track_events ORDER BY seq ASC`)
}

func (db *DB) PendingTrackEvents(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM track_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting track events: %w", err)
	}
	return n, nil
}

// DrainTrackEvents returns and removes every buffered event in one statement.
// Events appended concurrently are either drained or left for the next drain.
func (db *DB) DrainTrackEvents(ctx context.Context) ([]TrackEvent, error) {
	events, err := queryTrackEvents(ctx, db,
		`DELETE FROM track_events RETURNING seq, kind, at, payload`)
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })
	return events, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func queryTrackEvents(ctx context.Context, q queryer, query string, args ...interface{}) ([]TrackEvent, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying track events: %w", err)
	}
	defer rows.Close()

	var events []TrackEvent
	for rows.Next() {
		var e TrackEvent
		var at string
		if err := rows.Scan(&e.Seq, &e.Kind, &at, &e.Payload); err != nil {
			return nil, fmt.Errorf("scanning track event: %w", err)
		}
		e.At = parseTime(at)
		events = append(events, e)
	}
	return events, rows.Err()
}
