package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/christopherklint97/slotwise/internal/metrics"
	"github.com/christopherklint97/slotwise/internal/timeline"
)

func (db *DB) InsertMetricEvent(ctx context.Context, e metrics.Event) error {
	var duration interface{}
	if e.Duration != nil {
		duration = e.Duration.Seconds()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO metric_events (kind, date, category, from_category, duration_seconds)
		 VALUES (?, ?, ?, ?, ?)`,
		string(e.Kind), formatTime(e.Date), string(e.Category), nullIfEmpty(string(e.FromCategory)), duration,
	)
	if err != nil {
		return fmt.Errorf("inserting metric event: %w", err)
	}
	return nil
}

// MetricEventsSince returns logged analytics events dated at or after since.
func (db *DB) MetricEventsSince(ctx context.Context, since time.Time) ([]metrics.Event, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT kind, date, category, from_category, duration_seconds
		 FROM metric_events WHERE date >= ? ORDER BY id ASC`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("querying metric events: %w", err)
	}
	defer rows.Close()

	var events []metrics.Event
	for rows.Next() {
		var kind, date, category string
		var from sql.NullString
		var seconds sql.NullFloat64
		if err := rows.Scan(&kind, &date, &category, &from, &seconds); err != nil {
			return nil, fmt.Errorf("scanning metric event: %w", err)
		}
		e := metrics.Event{
			Kind:         metrics.Kind(kind),
			Date:         parseTime(date),
			Category:     timeline.Category(category),
			FromCategory: timeline.Category(from.String),
		}
		if seconds.Valid {
			d := time.Duration(seconds.Float64 * float64(time.Second))
			e.Duration = &d
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
