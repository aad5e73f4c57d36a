package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/christopherklint97/slotwise/internal/timeline"
	"github.com/christopherklint97/slotwise/internal/timeslot"
)

// Slot is a committed time slot. End is nil while the slot is still running.
type Slot struct {
	ID                   int64
	Start                time.Time
	End                  *time.Time
	Category             timeline.Category
	Location             *timeline.Location
	CategoryWasSetByUser bool
	SmartGuessID         string
	CreatedAt            time.Time
}

// Duration uses the same day clamp as provisional slots, in now's time zone.
func (s Slot) Duration(now time.Time) time.Duration {
	var end *time.Time
	if s.End != nil {
		e := s.End.In(now.Location())
		end = &e
	}
	return timeslot.ClampedDuration(s.Start.In(now.Location()), end, now)
}

const slotColumns = `id, start_time, end_time, category, latitude, longitude, category_set_by_user, smart_guess_id, created_at`

// CreateSlot inserts s and sets s.ID. A still-open latest slot that started
// no later than s is closed at s.Start in the same transaction.
func (db *DB) CreateSlot(ctx context.Context, s *Slot) (int64, error) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.Category == "" {
		s.Category = timeline.Unknown
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE slots SET end_time = ?
		 WHERE id = (SELECT id FROM slots ORDER BY start_time DESC, id DESC LIMIT 1)
		   AND end_time IS NULL AND start_time <= ?`,
		formatTime(s.Start), formatTime(s.Start),
	)
	if err != nil {
		return 0, fmt.Errorf("closing previous slot: %w", err)
	}

	var end interface{}
	if s.End != nil {
		end = formatTime(*s.End)
	}
	var lat, lon interface{}
	if s.Location != nil {
		lat, lon = s.Location.Latitude, s.Location.Longitude
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO slots (start_time, end_time, category, latitude, longitude, category_set_by_user, smart_guess_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(s.Start), end, string(s.Category), lat, lon,
		s.CategoryWasSetByUser, nullIfEmpty(s.SmartGuessID), formatTime(s.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting slot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading slot id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	s.ID = id
	return id, nil
}

func (db *DB) GetSlot(ctx context.Context, id int64) (*Slot, error) {
	slots, err := db.querySlots(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("slot %d: %w", id, ErrNotFound)
	}
	return &slots[0], nil
}

// UpdateSlotCategory records a category chosen by the user.
func (db *DB) UpdateSlotCategory(ctx context.Context, id int64, category timeline.Category) error {
	result, err := db.ExecContext(ctx,
		"UPDATE slots SET category = ?, category_set_by_user = 1 WHERE id = ?",
		string(category), id,
	)
	if err != nil {
		return fmt.Errorf("updating slot %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating slot %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("slot %d: %w", id, ErrNotFound)
	}
	return nil
}

// LastSlot returns the most recent slot, or nil when there are none.
func (db *DB) LastSlot(ctx context.Context) (*Slot, error) {
	slots, err := db.querySlots(ctx,
		`SELECT `+slotColumns+` FROM slots ORDER BY start_time DESC, id DESC LIMIT 1`)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, nil
	}
	return &slots[0], nil
}

// SlotsBetween returns slots starting in [from, to) in insertion order.
func (db *DB) SlotsBetween(ctx context.Context, from, to time.Time) ([]Slot, error) {
	return db.querySlots(ctx,
		`SELECT `+slotColumns+`
		 FROM slots
		 WHERE start_time >= ? AND start_time < ?
		 ORDER BY id ASC`,
		formatTime(from), formatTime(to),
	)
}

// SlotsForDay returns the slots that started on day's calendar date, in day's time zone.
func (db *DB) SlotsForDay(ctx context.Context, day time.Time) ([]Slot, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return db.SlotsBetween(ctx, start, timeslot.NextMidnight(start))
}

func (db *DB) querySlots(ctx context.Context, query string, args ...interface{}) ([]Slot, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying slots: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		var s Slot
		var startStr, category, createdStr string
		var endStr, guessID sql.NullString
		var lat, lon sql.NullFloat64

		if err := rows.Scan(
			&s.ID, &startStr, &endStr, &category, &lat, &lon,
			&s.CategoryWasSetByUser, &guessID, &createdStr,
		); err != nil {
			return nil, fmt.Errorf("scanning slot: %w", err)
		}

		s.Start = parseTime(startStr)
		if endStr.Valid {
			end := parseTime(endStr.String)
			s.End = &end
		}
		s.Category = timeline.Category(category)
		if lat.Valid && lon.Valid {
			s.Location = &timeline.Location{Latitude: lat.Float64, Longitude: lon.Float64}
		}
		s.SmartGuessID = guessID.String
		s.CreatedAt = parseTime(createdStr)

		slots = append(slots, s)
	}

	return slots, rows.Err()
}
