package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/christopherklint97/slotwise/internal/smartguess"
	"github.com/christopherklint97/slotwise/internal/timeline"
)

const (
	guessColumns = `id, category, latitude, longitude, last_used, errors, created_at`

	guessesVersionKey = "smart_guesses_version"
)

// GuessesVersion is bumped in the same transaction as every guess write.
func (db *DB) GuessesVersion(ctx context.Context) (int64, error) {
	value, err := db.GetState(ctx, guessesVersionKey)
	if err != nil {
		return 0, fmt.Errorf("reading smart guess version: %w", err)
	}
	if value == "" {
		return 0, nil
	}
	return strconv.ParseInt(value, 10, 64)
}

func (db *DB) InsertGuess(ctx context.Context, g smartguess.Guess) error {
	return db.writeGuesses(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO smart_guesses (`+guessColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			g.ID, string(g.Category), g.Location.Latitude, g.Location.Longitude,
			formatTime(g.LastUsed), g.Errors, formatTime(g.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting smart guess: %w", err)
		}
		return nil
	})
}

func (db *DB) ListGuesses(ctx context.Context) ([]smartguess.Guess, error) {
	return db.queryGuesses(ctx,
		`SELECT `+guessColumns+` FROM smart_guesses ORDER BY created_at ASC, id ASC`)
}

// EligibleGuesses returns guesses with fewer than maxErrors strikes.
func (db *DB) EligibleGuesses(ctx context.Context, maxErrors int) ([]smartguess.Guess, error) {
	return db.queryGuesses(ctx,
		`SELECT `+guessColumns+` FROM smart_guesses WHERE errors < ? ORDER BY last_used DESC`, maxErrors)
}

func (db *DB) GetGuess(ctx context.Context, id string) (*smartguess.Guess, error) {
	guesses, err := db.queryGuesses(ctx,
		`SELECT `+guessColumns+` FROM smart_guesses WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(guesses) == 0 {
		return nil, smartguess.ErrNotFound
	}
	return &guesses[0], nil
}

func (db *DB) IncrementGuessErrors(ctx context.Context, id string) error {
	return db.updateGuess(ctx, `UPDATE smart_guesses SET errors = errors + 1 WHERE id = ?`, id)
}

func (db *DB) UpdateGuessLastUsed(ctx context.Context, id string, at time.Time) error {
	return db.updateGuess(ctx, `UPDATE smart_guesses SET last_used = ? WHERE id = ?`, formatTime(at), id)
}

func (db *DB) updateGuess(ctx context.Context, query string, args ...interface{}) error {
	return db.writeGuesses(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("updating smart guess: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating smart guess: %w", err)
		}
		if n == 0 {
			return smartguess.ErrNotFound
		}
		return nil
	})
}

// writeGuesses runs fn and bumps the guess version in one transaction.
func (db *DB) writeGuesses(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO state (key, value) VALUES (?, '1')
		 ON CONFLICT(key) DO UPDATE SET value = CAST(value AS INTEGER) + 1`,
		guessesVersionKey,
	)
	if err != nil {
		return fmt.Errorf("bumping smart guess version: %w", err)
	}
	return tx.Commit()
}

func (db *DB) queryGuesses(ctx context.Context, query string, args ...interface{}) ([]smartguess.Guess, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying smart guesses: %w", err)
	}
	defer rows.Close()

	var guesses []smartguess.Guess
	for rows.Next() {
		var g smartguess.Guess
		var category, lastUsed, created string
		if err := rows.Scan(&g.ID, &category, &g.Location.Latitude, &g.Location.Longitude,
			&lastUsed, &g.Errors, &created); err != nil {
			return nil, fmt.Errorf("scanning smart guess: %w", err)
		}
		g.Category = timeline.Category(category)
		g.LastUsed = parseTime(lastUsed)
		g.CreatedAt = parseTime(created)
		guesses = append(guesses, g)
	}
	return guesses, rows.Err()
}
