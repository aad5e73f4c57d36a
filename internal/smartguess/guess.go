package smartguess

import (
	"context"
	"errors"
	"time"

	"github.com/christopherklint97/slotwise/internal/timeline"
)

var ErrNotFound = errors.New("smart guess not found")

// Guess is a learned association between a place and a category.
// Errors counts how many times the user corrected a slot categorized from it.
type Guess struct {
	ID        string            `json:"id"`
	Category  timeline.Category `json:"category"`
	Location  timeline.Location `json:"location"`
	LastUsed  time.Time         `json:"last_used"`
	Errors    int               `json:"errors"`
	CreatedAt time.Time         `json:"created_at"`
}

// Repository persists guesses. Implementations return ErrNotFound for unknown ids.
// GuessesVersion changes whenever any writer, in any process, changes a guess.
type Repository interface {
	GuessesVersion(ctx context.Context) (int64, error)
	InsertGuess(ctx context.Context, g Guess) error
	ListGuesses(ctx context.Context) ([]Guess, error)
	EligibleGuesses(ctx context.Context, maxErrors int) ([]Guess, error)
	IncrementGuessErrors(ctx context.Context, id string) error
	UpdateGuessLastUsed(ctx context.Context, id string, at time.Time) error
}
