package smartguess

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/christopherklint97/slotwise/internal/clock"
	"github.com/christopherklint97/slotwise/internal/timeline"
)

const eligibleKey = "eligible"

// eligibleSet is the cached candidate list and the repository version it was read at.
type eligibleSet struct {
	version int64
	guesses []Guess
}

type Policy struct {
	// DistanceMeters is the exclusive radius within which a guess matches.
	DistanceMeters float64
	// StrikeThreshold excludes guesses whose error count reached it.
	StrikeThreshold int
	CacheTTL        time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		DistanceMeters:  100,
		StrikeThreshold: 3,
		CacheTTL:        5 * time.Minute,
	}
}

// Eligible reports whether a guess may still be offered as a match.
func (p Policy) Eligible(g Guess) bool {
	return g.Errors < p.StrikeThreshold
}

// Memory implements match/add/strike/touch over a Repository. It does not
// serialize writers itself; callers hold the commit lock.
type Memory struct {
	repo   Repository
	clock  clock.Clock
	policy Policy
	cache  *cache.Cache
	logger *slog.Logger
}

func NewMemory(repo Repository, clk clock.Clock, policy Policy, logger *slog.Logger) *Memory {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if policy.CacheTTL <= 0 {
		policy.CacheTTL = DefaultPolicy().CacheTTL
	}
	return &Memory{
		repo:   repo,
		clock:  clk,
		policy: policy,
		cache:  cache.New(policy.CacheTTL, policy.CacheTTL*2),
		logger: logger,
	}
}

func (m *Memory) Policy() Policy {
	return m.policy
}

// Match returns the nearest eligible guess closer than the policy radius,
// preferring the most recently used one on equal distance. A nil guess means no match.
func (m *Memory) Match(ctx context.Context, loc timeline.Location) (*Guess, error) {
	candidates, err := m.eligible(ctx)
	if err != nil {
		return nil, err
	}

	var best *Guess
	bestDist := 0.0
	for i := range candidates {
		g := candidates[i]
		if !m.policy.Eligible(g) {
			continue
		}
		d := loc.DistanceTo(g.Location)
		if d >= m.policy.DistanceMeters {
			continue
		}
		if best == nil || d < bestDist || (d == bestDist && g.LastUsed.After(best.LastUsed)) {
			match := g
			best = &match
			bestDist = d
		}
	}

	if best != nil {
		m.logger.Debug("smart guess matched",
			"id", best.ID,
			"category", best.Category,
			"distance_m", bestDist,
		)
	}
	return best, nil
}

// Add records a new association with no errors, last used now.
func (m *Memory) Add(ctx context.Context, category timeline.Category, loc timeline.Location) (Guess, error) {
	now := m.clock.Now()
	g := Guess{
		ID:        uuid.New().String(),
		Category:  category,
		Location:  loc,
		LastUsed:  now,
		CreatedAt: now,
	}
	if err := m.repo.InsertGuess(ctx, g); err != nil {
		return Guess{}, fmt.Errorf("adding smart guess: %w", err)
	}
	m.cache.Delete(eligibleKey)

	m.logger.Info("smart guess added", "id", g.ID, "category", category, "location", loc.String())
	return g, nil
}

// Strike counts a wrong guess. The record is kept even after it stops matching.
func (m *Memory) Strike(ctx context.Context, id string) error {
	if err := m.repo.IncrementGuessErrors(ctx, id); err != nil {
		return fmt.Errorf("striking smart guess %s: %w", id, err)
	}
	m.cache.Delete(eligibleKey)

	m.logger.Info("smart guess struck", "id", id)
	return nil
}

// Touch sets the last-used time of a guess.
func (m *Memory) Touch(ctx context.Context, id string, at time.Time) error {
	if err := m.repo.UpdateGuessLastUsed(ctx, id, at); err != nil {
		return fmt.Errorf("touching smart guess %s: %w", id, err)
	}
	m.cache.Delete(eligibleKey)
	return nil
}

func (m *Memory) List(ctx context.Context) ([]Guess, error) {
	guesses, err := m.repo.ListGuesses(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing smart guesses: %w", err)
	}
	return guesses, nil
}

// eligible serves the cached candidates only while the repository version
// is unchanged, so writes from another process are seen on the next match.
func (m *Memory) eligible(ctx context.Context) ([]Guess, error) {
	version, err := m.repo.GuessesVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading smart guess version: %w", err)
	}
	if v, ok := m.cache.Get(eligibleKey); ok {
		if set := v.(eligibleSet); set.version == version {
			return set.guesses, nil
		}
	}

	guesses, err := m.repo.EligibleGuesses(ctx, m.policy.StrikeThreshold)
	if err != nil {
		return nil, fmt.Errorf("loading smart guesses: %w", err)
	}
	m.cache.Set(eligibleKey, eligibleSet{version: version, guesses: guesses}, cache.DefaultExpiration)
	return guesses, nil
}
