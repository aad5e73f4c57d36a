package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/christopherklint97/slotwise/internal/config"
	"github.com/christopherklint97/slotwise/internal/inbox"
	"github.com/christopherklint97/slotwise/internal/pipeline"
	"github.com/christopherklint97/slotwise/internal/timeslot"
)

// Committer is satisfied by *pipeline.PersistencySink.
type Committer interface {
	Commit(ctx context.Context, batch []timeslot.TemporarySlot) (pipeline.CommitResult, error)
}

// Recorder is satisfied by *metrics.SlotMetrics.
type Recorder interface {
	RecordCommit(status string, slots, purged int, seconds float64)
}

const (
	StatusSuccess    = "success"
	StatusInvalid    = "invalid"
	StatusStoreError = "store_error"
)

type Scheduler struct {
	dir      string
	interval time.Duration
	sink     Committer
	matcher  inbox.Matcher
	recorder Recorder
	logger   *slog.Logger
}

func New(dir string, interval time.Duration, sink Committer, matcher inbox.Matcher, recorder Recorder, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		dir:      dir,
		interval: interval,
		sink:     sink,
		matcher:  matcher,
		recorder: recorder,
		logger:   logger,
	}
}

// Run commits inbox batches every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := writePID(); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePID()

	s.logger.Info("scheduler started", "inbox", s.dir, "interval", s.interval)

	// Commit whatever piled up while the daemon was down
	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
		s.Tick(ctx)
	}
}

// Tick commits every pending batch in name order and returns how many
// succeeded. A failed batch is renamed and does not block the ones after it.
func (s *Scheduler) Tick(ctx context.Context) int {
	paths, err := inbox.Pending(s.dir)
	if err != nil {
		s.logger.Error("listing inbox failed", "error", err)
		return 0
	}

	done := 0
	for _, path := range paths {
		if ctx.Err() != nil {
			return done
		}

		_, err := s.CommitFile(ctx, path)
		switch {
		case err == nil:
			done++
			if err := inbox.Done(path); err != nil {
				s.logger.Error("removing committed batch failed", "path", path, "error", err)
			}
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return done
		default:
			failed, mvErr := inbox.MarkFailed(path)
			if mvErr != nil {
				s.logger.Error("marking batch failed", "path", path, "error", mvErr)
				continue
			}
			s.logger.Warn("batch rejected", "path", failed, "error", err)
		}
	}
	return done
}

// CommitFile loads one batch file, matches smart guesses and commits it.
// The file itself is left in place.
func (s *Scheduler) CommitFile(ctx context.Context, path string) (pipeline.CommitResult, error) {
	started := time.Now()

	b, err := inbox.ReadFile(path)
	if err != nil {
		s.record(StatusInvalid, pipeline.CommitResult{}, started)
		return pipeline.CommitResult{}, err
	}
	batch, err := b.Slots(ctx, s.matcher)
	if err != nil {
		s.record(StatusInvalid, pipeline.CommitResult{}, started)
		return pipeline.CommitResult{}, err
	}

	result, err := s.sink.Commit(ctx, batch)
	switch {
	case err == nil:
		s.record(StatusSuccess, result, started)
		s.logger.Info("batch committed", "path", filepath.Base(path), "slots", len(result.Committed), "purged", result.Purged)
	case errors.Is(err, timeslot.ErrInvalidBatch):
		s.record(StatusInvalid, result, started)
	case errors.Is(err, pipeline.ErrStoreUnavailable):
		s.record(StatusStoreError, result, started)
	}
	return result, err
}

func (s *Scheduler) record(status string, result pipeline.CommitResult, started time.Time) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordCommit(status, len(result.Committed), result.Purged, time.Since(started).Seconds())
}

func pidPath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "slotwise.pid"), nil
}

func writePID() error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	path, err := pidPath()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func removePID() {
	if path, err := pidPath(); err == nil {
		os.Remove(path)
	}
}

func ReadPID() (int, error) {
	path, err := pidPath()
	if err != nil {
		return 0, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("no running scheduler found")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file")
	}

	return pid, nil
}
