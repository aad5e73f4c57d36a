package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 25 * time.Millisecond

// WriterLock is an advisory file lock next to the database. Every process
// that writes slots or smart guesses holds it for the whole operation.
// The kernel drops it when the holder exits, so a crashed daemon never
// leaves the store locked.
type WriterLock struct {
	f *flock.Flock
}

// WriterLock returns a new lock handle for this database. Handles are
// independent: two handles exclude each other even inside one process.
func (db *DB) WriterLock() *WriterLock {
	return &WriterLock{f: flock.New(db.path + ".lock")}
}

// Lock blocks until the lock is held or ctx is done.
func (l *WriterLock) Lock(ctx context.Context) error {
	ok, err := l.f.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("locking %s: %w", l.f.Path(), err)
	}
	if !ok {
		return fmt.Errorf("locking %s: not acquired", l.f.Path())
	}
	return nil
}

func (l *WriterLock) Unlock() error {
	if err := l.f.Unlock(); err != nil {
		return fmt.Errorf("unlocking %s: %w", l.f.Path(), err)
	}
	return nil
}
