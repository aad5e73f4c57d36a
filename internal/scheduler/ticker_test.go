package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/christopherklint97/slotwise/internal/inbox"
	"github.com/christopherklint97/slotwise/internal/pipeline"
	"github.com/christopherklint97/slotwise/internal/store"
	"github.com/christopherklint97/slotwise/internal/timeslot"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var noon = time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)

type fakeCommitter struct {
	mu      sync.Mutex
	batches [][]timeslot.TemporarySlot
	fail    error
}

func (f *fakeCommitter) Commit(_ context.Context, batch []timeslot.TemporarySlot) (pipeline.CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return pipeline.CommitResult{}, f.fail
	}
	if err := timeslot.ValidateBatch(batch); err != nil {
		return pipeline.CommitResult{}, err
	}
	f.batches = append(f.batches, batch)
	res := pipeline.CommitResult{CommitTime: noon, Purged: 2}
	for range batch {
		res.Committed = append(res.Committed, store.Slot{})
	}
	return res, nil
}

func (f *fakeCommitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type commitRecord struct {
	status string
	slots  int
	purged int
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []commitRecord
}

func (f *fakeRecorder) RecordCommit(status string, slots, purged int, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, commitRecord{status, slots, purged})
}

func writeBatch(t *testing.T, dir, name string, hours ...int) string {
	t.Helper()
	var slots []timeslot.TemporarySlot
	for i, h := range hours {
		s := timeslot.New(noon.Add(time.Duration(h) * time.Hour))
		if i < len(hours)-1 {
			end := noon.Add(time.Duration(hours[i+1]) * time.Hour)
			s = s.WithEnd(&end)
		}
		slots = append(slots, s)
	}
	path, err := inbox.Write(dir, name, inbox.FromSlots(slots))
	require.NoError(t, err)
	return path
}

func TestTickCommitsInNameOrder(t *testing.T) {
	dir := t.TempDir()
	writeBatch(t, dir, "002", 5, 6)
	writeBatch(t, dir, "001", 0, 1, 2)

	c := &fakeCommitter{}
	r := &fakeRecorder{}
	s := New(dir, time.Hour, c, nil, r, nil)

	assert.Equal(t, 2, s.Tick(context.Background()))
	require.Len(t, c.batches, 2)
	assert.Len(t, c.batches[0], 3)
	assert.Len(t, c.batches[1], 2)

	assert.Equal(t, []commitRecord{{StatusSuccess, 3, 2}, {StatusSuccess, 2, 2}}, r.records)

	pending, err := inbox.Pending(dir)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestTickMarksRejectedBatches(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "001.json")
	require.NoError(t, os.WriteFile(bad, []byte("not json"), 0644))
	// out of order starts
	unordered := writeBatch(t, dir, "002", 3, 1)
	writeBatch(t, dir, "003", 0, 1)

	c := &fakeCommitter{}
	r := &fakeRecorder{}
	s := New(dir, time.Hour, c, nil, r, nil)

	assert.Equal(t, 1, s.Tick(context.Background()))
	assert.FileExists(t, bad+".failed")
	assert.FileExists(t, unordered+".failed")
	assert.Equal(t, 1, c.count())

	require.Len(t, r.records, 3)
	assert.Equal(t, StatusInvalid, r.records[0].status)
	assert.Equal(t, StatusInvalid, r.records[1].status)
	assert.Equal(t, StatusSuccess, r.records[2].status)
}

func TestTickStoreFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeBatch(t, dir, "001", 0, 1)

	c := &fakeCommitter{fail: fmt.Errorf("%w: disk full", pipeline.ErrStoreUnavailable)}
	r := &fakeRecorder{}
	s := New(dir, time.Hour, c, nil, r, nil)

	assert.Zero(t, s.Tick(context.Background()))
	assert.FileExists(t, path+".failed")
	require.Len(t, r.records, 1)
	assert.Equal(t, StatusStoreError, r.records[0].status)
}

func TestTickKeepsBatchOnCancel(t *testing.T) {
	dir := t.TempDir()
	path := writeBatch(t, dir, "001", 0, 1)

	c := &fakeCommitter{fail: context.Canceled}
	s := New(dir, time.Hour, c, nil, nil, nil)

	assert.Zero(t, s.Tick(context.Background()))
	assert.FileExists(t, path)
}

func TestRunWritesPIDAndStops(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	writeBatch(t, dir, "001", 0, 1)

	c := &fakeCommitter{}
	s := New(dir, 10*time.Millisecond, c, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)
	pid, err := ReadPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	// batches dropped in later are picked up on the next tick
	writeBatch(t, dir, "002", 2, 3)
	require.Eventually(t, func() bool { return c.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	_, err = ReadPID()
	assert.Error(t, err)
}
