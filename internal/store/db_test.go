package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestState(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	v, err := db.GetState(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, db.SetState(ctx, "k", "one"))
	require.NoError(t, db.SetState(ctx, "k", "two"))
	v, err = db.GetState(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "two", v)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := tempDB(t)
	require.NoError(t, db.migrate())
}
