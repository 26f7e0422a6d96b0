package sqlevel

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/sqlevel/pkg/level"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer

	db, err := Open(ctx, filepath.Join(t.TempDir(), "test.db"),
		WithTable("kv"),
		WithIndexName("kv_idx"),
		WithSeparator("/"),
		WithBusyTimeout(time.Second),
		WithSynchronous("FULL"),
		WithLogger(level.NewLogger(&logs, level.LevelInfo)),
	)
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	assert.Equal(t, level.StatusOpen, db.Status())
	cfg := db.Config()
	assert.Equal(t, "kv", cfg.Table)
	assert.Equal(t, "kv_idx", cfg.IndexName)
	assert.Equal(t, time.Second, cfg.BusyTimeout)
	assert.Equal(t, "FULL", cfg.Synchronous)
	assert.Contains(t, logs.String(), "database opened")

	sub, err := db.Sublevel("users")
	require.NoError(t, err)
	assert.Equal(t, "/users/", sub.Prefix())

	require.NoError(t, sub.Put(ctx, "alice", "1"))
	_, err = db.Get(ctx, "alice")
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, ErrNotFound)

	it, err := db.Keys(ctx, Range{Gte: Bound("/users/")})
	require.NoError(t, err)
	defer it.Close() //nolint:errcheck
	keys, err := it.All()
	require.NoError(t, err)
	assert.Equal(t, []string{"/users/alice"}, keys)

	none, err := db.Keys(ctx, Range{Limit: Max(0)})
	require.NoError(t, err)
	defer none.Close() //nolint:errcheck
	keys, err = none.All()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestOpenInvalid(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, level.CodeInvalidValue, ErrorCode(err))

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "init", se.Op)

	_, err = Open(context.Background(), filepath.Join(t.TempDir(), "missing", "x.db"))
	require.Error(t, err)
}
