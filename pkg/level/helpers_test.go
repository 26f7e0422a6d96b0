package level

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newUnopened creates a store in a temp dir without opening it.
func newUnopened(t *testing.T, mutate ...func(*Config)) *Level {
	t.Helper()
	config := DefaultConfig()
	config.Path = filepath.Join(t.TempDir(), "test.db")
	for _, m := range mutate {
		m(&config)
	}
	l, err := NewWithConfig(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

// newTestLevel creates and opens a store in a temp dir.
func newTestLevel(t *testing.T, mutate ...func(*Config)) *Level {
	t.Helper()
	l := newUnopened(t, mutate...)
	require.NoError(t, l.Open(context.Background()))
	return l
}

func putAll(t *testing.T, l *Level, kv ...string) {
	t.Helper()
	require.True(t, len(kv)%2 == 0, "putAll needs key/value pairs")
	ctx := context.Background()
	for i := 0; i < len(kv); i += 2 {
		require.NoError(t, l.Put(ctx, kv[i], kv[i+1]))
	}
}

func drainKeys(t *testing.T, l *Level, r Range) []string {
	t.Helper()
	it, err := l.Keys(context.Background(), r)
	require.NoError(t, err)
	defer it.Close() //nolint:errcheck
	keys, err := it.All()
	require.NoError(t, err)
	return keys
}

// rowCount counts rows of the backing table holding key.
func rowCount(t *testing.T, l *Level, key string) int {
	t.Helper()
	var n int
	err := l.gw.db.QueryRow(`SELECT count(*) FROM `+l.gw.table+` WHERE key = ?`, key).Scan(&n)
	require.NoError(t, err)
	return n
}
