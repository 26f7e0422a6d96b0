package level

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func seedDigits(t *testing.T, l *Level) {
	t.Helper()
	putAll(t, l, "1", "a", "2", "b", "3", "c", "4", "d", "5", "e")
}

func TestIteratorRanges(t *testing.T) {
	tests := []struct {
		name string
		r    Range
		want []string
	}{
		{name: "all", r: All(), want: []string{"1", "2", "3", "4", "5"}},
		{name: "gte lt reverse limit", r: Range{Gte: Bound("2"), Lt: Bound("5"), Reverse: true, Limit: Max(2)}, want: []string{"4", "3"}},
		{name: "gt lte", r: Range{Gt: Bound("2"), Lte: Bound("4")}, want: []string{"3", "4"}},
		{name: "gte wins over gt", r: Range{Gt: Bound("3"), Gte: Bound("3")}, want: []string{"3", "4", "5"}},
		{name: "lte wins over lt", r: Range{Lt: Bound("3"), Lte: Bound("3")}, want: []string{"1", "2", "3"}},
		{name: "reverse", r: Range{Reverse: true}, want: []string{"5", "4", "3", "2", "1"}},
		{name: "limit", r: Range{Limit: Max(3)}, want: []string{"1", "2", "3"}},
		{name: "limit beyond size", r: Range{Limit: Max(50)}, want: []string{"1", "2", "3", "4", "5"}},
		{name: "zero limit", r: Range{Limit: Max(0)}, want: nil},
		{name: "negative limit", r: Range{Gte: Bound("4"), Limit: Max(-1)}, want: []string{"4", "5"}},
		{name: "empty", r: Range{Gt: Bound("5")}, want: nil},
		{name: "inverted bounds", r: Range{Gte: Bound("4"), Lte: Bound("2")}, want: nil},
		{name: "prefix", r: WithPrefix("3"), want: []string{"3"}},
	}

	l := newTestLevel(t)
	seedDigits(t, l)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, drainKeys(t, l, tt.r))
		})
	}
}

func TestIteratorFlavors(t *testing.T) {
	l := newTestLevel(t)
	ctx := context.Background()
	seedDigits(t, l)
	r := Range{Gte: Bound("2"), Lte: Bound("3")}

	entries, err := l.Iterator(ctx, r)
	require.NoError(t, err)
	defer entries.Close() //nolint:errcheck
	got, err := entries.All()
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Key: "2", Value: "b"}, {Key: "3", Value: "c"}}, got)

	values, err := l.Values(ctx, r)
	require.NoError(t, err)
	defer values.Close() //nolint:errcheck
	vals, err := values.All()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, vals)
}

func TestIteratorNext(t *testing.T) {
	l := newTestLevel(t)
	seedDigits(t, l)

	it, err := l.Iterator(context.Background(), Range{Gte: Bound("4")})
	require.NoError(t, err)
	defer it.Close() //nolint:errcheck

	e, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Entry{Key: "4", Value: "d"}, e)

	e, ok, err = it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "5", e.Key)

	for i := 0; i < 3; i++ {
		_, ok, err = it.Next()
		require.NoError(t, err, "end of stream is not an error")
		assert.False(t, ok)
	}
	assert.Equal(t, 2, it.Count())
	assert.Equal(t, 0, l.reg.len(), "exhausted iterator releases its handle")
}

func TestIteratorNextBatch(t *testing.T) {
	l := newTestLevel(t)
	seedDigits(t, l)

	t.Run("unbounded", func(t *testing.T) {
		it, err := l.Keys(context.Background(), All())
		require.NoError(t, err)
		defer it.Close() //nolint:errcheck

		var sizes []int
		for i := 0; i < 4; i++ {
			batch, err := it.NextBatch(2)
			require.NoError(t, err)
			sizes = append(sizes, len(batch))
		}
		assert.Equal(t, []int{2, 2, 1, 0}, sizes)
	})

	t.Run("limit caps batches", func(t *testing.T) {
		it, err := l.Keys(context.Background(), Range{Limit: Max(3)})
		require.NoError(t, err)
		defer it.Close() //nolint:errcheck
		assert.Equal(t, 3, it.Limit())

		first, err := it.NextBatch(2)
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2"}, first)

		second, err := it.NextBatch(2)
		require.NoError(t, err)
		assert.Equal(t, []string{"3"}, second)
		assert.Equal(t, 0, l.reg.len(), "spent limit releases the handle")

		third, err := it.NextBatch(2)
		require.NoError(t, err)
		assert.Empty(t, third)
		assert.Equal(t, 0, l.reg.len())
	})

	t.Run("size below one", func(t *testing.T) {
		it, err := l.Keys(context.Background(), All())
		require.NoError(t, err)
		defer it.Close() //nolint:errcheck

		batch, err := it.NextBatch(0)
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, batch)
	})
}

func TestIteratorClose(t *testing.T) {
	l := newTestLevel(t)
	seedDigits(t, l)

	it, err := l.Keys(context.Background(), All())
	require.NoError(t, err)
	assert.Equal(t, 1, l.reg.len())

	require.NoError(t, it.Close())
	require.NoError(t, it.Close(), "close is idempotent")
	assert.Equal(t, 0, l.reg.len())

	_, _, err = it.Next()
	require.ErrorIs(t, err, ErrIteratorClosed)
	assert.Equal(t, CodeIteratorNotOpen, Code(err))

	_, err = it.NextBatch(2)
	require.ErrorIs(t, err, ErrIteratorClosed)
	_, err = it.All()
	require.ErrorIs(t, err, ErrIteratorClosed)
}

func TestIteratorIDsAreUnique(t *testing.T) {
	l := newTestLevel(t)
	ctx := context.Background()

	a, err := l.Keys(ctx, All())
	require.NoError(t, err)
	defer a.Close() //nolint:errcheck
	b, err := l.Values(ctx, All())
	require.NoError(t, err)
	defer b.Close() //nolint:errcheck

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, l.reg.len())
}

func TestStoreCloseClosesIterators(t *testing.T) {
	l := newTestLevel(t)
	seedDigits(t, l)
	ctx := context.Background()

	sub, err := l.Sublevel("s")
	require.NoError(t, err)

	fresh, err := l.Keys(ctx, All())
	require.NoError(t, err)
	started, err := l.Iterator(ctx, All())
	require.NoError(t, err)
	_, ok, err := started.Next()
	require.NoError(t, err)
	require.True(t, ok)
	nested, err := sub.Values(ctx, All())
	require.NoError(t, err)
	assert.Equal(t, 3, l.reg.len())

	require.NoError(t, l.Close())
	assert.Equal(t, 0, l.reg.len())

	_, _, err = fresh.Next()
	assert.ErrorIs(t, err, ErrIteratorClosed)
	_, _, err = started.Next()
	assert.ErrorIs(t, err, ErrIteratorClosed)
	_, _, err = nested.Next()
	assert.ErrorIs(t, err, ErrIteratorClosed)
	assert.NoError(t, fresh.Close())
}

func TestIteratorLimitReleasesHandle(t *testing.T) {
	l := newTestLevel(t)
	seedDigits(t, l)

	it, err := l.Keys(context.Background(), Range{Limit: Max(2)})
	require.NoError(t, err)
	defer it.Close() //nolint:errcheck

	for _, want := range []string{"1", "2"} {
		key, ok, err := it.Next()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, key)
	}
	assert.Equal(t, 0, l.reg.len(), "last record within the limit releases the handle")

	_, ok, err := it.Next()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, it.Count())
}

func TestIteratorSnapshotIsolation(t *testing.T) {
	ctx := context.Background()

	t.Run("mid scan", func(t *testing.T) {
		l := newTestLevel(t)
		seedDigits(t, l)

		before, err := l.Iterator(ctx, All())
		require.NoError(t, err)
		defer before.Close() //nolint:errcheck

		// Pull one row so the snapshot is exercised mid-scan.
		first, ok, err := before.Next()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "1", first.Key)

		require.NoError(t, l.Put(ctx, "6", "f"))
		require.NoError(t, l.Put(ctx, "3", "changed"))
		require.NoError(t, l.Del(ctx, "5"))

		rest, err := before.All()
		require.NoError(t, err)
		assert.Equal(t, []Entry{
			{Key: "2", Value: "b"},
			{Key: "3", Value: "c"},
			{Key: "4", Value: "d"},
			{Key: "5", Value: "e"},
		}, rest)

		assert.Equal(t, []string{"1", "2", "3", "4", "6"}, drainKeys(t, l, All()))
	})

	t.Run("two iterators", func(t *testing.T) {
		l := newTestLevel(t)
		seedDigits(t, l)

		a, err := l.Keys(ctx, All())
		require.NoError(t, err)
		defer a.Close() //nolint:errcheck
		b, err := l.Keys(ctx, Range{Reverse: true})
		require.NoError(t, err)
		defer b.Close() //nolint:errcheck
		assert.Equal(t, 2, l.reg.len())

		require.NoError(t, l.Put(ctx, "0", "new"))
		require.NoError(t, l.Put(ctx, "6", "new"))

		gotA, err := a.All()
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2", "3", "4", "5"}, gotA)
		gotB, err := b.All()
		require.NoError(t, err)
		assert.Equal(t, []string{"5", "4", "3", "2", "1"}, gotB)

		assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6"}, drainKeys(t, l, All()))
	})
}

func TestConcurrentScansSeeCommittedBatches(t *testing.T) {
	l := newTestLevel(t)
	ctx := context.Background()

	const rounds = 40
	g, gctx := errgroup.WithContext(ctx)

	// Every batch writes a pair, so a consistent snapshot holds an even
	// number of keys.
	g.Go(func() error {
		for i := 0; i < rounds; i++ {
			err := l.Batch(gctx,
				PutOp(fmt.Sprintf("a%03d", i), "x"),
				PutOp(fmt.Sprintf("b%03d", i), "y"),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})

	for r := 0; r < 4; r++ {
		g.Go(func() error {
			for i := 0; i < rounds/4; i++ {
				it, err := l.Keys(gctx, All())
				if err != nil {
					return err
				}
				keys, err := it.All()
				_ = it.Close()
				if err != nil {
					return err
				}
				if len(keys)%2 != 0 {
					return fmt.Errorf("scan saw a partial batch: %d keys", len(keys))
				}
			}
			return nil
		})
	}

	require.NoError(t, g.Wait())
	assert.Len(t, drainKeys(t, l, All()), rounds*2)
	assert.Equal(t, 0, l.reg.len())
}

func TestIteratorContextCancel(t *testing.T) {
	l := newTestLevel(t)
	seedDigits(t, l)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Keys(ctx, All())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, l.reg.len())
}
