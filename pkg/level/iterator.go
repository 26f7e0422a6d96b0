package level

import (
	"context"
	"sync"

	"github.com/liliang-cn/sqlevel/internal/prefix"
)

// Entry is a key/value pair yielded by an iterator.
type Entry struct {
	Key   string
	Value string
}

type iterState int

const (
	iterActive iterState = iota
	iterExhausted
	iterClosed
)

// Iterator is a lazy, pull-based scan over a key range. It reads through
// its own read-only connection and sees the store as it was when the
// iterator was created.
//
// The three flavors returned by Level.Iterator, Level.Keys and Level.Values
// differ only in what they yield. An Iterator is safe for concurrent use;
// callers must Close it, although closing the store closes it too.
type Iterator[T any] struct {
	mu    sync.Mutex
	id    uint64
	reg   *registry
	log   Logger
	ns    string // namespace prefix stripped from every key
	limit int    // negative for unbounded
	count int
	state iterState
	cur   *cursor
	yield func(Entry) T
}

func newIterator[T any](l *Level, limit int, yield func(Entry) T) *Iterator[T] {
	return &Iterator[T]{
		reg:   l.reg,
		log:   l.log,
		ns:    l.prefix,
		limit: limit,
		yield: yield,
	}
}

// ID returns the store-wide id of the iterator.
func (it *Iterator[T]) ID() uint64 {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.id
}

// Count returns how many records the iterator has yielded.
func (it *Iterator[T]) Count() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.count
}

// Limit returns the configured row cap, negative when unbounded.
func (it *Iterator[T]) Limit() int {
	return it.limit
}

// Next yields one record. It reports false once the range or the limit is
// exhausted.
func (it *Iterator[T]) Next() (T, bool, error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	var zero T
	e, ok, err := it.step()
	if err != nil || !ok {
		return zero, false, toError("iterator.next", err)
	}
	return it.yield(e), true, nil
}

// NextBatch yields up to size records. It returns fewer only when the
// iterator is exhausted. A size below one is treated as one.
func (it *Iterator[T]) NextBatch(size int) ([]T, error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.state == iterClosed {
		return nil, toError("iterator.next_batch", ErrIteratorClosed)
	}
	if size < 1 {
		size = 1
	}
	if rem := it.remaining(); rem >= 0 && rem < size {
		size = rem
	}
	if size == 0 {
		// limit reached: release the cursor now
		_, _, err := it.step()
		return []T{}, toError("iterator.next_batch", err)
	}
	out := make([]T, 0, size)
	for len(out) < size {
		e, ok, err := it.step()
		if err != nil {
			return out, toError("iterator.next_batch", err)
		}
		if !ok {
			break
		}
		out = append(out, it.yield(e))
	}
	return out, nil
}

// All yields every remaining record within the limit and releases the
// iterator's connection.
func (it *Iterator[T]) All() ([]T, error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.state == iterClosed {
		return nil, toError("iterator.all", ErrIteratorClosed)
	}
	var out []T
	for {
		e, ok, err := it.step()
		if err != nil {
			return out, toError("iterator.all", err)
		}
		if !ok {
			return out, nil
		}
		out = append(out, it.yield(e))
	}
}

// Close releases the cursor and its connection. It is idempotent.
func (it *Iterator[T]) Close() error {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.state == iterClosed {
		return nil
	}
	err := it.release()
	it.state = iterClosed
	if err != nil {
		return toError("iterator.close", err)
	}
	return nil
}

// remaining is the yield budget left, negative when unbounded.
func (it *Iterator[T]) remaining() int {
	if it.limit < 0 {
		return -1
	}
	return max(it.limit-it.count, 0)
}

// step advances the cursor by one row. Callers hold mu.
func (it *Iterator[T]) step() (Entry, bool, error) {
	switch it.state {
	case iterClosed:
		return Entry{}, false, ErrIteratorClosed
	case iterExhausted:
		return Entry{}, false, nil
	}

	if it.remaining() == 0 {
		return Entry{}, false, it.finish(nil)
	}

	rows := it.cur.rows
	if !rows.Next() {
		return Entry{}, false, it.finish(rows.Err())
	}

	var key, val string
	if err := rows.Scan(&key, &val); err != nil {
		return Entry{}, false, it.finish(err)
	}
	it.count++
	e := Entry{Key: prefix.Remove(key, it.ns), Value: val}
	if it.remaining() == 0 {
		_ = it.finish(nil)
	}
	return e, true, nil
}

// finish releases the handle on exhaustion or failure. The iterator then
// only reports end-of-stream.
func (it *Iterator[T]) finish(cause error) error {
	err := it.release()
	it.state = iterExhausted
	if err != nil {
		it.log.Warn("failed to release iterator", "id", it.id, "error", err)
	}
	return cause
}

func (it *Iterator[T]) release() error {
	if it.cur == nil {
		return nil
	}
	err := it.cur.release()
	it.cur = nil
	it.reg.remove(it.id)
	return err
}

// open runs the range query for l and registers the iterator. It runs
// inside the gateway so it is deferred while the store opens.
func (it *Iterator[T]) open(ctx context.Context, l *Level, r Range) error {
	return l.gw.do(ctx, func(ctx context.Context) error {
		cur, err := l.gw.openCursor(ctx, r.clause(l.prefix))
		if err != nil {
			return err
		}
		it.mu.Lock()
		it.cur = cur
		it.id = it.reg.register(it)
		it.mu.Unlock()
		it.log.Debug("iterator opened", "id", it.id)
		return nil
	})
}

func openIterator[T any](ctx context.Context, l *Level, r Range, yield func(Entry) T) (*Iterator[T], error) {
	it := newIterator(l, r.limit(), yield)
	if err := it.open(ctx, l, r); err != nil {
		return nil, toError("iterator", err)
	}
	return it, nil
}
