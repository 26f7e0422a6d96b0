package level

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/liliang-cn/sqlevel/internal/prefix"
)

// Level is an ordered key-value store backed by one SQLite table. The value
// returned by New is the root store; Sublevel returns namespaced views that
// share its connection and iterator registry.
//
// A new store starts in StatusOpening: operations issued before Open
// completes wait and then run in submission order.
type Level struct {
	root   *Level
	parent *Level
	name   string
	prefix string

	cfg Config
	gw  *gateway
	reg *registry
	log Logger
}

// New creates a store at path with the default configuration.
func New(path string) (*Level, error) {
	config := DefaultConfig()
	config.Path = path
	return NewWithConfig(config)
}

// NewWithConfig creates a store with custom configuration. The store is not
// opened; call Open.
func NewWithConfig(config Config) (*Level, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, wrapError("init", CodeInvalidValue, err)
	}

	log := config.Logger.With("db", uuid.NewString())
	l := &Level{
		cfg: config,
		gw:  newGateway(config, log),
		reg: newRegistry(),
		log: log,
	}
	l.root = l
	return l, nil
}

// Open opens the backing connection, creates the schema if needed and
// releases deferred operations. It is a no-op on an open store and may be
// called again after Close.
func (l *Level) Open(ctx context.Context) error {
	return toError("open", l.root.gw.open(ctx))
}

// Close closes every outstanding iterator of the store and its sublevels,
// then the backing connection. Closing a sublevel closes the root store.
func (l *Level) Close() error {
	root := l.root
	err := root.gw.close(func() {
		n, err := root.reg.closeAll()
		if err != nil {
			root.log.Warn("failed to close iterators", "error", err)
		}
		if n > 0 {
			root.log.Info("closed open iterators", "count", n)
		}
	})
	return toError("close", err)
}

// Status returns the lifecycle state of the store.
func (l *Level) Status() Status {
	return l.root.gw.current()
}

// Config returns the store configuration.
func (l *Level) Config() Config {
	return l.cfg
}

// Prefix returns the namespace applied to keys, empty for the root store.
func (l *Level) Prefix() string {
	return l.prefix
}

// Name returns the sublevel name, empty for the root store.
func (l *Level) Name() string {
	return l.name
}

// Parent returns the Level a sublevel was created from, nil for the root.
func (l *Level) Parent() *Level {
	return l.parent
}

// Root returns the store owning the connection.
func (l *Level) Root() *Level {
	return l.root
}

// Get returns the value stored under key, or an error satisfying
// IsNotFound when the key is absent.
func (l *Level) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := l.gw.do(ctx, func(ctx context.Context) error {
		var err error
		val, err = l.gw.get(ctx, prefix.Add(key, l.prefix))
		return err
	})
	if err != nil {
		return "", toError("get", err)
	}
	return val, nil
}

// GetMany looks up keys in one pass. The result has one slot per key, in
// input order, nil for keys that are absent.
func (l *Level) GetMany(ctx context.Context, keys []string) ([]*string, error) {
	if len(keys) == 0 {
		return []*string{}, nil
	}
	var vals []*string
	err := l.gw.do(ctx, func(ctx context.Context) error {
		var err error
		vals, err = l.gw.getMany(ctx, prefix.AddAll(keys, l.prefix))
		return err
	})
	if err != nil {
		return nil, toError("get_many", err)
	}
	return vals, nil
}

// Put stores value under key, overwriting any previous value.
func (l *Level) Put(ctx context.Context, key, value string) error {
	err := l.gw.do(ctx, func(ctx context.Context) error {
		return l.gw.put(ctx, prefix.Add(key, l.prefix), value)
	})
	return toError("put", err)
}

// Del removes key. Removing an absent key is not an error.
func (l *Level) Del(ctx context.Context, key string) error {
	err := l.gw.do(ctx, func(ctx context.Context) error {
		return l.gw.del(ctx, prefix.Add(key, l.prefix))
	})
	return toError("del", err)
}

// Clear deletes every key of the Level selected by r. Reverse and Limit
// choose which end of the range is deleted first.
func (l *Level) Clear(ctx context.Context, r Range) error {
	err := l.gw.do(ctx, func(ctx context.Context) error {
		n, err := l.gw.clear(ctx, r.clause(l.prefix))
		if err == nil {
			l.log.Debug("range cleared", "deleted", n)
		}
		return err
	})
	return toError("clear", err)
}

// Batch applies ops atomically, in order. An operation with a Sublevel set
// writes into that sublevel instead of l; it must belong to the same store.
func (l *Level) Batch(ctx context.Context, ops ...Operation) error {
	raw := make([]rawOp, len(ops))
	for i, op := range ops {
		target := l
		if op.Sublevel != nil {
			if op.Sublevel.root != l.root {
				return wrapError("batch", CodeInvalidValue, fmt.Errorf("operation %d: %w", i, ErrForeignSublevel))
			}
			target = op.Sublevel
		}
		switch op.Type {
		case OpPut:
			raw[i] = rawOp{key: prefix.Add(op.Key, target.prefix), value: op.Value}
		case OpDel:
			raw[i] = rawOp{del: true, key: prefix.Add(op.Key, target.prefix)}
		default:
			return wrapError("batch", CodeInvalidValue, fmt.Errorf("operation %d: unknown type %d", i, op.Type))
		}
	}

	err := l.gw.do(ctx, func(ctx context.Context) error {
		return l.gw.batch(ctx, raw)
	})
	return toError("batch", err)
}

// Iterator returns a lazy iterator of key/value entries over r. ctx bounds
// the lifetime of the underlying cursor.
func (l *Level) Iterator(ctx context.Context, r Range) (*Iterator[Entry], error) {
	return openIterator(ctx, l, r, func(e Entry) Entry { return e })
}

// Keys returns a lazy iterator of the keys in r.
func (l *Level) Keys(ctx context.Context, r Range) (*Iterator[string], error) {
	return openIterator(ctx, l, r, func(e Entry) string { return e.Key })
}

// Values returns a lazy iterator of the values in r, in key order.
func (l *Level) Values(ctx context.Context, r Range) (*Iterator[string], error) {
	return openIterator(ctx, l, r, func(e Entry) string { return e.Value })
}

// ChainedBatch returns a batch builder writing through l.
func (l *Level) ChainedBatch() *ChainedBatch {
	return &ChainedBatch{db: l}
}
