package sqlevel

import (
	"context"
	"fmt"
	"time"

	"github.com/liliang-cn/sqlevel/pkg/level"
)

// Aliases for the types most callers touch.
type (
	DB        = level.Level
	Config    = level.Config
	Range     = level.Range
	Entry     = level.Entry
	Operation = level.Operation
	Logger    = level.Logger
)

// Option is a functional option for configuring the store.
type Option func(*level.Config)

// WithTable sets the backing table name.
func WithTable(name string) Option {
	return func(c *level.Config) {
		c.Table = name
	}
}

// WithIndexName sets the name of the unique key index.
func WithIndexName(name string) Option {
	return func(c *level.Config) {
		c.IndexName = name
	}
}

// WithSeparator sets the default sublevel separator.
func WithSeparator(sep string) Option {
	return func(c *level.Config) {
		c.Separator = sep
	}
}

// WithLogger sets the logger.
func WithLogger(l level.Logger) Option {
	return func(c *level.Config) {
		c.Logger = l
	}
}

// WithBusyTimeout sets how long a connection waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *level.Config) {
		c.BusyTimeout = d
	}
}

// WithSynchronous sets the synchronous pragma, e.g. "FULL" or "NORMAL".
func WithSynchronous(mode string) Option {
	return func(c *level.Config) {
		c.Synchronous = mode
	}
}

// Open creates the store at path and opens it.
func Open(ctx context.Context, path string, opts ...Option) (*DB, error) {
	config := level.DefaultConfig()
	config.Path = path
	for _, opt := range opts {
		opt(&config)
	}

	db, err := level.NewWithConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := db.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return db, nil
}

// Bound returns a pointer to key, for use as a Range bound.
func Bound(key string) *string {
	return level.Bound(key)
}

// Max returns a pointer to n, for use as a Range limit.
func Max(n int) *int {
	return level.Max(n)
}
