package level

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const driverName = "sqlite"

// Config holds the store location, schema names and SQLite tuning.
type Config struct {
	Path        string        `json:"path"`        // Database file path
	Table       string        `json:"table"`       // Backing table name
	IndexName   string        `json:"indexName"`   // Unique index on the key column
	Separator   string        `json:"separator"`   // Wraps sublevel names in key prefixes
	JournalMode string        `json:"journalMode"` // Only WAL is accepted
	Synchronous string        `json:"synchronous"`
	PageSize    int           `json:"pageSize"`  // Bytes, applied to new databases only
	CacheSize   int           `json:"cacheSize"` // Pages when positive, KiB when negative
	BusyTimeout time.Duration `json:"busyTimeout"`
	Logger      Logger        `json:"-"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Table:       "Data",
		IndexName:   "unique_sub_key_idx",
		Separator:   "!",
		JournalMode: "WAL",
		Synchronous: "NORMAL",
		PageSize:    4096,
		CacheSize:   5000,
		BusyTimeout: 5 * time.Second,
		Logger:      NopLogger(),
	}
}

// Validate checks that the configuration can open a store.
func (c Config) Validate() error {
	switch {
	case c.Path == "":
		return fmt.Errorf("%w: database path cannot be empty", ErrInvalidConfig)
	case c.Path == ":memory:" || strings.Contains(c.Path, "mode=memory"):
		return fmt.Errorf("%w: in-memory databases cannot serve independent iterator connections", ErrInvalidConfig)
	case c.Table == "":
		return fmt.Errorf("%w: table name cannot be empty", ErrInvalidConfig)
	case c.IndexName == "":
		return fmt.Errorf("%w: index name cannot be empty", ErrInvalidConfig)
	case c.Separator == "":
		return fmt.Errorf("%w: sublevel separator cannot be empty", ErrInvalidConfig)
	case !strings.EqualFold(c.JournalMode, "WAL"):
		return fmt.Errorf("%w: journal mode %q: snapshot iterators require WAL", ErrInvalidConfig, c.JournalMode)
	case c.BusyTimeout < 0:
		return fmt.Errorf("%w: busy timeout must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Table == "" {
		c.Table = d.Table
	}
	if c.IndexName == "" {
		c.IndexName = d.IndexName
	}
	if c.Separator == "" {
		c.Separator = d.Separator
	}
	if c.JournalMode == "" {
		c.JournalMode = d.JournalMode
	}
	if c.Synchronous == "" {
		c.Synchronous = d.Synchronous
	}
	if c.PageSize == 0 {
		c.PageSize = d.PageSize
	}
	if c.CacheSize == 0 {
		c.CacheSize = d.CacheSize
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = d.BusyTimeout
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	return c
}

// dsn builds a modernc.org/sqlite URI. Pragmas run on every new connection,
// in order; page_size must precede journal_mode to take effect on a fresh
// file.
func (c Config) dsn(readOnly bool) string {
	params := []string{pragma("busy_timeout", strconv.FormatInt(c.BusyTimeout.Milliseconds(), 10))}
	if readOnly {
		params = append(params, "mode=ro")
	} else {
		params = append(params,
			pragma("page_size", strconv.Itoa(c.PageSize)),
			pragma("journal_mode", c.JournalMode),
			pragma("synchronous", c.Synchronous),
			pragma("cache_size", strconv.Itoa(c.CacheSize)),
		)
	}
	return "file:" + escapePath(c.Path) + "?" + strings.Join(params, "&")
}

func pragma(name, value string) string {
	return "_pragma=" + name + "(" + value + ")"
}

// escapePath escapes the characters SQLite treats specially in URI
// filenames.
func escapePath(p string) string {
	return strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23").Replace(p)
}
