package sqlevel

import "github.com/liliang-cn/sqlevel/pkg/level"

// Common errors
var (
	// ErrNotFound is returned by Get when the key is absent
	ErrNotFound = level.ErrNotFound

	// ErrNotOpen is returned when using a store that is not open
	ErrNotOpen = level.ErrNotOpen

	// ErrIteratorClosed is returned when pulling from a closed iterator
	ErrIteratorClosed = level.ErrIteratorClosed

	// ErrBatchClosed is returned when reusing a written or closed batch
	ErrBatchClosed = level.ErrBatchClosed

	// ErrInvalidSublevel is returned for invalid sublevel names
	ErrInvalidSublevel = level.ErrInvalidSublevel

	// ErrForeignSublevel is returned when a batch targets another store
	ErrForeignSublevel = level.ErrForeignSublevel

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = level.ErrInvalidConfig
)

// StoreError is the error type returned by store operations. Its Code is one
// of the level.Code* constants.
type StoreError = level.Error

// IsNotFound reports whether err means the requested key is absent.
func IsNotFound(err error) bool {
	return level.IsNotFound(err)
}

// ErrorCode returns the code carried by err, or "" if it has none.
func ErrorCode(err error) string {
	return level.Code(err)
}
