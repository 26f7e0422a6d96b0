package level

import (
	"context"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Error codes attached to every *Error.
const (
	CodeNotFound        = "LEVEL_NOT_FOUND"
	CodeNotOpen         = "LEVEL_NOT_OPEN"
	CodeIteratorNotOpen = "LEVEL_ITERATOR_NOT_OPEN"
	CodeBatchNotOpen    = "LEVEL_BATCH_NOT_OPEN"
	CodeInvalidValue    = "LEVEL_INVALID_VALUE"
	CodeConstraint      = "LEVEL_CONSTRAINT"
	CodeDatabase        = "LEVEL_DATABASE_ERROR"
)

// Common errors
var (
	// ErrNotFound is returned by Get when the key is absent. It is a normal
	// negative result.
	ErrNotFound = errors.New("key was not found")

	// ErrNotOpen is returned for operations issued before a successful open
	// or after close.
	ErrNotOpen = errors.New("database is not open")

	// ErrIteratorClosed is returned when pulling from a closed iterator.
	ErrIteratorClosed = errors.New("iterator is closed")

	// ErrBatchClosed is returned when a chained batch is used after it was
	// written or closed.
	ErrBatchClosed = errors.New("batch is already written or closed")

	// ErrInvalidSublevel is returned for empty sublevel names or names
	// containing the separator.
	ErrInvalidSublevel = errors.New("invalid sublevel name")

	// ErrForeignSublevel is returned when a batch operation targets a
	// sublevel of another store.
	ErrForeignSublevel = errors.New("sublevel belongs to another database")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")
)

var sentinelCodes = []struct {
	err  error
	code string
}{
	{ErrNotFound, CodeNotFound},
	{ErrNotOpen, CodeNotOpen},
	{ErrIteratorClosed, CodeIteratorNotOpen},
	{ErrBatchClosed, CodeBatchNotOpen},
	{ErrInvalidSublevel, CodeInvalidValue},
	{ErrForeignSublevel, CodeInvalidValue},
	{ErrInvalidConfig, CodeInvalidValue},
}

// Error wraps errors with the operation that failed and a stable code.
type Error struct {
	Op   string // Operation name
	Code string // One of the Code* constants, empty for context errors
	Err  error  // Underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("sqlevel: %v", e.Err)
	}
	return fmt.Sprintf("sqlevel: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the code of the first *Error in err's chain, or "".
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether err means the requested key is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// wrapError wraps an error with operation context
func wrapError(op, code string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Code: code, Err: err}
}

// toError classifies err and wraps it for op. Errors already wrapped pass
// through untouched.
func toError(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return wrapError(op, s.code, err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return wrapError(op, "", err)
	}
	return wrapError(op, engineCode(err), err)
}

// engineCode maps a driver error to a code. Constraint failures (unique
// index, CHECK, trigger RAISE) are reported apart from other engine errors.
func engineCode(err error) string {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return CodeConstraint
	}
	return CodeDatabase
}
