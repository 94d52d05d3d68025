package graph

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/schema"
)

// Sentinel errors for graph operations.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrNodeNotFound indicates that the requested node does not exist in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrMissingField indicates an ingestion record lacks a required field.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidArgument indicates an argument outside its accepted range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("graph store closed")
)

// Error kinds categorize engine-level failures.
const (
	// KindEngine is any engine failure not covered by a narrower kind.
	KindEngine = "engine"

	// KindQuery covers malformed queries: syntax errors, unknown tables or columns.
	KindQuery = "query"

	// KindKeyCollision is a create against an existing primary or unique key.
	KindKeyCollision = "key_collision"

	// KindIO covers disk, file and open failures.
	KindIO = "io"
)

// StoreError is an engine-level failure. It wraps the driver error with the operation
// that failed and the category of failure.
//
// StoreError supports error unwrapping, making it compatible with errors.Is() and
// errors.As().
type StoreError struct {
	// Op is the store operation that failed (e.g., "AddTranscript").
	Op string

	// Kind categorizes the error (e.g., KindQuery, KindKeyCollision).
	Kind string

	// Err is the underlying error.
	Err error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("graph: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("graph: %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches another StoreError by Kind (and Op when the target sets one), and
// otherwise delegates to the wrapped error.
func (e *StoreError) Is(target error) bool {
	if t, ok := target.(*StoreError); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}
	return errors.Is(e.Err, target)
}

// KeyCollisionError reports a create against an existing key. It is always delivered
// wrapped in a StoreError of kind KindKeyCollision.
type KeyCollisionError struct {
	Label schema.NodeLabel
	Key   string
	Err   error
}

func (e *KeyCollisionError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Label, e.Key)
}

func (e *KeyCollisionError) Unwrap() error {
	return e.Err
}

// IsKeyCollision reports whether err is, or wraps, a key collision.
func IsKeyCollision(err error) bool {
	var se *StoreError
	if errors.As(err, &se) && se.Kind == KindKeyCollision {
		return true
	}
	var kc *KeyCollisionError
	return errors.As(err, &kc)
}

// IsNotFound reports whether err is, or wraps, ErrNodeNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

func missingField(record, field string) error {
	return fmt.Errorf("%s: %w: %s", record, ErrMissingField, field)
}

// wrapErr converts a driver error into a StoreError. Errors that are already
// StoreErrors, validation errors and not-found errors pass through unchanged.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) || errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrNodeNotFound) || errors.Is(err, ErrInvalidArgument) {
		return err
	}
	return &StoreError{Op: op, Kind: classify(err), Err: err}
}

// wrapInsertErr is wrapErr for node inserts: key collisions carry the node identity.
func wrapInsertErr(op string, label schema.NodeLabel, key string, err error) error {
	if err == nil {
		return nil
	}
	if classify(err) == KindKeyCollision {
		return &StoreError{
			Op:   op,
			Kind: KindKeyCollision,
			Err:  &KeyCollisionError{Label: label, Key: key, Err: err},
		}
	}
	return wrapErr(op, err)
}

func classify(err error) string {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return KindEngine
	}

	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return KindKeyCollision
	}

	switch se.Code() & 0xff {
	case sqlite3.SQLITE_ERROR:
		return KindQuery
	case sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_FULL,
		sqlite3.SQLITE_READONLY, sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
		return KindIO
	default:
		return KindEngine
	}
}
