package library

import (
	"context"
	"errors"
)

// ErrDuplicateKey is wrapped by port implementations when a statement is
// rejected by a unique index. Column names the offending column when known.
var ErrDuplicateKey = errors.New("library: duplicate key")

// DuplicateKeyError reports a unique-index violation on Column.
type DuplicateKeyError struct {
	Column string
	Err    error
}

func (e *DuplicateKeyError) Error() string {
	return "duplicate key on " + e.Column + ": " + e.Err.Error()
}

func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

// Statement is a parameterized statement. Name identifies it in logs and
// wrapped errors; Args are never logged.
type Statement struct {
	Name string
	SQL  string
	Args []any

	buildErr error
}

// Err returns the error raised while rendering the statement, if any.
func (s Statement) Err() error { return s.buildErr }

// Querier executes statements against the store. A statement that matches
// zero rows is not a failure: Exec reports the affected row count and callers
// decide whether zero is meaningful.
type Querier interface {
	// Insert executes an insert and returns the new row id.
	Insert(ctx context.Context, stmt Statement) (int64, error)
	// Exec executes an update and returns the number of affected rows.
	Exec(ctx context.Context, stmt Statement) (int64, error)
	// SelectOne scans the first row into dest. It returns false when the
	// query yields no rows.
	SelectOne(ctx context.Context, dest any, stmt Statement) (bool, error)
	// SelectAll scans all rows into dest, which must point to a slice.
	SelectAll(ctx context.Context, dest any, stmt Statement) error
}

// Port is the persistence port consumed by every manager.
type Port interface {
	Querier
	// InTx runs fn in one transaction. A nil return commits, anything else
	// rolls back and is returned unchanged.
	InTx(ctx context.Context, fn func(q Querier) error) error
}
