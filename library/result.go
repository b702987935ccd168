package library

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind tags the outcome of a manager operation.
type Kind int

const (
	KindOK Kind = iota
	KindValidationFailed
	KindStateConflict
	KindNotFound
	KindPersistenceFailure
	KindAuthFailure
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindValidationFailed:
		return "validation failed"
	case KindStateConflict:
		return "state conflict"
	case KindNotFound:
		return "not found"
	case KindPersistenceFailure:
		return "persistence failure"
	case KindAuthFailure:
		return "authentication failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// State conflict reasons.
const (
	ReasonNotAvailable   = "not available"
	ReasonNotOnLoan      = "not on loan"
	ReasonLoaned         = "loaned"
	ReasonHasActiveLoans = "has active loans"
)

const generalField = "general"

var (
	ErrValidation    = errors.New("library: validation failed")
	ErrStateConflict = errors.New("library: state conflict")
	ErrNotFound      = errors.New("library: record not found")
	ErrPersistence   = errors.New("library: persistence failure")
	ErrAuthFailed    = errors.New("library: invalid credentials")
)

// Result is the outcome of a manager operation. ID is set by operations that
// create a row on success. Fields is set for KindValidationFailed and carries
// a "general" message for KindPersistenceFailure. Reason is set for
// KindStateConflict and names the entity for KindNotFound.
type Result struct {
	Kind   Kind
	ID     int64
	Fields FieldErrors
	Reason string

	err error
}

func success(id int64) Result { return Result{Kind: KindOK, ID: id} }

func validationFailed(fields FieldErrors) Result {
	return Result{Kind: KindValidationFailed, Fields: fields}
}

func stateConflict(reason string) Result {
	return Result{Kind: KindStateConflict, Reason: reason}
}

func notFound(entity string) Result {
	return Result{Kind: KindNotFound, Reason: entity}
}

func persistenceFailure(err error) Result {
	return Result{
		Kind:   KindPersistenceFailure,
		Fields: FieldErrors{generalField: "the record could not be saved, try again later"},
		err:    err,
	}
}

func authFailure() Result { return Result{Kind: KindAuthFailure} }

// OK reports whether the operation succeeded.
func (r Result) OK() bool { return r.Kind == KindOK }

// Err converts a failed result into an error wrapping one of the package
// sentinels. It returns nil on success.
func (r Result) Err() error {
	var sentinel error
	switch r.Kind {
	case KindOK:
		return nil
	case KindValidationFailed:
		sentinel = ErrValidation
	case KindStateConflict:
		sentinel = ErrStateConflict
	case KindNotFound:
		sentinel = ErrNotFound
	case KindPersistenceFailure:
		sentinel = ErrPersistence
	case KindAuthFailure:
		sentinel = ErrAuthFailed
	default:
		return fmt.Errorf("library: unknown result kind %d", int(r.Kind))
	}
	return &ResultError{Result: r, sentinel: sentinel}
}

// ResultError is the error form of a failed Result.
type ResultError struct {
	Result   Result
	sentinel error
}

func (e *ResultError) Error() string {
	var detail string
	switch e.Result.Kind {
	case KindValidationFailed, KindPersistenceFailure:
		detail = e.Result.Fields.String()
	case KindStateConflict, KindNotFound:
		detail = e.Result.Reason
	}
	if detail == "" {
		return e.sentinel.Error()
	}
	return fmt.Sprintf("%s: %s", e.sentinel.Error(), detail)
}

// Is matches the package sentinel of the result kind.
func (e *ResultError) Is(target error) bool { return target == e.sentinel }

// Unwrap exposes the underlying store error of a persistence failure.
func (e *ResultError) Unwrap() error { return e.Result.err }

// String renders the errors sorted by field, e.g. "isbn: already registered".
func (fe FieldErrors) String() string {
	fields := make([]string, 0, len(fe))
	for field := range fe {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+fe[field])
	}
	return strings.Join(parts, "; ")
}
