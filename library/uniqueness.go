package library

import (
	"context"
	"errors"
	"fmt"
)

// Unique key fields.
const (
	FieldISBN     = "isbn"
	FieldUsername = "username"
	FieldEmail    = "email"
)

type uniqueKey struct {
	table   string
	message string
}

var uniqueKeys = map[string]uniqueKey{
	FieldISBN:     {table: tableBooks, message: "this ISBN is already registered"},
	FieldUsername: {table: tableUsers, message: "this username is already taken"},
	FieldEmail:    {table: tableUsers, message: "this email is already registered"},
}

// UniquenessValidator checks candidate keys against active records.
type UniquenessValidator struct {
	port Port
}

func NewUniquenessValidator(port Port) *UniquenessValidator {
	return &UniquenessValidator{port: port}
}

// CheckUnique looks for an active record other than excludeID holding value
// in field. Pass excludeID 0 on create. An empty map means no conflict.
func (u *UniquenessValidator) CheckUnique(ctx context.Context, field, value string, excludeID int64) (FieldErrors, error) {
	return checkUnique(ctx, u.port, field, value, excludeID)
}

func checkUnique(ctx context.Context, q Querier, field, value string, excludeID int64) (FieldErrors, error) {
	key, known := uniqueKeys[field]
	if !known {
		return nil, fmt.Errorf("library: %q is not a unique field", field)
	}

	errs := FieldErrors{}
	if value == "" {
		return errs, nil
	}

	var id int64
	found, err := q.SelectOne(ctx, &id, selectActiveIDByKey(key.table, field, value, excludeID))
	if err != nil {
		return nil, err
	}
	if found {
		errs[field] = key.message
	}
	return errs, nil
}

// duplicateFieldErrors maps a unique-index violation raised by the store to
// the field error the pre-check would have produced.
func duplicateFieldErrors(err error) (FieldErrors, bool) {
	var dup *DuplicateKeyError
	if !errors.As(err, &dup) {
		return nil, false
	}
	key, known := uniqueKeys[dup.Column]
	if !known {
		return nil, false
	}
	return FieldErrors{dup.Column: key.message}, true
}
