package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckUnique(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	bookID := mustCreateBook(t, mgr, "1984", "9780451524935")
	memberID := mustCreateMember(t, mgr, "alice")
	deletedID := mustCreateMember(t, mgr, "gone")
	require.True(t, mgr.Members().SoftDelete(ctx, deletedID).OK())

	tests := []struct {
		name      string
		field     string
		value     string
		excludeID int64
		conflict  bool
	}{
		{"taken isbn", FieldISBN, "9780451524935", 0, true},
		{"own isbn on update", FieldISBN, "9780451524935", bookID, false},
		{"free isbn", FieldISBN, "9780441013593", 0, false},
		{"taken username", FieldUsername, "alice", 0, true},
		{"own username on update", FieldUsername, "alice", memberID, false},
		{"username of deleted member", FieldUsername, "gone", 0, false},
		{"empty email is never checked", FieldEmail, "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs, err := mgr.Uniqueness().CheckUnique(ctx, tt.field, tt.value, tt.excludeID)
			require.NoError(t, err)
			if tt.conflict {
				assert.Contains(t, errs, tt.field)
			} else {
				assert.Empty(t, errs)
			}
		})
	}

	_, err := mgr.Uniqueness().CheckUnique(ctx, "title", "1984", 0)
	assert.Error(t, err, "only key fields can be checked")
}

func TestDuplicateFieldErrors(t *testing.T) {
	fields, ok := duplicateFieldErrors(&DuplicateKeyError{Column: colUsername, Err: assert.AnError})
	require.True(t, ok)
	assert.Equal(t, FieldErrors{FieldUsername: uniqueKeys[FieldUsername].message}, fields)

	_, ok = duplicateFieldErrors(&DuplicateKeyError{Column: colBookID, Err: assert.AnError})
	assert.False(t, ok, "open-loan violations are not field errors")

	_, ok = duplicateFieldErrors(assert.AnError)
	assert.False(t, ok)
}
