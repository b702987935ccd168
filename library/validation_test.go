package library

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeISBN(t *testing.T) {
	tests := map[string]string{
		"978-0-45-152493-5": "9780451524935",
		" 978 0451 524935 ": "9780451524935",
		"0-8044-2957-x":     "080442957X",
		"978\t0451\n524935": "9780451524935",
		"":                  "",
	}
	for raw, want := range tests {
		assert.Equal(t, want, NormalizeISBN(raw), "NormalizeISBN(%q)", raw)
	}
}

func TestNormalizeIdentity(t *testing.T) {
	assert.Equal(t, "Alice", NormalizeUsername("  Alice\t"))
	assert.Equal(t, "alice@example.com", NormalizeEmail(" Alice@Example.COM "))
}

func TestValidISBN(t *testing.T) {
	tests := []struct {
		isbn string
		want bool
	}{
		{"9780451524935", true},
		{"0804429570", true},
		{"080442957X", true},
		{"08044295X0", false},
		{"978045152493", false},
		{"97804515249350", false},
		{"978045152493X", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidISBN(tt.isbn), "ValidISBN(%q)", tt.isbn)
	}
}

func TestValidateBook(t *testing.T) {
	v := NewValidator()
	ValidateBook(v, "1984", "9780451524935", "Orwell", "Dystopia")
	assert.True(t, v.Valid())

	v = NewValidator()
	ValidateBook(v, "", "", " ", "")
	assert.False(t, v.Valid())
	assert.Len(t, v.Errors, 4)
	assert.Equal(t, "must be provided", v.Errors["isbn"], "only the first isbn message is kept")
}

func TestValidateMember(t *testing.T) {
	tests := []struct {
		name          string
		username      string
		email         string
		password      string
		checkPassword bool
		wantFields    []string
	}{
		{"valid", "alice", "alice@example.com", "secret1", true, nil},
		{"no email", "alice", "", "secret1", true, nil},
		{"update without password", "alice", "", "", false, nil},
		{"update with short password", "alice", "", "123", false, []string{"password"}},
		{"create without password", "alice", "", "", true, []string{"password"}},
		{"short username", "ali", "", "secret1", true, []string{"username"}},
		{"multibyte username", "jürg", "", "secret1", true, nil},
		{"bad email", "alice", "not-an-email", "secret1", true, []string{"email"}},
		{"password at bcrypt limit", "alice", "", strings.Repeat("x", MaxPasswordBytes), true, nil},
		{"everything wrong", "", "x@y", "", true, []string{"username", "email", "password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			ValidateMember(v, tt.username, tt.email, tt.password, tt.checkPassword)
			assert.Len(t, v.Errors, len(tt.wantFields), "errors: %v", v.Errors)
			for _, field := range tt.wantFields {
				assert.Contains(t, v.Errors, field)
			}
		})
	}
}

func TestValidatorMerge(t *testing.T) {
	v := NewValidator()
	v.AddError("isbn", "first")
	v.Merge(FieldErrors{"isbn": "second", "title": "missing"})

	assert.Equal(t, FieldErrors{"isbn": "first", "title": "missing"}, v.Errors)
}

func TestResultErr(t *testing.T) {
	assert.NoError(t, success(1).Err())

	err := validationFailed(FieldErrors{"title": "must be provided", "isbn": "taken"}).Err()
	assert.ErrorIs(t, err, ErrValidation)
	assert.EqualError(t, err, "library: validation failed: isbn: taken; title: must be provided")

	err = stateConflict(ReasonLoaned).Err()
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "library: state conflict: loaned")

	assert.EqualError(t, notFound(entityBook).Err(), "library: record not found: book")
	assert.EqualError(t, authFailure().Err(), "library: invalid credentials")

	var resultErr *ResultError
	assert.ErrorAs(t, persistenceFailure(assert.AnError).Err(), &resultErr)
	assert.Equal(t, KindPersistenceFailure, resultErr.Result.Kind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "state conflict", KindStateConflict.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
