package library

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinUsernameLength = 4
	MinPasswordLength = 6
	// bcrypt ignores everything past 72 bytes.
	MaxPasswordBytes = 72
)

var (
	EmailRX  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	isbn10RX = regexp.MustCompile(`^[0-9]{9}[0-9X]$`)
	isbn13RX = regexp.MustCompile(`^[0-9]{13}$`)
)

// FieldErrors maps a field name to a message meant for the user.
type FieldErrors map[string]string

// Validator collects field errors. Only the first message per field is kept.
type Validator struct {
	Errors FieldErrors
}

func NewValidator() *Validator {
	return &Validator{Errors: make(FieldErrors)}
}

// Valid reports whether no error has been recorded.
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

func (v *Validator) AddError(field, message string) {
	if _, exists := v.Errors[field]; !exists {
		v.Errors[field] = message
	}
}

// Check records message under field unless ok holds.
func (v *Validator) Check(ok bool, field, message string) {
	if !ok {
		v.AddError(field, message)
	}
}

// Merge copies errors from other that are not already present.
func (v *Validator) Merge(other FieldErrors) {
	for field, message := range other {
		v.AddError(field, message)
	}
}

func Matches(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}

// ValidISBN reports whether an already normalized ISBN has a valid shape:
// 13 digits, or 9 digits followed by a digit or the check character X.
func ValidISBN(isbn string) bool {
	switch len(isbn) {
	case 10:
		return isbn10RX.MatchString(isbn)
	case 13:
		return isbn13RX.MatchString(isbn)
	default:
		return false
	}
}

// ValidateBook runs the static checks for a book. isbn must be normalized.
func ValidateBook(v *Validator, title, isbn, author, category string) {
	v.Check(strings.TrimSpace(title) != "", "title", "must be provided")
	v.Check(strings.TrimSpace(author) != "", "author", "must be provided")
	v.Check(strings.TrimSpace(category) != "", "category", "must be provided")
	v.Check(isbn != "", "isbn", "must be provided")
	v.Check(ValidISBN(isbn), "isbn", "must have 10 or 13 characters (digits, optional trailing X for ISBN-10)")
}

// ValidateUsername checks a normalized username.
func ValidateUsername(v *Validator, username string) {
	v.Check(username != "", "username", "must be provided")
	v.Check(utf8.RuneCountInString(username) >= MinUsernameLength, "username", "must be at least 4 characters long")
}

// ValidateEmail checks a normalized email. An empty email is allowed.
func ValidateEmail(v *Validator, email string) {
	if email == "" {
		return
	}
	v.Check(Matches(email, EmailRX), "email", "must be a valid email address")
}

func ValidatePasswordPlaintext(v *Validator, password string) {
	v.Check(password != "", "password", "must be provided")
	v.Check(utf8.RuneCountInString(strings.TrimSpace(password)) >= MinPasswordLength, "password", "must be at least 6 characters long")
	v.Check(len(password) <= MaxPasswordBytes, "password", "must not be more than 72 bytes long")
}

// ValidateMember runs the static checks for a member. The password is only
// checked when checkPassword is set, which is the case on create.
func ValidateMember(v *Validator, username, email, password string, checkPassword bool) {
	ValidateUsername(v, username)
	ValidateEmail(v, email)
	if checkPassword || password != "" {
		ValidatePasswordPlaintext(v, password)
	}
}
