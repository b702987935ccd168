package main

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-lending/library"
)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LIBRARY_DATABASE_PATH", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("LIBRARY_SECURITY_BCRYPT_COST", "4")
	t.Setenv("LIBRARY_LOG_LEVEL", "error")
}

// run executes one CLI invocation with stdin as piped input.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := &app{in: bufio.NewReader(strings.NewReader(stdin)), out: &out}
	err := a.execute(context.Background(), args)
	return out.String(), err
}

func TestCLILendingFlow(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "book", "add", "--title", "1984", "--isbn", "978-0-45-152493-5", "--author", "Orwell", "--category", "Dystopia")
	require.NoError(t, err)
	assert.Contains(t, out, "Added book '1984' with ID 1")

	out, err = run(t, "wonderland\nwonderland\n", "member", "add", "--username", "alice", "--email", "alice@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Added member 'alice' with ID 1")

	_, err = run(t, "wrong-password\n", "lend", "1", "alice")
	assert.ErrorIs(t, err, library.ErrAuthFailed)

	out, err = run(t, "wonderland\n", "lend", "1", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Book 1 lent to alice")

	_, err = run(t, "", "book", "delete", "1")
	assert.ErrorIs(t, err, library.ErrStateConflict)

	out, err = run(t, "", "--json", "loans")
	require.NoError(t, err)
	var loans []library.ActiveLoan
	require.NoError(t, json.Unmarshal([]byte(out), &loans))
	require.Len(t, loans, 1)
	assert.Equal(t, "1984", loans[0].BookTitle)
	assert.Equal(t, "alice", loans[0].MemberName)

	out, err = run(t, "", "return", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Book 1 returned")

	out, err = run(t, "", "history", "--member", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "1984")

	out, err = run(t, "", "reconcile")
	require.NoError(t, err)
	assert.Contains(t, out, "consistent")
}

func TestCLIJSONResult(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "--json", "book", "add", "--title", "1984", "--isbn", "123", "--author", "Orwell", "--category", "Dystopia")
	assert.ErrorIs(t, err, library.ErrValidation)

	var view resultView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, library.KindValidationFailed.String(), view.Kind)
	assert.Contains(t, view.Fields, "isbn")
}

func TestCLIBookUpdateKeepsUnsetFields(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "", "book", "add", "--title", "1984", "--isbn", "9780451524935", "--author", "Orwell", "--category", "Dystopia")
	require.NoError(t, err)

	_, err = run(t, "", "book", "update", "1", "--author", "George Orwell")
	require.NoError(t, err)

	out, err := run(t, "", "--json", "book", "show", "1")
	require.NoError(t, err)
	var book library.Book
	require.NoError(t, json.Unmarshal([]byte(out), &book))
	assert.Equal(t, "1984", book.Title)
	assert.Equal(t, "George Orwell", book.Author)
	assert.Equal(t, "9780451524935", book.ISBN)
}

func TestCLIRejectsBadInput(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "", "return", "abc")
	assert.ErrorContains(t, err, "invalid book ID")

	_, err = run(t, "", "book", "list", "--order", "author")
	assert.ErrorContains(t, err, "unknown order")

	_, err = run(t, "secret1\nsecret2\n", "member", "add", "--username", "alice")
	assert.ErrorContains(t, err, "passwords do not match")
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncateString("abcdef", 2))
	assert.Equal(t, "Für...", truncateString("Für Elise", 6))
}
