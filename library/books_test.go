package library

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBook(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	res := mgr.Books().Create(ctx, BookInput{Title: "1984", ISBN: "9780451524935", Author: "Orwell", Category: "Dystopia"})
	require.True(t, res.OK(), "create: %v", res.Err())
	require.NotZero(t, res.ID)

	book, got := mgr.Books().GetByID(ctx, res.ID)
	require.True(t, got.OK())
	assert.Equal(t, "1984", book.Title)
	assert.Equal(t, "Orwell", book.Author)
	assert.Equal(t, "Dystopia", book.Category)
	assert.True(t, book.Available, "new books are available")
	assert.Nil(t, book.DeletedAt)
}

func TestCreateBookNormalizesISBN(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	res := mgr.Books().Create(ctx, BookInput{Title: " 1984 ", ISBN: "978-0-45-152493-5", Author: "Orwell", Category: "Dystopia"})
	require.True(t, res.OK(), "create: %v", res.Err())

	book, got := mgr.Books().GetByID(ctx, res.ID)
	require.True(t, got.OK())
	assert.Equal(t, "9780451524935", book.ISBN)
	assert.Equal(t, "1984", book.Title, "title is trimmed")
}

func TestCreateBookValidation(t *testing.T) {
	mgr, _ := newManager(t)

	tests := []struct {
		name  string
		in    BookInput
		field string
	}{
		{"missing title", BookInput{Title: "  ", ISBN: "9780451524935", Author: "A", Category: "C"}, "title"},
		{"missing author", BookInput{Title: "T", ISBN: "9780451524935", Category: "C"}, "author"},
		{"missing category", BookInput{Title: "T", ISBN: "9780451524935", Author: "A"}, "category"},
		{"missing isbn", BookInput{Title: "T", Author: "A", Category: "C"}, "isbn"},
		{"isbn too short", BookInput{Title: "T", ISBN: "12345", Author: "A", Category: "C"}, "isbn"},
		{"isbn of 11 characters", BookInput{Title: "T", ISBN: "12345678901", Author: "A", Category: "C"}, "isbn"},
		{"isbn-13 with letters", BookInput{Title: "T", ISBN: "978045152493X", Author: "A", Category: "C"}, "isbn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mgr.Books().Create(context.Background(), tt.in)
			assert.Equal(t, KindValidationFailed, res.Kind)
			assert.Contains(t, res.Fields, tt.field)
			assert.ErrorIs(t, res.Err(), ErrValidation)
		})
	}

	books, err := mgr.Books().List(context.Background(), ListBooksOptions{})
	require.NoError(t, err)
	assert.Empty(t, books, "rejected input never reaches the store")
}

func TestCreateBookISBN10WithCheckCharacter(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	res := mgr.Books().Create(ctx, BookInput{Title: "T", ISBN: "0-8044-2957-x", Author: "A", Category: "C"})
	require.True(t, res.OK(), "create: %v", res.Err())

	book, _ := mgr.Books().GetByID(ctx, res.ID)
	assert.Equal(t, "080442957X", book.ISBN)
}

func TestCreateBookDuplicateISBN(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	mustCreateBook(t, mgr, "1984", "9780451524935")

	res := mgr.Books().Create(ctx, BookInput{Title: "Nineteen Eighty-Four", ISBN: "978 0451 52493 5", Author: "Orwell", Category: "Dystopia"})
	assert.Equal(t, KindValidationFailed, res.Kind)
	assert.Equal(t, uniqueKeys[FieldISBN].message, res.Fields[FieldISBN])
}

func TestUpdateBook(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	id := mustCreateBook(t, mgr, "1984", "9780451524935")
	otherID := mustCreateBook(t, mgr, "Dune", "9780441013593")

	t.Run("changes fields and keeps its own isbn", func(t *testing.T) {
		res := mgr.Books().Update(ctx, id, BookInput{Title: "Nineteen Eighty-Four", ISBN: "978-0451524935", Author: "George Orwell", Category: "Classic"})
		require.True(t, res.OK(), "update: %v", res.Err())

		book, _ := mgr.Books().GetByID(ctx, id)
		assert.Equal(t, "Nineteen Eighty-Four", book.Title)
		assert.Equal(t, "George Orwell", book.Author)
		assert.Equal(t, "Classic", book.Category)
		assert.True(t, book.Available)
	})

	t.Run("isbn of another book", func(t *testing.T) {
		res := mgr.Books().Update(ctx, id, BookInput{Title: "1984", ISBN: "9780441013593", Author: "Orwell", Category: "Dystopia"})
		assert.Equal(t, KindValidationFailed, res.Kind)
		assert.Contains(t, res.Fields, FieldISBN)
	})

	t.Run("invalid input", func(t *testing.T) {
		res := mgr.Books().Update(ctx, id, BookInput{ISBN: "9780451524935", Author: "Orwell", Category: "Dystopia"})
		assert.Equal(t, KindValidationFailed, res.Kind)
		assert.Contains(t, res.Fields, "title")
	})

	t.Run("unknown book", func(t *testing.T) {
		res := mgr.Books().Update(ctx, 999, BookInput{Title: "T", ISBN: "0000000000", Author: "A", Category: "C"})
		assert.Equal(t, KindNotFound, res.Kind)
		assert.ErrorIs(t, res.Err(), ErrNotFound)
	})

	t.Run("deleted book", func(t *testing.T) {
		require.True(t, mgr.Books().SoftDelete(ctx, otherID).OK())
		res := mgr.Books().Update(ctx, otherID, BookInput{Title: "Dune", ISBN: "9780441013593", Author: "Herbert", Category: "SF"})
		assert.Equal(t, KindNotFound, res.Kind)
	})
}

func TestSoftDeleteBook(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	id := mustCreateBook(t, mgr, "1984", "9780451524935")
	keptID := mustCreateBook(t, mgr, "Dune", "9780441013593")

	res := mgr.Books().SoftDelete(ctx, id)
	require.True(t, res.OK(), "delete: %v", res.Err())

	_, got := mgr.Books().GetByID(ctx, id)
	assert.Equal(t, KindNotFound, got.Kind)

	books, err := mgr.Books().List(ctx, ListBooksOptions{})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, keptID, books[0].ID)

	assert.Equal(t, KindNotFound, mgr.Books().SoftDelete(ctx, id).Kind, "a book is deleted once")
	assert.Equal(t, KindNotFound, mgr.Books().SoftDelete(ctx, 999).Kind)

	reused := mgr.Books().Create(ctx, BookInput{Title: "1984 (reprint)", ISBN: "978-0-45-152493-5", Author: "Orwell", Category: "Dystopia"})
	assert.True(t, reused.OK(), "the isbn of a deleted book can be reused: %v", reused.Err())
}

func TestSoftDeleteLoanedBook(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	bookID := mustCreateBook(t, mgr, "1984", "9780451524935")
	memberID := mustCreateMember(t, mgr, "alice")
	mustLend(t, mgr, bookID, memberID)

	res := mgr.Books().SoftDelete(ctx, bookID)
	assert.Equal(t, KindStateConflict, res.Kind)
	assert.Equal(t, ReasonLoaned, res.Reason)

	require.True(t, mgr.Lending().ReturnBook(ctx, bookID).OK())
	assert.True(t, mgr.Books().SoftDelete(ctx, bookID).OK())
}

func TestListBooks(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	zID := mustCreateBook(t, mgr, "Zen", "9780000000001")
	aID := mustCreateBook(t, mgr, "Alpha", "9780000000002")
	mID := mustCreateBook(t, mgr, "Middle", "9780000000003")
	memberID := mustCreateMember(t, mgr, "alice")
	mustLend(t, mgr, mID, memberID)

	ids := func(books []Book) []int64 {
		out := make([]int64, 0, len(books))
		for _, b := range books {
			out = append(out, b.ID)
		}
		return out
	}

	byTitle, err := mgr.Books().List(ctx, ListBooksOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{aID, mID, zID}, ids(byTitle))

	byID, err := mgr.Books().List(ctx, ListBooksOptions{OrderBy: OrderByID})
	require.NoError(t, err)
	assert.Equal(t, []int64{zID, aID, mID}, ids(byID))

	available, err := mgr.Books().List(ctx, ListBooksOptions{AvailableOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{aID, zID}, ids(available))
}

func TestSearchBooks(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	res := mgr.Books().Create(ctx, BookInput{Title: "Animal Farm", ISBN: "9780451526342", Author: "George Orwell", Category: "Satire"})
	require.True(t, res.OK())
	mustCreateBook(t, mgr, "Dune", "9780441013593")
	deleted := mgr.Books().Create(ctx, BookInput{Title: "Homage to Catalonia", ISBN: "9780156421171", Author: "George Orwell", Category: "Memoir"})
	require.True(t, deleted.OK())
	require.True(t, mgr.Books().SoftDelete(ctx, deleted.ID).OK())

	tests := []struct {
		query string
		want  int
	}{
		{"orwell", 1},
		{"FARM", 1},
		{"satire", 1},
		{"9780441", 1},
		{"dun", 1},
		{"catalonia", 0},
		{"nothing like this", 0},
		{"   ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			books, err := mgr.Books().Search(ctx, tt.query)
			require.NoError(t, err)
			assert.Len(t, books, tt.want)
		})
	}
}

func TestBookPersistenceFailure(t *testing.T) {
	storeErr := errors.New("database is locked")
	books := NewBookCatalog(failingPort{err: storeErr})
	ctx := context.Background()

	res := books.Create(ctx, BookInput{Title: "1984", ISBN: "9780451524935", Author: "Orwell", Category: "Dystopia"})
	assert.Equal(t, KindPersistenceFailure, res.Kind)
	assert.Contains(t, res.Fields, generalField)
	assert.ErrorIs(t, res.Err(), ErrPersistence)
	assert.ErrorIs(t, res.Err(), storeErr)
	assert.NotErrorIs(t, res.Err(), ErrValidation, "store failures are not user-correctable")

	_, got := books.GetByID(ctx, 1)
	assert.Equal(t, KindPersistenceFailure, got.Kind)

	_, err := books.List(ctx, ListBooksOptions{})
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestConcurrentCreateWithSameISBN(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	results := make(chan Result, 2)
	for _, title := range []string{"First", "Second"} {
		go func() {
			results <- mgr.Books().Create(ctx, BookInput{Title: title, ISBN: "9780451524935", Author: "A", Category: "C"})
		}()
	}

	var okCount, dupCount int
	for range 2 {
		res := <-results
		switch {
		case res.OK():
			okCount++
		case res.Kind == KindValidationFailed && res.Fields[FieldISBN] != "":
			dupCount++
		default:
			t.Fatalf("unexpected result %v", res.Err())
		}
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, dupCount)
}
