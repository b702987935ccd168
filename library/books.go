package library

import (
	"context"
	"strings"
)

// BookOrder selects the ordering of ListBooks.
type BookOrder int

const (
	OrderByTitle BookOrder = iota
	OrderByID
)

// ListBooksOptions filters and orders the catalog listing.
type ListBooksOptions struct {
	AvailableOnly bool
	OrderBy       BookOrder
}

const entityBook = "book"

// BookCatalog manages the book records.
type BookCatalog struct {
	port Port
	settings
}

func NewBookCatalog(port Port, opts ...Option) *BookCatalog {
	return &BookCatalog{port: port, settings: newSettings(opts)}
}

func normalizeBook(in BookInput) BookInput {
	return BookInput{
		Title:    strings.TrimSpace(in.Title),
		ISBN:     NormalizeISBN(in.ISBN),
		Author:   strings.TrimSpace(in.Author),
		Category: strings.TrimSpace(in.Category),
	}
}

func validateBookInput(in BookInput) *Validator {
	v := NewValidator()
	ValidateBook(v, in.Title, in.ISBN, in.Author, in.Category)
	return v
}

// Create adds a new, available book. On success Result.ID is the new id.
func (c *BookCatalog) Create(ctx context.Context, in BookInput) Result {
	in = normalizeBook(in)
	if v := validateBookInput(in); !v.Valid() {
		return validationFailed(v.Errors)
	}

	return runTx(ctx, c.port, c.settings, "create_book", func(q Querier) (Result, error) {
		dups, err := checkUnique(ctx, q, FieldISBN, in.ISBN, 0)
		if err != nil {
			return Result{}, err
		}
		if len(dups) > 0 {
			return validationFailed(dups), nil
		}

		id, err := q.Insert(ctx, insertBook(in.Title, in.ISBN, in.Author, in.Category))
		if err != nil {
			return Result{}, err
		}
		c.logger.Info("book created", logAttrBookID, id)
		return success(id), nil
	})
}

// Update replaces the descriptive fields of an active book. Availability is
// not touched.
func (c *BookCatalog) Update(ctx context.Context, id int64, in BookInput) Result {
	in = normalizeBook(in)
	if v := validateBookInput(in); !v.Valid() {
		return validationFailed(v.Errors)
	}

	return runTx(ctx, c.port, c.settings, "update_book", func(q Querier) (Result, error) {
		dups, err := checkUnique(ctx, q, FieldISBN, in.ISBN, id)
		if err != nil {
			return Result{}, err
		}
		if len(dups) > 0 {
			return validationFailed(dups), nil
		}

		n, err := q.Exec(ctx, updateActiveBook(id, in.Title, in.ISBN, in.Author, in.Category))
		if err != nil {
			return Result{}, err
		}
		if n == 0 {
			return notFound(entityBook), nil
		}
		return success(id), nil
	})
}

// SoftDelete hides a book from the active catalog. A book on loan cannot be
// deleted.
func (c *BookCatalog) SoftDelete(ctx context.Context, id int64) Result {
	return runTx(ctx, c.port, c.settings, "delete_book", func(q Querier) (Result, error) {
		var book Book
		found, err := q.SelectOne(ctx, &book, selectActiveBook(id))
		if err != nil {
			return Result{}, err
		}
		if !found {
			return notFound(entityBook), nil
		}
		if !book.Available {
			return stateConflict(ReasonLoaned), nil
		}

		n, err := q.Exec(ctx, softDeleteBook(id, c.now()))
		if err != nil {
			return Result{}, err
		}
		if n == 0 {
			return stateConflict(ReasonLoaned), nil
		}
		c.logger.Info("book deleted", logAttrBookID, id)
		return success(id), nil
	})
}

// GetByID returns an active book.
func (c *BookCatalog) GetByID(ctx context.Context, id int64) (*Book, Result) {
	var book Book
	found, err := c.port.SelectOne(ctx, &book, selectActiveBook(id))
	if err != nil {
		return nil, c.failed("get_book", err)
	}
	if !found {
		return nil, notFound(entityBook)
	}
	return &book, success(book.ID)
}

// List returns the active books.
func (c *BookCatalog) List(ctx context.Context, opts ListBooksOptions) ([]Book, error) {
	books := []Book{}
	if err := c.port.SelectAll(ctx, &books, listActiveBooks(opts.AvailableOnly, opts.OrderBy)); err != nil {
		return nil, c.failed("list_books", err).Err()
	}
	return books, nil
}

// Search matches text against title, author, category and ISBN of active
// books. Blank text matches nothing.
func (c *BookCatalog) Search(ctx context.Context, text string) ([]Book, error) {
	books := []Book{}
	text = strings.TrimSpace(text)
	if text == "" {
		return books, nil
	}
	if err := c.port.SelectAll(ctx, &books, searchActiveBooks(text)); err != nil {
		return nil, c.failed("search_books", err).Err()
	}
	return books, nil
}
