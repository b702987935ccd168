package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"library-lending/library"
)

func (a *app) bookCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Manage the book catalog",
	}
	cmd.AddCommand(
		a.bookAddCommand(),
		a.bookUpdateCommand(),
		a.bookDeleteCommand(),
		a.bookListCommand(),
		a.bookShowCommand(),
		a.bookSearchCommand(),
	)
	return cmd
}

func bookFlags(cmd *cobra.Command, in *library.BookInput) {
	cmd.Flags().StringVar(&in.Title, "title", "", "book title")
	cmd.Flags().StringVar(&in.ISBN, "isbn", "", "ISBN-10 or ISBN-13, hyphens allowed")
	cmd.Flags().StringVar(&in.Author, "author", "", "author")
	cmd.Flags().StringVar(&in.Category, "category", "", "category")
}

func (a *app) bookAddCommand() *cobra.Command {
	var in library.BookInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res := a.mgr.Books().Create(cmd.Context(), in)
			return a.result(res, "Added book '%s' with ID %d", strings.TrimSpace(in.Title), res.ID)
		},
	}
	bookFlags(cmd, &in)
	return cmd
}

func (a *app) bookUpdateCommand() *cobra.Command {
	var in library.BookInput
	cmd := &cobra.Command{
		Use:   "update BOOK_ID",
		Short: "Change title, ISBN, author or category of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			book, res := a.mgr.Books().GetByID(cmd.Context(), id)
			if !res.OK() {
				return res.Err()
			}

			// Flags that were not given keep the stored value.
			merged := library.BookInput{Title: book.Title, ISBN: book.ISBN, Author: book.Author, Category: book.Category}
			flags := cmd.Flags()
			if flags.Changed("title") {
				merged.Title = in.Title
			}
			if flags.Changed("isbn") {
				merged.ISBN = in.ISBN
			}
			if flags.Changed("author") {
				merged.Author = in.Author
			}
			if flags.Changed("category") {
				merged.Category = in.Category
			}

			res = a.mgr.Books().Update(cmd.Context(), id, merged)
			return a.result(res, "Updated book %d", id)
		},
	}
	bookFlags(cmd, &in)
	return cmd
}

func (a *app) bookDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete BOOK_ID",
		Short: "Remove a book from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			res := a.mgr.Books().SoftDelete(cmd.Context(), id)
			return a.result(res, "Deleted book %d", id)
		},
	}
}

func (a *app) bookListCommand() *cobra.Command {
	var (
		availableOnly bool
		order         string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the books of the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := library.ListBooksOptions{AvailableOnly: availableOnly}
			switch order {
			case "title":
				opts.OrderBy = library.OrderByTitle
			case "id":
				opts.OrderBy = library.OrderByID
			default:
				return fmt.Errorf("unknown order %q, use title or id", order)
			}

			books, err := a.mgr.Books().List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return a.render(books, func() { a.printBooks(books, "No books in library.") })
		},
	}
	cmd.Flags().BoolVar(&availableOnly, "available", false, "only list books that are not on loan")
	cmd.Flags().StringVar(&order, "order", "title", "sort by title or id")
	return cmd
}

func (a *app) bookShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show BOOK_ID",
		Short: "Show one book and its open loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			book, res := a.mgr.Books().GetByID(cmd.Context(), id)
			if !res.OK() {
				return res.Err()
			}

			loan, loanRes := a.mgr.Lending().OpenLoanForBook(cmd.Context(), id)
			if loanRes.Kind == library.KindPersistenceFailure {
				return loanRes.Err()
			}

			view := struct {
				*library.Book
				OpenLoan *library.Loan `json:"open_loan,omitempty"`
			}{Book: book, OpenLoan: loan}
			return a.render(view, func() {
				a.printf("ID:        %d\n", book.ID)
				a.printf("Title:     %s\n", book.Title)
				a.printf("ISBN:      %s\n", book.ISBN)
				a.printf("Author:    %s\n", book.Author)
				a.printf("Category:  %s\n", book.Category)
				a.printf("Available: %s\n", yesNo(book.Available))
				if loan != nil {
					a.printf("On loan since %s (loan %d, member %d)\n",
						loan.LoanDate.Local().Format("2006-01-02 15:04"), loan.ID, loan.UserID)
				}
			})
		},
	}
}

func (a *app) bookSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search TEXT",
		Short: "Search books by title, author, category or ISBN",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			books, err := a.mgr.Books().Search(cmd.Context(), query)
			if err != nil {
				return err
			}
			return a.render(books, func() {
				if len(books) > 0 {
					a.printf("Found %d book(s) matching '%s':\n", len(books), query)
				}
				a.printBooks(books, fmt.Sprintf("No books found matching '%s'.", query))
			})
		},
	}
}

func (a *app) printBooks(books []library.Book, empty string) {
	if len(books) == 0 {
		a.printf("%s\n", empty)
		return
	}

	a.printf("%-5s %-30s %-15s %-25s %-15s %s\n", "ID", "Title", "ISBN", "Author", "Category", "Available")
	a.printf("%s\n", strings.Repeat("-", 100))
	for _, b := range books {
		a.printf("%-5d %-30s %-15s %-25s %-15s %s\n",
			b.ID,
			truncateString(b.Title, 30),
			b.ISBN,
			truncateString(b.Author, 25),
			truncateString(b.Category, 15),
			yesNo(b.Available))
	}
}
