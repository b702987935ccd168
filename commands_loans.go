package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"library-lending/library"
)

const dateLayout = "2006-01-02 15:04"

func formatDate(t time.Time) string {
	return t.Local().Format(dateLayout)
}

func formatReturn(t *time.Time) string {
	if t == nil {
		return "on loan"
	}
	return formatDate(*t)
}

func (a *app) lendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lend BOOK_ID USERNAME",
		Short: "Lend a book to a member after checking the member's password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			memberID, err := a.authenticate(cmd, args[1])
			if err != nil {
				return err
			}

			res := a.mgr.Lending().Lend(cmd.Context(), bookID, memberID)
			return a.result(res, "Book %d lent to %s (loan %d)", bookID, args[1], res.ID)
		},
	}
}

func (a *app) returnCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "return BOOK_ID",
		Short: "Return a lent book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			res := a.mgr.Lending().ReturnBook(cmd.Context(), bookID)
			return a.result(res, "Book %d returned and available for lending", bookID)
		},
	}
}

func (a *app) loansCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "loans",
		Short: "List open loans, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loans, err := a.mgr.Lending().ActiveLoans(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(loans, func() {
				if len(loans) == 0 {
					a.printf("No books on loan.\n")
					return
				}
				a.printf("%-6s %-6s %-30s %-20s %s\n", "Loan", "Book", "Title", "Member", "Since")
				a.printf("%s\n", strings.Repeat("-", 85))
				for _, l := range loans {
					a.printf("%-6d %-6d %-30s %-20s %s\n",
						l.LoanID, l.BookID,
						truncateString(l.BookTitle, 30),
						truncateString(l.MemberName, 20),
						formatDate(l.LoanDate))
				}
			})
		},
	}
}

func (a *app) historyCommand() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past and open loans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var memberID *int64
			if username != "" {
				id, res := a.mgr.Members().FindIDByUsername(cmd.Context(), username)
				if !res.OK() {
					return res.Err()
				}
				memberID = &id
			}

			entries, err := a.mgr.Lending().History(cmd.Context(), memberID)
			if err != nil {
				return err
			}
			return a.render(entries, func() { a.printHistory(entries) })
		},
	}
	cmd.Flags().StringVar(&username, "member", "", "only show loans of this username")
	return cmd
}

func (a *app) printHistory(entries []library.HistoryEntry) {
	if len(entries) == 0 {
		a.printf("No loans recorded.\n")
		return
	}
	a.printf("%-6s %-30s %-20s %-17s %s\n", "Loan", "Title", "Member", "Lent", "Returned")
	a.printf("%s\n", strings.Repeat("-", 95))
	for _, e := range entries {
		a.printf("%-6d %-30s %-20s %-17s %s\n",
			e.LoanID,
			truncateString(e.BookTitle, 30),
			truncateString(e.MemberName, 20),
			formatDate(e.LoanDate),
			formatReturn(e.ReturnDate))
	}
}

func (a *app) statsCommand() *cobra.Command {
	var (
		limit  int
		months int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show lending statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			stats := a.mgr.Stats()

			var (
				report struct {
					MostBorrowed []library.CountByLabel `json:"most_borrowed_books"`
					TopAuthors   []library.CountByLabel `json:"top_authors"`
					ByCategory   []library.CountByLabel `json:"loans_by_category"`
					PerMonth     []library.MonthCount   `json:"loans_per_month"`
					Recent       []library.HistoryEntry `json:"recent_loans"`
				}
				err error
			)
			if report.MostBorrowed, err = stats.MostBorrowedBooks(ctx, limit); err != nil {
				return err
			}
			if report.TopAuthors, err = stats.TopAuthors(ctx, limit); err != nil {
				return err
			}
			if report.ByCategory, err = stats.LoansByCategory(ctx); err != nil {
				return err
			}
			if report.PerMonth, err = stats.LoansPerMonth(ctx, months); err != nil {
				return err
			}
			if report.Recent, err = stats.RecentLoans(ctx, limit); err != nil {
				return err
			}

			return a.render(report, func() {
				a.printCounts("Most borrowed books", report.MostBorrowed)
				a.printCounts("Top authors", report.TopAuthors)
				a.printCounts("Loans by category", report.ByCategory)
				a.printf("\nLoans per month\n")
				for _, m := range report.PerMonth {
					a.printf("  %-10s %d\n", m.Month, m.Count)
				}
				a.printf("\nRecent loans\n")
				a.printHistory(report.Recent)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", library.DefaultTopLimit, "rows per ranking")
	cmd.Flags().IntVar(&months, "months", library.DefaultMonthsWindow, "months in the monthly breakdown")
	return cmd
}

func (a *app) printCounts(title string, rows []library.CountByLabel) {
	a.printf("\n%s\n", title)
	if len(rows) == 0 {
		a.printf("  none\n")
		return
	}
	for _, r := range rows {
		a.printf("  %-40s %d\n", truncateString(r.Label, 40), r.Count)
	}
}

func (a *app) reconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Repair availability flags from the loan ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.mgr.Lending().Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(report, func() {
				if report.Repaired() == 0 {
					a.printf("All books are consistent with the loan ledger.\n")
					return
				}
				a.printf("Marked available:   %v\n", report.MarkedAvailable)
				a.printf("Marked unavailable: %v\n", report.MarkedUnavailable)
			})
		},
	}
}
