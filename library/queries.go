package library

import (
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
)

const (
	dialectSQLite = "sqlite3"

	tableBooks = "books"
	tableUsers = "users"
	tableLoans = "loans"

	colID           = "id"
	colTitle        = "title"
	colISBN         = "isbn"
	colAuthor       = "author"
	colCategory     = "category"
	colAvailable    = "available"
	colDeletedAt    = "deleted_at"
	colUsername     = "username"
	colEmail        = "email"
	colPasswordHash = "password_hash"
	colBookID       = "book_id"
	colUserID       = "user_id"
	colLoanDate     = "loan_date"
	colReturnDate   = "return_date"

	aliasLoanID     = "loan_id"
	aliasBookTitle  = "book_title"
	aliasMemberName = "member_name"
	aliasLabel      = "label"
	aliasTotal      = "total"

	// SQLite has no boolean type; the flag is stored as 0/1.
	flagTrue  = 1
	flagFalse = 0
)

var (
	dialect = goqu.Dialect(dialectSQLite)

	bookColumns   = []any{colID, colTitle, colISBN, colAuthor, colCategory, colAvailable, colDeletedAt}
	memberColumns = []any{colID, colUsername, colEmail, colPasswordHash, colDeletedAt}
	loanColumns   = []any{colID, colBookID, colUserID, colLoanDate, colReturnDate}

	loansL = goqu.T(tableLoans).As("l")
	booksB = goqu.T(tableBooks).As("b")
	usersU = goqu.T(tableUsers).As("u")
)

// sqlBuilder is implemented by goqu select, insert and update datasets.
type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

// statement renders ds into a named Statement. A build error is carried
// along and reported by the port when the statement is executed.
func statement(name string, ds sqlBuilder) Statement {
	query, args, err := ds.ToSQL()
	return Statement{Name: name, SQL: query, Args: args, buildErr: err}
}

// active is the one predicate that selects rows which are not soft-deleted.
func active() exp.Expression {
	return goqu.C(colDeletedAt).IsNull()
}

// open selects loans that have not been returned.
func open() exp.Expression {
	return goqu.C(colReturnDate).IsNull()
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

func selectActiveBook(id int64) Statement {
	return statement("select_active_book", dialect.From(tableBooks).Prepared(true).
		Select(bookColumns...).
		Where(goqu.C(colID).Eq(id), active()))
}

func insertBook(title, isbn, author, category string) Statement {
	return statement("insert_book", dialect.Insert(tableBooks).Prepared(true).
		Rows(goqu.Record{
			colTitle:     title,
			colISBN:      isbn,
			colAuthor:    author,
			colCategory:  category,
			colAvailable: flagTrue,
		}))
}

func updateActiveBook(id int64, title, isbn, author, category string) Statement {
	return statement("update_book", dialect.Update(tableBooks).Prepared(true).
		Set(goqu.Record{
			colTitle:    title,
			colISBN:     isbn,
			colAuthor:   author,
			colCategory: category,
		}).
		Where(goqu.C(colID).Eq(id), active()))
}

// softDeleteBook only matches an active book that is not on loan.
func softDeleteBook(id int64, at time.Time) Statement {
	return statement("soft_delete_book", dialect.Update(tableBooks).Prepared(true).
		Set(goqu.Record{colDeletedAt: at}).
		Where(goqu.C(colID).Eq(id), goqu.C(colAvailable).Eq(flagTrue), active()))
}

func listActiveBooks(availableOnly bool, order BookOrder) Statement {
	ds := dialect.From(tableBooks).Prepared(true).
		Select(bookColumns...).
		Where(active())
	if availableOnly {
		ds = ds.Where(goqu.C(colAvailable).Eq(flagTrue))
	}
	switch order {
	case OrderByID:
		ds = ds.Order(goqu.C(colID).Asc())
	default:
		ds = ds.Order(goqu.C(colTitle).Asc(), goqu.C(colID).Asc())
	}
	return statement("list_books", ds)
}

// searchActiveBooks matches text as a substring of title, author, category
// or isbn. SQLite LIKE is case-insensitive for ASCII.
func searchActiveBooks(text string) Statement {
	pattern := "%" + text + "%"
	return statement("search_books", dialect.From(tableBooks).Prepared(true).
		Select(bookColumns...).
		Where(active(), goqu.Or(
			goqu.C(colTitle).Like(pattern),
			goqu.C(colAuthor).Like(pattern),
			goqu.C(colCategory).Like(pattern),
			goqu.C(colISBN).Like(pattern),
		)).
		Order(goqu.C(colTitle).Asc(), goqu.C(colID).Asc()))
}

// markBookUnavailable is the conditional lend write: it only matches while
// the book is still available.
func markBookUnavailable(id int64) Statement {
	return statement("mark_book_unavailable", dialect.Update(tableBooks).Prepared(true).
		Set(goqu.Record{colAvailable: flagFalse}).
		Where(goqu.C(colID).Eq(id), goqu.C(colAvailable).Eq(flagTrue)))
}

func markBookAvailable(id int64) Statement {
	return statement("mark_book_available", dialect.Update(tableBooks).Prepared(true).
		Set(goqu.Record{colAvailable: flagTrue}).
		Where(goqu.C(colID).Eq(id), goqu.C(colAvailable).Eq(flagFalse)))
}

// ---------------------------------------------------------------------------
// Uniqueness
// ---------------------------------------------------------------------------

func selectActiveIDByKey(table, column, value string, excludeID int64) Statement {
	ds := dialect.From(table).Prepared(true).
		Select(colID).
		Where(goqu.C(column).Eq(value), active()).
		Limit(1)
	if excludeID > 0 {
		ds = ds.Where(goqu.C(colID).Neq(excludeID))
	}
	return statement("select_"+table+"_by_"+column, ds)
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

func selectActiveMember(id int64) Statement {
	return statement("select_active_member", dialect.From(tableUsers).Prepared(true).
		Select(memberColumns...).
		Where(goqu.C(colID).Eq(id), active()))
}

func selectActiveMemberByUsername(username string) Statement {
	return statement("select_active_member_by_username", dialect.From(tableUsers).Prepared(true).
		Select(memberColumns...).
		Where(goqu.C(colUsername).Eq(username), active()))
}

// insertMember stores an empty email as NULL so that the partial unique
// index ignores it.
func insertMember(username, email, passwordHash string) Statement {
	return statement("insert_member", dialect.Insert(tableUsers).Prepared(true).
		Rows(goqu.Record{
			colUsername:     username,
			colEmail:        nullableString(email),
			colPasswordHash: passwordHash,
		}))
}

// updateActiveMember leaves the password hash untouched when passwordHash is empty.
func updateActiveMember(id int64, username, email, passwordHash string) Statement {
	record := goqu.Record{
		colUsername: username,
		colEmail:    nullableString(email),
	}
	if passwordHash != "" {
		record[colPasswordHash] = passwordHash
	}
	return statement("update_member", dialect.Update(tableUsers).Prepared(true).
		Set(record).
		Where(goqu.C(colID).Eq(id), active()))
}

func updateMemberPassword(id int64, passwordHash string) Statement {
	return statement("update_member_password", dialect.Update(tableUsers).Prepared(true).
		Set(goqu.Record{colPasswordHash: passwordHash}).
		Where(goqu.C(colID).Eq(id), active()))
}

func softDeleteMember(id int64, at time.Time) Statement {
	return statement("soft_delete_member", dialect.Update(tableUsers).Prepared(true).
		Set(goqu.Record{colDeletedAt: at}).
		Where(goqu.C(colID).Eq(id), active()))
}

func listActiveMembers() Statement {
	return statement("list_members", dialect.From(tableUsers).Prepared(true).
		Select(memberColumns...).
		Where(active()).
		Order(goqu.C(colUsername).Asc(), goqu.C(colID).Asc()))
}

func countOpenLoansForMember(userID int64) Statement {
	return statement("count_open_loans_for_member", dialect.From(tableLoans).Prepared(true).
		Select(goqu.COUNT("*")).
		Where(goqu.C(colUserID).Eq(userID), open()))
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ---------------------------------------------------------------------------
// Loans
// ---------------------------------------------------------------------------

func insertLoan(bookID, userID int64, at time.Time) Statement {
	return statement("insert_loan", dialect.Insert(tableLoans).Prepared(true).
		Rows(goqu.Record{
			colBookID:   bookID,
			colUserID:   userID,
			colLoanDate: at,
		}))
}

func selectOpenLoanForBook(bookID int64) Statement {
	return statement("select_open_loan_for_book", dialect.From(tableLoans).Prepared(true).
		Select(loanColumns...).
		Where(goqu.C(colBookID).Eq(bookID), open()).
		Order(goqu.C(colID).Asc()).
		Limit(1))
}

// closeLoan sets the return date exactly once.
func closeLoan(loanID int64, at time.Time) Statement {
	return statement("close_loan", dialect.Update(tableLoans).Prepared(true).
		Set(goqu.Record{colReturnDate: at}).
		Where(goqu.C(colID).Eq(loanID), open()))
}

// loanView joins loans to books and members with left-join semantics, so
// rows survive soft deletes of either side.
func loanView() *goqu.SelectDataset {
	return dialect.From(loansL).Prepared(true).
		LeftJoin(booksB, goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		LeftJoin(usersU, goqu.On(goqu.I("u.id").Eq(goqu.I("l.user_id"))))
}

func selectActiveLoans() Statement {
	return statement("select_active_loans", loanView().
		Select(
			goqu.I("l.id").As(aliasLoanID),
			goqu.I("l.book_id").As(colBookID),
			goqu.COALESCE(goqu.I("b.title"), "").As(aliasBookTitle),
			goqu.COALESCE(goqu.I("u.username"), "").As(aliasMemberName),
			goqu.I("l.loan_date").As(colLoanDate),
		).
		Where(goqu.I("l.return_date").IsNull()).
		Order(goqu.I("l.loan_date").Asc(), goqu.I("l.id").Asc()))
}

func historyDataset(memberID *int64) *goqu.SelectDataset {
	ds := loanView().
		Select(
			goqu.I("l.id").As(aliasLoanID),
			goqu.COALESCE(goqu.I("b.title"), "").As(aliasBookTitle),
			goqu.COALESCE(goqu.I("u.username"), "").As(aliasMemberName),
			goqu.I("l.loan_date").As(colLoanDate),
			goqu.I("l.return_date").As(colReturnDate),
		).
		Order(goqu.I("l.loan_date").Desc(), goqu.I("l.id").Desc())
	if memberID != nil {
		ds = ds.Where(goqu.I("l.user_id").Eq(*memberID))
	}
	return ds
}

func selectHistory(memberID *int64) Statement {
	return statement("select_history", historyDataset(memberID))
}

// ---------------------------------------------------------------------------
// Statistics
// ---------------------------------------------------------------------------

// loansGroupedBy counts loans per value of a books column, most loans first.
func loansGroupedBy(name string, column string, limit uint) Statement {
	ds := dialect.From(loansL).Prepared(true).
		InnerJoin(booksB, goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		Select(
			goqu.I("b."+column).As(aliasLabel),
			goqu.COUNT(goqu.I("l.id")).As(aliasTotal),
		).
		GroupBy(goqu.I("b." + column)).
		Order(goqu.C(aliasTotal).Desc(), goqu.C(aliasLabel).Asc())
	if limit > 0 {
		ds = ds.Limit(limit)
	}
	return statement(name, ds)
}

func selectMostBorrowedBooks(limit uint) Statement {
	return loansGroupedBy("stats_most_borrowed_books", colTitle, limit)
}

func selectTopAuthors(limit uint) Statement {
	return loansGroupedBy("stats_top_authors", colAuthor, limit)
}

func selectLoansByCategory() Statement {
	return loansGroupedBy("stats_loans_by_category", colCategory, 0)
}

func selectLoanDatesSince(since time.Time) Statement {
	return statement("stats_loan_dates_since", dialect.From(tableLoans).Prepared(true).
		Select(colLoanDate).
		Where(goqu.C(colLoanDate).Gte(since)).
		Order(goqu.C(colLoanDate).Asc()))
}

func selectRecentLoans(limit uint) Statement {
	return statement("stats_recent_loans", historyDataset(nil).Limit(limit))
}

// ---------------------------------------------------------------------------
// Reconciliation
// ---------------------------------------------------------------------------

func openLoanBookIDs() *goqu.SelectDataset {
	return dialect.From(tableLoans).Select(colBookID).Where(open())
}

func selectUnavailableBooksWithoutOpenLoan() Statement {
	return statement("select_unavailable_books_without_open_loan", dialect.From(tableBooks).Prepared(true).
		Select(colID).
		Where(goqu.C(colAvailable).Eq(flagFalse), goqu.C(colID).NotIn(openLoanBookIDs())).
		Order(goqu.C(colID).Asc()))
}

func selectAvailableBooksWithOpenLoan() Statement {
	return statement("select_available_books_with_open_loan", dialect.From(tableBooks).Prepared(true).
		Select(colID).
		Where(goqu.C(colAvailable).Eq(flagTrue), goqu.C(colID).In(openLoanBookIDs())).
		Order(goqu.C(colID).Asc()))
}

func setBooksAvailable(ids []int64, available bool) Statement {
	flag := flagFalse
	if available {
		flag = flagTrue
	}
	return statement("repair_book_availability", dialect.Update(tableBooks).Prepared(true).
		Set(goqu.Record{colAvailable: flag}).
		Where(goqu.C(colID).In(ids)))
}
