package library

import "time"

// Book represents catalog metadata and the current availability of a book.
// Available is false exactly when an open loan exists for the book.
type Book struct {
	ID        int64      `db:"id" json:"id"`
	Title     string     `db:"title" json:"title"`
	ISBN      string     `db:"isbn" json:"isbn"`
	Author    string     `db:"author" json:"author"`
	Category  string     `db:"category" json:"category"`
	Available bool       `db:"available" json:"available"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Member represents a registered library member.
type Member struct {
	ID           int64      `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        *string    `db:"email" json:"email,omitempty"`
	PasswordHash string     `db:"password_hash" json:"-"` // Don't serialize password hash
	DeletedAt    *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Loan is one row of the loan ledger. ReturnDate is nil while the loan is open.
type Loan struct {
	ID         int64      `db:"id" json:"id"`
	BookID     int64      `db:"book_id" json:"book_id"`
	UserID     int64      `db:"user_id" json:"user_id"`
	LoanDate   time.Time  `db:"loan_date" json:"loan_date"`
	ReturnDate *time.Time `db:"return_date" json:"return_date,omitempty"`
}

// ActiveLoan is a display row for a loan that has not been returned yet.
type ActiveLoan struct {
	LoanID     int64     `db:"loan_id" json:"loan_id"`
	BookID     int64     `db:"book_id" json:"book_id"`
	BookTitle  string    `db:"book_title" json:"book_title"`
	MemberName string    `db:"member_name" json:"member_name"`
	LoanDate   time.Time `db:"loan_date" json:"loan_date"`
}

// HistoryEntry is a display row of the loan history. Titles and names of
// soft-deleted books and members are still reported.
type HistoryEntry struct {
	LoanID     int64      `db:"loan_id" json:"loan_id"`
	BookTitle  string     `db:"book_title" json:"book_title"`
	MemberName string     `db:"member_name" json:"member_name"`
	LoanDate   time.Time  `db:"loan_date" json:"loan_date"`
	ReturnDate *time.Time `db:"return_date" json:"return_date,omitempty"`
}

// CountByLabel is an aggregated statistic row, e.g. loans per author.
type CountByLabel struct {
	Label string `db:"label" json:"label"`
	Count int64  `db:"total" json:"count"`
}

// MonthCount holds the number of loans started in a calendar month ("2006-01").
type MonthCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

// BookInput carries the editable fields of a book.
type BookInput struct {
	Title    string
	ISBN     string
	Author   string
	Category string
}

// MemberInput carries the editable fields of a member. Password is required
// on create and optional on update, where an empty value keeps the old hash.
type MemberInput struct {
	Username string
	Email    string
	Password string
}
