package library

import (
	"context"
	"time"
)

const (
	DefaultTopLimit     = 10
	DefaultRecentLimit  = 10
	DefaultMonthsWindow = 6

	monthLayout = "2006-01"
)

// Statistics computes read-only lending aggregates. Loans of soft-deleted
// books and members are counted.
type Statistics struct {
	port Port
	settings
}

func NewStatistics(port Port, opts ...Option) *Statistics {
	return &Statistics{port: port, settings: newSettings(opts)}
}

func (s *Statistics) counts(ctx context.Context, op string, stmt Statement) ([]CountByLabel, error) {
	rows := []CountByLabel{}
	if err := s.port.SelectAll(ctx, &rows, stmt); err != nil {
		return nil, s.failed(op, err).Err()
	}
	return rows, nil
}

func limitOrDefault(limit, def int) uint {
	if limit <= 0 {
		return uint(def)
	}
	return uint(limit)
}

// MostBorrowedBooks counts loans per book title, most loans first.
func (s *Statistics) MostBorrowedBooks(ctx context.Context, limit int) ([]CountByLabel, error) {
	return s.counts(ctx, "most_borrowed_books", selectMostBorrowedBooks(limitOrDefault(limit, DefaultTopLimit)))
}

// TopAuthors counts loans per author, most loans first.
func (s *Statistics) TopAuthors(ctx context.Context, limit int) ([]CountByLabel, error) {
	return s.counts(ctx, "top_authors", selectTopAuthors(limitOrDefault(limit, DefaultTopLimit)))
}

// LoansByCategory counts loans per category.
func (s *Statistics) LoansByCategory(ctx context.Context) ([]CountByLabel, error) {
	return s.counts(ctx, "loans_by_category", selectLoansByCategory())
}

// LoansPerMonth counts loans started in each of the last months calendar
// months, including the current one. Months without loans are reported with
// a zero count; the oldest month comes first.
func (s *Statistics) LoansPerMonth(ctx context.Context, months int) ([]MonthCount, error) {
	if months <= 0 {
		months = DefaultMonthsWindow
	}

	now := s.now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)

	var rows []struct {
		LoanDate time.Time `db:"loan_date"`
	}
	if err := s.port.SelectAll(ctx, &rows, selectLoanDatesSince(start)); err != nil {
		return nil, s.failed("loans_per_month", err).Err()
	}

	buckets := make([]MonthCount, months)
	index := make(map[string]int, months)
	for i := range buckets {
		month := start.AddDate(0, i, 0).Format(monthLayout)
		buckets[i] = MonthCount{Month: month}
		index[month] = i
	}
	for _, row := range rows {
		if i, ok := index[row.LoanDate.UTC().Format(monthLayout)]; ok {
			buckets[i].Count++
		}
	}
	return buckets, nil
}

// RecentLoans returns the latest loans, newest first.
func (s *Statistics) RecentLoans(ctx context.Context, limit int) ([]HistoryEntry, error) {
	entries := []HistoryEntry{}
	if err := s.port.SelectAll(ctx, &entries, selectRecentLoans(limitOrDefault(limit, DefaultRecentLimit))); err != nil {
		return nil, s.failed("recent_loans", err).Err()
	}
	return entries, nil
}
