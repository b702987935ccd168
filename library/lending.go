package library

import (
	"context"
	"errors"
)

// LendingEngine applies lend and return transitions to the loan ledger.
type LendingEngine struct {
	port Port
	settings
}

func NewLendingEngine(port Port, opts ...Option) *LendingEngine {
	return &LendingEngine{port: port, settings: newSettings(opts)}
}

// Lend opens a loan of bookID for userID and marks the book unavailable in
// the same transaction. On success Result.ID is the new loan id.
func (e *LendingEngine) Lend(ctx context.Context, bookID, userID int64) Result {
	return runTx(ctx, e.port, e.settings, "lend_book", func(q Querier) (Result, error) {
		var book Book
		found, err := q.SelectOne(ctx, &book, selectActiveBook(bookID))
		if err != nil {
			return Result{}, err
		}
		if !found {
			return notFound(entityBook), nil
		}

		var member Member
		found, err = q.SelectOne(ctx, &member, selectActiveMember(userID))
		if err != nil {
			return Result{}, err
		}
		if !found {
			return notFound(entityMember), nil
		}

		if !book.Available {
			return stateConflict(ReasonNotAvailable), nil
		}

		loanID, err := q.Insert(ctx, insertLoan(bookID, userID, e.now()))
		if errors.Is(err, ErrDuplicateKey) {
			// Another open loan exists for the book.
			return stateConflict(ReasonNotAvailable), nil
		}
		if err != nil {
			return Result{}, err
		}

		n, err := q.Exec(ctx, markBookUnavailable(bookID))
		if err != nil {
			return Result{}, err
		}
		if n == 0 {
			e.logger.Warn("book was lent concurrently", logAttrBookID, bookID)
			return stateConflict(ReasonNotAvailable), nil
		}

		e.logger.Info("book lent", logAttrBookID, bookID, logAttrMemberID, userID, logAttrLoanID, loanID)
		return success(loanID), nil
	})
}

// ReturnBook closes the open loan of bookID and marks the book available.
// On success Result.ID is the closed loan id.
func (e *LendingEngine) ReturnBook(ctx context.Context, bookID int64) Result {
	return runTx(ctx, e.port, e.settings, "return_book", func(q Querier) (Result, error) {
		var loan Loan
		found, err := q.SelectOne(ctx, &loan, selectOpenLoanForBook(bookID))
		if err != nil {
			return Result{}, err
		}
		if !found {
			return stateConflict(ReasonNotOnLoan), nil
		}

		n, err := q.Exec(ctx, closeLoan(loan.ID, e.now()))
		if err != nil {
			return Result{}, err
		}
		if n == 0 {
			return stateConflict(ReasonNotOnLoan), nil
		}

		n, err = q.Exec(ctx, markBookAvailable(bookID))
		if err != nil {
			return Result{}, err
		}
		if n == 0 {
			// The flag already said available; closing the loan restores the
			// invariant either way.
			e.logger.Warn("returned book was already marked available", logAttrBookID, bookID, logAttrLoanID, loan.ID)
		}

		e.logger.Info("book returned", logAttrBookID, bookID, logAttrLoanID, loan.ID)
		return success(loan.ID), nil
	})
}

// OpenLoanForBook returns the open loan of a book, if any.
func (e *LendingEngine) OpenLoanForBook(ctx context.Context, bookID int64) (*Loan, Result) {
	var loan Loan
	found, err := e.port.SelectOne(ctx, &loan, selectOpenLoanForBook(bookID))
	if err != nil {
		return nil, e.failed("open_loan_for_book", err)
	}
	if !found {
		return nil, stateConflict(ReasonNotOnLoan)
	}
	return &loan, success(loan.ID)
}

// ActiveLoans lists every open loan, oldest first.
func (e *LendingEngine) ActiveLoans(ctx context.Context) ([]ActiveLoan, error) {
	loans := []ActiveLoan{}
	if err := e.port.SelectAll(ctx, &loans, selectActiveLoans()); err != nil {
		return nil, e.failed("active_loans", err).Err()
	}
	return loans, nil
}

// History lists loans newest first, for one member when memberID is set.
// Loans of soft-deleted books and members are included.
func (e *LendingEngine) History(ctx context.Context, memberID *int64) ([]HistoryEntry, error) {
	entries := []HistoryEntry{}
	if err := e.port.SelectAll(ctx, &entries, selectHistory(memberID)); err != nil {
		return nil, e.failed("loan_history", err).Err()
	}
	return entries, nil
}
