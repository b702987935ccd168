package library

import "context"

// ReconcileReport lists the books whose availability flag was repaired.
type ReconcileReport struct {
	MarkedAvailable   []int64 `json:"marked_available"`
	MarkedUnavailable []int64 `json:"marked_unavailable"`
}

// Repaired returns the number of books that were changed.
func (r ReconcileReport) Repaired() int {
	return len(r.MarkedAvailable) + len(r.MarkedUnavailable)
}

// Reconcile derives every availability flag from the loan ledger, which is
// authoritative, and repairs the books that disagree with it.
func (e *LendingEngine) Reconcile(ctx context.Context) (ReconcileReport, error) {
	report := ReconcileReport{MarkedAvailable: []int64{}, MarkedUnavailable: []int64{}}

	err := e.port.InTx(ctx, func(q Querier) error {
		if err := q.SelectAll(ctx, &report.MarkedAvailable, selectUnavailableBooksWithoutOpenLoan()); err != nil {
			return err
		}
		if err := q.SelectAll(ctx, &report.MarkedUnavailable, selectAvailableBooksWithOpenLoan()); err != nil {
			return err
		}

		if len(report.MarkedAvailable) > 0 {
			if _, err := q.Exec(ctx, setBooksAvailable(report.MarkedAvailable, true)); err != nil {
				return err
			}
		}
		if len(report.MarkedUnavailable) > 0 {
			if _, err := q.Exec(ctx, setBooksAvailable(report.MarkedUnavailable, false)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ReconcileReport{}, e.failed("reconcile", err).Err()
	}

	if report.Repaired() > 0 {
		e.logger.Warn("book availability repaired",
			logAttrCount, report.Repaired(),
			"marked_available", report.MarkedAvailable,
			"marked_unavailable", report.MarkedUnavailable)
	}
	return report, nil
}
