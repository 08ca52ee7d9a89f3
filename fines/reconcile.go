/*
reconcile.go - The reconciliation pass over open borrow records

PURPOSE:
  Produces the current overdue view and keeps the store's fine field in sync
  with reality. Runs once per view-load.

PASS STRUCTURE:
  1. Query all open records (due date present, no return timestamp)
  2. Resolve borrower identities concurrently, one lookup per row, and await
     all of them before emitting anything; a failed lookup degrades its row
     to the unknown identity instead of blocking the pass
  3. Skip rows carrying the negative-fine exemption sentinel entirely:
     excluded from output, never recomputed, never written
  4. Compute elapsed overdue time and the fine at the fixed hourly rate
  5. Persist the fine for overdue rows (fire-and-forget upsert; a failed
     write becomes a per-row error and the pass continues)
  6. Emit one FineView per remaining row, fine zero when not overdue

CONCURRENCY:
  Identity lookups are the only concurrent step. Results land in
  index-addressed slots, so output order always follows the query's natural
  order regardless of lookup completion order. Writes are sequential.

SEE ALSO:
  - clock.go: ElapsedOverdue and Calculator
  - settlement.go: What happens when the operator pays a row
*/
package fines

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler loads open borrow records, joins borrower identity, computes the
// current fine per record, and refreshes the stored fine where it accrued.
type Reconciler struct {
	Store Store
	Calc  Calculator
}

// NewReconciler returns a reconciler over the given store using the default
// fine rate.
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{Store: store, Calc: NewCalculator()}
}

// Report is the outcome of one reconciliation pass: the overdue view plus
// every per-row problem encountered along the way. Problems never abort the
// pass; they are surfaced here for the operator.
type Report struct {
	Views    []FineView
	Problems []*RowError
}

// BorrowerIDs returns the borrower ids behind the emitted views, in view
// order. Diagnostic value derived from the final sequence.
func (r *Report) BorrowerIDs() []string {
	ids := make([]string, len(r.Views))
	for i, v := range r.Views {
		ids[i] = v.BorrowerID
	}
	return ids
}

// Reconcile runs one pass at the given time. The returned error is non-nil
// only when the open-record query itself fails; everything downstream is
// isolated to its row and reported in Report.Problems.
func (r *Reconciler) Reconcile(ctx context.Context, now time.Time) (*Report, error) {
	rows, err := r.Store.QueryOpenBorrowRecords(ctx)
	if err != nil {
		return nil, &RowError{Op: "query_open_records", Err: err}
	}

	// Resolve all identities concurrently, then await the batch. Slots are
	// index-addressed so completion order cannot reorder the output.
	identities := make([]Borrower, len(rows))
	lookupErrs := make([]error, len(rows))

	var wg sync.WaitGroup
	for i, row := range rows {
		wg.Add(1)
		go func(i int, borrowerID string) {
			defer wg.Done()
			borrower, err := r.Store.GetBorrower(ctx, borrowerID)
			if err != nil {
				identities[i] = UnknownBorrower
				lookupErrs[i] = err
				return
			}
			if borrower == nil {
				identities[i] = UnknownBorrower
				return
			}
			identities[i] = *borrower
		}(i, row.BorrowerID)
	}
	wg.Wait()

	report := &Report{}
	for i, row := range rows {
		if lookupErrs[i] != nil {
			report.Problems = append(report.Problems, &RowError{
				BorrowID: row.BorrowID,
				Op:       "lookup_borrower",
				Err:      lookupErrs[i],
			})
		}

		// Sentinel exemption: already settled or manually written off.
		if row.Exempt() {
			continue
		}

		elapsed := ElapsedOverdue(row.DueDate, now)
		fine := r.Calc.FineAmount(elapsed)

		if elapsed > 0 {
			if err := r.Store.UpsertFine(ctx, row.BorrowID, fine); err != nil {
				report.Problems = append(report.Problems, &RowError{
					BorrowID: row.BorrowID,
					Op:       "upsert_fine",
					Err:      err,
				})
			}
		}

		report.Views = append(report.Views, FineView{
			BorrowID:        row.BorrowID,
			BorrowerID:      row.BorrowerID,
			BorrowerName:    identities[i].Name,
			IDNumber:        identities[i].IDNumber,
			AccessionNumber: row.AccessionNumber,
			BookTitle:       row.BookTitle,
			DueDate:         row.DueDate,
			Fine:            fine,
			Overdue:         elapsed > 0,
		})
	}

	return report, nil
}
