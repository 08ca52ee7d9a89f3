/*
Package fines provides the core overdue-fine accrual and settlement engine.

PURPOSE:
  This package contains the domain logic for a circulation desk's fine ledger:
  deriving a monetary fine from elapsed time past a due date, reconciling that
  fine against the persisted return ledger, and settling it through a
  receipt-gated payment workflow that must not lose or double-apply a payment.

KEY CONCEPTS IN THIS FILE (types.go):
  - OpenBorrowRow: A borrow with a due date and no recorded return, joined with
    its copy and title metadata. Eligible for fine accrual.
  - Borrower: Read-only identity resolved from the identity store.
  - FineView: One row of the overdue view presented to the operator.

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for money to avoid floating-point errors
  2. Purity at the bottom: clock and calculator are side-effect free
  3. Isolation: one bad row never blocks the rest of a reconciliation pass
  4. One-shot settlement: a session resolves exactly once, Confirmed or not

SEE ALSO:
  - clock.go: Elapsed-overdue computation and the fine calculator
  - reconcile.go: The reconciliation pass over open records
  - settlement.go: The payment session state machine
  - store.go: Collaborator interfaces (Store, Printer)
*/
package fines

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// CurrencySymbol is the fixed symbol used wherever a fine is displayed.
const CurrencySymbol = "₱"

// FormatMoney renders an amount with the currency symbol and exactly two
// decimal places, e.g. "₱ 7.00".
func FormatMoney(amount decimal.Decimal) string {
	return CurrencySymbol + " " + amount.StringFixed(2)
}

// =============================================================================
// BORROWER IDENTITY
// =============================================================================

// Borrower is the identity attached to a borrow record. It is owned by an
// external identity store and read-only from this package's perspective.
type Borrower struct {
	UserID   string
	Name     string
	IDNumber string
}

// UnknownBorrower substitutes for a borrower whose lookup failed or returned
// nothing. A missing identity degrades a single row, never the whole pass.
var UnknownBorrower = Borrower{Name: "N/A", IDNumber: "N/A"}

// =============================================================================
// OPEN BORROW ROW - Query result joined across borrow, copy, title and return
// =============================================================================

// OpenBorrowRow is one "open" record: a borrow with a due date and no return
// timestamp. StoredFine carries the previously persisted fine, if any; a
// negative stored fine is the sentinel exemption and must never be re-billed.
type OpenBorrowRow struct {
	BorrowID        string
	BorrowerID      string
	AccessionNumber string
	BookTitle       string
	DueDate         time.Time
	StoredFine      decimal.NullDecimal
}

// Exempt reports whether the row carries the "never bill again" sentinel.
func (r OpenBorrowRow) Exempt() bool {
	return r.StoredFine.Valid && r.StoredFine.Decimal.IsNegative()
}

// =============================================================================
// FINE VIEW - One row of the overdue view
// =============================================================================

// FineView is the operator-facing projection of an open record with its
// freshly computed fine. Fine is exactly zero when the record is not overdue.
type FineView struct {
	BorrowID        string
	BorrowerID      string
	BorrowerName    string
	IDNumber        string
	AccessionNumber string
	BookTitle       string
	DueDate         time.Time
	Fine            decimal.Decimal
	Overdue         bool
}
