/*
store.go - Collaborator interfaces consumed by the engine

PURPOSE:
  Defines the behavioral contracts the engine calls into. The Store owns the
  circulation ledger and the identity lookup; the Printer owns the physical
  receipt beyond the single "document produced" signal. Implementations live
  elsewhere (store/sqlite for production, fines/store for tests).

WRITE SEMANTICS:
  Every write is a single-row upsert/update keyed by borrow id and is assumed
  individually atomic at the store level. No transaction spans reconciliation
  and settlement: the shelf flip and the later fine clear are separate units
  of work. The engine never retries a failed write automatically.

SEE ALSO:
  - store/sqlite/sqlite.go: Production implementation
  - fines/store/memory.go: In-memory implementation for testing
*/
package fines

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Circulation ledger and identity lookup
// =============================================================================

// Store is the single shared mutable resource the engine writes to.
type Store interface {
	// QueryOpenBorrowRecords returns every borrow with a due date and no
	// recorded return, joined with copy and title metadata, in the store's
	// natural order.
	QueryOpenBorrowRecords(ctx context.Context) ([]OpenBorrowRow, error)

	// GetBorrower resolves identity for a borrower id.
	// Returns (nil, nil) when no such borrower exists.
	GetBorrower(ctx context.Context, borrowerID string) (*Borrower, error)

	// UpsertFine persists a freshly computed fine for a borrow id. A return
	// row may not exist yet and must be created with the fine and no return
	// timestamps.
	UpsertFine(ctx context.Context, borrowID string, amount decimal.Decimal) error

	// ClearFine settles a fine: overdue fine becomes exactly zero and both
	// return timestamps are stamped from returnedAt.
	ClearFine(ctx context.Context, borrowID string, returnedAt time.Time) error

	// SetShelfStatus records whether the physical copy is available for
	// re-borrowing.
	SetShelfStatus(ctx context.Context, accessionNumber string, available bool) error
}

// =============================================================================
// PRINTER - Receipt artifact sink
// =============================================================================

// Printer receives the receipt artifact for display or printing. Producing
// the document and confirming it are separate steps: confirmation arrives
// later through the session, or never.
type Printer interface {
	Print(ctx context.Context, receipt Receipt) error
}
