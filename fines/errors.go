/*
errors.go - Centralized error types for the fines engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers surface these to the operator; nothing here is ever swallowed
  silently and nothing here crashes a whole view.

ERROR CATEGORIES:
  1. Store-read errors  - reconciliation query or identity lookup failures,
     isolated to their row
  2. Store-write errors - fine upsert, shelf flip, or fine-clear failures,
     non-fatal warnings that leave the ledger temporarily inconsistent
  3. Settlement errors  - abandoned or doubly-resolved payment sessions

USAGE:
  if errors.Is(err, fines.ErrStoreWrite) {
      // warn the operator; the same write is retried on a later pass
  }

SEE ALSO:
  - reconcile.go: Emits RowError per failed row
  - settlement.go: Emits StoreWriteError and ErrSettlementAbandoned
*/
package fines

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStoreRead is returned when the open-record query or a borrower
	// lookup fails. Reported per row; never aborts the batch.
	ErrStoreRead = errors.New("store read failed")

	// ErrStoreWrite is returned when a fine upsert, shelf update, or
	// fine-clear fails. Non-fatal: the write is retried on a later pass.
	ErrStoreWrite = errors.New("store write failed")

	// ErrSettlementAbandoned is returned when a session is torn down before
	// the receipt confirmation arrives. The fine stays owed and reappears on
	// the next reconciliation pass.
	ErrSettlementAbandoned = errors.New("payment unsuccessful: please complete the receipt step")

	// ErrSessionResolved is returned when a terminal session receives a
	// second confirmation or abandonment. The first delivery wins.
	ErrSessionResolved = errors.New("settlement session already resolved")

	// ErrReceiptEmit is returned when the receipt artifact could not be
	// handed to the printer. No confirmation can ever arrive for it.
	ErrReceiptEmit = errors.New("receipt emit failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RowError reports a per-row failure during reconciliation. The row degrades
// (unknown identity, stale stored fine) while the rest of the pass proceeds.
type RowError struct {
	BorrowID string
	Op       string // "lookup_borrower", "upsert_fine"
	Err      error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("reconcile %s for borrow %s: %v", e.Op, e.BorrowID, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// StoreWriteError reports a failed ledger write with enough context for the
// operator to retry manually.
type StoreWriteError struct {
	BorrowID string
	Op       string // "upsert_fine", "set_shelf_status", "clear_fine"
	Err      error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("%s for borrow %s: %v", e.Op, e.BorrowID, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return ErrStoreWrite }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsAbandoned reports whether err means the operator walked away from the
// receipt step.
func IsAbandoned(err error) bool {
	return errors.Is(err, ErrSettlementAbandoned)
}

// IsStoreWrite reports whether err is a non-fatal ledger write failure.
func IsStoreWrite(err error) bool {
	return errors.Is(err, ErrStoreWrite)
}
