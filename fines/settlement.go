/*
settlement.go - The payment session state machine

PURPOSE:
  A Session is a short-lived state machine created when the operator pays the
  fine on one record. It ties the physical receipt-printing step to the
  logical clearing of the fine.

STATES:
  Initiated -> ReceiptEmitted -> {Confirmed, Unconfirmed}

  Initiated:      entry flips the copy's shelf status back to available. This
                  is eager and is NOT rolled back if settlement later fails.
  ReceiptEmitted: the receipt artifact has been handed to the Printer.
  Confirmed:      the printer signal arrived; the fine is cleared to exactly
                  zero and both return timestamps are stamped. If that write
                  fails the session stays Confirmed but the ledger is left
                  unreconciled; the caller must surface it for manual
                  follow-up.
  Unconfirmed:    the environment abandoned the workflow before confirmation.
                  No ledger mutation. The fine reappears on the next pass.

ONE-SHOT RESOLUTION:
  Confirm and Abandon race; the first terminal delivery wins and later ones
  get ErrSessionResolved. Done() exposes terminality to waiters as a closed
  channel. Terminal state lives on the session itself, never in shared
  process state, so concurrent sessions cannot interfere with each other's
  outcome.

KNOWN GAPS (preserved from the system this replaces):
  - No locking against reconciliation: a pass that recomputes the fine while
    a session is open does not change the amount captured at initiation.
  - The shelf flip happens before payment is confirmed and survives an
    abandoned session.
  - No timeout: a session can sit in ReceiptEmitted until the environment
    delivers confirmation or abandonment.

SEE ALSO:
  - receipt.go: The emitted artifact
  - store.go: ClearFine and SetShelfStatus contracts
*/
package fines

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SESSION STATES
// =============================================================================

type SessionState string

const (
	StateInitiated      SessionState = "initiated"
	StateReceiptEmitted SessionState = "receipt_emitted"
	StateConfirmed      SessionState = "confirmed"
	StateUnconfirmed    SessionState = "unconfirmed"
)

// Terminal reports whether the state machine can no longer move.
func (s SessionState) Terminal() bool {
	return s == StateConfirmed || s == StateUnconfirmed
}

// =============================================================================
// SNAPSHOT - The record as the operator saw it at payment initiation
// =============================================================================

// Snapshot captures identity and amount at session start. The session settles
// with this amount even if a reconciliation pass recomputes a higher fine
// mid-flight.
type Snapshot struct {
	BorrowID        string
	BorrowerName    string
	IDNumber        string
	AccessionNumber string
	BookTitle       string
	Fine            decimal.Decimal
}

// =============================================================================
// SESSION
// =============================================================================

// Session settles the fine on exactly one borrow record. Create one per
// payment with Begin; never two live sessions for the same borrow id (caller
// precondition; violating it can double-flip shelf status and duplicate
// receipts).
type Session struct {
	store   Store
	printer Printer

	mu       sync.Mutex
	state    SessionState
	snapshot Snapshot
	receipt  Receipt
	done     chan struct{}

	// shelfErr records a failed shelf flip at initiation. Non-fatal.
	shelfErr error
}

// Begin creates a session for one record and runs it to ReceiptEmitted.
//
// Entry actions, in order:
//  1. Flip the copy's shelf status to available (eager, never rolled back;
//     a failure here is recorded as a warning and the session proceeds).
//  2. Build the receipt and hand it to the printer. If the printer rejects
//     it no confirmation can ever arrive, so Begin fails. Note the shelf
//     flip from step 1 has already been committed.
func Begin(ctx context.Context, store Store, printer Printer, snap Snapshot) (*Session, error) {
	s := &Session{
		store:    store,
		printer:  printer,
		state:    StateInitiated,
		snapshot: snap,
		done:     make(chan struct{}),
	}

	if err := store.SetShelfStatus(ctx, snap.AccessionNumber, true); err != nil {
		s.shelfErr = &StoreWriteError{BorrowID: snap.BorrowID, Op: "set_shelf_status", Err: err}
	}

	s.receipt = NewReceipt(snap)
	if err := printer.Print(ctx, s.receipt); err != nil {
		return nil, fmt.Errorf("borrow %s: %w: %v", snap.BorrowID, ErrReceiptEmit, err)
	}
	s.state = StateReceiptEmitted

	return s, nil
}

// Confirm delivers the "document produced" signal. On the first delivery the
// session becomes Confirmed and the fine is cleared: overdue fine exactly
// zero, return date and time stamped from now.
//
// A failed clear returns a StoreWriteError; the session stays Confirmed and
// the ledger must be reconciled manually.
func (s *Session) Confirm(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return ErrSessionResolved
	}
	s.state = StateConfirmed
	close(s.done)
	s.mu.Unlock()

	if err := s.store.ClearFine(ctx, s.snapshot.BorrowID, now); err != nil {
		return &StoreWriteError{BorrowID: s.snapshot.BorrowID, Op: "clear_fine", Err: err}
	}
	return nil
}

// Abandon delivers the abandonment signal: the operator navigated away
// before the receipt was confirmed. No ledger mutation happens; the shelf
// flip from initiation is the sole side effect already committed.
//
// Returns ErrSettlementAbandoned (the user-visible outcome) on the first
// delivery, ErrSessionResolved afterwards.
func (s *Session) Abandon() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return ErrSessionResolved
	}
	s.state = StateUnconfirmed
	close(s.done)
	return ErrSettlementAbandoned
}

// State returns the current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Receipt returns the emitted artifact.
func (s *Session) Receipt() Receipt { return s.receipt }

// Snapshot returns the record snapshot captured at initiation.
func (s *Session) Snapshot() Snapshot { return s.snapshot }

// ShelfWarning returns the non-fatal shelf flip failure from initiation, if
// any.
func (s *Session) ShelfWarning() error { return s.shelfErr }
