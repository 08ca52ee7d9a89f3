// Package store provides an in-memory fines.Store implementation
// (for testing/dev).
package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stacks/fines-engine/fines"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	borrows   []borrowRow
	returns   map[string]*returnRow
	borrowers map[string]fines.Borrower
	shelf     map[string]bool

	// Failure injection for tests. Zero values mean "never fail".
	LookupErr map[string]error // borrowerID -> error
	UpsertErr map[string]error // borrowID -> error
	ClearErr  error
	ShelfErr  error
}

type borrowRow struct {
	borrowID        string
	borrowerID      string
	accessionNumber string
	bookTitle       string
	dueDate         time.Time
}

type returnRow struct {
	fine         decimal.NullDecimal
	dateReturned string
	timeReturned string
}

func NewMemory() *Memory {
	return &Memory{
		returns:   make(map[string]*returnRow),
		borrowers: make(map[string]fines.Borrower),
		shelf:     make(map[string]bool),
	}
}

// =============================================================================
// SEEDING
// =============================================================================

// AddBorrow seeds an outstanding borrow record.
func (m *Memory) AddBorrow(borrowID, borrowerID, accessionNumber, bookTitle string, dueDate time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.borrows = append(m.borrows, borrowRow{
		borrowID:        borrowID,
		borrowerID:      borrowerID,
		accessionNumber: accessionNumber,
		bookTitle:       bookTitle,
		dueDate:         dueDate,
	})
}

// AddBorrower seeds an identity record.
func (m *Memory) AddBorrower(b fines.Borrower) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.borrowers[b.UserID] = b
}

// SetStoredFine seeds a pre-existing fine value (use a negative amount for
// the exemption sentinel).
func (m *Memory) SetStoredFine(borrowID string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returns[borrowID] = &returnRow{fine: decimal.NewNullDecimal(amount)}
}

// =============================================================================
// fines.Store IMPLEMENTATION
// =============================================================================

func (m *Memory) QueryOpenBorrowRecords(_ context.Context) ([]fines.OpenBorrowRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []fines.OpenBorrowRow
	for _, b := range m.borrows {
		ret := m.returns[b.borrowID]
		if ret != nil && ret.dateReturned != "" {
			continue // returned, not open
		}
		row := fines.OpenBorrowRow{
			BorrowID:        b.borrowID,
			BorrowerID:      b.borrowerID,
			AccessionNumber: b.accessionNumber,
			BookTitle:       b.bookTitle,
			DueDate:         b.dueDate,
		}
		if ret != nil {
			row.StoredFine = ret.fine
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (m *Memory) GetBorrower(_ context.Context, borrowerID string) (*fines.Borrower, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.LookupErr[borrowerID]; err != nil {
		return nil, err
	}
	b, ok := m.borrowers[borrowerID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Memory) UpsertFine(_ context.Context, borrowID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.UpsertErr[borrowID]; err != nil {
		return err
	}
	ret := m.returns[borrowID]
	if ret == nil {
		ret = &returnRow{}
		m.returns[borrowID] = ret
	}
	ret.fine = decimal.NewNullDecimal(amount)
	return nil
}

func (m *Memory) ClearFine(_ context.Context, borrowID string, returnedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ClearErr != nil {
		return m.ClearErr
	}
	ret := m.returns[borrowID]
	if ret == nil {
		ret = &returnRow{}
		m.returns[borrowID] = ret
	}
	ret.fine = decimal.NewNullDecimal(decimal.Zero)
	ret.dateReturned = returnedAt.Format("2006-01-02")
	ret.timeReturned = returnedAt.Format("15:04:05")
	return nil
}

func (m *Memory) SetShelfStatus(_ context.Context, accessionNumber string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ShelfErr != nil {
		return m.ShelfErr
	}
	m.shelf[accessionNumber] = available
	return nil
}

// =============================================================================
// INSPECTION (for tests)
// =============================================================================

// StoredFine returns the persisted fine for a borrow id, if any.
func (m *Memory) StoredFine(borrowID string) (decimal.Decimal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ret := m.returns[borrowID]
	if ret == nil || !ret.fine.Valid {
		return decimal.Zero, false
	}
	return ret.fine.Decimal, true
}

// ReturnTimestamps returns the stamped return date and time for a borrow id.
func (m *Memory) ReturnTimestamps(borrowID string) (dateReturned, timeReturned string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ret := m.returns[borrowID]
	if ret == nil {
		return "", ""
	}
	return ret.dateReturned, ret.timeReturned
}

// ShelfStatus returns the recorded availability for an accession number.
func (m *Memory) ShelfStatus(accessionNumber string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shelf[accessionNumber]
}
