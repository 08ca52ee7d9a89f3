/*
Package sqlite provides the SQLite-backed implementation of fines.Store.

PURPOSE:
  Persists the circulation ledger: borrow records, per-copy availability,
  title metadata, return rows carrying the overdue fine, and borrower
  identities. Implements the fines.Store contract consumed by the engine.

KEY TABLES:
  borrows:    One row per checkout (immutable from the engine's perspective)
  copies:     Physical copies keyed by accession number, with shelf status
  books:      Title metadata keyed by book number
  returns:    At most one row per borrow; overdue fine and return timestamps
  borrowers:  Identity records (name, id number)

WRITE SEMANTICS:
  Every engine write is a single-row upsert/update keyed by borrow id or
  accession number. No multi-row transactions span reconciliation and
  settlement; each write is its own unit of work.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

USAGE:
  store, err := sqlite.New("./data/circulation.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - fines/store.go: Interface definition
  - fines/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stacks/fines-engine/fines"
)

// Store implements fines.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Borrow records (created at checkout, never mutated by the engine)
	CREATE TABLE IF NOT EXISTS borrows (
		borrow_id TEXT PRIMARY KEY,
		borrower_id TEXT NOT NULL,
		accession_number TEXT NOT NULL,
		due_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_borrows_borrower
		ON borrows(borrower_id);
	CREATE INDEX IF NOT EXISTS idx_borrows_accession
		ON borrows(accession_number);

	-- Physical copies; shelf status lives here, keyed by accession number
	CREATE TABLE IF NOT EXISTS copies (
		accession_number TEXT PRIMARY KEY,
		book_number TEXT NOT NULL,
		on_shelf BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_copies_book
		ON copies(book_number);

	-- Title metadata
	CREATE TABLE IF NOT EXISTS books (
		book_number TEXT PRIMARY KEY,
		title TEXT NOT NULL
	);

	-- Return rows: at most one per borrow. A row with no return timestamps
	-- holds a computed fine for a still-outstanding borrow. A negative
	-- overdue_fine is the "never bill again" sentinel.
	CREATE TABLE IF NOT EXISTS returns (
		borrow_id TEXT PRIMARY KEY,
		overdue_fine TEXT,
		date_returned TEXT,
		time_returned TEXT
	);

	-- Borrower identities
	CREATE TABLE IF NOT EXISTS borrowers (
		user_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		id_number TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// fines.Store IMPLEMENTATION
// =============================================================================

// QueryOpenBorrowRecords returns every borrow with a due date and no recorded
// return, joined with copy and title metadata, in insertion order.
func (s *Store) QueryOpenBorrowRecords(ctx context.Context) ([]fines.OpenBorrowRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT b.borrow_id, b.borrower_id, b.accession_number, bk.title,
		       b.due_date, r.overdue_fine
		FROM borrows b
		INNER JOIN copies c ON b.accession_number = c.accession_number
		INNER JOIN books bk ON c.book_number = bk.book_number
		LEFT JOIN returns r ON b.borrow_id = r.borrow_id
		WHERE b.due_date IS NOT NULL AND r.date_returned IS NULL
		ORDER BY b.rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open borrows: %w", err)
	}
	defer rows.Close()

	var open []fines.OpenBorrowRow
	for rows.Next() {
		var (
			row     fines.OpenBorrowRow
			dueDate string
			fine    sql.NullString
		)
		if err := rows.Scan(&row.BorrowID, &row.BorrowerID, &row.AccessionNumber,
			&row.BookTitle, &dueDate, &fine); err != nil {
			return nil, fmt.Errorf("failed to scan borrow row: %w", err)
		}

		row.DueDate, err = time.Parse(time.RFC3339, dueDate)
		if err != nil {
			return nil, fmt.Errorf("malformed due date for borrow %s: %w", row.BorrowID, err)
		}
		if fine.Valid {
			d, err := decimal.NewFromString(fine.String)
			if err != nil {
				return nil, fmt.Errorf("malformed fine for borrow %s: %w", row.BorrowID, err)
			}
			row.StoredFine = decimal.NewNullDecimal(d)
		}

		open = append(open, row)
	}
	return open, rows.Err()
}

// GetBorrower resolves a borrower identity. Returns (nil, nil) if not found.
func (s *Store) GetBorrower(ctx context.Context, borrowerID string) (*fines.Borrower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b fines.Borrower
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, name, id_number FROM borrowers WHERE user_id = ?",
		borrowerID,
	).Scan(&b.UserID, &b.Name, &b.IDNumber)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpsertFine persists a computed fine. The return row may not exist yet and
// is created with the fine and no return timestamps.
func (s *Store) UpsertFine(ctx context.Context, borrowID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO returns (borrow_id, overdue_fine)
		VALUES (?, ?)
		ON CONFLICT(borrow_id) DO UPDATE SET
			overdue_fine = excluded.overdue_fine
	`

	_, err := s.db.ExecContext(ctx, query, borrowID, amount.String())
	if err != nil {
		return fmt.Errorf("failed to upsert fine: %w", err)
	}
	return nil
}

// ClearFine settles a fine: exactly zero, with both return timestamps set.
func (s *Store) ClearFine(ctx context.Context, borrowID string, returnedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO returns (borrow_id, overdue_fine, date_returned, time_returned)
		VALUES (?, '0', ?, ?)
		ON CONFLICT(borrow_id) DO UPDATE SET
			overdue_fine = '0',
			date_returned = excluded.date_returned,
			time_returned = excluded.time_returned
	`

	_, err := s.db.ExecContext(ctx, query, borrowID,
		returnedAt.Format("2006-01-02"), returnedAt.Format("15:04:05"))
	if err != nil {
		return fmt.Errorf("failed to clear fine: %w", err)
	}
	return nil
}

// SetShelfStatus records whether a copy is available for re-borrowing.
func (s *Store) SetShelfStatus(ctx context.Context, accessionNumber string, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE copies SET on_shelf = ? WHERE accession_number = ?",
		available, accessionNumber)
	if err != nil {
		return fmt.Errorf("failed to set shelf status: %w", err)
	}
	return nil
}

// =============================================================================
// SEEDING / ADMIN
// =============================================================================

// SaveBook stores title metadata.
func (s *Store) SaveBook(ctx context.Context, bookNumber, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO books (book_number, title)
		VALUES (?, ?)
		ON CONFLICT(book_number) DO UPDATE SET title = excluded.title
	`
	_, err := s.db.ExecContext(ctx, query, bookNumber, title)
	return err
}

// SaveCopy stores a physical copy.
func (s *Store) SaveCopy(ctx context.Context, accessionNumber, bookNumber string, onShelf bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO copies (accession_number, book_number, on_shelf)
		VALUES (?, ?, ?)
		ON CONFLICT(accession_number) DO UPDATE SET
			book_number = excluded.book_number,
			on_shelf = excluded.on_shelf
	`
	_, err := s.db.ExecContext(ctx, query, accessionNumber, bookNumber, onShelf)
	return err
}

// SaveBorrower stores an identity record.
func (s *Store) SaveBorrower(ctx context.Context, b fines.Borrower) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO borrowers (user_id, name, id_number)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			id_number = excluded.id_number
	`
	_, err := s.db.ExecContext(ctx, query, b.UserID, b.Name, b.IDNumber)
	return err
}

// SaveBorrow stores a checkout. Pass the zero time for no due date.
func (s *Store) SaveBorrow(ctx context.Context, borrowID, borrowerID, accessionNumber string, dueDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due *string
	if !dueDate.IsZero() {
		d := dueDate.Format(time.RFC3339)
		due = &d
	}

	query := `
		INSERT INTO borrows (borrow_id, borrower_id, accession_number, due_date, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(borrow_id) DO UPDATE SET
			due_date = excluded.due_date
	`
	_, err := s.db.ExecContext(ctx, query, borrowID, borrowerID, accessionNumber,
		due, time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetShelfStatus reads back a copy's availability (for admin/tests).
func (s *Store) GetShelfStatus(ctx context.Context, accessionNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var onShelf bool
	err := s.db.QueryRowContext(ctx,
		"SELECT on_shelf FROM copies WHERE accession_number = ?",
		accessionNumber).Scan(&onShelf)
	return onShelf, err
}

// ReturnRecord is a stored return row.
type ReturnRecord struct {
	BorrowID     string
	OverdueFine  decimal.NullDecimal
	DateReturned string
	TimeReturned string
}

// GetReturn reads back a return row (for admin/tests). Returns nil if no row
// exists for the borrow id.
func (s *Store) GetReturn(ctx context.Context, borrowID string) (*ReturnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		r    ReturnRecord
		fine sql.NullString
		date sql.NullString
		tm   sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT borrow_id, overdue_fine, date_returned, time_returned FROM returns WHERE borrow_id = ?",
		borrowID).Scan(&r.BorrowID, &fine, &date, &tm)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if fine.Valid {
		d, err := decimal.NewFromString(fine.String)
		if err != nil {
			return nil, fmt.Errorf("malformed fine for borrow %s: %w", borrowID, err)
		}
		r.OverdueFine = decimal.NewNullDecimal(d)
	}
	r.DateReturned = date.String
	r.TimeReturned = tm.String
	return &r, nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"returns", "borrows", "copies", "books", "borrowers"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}
