/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements catalog.TxStore, borrowers.TxStore and circulation.TxStore
  over a single SQLite database. One Store holds the connection; the
  Books/Borrowers/Circulation accessors hand out the typed views.

KEY TABLES:
  books:      catalog records; retired rows are kept for history
  borrowers:  PPL registry with composite location identifiers
  loans:      circulation records with a unique folio
  sanctions:  borrowing bans, manual and automatic

OCCUPANCY ENFORCEMENT:
  A partial unique index on (shelf, level, slot) WHERE status != 'retired'
  backs the at-most-one-occupant invariant at the database level, so even
  a racing registration that slips past the allocator fails on commit.
  The same applies to the one-open-loan-per-book invariant and to folio
  uniqueness.

TRANSACTIONS:
  WithTx wraps every multi-step operation (register, open loan, close
  loan) in a single database transaction. A failure rolls the whole
  operation back; no entity is left in an intermediate state.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of WAL mode. Multiple
  readers don't block; a single writer at a time.

DATES:
  Loan and sanction dates are stored as YYYY-MM-DD strings (the engine
  works at day granularity); record timestamps are RFC3339.

SEE ALSO:
  - catalog/types.go, circulation/types.go, borrowers/registry.go:
    interface definitions
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ivbsa-designe/biblioteca-ceprereso/borrowers"
	"github.com/ivbsa-designe/biblioteca-ceprereso/catalog"
	"github.com/ivbsa-designe/biblioteca-ceprereso/circulation"
)

const dateLayout = "2006-01-02"

// querier is satisfied by both *sql.DB and *sql.Tx so the row-level
// helpers run inside and outside transactions unchanged.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements all storage interfaces using SQLite.
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

// Books returns the catalog view of the store.
func (s *Store) Books() catalog.TxStore { return &bookStore{s: s} }

// Borrowers returns the registry view of the store.
func (s *Store) Borrowers() borrowers.TxStore { return &borrowerStore{s: s} }

// Circulation returns the loan and sanction view of the store.
func (s *Store) Circulation() circulation.TxStore { return &circStore{s: s} }

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Catalog. Retired rows persist, so an identifier may repeat across
	-- history; uniqueness holds among non-retired rows only.
	CREATE TABLE IF NOT EXISTS books (
		id TEXT NOT NULL,
		title TEXT NOT NULL,
		author TEXT,
		genre TEXT,
		shelf TEXT NOT NULL,
		level INTEGER NOT NULL,
		slot INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'available',
		ingested_at TEXT NOT NULL
	);

	-- CRITICAL: at most one non-retired occupant per (shelf, level, slot).
	CREATE UNIQUE INDEX IF NOT EXISTS idx_books_slot_occupancy
		ON books(shelf, level, slot) WHERE status != 'retired';
	CREATE INDEX IF NOT EXISTS idx_books_id ON books(id);
	CREATE INDEX IF NOT EXISTS idx_books_shelf_level ON books(shelf, level);

	-- Borrower registry
	CREATE TABLE IF NOT EXISTS borrowers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		dormitory TEXT NOT NULL,
		section TEXT NOT NULL,
		cell TEXT NOT NULL,
		consecutive INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_borrowers_location
		ON borrowers(dormitory, section, cell);

	-- Loans
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		borrower_id TEXT NOT NULL,
		book_id TEXT NOT NULL,
		folio TEXT NOT NULL UNIQUE,
		loaned_at TEXT NOT NULL,
		expected_return TEXT NOT NULL,
		returned_at TEXT,
		status TEXT NOT NULL DEFAULT 'open'
	);

	-- CRITICAL: at most one open loan per book (derived "loaned" flag).
	CREATE UNIQUE INDEX IF NOT EXISTS idx_loans_open_book
		ON loans(book_id) WHERE status = 'open';
	CREATE INDEX IF NOT EXISTS idx_loans_borrower ON loans(borrower_id);
	CREATE INDEX IF NOT EXISTS idx_loans_folio ON loans(folio);

	-- Sanctions
	CREATE TABLE IF NOT EXISTS sanctions (
		id TEXT PRIMARY KEY,
		borrower_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		reason TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'manual',
		active INTEGER NOT NULL DEFAULT 1,
		authorized_by TEXT,
		revoked_at TEXT,
		revoked_by TEXT,
		revocation_notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sanctions_borrower_active
		ON sanctions(borrower_id, active);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"loans", "sanctions", "books", "borrowers"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
