/*
books.go - catalog.TxStore implementation

Row-level helpers take a querier so the same code runs against the
connection and inside transactions. Lookups prefer the non-retired row
for an identifier; status updates target the non-retired row when
retiring and the most recent retired row when reactivating.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ivbsa-designe/biblioteca-ceprereso/catalog"
)

type bookStore struct {
	s *Store
}

// WithTx executes fn within a database transaction, serialized against
// other writers.
func (bs *bookStore) WithTx(ctx context.Context, fn func(catalog.Store) error) error {
	bs.s.mu.Lock()
	defer bs.s.mu.Unlock()

	tx, err := bs.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&bookTx{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (bs *bookStore) GetBook(ctx context.Context, id string) (*catalog.Book, error) {
	bs.s.mu.RLock()
	defer bs.s.mu.RUnlock()
	return getBook(ctx, bs.s.db, id)
}

func (bs *bookStore) SaveBook(ctx context.Context, b catalog.Book) error {
	bs.s.mu.Lock()
	defer bs.s.mu.Unlock()
	return saveBook(ctx, bs.s.db, b)
}

func (bs *bookStore) SetBookStatus(ctx context.Context, id string, status catalog.Status) error {
	bs.s.mu.Lock()
	defer bs.s.mu.Unlock()
	return setBookStatus(ctx, bs.s.db, id, status)
}

func (bs *bookStore) OccupiedSlots(ctx context.Context, shelf string, level int) ([]int, error) {
	bs.s.mu.RLock()
	defer bs.s.mu.RUnlock()
	return occupiedSlots(ctx, bs.s.db, shelf, level)
}

func (bs *bookStore) VacantSlots(ctx context.Context, filter catalog.VacantFilter) ([]catalog.VacantSlot, error) {
	bs.s.mu.RLock()
	defer bs.s.mu.RUnlock()
	return vacantSlots(ctx, bs.s.db, filter)
}

func (bs *bookStore) ListBooks(ctx context.Context) ([]catalog.Book, error) {
	bs.s.mu.RLock()
	defer bs.s.mu.RUnlock()
	return listBooks(ctx, bs.s.db)
}

// bookTx is the in-transaction view. No locking: the transaction holder
// already owns the store mutex.
type bookTx struct {
	q querier
}

func (bt *bookTx) WithTx(context.Context, func(catalog.Store) error) error {
	return fmt.Errorf("nested transactions are not supported")
}

func (bt *bookTx) GetBook(ctx context.Context, id string) (*catalog.Book, error) {
	return getBook(ctx, bt.q, id)
}

func (bt *bookTx) SaveBook(ctx context.Context, b catalog.Book) error {
	return saveBook(ctx, bt.q, b)
}

func (bt *bookTx) SetBookStatus(ctx context.Context, id string, status catalog.Status) error {
	return setBookStatus(ctx, bt.q, id, status)
}

func (bt *bookTx) OccupiedSlots(ctx context.Context, shelf string, level int) ([]int, error) {
	return occupiedSlots(ctx, bt.q, shelf, level)
}

func (bt *bookTx) VacantSlots(ctx context.Context, filter catalog.VacantFilter) ([]catalog.VacantSlot, error) {
	return vacantSlots(ctx, bt.q, filter)
}

func (bt *bookTx) ListBooks(ctx context.Context) ([]catalog.Book, error) {
	return listBooks(ctx, bt.q)
}

// =============================================================================
// ROW-LEVEL HELPERS
// =============================================================================

const bookColumns = "id, title, author, genre, shelf, level, slot, status, ingested_at"

func getBook(ctx context.Context, q querier, id string) (*catalog.Book, error) {
	// Non-retired row first, then the most recent retired row.
	query := `
		SELECT ` + bookColumns + `
		FROM books
		WHERE id = ?
		ORDER BY CASE WHEN status != 'retired' THEN 0 ELSE 1 END,
		         ingested_at DESC, rowid DESC
		LIMIT 1
	`

	b, err := scanBook(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func saveBook(ctx context.Context, q querier, b catalog.Book) error {
	query := `
		INSERT INTO books (id, title, author, genre, shelf, level, slot, status, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		b.ID, b.Title, nullString(b.Author), nullString(b.Genre),
		b.Shelf, b.Level, b.Slot, b.Status,
		b.IngestedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return &catalog.SlotOccupiedError{Shelf: b.Shelf, Level: b.Level, Slot: b.Slot}
	}
	if err != nil {
		return fmt.Errorf("failed to save book: %w", err)
	}
	return nil
}

func setBookStatus(ctx context.Context, q querier, id string, status catalog.Status) error {
	var query string
	if status == catalog.StatusRetired {
		// At most one non-retired row exists per identifier.
		query = `UPDATE books SET status = ? WHERE id = ? AND status != 'retired'`
	} else {
		// Reactivation targets the most recent retired row only.
		query = `
			UPDATE books SET status = ?
			WHERE rowid = (
				SELECT rowid FROM books
				WHERE id = ? AND status = 'retired'
				ORDER BY ingested_at DESC, rowid DESC
				LIMIT 1
			)
		`
	}

	_, err := q.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update book status: %w", err)
	}
	return nil
}

func occupiedSlots(ctx context.Context, q querier, shelf string, level int) ([]int, error) {
	query := `
		SELECT slot FROM books
		WHERE shelf = ? AND level = ? AND status != 'retired'
		ORDER BY slot ASC
	`

	rows, err := q.QueryContext(ctx, query, shelf, level)
	if err != nil {
		return nil, fmt.Errorf("failed to query occupied slots: %w", err)
	}
	defer rows.Close()

	var slots []int
	for rows.Next() {
		var slot int
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

func vacantSlots(ctx context.Context, q querier, filter catalog.VacantFilter) ([]catalog.VacantSlot, error) {
	// A slot freed by retirement stops being vacant once a new book
	// is registered into it.
	query := `
		SELECT DISTINCT b.shelf, b.level, b.slot, b.id
		FROM books b
		WHERE b.status = 'retired'
		  AND NOT EXISTS (
			SELECT 1 FROM books o
			WHERE o.shelf = b.shelf AND o.level = b.level AND o.slot = b.slot
			  AND o.status != 'retired'
		  )
	`
	var args []any

	if filter.Shelf != nil {
		query += " AND b.shelf = ?"
		args = append(args, *filter.Shelf)
	}
	if filter.Level != nil {
		query += " AND b.level = ?"
		args = append(args, *filter.Level)
	}
	query += " ORDER BY b.shelf, b.level, b.slot"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vacant slots: %w", err)
	}
	defer rows.Close()

	var out []catalog.VacantSlot
	for rows.Next() {
		var v catalog.VacantSlot
		if err := rows.Scan(&v.Shelf, &v.Level, &v.Slot, &v.ID); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func listBooks(ctx context.Context, q querier) ([]catalog.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books ORDER BY id, ingested_at`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var books []catalog.Book
	for rows.Next() {
		b, err := scanBookRows(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBookFrom(sc rowScanner) (*catalog.Book, error) {
	var (
		b             catalog.Book
		author, genre sql.NullString
		ingestedAt    string
	)
	if err := sc.Scan(&b.ID, &b.Title, &author, &genre,
		&b.Shelf, &b.Level, &b.Slot, &b.Status, &ingestedAt); err != nil {
		return nil, err
	}
	b.Author = author.String
	b.Genre = genre.String
	b.IngestedAt, _ = time.Parse(time.RFC3339, ingestedAt)
	return &b, nil
}

func scanBook(row *sql.Row) (*catalog.Book, error) {
	return scanBookFrom(row)
}

func scanBookRows(rows *sql.Rows) (*catalog.Book, error) {
	return scanBookFrom(rows)
}
