// borrowers.go - borrowers.TxStore implementation.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ivbsa-designe/biblioteca-ceprereso/borrowers"
)

type borrowerStore struct {
	s *Store
}

func (rs *borrowerStore) WithTx(ctx context.Context, fn func(borrowers.Store) error) error {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	tx, err := rs.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&borrowerTx{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (rs *borrowerStore) GetBorrower(ctx context.Context, id string) (*borrowers.Borrower, error) {
	rs.s.mu.RLock()
	defer rs.s.mu.RUnlock()
	return getBorrower(ctx, rs.s.db, id)
}

func (rs *borrowerStore) SaveBorrower(ctx context.Context, b borrowers.Borrower) error {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()
	return saveBorrower(ctx, rs.s.db, b)
}

func (rs *borrowerStore) SetBorrowerActive(ctx context.Context, id string, active bool) error {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()
	return setBorrowerActive(ctx, rs.s.db, id, active)
}

func (rs *borrowerStore) CountAtLocation(ctx context.Context, dormitory, section, cell string) (int, error) {
	rs.s.mu.RLock()
	defer rs.s.mu.RUnlock()
	return countAtLocation(ctx, rs.s.db, dormitory, section, cell)
}

func (rs *borrowerStore) ListBorrowers(ctx context.Context) ([]borrowers.Borrower, error) {
	rs.s.mu.RLock()
	defer rs.s.mu.RUnlock()
	return listBorrowers(ctx, rs.s.db)
}

type borrowerTx struct {
	q querier
}

func (bt *borrowerTx) WithTx(context.Context, func(borrowers.Store) error) error {
	return fmt.Errorf("nested transactions are not supported")
}

func (bt *borrowerTx) GetBorrower(ctx context.Context, id string) (*borrowers.Borrower, error) {
	return getBorrower(ctx, bt.q, id)
}

func (bt *borrowerTx) SaveBorrower(ctx context.Context, b borrowers.Borrower) error {
	return saveBorrower(ctx, bt.q, b)
}

func (bt *borrowerTx) SetBorrowerActive(ctx context.Context, id string, active bool) error {
	return setBorrowerActive(ctx, bt.q, id, active)
}

func (bt *borrowerTx) CountAtLocation(ctx context.Context, dormitory, section, cell string) (int, error) {
	return countAtLocation(ctx, bt.q, dormitory, section, cell)
}

func (bt *borrowerTx) ListBorrowers(ctx context.Context) ([]borrowers.Borrower, error) {
	return listBorrowers(ctx, bt.q)
}

// =============================================================================
// ROW-LEVEL HELPERS
// =============================================================================

const borrowerColumns = "id, name, dormitory, section, cell, consecutive, active"

func getBorrower(ctx context.Context, q querier, id string) (*borrowers.Borrower, error) {
	query := `SELECT ` + borrowerColumns + ` FROM borrowers WHERE id = ?`

	var b borrowers.Borrower
	err := q.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.Name, &b.Dormitory, &b.Section, &b.Cell, &b.Consecutive, &b.Active,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func saveBorrower(ctx context.Context, q querier, b borrowers.Borrower) error {
	query := `
		INSERT INTO borrowers (id, name, dormitory, section, cell, consecutive, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		b.ID, b.Name, b.Dormitory, b.Section, b.Cell, b.Consecutive, b.Active,
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: %s", borrowers.ErrBorrowerExists, b.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to save borrower: %w", err)
	}
	return nil
}

func setBorrowerActive(ctx context.Context, q querier, id string, active bool) error {
	_, err := q.ExecContext(ctx, "UPDATE borrowers SET active = ? WHERE id = ?", active, id)
	if err != nil {
		return fmt.Errorf("failed to update borrower: %w", err)
	}
	return nil
}

func countAtLocation(ctx context.Context, q querier, dormitory, section, cell string) (int, error) {
	query := `
		SELECT COUNT(*) FROM borrowers
		WHERE dormitory = ? AND section = ? AND cell = ?
	`

	var count int
	err := q.QueryRowContext(ctx, query, dormitory, section, cell).Scan(&count)
	return count, err
}

func listBorrowers(ctx context.Context, q querier) ([]borrowers.Borrower, error) {
	query := `SELECT ` + borrowerColumns + ` FROM borrowers ORDER BY id`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query borrowers: %w", err)
	}
	defer rows.Close()

	var out []borrowers.Borrower
	for rows.Next() {
		var b borrowers.Borrower
		if err := rows.Scan(&b.ID, &b.Name, &b.Dormitory, &b.Section, &b.Cell, &b.Consecutive, &b.Active); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
