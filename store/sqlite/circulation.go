/*
circulation.go - circulation.TxStore implementation

Loans and sanctions share one view because closing a late loan writes to
both tables inside one transaction. Folio uniqueness and the single open
loan per book are enforced by indexes (see sqlite.go).
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ivbsa-designe/biblioteca-ceprereso/circulation"
)

type circStore struct {
	s *Store
}

func (cs *circStore) WithTx(ctx context.Context, fn func(circulation.Store) error) error {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()

	tx, err := cs.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&circTx{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (cs *circStore) SaveLoan(ctx context.Context, l circulation.Loan) error {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	return saveLoan(ctx, cs.s.db, l)
}

func (cs *circStore) GetOpenLoanByFolio(ctx context.Context, folio string) (*circulation.Loan, error) {
	cs.s.mu.RLock()
	defer cs.s.mu.RUnlock()
	return getOpenLoan(ctx, cs.s.db, "folio = ?", folio)
}

func (cs *circStore) GetOpenLoanByBook(ctx context.Context, bookID string) (*circulation.Loan, error) {
	cs.s.mu.RLock()
	defer cs.s.mu.RUnlock()
	return getOpenLoan(ctx, cs.s.db, "book_id = ?", bookID)
}

func (cs *circStore) MarkLoanReturned(ctx context.Context, loanID string, returnedAt time.Time) error {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	return markLoanReturned(ctx, cs.s.db, loanID, returnedAt)
}

func (cs *circStore) ListLoans(ctx context.Context, filter circulation.LoanFilter) ([]circulation.Loan, error) {
	cs.s.mu.RLock()
	defer cs.s.mu.RUnlock()
	return listLoans(ctx, cs.s.db, filter)
}

func (cs *circStore) SaveSanction(ctx context.Context, sn circulation.Sanction) error {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	return saveSanction(ctx, cs.s.db, sn)
}

func (cs *circStore) GetSanction(ctx context.Context, id string) (*circulation.Sanction, error) {
	cs.s.mu.RLock()
	defer cs.s.mu.RUnlock()
	return getSanction(ctx, cs.s.db, id)
}

func (cs *circStore) ActiveSanctions(ctx context.Context, borrowerID string, today time.Time) ([]circulation.Sanction, error) {
	cs.s.mu.RLock()
	defer cs.s.mu.RUnlock()
	return activeSanctions(ctx, cs.s.db, borrowerID, today)
}

func (cs *circStore) ListSanctions(ctx context.Context, filter circulation.SanctionFilter) ([]circulation.Sanction, error) {
	cs.s.mu.RLock()
	defer cs.s.mu.RUnlock()
	return listSanctions(ctx, cs.s.db, filter)
}

func (cs *circStore) RevokeSanction(ctx context.Context, id, adminID, notes string, revokedAt time.Time) (bool, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	return revokeSanction(ctx, cs.s.db, id, adminID, notes, revokedAt)
}

type circTx struct {
	q querier
}

func (ct *circTx) WithTx(context.Context, func(circulation.Store) error) error {
	return fmt.Errorf("nested transactions are not supported")
}

func (ct *circTx) SaveLoan(ctx context.Context, l circulation.Loan) error {
	return saveLoan(ctx, ct.q, l)
}

func (ct *circTx) GetOpenLoanByFolio(ctx context.Context, folio string) (*circulation.Loan, error) {
	return getOpenLoan(ctx, ct.q, "folio = ?", folio)
}

func (ct *circTx) GetOpenLoanByBook(ctx context.Context, bookID string) (*circulation.Loan, error) {
	return getOpenLoan(ctx, ct.q, "book_id = ?", bookID)
}

func (ct *circTx) MarkLoanReturned(ctx context.Context, loanID string, returnedAt time.Time) error {
	return markLoanReturned(ctx, ct.q, loanID, returnedAt)
}

func (ct *circTx) ListLoans(ctx context.Context, filter circulation.LoanFilter) ([]circulation.Loan, error) {
	return listLoans(ctx, ct.q, filter)
}

func (ct *circTx) SaveSanction(ctx context.Context, sn circulation.Sanction) error {
	return saveSanction(ctx, ct.q, sn)
}

func (ct *circTx) GetSanction(ctx context.Context, id string) (*circulation.Sanction, error) {
	return getSanction(ctx, ct.q, id)
}

func (ct *circTx) ActiveSanctions(ctx context.Context, borrowerID string, today time.Time) ([]circulation.Sanction, error) {
	return activeSanctions(ctx, ct.q, borrowerID, today)
}

func (ct *circTx) ListSanctions(ctx context.Context, filter circulation.SanctionFilter) ([]circulation.Sanction, error) {
	return listSanctions(ctx, ct.q, filter)
}

func (ct *circTx) RevokeSanction(ctx context.Context, id, adminID, notes string, revokedAt time.Time) (bool, error) {
	return revokeSanction(ctx, ct.q, id, adminID, notes, revokedAt)
}

// =============================================================================
// LOAN ROW HELPERS
// =============================================================================

const loanColumns = "id, borrower_id, book_id, folio, loaned_at, expected_return, returned_at, status"

func saveLoan(ctx context.Context, q querier, l circulation.Loan) error {
	query := `
		INSERT INTO loans (id, borrower_id, book_id, folio, loaned_at, expected_return, returned_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		l.ID, l.BorrowerID, l.BookID, l.Folio,
		l.LoanedAt.Format(dateLayout),
		l.ExpectedReturn.Format(dateLayout),
		nullDate(l.ReturnedAt),
		l.Status,
	)
	if isUniqueConstraintError(err) {
		return &circulation.BookUnavailableError{BookID: l.BookID, Reason: "on loan"}
	}
	if err != nil {
		return fmt.Errorf("failed to save loan: %w", err)
	}
	return nil
}

func getOpenLoan(ctx context.Context, q querier, where string, arg any) (*circulation.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE ` + where + ` AND status = 'open'`

	l, err := scanLoan(q.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func markLoanReturned(ctx context.Context, q querier, loanID string, returnedAt time.Time) error {
	query := `
		UPDATE loans SET status = 'returned', returned_at = ?
		WHERE id = ? AND status = 'open'
	`

	_, err := q.ExecContext(ctx, query, returnedAt.Format(dateLayout), loanID)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	return nil
}

func listLoans(ctx context.Context, q querier, filter circulation.LoanFilter) ([]circulation.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE 1=1`
	var args []any

	if filter.BorrowerID != nil {
		query += " AND borrower_id = ?"
		args = append(args, *filter.BorrowerID)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	query += " ORDER BY loaned_at DESC, id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var loans []circulation.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, *l)
	}
	return loans, rows.Err()
}

func scanLoan(sc rowScanner) (*circulation.Loan, error) {
	var (
		l                        circulation.Loan
		loanedAt, expectedReturn string
		returnedAt               sql.NullString
	)
	if err := sc.Scan(&l.ID, &l.BorrowerID, &l.BookID, &l.Folio,
		&loanedAt, &expectedReturn, &returnedAt, &l.Status); err != nil {
		return nil, err
	}
	l.LoanedAt = parseDate(loanedAt)
	l.ExpectedReturn = parseDate(expectedReturn)
	if returnedAt.Valid {
		t := parseDate(returnedAt.String)
		l.ReturnedAt = &t
	}
	return &l, nil
}

// =============================================================================
// SANCTION ROW HELPERS
// =============================================================================

const sanctionColumns = "id, borrower_id, start_date, end_date, reason, kind, active, authorized_by, revoked_at, revoked_by, revocation_notes, created_at"

func saveSanction(ctx context.Context, q querier, s circulation.Sanction) error {
	query := `
		INSERT INTO sanctions (id, borrower_id, start_date, end_date, reason, kind,
			active, authorized_by, revoked_at, revoked_by, revocation_notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		s.ID, s.BorrowerID,
		s.Start.Format(dateLayout), s.End.Format(dateLayout),
		s.Reason, s.Kind, s.Active,
		nullString(s.AuthorizedBy),
		nullDate(s.RevokedAt),
		nullString(s.RevokedBy),
		nullString(s.RevocationNotes),
		s.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save sanction: %w", err)
	}
	return nil
}

func getSanction(ctx context.Context, q querier, id string) (*circulation.Sanction, error) {
	query := `SELECT ` + sanctionColumns + ` FROM sanctions WHERE id = ?`

	s, err := scanSanction(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func activeSanctions(ctx context.Context, q querier, borrowerID string, today time.Time) ([]circulation.Sanction, error) {
	// ISO date strings compare correctly as text.
	query := `
		SELECT ` + sanctionColumns + ` FROM sanctions
		WHERE borrower_id = ? AND active = 1 AND ? BETWEEN start_date AND end_date
		ORDER BY start_date DESC
	`

	return querySanctions(ctx, q, query, borrowerID, today.Format(dateLayout))
}

func listSanctions(ctx context.Context, q querier, filter circulation.SanctionFilter) ([]circulation.Sanction, error) {
	query := `SELECT ` + sanctionColumns + ` FROM sanctions WHERE 1=1`
	var args []any

	if filter.BorrowerID != nil {
		query += " AND borrower_id = ?"
		args = append(args, *filter.BorrowerID)
	}
	if filter.ActiveOnly {
		query += " AND active = 1"
	}
	query += " ORDER BY start_date DESC, created_at DESC"

	return querySanctions(ctx, q, query, args...)
}

func revokeSanction(ctx context.Context, q querier, id, adminID, notes string, revokedAt time.Time) (bool, error) {
	// Matches active rows only: an already-revoked sanction reports 0
	// affected rows and the engine translates that to NotFound.
	query := `
		UPDATE sanctions
		SET active = 0, revoked_at = ?, revoked_by = ?, revocation_notes = ?
		WHERE id = ? AND active = 1
	`

	res, err := q.ExecContext(ctx, query, revokedAt.Format(dateLayout), adminID, notes, id)
	if err != nil {
		return false, fmt.Errorf("failed to revoke sanction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func querySanctions(ctx context.Context, q querier, query string, args ...any) ([]circulation.Sanction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sanctions: %w", err)
	}
	defer rows.Close()

	var out []circulation.Sanction
	for rows.Next() {
		s, err := scanSanction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSanction(sc rowScanner) (*circulation.Sanction, error) {
	var (
		s                                  circulation.Sanction
		start, end, createdAt              string
		authorizedBy, revokedAt, revokedBy sql.NullString
		revocationNotes                    sql.NullString
	)
	if err := sc.Scan(&s.ID, &s.BorrowerID, &start, &end, &s.Reason, &s.Kind,
		&s.Active, &authorizedBy, &revokedAt, &revokedBy, &revocationNotes, &createdAt); err != nil {
		return nil, err
	}
	s.Start = parseDate(start)
	s.End = parseDate(end)
	s.AuthorizedBy = authorizedBy.String
	s.RevokedBy = revokedBy.String
	s.RevocationNotes = revocationNotes.String
	if revokedAt.Valid {
		t := parseDate(revokedAt.String)
		s.RevokedAt = &t
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &s, nil
}
