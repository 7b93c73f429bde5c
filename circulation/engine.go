/*
engine.go - Loan lifecycle

PURPOSE:
  OpenLoan and CloseLoan are the only writers of loan state. OpenLoan
  enforces the borrowing gate; CloseLoan computes the late-return penalty
  and delegates automatic sanction creation to the sanction engine. Both
  run their read-then-write sequence inside a store transaction so two
  concurrent opens on the same book cannot both commit.

POLICY CONSTANTS:
  Loan period: 14 days.
  Penalty window: [today, today + min(2*lateDays, 30)] days. The 2x
  escalation with a 30-day cap is a compatibility constant; changing it
  changes observable borrowing eligibility.

FOLIO:
  Each loan gets a generated external reference "P-<uuid>". The store
  enforces uniqueness.

SEE ALSO:
  - sanctions.go: gate query and automatic sanction creation
  - catalog/manager.go: book records the engine reads
*/
package circulation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ivbsa-designe/biblioteca-ceprereso/borrowers"
	"github.com/ivbsa-designe/biblioteca-ceprereso/catalog"
)

// Loan policy constants. Compatibility-critical; do not tune.
const (
	LoanPeriodDays = 14
	PenaltyFactor  = 2
	PenaltyMaxDays = 30
	folioPrefix    = "P-"
)

// BookCatalog is the narrow view of the catalog the engine needs.
type BookCatalog interface {
	GetBook(ctx context.Context, id string) (*catalog.Book, error)
}

// BorrowerDirectory is the narrow view of the borrower registry.
type BorrowerDirectory interface {
	GetBorrower(ctx context.Context, id string) (*borrowers.Borrower, error)
}

// Engine owns loan transitions.
type Engine struct {
	store     TxStore
	books     BookCatalog
	borrowers BorrowerDirectory
	sanctions *Sanctions

	// Now is the clock for loan and return dates. Tests override it.
	Now func() time.Time
}

// NewEngine wires the circulation engine. The sanction engine is a hard
// dependency: it gates new loans and receives late-return penalties.
func NewEngine(store TxStore, books BookCatalog, directory BorrowerDirectory, sanctions *Sanctions) *Engine {
	return &Engine{
		store:     store,
		books:     books,
		borrowers: directory,
		sanctions: sanctions,
		Now:       time.Now,
	}
}

// OpenLoan creates an open loan for borrower and book.
//
// Preconditions, checked in order:
//   - borrower exists and is active
//   - book exists and is not retired
//   - book has no open loan (the derived "loaned" flag)
//   - borrower has no active sanction covering today
func (e *Engine) OpenLoan(ctx context.Context, borrowerID, bookID string) (*Loan, error) {
	borrower, err := e.borrowers.GetBorrower(ctx, borrowerID)
	if err != nil {
		return nil, err
	}
	if borrower == nil || !borrower.Active {
		return nil, fmt.Errorf("%w: %s", borrowers.ErrBorrowerNotFound, borrowerID)
	}

	book, err := e.books.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, &catalog.BookNotFoundError{ID: bookID}
	}
	if book.Status == catalog.StatusRetired {
		return nil, &BookUnavailableError{BookID: bookID, Reason: "retired"}
	}

	today := DateOf(e.Now())

	var loan *Loan
	err = e.store.WithTx(ctx, func(s Store) error {
		open, err := s.GetOpenLoanByBook(ctx, bookID)
		if err != nil {
			return err
		}
		if open != nil {
			return &BookUnavailableError{BookID: bookID, Reason: "on loan"}
		}

		active, err := s.ActiveSanctions(ctx, borrowerID, today)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return &SanctionActiveError{BorrowerID: borrowerID}
		}

		l := Loan{
			ID:             uuid.NewString(),
			BorrowerID:     borrowerID,
			BookID:         bookID,
			Folio:          folioPrefix + uuid.NewString(),
			LoanedAt:       today,
			ExpectedReturn: today.AddDate(0, 0, LoanPeriodDays),
			Status:         LoanOpen,
		}
		if err := s.SaveLoan(ctx, l); err != nil {
			return err
		}
		loan = &l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// ReturnResult reports the outcome of a close. LateDays > 0 means an
// automatic sanction was applied.
type ReturnResult struct {
	Loan     Loan
	LateDays int
	Sanction *Sanction
}

// CloseLoan closes the open loan matching the folio and computes
// lateDays = max(0, days past the expected return date). Late returns
// create an automatic sanction starting today.
func (e *Engine) CloseLoan(ctx context.Context, folio string) (*ReturnResult, error) {
	today := DateOf(e.Now())

	var result *ReturnResult
	err := e.store.WithTx(ctx, func(s Store) error {
		loan, err := s.GetOpenLoanByFolio(ctx, folio)
		if err != nil {
			return err
		}
		if loan == nil {
			return fmt.Errorf("%w: folio %s", ErrLoanNotFound, folio)
		}

		if err := s.MarkLoanReturned(ctx, loan.ID, today); err != nil {
			return err
		}
		loan.Status = LoanReturned
		loan.ReturnedAt = &today

		lateDays := DaysBetween(loan.ExpectedReturn, today)
		if lateDays < 0 {
			lateDays = 0
		}

		result = &ReturnResult{Loan: *loan, LateDays: lateDays}
		if lateDays == 0 {
			return nil
		}

		sanction, err := e.sanctions.createLateReturn(ctx, s, loan.BorrowerID, folio, lateDays, today)
		if err != nil {
			return err
		}
		result.Sanction = sanction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// IsLoaned reports the derived availability flag for a book.
func (e *Engine) IsLoaned(ctx context.Context, bookID string) (bool, error) {
	open, err := e.store.GetOpenLoanByBook(ctx, bookID)
	if err != nil {
		return false, err
	}
	return open != nil, nil
}

// Loans returns loans matching the filter.
func (e *Engine) Loans(ctx context.Context, filter LoanFilter) ([]Loan, error) {
	return e.store.ListLoans(ctx, filter)
}
