/*
Package circulation owns the loan lifecycle and sanction records.

PURPOSE:
  Loans move open -> returned. Opening a loan enforces the borrowing gate
  (no active sanction, book not already out); closing one computes the
  late-return penalty and, when late, creates an automatic sanction. The
  sanction engine also handles manual sanctions and one-way revocation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Loan: borrower/book pairing with a unique folio reference
  - Sanction: a borrowing ban over an inclusive [start, end] date window
  - Store/TxStore: combined loan+sanction persistence

DERIVED AVAILABILITY:
  Whether a book is "loaned" is derived from the existence of an open loan
  referencing it. There is no separately mutable boolean, so the flag can
  never diverge from the loan table.

SEE ALSO:
  - engine.go: OpenLoan / CloseLoan
  - sanctions.go: sanction creation, activity window, revocation
*/
package circulation

import (
	"context"
	"time"
)

// LoanStatus is the loan state machine: open -> returned (terminal).
type LoanStatus string

const (
	LoanOpen     LoanStatus = "open"
	LoanReturned LoanStatus = "returned"
)

// Loan pairs a borrower with a book under a unique folio.
type Loan struct {
	ID             string
	BorrowerID     string
	BookID         string
	Folio          string
	LoanedAt       time.Time // date granularity
	ExpectedReturn time.Time
	ReturnedAt     *time.Time
	Status         LoanStatus
}

// SanctionKind distinguishes manual sanctions from automatic late-return
// penalties.
type SanctionKind string

const (
	SanctionManual     SanctionKind = "manual"
	SanctionLateReturn SanctionKind = "late_return"
)

// Sanction is a borrowing ban. Active means the flag is set AND today
// falls within [Start, End] inclusive. Revocation clears the flag and is
// irreversible.
type Sanction struct {
	ID              string
	BorrowerID      string
	Start           time.Time // date granularity, inclusive
	End             time.Time // inclusive
	Reason          string
	Kind            SanctionKind
	Active          bool
	AuthorizedBy    string
	RevokedAt       *time.Time
	RevokedBy       string
	RevocationNotes string
	CreatedAt       time.Time
}

// Covers reports whether the sanction window contains the given date.
func (s Sanction) Covers(day time.Time) bool {
	d := DateOf(day)
	return !d.Before(DateOf(s.Start)) && !d.After(DateOf(s.End))
}

// LoanFilter narrows ListLoans. Nil fields match everything.
type LoanFilter struct {
	BorrowerID *string
	Status     *LoanStatus
}

// SanctionFilter narrows ListSanctions.
type SanctionFilter struct {
	BorrowerID *string
	ActiveOnly bool
}

// =============================================================================
// DATE HELPERS - loans and sanctions work at day granularity
// =============================================================================

// DateOf truncates a timestamp to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b (negative when
// b precedes a).
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// =============================================================================
// STORE - Combined loan and sanction persistence
// =============================================================================

// Store handles loans and sanctions together: closing a late loan writes
// to both record sets in one transaction. Get methods return (nil, nil)
// when no record matches.
type Store interface {
	// SaveLoan inserts a new loan. The folio carries a uniqueness
	// constraint; a duplicate insert fails.
	SaveLoan(ctx context.Context, l Loan) error

	// GetOpenLoanByFolio returns the open loan with the folio, or nil.
	GetOpenLoanByFolio(ctx context.Context, folio string) (*Loan, error)

	// GetOpenLoanByBook returns the open loan holding the book, or nil.
	// This is the source of the derived "loaned" flag.
	GetOpenLoanByBook(ctx context.Context, bookID string) (*Loan, error)

	// MarkLoanReturned sets status returned and the actual return date.
	MarkLoanReturned(ctx context.Context, loanID string, returnedAt time.Time) error

	// ListLoans returns loans matching the filter, newest first.
	ListLoans(ctx context.Context, filter LoanFilter) ([]Loan, error)

	// SaveSanction inserts a sanction unconditionally. Overlapping active
	// sanctions for one borrower are permitted.
	SaveSanction(ctx context.Context, s Sanction) error

	// GetSanction returns the sanction with the id, or nil.
	GetSanction(ctx context.Context, id string) (*Sanction, error)

	// ActiveSanctions returns sanctions with the active flag set whose
	// window contains today, ordered by start date descending.
	ActiveSanctions(ctx context.Context, borrowerID string, today time.Time) ([]Sanction, error)

	// ListSanctions returns sanctions matching the filter, ordered by
	// start date descending.
	ListSanctions(ctx context.Context, filter SanctionFilter) ([]Sanction, error)

	// RevokeSanction clears the active flag of a still-active sanction and
	// records who revoked it and why. Returns false when no active
	// sanction matched (already revoked or unknown id).
	RevokeSanction(ctx context.Context, id, adminID, notes string, revokedAt time.Time) (bool, error)
}

// TxStore wraps Store with transaction support for the multi-step open
// and close sequences.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
