/*
errors.go - Circulation error taxonomy

Sentinels for errors.Is plus structured variants carrying the entity ids
the caller needs to render a message. Everything here is recoverable.
*/
package circulation

import (
	"errors"
	"fmt"
)

var (
	// ErrLoanNotFound is returned when no open loan matches the folio.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrBookUnavailable is returned when the book cannot circulate
	// (already out on an open loan, or retired).
	ErrBookUnavailable = errors.New("book unavailable")

	// ErrSanctionActive is the borrowing gate: the borrower has at least
	// one active sanction covering today. No override path exists.
	ErrSanctionActive = errors.New("borrower has an active sanction")

	// ErrSanctionNotFound is returned when revoking an unknown or
	// already-revoked sanction.
	ErrSanctionNotFound = errors.New("sanction not found")

	// ErrInvalidWindow is returned for sanction windows with end before start.
	ErrInvalidWindow = errors.New("invalid sanction window: end before start")
)

// BookUnavailableError explains why a book cannot be loaned.
type BookUnavailableError struct {
	BookID string
	Reason string // "on loan", "retired"
}

func (e *BookUnavailableError) Error() string {
	return fmt.Sprintf("book %s is unavailable: %s", e.BookID, e.Reason)
}

func (e *BookUnavailableError) Unwrap() error {
	return ErrBookUnavailable
}

// SanctionActiveError identifies the gated borrower.
type SanctionActiveError struct {
	BorrowerID string
}

func (e *SanctionActiveError) Error() string {
	return fmt.Sprintf("borrower %s has an active sanction", e.BorrowerID)
}

func (e *SanctionActiveError) Unwrap() error {
	return ErrSanctionActive
}
