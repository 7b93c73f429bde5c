/*
errors.go - Catalog error taxonomy

All failures are recoverable at the caller. Sentinels work with errors.Is;
the structured codec and allocator errors live next to their producers
(codec.go, allocator.go).
*/
package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrBookNotFound is returned when no record matches the identifier.
	ErrBookNotFound = errors.New("book not found")

	// ErrAlreadyRetired guards against double retirement.
	ErrAlreadyRetired = errors.New("book already retired")

	// ErrNotRetired is returned when reactivating a book that is not retired.
	ErrNotRetired = errors.New("book not retired")
)

// BookNotFoundError carries the identifier the caller asked for.
type BookNotFoundError struct {
	ID string
}

func (e *BookNotFoundError) Error() string {
	return fmt.Sprintf("no book with id %s", e.ID)
}

func (e *BookNotFoundError) Unwrap() error {
	return ErrBookNotFound
}

// IsConflict reports whether err is one of the catalog state conflicts.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSlotOccupied) ||
		errors.Is(err, ErrAlreadyRetired) ||
		errors.Is(err, ErrNotRetired)
}
