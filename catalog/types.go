/*
Package catalog owns physical shelf space and the book lifecycle.

PURPOSE:
  Books live in numbered slots on shelf levels. This package mints the
  canonical location identifier for a new book, finds the lowest free slot
  when none is requested, and drives the available/retired state machine.
  Retiring a book frees its slot for reuse without deleting the record.

KEY CONCEPTS IN THIS FILE (types.go):
  - Book: the catalog record, keyed by its location identifier
  - Status: available | retired (retired slots are reusable)
  - VacantSlot: a freed slot surfaced to the registrar
  - Store/TxStore: persistence interface, transactional variant

OCCUPANCY INVARIANT:
  For a given (shelf, level), at most one non-retired book per slot.
  Occupancy is always computed by filtering out retired rows, never by
  row existence alone.

SEE ALSO:
  - codec.go: identifier encoding/decoding
  - allocator.go: free slot computation
  - manager.go: register/retire/reactivate/list-vacant operations
*/
package catalog

import (
	"context"
	"time"
)

// Status is the circulation-facing state of a catalog record.
type Status string

const (
	// StatusAvailable means the book occupies its slot and may circulate.
	StatusAvailable Status = "available"
	// StatusRetired means the record is kept for history but the slot is
	// free for reuse. Reversible via Manager.Reactivate.
	StatusRetired Status = "retired"
)

// Book is a catalog record. ID is derived from (Shelf, Level, Slot) via
// EncodeID and doubles as the physical shelf label.
type Book struct {
	ID         string
	Title      string
	Author     string
	Genre      string
	Shelf      string // single uppercase letter
	Level      int    // 1..9, see codec.go for the width constraint
	Slot       int    // 1..99
	Status     Status
	IngestedAt time.Time
}

// VacantSlot is a slot freed by retirement, shown to the registrar as
// reusable space. It is a query result, not a reservation.
type VacantSlot struct {
	Shelf string
	Level int
	Slot  int
	ID    string
}

// VacantFilter narrows ListVacant. Nil fields match everything.
type VacantFilter struct {
	Shelf *string
	Level *int
}

// =============================================================================
// STORE - Persistence interface for catalog records
// =============================================================================

// Store handles book persistence. Implementations return (nil, nil) from
// GetBook when no record exists; absence is not an error at this layer.
type Store interface {
	// GetBook returns the record with the given identifier, or nil.
	GetBook(ctx context.Context, id string) (*Book, error)

	// SaveBook inserts a new record.
	SaveBook(ctx context.Context, b Book) error

	// SetBookStatus updates the status of an existing record.
	SetBookStatus(ctx context.Context, id string, status Status) error

	// OccupiedSlots returns the slot numbers used by non-retired books at
	// (shelf, level), ascending.
	OccupiedSlots(ctx context.Context, shelf string, level int) ([]int, error)

	// VacantSlots returns retired books' slots matching the filter,
	// ordered by (shelf, level, slot) ascending.
	VacantSlots(ctx context.Context, filter VacantFilter) ([]VacantSlot, error)

	// ListBooks returns all records ordered by identifier.
	ListBooks(ctx context.Context) ([]Book, error)
}

// TxStore wraps Store with transaction support. The manager runs each
// read-occupancy / decide-slot / write-book sequence inside WithTx so two
// concurrent registrations cannot claim the same slot.
type TxStore interface {
	Store

	// WithTx executes fn atomically. If fn returns an error the
	// transaction is rolled back, leaving no intermediate state.
	WithTx(ctx context.Context, fn func(Store) error) error
}
