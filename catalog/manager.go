/*
manager.go - Book lifecycle operations

PURPOSE:
  The Manager is the sole writer of book state. It mints identifiers on
  registration (via the codec and allocator), flips available/retired, and
  lists reusable space. Every multi-step sequence runs inside a store
  transaction so the at-most-one-occupant invariant holds under
  concurrent registrations.

STATE MACHINE:
  register -> available
  available -> retired  (frees the slot)
  retired -> available  (re-verifies the slot first; fails closed with
                         SlotOccupied if a new book took it meanwhile)

AUTHORIZATION:
  Register, Retire and Reactivate require the book_management capability,
  checked before any store access. ListVacant is a query and is ungated.

SEE ALSO:
  - allocator.go: slot selection
  - circulation/engine.go: reads catalog records via the Store interface
*/
package catalog

import (
	"context"
	"time"

	"github.com/ivbsa-designe/biblioteca-ceprereso/authz"
)

// Manager owns book status transitions.
type Manager struct {
	store TxStore

	// Now is the clock used for ingestion timestamps. Tests override it.
	Now func() time.Time
}

// NewManager creates a Manager over the given store.
func NewManager(store TxStore) *Manager {
	return &Manager{store: store, Now: time.Now}
}

// RegisterInput describes a new book. Slot nil means auto-assign.
type RegisterInput struct {
	Title  string
	Author string
	Genre  string
	Shelf  string
	Level  int
	Slot   *int
}

// Register mints an identifier and persists a new available book.
// With no explicit slot the allocator picks the lowest free one; an
// explicit slot is validated against non-retired occupancy. Fails with
// SlotOccupied on conflict.
func (m *Manager) Register(ctx context.Context, auth authz.Authorizer, in RegisterInput) (*Book, error) {
	if err := authz.Require(auth, authz.ActionBookManagement); err != nil {
		return nil, err
	}

	shelf, err := NormalizeShelf(in.Shelf)
	if err != nil {
		return nil, err
	}
	if err := ValidateLevel(in.Level); err != nil {
		return nil, err
	}
	if in.Title == "" {
		return nil, &LocationError{Field: "title", Value: in.Title, Reason: "must not be empty"}
	}
	if in.Slot != nil {
		if err := ValidateSlot(*in.Slot); err != nil {
			return nil, err
		}
	}

	var book *Book
	err = m.store.WithTx(ctx, func(s Store) error {
		occupied, err := s.OccupiedSlots(ctx, shelf, in.Level)
		if err != nil {
			return err
		}

		slot := 0
		if in.Slot == nil {
			slot = FirstFreeSlot(occupied)
			if err := ValidateSlot(slot); err != nil {
				// shelf level completely full
				return err
			}
		} else {
			slot = *in.Slot
			if err := ValidateSlotFree(shelf, in.Level, slot, occupied); err != nil {
				return err
			}
		}

		id, err := EncodeID(shelf, in.Level, slot)
		if err != nil {
			return err
		}

		b := Book{
			ID:         id,
			Title:      in.Title,
			Author:     in.Author,
			Genre:      in.Genre,
			Shelf:      shelf,
			Level:      in.Level,
			Slot:       slot,
			Status:     StatusAvailable,
			IngestedAt: m.Now().UTC(),
		}
		if err := s.SaveBook(ctx, b); err != nil {
			return err
		}
		book = &b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// Retire marks a book retired, freeing its slot for future allocation.
// The record is kept; history survives. Fails with BookNotFoundError or
// ErrAlreadyRetired.
func (m *Manager) Retire(ctx context.Context, auth authz.Authorizer, id string) error {
	if err := authz.Require(auth, authz.ActionBookManagement); err != nil {
		return err
	}

	return m.store.WithTx(ctx, func(s Store) error {
		book, err := s.GetBook(ctx, id)
		if err != nil {
			return err
		}
		if book == nil {
			return &BookNotFoundError{ID: id}
		}
		if book.Status == StatusRetired {
			return ErrAlreadyRetired
		}
		return s.SetBookStatus(ctx, id, StatusRetired)
	})
}

// Reactivate returns a retired book to available. The slot is re-verified
// against non-retired occupancy: if a new book was registered into the
// freed slot, reactivation fails with SlotOccupied instead of producing
// two records behind one identifier.
func (m *Manager) Reactivate(ctx context.Context, auth authz.Authorizer, id string) error {
	if err := authz.Require(auth, authz.ActionBookManagement); err != nil {
		return err
	}

	return m.store.WithTx(ctx, func(s Store) error {
		book, err := s.GetBook(ctx, id)
		if err != nil {
			return err
		}
		if book == nil {
			return &BookNotFoundError{ID: id}
		}
		if book.Status != StatusRetired {
			return ErrNotRetired
		}

		occupied, err := s.OccupiedSlots(ctx, book.Shelf, book.Level)
		if err != nil {
			return err
		}
		if err := ValidateSlotFree(book.Shelf, book.Level, book.Slot, occupied); err != nil {
			return err
		}
		return s.SetBookStatus(ctx, id, StatusAvailable)
	})
}

// ListVacant returns retired books' slots as reusable space, ordered by
// (shelf, level, slot). It is a query, not a reservation: the slot is only
// claimed when a registration commits.
func (m *Manager) ListVacant(ctx context.Context, filter VacantFilter) ([]VacantSlot, error) {
	if filter.Shelf != nil {
		shelf, err := NormalizeShelf(*filter.Shelf)
		if err != nil {
			return nil, err
		}
		filter.Shelf = &shelf
	}
	if filter.Level != nil {
		if err := ValidateLevel(*filter.Level); err != nil {
			return nil, err
		}
	}
	return m.store.VacantSlots(ctx, filter)
}

// Get returns a single record. Absence is BookNotFoundError here, unlike
// at the store layer.
func (m *Manager) Get(ctx context.Context, id string) (*Book, error) {
	book, err := m.store.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, &BookNotFoundError{ID: id}
	}
	return book, nil
}

// List returns the whole catalog.
func (m *Manager) List(ctx context.Context) ([]Book, error) {
	return m.store.ListBooks(ctx)
}
