/*
Package borrowers maintains the borrower (PPL) registry.

PURPOSE:
  Borrowers are identified by their housing location: dormitory, section,
  cell, plus a consecutive number distinguishing people in the same
  location. The registry derives the composite identifier on registration
  and tracks an active flag; the circulation engine consults the registry
  for the "borrower exists" precondition on new loans.

IDENTIFIER:
  <dormitory>-<SECTION>-<cell>-<consecutive>
  consecutive = number of borrowers already registered at that location + 1.

AUTHORIZATION:
  Register and SetActive require the ppl_management capability.
*/
package borrowers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ivbsa-designe/biblioteca-ceprereso/authz"
)

// Borrower is a registry record.
type Borrower struct {
	ID          string
	Name        string
	Dormitory   string
	Section     string // uppercased
	Cell        string
	Consecutive int
	Active      bool
}

var (
	// ErrBorrowerNotFound is returned when no record matches the id.
	ErrBorrowerNotFound = errors.New("borrower not found")

	// ErrBorrowerExists guards against duplicate composite identifiers.
	ErrBorrowerExists = errors.New("borrower already registered")

	// ErrInvalidBorrower is the sentinel for malformed registration input.
	ErrInvalidBorrower = errors.New("invalid borrower input")
)

// =============================================================================
// STORE
// =============================================================================

// Store handles borrower persistence. GetBorrower returns (nil, nil) when
// no record exists.
type Store interface {
	GetBorrower(ctx context.Context, id string) (*Borrower, error)
	SaveBorrower(ctx context.Context, b Borrower) error
	SetBorrowerActive(ctx context.Context, id string, active bool) error

	// CountAtLocation returns how many borrowers are registered at the
	// location, regardless of active flag.
	CountAtLocation(ctx context.Context, dormitory, section, cell string) (int, error)

	ListBorrowers(ctx context.Context) ([]Borrower, error)
}

// TxStore wraps Store with transaction support so the count-then-insert
// identifier derivation cannot race.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry owns borrower records.
type Registry struct {
	store TxStore
}

// NewRegistry creates a Registry over the given store.
func NewRegistry(store TxStore) *Registry {
	return &Registry{store: store}
}

// RegisterInput describes a new borrower.
type RegisterInput struct {
	Name      string
	Dormitory string
	Section   string
	Cell      string
}

// Register derives the composite identifier and persists an active record.
func (r *Registry) Register(ctx context.Context, auth authz.Authorizer, in RegisterInput) (*Borrower, error) {
	if err := authz.Require(auth, authz.ActionPPLManagement); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	dorm := strings.TrimSpace(in.Dormitory)
	section := strings.ToUpper(strings.TrimSpace(in.Section))
	cell := strings.TrimSpace(in.Cell)
	if name == "" || dorm == "" || section == "" || cell == "" {
		return nil, fmt.Errorf("%w: name, dormitory, section and cell are required", ErrInvalidBorrower)
	}

	var borrower *Borrower
	err := r.store.WithTx(ctx, func(s Store) error {
		count, err := s.CountAtLocation(ctx, dorm, section, cell)
		if err != nil {
			return err
		}

		consecutive := count + 1
		id := fmt.Sprintf("%s-%s-%s-%d", dorm, section, cell, consecutive)

		existing, err := s.GetBorrower(ctx, id)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", ErrBorrowerExists, id)
		}

		b := Borrower{
			ID:          id,
			Name:        name,
			Dormitory:   dorm,
			Section:     section,
			Cell:        cell,
			Consecutive: consecutive,
			Active:      true,
		}
		if err := s.SaveBorrower(ctx, b); err != nil {
			return err
		}
		borrower = &b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return borrower, nil
}

// SetActive toggles the active flag. Inactive borrowers cannot open loans.
func (r *Registry) SetActive(ctx context.Context, auth authz.Authorizer, id string, active bool) error {
	if err := authz.Require(auth, authz.ActionPPLManagement); err != nil {
		return err
	}

	b, err := r.store.GetBorrower(ctx, id)
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("%w: %s", ErrBorrowerNotFound, id)
	}
	return r.store.SetBorrowerActive(ctx, id, active)
}

// Get returns a single record; absence is ErrBorrowerNotFound.
func (r *Registry) Get(ctx context.Context, id string) (*Borrower, error) {
	b, err := r.store.GetBorrower(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrBorrowerNotFound, id)
	}
	return b, nil
}

// List returns all borrowers.
func (r *Registry) List(ctx context.Context) ([]Borrower, error) {
	return r.store.ListBorrowers(ctx)
}
