/*
sanctions.go - Sanction engine

PURPOSE:
  Creates sanction records (manual, or automatic on late return), answers
  the "is this borrower currently sanctioned?" gate, and handles one-way
  revocation. Creation is unconditional: overlapping active sanctions for
  one borrower are permitted, and deduplicating them would change
  observable borrowing eligibility.

ACTIVITY:
  A sanction is active iff its flag is set and today falls within
  [start, end] inclusive. Revocation clears the flag; a revoked sanction
  cannot be reactivated, and revoking it again reports NotFound because
  the underlying update only matches active records.

AUTHORIZATION:
  Manual creation and revocation require the sanctions capability.
  Automatic late-return sanctions are created by the circulation engine
  and are ungated.
*/
package circulation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ivbsa-designe/biblioteca-ceprereso/authz"
)

// Sanctions owns sanction creation and revocation.
type Sanctions struct {
	store Store

	// Now is the clock for activity checks and revocation dates.
	Now func() time.Time
}

// NewSanctions creates the sanction engine.
func NewSanctions(store Store) *Sanctions {
	return &Sanctions{store: store, Now: time.Now}
}

// CreateInput describes a manual sanction.
type CreateInput struct {
	BorrowerID   string
	Start        time.Time
	End          time.Time
	Reason       string
	AuthorizedBy string
}

// Create inserts a manual sanction with the active flag set. No overlap
// prevention: stacking is allowed.
func (sn *Sanctions) Create(ctx context.Context, auth authz.Authorizer, in CreateInput) (*Sanction, error) {
	if err := authz.Require(auth, authz.ActionSanctions); err != nil {
		return nil, err
	}
	if DateOf(in.End).Before(DateOf(in.Start)) {
		return nil, ErrInvalidWindow
	}

	s := Sanction{
		ID:           uuid.NewString(),
		BorrowerID:   in.BorrowerID,
		Start:        DateOf(in.Start),
		End:          DateOf(in.End),
		Reason:       in.Reason,
		Kind:         SanctionManual,
		Active:       true,
		AuthorizedBy: in.AuthorizedBy,
		CreatedAt:    sn.Now().UTC(),
	}
	if err := sn.store.SaveSanction(ctx, s); err != nil {
		return nil, err
	}
	return &s, nil
}

// createLateReturn inserts the automatic penalty for a late return,
// through the transactional store the caller is already inside of.
// Window: [today, today + min(PenaltyFactor*lateDays, PenaltyMaxDays)].
func (sn *Sanctions) createLateReturn(ctx context.Context, store Store, borrowerID, folio string, lateDays int, today time.Time) (*Sanction, error) {
	penaltyDays := PenaltyFactor * lateDays
	if penaltyDays > PenaltyMaxDays {
		penaltyDays = PenaltyMaxDays
	}

	s := Sanction{
		ID:         uuid.NewString(),
		BorrowerID: borrowerID,
		Start:      today,
		End:        today.AddDate(0, 0, penaltyDays),
		Reason:     fmt.Sprintf("late return of %d day(s) - folio %s", lateDays, folio),
		Kind:       SanctionLateReturn,
		Active:     true,
		CreatedAt:  sn.Now().UTC(),
	}
	if err := store.SaveSanction(ctx, s); err != nil {
		return nil, err
	}
	return &s, nil
}

// IsActive reports whether the borrower has at least one active sanction
// covering today.
func (sn *Sanctions) IsActive(ctx context.Context, borrowerID string) (bool, error) {
	active, err := sn.store.ActiveSanctions(ctx, borrowerID, DateOf(sn.Now()))
	if err != nil {
		return false, err
	}
	return len(active) > 0, nil
}

// ListActive returns the currently active sanctions, optionally filtered
// by borrower, ordered by start date descending. The flag alone is not
// enough: the window must also contain today.
func (sn *Sanctions) ListActive(ctx context.Context, borrowerID *string) ([]Sanction, error) {
	flagged, err := sn.store.ListSanctions(ctx, SanctionFilter{BorrowerID: borrowerID, ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	today := DateOf(sn.Now())
	active := flagged[:0]
	for _, s := range flagged {
		if s.Covers(today) {
			active = append(active, s)
		}
	}
	return active, nil
}

// List returns sanctions matching the filter.
func (sn *Sanctions) List(ctx context.Context, filter SanctionFilter) ([]Sanction, error) {
	return sn.store.ListSanctions(ctx, filter)
}

// Revoke clears a still-active sanction, recording the admin and notes.
// Fails with ErrSanctionNotFound when no active sanction has the id: an
// already-revoked sanction cannot be revoked again.
func (sn *Sanctions) Revoke(ctx context.Context, auth authz.Authorizer, id, adminID, notes string) error {
	if err := authz.Require(auth, authz.ActionSanctions); err != nil {
		return err
	}

	revoked, err := sn.store.RevokeSanction(ctx, id, adminID, notes, DateOf(sn.Now()))
	if err != nil {
		return err
	}
	if !revoked {
		return fmt.Errorf("%w: no active sanction with id %s", ErrSanctionNotFound, id)
	}
	return nil
}
