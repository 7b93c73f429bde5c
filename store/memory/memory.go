// Package memory provides an in-memory store implementation (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ivbsa-designe/biblioteca-ceprereso/borrowers"
	"github.com/ivbsa-designe/biblioteca-ceprereso/catalog"
	"github.com/ivbsa-designe/biblioteca-ceprereso/circulation"
)

// =============================================================================
// MEMORY STORE - Backs all three domain store interfaces
// =============================================================================

// Memory holds every record set behind one mutex. Books are a slice, not
// a map: identifiers may repeat across retired rows (slot reuse keeps the
// retired record), so the non-retired row wins on lookup and the most
// recent retired row is addressed by reactivation.
type Memory struct {
	mu   sync.RWMutex
	txMu sync.Mutex // serializes WithTx sections against each other

	books     []catalog.Book
	borrowers map[string]borrowers.Borrower
	loans     map[string]circulation.Loan
	sanctions map[string]circulation.Sanction
}

// New creates an empty store.
func New() *Memory {
	return &Memory{
		borrowers: make(map[string]borrowers.Borrower),
		loans:     make(map[string]circulation.Loan),
		sanctions: make(map[string]circulation.Sanction),
	}
}

// Books returns the catalog view.
func (m *Memory) Books() catalog.TxStore { return &bookStore{m} }

// Borrowers returns the registry view.
func (m *Memory) Borrowers() borrowers.TxStore { return &borrowerStore{m} }

// Circulation returns the loan+sanction view.
func (m *Memory) Circulation() circulation.TxStore { return &circStore{m} }

// snapshot copies all state so a failed transaction can roll back.
func (m *Memory) snapshot() *Memory {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := New()
	snap.books = append([]catalog.Book(nil), m.books...)
	for k, v := range m.borrowers {
		snap.borrowers[k] = v
	}
	for k, v := range m.loans {
		snap.loans[k] = v
	}
	for k, v := range m.sanctions {
		snap.sanctions[k] = v
	}
	return snap
}

func (m *Memory) restore(snap *Memory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books = snap.books
	m.borrowers = snap.borrowers
	m.loans = snap.loans
	m.sanctions = snap.sanctions
}

// withTx serializes the critical section and restores the snapshot when
// fn fails, so no intermediate state survives.
func (m *Memory) withTx(fn func() error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// =============================================================================
// CATALOG STORE
// =============================================================================

type bookStore struct{ m *Memory }

func (bs *bookStore) WithTx(_ context.Context, fn func(catalog.Store) error) error {
	return bs.m.withTx(func() error { return fn(bs) })
}

func (bs *bookStore) GetBook(_ context.Context, id string) (*catalog.Book, error) {
	bs.m.mu.RLock()
	defer bs.m.mu.RUnlock()

	// Non-retired row first, then the most recently added retired row.
	var retired *catalog.Book
	for i := range bs.m.books {
		b := bs.m.books[i]
		if b.ID != id {
			continue
		}
		if b.Status != catalog.StatusRetired {
			return &b, nil
		}
		retired = &b
	}
	return retired, nil
}

func (bs *bookStore) SaveBook(_ context.Context, b catalog.Book) error {
	bs.m.mu.Lock()
	defer bs.m.mu.Unlock()
	bs.m.books = append(bs.m.books, b)
	return nil
}

func (bs *bookStore) SetBookStatus(_ context.Context, id string, status catalog.Status) error {
	bs.m.mu.Lock()
	defer bs.m.mu.Unlock()

	target := -1
	for i := range bs.m.books {
		b := bs.m.books[i]
		if b.ID != id {
			continue
		}
		if status == catalog.StatusRetired && b.Status != catalog.StatusRetired {
			target = i
			break
		}
		if status != catalog.StatusRetired && b.Status == catalog.StatusRetired {
			target = i // last match wins: most recent retired row
		}
	}
	if target >= 0 {
		bs.m.books[target].Status = status
	}
	return nil
}

func (bs *bookStore) OccupiedSlots(_ context.Context, shelf string, level int) ([]int, error) {
	bs.m.mu.RLock()
	defer bs.m.mu.RUnlock()

	var slots []int
	for _, b := range bs.m.books {
		if b.Shelf == shelf && b.Level == level && b.Status != catalog.StatusRetired {
			slots = append(slots, b.Slot)
		}
	}
	sort.Ints(slots)
	return slots, nil
}

func (bs *bookStore) VacantSlots(_ context.Context, filter catalog.VacantFilter) ([]catalog.VacantSlot, error) {
	bs.m.mu.RLock()
	defer bs.m.mu.RUnlock()

	// Slots reclaimed by a live book are no longer vacant.
	type loc struct {
		shelf string
		level int
		slot  int
	}
	live := make(map[loc]bool)
	for _, b := range bs.m.books {
		if b.Status != catalog.StatusRetired {
			live[loc{b.Shelf, b.Level, b.Slot}] = true
		}
	}

	seen := make(map[catalog.VacantSlot]bool)
	var out []catalog.VacantSlot
	for _, b := range bs.m.books {
		if b.Status != catalog.StatusRetired || live[loc{b.Shelf, b.Level, b.Slot}] {
			continue
		}
		if filter.Shelf != nil && b.Shelf != *filter.Shelf {
			continue
		}
		if filter.Level != nil && b.Level != *filter.Level {
			continue
		}
		v := catalog.VacantSlot{Shelf: b.Shelf, Level: b.Level, Slot: b.Slot, ID: b.ID}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Shelf != b.Shelf {
			return a.Shelf < b.Shelf
		}
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		return a.Slot < b.Slot
	})
	return out, nil
}

func (bs *bookStore) ListBooks(_ context.Context) ([]catalog.Book, error) {
	bs.m.mu.RLock()
	defer bs.m.mu.RUnlock()

	out := append([]catalog.Book(nil), bs.m.books...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// BORROWER STORE
// =============================================================================

type borrowerStore struct{ m *Memory }

func (rs *borrowerStore) WithTx(_ context.Context, fn func(borrowers.Store) error) error {
	return rs.m.withTx(func() error { return fn(rs) })
}

func (rs *borrowerStore) GetBorrower(_ context.Context, id string) (*borrowers.Borrower, error) {
	rs.m.mu.RLock()
	defer rs.m.mu.RUnlock()

	if b, ok := rs.m.borrowers[id]; ok {
		return &b, nil
	}
	return nil, nil
}

func (rs *borrowerStore) SaveBorrower(_ context.Context, b borrowers.Borrower) error {
	rs.m.mu.Lock()
	defer rs.m.mu.Unlock()
	rs.m.borrowers[b.ID] = b
	return nil
}

func (rs *borrowerStore) SetBorrowerActive(_ context.Context, id string, active bool) error {
	rs.m.mu.Lock()
	defer rs.m.mu.Unlock()

	if b, ok := rs.m.borrowers[id]; ok {
		b.Active = active
		rs.m.borrowers[id] = b
	}
	return nil
}

func (rs *borrowerStore) CountAtLocation(_ context.Context, dormitory, section, cell string) (int, error) {
	rs.m.mu.RLock()
	defer rs.m.mu.RUnlock()

	count := 0
	for _, b := range rs.m.borrowers {
		if b.Dormitory == dormitory && b.Section == section && b.Cell == cell {
			count++
		}
	}
	return count, nil
}

func (rs *borrowerStore) ListBorrowers(_ context.Context) ([]borrowers.Borrower, error) {
	rs.m.mu.RLock()
	defer rs.m.mu.RUnlock()

	out := make([]borrowers.Borrower, 0, len(rs.m.borrowers))
	for _, b := range rs.m.borrowers {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// CIRCULATION STORE
// =============================================================================

type circStore struct{ m *Memory }

func (cs *circStore) WithTx(_ context.Context, fn func(circulation.Store) error) error {
	return cs.m.withTx(func() error { return fn(cs) })
}

func (cs *circStore) SaveLoan(_ context.Context, l circulation.Loan) error {
	cs.m.mu.Lock()
	defer cs.m.mu.Unlock()
	cs.m.loans[l.ID] = l
	return nil
}

func (cs *circStore) GetOpenLoanByFolio(_ context.Context, folio string) (*circulation.Loan, error) {
	cs.m.mu.RLock()
	defer cs.m.mu.RUnlock()

	for _, l := range cs.m.loans {
		if l.Folio == folio && l.Status == circulation.LoanOpen {
			loan := l
			return &loan, nil
		}
	}
	return nil, nil
}

func (cs *circStore) GetOpenLoanByBook(_ context.Context, bookID string) (*circulation.Loan, error) {
	cs.m.mu.RLock()
	defer cs.m.mu.RUnlock()

	for _, l := range cs.m.loans {
		if l.BookID == bookID && l.Status == circulation.LoanOpen {
			loan := l
			return &loan, nil
		}
	}
	return nil, nil
}

func (cs *circStore) MarkLoanReturned(_ context.Context, loanID string, returnedAt time.Time) error {
	cs.m.mu.Lock()
	defer cs.m.mu.Unlock()

	if l, ok := cs.m.loans[loanID]; ok {
		l.Status = circulation.LoanReturned
		l.ReturnedAt = &returnedAt
		cs.m.loans[loanID] = l
	}
	return nil
}

func (cs *circStore) ListLoans(_ context.Context, filter circulation.LoanFilter) ([]circulation.Loan, error) {
	cs.m.mu.RLock()
	defer cs.m.mu.RUnlock()

	var out []circulation.Loan
	for _, l := range cs.m.loans {
		if filter.BorrowerID != nil && l.BorrowerID != *filter.BorrowerID {
			continue
		}
		if filter.Status != nil && l.Status != *filter.Status {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoanedAt.After(out[j].LoanedAt) })
	return out, nil
}

func (cs *circStore) SaveSanction(_ context.Context, s circulation.Sanction) error {
	cs.m.mu.Lock()
	defer cs.m.mu.Unlock()
	cs.m.sanctions[s.ID] = s
	return nil
}

func (cs *circStore) GetSanction(_ context.Context, id string) (*circulation.Sanction, error) {
	cs.m.mu.RLock()
	defer cs.m.mu.RUnlock()

	if s, ok := cs.m.sanctions[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (cs *circStore) ActiveSanctions(_ context.Context, borrowerID string, today time.Time) ([]circulation.Sanction, error) {
	cs.m.mu.RLock()
	defer cs.m.mu.RUnlock()

	var out []circulation.Sanction
	for _, s := range cs.m.sanctions {
		if s.BorrowerID == borrowerID && s.Active && s.Covers(today) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	return out, nil
}

func (cs *circStore) ListSanctions(_ context.Context, filter circulation.SanctionFilter) ([]circulation.Sanction, error) {
	cs.m.mu.RLock()
	defer cs.m.mu.RUnlock()

	var out []circulation.Sanction
	for _, s := range cs.m.sanctions {
		if filter.BorrowerID != nil && s.BorrowerID != *filter.BorrowerID {
			continue
		}
		if filter.ActiveOnly && !s.Active {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	return out, nil
}

func (cs *circStore) RevokeSanction(_ context.Context, id, adminID, notes string, revokedAt time.Time) (bool, error) {
	cs.m.mu.Lock()
	defer cs.m.mu.Unlock()

	s, ok := cs.m.sanctions[id]
	if !ok || !s.Active {
		return false, nil
	}
	s.Active = false
	s.RevokedBy = adminID
	s.RevokedAt = &revokedAt
	s.RevocationNotes = notes
	cs.m.sanctions[id] = s
	return true, nil
}
