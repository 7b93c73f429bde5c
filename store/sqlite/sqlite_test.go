package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivbsa-designe/biblioteca-ceprereso/borrowers"
	"github.com/ivbsa-designe/biblioteca-ceprereso/catalog"
	"github.com/ivbsa-designe/biblioteca-ceprereso/circulation"
	"github.com/ivbsa-designe/biblioteca-ceprereso/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testBook(id, shelf string, level, slot int, status catalog.Status) catalog.Book {
	return catalog.Book{
		ID:         id,
		Title:      "title of " + id,
		Shelf:      shelf,
		Level:      level,
		Slot:       slot,
		Status:     status,
		IngestedAt: time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC),
	}
}

func testLoan(id, borrowerID, bookID, folio string, day time.Time) circulation.Loan {
	return circulation.Loan{
		ID:             id,
		BorrowerID:     borrowerID,
		BookID:         bookID,
		Folio:          folio,
		LoanedAt:       day,
		ExpectedReturn: day.AddDate(0, 0, 14),
		Status:         circulation.LoanOpen,
	}
}

var day0 = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

// =============================================================================
// BOOKS
// =============================================================================

func TestBooks_SaveAndGetRoundTrip(t *testing.T) {
	store := newTestStore(t).Books()
	ctx := context.Background()

	b := testBook("C101", "C", 1, 1, catalog.StatusAvailable)
	b.Author = "Cervantes"
	b.Genre = "novela"
	require.NoError(t, store.SaveBook(ctx, b))

	got, err := store.GetBook(ctx, "C101")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b, *got)
}

func TestBooks_GetMissingReturnsNil(t *testing.T) {
	store := newTestStore(t).Books()

	got, err := store.GetBook(context.Background(), "Z901")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBooks_OccupancyIndexRejectsDoubleBooking(t *testing.T) {
	// GIVEN: A live book at C-1 slot 1
	// WHEN: Inserting another live record at the same location
	// THEN: The partial unique index fires as SlotOccupied

	store := newTestStore(t).Books()
	ctx := context.Background()

	require.NoError(t, store.SaveBook(ctx, testBook("C101", "C", 1, 1, catalog.StatusAvailable)))

	err := store.SaveBook(ctx, testBook("C101", "C", 1, 1, catalog.StatusAvailable))
	assert.ErrorIs(t, err, catalog.ErrSlotOccupied)
}

func TestBooks_RetiredRowDoesNotBlockSlot(t *testing.T) {
	// GIVEN: A retired record at C-1 slot 1
	// WHEN: Inserting a live record at the same location
	// THEN: The insert succeeds; only non-retired rows occupy slots

	store := newTestStore(t).Books()
	ctx := context.Background()

	require.NoError(t, store.SaveBook(ctx, testBook("C101", "C", 1, 1, catalog.StatusRetired)))
	require.NoError(t, store.SaveBook(ctx, testBook("C101", "C", 1, 1, catalog.StatusAvailable)))

	// Lookup prefers the live row.
	got, err := store.GetBook(ctx, "C101")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, catalog.StatusAvailable, got.Status)
}

func TestBooks_SetStatusTargetsLiveRowOnRetire(t *testing.T) {
	// With a retired and a live row behind one identifier, retiring
	// targets the live row and reactivating targets the retired one.
	store := newTestStore(t).Books()
	ctx := context.Background()

	require.NoError(t, store.SaveBook(ctx, testBook("C101", "C", 1, 1, catalog.StatusRetired)))
	live := testBook("C101", "C", 1, 1, catalog.StatusAvailable)
	live.IngestedAt = live.IngestedAt.Add(time.Hour)
	require.NoError(t, store.SaveBook(ctx, live))

	require.NoError(t, store.SetBookStatus(ctx, "C101", catalog.StatusRetired))

	books, err := store.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	for _, b := range books {
		assert.Equal(t, catalog.StatusRetired, b.Status)
	}
}

func TestBooks_OccupiedSlotsExcludesRetired(t *testing.T) {
	store := newTestStore(t).Books()
	ctx := context.Background()

	require.NoError(t, store.SaveBook(ctx, testBook("C101", "C", 1, 1, catalog.StatusAvailable)))
	require.NoError(t, store.SaveBook(ctx, testBook("C102", "C", 1, 2, catalog.StatusRetired)))
	require.NoError(t, store.SaveBook(ctx, testBook("C103", "C", 1, 3, catalog.StatusAvailable)))
	require.NoError(t, store.SaveBook(ctx, testBook("A101", "A", 1, 1, catalog.StatusAvailable)))

	slots, err := store.OccupiedSlots(ctx, "C", 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, slots)
}

func TestBooks_VacantSlotsExcludeReclaimed(t *testing.T) {
	// GIVEN: Two retired rows, one of whose slots was reclaimed
	// WHEN: Listing vacant slots
	// THEN: Only the still-free slot appears

	store := newTestStore(t).Books()
	ctx := context.Background()

	require.NoError(t, store.SaveBook(ctx, testBook("C101", "C", 1, 1, catalog.StatusRetired)))
	require.NoError(t, store.SaveBook(ctx, testBook("C102", "C", 1, 2, catalog.StatusRetired)))
	require.NoError(t, store.SaveBook(ctx, testBook("C101", "C", 1, 1, catalog.StatusAvailable)))

	vacant, err := store.VacantSlots(ctx, catalog.VacantFilter{})
	require.NoError(t, err)
	require.Len(t, vacant, 1)
	assert.Equal(t, 2, vacant[0].Slot)
}

func TestBooks_WithTxRollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that saves a book then fails
	// WHEN: WithTx returns the error
	// THEN: The save is rolled back

	store := newTestStore(t).Books()
	ctx := context.Background()

	sentinel := assert.AnError
	err := store.WithTx(ctx, func(s catalog.Store) error {
		if err := s.SaveBook(ctx, testBook("C101", "C", 1, 1, catalog.StatusAvailable)); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	got, err := store.GetBook(ctx, "C101")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// =============================================================================
// BORROWERS
// =============================================================================

func TestBorrowers_SaveGetAndCount(t *testing.T) {
	store := newTestStore(t).Borrowers()
	ctx := context.Background()

	b := borrowers.Borrower{
		ID: "3-B-12-1", Name: "Juan Pérez",
		Dormitory: "3", Section: "B", Cell: "12",
		Consecutive: 1, Active: true,
	}
	require.NoError(t, store.SaveBorrower(ctx, b))

	got, err := store.GetBorrower(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b, *got)

	count, err := store.CountAtLocation(ctx, "3", "B", "12")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.CountAtLocation(ctx, "3", "B", "13")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBorrowers_DuplicateIDRejected(t *testing.T) {
	store := newTestStore(t).Borrowers()
	ctx := context.Background()

	b := borrowers.Borrower{
		ID: "3-B-12-1", Name: "Juan Pérez",
		Dormitory: "3", Section: "B", Cell: "12",
		Consecutive: 1, Active: true,
	}
	require.NoError(t, store.SaveBorrower(ctx, b))

	err := store.SaveBorrower(ctx, b)
	assert.ErrorIs(t, err, borrowers.ErrBorrowerExists)
}

func TestBorrowers_CountIncludesInactive(t *testing.T) {
	// The consecutive number never recycles, so deactivated borrowers
	// still count toward their location.
	store := newTestStore(t).Borrowers()
	ctx := context.Background()

	b := borrowers.Borrower{
		ID: "3-B-12-1", Name: "Juan Pérez",
		Dormitory: "3", Section: "B", Cell: "12",
		Consecutive: 1, Active: true,
	}
	require.NoError(t, store.SaveBorrower(ctx, b))
	require.NoError(t, store.SetBorrowerActive(ctx, b.ID, false))

	count, err := store.CountAtLocation(ctx, "3", "B", "12")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// =============================================================================
// LOANS
// =============================================================================

func TestLoans_SaveAndLookupByFolio(t *testing.T) {
	store := newTestStore(t).Circulation()
	ctx := context.Background()

	l := testLoan("loan-1", "3-B-12-1", "C101", "P-abc", day0)
	require.NoError(t, store.SaveLoan(ctx, l))

	got, err := store.GetOpenLoanByFolio(ctx, "P-abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, l, *got)

	byBook, err := store.GetOpenLoanByBook(ctx, "C101")
	require.NoError(t, err)
	require.NotNil(t, byBook)
	assert.Equal(t, "loan-1", byBook.ID)
}

func TestLoans_OpenLoanIndexRejectsSecondLoan(t *testing.T) {
	// GIVEN: An open loan for a book
	// WHEN: Inserting a second open loan for the same book
	// THEN: The partial unique index fires as BookUnavailable

	store := newTestStore(t).Circulation()
	ctx := context.Background()

	require.NoError(t, store.SaveLoan(ctx, testLoan("loan-1", "3-B-12-1", "C101", "P-abc", day0)))

	err := store.SaveLoan(ctx, testLoan("loan-2", "3-B-12-2", "C101", "P-def", day0))
	assert.ErrorIs(t, err, circulation.ErrBookUnavailable)
}

func TestLoans_MarkReturnedFreesBookAndFolio(t *testing.T) {
	store := newTestStore(t).Circulation()
	ctx := context.Background()

	l := testLoan("loan-1", "3-B-12-1", "C101", "P-abc", day0)
	require.NoError(t, store.SaveLoan(ctx, l))

	returned := day0.AddDate(0, 0, 10)
	require.NoError(t, store.MarkLoanReturned(ctx, "loan-1", returned))

	open, err := store.GetOpenLoanByBook(ctx, "C101")
	require.NoError(t, err)
	assert.Nil(t, open)

	byFolio, err := store.GetOpenLoanByFolio(ctx, "P-abc")
	require.NoError(t, err)
	assert.Nil(t, byFolio)

	// A new open loan for the book is accepted again.
	require.NoError(t, store.SaveLoan(ctx, testLoan("loan-2", "3-B-12-2", "C101", "P-def", returned)))

	all, err := store.ListLoans(ctx, circulation.LoanFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestLoans_ListFilters(t *testing.T) {
	store := newTestStore(t).Circulation()
	ctx := context.Background()

	require.NoError(t, store.SaveLoan(ctx, testLoan("loan-1", "3-B-12-1", "C101", "P-abc", day0)))
	require.NoError(t, store.SaveLoan(ctx, testLoan("loan-2", "3-B-12-2", "C102", "P-def", day0)))
	require.NoError(t, store.MarkLoanReturned(ctx, "loan-1", day0.AddDate(0, 0, 5)))

	open := circulation.LoanOpen
	loans, err := store.ListLoans(ctx, circulation.LoanFilter{Status: &open})
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, "loan-2", loans[0].ID)

	borrower := "3-B-12-1"
	loans, err = store.ListLoans(ctx, circulation.LoanFilter{BorrowerID: &borrower})
	require.NoError(t, err)
	require.Len(t, loans, 1)
	require.NotNil(t, loans[0].ReturnedAt)
	assert.Equal(t, day0.AddDate(0, 0, 5), *loans[0].ReturnedAt)
}

// =============================================================================
// SANCTIONS
// =============================================================================

func testSanction(id, borrowerID string, start, end time.Time) circulation.Sanction {
	return circulation.Sanction{
		ID:         id,
		BorrowerID: borrowerID,
		Start:      start,
		End:        end,
		Reason:     "incident",
		Kind:       circulation.SanctionManual,
		Active:     true,
		CreatedAt:  start,
	}
}

func TestSanctions_ActiveSanctionsWindowed(t *testing.T) {
	// GIVEN: One sanction covering today and one already expired
	// WHEN: Querying active sanctions for the borrower
	// THEN: Only the covering one comes back

	store := newTestStore(t).Circulation()
	ctx := context.Background()

	require.NoError(t, store.SaveSanction(ctx, testSanction("s-1", "3-B-12-1", day0, day0.AddDate(0, 0, 7))))
	require.NoError(t, store.SaveSanction(ctx, testSanction("s-2", "3-B-12-1", day0.AddDate(0, 0, -20), day0.AddDate(0, 0, -10))))

	active, err := store.ActiveSanctions(ctx, "3-B-12-1", day0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "s-1", active[0].ID)

	active, err = store.ActiveSanctions(ctx, "3-B-12-1", day0.AddDate(0, 0, 8))
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSanctions_RevokeMatchesActiveOnly(t *testing.T) {
	// GIVEN: An active sanction
	// WHEN: Revoking twice
	// THEN: First succeeds and records the admin; second reports no match

	store := newTestStore(t).Circulation()
	ctx := context.Background()

	require.NoError(t, store.SaveSanction(ctx, testSanction("s-1", "3-B-12-1", day0, day0.AddDate(0, 0, 30))))

	revoked, err := store.RevokeSanction(ctx, "s-1", "admin-1", "appealed", day0.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.True(t, revoked)

	got, err := store.GetSanction(ctx, "s-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Active)
	assert.Equal(t, "admin-1", got.RevokedBy)
	assert.Equal(t, "appealed", got.RevocationNotes)
	require.NotNil(t, got.RevokedAt)
	assert.Equal(t, day0.AddDate(0, 0, 2), *got.RevokedAt)

	revoked, err = store.RevokeSanction(ctx, "s-1", "admin-1", "again", day0.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestSanctions_ListFilter(t *testing.T) {
	store := newTestStore(t).Circulation()
	ctx := context.Background()

	require.NoError(t, store.SaveSanction(ctx, testSanction("s-1", "3-B-12-1", day0, day0.AddDate(0, 0, 7))))
	require.NoError(t, store.SaveSanction(ctx, testSanction("s-2", "3-B-12-2", day0, day0.AddDate(0, 0, 7))))
	_, err := store.RevokeSanction(ctx, "s-2", "admin-1", "", day0)
	require.NoError(t, err)

	activeOnly, err := store.ListSanctions(ctx, circulation.SanctionFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, activeOnly, 1)
	assert.Equal(t, "s-1", activeOnly[0].ID)

	borrower := "3-B-12-2"
	byBorrower, err := store.ListSanctions(ctx, circulation.SanctionFilter{BorrowerID: &borrower})
	require.NoError(t, err)
	require.Len(t, byBorrower, 1)
	assert.Equal(t, "s-2", byBorrower[0].ID)
}
