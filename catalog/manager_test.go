package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivbsa-designe/biblioteca-ceprereso/authz"
	"github.com/ivbsa-designe/biblioteca-ceprereso/catalog"
	"github.com/ivbsa-designe/biblioteca-ceprereso/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestManager(t *testing.T) *catalog.Manager {
	t.Helper()
	return catalog.NewManager(memory.New().Books())
}

func registerBook(t *testing.T, m *catalog.Manager, title, shelf string, level int) *catalog.Book {
	t.Helper()
	book, err := m.Register(context.Background(), authz.RoleAdmin, catalog.RegisterInput{
		Title: title,
		Shelf: shelf,
		Level: level,
	})
	require.NoError(t, err)
	return book
}

func intPtr(n int) *int { return &n }

// =============================================================================
// REGISTRATION AND SLOT ALLOCATION
// =============================================================================

func TestRegister_AssignsSequentialIdentifiers(t *testing.T) {
	// GIVEN: An empty shelf C level 1
	// WHEN: Registering two books with auto slot assignment
	// THEN: They land in C101 and C102

	m := newTestManager(t)

	first := registerBook(t, m, "Don Quijote", "C", 1)
	assert.Equal(t, "C101", first.ID)
	assert.Equal(t, 1, first.Slot)
	assert.Equal(t, catalog.StatusAvailable, first.Status)

	second := registerBook(t, m, "Pedro Páramo", "c", 1)
	assert.Equal(t, "C102", second.ID)
}

func TestRegister_ExplicitSlot(t *testing.T) {
	// GIVEN: An empty shelf
	// WHEN: Registering with an explicit slot 7
	// THEN: The identifier encodes slot 7, not the lowest free slot

	m := newTestManager(t)

	book, err := m.Register(context.Background(), authz.RoleAdmin, catalog.RegisterInput{
		Title: "Rayuela",
		Shelf: "A",
		Level: 2,
		Slot:  intPtr(7),
	})
	require.NoError(t, err)
	assert.Equal(t, "A207", book.ID)
}

func TestRegister_ExplicitSlotOccupied(t *testing.T) {
	// GIVEN: Slot A201 is occupied
	// WHEN: Registering another book explicitly into slot 1
	// THEN: SlotOccupied, and nothing is persisted

	m := newTestManager(t)
	registerBook(t, m, "Aura", "A", 2)

	_, err := m.Register(context.Background(), authz.RoleAdmin, catalog.RegisterInput{
		Title: "Ficciones",
		Shelf: "A",
		Level: 2,
		Slot:  intPtr(1),
	})
	assert.ErrorIs(t, err, catalog.ErrSlotOccupied)

	books, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestRegister_RequiresBookManagement(t *testing.T) {
	// GIVEN: A librarian without the book_management capability
	// WHEN: Registering a book
	// THEN: Permission denied before any store write

	m := newTestManager(t)

	_, err := m.Register(context.Background(), authz.RoleLibrarian, catalog.RegisterInput{
		Title: "Don Quijote",
		Shelf: "C",
		Level: 1,
	})
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)

	books, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestRegister_ValidatesInput(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Register(ctx, authz.RoleAdmin, catalog.RegisterInput{Title: "x", Shelf: "CC", Level: 1})
	assert.ErrorIs(t, err, catalog.ErrInvalidLocation)

	_, err = m.Register(ctx, authz.RoleAdmin, catalog.RegisterInput{Title: "x", Shelf: "C", Level: 10})
	assert.ErrorIs(t, err, catalog.ErrInvalidLocation)

	_, err = m.Register(ctx, authz.RoleAdmin, catalog.RegisterInput{Title: "", Shelf: "C", Level: 1})
	assert.ErrorIs(t, err, catalog.ErrInvalidLocation)

	_, err = m.Register(ctx, authz.RoleAdmin, catalog.RegisterInput{Title: "x", Shelf: "C", Level: 1, Slot: intPtr(100)})
	assert.ErrorIs(t, err, catalog.ErrInvalidLocation)
}

// =============================================================================
// RETIREMENT AND SLOT REUSE
// =============================================================================

func TestRetire_FreesSlotForReuse(t *testing.T) {
	// GIVEN: C101 and C102 registered, C101 retired
	// WHEN: Registering a new book with auto assignment
	// THEN: The freed slot 1 is reused and the retired record survives

	m := newTestManager(t)
	ctx := context.Background()

	registerBook(t, m, "Don Quijote", "C", 1)
	registerBook(t, m, "Pedro Páramo", "C", 1)

	require.NoError(t, m.Retire(ctx, authz.RoleAdmin, "C101"))

	replacement := registerBook(t, m, "Cien años de soledad", "C", 1)
	assert.Equal(t, "C101", replacement.ID)

	// The retired record is still there alongside the replacement.
	books, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 3)
}

func TestRetire_UnknownBook(t *testing.T) {
	m := newTestManager(t)
	err := m.Retire(context.Background(), authz.RoleAdmin, "Z901")
	assert.ErrorIs(t, err, catalog.ErrBookNotFound)
}

func TestRetire_AlreadyRetired(t *testing.T) {
	// GIVEN: A retired book
	// WHEN: Retiring it again
	// THEN: ErrAlreadyRetired

	m := newTestManager(t)
	ctx := context.Background()

	registerBook(t, m, "Aura", "A", 1)
	require.NoError(t, m.Retire(ctx, authz.RoleAdmin, "A101"))

	err := m.Retire(ctx, authz.RoleAdmin, "A101")
	assert.ErrorIs(t, err, catalog.ErrAlreadyRetired)
}

func TestRetire_RequiresBookManagement(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	registerBook(t, m, "Aura", "A", 1)

	err := m.Retire(ctx, authz.RoleLibrarian, "A101")
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)

	book, err := m.Get(ctx, "A101")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusAvailable, book.Status)
}

// =============================================================================
// REACTIVATION
// =============================================================================

func TestReactivate_RestoresBook(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	registerBook(t, m, "Aura", "A", 1)
	require.NoError(t, m.Retire(ctx, authz.RoleAdmin, "A101"))
	require.NoError(t, m.Reactivate(ctx, authz.RoleAdmin, "A101"))

	book, err := m.Get(ctx, "A101")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusAvailable, book.Status)
	assert.Equal(t, "Aura", book.Title)
}

func TestReactivate_FailsWhenSlotWasReused(t *testing.T) {
	// GIVEN: A101 retired, then a new book registered into the freed slot
	// WHEN: Reactivating the original A101
	// THEN: SlotOccupied; one identifier cannot point at two live books

	m := newTestManager(t)
	ctx := context.Background()

	registerBook(t, m, "Aura", "A", 1)
	require.NoError(t, m.Retire(ctx, authz.RoleAdmin, "A101"))
	registerBook(t, m, "Ficciones", "A", 1)

	err := m.Reactivate(ctx, authz.RoleAdmin, "A101")
	assert.ErrorIs(t, err, catalog.ErrSlotOccupied)
}

func TestReactivate_NotRetired(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	registerBook(t, m, "Aura", "A", 1)
	err := m.Reactivate(ctx, authz.RoleAdmin, "A101")
	assert.ErrorIs(t, err, catalog.ErrNotRetired)
}

// =============================================================================
// VACANT SLOT QUERIES
// =============================================================================

func TestListVacant_ReturnsRetiredSlots(t *testing.T) {
	// GIVEN: Two retired books on different shelves
	// WHEN: Listing vacant slots with and without a shelf filter
	// THEN: Only matching freed slots come back, ordered

	m := newTestManager(t)
	ctx := context.Background()

	registerBook(t, m, "Aura", "A", 1)
	registerBook(t, m, "Rayuela", "B", 2)
	require.NoError(t, m.Retire(ctx, authz.RoleAdmin, "A101"))
	require.NoError(t, m.Retire(ctx, authz.RoleAdmin, "B201"))

	all, err := m.ListVacant(ctx, catalog.VacantFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].Shelf)
	assert.Equal(t, "B", all[1].Shelf)

	shelfB := "b"
	filtered, err := m.ListVacant(ctx, catalog.VacantFilter{Shelf: &shelfB})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, 2, filtered[0].Level)
	assert.Equal(t, 1, filtered[0].Slot)
}

func TestListVacant_ReusedSlotNoLongerVacant(t *testing.T) {
	// GIVEN: A freed slot that was claimed by a new registration
	// WHEN: Listing vacant slots
	// THEN: The slot does not appear

	m := newTestManager(t)
	ctx := context.Background()

	registerBook(t, m, "Aura", "A", 1)
	require.NoError(t, m.Retire(ctx, authz.RoleAdmin, "A101"))
	registerBook(t, m, "Ficciones", "A", 1)

	vacant, err := m.ListVacant(ctx, catalog.VacantFilter{})
	require.NoError(t, err)
	assert.Empty(t, vacant)
}

func TestGet_UnknownBook(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Get(context.Background(), "Z901")
	assert.ErrorIs(t, err, catalog.ErrBookNotFound)

	var nf *catalog.BookNotFoundError
	assert.ErrorAs(t, err, &nf)
	assert.Equal(t, "Z901", nf.ID)
}
