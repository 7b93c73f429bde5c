package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ivbsa-designe/biblioteca-ceprereso/catalog"
)

// =============================================================================
// FIRST-FREE-SLOT SELECTION
// =============================================================================

func TestFirstFreeSlot_FillsGaps(t *testing.T) {
	// GIVEN: Slots 1, 2 and 4 are occupied
	// WHEN: Asking for the next slot
	// THEN: The gap at 3 is filled before extending past 4

	assert.Equal(t, 3, catalog.FirstFreeSlot([]int{1, 2, 4}))
}

func TestFirstFreeSlot_ExtendsWhenContiguous(t *testing.T) {
	// GIVEN: Slots 1-3 occupied with no gaps
	// WHEN: Asking for the next slot
	// THEN: The next slot past the run is chosen

	assert.Equal(t, 4, catalog.FirstFreeSlot([]int{1, 2, 3}))
}

func TestFirstFreeSlot_EmptyLevelStartsAtOne(t *testing.T) {
	assert.Equal(t, 1, catalog.FirstFreeSlot(nil))
	assert.Equal(t, 1, catalog.FirstFreeSlot([]int{}))
}

func TestFirstFreeSlot_SkipsLeadingGap(t *testing.T) {
	// GIVEN: Slot 1 is free but 2 and 3 are occupied
	// WHEN: Asking for the next slot
	// THEN: Slot 1 is chosen

	assert.Equal(t, 1, catalog.FirstFreeSlot([]int{2, 3}))
}

func TestFirstFreeSlot_IgnoresOrderAndDuplicates(t *testing.T) {
	// The store should never hand us duplicates, but the scan must not
	// skip a slot if it does.
	assert.Equal(t, 3, catalog.FirstFreeSlot([]int{4, 2, 1, 2}))
}

// =============================================================================
// EXPLICIT SLOT VALIDATION
// =============================================================================

func TestValidateSlotFree_OccupiedSlotRejected(t *testing.T) {
	// GIVEN: Slot 2 on C-1 is occupied
	// WHEN: Validating an explicit placement at C-1 slot 2
	// THEN: SlotOccupied is returned with the location attached

	err := catalog.ValidateSlotFree("C", 1, 2, []int{1, 2})
	assert.ErrorIs(t, err, catalog.ErrSlotOccupied)

	var occ *catalog.SlotOccupiedError
	assert.ErrorAs(t, err, &occ)
	assert.Equal(t, "C", occ.Shelf)
	assert.Equal(t, 1, occ.Level)
	assert.Equal(t, 2, occ.Slot)
}

func TestValidateSlotFree_FreeSlotAccepted(t *testing.T) {
	assert.NoError(t, catalog.ValidateSlotFree("C", 1, 3, []int{1, 2}))
	assert.NoError(t, catalog.ValidateSlotFree("C", 1, 1, nil))
}
