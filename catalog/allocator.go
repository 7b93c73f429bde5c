/*
allocator.go - Lowest free slot computation

PURPOSE:
  Given the occupied slot numbers for a (shelf, level) pair, decide where
  the next book goes. Occupancy excludes retired books: a retired record
  keeps its row for history but its slot counts as free.

ALGORITHM:
  Sort occupied ascending, scan from 1, return the first integer not
  present contiguously from 1. Gaps left by retirements are filled before
  the shelf grows. {1,2,4} -> 3; {1,2,3} -> 4; {} -> 1.
*/
package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// ErrSlotOccupied is the sentinel for slot conflicts with non-retired books.
var ErrSlotOccupied = errors.New("slot occupied")

// SlotOccupiedError identifies the contested location.
type SlotOccupiedError struct {
	Shelf string
	Level int
	Slot  int
}

func (e *SlotOccupiedError) Error() string {
	id, err := EncodeID(e.Shelf, e.Level, e.Slot)
	if err != nil {
		id = fmt.Sprintf("%s%d%02d", e.Shelf, e.Level, e.Slot)
	}
	return fmt.Sprintf("slot %s is already occupied", id)
}

func (e *SlotOccupiedError) Unwrap() error {
	return ErrSlotOccupied
}

// FirstFreeSlot returns the smallest positive slot number not in occupied.
// The input may be unsorted and may contain duplicates.
func FirstFreeSlot(occupied []int) int {
	sorted := make([]int, len(occupied))
	copy(sorted, occupied)
	sort.Ints(sorted)

	free := MinSlot
	for _, slot := range sorted {
		switch {
		case slot < free:
			// duplicates and out-of-range leftovers
		case slot == free:
			free++
		default:
			return free
		}
	}
	return free
}

// ValidateSlotFree fails with SlotOccupiedError when the requested slot is
// already used by a non-retired book at that shelf/level.
func ValidateSlotFree(shelf string, level, slot int, occupied []int) error {
	for _, used := range occupied {
		if used == slot {
			return &SlotOccupiedError{Shelf: shelf, Level: level, Slot: slot}
		}
	}
	return nil
}
