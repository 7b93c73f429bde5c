/*
codec.go - Canonical shelf location identifier

PURPOSE:
  Pure conversion between (shelf, level, slot) and the identifier printed
  on the book's spine label: "<SHELF><LEVEL><SLOT2>", e.g. C101 for shelf
  C, level 1, slot 1. No I/O, no side effects.

FORMAT CONSTRAINT:
  Slot is zero-padded to two digits; level is rendered without padding.
  A two-digit level would make the concatenation ambiguous ("A101" could
  be level 1 slot 01 or level 10 slot 1), so level is capped at a single
  digit (1-9). Lifting the cap requires a delimited or fixed-width format
  and a product decision, not a code change here.

SEE ALSO:
  - allocator.go: slot selection for new registrations
  - manager.go: the only caller that mints identifiers
*/
package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Slot numbers and levels are bounded by the identifier format.
const (
	MinSlot  = 1
	MaxSlot  = 99
	MinLevel = 1
	MaxLevel = 9
)

// ErrInvalidLocation is the sentinel for malformed shelf/level/slot input.
var ErrInvalidLocation = errors.New("invalid shelf location")

// LocationError carries the offending field and value.
type LocationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *LocationError) Unwrap() error {
	return ErrInvalidLocation
}

// NormalizeShelf uppercases and validates a shelf letter.
func NormalizeShelf(shelf string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(shelf))
	if len(s) != 1 || s[0] < 'A' || s[0] > 'Z' {
		return "", &LocationError{Field: "shelf", Value: shelf, Reason: "must be a single letter A-Z"}
	}
	return s, nil
}

// ValidateLevel checks the single-digit level bound.
func ValidateLevel(level int) error {
	if level < MinLevel || level > MaxLevel {
		return &LocationError{Field: "level", Value: strconv.Itoa(level),
			Reason: fmt.Sprintf("must be %d-%d", MinLevel, MaxLevel)}
	}
	return nil
}

// ValidateSlot checks the two-digit slot bound.
func ValidateSlot(slot int) error {
	if slot < MinSlot || slot > MaxSlot {
		return &LocationError{Field: "slot", Value: strconv.Itoa(slot),
			Reason: fmt.Sprintf("must be %d-%d", MinSlot, MaxSlot)}
	}
	return nil
}

// EncodeID builds the canonical identifier from a location.
// The shelf is normalized to uppercase; slot is zero-padded to two digits.
func EncodeID(shelf string, level, slot int) (string, error) {
	s, err := NormalizeShelf(shelf)
	if err != nil {
		return "", err
	}
	if err := ValidateLevel(level); err != nil {
		return "", err
	}
	if err := ValidateSlot(slot); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d%02d", s, level, slot), nil
}

// DecodeID splits an identifier back into (shelf, level, slot).
// Only the single-digit-level format is accepted, so the decode is an
// exact inverse of EncodeID.
func DecodeID(id string) (shelf string, level, slot int, err error) {
	if len(id) != 4 {
		return "", 0, 0, &LocationError{Field: "id", Value: id, Reason: "must be 4 characters"}
	}
	shelf, err = NormalizeShelf(id[:1])
	if err != nil {
		return "", 0, 0, err
	}
	level, err = strconv.Atoi(id[1:2])
	if err != nil || ValidateLevel(level) != nil {
		return "", 0, 0, &LocationError{Field: "id", Value: id, Reason: "level digit out of range"}
	}
	slot, err = strconv.Atoi(id[2:])
	if err != nil || ValidateSlot(slot) != nil {
		return "", 0, 0, &LocationError{Field: "id", Value: id, Reason: "slot digits out of range"}
	}
	return shelf, level, slot, nil
}
