package editor

import "github.com/menta2k/bbox-labeler/pkg/types"

// Store is the ordered box collection of the loaded image. Boxes are
// identified by position only: index order is z-order, last is topmost.
type Store struct {
	boxes []types.Box
}

// NewStore creates a store holding a copy of boxes
func NewStore(boxes []types.Box) *Store {
	s := &Store{}
	s.Replace(boxes)
	return s
}

// Len returns the number of boxes
func (s *Store) Len() int { return len(s.boxes) }

// Valid reports whether i addresses a box
func (s *Store) Valid(i int) bool { return i >= 0 && i < len(s.boxes) }

// At returns the box at index i
func (s *Store) At(i int) (types.Box, bool) {
	if !s.Valid(i) {
		return types.Box{}, false
	}
	return s.boxes[i], true
}

// All returns a copy of the boxes in order
func (s *Store) All() []types.Box {
	out := make([]types.Box, len(s.boxes))
	copy(out, s.boxes)
	return out
}

// Replace swaps the whole collection, used when a new image is loaded
func (s *Store) Replace(boxes []types.Box) {
	s.boxes = make([]types.Box, len(boxes))
	copy(s.boxes, boxes)
}

// Append adds a box on top and returns its index
func (s *Store) Append(b types.Box) int {
	s.boxes = append(s.boxes, b)
	return len(s.boxes) - 1
}

// Set overwrites the box at index i
func (s *Store) Set(i int, b types.Box) bool {
	if !s.Valid(i) {
		return false
	}
	s.boxes[i] = b
	return true
}

// Remove deletes the box at index i; later boxes shift down by one
func (s *Store) Remove(i int) bool {
	if !s.Valid(i) {
		return false
	}
	s.boxes = append(s.boxes[:i], s.boxes[i+1:]...)
	return true
}

// ToggleFlag flips the true-positive flag and returns the new value
func (s *Store) ToggleFlag(i int) (bool, bool) {
	if !s.Valid(i) {
		return false, false
	}
	s.boxes[i].IsTruePositive = !s.boxes[i].IsTruePositive
	return s.boxes[i].IsTruePositive, true
}

// SetClass changes the class of the box at index i
func (s *Store) SetClass(i, cls int) bool {
	if !s.Valid(i) {
		return false
	}
	s.boxes[i].ClassID = cls
	return true
}

// RemapAfterDelete returns the selection index after box removed was deleted
func RemapAfterDelete(selected, removed int) int {
	switch {
	case selected < 0:
		return NoSelection
	case selected == removed:
		return NoSelection
	case selected > removed:
		return selected - 1
	default:
		return selected
	}
}
