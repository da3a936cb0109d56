package annotation

// Store is the ordered set of boxes for one image. Later boxes are drawn on
// top of earlier ones, so the last box is the top-most.
type Store struct {
	boxes []Box
}

// NewStore creates a store holding a copy of boxes
func NewStore(boxes []Box) *Store {
	s := &Store{}
	s.Reset(boxes)
	return s
}

// Len returns the number of boxes
func (s *Store) Len() int {
	return len(s.boxes)
}

// At returns the box at index i. ok is false when i is out of range.
func (s *Store) At(i int) (Box, bool) {
	if i < 0 || i >= len(s.boxes) {
		return Box{}, false
	}
	return s.boxes[i], true
}

// Boxes returns a copy of all boxes in order
func (s *Store) Boxes() []Box {
	out := make([]Box, len(s.boxes))
	copy(out, s.boxes)
	return out
}

// Append adds a box on top and returns its index
func (s *Store) Append(b Box) int {
	s.boxes = append(s.boxes, b)
	return len(s.boxes) - 1
}

// Delete removes the box at index i, shifting later boxes down by one
func (s *Store) Delete(i int) bool {
	if i < 0 || i >= len(s.boxes) {
		return false
	}
	s.boxes = append(s.boxes[:i], s.boxes[i+1:]...)
	return true
}

// Replace overwrites the geometry and class of the box at index i
func (s *Store) Replace(i int, b Box) bool {
	if i < 0 || i >= len(s.boxes) {
		return false
	}
	s.boxes[i] = b
	return true
}

// Remap rewrites class ids through mapping (old id -> new id). Boxes whose
// class id has no entry are dropped. It returns the number of dropped boxes.
func (s *Store) Remap(mapping map[int]int) int {
	var dropped int
	s.boxes, dropped = RemapBoxes(s.boxes, mapping)
	return dropped
}

// Reset replaces the contents with a copy of boxes
func (s *Store) Reset(boxes []Box) {
	s.boxes = make([]Box, len(boxes))
	copy(s.boxes, boxes)
}

// RemapBoxes applies a class-id mapping to boxes in place and returns the
// filtered slice together with the number of dropped boxes.
func RemapBoxes(boxes []Box, mapping map[int]int) ([]Box, int) {
	kept := boxes[:0]
	for _, b := range boxes {
		newID, ok := mapping[b.ClassID]
		if !ok {
			continue
		}
		b.ClassID = newID
		kept = append(kept, b)
	}
	return kept, len(boxes) - len(kept)
}
