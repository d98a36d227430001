package registry

// SparseSet stores values densely keyed by a positive slot number.
// Removal swaps the last value into the hole.
type SparseSet[T any] struct {
	denseSlots  []int
	denseValues []T
	sparse      []int
}

// Has returns true if the slot exists in the set.
func (s *SparseSet[T]) Has(id int) bool {
	if s == nil || id <= 0 || id-1 >= len(s.sparse) {
		return false
	}
	idx := s.sparse[id-1]
	return idx >= 0 && idx < len(s.denseSlots) && s.denseSlots[idx] == id
}

// Get returns the value stored for id.
func (s *SparseSet[T]) Get(id int) (T, bool) {
	var zero T
	if !s.Has(id) {
		return zero, false
	}
	return s.denseValues[s.sparse[id-1]], true
}

// Set inserts or updates the value for id.
func (s *SparseSet[T]) Set(id int, v T) {
	if s == nil || id <= 0 {
		return
	}
	for id-1 >= len(s.sparse) {
		s.sparse = append(s.sparse, -1)
	}
	if s.Has(id) {
		s.denseValues[s.sparse[id-1]] = v
		return
	}
	s.denseSlots = append(s.denseSlots, id)
	s.denseValues = append(s.denseValues, v)
	s.sparse[id-1] = len(s.denseSlots) - 1
}

// Remove deletes the value for id if present.
func (s *SparseSet[T]) Remove(id int) bool {
	if s == nil || !s.Has(id) {
		return false
	}
	idx := s.sparse[id-1]
	last := len(s.denseSlots) - 1
	lastID := s.denseSlots[last]

	s.denseSlots[idx] = s.denseSlots[last]
	s.denseValues[idx] = s.denseValues[last]
	s.sparse[lastID-1] = idx

	var zero T
	s.denseValues[last] = zero
	s.denseSlots = s.denseSlots[:last]
	s.denseValues = s.denseValues[:last]
	s.sparse[id-1] = -1
	return true
}

func (s *SparseSet[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.denseSlots)
}

// Slots returns the dense slot list. Callers must not modify it.
func (s *SparseSet[T]) Slots() []int {
	if s == nil {
		return nil
	}
	return s.denseSlots
}

// Values returns the dense value list. Callers must not modify it.
func (s *SparseSet[T]) Values() []T {
	if s == nil {
		return nil
	}
	return s.denseValues
}
