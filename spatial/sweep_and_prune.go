package spatial

import "github.com/jakecoffman/cp"

type sapEntry[T comparable] struct {
	obj T
	bb  cp.BB
}

// SweepAndPrune keeps objects sorted by the left edge of their bounds.
// Update re-sorts a single object with insertion steps, which is close to
// O(1) when objects move a little between frames.
type SweepAndPrune[T comparable] struct {
	entries []sapEntry[T]
	pos     map[T]int
	bounds  BoundsFunc[T]
}

func NewSweepAndPrune[T comparable](bounds BoundsFunc[T]) *SweepAndPrune[T] {
	return &SweepAndPrune[T]{
		pos:    make(map[T]int),
		bounds: bounds,
	}
}

func (s *SweepAndPrune[T]) Clear() {
	clear(s.entries)
	s.entries = s.entries[:0]
	clear(s.pos)
}

// Insert adds obj, or refreshes it when already present.
func (s *SweepAndPrune[T]) Insert(obj T) {
	if _, ok := s.pos[obj]; ok {
		s.Update(obj)
		return
	}
	s.entries = append(s.entries, sapEntry[T]{obj: obj, bb: s.bounds(obj)})
	i := len(s.entries) - 1
	s.pos[obj] = i
	s.siftLeft(i)
}

// Update refreshes obj's bounds and restores sort order around it.
func (s *SweepAndPrune[T]) Update(obj T) {
	i, ok := s.pos[obj]
	if !ok {
		s.Insert(obj)
		return
	}
	s.entries[i].bb = s.bounds(obj)
	i = s.siftLeft(i)
	s.siftRight(i)
}

func (s *SweepAndPrune[T]) Remove(obj T) bool {
	i, ok := s.pos[obj]
	if !ok {
		return false
	}
	delete(s.pos, obj)
	copy(s.entries[i:], s.entries[i+1:])
	var zero sapEntry[T]
	s.entries[len(s.entries)-1] = zero
	s.entries = s.entries[:len(s.entries)-1]
	for j := i; j < len(s.entries); j++ {
		s.pos[s.entries[j].obj] = j
	}
	return true
}

// Retrieve sweeps entries whose left edge does not pass obj's right edge
// and keeps those overlapping on both axes.
func (s *SweepAndPrune[T]) Retrieve(obj T) []T {
	q := s.bounds(obj)
	var out []T
	for _, e := range s.entries {
		if e.bb.L > q.R {
			break
		}
		if e.obj == obj || e.bb.R < q.L {
			continue
		}
		if e.bb.B <= q.T && e.bb.T >= q.B {
			out = append(out, e.obj)
		}
	}
	return out
}

func (s *SweepAndPrune[T]) Stats() Stats {
	return Stats{Kind: KindSweepAndPrune, NodeCount: len(s.entries)}
}

// Sorted reports whether entries are ordered by left edge.
func (s *SweepAndPrune[T]) Sorted() bool {
	for i := 1; i < len(s.entries); i++ {
		if s.entries[i-1].bb.L > s.entries[i].bb.L {
			return false
		}
	}
	return true
}

func (s *SweepAndPrune[T]) siftLeft(i int) int {
	for i > 0 && s.entries[i-1].bb.L > s.entries[i].bb.L {
		s.swap(i-1, i)
		i--
	}
	return i
}

func (s *SweepAndPrune[T]) siftRight(i int) int {
	for i < len(s.entries)-1 && s.entries[i+1].bb.L < s.entries[i].bb.L {
		s.swap(i, i+1)
		i++
	}
	return i
}

func (s *SweepAndPrune[T]) swap(i, j int) {
	s.entries[i], s.entries[j] = s.entries[j], s.entries[i]
	s.pos[s.entries[i].obj] = i
	s.pos[s.entries[j].obj] = j
}
