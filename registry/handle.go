package registry

import "strconv"

// Handle is a stable reference to a registry slot. The low 32 bits hold the
// slot index (1-based) and the high 32 bits its generation, so a handle to a
// removed entry never matches a later occupant of the same slot.
type Handle uint64

type slot uint32
type generation uint32

const slotBits = 32

func makeHandle(s slot, gen generation) Handle {
	return Handle(uint64(gen)<<slotBits | uint64(s))
}

func (h Handle) slot() slot {
	return slot(uint32(h))
}

func (h Handle) generation() generation {
	return generation(uint32(uint64(h) >> slotBits))
}

func (h Handle) String() string {
	return strconv.FormatUint(uint64(h.slot()), 10) + "v" + strconv.FormatUint(uint64(h.generation()), 10)
}

// Valid reports whether h was ever issued. It says nothing about liveness.
func (h Handle) Valid() bool {
	return h.slot() > 0
}

// handleStore tracks slot generations and free slots.
type handleStore struct {
	next slot
	gen  []generation
	free []slot
}

func (s *handleStore) create() Handle {
	var id slot
	if len(s.free) > 0 {
		id = s.free[len(s.free)-1]
		s.free = s.free[:len(s.free)-1]
	} else {
		s.next++
		id = s.next
		s.gen = append(s.gen, 0)
	}
	return makeHandle(id, s.gen[id-1])
}

func (s *handleStore) destroy(h Handle) bool {
	if !s.isAlive(h) {
		return false
	}
	s.gen[h.slot()-1]++
	s.free = append(s.free, h.slot())
	return true
}

func (s *handleStore) isAlive(h Handle) bool {
	id := h.slot()
	if id == 0 || int(id) > len(s.gen) {
		return false
	}
	return s.gen[id-1] == h.generation()
}
