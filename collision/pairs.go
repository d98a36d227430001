package collision

import (
	"sort"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/rigid2d/body"
)

const DefaultMaxPairAge = 10

// Pair is a persistent record of two bodies in contact. A has the lower ID
// and Normal points from A toward B.
type Pair struct {
	Key          PairKey
	A, B         *body.RigidBody
	Active       bool
	Contacts     []cp.Vector
	Normal       cp.Vector
	Depth        float64
	FrameCreated uint64
	FrameUpdated uint64
}

// PairEvents lists the pairs that changed during one PairManager.Update.
type PairEvents struct {
	Created []*Pair
	Updated []*Pair
	Removed []*Pair
}

func (e PairEvents) Empty() bool {
	return len(e.Created) == 0 && len(e.Updated) == 0 && len(e.Removed) == 0
}

// PairManager tracks collision pairs across frames. A pair that stops
// colliding stays inactive for up to maxAge frames before it is removed.
type PairManager struct {
	pairs  map[PairKey]*Pair
	frame  uint64
	maxAge uint64
}

func NewPairManager(maxAge int) *PairManager {
	if maxAge < 0 {
		maxAge = DefaultMaxPairAge
	}
	return &PairManager{
		pairs:  make(map[PairKey]*Pair),
		maxAge: uint64(maxAge),
	}
}

func (pm *PairManager) Frame() uint64   { return pm.frame }
func (pm *PairManager) MaxAge() int     { return int(pm.maxAge) }
func (pm *PairManager) Len() int        { return len(pm.pairs) }
func (pm *PairManager) SetMaxAge(n int) { pm.maxAge = uint64(max(n, 0)) }

// Update advances one frame: every pair is marked inactive, colliding
// manifolds refresh or create their pair, and inactive pairs older than the
// max age are dropped.
func (pm *PairManager) Update(manifolds []Manifold) PairEvents {
	pm.frame++
	for _, p := range pm.pairs {
		p.Active = false
	}

	var ev PairEvents
	for _, m := range manifolds {
		if !m.Collision {
			continue
		}
		a, b, normal := m.A, m.B, m.Normal
		if a.ID() > b.ID() {
			a, b, normal = b, a, normal.Neg()
		}
		key := PairKey{Lo: a.ID(), Hi: b.ID()}

		p, ok := pm.pairs[key]
		if !ok {
			p = &Pair{Key: key, A: a, B: b, FrameCreated: pm.frame}
			pm.pairs[key] = p
			ev.Created = append(ev.Created, p)
		} else {
			ev.Updated = append(ev.Updated, p)
		}
		p.Active = true
		p.FrameUpdated = pm.frame
		p.Contacts = append(p.Contacts[:0], m.Contacts...)
		p.Normal = normal
		p.Depth = m.Depth
	}

	for key, p := range pm.pairs {
		if !p.Active && pm.frame-p.FrameUpdated > pm.maxAge {
			delete(pm.pairs, key)
			ev.Removed = append(ev.Removed, p)
		}
	}
	sortPairs(ev.Removed)
	return ev
}

// RemoveBody drops every pair involving b and returns them.
func (pm *PairManager) RemoveBody(b *body.RigidBody) []*Pair {
	var out []*Pair
	for key, p := range pm.pairs {
		if p.A == b || p.B == b {
			delete(pm.pairs, key)
			out = append(out, p)
		}
	}
	sortPairs(out)
	return out
}

func (pm *PairManager) Get(a, b *body.RigidBody) (*Pair, bool) {
	p, ok := pm.pairs[MakeKey(a, b)]
	return p, ok
}

// Pairs returns all tracked pairs ordered by key.
func (pm *PairManager) Pairs() []*Pair {
	out := make([]*Pair, 0, len(pm.pairs))
	for _, p := range pm.pairs {
		out = append(out, p)
	}
	sortPairs(out)
	return out
}

// ActivePairs returns the pairs that collided this frame, ordered by key.
func (pm *PairManager) ActivePairs() []*Pair {
	var out []*Pair
	for _, p := range pm.pairs {
		if p.Active {
			out = append(out, p)
		}
	}
	sortPairs(out)
	return out
}

func (pm *PairManager) Clear() {
	clear(pm.pairs)
	pm.frame = 0
}

func sortPairs(ps []*Pair) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Key.Lo != ps[j].Key.Lo {
			return ps[i].Key.Lo < ps[j].Key.Lo
		}
		return ps[i].Key.Hi < ps[j].Key.Hi
	})
}
