package collision

import (
	"github.com/milk9111/rigid2d/body"
	"github.com/milk9111/rigid2d/spatial"
)

// PairKey identifies a body pair independent of argument order.
type PairKey struct {
	Lo, Hi uint64
}

func MakeKey(a, b *body.RigidBody) PairKey {
	if a.ID() > b.ID() {
		a, b = b, a
	}
	return PairKey{Lo: a.ID(), Hi: b.ID()}
}

// Candidate is a broad-phase pair, ordered so A has the lower ID.
type Candidate struct {
	A, B *body.RigidBody
}

// CanCollide applies the cheap pair rejections: identity, static-static
// and the collision filter.
func CanCollide(a, b *body.RigidBody) bool {
	if a == b {
		return false
	}
	if a.IsStatic() && b.IsStatic() {
		return false
	}
	return a.Filter().CanCollide(b.Filter())
}

// BroadPhase queries idx for every source body and returns the distinct
// pairs that pass CanCollide and whose AABBs intersect, touching included.
// Output order follows sources, then retrieval order.
func BroadPhase(sources []*body.RigidBody, idx spatial.Index[*body.RigidBody]) []Candidate {
	seen := make(map[PairKey]struct{})
	var out []Candidate
	for _, a := range sources {
		abb := a.AABB()
		for _, b := range idx.Retrieve(a) {
			if !CanCollide(a, b) {
				continue
			}
			key := MakeKey(a, b)
			if _, dup := seen[key]; dup {
				continue
			}
			if !abb.Intersects(b.AABB()) {
				continue
			}
			seen[key] = struct{}{}
			if a.ID() < b.ID() {
				out = append(out, Candidate{A: a, B: b})
			} else {
				out = append(out, Candidate{A: b, B: a})
			}
		}
	}
	return out
}
