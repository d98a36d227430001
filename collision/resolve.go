package collision

import (
	"github.com/jakecoffman/cp"
	"github.com/milk9111/rigid2d/body"
)

const DefaultRestitution = 0.4

func immovable(b *body.RigidBody) bool {
	return b.IsStatic() || b.IsMovingStatic()
}

// CorrectPositions pushes the bodies of m apart along the normal by the
// penetration depth, split evenly unless one side cannot move.
func CorrectPositions(m Manifold) {
	a, b := m.A, m.B
	push := m.Normal.Mult(m.Depth)
	switch fixedA, fixedB := immovable(a), immovable(b); {
	case fixedA && fixedB:
	case fixedA:
		b.Move(push)
	case fixedB:
		a.Move(push.Neg())
	default:
		half := push.Mult(0.5)
		a.Move(half.Neg())
		b.Move(half)
	}
}

// ResolveLinear corrects positions and applies a restitution impulse along
// the normal, ignoring rotation.
func ResolveLinear(m Manifold, restitution float64) {
	if !m.Collision {
		return
	}
	a, b := m.A, m.B
	if a.IsStatic() && b.IsStatic() {
		return
	}
	CorrectPositions(m)

	vn := b.Velocity().Sub(a.Velocity()).Dot(m.Normal)
	if vn > 0 {
		return
	}
	invMass := a.InvMass() + b.InvMass()
	if invMass == 0 {
		return
	}
	j := -(1 + restitution) * vn / invMass
	impulse := m.Normal.Mult(j)
	a.ApplyImpulse(impulse.Neg(), cp.Vector{})
	b.ApplyImpulse(impulse, cp.Vector{})
}

// ResolveWithRotation corrects positions and applies a restitution impulse
// at each contact point, divided evenly across contacts. Impulses are
// computed from the pre-collision velocities and applied together.
func ResolveWithRotation(m Manifold, restitution float64) {
	if !m.Collision {
		return
	}
	a, b := m.A, m.B
	if a.IsStatic() && b.IsStatic() {
		return
	}
	if len(m.Contacts) == 0 {
		ResolveLinear(m, restitution)
		return
	}

	n := m.Normal
	centerA, centerB := a.Center(), b.Center()
	count := float64(len(m.Contacts))
	invA, invB := a.InvMass(), b.InvMass()
	iA, iB := a.InvInertia(), b.InvInertia()

	type contactImpulse struct {
		rA, rB, impulse cp.Vector
	}
	impulses := make([]contactImpulse, 0, len(m.Contacts))
	for _, c := range m.Contacts {
		rA := c.Sub(centerA)
		rB := c.Sub(centerB)
		vn := b.VelocityAt(rB).Sub(a.VelocityAt(rA)).Dot(n)
		if vn > 0 {
			continue
		}
		ca, cb := rA.Cross(n), rB.Cross(n)
		denom := invA + invB + iA*ca*ca + iB*cb*cb
		if denom == 0 {
			continue
		}
		j := -(1 + restitution) * vn / denom / count
		impulses = append(impulses, contactImpulse{rA: rA, rB: rB, impulse: n.Mult(j)})
	}

	CorrectPositions(m)
	for _, ci := range impulses {
		a.ApplyImpulse(ci.impulse.Neg(), ci.rA)
		b.ApplyImpulse(ci.impulse, ci.rB)
	}
}
