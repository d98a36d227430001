// Package constraint implements pin joints solved at the velocity level
// with Baumgarte positional stabilization.
package constraint

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/rigid2d/body"
)

// DefaultBaumgarte feeds the full positional error back each step.
// Softer factors in the 0.2-0.5 range trade stiffness for less jitter.
const DefaultBaumgarte = 1.0

var ErrNilBody = errors.New("constraint: nil body")

// Constraint is enforced once per world step, after collision resolution
// and before integration. Implementations hold no kinematic state between
// solves.
type Constraint interface {
	Solve(dt float64)
	Bodies() []*body.RigidBody
}

// PinJoint holds a point on A and a point on B together.
type PinJoint struct {
	A, B *body.RigidBody
	// LocalA and LocalB are anchor offsets in each body's local frame.
	LocalA, LocalB cp.Vector
	Baumgarte      float64
}

func NewPinJoint(a, b *body.RigidBody, localA, localB cp.Vector) (*PinJoint, error) {
	if a == nil || b == nil {
		return nil, ErrNilBody
	}
	return &PinJoint{A: a, B: b, LocalA: localA, LocalB: localB, Baumgarte: DefaultBaumgarte}, nil
}

// NewPinJointAt pins a and b at a shared world point.
func NewPinJointAt(a, b *body.RigidBody, world cp.Vector) (*PinJoint, error) {
	if a == nil || b == nil {
		return nil, ErrNilBody
	}
	return NewPinJoint(a, b, ToLocal(a, world), ToLocal(b, world))
}

func (j *PinJoint) Bodies() []*body.RigidBody { return []*body.RigidBody{j.A, j.B} }

// Anchors returns both anchors in world space.
func (j *PinJoint) Anchors() (cp.Vector, cp.Vector) {
	return ToWorld(j.A, j.LocalA), ToWorld(j.B, j.LocalB)
}

func (j *PinJoint) Solve(dt float64) {
	SolvePin(j.A, j.B, j.LocalA, j.LocalB, j.Baumgarte, dt)
}

// FixedPinJoint holds a point on A at a fixed world position.
type FixedPinJoint struct {
	A         *body.RigidBody
	LocalA    cp.Vector
	Target    cp.Vector
	Baumgarte float64
}

func NewFixedPinJoint(a *body.RigidBody, localA, target cp.Vector) (*FixedPinJoint, error) {
	if a == nil {
		return nil, ErrNilBody
	}
	return &FixedPinJoint{A: a, LocalA: localA, Target: target, Baumgarte: DefaultBaumgarte}, nil
}

func (j *FixedPinJoint) Bodies() []*body.RigidBody { return []*body.RigidBody{j.A} }

func (j *FixedPinJoint) Anchor() cp.Vector { return ToWorld(j.A, j.LocalA) }

func (j *FixedPinJoint) Solve(dt float64) {
	SolveFixedPin(j.A, j.LocalA, j.Target, j.Baumgarte, dt)
}

// ToWorld maps a body-local offset to a world point.
func ToWorld(b *body.RigidBody, local cp.Vector) cp.Vector {
	return b.Center().Add(local.Rotate(cp.ForAngle(b.Angle())))
}

// ToLocal maps a world point into b's local frame.
func ToLocal(b *body.RigidBody, world cp.Vector) cp.Vector {
	return world.Sub(b.Center()).Unrotate(cp.ForAngle(b.Angle()))
}

// SolvePin applies one velocity impulse pair that cancels the relative
// anchor velocity of a and b and closes baumgarte*diff/dt of their
// positional error.
func SolvePin(a, b *body.RigidBody, localA, localB cp.Vector, baumgarte, dt float64) {
	if dt <= 0 {
		return
	}
	rA := localA.Rotate(cp.ForAngle(a.Angle()))
	rB := localB.Rotate(cp.ForAngle(b.Angle()))
	diff := b.Center().Add(rB).Sub(a.Center().Add(rA))
	vRel := b.VelocityAt(rB).Sub(a.VelocityAt(rA))

	k := effectiveMass(a.InvMass(), a.InvInertia(), rA).Add(effectiveMass(b.InvMass(), b.InvInertia(), rB))
	p, ok := solve(k, vRel.Add(diff.Mult(baumgarte/dt)))
	if !ok {
		return
	}
	a.ApplyImpulse(p.Neg(), rA)
	b.ApplyImpulse(p, rB)
}

// SolveFixedPin is SolvePin against an immovable world point.
func SolveFixedPin(a *body.RigidBody, localA, target cp.Vector, baumgarte, dt float64) {
	if dt <= 0 {
		return
	}
	rA := localA.Rotate(cp.ForAngle(a.Angle()))
	diff := target.Sub(a.Center().Add(rA))
	vRel := a.VelocityAt(rA).Neg()

	k := effectiveMass(a.InvMass(), a.InvInertia(), rA)
	p, ok := solve(k, vRel.Add(diff.Mult(baumgarte/dt)))
	if !ok {
		return
	}
	a.ApplyImpulse(p.Neg(), rA)
}

// effectiveMass is one body's share of the 2x2 point-constraint matrix.
func effectiveMass(invMass, invInertia float64, r cp.Vector) mgl64.Mat2 {
	xy := -invInertia * r.X * r.Y
	return mgl64.Mat2{
		invMass + invInertia*r.Y*r.Y, xy,
		xy, invMass + invInertia*r.X*r.X,
	}
}

// solve returns -K^-1 * rhs, or false when K is singular.
func solve(k mgl64.Mat2, rhs cp.Vector) (cp.Vector, bool) {
	if k.Det() == 0 {
		return cp.Vector{}, false
	}
	v := k.Inv().Mul2x1(mgl64.Vec2{rhs.X, rhs.Y})
	return cp.Vector{X: -v[0], Y: -v[1]}, true
}
