package constraint

import (
	"errors"
	"math"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/rigid2d/body"
)

const dt = 1.0 / 60

func ball(t *testing.T, x, y float64) *body.RigidBody {
	t.Helper()
	b, err := body.NewRigidBody(body.MustCircle(1), cp.Vector{X: x, Y: y}, 1)
	if err != nil {
		t.Fatalf("NewRigidBody: %v", err)
	}
	return b
}

func nearVec(a, b cp.Vector) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9
}

func TestFixedPinPullsToTarget(t *testing.T) {
	b := ball(t, 10, 0)
	j, err := NewFixedPinJoint(b, cp.Vector{}, cp.Vector{})
	if err != nil {
		t.Fatalf("NewFixedPinJoint: %v", err)
	}
	j.Solve(dt)
	b.Step(dt, body.Environment{})
	if !nearVec(b.Center(), cp.Vector{}) {
		t.Fatalf("full Baumgarte should close the gap in one step, center %v", b.Center())
	}
}

func TestPinJointMeetsInTheMiddle(t *testing.T) {
	a := ball(t, 0, 0)
	b := ball(t, 10, 0)
	j, err := NewPinJoint(a, b, cp.Vector{}, cp.Vector{})
	if err != nil {
		t.Fatalf("NewPinJoint: %v", err)
	}
	j.Solve(dt)
	if !nearVec(a.Velocity(), b.Velocity().Neg()) {
		t.Fatalf("impulses should be equal and opposite: %v %v", a.Velocity(), b.Velocity())
	}
	env := body.Environment{}
	a.Step(dt, env)
	b.Step(dt, env)
	want := cp.Vector{X: 5}
	if !nearVec(a.Center(), want) || !nearVec(b.Center(), want) {
		t.Fatalf("expected both at %v, got %v %v", want, a.Center(), b.Center())
	}
}

func TestPinJointCancelsRelativeVelocity(t *testing.T) {
	a := ball(t, 0, 0)
	b := ball(t, 0, 0)
	b.SetVelocity(cp.Vector{X: 5})
	j, _ := NewPinJoint(a, b, cp.Vector{}, cp.Vector{})
	j.Solve(dt)
	if !nearVec(a.Velocity(), cp.Vector{X: 2.5}) || !nearVec(b.Velocity(), cp.Vector{X: 2.5}) {
		t.Fatalf("expected shared velocity 2.5, got %v %v", a.Velocity(), b.Velocity())
	}
}

func TestFixedPinStopsAnchorWithRotation(t *testing.T) {
	b := ball(t, 10, 0)
	b.SetVelocity(cp.Vector{Y: 5})
	j, _ := NewFixedPinJoint(b, cp.Vector{X: -10}, cp.Vector{})
	j.Solve(dt)
	rA := cp.Vector{X: -10}
	if v := b.VelocityAt(rA); !nearVec(v, cp.Vector{}) {
		t.Fatalf("anchor should be at rest after the solve, got %v", v)
	}
	if b.AngularVelocity() == 0 {
		t.Fatalf("off-center anchor should induce rotation")
	}
}

func TestStaticAnchorIsImmovable(t *testing.T) {
	ground, err := body.NewStaticBody(body.MustBox(10, 10), cp.Vector{})
	if err != nil {
		t.Fatalf("NewStaticBody: %v", err)
	}
	b := ball(t, 0, 20)
	j, _ := NewPinJointAt(ground, b, cp.Vector{Y: 10})
	j.Solve(dt)
	if ground.Velocity() != (cp.Vector{}) || ground.AngularVelocity() != 0 {
		t.Fatalf("static body received an impulse")
	}
	if b.Velocity().Y >= 0 {
		t.Fatalf("dynamic body should be pulled toward the anchor, got %v", b.Velocity())
	}
}

func TestSingularSystemIsSkipped(t *testing.T) {
	a, _ := body.NewStaticBody(body.MustCircle(1), cp.Vector{})
	b, _ := body.NewStaticBody(body.MustCircle(1), cp.Vector{X: 3})
	j, _ := NewPinJoint(a, b, cp.Vector{}, cp.Vector{})
	j.Solve(dt)
	j.Solve(0)
	if a.Center() != (cp.Vector{}) || b.Center() != (cp.Vector{X: 3}) {
		t.Fatalf("static pair should be untouched")
	}
}

func TestLocalWorldRoundTrip(t *testing.T) {
	b := ball(t, 3, 4)
	b.SetAngle(math.Pi / 3)
	p := cp.Vector{X: -2, Y: 7}
	if got := ToWorld(b, ToLocal(b, p)); !nearVec(got, p) {
		t.Fatalf("round trip gave %v, want %v", got, p)
	}
	j, _ := NewPinJointAt(b, ball(t, 0, 0), p)
	wa, wb := j.Anchors()
	if !nearVec(wa, p) || !nearVec(wb, p) {
		t.Fatalf("anchors should start coincident at %v, got %v %v", p, wa, wb)
	}
}

func TestNilBodies(t *testing.T) {
	if _, err := NewPinJoint(nil, ball(t, 0, 0), cp.Vector{}, cp.Vector{}); !errors.Is(err, ErrNilBody) {
		t.Fatalf("expected ErrNilBody, got %v", err)
	}
	if _, err := NewFixedPinJoint(nil, cp.Vector{}, cp.Vector{}); !errors.Is(err, ErrNilBody) {
		t.Fatalf("expected ErrNilBody, got %v", err)
	}
}
