package world

import (
	"errors"
	"math"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/rigid2d/body"
	"github.com/milk9111/rigid2d/collision"
	"github.com/milk9111/rigid2d/constraint"
	"github.com/milk9111/rigid2d/spatial"
)

var allKinds = []spatial.Kind{spatial.KindQuadTree, spatial.KindDynamicTree, spatial.KindSweepAndPrune}

func newWorld(t *testing.T, mutate func(*Config)) *World {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func addCircle(t *testing.T, w *World, name string, x, y, r float64) *body.RigidBody {
	t.Helper()
	b, err := body.NewRigidBody(body.MustCircle(r), cp.Vector{X: x, Y: y}, 1)
	if err != nil {
		t.Fatalf("NewRigidBody: %v", err)
	}
	if _, err := w.AddRigidBody(name, b); err != nil {
		t.Fatalf("AddRigidBody(%s): %v", name, err)
	}
	return b
}

func addStaticBox(t *testing.T, w *World, name string, x, y, size float64) *body.RigidBody {
	t.Helper()
	b, err := body.NewStaticBody(body.MustBox(size, size), cp.Vector{X: x, Y: y})
	if err != nil {
		t.Fatalf("NewStaticBody: %v", err)
	}
	if _, err := w.AddRigidBody(name, b); err != nil {
		t.Fatalf("AddRigidBody(%s): %v", name, err)
	}
	return b
}

func zeroGravity(c *Config) { c.Gravity = cp.Vector{} }

func TestHeadOnCircles(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			w := newWorld(t, func(c *Config) { c.IndexKind = kind })
			a := addCircle(t, w, "a", 0, 0, 10)
			b := addCircle(t, w, "b", 15, 0, 10)
			a.SetVelocity(cp.Vector{X: 10})
			b.SetVelocity(cp.Vector{X: -10})

			w.Step(1.0 / 60)

			dA := a.Velocity().X - 10
			dB := b.Velocity().X + 10
			if dA >= 0 || dB <= 0 || math.Abs(dA+dB) > 1e-9 {
				t.Fatalf("velocity changes should be equal and opposite, got %v and %v", dA, dB)
			}
			if d := b.Center().Sub(a.Center()).Length(); d < 20-1e-9 {
				t.Fatalf("bodies still overlap after step, distance %v", d)
			}
			if got := w.CollisionStats().ActivePairs; got != 1 {
				t.Fatalf("expected one active pair, got %d", got)
			}
		})
	}
}

func TestStaticOverlapsAcrossIndexes(t *testing.T) {
	overlaps := map[spatial.Kind]map[[2]string]bool{}
	for _, kind := range []spatial.Kind{spatial.KindQuadTree, spatial.KindDynamicTree} {
		w := newWorld(t, func(c *Config) { c.IndexKind = kind })
		addStaticBox(t, w, "origin", 0, 0, 60)
		addStaticBox(t, w, "near", 50, 50, 60)
		addStaticBox(t, w, "far", 200, 200, 60)
		addStaticBox(t, w, "between", 45, 45, 60)

		set := map[[2]string]bool{}
		for _, c := range w.QueryOverlaps() {
			a, b := w.Name(c.A), w.Name(c.B)
			if a > b {
				a, b = b, a
			}
			set[[2]string{a, b}] = true
		}
		if len(set) == 0 {
			t.Fatalf("%s reported no overlapping pairs", kind)
		}
		overlaps[kind] = set
	}

	shared := false
	for k := range overlaps[spatial.KindQuadTree] {
		if overlaps[spatial.KindDynamicTree][k] {
			shared = true
		}
	}
	if !shared {
		t.Fatalf("overlap sets do not intersect: %v vs %v", overlaps[spatial.KindQuadTree], overlaps[spatial.KindDynamicTree])
	}

	w := newWorld(t, nil)
	addStaticBox(t, w, "a", 0, 0, 60)
	addStaticBox(t, w, "b", 50, 50, 60)
	w.Step(1.0 / 60)
	if len(w.Manifolds()) != 0 || w.CollisionStats().ActivePairs != 0 {
		t.Fatalf("static bodies must not form collision pairs")
	}
}

func TestBodiesFallAsleep(t *testing.T) {
	w := newWorld(t, zeroGravity)
	b := addCircle(t, w, "ball", 100, 100, 5)

	for i := 0; i < 3; i++ {
		w.Step(0.125)
		if b.IsSleeping() {
			t.Fatalf("slept too early at step %d", i+1)
		}
	}
	w.Step(0.125)
	if !b.IsSleeping() {
		t.Fatalf("expected sleep after 0.5s at rest")
	}
	if got := w.CollisionStats(); got.SleepingBodies != 1 || got.TotalBodies != 1 {
		t.Fatalf("unexpected stats %+v", got)
	}

	b.SetVelocity(cp.Vector{X: 2})
	if b.IsSleeping() || b.TimeAtRest() != 0 {
		t.Fatalf("velocity above threshold should wake the body")
	}

	w.SetSleepingEnabled(false)
	b.SetVelocity(cp.Vector{})
	for i := 0; i < 10; i++ {
		w.Step(0.125)
	}
	if b.IsSleeping() {
		t.Fatalf("no body may sleep with sleeping disabled")
	}
}

func TestCreatedPairWakesSleeper(t *testing.T) {
	w := newWorld(t, zeroGravity)
	w.SetResolveCollision(false)
	sleeper := addCircle(t, w, "sleeper", 100, 100, 10)
	for i := 0; i < 4; i++ {
		w.Step(0.125)
	}
	if !sleeper.IsSleeping() {
		t.Fatalf("test setup: body should be asleep")
	}

	var started []CollisionEvent
	w.OnCollision(func(e CollisionEvent) {
		if e.Kind == CollisionStarted {
			started = append(started, e)
		}
	})

	mover := addCircle(t, w, "mover", 119, 100, 10)
	mover.SetVelocity(cp.Vector{X: -1})
	w.Step(0.125)

	if sleeper.IsSleeping() {
		t.Fatalf("a new pair must wake its sleeping participant")
	}
	if len(started) != 1 || started[0].Pair.Key != collision.MakeKey(sleeper, mover) {
		t.Fatalf("expected one started event for the pair, got %+v", started)
	}
	if sleeper.Velocity() != (cp.Vector{}) {
		t.Fatalf("resolution disabled: sleeper should not be pushed")
	}
	if n := len(w.Events().Drain()); n != 1 {
		t.Fatalf("expected one queued event, got %d", n)
	}
}

func TestSwitchSpatialIndex(t *testing.T) {
	w := newWorld(t, nil)
	for i := 0; i < 5; i++ {
		addCircle(t, w, string(rune('a'+i)), float64(i)*30+50, 50, 10)
	}
	for _, kind := range allKinds {
		if err := w.SetSpatialIndexType(kind); err != nil {
			t.Fatalf("SetSpatialIndexType(%s): %v", kind, err)
		}
		s := w.SpatialIndexStats()
		if s.Kind != kind || s.NodeCount != 5 || w.SpatialIndexType() != kind {
			t.Fatalf("unexpected stats after switching to %s: %+v", kind, s)
		}
		w.Step(1.0 / 60)
	}
	if err := w.SetSpatialIndexType(spatial.Kind(99)); !errors.Is(err, spatial.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if w.SpatialIndexType() != spatial.KindSweepAndPrune {
		t.Fatalf("failed switch must keep the previous index")
	}
}

func TestRegistryErrors(t *testing.T) {
	w := newWorld(t, nil)
	b := addCircle(t, w, "a", 0, 0, 1)
	if _, err := w.AddRigidBody("a", b); !errors.Is(err, ErrDuplicateBody) {
		t.Fatalf("expected ErrDuplicateBody for same body, got %v", err)
	}
	other, _ := body.NewRigidBody(body.MustCircle(1), cp.Vector{}, 1)
	if _, err := w.AddRigidBody("a", other); !errors.Is(err, ErrDuplicateBody) {
		t.Fatalf("expected ErrDuplicateBody for same name, got %v", err)
	}
	if _, err := w.AddRigidBody("nil", nil); !errors.Is(err, ErrNilBody) {
		t.Fatalf("expected ErrNilBody, got %v", err)
	}
	if err := w.RemoveRigidBody("missing"); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("expected ErrUnknownBody, got %v", err)
	}
	j, _ := constraint.NewPinJoint(b, other, cp.Vector{}, cp.Vector{})
	if err := w.AddConstraint(j); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("constraint on foreign body should fail, got %v", err)
	}
}

func TestRemoveBodyCleansUp(t *testing.T) {
	w := newWorld(t, zeroGravity)
	a := addCircle(t, w, "a", 100, 100, 10)
	b := addCircle(t, w, "b", 115, 100, 10)
	j, _ := constraint.NewPinJoint(a, b, cp.Vector{}, cp.Vector{})
	if err := w.AddConstraint(j); err != nil {
		t.Fatalf("AddConstraint: %v", err)
	}
	w.Step(1.0 / 60)
	if w.PairManager().Len() != 1 {
		t.Fatalf("expected a tracked pair")
	}
	w.Events().Drain()

	if err := w.RemoveRigidBody("b"); err != nil {
		t.Fatalf("RemoveRigidBody: %v", err)
	}
	if w.PairManager().Len() != 0 || len(w.Constraints()) != 0 {
		t.Fatalf("pairs and constraints on the removed body should be dropped")
	}
	ev := w.Events().Drain()
	if len(ev) != 1 || ev[0].Kind != CollisionEnded {
		t.Fatalf("expected an ended event, got %+v", ev)
	}
	if _, ok := w.Body("b"); ok {
		t.Fatalf("body still registered")
	}
	w.Step(1.0 / 60)
	if w.CollisionStats().TotalBodies != 1 {
		t.Fatalf("expected one body left")
	}
}

func TestPendulumKeepsLength(t *testing.T) {
	w := newWorld(t, nil)
	bob := addCircle(t, w, "bob", 140, 100, 5)
	j, err := constraint.NewFixedPinJoint(bob, cp.Vector{X: -40}, cp.Vector{X: 100, Y: 100})
	if err != nil {
		t.Fatalf("NewFixedPinJoint: %v", err)
	}
	if err := w.AddConstraint(j); err != nil {
		t.Fatalf("AddConstraint: %v", err)
	}
	for i := 0; i < 240; i++ {
		w.Step(1.0 / 60)
	}
	if d := j.Anchor().Sub(j.Target).Length(); d > 0.5 {
		t.Fatalf("pin drifted %v from its target", d)
	}
	if bob.Center().Y <= 100 {
		t.Fatalf("bob should swing below the pivot, center %v", bob.Center())
	}
}

func TestLinearPipelineIgnoresRotation(t *testing.T) {
	w := newWorld(t, func(c *Config) {
		zeroGravity(c)
		c.Rotation = false
	})
	a, _ := body.NewRigidBody(body.MustBox(20, 20), cp.Vector{X: 100, Y: 100}, 1)
	b, _ := body.NewRigidBody(body.MustBox(20, 20), cp.Vector{X: 115, Y: 108}, 1)
	w.AddRigidBody("a", a)
	w.AddRigidBody("b", b)
	a.SetVelocity(cp.Vector{X: 5})

	w.Step(1.0 / 60)
	if a.AngularVelocity() != 0 || b.AngularVelocity() != 0 {
		t.Fatalf("linear resolver must not spin bodies")
	}
	if b.Velocity().X <= 0 {
		t.Fatalf("b should be pushed along x, got %v", b.Velocity())
	}
}

func TestStepIsDeterministic(t *testing.T) {
	run := func() []cp.Vector {
		w := newWorld(t, func(c *Config) { c.IndexKind = spatial.KindDynamicTree })
		addStaticBox(t, w, "ground", 500, 600, 400)
		for i := 0; i < 12; i++ {
			addCircle(t, w, string(rune('a'+i)), 420+float64(i%4)*25, 200+float64(i/4)*25, 10)
		}
		for i := 0; i < 200; i++ {
			w.Step(1.0 / 60)
		}
		var out []cp.Vector
		for _, b := range w.Bodies() {
			out = append(out, b.Center())
		}
		return out
	}
	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("body %d diverged: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestParseConfig(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		check   func(Config) bool
		wantErr bool
	}{
		{"empty keeps defaults", "", func(c Config) bool { return c == DefaultConfig() }, false},
		{"partial override", "restitution: 0.8\nindex: dynamictree\n", func(c Config) bool {
			return c.Restitution == 0.8 && c.IndexKind == spatial.KindDynamicTree && c.SleepTime == 0.5
		}, false},
		{"gravity", "gravity: {x: 1, y: -2}\n", func(c Config) bool {
			return c.Gravity == cp.Vector{X: 1, Y: -2}
		}, false},
		{"negative restitution", "restitution: -1\n", nil, true},
		{"unknown index", "index: octree\n", nil, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(c.yaml))
			if c.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseConfig: %v", err)
			}
			if !c.check(cfg) {
				t.Fatalf("unexpected config %+v", cfg)
			}
		})
	}
}

func TestBoxRestingOnFloorFallsAsleep(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			w := newWorld(t, func(c *Config) { c.IndexKind = kind })
			floor, err := body.NewStaticBody(body.MustBox(200, 10), cp.Vector{X: 100, Y: 100})
			if err != nil {
				t.Fatalf("NewStaticBody: %v", err)
			}
			crate, err := body.NewRigidBody(body.MustBox(10, 10), cp.Vector{X: 100, Y: 90}, 1)
			if err != nil {
				t.Fatalf("NewRigidBody: %v", err)
			}
			w.AddRigidBody("floor", floor)
			w.AddRigidBody("crate", crate)

			slept := -1
			for i := 0; i < 600 && slept < 0; i++ {
				w.Step(1.0 / 60)
				if crate.IsSleeping() {
					slept = i
				}
			}
			if slept < 0 {
				t.Fatalf("crate never slept, v=%v w=%v", crate.Velocity(), crate.AngularVelocity())
			}
			for i := 0; i < 60; i++ {
				w.Step(1.0 / 60)
			}
			if !crate.IsSleeping() {
				t.Fatalf("crate woke up again")
			}
			if y := crate.Center().Y; math.Abs(y-90) > 1 {
				t.Fatalf("crate should rest on the floor, center %v", crate.Center())
			}
		})
	}
}

func TestTreesRebuiltEachStep(t *testing.T) {
	w := newWorld(t, func(c *Config) {
		zeroGravity(c)
		c.IndexKind = spatial.KindDynamicTree
	})
	a := addCircle(t, w, "a", 100, 100, 5)
	addCircle(t, w, "b", 300, 300, 5)
	w.Step(1.0 / 60)

	// A nudge inside the fat margin still refreshes the leaf bounds.
	a.SetCenter(a.Center().Add(cp.Vector{X: w.Config().TreeMargin / 2}))
	w.Step(1.0 / 60)

	tree, ok := w.SpatialIndex().(*spatial.DynamicTree[*body.RigidBody])
	if !ok {
		t.Fatalf("expected a dynamic tree, got %T", w.SpatialIndex())
	}
	bb, m := a.AABB(), w.Config().TreeMargin
	want := cp.BB{L: bb.L - m, B: bb.B - m, R: bb.R + m, T: bb.T + m}
	found := false
	tree.Walk(func(leafBB cp.BB, _ int, leaf bool) {
		if leaf && leafBB == want {
			found = true
		}
	})
	if !found {
		t.Fatalf("no leaf holds the fresh bounds %+v", want)
	}
	if n := w.SpatialIndexStats().NodeCount; n != 2 {
		t.Fatalf("expected 2 indexed bodies, got %d", n)
	}
}
