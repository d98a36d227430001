// Package world runs the simulation step: sleep bookkeeping, spatial
// indexing, broad and narrow phase, collision response, pair tracking,
// constraint solving and integration.
package world

import (
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/milk9111/rigid2d/body"
	"github.com/milk9111/rigid2d/collision"
	"github.com/milk9111/rigid2d/constraint"
	"github.com/milk9111/rigid2d/registry"
	"github.com/milk9111/rigid2d/spatial"
)

var (
	ErrNilBody       = errors.New("world: nil body")
	ErrDuplicateBody = errors.New("world: duplicate body")
	ErrUnknownBody   = errors.New("world: unknown body")
)

// CollisionStats summarizes the world after the last step.
type CollisionStats struct {
	ActivePairs    int `yaml:"active_pairs"`
	SleepingBodies int `yaml:"sleeping_bodies"`
	TotalBodies    int `yaml:"total_bodies"`
}

// World owns every body and constraint in a simulation.
type World struct {
	cfg Config

	bodies  *registry.Registry[*body.RigidBody]
	handles map[*body.RigidBody]registry.Handle

	index       spatial.Index[*body.RigidBody]
	pairs       *collision.PairManager
	constraints []constraint.Constraint

	manifolds   []collision.Manifold
	events      EventQueue
	onCollision func(CollisionEvent)
}

// New creates an empty world.
func New(cfg Config) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	idx, err := newIndex(cfg)
	if err != nil {
		return nil, err
	}
	return &World{
		cfg:     cfg,
		bodies:  registry.New[*body.RigidBody](),
		handles: make(map[*body.RigidBody]registry.Handle),
		index:   idx,
		pairs:   collision.NewPairManager(cfg.MaxPairAge),
	}, nil
}

func newIndex(cfg Config) (spatial.Index[*body.RigidBody], error) {
	idx, err := spatial.New[*body.RigidBody](cfg.IndexKind, (*body.RigidBody).AABB, spatial.Options{
		Bounds: cfg.Bounds,
		Margin: cfg.TreeMargin,
	})
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	return idx, nil
}

func (w *World) Config() Config {
	if w == nil {
		return Config{}
	}
	return w.cfg
}

// AddRigidBody registers b under a unique name and gives it the world's
// sleep threshold. Per-body thresholds can be set after adding.
func (w *World) AddRigidBody(name string, b *body.RigidBody) (registry.Handle, error) {
	if b == nil {
		return 0, ErrNilBody
	}
	if _, dup := w.handles[b]; dup {
		return 0, fmt.Errorf("%w: body %d already added", ErrDuplicateBody, b.ID())
	}
	h, ok := w.bodies.Add(name, b)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateBody, name)
	}
	w.handles[b] = h
	b.SetSleepThreshold(w.cfg.SleepThreshold)
	return h, nil
}

// RemoveRigidBody removes the named body together with its pairs and any
// constraint that references it.
func (w *World) RemoveRigidBody(name string) error {
	b, ok := w.bodies.RemoveName(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBody, name)
	}
	delete(w.handles, b)

	if u, ok := w.index.(spatial.Updater[*body.RigidBody]); ok {
		u.Remove(b)
	}

	for _, p := range w.pairs.RemoveBody(b) {
		w.emit(CollisionEvent{Kind: CollisionEnded, Pair: p, Frame: w.pairs.Frame()})
	}

	kept := w.constraints[:0]
	for _, c := range w.constraints {
		if slices.Contains(c.Bodies(), b) {
			log.Printf("World: dropping constraint on removed body %q", name)
			continue
		}
		kept = append(kept, c)
	}
	clear(w.constraints[len(kept):])
	w.constraints = kept
	return nil
}

func (w *World) Body(name string) (*body.RigidBody, bool) {
	return w.bodies.ByName(name)
}

func (w *World) BodyByHandle(h registry.Handle) (*body.RigidBody, bool) {
	return w.bodies.Get(h)
}

// Name returns the name b was added under.
func (w *World) Name(b *body.RigidBody) string {
	h, ok := w.handles[b]
	if !ok {
		return ""
	}
	return w.bodies.Name(h)
}

// Bodies returns every body in registry order.
func (w *World) Bodies() []*body.RigidBody {
	return w.bodies.Values()
}

// EachBody visits every body in registry order.
func (w *World) EachBody(fn func(name string, b *body.RigidBody)) {
	w.bodies.Each(func(_ registry.Handle, name string, b *body.RigidBody) {
		fn(name, b)
	})
}

func (w *World) SetResolveCollision(on bool) { w.cfg.ResolveCollision = on }
func (w *World) ResolveCollision() bool      { return w.cfg.ResolveCollision }

// SetRotation switches between the rotational and linear-only resolvers.
func (w *World) SetRotation(on bool) { w.cfg.Rotation = on }

// SetSleepingEnabled toggles the sleeping policy. Disabling it wakes every body.
func (w *World) SetSleepingEnabled(on bool) {
	w.cfg.SleepingEnabled = on
	if on {
		return
	}
	for _, b := range w.bodies.Values() {
		b.Wake()
	}
}

func (w *World) SleepingEnabled() bool { return w.cfg.SleepingEnabled }

// AddConstraint registers c. Every body it references must be in the world.
func (w *World) AddConstraint(c constraint.Constraint) error {
	if c == nil {
		return errors.New("world: nil constraint")
	}
	for _, b := range c.Bodies() {
		if b == nil {
			return ErrNilBody
		}
		if _, ok := w.handles[b]; !ok {
			return fmt.Errorf("%w: constraint references body %d", ErrUnknownBody, b.ID())
		}
	}
	w.constraints = append(w.constraints, c)
	return nil
}

// Constraints returns a copy of the constraint list in solve order.
func (w *World) Constraints() []constraint.Constraint {
	return slices.Clone(w.constraints)
}

func (w *World) RemoveConstraint(c constraint.Constraint) bool {
	i := slices.Index(w.constraints, c)
	if i < 0 {
		return false
	}
	w.constraints = slices.Delete(w.constraints, i, i+1)
	return true
}

// SetSpatialIndexType replaces the broad-phase index and refills it.
func (w *World) SetSpatialIndexType(kind spatial.Kind) error {
	cfg := w.cfg
	cfg.IndexKind = kind
	idx, err := newIndex(cfg)
	if err != nil {
		return err
	}
	for _, b := range w.bodies.Values() {
		idx.Insert(b)
	}
	w.cfg = cfg
	w.index = idx
	log.Printf("World: spatial index switched to %s", kind)
	return nil
}

func (w *World) SpatialIndexType() spatial.Kind { return w.cfg.IndexKind }

func (w *World) SpatialIndexStats() spatial.Stats { return w.index.Stats() }

// SpatialIndex exposes the live index, e.g. for debug drawing.
func (w *World) SpatialIndex() spatial.Index[*body.RigidBody] { return w.index }

func (w *World) PairManager() *collision.PairManager { return w.pairs }

func (w *World) CollisionStats() CollisionStats {
	s := CollisionStats{
		ActivePairs: len(w.pairs.ActivePairs()),
		TotalBodies: w.bodies.Len(),
	}
	for _, b := range w.bodies.Values() {
		if b.IsSleeping() {
			s.SleepingBodies++
		}
	}
	return s
}

// Manifolds returns the colliding manifolds of the last step. The slice is
// reused by the next step.
func (w *World) Manifolds() []collision.Manifold { return w.manifolds }

// Events returns the queue of collision events. Events accumulate across
// steps until drained.
func (w *World) Events() *EventQueue { return &w.events }

// OnCollision registers a callback invoked for every collision event as it
// is queued.
func (w *World) OnCollision(fn func(CollisionEvent)) { w.onCollision = fn }

// QueryOverlaps refreshes the index and returns every distinct pair of
// bodies whose AABBs intersect among the index's candidates, without the
// static or filter rejections of the broad phase.
func (w *World) QueryOverlaps() []collision.Candidate {
	bodies := w.bodies.Values()
	w.syncIndex(bodies)
	seen := make(map[collision.PairKey]struct{})
	var out []collision.Candidate
	for _, a := range bodies {
		for _, b := range w.index.Retrieve(a) {
			key := collision.MakeKey(a, b)
			if _, dup := seen[key]; dup || !a.AABB().Intersects(b.AABB()) {
				continue
			}
			seen[key] = struct{}{}
			lo, hi := a, b
			if lo.ID() > hi.ID() {
				lo, hi = hi, lo
			}
			out = append(out, collision.Candidate{A: lo, B: hi})
		}
	}
	return out
}

// Step advances the simulation by dt seconds.
func (w *World) Step(dt float64) {
	if w == nil || dt <= 0 {
		return
	}
	bodies := w.bodies.Values()

	if w.cfg.SleepingEnabled {
		for _, b := range bodies {
			if !b.IsStatic() && !b.IsMovingStatic() {
				b.UpdateSleep(dt, w.cfg.SleepTime)
			}
		}
	}

	w.syncIndex(bodies)

	sources := make([]*body.RigidBody, 0, len(bodies))
	for _, b := range bodies {
		if w.cfg.SleepingEnabled && b.IsSleeping() {
			continue
		}
		sources = append(sources, b)
	}

	w.manifolds = w.manifolds[:0]
	for _, c := range collision.BroadPhase(sources, w.index) {
		if !w.awake(c.A) && !w.awake(c.B) {
			continue
		}
		m := collision.Intersects(c.A, c.B)
		if !m.Collision {
			continue
		}
		if w.cfg.ResolveCollision {
			if w.cfg.Rotation {
				collision.ResolveWithRotation(m, w.cfg.Restitution)
			} else {
				collision.ResolveLinear(m, w.cfg.Restitution)
			}
		}
		w.manifolds = append(w.manifolds, m)
	}

	ev := w.pairs.Update(w.manifolds)
	for _, p := range ev.Created {
		p.A.Wake()
		p.B.Wake()
	}

	for _, c := range w.constraints {
		c.Solve(dt)
	}

	env := w.cfg.Environment()
	for _, b := range bodies {
		b.Step(dt, env)
	}

	frame := w.pairs.Frame()
	for _, p := range ev.Created {
		w.emit(CollisionEvent{Kind: CollisionStarted, Pair: p, Frame: frame})
	}
	for _, p := range ev.Updated {
		w.emit(CollisionEvent{Kind: CollisionPersist, Pair: p, Frame: frame})
	}
	for _, p := range ev.Removed {
		w.emit(CollisionEvent{Kind: CollisionEnded, Pair: p, Frame: frame})
	}
}

func (w *World) emit(e CollisionEvent) {
	w.events.Push(e)
	if w.onCollision != nil {
		w.onCollision(e)
	}
}

// awake reports whether b moves this step. A pair needs at least one awake
// body to be worth testing.
func (w *World) awake(b *body.RigidBody) bool {
	if b.IsStatic() {
		return false
	}
	return !(w.cfg.SleepingEnabled && b.IsSleeping())
}

// syncIndex brings the index up to date with this step's poses. Only
// Sweep-and-Prune is maintained incrementally; the trees are rebuilt so the
// QuadTree and DynamicTree see the same fresh bounds every step.
func (w *World) syncIndex(bodies []*body.RigidBody) {
	if u, ok := w.index.(spatial.Updater[*body.RigidBody]); ok && w.cfg.IndexKind == spatial.KindSweepAndPrune {
		for _, b := range bodies {
			u.Update(b)
		}
		return
	}
	w.index.Clear()
	for _, b := range bodies {
		w.index.Insert(b)
	}
}
