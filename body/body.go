package body

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/rigid2d/common"
)

const (
	// DefaultSleepThreshold is the linear and angular speed under which a body counts as resting.
	DefaultSleepThreshold = 0.1
	// DefaultAngularDamping is subtracted from |angular velocity| every step.
	DefaultAngularDamping = 0.01
	// RestSpeed is the speed under which static friction may hold a body in place.
	RestSpeed = 0.01
)

var nextBodyID atomic.Uint64

// Environment carries the world-level inputs to integration.
type Environment struct {
	Gravity cp.Vector
	// FrictionAccel is the normal acceleration friction is computed against.
	FrictionAccel float64
}

// RigidBody holds geometry, mass properties, motion state, collision
// filtering and sleep state for one simulated body.
type RigidBody struct {
	id    uint64
	shape Shape

	center          cp.Vector
	angle           float64
	z               float64
	velocity        cp.Vector
	angularVelocity float64

	mass       float64
	invMass    float64
	inertia    float64
	invInertia float64

	staticFriction  float64
	kineticFriction float64
	angularDamping  float64

	filter       Filter
	static       bool
	movingStatic bool

	sleeping       bool
	sleepThreshold float64
	timeAtRest     float64

	force  cp.Vector
	torque float64

	cache vertexCache
}

// NewRigidBody creates a dynamic body at center. Mass must be positive.
func NewRigidBody(shape Shape, center cp.Vector, mass float64) (*RigidBody, error) {
	if err := shape.validate(); err != nil {
		return nil, err
	}
	if mass <= 0 || math.IsNaN(mass) {
		return nil, fmt.Errorf("%w: got %v", ErrNonPositiveMass, mass)
	}
	b := &RigidBody{
		id:             nextBodyID.Add(1),
		shape:          shape,
		center:         center,
		filter:         DefaultFilter,
		sleepThreshold: DefaultSleepThreshold,
		angularDamping: DefaultAngularDamping,
	}
	b.setMass(mass)
	return b, nil
}

// NewStaticBody creates an immovable body. Its nominal mass is 1 but it
// contributes zero inverse mass and inertia to every solver.
func NewStaticBody(shape Shape, center cp.Vector) (*RigidBody, error) {
	b, err := NewRigidBody(shape, center, 1)
	if err != nil {
		return nil, err
	}
	b.SetStatic(true)
	return b, nil
}

func (b *RigidBody) ID() uint64   { return b.id }
func (b *RigidBody) Shape() Shape { return b.shape }

func (b *RigidBody) Center() cp.Vector { return b.center }

func (b *RigidBody) SetCenter(c cp.Vector) {
	b.center = c
}

func (b *RigidBody) Angle() float64 { return b.angle }

func (b *RigidBody) SetAngle(a float64) {
	b.angle = a
}

func (b *RigidBody) Z() float64 { return b.z }

func (b *RigidBody) SetZ(z float64) {
	b.z = z
}

func (b *RigidBody) Velocity() cp.Vector { return b.velocity }

// SetVelocity replaces the linear velocity. Static bodies ignore it; a
// speed at or above the sleep threshold wakes a sleeping body.
func (b *RigidBody) SetVelocity(v cp.Vector) {
	if b.static {
		return
	}
	b.velocity = v
	if v.Length() >= b.sleepThreshold {
		b.Wake()
	}
}

func (b *RigidBody) AngularVelocity() float64 { return b.angularVelocity }

func (b *RigidBody) SetAngularVelocity(w float64) {
	if b.static {
		return
	}
	b.angularVelocity = w
	if math.Abs(w) >= b.sleepThreshold {
		b.Wake()
	}
}

func (b *RigidBody) Mass() float64    { return b.mass }
func (b *RigidBody) Inertia() float64 { return b.inertia }

// SetMass updates mass and the derived moment of inertia.
func (b *RigidBody) SetMass(mass float64) error {
	if mass <= 0 || math.IsNaN(mass) {
		return fmt.Errorf("%w: got %v", ErrNonPositiveMass, mass)
	}
	b.setMass(mass)
	return nil
}

func (b *RigidBody) setMass(mass float64) {
	b.mass = mass
	b.inertia = b.shape.Moment(mass)
	b.refreshInverse()
}

func (b *RigidBody) refreshInverse() {
	if b.static || b.movingStatic {
		b.invMass, b.invInertia = 0, 0
		return
	}
	b.invMass = 1 / b.mass
	if b.inertia > 0 {
		b.invInertia = 1 / b.inertia
	} else {
		b.invInertia = 0
	}
}

// InvMass is zero for static and moving-static bodies.
func (b *RigidBody) InvMass() float64 { return b.invMass }

// InvInertia is zero for static and moving-static bodies.
func (b *RigidBody) InvInertia() float64 { return b.invInertia }

func (b *RigidBody) StaticFriction() float64 { return b.staticFriction }
func (b *RigidBody) SetStaticFriction(mu float64) {
	b.staticFriction = math.Max(0, mu)
}

func (b *RigidBody) KineticFriction() float64 { return b.kineticFriction }
func (b *RigidBody) SetKineticFriction(mu float64) {
	b.kineticFriction = math.Max(0, mu)
}

func (b *RigidBody) AngularDamping() float64 { return b.angularDamping }
func (b *RigidBody) SetAngularDamping(d float64) {
	b.angularDamping = math.Max(0, d)
}

func (b *RigidBody) Filter() Filter { return b.filter }
func (b *RigidBody) SetFilter(f Filter) {
	b.filter = f
}

func (b *RigidBody) IsStatic() bool { return b.static }

// SetStatic freezes or releases the body. A static body drops its velocity
// and leaves sleep tracking.
func (b *RigidBody) SetStatic(static bool) {
	b.static = static
	if static {
		b.velocity = cp.Vector{}
		b.angularVelocity = 0
		b.sleeping = false
		b.timeAtRest = 0
	}
	b.refreshInverse()
}

func (b *RigidBody) IsMovingStatic() bool { return b.movingStatic }

// SetMovingStatic marks a kinematic body: it moves by its own velocity,
// pushes dynamic bodies and is never pushed back.
func (b *RigidBody) SetMovingStatic(moving bool) {
	b.movingStatic = moving
	if moving {
		b.sleeping = false
		b.timeAtRest = 0
	}
	b.refreshInverse()
}

func (b *RigidBody) IsSleeping() bool { return b.sleeping }

func (b *RigidBody) SleepThreshold() float64 { return b.sleepThreshold }
func (b *RigidBody) SetSleepThreshold(v float64) {
	b.sleepThreshold = math.Max(0, v)
}

func (b *RigidBody) TimeAtRest() float64 { return b.timeAtRest }

// Sleep zeroes velocities and removes the body from integration.
func (b *RigidBody) Sleep() {
	if b.static || b.movingStatic {
		return
	}
	b.sleeping = true
	b.velocity = cp.Vector{}
	b.angularVelocity = 0
}

// Wake clears the sleeping flag and restarts the rest timer.
func (b *RigidBody) Wake() {
	b.sleeping = false
	b.timeAtRest = 0
}

// UpdateSleep advances the rest timer and reports whether the body fell
// asleep during this call.
func (b *RigidBody) UpdateSleep(dt, sleepTime float64) bool {
	if b.static || b.movingStatic {
		return false
	}
	if b.velocity.Length() < b.sleepThreshold && math.Abs(b.angularVelocity) < b.sleepThreshold {
		b.timeAtRest += dt
		if !b.sleeping && b.timeAtRest >= sleepTime {
			b.Sleep()
			return true
		}
		return false
	}
	b.Wake()
	return false
}

// ApplyForce accumulates a world-space force for the next integration.
func (b *RigidBody) ApplyForce(f cp.Vector) {
	b.force = b.force.Add(f)
}

// ApplyForceInOrientation accumulates a body-space force rotated into world space.
func (b *RigidBody) ApplyForceInOrientation(f cp.Vector) {
	b.force = b.force.Add(f.Rotate(cp.ForAngle(b.angle)))
}

// ApplyForceAtPoint accumulates a world-space force acting at a world point,
// producing torque about the center.
func (b *RigidBody) ApplyForceAtPoint(f, point cp.Vector) {
	b.force = b.force.Add(f)
	b.torque += point.Sub(b.center).Cross(f)
}

func (b *RigidBody) ApplyTorque(t float64) {
	b.torque += t
}

// Force returns the force accumulated since the last integration.
func (b *RigidBody) Force() cp.Vector { return b.force }

// ApplyImpulse changes velocity by an impulse acting at arm from the center.
func (b *RigidBody) ApplyImpulse(impulse, arm cp.Vector) {
	if b.invMass == 0 && b.invInertia == 0 {
		return
	}
	b.SetVelocity(b.velocity.Add(impulse.Mult(b.invMass)))
	b.SetAngularVelocity(b.angularVelocity + b.invInertia*arm.Cross(impulse))
}

// Move translates the body. Static bodies ignore it.
func (b *RigidBody) Move(delta cp.Vector) {
	if b.static {
		return
	}
	b.center = b.center.Add(delta)
}

func (b *RigidBody) Rotate(delta float64) {
	if b.static {
		return
	}
	b.angle += delta
}

// VelocityAt returns the velocity of the material point at arm from the center.
func (b *RigidBody) VelocityAt(arm cp.Vector) cp.Vector {
	return b.velocity.Add(arm.Perp().Mult(b.angularVelocity))
}

// Step integrates accumulated forces, gravity, friction and damping using
// semi-implicit Euler, then clears the force buffer.
func (b *RigidBody) Step(dt float64, env Environment) {
	defer b.clearForces()
	if b.static || b.sleeping || dt <= 0 {
		return
	}
	if b.movingStatic {
		b.center = b.center.Add(b.velocity.Mult(dt))
		b.angle += b.angularVelocity * dt
		return
	}

	force := b.force
	speed := b.velocity.Length()
	normal := b.mass * env.FrictionAccel
	if b.staticFriction > 0 && speed < RestSpeed && force.Length() <= b.staticFriction*normal {
		force = cp.Vector{}
	}

	accel := force.Mult(b.invMass).Add(env.Gravity)
	v := b.velocity.Add(accel.Mult(dt))

	if b.kineticFriction > 0 && speed >= RestSpeed {
		drop := b.kineticFriction * env.FrictionAccel * dt
		if l := v.Length(); l > 0 {
			v = v.Mult(math.Max(0, l-drop) / l)
		}
	}
	b.velocity = v

	w := b.angularVelocity + b.torque*b.invInertia*dt
	b.angularVelocity = common.MoveToward(w, b.angularDamping)

	b.center = b.center.Add(b.velocity.Mult(dt))
	b.angle += b.angularVelocity * dt
}

func (b *RigidBody) clearForces() {
	b.force = cp.Vector{}
	b.torque = 0
}
