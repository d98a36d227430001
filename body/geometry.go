package body

import (
	"log"
	"math"

	"github.com/jakecoffman/cp"
)

// Face is one polygon edge in world space with its outward unit normal.
type Face struct {
	A, B   cp.Vector
	Normal cp.Vector
}

type vertexCache struct {
	valid   bool
	center  cp.Vector
	angle   float64
	verts   []cp.Vector
	normals []cp.Vector
}

func (b *RigidBody) refreshCache() *vertexCache {
	c := &b.cache
	if c.valid && c.center == b.center && c.angle == b.angle {
		return c
	}
	n := len(b.shape.Vertices)
	if cap(c.verts) < n {
		c.verts = make([]cp.Vector, n)
		c.normals = make([]cp.Vector, n)
	}
	c.verts = c.verts[:n]
	c.normals = c.normals[:n]
	rot := cp.ForAngle(b.angle)
	for i, v := range b.shape.Vertices {
		c.verts[i] = b.center.Add(v.Rotate(rot))
	}
	for i := range c.verts {
		edge := c.verts[(i+1)%n].Sub(c.verts[i])
		c.normals[i] = edge.ReversePerp().Normalize()
	}
	c.center, c.angle, c.valid = b.center, b.angle, true
	return c
}

// WorldVertices returns the polygon vertices transformed by the current
// pose. The slice is owned by the body and valid until the pose changes.
func (b *RigidBody) WorldVertices() []cp.Vector {
	if b.shape.Kind != ShapePolygon {
		return nil
	}
	return b.refreshCache().verts
}

// FaceNormals returns one outward normal per polygon edge; edge i runs
// from vertex i to vertex i+1.
func (b *RigidBody) FaceNormals() []cp.Vector {
	if b.shape.Kind != ShapePolygon {
		return nil
	}
	return b.refreshCache().normals
}

// AABB derives the world bounding box from shape and pose.
func (b *RigidBody) AABB() cp.BB {
	switch b.shape.Kind {
	case ShapeCircle:
		r := b.shape.Radius
		return cp.BB{L: b.center.X - r, B: b.center.Y - r, R: b.center.X + r, T: b.center.Y + r}
	case ShapePolygon:
		verts := b.WorldVertices()
		bb := cp.BB{L: math.Inf(1), B: math.Inf(1), R: math.Inf(-1), T: math.Inf(-1)}
		for _, v := range verts {
			bb.L = math.Min(bb.L, v.X)
			bb.B = math.Min(bb.B, v.Y)
			bb.R = math.Max(bb.R, v.X)
			bb.T = math.Max(bb.T, v.Y)
		}
		return bb
	default:
		log.Printf("Body: AABB for body %d with %s", b.id, b.shape.Kind)
		return cp.BB{L: b.center.X, B: b.center.Y, R: b.center.X, T: b.center.Y}
	}
}

// CollisionAxes lists the candidate separating axes this body contributes
// against other: every face normal for a polygon, the unit vector toward
// other's center for a circle.
func (b *RigidBody) CollisionAxes(other *RigidBody) []cp.Vector {
	switch b.shape.Kind {
	case ShapePolygon:
		return b.FaceNormals()
	case ShapeCircle:
		d := other.center.Sub(b.center)
		if d.LengthSq() == 0 {
			return []cp.Vector{{X: 1, Y: 0}}
		}
		return []cp.Vector{d.Normalize()}
	default:
		log.Printf("Body: collision axes for body %d with %s", b.id, b.shape.Kind)
		return nil
	}
}

// MinMaxProjection projects the shape onto a unit axis.
func (b *RigidBody) MinMaxProjection(axis cp.Vector) (float64, float64) {
	switch b.shape.Kind {
	case ShapeCircle:
		c := b.center.Dot(axis)
		return c - b.shape.Radius, c + b.shape.Radius
	case ShapePolygon:
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range b.WorldVertices() {
			p := v.Dot(axis)
			lo = math.Min(lo, p)
			hi = math.Max(hi, p)
		}
		return lo, hi
	default:
		log.Printf("Body: projection for body %d with %s", b.id, b.shape.Kind)
		c := b.center.Dot(axis)
		return c, c
	}
}

// SignificantVertex is the point of the shape furthest along dir.
func (b *RigidBody) SignificantVertex(dir cp.Vector) cp.Vector {
	switch b.shape.Kind {
	case ShapeCircle:
		return b.center.Add(dir.Normalize().Mult(b.shape.Radius))
	case ShapePolygon:
		verts := b.WorldVertices()
		best, bestDot := verts[0], math.Inf(-1)
		for _, v := range verts {
			if d := v.Dot(dir); d > bestDot {
				best, bestDot = v, d
			}
		}
		return best
	default:
		log.Printf("Body: significant vertex for body %d with %s", b.id, b.shape.Kind)
		return b.center
	}
}

// significantFace returns the index of the edge whose normal is most
// aligned with dir, or -1 for non-polygons.
func (b *RigidBody) significantFace(dir cp.Vector) int {
	if b.shape.Kind != ShapePolygon {
		return -1
	}
	best, bestDot := 0, math.Inf(-1)
	for i, n := range b.FaceNormals() {
		if d := n.Dot(dir); d > bestDot {
			best, bestDot = i, d
		}
	}
	return best
}

// SignificantVertices returns the one (circle) or two (polygon face)
// points most facing dir.
func (b *RigidBody) SignificantVertices(dir cp.Vector) []cp.Vector {
	switch b.shape.Kind {
	case ShapeCircle:
		return []cp.Vector{b.SignificantVertex(dir)}
	case ShapePolygon:
		verts := b.WorldVertices()
		i := b.significantFace(dir)
		return []cp.Vector{verts[i], verts[(i+1)%len(verts)]}
	default:
		log.Printf("Body: significant vertices for body %d with %s", b.id, b.shape.Kind)
		return nil
	}
}

// NormalOfSignificantFace is the outward normal of the face most facing
// dir. A circle answers with dir itself.
func (b *RigidBody) NormalOfSignificantFace(dir cp.Vector) cp.Vector {
	switch b.shape.Kind {
	case ShapeCircle:
		return dir.Normalize()
	case ShapePolygon:
		return b.FaceNormals()[b.significantFace(dir)]
	default:
		log.Printf("Body: significant face for body %d with %s", b.id, b.shape.Kind)
		return cp.Vector{}
	}
}

// AdjacentFaces returns the faces before and after the face most facing
// dir. Circles have no faces and answer nil.
func (b *RigidBody) AdjacentFaces(dir cp.Vector) []Face {
	switch b.shape.Kind {
	case ShapeCircle:
		return nil
	case ShapePolygon:
		verts := b.WorldVertices()
		normals := b.FaceNormals()
		n := len(verts)
		i := b.significantFace(dir)
		prev := (i - 1 + n) % n
		next := (i + 1) % n
		return []Face{
			{A: verts[prev], B: verts[(prev+1)%n], Normal: normals[prev]},
			{A: verts[next], B: verts[(next+1)%n], Normal: normals[next]},
		}
	default:
		log.Printf("Body: adjacent faces for body %d with %s", b.id, b.shape.Kind)
		return nil
	}
}

// Snapshot is a read-only copy of the pose and geometry for renderers.
type Snapshot struct {
	ID              uint64
	Kind            ShapeKind
	Center          cp.Vector
	Angle           float64
	Radius          float64
	Vertices        []cp.Vector
	AABB            cp.BB
	Velocity        cp.Vector
	AngularVelocity float64
	Static          bool
	MovingStatic    bool
	Sleeping        bool
}

func (b *RigidBody) Snapshot() Snapshot {
	s := Snapshot{
		ID:              b.id,
		Kind:            b.shape.Kind,
		Center:          b.center,
		Angle:           b.angle,
		Radius:          b.shape.Radius,
		AABB:            b.AABB(),
		Velocity:        b.velocity,
		AngularVelocity: b.angularVelocity,
		Static:          b.static,
		MovingStatic:    b.movingStatic,
		Sleeping:        b.sleeping,
	}
	if verts := b.WorldVertices(); verts != nil {
		s.Vertices = append([]cp.Vector(nil), verts...)
	}
	return s
}
