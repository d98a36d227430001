package collision

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/rigid2d/body"
	"github.com/milk9111/rigid2d/common"
)

// contactSlop tolerates rounding when testing points against the reference face.
const contactSlop = 1e-6

// Manifold describes one collision: the shared normal pointing from A
// toward B, the penetration depth and up to two contact points.
type Manifold struct {
	A, B      *body.RigidBody
	Collision bool
	Normal    cp.Vector
	Depth     float64
	Contacts  []cp.Vector
}

// Intersects runs the separating axis test and, on overlap, extracts the
// contact manifold. Bodies on z layers further apart than
// common.ZLayerThreshold, or with disjoint AABBs, never collide.
//
// The minimum-depth axis wins; on an exact tie the first axis tested wins,
// with A's axes tested before B's.
func Intersects(a, b *body.RigidBody) Manifold {
	m := Manifold{A: a, B: b}
	if math.Abs(a.Z()-b.Z()) > common.ZLayerThreshold {
		return m
	}
	if !a.AABB().Intersects(b.AABB()) {
		return m
	}

	axesA := a.CollisionAxes(b)
	axesB := b.CollisionAxes(a)
	axes := make([]cp.Vector, 0, len(axesA)+len(axesB))
	axes = append(axes, axesA...)
	axes = append(axes, axesB...)
	if len(axes) == 0 {
		return m
	}

	depth := math.Inf(1)
	var normal cp.Vector
	for _, axis := range axes {
		minA, maxA := a.MinMaxProjection(axis)
		minB, maxB := b.MinMaxProjection(axis)
		if maxA < minB || maxB < minA {
			return m
		}
		overlap := math.Min(maxA, maxB) - math.Max(minA, minB)
		if overlap < depth {
			depth = overlap
			if maxA < maxB {
				normal = axis
			} else {
				normal = axis.Neg()
			}
		}
	}

	m.Collision = true
	m.Normal = normal
	m.Depth = depth
	m.Contacts = ContactPoints(a, b, normal)
	return m
}

// ContactPoints returns the contact manifold points for a collision with
// normal pointing from a toward b.
func ContactPoints(a, b *body.RigidBody, normal cp.Vector) []cp.Vector {
	if a.Shape().Kind == body.ShapeCircle {
		return []cp.Vector{a.SignificantVertex(normal)}
	}
	if b.Shape().Kind == body.ShapeCircle {
		return []cp.Vector{b.SignificantVertex(normal.Neg())}
	}
	return clipContacts(a, b, normal)
}

// clipContacts picks the face most parallel to the normal as reference,
// clips the other body's incident face against the reference face's
// neighbouring edges, and keeps the points behind the reference face.
func clipContacts(a, b *body.RigidBody, normal cp.Vector) []cp.Vector {
	faceA := a.NormalOfSignificantFace(normal)
	faceB := b.NormalOfSignificantFace(normal.Neg())

	ref, inc, dir := a, b, normal
	if math.Abs(faceB.Dot(normal)) > math.Abs(faceA.Dot(normal)) {
		ref, inc, dir = b, a, normal.Neg()
	}

	refFace := ref.SignificantVertices(dir)
	refNormal := ref.NormalOfSignificantFace(dir)
	points := append([]cp.Vector(nil), inc.SignificantVertices(dir.Neg())...)

	for _, side := range ref.AdjacentFaces(dir) {
		points = clipSegment(points, side.A, side.Normal)
		if len(points) == 0 {
			break
		}
	}

	out := points[:0]
	for _, p := range points {
		if refNormal.Dot(p.Sub(refFace[0])) <= contactSlop {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []cp.Vector{inc.SignificantVertex(dir.Neg())}
	}
	if len(out) > 2 {
		out = out[:2]
	}
	return out
}

// clipSegment keeps the part of a one- or two-point segment lying on the
// inner side of the plane through q. Points within contactSlop of the plane
// count as inside.
func clipSegment(points []cp.Vector, q, n cp.Vector) []cp.Vector {
	if len(points) == 1 {
		if n.Dot(points[0].Sub(q)) <= contactSlop {
			return points
		}
		return nil
	}
	p1, p2 := points[0], points[1]
	d1 := n.Dot(p1.Sub(q))
	d2 := n.Dot(p2.Sub(q))
	in1, in2 := d1 <= contactSlop, d2 <= contactSlop

	out := make([]cp.Vector, 0, 2)
	if in1 {
		out = append(out, p1)
	}
	if in2 {
		out = append(out, p2)
	}
	if in1 != in2 && d1*d2 < 0 {
		t := d1 / (d1 - d2)
		out = append(out, p1.Add(p2.Sub(p1).Mult(t)))
	}
	return out
}
