package body

import (
	"errors"
	"fmt"

	"github.com/jakecoffman/cp"
)

var (
	ErrDegeneratePolygon = errors.New("body: polygon needs at least 3 vertices")
	ErrNonPositiveRadius = errors.New("body: circle radius must be positive")
	ErrNonPositiveMass   = errors.New("body: dynamic body mass must be positive")
	ErrUnknownShape      = errors.New("body: unknown shape kind")
)

// ShapeKind tags which member of the Shape union is populated.
type ShapeKind uint8

const (
	ShapeUnknown ShapeKind = iota
	ShapeCircle
	ShapePolygon
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeCircle:
		return "circle"
	case ShapePolygon:
		return "polygon"
	default:
		return fmt.Sprintf("shape(%d)", uint8(k))
	}
}

// Shape is a circle or a convex polygon. Polygon vertices are body-local
// and wound counter-clockwise.
type Shape struct {
	Kind     ShapeKind
	Radius   float64
	Vertices []cp.Vector
}

func NewCircle(radius float64) (Shape, error) {
	if radius <= 0 {
		return Shape{}, fmt.Errorf("%w: got %v", ErrNonPositiveRadius, radius)
	}
	return Shape{Kind: ShapeCircle, Radius: radius}, nil
}

// NewPolygon copies verts into a polygon shape. Clockwise input is
// re-wound so that edge normals always point outward.
func NewPolygon(verts []cp.Vector) (Shape, error) {
	if len(verts) < 3 {
		return Shape{}, fmt.Errorf("%w: got %d", ErrDegeneratePolygon, len(verts))
	}
	local := make([]cp.Vector, len(verts))
	copy(local, verts)
	if signedArea(local) < 0 {
		for i, j := 0, len(local)-1; i < j; i, j = i+1, j-1 {
			local[i], local[j] = local[j], local[i]
		}
	}
	return Shape{Kind: ShapePolygon, Vertices: local}, nil
}

// NewBox builds an axis-aligned rectangle centred on the body origin.
func NewBox(width, height float64) (Shape, error) {
	hw, hh := width/2, height/2
	return NewPolygon([]cp.Vector{
		{X: -hw, Y: -hh},
		{X: hw, Y: -hh},
		{X: hw, Y: hh},
		{X: -hw, Y: hh},
	})
}

func MustCircle(radius float64) Shape {
	s, err := NewCircle(radius)
	if err != nil {
		panic(err)
	}
	return s
}

func MustPolygon(verts []cp.Vector) Shape {
	s, err := NewPolygon(verts)
	if err != nil {
		panic(err)
	}
	return s
}

func MustBox(width, height float64) Shape {
	s, err := NewBox(width, height)
	if err != nil {
		panic(err)
	}
	return s
}

// Moment returns the moment of inertia about the body origin for mass.
func (s Shape) Moment(mass float64) float64 {
	switch s.Kind {
	case ShapeCircle:
		return cp.MomentForCircle(mass, 0, s.Radius, cp.Vector{})
	case ShapePolygon:
		return cp.MomentForPoly(mass, len(s.Vertices), s.Vertices, cp.Vector{}, 0)
	default:
		return 0
	}
}

func (s Shape) validate() error {
	switch s.Kind {
	case ShapeCircle:
		if s.Radius <= 0 {
			return ErrNonPositiveRadius
		}
	case ShapePolygon:
		if len(s.Vertices) < 3 {
			return ErrDegeneratePolygon
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownShape, s.Kind)
	}
	return nil
}

func signedArea(verts []cp.Vector) float64 {
	area := 0.0
	for i := range verts {
		area += verts[i].Cross(verts[(i+1)%len(verts)])
	}
	return area / 2
}
