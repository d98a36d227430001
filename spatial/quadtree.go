package spatial

import "github.com/jakecoffman/cp"

const (
	// QuadMaxObjects is how many objects a node holds before splitting.
	QuadMaxObjects = 10
	// QuadMaxLevels bounds the depth of the tree.
	QuadMaxLevels = 5
)

type quadEntry[T comparable] struct {
	obj T
	bb  cp.BB
}

type quadNode[T comparable] struct {
	level    int
	bb       cp.BB
	objects  []quadEntry[T]
	children *[4]*quadNode[T]
}

// QuadTree partitions a fixed world bound. Objects that fit entirely in a
// quadrant are pushed down; objects straddling a split line stay at the
// node. Retrieve follows only the quadrant containing the query's AABB
// midpoint, so queries that straddle quadrants can miss objects stored in
// sibling quadrants.
type QuadTree[T comparable] struct {
	root   *quadNode[T]
	bounds BoundsFunc[T]
	count  int
}

func NewQuadTree[T comparable](world cp.BB, bounds BoundsFunc[T]) *QuadTree[T] {
	return &QuadTree[T]{
		root:   &quadNode[T]{bb: world},
		bounds: bounds,
	}
}

func (q *QuadTree[T]) Clear() {
	q.root = &quadNode[T]{bb: q.root.bb}
	q.count = 0
}

func (q *QuadTree[T]) Insert(obj T) {
	q.root.insert(quadEntry[T]{obj: obj, bb: q.bounds(obj)})
	q.count++
}

func (q *QuadTree[T]) Retrieve(obj T) []T {
	bb := q.bounds(obj)
	mid := cp.Vector{X: (bb.L + bb.R) / 2, Y: (bb.B + bb.T) / 2}
	var out []T
	return q.root.retrieve(mid, obj, out)
}

func (q *QuadTree[T]) Stats() Stats {
	s := Stats{Kind: KindQuadTree, NodeCount: q.count}
	q.Walk(func(bb cp.BB, level int, leaf bool) {
		if !leaf {
			s.InternalNodes++
		}
		if level > s.Height {
			s.Height = level
		}
	})
	return s
}

// Walk visits every node depth first.
func (q *QuadTree[T]) Walk(fn func(bb cp.BB, level int, leaf bool)) {
	q.root.walk(fn)
}

func (n *quadNode[T]) walk(fn func(bb cp.BB, level int, leaf bool)) {
	fn(n.bb, n.level, n.children == nil)
	if n.children == nil {
		return
	}
	for _, c := range n.children {
		c.walk(fn)
	}
}

func (n *quadNode[T]) insert(e quadEntry[T]) {
	if n.children != nil {
		if i := n.index(e.bb); i >= 0 {
			n.children[i].insert(e)
			return
		}
	}

	n.objects = append(n.objects, e)
	if len(n.objects) <= QuadMaxObjects || n.level >= QuadMaxLevels {
		return
	}
	if n.children == nil {
		n.split()
	}
	kept := n.objects[:0]
	for _, o := range n.objects {
		if i := n.index(o.bb); i >= 0 {
			n.children[i].insert(o)
			continue
		}
		kept = append(kept, o)
	}
	clear(n.objects[len(kept):])
	n.objects = kept
}

func (n *quadNode[T]) split() {
	midX := (n.bb.L + n.bb.R) / 2
	midY := (n.bb.B + n.bb.T) / 2
	next := n.level + 1
	n.children = &[4]*quadNode[T]{
		{level: next, bb: cp.BB{L: midX, B: midY, R: n.bb.R, T: n.bb.T}},
		{level: next, bb: cp.BB{L: n.bb.L, B: midY, R: midX, T: n.bb.T}},
		{level: next, bb: cp.BB{L: n.bb.L, B: n.bb.B, R: midX, T: midY}},
		{level: next, bb: cp.BB{L: midX, B: n.bb.B, R: n.bb.R, T: midY}},
	}
}

// index returns the quadrant wholly containing bb, or -1.
func (n *quadNode[T]) index(bb cp.BB) int {
	midX := (n.bb.L + n.bb.R) / 2
	midY := (n.bb.B + n.bb.T) / 2
	upper := bb.B > midY && bb.T < n.bb.T
	lower := bb.T < midY && bb.B > n.bb.B
	right := bb.L > midX && bb.R < n.bb.R
	left := bb.R < midX && bb.L > n.bb.L
	switch {
	case upper && right:
		return 0
	case upper && left:
		return 1
	case lower && left:
		return 2
	case lower && right:
		return 3
	}
	return -1
}

func (n *quadNode[T]) pointIndex(p cp.Vector) int {
	midX := (n.bb.L + n.bb.R) / 2
	midY := (n.bb.B + n.bb.T) / 2
	switch {
	case p.Y >= midY && p.X >= midX:
		return 0
	case p.Y >= midY:
		return 1
	case p.X < midX:
		return 2
	default:
		return 3
	}
}

func (n *quadNode[T]) retrieve(p cp.Vector, self T, out []T) []T {
	for _, e := range n.objects {
		if e.obj != self {
			out = append(out, e.obj)
		}
	}
	if n.children != nil {
		out = n.children[n.pointIndex(p)].retrieve(p, self, out)
	}
	return out
}
