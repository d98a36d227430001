// Package spatial provides broad-phase indexes over axis-aligned bounds.
//
// Every index answers Retrieve with a superset of the objects whose stored
// bounds may overlap the query; exact overlap is re-checked by the caller.
// Different indexes may return different supersets for the same geometry.
package spatial

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jakecoffman/cp"
)

var ErrUnknownKind = errors.New("spatial: unknown index kind")

// BoundsFunc reports the current bounds of an indexed object.
type BoundsFunc[T comparable] func(T) cp.BB

// Index is the contract shared by every broad-phase structure.
type Index[T comparable] interface {
	Clear()
	Insert(obj T)
	Retrieve(obj T) []T
	Stats() Stats
}

// Updater is implemented by indexes that can refresh one object in place.
type Updater[T comparable] interface {
	Update(obj T)
	Remove(obj T) bool
}

// Stats summarises an index for diagnostics.
type Stats struct {
	Kind Kind
	// NodeCount is the number of stored objects.
	NodeCount int
	// InternalNodes counts tree branches (quadrants for QuadTree).
	InternalNodes int
	Height        int
}

// Kind selects an index implementation.
type Kind int

const (
	KindQuadTree Kind = iota
	KindDynamicTree
	KindSweepAndPrune
)

func (k Kind) String() string {
	switch k {
	case KindQuadTree:
		return "quadtree"
	case KindDynamicTree:
		return "dynamictree"
	case KindSweepAndPrune:
		return "sweepandprune"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts the String form, case-insensitively, plus a few aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quadtree", "quad":
		return KindQuadTree, nil
	case "dynamictree", "tree", "aabbtree":
		return KindDynamicTree, nil
	case "sweepandprune", "sap":
		return KindSweepAndPrune, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) MarshalYAML() (any, error) {
	return k.String(), nil
}

func (k *Kind) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Options configures New.
type Options struct {
	// Bounds is the fixed world bound used by QuadTree.
	Bounds cp.BB
	// Margin fattens DynamicTree leaves.
	Margin float64
}

// New builds an empty index of the given kind.
func New[T comparable](kind Kind, bounds BoundsFunc[T], opts Options) (Index[T], error) {
	switch kind {
	case KindQuadTree:
		return NewQuadTree(opts.Bounds, bounds), nil
	case KindDynamicTree:
		return NewDynamicTree(bounds, opts.Margin), nil
	case KindSweepAndPrune:
		return NewSweepAndPrune(bounds), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
}
