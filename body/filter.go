package body

import "math"

// Filter decides which bodies may collide. Group overrides the
// category/mask test when both bodies share the same non-zero group:
// positive groups always collide, negative groups never do.
type Filter struct {
	Category uint32 `yaml:"category,omitempty"`
	Mask     uint32 `yaml:"mask,omitempty"`
	Group    int32  `yaml:"group,omitempty"`
}

// DefaultFilter places a body in category 1 colliding with everything.
var DefaultFilter = Filter{Category: 1, Mask: math.MaxUint32}

func (f Filter) CanCollide(other Filter) bool {
	if f.Group != 0 && f.Group == other.Group {
		return f.Group > 0
	}
	return f.Category&other.Mask != 0 && other.Category&f.Mask != 0
}

// WithDefaults treats a zero category as 1 and a zero mask as all bits,
// the convention used by scene files that omit the fields.
func (f Filter) WithDefaults() Filter {
	if f.Category == 0 {
		f.Category = DefaultFilter.Category
	}
	if f.Mask == 0 {
		f.Mask = DefaultFilter.Mask
	}
	return f
}
