package world

import (
	"fmt"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/rigid2d/body"
	"github.com/milk9111/rigid2d/collision"
	"github.com/milk9111/rigid2d/constraint"
	"github.com/milk9111/rigid2d/spatial"
	"gopkg.in/yaml.v3"
)

// Config holds the tunables of a World. Scene files decode a partial
// config over DefaultConfig, so omitted keys keep their defaults.
type Config struct {
	Gravity cp.Vector `yaml:"gravity"`
	// FrictionAccel is the normal acceleration friction forces are scaled by.
	FrictionAccel float64 `yaml:"friction_accel"`
	Restitution   float64 `yaml:"restitution"`
	SleepTime     float64 `yaml:"sleep_time"`
	// SleepThreshold is given to every body when it is added. A body resting
	// on the ground still gains |Gravity|*dt of speed each step before the
	// contact cancels it, so the threshold must stay above that figure.
	SleepThreshold float64      `yaml:"sleep_threshold"`
	MaxPairAge     int          `yaml:"max_pair_age"`
	IndexKind      spatial.Kind `yaml:"index"`
	Bounds         cp.BB        `yaml:"bounds"`
	TreeMargin     float64      `yaml:"tree_margin"`
	// Baumgarte is the default stabilization factor of joints built from scenes.
	Baumgarte        float64 `yaml:"baumgarte"`
	Rotation         bool    `yaml:"rotation"`
	SleepingEnabled  bool    `yaml:"sleeping"`
	ResolveCollision bool    `yaml:"resolve_collision"`
}

func DefaultConfig() Config {
	return Config{
		Gravity:          cp.Vector{X: 0, Y: 9.81},
		FrictionAccel:    9.81,
		Restitution:      collision.DefaultRestitution,
		SleepTime:        0.5,
		SleepThreshold:   1,
		MaxPairAge:       collision.DefaultMaxPairAge,
		IndexKind:        spatial.KindQuadTree,
		Bounds:           cp.BB{L: 0, B: 0, R: 2000, T: 2000},
		TreeMargin:       spatial.DefaultMargin,
		Baumgarte:        constraint.DefaultBaumgarte,
		Rotation:         true,
		SleepingEnabled:  true,
		ResolveCollision: true,
	}
}

// ParseConfig decodes YAML over the defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("world: parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the solver cannot work with.
func (c Config) Validate() error {
	switch {
	case c.Restitution < 0:
		return fmt.Errorf("world: restitution %v is negative", c.Restitution)
	case c.SleepTime < 0:
		return fmt.Errorf("world: sleep_time %v is negative", c.SleepTime)
	case c.MaxPairAge < 0:
		return fmt.Errorf("world: max_pair_age %d is negative", c.MaxPairAge)
	case c.Baumgarte < 0:
		return fmt.Errorf("world: baumgarte %v is negative", c.Baumgarte)
	case c.Bounds.R <= c.Bounds.L || c.Bounds.T <= c.Bounds.B:
		return fmt.Errorf("world: bounds %+v are empty", c.Bounds)
	}
	return nil
}

// Environment is the integration input derived from c.
func (c Config) Environment() body.Environment {
	return body.Environment{Gravity: c.Gravity, FrictionAccel: c.FrictionAccel}
}
