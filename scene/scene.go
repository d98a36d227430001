// Package scene loads simulation setups from YAML: world configuration,
// bodies, joints and an optional tengo script driving forces each step.
package scene

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/rigid2d/body"
	"github.com/milk9111/rigid2d/constraint"
	"github.com/milk9111/rigid2d/world"
	"gopkg.in/yaml.v3"
)

//go:embed scenes/*.yaml scenes/*.tengo
var samplesFS embed.FS

var (
	ErrUnknownSample = errors.New("scene: unknown sample")
	ErrUnknownJoint  = errors.New("scene: unknown joint type")
	ErrMissingBody   = errors.New("scene: joint references missing body")
)

type Scene struct {
	Name   string       `yaml:"name"`
	World  world.Config `yaml:"world"`
	Bodies []BodySpec   `yaml:"bodies"`
	Joints []JointSpec  `yaml:"joints"`
	// Script is inline tengo source; ScriptFile is resolved next to the scene.
	Script     string `yaml:"script"`
	ScriptFile string `yaml:"script_file"`
}

type BodySpec struct {
	Name   string  `yaml:"name"`
	Shape  string  `yaml:"shape"`
	Radius float64 `yaml:"radius"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	// Vertices are local to the body center, any winding.
	Vertices        []cp.Vector `yaml:"vertices"`
	Mass            float64     `yaml:"mass"`
	Position        cp.Vector   `yaml:"position"`
	Angle           float64     `yaml:"angle"`
	Z               float64     `yaml:"z"`
	Velocity        cp.Vector   `yaml:"velocity"`
	AngularVelocity float64     `yaml:"angular_velocity"`
	Static          bool        `yaml:"static"`
	MovingStatic    bool        `yaml:"moving_static"`
	StaticFriction  float64     `yaml:"static_friction"`
	KineticFriction float64     `yaml:"kinetic_friction"`
	AngularDamping  *float64    `yaml:"angular_damping"`
	SleepThreshold  *float64    `yaml:"sleep_threshold"`
	Filter          body.Filter `yaml:"filter"`
	Repeat          *RepeatSpec `yaml:"repeat"`
}

// RepeatSpec stamps Count copies of a body, each Offset further along,
// named "<name>_<i>".
type RepeatSpec struct {
	Count  int       `yaml:"count"`
	Offset cp.Vector `yaml:"offset"`
	// Columns wraps copies into rows; RowOffset separates the rows.
	Columns   int       `yaml:"columns"`
	RowOffset cp.Vector `yaml:"row_offset"`
}

type JointSpec struct {
	Type string `yaml:"type"`
	A    string `yaml:"a"`
	B    string `yaml:"b"`
	// Anchor is the shared world point of a pin joint, or the world target
	// of a fixed joint.
	Anchor cp.Vector `yaml:"anchor"`
	// LocalA overrides the fixed joint's body anchor, which defaults to
	// Anchor mapped into A's frame.
	LocalA    *cp.Vector `yaml:"local_a"`
	Baumgarte *float64   `yaml:"baumgarte"`
}

// Parse decodes a scene. World keys that are absent keep their defaults.
func Parse(data []byte) (*Scene, error) {
	s := &Scene{World: world.DefaultConfig()}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("scene: unmarshal: %w", err)
	}
	if err := s.World.Validate(); err != nil {
		return nil, fmt.Errorf("scene: %s: %w", s.Name, err)
	}
	return s, nil
}

// Load reads a scene file from disk. A script_file is resolved relative to
// the scene's directory.
func Load(filename string) (*Scene, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("scene: load %s: %w", filename, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scene: %s: %w", filename, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	if err := s.resolveScript(os.DirFS(filepath.Dir(filename))); err != nil {
		return nil, fmt.Errorf("scene: %s: %w", filename, err)
	}
	return s, nil
}

// LoadSample returns one of the embedded sample scenes by name.
func LoadSample(name string) (*Scene, error) {
	data, err := samplesFS.ReadFile(path.Join("scenes", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSample, name)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scene: sample %s: %w", name, err)
	}
	if s.Name == "" {
		s.Name = name
	}
	sub, err := fs.Sub(samplesFS, "scenes")
	if err != nil {
		return nil, err
	}
	if err := s.resolveScript(sub); err != nil {
		return nil, fmt.Errorf("scene: sample %s: %w", name, err)
	}
	return s, nil
}

// Open loads ref from disk when such a file exists, otherwise as a sample name.
func Open(ref string) (*Scene, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return Load(ref)
	}
	return LoadSample(ref)
}

// Samples lists the embedded sample names.
func Samples() []string {
	entries, _ := samplesFS.ReadDir("scenes")
	var out []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Scene) resolveScript(fsys fs.FS) error {
	if s.ScriptFile == "" {
		return nil
	}
	if s.Script != "" {
		return errors.New("script and script_file are exclusive")
	}
	data, err := fs.ReadFile(fsys, filepath.ToSlash(s.ScriptFile))
	if err != nil {
		return fmt.Errorf("script %s: %w", s.ScriptFile, err)
	}
	s.Script = string(data)
	return nil
}

// Simulation is a built scene ready to step.
type Simulation struct {
	Scene  *Scene
	World  *world.World
	Script *Script
}

// Build creates the world, bodies, joints and script described by s.
func Build(s *Scene) (*Simulation, error) {
	w, err := world.New(s.World)
	if err != nil {
		return nil, fmt.Errorf("scene: %s: %w", s.Name, err)
	}
	for _, spec := range s.Bodies {
		for _, inst := range spec.expand() {
			b, err := inst.build()
			if err != nil {
				return nil, fmt.Errorf("scene: %s: body %q: %w", s.Name, inst.Name, err)
			}
			if _, err := w.AddRigidBody(inst.Name, b); err != nil {
				return nil, fmt.Errorf("scene: %s: %w", s.Name, err)
			}
			if inst.SleepThreshold != nil {
				b.SetSleepThreshold(*inst.SleepThreshold)
			}
		}
	}
	for i, js := range s.Joints {
		c, err := js.build(w)
		if err != nil {
			return nil, fmt.Errorf("scene: %s: joint %d: %w", s.Name, i, err)
		}
		if err := w.AddConstraint(c); err != nil {
			return nil, fmt.Errorf("scene: %s: joint %d: %w", s.Name, i, err)
		}
	}

	sim := &Simulation{Scene: s, World: w}
	if strings.TrimSpace(s.Script) != "" {
		sim.Script, err = CompileScript([]byte(s.Script))
		if err != nil {
			return nil, fmt.Errorf("scene: %s: %w", s.Name, err)
		}
	}
	return sim, nil
}

// Step runs the script, if any, then advances the world.
func (sim *Simulation) Step(dt float64) error {
	if sim.Script != nil {
		if err := sim.Script.Update(sim.World, dt); err != nil {
			return err
		}
	}
	sim.World.Step(dt)
	return nil
}

// Run steps the simulation without a viewer. Every statsEvery steps it logs
// the collision stats; events are drained as it goes so the queue stays
// bounded when nobody reads it.
func (sim *Simulation) Run(steps int, dt float64, statsEvery int) error {
	w := sim.World
	for i := 1; i <= steps; i++ {
		if err := sim.Step(dt); err != nil {
			return err
		}
		if statsEvery > 0 && i%statsEvery == 0 {
			stats := w.CollisionStats()
			log.Printf("Scene: %s step %d: bodies=%d sleeping=%d pairs=%d events=%d index=%s",
				sim.Scene.Name, i, stats.TotalBodies, stats.SleepingBodies, stats.ActivePairs, w.Events().Len(), w.SpatialIndexType())
		}
		if statsEvery <= 0 || i%statsEvery == 0 {
			w.Events().Drain()
		}
	}
	log.Printf("Scene: %s ran %d steps of %.4fs", sim.Scene.Name, steps, dt)
	return nil
}

func (spec BodySpec) expand() []BodySpec {
	if spec.Repeat == nil || spec.Repeat.Count <= 1 {
		return []BodySpec{spec}
	}
	r := spec.Repeat
	out := make([]BodySpec, 0, r.Count)
	for i := 0; i < r.Count; i++ {
		col, row := i, 0
		if r.Columns > 0 {
			col, row = i%r.Columns, i/r.Columns
		}
		inst := spec
		inst.Repeat = nil
		inst.Name = fmt.Sprintf("%s_%d", spec.Name, i)
		inst.Position = spec.Position.Add(r.Offset.Mult(float64(col))).Add(r.RowOffset.Mult(float64(row)))
		out = append(out, inst)
	}
	return out
}

func (spec BodySpec) shape() (body.Shape, error) {
	switch strings.ToLower(spec.Shape) {
	case "circle":
		return body.NewCircle(spec.Radius)
	case "box", "rect":
		return body.NewBox(spec.Width, spec.Height)
	case "polygon", "poly":
		return body.NewPolygon(spec.Vertices)
	}
	return body.Shape{}, fmt.Errorf("%w: %q", body.ErrUnknownShape, spec.Shape)
}

func (spec BodySpec) build() (*body.RigidBody, error) {
	shape, err := spec.shape()
	if err != nil {
		return nil, err
	}
	mass := spec.Mass
	if mass == 0 {
		mass = 1
	}
	b, err := body.NewRigidBody(shape, spec.Position, mass)
	if err != nil {
		return nil, err
	}
	b.SetAngle(spec.Angle)
	b.SetZ(spec.Z)
	b.SetFilter(spec.Filter.WithDefaults())
	b.SetStaticFriction(spec.StaticFriction)
	b.SetKineticFriction(spec.KineticFriction)
	if spec.AngularDamping != nil {
		b.SetAngularDamping(*spec.AngularDamping)
	}
	switch {
	case spec.Static:
		b.SetStatic(true)
	case spec.MovingStatic:
		b.SetMovingStatic(true)
	}
	b.SetVelocity(spec.Velocity)
	b.SetAngularVelocity(spec.AngularVelocity)
	return b, nil
}

func (js JointSpec) build(w *world.World) (constraint.Constraint, error) {
	a, ok := w.Body(js.A)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingBody, js.A)
	}
	baumgarte := w.Config().Baumgarte
	if js.Baumgarte != nil {
		baumgarte = *js.Baumgarte
	}

	switch strings.ToLower(js.Type) {
	case "pin":
		b, ok := w.Body(js.B)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingBody, js.B)
		}
		j, err := constraint.NewPinJointAt(a, b, js.Anchor)
		if err != nil {
			return nil, err
		}
		j.Baumgarte = baumgarte
		return j, nil
	case "fixed":
		local := constraint.ToLocal(a, js.Anchor)
		if js.LocalA != nil {
			local = *js.LocalA
		}
		j, err := constraint.NewFixedPinJoint(a, local, js.Anchor)
		if err != nil {
			return nil, err
		}
		j.Baumgarte = baumgarte
		return j, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownJoint, js.Type)
}
