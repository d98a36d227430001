package scene

import (
	"fmt"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/rigid2d/body"
	"github.com/milk9111/rigid2d/world"
)

// Script runs a tengo program before every world step. The program must
// define update(engine, state); state is a map kept between steps.
type Script struct {
	compiled *tengo.Compiled
	state    *tengo.Map
	elapsed  float64
	frame    int
}

const scriptDispatch = `
update(__engine, __state)
`

// CompileScript compiles src with the tengo standard library available.
func CompileScript(src []byte) (*Script, error) {
	script := tengo.NewScript(append(append([]byte(nil), src...), []byte("\n"+scriptDispatch)...))
	_ = script.Add("__engine", map[string]any{})
	_ = script.Add("__state", map[string]any{})
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("scene: compile script: %w", err)
	}
	return &Script{
		compiled: compiled,
		state:    &tengo.Map{Value: map[string]tengo.Object{}},
	}, nil
}

// Update runs the script once against w.
func (s *Script) Update(w *world.World, dt float64) error {
	if s == nil || s.compiled == nil {
		return nil
	}
	s.frame++
	s.elapsed += dt
	if err := s.compiled.Set("__engine", buildEngine(w, dt, s.elapsed, s.frame)); err != nil {
		return err
	}
	if err := s.compiled.Set("__state", s.state); err != nil {
		return err
	}
	if err := s.compiled.Run(); err != nil {
		return fmt.Errorf("scene: script frame %d: %w", s.frame, err)
	}
	return nil
}

func buildEngine(w *world.World, dt, elapsed float64, frame int) *tengo.ImmutableMap {
	values := map[string]tengo.Object{
		"dt":    &tengo.Float{Value: dt},
		"time":  &tengo.Float{Value: elapsed},
		"frame": &tengo.Int{Value: int64(frame)},
	}

	lookup := func(args []tengo.Object) *body.RigidBody {
		if len(args) < 1 {
			return nil
		}
		b, _ := w.Body(objectAsString(args[0]))
		return b
	}
	vec := func(v cp.Vector) tengo.Object {
		return &tengo.Array{Value: []tengo.Object{&tengo.Float{Value: v.X}, &tengo.Float{Value: v.Y}}}
	}

	values["bodies"] = &tengo.UserFunction{Name: "bodies", Value: func(args ...tengo.Object) (tengo.Object, error) {
		var names []tengo.Object
		prefix := ""
		if len(args) > 0 {
			prefix = objectAsString(args[0])
		}
		w.EachBody(func(name string, _ *body.RigidBody) {
			if strings.HasPrefix(name, prefix) {
				names = append(names, &tengo.String{Value: name})
			}
		})
		return &tengo.Array{Value: names}, nil
	}}

	values["apply_force"] = &tengo.UserFunction{Name: "apply_force", Value: func(args ...tengo.Object) (tengo.Object, error) {
		b := lookup(args)
		if b == nil || len(args) < 3 {
			return tengo.FalseValue, nil
		}
		b.ApplyForce(cp.Vector{X: objectAsFloat(args[1]), Y: objectAsFloat(args[2])})
		return tengo.TrueValue, nil
	}}

	values["apply_torque"] = &tengo.UserFunction{Name: "apply_torque", Value: func(args ...tengo.Object) (tengo.Object, error) {
		b := lookup(args)
		if b == nil || len(args) < 2 {
			return tengo.FalseValue, nil
		}
		b.ApplyTorque(objectAsFloat(args[1]))
		return tengo.TrueValue, nil
	}}

	values["set_velocity"] = &tengo.UserFunction{Name: "set_velocity", Value: func(args ...tengo.Object) (tengo.Object, error) {
		b := lookup(args)
		if b == nil || len(args) < 3 {
			return tengo.FalseValue, nil
		}
		b.SetVelocity(cp.Vector{X: objectAsFloat(args[1]), Y: objectAsFloat(args[2])})
		return tengo.TrueValue, nil
	}}

	values["get_position"] = &tengo.UserFunction{Name: "get_position", Value: func(args ...tengo.Object) (tengo.Object, error) {
		b := lookup(args)
		if b == nil {
			return vec(cp.Vector{}), nil
		}
		return vec(b.Center()), nil
	}}

	values["get_velocity"] = &tengo.UserFunction{Name: "get_velocity", Value: func(args ...tengo.Object) (tengo.Object, error) {
		b := lookup(args)
		if b == nil {
			return vec(cp.Vector{}), nil
		}
		return vec(b.Velocity()), nil
	}}

	values["is_sleeping"] = &tengo.UserFunction{Name: "is_sleeping", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if b := lookup(args); b != nil && b.IsSleeping() {
			return tengo.TrueValue, nil
		}
		return tengo.FalseValue, nil
	}}

	return &tengo.ImmutableMap{Value: values}
}

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}

func objectAsFloat(obj tengo.Object) float64 {
	f, _ := tengo.ToFloat64(obj)
	return f
}
