package main

import (
	"fmt"
	"image/color"
	"log"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/rigid2d/body"
	"github.com/milk9111/rigid2d/scene"
	"github.com/milk9111/rigid2d/spatial"
	"github.com/milk9111/rigid2d/world"
	"golang.design/x/clipboard"
	"golang.org/x/image/colornames"
	"gopkg.in/yaml.v3"
)

const (
	viewWidth      = 1280
	viewHeight     = 720
	circleSegments = 24
)

// walker is implemented by the tree indexes that can expose their nodes.
type walker interface {
	Walk(fn func(bb cp.BB, depth int, leaf bool))
}

// Viewer draws a running simulation and lets the user poke at it.
type Viewer struct {
	sim  *scene.Simulation
	dt   float64
	load func() (*scene.Simulation, error)

	frames    int
	paused    bool
	showIndex bool
	showAABB  bool
	started   int
	ended     int
	status    string

	reloads   <-chan string
	clipReady bool
}

func NewViewer(sim *scene.Simulation, dt float64, load func() (*scene.Simulation, error)) *Viewer {
	return &Viewer{sim: sim, dt: dt, load: load, showIndex: true}
}

func (v *Viewer) watch(w *scene.Watcher) {
	v.reloads = w.Events
	go func() {
		for err := range w.Errors {
			log.Printf("sandbox: watcher: %v", err)
		}
	}()
}

func (v *Viewer) Update() error {
	v.frames++

	select {
	case name, ok := <-v.reloads:
		if ok {
			log.Printf("sandbox: %s changed, reloading", name)
			v.reload()
		}
	default:
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		v.paused = !v.paused
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		v.reload()
	case inpututil.IsKeyJustPressed(ebiten.KeyI):
		v.cycleIndex()
	case inpututil.IsKeyJustPressed(ebiten.KeyT):
		v.showIndex = !v.showIndex
	case inpututil.IsKeyJustPressed(ebiten.KeyB):
		v.showAABB = !v.showAABB
	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		w := v.sim.World
		w.SetSleepingEnabled(!w.SleepingEnabled())
	case inpututil.IsKeyJustPressed(ebiten.KeyC):
		v.copyStats()
	}

	if v.paused && !inpututil.IsKeyJustPressed(ebiten.KeyN) {
		return nil
	}
	if err := v.sim.Step(v.dt); err != nil {
		v.status = err.Error()
		v.paused = true
		return nil
	}
	for _, e := range v.sim.World.Events().Drain() {
		switch e.Kind {
		case world.CollisionStarted:
			v.started++
		case world.CollisionEnded:
			v.ended++
		}
	}
	return nil
}

func (v *Viewer) reload() {
	sim, err := v.load()
	if err != nil {
		v.status = err.Error()
		log.Printf("sandbox: reload: %v", err)
		return
	}
	v.sim = sim
	v.started, v.ended = 0, 0
	v.status = "reloaded " + sim.Scene.Name
}

func (v *Viewer) cycleIndex() {
	w := v.sim.World
	next := (w.SpatialIndexType() + 1) % (spatial.KindSweepAndPrune + 1)
	if err := w.SetSpatialIndexType(next); err != nil {
		v.status = err.Error()
		return
	}
	v.status = "index " + next.String()
}

type statsReport struct {
	Scene     string               `yaml:"scene"`
	Frame     uint64               `yaml:"frame"`
	Collision world.CollisionStats `yaml:"collision"`
	Index     indexReport          `yaml:"index"`
	Started   int                  `yaml:"started"`
	Ended     int                  `yaml:"ended"`
}

type indexReport struct {
	Kind          spatial.Kind `yaml:"kind"`
	Nodes         int          `yaml:"nodes"`
	InternalNodes int          `yaml:"internal_nodes"`
	Height        int          `yaml:"height"`
}

func (v *Viewer) copyStats() {
	w := v.sim.World
	is := w.SpatialIndexStats()
	data, err := yaml.Marshal(statsReport{
		Scene:     v.sim.Scene.Name,
		Frame:     w.PairManager().Frame(),
		Collision: w.CollisionStats(),
		Index:     indexReport{Kind: is.Kind, Nodes: is.NodeCount, InternalNodes: is.InternalNodes, Height: is.Height},
		Started:   v.started,
		Ended:     v.ended,
	})
	if err != nil {
		v.status = err.Error()
		return
	}
	if !v.clipReady {
		if err := clipboard.Init(); err != nil {
			v.status = "clipboard unavailable: " + err.Error()
			return
		}
		v.clipReady = true
	}
	clipboard.Write(clipboard.FmtText, data)
	v.status = "stats copied"
}

func (v *Viewer) Draw(screen *ebiten.Image) {
	screen.Fill(colornames.Black)
	w := v.sim.World

	if v.showIndex {
		if tree, ok := w.SpatialIndex().(walker); ok {
			tree.Walk(func(bb cp.BB, depth int, leaf bool) {
				c := colornames.Darkslategray
				if leaf {
					c = colornames.Slategray
				}
				strokeBB(screen, bb, c)
			})
		}
	}

	w.EachBody(func(_ string, b *body.RigidBody) {
		snap := b.Snapshot()
		if v.showAABB {
			strokeBB(screen, snap.AABB, colornames.Dimgray)
		}
		drawBody(screen, snap, bodyColor(snap))
	})

	for _, m := range w.Manifolds() {
		for _, p := range m.Contacts {
			vector.FillRect(screen, float32(p.X-2), float32(p.Y-2), 4, 4, colornames.Red, false)
			end := p.Add(m.Normal.Mult(12))
			vector.StrokeLine(screen, float32(p.X), float32(p.Y), float32(end.X), float32(end.Y), 1, colornames.Orange, true)
		}
	}

	stats := w.CollisionStats()
	text := fmt.Sprintf("%s  FPS: %.1f\nbodies %d  sleeping %d  pairs %d\nindex %s  started %d  ended %d\n[space] pause [n] step [r] reload [i] index [t] tree [b] aabb [s] sleep [c] copy",
		v.sim.Scene.Name, ebiten.ActualFPS(), stats.TotalBodies, stats.SleepingBodies, stats.ActivePairs,
		w.SpatialIndexType(), v.started, v.ended)
	if v.status != "" {
		text += "\n" + v.status
	}
	ebitenutil.DebugPrintAt(screen, text, 10, 10)
}

func (v *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return viewWidth, viewHeight
}

func bodyColor(s body.Snapshot) color.Color {
	switch {
	case s.Static:
		return colornames.Gray
	case s.MovingStatic:
		return colornames.Gold
	case s.Sleeping:
		return colornames.Steelblue
	default:
		return colornames.Limegreen
	}
}

func drawBody(screen *ebiten.Image, s body.Snapshot, c color.Color) {
	if s.Kind == body.ShapeCircle {
		points := make([]cp.Vector, 0, circleSegments)
		for i := 0; i < circleSegments; i++ {
			t := 2 * math.Pi * float64(i) / circleSegments
			points = append(points, s.Center.Add(cp.Vector{X: math.Cos(t), Y: math.Sin(t)}.Mult(s.Radius)))
		}
		strokePolygon(screen, points, c)
		spoke := s.Center.Add(cp.ForAngle(s.Angle).Mult(s.Radius))
		vector.StrokeLine(screen, float32(s.Center.X), float32(s.Center.Y), float32(spoke.X), float32(spoke.Y), 1, c, true)
		return
	}
	strokePolygon(screen, s.Vertices, c)
}

func strokePolygon(screen *ebiten.Image, verts []cp.Vector, c color.Color) {
	for i := range verts {
		a, b := verts[i], verts[(i+1)%len(verts)]
		vector.StrokeLine(screen, float32(a.X), float32(a.Y), float32(b.X), float32(b.Y), 1.5, c, true)
	}
}

func strokeBB(screen *ebiten.Image, bb cp.BB, c color.Color) {
	vector.StrokeRect(screen, float32(bb.L), float32(bb.B), float32(bb.R-bb.L), float32(bb.T-bb.B), 1, c, false)
}
