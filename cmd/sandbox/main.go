package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/milk9111/rigid2d/scene"
	"github.com/milk9111/rigid2d/spatial"
)

func main() {
	sceneRef := flag.String("scene", "stack", "scene file path or sample name ("+strings.Join(scene.Samples(), ", ")+")")
	steps := flag.Int("steps", 600, "steps to run headless")
	dt := flag.Float64("dt", 1.0/60, "fixed step in seconds")
	index := flag.String("index", "", "override the spatial index (quadtree, dynamictree, sweepandprune)")
	view := flag.Bool("view", false, "open a window instead of running headless")
	watch := flag.Bool("watch", false, "reload the scene when its file changes (with -view)")
	statsEvery := flag.Int("stats", 60, "log stats every N headless steps (0 disables)")
	flag.Parse()

	load := func() (*scene.Simulation, error) {
		s, err := scene.Open(*sceneRef)
		if err != nil {
			return nil, err
		}
		if *index != "" {
			kind, err := spatial.ParseKind(*index)
			if err != nil {
				return nil, err
			}
			s.World.IndexKind = kind
		}
		return scene.Build(s)
	}

	sim, err := load()
	if err != nil {
		log.Fatal(err)
	}

	if !*view {
		if err := sim.Run(*steps, *dt, *statsEvery); err != nil {
			log.Fatal(err)
		}
		return
	}

	v := NewViewer(sim, *dt, load)
	if *watch {
		if _, err := os.Stat(*sceneRef); err != nil {
			log.Printf("sandbox: %s is a sample, nothing to watch", *sceneRef)
		} else {
			w, err := scene.NewWatcher(*sceneRef)
			if err != nil {
				log.Fatal(err)
			}
			defer w.Close()
			v.watch(w)
		}
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(viewWidth, viewHeight)
	ebiten.SetWindowTitle(fmt.Sprintf("rigid2d - %s", sim.Scene.Name))
	if err := ebiten.RunGame(v); err != nil {
		log.Fatal(err)
	}
}
