package main

import (
	"fmt"
	"time"

	"github.com/cbegin/grainsynth-go"
	"github.com/cbegin/grainsynth-go/internal/scene"
)

// target adapts the engine to the calls a scene script makes.
type target struct {
	engine   *grainsynth.Engine
	sources  map[string]grainsynth.SourceID
	fallback grainsynth.SourceID
	effects  string
}

func (t *target) SetListener(x, y, z float64) {
	t.engine.SetListener(grainsynth.Vec3{X: x, Y: y, Z: z})
}

func (t *target) AddHost(x, y, z float64, dedicated bool) (int64, error) {
	h, err := t.engine.RegisterHost(grainsynth.HostConfig{
		Position:  grainsynth.Vec3{X: x, Y: y, Z: z},
		Dedicated: dedicated,
	})
	return int64(h), err
}

func (t *target) MoveHost(h int64, x, y, z float64) error {
	return t.engine.SetHostPosition(grainsynth.HostID(h), grainsynth.Vec3{X: x, Y: y, Z: z})
}

func (t *target) AddEmitter(h int64, spec scene.EmitterSpec) (int64, error) {
	src := t.fallback
	if spec.Source != "" {
		id, ok := t.sources[spec.Source]
		if !ok {
			return 0, fmt.Errorf("source %q not loaded", spec.Source)
		}
		src = id
	}
	fx := spec.Effects
	if fx == "" {
		fx = t.effects
	}
	e, err := t.engine.RegisterEmitter(grainsynth.EmitterConfig{
		Host:    grainsynth.HostID(h),
		Source:  src,
		Kind:    spec.Kind,
		Params:  spec.Params,
		Effects: fx,
		Playing: spec.Kind == grainsynth.Continuous,
	})
	return int64(e), err
}

func (t *target) Interact(e int64, v float64) error {
	return t.engine.SetInteraction(grainsynth.EmitterID(e), v)
}

func (t *target) Trigger(e int64) error {
	return t.engine.Trigger(grainsynth.EmitterID(e))
}

func (t *target) SetPlaying(e int64, on bool) error {
	return t.engine.SetPlaying(grainsynth.EmitterID(e), on)
}

func (t *target) FadeOut(e int64, seconds float64) error {
	return t.engine.FadeOut(grainsynth.EmitterID(e), time.Duration(seconds*float64(time.Second)))
}
