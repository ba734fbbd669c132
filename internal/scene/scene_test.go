package scene

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cbegin/grainsynth-go/internal/modulation"
	"github.com/cbegin/grainsynth-go/internal/scheduler"
)

type fakeTarget struct {
	listener [3]float64
	hosts    [][3]float64
	emitters []EmitterSpec
	calls    []string
}

func (f *fakeTarget) SetListener(x, y, z float64) { f.listener = [3]float64{x, y, z} }

func (f *fakeTarget) AddHost(x, y, z float64, dedicated bool) (int64, error) {
	f.hosts = append(f.hosts, [3]float64{x, y, z})
	if dedicated {
		f.calls = append(f.calls, "dedicated")
	}
	return int64(len(f.hosts) - 1), nil
}

func (f *fakeTarget) MoveHost(h int64, x, y, z float64) error {
	if h < 0 || int(h) >= len(f.hosts) {
		return errors.New("no such host")
	}
	f.hosts[h] = [3]float64{x, y, z}
	return nil
}

func (f *fakeTarget) AddEmitter(h int64, spec EmitterSpec) (int64, error) {
	f.emitters = append(f.emitters, spec)
	return int64(len(f.emitters) - 1), nil
}

func (f *fakeTarget) Interact(e int64, v float64) error {
	f.calls = append(f.calls, "interact")
	return nil
}

func (f *fakeTarget) Trigger(e int64) error {
	f.calls = append(f.calls, "trigger")
	return nil
}

func (f *fakeTarget) SetPlaying(e int64, on bool) error {
	if on {
		f.calls = append(f.calls, "play")
	} else {
		f.calls = append(f.calls, "stop")
	}
	return nil
}

func (f *fakeTarget) FadeOut(e int64, seconds float64) error {
	f.calls = append(f.calls, "fade")
	return nil
}

const orbit = `
listener(1, 2, 3)
local h = host(10, 0, 0)
local c = emitter(h, {
  density = 3,
  duration = { start = 60, min = 20, max = 200, mod = 80, noise = 0.1, noise_mode = "periodic", rate = 4 },
  effects = "flange 5,3",
})
local b = emitter(h, { kind = "burst", volume = { start = 1, ["end"] = 0, lock_end = true }, burst = 250 })
function tick(t, dt)
  move(h, 10 + t, 0, 0)
  interact(c, 0.5)
  if t >= 1 then trigger(b) end
end
`

func TestLoadBuildsScene(t *testing.T) {
	f := &fakeTarget{}
	s, err := Load(context.Background(), orbit, f)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if f.listener != [3]float64{1, 2, 3} {
		t.Fatalf("listener = %v", f.listener)
	}
	if len(f.emitters) != 2 {
		t.Fatalf("%d emitters, want 2", len(f.emitters))
	}
	c, b := f.emitters[0], f.emitters[1]
	if c.Kind != scheduler.Continuous || c.Effects != "flange 5,3" {
		t.Fatalf("continuous emitter = %+v", c)
	}
	if c.Params.Density.Start != 3 {
		t.Fatalf("density = %v", c.Params.Density.Start)
	}
	d := c.Params.Duration
	if d.Start != 60 || d.End != 60 || d.Min != 20 || d.Max != 200 || d.ModulationAmount != 80 || d.NoiseMode != modulation.NoisePeriodic || d.NoiseRateHz != 4 {
		t.Fatalf("duration = %+v", d)
	}
	if b.Kind != scheduler.Burst || b.Params.Volume.End != 0 || !b.Params.Volume.LockEnd {
		t.Fatalf("burst emitter = %+v", b)
	}
	if b.Params.BurstDuration.Start != 250 {
		t.Fatalf("burst duration = %+v", b.Params.BurstDuration)
	}
}

func TestTickRunsScript(t *testing.T) {
	f := &fakeTarget{}
	s, err := Load(context.Background(), orbit, f)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if !s.HasTick() {
		t.Fatal("tick not found")
	}
	if err := s.Tick(0.5, 0.5); err != nil {
		t.Fatal(err)
	}
	if err := s.Tick(1.5, 1); err != nil {
		t.Fatal(err)
	}
	if f.hosts[0][0] != 11.5 {
		t.Fatalf("host x = %v, want 11.5", f.hosts[0][0])
	}
	if got := strings.Join(f.calls, ","); got != "interact,interact,trigger" {
		t.Fatalf("calls = %s", got)
	}
}

func TestTargetErrorsSurface(t *testing.T) {
	s, err := Load(context.Background(), `function tick() move(42, 0, 0, 0) end`, &fakeTarget{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Tick(0, 0); err == nil || !strings.Contains(err.Error(), "no such host") {
		t.Fatalf("err = %v", err)
	}
}

func TestBadEmitterKind(t *testing.T) {
	_, err := Load(context.Background(), `emitter(host(0,0,0), { kind = "drone" })`, &fakeTarget{})
	if err == nil || !strings.Contains(err.Error(), "kind") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.lua")
	if err := os.WriteFile(path, []byte(`local h = host(0, 0, 0, true)`), 0o644); err != nil {
		t.Fatal(err)
	}
	f := &fakeTarget{}
	s, err := LoadFile(context.Background(), path, f)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.HasTick() || len(f.hosts) != 1 || f.calls[0] != "dedicated" {
		t.Fatalf("unexpected state: %+v", f)
	}
}
