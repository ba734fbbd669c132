// Package scene drives an engine from a small Lua script. Scripts place the
// listener, create hosts and emitters, and may define tick(t, dt) which runs
// once per simulation step to move things around and feed interaction.
//
//	listener(0, 0, 0)
//	local h = host(20, 0, 0)
//	local e = emitter(h, { kind = "continuous", density = 3, duration = { start = 60, min = 20, max = 200, mod = 80 } })
//	function tick(t, dt)
//	  move(h, 20 * math.cos(t), 0, 20 * math.sin(t))
//	  interact(e, (math.sin(t * 3) + 1) / 2)
//	end
package scene

import (
	"context"
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/cbegin/grainsynth-go/internal/modulation"
	"github.com/cbegin/grainsynth-go/internal/scheduler"
)

// EmitterSpec is an emitter as declared by a script.
type EmitterSpec struct {
	Kind    scheduler.Kind
	Source  string
	Effects string
	Params  scheduler.Params
}

// Target receives the calls a script makes.
type Target interface {
	SetListener(x, y, z float64)
	AddHost(x, y, z float64, dedicated bool) (int64, error)
	MoveHost(h int64, x, y, z float64) error
	AddEmitter(h int64, spec EmitterSpec) (int64, error)
	Interact(e int64, v float64) error
	Trigger(e int64) error
	SetPlaying(e int64, on bool) error
	FadeOut(e int64, seconds float64) error
}

// Script is a loaded scene.
type Script struct {
	L      *lua.LState
	target Target
	tick   *lua.LFunction
}

// Load runs src and keeps its tick function, if any.
func Load(ctx context.Context, src string, t Target) (*Script, error) {
	s := newScript(ctx, t)
	if err := s.L.DoString(src); err != nil {
		s.Close()
		return nil, fmt.Errorf("scene: %w", err)
	}
	s.bindTick()
	return s, nil
}

// LoadFile runs the script at path.
func LoadFile(ctx context.Context, path string, t Target) (*Script, error) {
	s := newScript(ctx, t)
	if err := s.L.DoFile(path); err != nil {
		s.Close()
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	s.bindTick()
	return s, nil
}

func newScript(ctx context.Context, t Target) *Script {
	L := lua.NewState()
	L.SetContext(ctx)
	s := &Script{L: L, target: t}
	for name, fn := range map[string]lua.LGFunction{
		"listener": s.luaListener,
		"host":     s.luaHost,
		"move":     s.luaMove,
		"emitter":  s.luaEmitter,
		"interact": s.luaInteract,
		"trigger":  s.luaTrigger,
		"play":     s.luaPlay,
		"stop":     s.luaStop,
		"fade":     s.luaFade,
	} {
		L.SetGlobal(name, L.NewFunction(fn))
	}
	return s
}

func (s *Script) bindTick() {
	if fn, ok := s.L.GetGlobal("tick").(*lua.LFunction); ok {
		s.tick = fn
	}
}

// HasTick reports whether the script defined tick.
func (s *Script) HasTick() bool { return s.tick != nil }

// Tick calls the script's tick(t, dt) with times in seconds.
func (s *Script) Tick(t, dt float64) error {
	if s.tick == nil {
		return nil
	}
	return s.L.CallByParam(lua.P{Fn: s.tick, NRet: 0, Protect: true}, lua.LNumber(t), lua.LNumber(dt))
}

func (s *Script) Close() {
	if s.L != nil {
		s.L.Close()
		s.L = nil
	}
}

func (s *Script) luaListener(L *lua.LState) int {
	s.target.SetListener(float64(L.CheckNumber(1)), float64(L.CheckNumber(2)), float64(L.CheckNumber(3)))
	return 0
}

// host(x, y, z [, dedicated]) -> handle
func (s *Script) luaHost(L *lua.LState) int {
	h, err := s.target.AddHost(float64(L.CheckNumber(1)), float64(L.CheckNumber(2)), float64(L.CheckNumber(3)), L.OptBool(4, false))
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	L.Push(lua.LNumber(h))
	return 1
}

func (s *Script) luaMove(L *lua.LState) int {
	s.check(L, s.target.MoveHost(int64(L.CheckNumber(1)), float64(L.CheckNumber(2)), float64(L.CheckNumber(3)), float64(L.CheckNumber(4))))
	return 0
}

// emitter(host, { kind=, source=, effects=, <param>= number | table }) -> handle
func (s *Script) luaEmitter(L *lua.LState) int {
	host := int64(L.CheckNumber(1))
	spec, err := parseEmitter(L.OptTable(2, L.NewTable()))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}
	e, err := s.target.AddEmitter(host, spec)
	if err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	L.Push(lua.LNumber(e))
	return 1
}

func (s *Script) luaInteract(L *lua.LState) int {
	s.check(L, s.target.Interact(int64(L.CheckNumber(1)), float64(L.CheckNumber(2))))
	return 0
}

func (s *Script) luaTrigger(L *lua.LState) int {
	s.check(L, s.target.Trigger(int64(L.CheckNumber(1))))
	return 0
}

func (s *Script) luaPlay(L *lua.LState) int {
	s.check(L, s.target.SetPlaying(int64(L.CheckNumber(1)), true))
	return 0
}

func (s *Script) luaStop(L *lua.LState) int {
	s.check(L, s.target.SetPlaying(int64(L.CheckNumber(1)), false))
	return 0
}

func (s *Script) luaFade(L *lua.LState) int {
	s.check(L, s.target.FadeOut(int64(L.CheckNumber(1)), float64(L.CheckNumber(2))))
	return 0
}

func (s *Script) check(L *lua.LState, err error) {
	if err != nil {
		L.RaiseError("%v", err)
	}
}

var errBadKind = errors.New(`kind must be "continuous" or "burst"`)

func parseEmitter(t *lua.LTable) (EmitterSpec, error) {
	spec := EmitterSpec{Kind: scheduler.Continuous, Params: scheduler.DefaultParams()}
	switch k := lua.LVAsString(t.RawGetString("kind")); k {
	case "", "continuous":
	case "burst":
		spec.Kind = scheduler.Burst
	default:
		return spec, fmt.Errorf("%w, got %q", errBadKind, k)
	}
	spec.Source = lua.LVAsString(t.RawGetString("source"))
	spec.Effects = lua.LVAsString(t.RawGetString("effects"))

	p := &spec.Params
	for _, f := range []struct {
		key string
		dst *modulation.Parameter
	}{
		{"playhead", &p.Playhead},
		{"density", &p.Density},
		{"duration", &p.Duration},
		{"transpose", &p.Transpose},
		{"volume", &p.Volume},
		{"burst", &p.BurstDuration},
	} {
		if err := parseParam(t.RawGetString(f.key), f.dst); err != nil {
			return spec, fmt.Errorf("%s: %w", f.key, err)
		}
	}
	return spec, nil
}

// parseParam applies a number (start and end) or a table of fields onto p.
// Fields not given keep p's values.
func parseParam(v lua.LValue, p *modulation.Parameter) error {
	switch v := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LNumber:
		p.Start = float64(v)
		p.End = float64(v)
		if p.Start < p.Min {
			p.Min = p.Start
		}
		if p.Start > p.Max {
			p.Max = p.Start
		}
		return nil
	case *lua.LTable:
		num := func(key string, dst *float64) {
			if n, ok := v.RawGetString(key).(lua.LNumber); ok {
				*dst = float64(n)
			}
		}
		hasEnd := v.RawGetString("end") != lua.LNil
		num("start", &p.Start)
		if !hasEnd {
			p.End = p.Start
		}
		num("end", &p.End)
		num("min", &p.Min)
		num("max", &p.Max)
		num("mod", &p.ModulationAmount)
		num("exp", &p.Exponent)
		num("noise", &p.NoiseAmount)
		num("rate", &p.NoiseRateHz)
		if lua.LVAsString(v.RawGetString("noise_mode")) == "periodic" {
			p.NoiseMode = modulation.NoisePeriodic
		}
		p.LockStart = lua.LVAsBool(v.RawGetString("lock_start"))
		p.LockEnd = lua.LVAsBool(v.RawGetString("lock_end"))
		p.LockNoiseAcrossGrain = lua.LVAsBool(v.RawGetString("lock_noise"))
		return nil
	}
	return fmt.Errorf("expected number or table, got %s", v.Type())
}
