// Package grainsynth is a real-time granular synthesis engine. It cuts short
// windowed grains from loaded sources, runs them through per-emitter effect
// chains and plays them on a bounded pool of voices that follow moving
// hosts around a listener.
//
// A simulation goroutine calls Tick (or Run) to schedule and render grains;
// the audio device pulls samples from Mixer independently. Public methods
// are safe for concurrent use.
package grainsynth

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/cbegin/grainsynth-go/internal/arena"
	intaudio "github.com/cbegin/grainsynth-go/internal/audio"
	"github.com/cbegin/grainsynth-go/internal/effects"
	"github.com/cbegin/grainsynth-go/internal/grain"
	"github.com/cbegin/grainsynth-go/internal/mixer"
	"github.com/cbegin/grainsynth-go/internal/modulation"
	"github.com/cbegin/grainsynth-go/internal/monitor"
	"github.com/cbegin/grainsynth-go/internal/scheduler"
	"github.com/cbegin/grainsynth-go/internal/source"
	"github.com/cbegin/grainsynth-go/internal/voice"
)

var (
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	ErrUnknownSource     = errors.New("unknown source")
	ErrUnknownHost       = errors.New("unknown host")
	ErrUnknownEmitter    = errors.New("unknown emitter")
	ErrNoVoice           = errors.New("no pooled voice available")
)

// NoVoice is reported by HostVoice for hosts without a voice.
const NoVoice = voice.NoVoice

type (
	Vec3        = voice.Vec3
	Parameter   = modulation.Parameter
	NoiseMode   = modulation.NoiseMode
	Params      = scheduler.Params
	EmitterKind = scheduler.Kind
)

const (
	Continuous = scheduler.Continuous
	Burst      = scheduler.Burst

	NoiseUniform  = modulation.NoiseUniform
	NoisePeriodic = modulation.NoisePeriodic
)

// Fixed returns a parameter pinned to v.
func Fixed(v float64) Parameter { return modulation.Fixed(v) }

// Ranged returns an unmodulated parameter at v within [lo, hi].
func Ranged(v, lo, hi float64) Parameter { return modulation.Ranged(v, lo, hi) }

// DefaultParams returns the parameters of a gentle grain cloud.
func DefaultParams() Params { return scheduler.DefaultParams() }

// Handles are stable for the lifetime of the object they name and never
// resolve to a later object that reuses the slot.
type (
	SourceID  int64
	HostID    int64
	EmitterID int64
)

// HostConfig describes a scene object that carries emitters.
type HostConfig struct {
	Position Vec3
	// Dedicated reserves a voice for the host for its whole lifetime,
	// bypassing proximity allocation.
	Dedicated bool
}

// EmitterConfig describes a grain generator on a host.
type EmitterConfig struct {
	Host   HostID
	Source SourceID
	Kind   EmitterKind
	Params Params
	// Effects is a chain in effects text form, e.g. "flange 5,3; bitcrush 6".
	Effects string
	// Playing starts a continuous emitter immediately.
	Playing bool
}

type hostState struct {
	voice.Host
	dedicatedVoice int
}

type emitterState struct {
	host        arena.Handle
	source      arena.Handle
	sched       scheduler.State
	params      scheduler.Params
	noises      *scheduler.Noises
	chain       *effects.Chain
	tail        int
	playing     bool
	interaction float64
	fadeStart   int64
	fadeEnd     int64
}

// Engine is the orchestrator. It owns every registry and runs the
// per-tick pipeline allocation, scheduling, render and publish.
type Engine struct {
	mu     sync.Mutex
	cfg    Config
	logger *slog.Logger

	sources  *arena.Arena[*source.Source]
	hosts    *arena.Arena[hostState]
	emitters *arena.Arena[emitterState]
	listener Vec3
	nextSeed int64

	voices   []*voice.Voice
	alloc    *voice.Allocator
	mixer    *mixer.Mixer
	window   []float64
	capacity int
	scratch  sync.Pool

	latency  int64
	queue    int64
	discard  int64
	debounce int64

	hostBuf []*voice.Host
	pending scheduler.Result
	jobs    []renderJob

	analyzer  *monitor.Analyzer
	eventCh   chan GrainEvent
	eventChMu sync.Mutex

	output intaudio.Output
	stats  Stats
}

// NewEngine builds an engine with a fixed voice pool. Options are applied
// on top of cfg.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	capacity := int(cfg.samples(cfg.SlotCapacity))
	if capacity < 1 {
		capacity = 1
	}

	voices := make([]*voice.Voice, cfg.Voices)
	for i := range voices {
		voices[i] = voice.New(i, cfg.SlotsPerVoice, capacity)
	}
	mixCfg := mixer.Config{
		Channels:    cfg.Channels,
		BlockFrames: cfg.BlockFrames,
		MasterGain:  cfg.MasterGain,
	}
	if cfg.Limiter {
		mixCfg.Limiter = effects.NewLimiter(cfg.SampleRate, -1, 20, 1, 80)
	}
	analyzer, err := monitor.NewAnalyzer(cfg.SampleRate, monitor.DefaultSize)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		logger:   cfg.Logger,
		sources:  arena.New[*source.Source](4),
		hosts:    arena.New[hostState](16),
		emitters: arena.New[emitterState](16),
		voices:   voices,
		mixer:    mixer.New(voices, mixCfg),
		window:   grain.HannTable(grain.WindowSize),
		capacity: capacity,
		analyzer: analyzer,
	}
	e.alloc = voice.NewAllocator(e.allocConfig(), voices, cfg.Logger)
	e.scratch.New = func() any {
		buf := make([]float64, capacity)
		return &buf
	}
	e.latency = cfg.samples(cfg.SchedulingLatency)
	e.queue = cfg.samples(cfg.QueueWindow)
	e.discard = cfg.samples(cfg.DiscardThreshold)
	e.debounce = cfg.samples(cfg.BurstDebounce)
	return e, nil
}

func (e *Engine) allocConfig() voice.Config {
	return voice.Config{
		ListenerRadius:  e.cfg.ListenerRadius,
		AttachRadius:    e.cfg.AttachRadius,
		MaxAdmissions:   e.cfg.MaxAdmissionsPerTick,
		Linger:          e.cfg.samples(e.cfg.VoiceLinger),
		RolloffExponent: e.cfg.RolloffExponent,
	}
}

// Config returns the normalised configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// LoadSource registers mono material recorded at sampleRate. The samples are
// copied.
func (e *Engine) LoadSource(name string, samples []float64, sampleRate int) (SourceID, error) {
	src, err := source.New(name, samples, sampleRate)
	if err != nil {
		return 0, err
	}
	return e.addSource(src), nil
}

// LoadSourceWAV decodes a PCM WAV stream, folding it to mono.
func (e *Engine) LoadSourceWAV(name string, r io.ReadSeeker) (SourceID, error) {
	src, err := source.DecodeWAV(name, r)
	if err != nil {
		return 0, err
	}
	return e.addSource(src), nil
}

func (e *Engine) addSource(src *source.Source) SourceID {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.sources.Insert(src)
	e.logger.Debug("source loaded", "name", src.Name, "seconds", src.Seconds(), "rate", src.SampleRate)
	return SourceID(h)
}

// RegisterHost adds a host. A dedicated host fails with ErrNoVoice when the
// pool is fully in use.
func (e *Engine) RegisterHost(cfg HostConfig) (HostID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	hs := hostState{
		Host:           voice.Host{Position: cfg.Position, Voice: NoVoice, Dedicated: cfg.Dedicated},
		dedicatedVoice: NoVoice,
	}
	if cfg.Dedicated {
		i, ok := e.alloc.Reserve(e.mixer.Clock())
		if !ok {
			return 0, ErrNoVoice
		}
		hs.Voice = i
		hs.dedicatedVoice = i
	}
	return HostID(e.hosts.Insert(hs)), nil
}

// RemoveHost removes a host and its emitters. Grains already queued play
// out.
func (e *Engine) RemoveHost(id HostID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.hosts.Get(arena.Handle(id))
	if !ok {
		return ErrUnknownHost
	}
	if h.dedicatedVoice != NoVoice {
		e.alloc.Unreserve(h.dedicatedVoice)
	}
	var orphans []arena.Handle
	e.emitters.Each(func(eh arena.Handle, em *emitterState) bool {
		if em.host == arena.Handle(id) {
			orphans = append(orphans, eh)
		}
		return true
	})
	for _, eh := range orphans {
		e.emitters.Remove(eh)
	}
	e.hosts.Remove(arena.Handle(id))
	return nil
}

func (e *Engine) SetHostPosition(id HostID, pos Vec3) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.hosts.Get(arena.Handle(id))
	if !ok {
		return ErrUnknownHost
	}
	h.Position = pos
	return nil
}

// HostVoice returns the voice index the host is bound to, or NoVoice.
func (e *Engine) HostVoice(id HostID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.hosts.Get(arena.Handle(id))
	if !ok {
		return NoVoice
	}
	return h.Voice
}

func (e *Engine) SetListener(pos Vec3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = pos
}

// RegisterEmitter adds an emitter to a host.
func (e *Engine) RegisterEmitter(cfg EmitterConfig) (EmitterID, error) {
	chain, err := effects.ParseChain(cfg.Effects, e.cfg.SampleRate)
	if err != nil {
		return 0, fmt.Errorf("emitter effects: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.hosts.Get(arena.Handle(cfg.Host)); !ok {
		return 0, ErrUnknownHost
	}
	if _, ok := e.sources.Get(arena.Handle(cfg.Source)); !ok {
		return 0, ErrUnknownSource
	}
	e.nextSeed++
	em := emitterState{
		host:    arena.Handle(cfg.Host),
		source:  arena.Handle(cfg.Source),
		sched:   scheduler.NewState(cfg.Kind),
		params:  cfg.Params,
		noises:  scheduler.NewNoises(cfg.Params, e.cfg.Seed*7919+e.nextSeed*16),
		chain:   chain,
		tail:    chain.MaxTail(),
		playing: cfg.Playing && cfg.Kind == Continuous,
	}
	return EmitterID(e.emitters.Insert(em)), nil
}

// RemoveEmitter stops scheduling for the emitter. Grains already queued play
// out.
func (e *Engine) RemoveEmitter(id EmitterID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.emitters.Remove(arena.Handle(id)) {
		return ErrUnknownEmitter
	}
	return nil
}

func (e *Engine) emitter(id EmitterID) (*emitterState, error) {
	em, ok := e.emitters.Get(arena.Handle(id))
	if !ok {
		return nil, ErrUnknownEmitter
	}
	return em, nil
}

// SetParams replaces the emitter's parameters. Noise sequences continue.
func (e *Engine) SetParams(id EmitterID, p Params) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	em, err := e.emitter(id)
	if err != nil {
		return err
	}
	em.params = p
	em.noises.Update(p)
	return nil
}

// SetInteraction feeds the emitter's modulation input, clamped to [0, 1]
// when evaluated.
func (e *Engine) SetInteraction(id EmitterID, v float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	em, err := e.emitter(id)
	if err != nil {
		return err
	}
	em.interaction = v
	return nil
}

// Trigger fires a burst emitter on the next tick. Triggers inside the
// debounce interval are ignored. Continuous emitters start playing.
func (e *Engine) Trigger(id EmitterID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	em, err := e.emitter(id)
	if err != nil {
		return err
	}
	e.trigger(em)
	return nil
}

func (e *Engine) trigger(em *emitterState) {
	if em.sched.Kind == Continuous {
		e.start(em)
		return
	}
	if !em.sched.Arm(e.mixer.Clock(), e.debounce) {
		e.stats.TriggersDebounced++
		return
	}
	em.playing = true
}

func (e *Engine) start(em *emitterState) {
	if em.playing {
		return
	}
	em.sched.Reset()
	em.noises.Release()
	em.playing = true
	em.fadeStart, em.fadeEnd = 0, 0
}

// SetPlaying starts or stops an emitter. Starting a burst emitter triggers
// it.
func (e *Engine) SetPlaying(id EmitterID, on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	em, err := e.emitter(id)
	if err != nil {
		return err
	}
	switch {
	case on:
		e.trigger(em)
	default:
		em.playing = false
	}
	return nil
}
