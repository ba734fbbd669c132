package grainsynth

import (
	"log/slog"
	"runtime"
	"time"

	intaudio "github.com/cbegin/grainsynth-go/internal/audio"
)

// Backend selects the sound device library used by Start.
type Backend = intaudio.Backend

const (
	BackendEbiten = intaudio.BackendEbiten
	BackendOto    = intaudio.BackendOto
)

// Config holds the static engine settings. Durations are converted to
// samples once, at NewEngine.
type Config struct {
	SampleRate int
	Channels   int

	Voices        int
	SlotsPerVoice int
	// SlotCapacity bounds one grain including its effect tail.
	SlotCapacity time.Duration

	// QueueWindow is how far ahead of the lookahead point grains are
	// scheduled each tick. It must cover the tick interval.
	QueueWindow time.Duration
	// SchedulingLatency is the safety margin between the current clock and
	// the earliest start a new grain may get.
	SchedulingLatency time.Duration
	// DiscardThreshold is how far behind the clock a grain may start and
	// still be rendered.
	DiscardThreshold time.Duration

	ListenerRadius       float64
	AttachRadius         float64
	RolloffExponent      float64
	MaxAdmissionsPerTick int // 0 = one per unmet host
	VoiceLinger          time.Duration

	SilenceThreshold float64
	BurstDebounce    time.Duration
	MaxGrainsPerTick int

	RenderWorkers int
	MasterGain    float64
	Limiter       bool
	BlockFrames   int

	Backend Backend
	Seed    int64
	Logger  *slog.Logger
}

// DefaultConfig returns settings for a 48 kHz stereo engine.
func DefaultConfig() Config {
	return Config{
		SampleRate:        48000,
		Channels:          2,
		Voices:            8,
		SlotsPerVoice:     16,
		SlotCapacity:      time.Second,
		QueueWindow:       100 * time.Millisecond,
		SchedulingLatency: 20 * time.Millisecond,
		DiscardThreshold:  10 * time.Millisecond,
		ListenerRadius:    50,
		AttachRadius:      5,
		RolloffExponent:   1,
		SilenceThreshold:  0.005,
		BurstDebounce:     100 * time.Millisecond,
		MaxGrainsPerTick:  50,
		RenderWorkers:     runtime.GOMAXPROCS(0),
		MasterGain:        1,
		Limiter:           true,
		Backend:           BackendEbiten,
	}
}

// normalize fills unset fields from DefaultConfig and clamps the rest.
// Only the sample rate is rejected outright.
func (c *Config) normalize() error {
	if c.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	def := DefaultConfig()
	if c.Channels < 1 {
		c.Channels = def.Channels
	}
	if c.Voices < 1 {
		c.Voices = def.Voices
	}
	if c.SlotsPerVoice < 1 {
		c.SlotsPerVoice = def.SlotsPerVoice
	}
	if c.SlotCapacity <= 0 {
		c.SlotCapacity = def.SlotCapacity
	}
	if c.QueueWindow <= 0 {
		c.QueueWindow = def.QueueWindow
	}
	if c.SchedulingLatency < 0 {
		c.SchedulingLatency = 0
	}
	if c.DiscardThreshold < 0 {
		c.DiscardThreshold = 0
	}
	if c.ListenerRadius <= 0 {
		c.ListenerRadius = def.ListenerRadius
	}
	if c.AttachRadius < 0 {
		c.AttachRadius = 0
	}
	if c.RolloffExponent <= 0 {
		c.RolloffExponent = def.RolloffExponent
	}
	if c.MaxAdmissionsPerTick < 0 {
		c.MaxAdmissionsPerTick = 0
	}
	if c.VoiceLinger < 0 {
		c.VoiceLinger = 0
	}
	if c.SilenceThreshold < 0 {
		c.SilenceThreshold = 0
	}
	if c.BurstDebounce < 0 {
		c.BurstDebounce = 0
	}
	if c.MaxGrainsPerTick < 1 {
		c.MaxGrainsPerTick = def.MaxGrainsPerTick
	}
	if c.RenderWorkers < 1 {
		c.RenderWorkers = def.RenderWorkers
	}
	if c.MasterGain < 0 {
		c.MasterGain = 0
	}
	if c.Backend == "" {
		c.Backend = def.Backend
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// samples converts d into frames at the configured rate.
func (c *Config) samples(d time.Duration) int64 {
	return int64(d) * int64(c.SampleRate) / int64(time.Second)
}

// Option adjusts a Config before the engine is built.
type Option func(*Config)

func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

func WithBackend(b Backend) Option {
	return func(c *Config) {
		c.Backend = b
	}
}

// WithRenderWorkers bounds how many grains render in parallel.
func WithRenderWorkers(n int) Option {
	return func(c *Config) {
		c.RenderWorkers = n
	}
}

// WithSeed makes noise sequences reproducible across runs.
func WithSeed(seed int64) Option {
	return func(c *Config) {
		c.Seed = seed
	}
}

func WithMasterGain(g float64) Option {
	return func(c *Config) {
		c.MasterGain = g
	}
}
