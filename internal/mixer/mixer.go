// Package mixer sums published playback slots into the device output. It is
// driven from the audio callback and never allocates, locks or blocks.
package mixer

import (
	"math"
	"sync/atomic"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/cbegin/grainsynth-go/internal/effects"
	"github.com/cbegin/grainsynth-go/internal/voice"
)

// DefaultBlockFrames is the bus size used when Config leaves it unset.
const DefaultBlockFrames = 1024

type Config struct {
	Channels    int
	BlockFrames int
	MasterGain  float64
	// Limiter, when set, runs on the mono bus after the master gain.
	Limiter *effects.Limiter
	// Tap is called with every finished output buffer on the audio
	// goroutine. Keep it short.
	Tap func([]float32)
}

// Mixer owns the global sample clock. Every frame it produces advances the
// clock by one, whether or not anything is playing.
type Mixer struct {
	voices   []*voice.Voice
	channels int
	limiter  *effects.Limiter
	tap      func([]float32)
	bus      []float64

	clock atomic.Int64
	gain  atomic.Uint64
	peak  atomic.Uint64
}

// New returns a mixer reading the slots of voices.
func New(voices []*voice.Voice, cfg Config) *Mixer {
	if cfg.Channels < 1 {
		cfg.Channels = 2
	}
	if cfg.BlockFrames < 1 {
		cfg.BlockFrames = DefaultBlockFrames
	}
	m := &Mixer{
		voices:   voices,
		channels: cfg.Channels,
		limiter:  cfg.Limiter,
		tap:      cfg.Tap,
		bus:      make([]float64, cfg.BlockFrames),
	}
	m.SetMasterGain(cfg.MasterGain)
	return m
}

// Channels returns the interleaved channel count of Process output.
func (m *Mixer) Channels() int { return m.channels }

// Clock returns the number of frames produced so far.
func (m *Mixer) Clock() int64 { return m.clock.Load() }

// SetMasterGain sets the output scalar. Negative values clamp to 0.
func (m *Mixer) SetMasterGain(g float64) {
	if g < 0 || math.IsNaN(g) {
		g = 0
	}
	m.gain.Store(math.Float64bits(g))
}

func (m *Mixer) MasterGain() float64 { return math.Float64frombits(m.gain.Load()) }

// Peak returns the largest absolute bus sample of the last Process call.
func (m *Mixer) Peak() float64 { return math.Float64frombits(m.peak.Load()) }

// Process fills dst with interleaved frames. Each playing slot whose start
// has been reached adds its next sample to every channel of the frame.
func (m *Mixer) Process(dst []float32) {
	ch := m.channels
	frames := len(dst) / ch
	gain := m.MasterGain()
	var peak float64

	for done := 0; done < frames; {
		n := frames - done
		if n > len(m.bus) {
			n = len(m.bus)
		}
		bus := m.bus[:n]
		clear(bus)

		clock := m.clock.Load()
		for _, v := range m.voices {
			for i := range v.Slots {
				v.Slots[i].Mix(bus, clock)
			}
		}
		if gain != 1 {
			vecmath.ScaleBlockInPlace(bus, gain)
		}
		if m.limiter != nil {
			m.limiter.Process(bus)
		}
		if p := vecmath.MaxAbs(bus); p > peak {
			peak = p
		}

		out := dst[done*ch : (done+n)*ch]
		for f, s := range bus {
			v := float32(s)
			for c := 0; c < ch; c++ {
				out[f*ch+c] = v
			}
		}
		m.clock.Add(int64(n))
		done += n
	}
	clear(dst[frames*ch:])
	m.peak.Store(math.Float64bits(peak))

	if m.tap != nil {
		m.tap(dst)
	}
}
