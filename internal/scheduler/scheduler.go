// Package scheduler turns emitter parameters into grain descriptors placed
// on the global sample clock. Continuous emitters keep a rolling cadence
// across ticks; burst emitters lay out one fixed-length run per trigger.
package scheduler

import (
	"math"

	"github.com/cbegin/grainsynth-go/internal/arena"
	"github.com/cbegin/grainsynth-go/internal/grain"
	"github.com/cbegin/grainsynth-go/internal/modulation"
)

// Kind selects the scheduling variant of an emitter.
type Kind int

const (
	Continuous Kind = iota
	Burst
)

func (k Kind) String() string {
	if k == Burst {
		return "burst"
	}
	return "continuous"
}

// State is the per-emitter scheduling state. Continuous emitters use
// Started, LastSampleIndex and PreviousDuration; burst emitters only
// remember the clock of their last accepted trigger.
type State struct {
	Kind Kind
	// Started is set once a continuous grain has been placed. Sample 0 is a
	// valid LastSampleIndex.
	Started          bool
	LastSampleIndex  int64
	PreviousDuration float64 // samples
	LastTrigger      int64
}

// NewState returns an idle state of the given kind.
func NewState(k Kind) State {
	return State{Kind: k, LastTrigger: -1}
}

// Reset forgets the cadence so the next schedule starts at the lookahead.
func (s *State) Reset() {
	s.Started = false
	s.LastSampleIndex = 0
	s.PreviousDuration = 0
}

// Arm reports whether a trigger at clock passes the debounce interval and
// records it if so.
func (s *State) Arm(clock, debounce int64) bool {
	if s.LastTrigger >= 0 && clock-s.LastTrigger < debounce {
		return false
	}
	s.LastTrigger = clock
	return true
}

// Params are the modulated properties of an emitter.
//
//	Playhead       normalised read position, 0..1
//	Density        grains overlapping one grain duration
//	Duration       grain length in milliseconds
//	Transpose      pitch offset in octaves
//	Volume         linear gain
//	BurstDuration  total burst length in milliseconds (burst only)
type Params struct {
	Playhead      modulation.Parameter
	Density       modulation.Parameter
	Duration      modulation.Parameter
	Transpose     modulation.Parameter
	Volume        modulation.Parameter
	BurstDuration modulation.Parameter
}

// DefaultParams returns a gentle cloud: 80 ms grains, density 2, unit pitch.
func DefaultParams() Params {
	return Params{
		Playhead:      modulation.Ranged(0, 0, 1),
		Density:       modulation.Ranged(2, 0.1, 50),
		Duration:      modulation.Ranged(80, 1, 1000),
		Transpose:     modulation.Ranged(0, -4, 4),
		Volume:        modulation.Ranged(0.5, 0, 1),
		BurstDuration: modulation.Ranged(400, 0, 10000),
	}
}

// Noises holds one noise source per parameter.
type Noises struct {
	playhead, density, duration, transpose, volume, burst *modulation.Noise
}

// NewNoises seeds a noise source for every parameter of p.
func NewNoises(p Params, seed int64) *Noises {
	return &Noises{
		playhead:  modulation.NewNoise(p.Playhead, seed),
		density:   modulation.NewNoise(p.Density, seed+1),
		duration:  modulation.NewNoise(p.Duration, seed+2),
		transpose: modulation.NewNoise(p.Transpose, seed+3),
		volume:    modulation.NewNoise(p.Volume, seed+4),
		burst:     modulation.NewNoise(p.BurstDuration, seed+5),
	}
}

// Update applies changed noise modes and rates without reseeding.
func (n *Noises) Update(p Params) {
	n.playhead.Set(p.Playhead)
	n.density.Set(p.Density)
	n.duration.Set(p.Duration)
	n.transpose.Set(p.Transpose)
	n.volume.Set(p.Volume)
	n.burst.Set(p.BurstDuration)
}

// Release drops every held noise value.
func (n *Noises) Release() {
	for _, s := range []*modulation.Noise{n.playhead, n.density, n.duration, n.transpose, n.volume, n.burst} {
		s.Release()
	}
}

// Input is everything the scheduler reads from the world for one emitter.
type Input struct {
	SampleRate       float64 // engine rate
	SourceRate       float64 // rate the source was recorded at
	SourceLen        int
	Source           arena.Handle
	Emitter          arena.Handle
	Voice            int
	Lookahead        int64 // first sample the next grain may start on
	Window           int64 // queue window in samples
	MaxGrains        int
	SilenceThreshold float64
	Attenuation      float64 // distance attenuation, 0..1
	FadeStart        int64
	FadeEnd          int64 // fade disabled unless FadeEnd > FadeStart
	Tail             int   // largest delay-based tail in the chain
	Capacity         int   // slot buffer capacity in samples
	Interaction      float64
}

// Result is the outcome of one scheduling pass.
type Result struct {
	Grains []grain.Descriptor
	// CapHit is set when the pass stopped at MaxGrains instead of at its
	// natural bound.
	CapHit bool
}

// FadeGain returns the fade envelope at sample. It ramps from 1 at
// FadeStart to 0 at FadeEnd.
func (in Input) FadeGain(sample int64) float64 {
	if in.FadeEnd <= in.FadeStart {
		return 1
	}
	switch {
	case sample <= in.FadeStart:
		return 1
	case sample >= in.FadeEnd:
		return 0
	}
	return 1 - float64(sample-in.FadeStart)/float64(in.FadeEnd-in.FadeStart)
}

func (in Input) msToSamples() float64 { return in.SampleRate / 1000 }

// pitchRatio converts octaves into a read step, corrected for the source
// recording rate.
func (in Input) pitchRatio(transpose float64) float64 {
	ratio := math.Exp2(clamp(transpose, -4, 4))
	if in.SourceRate > 0 && in.SampleRate > 0 {
		ratio *= in.SourceRate / in.SampleRate
	}
	return ratio
}

// fit clamps a duration and tail into the slot capacity.
func (in Input) fit(duration float64) (int, int) {
	d := int(math.Round(duration))
	if d < 1 {
		d = 1
	}
	capacity := in.Capacity
	if capacity <= 0 {
		capacity = int(in.SampleRate)
	}
	if d > capacity {
		d = capacity
	}
	tail := in.Tail
	if tail < 0 {
		tail = 0
	}
	if d+tail > capacity {
		tail = capacity - d
	}
	return d, tail
}

func (in Input) descriptor(start int64, playhead, duration, transpose, volume float64) grain.Descriptor {
	d, tail := in.fit(duration)
	pitch := in.pitchRatio(transpose)
	return grain.Descriptor{
		Source:          in.Source,
		Emitter:         in.Emitter,
		Voice:           in.Voice,
		PlayheadNorm:    playhead,
		DurationSamples: d,
		PitchRatio:      pitch,
		Volume:          volume,
		StartSample:     start,
		TailSamples:     tail,
		PingPong:        grain.NeedsPingPong(playhead, d, pitch, in.SourceLen),
	}
}

func validOffset(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
