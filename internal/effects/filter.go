package effects

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// FilterMode selects the biquad response.
type FilterMode int

const (
	FilterLowpass FilterMode = iota
	FilterHighpass
	FilterBandpass
)

// Filter is an RBJ biquad. A fresh section is built per grain so no state
// leaks between grains.
type Filter struct {
	coeffs biquad.Coefficients
}

// NewFilter creates a biquad filter effect.
// mode: 0=lowpass, 1=highpass, 2=bandpass
// cutoffHz: corner or centre frequency
// q: resonance (<= 0 means 0.707)
func NewFilter(sampleRate int, mode FilterMode, cutoffHz, q float64) *Filter {
	sr := float64(sampleRate)
	cutoffHz = clamp(cutoffHz, 10, sr*0.49)
	if !(q > 0) || math.IsInf(q, 0) {
		q = 0.707
	}
	var c biquad.Coefficients
	switch mode {
	case FilterHighpass:
		c = design.Highpass(cutoffHz, q, sr)
	case FilterBandpass:
		c = design.Bandpass(cutoffHz, q, sr)
	default:
		c = design.Lowpass(cutoffHz, q, sr)
	}
	return &Filter{coeffs: c}
}

func (f *Filter) Apply(buf, _ []float64) {
	biquad.NewSection(f.coeffs).ProcessBlock(buf)
}

func (f *Filter) DelayBased() bool { return false }
func (f *Filter) TailSamples() int { return 0 }
