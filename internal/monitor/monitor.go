// Package monitor summarises rendered grains for visualisation: level,
// spectral centroid and the strongest frequency.
package monitor

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/window"
	algofft "github.com/cwbudde/algo-fft"
	vecmath "github.com/cwbudde/algo-vecmath"
)

// DefaultSize is the analysis frame length.
const DefaultSize = 1024

// Summary describes one grain.
type Summary struct {
	Peak     float64
	RMS      float64
	Centroid float64 // Hz
	PeakHz   float64
}

// Analyzer reuses its FFT plan and buffers between calls. It is not safe for
// concurrent use.
type Analyzer struct {
	sampleRate float64
	plan       *algofft.Plan[complex128]
	win        []float64
	in, out    []complex128
	re, im     []float64
	mag        []float64
}

// NewAnalyzer prepares a size-point analyzer. size must be a power of two.
func NewAnalyzer(sampleRate, size int) (*Analyzer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("monitor: sample rate must be positive, got %d", sampleRate)
	}
	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("monitor: fft plan: %w", err)
	}
	bins := size/2 + 1
	return &Analyzer{
		sampleRate: float64(sampleRate),
		plan:       plan,
		win:        window.Generate(window.TypeHann, size, window.WithPeriodic()),
		in:         make([]complex128, size),
		out:        make([]complex128, size),
		re:         make([]float64, bins),
		im:         make([]float64, bins),
		mag:        make([]float64, bins),
	}, nil
}

// Analyze summarises buf. Only the first frame of a long grain goes through
// the FFT; level statistics cover the whole buffer.
func (a *Analyzer) Analyze(buf []float64) (Summary, error) {
	var s Summary
	if len(buf) == 0 {
		return s, nil
	}
	s.Peak = vecmath.MaxAbs(buf)
	s.RMS = math.Sqrt(vecmath.DotProduct(buf, buf) / float64(len(buf)))
	if s.Peak == 0 {
		return s, nil
	}

	for i := range a.in {
		var v float64
		if i < len(buf) {
			v = buf[i] * a.win[i]
		}
		a.in[i] = complex(v, 0)
	}
	if err := a.plan.Forward(a.out, a.in); err != nil {
		return s, fmt.Errorf("monitor: fft: %w", err)
	}
	for k := range a.mag {
		a.re[k] = real(a.out[k])
		a.im[k] = imag(a.out[k])
	}
	vecmath.Magnitude(a.mag, a.re, a.im)

	binHz := a.sampleRate / float64(len(a.in))
	var weighted, total, best float64
	for k, m := range a.mag {
		f := float64(k) * binHz
		weighted += f * m
		total += m
		if m > best {
			best = m
			s.PeakHz = f
		}
	}
	if total > 0 {
		s.Centroid = weighted / total
	}
	return s, nil
}
