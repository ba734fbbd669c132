package effects

import (
	"fmt"
	"math"
	"sync"

	dspmod "github.com/cwbudde/algo-dsp/dsp/effects/modulation"
)

const (
	minFlangeMs = 0.1
	maxFlangeMs = 10
)

// Flanger is a short modulated delay with feedback. Each grain runs on a
// pooled algo-dsp flanger that is reset first, so the modulation phase and
// the delay line restart at zero for every grain.
type Flanger struct {
	sampleRate float64
	delayMs    float64
	depthMs    float64
	rateHz     float64
	feedback   float64
	wet        float64
	pool       sync.Pool
}

// NewFlanger creates a flanger effect.
// delayMs: base delay time in ms (0.1-10ms)
// depthMs: modulation depth in ms, limited so base+depth stays within 10ms
// rateHz: modulation rate in Hz
// feedback: feedback amount 0..0.9
// wet: wet/dry mix 0..1
func NewFlanger(sampleRate int, delayMs, depthMs, rateHz, feedback, wet float64) (*Flanger, error) {
	sr := float64(sampleRate)
	f := &Flanger{
		sampleRate: sr,
		delayMs:    clamp(delayMs, minFlangeMs, maxFlangeMs),
		rateHz:     clamp(math.Abs(rateHz), 0.01, sr/4),
		feedback:   clamp(feedback, 0, 0.9),
		wet:        clamp(wet, 0, 1),
	}
	// Keep base+depth strictly inside the 10ms line after the ms to seconds
	// conversion.
	f.depthMs = clamp(math.Abs(depthMs), 0, (maxFlangeMs-f.delayMs)*0.999)

	proto, err := f.build()
	if err != nil {
		return nil, fmt.Errorf("flanger: %w", err)
	}
	f.pool.Put(proto)
	f.pool.New = func() any {
		fl, _ := f.build()
		return fl
	}
	return f, nil
}

func (f *Flanger) build() (*dspmod.Flanger, error) {
	return dspmod.NewFlanger(f.sampleRate,
		dspmod.WithFlangerBaseDelaySeconds(f.delayMs/1000),
		dspmod.WithFlangerDepthSeconds(f.depthMs/1000),
		dspmod.WithFlangerRateHz(f.rateHz),
		dspmod.WithFlangerFeedback(f.feedback),
		dspmod.WithFlangerMix(f.wet),
	)
}

func (f *Flanger) Apply(buf, _ []float64) {
	fl, _ := f.pool.Get().(*dspmod.Flanger)
	if fl == nil {
		return
	}
	fl.Reset()
	_ = fl.ProcessInPlace(buf)
	f.pool.Put(fl)
}

func (f *Flanger) DelayBased() bool { return true }

func (f *Flanger) TailSamples() int {
	maxDelay := int(math.Ceil((f.delayMs+f.depthMs)*f.sampleRate/1000)) + 1
	return maxDelay * ringRepeats(f.feedback)
}
