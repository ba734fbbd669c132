package effects

import "math"

// Chopper gates the grain with a square wave. Edges are slewed by a one-pole
// smoother to avoid clicks.
type Chopper struct {
	step  float64 // phase increment per sample, in cycles
	duty  float64
	alpha float64 // smoother coefficient, 1 = hard edges
	wet   float64
}

// NewChopper creates an amplitude chopper.
// rateHz: gate frequency in Hz
// duty: fraction of each cycle that is open, 0..1
// smoothMs: edge smoothing time in ms (0 = hard gate)
// wet: wet/dry mix 0..1
func NewChopper(sampleRate int, rateHz, duty, smoothMs, wet float64) *Chopper {
	sr := float64(sampleRate)
	c := &Chopper{
		step:  clamp(math.Abs(rateHz), 0, sr) / sr,
		duty:  clamp(duty, 0, 1),
		alpha: 1,
		wet:   clamp(wet, 0, 1),
	}
	if smoothMs > 0 {
		rc := smoothMs / 1000.0
		dt := 1.0 / sr
		c.alpha = dt / (rc + dt)
	}
	return c
}

func (c *Chopper) Apply(buf, _ []float64) {
	phase := 0.0
	gate := c.target(phase)
	for i, dry := range buf {
		gate += c.alpha * (c.target(phase) - gate)
		phase += c.step
		if phase >= 1 {
			phase -= math.Floor(phase)
		}
		buf[i] = dry*(1-c.wet) + dry*gate*c.wet
	}
}

func (c *Chopper) target(phase float64) float64 {
	if phase < c.duty {
		return 1
	}
	return 0
}

func (c *Chopper) DelayBased() bool { return false }
func (c *Chopper) TailSamples() int { return 0 }
