package effects

import "math"

// Limiter is a streaming peak compressor for the mix bus. Unlike grain
// effects it keeps envelope state across calls and must only be driven by
// one goroutine. It never allocates.
type Limiter struct {
	threshold float64
	ratio     float64
	attack    float64 // coefficient
	release   float64 // coefficient
	env       float64
}

// NewLimiter creates a bus limiter.
// thresholdDB: threshold in dB (e.g., -3)
// ratio: compression ratio (e.g., 20 for near brick-wall)
// attackMs: attack time in ms
// releaseMs: release time in ms
func NewLimiter(sampleRate int, thresholdDB, ratio, attackMs, releaseMs float64) *Limiter {
	sr := float64(sampleRate)
	if ratio < 1 {
		ratio = 1
	}
	return &Limiter{
		threshold: math.Pow(10, thresholdDB/20),
		ratio:     ratio,
		attack:    coefficient(attackMs, sr),
		release:   coefficient(releaseMs, sr),
	}
}

func coefficient(ms, sr float64) float64 {
	if ms <= 0 {
		return 1
	}
	return 1.0 - math.Exp(-1.0/(ms*sr/1000.0))
}

// Process compresses buf in place. Non-finite samples are replaced with
// silence so they cannot poison the envelope.
func (c *Limiter) Process(buf []float64) {
	for i, x := range buf {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			x = 0
		}
		a := math.Abs(x)
		if a > c.env {
			c.env += c.attack * (a - c.env)
		} else {
			c.env += c.release * (a - c.env)
		}
		buf[i] = x * c.gain(c.env)
	}
}

func (c *Limiter) gain(env float64) float64 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1.0
	}
	over := env / c.threshold
	return math.Pow(over, 1.0/c.ratio-1)
}

func (c *Limiter) Reset() {
	c.env = 0
}
