package effects

import "math"

// Effect processes one rendered grain in place. scratch has the same length
// as buf and may be overwritten freely. Effects keep no state between calls,
// so the same Effect can be shared by grains rendering in parallel.
type Effect interface {
	Apply(buf, scratch []float64)
	// DelayBased reports whether the effect rings past its input.
	DelayBased() bool
	// TailSamples is the extra length the effect needs to ring out.
	TailSamples() int
}

// Chain applies a sequence of effects in order.
type Chain struct {
	effects []Effect
}

func NewChain(effects ...Effect) *Chain {
	return &Chain{effects: effects}
}

// Process runs every effect on buf. A nil chain is a no-op.
func (c *Chain) Process(buf, scratch []float64) {
	if c == nil {
		return
	}
	if len(scratch) < len(buf) {
		scratch = make([]float64, len(buf))
	}
	scratch = scratch[:len(buf)]
	for _, e := range c.effects {
		e.Apply(buf, scratch)
	}
}

func (c *Chain) Add(e Effect) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.effects)
}

// MaxTail returns the largest tail among delay-based effects.
func (c *Chain) MaxTail() int {
	if c == nil {
		return 0
	}
	tail := 0
	for _, e := range c.effects {
		if e.DelayBased() && e.TailSamples() > tail {
			tail = e.TailSamples()
		}
	}
	return tail
}

// clamp limits v to [lo, hi]. NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ringRepeats estimates how many feedback passes stay above -60 dB.
func ringRepeats(feedback float64) int {
	if feedback <= 0.001 {
		return 1
	}
	n := 1
	for level := feedback; level > 0.001 && n < maxRepeats; level *= feedback {
		n++
	}
	return n
}

const maxRepeats = 16
