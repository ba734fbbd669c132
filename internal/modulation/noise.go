package modulation

import (
	"math"
	"math/rand"
)

// Noise produces per-grain noise samples in [-1, 1] for one parameter.
// Uniform mode draws independent values; periodic mode walks 1-D gradient
// noise along the sample clock so neighbouring grains get related values.
type Noise struct {
	mode   NoiseMode
	rateHz float64
	rng    *rand.Rand
	seed   uint32
	locked bool
	held   float64
	isHeld bool
}

// NewNoise returns a noise source configured from p and seeded with seed.
func NewNoise(p Parameter, seed int64) *Noise {
	n := &Noise{
		rng:  rand.New(rand.NewSource(seed)),
		seed: uint32(seed) ^ 0x9e3779b9,
	}
	n.Set(p)
	return n
}

// Set updates the mode and rate from p without reseeding.
func (n *Noise) Set(p Parameter) {
	n.mode = p.NoiseMode
	n.rateHz = p.NoiseRateHz
	if n.rateHz <= 0 || math.IsNaN(n.rateHz) {
		n.rateHz = 1
	}
	n.locked = p.LockNoiseAcrossGrain
}

// Sample returns the noise value for a grain starting at clock samples.
// While a lock is held (see Hold) the same value is returned every call.
func (n *Noise) Sample(clock int64, sampleRate float64) float64 {
	if n.isHeld {
		return n.held
	}
	v := n.draw(clock, sampleRate)
	if n.locked {
		n.held = v
		n.isHeld = true
	}
	return v
}

// Release drops a held value so the next Sample draws again. Burst emitters
// call it once per trigger.
func (n *Noise) Release() {
	n.isHeld = false
	n.held = 0
}

func (n *Noise) draw(clock int64, sampleRate float64) float64 {
	switch n.mode {
	case NoisePeriodic:
		if sampleRate <= 0 {
			return 0
		}
		x := float64(clock) / sampleRate * n.rateHz
		return gradient(x, n.seed)
	default:
		return n.rng.Float64()*2 - 1
	}
}

// gradient is 1-D Perlin noise scaled to roughly [-1, 1].
func gradient(x float64, seed uint32) float64 {
	x0 := math.Floor(x)
	t := x - x0
	i0 := int64(x0)
	g0 := grad(i0, seed)
	g1 := grad(i0+1, seed)
	v0 := g0 * t
	v1 := g1 * (t - 1)
	fade := t * t * t * (t*(t*6-15) + 10)
	v := (v0 + (v1-v0)*fade) * 2
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// grad hashes a lattice point to a slope in [-1, 1].
func grad(i int64, seed uint32) float64 {
	h := uint32(i)*0x27d4eb2d ^ seed
	h ^= h >> 15
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return float64(h)/float64(math.MaxUint32)*2 - 1
}
