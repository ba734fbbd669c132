package modulation

import "math"

// NoiseMode selects how a parameter's noise sample is produced.
type NoiseMode int

const (
	NoiseUniform  NoiseMode = iota // independent draw per grain
	NoisePeriodic                  // coherent gradient noise along the sample clock
)

// Parameter describes one modulated grain property. Start, End, Min and Max
// share a unit; callers scale them (see Scaled) before evaluation.
type Parameter struct {
	Start            float64
	End              float64 // burst emitters only
	Min              float64
	Max              float64
	ModulationAmount float64
	Exponent         float64
	NoiseAmount      float64
	NoiseMode        NoiseMode
	NoiseRateHz      float64 // NoisePeriodic only

	LockStart            bool
	LockEnd              bool
	LockNoiseAcrossGrain bool
}

// Fixed returns a parameter pinned to v.
func Fixed(v float64) Parameter {
	return Parameter{Start: v, End: v, Min: v, Max: v, Exponent: 1}
}

// Ranged returns an unmodulated parameter starting at v within [lo, hi].
func Ranged(v, lo, hi float64) Parameter {
	return Parameter{Start: v, End: v, Min: lo, Max: hi, Exponent: 1}
}

// Scaled converts Start, End, Min and Max into another unit by k.
func (p Parameter) Scaled(k float64) Parameter {
	p.Start *= k
	p.End *= k
	p.Min *= k
	p.Max *= k
	return p
}

// bounds returns min and max in order; a misconfigured range is swapped
// rather than rejected because parameters are tuned live.
func (p Parameter) bounds() (float64, float64) {
	lo, hi := p.Min, p.Max
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

// Evaluate computes the continuous form:
//
//	clamp(start + interaction^exponent*amount + noise*noiseAmount*|max-min|, min, max)
func Evaluate(p Parameter, interaction, noise float64) float64 {
	lo, hi := p.bounds()
	interaction = sanitizeInteraction(interaction)
	noise = sanitizeNoise(noise)
	v := p.Start +
		shape(interaction, p.Exponent)*p.ModulationAmount +
		noise*p.NoiseAmount*(hi-lo)
	return clamp(v, lo, hi)
}

// EvaluateBurst computes the burst form at progress t of n. n <= 0 yields
// progress 0.
func EvaluateBurst(p Parameter, t, n, interaction, noise float64) float64 {
	lo, hi := p.bounds()
	interaction = sanitizeInteraction(interaction)
	noise = sanitizeNoise(noise)

	var shaped float64
	if n > 0 && !math.IsInf(n, 0) && !math.IsNaN(t) {
		shaped = shape(clamp(t/n, 0, 1), p.Exponent)
	}
	weight := 1.0
	switch {
	case p.LockStart:
		weight = shaped
	case p.LockEnd:
		weight = 1 - shaped
	}
	// Lerp written so shaped=0 and shaped=1 hit Start and End exactly.
	v := p.Start*(1-shaped) + p.End*shaped +
		interaction*p.ModulationAmount*weight +
		noise*p.NoiseAmount*(hi-lo)
	return clamp(v, lo, hi)
}

// shape raises x in [0,1] to exp. Non-positive or non-finite exponents fall
// back to linear.
func shape(x, exp float64) float64 {
	if exp <= 0 || math.IsNaN(exp) || math.IsInf(exp, 0) || exp == 1 {
		return x
	}
	return math.Pow(x, exp)
}

func sanitizeInteraction(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, 0, 1)
}

func sanitizeNoise(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, -1, 1)
}

// clamp maps NaN to lo so a poisoned input still lands inside the range.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
