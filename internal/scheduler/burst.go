package scheduler

import (
	"math"

	"github.com/cbegin/grainsynth-go/internal/modulation"
)

// ScheduleBurst appends the grains of one burst starting at triggerStart to
// dst. The total length comes from BurstDuration; each grain evaluates the
// five emitter parameters at its progress through the burst. A zero-length
// burst yields a single grain at progress 0.
//
// Grains are placed relative to triggerStart and may lie beyond the queue
// window; they play when the clock reaches them.
func ScheduleBurst(dst Result, p *Params, n *Noises, in Input, triggerStart int64) Result {
	dst.CapHit = false
	n.Release()

	ms := in.msToSamples()
	total := modulation.Evaluate(p.BurstDuration.Scaled(ms), in.Interaction, n.burst.Sample(triggerStart, in.SampleRate))
	if total < 0 || math.IsNaN(total) {
		total = 0
	}
	durP := p.Duration.Scaled(ms)

	offset := 0.0
	for count := 0; ; count++ {
		if count >= in.MaxGrains {
			dst.CapHit = true
			break
		}
		start := triggerStart + int64(math.Round(offset))
		eval := func(param modulation.Parameter, noise *modulation.Noise) float64 {
			return modulation.EvaluateBurst(param, offset, total, in.Interaction, noise.Sample(start, in.SampleRate))
		}
		duration := eval(durP, n.duration)
		density := eval(p.Density, n.density)
		playhead := eval(p.Playhead, n.playhead)
		transpose := eval(p.Transpose, n.transpose)
		volume := eval(p.Volume, n.volume) * in.Attenuation * in.FadeGain(start)

		if volume > in.SilenceThreshold && validOffset(duration) {
			dst.Grains = append(dst.Grains, in.descriptor(start, playhead, duration, transpose, volume))
		}
		if total == 0 {
			break
		}
		step := duration / density
		if !validOffset(step) {
			break
		}
		offset += step
		if offset > total {
			break
		}
	}
	return dst
}
