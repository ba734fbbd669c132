package scheduler

import (
	"math"

	"github.com/cbegin/grainsynth-go/internal/modulation"
)

// ScheduleContinuous appends the grains of one continuous emitter that start
// inside [Lookahead, Lookahead+Window] to dst. Grain spacing is the previous
// grain's duration divided by the current density, measured in absolute
// samples, so the cadence carries over between ticks of any length.
//
// A density that yields no usable offset schedules nothing. Noise is drawn
// afresh for every grain; held noise only spans one burst.
func ScheduleContinuous(dst Result, st *State, p *Params, n *Noises, in Input) Result {
	dst.CapHit = false
	n.Release()
	durP := p.Duration.Scaled(in.msToSamples())

	duration := modulation.Evaluate(durP, in.Interaction, n.duration.Sample(in.Lookahead, in.SampleRate))
	density := modulation.Evaluate(p.Density, in.Interaction, n.density.Sample(in.Lookahead, in.SampleRate))

	prev := st.PreviousDuration
	if prev <= 0 {
		prev = duration
	}
	offset := prev / density
	if !validOffset(offset) || !validOffset(duration) {
		return dst
	}

	next := float64(in.Lookahead)
	if st.Started {
		next = float64(st.LastSampleIndex) + offset
	}
	// After a stall the cadence would only produce stale grains; restart it.
	if next < float64(in.Lookahead-in.Window) {
		next = float64(in.Lookahead)
	}
	end := float64(in.Lookahead + in.Window)

	for count := 0; next <= end; count++ {
		if count >= in.MaxGrains {
			dst.CapHit = true
			break
		}
		n.Release()
		start := int64(math.Round(next))
		playhead := modulation.Evaluate(p.Playhead, in.Interaction, n.playhead.Sample(start, in.SampleRate))
		transpose := modulation.Evaluate(p.Transpose, in.Interaction, n.transpose.Sample(start, in.SampleRate))
		volume := modulation.Evaluate(p.Volume, in.Interaction, n.volume.Sample(start, in.SampleRate))
		volume *= in.Attenuation * in.FadeGain(start)

		if volume > in.SilenceThreshold {
			dst.Grains = append(dst.Grains, in.descriptor(start, playhead, duration, transpose, volume))
		}

		st.Started = true
		st.LastSampleIndex = start
		st.PreviousDuration = duration

		emitted := duration
		duration = modulation.Evaluate(durP, in.Interaction, n.duration.Sample(start, in.SampleRate))
		density = modulation.Evaluate(p.Density, in.Interaction, n.density.Sample(start, in.SampleRate))
		offset = emitted / density
		if !validOffset(offset) || !validOffset(duration) {
			break
		}
		next += offset
	}
	return dst
}
