package scheduler

import (
	"math"
	"testing"

	"github.com/cbegin/grainsynth-go/internal/modulation"
)

// At 1 kHz one millisecond is one sample, which keeps the arithmetic obvious.
func testInput() Input {
	return Input{
		SampleRate:       1000,
		SourceRate:       1000,
		SourceLen:        10000,
		Lookahead:        100,
		Window:           400,
		MaxGrains:        50,
		SilenceThreshold: 0.005,
		Attenuation:      1,
		Capacity:         1000,
	}
}

func fixedParams(duration, density float64) Params {
	return Params{
		Playhead:      modulation.Fixed(0.25),
		Density:       modulation.Fixed(density),
		Duration:      modulation.Fixed(duration),
		Transpose:     modulation.Fixed(0),
		Volume:        modulation.Fixed(1),
		BurstDuration: modulation.Fixed(0),
	}
}

func TestContinuousSpacingFollowsDensity(t *testing.T) {
	p := fixedParams(100, 2)
	st := NewState(Continuous)
	n := NewNoises(p, 1)
	res := ScheduleContinuous(Result{}, &st, &p, n, testInput())
	if len(res.Grains) < 2 {
		t.Fatalf("expected several grains, got %d", len(res.Grains))
	}
	if res.Grains[0].StartSample != 100 {
		t.Fatalf("first grain at %d, want lookahead 100", res.Grains[0].StartSample)
	}
	for i := 1; i < len(res.Grains); i++ {
		if d := res.Grains[i].StartSample - res.Grains[i-1].StartSample; d != 50 {
			t.Fatalf("grain %d spacing %d, want 50", i, d)
		}
	}
	for _, g := range res.Grains {
		if g.StartSample > 500 {
			t.Fatalf("grain at %d outside the queue window", g.StartSample)
		}
		if g.DurationSamples != 100 {
			t.Fatalf("duration %d, want 100", g.DurationSamples)
		}
	}
}

func TestContinuousCadenceCarriesAcrossTicks(t *testing.T) {
	p := fixedParams(100, 2)
	st := NewState(Continuous)
	n := NewNoises(p, 1)
	in := testInput()
	first := ScheduleContinuous(Result{}, &st, &p, n, in)
	last := first.Grains[len(first.Grains)-1].StartSample
	if st.LastSampleIndex != last {
		t.Fatalf("state last index %d, want %d", st.LastSampleIndex, last)
	}

	in.Lookahead += 400
	second := ScheduleContinuous(Result{}, &st, &p, n, in)
	if len(second.Grains) == 0 {
		t.Fatal("second tick scheduled nothing")
	}
	if got := second.Grains[0].StartSample; got != last+50 {
		t.Fatalf("second tick starts at %d, want %d", got, last+50)
	}
}

func TestContinuousRestartsAfterStall(t *testing.T) {
	p := fixedParams(100, 2)
	st := NewState(Continuous)
	st.Started = true
	st.LastSampleIndex = 5
	st.PreviousDuration = 100
	in := testInput()
	in.Lookahead = 100000
	res := ScheduleContinuous(Result{}, &st, &p, NewNoises(p, 1), in)
	if len(res.Grains) == 0 || res.Grains[0].StartSample != in.Lookahead {
		t.Fatalf("expected cadence to restart at lookahead, got %+v", res.Grains)
	}
}

func TestContinuousCadenceFromSampleZero(t *testing.T) {
	p := fixedParams(100, 0.5) // spacing 200
	st := NewState(Continuous)
	n := NewNoises(p, 1)
	in := testInput()
	in.Lookahead = 0
	in.Window = 150

	var starts []int64
	for _, look := range []int64{0, 16, 32, 200} {
		in.Lookahead = look
		res := ScheduleContinuous(Result{}, &st, &p, n, in)
		for _, g := range res.Grains {
			starts = append(starts, g.StartSample)
		}
	}
	want := []int64{0, 200}
	if len(starts) != len(want) {
		t.Fatalf("starts = %v, want %v", starts, want)
	}
	for i := range want {
		if starts[i] != want[i] {
			t.Fatalf("starts = %v, want %v", starts, want)
		}
	}
}

func TestContinuousLockedNoiseRedrawsPerGrain(t *testing.T) {
	p := fixedParams(20, 1)
	p.Playhead = modulation.Parameter{Start: 0.5, End: 0.5, Min: 0, Max: 1, Exponent: 1,
		NoiseAmount: 0.4, LockNoiseAcrossGrain: true}
	st := NewState(Continuous)
	n := NewNoises(p, 7)
	in := testInput()

	seen := map[float64]bool{}
	grains := 0
	for tick := range 5 {
		in.Lookahead = 100 + int64(tick)*400
		res := ScheduleContinuous(Result{}, &st, &p, n, in)
		for _, g := range res.Grains {
			seen[g.PlayheadNorm] = true
			grains++
		}
	}
	if grains < 10 {
		t.Fatalf("only %d grains", grains)
	}
	if len(seen) < grains/2 {
		t.Fatalf("%d grains share %d playheads; noise is frozen", grains, len(seen))
	}
}

func TestContinuousGrainCap(t *testing.T) {
	p := fixedParams(1, 50) // one grain every sample after rounding
	p.Duration = modulation.Fixed(1)
	st := NewState(Continuous)
	in := testInput()
	in.MaxGrains = 10
	res := ScheduleContinuous(Result{}, &st, &p, NewNoises(p, 1), in)
	if !res.CapHit {
		t.Fatal("expected cap hit")
	}
	if len(res.Grains) != 10 {
		t.Fatalf("got %d grains, want 10", len(res.Grains))
	}
}

func TestContinuousBadDensityIsNoOp(t *testing.T) {
	for _, density := range []float64{0, -1, math.NaN()} {
		p := fixedParams(100, density)
		p.Density = modulation.Parameter{Start: density, Min: density, Max: density}
		st := NewState(Continuous)
		res := ScheduleContinuous(Result{}, &st, &p, NewNoises(p, 1), testInput())
		if len(res.Grains) != 0 || res.CapHit {
			t.Fatalf("density %v: got %d grains", density, len(res.Grains))
		}
	}
}

func TestContinuousSilenceThreshold(t *testing.T) {
	p := fixedParams(100, 2)
	in := testInput()
	in.Attenuation = 0.001
	st := NewState(Continuous)
	res := ScheduleContinuous(Result{}, &st, &p, NewNoises(p, 1), in)
	if len(res.Grains) != 0 {
		t.Fatalf("quiet emitter produced %d grains", len(res.Grains))
	}
	if !st.Started || st.LastSampleIndex == 0 {
		t.Fatal("cadence should still advance while silent")
	}
}

func TestFadeEnvelope(t *testing.T) {
	in := Input{FadeStart: 100, FadeEnd: 200}
	tests := []struct {
		at   int64
		want float64
	}{{50, 1}, {100, 1}, {150, 0.5}, {200, 0}, {300, 0}}
	for _, tt := range tests {
		if got := in.FadeGain(tt.at); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("fade at %d = %v, want %v", tt.at, got, tt.want)
		}
	}
	if (Input{}).FadeGain(1e9) != 1 {
		t.Error("disabled fade should be unity")
	}
}

func TestTailClampedToCapacity(t *testing.T) {
	p := fixedParams(900, 1)
	in := testInput()
	in.Tail = 500
	st := NewState(Continuous)
	res := ScheduleContinuous(Result{}, &st, &p, NewNoises(p, 1), in)
	if len(res.Grains) == 0 {
		t.Fatal("no grains")
	}
	g := res.Grains[0]
	if g.DurationSamples+g.TailSamples != in.Capacity {
		t.Fatalf("duration %d + tail %d exceeds capacity %d", g.DurationSamples, g.TailSamples, in.Capacity)
	}
}

func TestPitchFromTranspose(t *testing.T) {
	in := testInput()
	if got := in.pitchRatio(1); got != 2 {
		t.Fatalf("one octave up = %v, want 2", got)
	}
	if got := in.pitchRatio(-10); got != 1.0/16 {
		t.Fatalf("transpose should clamp at -4 octaves, got %v", got)
	}
	in.SourceRate = 500
	if got := in.pitchRatio(0); got != 0.5 {
		t.Fatalf("rate correction = %v, want 0.5", got)
	}
}

func TestBurstWalksParameterRange(t *testing.T) {
	p := fixedParams(100, 1)
	p.BurstDuration = modulation.Fixed(400)
	p.Volume = modulation.Parameter{Start: 1, End: 0.5, Min: 0, Max: 1, Exponent: 1}
	p.Playhead = modulation.Parameter{Start: 0, End: 1, Min: 0, Max: 1, Exponent: 1}

	res := ScheduleBurst(Result{}, &p, NewNoises(p, 1), testInput(), 1000)
	if len(res.Grains) != 5 {
		t.Fatalf("got %d grains, want 5 (offsets 0..400 step 100)", len(res.Grains))
	}
	first, last := res.Grains[0], res.Grains[4]
	if first.StartSample != 1000 || last.StartSample != 1400 {
		t.Fatalf("starts %d..%d, want 1000..1400", first.StartSample, last.StartSample)
	}
	if first.Volume != 1 || last.Volume != 0.5 {
		t.Fatalf("volume endpoints %v, %v", first.Volume, last.Volume)
	}
	if first.PlayheadNorm != 0 || last.PlayheadNorm != 1 {
		t.Fatalf("playhead endpoints %v, %v", first.PlayheadNorm, last.PlayheadNorm)
	}
}

func TestBurstIsDeterministic(t *testing.T) {
	p := fixedParams(50, 2)
	p.BurstDuration = modulation.Fixed(300)
	p.Transpose = modulation.Parameter{Start: -1, End: 1, Min: -4, Max: 4, Exponent: 2}
	a := ScheduleBurst(Result{}, &p, NewNoises(p, 7), testInput(), 0)
	b := ScheduleBurst(Result{}, &p, NewNoises(p, 7), testInput(), 0)
	if len(a.Grains) != len(b.Grains) {
		t.Fatalf("grain counts differ: %d vs %d", len(a.Grains), len(b.Grains))
	}
	for i := range a.Grains {
		if a.Grains[i] != b.Grains[i] {
			t.Fatalf("grain %d differs: %+v vs %+v", i, a.Grains[i], b.Grains[i])
		}
	}
}

func TestZeroLengthBurstEmitsOneGrain(t *testing.T) {
	p := fixedParams(100, 1)
	res := ScheduleBurst(Result{}, &p, NewNoises(p, 1), testInput(), 42)
	if len(res.Grains) != 1 || res.Grains[0].StartSample != 42 {
		t.Fatalf("got %+v, want a single grain at 42", res.Grains)
	}
}

func TestBurstGrainCap(t *testing.T) {
	p := fixedParams(1, 50)
	p.BurstDuration = modulation.Fixed(10000)
	in := testInput()
	in.MaxGrains = 8
	res := ScheduleBurst(Result{}, &p, NewNoises(p, 1), in, 0)
	if !res.CapHit || len(res.Grains) != 8 {
		t.Fatalf("cap hit %v with %d grains", res.CapHit, len(res.Grains))
	}
}

func TestArmDebounces(t *testing.T) {
	st := NewState(Burst)
	if !st.Arm(100, 50) {
		t.Fatal("first trigger must arm")
	}
	if st.Arm(120, 50) {
		t.Fatal("trigger inside debounce must be ignored")
	}
	if !st.Arm(150, 50) {
		t.Fatal("trigger after debounce must arm")
	}
}
