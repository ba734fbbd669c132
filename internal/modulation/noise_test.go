package modulation

import (
	"math"
	"testing"
)

func TestUniformNoiseRange(t *testing.T) {
	n := NewNoise(Parameter{NoiseMode: NoiseUniform}, 7)
	var distinct int
	prev := math.NaN()
	for i := 0; i < 1000; i++ {
		v := n.Sample(int64(i), 48000)
		if v < -1 || v > 1 {
			t.Fatalf("uniform noise out of range: %v", v)
		}
		if v != prev {
			distinct++
		}
		prev = v
	}
	if distinct < 900 {
		t.Fatalf("expected independent draws, only %d changes", distinct)
	}
}

func TestUniformNoiseDeterministicBySeed(t *testing.T) {
	a := NewNoise(Parameter{}, 42)
	b := NewNoise(Parameter{}, 42)
	for i := 0; i < 32; i++ {
		if a.Sample(0, 48000) != b.Sample(0, 48000) {
			t.Fatal("same seed should produce same sequence")
		}
	}
}

func TestPeriodicNoiseIsSmooth(t *testing.T) {
	n := NewNoise(Parameter{NoiseMode: NoisePeriodic, NoiseRateHz: 2}, 3)
	const sr = 48000.0
	prev := n.Sample(0, sr)
	for clock := int64(480); clock < 48000*4; clock += 480 {
		v := n.Sample(clock, sr)
		if v < -1 || v > 1 {
			t.Fatalf("periodic noise out of range: %v", v)
		}
		if math.Abs(v-prev) > 0.25 {
			t.Fatalf("periodic noise jumped from %v to %v at clock %d", prev, v, clock)
		}
		prev = v
	}
}

func TestLockedNoiseHoldsUntilRelease(t *testing.T) {
	n := NewNoise(Parameter{LockNoiseAcrossGrain: true}, 11)
	first := n.Sample(0, 48000)
	for i := 0; i < 10; i++ {
		if got := n.Sample(int64(i*100), 48000); got != first {
			t.Fatalf("locked noise changed: %v != %v", got, first)
		}
	}
	n.Release()
	if got := n.Sample(0, 48000); got == first {
		t.Fatal("release should allow a new draw")
	}
}
