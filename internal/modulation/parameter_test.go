package modulation

import (
	"math"
	"testing"
)

func TestEvaluateStaysInRange(t *testing.T) {
	p := Parameter{
		Start: 0.5, Min: 0.2, Max: 0.8,
		ModulationAmount: 10, Exponent: 2, NoiseAmount: 5,
	}
	inputs := []float64{0, 1, -1, 1e9, math.Inf(1), math.Inf(-1), math.NaN()}
	for _, in := range inputs {
		for _, noise := range []float64{-1, 0, 1, 50, math.NaN()} {
			got := Evaluate(p, in, noise)
			if got < p.Min || got > p.Max || math.IsNaN(got) {
				t.Fatalf("Evaluate(in=%v, noise=%v) = %v outside [%v,%v]", in, noise, got, p.Min, p.Max)
			}
			got = EvaluateBurst(p, 3, 7, in, noise)
			if got < p.Min || got > p.Max || math.IsNaN(got) {
				t.Fatalf("EvaluateBurst(in=%v, noise=%v) = %v outside [%v,%v]", in, noise, got, p.Min, p.Max)
			}
		}
	}
}

func TestEvaluateContinuousForm(t *testing.T) {
	p := Parameter{Start: 1, Min: 0, Max: 10, ModulationAmount: 4, Exponent: 2}
	// 1 + 0.5^2*4 = 2
	if got := Evaluate(p, 0.5, 0); math.Abs(got-2) > 1e-12 {
		t.Fatalf("got %v, want 2", got)
	}
	p.NoiseAmount = 0.1
	// range 10 * 0.1 * 1 = 1 more
	if got := Evaluate(p, 0.5, 1); math.Abs(got-3) > 1e-12 {
		t.Fatalf("got %v, want 3", got)
	}
}

func TestEvaluateSwapsInvertedRange(t *testing.T) {
	p := Parameter{Start: 5, Min: 8, Max: 2}
	got := Evaluate(p, 0, 0)
	if got != 5 {
		t.Fatalf("got %v, want 5", got)
	}
	p.Start = 20
	if got := Evaluate(p, 0, 0); got != 8 {
		t.Fatalf("got %v, want 8", got)
	}
}

func TestEvaluateBurstEndpoints(t *testing.T) {
	cases := []struct {
		name       string
		start, end float64
		exp        float64
	}{
		{"linear", 0.1, 0.3, 1},
		{"curved", 120, 33.3, 2.5},
		{"descending", 0.9, 0.05, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Parameter{Start: tc.start, End: tc.end, Min: -1000, Max: 1000, Exponent: tc.exp}
			if got := EvaluateBurst(p, 0, 480, 0, 0); got != tc.start {
				t.Fatalf("t=0: got %v, want %v", got, tc.start)
			}
			if got := EvaluateBurst(p, 480, 480, 0, 0); got != tc.end {
				t.Fatalf("t=n: got %v, want %v", got, tc.end)
			}
		})
	}
}

func TestEvaluateBurstZeroLength(t *testing.T) {
	p := Parameter{Start: 2, End: 9, Min: 0, Max: 10, Exponent: 1}
	if got := EvaluateBurst(p, 5, 0, 0, 0); got != 2 {
		t.Fatalf("n=0 should short-circuit to start, got %v", got)
	}
}

func TestEvaluateBurstLocks(t *testing.T) {
	base := Parameter{Start: 0, End: 0, Min: -10, Max: 10, Exponent: 1, ModulationAmount: 1}

	lockStart := base
	lockStart.LockStart = true
	if got := EvaluateBurst(lockStart, 0, 10, 1, 0); got != 0 {
		t.Fatalf("lockStart at t=0: got %v, want 0", got)
	}
	if got := EvaluateBurst(lockStart, 10, 10, 1, 0); got != 1 {
		t.Fatalf("lockStart at t=n: got %v, want 1", got)
	}

	lockEnd := base
	lockEnd.LockEnd = true
	if got := EvaluateBurst(lockEnd, 0, 10, 1, 0); got != 1 {
		t.Fatalf("lockEnd at t=0: got %v, want 1", got)
	}
	if got := EvaluateBurst(lockEnd, 10, 10, 1, 0); got != 0 {
		t.Fatalf("lockEnd at t=n: got %v, want 0", got)
	}
}

func TestScaled(t *testing.T) {
	p := Parameter{Start: 10, End: 20, Min: 5, Max: 100}.Scaled(48)
	if p.Start != 480 || p.End != 960 || p.Min != 240 || p.Max != 4800 {
		t.Fatalf("unexpected scaled parameter %+v", p)
	}
}
