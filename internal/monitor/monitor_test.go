package monitor

import (
	"math"
	"testing"
)

func sine(freq, sampleRate float64, n int) []float64 {
	buf := make([]float64, n)
	for i := range buf {
		buf[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
	}
	return buf
}

func TestAnalyzeFindsTone(t *testing.T) {
	a, err := NewAnalyzer(48000, DefaultSize)
	if err != nil {
		t.Fatal(err)
	}
	s, err := a.Analyze(sine(3000, 48000, 2048))
	if err != nil {
		t.Fatal(err)
	}
	binHz := 48000.0 / DefaultSize
	if math.Abs(s.PeakHz-3000) > binHz {
		t.Fatalf("peak at %v Hz, want ~3000", s.PeakHz)
	}
	if math.Abs(s.Centroid-3000) > 200 {
		t.Fatalf("centroid %v Hz, want ~3000", s.Centroid)
	}
	if math.Abs(s.Peak-0.5) > 1e-3 {
		t.Fatalf("peak level %v", s.Peak)
	}
	if math.Abs(s.RMS-0.5/math.Sqrt2) > 1e-2 {
		t.Fatalf("rms %v", s.RMS)
	}
}

func TestAnalyzeSilence(t *testing.T) {
	a, err := NewAnalyzer(48000, 256)
	if err != nil {
		t.Fatal(err)
	}
	s, err := a.Analyze(make([]float64, 100))
	if err != nil {
		t.Fatal(err)
	}
	if s != (Summary{}) {
		t.Fatalf("silence summary = %+v", s)
	}
}

func TestNewAnalyzerRejectsBadRate(t *testing.T) {
	if _, err := NewAnalyzer(0, 256); err == nil {
		t.Fatal("expected error")
	}
}
