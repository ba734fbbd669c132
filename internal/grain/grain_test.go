package grain

import (
	"math"
	"testing"
)

func ramp(n int) []float64 {
	src := make([]float64, n)
	for i := range src {
		src[i] = float64(i) / float64(n)
	}
	return src
}

func TestPingPongStaysInsideSource(t *testing.T) {
	d := Descriptor{PlayheadNorm: 0.99, DurationSamples: 50, PitchRatio: 2, Volume: 1}
	if !NeedsPingPong(d.PlayheadNorm, d.DurationSamples, d.PitchRatio, 1000) {
		t.Fatal("expected ping-pong to be selected")
	}
	d.PingPong = true

	c := newCursor(d, 1000)
	for i := 0; i < d.DurationSamples; i++ {
		if c.pos < 0 || c.pos > 999 {
			t.Fatalf("step %d: position %f outside [0,999]", i, c.pos)
		}
		c.advance()
	}
	if c.reversals == 0 {
		t.Fatal("read direction never reversed")
	}
	if c.done {
		t.Fatal("ping-pong cursor must not stop")
	}

	out := make([]float64, d.Len())
	Render(out, d, ramp(1000), nil)
	for i, v := range out {
		if v < 0 || v > 1 {
			t.Fatalf("sample %d = %f, outside source range", i, v)
		}
	}
	// The reflected read walks back down the ramp.
	if out[len(out)-1] >= out[5] {
		t.Fatalf("expected descending read after reflection: first %f last %f", out[5], out[len(out)-1])
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	src := make([]float64, 4096)
	for i := range src {
		src[i] = math.Sin(float64(i) * 0.013)
	}
	win := HannTable(WindowSize)
	d := Descriptor{PlayheadNorm: 0.3, DurationSamples: 1200, PitchRatio: 1.37, Volume: 0.8, TailSamples: 64}
	a := make([]float64, d.Len())
	b := make([]float64, d.Len())
	for i := range b {
		b[i] = 123 // stale data must be overwritten
	}
	na := Render(a, d, src, win)
	nb := Render(b, d, src, win)
	if na != nb || na != 1264 {
		t.Fatalf("lengths %d, %d, want 1264", na, nb)
	}
	for i := range a {
		if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
			t.Fatalf("sample %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestRenderSilencePastEnd(t *testing.T) {
	src := make([]float64, 100)
	for i := range src {
		src[i] = 1
	}
	d := Descriptor{PlayheadNorm: 0.5, DurationSamples: 100, PitchRatio: 1, Volume: 1}
	out := make([]float64, 100)
	Render(out, d, src, nil)
	if out[10] != 1 {
		t.Fatalf("in-range sample = %f, want 1", out[10])
	}
	for i := 60; i < 100; i++ {
		if out[i] != 0 {
			t.Fatalf("sample %d past source end = %f, want 0", i, out[i])
		}
	}
}

func TestRenderTailIsZero(t *testing.T) {
	src := ramp(512)
	d := Descriptor{DurationSamples: 64, PitchRatio: 1, Volume: 1, TailSamples: 32}
	out := make([]float64, 96)
	for i := range out {
		out[i] = 9
	}
	if n := Render(out, d, src, HannTable(WindowSize)); n != 96 {
		t.Fatalf("n = %d, want 96", n)
	}
	for i := 64; i < 96; i++ {
		if out[i] != 0 {
			t.Fatalf("tail sample %d = %f", i, out[i])
		}
	}
}

func TestRenderTruncatesToDestination(t *testing.T) {
	d := Descriptor{DurationSamples: 100, PitchRatio: 1, Volume: 1, TailSamples: 100}
	out := make([]float64, 50)
	if n := Render(out, d, ramp(1000), nil); n != 50 {
		t.Fatalf("n = %d, want 50", n)
	}
}

func TestRenderEmptySourceIsSilent(t *testing.T) {
	out := []float64{1, 1, 1}
	Render(out, Descriptor{DurationSamples: 3, PitchRatio: 1, Volume: 1}, nil, nil)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d = %f", i, v)
		}
	}
}

func TestHannWindowEndpoints(t *testing.T) {
	win := HannTable(WindowSize)
	if len(win) != WindowSize {
		t.Fatalf("len = %d", len(win))
	}
	if math.Abs(win[0]) > 1e-9 || math.Abs(win[WindowSize-1]) > 1e-9 {
		t.Fatalf("window endpoints should be zero: %f %f", win[0], win[WindowSize-1])
	}
	if envelope(win, 0, 100) != win[0] || envelope(win, 99, 100) != win[WindowSize-1] {
		t.Fatal("envelope should map grain ends onto table ends")
	}
}

func TestNeedsPingPong(t *testing.T) {
	tests := []struct {
		name     string
		playhead float64
		dur      int
		pitch    float64
		want     bool
	}{
		{"fits", 0, 500, 1, false},
		{"overruns", 0.9, 200, 1, true},
		{"pitch overruns", 0.5, 300, 2, true},
		{"exact end", 0.5, 500, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsPingPong(tt.playhead, tt.dur, tt.pitch, 1000); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
