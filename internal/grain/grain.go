// Package grain renders grain descriptors into sample buffers.
//
// Rendering is a pure function of the descriptor, the source material and
// the window table, so it is safe to run many renders in parallel as long as
// every call has its own destination buffer.
package grain

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/window"

	"github.com/cbegin/grainsynth-go/internal/arena"
)

// WindowSize is the length of the default grain envelope table.
const WindowSize = 512

// Descriptor is one scheduled grain. It is immutable once created.
type Descriptor struct {
	Source          arena.Handle
	Emitter         arena.Handle
	Voice           int
	PlayheadNorm    float64 // read start, normalised to the source length
	DurationSamples int
	PitchRatio      float64
	Volume          float64
	StartSample     int64 // absolute index on the global sample clock
	TailSamples     int   // zero padding for delay-based effects
	PingPong        bool
}

// Len returns the full buffer length the grain needs.
func (d Descriptor) Len() int {
	n := d.DurationSamples
	if n < 0 {
		n = 0
	}
	if d.TailSamples > 0 {
		n += d.TailSamples
	}
	return n
}

// HannTable returns a symmetric Hann window of the given size.
func HannTable(size int) []float64 {
	if size < 2 {
		size = 2
	}
	return window.Generate(window.TypeHann, size)
}

// NeedsPingPong reports whether reading duration samples at pitch from the
// playhead would run off the end of a source of srcLen samples.
func NeedsPingPong(playheadNorm float64, duration int, pitch float64, srcLen int) bool {
	if srcLen <= 0 {
		return false
	}
	span := clamp(playheadNorm, 0, 1)*float64(srcLen) + float64(duration)*math.Abs(pitch)
	return span > float64(srcLen)
}

// Render writes the grain into dst and returns the number of samples
// written: DurationSamples of windowed audio followed by TailSamples zeros.
// Output is truncated to len(dst). Render never reads outside src.
func Render(dst []float64, d Descriptor, src []float64, win []float64) int {
	n := d.DurationSamples
	if n < 0 {
		n = 0
	}
	if n > len(dst) {
		n = len(dst)
	}
	total := d.Len()
	if total > len(dst) {
		total = len(dst)
	}

	if len(src) == 0 || n == 0 {
		clear(dst[:total])
		return total
	}

	c := newCursor(d, len(src))
	for i := 0; i < n; i++ {
		if c.done {
			// Ran off the source without ping-pong: the rest is silence.
			clear(dst[i:n])
			break
		}
		dst[i] = c.sample(src) * envelope(win, i, n) * d.Volume
		c.advance()
	}
	clear(dst[n:total])
	return total
}

// envelope maps grain-local index i of n onto the window table.
func envelope(win []float64, i, n int) float64 {
	if len(win) == 0 {
		return 1
	}
	if n <= 1 {
		return win[len(win)/2]
	}
	idx := int(math.Round(float64(i) * float64(len(win)-1) / float64(n-1)))
	if idx >= len(win) {
		idx = len(win) - 1
	}
	return win[idx]
}

// cursor walks the fractional read position through the source.
type cursor struct {
	pos       float64
	step      float64
	last      float64
	pingPong  bool
	done      bool
	reversals int
}

func newCursor(d Descriptor, srcLen int) cursor {
	step := d.PitchRatio
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		step = 1
	}
	last := float64(srcLen - 1)
	return cursor{
		pos:      clamp(d.PlayheadNorm, 0, 1) * last,
		step:     step,
		last:     last,
		pingPong: d.PingPong,
	}
}

// sample linearly interpolates between the samples around pos.
func (c *cursor) sample(src []float64) float64 {
	i0 := int(c.pos)
	if i0 >= len(src)-1 {
		return src[len(src)-1]
	}
	frac := c.pos - float64(i0)
	return src[i0]*(1-frac) + src[i0+1]*frac
}

func (c *cursor) advance() {
	c.pos += c.step
	if c.pos >= 0 && c.pos <= c.last {
		return
	}
	if !c.pingPong {
		c.done = true
		return
	}
	// Reflect off the ends. Very short sources can need more than one bounce;
	// after a few the position is simply pinned.
	for k := 0; k < 4 && (c.pos < 0 || c.pos > c.last); k++ {
		if c.pos > c.last {
			c.pos = 2*c.last - c.pos
		} else {
			c.pos = -c.pos
		}
		c.step = -c.step
		c.reversals++
	}
	c.pos = clamp(c.pos, 0, c.last)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
