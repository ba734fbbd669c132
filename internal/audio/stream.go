// Package audio connects a SampleSource to a sound device through ebiten's
// audio package or oto.
package audio

import (
	"encoding/binary"
	"math"
)

// SampleSource fills dst with interleaved float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// StreamReader adapts a SampleSource to the little-endian float32 byte
// stream both backends consume. Devices read from a single goroutine, so
// Read takes no lock.
type StreamReader struct {
	source   SampleSource
	channels int
	buf      []float32
}

func NewStreamReader(source SampleSource, channels int) *StreamReader {
	if channels < 1 {
		channels = 1
	}
	return &StreamReader{source: source, channels: channels}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	frameBytes := 4 * r.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}
	need := frames * r.channels
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return frames * frameBytes, nil
}

func (r *StreamReader) Close() error { return nil }
