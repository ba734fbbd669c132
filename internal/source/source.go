package source

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/wav"
)

// Source is decoded mono material grains are cut from. Samples are never
// modified after construction and may be read from several goroutines.
type Source struct {
	Name       string
	Samples    []float64
	SampleRate int
}

// Len returns the number of samples.
func (s *Source) Len() int { return len(s.Samples) }

// Seconds returns the duration of the material.
func (s *Source) Seconds() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// New copies samples into a Source.
func New(name string, samples []float64, sampleRate int) (*Source, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("source %q: sample rate must be positive, got %d", name, sampleRate)
	}
	cp := make([]float64, len(samples))
	copy(cp, samples)
	return &Source{Name: name, Samples: cp, SampleRate: sampleRate}, nil
}

// DecodeWAV reads a PCM WAV stream and folds all channels to mono.
func DecodeWAV(name string, r io.ReadSeeker) (*Source, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("source %q: invalid WAV file", name)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("source %q: decode: %w", name, err)
	}
	if buf == nil || buf.Format == nil {
		return nil, errors.New("source " + name + ": missing PCM format")
	}
	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 {
		return nil, fmt.Errorf("source %q: unknown bit depth", name)
	}
	scale := math.Pow(2, float64(bitDepth-1))
	frames := len(buf.Data) / channels
	mono := make([]float64, frames)
	for f := 0; f < frames; f++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[f*channels+c])
		}
		mono[f] = sum / float64(channels) / scale
	}
	return &Source{Name: name, Samples: mono, SampleRate: buf.Format.SampleRate}, nil
}

// Tone synthesises a decaying harmonic tone, handy as default material.
func Tone(name string, sampleRate int, seconds, freq float64) *Source {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	n := int(seconds * float64(sampleRate))
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	sr := float64(sampleRate)
	for i := range out {
		t := float64(i) / sr
		env := math.Exp(-1.5 * t)
		v := math.Sin(2*math.Pi*freq*t) +
			0.5*math.Sin(2*math.Pi*freq*2*t) +
			0.25*math.Sin(2*math.Pi*freq*3.01*t)
		out[i] = v * env * 0.5
	}
	return &Source{Name: name, Samples: out, SampleRate: sampleRate}
}
