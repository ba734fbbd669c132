package grainsynth

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// RenderOffline drives the engine faster than real time: before every tick
// interval it calls step (if non-nil) with the elapsed seconds, ticks, then
// pulls one interval of audio from the mixer. The engine must not be
// started.
func (e *Engine) RenderOffline(ctx context.Context, seconds float64, interval time.Duration, step func(t float64) error) ([]float32, error) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	e.mu.Lock()
	started := e.output != nil
	sr, ch := e.cfg.SampleRate, e.cfg.Channels
	block := int(e.cfg.samples(interval))
	e.mu.Unlock()
	if started {
		return nil, fmt.Errorf("offline render while audio is started")
	}
	if block < 1 {
		block = 1
	}

	frames := int(float64(sr) * seconds)
	out := make([]float32, frames*ch)
	for pos := 0; pos < frames; pos += block {
		if step != nil {
			if err := step(float64(pos) / float64(sr)); err != nil {
				return out[:pos*ch], err
			}
		}
		if err := e.Tick(ctx); err != nil {
			return out[:pos*ch], err
		}
		end := min(pos+block, frames)
		e.mixer.Process(out[pos*ch : end*ch])
	}
	return out, nil
}

// EncodeWAVFloat32LE returns a complete IEEE float WAV file.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}

// WriteWAV writes samples as integer PCM at bitDepth (16 or 24).
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate, channels, bitDepth int) error {
	if bitDepth != 16 && bitDepth != 24 {
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	scale := math.Pow(2, float64(bitDepth-1)) - 1
	data := make([]int, len(samples))
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		data[i] = int(math.Round(v * scale))
	}
	enc := wav.NewEncoder(w, sampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return enc.Close()
}
