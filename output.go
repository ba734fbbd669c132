package grainsynth

import (
	"errors"
	"time"

	intaudio "github.com/cbegin/grainsynth-go/internal/audio"
)

// SampleSource produces interleaved float32 frames. Each call advances the
// engine's sample clock by the number of frames written.
type SampleSource interface {
	Process(dst []float32)
}

// Mixer returns the engine's audio source for callers that drive their own
// device. Do not combine it with Start, RenderOffline or a second reader:
// the clock has exactly one consumer.
func (e *Engine) Mixer() SampleSource { return e.mixer }

// Start opens the configured audio backend and starts playback.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.output != nil {
		return errors.New("engine already started")
	}
	out, err := intaudio.Open(e.cfg.Backend, e.cfg.SampleRate, e.cfg.Channels, e.mixer)
	if err != nil {
		return err
	}
	out.Play()
	e.output = out
	e.logger.Info("audio started", "backend", string(e.cfg.Backend), "rate", e.cfg.SampleRate, "channels", e.cfg.Channels)
	return nil
}

// Stop closes the audio backend. It is a no-op if the engine is not started.
func (e *Engine) Stop() error {
	e.mu.Lock()
	out := e.output
	e.output = nil
	e.mu.Unlock()
	if out == nil {
		return nil
	}
	e.logger.Info("audio stopped", "backend", string(e.cfg.Backend))
	return out.Stop()
}

// Position reports how much audio the device has played, or zero when the
// engine is not started.
func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.output == nil {
		return 0
	}
	return e.output.Position()
}

// SetMasterGain sets the output volume scalar. 1.0 is unity. This takes
// effect immediately on the audio thread (lock-free).
func (e *Engine) SetMasterGain(g float64) {
	e.mixer.SetMasterGain(g)
}

func (e *Engine) MasterGain() float64 {
	return e.mixer.MasterGain()
}
