package audio

import (
	"fmt"
	"time"
)

// Backend names a device output implementation.
type Backend string

const (
	BackendEbiten Backend = "ebiten"
	BackendOto    Backend = "oto"
)

// Output is a running device stream.
type Output interface {
	Play()
	Pause()
	IsPlaying() bool
	// Position is how much audio the device has played.
	Position() time.Duration
	Stop() error
}

// Open starts a device stream pulling from source. The stream begins paused.
func Open(backend Backend, sampleRate, channels int, source SampleSource) (Output, error) {
	switch backend {
	case BackendEbiten, "":
		return NewEbitenPlayer(sampleRate, channels, source)
	case BackendOto:
		return NewOtoPlayer(sampleRate, channels, source)
	}
	return nil, fmt.Errorf("unknown audio backend %q", backend)
}
