package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// EbitenPlayer plays through ebiten's shared audio context, which is always
// stereo float32.
type EbitenPlayer struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

func NewEbitenPlayer(sampleRate, channels int, source SampleSource) (*EbitenPlayer, error) {
	if channels != 2 {
		return nil, fmt.Errorf("ebiten backend needs 2 channels, got %d", channels)
	}
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source, channels)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &EbitenPlayer{player: pl, reader: reader}, nil
}

func (p *EbitenPlayer) Play()           { p.player.Play() }
func (p *EbitenPlayer) Pause()          { p.player.Pause() }
func (p *EbitenPlayer) IsPlaying() bool { return p.player.IsPlaying() }

// Position returns the current playback position (what the listener actually hears).
func (p *EbitenPlayer) Position() time.Duration {
	return p.player.Position()
}

func (p *EbitenPlayer) Stop() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.reader.Close()
}
