package audio

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoPlayer plays through an oto context. oto allows one context per
// process; it is created on first use and reused.
type OtoPlayer struct {
	player     *oto.Player
	reader     *countingReader
	sampleRate int
	frameBytes int
}

var (
	otoOnce       sync.Once
	otoContext    *oto.Context
	otoContextErr error
	otoRate       int
	otoChannels   int
)

func sharedOtoContext(sampleRate, channels int) (*oto.Context, error) {
	otoOnce.Do(func() {
		otoRate, otoChannels = sampleRate, channels
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   20 * time.Millisecond,
		})
		if err != nil {
			otoContextErr = err
			return
		}
		<-ready
		otoContext = ctx
	})
	if otoContextErr != nil {
		return nil, otoContextErr
	}
	if otoRate != sampleRate || otoChannels != channels {
		return nil, errors.New("oto context already initialized with a different format")
	}
	return otoContext, nil
}

// countingReader tracks how many bytes the device has pulled.
type countingReader struct {
	*StreamReader
	n atomic.Int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.StreamReader.Read(p)
	r.n.Add(int64(n))
	return n, err
}

func NewOtoPlayer(sampleRate, channels int, source SampleSource) (*OtoPlayer, error) {
	ctx, err := sharedOtoContext(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	reader := &countingReader{StreamReader: NewStreamReader(source, channels)}
	return &OtoPlayer{
		player:     ctx.NewPlayer(reader),
		reader:     reader,
		sampleRate: sampleRate,
		frameBytes: 4 * channels,
	}, nil
}

func (p *OtoPlayer) Play()           { p.player.Play() }
func (p *OtoPlayer) Pause()          { p.player.Pause() }
func (p *OtoPlayer) IsPlaying() bool { return p.player.IsPlaying() }

// Position is the audio handed to the device minus what is still buffered.
func (p *OtoPlayer) Position() time.Duration {
	played := p.reader.n.Load() - int64(p.player.BufferedSize())
	if played < 0 {
		played = 0
	}
	frames := played / int64(p.frameBytes)
	return time.Duration(frames) * time.Second / time.Duration(p.sampleRate)
}

func (p *OtoPlayer) Stop() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.reader.Close()
}
