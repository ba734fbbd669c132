package effects

import (
	"fmt"
	"sync"

	dspfx "github.com/cwbudde/algo-dsp/dsp/effects"
)

// BitCrush reduces amplitude resolution and holds samples to lower the
// effective sample rate. Grains run on pooled algo-dsp crushers.
type BitCrush struct {
	bits       float64
	downsample int
	wet        float64
	pool       sync.Pool
}

// NewBitCrush creates a bit-depth reducer.
// bits: target bit depth 1..24 (fractional values allowed)
// downsample: hold each quantised sample for this many samples (1..256)
// wet: wet/dry mix 0..1
func NewBitCrush(bits, downsample, wet float64) (*BitCrush, error) {
	b := &BitCrush{
		bits:       clamp(bits, 1, 24),
		downsample: int(clamp(downsample, 1, 256)),
		wet:        clamp(wet, 0, 1),
	}
	proto, err := b.build()
	if err != nil {
		return nil, fmt.Errorf("bitcrush: %w", err)
	}
	b.pool.Put(proto)
	b.pool.New = func() any {
		bc, _ := b.build()
		return bc
	}
	return b, nil
}

func (b *BitCrush) build() (*dspfx.BitCrusher, error) {
	// The crusher is rate independent; any positive rate will do.
	return dspfx.NewBitCrusher(1,
		dspfx.WithBitCrusherBitDepth(b.bits),
		dspfx.WithBitCrusherDownsample(b.downsample),
		dspfx.WithBitCrusherMix(b.wet),
	)
}

func (b *BitCrush) Apply(buf, _ []float64) {
	if len(buf) == 0 {
		return
	}
	bc, _ := b.pool.Get().(*dspfx.BitCrusher)
	if bc == nil {
		return
	}
	bc.Reset()
	// Latch the first sample so the grain starts on a held value rather
	// than on silence.
	_ = bc.SetDownsample(1)
	buf[0] = bc.ProcessSample(buf[0])
	_ = bc.SetDownsample(b.downsample)
	bc.ProcessInPlace(buf[1:])
	b.pool.Put(bc)
}

func (b *BitCrush) DelayBased() bool { return false }
func (b *BitCrush) TailSamples() int { return 0 }
