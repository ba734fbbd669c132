package effects

// Delay is a feedback echo. It is delay-based: the grain needs TailSamples
// of padding for the repeats to decay.
type Delay struct {
	delay    int
	feedback float64
	wet      float64
}

// NewDelay creates a delay effect.
// delayMs: delay time in milliseconds
// feedback: feedback amount 0..1
// wet: wet/dry mix 0..1
func NewDelay(sampleRate int, delayMs, feedback, wet float64) *Delay {
	samples := int(clamp(delayMs, 0, 10000) * float64(sampleRate) / 1000.0)
	if samples < 1 {
		samples = 1
	}
	return &Delay{
		delay:    samples,
		feedback: clamp(feedback, 0, 0.95),
		wet:      clamp(wet, 0, 1),
	}
}

func (d *Delay) Apply(buf, scratch []float64) {
	line := scratch
	for i := range line {
		line[i] = 0
	}
	for i, dry := range buf {
		var del float64
		if j := i - d.delay; j >= 0 {
			del = line[j]
		}
		line[i] = dry + del*d.feedback
		buf[i] = dry*(1-d.wet) + del*d.wet
	}
}

func (d *Delay) DelayBased() bool { return true }

func (d *Delay) TailSamples() int {
	return d.delay * ringRepeats(d.feedback)
}
