package effects

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownEffect is returned for an effect kind ParseChain does not know.
var ErrUnknownEffect = errors.New("unknown effect")

// Spec is one textual chain entry: a kind and positional parameters.
// Missing parameters take the kind's defaults.
type Spec struct {
	Kind   string
	Params []float64
}

// ParseChain builds a chain from entries separated by ';' or newlines.
// Each entry is "kind p1,p2,...". Supported kinds:
//
//	bitcrush bits,downsample,wet
//	flange   delayMs,depthMs,rateHz,feedback,wet
//	filter   mode,cutoffHz,q           (mode 0=LP 1=HP 2=BP)
//	chopper  rateHz,duty,smoothMs,wet
//	delay    delayMs,feedback,wet
//
// An empty string yields a nil chain.
func ParseChain(text string, sampleRate int) (*Chain, error) {
	specs, err := ParseSpecs(text)
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, nil
	}
	chain := NewChain()
	for _, s := range specs {
		e, err := Build(s, sampleRate)
		if err != nil {
			return nil, err
		}
		chain.Add(e)
	}
	return chain, nil
}

// ParseSpecs splits text into Specs without building effects.
func ParseSpecs(text string) ([]Spec, error) {
	var specs []Spec
	entries := strings.FieldsFunc(text, func(r rune) bool { return r == ';' || r == '\n' })
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		// Strip braces if present
		raw = strings.TrimPrefix(raw, "{")
		raw = strings.TrimSuffix(raw, "}")
		parts := strings.SplitN(strings.TrimSpace(raw), " ", 2)
		spec := Spec{Kind: strings.ToLower(strings.TrimSpace(parts[0]))}
		if len(parts) > 1 {
			for _, p := range strings.Split(parts[1], ",") {
				p = strings.TrimSpace(p)
				if p == "" {
					continue
				}
				v, err := strconv.ParseFloat(p, 64)
				if err != nil {
					return nil, fmt.Errorf("effect %q: parameter %q: %w", spec.Kind, p, err)
				}
				spec.Params = append(spec.Params, v)
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Build creates the effect described by s.
func Build(s Spec, sampleRate int) (Effect, error) {
	// Missing or non-finite parameters take the default.
	getParam := func(idx int, def float64) float64 {
		if idx < len(s.Params) && !math.IsNaN(s.Params[idx]) && !math.IsInf(s.Params[idx], 0) {
			return s.Params[idx]
		}
		return def
	}
	switch s.Kind {
	case "bitcrush", "crush":
		return NewBitCrush(
			getParam(0, 8), // bits
			getParam(1, 1), // downsample
			getParam(2, 1), // wet
		)
	case "flange", "flanger":
		return NewFlanger(sampleRate,
			getParam(0, 3),   // delay ms
			getParam(1, 2),   // depth ms
			getParam(2, 0.5), // rate Hz
			getParam(3, 0.5), // feedback
			getParam(4, 0.5), // wet
		)
	case "filter", "lpf":
		return NewFilter(sampleRate,
			FilterMode(int(getParam(0, 0))), // mode
			getParam(1, 2000),               // cutoff Hz
			getParam(2, 0.707),              // q
		), nil
	case "chopper", "chop":
		return NewChopper(sampleRate,
			getParam(0, 16),  // rate Hz
			getParam(1, 0.5), // duty
			getParam(2, 1),   // smoothing ms
			getParam(3, 1),   // wet
		), nil
	case "delay", "echo":
		return NewDelay(sampleRate,
			getParam(0, 60),  // delay ms
			getParam(1, 0.4), // feedback
			getParam(2, 0.4), // wet
		), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEffect, s.Kind)
}
