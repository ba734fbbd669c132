package grainsynth

import (
	"github.com/cbegin/grainsynth-go/internal/monitor"
	"github.com/cbegin/grainsynth-go/internal/voice"
)

// GrainSummary is the level and spectral summary attached to GrainEvents.
type GrainSummary = monitor.Summary

// GrainEvent is sent from Watch for every grain handed to a voice.
type GrainEvent struct {
	Emitter     EmitterID
	Voice       int
	StartSample int64 // clock sample the grain starts playing on
	Duration    int
	Tail        int
	PingPong    bool
	// Samples is a copy of the rendered buffer including the effect tail.
	Samples []float64
	Summary GrainSummary
}

// Stats are diagnostic counters. Counts are totals since NewEngine.
type Stats struct {
	Clock        int64
	Ticks        uint64
	Hosts        int
	Emitters     int
	ActiveVoices int
	BusySlots    int
	UnmetHosts   int

	GrainsScheduled   uint64
	GrainsPublished   uint64
	StaleDiscarded    uint64
	SlotsExhausted    uint64
	GrainCapHits      uint64
	TriggersDebounced uint64
	VoicesAdmitted    uint64
	VoicesReleased    uint64
	EventsDropped     uint64

	Peak float64 // largest output sample of the last mixer block
}

// Stats returns a snapshot of the diagnostic counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.Clock = e.mixer.Clock()
	s.Hosts = e.hosts.Len()
	s.Emitters = e.emitters.Len()
	s.Peak = e.mixer.Peak()
	for _, v := range e.voices {
		if v.State == voice.Active {
			s.ActiveVoices++
		}
		s.BusySlots += v.Busy()
	}
	return s
}

// Watch returns a channel that receives a GrainEvent per published grain.
//
// The channel is buffered (cap 64); events are dropped while it is full, so
// receive in a goroutine. Only the most recent Watch() channel receives
// events.
func (e *Engine) Watch() <-chan GrainEvent {
	ch := make(chan GrainEvent, 64)
	e.eventChMu.Lock()
	e.eventCh = ch
	e.eventChMu.Unlock()
	return ch
}

func (e *Engine) watching() bool {
	e.eventChMu.Lock()
	defer e.eventChMu.Unlock()
	return e.eventCh != nil
}

// emit builds and sends the event for a published job. Nothing is copied or
// analysed unless someone is watching.
func (e *Engine) emit(j *renderJob) {
	if !e.watching() {
		return
	}
	buf := make([]float64, j.n)
	copy(buf, j.slot.Buffer[:j.n])
	ev := GrainEvent{
		Emitter:     EmitterID(j.emitter),
		Voice:       j.d.Voice,
		StartSample: j.d.StartSample,
		Duration:    j.d.DurationSamples,
		Tail:        j.n - min(j.d.DurationSamples, j.n),
		PingPong:    j.d.PingPong,
		Samples:     buf,
	}
	if sum, err := e.analyzer.Analyze(buf); err == nil {
		ev.Summary = sum
	} else {
		e.logger.Debug("grain analysis failed", "err", err)
	}
	e.sendEvent(ev)
}

func (e *Engine) sendEvent(ev GrainEvent) {
	e.eventChMu.Lock()
	ch := e.eventCh
	e.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			e.stats.EventsDropped++
		}
	}
}
