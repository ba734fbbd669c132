package grainsynth

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cbegin/grainsynth-go/internal/arena"
	"github.com/cbegin/grainsynth-go/internal/effects"
	"github.com/cbegin/grainsynth-go/internal/grain"
	"github.com/cbegin/grainsynth-go/internal/scheduler"
	"github.com/cbegin/grainsynth-go/internal/voice"
)

// DefaultTickInterval is the Run period when none is given.
const DefaultTickInterval = time.Second / 60

// renderJob is one claimed slot and everything needed to fill it.
type renderJob struct {
	d       grain.Descriptor
	slot    *voice.Slot
	src     []float64
	chain   *effects.Chain
	emitter arena.Handle
	n       int
}

// FadeOut ramps a continuous emitter to silence over d, starting at the next
// schedulable sample, then stops it.
func (e *Engine) FadeOut(id EmitterID, d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	em, err := e.emitter(id)
	if err != nil {
		return err
	}
	if !em.playing {
		return nil
	}
	em.fadeStart = e.mixer.Clock() + e.latency
	em.fadeEnd = em.fadeStart + e.cfg.samples(d)
	if em.fadeEnd <= em.fadeStart {
		em.playing = false
		em.fadeStart, em.fadeEnd = 0, 0
	}
	return nil
}

// Tick runs one simulation step against the current mixer clock:
// finished slots are recycled, voices are allocated, emitters schedule
// grains inside the queue window, stale grains are dropped, the rest render
// in parallel and are then published to the mixer in one pass.
func (e *Engine) Tick(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	clock := e.mixer.Clock()
	for _, v := range e.voices {
		v.Recycle()
	}

	e.allocate(clock)
	e.schedule(clock)
	e.claim(clock)
	if err := e.render(ctx); err != nil {
		for i := range e.jobs {
			e.jobs[i].slot.Abandon()
		}
		e.jobs = e.jobs[:0]
		return err
	}
	e.publish()
	e.stats.Ticks++
	return nil
}

// Run ticks every interval until ctx is done.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if err := e.Tick(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (e *Engine) allocate(clock int64) {
	e.hostBuf = e.hostBuf[:0]
	e.hosts.Each(func(_ arena.Handle, h *hostState) bool {
		h.Emitting = false
		e.hostBuf = append(e.hostBuf, &h.Host)
		return true
	})
	e.emitters.Each(func(_ arena.Handle, em *emitterState) bool {
		if !em.playing {
			return true
		}
		if h, ok := e.hosts.Get(em.host); ok {
			h.Emitting = true
		}
		return true
	})
	rep := e.alloc.Update(e.listener, e.hostBuf, clock)
	e.stats.VoicesAdmitted += uint64(rep.Admitted)
	e.stats.VoicesReleased += uint64(rep.Released)
	e.stats.UnmetHosts = rep.Unmet
}

func (e *Engine) schedule(clock int64) {
	lookahead := clock + e.latency
	res := scheduler.Result{Grains: e.pending.Grains[:0]}

	e.emitters.Each(func(eh arena.Handle, em *emitterState) bool {
		if !em.playing {
			return true
		}
		h, ok := e.hosts.Get(em.host)
		if !ok {
			em.playing = false
			return true
		}
		if h.Voice == NoVoice {
			// Out of range or no voice free. Bursts are lost; continuous
			// emitters pick up again once a voice is bound.
			if em.sched.Kind == Burst {
				em.playing = false
			}
			return true
		}
		src, ok := e.sources.Get(em.source)
		if !ok {
			em.playing = false
			return true
		}
		in := scheduler.Input{
			SampleRate:       float64(e.cfg.SampleRate),
			SourceRate:       float64((*src).SampleRate),
			SourceLen:        (*src).Len(),
			Source:           em.source,
			Emitter:          eh,
			Voice:            h.Voice,
			Lookahead:        lookahead,
			Window:           e.queue,
			MaxGrains:        e.cfg.MaxGrainsPerTick,
			SilenceThreshold: e.cfg.SilenceThreshold,
			Attenuation:      e.attenuation(h),
			FadeStart:        em.fadeStart,
			FadeEnd:          em.fadeEnd,
			Tail:             em.tail,
			Capacity:         e.capacity,
			Interaction:      em.interaction,
		}

		before := len(res.Grains)
		switch em.sched.Kind {
		case Continuous:
			res = scheduler.ScheduleContinuous(res, &em.sched, &em.params, em.noises, in)
			if em.fadeEnd > em.fadeStart && lookahead >= em.fadeEnd {
				em.playing = false
				em.fadeStart, em.fadeEnd = 0, 0
				e.logger.Debug("emitter faded out", "emitter", int64(eh))
			}
		case Burst:
			res = scheduler.ScheduleBurst(res, &em.params, em.noises, in, lookahead)
			em.playing = false
		}
		e.stats.GrainsScheduled += uint64(len(res.Grains) - before)
		if res.CapHit {
			e.stats.GrainCapHits++
			e.logger.Warn("grain cap hit", "emitter", int64(eh), "max", e.cfg.MaxGrainsPerTick)
		}
		return true
	})
	e.pending = res
}

// attenuation is the distance gain of a host. Dedicated hosts play at unity.
func (e *Engine) attenuation(h *hostState) float64 {
	if h.Dedicated {
		return 1
	}
	return e.alloc.Attenuation(h.Position.Dist(e.listener))
}

// claim drops stale grains and takes a slot on the grain's voice for the
// rest. Grains that find no free slot are dropped.
func (e *Engine) claim(clock int64) {
	e.jobs = e.jobs[:0]
	for _, d := range e.pending.Grains {
		if d.StartSample < clock-e.discard {
			e.stats.StaleDiscarded++
			e.logger.Debug("stale grain discarded", "start", d.StartSample, "clock", clock)
			continue
		}
		if d.Voice < 0 || d.Voice >= len(e.voices) {
			continue
		}
		em, ok := e.emitters.Get(d.Emitter)
		if !ok {
			continue
		}
		src, ok := e.sources.Get(d.Source)
		if !ok {
			continue
		}
		slot := e.voices[d.Voice].ClaimSlot()
		if slot == nil {
			e.stats.SlotsExhausted++
			continue
		}
		e.jobs = append(e.jobs, renderJob{
			d:       d,
			slot:    slot,
			src:     (*src).Samples,
			chain:   em.chain,
			emitter: d.Emitter,
		})
	}
}

// render fills every claimed slot on a bounded worker pool. Each job owns
// its slot, so jobs share nothing but read-only inputs.
func (e *Engine) render(ctx context.Context) error {
	if len(e.jobs) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.RenderWorkers)
	for i := range e.jobs {
		j := &e.jobs[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			j.n = grain.Render(j.slot.Buffer, j.d, j.src, e.window)
			if j.chain.Len() > 0 {
				sp := e.scratch.Get().(*[]float64)
				j.chain.Process(j.slot.Buffer[:j.n], (*sp)[:j.n])
				e.scratch.Put(sp)
			}
			return nil
		})
	}
	return g.Wait()
}

// publish hands every rendered slot to the mixer, then reports it.
func (e *Engine) publish() {
	for i := range e.jobs {
		j := &e.jobs[i]
		j.slot.Publish(j.n, j.d.StartSample)
	}
	e.stats.GrainsPublished += uint64(len(e.jobs))
	for i := range e.jobs {
		e.emit(&e.jobs[i])
	}
	e.jobs = e.jobs[:0]
}
