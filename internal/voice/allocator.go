package voice

import (
	"log/slog"
	"math"
)

// NoVoice marks a host that is not bound to any voice.
const NoVoice = -1

// Host is the allocator's view of an emitting scene object.
type Host struct {
	Position Vec3
	// Emitting is false for hosts whose emitters are all idle; they give up
	// their voice like hosts out of range.
	Emitting  bool
	Voice     int
	InRange   bool
	Dedicated bool // bound to a reserved voice, never reallocated
}

// Config tunes the allocator.
type Config struct {
	ListenerRadius float64
	AttachRadius   float64
	// MaxAdmissions bounds how many pooled voices become active per update.
	// Zero admits one voice per unmet host.
	MaxAdmissions int
	// Linger keeps an active voice with no hosts for this many samples
	// before pooling it. Zero pools immediately.
	Linger          int64
	RolloffExponent float64
}

// Report summarises one update.
type Report struct {
	Admitted int
	Released int
	Unmet    int // in-range hosts left without a voice
}

// Allocator binds hosts to a fixed pool of voices by listener proximity.
// It is driven from the simulation goroutine only.
type Allocator struct {
	cfg    Config
	voices []*Voice
	logger *slog.Logger
}

// NewAllocator manages voices. A nil logger discards output.
func NewAllocator(cfg Config, voices []*Voice, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Allocator{cfg: cfg, voices: voices, logger: logger}
}

// SetConfig replaces the tuning values.
func (a *Allocator) SetConfig(cfg Config) { a.cfg = cfg }

// Voices returns the managed pool.
func (a *Allocator) Voices() []*Voice { return a.voices }

// Reserve takes a pooled voice out of the pool for a dedicated host.
func (a *Allocator) Reserve(clock int64) (int, bool) {
	for i, v := range a.voices {
		if v.State == Pooled && !v.Dedicated {
			v.State = Active
			v.Dedicated = true
			v.AttachedCount = 1
			v.LastActive = clock
			a.logger.Debug("voice reserved", "voice", i)
			return i, true
		}
	}
	return NoVoice, false
}

// Unreserve returns a dedicated voice to the pool.
func (a *Allocator) Unreserve(i int) {
	if i < 0 || i >= len(a.voices) {
		return
	}
	v := a.voices[i]
	v.Dedicated = false
	v.State = Pooled
	v.AttachedCount = 0
}

// Attenuation maps listener distance onto a gain in [0, 1].
func (a *Allocator) Attenuation(dist float64) float64 {
	r := a.cfg.ListenerRadius
	if r <= 0 || math.IsNaN(dist) {
		return 0
	}
	g := 1 - dist/r
	if g <= 0 {
		return 0
	}
	if g > 1 {
		g = 1
	}
	if e := a.cfg.RolloffExponent; e > 0 && e != 1 {
		g = math.Pow(g, e)
	}
	return g
}

// Update runs one allocation pass at clock:
//
//  1. hosts beyond the listener radius, or not emitting, are detached
//  2. active voices recount their hosts and move to the hosts' centroid;
//     an empty voice is pooled once its linger time has passed
//  3. unattached hosts join the nearest active voice within the attach
//     radius
//  4. hosts still unattached admit a pooled voice, up to MaxAdmissions
//
// Ties go to the lowest voice index. Dedicated hosts are left alone.
func (a *Allocator) Update(listener Vec3, hosts []*Host, clock int64) Report {
	var rep Report

	for _, h := range hosts {
		if h.Dedicated {
			if h.Voice >= 0 && h.Voice < len(a.voices) {
				a.voices[h.Voice].Position = h.Position
				a.voices[h.Voice].LastActive = clock
			}
			continue
		}
		h.InRange = h.Emitting && h.Position.Dist(listener) <= a.cfg.ListenerRadius
		if !h.InRange {
			h.Voice = NoVoice
		}
	}

	a.recount(hosts, clock, &rep)

	for _, h := range hosts {
		if h.Dedicated || !h.InRange || h.Voice != NoVoice {
			continue
		}
		if i := a.nearest(h.Position); i != NoVoice {
			a.bind(h, i, clock)
		}
	}

	admitted := 0
	for _, h := range hosts {
		if h.Dedicated || !h.InRange || h.Voice != NoVoice {
			continue
		}
		// A voice admitted for an earlier host may already be close enough.
		if i := a.nearest(h.Position); i != NoVoice {
			a.bind(h, i, clock)
			continue
		}
		if a.cfg.MaxAdmissions > 0 && admitted >= a.cfg.MaxAdmissions {
			rep.Unmet++
			continue
		}
		i := a.firstPooled()
		if i == NoVoice {
			rep.Unmet++
			continue
		}
		v := a.voices[i]
		v.State = Active
		v.Position = h.Position
		v.AttachedCount = 0
		a.bind(h, i, clock)
		admitted++
		a.logger.Debug("voice admitted", "voice", i, "clock", clock)
	}
	rep.Admitted = admitted
	return rep
}

func (a *Allocator) recount(hosts []*Host, clock int64, rep *Report) {
	for i, v := range a.voices {
		if v.State != Active || v.Dedicated {
			continue
		}
		var sum Vec3
		count := 0
		for _, h := range hosts {
			if h.Dedicated || h.Voice != i {
				continue
			}
			sum.X += h.Position.X
			sum.Y += h.Position.Y
			sum.Z += h.Position.Z
			count++
		}
		v.AttachedCount = count
		if count > 0 {
			n := float64(count)
			v.Position = Vec3{sum.X / n, sum.Y / n, sum.Z / n}
			v.LastActive = clock
			continue
		}
		if clock-v.LastActive >= a.cfg.Linger {
			v.State = Pooled
			rep.Released++
			a.logger.Debug("voice released", "voice", i, "clock", clock)
		}
	}
}

// nearest returns the closest shared active voice within the attach radius.
func (a *Allocator) nearest(p Vec3) int {
	best := NoVoice
	bestDist := math.Inf(1)
	for i, v := range a.voices {
		if v.State != Active || v.Dedicated {
			continue
		}
		d := v.Position.Dist(p)
		if d <= a.cfg.AttachRadius && d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func (a *Allocator) firstPooled() int {
	for i, v := range a.voices {
		if v.State == Pooled && !v.Dedicated {
			return i
		}
	}
	return NoVoice
}

func (a *Allocator) bind(h *Host, i int, clock int64) {
	h.Voice = i
	v := a.voices[i]
	v.AttachedCount++
	v.LastActive = clock
}
