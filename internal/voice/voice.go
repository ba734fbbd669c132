// Package voice holds the fixed pool of mixing voices, their playback slots
// and the proximity allocator that binds hosts to voices.
package voice

import (
	"math"
	"sync/atomic"

	vecmath "github.com/cwbudde/algo-vecmath"
)

// Vec3 is a world position.
type Vec3 struct {
	X, Y, Z float64
}

// Dist returns the Euclidean distance between v and o.
func (v Vec3) Dist(o Vec3) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// State is the allocation state of a voice.
type State int

const (
	Pooled State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "pooled"
}

// SlotState is the handoff state of a playback slot. Transitions:
//
//	pooled -> claimed   producer, before rendering
//	claimed -> playing  producer, after the buffer is complete
//	playing -> finished mixer, after the last sample
//	finished -> pooled  producer, at the start of a tick
type SlotState int32

const (
	SlotPooled SlotState = iota
	SlotClaimed
	SlotPlaying
	SlotFinished
)

// Slot is one grain's playback buffer. Buffers are allocated once and never
// resized. While a slot is playing only the mixer touches it.
type Slot struct {
	state atomic.Int32

	Buffer []float64

	playhead int
	size     int
	start    int64
}

// State returns the current handoff state.
func (s *Slot) State() SlotState { return SlotState(s.state.Load()) }

// Claim moves a pooled slot to claimed. It fails if the slot is in use.
func (s *Slot) Claim() bool {
	return s.state.CompareAndSwap(int32(SlotPooled), int32(SlotClaimed))
}

// Publish hands a claimed slot to the mixer. The first size samples of
// Buffer start playing when the clock reaches start.
func (s *Slot) Publish(size int, start int64) {
	if size > len(s.Buffer) {
		size = len(s.Buffer)
	}
	s.playhead = 0
	s.size = size
	s.start = start
	s.state.Store(int32(SlotPlaying))
}

// Abandon returns a claimed slot to the pool without playing it.
func (s *Slot) Abandon() {
	s.state.CompareAndSwap(int32(SlotClaimed), int32(SlotPooled))
}

// Recycle returns a finished slot to the pool.
func (s *Slot) Recycle() bool {
	return s.state.CompareAndSwap(int32(SlotFinished), int32(SlotPooled))
}

// Mix adds the slot's contribution to bus, whose first element is the frame
// at clock. It does not allocate or block.
func (s *Slot) Mix(bus []float64, clock int64) {
	if s.State() != SlotPlaying {
		return
	}
	offset := 0
	if s.start > clock {
		ahead := s.start - clock
		if ahead >= int64(len(bus)) {
			return
		}
		offset = int(ahead)
	}
	count := len(bus) - offset
	if remaining := s.size - s.playhead; count > remaining {
		count = remaining
	}
	if count > 0 {
		vecmath.AddBlockInPlace(bus[offset:offset+count], s.Buffer[s.playhead:s.playhead+count])
		s.playhead += count
	}
	if s.playhead >= s.size {
		s.state.Store(int32(SlotFinished))
	}
}

// Voice is a bounded playback resource. Its allocation fields belong to the
// simulation goroutine; the mixer only reads Slots.
type Voice struct {
	ID            int
	State         State
	Position      Vec3
	AttachedCount int
	LastActive    int64
	Dedicated     bool

	Slots []Slot
}

// New returns a pooled voice with slots playback slots of capacity samples.
func New(id, slots, capacity int) *Voice {
	v := &Voice{ID: id, Slots: make([]Slot, slots)}
	for i := range v.Slots {
		v.Slots[i].Buffer = make([]float64, capacity)
	}
	return v
}

// ClaimSlot claims the first pooled slot, or returns nil if all are busy.
func (v *Voice) ClaimSlot() *Slot {
	for i := range v.Slots {
		if v.Slots[i].Claim() {
			return &v.Slots[i]
		}
	}
	return nil
}

// Recycle returns every finished slot to the pool and reports how many.
func (v *Voice) Recycle() int {
	n := 0
	for i := range v.Slots {
		if v.Slots[i].Recycle() {
			n++
		}
	}
	return n
}

// Busy returns the number of slots that are not pooled.
func (v *Voice) Busy() int {
	n := 0
	for i := range v.Slots {
		if v.Slots[i].State() != SlotPooled {
			n++
		}
	}
	return n
}
