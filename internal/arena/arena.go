package arena

// Handle is a stable reference into an Arena. The low 32 bits hold the slot
// index, the high bits a generation counter so a handle to a removed entry
// never resolves to whatever reuses its slot.
type Handle int64

// Invalid is never returned by Insert.
const Invalid Handle = -1

func makeHandle(index int, gen uint32) Handle {
	return Handle(int64(gen)<<32 | int64(uint32(index)))
}

// Index returns the slot index of h.
func (h Handle) Index() int { return int(uint32(h)) }

func (h Handle) generation() uint32 { return uint32(int64(h) >> 32) }

type entry[T any] struct {
	value T
	gen   uint32
	live  bool
}

// Arena stores values in a flat slice and recycles removed slots through a
// free list. It is not safe for concurrent use.
type Arena[T any] struct {
	entries []entry[T]
	free    []int
	count   int
}

// New returns an arena with room for capacity entries before growing.
func New[T any](capacity int) *Arena[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Arena[T]{entries: make([]entry[T], 0, capacity)}
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	var idx int
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = len(a.entries)
		a.entries = append(a.entries, entry[T]{})
	}
	e := &a.entries[idx]
	e.gen++
	e.value = v
	e.live = true
	a.count++
	return makeHandle(idx, e.gen)
}

// Get returns a pointer to the value for h. The pointer is valid until the
// next Insert.
func (a *Arena[T]) Get(h Handle) (*T, bool) {
	idx := h.Index()
	if h < 0 || idx >= len(a.entries) {
		return nil, false
	}
	e := &a.entries[idx]
	if !e.live || e.gen != h.generation() {
		return nil, false
	}
	return &e.value, true
}

// Remove frees the slot for h. It reports whether h was live.
func (a *Arena[T]) Remove(h Handle) bool {
	if _, ok := a.Get(h); !ok {
		return false
	}
	idx := h.Index()
	var zero T
	a.entries[idx].value = zero
	a.entries[idx].live = false
	a.free = append(a.free, idx)
	a.count--
	return true
}

// Len returns the number of live entries.
func (a *Arena[T]) Len() int { return a.count }

// Each calls fn for every live entry in slot order. Returning false stops
// the walk.
func (a *Arena[T]) Each(fn func(h Handle, v *T) bool) {
	for i := range a.entries {
		e := &a.entries[i]
		if !e.live {
			continue
		}
		if !fn(makeHandle(i, e.gen), &e.value) {
			return
		}
	}
}
