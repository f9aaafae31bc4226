package guard

import "unsafe"

// evictRing is the per-zone free cache: a fixed ring of quarantined
// range base addresses with overwrite-oldest insertion. Its storage is
// overlaid on raw carved or mapped memory rather than a Go allocation,
// since it may be created before any general allocator exists.
type evictRing struct {
	slots []uintptr
	index uint32
}

// newEvictRing overlays a ring of the given entry count on zeroed
// storage at base.
func newEvictRing(base uintptr, entries uint32) *evictRing {
	return &evictRing{
		slots: unsafe.Slice((*uintptr)(unsafe.Pointer(base)), entries),
	}
}

// insertAndEvict overwrites the oldest slot with addr and returns the
// address it displaced. A zero return means the slot had never been
// filled and nothing needs reclamation this cycle. Callers serialize
// through the zone lock; per-zone eviction order is therefore strict
// insertion order.
func (r *evictRing) insertAndEvict(addr uintptr) uintptr {
	if int(r.index) >= len(r.slots) {
		r.index = 0
	}

	evicted := r.slots[r.index]
	r.slots[r.index] = addr
	r.index++

	return evicted
}

// capacity is the fixed slot count.
func (r *evictRing) capacity() int {
	return len(r.slots)
}

// cached counts the currently occupied slots.
func (r *evictRing) cached() int {
	n := 0
	for _, s := range r.slots {
		if s != 0 {
			n++
		}
	}

	return n
}
