package guard

import (
	"sync"
	"sync/atomic"
)

var zoneIDs uint64

// Zone is the slice of pool-allocator state this layer touches: the
// pool's identity, its fixed element size, the exemption flag, and the
// count/size bookkeeping updated under the zone lock. The pool itself
// (free lists, fast paths) lives outside this layer.
type Zone struct {
	name     string
	id       uint64
	elemSize uintptr
	exempt   atomic.Bool

	// mu protects count/size bookkeeping and the free cache ring. It
	// is held only for O(1) mutation, never across a mapping call.
	mu       sync.Mutex
	count    uint64
	sumCount uint64
	curSize  uintptr

	cache *evictRing
}

// NewZone registers a pool with the guard layer. Ids start at 1; id 0 is
// reserved for the unowned (bootstrap) header variant.
func NewZone(name string, elemSize uintptr) *Zone {
	return &Zone{
		name:     name,
		id:       atomic.AddUint64(&zoneIDs, 1),
		elemSize: elemSize,
	}
}

// Name returns the zone's diagnostic name.
func (z *Zone) Name() string { return z.name }

// ElemSize returns the zone's fixed element size.
func (z *Zone) ElemSize() uintptr { return z.elemSize }

// SetExempt flips the zone's guard exemption. This is the only targeting
// state that may change after configuration.
func (z *Zone) SetExempt(exempt bool) { z.exempt.Store(exempt) }

// Exempt reports whether the zone opted out of guarding.
func (z *Zone) Exempt() bool { return z.exempt.Load() }

// Counts returns the live element count, the cumulative allocation
// count, and the current guarded byte footprint.
func (z *Zone) Counts() (live, cumulative uint64, cur uintptr) {
	z.mu.Lock()
	defer z.mu.Unlock()

	return z.count, z.sumCount, z.curSize
}

// CachedFrees counts the addresses currently quarantined in the zone's
// free cache.
func (z *Zone) CachedFrees() int {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.cache == nil {
		return 0
	}

	return z.cache.cached()
}
