package guard

import "github.com/krzyswit2/guardheap/internal/vmmap"

// reserve is the bootstrap carve-out: a fixed region stolen from the
// platform early-memory source before the virtual-memory manager is
// ready, consumed by a page-granular bump cursor. Carved addresses are
// never returned; memory handed out here is leaked by design, since
// nothing that exists this early can reclaim it.
type reserve struct {
	base uintptr
	cur  uintptr
	end  uintptr
}

// newReserve steals a page-aligned region of size bytes. Having no
// early memory source at all is fatal; the guard layer cannot run
// without a bootstrap reserve.
func newReserve(size uintptr) *reserve {
	size = roundPage(size)

	base, err := vmmap.Steal(size)
	if err != nil {
		fatalf("reserve: no early memory source for %#x bytes: %v", size, err)
	}

	return &reserve{base: base, cur: base, end: base + size}
}

// carve bumps the cursor by n rounded up to a page multiple and returns
// the carved base address. Bootstrap is single threaded, so no locking.
// Exhaustion is fatal: continuing without backing store would mask the
// corruption this layer exists to catch.
func (r *reserve) carve(n uintptr) uintptr {
	n = roundPage(n)
	if r.end-r.cur < n {
		fatalf("reserve exhausted: need %#x bytes, %#x remain", n, r.end-r.cur)
	}

	addr := r.cur
	r.cur += n

	return addr
}

// remaining reports the uncarved byte count.
func (r *reserve) remaining() uintptr {
	return r.end - r.cur
}

// contains reports whether addr lies inside the reserve region.
func (r *reserve) contains(addr uintptr) bool {
	return addr >= r.base && addr < r.end
}
