// Package guard is a guard-mode debugging layer for pooled allocators.
// Targeted pool elements get their own page-granular mapping with an
// adjoining guard page, a signed header, and a poison fill, so
// use-after-free, overruns, underruns, double frees and cross-pool frees
// fault or abort immediately instead of corrupting shared allocator
// pages. Freed ranges can linger in a per-zone quarantine cache to widen
// the use-after-free detection window.
//
// Detected corruption is always process fatal. A debug detector that
// tolerates corruption defeats its purpose, so none of the fatal paths
// here are convertible into recoverable errors.
package guard

import (
	"fmt"
	"unsafe"

	"github.com/krzyswit2/guardheap/internal/vmmap"
)

var pageSize = vmmap.PageSize()

func roundPage(n uintptr) uintptr {
	return (n + pageSize - 1) &^ (pageSize - 1)
}

// fatalf aborts the process with a diagnostic. It never returns.
func fatalf(format string, v ...any) {
	panic("guard: " + fmt.Sprintf(format, v...))
}

// Allocator is the guard layer instance. Configuration is fixed at
// construction; per-zone state is created by ZoneInit.
type Allocator struct {
	cfg        Config
	mapper     vmmap.Mapper
	res        *reserve
	preemption func() int
	ct         counters
}

// Option configures an Allocator at construction.
type Option func(*Allocator)

// WithPreemptionCheck installs the scheduling-context probe consulted
// before any operation that may block. A non-zero return means the
// calling context must not block.
func WithPreemptionCheck(fn func() int) Option {
	return func(a *Allocator) { a.preemption = fn }
}

// New builds the guard layer over the given mapper. When guarding is
// enabled the bootstrap reserve is pre-allocated immediately, since by
// the time the first early allocation arrives no other memory source
// exists yet.
func New(cfg Config, mapper vmmap.Mapper, opts ...Option) *Allocator {
	a := &Allocator{
		cfg:        cfg,
		mapper:     mapper,
		preemption: func() int { return 0 },
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.cfg.Enabled {
		if a.cfg.ReserveSize == 0 {
			a.cfg.ReserveSize = reserveSizeDefault
		}
		a.res = newReserve(a.cfg.ReserveSize)
	}

	return a
}

// Enabled reports whether the guard layer is active at all.
func (a *Allocator) Enabled() bool {
	return a.cfg.Enabled
}

// Config returns the immutable configuration.
func (a *Allocator) Config() Config {
	return a.cfg
}

// Stats snapshots the global counters.
func (a *Allocator) Stats() Stats {
	return a.ct.snapshot()
}

// ReserveRemaining reports the uncarved bootstrap reserve bytes.
func (a *Allocator) ReserveRemaining() uintptr {
	if a.res == nil {
		return 0
	}

	return a.res.remaining()
}

// targets reports whether a zone's elements are guarded: size in the
// configured range and the zone not exempt.
func (a *Allocator) targets(z *Zone) bool {
	return a.cfg.Enabled &&
		z.elemSize >= a.cfg.MinSize &&
		z.elemSize <= a.cfg.MaxSize &&
		!z.Exempt()
}

// ZoneInit allocates and zeroes the zone's free cache storage if the
// zone is targeted and the cache is enabled. Before the mapper is ready
// the storage is carved from the bootstrap reserve. Call once per zone
// lifetime; a second call leaks the first cache allocation.
func (a *Allocator) ZoneInit(z *Zone) {
	if !a.cfg.Enabled {
		return
	}

	z.cache = nil

	if a.cfg.FreeCacheEntries == 0 || !a.targets(z) {
		return
	}

	size := roundPage(uintptr(a.cfg.FreeCacheEntries) * unsafe.Sizeof(uintptr(0)))

	var base uintptr
	if !a.mapper.Ready() {
		base = a.res.carve(size)
	} else {
		b, err := a.mapper.Map(size, vmmap.GuardNone)
		if err != nil {
			fatalf("ZoneInit: map %#x bytes for zone %q free cache: %v", size, z.name, err)
		}
		base = b
	}

	clear(unsafe.Slice((*byte)(unsafe.Pointer(base)), size))
	z.cache = newEvictRing(base, a.cfg.FreeCacheEntries)
}

// Reconfigure re-evaluates a zone after a targeting change. Extension
// point; nothing to do yet beyond the exemption flag the zone carries
// itself.
func (a *Allocator) Reconfigure(z *Zone) {}

// Allocate builds a guarded allocation for one element of z and returns
// its usable address, or 0 when the request is declined: the zone is not
// targeted, or the calling context must not block and canBlock is false.
// A 0 return means the pool should satisfy the request on its normal
// path. Mapping failure is fatal; there is no partial-success state.
func (a *Allocator) Allocate(z *Zone, canBlock bool) uintptr {
	if !a.targets(z) {
		return 0
	}

	if a.preemption() != 0 {
		if !canBlock {
			addCounter(&a.ct.blockedAllocs, 1)
			return 0
		}
		// Proceeding can block a context that should not; record it
		// for diagnostics.
		addCounter(&a.ct.elevatedAllocs, 1)
	}

	rounded := roundPage(z.elemSize + headerSize)
	early := !a.mapper.Ready()

	var base uintptr
	if early {
		// No guard page can be protected this early; the extra page
		// is simply wasted.
		base = a.res.carve(rounded + pageSize)
		addCounter(&a.ct.earlyAllocated, uint64(rounded))
	} else {
		placement := vmmap.GuardLast
		if a.cfg.Orientation == GuardLeading {
			placement = vmmap.GuardFirst
		}

		b, err := a.mapper.Map(rounded+pageSize, placement)
		if err != nil {
			fatalf("Allocate: map %#x bytes for zone %q: %v", rounded+pageSize, z.name, err)
		}
		base = b
	}

	r := layoutRange(base, z.elemSize, rounded, a.cfg.Orientation)

	// Poison the whole rounded region so uninitialized reads and
	// overruns into the rounding padding are visible on inspection.
	fill := unsafe.Slice((*byte)(unsafe.Pointer(r.fillBase())), rounded)
	for i := range fill {
		fill[i] = a.cfg.FillByte
	}

	hdr := r.header()
	if early {
		hdr.owner = ownerUnowned
	} else {
		hdr.owner = z.id
	}
	hdr.size = uint32(z.elemSize)
	hdr.sig = headerSignature

	z.mu.Lock()
	z.count++
	z.sumCount++
	z.curSize += rounded
	z.mu.Unlock()

	addCounter(&a.ct.allocated, uint64(rounded))
	addCounter(&a.ct.wasted, uint64(rounded-z.elemSize))

	return r.elem
}

// Free validates and retires a guarded element. The true return means
// this layer owned and fully processed the address; the pool must not
// touch it again. A false return means the zone is not targeted and the
// pool should free the address on its normal path.
//
// With a free cache, the freed range is quarantined (unmapped-on-access
// or write-protected per configuration) and the ring's displaced
// occupant, if any, is genuinely reclaimed this cycle. With no cache the
// freed range is reclaimed immediately.
func (a *Allocator) Free(z *Zone, addr uintptr) bool {
	if !a.targets(z) {
		return false
	}

	rounded := roundPage(z.elemSize + headerSize)
	r := rangeForElem(addr, z.elemSize, rounded, a.cfg.Orientation)

	if r.base&(pageSize-1) != 0 {
		fatalf("Free: misaligned range base %#x for element %#x in zone %q", r.base, addr, z.name)
	}

	hdr := r.header()

	if a.cfg.ConsistencyChecks {
		if hdr.sig != headerSignature {
			fatalf("Free: signature mismatch for element %#x: expected %#x, found %#x",
				addr, uint32(headerSignature), hdr.sig)
		}
		if hdr.owner != z.id && hdr.owner != ownerUnowned {
			fatalf("Free: zone mismatch or over/underflow for element %#x: freeing zone %q (id %d), recorded owner id %d",
				addr, z.name, z.id, hdr.owner)
		}
		// Partially redundant given the owner check, but flags header
		// corruption the owner field survived.
		if uintptr(hdr.size) != z.elemSize {
			fatalf("Free: size mismatch for element %#x in zone %q: recorded %#x, element size %#x",
				addr, z.name, hdr.size, z.elemSize)
		}
	}

	if !a.mapper.Ready() || hdr.owner == ownerUnowned {
		// Reserve-carved memory has no reclamation path; leak it and
		// count the event.
		addCounter(&a.ct.earlyFreed, uint64(rounded))
		return true
	}

	if a.preemption() != 0 {
		addCounter(&a.ct.elevatedFrees, 1)
	}

	var freeAddr uintptr
	if z.cache != nil {
		prot := vmmap.ProtNone
		if a.cfg.Protection == ProtectReadOnly {
			prot = vmmap.ProtRead
		}

		if err := a.mapper.Protect(r.base, r.span(), prot); err != nil {
			fatalf("Free: protect %#x+%#x: %v", r.base, r.span(), err)
		}
	} else {
		freeAddr = r.base
	}

	z.mu.Lock()
	if z.cache != nil {
		freeAddr = z.cache.insertAndEvict(r.base)
	}
	if freeAddr != 0 {
		z.count--
		z.curSize -= rounded
	}
	z.mu.Unlock()

	if freeAddr != 0 {
		// Unmapping may block; never under the zone lock.
		if err := a.mapper.Unmap(freeAddr, rounded+pageSize); err != nil {
			fatalf("Free: unmap %#x+%#x: %v", freeAddr, rounded+pageSize, err)
		}

		addCounter(&a.ct.freed, uint64(rounded))
		subCounter(&a.ct.wasted, uint64(rounded-z.elemSize))
	}

	return true
}
