package guard

import "sync/atomic"

// Stats is a point-in-time snapshot of the global guard counters. The
// counters are eventually-consistent diagnostics; no invariant depends
// on their instantaneous values.
type Stats struct {
	// Bytes of rounded guarded capacity allocated and genuinely
	// reclaimed. Allocated includes early reserve carve-outs, which
	// are never reclaimed and so remain counted forever.
	Allocated uint64
	Freed     uint64

	// Rounded capacity minus useful element bytes, for currently
	// mapped elements. Shrinks as elements are truly reclaimed.
	Wasted uint64

	// Bytes allocated from / freed back into the bootstrap-reserve
	// leak path.
	EarlyAllocated uint64
	EarlyFreed     uint64

	// Allocations declined because blocking was disallowed in a
	// non-blockable context, and operations that proceeded anyway at
	// elevated preemption.
	BlockedAllocs  uint64
	ElevatedAllocs uint64
	ElevatedFrees  uint64
}

type counters struct {
	allocated      uint64
	freed          uint64
	wasted         uint64
	earlyAllocated uint64
	earlyFreed     uint64
	blockedAllocs  uint64
	elevatedAllocs uint64
	elevatedFrees  uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Allocated:      atomic.LoadUint64(&c.allocated),
		Freed:          atomic.LoadUint64(&c.freed),
		Wasted:         atomic.LoadUint64(&c.wasted),
		EarlyAllocated: atomic.LoadUint64(&c.earlyAllocated),
		EarlyFreed:     atomic.LoadUint64(&c.earlyFreed),
		BlockedAllocs:  atomic.LoadUint64(&c.blockedAllocs),
		ElevatedAllocs: atomic.LoadUint64(&c.elevatedAllocs),
		ElevatedFrees:  atomic.LoadUint64(&c.elevatedFrees),
	}
}

func addCounter(field *uint64, n uint64) {
	atomic.AddUint64(field, n)
}

func subCounter(field *uint64, n uint64) {
	atomic.AddUint64(field, ^(n - 1))
}
