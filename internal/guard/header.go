package guard

import "unsafe"

// headerSignature is the corruption sentinel stamped into every guarded
// allocation header. Any live or cached header whose signature differs
// has been overwritten, and that is always fatal.
const headerSignature = 0xABADCAFE

// ownerUnowned is the owner id of allocations carved from the bootstrap
// reserve before the memory manager was ready. Real zone ids start at 1.
const ownerUnowned = 0

// header is embedded in the guard-adjacent page of every guarded
// element: at the end of the element's padding in trailing mode, or
// immediately after the element (a footer) in leading mode.
type header struct {
	owner uint64
	size  uint32
	sig   uint32
}

const headerSize = unsafe.Sizeof(header{})

// headerAlign keeps the uint64 owner field naturally aligned even when
// the element size is not; misaligned header words fault on
// strict-alignment targets.
const headerAlign = unsafe.Alignof(header{})

// guardedRange locates the pieces of one guarded mapping for either
// orientation, so the leading/trailing duality is expressed in exactly
// one place: the page-aligned mapping base (guard page included), the
// usable element address, and the header/footer address.
type guardedRange struct {
	base    uintptr
	elem    uintptr
	hdr     uintptr
	rounded uintptr // roundPage(elemSize + headerSize)
	leading bool
}

// layoutRange computes the range for a freshly obtained mapping base.
func layoutRange(base, elemSize, rounded uintptr, o Orientation) guardedRange {
	r := guardedRange{base: base, rounded: rounded, leading: o == GuardLeading}

	if r.leading {
		// Guard page first; the element occupies the following page
		// with its footer at the first aligned address after it.
		r.elem = base + pageSize
		r.hdr = (r.elem + elemSize + headerAlign - 1) &^ (headerAlign - 1)
	} else {
		residue := rounded - elemSize
		r.elem = base + residue
		r.hdr = (r.elem - headerSize) &^ (headerAlign - 1)
	}

	return r
}

// rangeForElem reconstructs the range from the element address a caller
// hands back at free time.
func rangeForElem(elem, elemSize, rounded uintptr, o Orientation) guardedRange {
	r := guardedRange{elem: elem, rounded: rounded, leading: o == GuardLeading}

	if r.leading {
		r.hdr = (elem + elemSize + headerAlign - 1) &^ (headerAlign - 1)
		r.base = elem - pageSize
	} else {
		r.hdr = (elem - headerSize) &^ (headerAlign - 1)
		r.base = elem - (rounded - elemSize)
	}

	return r
}

// span is the total mapped footprint: the rounded usable region plus the
// guard page.
func (r guardedRange) span() uintptr {
	return r.rounded + pageSize
}

// fillBase is where the poison fill of rounded bytes starts: the mapping
// base in trailing mode, the element itself in leading mode.
func (r guardedRange) fillBase() uintptr {
	if r.leading {
		return r.elem
	}

	return r.base
}

// header overlays the header struct at its in-memory location.
func (r guardedRange) header() *header {
	return (*header)(unsafe.Pointer(r.hdr))
}
