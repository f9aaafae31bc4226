// Package vmmap adapts the host virtual-memory facilities for the guard
// layer: page-granular anonymous mappings with an optional guard page at
// either end, protection changes on live ranges, and unmapping. All
// sizes are in bytes and must be page multiples.
package vmmap

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Prot describes the access protection applied to a range.
type Prot int

const (
	ProtNone Prot = iota
	ProtRead
	ProtReadWrite
)

// GuardPlacement selects where the guard page of a mapping sits.
type GuardPlacement int

const (
	GuardNone GuardPlacement = iota
	GuardFirst
	GuardLast
)

// Mapper is the boundary the guard layer consumes. Map returns the base
// address of the whole mapping, guard page included and already made
// inaccessible. Ready reports whether the manager is initialized; before
// that, callers must fall back to their bootstrap memory source.
type Mapper interface {
	Ready() bool
	Map(size uintptr, guard GuardPlacement) (uintptr, error)
	Protect(base, size uintptr, prot Prot) error
	Unmap(base, size uintptr) error
}

// Steal supplies early bootstrap memory straight from the platform
// mapping primitive, before any Manager is ready. Stolen ranges are
// page aligned, zeroed, and never returned; callers that need
// reclamation must wait for a Manager.
func Steal(size uintptr) (uintptr, error) {
	size = (size + pageSize - 1) &^ (pageSize - 1)

	data, err := mmapAnon(int(size))
	if err != nil {
		return 0, fmt.Errorf("vmmap: steal %#x bytes: %w", size, err)
	}

	return uintptr(unsafe.Pointer(unsafe.SliceData(data))), nil
}

// Manager implements Mapper over the host mmap/mprotect/munmap calls.
// It keeps a registry of live mappings keyed by base address so that
// Unmap can return the exact backing range to the host.
type Manager struct {
	ready    atomic.Bool
	mu       sync.Mutex
	mappings map[uintptr][]byte
}

// NewManager returns a Manager in the not-ready state. SetReady is
// called once early bootstrap hands over to the real memory system.
func NewManager() *Manager {
	return &Manager{mappings: make(map[uintptr][]byte)}
}

// SetReady marks the manager usable. Mappings requested before this
// point fail; the guard layer carves from its reserve instead.
func (m *Manager) SetReady() { m.ready.Store(true) }

// Ready reports whether the manager accepts mapping requests.
func (m *Manager) Ready() bool { return m.ready.Load() }

// Map allocates an anonymous read-write mapping of size bytes and, when
// a guard placement is given, revokes all access to the first or last
// page of it.
func (m *Manager) Map(size uintptr, guard GuardPlacement) (uintptr, error) {
	if !m.Ready() {
		return 0, fmt.Errorf("vmmap: manager not ready")
	}
	if size == 0 || size%pageSize != 0 {
		return 0, fmt.Errorf("vmmap: size %#x not a page multiple", size)
	}

	data, err := mmapAnon(int(size))
	if err != nil {
		return 0, fmt.Errorf("vmmap: map %#x bytes: %w", size, err)
	}

	base := uintptr(unsafe.Pointer(unsafe.SliceData(data)))

	switch guard {
	case GuardFirst:
		err = mprotectRange(base, pageSize, ProtNone)
	case GuardLast:
		err = mprotectRange(base+size-pageSize, pageSize, ProtNone)
	}
	if err != nil {
		munmapRange(data)
		return 0, fmt.Errorf("vmmap: guard page protect: %w", err)
	}

	m.mu.Lock()
	m.mappings[base] = data
	m.mu.Unlock()

	return base, nil
}

// Protect changes the protection of size bytes at base. The range must
// lie inside a single live mapping.
func (m *Manager) Protect(base, size uintptr, prot Prot) error {
	if err := mprotectRange(base, size, prot); err != nil {
		return fmt.Errorf("vmmap: protect %#x+%#x: %w", base, size, err)
	}

	return nil
}

// Unmap releases the mapping previously returned by Map. base must be
// the mapping base and size its full extent.
func (m *Manager) Unmap(base, size uintptr) error {
	m.mu.Lock()
	data, ok := m.mappings[base]
	if ok && uintptr(len(data)) == size {
		delete(m.mappings, base)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("vmmap: unmap of unknown base %#x", base)
	}
	if uintptr(len(data)) != size {
		return fmt.Errorf("vmmap: unmap size %#x does not cover mapping %#x", size, len(data))
	}

	if err := munmapRange(data); err != nil {
		return fmt.Errorf("vmmap: unmap %#x+%#x: %w", base, size, err)
	}

	return nil
}

// Live returns the number of mappings currently registered.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.mappings)
}
