//go:build unix

package vmmap

import (
	"testing"
	"unsafe"
)

func TestSteal(t *testing.T) {
	base, err := Steal(pageSize/2 + 1)
	if err != nil {
		t.Fatal(err)
	}
	if base&(pageSize-1) != 0 {
		t.Fatalf("stolen base %#x not page aligned", base)
	}

	// The request was rounded up to a writable full page.
	data := unsafe.Slice((*byte)(unsafe.Pointer(base)), pageSize)
	for i := range data {
		if data[i] != 0 {
			t.Fatalf("stolen byte %d is %#x, want zero", i, data[i])
		}
		data[i] = 0x5A
	}

	other, err := Steal(pageSize)
	if err != nil {
		t.Fatal(err)
	}
	if other == base {
		t.Fatal("second steal returned the same range")
	}
}

func TestManagerNotReady(t *testing.T) {
	m := NewManager()

	if m.Ready() {
		t.Fatal("fresh manager reports ready")
	}
	if _, err := m.Map(pageSize, GuardNone); err == nil {
		t.Fatal("Map succeeded before readiness")
	}
}

func TestManagerMapWriteUnmap(t *testing.T) {
	m := NewManager()
	m.SetReady()

	base, err := m.Map(2*pageSize, GuardNone)
	if err != nil {
		t.Fatal(err)
	}
	if base&(pageSize-1) != 0 {
		t.Fatalf("base %#x not page aligned", base)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(base)), 2*pageSize)
	for i := range data {
		data[i] = 0xA5
	}

	if m.Live() != 1 {
		t.Fatalf("live mappings %d, want 1", m.Live())
	}
	if err := m.Unmap(base, 2*pageSize); err != nil {
		t.Fatal(err)
	}
	if m.Live() != 0 {
		t.Fatalf("live mappings %d after unmap, want 0", m.Live())
	}
}

func TestManagerGuardPlacement(t *testing.T) {
	m := NewManager()
	m.SetReady()

	t.Run("Last", func(t *testing.T) {
		base, err := m.Map(2*pageSize, GuardLast)
		if err != nil {
			t.Fatal(err)
		}
		// The first page stays usable.
		*(*byte)(unsafe.Pointer(base)) = 1
		if err := m.Unmap(base, 2*pageSize); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("First", func(t *testing.T) {
		base, err := m.Map(2*pageSize, GuardFirst)
		if err != nil {
			t.Fatal(err)
		}
		// The page after the guard stays usable.
		*(*byte)(unsafe.Pointer(base + pageSize)) = 1
		if err := m.Unmap(base, 2*pageSize); err != nil {
			t.Fatal(err)
		}
	})
}

func TestManagerProtectCycle(t *testing.T) {
	m := NewManager()
	m.SetReady()

	base, err := m.Map(pageSize, GuardNone)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Protect(base, pageSize, ProtRead); err != nil {
		t.Fatal(err)
	}
	// Reads still work on a read-only quarantined page.
	_ = *(*byte)(unsafe.Pointer(base))

	if err := m.Protect(base, pageSize, ProtReadWrite); err != nil {
		t.Fatal(err)
	}
	*(*byte)(unsafe.Pointer(base)) = 7

	if err := m.Unmap(base, pageSize); err != nil {
		t.Fatal(err)
	}
}

func TestManagerRejectsBadRequests(t *testing.T) {
	m := NewManager()
	m.SetReady()

	if _, err := m.Map(pageSize/2, GuardNone); err == nil {
		t.Error("Map accepted a non page-multiple size")
	}
	if err := m.Unmap(0xdead000, pageSize); err == nil {
		t.Error("Unmap accepted an unknown base")
	}

	base, err := m.Map(2*pageSize, GuardNone)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Unmap(base, pageSize); err == nil {
		t.Error("Unmap accepted a partial size")
	}
	if err := m.Unmap(base, 2*pageSize); err != nil {
		t.Fatal(err)
	}
}
