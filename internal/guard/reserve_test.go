//go:build unix

package guard

import "testing"

func TestReserveCarve(t *testing.T) {
	r := newReserve(16 * pageSize)

	if r.cur&(pageSize-1) != 0 {
		t.Fatalf("cursor %#x not page aligned", r.cur)
	}

	a := r.carve(100)
	if a&(pageSize-1) != 0 {
		t.Fatalf("carved address %#x not page aligned", a)
	}

	b := r.carve(pageSize + 1)
	if b != a+pageSize {
		t.Fatalf("second carve at %#x, want cursor after one rounded page at %#x", b, a+pageSize)
	}

	if got, want := r.remaining(), 13*pageSize; got != uintptr(want) {
		t.Fatalf("remaining %#x, want %#x", got, want)
	}

	if !r.contains(a) || !r.contains(b) {
		t.Fatal("carved addresses not inside the region")
	}
	if r.contains(r.end) {
		t.Fatal("end address reported inside the region")
	}
}

func TestReserveExhaustionFatal(t *testing.T) {
	r := newReserve(2 * pageSize)
	r.carve(pageSize)

	mustPanic(t, "reserve exhausted", func() {
		r.carve(2 * pageSize)
	})
}
