//go:build unix

package vmmap

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func mmapAnon(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
}

func mprotectRange(base, size uintptr, prot Prot) error {
	var p int

	switch prot {
	case ProtRead:
		p = unix.PROT_READ
	case ProtReadWrite:
		p = unix.PROT_READ | unix.PROT_WRITE
	default:
		p = unix.PROT_NONE
	}

	return unix.Mprotect(unsafe.Slice((*byte)(unsafe.Pointer(base)), size), p)
}

func munmapRange(data []byte) error {
	return unix.Munmap(data)
}
