//go:build !unix

package vmmap

import "errors"

var errUnsupported = errors.New("vmmap: no mapping support on this platform")

func mmapAnon(size int) ([]byte, error) { return nil, errUnsupported }

func mprotectRange(base, size uintptr, prot Prot) error { return errUnsupported }

func munmapRange(data []byte) error { return errUnsupported }
