package vmmap

import "os"

var pageSize = uintptr(os.Getpagesize())

// PageSize returns the host page size all mapping sizes are rounded to.
func PageSize() uintptr { return pageSize }
