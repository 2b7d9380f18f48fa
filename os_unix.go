//go:build unix

package alloc

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	pageSizeOnce sync.Once
	cachedPage   int
)

// osPageSize returns the OS virtual memory page size, queried once and
// cached for the lifetime of the process.
func osPageSize() int {
	pageSizeOnce.Do(func() {
		cachedPage = unix.Getpagesize()
	})
	return cachedPage
}

// mapRegion requests one anonymous, private, read/write mapping of n bytes
// from the OS.
func mapRegion(n int) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("alloc: mmap %d bytes: %w", n, err)
	}
	return b, nil
}

// unmapRegion releases a region previously obtained from mapRegion.
func unmapRegion(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if err := unix.Munmap(b); err != nil {
		return fmt.Errorf("alloc: munmap %d bytes: %w", len(b), err)
	}
	return nil
}

// roundUpPage rounds n up to the next multiple of the OS page size.
func roundUpPage(n int) int {
	ps := osPageSize()
	if n <= 0 {
		return ps
	}
	return ((n + ps - 1) / ps) * ps
}
