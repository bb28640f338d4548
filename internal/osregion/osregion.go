// OS-backed anonymous memory region provider
// https://github.com/Feralthedogg/Allocates
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package osregion acquires and releases page-aligned, zero-initialized
// byte ranges from the operating system, for use as the backing storage of
// the slab and pool allocators.
package osregion

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Region is a page-aligned byte range acquired from the operating system.
type Region struct {
	Base uintptr
	Len  int

	mem []byte
}

// Acquire maps a fresh, zero-initialized, read-write anonymous region of at
// least size bytes. The returned region is rounded up to a whole number of
// OS pages. It fails if size is not positive or if the operating system
// refuses the mapping.
func Acquire(size int) (Region, error) {
	if size <= 0 {
		return Region{}, fmt.Errorf("osregion: size must be positive, got %d", size)
	}

	pageSize := unix.Getpagesize()
	rounded := roundUp(size, pageSize)

	mem, err := unix.Mmap(-1, 0, rounded, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return Region{}, fmt.Errorf("osregion: mmap %d bytes: %w", rounded, err)
	}

	return Region{
		Base: uintptr(unsafe.Pointer(&mem[0])),
		Len:  len(mem),
		mem:  mem,
	}, nil
}

// Release returns the region to the operating system. Using r after
// Release is undefined.
func Release(r Region) error {
	if r.mem == nil {
		return nil
	}

	if err := unix.Munmap(r.mem); err != nil {
		return fmt.Errorf("osregion: munmap: %w", err)
	}

	return nil
}

// Bytes returns the region's backing storage as a byte slice, for use by
// the bulk-zero utility and other bulk operations confined to the
// allocator internals.
func (r Region) Bytes() []byte {
	return r.mem
}

func roundUp(n, m int) int {
	if m <= 0 {
		return n
	}
	return (n + m - 1) &^ (m - 1)
}
