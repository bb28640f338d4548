// Fixed-size slab allocator
// https://github.com/Feralthedogg/Allocates
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package slab implements a fixed-size object allocator backed by a single
// OS-acquired memory region. Free cells are linked via an intrusive
// singly-linked list stored in their first machine word, so the allocator
// itself never allocates Go heap memory on the hot path.
package slab

import (
	"fmt"
	"log"
	"sync"
	"unsafe"

	"github.com/Feralthedogg/Allocates/internal/bulkset"
	"github.com/Feralthedogg/Allocates/internal/osregion"
)

const (
	payloadAlign = 16
	headerSize   = 32
)

// empty is the free-list sentinel. base is never 0 for a mapped region, so
// 0 is never mistaken for a live cell.
const empty uintptr = 0

// Slab hands out fixed-size objects from a single preallocated region.
// The zero value is not ready for use; construct with New.
type Slab struct {
	mu sync.Mutex

	region   osregion.Region
	cellSize uintptr
	capacity int
	freeHead uintptr
}

// New creates a slab of capacity cells, each able to hold at least
// objectSize bytes of caller payload. objectSize is rounded up to a
// 16-byte multiple and to at least one machine word. It fails if capacity
// is below 1, if objectSize is smaller than a machine word, or if the
// operating system refuses the backing allocation.
func New(capacity int, objectSize int) (*Slab, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("slab: capacity must be >= 1, got %d", capacity)
	}
	if objectSize < int(unsafe.Sizeof(uintptr(0))) {
		return nil, fmt.Errorf("slab: objectSize must be >= %d, got %d", unsafe.Sizeof(uintptr(0)), objectSize)
	}

	cellSize := roundUp(headerSize+objectSize, payloadAlign)
	if cellSize < headerSize+payloadAlign {
		cellSize = headerSize + payloadAlign
	}

	region, err := osregion.Acquire(cellSize * capacity)
	if err != nil {
		return nil, fmt.Errorf("slab: %w", err)
	}

	s := &Slab{
		region:   region,
		cellSize: uintptr(cellSize),
		capacity: capacity,
	}
	s.buildFreeList()

	log.Printf("slab: initialized capacity=%d cellSize=%d", capacity, cellSize)

	return s, nil
}

// buildFreeList links every cell in ascending address order. Caller must
// hold mu or be inside New before publication.
func (s *Slab) buildFreeList() {
	base := s.region.Base

	for i := 0; i < s.capacity-1; i++ {
		cell := base + uintptr(i)*s.cellSize
		next := base + uintptr(i+1)*s.cellSize
		*(*uintptr)(unsafe.Pointer(cell)) = next
	}

	last := base + uintptr(s.capacity-1)*s.cellSize
	*(*uintptr)(unsafe.Pointer(last)) = empty

	s.freeHead = base
}

// Alloc returns a pointer to cellSize-headerSize bytes of zero-or-garbage
// payload, or (nil, false) if the slab is exhausted.
func (s *Slab) Alloc() (unsafe.Pointer, bool) {
	if s == nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.freeHead == empty {
		return nil, false
	}

	head := s.freeHead
	s.freeHead = *(*uintptr)(unsafe.Pointer(head))

	return unsafe.Pointer(head + headerSize), true
}

// Free returns p, previously returned by Alloc, to the slab. Freeing a
// pointer twice, or a pointer not obtained from Alloc, is undefined.
func (s *Slab) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cell := uintptr(p) - headerSize
	*(*uintptr)(unsafe.Pointer(cell)) = s.freeHead
	s.freeHead = cell
}

// Reset returns every cell to the free list, regardless of outstanding
// allocations, and zeroes the entire region. Callers must not retain any
// previously allocated pointer across Reset.
func (s *Slab) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	bulkset.Set(s.region.Bytes(), 0)
	s.buildFreeList()
}

// Destroy releases the slab's backing region. Using the slab, or any
// pointer it returned, after Destroy is undefined.
func (s *Slab) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := osregion.Release(s.region)
	s.region = osregion.Region{}
	s.freeHead = empty
	s.capacity = 0

	if err != nil {
		return fmt.Errorf("slab: %w", err)
	}

	return nil
}

// Capacity returns the total number of cells the slab was constructed
// with.
func (s *Slab) Capacity() int {
	return s.capacity
}

func roundUp(n, m int) int {
	return (n + m - 1) &^ (m - 1)
}
