// Variable-size pool allocator
// https://github.com/Feralthedogg/Allocates
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pool implements a growing-chain, bump-pointer allocator with a
// first-fit, split-and-coalesce free list, for variable-size,
// variable-alignment allocations whose lifetime the caller manages
// explicitly.
package pool

import (
	"fmt"
	"log"
	"sync"
	"unsafe"

	"github.com/Feralthedogg/Allocates/internal/bulkset"
	"github.com/Feralthedogg/Allocates/internal/osregion"
)

// Pool hands out variable-size, variable-alignment blocks from a chain of
// OS-backed regions. The zero value is not ready for use; construct with
// New.
type Pool struct {
	mu sync.Mutex
	fl freeListLock

	regions           []*region
	freeHead          uintptr
	initialRegionSize uintptr
}

// New creates a pool whose first region holds at least initialRegionSize
// bytes (the region is rounded up to whole OS pages). Later growth (see Alloc) uses the same size unless a single request
// needs more.
func New(initialRegionSize int) (*Pool, error) {
	if initialRegionSize < 1 {
		return nil, fmt.Errorf("pool: initialRegionSize must be >= 1, got %d", initialRegionSize)
	}

	r, err := newRegion(initialRegionSize)
	if err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}

	log.Printf("pool: initialized initialRegionSize=%d", initialRegionSize)

	return &Pool{
		regions:           []*region{r},
		initialRegionSize: uintptr(initialRegionSize),
	}, nil
}

// Alloc returns size bytes aligned to alignment (a power of two). It tries
// a first-fit free-list match, then bump allocation within existing
// regions, then grows the pool by one region, in that order. It fails
// only if preconditions are violated or growth fails (including a new
// region that cannot hold the request at the requested alignment); a
// failed call leaves the pool exactly as it was.
func (p *Pool) Alloc(size int, alignment int) (unsafe.Pointer, error) {
	if p == nil {
		return nil, fmt.Errorf("pool: Alloc on nil pool")
	}
	if size < 1 {
		return nil, fmt.Errorf("pool: size must be >= 1, got %d", size)
	}
	if !isPowerOfTwo(alignment) {
		return nil, fmt.Errorf("pool: alignment must be a power of two, got %d", alignment)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.fl.lock()
	defer p.fl.unlock()

	sz, align := uintptr(size), uintptr(alignment)

	if hdr, ok := p.firstFit(sz, align); ok {
		return unsafe.Pointer(payloadAddr(hdr)), nil
	}

	if payload, ok := p.bumpAlloc(sz, align); ok {
		return unsafe.Pointer(payload), nil
	}

	if err := p.grow(size); err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}

	payload, ok := p.bumpAlloc(sz, align)
	if !ok {
		grown := p.regions[len(p.regions)-1]
		p.regions = p.regions[:len(p.regions)-1]
		_ = osregion.Release(grown.mem)
		return nil, fmt.Errorf("pool: allocation of %d bytes (align %d) failed after growth", size, alignment)
	}

	return unsafe.Pointer(payload), nil
}

// Free returns a block previously returned by Alloc to the pool and
// coalesces it with any physically adjacent free neighbors.
func (p *Pool) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.fl.lock()
	defer p.fl.unlock()

	hdr := headerFromPayload(uintptr(ptr))
	p.pushFree(hdr)
	p.coalesce()
}

// Reset clears the free list and rewinds every region's bump offset to
// zero, zeroing their usable bytes, without releasing the regions
// themselves back to the operating system.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fl.lock()
	defer p.fl.unlock()

	p.freeHead = 0

	for _, r := range p.regions {
		r.bumpOffset = 0

		offset := r.base - r.mem.Base
		bulkset.Set(r.mem.Bytes()[offset:offset+r.size], 0)
	}
}

// Destroy releases every region in the chain. Using the pool, or any
// pointer it returned, after Destroy is undefined.
func (p *Pool) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, r := range p.regions {
		if err := osregion.Release(r.mem); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	p.regions = nil
	p.freeHead = 0

	if firstErr != nil {
		return fmt.Errorf("pool: %w", firstErr)
	}

	return nil
}

// RegionCount reports the current length of the region chain, mostly
// useful for tests asserting growth behavior.
func (p *Pool) RegionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.regions)
}

func (p *Pool) bumpAlloc(size, alignment uintptr) (uintptr, bool) {
	for _, r := range p.regions {
		raw := r.base + r.bumpOffset
		alignedPayload := alignUp(raw+headerSize, alignment)
		padding := alignedPayload - (raw + headerSize)
		required := headerSize + padding + size

		if r.bumpOffset+required > r.size {
			continue
		}

		hdr := alignedPayload - headerSize
		setHeaderPayloadSize(hdr, size)
		setHeaderPaddingBefore(hdr, padding)
		setHeaderNextFree(hdr, 0)

		r.bumpOffset += required

		return alignedPayload, true
	}

	return 0, false
}

func (p *Pool) grow(requestedSize int) error {
	regionSize := int(p.initialRegionSize)
	if need := requestedSize + headerSize; need > regionSize {
		regionSize = need
	}

	r, err := newRegion(regionSize)
	if err != nil {
		return err
	}

	p.regions = append(p.regions, r)
	log.Printf("pool: grew region chain to %d regions (size=%d)", len(p.regions), regionSize)

	return nil
}
