// https://github.com/Feralthedogg/Allocates
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pool

import (
	"testing"
	"unsafe"
)

func newTestPool(t *testing.T, initialRegionSize int) *Pool {
	t.Helper()

	p, err := New(initialRegionSize)
	if err != nil {
		t.Fatalf("New(%d): %v", initialRegionSize, err)
	}
	t.Cleanup(func() {
		if err := p.Destroy(); err != nil {
			t.Errorf("Destroy: %v", err)
		}
	})

	return p
}

// S1
func TestAllocBasicBumpAndAlignment(t *testing.T) {
	p := newTestPool(t, 4096)

	a, err := p.Alloc(256, 16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if uintptr(a)%16 != 0 {
		t.Fatalf("Alloc: pointer %v not 16-byte aligned", a)
	}

	if got := p.regions[0].bumpOffset; got < 32+256 {
		t.Fatalf("bumpOffset = %d, want >= %d", got, 32+256)
	}
}

// S2
func TestFreeAdjacentCoalesce(t *testing.T) {
	p := newTestPool(t, 4096)

	a, err := p.Alloc(64, 16)
	if err != nil {
		t.Fatalf("Alloc a: %v", err)
	}
	b, err := p.Alloc(64, 16)
	if err != nil {
		t.Fatalf("Alloc b: %v", err)
	}

	p.Free(a)
	p.Free(b)

	if p.freeHead == 0 {
		t.Fatalf("expected a non-empty free list after freeing adjacent blocks")
	}
	if next := headerNextFree(p.freeHead); next != 0 {
		t.Fatalf("expected exactly one coalesced free block, found a second at %v", next)
	}

	want := uintptr(64 + 32 + 64)
	if got := headerPayloadSize(p.freeHead); got != want {
		t.Fatalf("coalesced payload size = %d, want %d", got, want)
	}
}

// S3
func TestCoalesceAcrossManyBlocksSatisfiesLargeAlloc(t *testing.T) {
	// Large enough that all 100 allocations below land in a single
	// region: 100 blocks of header(32)+payload(16) need 4800 contiguous
	// bytes, and the coalesce invariant this scenario exercises only
	// holds within one region (OS regions are not guaranteed adjacent to
	// each other).
	p := newTestPool(t, 8192)

	const n = 100
	ptrs := make([]unsafe.Pointer, n)

	for i := 0; i < n; i++ {
		ptr, err := p.Alloc(16, 16)
		if err != nil {
			t.Fatalf("Alloc %d: %v", i, err)
		}
		ptrs[i] = ptr
	}

	for i := n - 1; i >= 0; i-- {
		p.Free(ptrs[i])
	}

	regionsBefore := p.RegionCount()

	total := n*16 + (n-1)*32
	if _, err := p.Alloc(total, 16); err != nil {
		t.Fatalf("Alloc(%d, 16): %v", total, err)
	}

	if got := p.RegionCount(); got != regionsBefore {
		t.Fatalf("RegionCount changed from %d to %d; expected the coalesced block to satisfy the request without growth", regionsBefore, got)
	}
}

// S4
func TestGrowthOnOversizedAlloc(t *testing.T) {
	p := newTestPool(t, 4096)

	ptr, err := p.Alloc(5000, 16)
	if err != nil {
		t.Fatalf("Alloc(5000, 16): %v", err)
	}
	if ptr == nil {
		t.Fatalf("Alloc(5000, 16): got nil pointer")
	}

	if got := p.RegionCount(); got != 2 {
		t.Fatalf("RegionCount = %d, want 2", got)
	}

	second := p.regions[1]
	if second.size < 5000+32 {
		t.Fatalf("second region size = %d, want >= %d", second.size, 5000+32)
	}
}

func TestAllocRejectsBadArguments(t *testing.T) {
	p := newTestPool(t, 4096)

	if _, err := p.Alloc(0, 16); err == nil {
		t.Fatalf("Alloc(0, 16): expected error")
	}
	if _, err := p.Alloc(16, 3); err == nil {
		t.Fatalf("Alloc(16, 3): expected error for non-power-of-two alignment")
	}
}

func TestNonOverlap(t *testing.T) {
	p := newTestPool(t, 1 << 16)

	type live struct {
		addr uintptr
		size int
	}

	var allocs []live
	for i := 1; i <= 50; i++ {
		size := i * 8
		ptr, err := p.Alloc(size, 16)
		if err != nil {
			t.Fatalf("Alloc(%d, 16): %v", size, err)
		}
		allocs = append(allocs, live{uintptr(ptr), size})
	}

	for i := range allocs {
		for j := range allocs {
			if i == j {
				continue
			}
			a, b := allocs[i], allocs[j]
			if a.addr < b.addr+uintptr(b.size) && b.addr < a.addr+uintptr(a.size) {
				t.Fatalf("allocations %d and %d overlap: [%d,%d) vs [%d,%d)", i, j, a.addr, a.addr+uintptr(a.size), b.addr, b.addr+uintptr(b.size))
			}
		}
	}
}

func TestResetPreservesRegionsAndZeroes(t *testing.T) {
	p := newTestPool(t, 4096)

	ptr, err := p.Alloc(128, 16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	buf := unsafe.Slice((*byte)(ptr), 128)
	for i := range buf {
		buf[i] = 0xFF
	}

	regionsBefore := p.RegionCount()

	p.Reset()

	if got := p.RegionCount(); got != regionsBefore {
		t.Fatalf("RegionCount after Reset = %d, want %d (regions preserved)", got, regionsBefore)
	}
	if p.regions[0].bumpOffset != 0 {
		t.Fatalf("bumpOffset after Reset = %d, want 0", p.regions[0].bumpOffset)
	}
	if p.freeHead != 0 {
		t.Fatalf("freeHead after Reset = %v, want empty", p.freeHead)
	}

	ptr2, err := p.Alloc(128, 16)
	if err != nil {
		t.Fatalf("post-reset Alloc: %v", err)
	}
	buf2 := unsafe.Slice((*byte)(ptr2), 128)
	for i, b := range buf2 {
		if b != 0 {
			t.Fatalf("post-reset byte %d = %#x, want 0", i, b)
		}
	}
}

func TestFreeListAcyclic(t *testing.T) {
	p := newTestPool(t, 4096)

	const n = 20
	ptrs := make([]unsafe.Pointer, n)
	for i := range ptrs {
		ptr, err := p.Alloc(32, 16)
		if err != nil {
			t.Fatalf("Alloc %d: %v", i, err)
		}
		ptrs[i] = ptr
	}

	for i := 0; i < n; i += 2 {
		p.Free(ptrs[i])
	}

	seen := make(map[uintptr]bool)
	steps := 0
	for cur := p.freeHead; cur != 0; cur = headerNextFree(cur) {
		if seen[cur] {
			t.Fatalf("cycle detected in free list at %v", cur)
		}
		seen[cur] = true
		steps++
		if steps > n+1 {
			t.Fatalf("free list walk exceeded expected bound")
		}
	}
}

func TestNewRejectsBadArguments(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatalf("New(0): expected error")
	}
}
