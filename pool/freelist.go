// Free-list engine: first-fit, split, and address-ordered coalesce
// https://github.com/Feralthedogg/Allocates
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pool

import "sort"

// minSplitRemainder is the smallest remainder worth carving off a matched
// free block: a header plus baseAlign bytes of payload. Anything smaller
// stays with the matched block as internal fragmentation.
const minSplitRemainder = headerSize + baseAlign

// firstFit walks the free list and returns the header address of the
// first block whose payload address is already aligned to alignment and
// whose payload is large enough. The candidate's alignment is checked at
// the payload's natural start only — a block that merely contains an
// aligned sub-range is not considered a match (see DESIGN.md).
func (p *Pool) firstFit(size, alignment uintptr) (uintptr, bool) {
	var prev uintptr

	cur := p.freeHead
	for cur != 0 {
		next := headerNextFree(cur)

		if payloadAddr(cur)%alignment == 0 && headerPayloadSize(cur) >= size {
			p.unlinkFree(prev, cur, next)
			p.splitIfWorthwhile(cur, size)
			return cur, true
		}

		prev = cur
		cur = next
	}

	return 0, false
}

func (p *Pool) unlinkFree(prev, cur, next uintptr) {
	if prev == 0 {
		p.freeHead = next
	} else {
		setHeaderNextFree(prev, next)
	}
}

// splitIfWorthwhile shrinks the matched block to exactly size and pushes
// the remainder back onto the free list when it is large enough to be
// useful on its own.
func (p *Pool) splitIfWorthwhile(hdr, size uintptr) {
	payloadSize := headerPayloadSize(hdr)
	if payloadSize < size+minSplitRemainder {
		return
	}

	remainderHdr := hdr + headerSize + size
	remainderSize := payloadSize - size - headerSize

	setHeaderPayloadSize(remainderHdr, remainderSize)
	setHeaderPaddingBefore(remainderHdr, 0)

	setHeaderPayloadSize(hdr, size)

	p.pushFree(remainderHdr)
}

// pushFree links hdr at the head of the free list. The list need not stay
// sorted between calls; coalesce rebuilds it in address order after every
// Free.
func (p *Pool) pushFree(hdr uintptr) {
	setHeaderNextFree(hdr, p.freeHead)
	p.freeHead = hdr
}

// coalesce rebuilds the free list sorted ascending by address, merging
// every run of physically adjacent blocks into one. It runs after every
// Free, so between calls no two free blocks are ever adjacent.
func (p *Pool) coalesce() {
	addrs := make([]uintptr, 0, 8)
	for cur := p.freeHead; cur != 0; cur = headerNextFree(cur) {
		addrs = append(addrs, cur)
	}

	if len(addrs) < 2 {
		return
	}

	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	merged := addrs[:0:0]

	i := 0
	for i < len(addrs) {
		cur := addrs[i]
		j := i + 1

		for j < len(addrs) && cur+headerSize+headerPayloadSize(cur) == addrs[j] {
			setHeaderPayloadSize(cur, headerPayloadSize(cur)+headerSize+headerPayloadSize(addrs[j]))
			j++
		}

		merged = append(merged, cur)
		i = j
	}

	for k := len(merged) - 1; k >= 0; k-- {
		if k == len(merged)-1 {
			setHeaderNextFree(merged[k], 0)
		} else {
			setHeaderNextFree(merged[k], merged[k+1])
		}
	}

	p.freeHead = merged[0]
}
