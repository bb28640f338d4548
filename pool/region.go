// Pool region chain
// https://github.com/Feralthedogg/Allocates
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pool

import "github.com/Feralthedogg/Allocates/internal/osregion"

const baseAlign = 16

// region is one contiguous, OS-backed range the pool bump-allocates from.
type region struct {
	base       uintptr
	size       uintptr
	bumpOffset uintptr

	mem osregion.Region
}

func newRegion(size int) (*region, error) {
	mem, err := osregion.Acquire(size)
	if err != nil {
		return nil, err
	}

	base := alignUp(mem.Base, baseAlign)
	usable := uintptr(mem.Len) - (base - mem.Base)

	return &region{
		base: base,
		size: usable,
		mem:  mem,
	}, nil
}

func alignUp(v uintptr, align uintptr) uintptr {
	return (v + align - 1) &^ (align - 1)
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
