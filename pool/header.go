// Pool allocation block headers
// https://github.com/Feralthedogg/Allocates
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pool

import "unsafe"

// Every pool allocation, live or free, is preceded by a fixed 32-byte
// header. The header is read and written at fixed byte offsets rather than
// through a Go struct overlay so its size is exactly 32 bytes on every
// supported platform, matching the slab cell's "first machine word is the
// link" convention generalized to three link/size fields.
const (
	headerSize = 32

	offPayloadSize   = 0
	offPaddingBefore = 8
	offNextFreeLink  = 16
)

func headerPayloadSize(hdr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(hdr + offPayloadSize))
}

func setHeaderPayloadSize(hdr uintptr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(hdr + offPayloadSize)) = v
}

func headerPaddingBefore(hdr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(hdr + offPaddingBefore))
}

func setHeaderPaddingBefore(hdr uintptr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(hdr + offPaddingBefore)) = v
}

func headerNextFree(hdr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(hdr + offNextFreeLink))
}

func setHeaderNextFree(hdr uintptr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(hdr + offNextFreeLink)) = v
}

// payloadAddr returns the user-visible pointer for a block whose header
// starts at hdr.
func payloadAddr(hdr uintptr) uintptr {
	return hdr + headerSize
}

// headerFromPayload is the inverse of payloadAddr.
func headerFromPayload(payload uintptr) uintptr {
	return payload - headerSize
}
