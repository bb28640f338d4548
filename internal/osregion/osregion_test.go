// https://github.com/Feralthedogg/Allocates
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package osregion

import "testing"

func TestAcquireZeroedAndReleasable(t *testing.T) {
	r, err := Acquire(8192)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if r.Len < 8192 {
		t.Fatalf("Len = %d, want >= 8192", r.Len)
	}
	if r.Base == 0 {
		t.Fatalf("Base is zero")
	}

	for i, b := range r.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want 0", i, b)
		}
	}

	if err := Release(r); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestAcquireRejectsNonPositiveSize(t *testing.T) {
	if _, err := Acquire(0); err == nil {
		t.Fatalf("Acquire(0): expected error")
	}
	if _, err := Acquire(-1); err == nil {
		t.Fatalf("Acquire(-1): expected error")
	}
}
