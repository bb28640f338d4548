// Busy-wait lock guarding free-list mutation
// https://github.com/Feralthedogg/Allocates
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pool

import (
	"runtime"
	"sync/atomic"
)

// maxSpins bounds how long freeListLock.lock busy-waits before treating the
// condition as lock-protocol corruption rather than ordinary contention.
// It is always acquired while the pool's coarse mutex is already held, so
// under correct use it never spins at all; the bound exists purely as a
// deadlock backstop (spec: "indicates lock-protocol corruption, not
// resource pressure").
const maxSpins = 1 << 20

// freeListLock is a fine-grained, non-reentrant busy-wait lock. It is
// redundant with the pool's coarse mutex by construction, but is kept as
// its own type so the free-list engine's locking discipline matches the
// design even though a single goroutine can never actually contend on it.
type freeListLock struct {
	held atomic.Bool
}

func (l *freeListLock) lock() {
	for i := 0; i < maxSpins; i++ {
		if l.held.CompareAndSwap(false, true) {
			return
		}
		runtime.Gosched()
	}

	panic("pool: free-list lock spin timeout, lock protocol corrupted")
}

func (l *freeListLock) unlock() {
	l.held.Store(false)
}
