package hazarc

import "sync/atomic"

// quiescence tracks outstanding domain-list walkers and outstanding
// writer scans for the optional garbage-collection pass (spec §4.5):
// "a background counter tracks outstanding list walkers and outstanding
// writer scans. When it drops to zero a single flip of the head...
// allows a sweep."
//
// Adapted from the acquire/release/wait/waitch shape of
// _examples/balasanjay-lrlock/refcounter.go's refCount, simplified from
// a per-P sharded counter array down to one atomic counter: the
// original shards across GOMAXPROCS specifically to keep a *hot*
// reader/writer path (RLock/RUnlock, called on every access) free of
// cross-core cache-line contention. A domain's GC pass is the opposite
// — cold, optional, and run at most as often as a caller explicitly
// triggers it — so the single counter's occasional contention is not
// worth paying allocation and indirection to avoid.
type quiescence struct {
	outstanding atomic.Int64
	waitch      chan struct{}
}

func newQuiescence() *quiescence {
	return &quiescence{waitch: make(chan struct{}, 1)}
}

// enter registers one outstanding walker or writer scan.
func (q *quiescence) enter() {
	q.outstanding.Add(1)
}

// leave unregisters one outstanding walker or writer scan, waking a
// waiter if this was the last one.
func (q *quiescence) leave() {
	if q.outstanding.Add(-1) == 0 {
		select {
		case q.waitch <- struct{}{}:
		default:
		}
	}
}

// waitUntilZero blocks until no walker or writer scan is outstanding.
// Only the (optional, cold) GC path calls this; it is never on the
// wait-free reader/writer hot path.
func (q *quiescence) waitUntilZero() {
	for q.outstanding.Load() != 0 {
		<-q.waitch
	}
}
