package hazarc

import (
	"runtime"
	"sync/atomic"
)

// These two functions complete the TODOs left open in
// _examples/balasanjay-lrlock/runtime.go ("implement me... should be
// fast, shouldn't cause cross-core communication, and can be
// eventually consistent"): domain.acquireNode uses them only as a
// scatter hint to reduce contention on the free-node scan, never for
// correctness, so an approximate, eventually-consistent answer is
// exactly what's called for.

// gomaxprocs reports the configured parallelism, used to bound how many
// hops acquireNode's scatter takes from the head of the list.
func gomaxprocs() int {
	return runtime.GOMAXPROCS(0)
}

// nextScatter returns a cheap, monotonically increasing hint used to
// spread concurrent node acquisitions across the domain's list instead
// of every goroutine racing to CAS the same head node.
var scatterCounter atomic.Uint64

func nextScatter() uint64 {
	return scatterCounter.Add(1)
}
