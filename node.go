package hazarc

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

// writerActiveUnit is the increment applied to inUse while a writer
// scan is in flight over a node, packed into the bits above the in-use
// flag (spec §3, "upper bits = count of active writer scans"; spec §9,
// "writer-active counter... in the upper bits of in_use").
const (
	nodeInUseBit     uint32 = 1
	writerActiveUnit uint32 = 2
	// maxWriterScans bounds the writer-active counter; spec §7:
	// "Excessive concurrent writers on a single node... triggers a
	// fatal abort, as resuming would risk ABA."
	maxWriterScans uint32 = (1 << 31) - 1
)

// node is a fixed-size thread-node record: an array of borrow slots, a
// clone slot, a round-robin cursor, a generation counter and scratch
// field for the concurrent-writer policy, and the in_use/writer-active
// word (spec §3 "Thread node").
//
// Node acquisition in this port is call-scoped rather than
// goroutine-scoped — see SPEC_FULL.md §3 for why Go's lack of
// goroutine-local storage makes that the right translation rather than
// porting TLS. A node is exclusively owned by whichever goroutine is
// currently running a Cell operation against it; nothing else touches
// its cursor while it is owned, so that field is plain (non-atomic),
// matching the original's Cell<usize>. The scratch field is also read
// by writer scans on other goroutines, so it is accessed atomically.
type node[T any, PT RefCounted[T]] struct {
	next  atomic.Pointer[node[T, PT]]
	inUse atomic.Uint32

	slots       []borrowSlot[T, PT]
	slotMask    uint32
	cursor      uint32
	clone       cloneSlot[T, PT]
	generation  atomic.Uint64
	scratchCell unsafe.Pointer // identity of the Cell this node is mid-handshake for (concurrent policy only); never dereferenced as *T
}

func newNode[T any, PT RefCounted[T]](slotCount int) *node[T, PT] {
	n := slotCount
	if n < 0 {
		n = 0
	}
	if n > 0 {
		n = int(roundNearestPowerOf2(uint(n)))
	}
	nd := &node[T, PT]{
		slots: make([]borrowSlot[T, PT], n),
	}
	if n > 0 {
		nd.slotMask = uint32(n - 1)
	}
	nd.inUse.Store(nodeInUseBit)
	return nd
}

// tryAcquire claims an idle node for exclusive use by the caller.
func (n *node[T, PT]) tryAcquire() bool {
	for {
		v := n.inUse.Load()
		if v&nodeInUseBit != 0 {
			return false
		}
		if n.inUse.CompareAndSwap(v, v|nodeInUseBit) {
			return true
		}
	}
}

// release returns a node to the domain's free list.
func (n *node[T, PT]) release() {
	for {
		v := n.inUse.Load()
		assert(v&nodeInUseBit != 0, "releasing a node that isn't in use")
		if n.inUse.CompareAndSwap(v, v&^nodeInUseBit) {
			return
		}
	}
}

// markWriterActive/markWriterDone bracket a writer's scan of this node
// (spec §4.4 step 3, concurrent-writer policy): while a scan is active,
// a reader's generation-overflow reset path must wait rather than
// reset the counter out from under the scan (spec §9, first open question).
func (n *node[T, PT]) markWriterActive() {
	v := n.inUse.Add(writerActiveUnit)
	if v/writerActiveUnit >= maxWriterScans {
		panic("hazarc: too many concurrent writer scans on one node")
	}
}

func (n *node[T, PT]) markWriterDone() {
	n.inUse.Add(^(writerActiveUnit - 1))
}

func (n *node[T, PT]) writersActive() bool {
	return n.inUse.Load() >= writerActiveUnit
}

// waitForWriterDrain bounded-spins until no writer scan is in flight on
// this node. This is the single sanctioned spin in the whole protocol
// (spec §9): it is reached at most once per 2^64 - 2^20 - 1 generation
// advances.
func (n *node[T, PT]) waitForWriterDrain() {
	for n.writersActive() {
		runtime.Gosched()
	}
}

// nextGeneration bumps the per-node generation counter used to make
// clone-slot PREPARE identifiers unique under the concurrent-writer
// policy (spec §4.2 step 1, §9 "Generation").
//
// Because node acquisition in this port is call-scoped rather than
// goroutine-scoped (SPEC_FULL.md §3), a node's generation counter only
// ever needs to be unique among handshakes that are concurrently live
// on this node, and it is exclusively owned by the caller for the
// duration of one Cell operation — there is no other handshake
// in-flight on it to collide with when it wraps. So instead of
// spec §9's original resolution (release the node and retry against a
// fresh one), wrapping here just drains any in-flight writer scan
// (so no writer is mid-match against the pre-wrap values) and resets
// the counter to zero under that same exclusive ownership. In
// practice this path is unreachable: the counter is 64 bits wide.
func (n *node[T, PT]) nextGeneration() uint64 {
	const nearMax = ^uint64(0) - (1 << 20)
	g := n.generation.Add(1)
	if g >= nearMax {
		n.waitForWriterDrain()
		n.generation.Store(0)
		return 0
	}
	return g
}

// scratchStore/scratchLoad publish and read the identity of the Cell
// this node is mid clone-slot-handshake for (concurrent-writer policy
// only, spec §4.4 step 3's "verify the node's scratch field equals
// this cell's address"). The stored pointer is never dereferenced as
// *T; it exists purely as an address to compare against.
func (n *node[T, PT]) scratchStore(p unsafe.Pointer) {
	atomic.StorePointer(&n.scratchCell, p)
}

func (n *node[T, PT]) scratchLoad() unsafe.Pointer {
	return atomic.LoadPointer(&n.scratchCell)
}

// findFreeSlot implements the fast-path-or-scan slot selection of spec
// §4.3: try the round-robin cursor first, else scan linearly.
func (n *node[T, PT]) findFreeSlot() (*borrowSlot[T, PT], uint32, bool) {
	if len(n.slots) == 0 {
		return nil, 0, false
	}
	idx := n.cursor
	if n.slots[idx].check() == nil {
		return &n.slots[idx], idx, true
	}
	for i := uint32(0); i < uint32(len(n.slots)); i++ {
		if n.slots[i].check() == nil {
			return &n.slots[i], i, true
		}
	}
	return nil, 0, false
}

func (n *node[T, PT]) advanceCursor(used uint32) {
	n.cursor = (used + 1) & n.slotMask
}
