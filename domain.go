package hazarc

import "sync/atomic"

// Option configures a Domain. See WithSlotCount, WithWritePolicy, and
// WithGC.
type Option func(*domainConfig)

type domainConfig struct {
	slotCount   int
	writePolicy WritePolicy
	gc          bool
}

// WithSlotCount sets the number of borrow slots per thread node
// (spec §6 slot_count_per_node). Affects only performance: zero forces
// every load onto the clone-slot fallback (spec §8 boundary behavior),
// one forces the round-robin cursor to always re-enter the same slot.
// Defaults to 8.
func WithSlotCount(n int) Option {
	return func(c *domainConfig) { c.slotCount = n }
}

// WithWritePolicy selects Serialized (default) or Concurrent.
func WithWritePolicy(p WritePolicy) Option {
	return func(c *domainConfig) { c.writePolicy = p }
}

// WithGC enables the optional sweep of idle thread nodes (spec §4.5).
// Off by default: correctness never depends on it running.
func WithGC(enabled bool) Option {
	return func(c *domainConfig) { c.gc = enabled }
}

// Domain is a lock-free singly linked list of thread nodes shared by
// every Cell drawn from it (spec §3 "Domain", §4.5). Once linked, a
// node is never unlinked during normal operation — only recycled via
// its in_use bit, or freed by the optional GC sweep when the whole
// list is quiescent.
//
// T is the value type stored behind Cells drawn from this Domain; PT
// (almost always inferred as *T) is the type that actually implements
// RefCounted. A Domain is shared by every Cell over the same T.
type Domain[T any, PT RefCounted[T]] struct {
	head atomic.Pointer[node[T, PT]]

	slotCount   int
	writePolicy WritePolicy
	gcEnabled   bool

	q *quiescence
}

// NewDomain creates a Domain. Most programs need exactly one Domain
// per value type, shared by every Cell over that type.
func NewDomain[T any, PT RefCounted[T]](opts ...Option) *Domain[T, PT] {
	cfg := domainConfig{slotCount: 8, writePolicy: Serialized}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.slotCount < 0 {
		cfg.slotCount = 0
	}
	return &Domain[T, PT]{
		slotCount:   cfg.slotCount,
		writePolicy: cfg.writePolicy,
		gcEnabled:   cfg.gc,
		q:           newQuiescence(),
	}
}

// acquireNode claims an idle node from the list, or allocates and
// appends a fresh one if none is idle (spec §4.5 acquire_node). Called
// once per load that enters the slot protocol (see SPEC_FULL.md §3 on
// call-scoped node acquisition) rather than once per goroutine
// lifetime; writer scans walk the list without acquiring a node.
func (d *Domain[T, PT]) acquireNode() *node[T, PT] {
	if d.gcEnabled {
		d.q.enter()
		defer d.q.leave()
	}

	// Scatter the scan's starting point so concurrent callers don't all
	// contend on tryAcquire-ing the same head node first (runtime.go's
	// nextScatter/gomaxprocs — completing the same TODO the scatter
	// itself cites). This only changes which idle node is found first;
	// it never affects correctness.
	head := d.head.Load()
	if start := scatterStart(head, gomaxprocs()); start != nil {
		if n := scanFrom(start); n != nil {
			return n
		}
	}
	if n := scanFrom(head); n != nil {
		return n
	}

	fresh := newNode[T, PT](d.slotCount)
	slot := &d.head
	for {
		cur := slot.Load()
		if cur == nil {
			if slot.CompareAndSwap(nil, fresh) {
				return fresh
			}
			cur = slot.Load()
		}
		if cur.tryAcquire() {
			return cur
		}
		slot = &cur.next
	}
}

// scatterStart walks forward from head by a rotating, bounded number of
// hops (nextScatter's counter modulo procs) and returns the node landed
// on, or nil if the list is
// empty. Purely a load-spreading hint.
func scatterStart[T any, PT RefCounted[T]](head *node[T, PT], procs int) *node[T, PT] {
	if head == nil || procs <= 0 {
		return head
	}
	hops := nextScatter() % uint64(procs)
	n := head
	for i := uint64(0); i < hops; i++ {
		next := n.next.Load()
		if next == nil {
			break
		}
		n = next
	}
	return n
}

// scanFrom tries every node from n to the end of the list, returning
// the first one it manages to acquire.
func scanFrom[T any, PT RefCounted[T]](n *node[T, PT]) *node[T, PT] {
	for n != nil {
		if n.tryAcquire() {
			return n
		}
		n = n.next.Load()
	}
	return nil
}

// releaseNode returns a node to the free list.
func (d *Domain[T, PT]) releaseNode(n *node[T, PT]) {
	n.release()
}

// forEachNode visits every node currently linked into the domain, in
// list order, for a writer's scan (spec §4.4 step 3).
func (d *Domain[T, PT]) forEachNode(f func(*node[T, PT])) {
	if d.gcEnabled {
		d.q.enter()
		defer d.q.leave()
	}
	for n := d.head.Load(); n != nil; n = n.next.Load() {
		f(n)
	}
}

// GC runs the optional garbage-collection sweep described in spec
// §4.5: once no walker or writer scan is outstanding, every node whose
// in_use is clear is unlinked. It is a no-op if GC was not enabled via
// WithGC. Correctness of Load/Swap/Store never depends on calling it,
// but GC itself is not safe to race against new Cell operations on
// this domain — call it only from a maintenance window where readers
// and writers are known to be quiescent, e.g. between test cases or
// during a coordinated drain. This matches spec §4.5's framing of GC as
// "orthogonal to the protocol's correctness" rather than a fully
// concurrent collector.
func (d *Domain[T, PT]) GC() {
	if !d.gcEnabled {
		return
	}
	d.q.waitUntilZero()

	var kept *node[T, PT]
	var tail *node[T, PT]
	for n := d.head.Load(); n != nil; {
		next := n.next.Load()
		if n.inUse.Load() != 0 {
			n.next.Store(nil)
			if kept == nil {
				kept = n
			} else {
				tail.next.Store(n)
			}
			tail = n
		}
		n = next
	}
	d.head.Store(kept)
}
