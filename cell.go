package hazarc

import (
	"sync/atomic"
	"unsafe"
)

// Cell is a wait-free-to-read atomic smart pointer over a RefCounted
// value (spec §3 "Cell"). Reads never block, and the fast path's only
// allocation is the returned Borrow; writes pay the cost of scanning every thread node in the
// Domain to transfer reference-count units to whichever readers are
// mid-observation.
//
// A Cell is either non-nullable (constructed with New, never holds a
// nil address) or nullable (constructed with NewNullable, may hold nil
// to mean "empty"). All other behavior is identical.
type Cell[T any, PT RefCounted[T]] struct {
	addr     atomic.Pointer[T]
	domain   *Domain[T, PT]
	nullable bool
}

// New creates a non-nullable Cell holding v (which must be non-nil and
// already carrying the one reference-count unit the Cell will own).
func New[T any, PT RefCounted[T]](d *Domain[T, PT], v PT) *Cell[T, PT] {
	if v == nil {
		panic("hazarc: New requires a non-nil initial value; use NewNullable")
	}
	c := &Cell[T, PT]{domain: d}
	c.addr.Store((*T)(v))
	return c
}

// NewNullable creates a nullable Cell, optionally starting out empty.
func NewNullable[T any, PT RefCounted[T]](d *Domain[T, PT], v PT) *Cell[T, PT] {
	c := &Cell[T, PT]{domain: d, nullable: true}
	c.addr.Store((*T)(v))
	return c
}

func cellKey[T any, PT RefCounted[T]](c *Cell[T, PT]) uint64 {
	return uint64(uintptr(unsafe.Pointer(c)))
}

// Load returns a Borrow over the Cell's current value (spec §4.3,
// §4.2). For a nullable Cell this may be a Borrow over nil.
func (c *Cell[T, PT]) Load() *Borrow[T, PT] {
	return c.loadWithPtr(PT(c.addr.Load()))
}

// LoadOwned is Load followed by IntoOwned: it always returns an owned
// handle rather than a slot-bound Borrow, at the cost of an extra
// reference-count bump when the fast path succeeds.
func (c *Cell[T, PT]) LoadOwned() PT {
	return c.Load().IntoOwned()
}

// LoadIfOutdated returns (cur, nil) without touching a thread node at
// all if cur is still the Cell's current address; otherwise it performs
// a full Load and returns (nil, borrow) (spec §6 load_if_outdated).
// Intended for callers that already hold cur and only want to pay the
// protocol's cost when the value has actually changed underneath them.
func (c *Cell[T, PT]) LoadIfOutdated(cur PT) (PT, *Borrow[T, PT]) {
	ptr := PT(c.addr.Load())
	if ptr == cur {
		return cur, nil
	}
	return nil, c.loadWithPtr(ptr)
}

// LoadCached refreshes *cached in place if the Cell's address has
// moved on since the last call, and returns the now-current value
// (spec §6 load_cached). *cached starts as nil.
func (c *Cell[T, PT]) LoadCached(cached *PT) PT {
	ptr := PT(c.addr.Load())
	if ptr != *cached {
		stale := *cached
		*cached = c.loadWithPtr(ptr).IntoOwned()
		if stale != nil {
			stale.Release()
		}
	}
	return *cached
}

// Store replaces the Cell's value, discarding the displaced one.
func (c *Cell[T, PT]) Store(v PT) {
	old := c.Swap(v)
	if old != nil {
		old.Release()
	}
}

// Swap replaces the Cell's value and returns the displaced one, with
// one reference-count unit transferred to the caller (spec §4.4
// "swap"). The caller must eventually Release the returned value unless
// it is nil (possible only on a nullable Cell), which carries no unit.
func (c *Cell[T, PT]) Swap(v PT) PT {
	if !c.nullable && v == nil {
		panic("hazarc: Swap called with nil on a non-nullable Cell")
	}
	old := PT(c.addr.Swap((*T)(v)))
	c.scan(old, v, true)
	return old
}

// CompareExchange atomically replaces the Cell's value with newV iff
// it currently holds expected (spec §4.4 "compare_exchange"). Requires
// a Concurrent write-policy Domain, matching spec §7's resolution that
// this operation only makes sense once more than one writer may be
// racing.
//
// On success it returns (expected, nil): the caller now owns expected's
// displaced unit and must Release it. On failure it returns (nil, b)
// where b is a Borrow over whatever the Cell actually held; newV is not
// consumed on failure, so the caller still owns its unit.
func (c *Cell[T, PT]) CompareExchange(expected, newV PT) (PT, *Borrow[T, PT]) {
	if c.domain.writePolicy != Concurrent {
		panic("hazarc: CompareExchange requires a Concurrent write-policy Domain")
	}
	if !c.nullable && newV == nil {
		panic("hazarc: CompareExchange called with nil on a non-nullable Cell")
	}
	if c.addr.CompareAndSwap((*T)(expected), (*T)(newV)) {
		c.scan(expected, newV, true)
		return expected, nil
	}
	return nil, c.loadWithPtr(PT(c.addr.Load()))
}

// FetchUpdate repeatedly applies f to the Cell's current value until
// either f reports it is done (ok=false, meaning "no change") or a
// compare-and-swap of f's result succeeds (spec §6 fetch_update). On
// success it returns the displaced value, owned by the caller. On f
// declining to update, it returns the last-observed value as a Borrow
// the caller must Release.
func (c *Cell[T, PT]) FetchUpdate(f func(cur PT) (next PT, ok bool)) (PT, *Borrow[T, PT]) {
	b := c.Load()
	for {
		next, ok := f(b.Get())
		if !ok {
			return nil, b
		}
		old, failed := c.CompareExchange(b.Get(), next)
		if failed == nil {
			b.Release()
			return old, nil
		}
		// CompareExchange does not consume next on failure (same
		// contract CompareExchange itself documents for its own
		// caller); we constructed it, so we must release it.
		if next != nil {
			next.Release()
		}
		b.Release()
		b = failed
	}
}

// Close tears the Cell down: it swaps in nil and releases the
// displaced unit itself rather than handing it to a caller, and — like
// spec §4.4's note on drop — never deposits the nil into a clone slot,
// since nothing will ever come looking for it. The Cell must not be
// used again afterward.
func (c *Cell[T, PT]) Close() {
	old := PT(c.addr.Swap(nil))
	c.scan(old, nil, false)
	if old != nil {
		old.Release()
	}
}

// loadWithPtr is the entry point shared by every read: it claims a
// node for the duration of this one call (SPEC_FULL.md §3), tries the
// round-robin borrow-slot fast path (spec §4.3), and falls back to the
// clone-slot handshake (spec §4.2) when every slot is occupied or the
// fast path loses its race.
func (c *Cell[T, PT]) loadWithPtr(ptr PT) *Borrow[T, PT] {
	if c.nullable && ptr == nil {
		return ownedBorrow[T, PT](nil)
	}
	n := c.domain.acquireNode()
	defer c.domain.releaseNode(n)

	if slot, idx, ok := n.findFreeSlot(); ok {
		return c.loadWithSlot(ptr, n, slot, idx)
	}
	return c.loadFallback(n)
}

// loadWithSlot implements spec §4.3's fast path: publish, re-read,
// decide.
func (c *Cell[T, PT]) loadWithSlot(ptr PT, n *node[T, PT], s *borrowSlot[T, PT], idx uint32) *Borrow[T, PT] {
	n.advanceCursor(idx)
	s.publish(ptr)

	checked := PT(c.addr.Load())
	if checked == ptr {
		return slotBorrow(checked, s)
	}

	if c.nullable && checked == nil {
		if s.release(ptr) {
			return ownedBorrow[T, PT](nil)
		}
		// A writer transferred a unit for ptr into our slot, but the
		// value we actually observed is null: there is nothing to
		// return it as, so discard the transferred unit.
		ptr.Release()
		return ownedBorrow[T, PT](nil)
	}

	if s.release(ptr) {
		// Nobody raced us onto this slot; retry through the clone-slot
		// handshake against the node we already hold.
		return c.loadFallback(n)
	}
	// A writer already transferred a unit for ptr into our slot on our
	// behalf (spec §4.4 step 3); we own it now, unbound.
	return ownedBorrow[T, PT](ptr)
}

// loadFallback implements spec §4.2's clone-slot handshake: advertise,
// re-read, attempt to confirm, resolve.
func (c *Cell[T, PT]) loadFallback(n *node[T, PT]) *Borrow[T, PT] {
	var key uint64
	if c.domain.writePolicy == Concurrent {
		n.scratchStore(unsafe.Pointer(c))
		key = n.nextGeneration()
	} else {
		key = cellKey(c)
	}
	state := n.clone.advertise(key)

	cur := PT(c.addr.Load())
	if c.nullable && cur == nil {
		n.clone.clear(state)
		return ownedBorrow[T, PT](nil)
	}

	if confirmed, ok := n.clone.tryConfirm(state, cur); ok {
		cur.Retain()
		if n.clone.clear(confirmed) {
			return ownedBorrow[T, PT](cur)
		}
		// A writer deposited CONFIRM(old)->FREE concurrently with our
		// own clear; our extra retain above is now redundant, but the
		// writer's deposited unit still belongs to us.
		cur.Release()
		return ownedBorrow[T, PT](cur)
	} else {
		// Someone else already deposited directly into our PREPARE
		// slot (a writer matched it before our own re-read confirmed
		// it); take what they left.
		deposited := confirmed
		assert(deposited != nil && deposited.tag == cloneConfirm,
			"clone slot in unexpected state after a failed PREPARE confirmation")
		addr := deposited.addr
		n.clone.clear(deposited)
		return ownedBorrow[T, PT](addr)
	}
}

// scan is the writer side of the protocol (spec §4.4 step 3): for
// every node in the domain, transfer old's displaced unit into any
// borrow slot still observing it, and — unless depositNew is false,
// which is how Close opts out — deposit newV into any clone-slot
// handshake mid-flight for this Cell.
func (c *Cell[T, PT]) scan(old, newV PT, depositNew bool) {
	concurrentPolicy := c.domain.writePolicy == Concurrent
	c.domain.forEachNode(func(n *node[T, PT]) {
		if concurrentPolicy {
			n.markWriterActive()
			defer n.markWriterDone()
		}

		for i := range n.slots {
			s := &n.slots[i]
			if s.check() != old {
				continue
			}
			if old != nil {
				old.Retain()
			}
			if !s.release(old) {
				// The reader already moved on by itself; our extra
				// unit is redundant.
				if old != nil {
					old.Release()
				}
			}
		}

		if !depositNew {
			return
		}
		state := n.clone.load()
		if state == nil {
			return
		}
		switch state.tag {
		case clonePrepare:
			c.depositPrepare(n, state, old, newV, concurrentPolicy)
		case cloneConfirm:
			if state.addr == old {
				if old != nil {
					old.Retain()
				}
				if !n.clone.clearConfirmed(state) {
					if old != nil {
						old.Release()
					}
				}
			}
		}
	})
}

// depositPrepare handles the PREPARE(k) branch of a writer's scan
// (spec §4.4 step 3): match the advertised key against this Cell, then
// attempt to deposit the new value.
func (c *Cell[T, PT]) depositPrepare(n *node[T, PT], state *cloneState[T, PT], old, newV PT, concurrentPolicy bool) {
	matches := false
	if c.domain.writePolicy == Serialized {
		matches = state.key == cellKey(c)
	} else if n.scratchLoad() == unsafe.Pointer(c) {
		// Also check that the clone slot still holds the state scan
		// loaded, i.e. it has not moved on between the two loads.
		if n.clone.load() == state {
			matches = true
		}
	}
	if !matches {
		return
	}

	deposit := newV
	if concurrentPolicy {
		// A later writer may already have superseded this swap by the
		// time this scan runs; depositing our own (now-stale) newV
		// would let the reader observe an older value after it could
		// already have observed a newer one. Depositing whatever is
		// currently stored instead preserves monotonicity.
		if cur := PT(c.addr.Load()); cur != newV {
			deposit = cur
		}
	}
	if deposit != nil {
		deposit.Retain()
	}
	if !n.clone.depositForPrepare(state, deposit) {
		if deposit != nil {
			deposit.Release()
		}
	}
}
