package hazarc

// Borrow is a short-lived observer of a value returned by Cell.Load
// (spec §3 "Borrow handle", §4.6). While a Borrow is live the value it
// observed is guaranteed not to be freed. Callers must call Release
// exactly once when finished; Go has no destructors, so — unlike the
// Rust original's Drop — releasing is an explicit call, the same
// discipline _examples/balasanjay-lrlock/lrlock.go asks of its
// RLockToken (RUnlock) and
// _examples/other_examples/597a9d7a_ywave620-mult-version-smart-ptr__smart_ptr.go.go
// asks of its ImmRscHandle (Unref/DoneUsingResource).
//
// A Borrow carries either a binding to the slot that still protects its
// address (releasing clears the slot) or, when it was produced via the
// clone-slot fallback or displaced by a writer, ownership of its own
// reference-count unit (releasing decrements it).
type Borrow[T any, PT RefCounted[T]] struct {
	addr     PT
	slot     *borrowSlot[T, PT] // nil => this borrow owns its own unit
	released bool
}

func slotBorrow[T any, PT RefCounted[T]](addr PT, slot *borrowSlot[T, PT]) *Borrow[T, PT] {
	return &Borrow[T, PT]{addr: addr, slot: slot}
}

func ownedBorrow[T any, PT RefCounted[T]](addr PT) *Borrow[T, PT] {
	return &Borrow[T, PT]{addr: addr}
}

// Get returns the borrowed value. Valid until Release is called.
func (b *Borrow[T, PT]) Get() PT {
	return b.addr
}

// Release ends the borrow. Calling it more than once panics — matching
// the teacher's own "use after unlock" panics (lrlock.go's
// RLockToken.RUnlock: "Use of a RLockToken after RUnlock is invalid.").
func (b *Borrow[T, PT]) Release() {
	if b.released {
		panic("hazarc: Borrow released twice")
	}
	b.released = true
	if b.addr == nil {
		return
	}
	if b.slot == nil {
		b.addr.Release()
		return
	}
	if !b.slot.release(b.addr) {
		// A writer already transferred the unit into this borrow on
		// our behalf (spec §4.6): we own it now and must release it
		// explicitly.
		b.addr.Release()
	}
}

// Clone produces a new, independent Borrow over the same value by
// adding one reference-count unit. The clone is always unbound (it
// owns its own unit) regardless of how the receiver was produced.
func (b *Borrow[T, PT]) Clone() *Borrow[T, PT] {
	if b.addr != nil {
		b.addr.Retain()
	}
	return ownedBorrow[T, PT](b.addr)
}

// IntoOwned consumes the Borrow and returns an address the caller owns
// outright — a fresh reference-count unit, not a slot binding (spec §6
// "into_owned": "if the borrow owns its unit directly, take it as is;
// otherwise retain and release the binding"). The Borrow must not be
// used again afterward.
func (b *Borrow[T, PT]) IntoOwned() PT {
	if b.released {
		panic("hazarc: Borrow released twice")
	}
	if b.slot == nil {
		b.released = true
		return b.addr
	}
	if b.addr != nil {
		b.addr.Retain()
	}
	owned := b.addr
	b.Release()
	return owned
}
