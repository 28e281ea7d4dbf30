package hazarc

import "sync/atomic"

// cloneTag distinguishes the three states of a clone slot (spec §4.2).
// Go cannot steal tag bits out of a real pointer without breaking the
// GC's scanning contract (spec §9's design note), so instead of packing
// a tag into the low bits of an address we carry it in a sibling field
// of a small boxed struct and CAS the struct's address as a whole. That
// gives the same "one atomic word, several tagged states" behavior as
// the original's packed pointer, at the cost of one allocation per
// clone-slot transition — acceptable since the clone slot is strictly
// the cold fallback path (spec §4.3: taken only when every borrow slot
// is occupied or a publication raced a writer).
type cloneTag uint8

const (
	cloneIdle cloneTag = iota
	clonePrepare
	cloneConfirm
)

// cloneState is the boxed (address, tag) pair a clone slot's
// atomic.Pointer holds. nil means IDLE.
type cloneState[T any, PT RefCounted[T]] struct {
	tag cloneTag
	// key identifies the target cell while tag == clonePrepare: either
	// the cell's own identity (serialized policy) or a generation
	// number unique to this handshake (concurrent policy).
	key uint64
	// addr is the value address while tag == cloneConfirm.
	addr PT
}

// cloneSlot is a per-node atomic tagged cell, initially IDLE (nil).
type cloneSlot[T any, PT RefCounted[T]] struct {
	state atomic.Pointer[cloneState[T, PT]]
}

func (c *cloneSlot[T, PT]) load() *cloneState[T, PT] {
	return c.state.Load()
}

// advertise stores PREPARE(key), a plain SC store — spec §4.2 step 1.
// Only the node's current, exclusive owner ever advertises, so no CAS
// is needed here (mirrors the original's plain `.store` in
// load_fallback).
func (c *cloneSlot[T, PT]) advertise(key uint64) *cloneState[T, PT] {
	s := &cloneState[T, PT]{tag: clonePrepare, key: key}
	c.state.Store(s)
	return s
}

// tryConfirm attempts PREPARE(expected) -> CONFIRM(addr).
func (c *cloneSlot[T, PT]) tryConfirm(expected *cloneState[T, PT], addr PT) (*cloneState[T, PT], bool) {
	next := &cloneState[T, PT]{tag: cloneConfirm, addr: addr}
	if c.state.CompareAndSwap(expected, next) {
		return next, true
	}
	return c.state.Load(), false
}

// clear attempts expected -> IDLE.
func (c *cloneSlot[T, PT]) clear(expected *cloneState[T, PT]) bool {
	return c.state.CompareAndSwap(expected, nil)
}

// depositForPrepare is the writer-side transition PREPARE(k) -> new,
// used when a writer finds a reader mid-handshake for the cell it is
// about to update (spec §4.4 step 3).
func (c *cloneSlot[T, PT]) depositForPrepare(expected *cloneState[T, PT], newAddr PT) bool {
	next := &cloneState[T, PT]{tag: cloneConfirm, addr: newAddr}
	return c.state.CompareAndSwap(expected, next)
}

// clearConfirmed is the writer-side transition CONFIRM(old) -> IDLE.
func (c *cloneSlot[T, PT]) clearConfirmed(expected *cloneState[T, PT]) bool {
	return c.state.CompareAndSwap(expected, nil)
}
