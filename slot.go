package hazarc

import "sync/atomic"

// borrowSlot is one reservation slot inside a node: a single
// tagged-address atomic, per spec §4.1. Unlike the clone slot, it needs
// no side tag — FREE is simply nil, RESERVED(addr) is any non-nil value
// — so it maps directly onto atomic.Pointer[T] with no boxing.
//
// Every atomic.Pointer operation is sequentially consistent under the
// Go memory model (https://go.dev/ref/mem), so publish/check/release
// below are SC by construction; there is no weaker ordering to opt
// into, unlike the Acquire/Relaxed/SeqCst choices the original Rust
// exposes.
type borrowSlot[T any, PT RefCounted[T]] struct {
	ptr atomic.Pointer[T]
}

// publish advertises addr as being observed by this slot.
func (s *borrowSlot[T, PT]) publish(addr PT) {
	s.ptr.Store((*T)(addr))
}

// check returns the address currently advertised, or nil if FREE.
func (s *borrowSlot[T, PT]) check() PT {
	return PT(s.ptr.Load())
}

// release attempts to clear the slot from expected back to FREE.
//
// Success means no writer raced the caller: the slot simply goes back
// to FREE, and the caller never held an independent reference-count
// unit through it — the Cell's own unit backed the slot's observation
// the whole time. Failure means a writer's scan already cleared the
// slot itself and, in doing so, transferred a real reference-count
// unit to the caller (spec §4.4 step 3); the caller now owns that unit
// outright and must dispose of it (typically via Release) — see the
// callers in cell.go and borrow.go.
func (s *borrowSlot[T, PT]) release(expected PT) bool {
	return s.ptr.CompareAndSwap((*T)(expected), nil)
}
