package hazarc

// RefCounted is the reference-count collaborator required of any value
// type stored in a Cell. Retain and Release must be safe to call
// concurrently, without acquiring any lock, and must not themselves go
// through a Cell (see spec §6's "reference-count bridge").
//
// RefCounted is parameterized over the underlying value type T rather
// than implemented by T directly because Retain/Release need pointer
// semantics (a shared, mutable refcount) — so it's *T, not T, that
// implements them. A Cell is instantiated as Cell[Snapshot, *Snapshot],
// not Cell[*Snapshot, ...]; Go infers the second parameter in most call
// sites, so in practice this mostly reads as Cell[Snapshot].
//
// A value starts life already owning one unit (the unit the Cell, or
// the caller constructing a Borrow/owned handle, was given). Retain
// adds a unit; Release removes one, freeing the value when the count
// reaches zero. Implementations are expected to look like:
//
//	type Snapshot struct {
//	    refs int64 // atomic
//	    ...
//	}
//
//	func (s *Snapshot) Retain() {
//	    atomic.AddInt64(&s.refs, 1)
//	}
//
//	func (s *Snapshot) Release() {
//	    if atomic.AddInt64(&s.refs, -1) == 0 {
//	        // free s
//	    }
//	}
type RefCounted[T any] interface {
	*T
	Retain()
	Release()
}
