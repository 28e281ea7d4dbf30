// Package hazarc implements a wait-free, read-optimized atomic smart
// pointer: a cell that holds a reference-counted value and lets any
// number of concurrent readers borrow or clone it without ever taking a
// lock, spinning, or deferring reclamation to a global collector.
//
// See the hazard-pointer literature and, in particular, the `arc-swap`
// family of designs this package's protocol descends from. You should
// reach for it when you have a value that is replaced occasionally
// (configuration, a routing table, a snapshot) and read very often from
// many goroutines — for anything less exotic, a sync.RWMutex or
// atomic.Pointer is simpler and probably good enough.
//
// A Cell stores one *T at a time. Readers call Load to obtain a Borrow,
// a short-lived observer that guarantees the referenced value stays
// alive until Released, or LoadOwned to obtain their own independently
// reference-counted handle. Writers call Swap, Store, CompareExchange,
// or FetchUpdate. Writers are wait-free against a bounded fleet of
// readers; readers never block a writer and a writer never blocks a
// reader.
//
// The value type T must implement RefCounted. A Domain groups the
// hazard-tracking state (thread nodes, slots, the clone-slot fallback)
// shared by every Cell that draws from it; most programs need exactly
// one Domain per value type.
package hazarc
