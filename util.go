package hazarc

// roundNearestPowerOf2 rounds v up to the next power of two (v=0 stays
// 0). Adapted from _examples/balasanjay-lrlock/util.go (extended to
// 64-bit and to treat 0 specially), reused here to round a configured
// slot count up to a power of two so the round-robin cursor can wrap
// with a cheap bitmask (spec §3: "S ≥ 0, typically a power of two").
//
// http://graphics.stanford.edu/~seander/bithacks.html#RoundUpPowerOf2
func roundNearestPowerOf2(v uint) uint {
	if v == 0 {
		return 0
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++
	return v
}
