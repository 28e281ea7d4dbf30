package hazarc

// debugAssertions gates invariant checks that are expensive or that can
// only ever observe a state transiently (a compare-exchange pattern
// elsewhere already turns the violation into a benign retry). Flip it
// on in tests; release builds pay nothing for it.
//
// See spec §7: "Detected invariant violations... are debug-only
// assertions; in release builds the protocol's compare-exchange pattern
// silently turns them into benign retries, preserving safety."
var debugAssertions = false

func assert(cond bool, msg string) {
	if debugAssertions && !cond {
		panic("hazarc: internal invariant violated: " + msg)
	}
}
