package reconcile

// Matcher reports whether a local item and a remote item denote the same
// real-world object.
type Matcher[L, R any] func(local L, remote R) bool

// Chain is an ordered list of matchers, registered most-specific first.
// Natural-key schemes evolve over time, so a single equality test is not
// enough: items synced before a key-scheme change must still pair up under
// the key they were written with.
type Chain[L, R any] []Matcher[L, R]

// Match reports whether any matcher in the chain pairs local with remote.
// The chain is a logical OR: all matchers are candidates for every pair,
// not a fallback sequence with early exit on the first miss.
func (c Chain[L, R]) Match(local L, remote R) bool {
	for _, m := range c {
		if m(local, remote) {
			return true
		}
	}
	return false
}
