// Package reconcile holds the generic diff engine that classifies a local
// and a remote collection into add, update, and delete sets.
package reconcile

// Pair is a matched (local, remote) couple scheduled for update.
type Pair[L, R any] struct {
	Local  L
	Remote R
}

// Result partitions the two input collections. Every local item lands in
// exactly one of ToUpdate or ToDelete, and every remote item in exactly one
// of ToUpdate or ToAdd.
type Result[L, R any] struct {
	// ToAdd contains remote items with no local counterpart.
	ToAdd []R
	// ToUpdate contains matched pairs; the remote side wins on conflict.
	ToUpdate []Pair[L, R]
	// ToDelete contains local items no longer present remotely.
	ToDelete []L
}

// IsEmpty reports whether the classification contains no operations.
func (r *Result[L, R]) IsEmpty() bool {
	return len(r.ToAdd) == 0 && len(r.ToUpdate) == 0 && len(r.ToDelete) == 0
}

// Diff classifies locals against remotes using the matcher chain.
//
// Assignment is greedy: locals are walked in listing order, and each one
// claims the first still-unclaimed remote item the chain matches. Once
// paired, both sides leave the candidate pool. A local with no match is
// scheduled for deletion; remote items left unclaimed at the end are
// scheduled for addition.
//
// Duplicate remote natural keys are not deduplicated: the first local claims
// one duplicate and the leftovers classify as ToAdd, which creates duplicate
// local items downstream. A stricter engine might flag this as ambiguity
// instead; here the greedy outcome is the documented behavior.
//
// Diff performs no I/O and never mutates its inputs.
func Diff[L, R any](locals []L, remotes []R, chain Chain[L, R]) Result[L, R] {
	res := Result[L, R]{}

	claimed := make([]bool, len(remotes))
	for _, local := range locals {
		found := false
		for i, remote := range remotes {
			if claimed[i] {
				continue
			}
			if chain.Match(local, remote) {
				claimed[i] = true
				res.ToUpdate = append(res.ToUpdate, Pair[L, R]{Local: local, Remote: remote})
				found = true
				break
			}
		}
		if !found {
			res.ToDelete = append(res.ToDelete, local)
		}
	}

	for i, remote := range remotes {
		if !claimed[i] {
			res.ToAdd = append(res.ToAdd, remote)
		}
	}

	return res
}
