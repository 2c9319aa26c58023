package reconcile

import (
	"sort"
	"testing"
)

// helpers

type local struct {
	id  string
	key string
}

type remote struct {
	key string
	val string
}

// byKey matches a local to a remote on exact key equality.
func byKey(l local, r remote) bool { return l.key == r.key }

// byID matches a local whose id equals the remote key (a "legacy" scheme).
func byID(l local, r remote) bool { return l.id == r.key }

func keyChain() Chain[local, remote] { return Chain[local, remote]{byKey} }

func sortedRemoteKeys(rs []remote) []string {
	keys := make([]string, len(rs))
	for i, r := range rs {
		keys[i] = r.key
	}
	sort.Strings(keys)
	return keys
}

// --- Empty-side cases ---

func TestDiff_EmptyLocal_AllRemotesAdded(t *testing.T) {
	remotes := []remote{{key: "a.com."}, {key: "b.com."}}

	res := Diff(nil, remotes, keyChain())

	if len(res.ToAdd) != 2 {
		t.Fatalf("ToAdd len = %d, want 2", len(res.ToAdd))
	}
	if len(res.ToUpdate) != 0 || len(res.ToDelete) != 0 {
		t.Errorf("unexpected updates or deletes: %+v", res)
	}
}

func TestDiff_EmptyRemote_AllLocalsDeleted(t *testing.T) {
	locals := []local{{id: "1", key: "a.com"}, {id: "2", key: "b.com"}}

	res := Diff(locals, nil, keyChain())

	if len(res.ToDelete) != 2 {
		t.Fatalf("ToDelete len = %d, want 2", len(res.ToDelete))
	}
	if len(res.ToAdd) != 0 || len(res.ToUpdate) != 0 {
		t.Errorf("unexpected adds or updates: %+v", res)
	}
}

func TestDiff_BothEmpty_IsEmpty(t *testing.T) {
	res := Diff(nil, nil, keyChain())
	if !res.IsEmpty() {
		t.Errorf("IsEmpty() = false for empty inputs: %+v", res)
	}
}

// --- Matching ---

func TestDiff_IdenticalKeys_AllPaired(t *testing.T) {
	locals := []local{{id: "1", key: "a"}, {id: "2", key: "b"}}
	remotes := []remote{{key: "b"}, {key: "a"}}

	res := Diff(locals, remotes, keyChain())

	if len(res.ToUpdate) != 2 {
		t.Fatalf("ToUpdate len = %d, want 2", len(res.ToUpdate))
	}
	if len(res.ToAdd) != 0 || len(res.ToDelete) != 0 {
		t.Errorf("unexpected adds or deletes: %+v", res)
	}
	// Pairs follow local listing order.
	if res.ToUpdate[0].Local.id != "1" || res.ToUpdate[0].Remote.key != "a" {
		t.Errorf("pair 0 = (%s, %s), want (1, a)", res.ToUpdate[0].Local.id, res.ToUpdate[0].Remote.key)
	}
	if res.ToUpdate[1].Local.id != "2" || res.ToUpdate[1].Remote.key != "b" {
		t.Errorf("pair 1 = (%s, %s), want (2, b)", res.ToUpdate[1].Local.id, res.ToUpdate[1].Remote.key)
	}
}

func TestDiff_MixedKeys_Partitions(t *testing.T) {
	locals := []local{{id: "1", key: "keep"}, {id: "2", key: "gone"}}
	remotes := []remote{{key: "keep"}, {key: "new"}}

	res := Diff(locals, remotes, keyChain())

	if len(res.ToUpdate) != 1 || res.ToUpdate[0].Local.id != "1" {
		t.Fatalf("ToUpdate = %+v, want single pair for local 1", res.ToUpdate)
	}
	if len(res.ToDelete) != 1 || res.ToDelete[0].id != "2" {
		t.Fatalf("ToDelete = %+v, want single local 2", res.ToDelete)
	}
	if len(res.ToAdd) != 1 || res.ToAdd[0].key != "new" {
		t.Fatalf("ToAdd = %+v, want single remote new", res.ToAdd)
	}
}

// Partition property: every input appears in exactly one output set.
func TestDiff_ClassificationIsTotal(t *testing.T) {
	locals := []local{
		{id: "1", key: "a"}, {id: "2", key: "b"}, {id: "3", key: "x"},
	}
	remotes := []remote{
		{key: "b"}, {key: "c"}, {key: "a"}, {key: "d"},
	}

	res := Diff(locals, remotes, keyChain())

	if got := len(res.ToUpdate) + len(res.ToDelete); got != len(locals) {
		t.Errorf("local side covers %d items, want %d", got, len(locals))
	}
	if got := len(res.ToUpdate) + len(res.ToAdd); got != len(remotes) {
		t.Errorf("remote side covers %d items, want %d", got, len(remotes))
	}

	seen := map[string]bool{}
	for _, p := range res.ToUpdate {
		if seen[p.Local.id] {
			t.Errorf("local %s classified twice", p.Local.id)
		}
		seen[p.Local.id] = true
	}
	for _, l := range res.ToDelete {
		if seen[l.id] {
			t.Errorf("local %s classified twice", l.id)
		}
		seen[l.id] = true
	}
}

// --- Chain semantics ---

func TestDiff_LegacyMatcherPairsWhenPrimaryFails(t *testing.T) {
	// Local carries its key in the id field only, the legacy scheme.
	locals := []local{{id: "foo.example.com", key: "A:foo.example.com"}}
	remotes := []remote{{key: "foo.example.com"}}

	res := Diff(locals, remotes, Chain[local, remote]{byKey, byID})

	if len(res.ToUpdate) != 1 {
		t.Fatalf("ToUpdate len = %d, want 1 (legacy matcher should pair)", len(res.ToUpdate))
	}
	if len(res.ToAdd) != 0 || len(res.ToDelete) != 0 {
		t.Errorf("unexpected adds or deletes: %+v", res)
	}
}

func TestDiff_EmptyChain_NothingPairs(t *testing.T) {
	locals := []local{{id: "1", key: "a"}}
	remotes := []remote{{key: "a"}}

	res := Diff(locals, remotes, nil)

	if len(res.ToUpdate) != 0 {
		t.Errorf("ToUpdate len = %d, want 0 with empty chain", len(res.ToUpdate))
	}
	if len(res.ToDelete) != 1 || len(res.ToAdd) != 1 {
		t.Errorf("expected full disjoint classification, got %+v", res)
	}
}

// --- Greedy assignment / duplicates ---

func TestDiff_DuplicateRemoteKeys_LeftoverBecomesAdd(t *testing.T) {
	locals := []local{{id: "1", key: "dup"}}
	remotes := []remote{{key: "dup", val: "first"}, {key: "dup", val: "second"}}

	res := Diff(locals, remotes, keyChain())

	if len(res.ToUpdate) != 1 || res.ToUpdate[0].Remote.val != "first" {
		t.Fatalf("ToUpdate = %+v, want the first duplicate paired", res.ToUpdate)
	}
	if len(res.ToAdd) != 1 || res.ToAdd[0].val != "second" {
		t.Fatalf("ToAdd = %+v, want the leftover duplicate", res.ToAdd)
	}
}

func TestDiff_GreedyFirstEncounteredWins(t *testing.T) {
	// Two locals both match remote "dup" — the first local in listing order
	// claims it, the second is deleted.
	locals := []local{{id: "1", key: "dup"}, {id: "2", key: "dup"}}
	remotes := []remote{{key: "dup"}}

	res := Diff(locals, remotes, keyChain())

	if len(res.ToUpdate) != 1 || res.ToUpdate[0].Local.id != "1" {
		t.Fatalf("ToUpdate = %+v, want local 1 paired", res.ToUpdate)
	}
	if len(res.ToDelete) != 1 || res.ToDelete[0].id != "2" {
		t.Fatalf("ToDelete = %+v, want local 2", res.ToDelete)
	}
}

func TestDiff_DoesNotMutateInputs(t *testing.T) {
	locals := []local{{id: "1", key: "a"}}
	remotes := []remote{{key: "a"}, {key: "b"}}

	_ = Diff(locals, remotes, keyChain())

	if keys := sortedRemoteKeys(remotes); keys[0] != "a" || keys[1] != "b" {
		t.Errorf("remotes mutated: %v", keys)
	}
	if locals[0].id != "1" || locals[0].key != "a" {
		t.Errorf("locals mutated: %+v", locals)
	}
}
