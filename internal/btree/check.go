package btree

import (
	"fmt"
	"slices"

	"github.com/tuannm99/tinyrdb/internal/record"
)

// Check verifies the structural invariants: strictly ascending keys, every
// key inside its separators' range, node occupancy, equal leaf depth, a leaf
// chain that visits every leaf in key order, and consistent counters.
func (t *Tree) Check() error {
	var (
		leafDepth = -1
		leaves    []int
		keys      int
		entries   int
	)

	var walk func(id, depth int, lo, hi *record.Value) error
	walk = func(id, depth int, lo, hi *record.Value) error {
		n := &t.nodes[id]
		if len(n.keys) > t.maxKeys() {
			return fmt.Errorf("btree: node %d has %d keys, max %d", id, len(n.keys), t.maxKeys())
		}
		if id != t.root && len(n.keys) < t.minKeys() {
			return fmt.Errorf("btree: node %d has %d keys, min %d", id, len(n.keys), t.minKeys())
		}
		for i, k := range n.keys {
			if i > 0 && record.MustCompare(n.keys[i-1], k) >= 0 {
				return fmt.Errorf("btree: node %d keys out of order at %d", id, i)
			}
			if lo != nil && record.MustCompare(k, *lo) < 0 {
				return fmt.Errorf("btree: node %d key %s below separator %s", id, k, *lo)
			}
			if hi != nil && record.MustCompare(k, *hi) >= 0 {
				return fmt.Errorf("btree: node %d key %s not below separator %s", id, k, *hi)
			}
		}

		if n.leaf {
			if leafDepth == -1 {
				leafDepth = depth
			} else if depth != leafDepth {
				return fmt.Errorf("btree: leaf %d at depth %d, want %d", id, depth, leafDepth)
			}
			if len(n.vals) != len(n.keys) {
				return fmt.Errorf("btree: leaf %d has %d keys but %d row sets", id, len(n.keys), len(n.vals))
			}
			for i, ids := range n.vals {
				if len(ids) == 0 {
					return fmt.Errorf("btree: leaf %d key %s has no rows", id, n.keys[i])
				}
				if t.unique && len(ids) > 1 {
					return fmt.Errorf("btree: unique key %s maps to %d rows", n.keys[i], len(ids))
				}
				if !slices.IsSorted(ids) {
					return fmt.Errorf("btree: rows of key %s are not sorted", n.keys[i])
				}
				entries += len(ids)
			}
			keys += len(n.keys)
			leaves = append(leaves, id)
			return nil
		}

		if len(n.children) != len(n.keys)+1 {
			return fmt.Errorf("btree: node %d has %d keys and %d children", id, len(n.keys), len(n.children))
		}
		for i, c := range n.children {
			clo, chi := lo, hi
			if i > 0 {
				clo = &n.keys[i-1]
			}
			if i < len(n.keys) {
				chi = &n.keys[i]
			}
			if err := walk(c, depth+1, clo, chi); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(t.root, 1, nil, nil); err != nil {
		return err
	}

	for i, id := range leaves {
		want := nilNode
		if i+1 < len(leaves) {
			want = leaves[i+1]
		}
		if got := t.nodes[id].next; got != want {
			return fmt.Errorf("btree: leaf %d links to %d, want %d", id, got, want)
		}
	}
	if keys != t.keys || entries != t.entries {
		return fmt.Errorf("btree: counted %d keys/%d entries, tree says %d/%d", keys, entries, t.keys, t.entries)
	}
	return nil
}
