// Package btree implements an in-memory B+tree mapping column values to the
// rows that hold them.
//
// Nodes live in an arena slice and refer to each other by position, so splits
// and merges never juggle parent pointers. Internal nodes route by separator
// keys; leaves hold the keys and their row-id sets and are chained left to
// right for range scans.
package btree

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/tuannm99/tinyrdb/internal/record"
	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

// DefaultOrder is the branching factor used when none is configured.
const DefaultOrder = 4

const nilNode = -1

type node struct {
	leaf     bool
	keys     []record.Value
	vals     [][]record.RowID // leaf only, parallel to keys
	children []int            // internal only, len(keys)+1
	next     int              // leaf chain
}

// Tree is a B+tree of order m: every node holds at most m-1 keys and every
// non-root node at least ceil(m/2)-1. A unique tree maps each key to exactly
// one row; otherwise each key maps to a sorted set of rows.
type Tree struct {
	order  int
	unique bool

	nodes []node
	free  []int
	root  int

	keys    int // distinct keys
	entries int // (key, row) pairs
}

func New(order int, unique bool) (*Tree, error) {
	if order < 3 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidOrder, order)
	}
	t := &Tree{order: order, unique: unique}
	t.root = t.alloc(true)
	return t, nil
}

func (t *Tree) Unique() bool { return t.unique }
func (t *Tree) Order() int   { return t.order }

// Len returns the number of distinct keys.
func (t *Tree) Len() int { return t.keys }

// Entries returns the number of (key, row) pairs.
func (t *Tree) Entries() int { return t.entries }

// Height is 1 for a tree whose root is a leaf.
func (t *Tree) Height() int {
	h := 1
	for n := t.root; !t.nodes[n].leaf; n = t.nodes[n].children[0] {
		h++
	}
	return h
}

func (t *Tree) maxKeys() int { return t.order - 1 }
func (t *Tree) minKeys() int { return (t.order+1)/2 - 1 }

// ---- arena ----

func (t *Tree) alloc(leaf bool) int {
	n := node{leaf: leaf, next: nilNode}
	if k := len(t.free); k > 0 {
		id := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[id] = n
		return id
	}
	t.nodes = append(t.nodes, n)
	return len(t.nodes) - 1
}

func (t *Tree) release(id int) {
	t.nodes[id] = node{next: nilNode}
	t.free = append(t.free, id)
}

// ---- search ----

// childFor returns the child slot of an internal node to follow for key:
// child i holds keys in [keys[i-1], keys[i]).
func (t *Tree) childFor(n *node, key record.Value) int {
	return sort.Search(len(n.keys), func(i int) bool {
		return record.MustCompare(n.keys[i], key) > 0
	})
}

// lowerBound returns the first slot in a leaf whose key is >= key.
func lowerBound(n *node, key record.Value) int {
	return sort.Search(len(n.keys), func(i int) bool {
		return record.MustCompare(n.keys[i], key) >= 0
	})
}

type step struct {
	node int
	slot int // child slot taken in node
}

// descend walks from the root to the leaf responsible for key and returns
// the internal nodes visited on the way.
func (t *Tree) descend(key record.Value) (int, []step) {
	var path []step
	id := t.root
	for !t.nodes[id].leaf {
		n := &t.nodes[id]
		slot := t.childFor(n, key)
		path = append(path, step{node: id, slot: slot})
		id = n.children[slot]
	}
	return id, path
}

// Lookup returns the rows holding key, in ascending RowID order.
func (t *Tree) Lookup(key record.Value) []record.RowID {
	if key.IsNull() {
		return nil
	}
	leaf, _ := t.descend(key)
	n := &t.nodes[leaf]
	i := lowerBound(n, key)
	if i < len(n.keys) && record.MustCompare(n.keys[i], key) == 0 {
		return slices.Clone(n.vals[i])
	}
	return nil
}

// Contains reports whether any row holds key.
func (t *Tree) Contains(key record.Value) bool {
	return len(t.Lookup(key)) > 0
}

// ---- insert ----

// Insert adds (key, id). A unique tree fails with a ConstraintViolation when
// key is already present. Re-inserting an existing pair is a no-op.
func (t *Tree) Insert(key record.Value, id record.RowID) error {
	if key.IsNull() {
		return ErrNullKey
	}

	leaf, path := t.descend(key)
	n := &t.nodes[leaf]
	i := lowerBound(n, key)

	if i < len(n.keys) && record.MustCompare(n.keys[i], key) == 0 {
		ids := n.vals[i]
		pos, found := slices.BinarySearch(ids, id)
		if found {
			return nil
		}
		if t.unique {
			return sqlerr.Constraintf("duplicate key %s", key)
		}
		n.vals[i] = slices.Insert(ids, pos, id)
		t.entries++
		return nil
	}

	n.keys = slices.Insert(n.keys, i, key)
	n.vals = slices.Insert(n.vals, i, []record.RowID{id})
	t.keys++
	t.entries++

	if len(n.keys) > t.maxKeys() {
		t.split(leaf, path)
	}
	return nil
}

// split divides an overflowing node and pushes a separator into its parent,
// recursing while parents overflow. A leaf split copies the right half's first
// key up; an internal split moves its median up.
func (t *Tree) split(id int, path []step) {
	for {
		right := t.alloc(t.nodes[id].leaf)
		n, r := &t.nodes[id], &t.nodes[right]

		mid := len(n.keys) / 2
		var sep record.Value
		if n.leaf {
			r.keys = slices.Clone(n.keys[mid:])
			r.vals = slices.Clone(n.vals[mid:])
			n.keys = slices.Clip(n.keys[:mid])
			n.vals = slices.Clip(n.vals[:mid])
			r.next, n.next = n.next, right
			sep = r.keys[0]
		} else {
			sep = n.keys[mid]
			r.keys = slices.Clone(n.keys[mid+1:])
			r.children = slices.Clone(n.children[mid+1:])
			n.keys = slices.Clip(n.keys[:mid])
			n.children = slices.Clip(n.children[:mid+1])
		}

		if len(path) == 0 {
			root := t.alloc(false)
			t.nodes[root].keys = []record.Value{sep}
			t.nodes[root].children = []int{id, right}
			t.root = root
			slog.Debug("btree: root split", "height", t.Height(), "keys", t.keys)
			return
		}

		parent := path[len(path)-1]
		path = path[:len(path)-1]
		p := &t.nodes[parent.node]
		p.keys = slices.Insert(p.keys, parent.slot, sep)
		p.children = slices.Insert(p.children, parent.slot+1, right)
		if len(p.keys) <= t.maxKeys() {
			return
		}
		id = parent.node
	}
}

// ---- remove ----

// Remove deletes (key, id) and reports whether it was present.
func (t *Tree) Remove(key record.Value, id record.RowID) bool {
	if key.IsNull() {
		return false
	}
	leaf, path := t.descend(key)
	n := &t.nodes[leaf]
	i := lowerBound(n, key)
	if i >= len(n.keys) || record.MustCompare(n.keys[i], key) != 0 {
		return false
	}
	pos, found := slices.BinarySearch(n.vals[i], id)
	if !found {
		return false
	}
	t.entries--
	if len(n.vals[i]) > 1 {
		n.vals[i] = slices.Delete(n.vals[i], pos, pos+1)
		return true
	}

	n.keys = slices.Delete(n.keys, i, i+1)
	n.vals = slices.Delete(n.vals, i, i+1)
	t.keys--
	t.rebalance(leaf, path)
	return true
}

// rebalance restores minimum occupancy after a removal, borrowing from a
// sibling when it can spare a key and merging otherwise. Merges may leave
// the parent short, so the walk continues upward. An internal root left
// with no keys is replaced by its only child.
func (t *Tree) rebalance(id int, path []step) {
	for {
		if id == t.root {
			root := &t.nodes[id]
			if !root.leaf && len(root.keys) == 0 {
				t.root = root.children[0]
				t.release(id)
				slog.Debug("btree: root collapsed", "height", t.Height())
			}
			return
		}
		if len(t.nodes[id].keys) >= t.minKeys() {
			return
		}

		parent := path[len(path)-1]
		path = path[:len(path)-1]
		ci := parent.slot
		p := &t.nodes[parent.node]

		left, right := nilNode, nilNode
		if ci > 0 {
			left = p.children[ci-1]
		}
		if ci < len(p.children)-1 {
			right = p.children[ci+1]
		}

		switch {
		case left != nilNode && len(t.nodes[left].keys) > t.minKeys():
			t.borrowFromLeft(parent.node, ci)
			return
		case right != nilNode && len(t.nodes[right].keys) > t.minKeys():
			t.borrowFromRight(parent.node, ci)
			return
		case left != nilNode:
			t.merge(parent.node, ci-1)
		default:
			t.merge(parent.node, ci)
		}
		id = parent.node
	}
}

func (t *Tree) borrowFromLeft(parent, ci int) {
	p := &t.nodes[parent]
	n, l := &t.nodes[p.children[ci]], &t.nodes[p.children[ci-1]]
	last := len(l.keys) - 1

	if n.leaf {
		n.keys = slices.Insert(n.keys, 0, l.keys[last])
		n.vals = slices.Insert(n.vals, 0, l.vals[last])
		l.keys, l.vals = l.keys[:last], l.vals[:last]
		p.keys[ci-1] = n.keys[0]
		return
	}

	n.keys = slices.Insert(n.keys, 0, p.keys[ci-1])
	n.children = slices.Insert(n.children, 0, l.children[last+1])
	p.keys[ci-1] = l.keys[last]
	l.keys, l.children = l.keys[:last], l.children[:last+1]
}

func (t *Tree) borrowFromRight(parent, ci int) {
	p := &t.nodes[parent]
	n, r := &t.nodes[p.children[ci]], &t.nodes[p.children[ci+1]]

	if n.leaf {
		n.keys = append(n.keys, r.keys[0])
		n.vals = append(n.vals, r.vals[0])
		r.keys, r.vals = slices.Delete(r.keys, 0, 1), slices.Delete(r.vals, 0, 1)
		p.keys[ci] = r.keys[0]
		return
	}

	n.keys = append(n.keys, p.keys[ci])
	n.children = append(n.children, r.children[0])
	p.keys[ci] = r.keys[0]
	r.keys, r.children = slices.Delete(r.keys, 0, 1), slices.Delete(r.children, 0, 1)
}

// merge folds child ci+1 of parent into child ci and drops the separator
// between them.
func (t *Tree) merge(parent, ci int) {
	p := &t.nodes[parent]
	leftID, rightID := p.children[ci], p.children[ci+1]
	l, r := &t.nodes[leftID], &t.nodes[rightID]

	if l.leaf {
		l.keys = append(l.keys, r.keys...)
		l.vals = append(l.vals, r.vals...)
		l.next = r.next
	} else {
		l.keys = append(l.keys, p.keys[ci])
		l.keys = append(l.keys, r.keys...)
		l.children = append(l.children, r.children...)
	}

	p.keys = slices.Delete(p.keys, ci, ci+1)
	p.children = slices.Delete(p.children, ci+1, ci+2)
	t.release(rightID)
}
