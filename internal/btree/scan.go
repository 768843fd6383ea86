package btree

import (
	"iter"
	"slices"

	"github.com/tuannm99/tinyrdb/internal/record"
)

// Bound limits one end of a range scan. A nil *Bound is unbounded.
type Bound struct {
	Key       record.Value
	Inclusive bool
}

func Incl(v record.Value) *Bound { return &Bound{Key: v, Inclusive: true} }
func Excl(v record.Value) *Bound { return &Bound{Key: v} }

// Ascend yields keys in ascending order with their rows, starting at lo and
// stopping after hi. Row slices are copies.
func (t *Tree) Ascend(lo, hi *Bound) iter.Seq2[record.Value, []record.RowID] {
	return func(yield func(record.Value, []record.RowID) bool) {
		id, slot := t.seek(lo)
		for id != nilNode {
			n := &t.nodes[id]
			for ; slot < len(n.keys); slot++ {
				k := n.keys[slot]
				if lo != nil && !lo.Inclusive && record.MustCompare(k, lo.Key) == 0 {
					continue
				}
				if hi != nil {
					c := record.MustCompare(k, hi.Key)
					if c > 0 || (c == 0 && !hi.Inclusive) {
						return
					}
				}
				if !yield(k, slices.Clone(n.vals[slot])) {
					return
				}
			}
			id, slot = n.next, 0
		}
	}
}

// seek positions at the first leaf slot that can satisfy lo.
func (t *Tree) seek(lo *Bound) (int, int) {
	if lo == nil {
		id := t.root
		for !t.nodes[id].leaf {
			id = t.nodes[id].children[0]
		}
		return id, 0
	}
	leaf, _ := t.descend(lo.Key)
	return leaf, lowerBound(&t.nodes[leaf], lo.Key)
}

// All yields every key in ascending order.
func (t *Tree) All() iter.Seq2[record.Value, []record.RowID] {
	return t.Ascend(nil, nil)
}

// RangeScan returns the rows whose keys fall between lo and hi, ordered by
// key and then by RowID.
func (t *Tree) RangeScan(lo, hi *Bound) []record.RowID {
	var out []record.RowID
	for _, ids := range t.Ascend(lo, hi) {
		out = append(out, ids...)
	}
	return out
}

// Keys returns every key in ascending order.
func (t *Tree) Keys() []record.Value {
	out := make([]record.Value, 0, t.keys)
	for k := range t.All() {
		out = append(out, k)
	}
	return out
}
