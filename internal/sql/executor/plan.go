package executor

import (
	"slices"

	"github.com/tuannm99/tinyrdb/internal/btree"
	"github.com/tuannm99/tinyrdb/internal/heap"
	"github.com/tuannm99/tinyrdb/internal/record"
	"github.com/tuannm99/tinyrdb/internal/sql/parser"
)

// Index access paths. An index only narrows the candidate rows; callers
// always re-check the full predicate, so choosing a path never changes a
// result.

// conjuncts flattens an AND chain.
func conjuncts(e parser.Expr, out []parser.Expr) []parser.Expr {
	if b, ok := e.(*parser.BinaryExpr); ok && b.Op == parser.OpAnd {
		return conjuncts(b.Right, conjuncts(b.Left, out))
	}
	return append(out, e)
}

// isConstant reports whether e can be evaluated without a row.
func isConstant(e parser.Expr) bool {
	switch x := e.(type) {
	case *parser.LiteralExpr:
		return true
	case *parser.UnaryExpr:
		return isConstant(x.Operand)
	case *parser.BinaryExpr:
		return isConstant(x.Left) && isConstant(x.Right)
	case *parser.FuncCall:
		if x.IsAggregate() || x.Star {
			return false
		}
		for _, a := range x.Args {
			if !isConstant(a) {
				return false
			}
		}
		return true
	}
	return false
}

// readsBefore reports whether e only reads columns at positions < width.
func readsBefore(sc *scope, e parser.Expr, width int) bool {
	switch x := e.(type) {
	case *parser.LiteralExpr:
		return true
	case *parser.ColumnRef:
		pos, err := sc.resolve(x)
		return err == nil && pos < width
	case *parser.UnaryExpr:
		return readsBefore(sc, x.Operand, width)
	case *parser.BinaryExpr:
		return readsBefore(sc, x.Left, width) && readsBefore(sc, x.Right, width)
	case *parser.FuncCall:
		if x.IsAggregate() || x.Star {
			return false
		}
		for _, a := range x.Args {
			if !readsBefore(sc, a, width) {
				return false
			}
		}
		return true
	}
	return false
}

// indexKey prepares v for probing an index over a column of type col. It
// reports false when the probe would not order like a row-by-row comparison;
// the caller then falls back to scanning.
func indexKey(col record.DataType, v record.Value) (record.Value, bool) {
	switch {
	case v.IsNull():
		return v, false
	case col == v.Type(),
		col.IsNumeric() && v.Type().IsNumeric(),
		col.IsTemporal() && v.Type().IsTemporal():
		return v, true
	case col.IsTemporal() && v.Type() == record.TypeVarchar:
		c, err := record.Coerce(v, record.ColumnType{Type: col})
		return c, err == nil
	}
	return v, false
}

// columnCond is what the conjuncts of a WHERE clause say about one column.
type columnCond struct {
	eq     *record.Value
	lo, hi *btree.Bound
	empty  bool // no row can match
}

func (c *columnCond) add(op parser.BinaryOp, key record.Value) {
	switch op {
	case parser.OpEq:
		if c.eq == nil {
			c.eq = &key
		} else if record.MustCompare(*c.eq, key) != 0 {
			c.empty = true
		}
	case parser.OpGt, parser.OpGe:
		b := &btree.Bound{Key: key, Inclusive: op == parser.OpGe}
		if c.lo == nil {
			c.lo = b
		} else if n := record.MustCompare(b.Key, c.lo.Key); n > 0 || (n == 0 && !b.Inclusive) {
			c.lo = b
		}
	case parser.OpLt, parser.OpLe:
		b := &btree.Bound{Key: key, Inclusive: op == parser.OpLe}
		if c.hi == nil {
			c.hi = b
		} else if n := record.MustCompare(b.Key, c.hi.Key); n < 0 || (n == 0 && !b.Inclusive) {
			c.hi = b
		}
	}
}

func (c *columnCond) rank(unique bool) int {
	switch {
	case c.empty:
		return 5
	case c.eq != nil && unique:
		return 4
	case c.eq != nil:
		return 3
	case c.lo != nil && c.hi != nil:
		return 2
	case c.lo != nil || c.hi != nil:
		return 1
	}
	return 0
}

// indexPlan narrows the rows of t through an index when a conjunct of where
// compares an indexed column with a constant. Returned ids are in insertion
// order. ok is false when t has to be scanned.
func indexPlan(t *heap.Table, binding string, where parser.Expr) (ids []record.RowID, ok bool) {
	if where == nil {
		return nil, false
	}

	conds := make(map[int]*columnCond)
	for _, c := range conjuncts(where, nil) {
		b, isBin := c.(*parser.BinaryExpr)
		if !isBin || !b.Op.IsComparison() || b.Op == parser.OpNe {
			continue
		}
		op, other := b.Op, b.Right
		ref, isRef := b.Left.(*parser.ColumnRef)
		if !isRef || !isConstant(other) {
			op, other = b.Op.Flip(), b.Left
			ref, isRef = b.Right.(*parser.ColumnRef)
			if !isRef || !isConstant(other) {
				continue
			}
		}
		if ref.Table != "" && ref.Table != binding {
			continue
		}
		i := t.Def.ColumnIndex(ref.Column)
		if i < 0 {
			continue
		}
		if _, indexed := t.Index(ref.Column); !indexed {
			continue
		}
		v, err := evalConst(other)
		if err != nil {
			continue
		}

		cc := conds[i]
		if cc == nil {
			cc = &columnCond{}
			conds[i] = cc
		}
		if v.IsNull() {
			cc.empty = true
			continue
		}
		if key, usable := indexKey(t.Def.Columns[i].Type.Type, v); usable {
			cc.add(op, key)
		}
	}

	best, bestRank := -1, 0
	for i := range t.Def.Columns {
		cc := conds[i]
		if cc == nil {
			continue
		}
		tree, _ := t.Index(t.Def.Columns[i].Name)
		if r := cc.rank(tree.Unique()); r > bestRank {
			best, bestRank = i, r
		}
	}
	if best < 0 {
		return nil, false
	}

	cc := conds[best]
	tree, _ := t.Index(t.Def.Columns[best].Name)
	switch {
	case cc.empty:
		return nil, true
	case cc.eq != nil:
		return tree.Lookup(*cc.eq), true
	default:
		ids = tree.RangeScan(cc.lo, cc.hi)
		slices.Sort(ids)
		return ids, true
	}
}

// indexOrder returns every row id of t ordered by the index on column: keys
// ascending or descending, ties in insertion order, NULL rows last.
func indexOrder(t *heap.Table, column string, desc bool) []record.RowID {
	tree, _ := t.Index(column)
	var runs [][]record.RowID
	for _, ids := range tree.All() {
		runs = append(runs, ids)
	}
	if desc {
		slices.Reverse(runs)
	}

	out := make([]record.RowID, 0, t.Len())
	for _, ids := range runs {
		out = append(out, ids...)
	}
	i := t.Def.ColumnIndex(column)
	for id, row := range t.Scan() {
		if row[i].IsNull() {
			out = append(out, id)
		}
	}
	return out
}

// joinProbe finds an ON conjunct of the form <earlier sources> = right.col
// with right.col indexed. It returns the index, the column's type and the
// expression to evaluate against each left row.
func joinProbe(sc *scope, leftWidth int, right *heap.Table, on parser.Expr) (*btree.Tree, record.DataType, parser.Expr, bool) {
	if on == nil {
		return nil, 0, nil, false
	}
	for _, c := range conjuncts(on, nil) {
		b, ok := c.(*parser.BinaryExpr)
		if !ok || b.Op != parser.OpEq {
			continue
		}
		for _, pair := range [][2]parser.Expr{{b.Left, b.Right}, {b.Right, b.Left}} {
			ref, ok := pair[0].(*parser.ColumnRef)
			if !ok {
				continue
			}
			pos, err := sc.resolve(ref)
			if err != nil || pos < leftWidth {
				continue
			}
			col := right.Def.Columns[pos-leftWidth]
			tree, ok := right.Index(col.Name)
			if !ok || !readsBefore(sc, pair[1], leftWidth) {
				continue
			}
			return tree, col.Type.Type, pair[1], true
		}
	}
	return nil, 0, nil, false
}

// matchRows returns the ids of t's rows that satisfy where, in insertion
// order.
func matchRows(t *heap.Table, where parser.Expr) ([]record.RowID, error) {
	ids, ok := indexPlan(t, t.Name(), where)
	if !ok {
		ids = t.IDs()
	}
	if where == nil {
		return ids, nil
	}

	sc := &scope{}
	if err := sc.add(t.Name(), t); err != nil {
		return nil, err
	}
	en := &env{scope: sc}
	out := make([]record.RowID, 0, len(ids))
	for _, id := range ids {
		en.row, _ = t.Get(id)
		match, err := holds(where, en)
		if err != nil {
			return nil, err
		}
		if match {
			out = append(out, id)
		}
	}
	return out, nil
}
