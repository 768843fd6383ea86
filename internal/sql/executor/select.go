package executor

import (
	"slices"
	"strconv"
	"strings"

	"github.com/tuannm99/tinyrdb/internal/btree"
	"github.com/tuannm99/tinyrdb/internal/heap"
	"github.com/tuannm99/tinyrdb/internal/record"
	"github.com/tuannm99/tinyrdb/internal/sql/parser"
	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

// SELECT runs as a pipeline:
//
//	FROM/JOIN -> WHERE -> GROUP BY/HAVING -> project -> DISTINCT -> ORDER BY -> OFFSET/LIMIT
//
// ORDER BY keys are computed before DISTINCT so they may use columns that are
// not selected.

type projection struct {
	name  string
	expr  parser.Expr
	alias bool
}

// candidate is one output row in the making: a working row, or a group with
// its first row standing in for plain column references.
type candidate struct {
	row     record.Row
	group   []record.Row
	grouped bool
	out     record.Row
	keys    record.Row
}

func (c *candidate) env(sc *scope) *env {
	return &env{scope: sc, row: c.row, group: c.group, grouped: c.grouped}
}

type orderKey struct {
	pos  int // select list position, or -1 to evaluate expr
	expr parser.Expr
	desc bool
}

func (e *Executor) execSelect(s *parser.SelectStmt) (*Result, error) {
	sc := &scope{}
	rows, ordered, err := e.selectRows(s, sc)
	if err != nil {
		return nil, err
	}

	proj, err := projections(s.Items, sc)
	if err != nil {
		return nil, err
	}
	order, err := orderKeys(s.OrderBy, proj)
	if err != nil {
		return nil, err
	}

	var cands []*candidate
	if isGrouped(s) {
		if cands, err = groupRows(s, sc, rows); err != nil {
			return nil, err
		}
	} else {
		cands = make([]*candidate, len(rows))
		for i, r := range rows {
			cands[i] = &candidate{row: r}
		}
	}

	for _, c := range cands {
		en := c.env(sc)
		c.out = make(record.Row, len(proj))
		for i, p := range proj {
			if c.out[i], err = eval(p.expr, en); err != nil {
				return nil, err
			}
		}
		c.keys = make(record.Row, len(order))
		for i, k := range order {
			if k.pos >= 0 {
				c.keys[i] = c.out[k.pos]
			} else if c.keys[i], err = eval(k.expr, en); err != nil {
				return nil, err
			}
		}
	}

	if s.Distinct {
		cands = distinct(cands)
	}
	if len(order) > 0 && !ordered {
		if err := sortCandidates(cands, order); err != nil {
			return nil, err
		}
	}
	cands = paginate(cands, s.Limit, s.Offset)

	res := &Result{Message: "Query executed", Rows: make([]record.Row, len(cands))}
	for _, p := range proj {
		res.Columns = append(res.Columns, p.name)
	}
	for i, c := range cands {
		res.Rows[i] = c.out
	}
	res.RowsAffected = int64(len(res.Rows))
	return res, nil
}

// selectRows produces the working rows that pass WHERE. ordered reports that
// rows already follow the single ORDER BY key.
func (e *Executor) selectRows(s *parser.SelectStmt, sc *scope) (rows []record.Row, ordered bool, err error) {
	if s.From == nil {
		rows, err = filter([]record.Row{{}}, s.Where, sc)
		return rows, false, err
	}

	base, err := e.table(s.From.Name)
	if err != nil {
		return nil, false, err
	}
	if err := sc.add(s.From.Binding(), base); err != nil {
		return nil, false, err
	}

	if len(s.Joins) > 0 {
		for _, r := range base.Rows() {
			rows = append(rows, r.Values)
		}
		for _, j := range s.Joins {
			if rows, err = e.join(sc, rows, j); err != nil {
				return nil, false, err
			}
		}
		rows, err = filter(rows, s.Where, sc)
		return rows, false, err
	}

	var ids []record.RowID
	if col, desc, ok := orderColumn(s, sc); ok {
		ids, ordered = indexOrder(base, col, desc), true
	} else if ids, ok = indexPlan(base, s.From.Binding(), s.Where); !ok {
		ids = base.IDs()
	}
	rows = make([]record.Row, 0, len(ids))
	for _, id := range ids {
		r, _ := base.Get(id)
		rows = append(rows, r)
	}
	rows, err = filter(rows, s.Where, sc)
	return rows, ordered, err
}

// orderColumn reports whether a single-table query is ordered by exactly one
// indexed column, so an index walk can replace the sort.
func orderColumn(s *parser.SelectStmt, sc *scope) (string, bool, bool) {
	if len(s.OrderBy) != 1 || s.Distinct || isGrouped(s) {
		return "", false, false
	}
	ref, ok := s.OrderBy[0].Expr.(*parser.ColumnRef)
	if !ok {
		return "", false, false
	}
	if ref.Table == "" {
		for _, it := range s.Items {
			if it.Alias == ref.Column {
				// the alias wins over the column; only walk the index if it
				// names the same column
				same, isRef := it.Expr.(*parser.ColumnRef)
				if !isRef || same.Column != ref.Column {
					return "", false, false
				}
			}
		}
	}
	pos, err := sc.resolve(ref)
	if err != nil {
		return "", false, false
	}
	t := sc.sources[0].table
	col := t.Def.Columns[pos].Name
	if _, ok := t.Index(col); !ok {
		return "", false, false
	}
	return col, s.OrderBy[0].Desc, true
}

// join extends every left row with the rows of j's table. The new source is
// added to sc. LEFT and FULL keep unmatched left rows with a NULL right side;
// RIGHT and FULL append the unmatched right rows, in table order, with a NULL
// left side.
func (e *Executor) join(sc *scope, left []record.Row, j parser.JoinClause) ([]record.Row, error) {
	right, err := e.table(j.Table.Name)
	if err != nil {
		return nil, err
	}
	leftWidth := sc.width
	if err := sc.add(j.Table.Binding(), right); err != nil {
		return nil, err
	}

	all := right.Rows()
	var probe *indexProbe
	if j.Kind != parser.JoinCross {
		if tree, typ, expr, ok := joinProbe(sc, leftWidth, right, j.On); ok {
			probe = newIndexProbe(all, typ, expr, tree)
		}
	}
	keepLeft := j.Kind == parser.JoinLeft || j.Kind == parser.JoinFull
	keepRight := j.Kind == parser.JoinRight || j.Kind == parser.JoinFull
	rightMatched := make([]bool, len(all))
	everything := make([]int, len(all))
	for i := range everything {
		everything[i] = i
	}

	en := &env{scope: sc}
	var out []record.Row
	for _, l := range left {
		candidates := everything
		if probe != nil {
			if candidates, err = probe.positions(sc, l); err != nil {
				return nil, err
			}
		}

		matched := false
		for _, i := range candidates {
			combined := joined(l, all[i].Values)
			if j.Kind != parser.JoinCross && j.On != nil {
				en.row = combined
				ok, err := holds(j.On, en)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			}
			out = append(out, combined)
			matched = true
			rightMatched[i] = true
		}
		if !matched && keepLeft {
			out = append(out, joined(l, make(record.Row, len(right.Def.Columns))))
		}
	}
	if keepRight {
		nullLeft := make(record.Row, leftWidth)
		for i, r := range all {
			if !rightMatched[i] {
				out = append(out, joined(nullLeft, r.Values))
			}
		}
	}
	return out, nil
}

func joined(l, r record.Row) record.Row {
	combined := make(record.Row, 0, len(l)+len(r))
	return append(append(combined, l...), r...)
}

// filter keeps the rows for which where holds.
func filter(rows []record.Row, where parser.Expr, sc *scope) ([]record.Row, error) {
	if where == nil {
		return rows, nil
	}
	en := &env{scope: sc}
	out := rows[:0]
	for _, r := range rows {
		en.row = r
		ok, err := holds(where, en)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func projections(items []parser.SelectItem, sc *scope) ([]projection, error) {
	var out []projection
	for _, it := range items {
		w, ok := it.Expr.(*parser.Wildcard)
		if !ok {
			p := projection{name: it.Alias, expr: it.Expr, alias: it.Alias != ""}
			if p.name == "" {
				p.name = it.Expr.String()
			}
			out = append(out, p)
			continue
		}

		if len(sc.sources) == 0 {
			return nil, sqlerr.Schemaf("SELECT %s needs a FROM clause", w)
		}
		srcs := sc.sources
		if w.Table != "" {
			src, ok := sc.source(w.Table)
			if !ok {
				return nil, sqlerr.Schemaf("unknown table %q in %s", w.Table, w)
			}
			srcs = []source{src}
		}
		for _, src := range srcs {
			for _, c := range src.table.Def.Columns {
				out = append(out, projection{
					name: c.Name,
					expr: &parser.ColumnRef{Table: src.binding, Column: c.Name},
				})
			}
		}
	}
	return out, nil
}

// orderKeys resolves ORDER BY items: a 1-based select position, a select
// alias, or any expression.
func orderKeys(items []parser.OrderItem, proj []projection) ([]orderKey, error) {
	keys := make([]orderKey, 0, len(items))
	for _, o := range items {
		k := orderKey{pos: -1, expr: o.Expr, desc: o.Desc}
		switch x := o.Expr.(type) {
		case *parser.LiteralExpr:
			if x.Value.Type() == record.TypeInteger {
				n := x.Value.Int()
				if n < 1 || n > int64(len(proj)) {
					return nil, sqlerr.Schemaf("ORDER BY position %d is not in select list", n)
				}
				k.pos = int(n - 1)
			}
		case *parser.ColumnRef:
			if x.Table == "" {
				for i, p := range proj {
					if p.alias && p.name == x.Column {
						k.pos = i
						break
					}
				}
			}
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func isGrouped(s *parser.SelectStmt) bool {
	if len(s.GroupBy) > 0 || s.Having != nil {
		return true
	}
	for _, it := range s.Items {
		if parser.HasAggregate(it.Expr) {
			return true
		}
	}
	for _, o := range s.OrderBy {
		if parser.HasAggregate(o.Expr) {
			return true
		}
	}
	return false
}

// groupRows partitions rows by the GROUP BY key, in order of first
// appearance, and applies HAVING. Without GROUP BY all rows form one group,
// even when there are none.
func groupRows(s *parser.SelectStmt, sc *scope, rows []record.Row) ([]*candidate, error) {
	for _, g := range s.GroupBy {
		if parser.HasAggregate(g) {
			return nil, sqlerr.Schemaf("aggregate functions are not allowed in GROUP BY: %s", g)
		}
	}

	var groups [][]record.Row
	if len(s.GroupBy) == 0 {
		groups = [][]record.Row{rows}
	} else {
		index := make(map[string]int)
		en := &env{scope: sc}
		var sb strings.Builder
		for _, r := range rows {
			en.row = r
			sb.Reset()
			for _, g := range s.GroupBy {
				v, err := eval(g, en)
				if err != nil {
					return nil, err
				}
				k := v.Key()
				sb.WriteString(strconv.Itoa(len(k)))
				sb.WriteByte(':')
				sb.WriteString(k)
			}
			key := sb.String()
			i, ok := index[key]
			if !ok {
				i = len(groups)
				index[key] = i
				groups = append(groups, nil)
			}
			groups[i] = append(groups[i], r)
		}
	}

	nulls := make(record.Row, sc.width)
	out := make([]*candidate, 0, len(groups))
	for _, g := range groups {
		c := &candidate{row: nulls, group: g, grouped: true}
		if len(g) > 0 {
			c.row = g[0]
		}
		if s.Having != nil {
			ok, err := holds(s.Having, c.env(sc))
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func distinct(cands []*candidate) []*candidate {
	seen := make(map[string]bool, len(cands))
	out := cands[:0]
	var sb strings.Builder
	for _, c := range cands {
		sb.Reset()
		for _, v := range c.out {
			k := v.Key()
			sb.WriteString(strconv.Itoa(len(k)))
			sb.WriteByte(':')
			sb.WriteString(k)
		}
		if key := sb.String(); !seen[key] {
			seen[key] = true
			out = append(out, c)
		}
	}
	return out
}

// sortCandidates is a stable multi-key sort. NULLs sort last in both
// directions.
func sortCandidates(cands []*candidate, order []orderKey) error {
	var sortErr error
	slices.SortStableFunc(cands, func(a, b *candidate) int {
		for i, k := range order {
			av, bv := a.keys[i], b.keys[i]
			var c int
			switch {
			case av.IsNull() && bv.IsNull():
			case av.IsNull():
				return 1
			case bv.IsNull():
				return -1
			default:
				var err error
				if c, err = record.Compare(av, bv); err != nil && sortErr == nil {
					sortErr = err
				}
				if k.desc {
					c = -c
				}
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return sortErr
}

// paginate applies OFFSET and then LIMIT.
func paginate[T any](xs []T, limit, offset *int64) []T {
	if offset != nil {
		if *offset >= int64(len(xs)) {
			return xs[:0]
		}
		xs = xs[*offset:]
	}
	if limit != nil && *limit < int64(len(xs)) {
		xs = xs[:*limit]
	}
	return xs
}

// indexProbe narrows join candidates through an index on the right table.
type indexProbe struct {
	typ   record.DataType
	expr  parser.Expr
	index *btree.Tree
	pos   map[record.RowID]int
}

func newIndexProbe(all []heap.StoredRow, typ record.DataType, expr parser.Expr, index *btree.Tree) *indexProbe {
	pos := make(map[record.RowID]int, len(all))
	for i, r := range all {
		pos[r.ID] = i
	}
	return &indexProbe{typ: typ, expr: expr, index: index, pos: pos}
}

// positions returns the offsets into the right table's rows that can match
// left, in table order.
func (p *indexProbe) positions(sc *scope, left record.Row) ([]int, error) {
	v, err := eval(p.expr, &env{scope: sc, row: left})
	if err != nil {
		return nil, err
	}
	if v.IsNull() {
		return nil, nil
	}
	key, ok := indexKey(p.typ, v)
	if !ok {
		out := make([]int, len(p.pos))
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	ids := p.index.Lookup(key)
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if i, ok := p.pos[id]; ok {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return out, nil
}
