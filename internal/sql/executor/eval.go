package executor

import (
	"math"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tuannm99/tinyrdb/internal/heap"
	"github.com/tuannm99/tinyrdb/internal/record"
	"github.com/tuannm99/tinyrdb/internal/sql/parser"
	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

// source is one table in a FROM/JOIN list. Its columns occupy
// [offset, offset+len(columns)) of the working row.
type source struct {
	binding string
	table   *heap.Table
	offset  int
}

// scope maps column references to positions in a working row, which is the
// concatenation of every source's row in FROM/JOIN order.
type scope struct {
	sources []source
	width   int
}

func (s *scope) add(binding string, t *heap.Table) error {
	for _, src := range s.sources {
		if src.binding == binding {
			return sqlerr.Schemaf("table name %q specified more than once", binding)
		}
	}
	s.sources = append(s.sources, source{binding: binding, table: t, offset: s.width})
	s.width += len(t.Def.Columns)
	return nil
}

func (s *scope) source(binding string) (source, bool) {
	for _, src := range s.sources {
		if src.binding == binding {
			return src, true
		}
	}
	return source{}, false
}

func (s *scope) resolve(ref *parser.ColumnRef) (int, error) {
	if ref.Table != "" {
		src, ok := s.source(ref.Table)
		if !ok {
			return -1, sqlerr.Schemaf("unknown table %q in column reference %s", ref.Table, ref)
		}
		i := src.table.Def.ColumnIndex(ref.Column)
		if i < 0 {
			return -1, sqlerr.Schemaf("unknown column %s", ref)
		}
		return src.offset + i, nil
	}

	pos := -1
	for _, src := range s.sources {
		if i := src.table.Def.ColumnIndex(ref.Column); i >= 0 {
			if pos >= 0 {
				return -1, sqlerr.Schemaf("column reference %q is ambiguous", ref.Column)
			}
			pos = src.offset + i
		}
	}
	if pos < 0 {
		return -1, sqlerr.Schemaf("unknown column %q", ref.Column)
	}
	return pos, nil
}

// env is what an expression is evaluated against. In a grouped query row is
// the first row of the group (all NULL for an empty group) and aggregates
// range over group.
type env struct {
	scope   *scope
	row     record.Row
	group   []record.Row
	grouped bool
}

var emptyScope = &scope{}

// evalConst evaluates an expression that may not reference columns.
func evalConst(e parser.Expr) (record.Value, error) {
	return eval(e, &env{scope: emptyScope})
}

func eval(e parser.Expr, en *env) (record.Value, error) {
	switch x := e.(type) {
	case *parser.LiteralExpr:
		return x.Value, nil

	case *parser.ColumnRef:
		pos, err := en.scope.resolve(x)
		if err != nil {
			return record.Null(), err
		}
		if pos >= len(en.row) {
			return record.Null(), nil
		}
		return en.row[pos], nil

	case *parser.Wildcard:
		return record.Null(), sqlerr.Schemaf("%s is only allowed in a select list", x)

	case *parser.UnaryExpr:
		return evalUnary(x, en)

	case *parser.BinaryExpr:
		return evalBinary(x, en)

	case *parser.FuncCall:
		if x.IsAggregate() {
			return aggregate(x, en)
		}
		return callScalar(x, en)
	}
	return record.Null(), sqlerr.Schemaf("unsupported expression %s", e)
}

func evalUnary(x *parser.UnaryExpr, en *env) (record.Value, error) {
	v, err := eval(x.Operand, en)
	if err != nil {
		return record.Null(), err
	}
	switch x.Op {
	case parser.OpIsNull:
		return record.Bool(v.IsNull()), nil
	case parser.OpIsNotNull:
		return record.Bool(!v.IsNull()), nil
	case parser.OpNot:
		known, b, err := truth(v)
		if err != nil || !known {
			return record.Null(), err
		}
		return record.Bool(!b), nil
	case parser.OpNeg:
		switch v.Type() {
		case record.TypeNull:
			return v, nil
		case record.TypeInteger:
			if v.Int() == math.MinInt64 {
				return record.Null(), sqlerr.Typef("integer overflow in -%d", v.Int())
			}
			return record.Int(-v.Int()), nil
		case record.TypeFloat:
			return record.Float(-v.Float()), nil
		}
		return record.Null(), sqlerr.Typef("cannot negate %s", v.Type())
	}
	return record.Null(), sqlerr.Schemaf("unsupported operator %s", x.Op)
}

func evalBinary(x *parser.BinaryExpr, en *env) (record.Value, error) {
	l, err := eval(x.Left, en)
	if err != nil {
		return record.Null(), err
	}

	switch x.Op {
	case parser.OpAnd, parser.OpOr:
		lk, lb, err := truth(l)
		if err != nil {
			return record.Null(), err
		}
		// a decided left side short-circuits
		if lk && lb == (x.Op == parser.OpOr) {
			return record.Bool(lb), nil
		}
		r, err := eval(x.Right, en)
		if err != nil {
			return record.Null(), err
		}
		rk, rb, err := truth(r)
		if err != nil {
			return record.Null(), err
		}
		if rk && rb == (x.Op == parser.OpOr) {
			return record.Bool(rb), nil
		}
		if !lk || !rk {
			return record.Null(), nil
		}
		return record.Bool(rb), nil
	}

	r, err := eval(x.Right, en)
	if err != nil {
		return record.Null(), err
	}
	switch {
	case x.Op.IsComparison():
		return compare(x.Op, l, r)
	case x.Op == parser.OpLike:
		if l.IsNull() || r.IsNull() {
			return record.Null(), nil
		}
		return record.Bool(like(l.String(), r.String())), nil
	default:
		return arith(x.Op, l, r)
	}
}

// compare applies a comparison operator. Any NULL operand gives NULL.
func compare(op parser.BinaryOp, l, r record.Value) (record.Value, error) {
	if l.IsNull() || r.IsNull() {
		return record.Null(), nil
	}
	c, err := record.Compare(l, r)
	if err != nil {
		return record.Null(), err
	}
	switch op {
	case parser.OpEq:
		return record.Bool(c == 0), nil
	case parser.OpNe:
		return record.Bool(c != 0), nil
	case parser.OpLt:
		return record.Bool(c < 0), nil
	case parser.OpLe:
		return record.Bool(c <= 0), nil
	case parser.OpGt:
		return record.Bool(c > 0), nil
	default:
		return record.Bool(c >= 0), nil
	}
}

// arith applies + - * / %. NULL operands and division by zero give NULL.
// Division always yields FLOAT.
func arith(op parser.BinaryOp, l, r record.Value) (record.Value, error) {
	if l.IsNull() || r.IsNull() {
		return record.Null(), nil
	}
	if !l.Type().IsNumeric() || !r.Type().IsNumeric() {
		return record.Null(), sqlerr.Typef("operator %s needs numeric operands, got %s and %s", op, l.Type(), r.Type())
	}

	if op == parser.OpDiv {
		if r.Float() == 0 {
			return record.Null(), nil
		}
		return record.Float(l.Float() / r.Float()), nil
	}

	if l.Type() == record.TypeInteger && r.Type() == record.TypeInteger {
		a, b := l.Int(), r.Int()
		var n int64
		switch op {
		case parser.OpAdd:
			n = a + b
			if (a > 0 && b > 0 && n < 0) || (a < 0 && b < 0 && n >= 0) {
				return record.Null(), sqlerr.Typef("integer overflow in %d + %d", a, b)
			}
		case parser.OpSub:
			n = a - b
			if (a >= 0 && b < 0 && n < 0) || (a < 0 && b > 0 && n >= 0) {
				return record.Null(), sqlerr.Typef("integer overflow in %d - %d", a, b)
			}
		case parser.OpMul:
			n = a * b
			if a != 0 && (n/a != b || (a == -1 && b == math.MinInt64)) {
				return record.Null(), sqlerr.Typef("integer overflow in %d * %d", a, b)
			}
		case parser.OpMod:
			if b == 0 {
				return record.Null(), nil
			}
			n = a % b
		}
		return record.Int(n), nil
	}

	a, b := l.Float(), r.Float()
	switch op {
	case parser.OpAdd:
		return record.Float(a + b), nil
	case parser.OpSub:
		return record.Float(a - b), nil
	case parser.OpMul:
		return record.Float(a * b), nil
	default:
		if b == 0 {
			return record.Null(), nil
		}
		return record.Float(math.Mod(a, b)), nil
	}
}

// truth reads a value as a condition. NULL is unknown; integers are true
// when non-zero.
func truth(v record.Value) (known, val bool, err error) {
	switch v.Type() {
	case record.TypeNull:
		return false, false, nil
	case record.TypeBoolean:
		return true, v.Bool(), nil
	case record.TypeInteger:
		return true, v.Int() != 0, nil
	}
	return false, false, sqlerr.Typef("expected a boolean condition, got %s", v.Type())
}

// holds evaluates a predicate; unknown counts as false.
func holds(e parser.Expr, en *env) (bool, error) {
	v, err := eval(e, en)
	if err != nil {
		return false, err
	}
	known, b, err := truth(v)
	return known && b, err
}

// like matches s against a LIKE pattern, ignoring case. % matches any run of
// characters and _ exactly one.
func like(s, pattern string) bool {
	fold := cases.Fold()
	str := []rune(fold.String(s))
	pat := []rune(fold.String(pattern))

	si, pi := 0, 0
	star, mark := -1, 0
	for si < len(str) {
		switch {
		case pi < len(pat) && pat[pi] == '%':
			star, mark = pi, si
			pi++
		case pi < len(pat) && (pat[pi] == '_' || pat[pi] == str[si]):
			si++
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(pat) && pat[pi] == '%' {
		pi++
	}
	return pi == len(pat)
}

// ---- functions ----

func callScalar(f *parser.FuncCall, en *env) (record.Value, error) {
	args := make([]record.Value, len(f.Args))
	for i, a := range f.Args {
		v, err := eval(a, en)
		if err != nil {
			return record.Null(), err
		}
		args[i] = v
	}

	switch f.Name {
	case "COALESCE":
		if len(args) == 0 {
			return record.Null(), sqlerr.Schemaf("COALESCE needs at least one argument")
		}
		for _, v := range args {
			if !v.IsNull() {
				return v, nil
			}
		}
		return record.Null(), nil
	case "UPPER", "LOWER", "LENGTH", "ABS":
	default:
		return record.Null(), sqlerr.Schemaf("unknown function %s", f.Name)
	}

	if len(args) != 1 {
		return record.Null(), sqlerr.Schemaf("%s takes exactly one argument, got %d", f.Name, len(args))
	}
	v := args[0]
	if v.IsNull() {
		return v, nil
	}
	switch f.Name {
	case "UPPER":
		return record.Text(cases.Upper(language.Und).String(v.String())), nil
	case "LOWER":
		return record.Text(cases.Lower(language.Und).String(v.String())), nil
	case "LENGTH":
		return record.Int(int64(utf8.RuneCountInString(v.String()))), nil
	default: // ABS
		switch v.Type() {
		case record.TypeInteger:
			if v.Int() == math.MinInt64 {
				return record.Null(), sqlerr.Typef("integer overflow in ABS(%d)", v.Int())
			}
			if v.Int() < 0 {
				return record.Int(-v.Int()), nil
			}
			return v, nil
		case record.TypeFloat:
			return record.Float(math.Abs(v.Float())), nil
		}
		return record.Null(), sqlerr.Typef("ABS needs a numeric argument, got %s", v.Type())
	}
}

func aggregate(f *parser.FuncCall, en *env) (record.Value, error) {
	if !en.grouped {
		return record.Null(), sqlerr.Schemaf("aggregate %s is not allowed here", f)
	}
	if f.Star {
		return record.Int(int64(len(en.group))), nil
	}
	if len(f.Args) != 1 {
		return record.Null(), sqlerr.Schemaf("%s takes exactly one argument, got %d", f.Name, len(f.Args))
	}

	inner := &env{scope: en.scope}
	var vals []record.Value
	seen := make(map[string]bool)
	for _, r := range en.group {
		inner.row = r
		v, err := eval(f.Args[0], inner)
		if err != nil {
			return record.Null(), err
		}
		if v.IsNull() {
			continue
		}
		if f.Distinct {
			if seen[v.Key()] {
				continue
			}
			seen[v.Key()] = true
		}
		vals = append(vals, v)
	}

	switch f.Name {
	case "COUNT":
		return record.Int(int64(len(vals))), nil
	case "MIN", "MAX":
		if len(vals) == 0 {
			return record.Null(), nil
		}
		best := vals[0]
		for _, v := range vals[1:] {
			c, err := record.Compare(v, best)
			if err != nil {
				return record.Null(), err
			}
			if (f.Name == "MIN" && c < 0) || (f.Name == "MAX" && c > 0) {
				best = v
			}
		}
		return best, nil
	}

	// SUM, AVG
	if len(vals) == 0 {
		return record.Null(), nil
	}
	sum := record.Int(0)
	for _, v := range vals {
		if !v.Type().IsNumeric() {
			return record.Null(), sqlerr.Typef("%s needs numeric values, got %s", f.Name, v.Type())
		}
		var err error
		if sum, err = arith(parser.OpAdd, sum, v); err != nil {
			return record.Null(), err
		}
	}
	if f.Name == "AVG" {
		return record.Float(sum.Float() / float64(len(vals))), nil
	}
	return sum, nil
}
