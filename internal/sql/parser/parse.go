package parser

import (
	"strconv"
	"strings"

	"github.com/tuannm99/tinyrdb/internal/record"
	"github.com/tuannm99/tinyrdb/internal/sql/lexer"
	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

// Parse parses exactly one SQL statement. A trailing ';' is optional.
func Parse(sql string) (Statement, error) {
	p, err := newParser(sql)
	if err != nil {
		return nil, err
	}
	if p.tok.Kind == lexer.EOF {
		return nil, p.errorf("empty statement")
	}
	stmt, err := p.statement()
	if err != nil {
		return nil, err
	}
	if p.tok.Is(";") {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.tok.Kind != lexer.EOF {
		return nil, p.expected("end of input")
	}
	return stmt, nil
}

// ParseAll parses a ';'-separated script. Every statement is parsed before
// any is returned, so a syntax error anywhere rejects the whole script.
func ParseAll(sql string) ([]Statement, error) {
	p, err := newParser(sql)
	if err != nil {
		return nil, err
	}
	var out []Statement
	for {
		for p.tok.Is(";") {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if p.tok.Kind == lexer.EOF {
			break
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
		if !p.tok.Is(";") && p.tok.Kind != lexer.EOF {
			return nil, p.expected(`";" or end of input`)
		}
	}
	if len(out) == 0 {
		return nil, p.errorf("empty statement")
	}
	return out, nil
}

type parser struct {
	lex *lexer.Lexer
	tok lexer.Token // one token of lookahead
}

func newParser(sql string) (*parser, error) {
	p := &parser{lex: lexer.New(sql)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

// accept consumes the current token if it is the keyword/symbol s.
func (p *parser) accept(s string) (bool, error) {
	if !p.tok.Is(s) {
		return false, nil
	}
	return true, p.advance()
}

func (p *parser) expect(s string) error {
	if !p.tok.Is(s) {
		return p.expected(strconv.Quote(s))
	}
	return p.advance()
}

func (p *parser) errorf(format string, args ...any) error {
	return sqlerr.Parsef(p.tok.Pos.Line, p.tok.Pos.Column, format, args...)
}

func (p *parser) expected(what string) error {
	return p.errorf("expected %s, found %s", what, p.tok)
}

// ident consumes an identifier. Type names are not reserved, so a column
// may be called "date"; those keep the case they were written in.
func (p *parser) ident() (string, error) {
	switch {
	case p.tok.Kind == lexer.Ident:
		name := p.tok.Lexeme
		return name, p.advance()
	case p.tok.Kind == lexer.Keyword && lexer.IsTypeName(p.tok.Lexeme):
		name := p.tok.Raw
		return name, p.advance()
	}
	return "", p.expected("identifier")
}

func (p *parser) isIdent() bool {
	return p.tok.Kind == lexer.Ident ||
		(p.tok.Kind == lexer.Keyword && lexer.IsTypeName(p.tok.Lexeme))
}

func (p *parser) parenIdent() (string, error) {
	if err := p.expect("("); err != nil {
		return "", err
	}
	name, err := p.ident()
	if err != nil {
		return "", err
	}
	return name, p.expect(")")
}

func (p *parser) nonNegativeInt() (int64, error) {
	if p.tok.Kind != lexer.Integer {
		return 0, p.expected("integer")
	}
	n, err := strconv.ParseInt(p.tok.Lexeme, 10, 64)
	if err != nil {
		return 0, p.errorf("integer %s out of range", p.tok.Lexeme)
	}
	return n, p.advance()
}

func (p *parser) statement() (Statement, error) {
	switch {
	case p.tok.Is("SELECT"):
		return p.selectStmt()
	case p.tok.Is("INSERT"):
		return p.insertStmt()
	case p.tok.Is("UPDATE"):
		return p.updateStmt()
	case p.tok.Is("DELETE"):
		return p.deleteStmt()
	case p.tok.Is("CREATE"):
		return p.createStmt()
	case p.tok.Is("DROP"):
		return p.dropStmt()
	}
	return nil, p.expected("SELECT, INSERT, UPDATE, DELETE, CREATE or DROP")
}

// ---- DDL ----

func (p *parser) createStmt() (Statement, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	switch {
	case p.tok.Is("TABLE"):
		return p.createTable()
	case p.tok.Is("UNIQUE"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		if !p.tok.Is("INDEX") {
			return nil, p.expected(`"INDEX"`)
		}
		return p.createIndex(true)
	case p.tok.Is("INDEX"):
		return p.createIndex(false)
	}
	return nil, p.expected(`"TABLE" or "INDEX"`)
}

func (p *parser) createTable() (Statement, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	stmt := &CreateTableStmt{}

	ok, err := p.accept("IF")
	if err != nil {
		return nil, err
	}
	if ok {
		if err := p.expect("NOT"); err != nil {
			return nil, err
		}
		if err := p.expect("EXISTS"); err != nil {
			return nil, err
		}
		stmt.IfNotExists = true
	}

	if stmt.TableName, err = p.ident(); err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	for {
		if err := p.tableElement(stmt); err != nil {
			return nil, err
		}
		more, err := p.accept(",")
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if len(stmt.Columns) == 0 {
		return nil, p.errorf("table %q has no columns", stmt.TableName)
	}
	return stmt, nil
}

func (p *parser) tableElement(stmt *CreateTableStmt) error {
	switch {
	case p.tok.Is("PRIMARY"):
		if err := p.advance(); err != nil {
			return err
		}
		if err := p.expect("KEY"); err != nil {
			return err
		}
		col, err := p.parenIdent()
		if err != nil {
			return err
		}
		stmt.Constraints = append(stmt.Constraints, TableConstraint{Kind: ConstraintPrimaryKey, Column: col})
		return nil
	case p.tok.Is("UNIQUE"):
		if err := p.advance(); err != nil {
			return err
		}
		col, err := p.parenIdent()
		if err != nil {
			return err
		}
		stmt.Constraints = append(stmt.Constraints, TableConstraint{Kind: ConstraintUnique, Column: col})
		return nil
	case p.tok.Is("FOREIGN"):
		if err := p.advance(); err != nil {
			return err
		}
		if err := p.expect("KEY"); err != nil {
			return err
		}
		col, err := p.parenIdent()
		if err != nil {
			return err
		}
		ref, err := p.references()
		if err != nil {
			return err
		}
		stmt.Constraints = append(stmt.Constraints, TableConstraint{Kind: ConstraintForeignKey, Column: col, References: ref})
		return nil
	}

	col, err := p.columnDef()
	if err != nil {
		return err
	}
	stmt.Columns = append(stmt.Columns, col)
	return nil
}

func (p *parser) columnDef() (ColumnDef, error) {
	var col ColumnDef
	var err error
	if col.Name, err = p.ident(); err != nil {
		return col, err
	}

	if p.tok.Kind != lexer.Keyword || !lexer.IsTypeName(p.tok.Lexeme) {
		return col, p.expected("data type")
	}
	col.Type = p.tok.Lexeme
	if err := p.advance(); err != nil {
		return col, err
	}
	if p.tok.Is("(") {
		switch col.Type {
		case "VARCHAR", "CHAR", "TEXT":
		default:
			return col, p.errorf("type %s takes no length", col.Type)
		}
		if err := p.advance(); err != nil {
			return col, err
		}
		n, err := p.nonNegativeInt()
		if err != nil {
			return col, err
		}
		if n == 0 {
			return col, p.errorf("VARCHAR length must be positive")
		}
		col.Length = int(n)
		if err := p.expect(")"); err != nil {
			return col, err
		}
	}

	for {
		switch {
		case p.tok.Is("PRIMARY"):
			if err := p.advance(); err != nil {
				return col, err
			}
			if err := p.expect("KEY"); err != nil {
				return col, err
			}
			col.PrimaryKey = true
		case p.tok.Is("UNIQUE"):
			col.Unique = true
			if err := p.advance(); err != nil {
				return col, err
			}
		case p.tok.Is("NOT"):
			if err := p.advance(); err != nil {
				return col, err
			}
			if err := p.expect("NULL"); err != nil {
				return col, err
			}
			col.NotNull = true
		case p.tok.Is("NULL"):
			if err := p.advance(); err != nil {
				return col, err
			}
		case p.tok.Is("AUTO_INCREMENT"):
			col.AutoIncrement = true
			if err := p.advance(); err != nil {
				return col, err
			}
		case p.tok.Is("DEFAULT"):
			if err := p.advance(); err != nil {
				return col, err
			}
			def, err := p.unary()
			if err != nil {
				return col, err
			}
			if _, ok := def.(*LiteralExpr); !ok {
				return col, p.errorf("DEFAULT must be a literal, got %s", def)
			}
			col.Default = def
		case p.tok.Is("REFERENCES"):
			ref, err := p.references()
			if err != nil {
				return col, err
			}
			col.References = ref
		default:
			return col, nil
		}
	}
}

func (p *parser) references() (*ForeignKeyRef, error) {
	if err := p.expect("REFERENCES"); err != nil {
		return nil, err
	}
	table, err := p.ident()
	if err != nil {
		return nil, err
	}
	col, err := p.parenIdent()
	if err != nil {
		return nil, err
	}
	return &ForeignKeyRef{Table: table, Column: col}, nil
}

// createIndex parses INDEX name ON table (column); the current token is INDEX.
func (p *parser) createIndex(unique bool) (Statement, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	stmt := &CreateIndexStmt{Unique: unique}
	var err error
	if stmt.Name, err = p.ident(); err != nil {
		return nil, err
	}
	if err := p.expect("ON"); err != nil {
		return nil, err
	}
	if stmt.TableName, err = p.ident(); err != nil {
		return nil, err
	}
	if stmt.Column, err = p.parenIdent(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) dropStmt() (Statement, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	switch {
	case p.tok.Is("TABLE"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		stmt := &DropTableStmt{}
		ok, err := p.accept("IF")
		if err != nil {
			return nil, err
		}
		if ok {
			if err := p.expect("EXISTS"); err != nil {
				return nil, err
			}
			stmt.IfExists = true
		}
		if stmt.TableName, err = p.ident(); err != nil {
			return nil, err
		}
		return stmt, nil
	case p.tok.Is("INDEX"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		stmt := &DropIndexStmt{}
		var err error
		if stmt.Name, err = p.ident(); err != nil {
			return nil, err
		}
		ok, err := p.accept("ON")
		if err != nil {
			return nil, err
		}
		if ok {
			if stmt.TableName, err = p.ident(); err != nil {
				return nil, err
			}
		}
		return stmt, nil
	}
	return nil, p.expected(`"TABLE" or "INDEX"`)
}

// ---- DML ----

func (p *parser) insertStmt() (Statement, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect("INTO"); err != nil {
		return nil, err
	}
	stmt := &InsertStmt{}
	var err error
	if stmt.TableName, err = p.ident(); err != nil {
		return nil, err
	}

	if p.tok.Is("(") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		for {
			col, err := p.ident()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
			more, err := p.accept(",")
			if err != nil {
				return nil, err
			}
			if !more {
				break
			}
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
	}

	if err := p.expect("VALUES"); err != nil {
		return nil, err
	}
	for {
		if err := p.expect("("); err != nil {
			return nil, err
		}
		row, err := p.exprList()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		stmt.Rows = append(stmt.Rows, row)
		more, err := p.accept(",")
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	return stmt, nil
}

func (p *parser) updateStmt() (Statement, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	stmt := &UpdateStmt{}
	var err error
	if stmt.TableName, err = p.ident(); err != nil {
		return nil, err
	}
	if err := p.expect("SET"); err != nil {
		return nil, err
	}
	for {
		col, err := p.ident()
		if err != nil {
			return nil, err
		}
		if err := p.expect("="); err != nil {
			return nil, err
		}
		val, err := p.expr()
		if err != nil {
			return nil, err
		}
		stmt.Assignments = append(stmt.Assignments, Assignment{Column: col, Value: val})
		more, err := p.accept(",")
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	if stmt.Where, err = p.optionalWhere(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) deleteStmt() (Statement, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect("FROM"); err != nil {
		return nil, err
	}
	stmt := &DeleteStmt{}
	var err error
	if stmt.TableName, err = p.ident(); err != nil {
		return nil, err
	}
	if stmt.Where, err = p.optionalWhere(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) optionalWhere() (Expr, error) {
	ok, err := p.accept("WHERE")
	if err != nil || !ok {
		return nil, err
	}
	return p.expr()
}

// ---- SELECT ----

func (p *parser) selectStmt() (Statement, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	stmt := &SelectStmt{}
	var err error
	if stmt.Distinct, err = p.accept("DISTINCT"); err != nil {
		return nil, err
	}

	for {
		item, err := p.selectItem()
		if err != nil {
			return nil, err
		}
		stmt.Items = append(stmt.Items, item)
		more, err := p.accept(",")
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}

	ok, err := p.accept("FROM")
	if err != nil {
		return nil, err
	}
	if ok {
		ref, err := p.tableRef()
		if err != nil {
			return nil, err
		}
		stmt.From = &ref
		for {
			join, ok, err := p.joinClause()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			stmt.Joins = append(stmt.Joins, join)
		}
	}

	if stmt.Where, err = p.optionalWhere(); err != nil {
		return nil, err
	}

	if p.tok.Is("GROUP") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect("BY"); err != nil {
			return nil, err
		}
		if stmt.GroupBy, err = p.exprList(); err != nil {
			return nil, err
		}
	}

	if ok, err = p.accept("HAVING"); err != nil {
		return nil, err
	}
	if ok {
		if stmt.Having, err = p.expr(); err != nil {
			return nil, err
		}
	}

	if p.tok.Is("ORDER") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.expr()
			if err != nil {
				return nil, err
			}
			item := OrderItem{Expr: e}
			switch {
			case p.tok.Is("DESC"):
				item.Desc = true
				err = p.advance()
			case p.tok.Is("ASC"):
				err = p.advance()
			}
			if err != nil {
				return nil, err
			}
			stmt.OrderBy = append(stmt.OrderBy, item)
			more, err := p.accept(",")
			if err != nil {
				return nil, err
			}
			if !more {
				break
			}
		}
	}

	if ok, err = p.accept("LIMIT"); err != nil {
		return nil, err
	}
	if ok {
		n, err := p.nonNegativeInt()
		if err != nil {
			return nil, err
		}
		stmt.Limit = &n
	}
	if ok, err = p.accept("OFFSET"); err != nil {
		return nil, err
	}
	if ok {
		n, err := p.nonNegativeInt()
		if err != nil {
			return nil, err
		}
		stmt.Offset = &n
	}
	return stmt, nil
}

func (p *parser) selectItem() (SelectItem, error) {
	if p.tok.Is("*") {
		return SelectItem{Expr: &Wildcard{}}, p.advance()
	}
	e, err := p.expr()
	if err != nil {
		return SelectItem{}, err
	}
	item := SelectItem{Expr: e}
	item.Alias, err = p.optionalAlias()
	return item, err
}

// optionalAlias parses [AS] name.
func (p *parser) optionalAlias() (string, error) {
	as, err := p.accept("AS")
	if err != nil {
		return "", err
	}
	if as || p.tok.Kind == lexer.Ident {
		return p.ident()
	}
	return "", nil
}

func (p *parser) tableRef() (TableRef, error) {
	name, err := p.ident()
	if err != nil {
		return TableRef{}, err
	}
	alias, err := p.optionalAlias()
	return TableRef{Name: name, Alias: alias}, err
}

var outerJoins = map[string]JoinKind{"LEFT": JoinLeft, "RIGHT": JoinRight, "FULL": JoinFull}

func (p *parser) joinClause() (JoinClause, bool, error) {
	var join JoinClause
	switch {
	case p.tok.Is("JOIN"):
		join.Kind = JoinInner
	case p.tok.Is("INNER"):
		join.Kind = JoinInner
		if err := p.advance(); err != nil {
			return join, false, err
		}
	case p.tok.Is("LEFT"), p.tok.Is("RIGHT"), p.tok.Is("FULL"):
		join.Kind = outerJoins[p.tok.Lexeme]
		if err := p.advance(); err != nil {
			return join, false, err
		}
		if _, err := p.accept("OUTER"); err != nil {
			return join, false, err
		}
	case p.tok.Is("CROSS"):
		join.Kind = JoinCross
		if err := p.advance(); err != nil {
			return join, false, err
		}
	default:
		return join, false, nil
	}
	if err := p.expect("JOIN"); err != nil {
		return join, false, err
	}

	var err error
	if join.Table, err = p.tableRef(); err != nil {
		return join, false, err
	}
	if join.Kind == JoinCross {
		return join, true, nil
	}
	if err := p.expect("ON"); err != nil {
		return join, false, err
	}
	if join.On, err = p.expr(); err != nil {
		return join, false, err
	}
	return join, true, nil
}

// ---- expressions ----
//
// Loosest to tightest: OR, AND, NOT, comparison (incl. IS NULL, IN,
// BETWEEN, LIKE), + -, * / %, unary minus, primary.

func (p *parser) exprList() ([]Expr, error) {
	var out []Expr
	for {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		more, err := p.accept(",")
		if err != nil {
			return nil, err
		}
		if !more {
			return out, nil
		}
	}
}

func (p *parser) expr() (Expr, error) { return p.orExpr() }

func (p *parser) orExpr() (Expr, error) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.tok.Is("OR") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) andExpr() (Expr, error) {
	left, err := p.notExpr()
	if err != nil {
		return nil, err
	}
	for p.tok.Is("AND") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) notExpr() (Expr, error) {
	if p.tok.Is("NOT") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: OpNot, Operand: operand}, nil
	}
	return p.comparison()
}

var comparisonOps = map[string]BinaryOp{
	"=": OpEq, "!=": OpNe, "<>": OpNe, "<": OpLt, "<=": OpLe, ">": OpGt, ">=": OpGe,
}

func (p *parser) comparison() (Expr, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	for {
		if p.tok.Kind == lexer.Operator {
			if op, ok := comparisonOps[p.tok.Lexeme]; ok {
				if err := p.advance(); err != nil {
					return nil, err
				}
				right, err := p.additive()
				if err != nil {
					return nil, err
				}
				left = &BinaryExpr{Op: op, Left: left, Right: right}
				continue
			}
		}

		if p.tok.Is("IS") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			op := OpIsNull
			not, err := p.accept("NOT")
			if err != nil {
				return nil, err
			}
			if not {
				op = OpIsNotNull
			}
			if err := p.expect("NULL"); err != nil {
				return nil, err
			}
			left = &UnaryExpr{Op: op, Operand: left}
			continue
		}

		negated, err := p.accept("NOT")
		if err != nil {
			return nil, err
		}
		var pred Expr
		switch {
		case p.tok.Is("IN"):
			pred, err = p.inList(left)
		case p.tok.Is("BETWEEN"):
			pred, err = p.between(left)
		case p.tok.Is("LIKE"):
			if err = p.advance(); err == nil {
				var pattern Expr
				if pattern, err = p.additive(); err == nil {
					pred = &BinaryExpr{Op: OpLike, Left: left, Right: pattern}
				}
			}
		default:
			if negated {
				return nil, p.expected(`"IN", "BETWEEN" or "LIKE"`)
			}
			return left, nil
		}
		if err != nil {
			return nil, err
		}
		if negated {
			pred = &UnaryExpr{Op: OpNot, Operand: pred}
		}
		left = pred
	}
}

// inList rewrites x IN (a, b) to x = a OR x = b, which has the same
// three-valued result.
func (p *parser) inList(left Expr) (Expr, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	items, err := p.exprList()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	var out Expr
	for _, it := range items {
		eq := &BinaryExpr{Op: OpEq, Left: left, Right: it}
		if out == nil {
			out = eq
		} else {
			out = &BinaryExpr{Op: OpOr, Left: out, Right: eq}
		}
	}
	return out, nil
}

// between rewrites x BETWEEN a AND b to x >= a AND x <= b.
func (p *parser) between(left Expr) (Expr, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	lo, err := p.additive()
	if err != nil {
		return nil, err
	}
	if err := p.expect("AND"); err != nil {
		return nil, err
	}
	hi, err := p.additive()
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{
		Op:    OpAnd,
		Left:  &BinaryExpr{Op: OpGe, Left: left, Right: lo},
		Right: &BinaryExpr{Op: OpLe, Left: left, Right: hi},
	}, nil
}

func (p *parser) additive() (Expr, error) {
	left, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for p.tok.Is("+") || p.tok.Is("-") {
		op := BinaryOp(p.tok.Lexeme)
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) multiplicative() (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.tok.Is("*") || p.tok.Is("/") || p.tok.Is("%") {
		op := BinaryOp(p.tok.Lexeme)
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) unary() (Expr, error) {
	switch {
	case p.tok.Is("-"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		// fold negative numeric literals so the minimum int64 parses
		switch p.tok.Kind {
		case lexer.Integer, lexer.Float:
			return p.number("-")
		}
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: OpNeg, Operand: operand}, nil
	case p.tok.Is("+"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.unary()
	}
	return p.primary()
}

func (p *parser) number(sign string) (Expr, error) {
	text := sign + p.tok.Lexeme
	if p.tok.Kind == lexer.Integer {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, p.errorf("integer %s out of range", text)
		}
		return &LiteralExpr{Value: record.Int(n)}, p.advance()
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, p.errorf("invalid number %s", text)
	}
	return &LiteralExpr{Value: record.Float(f)}, p.advance()
}

func (p *parser) primary() (Expr, error) {
	tok := p.tok
	switch tok.Kind {
	case lexer.Integer, lexer.Float:
		return p.number("")
	case lexer.String:
		return &LiteralExpr{Value: record.Text(tok.Lexeme)}, p.advance()
	}

	switch {
	case tok.Is("NULL"):
		return &LiteralExpr{Value: record.Null()}, p.advance()
	case tok.Is("TRUE"):
		return &LiteralExpr{Value: record.Bool(true)}, p.advance()
	case tok.Is("FALSE"):
		return &LiteralExpr{Value: record.Bool(false)}, p.advance()
	case tok.Is("("):
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		return e, p.expect(")")
	}

	if !p.isIdent() {
		return nil, p.expected("expression")
	}
	name, err := p.ident()
	if err != nil {
		return nil, err
	}

	switch {
	case p.tok.Is("("):
		return p.funcCall(strings.ToUpper(name))
	case p.tok.Is("."):
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Is("*") {
			return &Wildcard{Table: name}, p.advance()
		}
		col, err := p.ident()
		if err != nil {
			return nil, err
		}
		return &ColumnRef{Table: name, Column: col}, nil
	}
	return &ColumnRef{Column: name}, nil
}

func (p *parser) funcCall(name string) (Expr, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	call := &FuncCall{Name: name}

	switch {
	case p.tok.Is("*"):
		if name != "COUNT" {
			return nil, p.errorf("%s(*) is not supported", name)
		}
		call.Star = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	case p.tok.Is(")"):
	default:
		var err error
		if call.Distinct, err = p.accept("DISTINCT"); err != nil {
			return nil, err
		}
		if call.Args, err = p.exprList(); err != nil {
			return nil, err
		}
	}
	return call, p.expect(")")
}
