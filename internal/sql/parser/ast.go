package parser

import (
	"strings"

	"github.com/tuannm99/tinyrdb/internal/record"
)

// Statement is the root interface for all SQL statements. The set of
// implementations is closed: only this package can add one.
type Statement interface {
	stmtNode()
}

// ----- CREATE TABLE -----

type ColumnDef struct {
	Name          string
	Type          string // upper-cased type name as written, e.g. "VARCHAR"
	Length        int    // VARCHAR(n) bound, 0 when absent
	NotNull       bool
	PrimaryKey    bool
	Unique        bool
	AutoIncrement bool
	Default       Expr // literal or nil
	References    *ForeignKeyRef
}

type ForeignKeyRef struct {
	Table  string
	Column string
}

type ConstraintKind uint8

const (
	ConstraintPrimaryKey ConstraintKind = iota + 1
	ConstraintUnique
	ConstraintForeignKey
)

// TableConstraint is a table-level PRIMARY KEY (c), UNIQUE (c) or
// FOREIGN KEY (c) REFERENCES t(c) element.
type TableConstraint struct {
	Kind       ConstraintKind
	Column     string
	References *ForeignKeyRef
}

type CreateTableStmt struct {
	TableName   string
	IfNotExists bool
	Columns     []ColumnDef
	Constraints []TableConstraint
}

func (*CreateTableStmt) stmtNode() {}

// ----- DROP TABLE -----

type DropTableStmt struct {
	TableName string
	IfExists  bool
}

func (*DropTableStmt) stmtNode() {}

// ----- CREATE / DROP INDEX -----

type CreateIndexStmt struct {
	Name      string
	TableName string
	Column    string
	Unique    bool
}

func (*CreateIndexStmt) stmtNode() {}

type DropIndexStmt struct {
	Name      string
	TableName string // optional
}

func (*DropIndexStmt) stmtNode() {}

// ----- INSERT -----

type InsertStmt struct {
	TableName string
	Columns   []string // empty means all columns in table order
	Rows      [][]Expr
}

func (*InsertStmt) stmtNode() {}

// ----- SELECT -----

type SelectItem struct {
	Expr  Expr
	Alias string
}

type TableRef struct {
	Name  string
	Alias string
}

// Binding is the name columns of this source are qualified with.
func (t TableRef) Binding() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

type JoinKind uint8

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
)

type JoinClause struct {
	Kind  JoinKind
	Table TableRef
	On    Expr // nil for CROSS JOIN
}

type OrderItem struct {
	Expr Expr
	Desc bool
}

type SelectStmt struct {
	Distinct bool
	Items    []SelectItem
	From     *TableRef // nil for SELECT without FROM
	Joins    []JoinClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderItem
	Limit    *int64
	Offset   *int64
}

func (*SelectStmt) stmtNode() {}

// ----- UPDATE -----

type Assignment struct {
	Column string
	Value  Expr
}

type UpdateStmt struct {
	TableName   string
	Assignments []Assignment
	Where       Expr
}

func (*UpdateStmt) stmtNode() {}

// ----- DELETE -----

type DeleteStmt struct {
	TableName string
	Where     Expr
}

func (*DeleteStmt) stmtNode() {}

// ----- Expressions -----

// Expr is a closed set of expression nodes. String renders the expression
// the way it names an unaliased result column.
type Expr interface {
	exprNode()
	String() string
}

type LiteralExpr struct {
	Value record.Value
}

func (*LiteralExpr) exprNode() {}

func (e *LiteralExpr) String() string {
	if e.Value.Type() == record.TypeVarchar {
		return "'" + strings.ReplaceAll(e.Value.Str(), "'", "''") + "'"
	}
	return e.Value.String()
}

type ColumnRef struct {
	Table  string // optional qualifier
	Column string
}

func (*ColumnRef) exprNode() {}

func (e *ColumnRef) String() string {
	if e.Table != "" {
		return e.Table + "." + e.Column
	}
	return e.Column
}

type BinaryOp string

const (
	OpEq   BinaryOp = "="
	OpNe   BinaryOp = "!="
	OpLt   BinaryOp = "<"
	OpLe   BinaryOp = "<="
	OpGt   BinaryOp = ">"
	OpGe   BinaryOp = ">="
	OpAnd  BinaryOp = "AND"
	OpOr   BinaryOp = "OR"
	OpAdd  BinaryOp = "+"
	OpSub  BinaryOp = "-"
	OpMul  BinaryOp = "*"
	OpDiv  BinaryOp = "/"
	OpMod  BinaryOp = "%"
	OpLike BinaryOp = "LIKE"
)

// IsComparison reports whether op is one of = != < <= > >=.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Flip returns the operator with its operands swapped: a < b == b > a.
func (op BinaryOp) Flip() BinaryOp {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	}
	return op
}

type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}

func (e *BinaryExpr) String() string {
	return e.Left.String() + " " + string(e.Op) + " " + e.Right.String()
}

type UnaryOp string

const (
	OpNot       UnaryOp = "NOT"
	OpNeg       UnaryOp = "-"
	OpIsNull    UnaryOp = "IS NULL"
	OpIsNotNull UnaryOp = "IS NOT NULL"
)

type UnaryExpr struct {
	Op      UnaryOp
	Operand Expr
}

func (*UnaryExpr) exprNode() {}

func (e *UnaryExpr) String() string {
	switch e.Op {
	case OpIsNull, OpIsNotNull:
		return e.Operand.String() + " " + string(e.Op)
	case OpNeg:
		return "-" + e.Operand.String()
	default:
		return string(e.Op) + " " + e.Operand.String()
	}
}

// FuncCall is an aggregate (COUNT, SUM, AVG, MIN, MAX) or scalar function.
// Star marks COUNT(*).
type FuncCall struct {
	Name     string // upper-cased
	Args     []Expr
	Star     bool
	Distinct bool
}

func (*FuncCall) exprNode() {}

func (e *FuncCall) String() string {
	var sb strings.Builder
	sb.WriteString(e.Name)
	sb.WriteByte('(')
	if e.Distinct {
		sb.WriteString("DISTINCT ")
	}
	if e.Star {
		sb.WriteByte('*')
	}
	for i, a := range e.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

var aggregates = map[string]bool{"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true}

func (e *FuncCall) IsAggregate() bool { return aggregates[e.Name] }

// Wildcard is * or t.* in a select list.
type Wildcard struct {
	Table string
}

func (*Wildcard) exprNode() {}

func (e *Wildcard) String() string {
	if e.Table != "" {
		return e.Table + ".*"
	}
	return "*"
}

// HasAggregate reports whether e contains an aggregate call.
func HasAggregate(e Expr) bool {
	switch x := e.(type) {
	case *FuncCall:
		if x.IsAggregate() {
			return true
		}
		for _, a := range x.Args {
			if HasAggregate(a) {
				return true
			}
		}
	case *BinaryExpr:
		return HasAggregate(x.Left) || HasAggregate(x.Right)
	case *UnaryExpr:
		return HasAggregate(x.Operand)
	}
	return false
}
