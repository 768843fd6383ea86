// Package executor runs parsed statements against a set of in-memory tables.
//
// The executor never persists anything itself: every Result names the tables
// a statement changed and the engine decides when to flush them. Statements
// that fail validation leave every table untouched.
package executor

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/tuannm99/tinyrdb/internal/btree"
	"github.com/tuannm99/tinyrdb/internal/heap"
	"github.com/tuannm99/tinyrdb/internal/sql/parser"
	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

// Executor executes statements against tables. It is not safe for concurrent
// use; callers serialize access.
type Executor struct {
	tables map[string]*heap.Table
	order  int
}

// New returns an executor over tables. The map is shared: DDL statements add
// and remove entries in place. order is the branching factor of new indexes.
func New(tables map[string]*heap.Table, order int) *Executor {
	if tables == nil {
		tables = make(map[string]*heap.Table)
	}
	if order == 0 {
		order = btree.DefaultOrder
	}
	return &Executor{tables: tables, order: order}
}

// Tables returns the table names in sorted order.
func (e *Executor) Tables() []string {
	names := make([]string, 0, len(e.tables))
	for name := range e.tables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Table returns a live table. Callers must not mutate it.
func (e *Executor) Table(name string) (*heap.Table, bool) {
	t, ok := e.tables[name]
	return t, ok
}

// Exec runs one statement.
func (e *Executor) Exec(stmt parser.Statement) (*Result, error) {
	switch s := stmt.(type) {
	case *parser.CreateTableStmt:
		return e.execCreateTable(s)
	case *parser.DropTableStmt:
		return e.execDropTable(s)
	case *parser.CreateIndexStmt:
		return e.execCreateIndex(s)
	case *parser.DropIndexStmt:
		return e.execDropIndex(s)
	case *parser.InsertStmt:
		return e.execInsert(s)
	case *parser.SelectStmt:
		return e.execSelect(s)
	case *parser.UpdateStmt:
		return e.execUpdate(s)
	case *parser.DeleteStmt:
		return e.execDelete(s)
	default:
		return nil, fmt.Errorf("executor: unsupported statement %T", stmt)
	}
}

// ---- helpers ----

func (e *Executor) table(name string) (*heap.Table, error) {
	t, ok := e.tables[name]
	if !ok {
		return nil, sqlerr.Schemaf("Table '%s' does not exist", name)
	}
	return t, nil
}

// findIndex locates an index by name in any table.
func (e *Executor) findIndex(name string) (*heap.Table, bool) {
	for _, tname := range e.Tables() {
		t := e.tables[tname]
		if _, ok := t.Def.Index(name); ok {
			return t, true
		}
	}
	return nil, false
}

// reference is a foreign key column pointing at some table.
type reference struct {
	from   *heap.Table
	column int // position in from
	target int // position in the referenced table
}

// referencesTo lists every column, in any table, that points at t.
func (e *Executor) referencesTo(t *heap.Table) []reference {
	var out []reference
	for _, name := range e.Tables() {
		from := e.tables[name]
		for _, c := range from.Def.ReferencedBy(t.Name()) {
			out = append(out, reference{
				from:   from,
				column: from.Def.ColumnIndex(c.Name),
				target: t.Def.ColumnIndex(c.References.Column),
			})
		}
	}
	return out
}

func logDDL(msg string, args ...any) {
	slog.Info("executor: "+msg, args...)
}
