// Package engine owns a database directory: the live tables, the lock that
// serializes writers, and the decision of when a table is written to disk.
//
// Every mutating statement is flushed synchronously once it has passed
// validation; read-only statements never touch the disk.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/tuannm99/tinyrdb/internal/btree"
	"github.com/tuannm99/tinyrdb/internal/heap"
	"github.com/tuannm99/tinyrdb/internal/sql/executor"
	"github.com/tuannm99/tinyrdb/internal/sql/parser"
	"github.com/tuannm99/tinyrdb/internal/sqlerr"
	"github.com/tuannm99/tinyrdb/internal/storage"
)

var ErrDatabaseClosed = errors.New("tinyrdb: database is closed")

// Options tune a database. The zero value is usable.
type Options struct {
	// BTreeOrder is the branching factor of every index.
	BTreeOrder int
}

// Database is one open data directory.
//
// Statements made only of SELECTs share a read lock; anything else holds the
// write lock for the whole batch, so in-memory and on-disk state never
// interleave between writers.
type Database struct {
	mu     sync.RWMutex
	store  *storage.Store
	tables map[string]*heap.Table
	exec   *executor.Executor
	order  int
	closed bool
}

// Open loads every table of dir, creating the directory on first use.
func Open(dir string, opts Options) (*Database, error) {
	order := opts.BTreeOrder
	if order == 0 {
		order = btree.DefaultOrder
	}
	st, err := storage.Open(dir)
	if err != nil {
		return nil, err
	}
	tables, err := st.LoadAll(order)
	if err != nil {
		return nil, err
	}

	slog.Info("engine: opened", "dir", dir, "tables", len(tables), "btree_order", order)
	return &Database{
		store:  st,
		tables: tables,
		exec:   executor.New(tables, order),
		order:  order,
	}, nil
}

// Dir returns the data directory.
func (db *Database) Dir() string { return db.store.Dir() }

// Execute parses sql and runs its statements in order. Nothing runs unless
// the whole text parses. Execution stops at the first failing statement;
// statements before it stay applied. The result is the last statement's.
func (db *Database) Execute(sql string) *QueryResult {
	stmts, err := parser.ParseAll(sql)
	if err != nil {
		return failed(err)
	}
	if len(stmts) == 0 {
		return failed(sqlerr.Parsef(0, 0, "no SQL statement"))
	}
	return db.run(stmts...)
}

func (db *Database) run(stmts ...parser.Statement) (res *QueryResult) {
	readOnly := true
	for _, s := range stmts {
		if _, ok := s.(*parser.SelectStmt); !ok {
			readOnly = false
		}
	}
	if readOnly {
		db.mu.RLock()
		defer db.mu.RUnlock()
	} else {
		db.mu.Lock()
		defer db.mu.Unlock()
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("engine: panic while executing", "panic", r, "stack", string(debug.Stack()))
			if !readOnly {
				db.reloadAll()
			}
			res = &QueryResult{Message: fmt.Sprintf("internal error: %v", r), Error: "InternalError"}
		}
	}()

	if db.closed {
		return failed(ErrDatabaseClosed)
	}

	var last *executor.Result
	for _, s := range stmts {
		r, err := db.exec.Exec(s)
		if err != nil {
			slog.Debug("engine: statement failed", "kind", statementKind(s), "err", err)
			return failed(err)
		}
		if err := db.persist(r); err != nil {
			return failed(err)
		}
		slog.Debug("engine: statement done", "kind", statementKind(s), "rows", r.RowsAffected)
		last = r
	}
	return succeeded(last)
}

// persist writes the tables a statement touched. On failure the affected
// table is reloaded from its last persisted state.
func (db *Database) persist(r *executor.Result) error {
	for _, name := range r.Dropped {
		if err := db.store.DeleteTable(name); err != nil {
			slog.Error("engine: delete table file", "table", name, "err", err)
			db.restore(name)
			return err
		}
	}
	for _, name := range r.Dirty {
		t, ok := db.tables[name]
		if !ok {
			continue
		}
		if err := db.store.SaveTable(t); err != nil {
			slog.Error("engine: save table", "table", name, "err", err)
			db.restore(name)
			return err
		}
	}
	return nil
}

// restore replaces the in-memory table with what is on disk. A table that
// never reached the disk is forgotten.
func (db *Database) restore(name string) {
	if !slices.Contains(db.store.Tables(), name) {
		delete(db.tables, name)
		return
	}
	t, err := db.store.LoadTable(name, db.order)
	switch {
	case err == nil:
		db.tables[name] = t
	case errors.Is(err, storage.ErrTableNotFound):
		delete(db.tables, name)
	default:
		slog.Warn("engine: reload table", "table", name, "err", err)
	}
}

func (db *Database) reloadAll() {
	tables, err := db.store.LoadAll(db.order)
	if err != nil {
		slog.Warn("engine: reload tables", "err", err)
		return
	}
	clear(db.tables)
	for name, t := range tables {
		db.tables[name] = t
	}
}

// ListTables returns the table names in sorted order.
func (db *Database) ListTables() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.exec.Tables()
}

// DropTable drops name.
func (db *Database) DropTable(name string) *QueryResult {
	return db.run(&parser.DropTableStmt{TableName: name})
}

// Reset deletes every table, in memory and on disk.
func (db *Database) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrDatabaseClosed
	}
	if err := db.store.Reset(); err != nil {
		db.reloadAll()
		return err
	}
	clear(db.tables)
	slog.Info("engine: reset", "dir", db.store.Dir())
	return nil
}

// Stats describes the database on disk plus the live row counts.
type Stats struct {
	storage.Stats
	RowCounts map[string]int `json:"row_counts"`
}

func (db *Database) Stats() (Stats, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	st, err := db.store.Stats()
	if err != nil {
		return Stats{}, err
	}
	out := Stats{Stats: st, RowCounts: make(map[string]int, len(db.tables))}
	for name, t := range db.tables {
		out.RowCounts[name] = t.Len()
	}
	return out, nil
}

// Close marks the database closed. Every change is already on disk, so
// there is nothing to flush.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrDatabaseClosed
	}
	db.closed = true
	slog.Info("engine: closed", "dir", db.store.Dir())
	return nil
}

func statementKind(s parser.Statement) string {
	switch s.(type) {
	case *parser.CreateTableStmt:
		return "CREATE TABLE"
	case *parser.DropTableStmt:
		return "DROP TABLE"
	case *parser.CreateIndexStmt:
		return "CREATE INDEX"
	case *parser.DropIndexStmt:
		return "DROP INDEX"
	case *parser.InsertStmt:
		return "INSERT"
	case *parser.SelectStmt:
		return "SELECT"
	case *parser.UpdateStmt:
		return "UPDATE"
	case *parser.DeleteStmt:
		return "DELETE"
	}
	return fmt.Sprintf("%T", s)
}
