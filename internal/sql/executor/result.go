package executor

import "github.com/tuannm99/tinyrdb/internal/record"

// Result is the outcome of one statement.
type Result struct {
	Message string
	Columns []string
	Rows    []record.Row

	// For DML: rows inserted, updated or deleted. For SELECT: len(Rows).
	RowsAffected int64
	// RowIDs of inserted rows, in VALUES order.
	RowIDs []record.RowID

	// Dirty lists tables whose state changed and must be persisted.
	// Dropped lists tables that no longer exist.
	Dirty   []string
	Dropped []string
}

// Mutated reports whether the statement changed any state.
func (r *Result) Mutated() bool { return len(r.Dirty) > 0 || len(r.Dropped) > 0 }
