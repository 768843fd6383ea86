package executor

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/tuannm99/tinyrdb/internal/heap"
	"github.com/tuannm99/tinyrdb/internal/record"
	"github.com/tuannm99/tinyrdb/internal/sql/parser"
	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

// rowChecker validates the rows a statement is about to write, in this order:
// type coercion, NOT NULL, PRIMARY KEY, UNIQUE, and once every row has been
// checked, FOREIGN KEY.
//
// Rows in replaced are being rewritten by the same statement, so their
// current values do not count as conflicts. Values claimed by rows already
// checked in this statement do.
type rowChecker struct {
	e        *Executor
	t        *heap.Table
	replaced map[record.RowID]bool
	claimed  map[int]map[string]bool // column position -> value keys
}

func newRowChecker(e *Executor, t *heap.Table) *rowChecker {
	return &rowChecker{e: e, t: t, replaced: map[record.RowID]bool{}, claimed: map[int]map[string]bool{}}
}

// check coerces row in place and validates it.
func (rc *rowChecker) check(row record.Row) error {
	def := rc.t.Def
	for i, c := range def.Columns {
		v, err := record.Coerce(row[i], c.Type)
		if err != nil {
			return fmt.Errorf("column %q: %w", c.Name, err)
		}
		row[i] = v
	}

	for i, c := range def.Columns {
		if c.Nullable || !row[i].IsNull() {
			continue
		}
		if c.PrimaryKey {
			return sqlerr.Constraintf("PRIMARY KEY constraint violated: '%s' cannot be NULL", c.Name)
		}
		return sqlerr.Constraintf("NOT NULL constraint violated: '%s' cannot be NULL", c.Name)
	}

	// primary key first, then the other unique indexes
	var unique []int
	if pk := def.PrimaryKey(); pk >= 0 {
		unique = append(unique, pk)
	}
	for _, idx := range def.Indexes {
		if i := def.ColumnIndex(idx.Column); idx.Unique && !slices.Contains(unique, i) {
			unique = append(unique, i)
		}
	}
	for _, i := range unique {
		v := row[i]
		if v.IsNull() {
			continue
		}
		if rc.taken(i, v) {
			kind := "UNIQUE"
			if def.Columns[i].PrimaryKey {
				kind = "PRIMARY KEY"
			}
			return sqlerr.Constraintf("%s constraint violated: duplicate value '%s' for column '%s'", kind, v, def.Columns[i].Name)
		}
	}
	for _, i := range unique {
		if !row[i].IsNull() {
			rc.claim(i, row[i])
		}
	}
	return nil
}

// checkReferences validates the FOREIGN KEY columns of rows that already
// passed check, so rows of one statement may reference each other.
func (rc *rowChecker) checkReferences(rows []record.Row) error {
	for _, row := range rows {
		if err := rc.checkRow(row); err != nil {
			return err
		}
	}
	return nil
}

func (rc *rowChecker) checkRow(row record.Row) error {
	for i, c := range rc.t.Def.Columns {
		fk := c.References
		if fk == nil || row[i].IsNull() {
			continue
		}
		if !rc.referenced(fk.Table, fk.Column, row[i]) {
			return sqlerr.Constraintf("FOREIGN KEY constraint violated: value '%s' not found in %s.%s", row[i], fk.Table, fk.Column)
		}
	}
	return nil
}

// taken reports whether v is held by a row that keeps its value or was
// already claimed in this statement.
func (rc *rowChecker) taken(col int, v record.Value) bool {
	if rc.claimed[col][v.Key()] {
		return true
	}
	for _, id := range rowsWith(rc.t, col, v) {
		if !rc.replaced[id] {
			return true
		}
	}
	return false
}

func (rc *rowChecker) claim(col int, v record.Value) {
	if rc.claimed[col] == nil {
		rc.claimed[col] = make(map[string]bool)
	}
	rc.claimed[col][v.Key()] = true
}

// referenced reports whether table.column holds v once the statement is
// applied.
func (rc *rowChecker) referenced(table, column string, v record.Value) bool {
	if table == rc.t.Name() {
		return rc.taken(rc.t.Def.ColumnIndex(column), v)
	}
	target, ok := rc.e.tables[table]
	if !ok {
		return false
	}
	return len(rowsWith(target, target.Def.ColumnIndex(column), v)) > 0
}

// rowsWith returns the ids of t's rows whose column col equals v, through the
// column's index when there is one.
func rowsWith(t *heap.Table, col int, v record.Value) []record.RowID {
	c := t.Def.Columns[col]
	if tree, ok := t.Index(c.Name); ok {
		if key, usable := indexKey(c.Type.Type, v); usable {
			return tree.Lookup(key)
		}
	}
	var out []record.RowID
	for id, row := range t.Scan() {
		if row[col].IsNull() {
			continue
		}
		if eq, err := record.Equal(row[col], v); err == nil && eq {
			out = append(out, id)
		}
	}
	return out
}

// ---- INSERT ----

func (e *Executor) execInsert(s *parser.InsertStmt) (*Result, error) {
	t, err := e.table(s.TableName)
	if err != nil {
		return nil, err
	}
	def := t.Def

	positions := make([]int, 0, len(def.Columns))
	if len(s.Columns) == 0 {
		for i := range def.Columns {
			positions = append(positions, i)
		}
	} else {
		for _, name := range s.Columns {
			i, err := def.MustColumn(name)
			if err != nil {
				return nil, err
			}
			if slices.Contains(positions, i) {
				return nil, sqlerr.Schemaf("column %q specified more than once", name)
			}
			positions = append(positions, i)
		}
	}

	auto := def.AutoIncrement()
	next := t.NextAutoIncrement()
	rc := newRowChecker(e, t)
	rows := make([]record.Row, 0, len(s.Rows))
	for _, exprs := range s.Rows {
		if len(exprs) != len(positions) {
			return nil, sqlerr.Schemaf("INSERT has %d columns but %d values", len(positions), len(exprs))
		}
		row := make(record.Row, len(def.Columns))
		given := make([]bool, len(def.Columns))
		for k, ex := range exprs {
			v, err := evalConst(ex)
			if err != nil {
				return nil, err
			}
			row[positions[k]] = v
			given[positions[k]] = true
		}
		for i, c := range def.Columns {
			if !given[i] && c.Default != nil {
				row[i] = *c.Default
			}
		}
		if auto >= 0 && row[auto].IsNull() {
			row[auto] = record.Int(next)
		}

		if err := rc.check(row); err != nil {
			return nil, err
		}
		if auto >= 0 {
			next = max(next, row[auto].Int()+1)
		}
		rows = append(rows, row)
	}
	if err := rc.checkReferences(rows); err != nil {
		return nil, err
	}

	ids := make([]record.RowID, 0, len(rows))
	for _, row := range rows {
		id, err := t.Insert(row)
		if err != nil {
			for _, done := range ids {
				t.Delete(done)
			}
			return nil, err
		}
		ids = append(ids, id)
		if auto >= 0 {
			t.ObserveAutoIncrement(row[auto].Int())
		}
	}

	slog.Debug("executor: insert", "table", t.Name(), "rows", len(ids))
	return &Result{
		Message:      fmt.Sprintf("Inserted %d row(s)", len(ids)),
		RowsAffected: int64(len(ids)),
		RowIDs:       ids,
		Dirty:        []string{t.Name()},
	}, nil
}

// ---- UPDATE ----

func (e *Executor) execUpdate(s *parser.UpdateStmt) (*Result, error) {
	t, err := e.table(s.TableName)
	if err != nil {
		return nil, err
	}
	def := t.Def

	targets := make([]int, len(s.Assignments))
	for i, a := range s.Assignments {
		pos, err := def.MustColumn(a.Column)
		if err != nil {
			return nil, err
		}
		if slices.Contains(targets[:i], pos) {
			return nil, sqlerr.Schemaf("column %q assigned more than once", a.Column)
		}
		targets[i] = pos
	}

	ids, err := matchRows(t, s.Where)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &Result{Message: "Updated 0 row(s)"}, nil
	}

	sc := &scope{}
	if err := sc.add(t.Name(), t); err != nil {
		return nil, err
	}
	en := &env{scope: sc}
	rc := newRowChecker(e, t)
	olds := make([]record.Row, len(ids))
	rows := make([]record.Row, len(ids))
	for i, id := range ids {
		rc.replaced[id] = true
		olds[i], _ = t.Get(id)
	}
	for i := range ids {
		// every assignment reads the row as it was before the statement
		en.row = olds[i]
		row := slices.Clone(olds[i])
		for k, a := range s.Assignments {
			v, err := eval(a.Value, en)
			if err != nil {
				return nil, err
			}
			row[targets[k]] = v
		}
		if err := rc.check(row); err != nil {
			return nil, err
		}
		rows[i] = row
	}
	if err := rc.checkReferences(rows); err != nil {
		return nil, err
	}
	if err := e.restrictRekey(t, ids, olds, rows, rc); err != nil {
		return nil, err
	}
	if len(ids) == 1 {
		err = t.Update(ids[0], rows[0])
	} else {
		err = t.UpdateMany(ids, rows)
	}
	if err != nil {
		return nil, err
	}
	if auto := def.AutoIncrement(); auto >= 0 {
		for _, row := range rows {
			t.ObserveAutoIncrement(row[auto].Int())
		}
	}

	slog.Debug("executor: update", "table", t.Name(), "rows", len(ids))
	return &Result{
		Message:      fmt.Sprintf("Updated %d row(s)", len(ids)),
		RowsAffected: int64(len(ids)),
		Dirty:        []string{t.Name()},
	}, nil
}

// restrictRekey fails when an update takes a referenced key away while rows
// still point at it.
func (e *Executor) restrictRekey(t *heap.Table, ids []record.RowID, olds, rows []record.Row, rc *rowChecker) error {
	refs := e.referencesTo(t)
	if len(refs) == 0 {
		return nil
	}
	updated := make(map[record.RowID]int, len(ids))
	for i, id := range ids {
		updated[id] = i
	}

	for i := range ids {
		for _, ref := range refs {
			old := olds[i][ref.target]
			if old.IsNull() || rc.taken(ref.target, old) {
				continue
			}
			for _, id := range rowsWith(ref.from, ref.column, old) {
				if ref.from == t {
					// a row of the same statement may move its own pointer
					if j, ok := updated[id]; ok {
						if v := rows[j][ref.column]; v.IsNull() || v.Key() != old.Key() {
							continue
						}
					}
				}
				return sqlerr.Constraintf("FOREIGN KEY constraint violated: %s.%s = '%s' is still referenced by %s.%s",
					t.Name(), t.Def.Columns[ref.target].Name, old, ref.from.Name(), ref.from.Def.Columns[ref.column].Name)
			}
		}
	}
	return nil
}

// ---- DELETE ----

func (e *Executor) execDelete(s *parser.DeleteStmt) (*Result, error) {
	t, err := e.table(s.TableName)
	if err != nil {
		return nil, err
	}
	ids, err := matchRows(t, s.Where)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &Result{Message: "Deleted 0 row(s)"}, nil
	}
	if err := e.restrictDelete(t, ids); err != nil {
		return nil, err
	}

	for _, id := range ids {
		t.Delete(id)
	}
	slog.Debug("executor: delete", "table", t.Name(), "rows", len(ids))
	return &Result{
		Message:      fmt.Sprintf("Deleted %d row(s)", len(ids)),
		RowsAffected: int64(len(ids)),
		Dirty:        []string{t.Name()},
	}, nil
}

// restrictDelete fails when a row about to be deleted is still referenced
// by a row that survives the delete.
func (e *Executor) restrictDelete(t *heap.Table, ids []record.RowID) error {
	refs := e.referencesTo(t)
	if len(refs) == 0 {
		return nil
	}
	deleted := make(map[record.RowID]bool, len(ids))
	for _, id := range ids {
		deleted[id] = true
	}

	for _, id := range ids {
		row, _ := t.Get(id)
		for _, ref := range refs {
			v := row[ref.target]
			if v.IsNull() {
				continue
			}
			for _, from := range rowsWith(ref.from, ref.column, v) {
				if ref.from == t && deleted[from] {
					continue
				}
				return sqlerr.Constraintf("FOREIGN KEY constraint violated: %s.%s = '%s' is still referenced by %s.%s",
					t.Name(), t.Def.Columns[ref.target].Name, v, ref.from.Name(), ref.from.Def.Columns[ref.column].Name)
			}
		}
	}
	return nil
}
