// Package heap keeps a table's rows in memory together with the B-tree
// indexes over them. Every mutation updates rows and indexes in lock-step;
// a failed index update is rolled back before the error is returned.
package heap

import (
	"cmp"
	"fmt"
	"iter"
	"slices"

	"github.com/tuannm99/tinyrdb/internal/btree"
	"github.com/tuannm99/tinyrdb/internal/catalog"
	"github.com/tuannm99/tinyrdb/internal/record"
)

// Table represents one table's live state: definition, rows addressed by
// RowID, per-column indexes and the counters that survive restarts.
type Table struct {
	Def *catalog.TableDef

	rows    map[record.RowID]record.Row
	ids     []record.RowID // ascending, i.e. insertion order
	indexes map[string]*btree.Tree

	nextRowID   record.RowID
	nextAutoInc int64
	order       int
}

// StoredRow is a row together with its identity, as persisted.
type StoredRow struct {
	ID     record.RowID `json:"id"`
	Values record.Row   `json:"values"`
}

func NewTable(def *catalog.TableDef, order int) (*Table, error) {
	t := &Table{
		Def:         def,
		rows:        make(map[record.RowID]record.Row),
		indexes:     make(map[string]*btree.Tree, len(def.Indexes)),
		nextRowID:   1,
		nextAutoInc: 1,
		order:       order,
	}
	for _, idx := range def.Indexes {
		tree, err := btree.New(order, idx.Unique)
		if err != nil {
			return nil, err
		}
		t.indexes[idx.Column] = tree
	}
	return t, nil
}

// Restore rebuilds a table from persisted rows and counters.
func Restore(def *catalog.TableDef, order int, rows []StoredRow, nextRowID record.RowID, nextAutoInc int64) (*Table, error) {
	t, err := NewTable(def, order)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(rows, func(a, b StoredRow) int { return cmp.Compare(a.ID, b.ID) })
	for _, r := range rows {
		if len(r.Values) != len(def.Columns) {
			return nil, fmt.Errorf("heap: table %q row %d has %d values, want %d", def.Name, r.ID, len(r.Values), len(def.Columns))
		}
		if _, dup := t.rows[r.ID]; dup {
			return nil, fmt.Errorf("heap: table %q has row id %d twice", def.Name, r.ID)
		}
		if err := t.indexRow(r.ID, r.Values); err != nil {
			return nil, fmt.Errorf("heap: table %q row %d: %w", def.Name, r.ID, err)
		}
		t.rows[r.ID] = slices.Clone(r.Values)
		t.ids = append(t.ids, r.ID)
		t.nextRowID = max(t.nextRowID, r.ID+1)
	}
	t.nextRowID = max(t.nextRowID, nextRowID)
	t.nextAutoInc = max(t.nextAutoInc, nextAutoInc)
	return t, nil
}

func (t *Table) Name() string { return t.Def.Name }
func (t *Table) Len() int     { return len(t.ids) }

// NextRowID is the id the next inserted row will get.
func (t *Table) NextRowID() record.RowID { return t.nextRowID }

// Get returns a copy of the row.
func (t *Table) Get(id record.RowID) (record.Row, bool) {
	r, ok := t.rows[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(r), true
}

// IDs returns every row id in insertion order.
func (t *Table) IDs() []record.RowID { return slices.Clone(t.ids) }

// Scan yields rows in insertion order. Rows must not be modified.
func (t *Table) Scan() iter.Seq2[record.RowID, record.Row] {
	return func(yield func(record.RowID, record.Row) bool) {
		for _, id := range t.ids {
			if !yield(id, t.rows[id]) {
				return
			}
		}
	}
}

// Rows returns a copy of every row with its id, in insertion order.
func (t *Table) Rows() []StoredRow {
	out := make([]StoredRow, 0, len(t.ids))
	for id, r := range t.Scan() {
		out = append(out, StoredRow{ID: id, Values: slices.Clone(r)})
	}
	return out
}

// ---- auto increment ----

// NextAutoIncrement returns the value the next generated key would take
// without consuming it.
func (t *Table) NextAutoIncrement() int64 { return t.nextAutoInc }

// ObserveAutoIncrement moves the counter past v, so explicit keys are never
// handed out again.
func (t *Table) ObserveAutoIncrement(v int64) {
	if v >= t.nextAutoInc {
		t.nextAutoInc = v + 1
	}
}

// ---- mutation ----

// Insert stores row under a fresh RowID and indexes it. Row must already be
// validated; a unique index conflict still fails cleanly.
func (t *Table) Insert(row record.Row) (record.RowID, error) {
	if len(row) != len(t.Def.Columns) {
		return 0, fmt.Errorf("heap: table %q: row has %d values, want %d", t.Def.Name, len(row), len(t.Def.Columns))
	}
	id := t.nextRowID
	if err := t.indexRow(id, row); err != nil {
		return 0, err
	}
	t.rows[id] = slices.Clone(row)
	t.ids = append(t.ids, id)
	t.nextRowID++
	return id, nil
}

// Update replaces a row, touching only indexes whose key changed.
func (t *Table) Update(id record.RowID, row record.Row) error {
	old, ok := t.rows[id]
	if !ok {
		return fmt.Errorf("heap: table %q has no row %d", t.Def.Name, id)
	}
	if len(row) != len(old) {
		return fmt.Errorf("heap: table %q: row has %d values, want %d", t.Def.Name, len(row), len(old))
	}

	type change struct {
		tree          *btree.Tree
		before, after record.Value
	}
	var done []change
	undo := func() {
		for _, c := range slices.Backward(done) {
			if !c.after.IsNull() {
				c.tree.Remove(c.after, id)
			}
			if !c.before.IsNull() {
				_ = c.tree.Insert(c.before, id)
			}
		}
	}

	for col, tree := range t.indexes {
		i := t.Def.ColumnIndex(col)
		ov, nv := old[i], row[i]
		if ov.Key() == nv.Key() && ov.Type() == nv.Type() {
			continue
		}
		if !ov.IsNull() {
			tree.Remove(ov, id)
		}
		if !nv.IsNull() {
			if err := tree.Insert(nv, id); err != nil {
				if !ov.IsNull() {
					_ = tree.Insert(ov, id)
				}
				undo()
				return fmt.Errorf("column %q: %w", col, err)
			}
		}
		done = append(done, change{tree: tree, before: ov, after: nv})
	}

	t.rows[id] = slices.Clone(row)
	return nil
}

// UpdateMany replaces several rows as one step. The old index entries of all
// rows are removed before any new one is added, so rows may trade unique
// keys. On error nothing changes.
func (t *Table) UpdateMany(ids []record.RowID, rows []record.Row) error {
	if len(ids) != len(rows) {
		return fmt.Errorf("heap: %d ids for %d rows", len(ids), len(rows))
	}
	olds := make([]record.Row, len(ids))
	for i, id := range ids {
		old, ok := t.rows[id]
		if !ok {
			return fmt.Errorf("heap: table %q has no row %d", t.Def.Name, id)
		}
		if len(rows[i]) != len(old) {
			return fmt.Errorf("heap: table %q: row has %d values, want %d", t.Def.Name, len(rows[i]), len(old))
		}
		olds[i] = old
	}

	for i, id := range ids {
		t.unindexRow(id, olds[i])
	}
	for i, id := range ids {
		if err := t.indexRow(id, rows[i]); err != nil {
			for j := range i {
				t.unindexRow(ids[j], rows[j])
			}
			for j, id := range ids {
				_ = t.indexRow(id, olds[j])
			}
			return err
		}
	}
	for i, id := range ids {
		t.rows[id] = slices.Clone(rows[i])
	}
	return nil
}

// Delete removes a row and its index entries and returns the old values.
func (t *Table) Delete(id record.RowID) (record.Row, bool) {
	row, ok := t.rows[id]
	if !ok {
		return nil, false
	}
	t.unindexRow(id, row)
	delete(t.rows, id)
	if i, found := slices.BinarySearch(t.ids, id); found {
		t.ids = slices.Delete(t.ids, i, i+1)
	}
	return row, true
}

func (t *Table) indexRow(id record.RowID, row record.Row) error {
	var done []string
	for col, tree := range t.indexes {
		v := row[t.Def.ColumnIndex(col)]
		if v.IsNull() {
			continue
		}
		if err := tree.Insert(v, id); err != nil {
			for _, c := range done {
				t.indexes[c].Remove(row[t.Def.ColumnIndex(c)], id)
			}
			return fmt.Errorf("column %q: %w", col, err)
		}
		done = append(done, col)
	}
	return nil
}

func (t *Table) unindexRow(id record.RowID, row record.Row) {
	for col, tree := range t.indexes {
		if v := row[t.Def.ColumnIndex(col)]; !v.IsNull() {
			tree.Remove(v, id)
		}
	}
}

// ---- indexes ----

// Index returns the B-tree over column, if the column is indexed.
func (t *Table) Index(column string) (*btree.Tree, bool) {
	tree, ok := t.indexes[column]
	return tree, ok
}

// AddIndex builds a new index from the current rows and registers it in the
// definition. Building a unique index over duplicate values fails and leaves
// the table unchanged.
func (t *Table) AddIndex(idx catalog.IndexDef) error {
	col, ok := t.Def.Column(idx.Column)
	if !ok {
		return fmt.Errorf("heap: table %q has no column %q", t.Def.Name, idx.Column)
	}
	i := t.Def.ColumnIndex(col.Name)

	tree, err := btree.New(t.order, idx.Unique)
	if err != nil {
		return err
	}
	for id, row := range t.Scan() {
		if row[i].IsNull() {
			continue
		}
		if err := tree.Insert(row[i], id); err != nil {
			return fmt.Errorf("column %q: %w", idx.Column, err)
		}
	}
	if err := t.Def.AddIndex(idx); err != nil {
		return err
	}
	t.indexes[idx.Column] = tree
	return nil
}

// DropIndex removes a secondary index by name.
func (t *Table) DropIndex(name string) error {
	idx, err := t.Def.DropIndex(name)
	if err != nil {
		return err
	}
	delete(t.indexes, idx.Column)
	return nil
}

// CheckIndexes verifies every index against the rows: each tree is
// well-formed and holds exactly the non-NULL values of its column.
func (t *Table) CheckIndexes() error {
	for col, tree := range t.indexes {
		if err := tree.Check(); err != nil {
			return fmt.Errorf("index on %q: %w", col, err)
		}
		i := t.Def.ColumnIndex(col)
		n := 0
		for id, row := range t.Scan() {
			if row[i].IsNull() {
				continue
			}
			n++
			if _, found := slices.BinarySearch(tree.Lookup(row[i]), id); !found {
				return fmt.Errorf("index on %q is missing row %d", col, id)
			}
		}
		if n != tree.Entries() {
			return fmt.Errorf("index on %q has %d entries for %d rows", col, tree.Entries(), n)
		}
	}
	return nil
}
