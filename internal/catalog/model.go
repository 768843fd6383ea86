// Package catalog holds table definitions: columns, their constraints and the
// indexes that back them.
package catalog

import (
	"fmt"

	"github.com/tuannm99/tinyrdb/internal/record"
	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

type ForeignKey struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

type Column struct {
	Name          string            `json:"name"`
	Type          record.ColumnType `json:"type"`
	Nullable      bool              `json:"nullable"`
	PrimaryKey    bool              `json:"primary_key,omitempty"`
	Unique        bool              `json:"unique,omitempty"`
	AutoIncrement bool              `json:"auto_increment,omitempty"`
	Default       *record.Value     `json:"default,omitempty"`
	References    *ForeignKey       `json:"references,omitempty"`
}

// IndexDef names a B-tree over one column. Implicit indexes back PRIMARY KEY
// and UNIQUE columns and live as long as the column does.
type IndexDef struct {
	Name     string `json:"name"`
	Column   string `json:"column"`
	Unique   bool   `json:"unique"`
	Implicit bool   `json:"implicit,omitempty"`
}

type TableDef struct {
	Name    string     `json:"name"`
	Columns []Column   `json:"columns"`
	Indexes []IndexDef `json:"indexes"`
}

// NewTableDef normalizes and validates a table definition and adds the
// implicit indexes for its PRIMARY KEY and UNIQUE columns.
//
// PRIMARY KEY implies NOT NULL and UNIQUE. AUTO_INCREMENT requires INTEGER,
// implies NOT NULL and UNIQUE, and makes the column the primary key when no
// other column is.
func NewTableDef(name string, cols []Column) (*TableDef, error) {
	if name == "" {
		return nil, sqlerr.Schemaf("table name is empty")
	}
	if len(cols) == 0 {
		return nil, sqlerr.Schemaf("table %q has no columns", name)
	}

	def := &TableDef{Name: name, Columns: make([]Column, len(cols))}
	copy(def.Columns, cols)

	seen := make(map[string]struct{}, len(cols))
	pk, auto := -1, -1
	for i := range def.Columns {
		c := &def.Columns[i]
		if _, dup := seen[c.Name]; dup {
			return nil, sqlerr.Schemaf("duplicate column %q in table %q", c.Name, name)
		}
		seen[c.Name] = struct{}{}

		if c.Type.Type == record.TypeNull {
			return nil, sqlerr.Schemaf("column %q has no type", c.Name)
		}
		if c.PrimaryKey {
			if pk >= 0 {
				return nil, sqlerr.Schemaf("table %q has more than one primary key", name)
			}
			pk = i
		}
		if c.AutoIncrement {
			if auto >= 0 {
				return nil, sqlerr.Schemaf("table %q has more than one AUTO_INCREMENT column", name)
			}
			if c.Type.Type != record.TypeInteger {
				return nil, sqlerr.Schemaf("AUTO_INCREMENT column %q must be INTEGER, not %s", c.Name, c.Type)
			}
			auto = i
		}
	}
	if pk < 0 && auto >= 0 {
		def.Columns[auto].PrimaryKey = true
	}

	for i := range def.Columns {
		c := &def.Columns[i]
		if c.PrimaryKey || c.AutoIncrement {
			c.Nullable = false
			c.Unique = true
		}
		if c.Default != nil {
			if c.Default.IsNull() {
				c.Default = nil
				continue
			}
			v, err := record.Coerce(*c.Default, c.Type)
			if err != nil {
				return nil, sqlerr.Schemaf("bad DEFAULT for column %q: %v", c.Name, err)
			}
			c.Default = &v
		}
	}

	for _, c := range def.Columns {
		switch {
		case c.PrimaryKey:
			def.Indexes = append(def.Indexes, IndexDef{Name: name + "_pkey", Column: c.Name, Unique: true, Implicit: true})
		case c.Unique:
			def.Indexes = append(def.Indexes, IndexDef{Name: fmt.Sprintf("%s_%s_key", name, c.Name), Column: c.Name, Unique: true, Implicit: true})
		}
	}
	return def, nil
}

// ColumnIndex returns the position of the named column, or -1.
func (t *TableDef) ColumnIndex(name string) int {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return i
		}
	}
	return -1
}

func (t *TableDef) Column(name string) (*Column, bool) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return nil, false
	}
	return &t.Columns[i], true
}

// MustColumn is Column returning a SchemaError for an unknown name.
func (t *TableDef) MustColumn(name string) (int, error) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return -1, sqlerr.Schemaf("unknown column %q in table %q", name, t.Name)
	}
	return i, nil
}

// PrimaryKey returns the position of the primary key column, or -1.
func (t *TableDef) PrimaryKey() int {
	for i := range t.Columns {
		if t.Columns[i].PrimaryKey {
			return i
		}
	}
	return -1
}

// AutoIncrement returns the position of the AUTO_INCREMENT column, or -1.
func (t *TableDef) AutoIncrement() int {
	for i := range t.Columns {
		if t.Columns[i].AutoIncrement {
			return i
		}
	}
	return -1
}

func (t *TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// IndexOn returns the index over column, if any.
func (t *TableDef) IndexOn(column string) (*IndexDef, bool) {
	for i := range t.Indexes {
		if t.Indexes[i].Column == column {
			return &t.Indexes[i], true
		}
	}
	return nil, false
}

func (t *TableDef) Index(name string) (*IndexDef, bool) {
	for i := range t.Indexes {
		if t.Indexes[i].Name == name {
			return &t.Indexes[i], true
		}
	}
	return nil, false
}

// AddIndex registers a secondary index. A column carries at most one index.
func (t *TableDef) AddIndex(idx IndexDef) error {
	if _, err := t.MustColumn(idx.Column); err != nil {
		return err
	}
	if _, ok := t.Index(idx.Name); ok {
		return sqlerr.Schemaf("index %q already exists", idx.Name)
	}
	if other, ok := t.IndexOn(idx.Column); ok {
		return sqlerr.Schemaf("column %q of table %q is already indexed by %q", idx.Column, t.Name, other.Name)
	}
	t.Indexes = append(t.Indexes, idx)
	return nil
}

// DropIndex removes a secondary index. Indexes backing PRIMARY KEY or UNIQUE
// columns cannot be dropped.
func (t *TableDef) DropIndex(name string) (IndexDef, error) {
	for i, idx := range t.Indexes {
		if idx.Name != name {
			continue
		}
		if idx.Implicit {
			return IndexDef{}, sqlerr.Schemaf("index %q enforces a constraint on %s.%s and cannot be dropped", name, t.Name, idx.Column)
		}
		t.Indexes = append(t.Indexes[:i], t.Indexes[i+1:]...)
		return idx, nil
	}
	return IndexDef{}, sqlerr.Schemaf("unknown index %q on table %q", name, t.Name)
}

// Resolver finds other tables while validating foreign keys.
type Resolver func(name string) (*TableDef, bool)

// ValidateReferences checks every FOREIGN KEY: the target table and column
// must exist and the target column must carry a unique index. A table may
// reference itself.
func (t *TableDef) ValidateReferences(resolve Resolver) error {
	for _, c := range t.Columns {
		fk := c.References
		if fk == nil {
			continue
		}
		target, ok := t, fk.Table == t.Name
		if !ok {
			target, ok = resolve(fk.Table)
		}
		if !ok {
			return sqlerr.Schemaf("column %q references unknown table %q", c.Name, fk.Table)
		}
		tc, ok := target.Column(fk.Column)
		if !ok {
			return sqlerr.Schemaf("column %q references unknown column %s.%s", c.Name, fk.Table, fk.Column)
		}
		idx, ok := target.IndexOn(fk.Column)
		if !ok || !idx.Unique {
			return sqlerr.Schemaf("column %q references %s.%s, which is not a primary key or unique column", c.Name, fk.Table, fk.Column)
		}
		if tc.Type.Type != c.Type.Type && !(tc.Type.Type.IsNumeric() && c.Type.Type.IsNumeric()) {
			return sqlerr.Schemaf("column %q (%s) cannot reference %s.%s (%s)", c.Name, c.Type, fk.Table, fk.Column, tc.Type)
		}
	}
	return nil
}

// ReferencedBy lists the columns of t that point at table.
func (t *TableDef) ReferencedBy(table string) []Column {
	var out []Column
	for _, c := range t.Columns {
		if c.References != nil && c.References.Table == table {
			out = append(out, c)
		}
	}
	return out
}
