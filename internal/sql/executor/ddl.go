package executor

import (
	"fmt"

	"github.com/tuannm99/tinyrdb/internal/catalog"
	"github.com/tuannm99/tinyrdb/internal/heap"
	"github.com/tuannm99/tinyrdb/internal/record"
	"github.com/tuannm99/tinyrdb/internal/sql/parser"
	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

// tableDef builds a validated definition from a CREATE TABLE statement.
// Foreign keys are not resolved here.
func tableDef(s *parser.CreateTableStmt) (*catalog.TableDef, error) {
	cols := make([]catalog.Column, len(s.Columns))
	for i, cd := range s.Columns {
		dt, err := record.ParseDataType(cd.Type)
		if err != nil {
			return nil, sqlerr.Schemaf("column %q: %v", cd.Name, err)
		}
		c := catalog.Column{
			Name:          cd.Name,
			Type:          record.ColumnType{Type: dt, Length: cd.Length},
			Nullable:      !cd.NotNull,
			PrimaryKey:    cd.PrimaryKey,
			Unique:        cd.Unique,
			AutoIncrement: cd.AutoIncrement,
		}
		if cd.Default != nil {
			v, err := evalConst(cd.Default)
			if err != nil {
				return nil, err
			}
			c.Default = &v
		}
		if cd.References != nil {
			c.References = &catalog.ForeignKey{Table: cd.References.Table, Column: cd.References.Column}
		}
		cols[i] = c
	}

	for _, tc := range s.Constraints {
		i := -1
		for j := range cols {
			if cols[j].Name == tc.Column {
				i = j
				break
			}
		}
		if i < 0 {
			return nil, sqlerr.Schemaf("constraint names unknown column %q", tc.Column)
		}
		switch tc.Kind {
		case parser.ConstraintPrimaryKey:
			cols[i].PrimaryKey = true
		case parser.ConstraintUnique:
			cols[i].Unique = true
		case parser.ConstraintForeignKey:
			if cols[i].References != nil {
				return nil, sqlerr.Schemaf("column %q has more than one foreign key", tc.Column)
			}
			cols[i].References = &catalog.ForeignKey{Table: tc.References.Table, Column: tc.References.Column}
		}
	}
	return catalog.NewTableDef(s.TableName, cols)
}

func (e *Executor) execCreateTable(s *parser.CreateTableStmt) (*Result, error) {
	if _, exists := e.tables[s.TableName]; exists {
		if s.IfNotExists {
			return &Result{Message: fmt.Sprintf("Table '%s' already exists", s.TableName)}, nil
		}
		return nil, sqlerr.Schemaf("Table '%s' already exists", s.TableName)
	}

	def, err := tableDef(s)
	if err != nil {
		return nil, err
	}
	err = def.ValidateReferences(func(name string) (*catalog.TableDef, bool) {
		t, ok := e.tables[name]
		if !ok {
			return nil, false
		}
		return t.Def, true
	})
	if err != nil {
		return nil, err
	}
	for _, idx := range def.Indexes {
		if owner, taken := e.findIndex(idx.Name); taken {
			return nil, sqlerr.Schemaf("index %q already exists on table %q", idx.Name, owner.Name())
		}
	}

	t, err := heap.NewTable(def, e.order)
	if err != nil {
		return nil, err
	}
	e.tables[def.Name] = t
	logDDL("table created", "table", def.Name, "columns", len(def.Columns))
	return &Result{
		Message: fmt.Sprintf("Table '%s' created", def.Name),
		Dirty:   []string{def.Name},
	}, nil
}

func (e *Executor) execDropTable(s *parser.DropTableStmt) (*Result, error) {
	t, ok := e.tables[s.TableName]
	if !ok {
		if s.IfExists {
			return &Result{Message: fmt.Sprintf("Table '%s' does not exist", s.TableName)}, nil
		}
		return nil, sqlerr.Schemaf("Table '%s' does not exist", s.TableName)
	}
	for _, ref := range e.referencesTo(t) {
		if ref.from != t {
			return nil, sqlerr.Schemaf("cannot drop table %q: referenced by %s.%s",
				t.Name(), ref.from.Name(), ref.from.Def.Columns[ref.column].Name)
		}
	}

	delete(e.tables, s.TableName)
	logDDL("table dropped", "table", s.TableName)
	return &Result{
		Message: fmt.Sprintf("Table '%s' dropped", s.TableName),
		Dropped: []string{s.TableName},
	}, nil
}

func (e *Executor) execCreateIndex(s *parser.CreateIndexStmt) (*Result, error) {
	t, err := e.table(s.TableName)
	if err != nil {
		return nil, err
	}
	if _, err := t.Def.MustColumn(s.Column); err != nil {
		return nil, err
	}
	if owner, taken := e.findIndex(s.Name); taken {
		return nil, sqlerr.Schemaf("index %q already exists on table %q", s.Name, owner.Name())
	}
	if err := t.AddIndex(catalog.IndexDef{Name: s.Name, Column: s.Column, Unique: s.Unique}); err != nil {
		return nil, err
	}

	logDDL("index created", "table", t.Name(), "index", s.Name, "column", s.Column, "unique", s.Unique)
	return &Result{
		Message: fmt.Sprintf("Index '%s' created on '%s'", s.Name, t.Name()),
		Dirty:   []string{t.Name()},
	}, nil
}

func (e *Executor) execDropIndex(s *parser.DropIndexStmt) (*Result, error) {
	var (
		t  *heap.Table
		ok bool
	)
	if s.TableName != "" {
		if t, ok = e.tables[s.TableName]; ok {
			_, ok = t.Def.Index(s.Name)
		}
	} else {
		t, ok = e.findIndex(s.Name)
	}
	if !ok {
		return nil, sqlerr.Schemaf("unknown index %q", s.Name)
	}

	idx, _ := t.Def.Index(s.Name)
	for _, ref := range e.referencesTo(t) {
		if !idx.Implicit && t.Def.Columns[ref.target].Name == idx.Column {
			return nil, sqlerr.Schemaf("cannot drop index %q: %s.%s references %s.%s",
				s.Name, ref.from.Name(), ref.from.Def.Columns[ref.column].Name, t.Name(), idx.Column)
		}
	}
	if err := t.DropIndex(s.Name); err != nil {
		return nil, err
	}

	logDDL("index dropped", "table", t.Name(), "index", s.Name)
	return &Result{
		Message: fmt.Sprintf("Index '%s' dropped", s.Name),
		Dirty:   []string{t.Name()},
	}, nil
}
