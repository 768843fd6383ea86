package engine

import (
	"slices"
	"strings"

	"github.com/tuannm99/tinyrdb/internal/heap"
	"github.com/tuannm99/tinyrdb/internal/record"
	"github.com/tuannm99/tinyrdb/internal/sql/parser"
	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

// Row-level helpers. They build statements directly instead of formatting
// SQL, so values never need quoting.

type ColumnInfo struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Length        int    `json:"length,omitempty"`
	Nullable      bool   `json:"nullable"`
	PrimaryKey    bool   `json:"primary_key"`
	Unique        bool   `json:"unique"`
	AutoIncrement bool   `json:"auto_increment"`
	Default       any    `json:"default,omitempty"`
	References    string `json:"references,omitempty"` // table.column
}

type IndexInfo struct {
	Name   string `json:"name"`
	Column string `json:"column"`
	Unique bool   `json:"unique"`
}

type TableInfo struct {
	Name     string       `json:"name"`
	Columns  []ColumnInfo `json:"columns"`
	RowCount int          `json:"row_count"`
	Indexes  []IndexInfo  `json:"indexes"`
}

// GetTableInfo describes a table's columns, indexes and size.
func (db *Database) GetTableInfo(name string) (*TableInfo, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	t, err := db.lookup(name)
	if err != nil {
		return nil, err
	}
	info := &TableInfo{Name: t.Name(), RowCount: t.Len()}
	for _, c := range t.Def.Columns {
		ci := ColumnInfo{
			Name:          c.Name,
			Type:          c.Type.Type.String(),
			Length:        c.Type.Length,
			Nullable:      c.Nullable,
			PrimaryKey:    c.PrimaryKey,
			Unique:        c.Unique,
			AutoIncrement: c.AutoIncrement,
		}
		if c.Default != nil {
			ci.Default = c.Default.Native()
		}
		if fk := c.References; fk != nil {
			ci.References = fk.Table + "." + fk.Column
		}
		info.Columns = append(info.Columns, ci)
	}
	for _, idx := range t.Def.Indexes {
		info.Indexes = append(info.Indexes, IndexInfo{Name: idx.Name, Column: idx.Column, Unique: idx.Unique})
	}
	return info, nil
}

// GetRows pages through a table. limit <= 0 means no limit. orderDir is
// ASC or DESC, case-insensitive, and defaults to ASC.
func (db *Database) GetRows(table string, limit, offset int, orderBy, orderDir string) *QueryResult {
	stmt := &parser.SelectStmt{
		Items: []parser.SelectItem{{Expr: &parser.Wildcard{}}},
		From:  &parser.TableRef{Name: table},
	}
	if orderBy != "" {
		var desc bool
		switch strings.ToUpper(orderDir) {
		case "", "ASC":
		case "DESC":
			desc = true
		default:
			return failed(sqlerr.Schemaf("order direction must be ASC or DESC, got %q", orderDir))
		}
		stmt.OrderBy = []parser.OrderItem{{Expr: &parser.ColumnRef{Column: orderBy}, Desc: desc}}
	}
	if offset < 0 {
		return failed(sqlerr.Schemaf("offset must not be negative, got %d", offset))
	}
	if limit > 0 {
		n := int64(limit)
		stmt.Limit = &n
	}
	if offset > 0 {
		m := int64(offset)
		stmt.Offset = &m
	}
	return db.run(stmt)
}

// InsertRow inserts one row given as column -> value. Values are the plain Go
// types of a decoded JSON object; columns left out get their default.
func (db *Database) InsertRow(table string, data map[string]any) *QueryResult {
	if len(data) == 0 {
		return failed(sqlerr.Schemaf("no values to insert"))
	}
	cols := sortedKeys(data)
	values := make([]parser.Expr, len(cols))
	for i, c := range cols {
		lit, err := literal(c, data[c])
		if err != nil {
			return failed(err)
		}
		values[i] = lit
	}
	return db.run(&parser.InsertStmt{TableName: table, Columns: cols, Rows: [][]parser.Expr{values}})
}

// UpdateRow sets columns of the row whose primary key equals id. Tables
// without a primary key are addressed through their "id" column.
func (db *Database) UpdateRow(table string, id any, data map[string]any) *QueryResult {
	if len(data) == 0 {
		return failed(sqlerr.Schemaf("no columns to update"))
	}
	where, err := db.keyMatch(table, id)
	if err != nil {
		return failed(err)
	}
	stmt := &parser.UpdateStmt{TableName: table, Where: where}
	for _, c := range sortedKeys(data) {
		lit, err := literal(c, data[c])
		if err != nil {
			return failed(err)
		}
		stmt.Assignments = append(stmt.Assignments, parser.Assignment{Column: c, Value: lit})
	}
	return db.run(stmt)
}

// DeleteRow deletes the row whose primary key equals id.
func (db *Database) DeleteRow(table string, id any) *QueryResult {
	where, err := db.keyMatch(table, id)
	if err != nil {
		return failed(err)
	}
	return db.run(&parser.DeleteStmt{TableName: table, Where: where})
}

// keyMatch builds <key column> = id for table.
func (db *Database) keyMatch(table string, id any) (parser.Expr, error) {
	db.mu.RLock()
	t, err := db.lookup(table)
	key := "id"
	if err == nil {
		if pk := t.Def.PrimaryKey(); pk >= 0 {
			key = t.Def.Columns[pk].Name
		}
	}
	db.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	lit, err := literal(key, id)
	if err != nil {
		return nil, err
	}
	return &parser.BinaryExpr{Op: parser.OpEq, Left: &parser.ColumnRef{Column: key}, Right: lit}, nil
}

func (db *Database) lookup(name string) (*heap.Table, error) {
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	t, ok := db.exec.Table(name)
	if !ok {
		return nil, sqlerr.Schemaf("Table '%s' does not exist", name)
	}
	return t, nil
}

func literal(column string, x any) (*parser.LiteralExpr, error) {
	v, ok := record.FromNative(x)
	if !ok {
		return nil, sqlerr.Typef("column %q: unsupported value of type %T", column, x)
	}
	return &parser.LiteralExpr{Value: v}, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
