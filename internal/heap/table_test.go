package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/tinyrdb/internal/btree"
	"github.com/tuannm99/tinyrdb/internal/catalog"
	"github.com/tuannm99/tinyrdb/internal/record"
	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

// newTestTable creates users(id INTEGER PRIMARY KEY, email VARCHAR UNIQUE, age INTEGER).
func newTestTable(t *testing.T) *Table {
	t.Helper()
	def, err := catalog.NewTableDef("users", []catalog.Column{
		{Name: "id", Type: record.ColumnType{Type: record.TypeInteger}, PrimaryKey: true},
		{Name: "email", Type: record.ColumnType{Type: record.TypeVarchar}, Nullable: true, Unique: true},
		{Name: "age", Type: record.ColumnType{Type: record.TypeInteger}, Nullable: true},
	})
	require.NoError(t, err)
	tbl, err := NewTable(def, btree.DefaultOrder)
	require.NoError(t, err)
	return tbl
}

func row(id int64, email any, age any) record.Row {
	r := record.Row{record.Int(id), record.Null(), record.Null()}
	if s, ok := email.(string); ok && s != "" {
		r[1] = record.Text(s)
	}
	if n, ok := age.(int); ok {
		r[2] = record.Int(int64(n))
	}
	return r
}

func TestTable_InsertGetScan(t *testing.T) {
	tbl := newTestTable(t)

	for i := int64(1); i <= 5; i++ {
		id, err := tbl.Insert(row(i*10, "", int(i)))
		require.NoError(t, err)
		require.Equal(t, record.RowID(i), id)
	}
	require.Equal(t, 5, tbl.Len())
	require.Equal(t, record.RowID(6), tbl.NextRowID())

	got, ok := tbl.Get(3)
	require.True(t, ok)
	assert.Equal(t, record.Int(30), got[0])

	var ids []record.RowID
	for id := range tbl.Scan() {
		ids = append(ids, id)
	}
	assert.Equal(t, []record.RowID{1, 2, 3, 4, 5}, ids)

	pk, ok := tbl.Index("id")
	require.True(t, ok)
	assert.Equal(t, []record.RowID{4}, pk.Lookup(record.Int(40)))
	require.NoError(t, tbl.CheckIndexes())
}

func TestTable_GetReturnsCopy(t *testing.T) {
	tbl := newTestTable(t)
	id, err := tbl.Insert(row(1, "a@x", 20))
	require.NoError(t, err)

	got, _ := tbl.Get(id)
	got[2] = record.Int(99)

	again, _ := tbl.Get(id)
	assert.Equal(t, record.Int(20), again[2])
}

func TestTable_UniqueConflictRollsBack(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Insert(row(1, "a@x", 1))
	require.NoError(t, err)

	// new primary key but duplicate email
	_, err = tbl.Insert(row(2, "a@x", 2))
	require.ErrorIs(t, err, sqlerr.ErrConstraint)

	assert.Equal(t, 1, tbl.Len())
	pk, _ := tbl.Index("id")
	assert.Nil(t, pk.Lookup(record.Int(2)), "pk entry of the failed row is rolled back")
	require.NoError(t, tbl.CheckIndexes())
}

func TestTable_NullsAreNotIndexed(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Insert(row(1, nil, nil))
	require.NoError(t, err)
	_, err = tbl.Insert(row(2, nil, nil))
	require.NoError(t, err, "unique column accepts several NULLs")

	email, _ := tbl.Index("email")
	assert.Equal(t, 0, email.Entries())
	require.NoError(t, tbl.CheckIndexes())
}

func TestTable_Update(t *testing.T) {
	tbl := newTestTable(t)
	a, _ := tbl.Insert(row(1, "a@x", 1))
	b, _ := tbl.Insert(row(2, "b@x", 2))

	require.NoError(t, tbl.Update(a, row(1, "c@x", 5)))
	email, _ := tbl.Index("email")
	assert.Nil(t, email.Lookup(record.Text("a@x")))
	assert.Equal(t, []record.RowID{a}, email.Lookup(record.Text("c@x")))

	// conflicting update leaves both indexes and the row untouched
	err := tbl.Update(b, row(3, "c@x", 7))
	require.ErrorIs(t, err, sqlerr.ErrConstraint)
	got, _ := tbl.Get(b)
	assert.Equal(t, row(2, "b@x", 2), got)
	pk, _ := tbl.Index("id")
	assert.Equal(t, []record.RowID{b}, pk.Lookup(record.Int(2)))
	assert.Nil(t, pk.Lookup(record.Int(3)))
	require.NoError(t, tbl.CheckIndexes())

	require.Error(t, tbl.Update(99, row(9, nil, nil)))
}

func TestTable_UpdateManySwapsUniqueKeys(t *testing.T) {
	tbl := newTestTable(t)
	a, _ := tbl.Insert(row(1, "a@x", 1))
	b, _ := tbl.Insert(row(2, "b@x", 2))

	// one row at a time this would collide on both indexes
	require.NoError(t, tbl.UpdateMany([]record.RowID{a, b}, []record.Row{row(2, "b@x", 1), row(1, "a@x", 2)}))
	pk, _ := tbl.Index("id")
	assert.Equal(t, []record.RowID{b}, pk.Lookup(record.Int(1)))
	assert.Equal(t, []record.RowID{a}, pk.Lookup(record.Int(2)))
	require.NoError(t, tbl.CheckIndexes())

	// a conflict inside the batch restores every row
	err := tbl.UpdateMany([]record.RowID{a, b}, []record.Row{row(5, "z@x", 1), row(6, "z@x", 2)})
	require.ErrorIs(t, err, sqlerr.ErrConstraint)
	got, _ := tbl.Get(a)
	assert.Equal(t, row(2, "b@x", 1), got)
	assert.Nil(t, pk.Lookup(record.Int(5)))
	require.NoError(t, tbl.CheckIndexes())
}

func TestTable_Delete(t *testing.T) {
	tbl := newTestTable(t)
	for i := int64(1); i <= 4; i++ {
		_, err := tbl.Insert(row(i, "", nil))
		require.NoError(t, err)
	}

	old, ok := tbl.Delete(2)
	require.True(t, ok)
	assert.Equal(t, record.Int(2), old[0])
	_, ok = tbl.Delete(2)
	assert.False(t, ok)

	assert.Equal(t, []record.RowID{1, 3, 4}, tbl.IDs())
	require.NoError(t, tbl.CheckIndexes())

	// row ids are never reused
	id, err := tbl.Insert(row(2, "", nil))
	require.NoError(t, err)
	assert.Equal(t, record.RowID(5), id)
}

func TestTable_AutoIncrementCounter(t *testing.T) {
	tbl := newTestTable(t)
	assert.Equal(t, int64(1), tbl.NextAutoIncrement())
	tbl.ObserveAutoIncrement(1)
	assert.Equal(t, int64(2), tbl.NextAutoIncrement())
	tbl.ObserveAutoIncrement(10)
	tbl.ObserveAutoIncrement(4)
	assert.Equal(t, int64(11), tbl.NextAutoIncrement())
}

func TestTable_AddAndDropIndex(t *testing.T) {
	tbl := newTestTable(t)
	for i, age := range []int{30, 20, 30, 40} {
		_, err := tbl.Insert(row(int64(i+1), "", age))
		require.NoError(t, err)
	}

	err := tbl.AddIndex(catalog.IndexDef{Name: "uq_age", Column: "age", Unique: true})
	require.ErrorIs(t, err, sqlerr.ErrConstraint)
	_, ok := tbl.Index("age")
	require.False(t, ok)

	require.NoError(t, tbl.AddIndex(catalog.IndexDef{Name: "idx_age", Column: "age"}))
	age, ok := tbl.Index("age")
	require.True(t, ok)
	assert.Equal(t, []record.RowID{1, 3}, age.Lookup(record.Int(30)))
	assert.Equal(t, []record.RowID{2, 1, 3}, age.RangeScan(nil, btree.Incl(record.Int(30))))
	require.NoError(t, tbl.CheckIndexes())

	require.NoError(t, tbl.DropIndex("idx_age"))
	_, ok = tbl.Index("age")
	assert.False(t, ok)
	require.ErrorIs(t, tbl.DropIndex("users_pkey"), sqlerr.ErrSchema)
}

func TestRestore_RebuildsIndexes(t *testing.T) {
	src := newTestTable(t)
	for i := int64(1); i <= 20; i++ {
		_, err := src.Insert(row(i, "", int(i%3)))
		require.NoError(t, err)
	}
	src.Delete(7)
	src.ObserveAutoIncrement(20)

	tbl, err := Restore(src.Def, btree.DefaultOrder, src.Rows(), src.NextRowID(), src.NextAutoIncrement())
	require.NoError(t, err)
	assert.Equal(t, 19, tbl.Len())
	assert.Equal(t, src.IDs(), tbl.IDs())
	assert.Equal(t, record.RowID(21), tbl.NextRowID())
	assert.Equal(t, int64(21), tbl.NextAutoIncrement())
	require.NoError(t, tbl.CheckIndexes())

	// duplicate primary keys on disk are rejected
	rows := []StoredRow{{ID: 1, Values: row(1, "", nil)}, {ID: 2, Values: row(1, "", nil)}}
	_, err = Restore(src.Def, btree.DefaultOrder, rows, 3, 1)
	require.ErrorIs(t, err, sqlerr.ErrConstraint)
}
