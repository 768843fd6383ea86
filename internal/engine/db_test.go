package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, dir string) *Database {
	t.Helper()
	db, err := Open(dir, Options{BTreeOrder: 4})
	require.NoError(t, err)
	return db
}

func mustExec(t *testing.T, db *Database, sql string) *QueryResult {
	t.Helper()
	res := db.Execute(sql)
	require.True(t, res.Success, "%s: %s", sql, res.Message)
	return res
}

func TestDatabase_CategoriesScenario(t *testing.T) {
	db := openTestDB(t, t.TempDir())

	mustExec(t, db, `CREATE TABLE categories(id INTEGER PRIMARY KEY AUTO_INCREMENT, name VARCHAR(100) UNIQUE NOT NULL)`)
	res := mustExec(t, db, `INSERT INTO categories (name) VALUES ('Electronics')`)
	assert.Equal(t, 1, res.RowCount)
	assert.Equal(t, "Inserted 1 row(s)", res.Message)

	res = db.Execute(`INSERT INTO categories (name) VALUES ('Electronics')`)
	assert.False(t, res.Success)
	assert.Equal(t, "ConstraintViolation", res.Error)
	assert.NotEmpty(t, res.Message)

	res = mustExec(t, db, `SELECT * FROM categories`)
	assert.Equal(t, []string{"id", "name"}, res.Columns)
	assert.Equal(t, [][]any{{int64(1), "Electronics"}}, res.Rows)
	assert.Equal(t, 1, res.RowCount)
}

func TestDatabase_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t, dir)
	mustExec(t, db, `
		CREATE TABLE users (id INTEGER PRIMARY KEY AUTO_INCREMENT, email VARCHAR(50) UNIQUE, born DATE, score FLOAT);
		INSERT INTO users (email, born, score) VALUES ('a@x', '1990-05-01', 1.5), ('b@x', NULL, NULL);
		CREATE INDEX idx_score ON users (score);
	`)
	want := mustExec(t, db, `SELECT * FROM users`).Rows
	require.NoError(t, db.Close())

	db = openTestDB(t, dir)
	assert.Equal(t, []string{"users"}, db.ListTables())
	assert.Equal(t, want, mustExec(t, db, `SELECT * FROM users`).Rows)

	info, err := db.GetTableInfo("users")
	require.NoError(t, err)
	assert.Equal(t, 2, info.RowCount)
	assert.Contains(t, info.Indexes, IndexInfo{Name: "idx_score", Column: "score"})

	// indexes and counters survive the restart
	res := db.Execute(`INSERT INTO users (email) VALUES ('a@x')`)
	assert.Equal(t, "ConstraintViolation", res.Error)
	mustExec(t, db, `INSERT INTO users (email) VALUES ('c@x')`)
	res = mustExec(t, db, `SELECT id FROM users WHERE email = 'c@x'`)
	assert.Equal(t, [][]any{{int64(3)}}, res.Rows)
}

func TestDatabase_FailedStatementLeavesDiskUnchanged(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t, dir)
	mustExec(t, db, `
		CREATE TABLE t (id INTEGER PRIMARY KEY, v INTEGER NOT NULL);
		INSERT INTO t VALUES (1, 1), (2, 2);
	`)
	before, err := os.ReadFile(filepath.Join(dir, "tables", "t.json"))
	require.NoError(t, err)

	for _, sql := range []string{
		`INSERT INTO t VALUES (3, 3), (1, 4)`,
		`UPDATE t SET v = NULL`,
		`UPDATE t SET id = 1`,
	} {
		res := db.Execute(sql)
		require.False(t, res.Success, sql)
		assert.Equal(t, "ConstraintViolation", res.Error, sql)
	}

	after, err := os.ReadFile(filepath.Join(dir, "tables", "t.json"))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// reads never write
	mustExec(t, db, `SELECT * FROM t`)
	again, err := os.ReadFile(filepath.Join(dir, "tables", "t.json"))
	require.NoError(t, err)
	assert.Equal(t, before, again)
}

func TestDatabase_ExecuteBatches(t *testing.T) {
	db := openTestDB(t, t.TempDir())

	// nothing runs unless everything parses
	res := db.Execute(`CREATE TABLE a (x INTEGER); SELEC * FROM a`)
	assert.False(t, res.Success)
	assert.Equal(t, "ParseError", res.Error)
	assert.Empty(t, db.ListTables())

	res = db.Execute(`CREATE TABLE a (x INTEGER); INSERT INTO nope VALUES (1); CREATE TABLE b (x INTEGER)`)
	assert.False(t, res.Success)
	assert.Equal(t, "SchemaError", res.Error)
	assert.Equal(t, []string{"a"}, db.ListTables())

	res = db.Execute(`   `)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)

	res = db.Execute(`SELECT 'unterminated`)
	assert.False(t, res.Success)
	assert.Equal(t, "LexError", res.Error)

	res = mustExec(t, db, `INSERT INTO a VALUES (1); SELECT x * 2 AS y FROM a`)
	assert.Equal(t, []string{"y"}, res.Columns)
	assert.Equal(t, [][]any{{int64(2)}}, res.Rows)
}

func TestDatabase_DropTable(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t, dir)
	mustExec(t, db, `CREATE TABLE gone (id INTEGER PRIMARY KEY)`)

	res := db.DropTable("gone")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "Table 'gone' dropped", res.Message)
	assert.Empty(t, db.ListTables())
	assert.NoFileExists(t, filepath.Join(dir, "tables", "gone.json"))

	res = db.Execute(`SELECT * FROM gone`)
	assert.False(t, res.Success)
	assert.Equal(t, "SchemaError", res.Error)

	res = db.DropTable("gone")
	assert.False(t, res.Success)

	_, err := db.GetTableInfo("gone")
	require.Error(t, err)
}

func TestDatabase_RowAPI(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	mustExec(t, db, `CREATE TABLE items (id INTEGER PRIMARY KEY AUTO_INCREMENT, name VARCHAR(20) NOT NULL, price FLOAT, note VARCHAR DEFAULT 'none')`)

	for _, row := range []map[string]any{
		{"name": "pen", "price": 1.5},
		{"name": "book", "price": float64(12)},
		{"name": "it's", "price": nil},
	} {
		res := db.InsertRow("items", row)
		require.True(t, res.Success, res.Message)
	}
	res := db.InsertRow("items", map[string]any{"price": 3.0})
	assert.False(t, res.Success)
	assert.Equal(t, "ConstraintViolation", res.Error)
	res = db.InsertRow("items", map[string]any{"name": []int{1}})
	assert.Equal(t, "TypeError", res.Error)
	res = db.InsertRow("items", map[string]any{"nope": 1})
	assert.Equal(t, "SchemaError", res.Error)

	res = db.GetRows("items", 0, 0, "", "")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, []string{"id", "name", "price", "note"}, res.Columns)
	assert.Equal(t, [][]any{
		{int64(1), "pen", 1.5, "none"},
		{int64(2), "book", 12.0, "none"},
		{int64(3), "it's", nil, "none"},
	}, res.Rows)

	res = db.GetRows("items", 2, 0, "price", "desc")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, []any{"book"}, []any{res.Rows[0][1]})
	assert.Len(t, res.Rows, 2)
	res = db.GetRows("items", 10, 2, "name", "ASC")
	assert.Equal(t, [][]any{{int64(1), "pen", 1.5, "none"}}, res.Rows)
	assert.False(t, db.GetRows("items", 10, 0, "name", "sideways").Success)
	assert.False(t, db.GetRows("items", 10, -1, "", "").Success)
	assert.False(t, db.GetRows("missing", 10, 0, "", "").Success)

	res = db.UpdateRow("items", 2, map[string]any{"price": 10, "note": "sale"})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "Updated 1 row(s)", res.Message)
	res = mustExec(t, db, `SELECT price, note FROM items WHERE id = 2`)
	assert.Equal(t, [][]any{{10.0, "sale"}}, res.Rows)
	assert.False(t, db.UpdateRow("items", 2, nil).Success)
	assert.False(t, db.UpdateRow("items", 2, map[string]any{"name": nil}).Success)

	res = db.DeleteRow("items", float64(1))
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "Deleted 1 row(s)", res.Message)
	res = mustExec(t, db, `SELECT COUNT(*) FROM items`)
	assert.Equal(t, [][]any{{int64(2)}}, res.Rows)
}

func TestDatabase_TableInfo(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	mustExec(t, db, `
		CREATE TABLE parents (id INTEGER PRIMARY KEY);
		CREATE TABLE kids (id INTEGER PRIMARY KEY AUTO_INCREMENT, parent INTEGER REFERENCES parents(id), name VARCHAR(10) NOT NULL DEFAULT 'x');
		INSERT INTO parents VALUES (1);
		INSERT INTO kids (parent) VALUES (1), (NULL);
	`)

	info, err := db.GetTableInfo("kids")
	require.NoError(t, err)
	assert.Equal(t, "kids", info.Name)
	assert.Equal(t, 2, info.RowCount)
	require.Len(t, info.Columns, 3)
	assert.Equal(t, ColumnInfo{Name: "id", Type: "INTEGER", PrimaryKey: true, Unique: true, AutoIncrement: true}, info.Columns[0])
	assert.Equal(t, "parents.id", info.Columns[1].References)
	assert.True(t, info.Columns[1].Nullable)
	assert.Equal(t, ColumnInfo{Name: "name", Type: "VARCHAR", Length: 10, Default: "x"}, info.Columns[2])
	assert.Equal(t, []IndexInfo{{Name: "kids_pkey", Column: "id", Unique: true}}, info.Indexes)
}

func TestDatabase_ResetAndStats(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t, dir)
	mustExec(t, db, `
		CREATE TABLE a (id INTEGER PRIMARY KEY);
		CREATE TABLE b (id INTEGER PRIMARY KEY);
		INSERT INTO a VALUES (1), (2), (3);
	`)

	st, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, st.Tables)
	assert.Positive(t, st.Bytes)
	assert.Equal(t, map[string]int{"a": 3, "b": 0}, st.RowCounts)

	require.NoError(t, db.Reset())
	assert.Empty(t, db.ListTables())
	require.NoError(t, db.Close())

	db = openTestDB(t, dir)
	assert.Empty(t, db.ListTables())
	mustExec(t, db, `CREATE TABLE a (id INTEGER PRIMARY KEY)`)
}

func TestDatabase_Closed(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	require.NoError(t, db.Close())

	res := db.Execute(`SELECT 1`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "closed")
	require.ErrorIs(t, db.Close(), ErrDatabaseClosed)
	require.ErrorIs(t, db.Reset(), ErrDatabaseClosed)
}

func TestDatabase_StorageFailureForgetsUnsavedTable(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t, dir)

	// a regular file where the tables directory should be makes every write fail
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "tables")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tables"), []byte("x"), 0o644))

	res := db.Execute(`CREATE TABLE t (id INTEGER)`)
	assert.False(t, res.Success)
	assert.Equal(t, "StorageError", res.Error)
	assert.Empty(t, db.ListTables())
}
