package executor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/tinyrdb/internal/sql/parser"
	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

func newExecutor() *Executor { return New(nil, 4) }

// exec runs every statement of sql and returns the last result.
func exec(t *testing.T, e *Executor, sql string) *Result {
	t.Helper()
	stmts, err := parser.ParseAll(sql)
	require.NoError(t, err, sql)
	var res *Result
	for _, s := range stmts {
		res, err = e.Exec(s)
		require.NoError(t, err, sql)
	}
	return res
}

func execErr(t *testing.T, e *Executor, sql string) error {
	t.Helper()
	s, err := parser.Parse(sql)
	require.NoError(t, err, sql)
	_, err = e.Exec(s)
	require.Error(t, err, sql)
	return err
}

func rows(res *Result) [][]any {
	out := make([][]any, len(res.Rows))
	for i, r := range res.Rows {
		out[i] = make([]any, len(r))
		for j, v := range r {
			out[i][j] = v.Native()
		}
	}
	return out
}

// column returns the single selected column as a flat slice.
func column(t *testing.T, e *Executor, sql string) []any {
	t.Helper()
	res := exec(t, e, sql)
	out := make([]any, len(res.Rows))
	for i, r := range res.Rows {
		require.Len(t, r, 1)
		out[i] = r[0].Native()
	}
	return out
}

func ids(xs ...int64) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func TestCategories(t *testing.T) {
	e := newExecutor()
	res := exec(t, e, `CREATE TABLE categories(id INTEGER PRIMARY KEY AUTO_INCREMENT, name VARCHAR(100) UNIQUE NOT NULL)`)
	assert.Equal(t, "Table 'categories' created", res.Message)
	assert.Equal(t, []string{"categories"}, res.Dirty)

	res = exec(t, e, `INSERT INTO categories (name) VALUES ('Electronics')`)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Equal(t, "Inserted 1 row(s)", res.Message)

	err := execErr(t, e, `INSERT INTO categories (name) VALUES ('Electronics')`)
	require.ErrorIs(t, err, sqlerr.ErrConstraint)
	assert.Contains(t, err.Error(), "UNIQUE constraint violated: duplicate value 'Electronics' for column 'name'")

	res = exec(t, e, `SELECT * FROM categories`)
	assert.Equal(t, []string{"id", "name"}, res.Columns)
	assert.Equal(t, [][]any{{int64(1), "Electronics"}}, rows(res))

	// the failed insert did not consume a key
	exec(t, e, `INSERT INTO categories (name) VALUES ('Books')`)
	assert.Equal(t, ids(1, 2), column(t, e, `SELECT id FROM categories`))

	err = execErr(t, e, `INSERT INTO categories (name) VALUES (NULL)`)
	require.ErrorIs(t, err, sqlerr.ErrConstraint)
	assert.Contains(t, err.Error(), "NOT NULL constraint violated: 'name' cannot be NULL")

	err = execErr(t, e, `INSERT INTO categories (name) VALUES ('this name is far too long for the column and keeps going on and on and on and on and on and on and on')`)
	require.ErrorIs(t, err, sqlerr.ErrType)
}

func TestGroupBy(t *testing.T) {
	e := newExecutor()
	exec(t, e, `
		CREATE TABLE products(id INTEGER PRIMARY KEY AUTO_INCREMENT, name VARCHAR(200), category_id INTEGER, price FLOAT, quantity INTEGER);
		INSERT INTO products (name, category_id, price, quantity) VALUES
			('a', 1, 2.5, 4), ('b', 1, 1.0, 3), ('c', 2, 10, 1), ('d', NULL, 3.0, 2);
	`)

	res := exec(t, e, `SELECT category_id, COUNT(*), SUM(price*quantity) FROM products GROUP BY category_id`)
	assert.Equal(t, []string{"category_id", "COUNT(*)", "SUM(price * quantity)"}, res.Columns)
	assert.Equal(t, [][]any{
		{int64(1), int64(2), 13.0},
		{int64(2), int64(1), 10.0},
		{nil, int64(1), 6.0},
	}, rows(res))

	res = exec(t, e, `SELECT category_id AS cat, AVG(price) AS avg_price FROM products GROUP BY category_id HAVING COUNT(*) > 1`)
	assert.Equal(t, [][]any{{int64(1), 1.75}}, rows(res))

	res = exec(t, e, `SELECT COUNT(*), MIN(price), MAX(name), COUNT(category_id), COUNT(DISTINCT category_id) FROM products`)
	assert.Equal(t, [][]any{{int64(4), 1.0, "d", int64(3), int64(2)}}, rows(res))

	res = exec(t, e, `SELECT category_id, SUM(quantity) AS q FROM products GROUP BY category_id ORDER BY q DESC`)
	assert.Equal(t, [][]any{{int64(1), int64(7)}, {nil, int64(2)}, {int64(2), int64(1)}}, rows(res))
}

func TestAggregatesOverNoRows(t *testing.T) {
	e := newExecutor()
	exec(t, e, `CREATE TABLE empty (v INTEGER)`)

	res := exec(t, e, `SELECT COUNT(*), SUM(v), AVG(v), MIN(v), MAX(v) FROM empty`)
	assert.Equal(t, [][]any{{int64(0), nil, nil, nil, nil}}, rows(res))

	res = exec(t, e, `SELECT v, COUNT(*) FROM empty GROUP BY v`)
	assert.Empty(t, res.Rows)
}

func TestNullSemantics(t *testing.T) {
	e := newExecutor()
	exec(t, e, `
		CREATE TABLE t (id INTEGER PRIMARY KEY, v INTEGER);
		INSERT INTO t VALUES (1, 10), (2, NULL), (3, 30);
	`)

	assert.Empty(t, exec(t, e, `SELECT * FROM t WHERE v = NULL`).Rows)
	assert.Empty(t, exec(t, e, `SELECT * FROM t WHERE id = NULL`).Rows)
	assert.Empty(t, exec(t, e, `SELECT * FROM t WHERE v != NULL`).Rows)
	assert.Equal(t, ids(2), column(t, e, `SELECT id FROM t WHERE v IS NULL`))
	assert.Equal(t, ids(1, 3), column(t, e, `SELECT id FROM t WHERE v IS NOT NULL`))
	assert.Equal(t, ids(3), column(t, e, `SELECT id FROM t WHERE NOT (v = 10)`))
	assert.Equal(t, ids(1, 2), column(t, e, `SELECT id FROM t WHERE v = 10 OR v IS NULL`))
	assert.Equal(t, ids(2), column(t, e, `SELECT id FROM t WHERE v IS NULL AND id > 1`))

	assert.Equal(t, []any{int64(11), nil, int64(31)}, column(t, e, `SELECT v + 1 FROM t`))
}

func TestPagination(t *testing.T) {
	e := newExecutor()
	exec(t, e, `CREATE TABLE p (id INTEGER PRIMARY KEY, v INTEGER)`)
	for i := 1; i <= 10; i++ {
		exec(t, e, fmt.Sprintf(`INSERT INTO p VALUES (%d, %d)`, i, (i*7)%10))
	}
	all := column(t, e, `SELECT id FROM p ORDER BY v DESC`)
	require.Len(t, all, 10)

	for _, n := range []int{0, 1, 3, 10, 20} {
		for _, m := range []int{0, 2, 9, 10, 15} {
			got := column(t, e, fmt.Sprintf(`SELECT id FROM p ORDER BY v DESC LIMIT %d OFFSET %d`, n, m))
			want := max(0, min(n, 10-m))
			require.Len(t, got, want, "LIMIT %d OFFSET %d", n, m)
			if want > 0 {
				assert.Equal(t, all[m:m+want], got)
			}
		}
	}
	assert.Equal(t, all[7:], column(t, e, `SELECT id FROM p ORDER BY v DESC OFFSET 7`))
}

func seedScores(t *testing.T, e *Executor) {
	exec(t, e, `
		CREATE TABLE s (id INTEGER PRIMARY KEY, grp VARCHAR, score INTEGER);
		INSERT INTO s VALUES (1, 'a', 5), (2, 'b', NULL), (3, 'a', 7), (4, 'b', 5), (5, 'c', NULL);
	`)
}

func TestOrderBy(t *testing.T) {
	e := newExecutor()
	seedScores(t, e)

	check := func() {
		assert.Equal(t, ids(1, 4, 3, 2, 5), column(t, e, `SELECT id FROM s ORDER BY score`))
		assert.Equal(t, ids(3, 1, 4, 2, 5), column(t, e, `SELECT id FROM s ORDER BY score DESC`))
		assert.Equal(t, ids(3, 1, 4), column(t, e, `SELECT id FROM s WHERE score > 4 ORDER BY score DESC, id`))
		assert.Equal(t, ids(5, 4, 2, 1, 3), column(t, e, `SELECT id FROM s ORDER BY grp DESC, score`))
		assert.Equal(t, ids(5, 4), column(t, e, `SELECT id AS k FROM s ORDER BY k DESC LIMIT 2`))

		res := exec(t, e, `SELECT grp, score FROM s ORDER BY 2 DESC, 1`)
		assert.Equal(t, [][]any{{"a", int64(7)}, {"a", int64(5)}, {"b", int64(5)}, {"b", nil}, {"c", nil}}, rows(res))
	}

	check()
	// an index walk must produce exactly what the sort produces
	exec(t, e, `CREATE INDEX idx_score ON s (score)`)
	check()

	err := execErr(t, e, `SELECT id FROM s ORDER BY 3`)
	require.ErrorIs(t, err, sqlerr.ErrSchema)
}

func TestDistinct(t *testing.T) {
	e := newExecutor()
	seedScores(t, e)

	assert.Equal(t, []any{"a", "b", "c"}, column(t, e, `SELECT DISTINCT grp FROM s ORDER BY grp`))
	res := exec(t, e, `SELECT DISTINCT grp, score FROM s WHERE score IS NOT NULL`)
	assert.Equal(t, [][]any{{"a", int64(5)}, {"a", int64(7)}, {"b", int64(5)}}, rows(res))

	res = exec(t, e, `SELECT grp, COUNT(*) AS c FROM s GROUP BY grp HAVING COUNT(*) > 1 ORDER BY grp`)
	assert.Equal(t, [][]any{{"a", int64(2)}, {"b", int64(2)}}, rows(res))
}

func seedShop(t *testing.T, e *Executor) {
	exec(t, e, `
		CREATE TABLE customers (id INTEGER PRIMARY KEY, name VARCHAR);
		CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER REFERENCES customers(id), total FLOAT);
		INSERT INTO customers VALUES (1, 'ann'), (2, 'bob'), (3, 'cy');
		INSERT INTO orders VALUES (10, 1, 5.0), (11, 1, 7.5), (12, 2, 1.0);
	`)
}

func TestJoins(t *testing.T) {
	e := newExecutor()
	seedShop(t, e)

	want := [][]any{{"ann", 5.0}, {"ann", 7.5}, {"bob", 1.0}}
	res := exec(t, e, `SELECT c.name, o.total FROM customers c JOIN orders o ON o.customer_id = c.id ORDER BY o.id`)
	assert.Equal(t, []string{"c.name", "o.total"}, res.Columns)
	assert.Equal(t, want, rows(res))

	// probing the customers primary key gives the same rows
	res = exec(t, e, `SELECT c.name, o.total FROM orders o INNER JOIN customers c ON c.id = o.customer_id ORDER BY o.id`)
	assert.Equal(t, want, rows(res))

	res = exec(t, e, `SELECT c.name, o.id FROM customers c LEFT JOIN orders o ON o.customer_id = c.id ORDER BY c.id, o.id`)
	assert.Equal(t, [][]any{{"ann", int64(10)}, {"ann", int64(11)}, {"bob", int64(12)}, {"cy", nil}}, rows(res))

	res = exec(t, e, `SELECT COUNT(*) FROM customers CROSS JOIN orders`)
	assert.Equal(t, [][]any{{int64(9)}}, rows(res))

	res = exec(t, e, `SELECT * FROM customers c JOIN orders o ON o.customer_id = c.id WHERE o.total > 2`)
	assert.Equal(t, []string{"id", "name", "id", "customer_id", "total"}, res.Columns)
	assert.Len(t, res.Rows, 2)

	res = exec(t, e, `SELECT o.* FROM customers c JOIN orders o ON o.customer_id = c.id WHERE c.name = 'bob'`)
	assert.Equal(t, [][]any{{int64(12), int64(2), 1.0}}, rows(res))

	res = exec(t, e, `SELECT c.name, SUM(o.total) AS spent FROM customers c LEFT JOIN orders o ON o.customer_id = c.id GROUP BY c.name ORDER BY spent DESC`)
	assert.Equal(t, [][]any{{"ann", 12.5}, {"bob", 1.0}, {"cy", nil}}, rows(res))

	err := execErr(t, e, `SELECT id FROM customers c JOIN orders o ON o.customer_id = c.id`)
	require.ErrorIs(t, err, sqlerr.ErrSchema)
	assert.Contains(t, err.Error(), "ambiguous")

	err = execErr(t, e, `SELECT * FROM customers c JOIN nowhere n ON n.id = c.id`)
	require.ErrorIs(t, err, sqlerr.ErrSchema)
}

func TestOuterJoins(t *testing.T) {
	e := newExecutor()
	exec(t, e, `CREATE TABLE a (id INTEGER PRIMARY KEY, v INTEGER);
		CREATE TABLE b (bid INTEGER PRIMARY KEY, aid INTEGER);
		CREATE TABLE empty (x INTEGER);
		INSERT INTO a VALUES (1, 10), (2, 20);
		INSERT INTO b VALUES (1, 1), (2, 3)`)

	cases := []struct {
		sql  string
		want [][]any
	}{
		{`SELECT bid, v FROM a RIGHT JOIN b ON id = aid`,
			[][]any{{int64(1), int64(10)}, {int64(2), nil}}},
		{`SELECT * FROM a RIGHT OUTER JOIN b ON a.id = b.aid`,
			[][]any{{int64(1), int64(10), int64(1), int64(1)}, {nil, nil, int64(2), int64(3)}}},
		{`SELECT a.id, b.bid FROM a FULL OUTER JOIN b ON a.id = b.aid`,
			[][]any{{int64(1), int64(1)}, {int64(2), nil}, {nil, int64(2)}}},
		// a.id is the primary key, so these probe the right table's index
		{`SELECT a.id, bid FROM b RIGHT JOIN a ON a.id = b.aid`,
			[][]any{{int64(1), int64(1)}, {int64(2), nil}}},
		{`SELECT a.id, bid FROM b FULL JOIN a ON a.id = b.aid`,
			[][]any{{int64(1), int64(1)}, {nil, int64(2)}, {int64(2), nil}}},
		{`SELECT bid FROM a RIGHT JOIN b ON id = aid WHERE a.id IS NULL`,
			[][]any{{int64(2)}}},
		{`SELECT x, bid FROM empty RIGHT JOIN b ON x = aid`,
			[][]any{{nil, int64(1)}, {nil, int64(2)}}},
		{`SELECT x, bid FROM empty FULL JOIN b ON x = aid`,
			[][]any{{nil, int64(1)}, {nil, int64(2)}}},
		{`SELECT bid, x FROM b FULL JOIN empty ON x = aid`,
			[][]any{{int64(1), nil}, {int64(2), nil}}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, rows(exec(t, e, tc.sql)), tc.sql)
	}

	res := exec(t, e, `SELECT COUNT(*), COUNT(a.id), COUNT(bid) FROM a FULL JOIN b ON id = aid`)
	assert.Equal(t, [][]any{{int64(3), int64(2), int64(2)}}, rows(res))
}

func TestIndexLookups(t *testing.T) {
	e := newExecutor()
	exec(t, e, `CREATE TABLE n (id INTEGER PRIMARY KEY, v INTEGER)`)
	var values []string
	for i := 1; i <= 20; i++ {
		values = append(values, fmt.Sprintf("(%d, %d)", i, i%5))
	}
	exec(t, e, `INSERT INTO n VALUES `+strings.Join(values, ", "))

	queries := map[string][]any{
		`SELECT id FROM n WHERE v = 3`:                             ids(3, 8, 13, 18),
		`SELECT id FROM n WHERE 3 = v AND id > 10`:                 ids(13, 18),
		`SELECT id FROM n WHERE id BETWEEN 5 AND 8`:                ids(5, 6, 7, 8),
		`SELECT id FROM n WHERE id > 17`:                           ids(18, 19, 20),
		`SELECT id FROM n WHERE 18 < id`:                           ids(19, 20),
		`SELECT id FROM n WHERE id >= 3 AND id < 5 AND v = 4`:      ids(4),
		`SELECT id FROM n WHERE id > 2.5 AND id < 4.5`:             ids(3, 4),
		`SELECT id FROM n WHERE id = 3 AND id = 4`:                 {},
		`SELECT id FROM n WHERE id IN (7, 2, 30)`:                  ids(2, 7),
		`SELECT id FROM n WHERE v < 1 OR id = 1`:                   ids(1, 5, 10, 15, 20),
		`SELECT id FROM n WHERE id > 15 AND id >= 17 AND id <= 19`: ids(17, 18, 19),
	}
	check := func() {
		for sql, want := range queries {
			assert.Equal(t, want, column(t, e, sql), sql)
		}
	}
	check()
	exec(t, e, `CREATE INDEX idx_v ON n (v)`)
	check()
}

func TestUpdate(t *testing.T) {
	e := newExecutor()
	exec(t, e, `
		CREATE TABLE u (id INTEGER PRIMARY KEY, email VARCHAR UNIQUE, n INTEGER NOT NULL);
		INSERT INTO u VALUES (1, 'a', 1), (2, 'b', 2), (3, 'c', 3);
	`)

	res := exec(t, e, `UPDATE u SET n = n * 10 WHERE id >= 2`)
	assert.Equal(t, int64(2), res.RowsAffected)
	assert.Equal(t, "Updated 2 row(s)", res.Message)
	assert.Equal(t, ids(1, 20, 30), column(t, e, `SELECT n FROM u ORDER BY id`))

	// rows may trade primary keys within one statement
	exec(t, e, `UPDATE u SET id = 4 - id WHERE id != 2`)
	res = exec(t, e, `SELECT id, email FROM u ORDER BY id`)
	assert.Equal(t, [][]any{{int64(1), "c"}, {int64(2), "b"}, {int64(3), "a"}}, rows(res))

	before := rows(exec(t, e, `SELECT * FROM u`))
	for sql, kind := range map[string]error{
		`UPDATE u SET email = 'b' WHERE id = 1`: sqlerr.ErrConstraint,
		`UPDATE u SET n = NULL WHERE id = 1`:    sqlerr.ErrConstraint,
		`UPDATE u SET id = 5`:                   sqlerr.ErrConstraint,
		`UPDATE u SET n = 'x'`:                  sqlerr.ErrType,
		`UPDATE u SET nope = 1`:                 sqlerr.ErrSchema,
		`UPDATE u SET n = 1, n = 2`:             sqlerr.ErrSchema,
	} {
		require.ErrorIs(t, execErr(t, e, sql), kind, sql)
		assert.Equal(t, before, rows(exec(t, e, `SELECT * FROM u`)), "unchanged after %s", sql)
	}

	res = exec(t, e, `UPDATE u SET n = 0 WHERE id = 99`)
	assert.Equal(t, int64(0), res.RowsAffected)
	assert.False(t, res.Mutated())
}

func TestDeleteAndForeignKeys(t *testing.T) {
	e := newExecutor()
	seedShop(t, e)

	err := execErr(t, e, `DELETE FROM customers WHERE id = 1`)
	require.ErrorIs(t, err, sqlerr.ErrConstraint)
	assert.Contains(t, err.Error(), "still referenced by orders.customer_id")

	res := exec(t, e, `DELETE FROM customers WHERE id = 3`)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Equal(t, "Deleted 1 row(s)", res.Message)

	err = execErr(t, e, `INSERT INTO orders VALUES (13, 99, 1.0)`)
	require.ErrorIs(t, err, sqlerr.ErrConstraint)
	assert.Contains(t, err.Error(), "FOREIGN KEY constraint violated")

	require.ErrorIs(t, execErr(t, e, `UPDATE customers SET id = 20 WHERE id = 2`), sqlerr.ErrConstraint)
	require.ErrorIs(t, execErr(t, e, `UPDATE orders SET customer_id = 3 WHERE id = 12`), sqlerr.ErrConstraint)
	exec(t, e, `UPDATE orders SET customer_id = 1 WHERE id = 12`)
	exec(t, e, `UPDATE customers SET id = 20 WHERE id = 2`)

	require.ErrorIs(t, execErr(t, e, `DROP TABLE customers`), sqlerr.ErrSchema)

	res = exec(t, e, `DELETE FROM orders WHERE customer_id = 1`)
	assert.Equal(t, int64(3), res.RowsAffected)
	exec(t, e, `DELETE FROM customers WHERE id = 1`)
	assert.Equal(t, ids(20), column(t, e, `SELECT id FROM customers`))

	res = exec(t, e, `DROP TABLE orders`)
	assert.Equal(t, []string{"orders"}, res.Dropped)
	exec(t, e, `DROP TABLE customers`)
	assert.Empty(t, e.Tables())
}

func TestSelfReference(t *testing.T) {
	e := newExecutor()
	exec(t, e, `CREATE TABLE emp (id INTEGER PRIMARY KEY, boss INTEGER, FOREIGN KEY (boss) REFERENCES emp(id))`)

	// a row may reference a row inserted later in the same statement
	exec(t, e, `INSERT INTO emp VALUES (2, 1), (1, NULL)`)
	require.ErrorIs(t, execErr(t, e, `DELETE FROM emp WHERE id = 1`), sqlerr.ErrConstraint)

	res := exec(t, e, `DELETE FROM emp`)
	assert.Equal(t, int64(2), res.RowsAffected)
}

func TestDDL(t *testing.T) {
	e := newExecutor()
	exec(t, e, `CREATE TABLE t (id INTEGER PRIMARY KEY, v INTEGER)`)

	res := exec(t, e, `CREATE TABLE IF NOT EXISTS t (x INTEGER)`)
	assert.False(t, res.Mutated())
	require.ErrorIs(t, execErr(t, e, `CREATE TABLE t (x INTEGER)`), sqlerr.ErrSchema)

	res = exec(t, e, `DROP TABLE IF EXISTS missing`)
	assert.False(t, res.Mutated())
	require.ErrorIs(t, execErr(t, e, `DROP TABLE missing`), sqlerr.ErrSchema)

	exec(t, e, `INSERT INTO t VALUES (1, 5), (2, 5)`)
	res = exec(t, e, `CREATE INDEX idx_v ON t (v)`)
	assert.Equal(t, "Index 'idx_v' created on 't'", res.Message)
	require.ErrorIs(t, execErr(t, e, `CREATE INDEX idx_v ON t (id)`), sqlerr.ErrSchema)
	require.ErrorIs(t, execErr(t, e, `DROP INDEX t_pkey`), sqlerr.ErrSchema)
	exec(t, e, `DROP INDEX idx_v ON t`)
	require.ErrorIs(t, execErr(t, e, `DROP INDEX idx_v`), sqlerr.ErrSchema)

	require.ErrorIs(t, execErr(t, e, `CREATE UNIQUE INDEX uq_v ON t (v)`), sqlerr.ErrConstraint)
	require.ErrorIs(t, execErr(t, e, `CREATE INDEX idx_x ON t (nope)`), sqlerr.ErrSchema)
	require.ErrorIs(t, execErr(t, e, `CREATE TABLE bad (id INTEGER REFERENCES nowhere(id))`), sqlerr.ErrSchema)
	require.ErrorIs(t, execErr(t, e, `CREATE TABLE bad (id INTEGER, v INTEGER REFERENCES t(v))`), sqlerr.ErrSchema)

	exec(t, e, `DROP TABLE t`)
	require.ErrorIs(t, execErr(t, e, `SELECT * FROM t`), sqlerr.ErrSchema)
}

func TestInsertDefaultsAndAutoIncrement(t *testing.T) {
	e := newExecutor()
	exec(t, e, `CREATE TABLE a (id INTEGER AUTO_INCREMENT, v VARCHAR, status VARCHAR DEFAULT 'new')`)

	exec(t, e, `INSERT INTO a (v) VALUES ('x')`)
	exec(t, e, `INSERT INTO a VALUES (10, 'y', 'old')`)
	res := exec(t, e, `INSERT INTO a (v) VALUES ('z'), ('w')`)
	assert.Len(t, res.RowIDs, 2)

	res = exec(t, e, `SELECT id, v, status FROM a`)
	assert.Equal(t, [][]any{
		{int64(1), "x", "new"},
		{int64(10), "y", "old"},
		{int64(11), "z", "new"},
		{int64(12), "w", "new"},
	}, rows(res))

	require.ErrorIs(t, execErr(t, e, `INSERT INTO a (v, v) VALUES ('a', 'b')`), sqlerr.ErrSchema)
	require.ErrorIs(t, execErr(t, e, `INSERT INTO a (v) VALUES ('a', 'b')`), sqlerr.ErrSchema)
	require.ErrorIs(t, execErr(t, e, `INSERT INTO a (id) VALUES (10)`), sqlerr.ErrConstraint)

	// a multi-row insert is all or nothing
	require.ErrorIs(t, execErr(t, e, `INSERT INTO a (id, v) VALUES (20, 'ok'), (20, 'dup')`), sqlerr.ErrConstraint)
	assert.Equal(t, ids(1, 10, 11, 12), column(t, e, `SELECT id FROM a`))
}

func TestExpressions(t *testing.T) {
	e := newExecutor()

	res := exec(t, e, `SELECT 1 + 1`)
	assert.Equal(t, []string{"1 + 1"}, res.Columns)
	assert.Equal(t, [][]any{{int64(2)}}, rows(res))

	res = exec(t, e, `SELECT 7 / 2, 7 % 3, 1 / 0, -5 * 2, NULL + 1, 2.5 * 2`)
	assert.Equal(t, [][]any{{3.5, int64(1), nil, int64(-10), nil, 5.0}}, rows(res))

	res = exec(t, e, `SELECT UPPER('abc') AS u, LOWER('MiXeD') AS l, LENGTH('héllo') AS n, ABS(-3) AS a, COALESCE(NULL, 'x') AS c`)
	assert.Equal(t, [][]any{{"ABC", "mixed", int64(5), int64(3), "x"}}, rows(res))

	res = exec(t, e, `SELECT 'Hello' LIKE 'h%O' AS a, 'abc' LIKE 'a_c' AS b, 'abc' LIKE 'a%d' AS c, 'abc' NOT LIKE 'x%' AS d`)
	assert.Equal(t, [][]any{{true, true, false, true}}, rows(res))

	res = exec(t, e, `SELECT 3 IN (1, 2, 3) AS a, 5 BETWEEN 1 AND 4 AS b, 5 NOT BETWEEN 1 AND 4 AS c, NULL IS NULL AS d`)
	assert.Equal(t, [][]any{{true, false, true, true}}, rows(res))

	assert.Empty(t, exec(t, e, `SELECT 1 WHERE 1 = 0`).Rows)

	require.ErrorIs(t, execErr(t, e, `SELECT 'a' + 1`), sqlerr.ErrType)
	require.ErrorIs(t, execErr(t, e, `SELECT NOPE(1)`), sqlerr.ErrSchema)
	require.ErrorIs(t, execErr(t, e, `SELECT *`), sqlerr.ErrSchema)
	require.ErrorIs(t, execErr(t, e, `SELECT x`), sqlerr.ErrSchema)
}

func TestTypeErrors(t *testing.T) {
	e := newExecutor()
	exec(t, e, `
		CREATE TABLE t (id INTEGER PRIMARY KEY, day DATE);
		INSERT INTO t VALUES (1, '2024-03-01'), (2, '2024-01-15');
	`)

	require.ErrorIs(t, execErr(t, e, `INSERT INTO t VALUES ('abc', NULL)`), sqlerr.ErrType)
	require.ErrorIs(t, execErr(t, e, `INSERT INTO t VALUES (3, '2024-13-45')`), sqlerr.ErrType)
	require.ErrorIs(t, execErr(t, e, `SELECT * FROM t WHERE id = 'abc'`), sqlerr.ErrType)
	require.ErrorIs(t, execErr(t, e, `SELECT COUNT(*) FROM t WHERE COUNT(*) > 1`), sqlerr.ErrSchema)

	assert.Equal(t, ids(1), column(t, e, `SELECT id FROM t WHERE day > '2024-02-01'`))
	assert.Equal(t, ids(2, 1), column(t, e, `SELECT id FROM t ORDER BY day`))
	assert.Equal(t, []any{"2024-01-15"}, column(t, e, `SELECT MIN(day) FROM t`))
}
