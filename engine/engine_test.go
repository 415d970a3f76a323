package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjrajchauhan/pivot-engine/catalog"
	"github.com/vjrajchauhan/pivot-engine/engine"
	"github.com/vjrajchauhan/pivot-engine/storage"
)

func mustExec(t *testing.T, e *engine.Engine, sql string) *engine.QueryResult {
	t.Helper()
	res, err := e.Execute(sql)
	require.NoError(t, err, "sql: %s", sql)
	return res
}

func mustScript(t *testing.T, e *engine.Engine, sql string) *engine.QueryResult {
	t.Helper()
	res, err := e.ExecuteScript(sql)
	require.NoError(t, err, "sql: %s", sql)
	return res
}

// rows renders a result to text for comparison; NULL renders as "NULL".
func rows(res *engine.QueryResult) [][]string {
	out := make([][]string, len(res.Rows))
	for i, row := range res.Rows {
		line := make([]string, len(row))
		for j, v := range row {
			line[j] = v.Text()
		}
		out[i] = line
	}
	return out
}

func TestSelectNoFrom(t *testing.T) {
	e := engine.New()
	res := mustExec(t, e, "SELECT 1 + 2, 'hi' || '!', 10 / 4, 10.0 / 4")
	assert.Equal(t, [][]string{{"3", "hi!", "2", "2.5"}}, rows(res))
}

func TestThreeValuedLogic(t *testing.T) {
	e := engine.New()

	res := mustExec(t, e, "SELECT 1 WHERE NULL = NULL")
	assert.Equal(t, 0, res.RowCount())

	res = mustExec(t, e, "SELECT 1 WHERE NULL IS NOT DISTINCT FROM NULL")
	assert.Equal(t, 1, res.RowCount())

	res = mustExec(t, e, "SELECT 1 WHERE 1 IN (2, NULL)")
	assert.Equal(t, 0, res.RowCount())

	res = mustExec(t, e, "SELECT 1 WHERE 1 NOT IN (2, NULL)")
	assert.Equal(t, 0, res.RowCount())

	res = mustExec(t, e, "SELECT 1 WHERE 1 IN (1, NULL)")
	assert.Equal(t, 1, res.RowCount())

	// NOT binds looser than IS, so this is NOT (NULL IS NULL)
	res = mustExec(t, e, "SELECT NOT NULL IS NULL, NULL IS NULL, 1 IS NOT NULL")
	assert.Equal(t, [][]string{{"false", "true", "true"}}, rows(res))

	res = mustExec(t, e, "SELECT 1/0, 1 WHERE NOT (NULL > 1) IS NOT NULL OR TRUE")
	assert.Equal(t, "NULL", rows(res)[0][0])
}

func TestArithmeticOverflowPromotes(t *testing.T) {
	e := engine.New()
	res := mustExec(t, e, "SELECT 9223372036854775807 + 1")
	v := res.Get(0, 0)
	assert.Equal(t, 9.223372036854776e18, v.Float())
}

func setupEmp(t *testing.T, e *engine.Engine) {
	mustScript(t, e, `
		CREATE TABLE emp (name VARCHAR, dept VARCHAR, sal INTEGER);
		INSERT INTO emp VALUES ('A', 'X', 100), ('B', 'X', 90), ('C', 'Y', 80);
	`)
}

func TestWhereAndProjection(t *testing.T) {
	e := engine.New()
	setupEmp(t, e)

	res := mustExec(t, e, "SELECT name, sal * 2 AS double_sal FROM emp WHERE sal >= 90 ORDER BY name")
	assert.Equal(t, []string{"name", "double_sal"}, res.Columns)
	assert.Equal(t, [][]string{{"A", "200"}, {"B", "180"}}, rows(res))

	res = mustExec(t, e, "SELECT * FROM emp WHERE dept = 'Y'")
	assert.Equal(t, [][]string{{"C", "Y", "80"}}, rows(res))
}

func TestAggregates(t *testing.T) {
	e := engine.New()
	setupEmp(t, e)

	res := mustExec(t, e, "SELECT COUNT(*), SUM(sal), AVG(sal), MIN(sal), MAX(sal) FROM emp")
	assert.Equal(t, [][]string{{"3", "270", "90", "80", "100"}}, rows(res))

	res = mustExec(t, e, "SELECT dept, COUNT(*), SUM(sal) FROM emp GROUP BY dept ORDER BY dept")
	assert.Equal(t, [][]string{{"X", "2", "190"}, {"Y", "1", "80"}}, rows(res))

	res = mustExec(t, e, "SELECT dept FROM emp GROUP BY dept HAVING SUM(sal) > 100")
	assert.Equal(t, [][]string{{"X"}}, rows(res))

	// Aggregates over an empty relation: one implicit group
	mustExec(t, e, "CREATE TABLE empty_t (x INTEGER)")
	res = mustExec(t, e, "SELECT COUNT(*), SUM(x) FROM empty_t")
	assert.Equal(t, [][]string{{"0", "NULL"}}, rows(res))

	// Aggregate outside a group context is a plan error
	_, err := e.Execute("SELECT name FROM emp WHERE SUM(sal) > 10")
	var planErr *engine.PlanError
	require.ErrorAs(t, err, &planErr)
}

func TestCountDistinctAndStats(t *testing.T) {
	e := engine.New()
	mustScript(t, e, `
		CREATE TABLE nums (x INTEGER, grp VARCHAR);
		INSERT INTO nums VALUES (1, 'a'), (2, 'a'), (2, 'a'), (NULL, 'a'), (4, 'b');
	`)

	res := mustExec(t, e, "SELECT COUNT(x), COUNT(DISTINCT x), COUNT(*) FROM nums")
	assert.Equal(t, [][]string{{"4", "3", "5"}}, rows(res))

	res = mustExec(t, e, "SELECT MEDIAN(x), MODE(x) FROM nums")
	assert.Equal(t, [][]string{{"2", "2"}}, rows(res))

	res = mustExec(t, e, "SELECT STDDEV_POP(x) FROM nums WHERE grp = 'a'")
	require.Equal(t, 1, res.RowCount())
	assert.InDelta(t, 0.4714045207910317, res.Get(0, 0).Float(), 1e-12)

	res = mustExec(t, e, "SELECT STRING_AGG(grp, '-') FROM nums")
	assert.Equal(t, "a-a-a-a-b", res.Get(0, 0).Str())
}

func TestRollup(t *testing.T) {
	e := engine.New()
	mustScript(t, e, `
		CREATE TABLE sales (region VARCHAR, amt INTEGER);
		INSERT INTO sales VALUES ('N', 10), ('N', 20), ('S', 30);
	`)

	res := mustExec(t, e, "SELECT region, SUM(amt) FROM sales GROUP BY ROLLUP(region) ORDER BY region NULLS LAST")
	assert.Equal(t, [][]string{{"N", "30"}, {"S", "30"}, {"NULL", "60"}}, rows(res))
}

func TestCubeAndGroupingSets(t *testing.T) {
	e := engine.New()
	mustScript(t, e, `
		CREATE TABLE s (a VARCHAR, b VARCHAR, v INTEGER);
		INSERT INTO s VALUES ('a1', 'b1', 1), ('a1', 'b2', 2), ('a2', 'b1', 4);
	`)

	res := mustExec(t, e, "SELECT a, b, SUM(v) FROM s GROUP BY CUBE(a, b)")
	// (a,b), (a), (b), () in that order
	assert.Equal(t, [][]string{
		{"a1", "b1", "1"},
		{"a1", "b2", "2"},
		{"a2", "b1", "4"},
		{"a1", "NULL", "3"},
		{"a2", "NULL", "4"},
		{"NULL", "b1", "5"},
		{"NULL", "b2", "2"},
		{"NULL", "NULL", "7"},
	}, rows(res))

	res = mustExec(t, e, "SELECT a, SUM(v) FROM s GROUP BY GROUPING SETS((a), ())")
	assert.Equal(t, [][]string{
		{"a1", "3"},
		{"a2", "4"},
		{"NULL", "7"},
	}, rows(res))
}

func TestJoins(t *testing.T) {
	e := engine.New()
	mustScript(t, e, `
		CREATE TABLE u (id INTEGER, name VARCHAR);
		CREATE TABLE o (uid INTEGER, total INTEGER);
		INSERT INTO u VALUES (1, 'ann'), (2, 'bob'), (3, 'cat');
		INSERT INTO o VALUES (1, 10), (1, 20), (3, 30), (9, 99);
	`)

	// Equi-join takes the hash path; the result is the same either way
	res := mustExec(t, e, "SELECT name, total FROM u JOIN o ON u.id = o.uid ORDER BY name, total")
	assert.Equal(t, [][]string{{"ann", "10"}, {"ann", "20"}, {"cat", "30"}}, rows(res))

	res = mustExec(t, e, "SELECT name, total FROM u LEFT JOIN o ON u.id = o.uid ORDER BY name, total NULLS LAST")
	assert.Equal(t, [][]string{{"ann", "10"}, {"ann", "20"}, {"bob", "NULL"}, {"cat", "30"}}, rows(res))

	res = mustExec(t, e, "SELECT name, total FROM u RIGHT JOIN o ON u.id = o.uid ORDER BY total")
	assert.Equal(t, [][]string{{"ann", "10"}, {"ann", "20"}, {"cat", "30"}, {"NULL", "99"}}, rows(res))

	res = mustExec(t, e, "SELECT name, total FROM u FULL JOIN o ON u.id = o.uid ORDER BY total NULLS LAST")
	assert.Equal(t, [][]string{{"ann", "10"}, {"ann", "20"}, {"cat", "30"}, {"NULL", "99"}, {"bob", "NULL"}}, rows(res))

	// Non-equi predicates run on the nested-loop path
	res = mustExec(t, e, "SELECT name, total FROM u JOIN o ON u.id < o.uid AND o.total > 50")
	assert.Equal(t, [][]string{{"ann", "99"}, {"bob", "99"}, {"cat", "99"}}, rows(res))

	res = mustExec(t, e, "SELECT COUNT(*) FROM u CROSS JOIN o")
	assert.Equal(t, "12", rows(res)[0][0])
}

func TestNaturalAndUsingJoins(t *testing.T) {
	e := engine.New()
	mustScript(t, e, `
		CREATE TABLE a (id INTEGER, x VARCHAR);
		CREATE TABLE b (id INTEGER, y VARCHAR);
		INSERT INTO a VALUES (1, 'x1'), (2, 'x2');
		INSERT INTO b VALUES (2, 'y2'), (3, 'y3');
	`)

	// The join key appears once in the output schema
	res := mustExec(t, e, "SELECT * FROM a NATURAL JOIN b")
	assert.Equal(t, []string{"id", "x", "y"}, res.Columns)
	assert.Equal(t, [][]string{{"2", "x2", "y2"}}, rows(res))

	res = mustExec(t, e, "SELECT * FROM a FULL JOIN b USING (id) ORDER BY id")
	assert.Equal(t, [][]string{{"1", "x1", "NULL"}, {"2", "x2", "y2"}, {"3", "NULL", "y3"}}, rows(res))
}

func TestSubqueries(t *testing.T) {
	e := engine.New()
	setupEmp(t, e)

	// Correlated scalar subquery
	res := mustExec(t, e, `SELECT name FROM emp e
		WHERE sal = (SELECT MAX(sal) FROM emp WHERE dept = e.dept) ORDER BY name`)
	assert.Equal(t, [][]string{{"A"}, {"C"}}, rows(res))

	// EXISTS
	res = mustExec(t, e, `SELECT name FROM emp e
		WHERE EXISTS (SELECT 1 FROM emp other WHERE other.dept = e.dept AND other.sal > e.sal) ORDER BY name`)
	assert.Equal(t, [][]string{{"B"}}, rows(res))

	// IN subquery
	res = mustExec(t, e, "SELECT name FROM emp WHERE dept IN (SELECT dept FROM emp WHERE sal > 90)")
	assert.Equal(t, [][]string{{"A"}, {"B"}}, rows(res))

	// Derived table
	res = mustExec(t, e, "SELECT d, total FROM (SELECT dept AS d, SUM(sal) AS total FROM emp GROUP BY dept) sub ORDER BY d")
	assert.Equal(t, [][]string{{"X", "190"}, {"Y", "80"}}, rows(res))
}

func TestDistinctAndSetOps(t *testing.T) {
	e := engine.New()
	mustScript(t, e, `
		CREATE TABLE t1 (x INTEGER);
		CREATE TABLE t2 (x INTEGER);
		INSERT INTO t1 VALUES (1), (2), (2), (NULL), (NULL);
		INSERT INTO t2 VALUES (2), (3), (NULL);
	`)

	// DISTINCT treats NULL as equal to NULL
	res := mustExec(t, e, "SELECT DISTINCT x FROM t1 ORDER BY x NULLS LAST")
	assert.Equal(t, [][]string{{"1"}, {"2"}, {"NULL"}}, rows(res))

	res = mustExec(t, e, "SELECT x FROM t1 UNION SELECT x FROM t2 ORDER BY x NULLS LAST")
	assert.Equal(t, [][]string{{"1"}, {"2"}, {"3"}, {"NULL"}}, rows(res))

	res = mustExec(t, e, "SELECT x FROM t1 UNION ALL SELECT x FROM t2")
	assert.Equal(t, 8, res.RowCount())

	res = mustExec(t, e, "SELECT x FROM t1 INTERSECT SELECT x FROM t2 ORDER BY x NULLS LAST")
	assert.Equal(t, [][]string{{"2"}, {"NULL"}}, rows(res))

	res = mustExec(t, e, "SELECT x FROM t1 EXCEPT SELECT x FROM t2")
	assert.Equal(t, [][]string{{"1"}}, rows(res))

	// INTERSECT binds tighter than UNION
	res = mustExec(t, e, "SELECT 1 UNION SELECT 2 INTERSECT SELECT 3")
	assert.Equal(t, [][]string{{"1"}}, rows(res))

	// Column types unify through the lattice
	res = mustExec(t, e, "SELECT 1 UNION ALL SELECT 2.5 ORDER BY 1")
	assert.Equal(t, [][]string{{"1"}, {"2.5"}}, rows(res))
}

func TestOrderByLimitOffset(t *testing.T) {
	e := engine.New()
	setupEmp(t, e)

	res := mustExec(t, e, "SELECT name FROM emp ORDER BY sal DESC")
	assert.Equal(t, [][]string{{"A"}, {"B"}, {"C"}}, rows(res))

	res = mustExec(t, e, "SELECT name, sal FROM emp ORDER BY 2")
	assert.Equal(t, [][]string{{"C", "80"}, {"B", "90"}, {"A", "100"}}, rows(res))

	res = mustExec(t, e, "SELECT name FROM emp ORDER BY sal LIMIT 1 OFFSET 1")
	assert.Equal(t, [][]string{{"B"}}, rows(res))

	res = mustExec(t, e, "SELECT name FROM emp ORDER BY sal OFFSET 2")
	assert.Equal(t, [][]string{{"A"}}, rows(res))

	// Default NULL placement: last for ASC, first for DESC
	mustScript(t, e, "CREATE TABLE n (x INTEGER); INSERT INTO n VALUES (2), (NULL), (1);")
	res = mustExec(t, e, "SELECT x FROM n ORDER BY x")
	assert.Equal(t, [][]string{{"1"}, {"2"}, {"NULL"}}, rows(res))
	res = mustExec(t, e, "SELECT x FROM n ORDER BY x DESC")
	assert.Equal(t, [][]string{{"NULL"}, {"2"}, {"1"}}, rows(res))
	res = mustExec(t, e, "SELECT x FROM n ORDER BY x DESC NULLS LAST")
	assert.Equal(t, [][]string{{"2"}, {"1"}, {"NULL"}}, rows(res))
}

func TestWindowFunctions(t *testing.T) {
	e := engine.New()
	mustScript(t, e, `
		CREATE TABLE w (grp VARCHAR, x INTEGER);
		INSERT INTO w VALUES ('a', 10), ('a', 20), ('a', 20), ('a', 30), ('b', 5);
	`)

	res := mustExec(t, e, `SELECT x,
		ROW_NUMBER() OVER (PARTITION BY grp ORDER BY x),
		RANK() OVER (PARTITION BY grp ORDER BY x),
		DENSE_RANK() OVER (PARTITION BY grp ORDER BY x)
		FROM w WHERE grp = 'a' ORDER BY x, 2`)
	assert.Equal(t, [][]string{
		{"10", "1", "1", "1"},
		{"20", "2", "2", "2"},
		{"20", "3", "2", "2"},
		{"30", "4", "4", "3"},
	}, rows(res))

	// Running sum: default frame with ORDER BY is start..current row
	res = mustExec(t, e, "SELECT SUM(x) OVER (PARTITION BY grp ORDER BY x) FROM w WHERE grp = 'a' ORDER BY 1")
	assert.Equal(t, [][]string{{"10"}, {"30"}, {"50"}, {"80"}}, rows(res))

	// Without ORDER BY the frame is the whole partition
	res = mustExec(t, e, "SELECT DISTINCT SUM(x) OVER (PARTITION BY grp) FROM w ORDER BY 1")
	assert.Equal(t, [][]string{{"5"}, {"80"}}, rows(res))

	// Explicit ROWS frame: at row i the frame has min(n+1, i+1) rows
	res = mustExec(t, e, `SELECT COUNT(*) OVER (ORDER BY x ROWS BETWEEN 1 PRECEDING AND CURRENT ROW)
		FROM w WHERE grp = 'a' ORDER BY x`)
	assert.Equal(t, [][]string{{"1"}, {"2"}, {"2"}, {"2"}}, rows(res))

	// LAG / LEAD with defaults
	res = mustExec(t, e, "SELECT x, LAG(x) OVER (ORDER BY x), LEAD(x, 1, -1) OVER (ORDER BY x) FROM w WHERE grp = 'a' ORDER BY x, 2 NULLS FIRST")
	assert.Equal(t, [][]string{
		{"10", "NULL", "20"},
		{"20", "10", "20"},
		{"20", "20", "30"},
		{"30", "20", "-1"},
	}, rows(res))

	// LAST_VALUE over the default running frame returns the current row
	res = mustExec(t, e, "SELECT LAST_VALUE(x) OVER (ORDER BY x) FROM w WHERE grp = 'a' ORDER BY 1")
	assert.Equal(t, [][]string{{"10"}, {"20"}, {"20"}, {"30"}}, rows(res))

	// ... unless the frame is widened explicitly
	res = mustExec(t, e, `SELECT DISTINCT LAST_VALUE(x) OVER (ORDER BY x ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING)
		FROM w WHERE grp = 'a'`)
	assert.Equal(t, [][]string{{"30"}}, rows(res))

	// NTILE splits with larger buckets first
	res = mustExec(t, e, "SELECT NTILE(3) OVER (ORDER BY x) FROM w WHERE grp = 'a' ORDER BY x")
	assert.Equal(t, [][]string{{"1"}, {"1"}, {"2"}, {"3"}}, rows(res))

	// RANGE with offsets is unsupported
	_, err := e.Execute("SELECT SUM(x) OVER (ORDER BY x RANGE BETWEEN 1 PRECEDING AND CURRENT ROW) FROM w")
	var planErr *engine.PlanError
	require.ErrorAs(t, err, &planErr)
}

func TestQualify(t *testing.T) {
	e := engine.New()
	setupEmp(t, e)

	res := mustExec(t, e, `SELECT name FROM emp
		QUALIFY ROW_NUMBER() OVER (PARTITION BY dept ORDER BY sal DESC) = 1 ORDER BY name`)
	assert.Equal(t, [][]string{{"A"}, {"C"}}, rows(res))
}

func TestRecursiveCTE(t *testing.T) {
	e := engine.New()

	res := mustExec(t, e, `WITH RECURSIVE nums(n) AS (
		SELECT 1 UNION ALL SELECT n + 1 FROM nums WHERE n < 5
	) SELECT SUM(n) FROM nums`)
	assert.Equal(t, [][]string{{"15"}}, rows(res))

	// UNION (not ALL) deduplicates against the full result
	res = mustExec(t, e, `WITH RECURSIVE r(n) AS (
		SELECT 1 UNION SELECT (n % 3) + 1 FROM r
	) SELECT COUNT(*) FROM r`)
	assert.Equal(t, [][]string{{"3"}}, rows(res))

	// The iteration cap turns runaway recursion into an error
	_, err := e.Execute(`WITH RECURSIVE r(n) AS (
		SELECT 1 UNION ALL SELECT n + 1 FROM r
	) SELECT COUNT(*) FROM r`)
	var runtimeErr *engine.RuntimeError
	require.ErrorAs(t, err, &runtimeErr)
}

func TestNonRecursiveCTE(t *testing.T) {
	e := engine.New()
	setupEmp(t, e)

	res := mustExec(t, e, `WITH dept_tot(d, total) AS (
		SELECT dept, SUM(sal) FROM emp GROUP BY dept
	) SELECT d FROM dept_tot WHERE total > 100`)
	assert.Equal(t, [][]string{{"X"}}, rows(res))

	// A CTE can reference an earlier CTE
	res = mustExec(t, e, `WITH a(x) AS (SELECT 1), b(y) AS (SELECT x + 1 FROM a)
		SELECT y FROM b`)
	assert.Equal(t, [][]string{{"2"}}, rows(res))
}

func TestPivotUnpivot(t *testing.T) {
	e := engine.New()
	mustScript(t, e, `
		CREATE TABLE t (d VARCHAR, q VARCHAR, v INTEGER);
		INSERT INTO t VALUES ('X', 'Q1', 1), ('X', 'Q2', 2), ('Y', 'Q1', 3);
	`)

	res := mustExec(t, e, "SELECT * FROM t PIVOT (SUM(v) FOR q IN ('Q1', 'Q2')) ORDER BY d")
	assert.Equal(t, []string{"d", "Q1", "Q2"}, res.Columns)
	assert.Equal(t, [][]string{{"X", "1", "2"}, {"Y", "3", "NULL"}}, rows(res))

	mustScript(t, e, `
		CREATE TABLE wide (name VARCHAR, q1 INTEGER, q2 INTEGER);
		INSERT INTO wide VALUES ('X', 1, 2), ('Y', 3, NULL);
	`)
	res = mustExec(t, e, "SELECT * FROM wide UNPIVOT (v FOR quarter IN (q1, q2)) ORDER BY name, quarter")
	assert.Equal(t, []string{"name", "quarter", "v"}, res.Columns)
	// NULL source values are dropped
	assert.Equal(t, [][]string{{"X", "q1", "1"}, {"X", "q2", "2"}, {"Y", "q1", "3"}}, rows(res))
}

func TestDML(t *testing.T) {
	e := engine.New()
	mustExec(t, e, "CREATE TABLE t (id INTEGER PRIMARY KEY, v VARCHAR, n INTEGER DEFAULT 7)")

	res := mustExec(t, e, "INSERT INTO t (id, v) VALUES (1, 'a'), (2, 'b')")
	assert.Equal(t, "INSERT 2", res.Status)

	// Defaults fill unspecified columns
	res = mustExec(t, e, "SELECT n FROM t WHERE id = 1")
	assert.Equal(t, [][]string{{"7"}}, rows(res))

	res = mustExec(t, e, "UPDATE t SET v = v || '!', n = n + 1 WHERE id = 2")
	assert.Equal(t, "UPDATE 1", res.Status)
	res = mustExec(t, e, "SELECT v, n FROM t WHERE id = 2")
	assert.Equal(t, [][]string{{"b!", "8"}}, rows(res))

	res = mustExec(t, e, "DELETE FROM t WHERE id = 1")
	assert.Equal(t, "DELETE 1", res.Status)
	res = mustExec(t, e, "SELECT COUNT(*) FROM t")
	assert.Equal(t, [][]string{{"1"}}, rows(res))

	// INSERT ... SELECT
	mustExec(t, e, "CREATE TABLE t2 (id INTEGER, v VARCHAR, n INTEGER)")
	res = mustExec(t, e, "INSERT INTO t2 SELECT * FROM t")
	assert.Equal(t, "INSERT 1", res.Status)
}

func TestStatementAtomicity(t *testing.T) {
	e := engine.New()
	mustExec(t, e, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
	mustExec(t, e, "INSERT INTO t VALUES (1)")

	// The second row violates the key; the whole statement rolls back.
	_, err := e.Execute("INSERT INTO t VALUES (2), (1), (3)")
	var cv *storage.ConstraintViolation
	require.ErrorAs(t, err, &cv)

	res := mustExec(t, e, "SELECT COUNT(*) FROM t")
	assert.Equal(t, [][]string{{"1"}}, rows(res))

	// Failed CREATE TABLE AS leaves no trace
	_, err = e.Execute("CREATE TABLE broken AS SELECT missing_col FROM t")
	require.Error(t, err)
	_, err = e.Execute("SELECT * FROM broken")
	var catErr *catalog.Error
	require.ErrorAs(t, err, &catErr)
}

func TestTransactions(t *testing.T) {
	e := engine.New()
	mustExec(t, e, "CREATE TABLE t (id INTEGER)")

	mustScript(t, e, "BEGIN; INSERT INTO t VALUES (1); INSERT INTO t VALUES (2); ROLLBACK;")
	res := mustExec(t, e, "SELECT COUNT(*) FROM t")
	assert.Equal(t, [][]string{{"0"}}, rows(res))

	mustScript(t, e, "BEGIN; INSERT INTO t VALUES (1); COMMIT;")
	res = mustExec(t, e, "SELECT COUNT(*) FROM t")
	assert.Equal(t, [][]string{{"1"}}, rows(res))

	// DDL rolls back too
	mustScript(t, e, "BEGIN; CREATE TABLE tmp (x INTEGER); INSERT INTO tmp VALUES (9); ROLLBACK;")
	_, err := e.Execute("SELECT * FROM tmp")
	var catErr *catalog.Error
	require.ErrorAs(t, err, &catErr)

	mustScript(t, e, "BEGIN; DROP TABLE t; ROLLBACK;")
	res = mustExec(t, e, "SELECT COUNT(*) FROM t")
	assert.Equal(t, [][]string{{"1"}}, rows(res))

	// Transaction-control misuse
	var txnErr *engine.TxnError
	mustExec(t, e, "BEGIN")
	_, err = e.Execute("BEGIN")
	require.ErrorAs(t, err, &txnErr)
	mustExec(t, e, "ROLLBACK")
	_, err = e.Execute("COMMIT")
	require.ErrorAs(t, err, &txnErr)
	_, err = e.Execute("ROLLBACK")
	require.ErrorAs(t, err, &txnErr)
}

func TestSavepoints(t *testing.T) {
	e := engine.New()

	res := mustScript(t, e, `
		CREATE TABLE t (id INTEGER);
		BEGIN;
		INSERT INTO t VALUES (1);
		SAVEPOINT s;
		INSERT INTO t VALUES (2);
		ROLLBACK TO s;
		COMMIT;
		SELECT COUNT(*) FROM t;
	`)
	assert.Equal(t, [][]string{{"1"}}, rows(res))

	// The savepoint survives a rollback to it
	res = mustScript(t, e, `
		BEGIN;
		SAVEPOINT s;
		INSERT INTO t VALUES (2);
		ROLLBACK TO s;
		INSERT INTO t VALUES (3);
		ROLLBACK TO s;
		COMMIT;
		SELECT COUNT(*) FROM t;
	`)
	assert.Equal(t, [][]string{{"1"}}, rows(res))

	// RELEASE drops the marker without rolling back
	res = mustScript(t, e, `
		BEGIN;
		SAVEPOINT s;
		INSERT INTO t VALUES (4);
		RELEASE SAVEPOINT s;
		COMMIT;
		SELECT COUNT(*) FROM t;
	`)
	assert.Equal(t, [][]string{{"2"}}, rows(res))

	var txnErr *engine.TxnError
	mustExec(t, e, "BEGIN")
	_, err := e.Execute("ROLLBACK TO SAVEPOINT missing")
	require.ErrorAs(t, err, &txnErr)
	mustExec(t, e, "ROLLBACK")
}

func TestMerge(t *testing.T) {
	e := engine.New()
	mustScript(t, e, `
		CREATE TABLE tgt (id INTEGER, v INTEGER);
		CREATE TABLE src (id INTEGER, v INTEGER);
		INSERT INTO tgt VALUES (1, 10), (2, 20), (3, 30);
		INSERT INTO src VALUES (2, 200), (3, -1), (4, 400);
	`)

	res := mustExec(t, e, `MERGE INTO tgt t USING src s ON t.id = s.id
		WHEN MATCHED AND s.v < 0 THEN DELETE
		WHEN MATCHED THEN UPDATE SET v = s.v
		WHEN NOT MATCHED THEN INSERT (id, v) VALUES (s.id, s.v)`)
	assert.Equal(t, "MERGE 3", res.Status)

	got := mustExec(t, e, "SELECT id, v FROM tgt ORDER BY id")
	assert.Equal(t, [][]string{{"1", "10"}, {"2", "200"}, {"4", "400"}}, rows(got))

	// MERGE participates in rollback like any DML
	mustScript(t, e, "BEGIN; MERGE INTO tgt t USING src s ON t.id = s.id WHEN MATCHED THEN DELETE; ROLLBACK;")
	got = mustExec(t, e, "SELECT COUNT(*) FROM tgt")
	assert.Equal(t, [][]string{{"3"}}, rows(got))
}

func TestDDL(t *testing.T) {
	e := engine.New()
	mustExec(t, e, "CREATE TABLE t (a INTEGER, b VARCHAR)")
	mustExec(t, e, "INSERT INTO t VALUES (1, 'x')")

	// IF NOT EXISTS suppresses AlreadyExists
	mustExec(t, e, "CREATE TABLE IF NOT EXISTS t (a INTEGER)")
	var catErr *catalog.Error
	_, err := e.Execute("CREATE TABLE t (a INTEGER)")
	require.ErrorAs(t, err, &catErr)

	mustExec(t, e, "ALTER TABLE t ADD COLUMN c DOUBLE DEFAULT 1.5")
	res := mustExec(t, e, "SELECT c FROM t")
	assert.Equal(t, [][]string{{"1.5"}}, rows(res))

	mustExec(t, e, "ALTER TABLE t RENAME COLUMN b TO label")
	res = mustExec(t, e, "SELECT label FROM t")
	assert.Equal(t, [][]string{{"x"}}, rows(res))

	mustExec(t, e, "ALTER TABLE t DROP COLUMN c")
	_, err = e.Execute("SELECT c FROM t")
	require.Error(t, err)

	mustExec(t, e, "ALTER TABLE t RENAME TO u")
	res = mustExec(t, e, "SELECT label FROM u")
	assert.Equal(t, [][]string{{"x"}}, rows(res))

	// CREATE TABLE AS SELECT materializes the query
	mustExec(t, e, "CREATE TABLE copy AS SELECT a, label FROM u")
	res = mustExec(t, e, "SELECT * FROM copy")
	assert.Equal(t, [][]string{{"1", "x"}}, rows(res))

	mustExec(t, e, "DROP TABLE u, copy")
	mustExec(t, e, "DROP TABLE IF EXISTS u")
	_, err = e.Execute("DROP TABLE u")
	require.ErrorAs(t, err, &catErr)
}

func TestCheckConstraints(t *testing.T) {
	e := engine.New()
	mustExec(t, e, "CREATE TABLE t (a INTEGER CHECK (a > 0), b INTEGER, CHECK (b IS NULL OR b > a))")

	mustExec(t, e, "INSERT INTO t VALUES (1, 2)")
	mustExec(t, e, "INSERT INTO t VALUES (1, NULL)")

	var cv *storage.ConstraintViolation
	_, err := e.Execute("INSERT INTO t VALUES (0, 5)")
	require.ErrorAs(t, err, &cv)
	_, err = e.Execute("INSERT INTO t VALUES (5, 2)")
	require.ErrorAs(t, err, &cv)
	_, err = e.Execute("UPDATE t SET a = -1 WHERE a = 1")
	require.ErrorAs(t, err, &cv)
}

func TestViews(t *testing.T) {
	e := engine.New()
	setupEmp(t, e)

	mustExec(t, e, "CREATE VIEW highpaid AS SELECT name, sal FROM emp WHERE sal >= 90")
	res := mustExec(t, e, "SELECT name FROM highpaid ORDER BY name")
	assert.Equal(t, [][]string{{"A"}, {"B"}}, rows(res))

	// Views re-resolve on every use
	mustExec(t, e, "INSERT INTO emp VALUES ('D', 'Z', 95)")
	res = mustExec(t, e, "SELECT COUNT(*) FROM highpaid")
	assert.Equal(t, [][]string{{"3"}}, rows(res))

	// Column aliases apply positionally
	mustExec(t, e, "CREATE VIEW renamed (who, pay) AS SELECT name, sal FROM emp")
	res = mustExec(t, e, "SELECT who FROM renamed WHERE pay = 95")
	assert.Equal(t, [][]string{{"D"}}, rows(res))

	mustExec(t, e, "CREATE OR REPLACE VIEW highpaid AS SELECT name FROM emp WHERE sal >= 100")
	res = mustExec(t, e, "SELECT * FROM highpaid")
	assert.Equal(t, [][]string{{"A"}}, rows(res))

	var catErr *catalog.Error
	_, err := e.Execute("CREATE VIEW highpaid AS SELECT 1")
	require.ErrorAs(t, err, &catErr)
	mustExec(t, e, "CREATE VIEW IF NOT EXISTS highpaid AS SELECT 1")

	// Views cannot be modified
	_, err = e.Execute("INSERT INTO highpaid VALUES ('x')")
	require.Error(t, err)

	mustExec(t, e, "DROP VIEW renamed")
	_, err = e.Execute("SELECT * FROM renamed")
	require.ErrorAs(t, err, &catErr)
	mustExec(t, e, "DROP VIEW IF EXISTS renamed")
}

func TestIntrospection(t *testing.T) {
	e := engine.New()
	mustExec(t, e, "CREATE TABLE t (a INTEGER NOT NULL, b VARCHAR DEFAULT 'x')")
	mustExec(t, e, "CREATE VIEW v AS SELECT a FROM t")

	res := mustExec(t, e, "SHOW TABLES")
	assert.Equal(t, []string{"name", "kind"}, res.Columns)
	assert.Equal(t, [][]string{{"t", "table"}, {"v", "view"}}, rows(res))

	res = mustExec(t, e, "DESCRIBE t")
	assert.Equal(t, [][]string{
		{"a", "BIGINT", "false", "NULL"},
		{"b", "VARCHAR", "true", "'x'"},
	}, rows(res))

	// EXPLAIN describes without executing
	res = mustExec(t, e, "EXPLAIN SELECT a FROM t WHERE a > 1 ORDER BY a")
	assert.Equal(t, []string{"plan"}, res.Columns)
	require.NotEmpty(t, res.Rows)
	assert.Contains(t, res.Rows[0][0].Text(), "Project")

	res = mustExec(t, e, "EXPLAIN INSERT INTO t VALUES (1, 'y')")
	require.NotEmpty(t, res.Rows)
	count := mustExec(t, e, "SELECT COUNT(*) FROM t")
	assert.Equal(t, [][]string{{"0"}}, rows(count))
}

func TestScalarFunctions(t *testing.T) {
	e := engine.New()

	res := mustExec(t, e, "SELECT LOWER('AbC'), UPPER('x'), LENGTH('héllo'), REVERSE('abc')")
	assert.Equal(t, [][]string{{"abc", "X", "5", "cba"}}, rows(res))

	res = mustExec(t, e, "SELECT SUBSTRING('hello', 2, 3), LEFT('hello', 2), RIGHT('hello', 2), SPLIT_PART('a,b,c', ',', 2)")
	assert.Equal(t, [][]string{{"ell", "he", "lo", "b"}}, rows(res))

	res = mustExec(t, e, "SELECT POSITION('ll' IN 'hello'), STARTS_WITH('hello', 'he'), REPLACE('aaa', 'a', 'b')")
	assert.Equal(t, [][]string{{"3", "true", "bbb"}}, rows(res))

	res = mustExec(t, e, "SELECT LPAD('7', 3, '0'), RPAD('7', 3, '.'), REPEAT('ab', 3), CONCAT_WS('-', 'a', NULL, 'b')")
	assert.Equal(t, [][]string{{"007", "7..", "ababab", "a-b"}}, rows(res))

	res = mustExec(t, e, "SELECT ABS(-3), SIGN(-2.5), ROUND(2.567, 2), CEIL(1.1), FLOOR(1.9), POWER(2, 10)")
	assert.Equal(t, [][]string{{"3", "-1", "2.57", "2", "1", "1024"}}, rows(res))

	res = mustExec(t, e, "SELECT SQRT(9), LOG(2, 8), LOG2(8), GREATEST(1, 5, 3), LEAST(2, NULL, 1)")
	got := rows(res)[0]
	assert.Equal(t, "3", got[0])
	assert.InDelta(t, 3.0, res.Get(0, 1).Float(), 1e-12)
	assert.Equal(t, "3", got[2])
	assert.Equal(t, "5", got[3])
	assert.Equal(t, "NULL", got[4]) // strict NULL propagation

	res = mustExec(t, e, "SELECT TYPEOF(1), TYPEOF(1.5), TYPEOF('s'), TYPEOF(NULL)")
	assert.Equal(t, [][]string{{"BIGINT", "DOUBLE", "VARCHAR", "NULL"}}, rows(res))

	// Strict functions propagate NULL
	res = mustExec(t, e, "SELECT LOWER(NULL), ABS(NULL)")
	assert.Equal(t, [][]string{{"NULL", "NULL"}}, rows(res))

	// Conditional functions are the exceptions
	res = mustExec(t, e, "SELECT COALESCE(NULL, NULL, 3), IFNULL(NULL, 7), NULLIF(1, 1), NULLIF(1, 2), IIF(1 > 2, 'y', 'n')")
	assert.Equal(t, [][]string{{"3", "7", "NULL", "1", "n"}}, rows(res))
}

func TestDateTimeFunctions(t *testing.T) {
	e := engine.New()

	res := mustExec(t, e, "SELECT EXTRACT(YEAR FROM DATE '2024-06-15'), EXTRACT(MONTH FROM DATE '2024-06-15'), EXTRACT(DOW FROM DATE '2024-06-16')")
	// 2024-06-16 is a Sunday; DOW counts Sunday as 0
	assert.Equal(t, [][]string{{"2024", "6", "0"}}, rows(res))

	res = mustExec(t, e, "SELECT DATE_TRUNC('month', DATE '2024-06-15'), LAST_DAY(DATE '2024-02-01'), MAKE_DATE(2024, 6, 15)")
	assert.Equal(t, [][]string{{"2024-06-01", "2024-02-29", "2024-06-15"}}, rows(res))

	res = mustExec(t, e, "SELECT DATE_ADD(DATE '2024-06-15', 10), DATE_SUB(DATE '2024-06-15', INTERVAL '1' MONTH), DATE_DIFF('day', DATE '2024-06-01', DATE '2024-06-15')")
	assert.Equal(t, [][]string{{"2024-06-25", "2024-05-15", "14"}}, rows(res))

	res = mustExec(t, e, "SELECT EPOCH(TIMESTAMP '1970-01-01 00:01:00'), DAYNAME(DATE '2024-06-16'), MONTHNAME(DATE '2024-06-16')")
	assert.Equal(t, [][]string{{"60", "Sunday", "June"}}, rows(res))

	res = mustExec(t, e, "SELECT DATE '2024-01-01' + INTERVAL '1' MONTH, TIMESTAMP '2024-01-01 10:00:00' + INTERVAL '30' MINUTE")
	assert.Equal(t, [][]string{{"2024-02-01", "2024-01-01 10:30:00"}}, rows(res))

	res = mustExec(t, e, "SELECT AGE(TIMESTAMP '2024-03-15 00:00:00', TIMESTAMP '2023-01-10 00:00:00')")
	assert.Equal(t, [][]string{{"P1Y2M5DT0S"}}, rows(res))
}

func TestCasts(t *testing.T) {
	e := engine.New()

	res := mustExec(t, e, "SELECT CAST('42' AS INTEGER), '3.5'::DOUBLE, CAST(1 AS BOOLEAN), CAST('2024-01-31' AS DATE)")
	assert.Equal(t, [][]string{{"42", "3.5", "true", "2024-01-31"}}, rows(res))

	res = mustExec(t, e, "SELECT TRY_CAST('abc' AS INTEGER), TRY_CAST('5' AS INTEGER)")
	assert.Equal(t, [][]string{{"NULL", "5"}}, rows(res))

	_, err := e.Execute("SELECT CAST('abc' AS INTEGER)")
	require.Error(t, err)
}

func TestLike(t *testing.T) {
	e := engine.New()
	mustScript(t, e, `
		CREATE TABLE s (v VARCHAR);
		INSERT INTO s VALUES ('apple'), ('banana'), ('cherry'), (NULL);
	`)

	res := mustExec(t, e, "SELECT v FROM s WHERE v LIKE 'a%'")
	assert.Equal(t, [][]string{{"apple"}}, rows(res))

	res = mustExec(t, e, "SELECT v FROM s WHERE v LIKE '%an%'")
	assert.Equal(t, [][]string{{"banana"}}, rows(res))

	res = mustExec(t, e, "SELECT v FROM s WHERE v LIKE '_herry'")
	assert.Equal(t, [][]string{{"cherry"}}, rows(res))

	// LIKE is case-sensitive, and NULL rows never match
	res = mustExec(t, e, "SELECT v FROM s WHERE v NOT LIKE 'A%' ORDER BY v")
	assert.Equal(t, [][]string{{"apple"}, {"banana"}, {"cherry"}}, rows(res))
}

func TestCase(t *testing.T) {
	e := engine.New()
	setupEmp(t, e)

	res := mustExec(t, e, `SELECT name, CASE WHEN sal >= 100 THEN 'high' WHEN sal >= 90 THEN 'mid' ELSE 'low' END
		FROM emp ORDER BY name`)
	assert.Equal(t, [][]string{{"A", "high"}, {"B", "mid"}, {"C", "low"}}, rows(res))

	res = mustExec(t, e, "SELECT CASE dept WHEN 'X' THEN 1 WHEN 'Y' THEN 2 END FROM emp ORDER BY name")
	assert.Equal(t, [][]string{{"1"}, {"1"}, {"2"}}, rows(res))

	res = mustExec(t, e, "SELECT CASE WHEN 1 = 2 THEN 'x' END")
	assert.Equal(t, [][]string{{"NULL"}}, rows(res))
}

func TestErrorsLeaveEngineUsable(t *testing.T) {
	e := engine.New()
	mustScript(t, e, "CREATE TABLE t (a INTEGER); INSERT INTO t VALUES (1);")

	for _, bad := range []string{
		"SELECT * FROM missing",
		"SELECT missing FROM t",
		"SELECT * FROM t WHERE",
		"INSERT INTO t VALUES (1, 2)",
		"SELECT UNKNOWN_FUNC(a) FROM t",
	} {
		_, err := e.Execute(bad)
		require.Error(t, err, "sql: %s", bad)
	}

	res := mustExec(t, e, "SELECT COUNT(*) FROM t")
	assert.Equal(t, [][]string{{"1"}}, rows(res))
}

func TestAmbiguousColumn(t *testing.T) {
	e := engine.New()
	mustScript(t, e, `
		CREATE TABLE a (id INTEGER, v INTEGER);
		CREATE TABLE b (id INTEGER, w INTEGER);
		INSERT INTO a VALUES (1, 10);
		INSERT INTO b VALUES (1, 20);
	`)

	_, err := e.Execute("SELECT id FROM a JOIN b ON a.id = b.id")
	var schemaErr *storage.SchemaError
	require.ErrorAs(t, err, &schemaErr)

	res := mustExec(t, e, "SELECT a.id, v, w FROM a JOIN b ON a.id = b.id")
	assert.Equal(t, [][]string{{"1", "10", "20"}}, rows(res))
}

func TestDeterministicOrdering(t *testing.T) {
	e := engine.New()
	mustScript(t, e, `
		CREATE TABLE t (g VARCHAR, x INTEGER);
		INSERT INTO t VALUES ('b', 1), ('a', 2), ('b', 3), ('c', 4), ('a', 5);
	`)

	// Group enumeration follows first-appearance order
	first := rows(mustExec(t, e, "SELECT g, SUM(x) FROM t GROUP BY g"))
	assert.Equal(t, [][]string{{"b", "4"}, {"a", "7"}, {"c", "4"}}, first)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, rows(mustExec(t, e, "SELECT g, SUM(x) FROM t GROUP BY g")))
	}
}
