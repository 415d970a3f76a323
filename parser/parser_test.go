package parser

import (
	"testing"

	"github.com/vjrajchauhan/pivot-engine/ast"
)

func parseOne(t *testing.T, input string) ast.Statement {
	t.Helper()
	p := New(input)
	stmt, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse(%q): %v", input, err)
	}
	return stmt
}

func TestParseSelect(t *testing.T) {
	tests := []struct {
		input    string
		wantCols int
	}{
		{"SELECT * FROM users", 1},
		{"SELECT id, name FROM users", 2},
		{"SELECT id, name, email FROM users WHERE id = 1", 3},
		{"SELECT a.id, b.name FROM a JOIN b ON a.id = b.a_id", 2},
		{"SELECT COUNT(*) FROM users", 1},
		{"SELECT DISTINCT name FROM users", 1},
		{"SELECT 1 + 2 * 3", 1},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			sel, ok := parseOne(t, tt.input).(*ast.SelectStmt)
			if !ok {
				t.Fatalf("expected SelectStmt")
			}
			if len(sel.Columns) != tt.wantCols {
				t.Errorf("expected %d columns, got %d", tt.wantCols, len(sel.Columns))
			}
		})
	}
}

func TestParsePrecedence(t *testing.T) {
	// 1 + 2 * 3 parses as 1 + (2 * 3)
	sel := parseOne(t, "SELECT 1 + 2 * 3").(*ast.SelectStmt)
	expr := sel.Columns[0].(*ast.AliasedExpr).Expr
	bin, ok := expr.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected BinaryExpr, got %T", expr)
	}
	if _, ok := bin.Right.(*ast.BinaryExpr); !ok {
		t.Errorf("expected the multiplication on the right, got %T", bin.Right)
	}

	// a OR b AND c parses as a OR (b AND c)
	sel = parseOne(t, "SELECT 1 WHERE a OR b AND c").(*ast.SelectStmt)
	or := sel.Where.(*ast.BinaryExpr)
	if _, ok := or.Right.(*ast.BinaryExpr); !ok {
		t.Errorf("expected AND under OR, got %T", or.Right)
	}
}

func TestParseSetOpPrecedence(t *testing.T) {
	// INTERSECT binds tighter than UNION
	stmt := parseOne(t, "SELECT 1 UNION SELECT 2 INTERSECT SELECT 3")
	top, ok := stmt.(*ast.SetOp)
	if !ok {
		t.Fatalf("expected SetOp, got %T", stmt)
	}
	if top.Type != ast.Union {
		t.Fatalf("expected UNION at top, got %v", top.Type)
	}
	right, ok := top.Right.(*ast.SetOp)
	if !ok || right.Type != ast.Intersect {
		t.Errorf("expected INTERSECT on the right, got %T", top.Right)
	}
}

func TestParseGroupBy(t *testing.T) {
	tests := []struct {
		input string
		mode  ast.GroupByMode
	}{
		{"SELECT a, SUM(b) FROM t GROUP BY a", ast.GroupByPlain},
		{"SELECT a, SUM(b) FROM t GROUP BY ROLLUP(a, b)", ast.GroupByRollup},
		{"SELECT a, SUM(b) FROM t GROUP BY CUBE(a, b)", ast.GroupByCube},
		{"SELECT a, SUM(b) FROM t GROUP BY GROUPING SETS((a, b), (a), ())", ast.GroupBySets},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			sel := parseOne(t, tt.input).(*ast.SelectStmt)
			if sel.GroupBy == nil {
				t.Fatal("expected a GROUP BY clause")
			}
			if sel.GroupBy.Mode != tt.mode {
				t.Errorf("expected mode %v, got %v", tt.mode, sel.GroupBy.Mode)
			}
		})
	}

	sel := parseOne(t, "SELECT a FROM t GROUP BY GROUPING SETS((a, b), (a), ())").(*ast.SelectStmt)
	if len(sel.GroupBy.Sets) != 3 {
		t.Errorf("expected 3 grouping sets, got %d", len(sel.GroupBy.Sets))
	}
	if len(sel.GroupBy.Sets[2]) != 0 {
		t.Errorf("expected the last set to be empty")
	}
}

func TestParseQualify(t *testing.T) {
	sel := parseOne(t, "SELECT name FROM emp QUALIFY ROW_NUMBER() OVER (PARTITION BY dept ORDER BY sal DESC) = 1").(*ast.SelectStmt)
	if sel.Qualify == nil {
		t.Fatal("expected a QUALIFY clause")
	}
}

func TestParseWindow(t *testing.T) {
	sel := parseOne(t, "SELECT SUM(x) OVER (PARTITION BY a ORDER BY b ROWS BETWEEN 2 PRECEDING AND CURRENT ROW) FROM t").(*ast.SelectStmt)
	fn := sel.Columns[0].(*ast.AliasedExpr).Expr.(*ast.FuncExpr)
	if fn.Over == nil {
		t.Fatal("expected an OVER clause")
	}
	if len(fn.Over.PartitionBy) != 1 || len(fn.Over.OrderBy) != 1 {
		t.Error("expected one partition key and one sort key")
	}
	if fn.Over.Frame == nil || fn.Over.Frame.Type != ast.FrameRows {
		t.Error("expected a ROWS frame")
	}
	if fn.Over.Frame.Start.Type != ast.BoundPreceding || fn.Over.Frame.End.Type != ast.BoundCurrentRow {
		t.Error("unexpected frame bounds")
	}
}

func TestParsePivot(t *testing.T) {
	sel := parseOne(t, "SELECT * FROM t PIVOT (SUM(v) FOR q IN ('Q1', 'Q2'))").(*ast.SelectStmt)
	pe, ok := sel.From.(*ast.PivotExpr)
	if !ok {
		t.Fatalf("expected PivotExpr, got %T", sel.From)
	}
	if pe.Agg.Name != "SUM" || pe.Key.Name() != "q" || len(pe.In) != 2 {
		t.Errorf("unexpected pivot shape: %s FOR %s IN %d values", pe.Agg.Name, pe.Key.Name(), len(pe.In))
	}
}

func TestParseUnpivot(t *testing.T) {
	sel := parseOne(t, "SELECT * FROM t UNPIVOT (val FOR quarter IN (q1, q2, q3))").(*ast.SelectStmt)
	ue, ok := sel.From.(*ast.UnpivotExpr)
	if !ok {
		t.Fatalf("expected UnpivotExpr, got %T", sel.From)
	}
	if ue.ValueCol != "val" || ue.KeyCol != "quarter" || len(ue.Columns) != 3 {
		t.Errorf("unexpected unpivot shape")
	}
}

func TestParseCTE(t *testing.T) {
	sel := parseOne(t, "WITH nums(n) AS (SELECT 1) SELECT n FROM nums").(*ast.SelectStmt)
	if sel.With == nil || len(sel.With.CTEs) != 1 {
		t.Fatal("expected one CTE")
	}
	if sel.With.CTEs[0].Name != "nums" || len(sel.With.CTEs[0].Columns) != 1 {
		t.Error("unexpected CTE shape")
	}

	sel = parseOne(t, "WITH RECURSIVE r(n) AS (SELECT 1 UNION ALL SELECT n+1 FROM r WHERE n < 5) SELECT * FROM r").(*ast.SelectStmt)
	if !sel.With.Recursive {
		t.Error("expected RECURSIVE")
	}
	if _, ok := sel.With.CTEs[0].Query.(*ast.SetOp); !ok {
		t.Errorf("expected a UNION inside the recursive CTE")
	}
}

func TestParseInsert(t *testing.T) {
	ins := parseOne(t, "INSERT INTO users (id, name) VALUES (1, 'a'), (2, 'b')").(*ast.InsertStmt)
	if len(ins.Columns) != 2 || len(ins.Rows) != 2 {
		t.Errorf("expected 2 columns and 2 rows")
	}

	ins = parseOne(t, "INSERT INTO users SELECT * FROM staging").(*ast.InsertStmt)
	if ins.Select == nil {
		t.Error("expected INSERT ... SELECT")
	}
}

func TestParseUpdateDelete(t *testing.T) {
	upd := parseOne(t, "UPDATE t SET a = 1, b = b + 1 WHERE id = 3").(*ast.UpdateStmt)
	if len(upd.Set) != 2 || upd.Where == nil {
		t.Error("unexpected UPDATE shape")
	}

	del := parseOne(t, "DELETE FROM t WHERE a IS NULL").(*ast.DeleteStmt)
	if del.Where == nil {
		t.Error("expected a WHERE clause")
	}
}

func TestParseMerge(t *testing.T) {
	m := parseOne(t, `MERGE INTO tgt t USING src s ON t.id = s.id
		WHEN MATCHED AND s.del THEN DELETE
		WHEN MATCHED THEN UPDATE SET v = s.v
		WHEN NOT MATCHED THEN INSERT (id, v) VALUES (s.id, s.v)`).(*ast.MergeStmt)
	if m.Alias != "t" || len(m.Whens) != 3 {
		t.Fatalf("unexpected MERGE shape: alias=%q whens=%d", m.Alias, len(m.Whens))
	}
	if m.Whens[0].Action != ast.MergeDelete || m.Whens[0].Cond == nil {
		t.Error("expected conditional DELETE first")
	}
	if m.Whens[1].Action != ast.MergeUpdate {
		t.Error("expected UPDATE second")
	}
	if m.Whens[2].Action != ast.MergeInsert || m.Whens[2].Matched {
		t.Error("expected NOT MATCHED INSERT third")
	}
}

func TestParseDDL(t *testing.T) {
	ct := parseOne(t, `CREATE TABLE IF NOT EXISTS t (
		id INTEGER PRIMARY KEY,
		name VARCHAR NOT NULL,
		amt DECIMAL(10, 2) DEFAULT 0,
		CHECK (amt >= 0)
	)`).(*ast.CreateTableStmt)
	if !ct.IfNotExists || len(ct.Columns) != 3 || len(ct.Constraints) != 1 {
		t.Errorf("unexpected CREATE TABLE shape: cols=%d constraints=%d", len(ct.Columns), len(ct.Constraints))
	}

	ctas := parseOne(t, "CREATE TABLE t2 AS SELECT * FROM t").(*ast.CreateTableStmt)
	if ctas.As == nil {
		t.Error("expected AS SELECT")
	}

	at := parseOne(t, "ALTER TABLE t ADD COLUMN extra DOUBLE").(*ast.AlterTableStmt)
	if _, ok := at.Action.(*ast.AddColumn); !ok {
		t.Errorf("expected AddColumn, got %T", at.Action)
	}
	at = parseOne(t, "ALTER TABLE t RENAME COLUMN a TO b").(*ast.AlterTableStmt)
	if rc, ok := at.Action.(*ast.RenameColumn); !ok || rc.OldName != "a" || rc.NewName != "b" {
		t.Errorf("unexpected RenameColumn")
	}
	at = parseOne(t, "ALTER TABLE t RENAME TO u").(*ast.AlterTableStmt)
	if rt, ok := at.Action.(*ast.RenameTable); !ok || rt.NewName != "u" {
		t.Errorf("unexpected RenameTable")
	}

	dt := parseOne(t, "DROP TABLE IF EXISTS a, b").(*ast.DropTableStmt)
	if !dt.IfExists || len(dt.Tables) != 2 {
		t.Error("unexpected DROP TABLE shape")
	}

	cv := parseOne(t, "CREATE OR REPLACE VIEW v (a, b) AS SELECT 1, 2").(*ast.CreateViewStmt)
	if !cv.OrReplace || len(cv.Columns) != 2 {
		t.Error("unexpected CREATE VIEW shape")
	}
}

func TestParseTransactions(t *testing.T) {
	tests := []struct {
		input string
		check func(ast.Statement) bool
	}{
		{"BEGIN", func(s ast.Statement) bool { _, ok := s.(*ast.BeginStmt); return ok }},
		{"BEGIN TRANSACTION", func(s ast.Statement) bool { _, ok := s.(*ast.BeginStmt); return ok }},
		{"COMMIT", func(s ast.Statement) bool { _, ok := s.(*ast.CommitStmt); return ok }},
		{"ROLLBACK", func(s ast.Statement) bool {
			r, ok := s.(*ast.RollbackStmt)
			return ok && r.Savepoint == ""
		}},
		{"ROLLBACK TO SAVEPOINT sp1", func(s ast.Statement) bool {
			r, ok := s.(*ast.RollbackStmt)
			return ok && r.Savepoint == "sp1"
		}},
		{"SAVEPOINT sp1", func(s ast.Statement) bool {
			r, ok := s.(*ast.SavepointStmt)
			return ok && r.Name == "sp1"
		}},
		{"RELEASE SAVEPOINT sp1", func(s ast.Statement) bool {
			r, ok := s.(*ast.ReleaseStmt)
			return ok && r.Name == "sp1"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if !tt.check(parseOne(t, tt.input)) {
				t.Errorf("unexpected statement for %q", tt.input)
			}
		})
	}
}

func TestParseIntrospection(t *testing.T) {
	if _, ok := parseOne(t, "SHOW TABLES").(*ast.ShowTablesStmt); !ok {
		t.Error("expected ShowTablesStmt")
	}
	d, ok := parseOne(t, "DESCRIBE users").(*ast.DescribeStmt)
	if !ok || d.Name.Name != "users" {
		t.Error("unexpected DESCRIBE shape")
	}
	ex, ok := parseOne(t, "EXPLAIN SELECT * FROM t").(*ast.ExplainStmt)
	if !ok {
		t.Fatal("expected ExplainStmt")
	}
	if _, ok := ex.Stmt.(*ast.SelectStmt); !ok {
		t.Error("expected a SELECT inside EXPLAIN")
	}
}

func TestParseSpecialExpressions(t *testing.T) {
	inputs := []string{
		"SELECT 1 WHERE a IS NOT DISTINCT FROM b",
		"SELECT 1 WHERE x BETWEEN 1 AND 10",
		"SELECT 1 WHERE x NOT IN (1, 2, 3)",
		"SELECT 1 WHERE name LIKE 'a%'",
		"SELECT 1 WHERE EXISTS (SELECT 1 FROM t)",
		"SELECT CASE WHEN a > 0 THEN 'pos' ELSE 'neg' END FROM t",
		"SELECT CASE a WHEN 1 THEN 'one' END FROM t",
		"SELECT CAST(x AS INTEGER), TRY_CAST(y AS DATE), z::DOUBLE FROM t",
		"SELECT DATE '2024-01-31', TIMESTAMP '2024-01-31 10:00:00', TIME '10:00:00'",
		"SELECT INTERVAL '3' DAY",
		"SELECT EXTRACT(YEAR FROM d) FROM t",
		"SELECT SUBSTRING(s FROM 2 FOR 3), SUBSTRING(s, 2, 3) FROM t",
		"SELECT POSITION('a' IN s) FROM t",
		"SELECT TRIM(s) FROM t",
		"SELECT x FROM t ORDER BY 1 DESC NULLS FIRST, x ASC NULLS LAST LIMIT 10 OFFSET 5",
		"SELECT a FROM t1 NATURAL JOIN t2",
		"SELECT a FROM t1 LEFT OUTER JOIN t2 USING (id)",
		"SELECT a FROM t1 FULL OUTER JOIN t2 ON t1.id = t2.id",
		"SELECT a FROM t1 CROSS JOIN t2",
		"SELECT COUNT(DISTINCT x) FROM t",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			parseOne(t, input)
		})
	}
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		"SELECT FROM t",
		"SELECT * FROM",
		"SELECT * FORM t",
		"INSERT INTO t 1, 2",
		"CREATE t (a INTEGER)",
		"SELECT 'unterminated",
		"SELECT * FROM t WHERE",
		"MERGE INTO t USING s ON t.id = s.id",
		"SELECT ? FROM t",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			p := New(input)
			if _, err := p.Parse(); err == nil {
				t.Errorf("expected an error for %q", input)
			}
		})
	}
}

func TestParseAllStatements(t *testing.T) {
	p := New("SELECT 1; SELECT 2; -- done\nSELECT 3;")
	stmts, err := p.ParseAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(stmts) != 3 {
		t.Errorf("expected 3 statements, got %d", len(stmts))
	}
}
