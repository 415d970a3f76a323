package fuzz

import (
	"testing"

	pivot "github.com/vjrajchauhan/pivot-engine"
	"github.com/vjrajchauhan/pivot-engine/lexer"
	"github.com/vjrajchauhan/pivot-engine/token"
)

// FuzzParse tests that the parser doesn't panic on arbitrary input.
func FuzzParse(f *testing.F) {
	seeds := []string{
		// Basic SELECT
		"SELECT * FROM users",
		"SELECT id, name FROM users WHERE status = 'active'",
		"SELECT a.id, b.name FROM a JOIN b ON a.id = b.a_id",
		"SELECT DISTINCT a, b FROM t",

		// DML
		"INSERT INTO users (id, name) VALUES (1, 'test')",
		"UPDATE users SET name = 'new' WHERE id = 1",
		"DELETE FROM users WHERE id = 1",
		"MERGE INTO t USING s ON t.id = s.id WHEN MATCHED THEN DELETE",

		// Grouping and windows
		"SELECT a, SUM(b) FROM t GROUP BY ROLLUP(a)",
		"SELECT a FROM t GROUP BY GROUPING SETS((a), ())",
		"SELECT ROW_NUMBER() OVER (PARTITION BY a ORDER BY b) FROM t",
		"SELECT x FROM t QUALIFY RANK() OVER (ORDER BY x) = 1",

		// CTEs and set ops
		"WITH RECURSIVE r(n) AS (SELECT 1 UNION ALL SELECT n+1 FROM r WHERE n < 5) SELECT * FROM r",
		"SELECT 1 UNION SELECT 2 INTERSECT SELECT 3",

		// Pivot
		"SELECT * FROM t PIVOT (SUM(v) FOR q IN ('a', 'b'))",
		"SELECT * FROM t UNPIVOT (v FOR k IN (c1, c2))",

		// DDL and transactions
		"CREATE TABLE t (a INTEGER PRIMARY KEY, b VARCHAR DEFAULT 'x')",
		"ALTER TABLE t RENAME COLUMN a TO b",
		"CREATE OR REPLACE VIEW v AS SELECT 1",
		"BEGIN; SAVEPOINT s; ROLLBACK TO s; COMMIT",

		// Literals and odd spacing
		"SELECT DATE '2024-01-01' + INTERVAL '1' DAY",
		"SELECT 'it''s', \"quoted id\", 1e10, .5, x::INTEGER FROM t",
		"SELECT /* nested /* comments */ here */ 1 -- tail",

		// Malformed inputs that must fail cleanly
		"SELECT",
		"SELECT * FROM",
		"'unterminated",
		"/* unterminated",
		"CREATE TABLE (",
		")))(((",
		";;;;",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, input string) {
		// Must never panic; errors are fine.
		_, _ = pivot.ParseAll(input)
	})
}

// FuzzLexer tests that the lexer terminates and never panics.
func FuzzLexer(f *testing.F) {
	f.Add("SELECT * FROM t WHERE a = 'x'")
	f.Add("'")
	f.Add("/*")
	f.Add("\"")
	f.Add("1.2.3.4")

	f.Fuzz(func(t *testing.T, input string) {
		l := lexer.New(input)
		for i := 0; i <= len(input)+1; i++ {
			item := l.Next()
			if item.Type == token.EOF || item.Type == token.ILLEGAL {
				break
			}
		}
	})
}
