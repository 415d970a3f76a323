package pivot

import (
	"fmt"
	"testing"
)

var benchQueries = map[string]string{
	"simple":  "SELECT 1",
	"scan":    "SELECT * FROM bench",
	"filter":  "SELECT id FROM bench WHERE v > 500",
	"group":   "SELECT grp, SUM(v) FROM bench GROUP BY grp",
	"window":  "SELECT id, ROW_NUMBER() OVER (PARTITION BY grp ORDER BY v) FROM bench",
	"join":    "SELECT a.id FROM bench a JOIN bench b ON a.id = b.id",
	"orderby": "SELECT id FROM bench ORDER BY v DESC LIMIT 10",
}

func benchDB(b *testing.B) *DB {
	b.Helper()
	db := New()
	db.MustExecute("CREATE TABLE bench (id INTEGER, grp VARCHAR, v INTEGER)")
	for i := 0; i < 1000; i++ {
		db.MustExecute(fmt.Sprintf("INSERT INTO bench VALUES (%d, 'g%d', %d)", i, i%7, (i*37)%997))
	}
	return db
}

func BenchmarkParse(b *testing.B) {
	for name, query := range benchQueries {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Parse(query); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkExecute(b *testing.B) {
	db := benchDB(b)
	for name, query := range benchQueries {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := db.Execute(query); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkInsert(b *testing.B) {
	db := New()
	db.MustExecute("CREATE TABLE t (id INTEGER, v VARCHAR)")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := db.Execute(fmt.Sprintf("INSERT INTO t VALUES (%d, 'row')", i)); err != nil {
			b.Fatal(err)
		}
	}
}
