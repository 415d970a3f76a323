// Package pivot is an embeddable in-memory analytical SQL engine. It
// executes a broad SQL dialect (joins, grouping sets, window functions,
// recursive CTEs, PIVOT/UNPIVOT, MERGE, transactions with savepoints)
// against columnar tables held in process memory.
//
// Basic usage:
//
//	db := pivot.New()
//	db.MustExecute("CREATE TABLE sales (region VARCHAR, amt INTEGER)")
//	db.MustExecute("INSERT INTO sales VALUES ('N', 10), ('S', 30)")
//	res, err := db.Execute("SELECT region, SUM(amt) FROM sales GROUP BY region")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, row := range res.Rows {
//	    fmt.Println(row[0].Text(), row[1].Text())
//	}
//
// Tabular data can also be loaded and exported without SQL via LoadCSV,
// ExportCSV, and the operator helpers (GroupBy, PivotTable, Filter,
// Sort).
package pivot

import (
	"io"

	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/csvio"
	"github.com/vjrajchauhan/pivot-engine/engine"
	"github.com/vjrajchauhan/pivot-engine/parser"
	"github.com/vjrajchauhan/pivot-engine/storage"
	"github.com/vjrajchauhan/pivot-engine/value"
)

// DB is one engine instance: a catalog of tables and views plus
// transaction state. A DB is not safe for concurrent use.
type DB struct {
	engine *engine.Engine
}

// QueryResult is the tabular result of one statement.
type QueryResult = engine.QueryResult

// Value is the engine's tagged scalar.
type Value = value.Value

// CSVOptions configure CSV loading and export.
type CSVOptions = csvio.Options

// New creates an empty engine instance.
func New() *DB {
	return &DB{engine: engine.New()}
}

// Execute runs a single SQL statement and returns its result.
func (db *DB) Execute(sql string) (*QueryResult, error) {
	return db.engine.Execute(sql)
}

// ExecuteScript runs every statement in the input and returns the last
// result.
func (db *DB) ExecuteScript(sql string) (*QueryResult, error) {
	return db.engine.ExecuteScript(sql)
}

// MustExecute runs a statement and panics on error. Intended for test
// fixtures and setup code.
func (db *DB) MustExecute(sql string) *QueryResult {
	res, err := db.engine.Execute(sql)
	if err != nil {
		panic(err)
	}
	return res
}

// Engine exposes the underlying engine for advanced embedding.
func (db *DB) Engine() *engine.Engine {
	return db.engine
}

// Parse parses a single SQL statement without executing it. The parser
// uses internal pooling for efficiency.
func Parse(sql string) (ast.Statement, error) {
	p := parser.Get(sql)
	stmt, err := p.Parse()
	parser.Put(p)
	return stmt, err
}

// ParseAll parses all statements in the input.
func ParseAll(sql string) ([]ast.Statement, error) {
	p := parser.Get(sql)
	stmts, err := p.ParseAll()
	parser.Put(p)
	return stmts, err
}

// LoadCSV reads delimited text and registers it as a table.
func (db *DB) LoadCSV(name string, r io.Reader, opts CSVOptions) error {
	store, err := csvio.Read(r, opts)
	if err != nil {
		return err
	}
	return db.engine.Catalog().Register(name, store)
}

// ExportCSV writes a table as delimited text.
func (db *DB) ExportCSV(name string, w io.Writer, opts CSVOptions) error {
	store, err := db.engine.Catalog().GetTable(name)
	if err != nil {
		return err
	}
	return csvio.Write(w, store, opts)
}

// Register adds an existing store to the catalog under a name.
func (db *DB) Register(name string, store *storage.Store) error {
	return db.engine.Catalog().Register(name, store)
}

// Table returns the store backing a table.
func (db *DB) Table(name string) (*storage.Store, error) {
	return db.engine.Catalog().GetTable(name)
}
