package engine

import "github.com/vjrajchauhan/pivot-engine/value"

// QueryResult is the tabular result of one statement. Non-query
// statements return zero rows and carry a status string.
type QueryResult struct {
	Columns []string
	Rows    [][]value.Value
	Status  string // "OK", "INSERT 3", ... for non-query statements
}

// RowCount returns the number of result rows.
func (r *QueryResult) RowCount() int { return len(r.Rows) }

// ColumnCount returns the number of result columns.
func (r *QueryResult) ColumnCount() int { return len(r.Columns) }

// Get returns the value at (row, col).
func (r *QueryResult) Get(row, col int) value.Value {
	return r.Rows[row][col]
}

func statusResult(status string) *QueryResult {
	return &QueryResult{Columns: []string{"status"}, Status: status}
}

func (rel *relation) result() *QueryResult {
	cols := make([]string, len(rel.cols))
	for i, c := range rel.cols {
		cols[i] = c.Name
	}
	return &QueryResult{Columns: cols, Rows: rel.rows}
}
