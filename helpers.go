package pivot

import (
	"strings"

	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/token"
	"github.com/vjrajchauhan/pivot-engine/value"
)

func cmpToken(op string) token.Token {
	switch op {
	case "<>", "!=":
		return token.NEQ
	case "<":
		return token.LT
	case "<=":
		return token.LTE
	case ">":
		return token.GT
	case ">=":
		return token.GTE
	default:
		return token.EQ
	}
}

const andToken = token.AND

// The operator helpers compose the same executor primitives SQL uses,
// without SQL text: they assemble statement trees directly and hand
// them to the executor.

// Aggregation names one aggregate output of GroupBy: Func applied to
// Column (empty Column means COUNT(*)), projected as Alias.
type Aggregation struct {
	Func   string
	Column string
	Alias  string
}

// SortKey names one sort column for Sort.
type SortKey struct {
	Column string
	Desc   bool
}

// Col builds a column reference expression for Filter predicates.
func Col(name string) ast.Expr {
	return &ast.ColName{Parts: []string{name}}
}

// Lit builds a literal expression from a Go value (nil, bool, int64,
// int, float64, or string).
func Lit(v interface{}) ast.Expr {
	switch x := v.(type) {
	case nil:
		return &ast.Literal{Type: ast.LiteralNull, Value: "NULL"}
	case bool:
		if x {
			return &ast.Literal{Type: ast.LiteralBool, Value: "TRUE"}
		}
		return &ast.Literal{Type: ast.LiteralBool, Value: "FALSE"}
	case int:
		return &ast.Literal{Type: ast.LiteralInt, Value: value.Int(int64(x)).Text()}
	case int64:
		return &ast.Literal{Type: ast.LiteralInt, Value: value.Int(x).Text()}
	case float64:
		return &ast.Literal{Type: ast.LiteralFloat, Value: value.Float(x).Text()}
	case string:
		return &ast.Literal{Type: ast.LiteralString, Value: x}
	default:
		return &ast.Literal{Type: ast.LiteralNull, Value: "NULL"}
	}
}

// Cmp builds a comparison predicate: op is one of =, <>, <, <=, >, >=.
func Cmp(op string, left, right ast.Expr) ast.Expr {
	return &ast.BinaryExpr{Op: cmpToken(op), Left: left, Right: right}
}

// And conjoins predicates.
func And(preds ...ast.Expr) ast.Expr {
	out := preds[0]
	for _, p := range preds[1:] {
		out = &ast.BinaryExpr{Op: andToken, Left: out, Right: p}
	}
	return out
}

func aggregationExpr(agg Aggregation) ast.SelectExpr {
	fn := &ast.FuncExpr{Name: strings.ToUpper(agg.Func)}
	if agg.Column == "" {
		fn.Star = true
	} else {
		fn.Args = []ast.Expr{Col(agg.Column)}
	}
	alias := agg.Alias
	if alias == "" {
		alias = strings.ToLower(agg.Func)
		if agg.Column != "" {
			alias += "_" + agg.Column
		}
	}
	return &ast.AliasedExpr{Expr: fn, Alias: alias}
}

// GroupBy groups a table by columns and computes aggregates per group.
func (db *DB) GroupBy(table string, by []string, aggs []Aggregation) (*QueryResult, error) {
	sel := &ast.SelectStmt{From: &ast.TableName{Name: table}}
	for _, name := range by {
		sel.Columns = append(sel.Columns, &ast.AliasedExpr{Expr: Col(name)})
	}
	for _, agg := range aggs {
		sel.Columns = append(sel.Columns, aggregationExpr(agg))
	}
	if len(by) > 0 {
		gb := &ast.GroupByClause{Mode: ast.GroupByPlain}
		for _, name := range by {
			gb.Exprs = append(gb.Exprs, Col(name))
		}
		sel.GroupBy = gb
	}
	return db.engine.ExecuteStmt(sel)
}

func (db *DB) aggregate(fn, table, column string) (Value, error) {
	res, err := db.GroupBy(table, nil, []Aggregation{{Func: fn, Column: column}})
	if err != nil {
		return value.Null(), err
	}
	return res.Get(0, 0), nil
}

// Sum computes SUM(column) over a table.
func (db *DB) Sum(table, column string) (Value, error) {
	return db.aggregate("SUM", table, column)
}

// Avg computes AVG(column) over a table.
func (db *DB) Avg(table, column string) (Value, error) {
	return db.aggregate("AVG", table, column)
}

// Min computes MIN(column) over a table.
func (db *DB) Min(table, column string) (Value, error) {
	return db.aggregate("MIN", table, column)
}

// Max computes MAX(column) over a table.
func (db *DB) Max(table, column string) (Value, error) {
	return db.aggregate("MAX", table, column)
}

// Count counts the rows of a table.
func (db *DB) Count(table string) (int64, error) {
	v, err := db.aggregate("COUNT", table, "")
	if err != nil {
		return 0, err
	}
	return v.Int(), nil
}

// PivotTable reshapes a table: rows grouped by every column other than
// valueCol and keyCol, with one output column per key holding
// aggFunc(valueCol) over the matching rows.
func (db *DB) PivotTable(table, aggFunc, valueCol, keyCol string, keys []string) (*QueryResult, error) {
	pe := &ast.PivotExpr{
		Source: &ast.TableName{Name: table},
		Agg: &ast.FuncExpr{
			Name: strings.ToUpper(aggFunc),
			Args: []ast.Expr{Col(valueCol)},
		},
		Key: &ast.ColName{Parts: []string{keyCol}},
	}
	for _, k := range keys {
		pe.In = append(pe.In, &ast.Literal{Type: ast.LiteralString, Value: k})
	}
	sel := &ast.SelectStmt{
		Columns: []ast.SelectExpr{&ast.StarExpr{}},
		From:    pe,
	}
	return db.engine.ExecuteStmt(sel)
}

// Filter returns the rows of a table satisfying a predicate built from
// Col, Lit, Cmp, and And.
func (db *DB) Filter(table string, pred ast.Expr) (*QueryResult, error) {
	sel := &ast.SelectStmt{
		Columns: []ast.SelectExpr{&ast.StarExpr{}},
		From:    &ast.TableName{Name: table},
		Where:   pred,
	}
	return db.engine.ExecuteStmt(sel)
}

// Sort returns a table's rows ordered by the given keys.
func (db *DB) Sort(table string, keys []SortKey) (*QueryResult, error) {
	sel := &ast.SelectStmt{
		Columns: []ast.SelectExpr{&ast.StarExpr{}},
		From:    &ast.TableName{Name: table},
	}
	for _, k := range keys {
		sel.OrderBy = append(sel.OrderBy, &ast.OrderByExpr{Expr: Col(k.Column), Desc: k.Desc})
	}
	return db.engine.ExecuteStmt(sel)
}
