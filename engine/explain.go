package engine

import (
	"fmt"
	"strings"

	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/catalog"
	"github.com/vjrajchauhan/pivot-engine/format"
	"github.com/vjrajchauhan/pivot-engine/value"
)

// SHOW TABLES, DESCRIBE, and EXPLAIN synthesize result tables; none of
// them mutate anything. DESCRIBE of a view runs the view's defining
// query to learn its columns; nothing else is executed.

func (e *Engine) execShowTables() *QueryResult {
	res := &QueryResult{Columns: []string{"name", "kind"}}
	for _, entry := range e.cat.List() {
		res.Rows = append(res.Rows, []value.Value{
			value.Str(entry.Name),
			value.Str(entry.Kind.String()),
		})
	}
	return res
}

func (e *Engine) execDescribe(s *ast.DescribeStmt) (*QueryResult, error) {
	entry, err := e.cat.Get(s.Name.Name)
	if err != nil {
		return nil, err
	}

	res := &QueryResult{Columns: []string{"column", "type", "nullable", "default"}}

	if entry.Kind == catalog.KindView {
		// A view's shape comes from running its defining query against
		// the current catalog; DESCRIBE reports names only.
		rel, err := e.execQueryCtx(entry.ViewQuery, nil)
		if err != nil {
			return nil, err
		}
		names := entry.ViewColumns
		if len(names) == 0 {
			for _, c := range rel.cols {
				names = append(names, c.Name)
			}
		}
		for _, name := range names {
			res.Rows = append(res.Rows, []value.Value{
				value.Str(name), value.Null(), value.Bool(true), value.Null(),
			})
		}
		return res, nil
	}

	for _, col := range entry.Store.Schema().Columns {
		def := value.Null()
		if col.Default != nil {
			def = value.Str(format.Expr(col.Default))
		}
		res.Rows = append(res.Rows, []value.Value{
			value.Str(col.Name),
			value.Str(col.Type.String()),
			value.Bool(col.Nullable),
			def,
		})
	}
	return res, nil
}

// execExplain renders the logical plan of the inner statement as an
// indented node list, one row per node. The statement is not executed.
func (e *Engine) execExplain(s *ast.ExplainStmt) (*QueryResult, error) {
	var lines []string
	explainStmt(s.Stmt, 0, &lines)

	res := &QueryResult{Columns: []string{"plan"}}
	for _, line := range lines {
		res.Rows = append(res.Rows, []value.Value{value.Str(line)})
	}
	return res, nil
}

func indent(depth int, s string) string {
	return strings.Repeat("  ", depth) + s
}

func explainStmt(stmt ast.Statement, depth int, lines *[]string) {
	switch s := stmt.(type) {
	case *ast.SelectStmt:
		explainSelect(s, depth, lines)

	case *ast.SetOp:
		label := s.Type.String()
		if s.All {
			label += " ALL"
		}
		*lines = append(*lines, indent(depth, label))
		explainStmt(s.Left, depth+1, lines)
		explainStmt(s.Right, depth+1, lines)

	case *ast.InsertStmt:
		*lines = append(*lines, indent(depth, "INSERT "+s.Table.Name))
		if s.Select != nil {
			explainStmt(s.Select, depth+1, lines)
		}

	case *ast.UpdateStmt:
		*lines = append(*lines, indent(depth, "UPDATE "+s.Table.Name))
		if s.Where != nil {
			*lines = append(*lines, indent(depth+1, "Filter: "+format.Expr(s.Where)))
		}

	case *ast.DeleteStmt:
		*lines = append(*lines, indent(depth, "DELETE "+s.Table.Name))
		if s.Where != nil {
			*lines = append(*lines, indent(depth+1, "Filter: "+format.Expr(s.Where)))
		}

	case *ast.MergeStmt:
		*lines = append(*lines, indent(depth, "MERGE "+s.Target.Name))
		*lines = append(*lines, indent(depth+1, "On: "+format.Expr(s.On)))
		explainTable(s.Source, depth+1, lines)

	default:
		*lines = append(*lines, indent(depth, fmt.Sprintf("%T", stmt)))
	}
}

func explainSelect(s *ast.SelectStmt, depth int, lines *[]string) {
	if s.With != nil {
		name := "WITH"
		if s.With.Recursive {
			name = "WITH RECURSIVE"
		}
		*lines = append(*lines, indent(depth, name))
		for _, cte := range s.With.CTEs {
			*lines = append(*lines, indent(depth+1, "CTE "+cte.Name))
			explainStmt(cte.Query, depth+2, lines)
		}
		depth++
	}

	proj := make([]string, 0, len(s.Columns))
	for _, item := range s.Columns {
		switch it := item.(type) {
		case *ast.StarExpr:
			if it.TableName != "" {
				proj = append(proj, it.TableName+".*")
			} else {
				proj = append(proj, "*")
			}
		case *ast.AliasedExpr:
			proj = append(proj, format.Expr(it.Expr))
		}
	}
	label := "Project: " + strings.Join(proj, ", ")
	if s.Distinct {
		label = "Distinct " + label
	}
	*lines = append(*lines, indent(depth, label))
	depth++

	if len(s.OrderBy) > 0 {
		var keys []string
		for _, o := range s.OrderBy {
			k := format.Expr(o.Expr)
			if o.Desc {
				k += " DESC"
			}
			keys = append(keys, k)
		}
		*lines = append(*lines, indent(depth, "Sort: "+strings.Join(keys, ", ")))
	}
	if s.Limit != nil {
		*lines = append(*lines, indent(depth, "Limit"))
	}
	if s.Qualify != nil {
		*lines = append(*lines, indent(depth, "Qualify: "+format.Expr(s.Qualify)))
	}
	if s.Having != nil {
		*lines = append(*lines, indent(depth, "Having: "+format.Expr(s.Having)))
	}
	if s.GroupBy != nil {
		var keys []string
		for _, ex := range s.GroupBy.Exprs {
			keys = append(keys, format.Expr(ex))
		}
		switch s.GroupBy.Mode {
		case ast.GroupByRollup:
			*lines = append(*lines, indent(depth, "Aggregate: ROLLUP("+strings.Join(keys, ", ")+")"))
		case ast.GroupByCube:
			*lines = append(*lines, indent(depth, "Aggregate: CUBE("+strings.Join(keys, ", ")+")"))
		case ast.GroupBySets:
			*lines = append(*lines, indent(depth, fmt.Sprintf("Aggregate: GROUPING SETS (%d sets)", len(s.GroupBy.Sets))))
		default:
			*lines = append(*lines, indent(depth, "Aggregate: "+strings.Join(keys, ", ")))
		}
	}
	if s.Where != nil {
		*lines = append(*lines, indent(depth, "Filter: "+format.Expr(s.Where)))
	}
	explainTable(s.From, depth, lines)
}

func explainTable(te ast.TableExpr, depth int, lines *[]string) {
	switch t := te.(type) {
	case nil:
		*lines = append(*lines, indent(depth, "Empty Row"))
	case *ast.TableName:
		*lines = append(*lines, indent(depth, "Scan "+t.Name))
	case *ast.AliasedTableExpr:
		if tn, ok := t.Expr.(*ast.TableName); ok {
			*lines = append(*lines, indent(depth, "Scan "+tn.Name+" AS "+t.Alias))
			return
		}
		explainTable(t.Expr, depth, lines)
	case *ast.ParenTableExpr:
		explainTable(t.Expr, depth, lines)
	case *ast.Subquery:
		*lines = append(*lines, indent(depth, "Subquery"))
		explainStmt(t.Select, depth+1, lines)
	case *ast.JoinExpr:
		label := t.Type.String() + " Join"
		if t.Natural {
			label = "Natural " + label
		}
		if t.On != nil {
			label += ": " + format.Expr(t.On)
		} else if len(t.Using) > 0 {
			label += " Using (" + strings.Join(t.Using, ", ") + ")"
		}
		*lines = append(*lines, indent(depth, label))
		explainTable(t.Left, depth+1, lines)
		explainTable(t.Right, depth+1, lines)
	case *ast.PivotExpr:
		*lines = append(*lines, indent(depth, "Pivot: "+format.Expr(t.Agg)+" FOR "+t.Key.Name()))
		explainTable(t.Source, depth+1, lines)
	case *ast.UnpivotExpr:
		*lines = append(*lines, indent(depth, "Unpivot: "+t.ValueCol+" FOR "+t.KeyCol))
		explainTable(t.Source, depth+1, lines)
	default:
		*lines = append(*lines, indent(depth, fmt.Sprintf("%T", te)))
	}
}
