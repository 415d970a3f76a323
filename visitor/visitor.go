// Package visitor provides AST traversal: WalkFunc for inspection and
// RewriteTables for copy-on-write table-reference replacement.
package visitor

import "github.com/vjrajchauhan/pivot-engine/ast"

// WalkFunc traverses the AST in pre-order, calling fn for each node.
// If fn returns false, the node's children are not visited.
func WalkFunc(node ast.Node, fn func(ast.Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	for _, child := range children(node) {
		WalkFunc(child, fn)
	}
}

func walkExprs(exprs []ast.Expr) []ast.Node {
	nodes := make([]ast.Node, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			nodes = append(nodes, e)
		}
	}
	return nodes
}

// children returns the direct child nodes of a node.
func children(node ast.Node) []ast.Node {
	var out []ast.Node
	add := func(n ast.Node) {
		switch v := n.(type) {
		case nil:
		case *ast.Literal:
			if v != nil {
				out = append(out, v)
			}
		default:
			if n != nil {
				out = append(out, n)
			}
		}
	}
	addExpr := func(e ast.Expr) {
		if e != nil {
			out = append(out, e)
		}
	}

	switch n := node.(type) {
	case *ast.SelectStmt:
		if n.With != nil {
			for _, cte := range n.With.CTEs {
				add(cte.Query)
			}
		}
		for _, c := range n.Columns {
			add(c)
		}
		add(n.From)
		addExpr(n.Where)
		if n.GroupBy != nil {
			out = append(out, walkExprs(n.GroupBy.Exprs)...)
			for _, set := range n.GroupBy.Sets {
				out = append(out, walkExprs(set)...)
			}
		}
		addExpr(n.Having)
		addExpr(n.Qualify)
		for _, w := range n.WindowDefs {
			if w.Spec != nil {
				out = append(out, walkExprs(w.Spec.PartitionBy)...)
				for _, o := range w.Spec.OrderBy {
					addExpr(o.Expr)
				}
			}
		}
		for _, o := range n.OrderBy {
			addExpr(o.Expr)
		}
		if n.Limit != nil {
			addExpr(n.Limit.Count)
			addExpr(n.Limit.Offset)
		}

	case *ast.SetOp:
		add(n.Left)
		add(n.Right)
		for _, o := range n.OrderBy {
			addExpr(o.Expr)
		}

	case *ast.InsertStmt:
		for _, row := range n.Rows {
			out = append(out, walkExprs(row)...)
		}
		add(n.Select)

	case *ast.UpdateStmt:
		for _, a := range n.Set {
			addExpr(a.Expr)
		}
		addExpr(n.Where)

	case *ast.DeleteStmt:
		addExpr(n.Where)

	case *ast.MergeStmt:
		add(n.Source)
		addExpr(n.On)
		for _, w := range n.Whens {
			addExpr(w.Cond)
			for _, a := range w.Set {
				addExpr(a.Expr)
			}
			out = append(out, walkExprs(w.Values)...)
		}

	case *ast.CreateTableStmt:
		add(n.As)

	case *ast.CreateViewStmt:
		add(n.Select)

	case *ast.ExplainStmt:
		add(n.Stmt)

	case *ast.AliasedExpr:
		addExpr(n.Expr)

	case *ast.AliasedTableExpr:
		add(n.Expr)

	case *ast.JoinExpr:
		add(n.Left)
		add(n.Right)
		addExpr(n.On)

	case *ast.ParenTableExpr:
		add(n.Expr)

	case *ast.PivotExpr:
		add(n.Source)
		addExpr(n.Agg)

	case *ast.UnpivotExpr:
		add(n.Source)

	case *ast.Subquery:
		add(n.Select)

	case *ast.BinaryExpr:
		addExpr(n.Left)
		addExpr(n.Right)

	case *ast.UnaryExpr:
		addExpr(n.Operand)

	case *ast.ParenExpr:
		addExpr(n.Expr)

	case *ast.FuncExpr:
		out = append(out, walkExprs(n.Args)...)
		if n.Over != nil {
			out = append(out, walkExprs(n.Over.PartitionBy)...)
			for _, o := range n.Over.OrderBy {
				addExpr(o.Expr)
			}
		}

	case *ast.CastExpr:
		addExpr(n.Expr)

	case *ast.CaseExpr:
		addExpr(n.Operand)
		for _, w := range n.Whens {
			addExpr(w.Cond)
			addExpr(w.Result)
		}
		addExpr(n.Else)

	case *ast.InExpr:
		addExpr(n.Expr)
		out = append(out, walkExprs(n.Values)...)
		if n.Select != nil {
			add(n.Select)
		}

	case *ast.BetweenExpr:
		addExpr(n.Expr)
		addExpr(n.Low)
		addExpr(n.High)

	case *ast.LikeExpr:
		addExpr(n.Expr)
		addExpr(n.Pattern)

	case *ast.IsExpr:
		addExpr(n.Expr)

	case *ast.DistinctFromExpr:
		addExpr(n.Left)
		addExpr(n.Right)

	case *ast.ExistsExpr:
		if n.Subquery != nil {
			add(n.Subquery)
		}

	case *ast.IntervalExpr:
		addExpr(n.Value)

	case *ast.ExtractExpr:
		addExpr(n.Source)

	case *ast.TrimExpr:
		addExpr(n.Expr)

	case *ast.SubstringExpr:
		addExpr(n.Expr)
		addExpr(n.From)
		addExpr(n.For)

	case *ast.PositionExpr:
		addExpr(n.Needle)
		addExpr(n.Haystack)
	}

	return out
}
