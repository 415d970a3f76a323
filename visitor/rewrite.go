package visitor

import "github.com/vjrajchauhan/pivot-engine/ast"

// RewriteTables rewrites the table references of a query statement,
// copy-on-write: shared subtrees are only duplicated along changed
// paths, so rewriting never mutates its input. The engine uses it to
// substitute CTE bodies and view definitions for the names that
// reference them. References are found in FROM clauses and in
// subqueries under the select list, WHERE, HAVING, QUALIFY, GROUP BY,
// ORDER BY, and join conditions; WITH clauses, window specifications,
// LIMIT/OFFSET, a set operation's ORDER BY, and the operands of
// EXTRACT, TRIM, SUBSTRING, POSITION, and INTERVAL are not searched.
func RewriteTables(stmt ast.Statement, fn func(*ast.TableName) ast.TableExpr) ast.Statement {
	out, _ := rewriteStmt(stmt, fn)
	return out
}

func rewriteStmt(stmt ast.Statement, fn func(*ast.TableName) ast.TableExpr) (ast.Statement, bool) {
	switch s := stmt.(type) {
	case *ast.SelectStmt:
		changed := false
		cp := *s

		if s.From != nil {
			if from, ch := rewriteTableExpr(s.From, fn); ch {
				cp.From = from
				changed = true
			}
		}
		if cols, ch := rewriteSelectExprs(s.Columns, fn); ch {
			cp.Columns = cols
			changed = true
		}
		if w, ch := rewriteExpr(s.Where, fn); ch {
			cp.Where = w
			changed = true
		}
		if h, ch := rewriteExpr(s.Having, fn); ch {
			cp.Having = h
			changed = true
		}
		if q, ch := rewriteExpr(s.Qualify, fn); ch {
			cp.Qualify = q
			changed = true
		}
		if s.GroupBy != nil {
			gb := *s.GroupBy
			gbChanged := false
			if exprs, ch := rewriteExprs(s.GroupBy.Exprs, fn); ch {
				gb.Exprs = exprs
				gbChanged = true
			}
			if len(s.GroupBy.Sets) > 0 {
				sets := make([][]ast.Expr, len(s.GroupBy.Sets))
				setsChanged := false
				for i, set := range s.GroupBy.Sets {
					if exprs, ch := rewriteExprs(set, fn); ch {
						sets[i] = exprs
						setsChanged = true
					} else {
						sets[i] = set
					}
				}
				if setsChanged {
					gb.Sets = sets
					gbChanged = true
				}
			}
			if gbChanged {
				cp.GroupBy = &gb
				changed = true
			}
		}
		if ob, ch := rewriteOrderBy(s.OrderBy, fn); ch {
			cp.OrderBy = ob
			changed = true
		}

		if changed {
			return &cp, true
		}
		return s, false

	case *ast.SetOp:
		left, lch := rewriteStmt(s.Left, fn)
		right, rch := rewriteStmt(s.Right, fn)
		if lch || rch {
			cp := *s
			cp.Left = left
			cp.Right = right
			return &cp, true
		}
		return s, false

	default:
		return stmt, false
	}
}

func rewriteTableExpr(te ast.TableExpr, fn func(*ast.TableName) ast.TableExpr) (ast.TableExpr, bool) {
	switch t := te.(type) {
	case *ast.TableName:
		if repl := fn(t); repl != nil {
			return repl, true
		}
		return t, false

	case *ast.AliasedTableExpr:
		if inner, ch := rewriteTableExpr(t.Expr, fn); ch {
			cp := *t
			cp.Expr = inner
			return &cp, true
		}
		return t, false

	case *ast.ParenTableExpr:
		if inner, ch := rewriteTableExpr(t.Expr, fn); ch {
			cp := *t
			cp.Expr = inner
			return &cp, true
		}
		return t, false

	case *ast.JoinExpr:
		left, lch := rewriteTableExpr(t.Left, fn)
		right, rch := rewriteTableExpr(t.Right, fn)
		on, och := rewriteExpr(t.On, fn)
		if lch || rch || och {
			cp := *t
			cp.Left = left
			cp.Right = right
			cp.On = on
			return &cp, true
		}
		return t, false

	case *ast.PivotExpr:
		if src, ch := rewriteTableExpr(t.Source, fn); ch {
			cp := *t
			cp.Source = src
			return &cp, true
		}
		return t, false

	case *ast.UnpivotExpr:
		if src, ch := rewriteTableExpr(t.Source, fn); ch {
			cp := *t
			cp.Source = src
			return &cp, true
		}
		return t, false

	case *ast.Subquery:
		if inner, ch := rewriteStmt(t.Select, fn); ch {
			cp := *t
			cp.Select = inner
			return &cp, true
		}
		return t, false

	default:
		return te, false
	}
}

func rewriteSelectExprs(items []ast.SelectExpr, fn func(*ast.TableName) ast.TableExpr) ([]ast.SelectExpr, bool) {
	changed := false
	out := make([]ast.SelectExpr, len(items))
	for i, item := range items {
		out[i] = item
		if ae, ok := item.(*ast.AliasedExpr); ok {
			if e, ch := rewriteExpr(ae.Expr, fn); ch {
				cp := *ae
				cp.Expr = e
				out[i] = &cp
				changed = true
			}
		}
	}
	if changed {
		return out, true
	}
	return items, false
}

func rewriteExprs(exprs []ast.Expr, fn func(*ast.TableName) ast.TableExpr) ([]ast.Expr, bool) {
	changed := false
	out := make([]ast.Expr, len(exprs))
	for i, e := range exprs {
		var ch bool
		out[i], ch = rewriteExpr(e, fn)
		changed = changed || ch
	}
	if changed {
		return out, true
	}
	return exprs, false
}

func rewriteOrderBy(items []*ast.OrderByExpr, fn func(*ast.TableName) ast.TableExpr) ([]*ast.OrderByExpr, bool) {
	changed := false
	out := make([]*ast.OrderByExpr, len(items))
	for i, o := range items {
		out[i] = o
		if e, ch := rewriteExpr(o.Expr, fn); ch {
			cp := *o
			cp.Expr = e
			out[i] = &cp
			changed = true
		}
	}
	if changed {
		return out, true
	}
	return items, false
}

// rewriteExpr descends into expressions only far enough to reach
// embedded subqueries; plain scalar structure is shared as-is.
func rewriteExpr(e ast.Expr, fn func(*ast.TableName) ast.TableExpr) (ast.Expr, bool) {
	switch ex := e.(type) {
	case nil:
		return nil, false

	case *ast.Subquery:
		if inner, ch := rewriteStmt(ex.Select, fn); ch {
			cp := *ex
			cp.Select = inner
			return &cp, true
		}
		return ex, false

	case *ast.ExistsExpr:
		if ex.Subquery == nil {
			return ex, false
		}
		if inner, ch := rewriteStmt(ex.Subquery.Select, fn); ch {
			sq := *ex.Subquery
			sq.Select = inner
			cp := *ex
			cp.Subquery = &sq
			return &cp, true
		}
		return ex, false

	case *ast.InExpr:
		cp := *ex
		changed := false
		if inner, ch := rewriteExpr(ex.Expr, fn); ch {
			cp.Expr = inner
			changed = true
		}
		if vals, ch := rewriteExprs(ex.Values, fn); ch {
			cp.Values = vals
			changed = true
		}
		if ex.Select != nil {
			if inner, ch := rewriteStmt(ex.Select, fn); ch {
				cp.Select = inner.(*ast.SelectStmt)
				changed = true
			}
		}
		if changed {
			return &cp, true
		}
		return ex, false

	case *ast.BinaryExpr:
		left, lch := rewriteExpr(ex.Left, fn)
		right, rch := rewriteExpr(ex.Right, fn)
		if lch || rch {
			cp := *ex
			cp.Left = left
			cp.Right = right
			return &cp, true
		}
		return ex, false

	case *ast.UnaryExpr:
		if inner, ch := rewriteExpr(ex.Operand, fn); ch {
			cp := *ex
			cp.Operand = inner
			return &cp, true
		}
		return ex, false

	case *ast.ParenExpr:
		if inner, ch := rewriteExpr(ex.Expr, fn); ch {
			cp := *ex
			cp.Expr = inner
			return &cp, true
		}
		return ex, false

	case *ast.FuncExpr:
		if args, ch := rewriteExprs(ex.Args, fn); ch {
			cp := *ex
			cp.Args = args
			return &cp, true
		}
		return ex, false

	case *ast.CastExpr:
		if inner, ch := rewriteExpr(ex.Expr, fn); ch {
			cp := *ex
			cp.Expr = inner
			return &cp, true
		}
		return ex, false

	case *ast.CaseExpr:
		cp := *ex
		changed := false
		if op, ch := rewriteExpr(ex.Operand, fn); ch {
			cp.Operand = op
			changed = true
		}
		whens := make([]*ast.When, len(ex.Whens))
		whensChanged := false
		for i, w := range ex.Whens {
			cond, cch := rewriteExpr(w.Cond, fn)
			res, rch := rewriteExpr(w.Result, fn)
			if cch || rch {
				whens[i] = &ast.When{Cond: cond, Result: res}
				whensChanged = true
			} else {
				whens[i] = w
			}
		}
		if whensChanged {
			cp.Whens = whens
			changed = true
		}
		if els, ch := rewriteExpr(ex.Else, fn); ch {
			cp.Else = els
			changed = true
		}
		if changed {
			return &cp, true
		}
		return ex, false

	case *ast.BetweenExpr:
		expr, ech := rewriteExpr(ex.Expr, fn)
		low, lch := rewriteExpr(ex.Low, fn)
		high, hch := rewriteExpr(ex.High, fn)
		if ech || lch || hch {
			cp := *ex
			cp.Expr = expr
			cp.Low = low
			cp.High = high
			return &cp, true
		}
		return ex, false

	case *ast.LikeExpr:
		expr, ech := rewriteExpr(ex.Expr, fn)
		pat, pch := rewriteExpr(ex.Pattern, fn)
		if ech || pch {
			cp := *ex
			cp.Expr = expr
			cp.Pattern = pat
			return &cp, true
		}
		return ex, false

	case *ast.IsExpr:
		if inner, ch := rewriteExpr(ex.Expr, fn); ch {
			cp := *ex
			cp.Expr = inner
			return &cp, true
		}
		return ex, false

	case *ast.DistinctFromExpr:
		left, lch := rewriteExpr(ex.Left, fn)
		right, rch := rewriteExpr(ex.Right, fn)
		if lch || rch {
			cp := *ex
			cp.Left = left
			cp.Right = right
			return &cp, true
		}
		return ex, false

	default:
		return e, false
	}
}
