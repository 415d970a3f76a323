package parser

import (
	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/token"
)

// parseQuery parses a full query expression: an optional WITH clause, a
// set-operation chain of SELECT blocks, and trailing ORDER BY / LIMIT
// clauses that apply to the whole chain.
func (p *Parser) parseQuery() ast.Statement {
	var with *ast.WithClause
	if p.curIs(token.WITH) {
		with = p.parseWithClause()
	}

	stmt := p.parseSetOps(0)
	if stmt == nil {
		return nil
	}

	var orderBy []*ast.OrderByExpr
	var limit *ast.Limit
	if p.curIs(token.ORDER) {
		orderBy = p.parseOrderBy()
	}
	if p.curIs(token.LIMIT) {
		limit = p.parseLimit()
	} else if p.curIs(token.OFFSET) {
		limit = &ast.Limit{StartPos: p.cur.Pos}
		p.advance()
		limit.Offset = p.parseExpr()
		if p.curIs(token.ROW) || p.curIs(token.ROWS) {
			p.advance()
		}
		limit.EndPos = p.cur.Pos
	}

	switch s := stmt.(type) {
	case *ast.SelectStmt:
		if with != nil {
			s.With = with
		}
		if orderBy != nil {
			s.OrderBy = orderBy
		}
		if limit != nil {
			s.Limit = limit
		}
	case *ast.SetOp:
		s.With = with
		s.OrderBy = orderBy
		s.Limit = limit
	}
	return stmt
}

// setOpPrec returns the binding strength of a set operator.
// INTERSECT binds tighter than UNION and EXCEPT.
func setOpPrec(t token.Token) int {
	switch t {
	case token.UNION, token.EXCEPT:
		return 1
	case token.INTERSECT:
		return 2
	default:
		return 0
	}
}

// parseSetOps parses a left-associative set-operation chain with
// precedence climbing.
func (p *Parser) parseSetOps(minPrec int) ast.Statement {
	left := p.parseQueryOperand()
	if left == nil {
		return nil
	}

	for {
		prec := setOpPrec(p.cur.Type)
		if prec == 0 || prec < minPrec {
			return left
		}

		op := &ast.SetOp{StartPos: p.cur.Pos, Left: left}
		switch p.cur.Type {
		case token.UNION:
			op.Type = ast.Union
		case token.INTERSECT:
			op.Type = ast.Intersect
		case token.EXCEPT:
			op.Type = ast.Except
		}
		p.advance()

		if p.curIs(token.ALL) {
			op.All = true
			p.advance()
		} else if p.curIs(token.DISTINCT) {
			p.advance()
		}

		op.Right = p.parseSetOps(prec + 1)
		if op.Right == nil {
			return nil
		}
		op.EndPos = p.cur.Pos
		left = op
	}
}

func (p *Parser) parseQueryOperand() ast.Statement {
	switch p.cur.Type {
	case token.LPAREN:
		p.advance()
		inner := p.parseQuery()
		if inner == nil {
			return nil
		}
		if !p.expect(token.RPAREN) {
			return nil
		}
		return inner
	case token.SELECT:
		return p.parseSelectCore()
	default:
		p.errorf("expected SELECT, got %v", p.cur.Type)
		return nil
	}
}

// parseSelectCore parses one SELECT block up to (not including) any
// set operators or the trailing ORDER BY / LIMIT.
func (p *Parser) parseSelectCore() *ast.SelectStmt {
	pos := p.cur.Pos
	if !p.expect(token.SELECT) {
		return nil
	}

	stmt := &ast.SelectStmt{StartPos: pos}

	// Check for DISTINCT/ALL
	if p.curIs(token.DISTINCT) {
		stmt.Distinct = true
		p.advance()
	} else if p.curIs(token.ALL) {
		p.advance()
	}

	// Parse select expressions
	stmt.Columns = p.parseSelectExprs()

	// FROM clause (optional for things like SELECT 1+1)
	if p.curIs(token.FROM) {
		p.advance()
		stmt.From = p.parseTableExpr()
	}

	// WHERE clause
	if p.curIs(token.WHERE) {
		p.advance()
		stmt.Where = p.parseExpr()
	}

	// GROUP BY clause
	if p.curIs(token.GROUP) {
		p.advance()
		if !p.expect(token.BY) {
			return nil
		}
		stmt.GroupBy = p.parseGroupBy()
	}

	// HAVING clause
	if p.curIs(token.HAVING) {
		p.advance()
		stmt.Having = p.parseExpr()
	}

	// WINDOW clause
	if p.curIs(token.WINDOW) {
		stmt.WindowDefs = p.parseWindowDefs()
	}

	// QUALIFY clause
	if p.curIs(token.QUALIFY) {
		p.advance()
		stmt.Qualify = p.parseExpr()
	}

	stmt.EndPos = p.cur.Pos
	return stmt
}

func (p *Parser) parseSelectExprs() []ast.SelectExpr {
	var exprs []ast.SelectExpr
	for {
		expr := p.parseSelectExpr()
		if expr == nil {
			break
		}
		exprs = append(exprs, expr)
		if !p.curIs(token.COMMA) {
			break
		}
		p.advance() // consume comma
	}
	return exprs
}

func (p *Parser) parseSelectExpr() ast.SelectExpr {
	p.skipComments()
	pos := p.cur.Pos

	// Check for *
	if p.curIs(token.ASTERISK) {
		p.advance()
		return &ast.StarExpr{StartPos: pos, EndPos: pos}
	}

	// Parse as expression with optional alias
	expr := p.parseExpr()
	if expr == nil {
		return nil
	}

	// table.* comes back from parseExpr as a StarExpr
	if star, ok := expr.(*ast.StarExpr); ok {
		return star
	}

	alias := ""
	if p.curIs(token.AS) {
		p.advance()
		if !p.curIs(token.IDENT) && !p.curIs(token.STRING) {
			p.errorf("expected alias after AS")
			return nil
		}
		alias = p.cur.Value
		p.advance()
	} else if p.curIs(token.IDENT) {
		alias = p.cur.Value
		p.advance()
	}

	return &ast.AliasedExpr{
		StartPos: pos,
		EndPos:   p.cur.Pos,
		Expr:     expr,
		Alias:    alias,
	}
}

// parseGroupBy parses the grouping clause after GROUP BY, covering the
// plain list, ROLLUP, CUBE, and GROUPING SETS forms.
func (p *Parser) parseGroupBy() *ast.GroupByClause {
	gb := &ast.GroupByClause{StartPos: p.cur.Pos}

	switch p.cur.Type {
	case token.ROLLUP:
		gb.Mode = ast.GroupByRollup
		p.advance()
		if !p.expect(token.LPAREN) {
			return nil
		}
		gb.Exprs = p.parseExprList()
		p.expect(token.RPAREN)

	case token.CUBE:
		gb.Mode = ast.GroupByCube
		p.advance()
		if !p.expect(token.LPAREN) {
			return nil
		}
		gb.Exprs = p.parseExprList()
		p.expect(token.RPAREN)

	case token.GROUPING:
		gb.Mode = ast.GroupBySets
		p.advance()
		if !p.expect(token.SETS) {
			return nil
		}
		if !p.expect(token.LPAREN) {
			return nil
		}
		for {
			if p.curIs(token.LPAREN) {
				p.advance()
				var set []ast.Expr
				if !p.curIs(token.RPAREN) {
					set = p.parseExprList()
				}
				p.expect(token.RPAREN)
				gb.Sets = append(gb.Sets, set)
			} else {
				// Bare expression is a one-element grouping set
				e := p.parseExpr()
				if e == nil {
					return nil
				}
				gb.Sets = append(gb.Sets, []ast.Expr{e})
			}
			if !p.curIs(token.COMMA) {
				break
			}
			p.advance()
		}
		p.expect(token.RPAREN)

	default:
		gb.Mode = ast.GroupByPlain
		gb.Exprs = p.parseExprList()
	}

	gb.EndPos = p.cur.Pos
	return gb
}

// FROM clause

func (p *Parser) parseTableExpr() ast.TableExpr {
	left := p.parseTablePrimary()
	if left == nil {
		return nil
	}

	for {
		join := p.parseJoinPrefix()
		if join == nil {
			break
		}
		join.Left = left

		join.Right = p.parseTablePrimary()
		if join.Right == nil {
			return nil
		}

		// ON or USING clause (not for CROSS JOIN or NATURAL JOIN)
		if join.Type != ast.JoinCross && !join.Natural {
			if p.curIs(token.ON) {
				p.advance()
				join.On = p.parseExpr()
			} else if p.curIs(token.USING) {
				p.advance()
				if !p.curIs(token.LPAREN) {
					p.errorf("expected column list after USING")
					return nil
				}
				join.Using = p.parseColumnNameList()
			}
		}

		join.EndPos = p.cur.Pos
		left = join
	}

	return left
}

// parseJoinPrefix consumes the join keywords at the current position and
// returns a partially filled JoinExpr, or nil if no join follows.
func (p *Parser) parseJoinPrefix() *ast.JoinExpr {
	join := &ast.JoinExpr{StartPos: p.cur.Pos}

	if p.curIs(token.COMMA) {
		p.advance()
		join.Type = ast.JoinCross
		return join
	}

	if p.curIs(token.NATURAL) {
		join.Natural = true
		p.advance()
	}

	switch p.cur.Type {
	case token.JOIN:
		join.Type = ast.JoinInner
		p.advance()
	case token.INNER:
		join.Type = ast.JoinInner
		p.advance()
		if !p.expect(token.JOIN) {
			return nil
		}
	case token.LEFT:
		join.Type = ast.JoinLeft
		p.advance()
		if p.curIs(token.OUTER) {
			p.advance()
		}
		if !p.expect(token.JOIN) {
			return nil
		}
	case token.RIGHT:
		join.Type = ast.JoinRight
		p.advance()
		if p.curIs(token.OUTER) {
			p.advance()
		}
		if !p.expect(token.JOIN) {
			return nil
		}
	case token.FULL:
		join.Type = ast.JoinFull
		p.advance()
		if p.curIs(token.OUTER) {
			p.advance()
		}
		if !p.expect(token.JOIN) {
			return nil
		}
	case token.CROSS:
		if join.Natural {
			p.errorf("NATURAL cannot be combined with CROSS JOIN")
			return nil
		}
		join.Type = ast.JoinCross
		p.advance()
		if !p.expect(token.JOIN) {
			return nil
		}
	default:
		if join.Natural {
			p.errorf("expected join after NATURAL")
		}
		return nil
	}

	return join
}

func (p *Parser) parseTablePrimary() ast.TableExpr {
	var expr ast.TableExpr

	if p.curIs(token.LPAREN) {
		pos := p.cur.Pos
		p.advance()
		if p.curIs(token.SELECT) || p.curIs(token.WITH) {
			// Derived table (subquery)
			stmt := p.parseQuery()
			if stmt == nil {
				return nil
			}
			if !p.expect(token.RPAREN) {
				return nil
			}
			expr = &ast.Subquery{StartPos: pos, EndPos: p.cur.Pos, Select: stmt}
		} else {
			// Parenthesized table expression
			inner := p.parseTableExpr()
			if !p.expect(token.RPAREN) {
				return nil
			}
			expr = &ast.ParenTableExpr{StartPos: pos, EndPos: p.cur.Pos, Expr: inner}
		}
	} else if p.curIs(token.IDENT) {
		tn := p.parseTableName()
		if tn == nil {
			return nil
		}
		expr = tn
	} else {
		p.errorf("expected table name or subquery")
		return nil
	}

	// PIVOT / UNPIVOT suffix
	for p.curIs(token.PIVOT) || p.curIs(token.UNPIVOT) {
		if p.curIs(token.PIVOT) {
			expr = p.parsePivot(expr)
		} else {
			expr = p.parseUnpivot(expr)
		}
		if expr == nil {
			return nil
		}
	}

	// Optional alias
	alias := ""
	if p.curIs(token.AS) {
		p.advance()
		if !p.curIs(token.IDENT) {
			p.errorf("expected alias after AS")
			return nil
		}
		alias = p.cur.Value
		p.advance()
	} else if p.curIs(token.IDENT) {
		alias = p.cur.Value
		p.advance()
	}

	// Column alias list for derived tables
	var colAliases []string
	if alias != "" && p.curIs(token.LPAREN) {
		colAliases = p.parseColumnNameList()
	}

	if alias != "" {
		return &ast.AliasedTableExpr{
			StartPos:   expr.Pos(),
			EndPos:     p.cur.Pos,
			Expr:       expr,
			Alias:      alias,
			ColAliases: colAliases,
		}
	}

	return expr
}

func (p *Parser) parsePivot(src ast.TableExpr) ast.TableExpr {
	pe := &ast.PivotExpr{StartPos: p.cur.Pos, Source: src}
	p.advance() // consume PIVOT

	if !p.expect(token.LPAREN) {
		return nil
	}

	agg := p.parseExpr()
	fn, ok := agg.(*ast.FuncExpr)
	if !ok {
		p.errorf("expected aggregate call in PIVOT")
		return nil
	}
	pe.Agg = fn

	if !p.expect(token.FOR) {
		return nil
	}

	if !p.curIsIdent() {
		p.errorf("expected pivot key column")
		return nil
	}
	pe.Key = &ast.ColName{
		StartPos: p.cur.Pos,
		EndPos:   p.cur.Pos,
		Parts:    []string{p.curIdentValue()},
	}
	p.advance()

	if !p.expect(token.IN) {
		return nil
	}
	if !p.expect(token.LPAREN) {
		return nil
	}
	for {
		lit := p.parsePivotLiteral()
		if lit == nil {
			return nil
		}
		pe.In = append(pe.In, lit)
		if !p.curIs(token.COMMA) {
			break
		}
		p.advance()
	}
	if !p.expect(token.RPAREN) {
		return nil
	}
	if !p.expect(token.RPAREN) {
		return nil
	}

	pe.EndPos = p.cur.Pos
	return pe
}

func (p *Parser) parsePivotLiteral() *ast.Literal {
	pos := p.cur.Pos
	switch p.cur.Type {
	case token.STRING:
		lit := &ast.Literal{StartPos: pos, EndPos: pos, Type: ast.LiteralString, Value: p.cur.Value}
		p.advance()
		return lit
	case token.INT:
		lit := &ast.Literal{StartPos: pos, EndPos: pos, Type: ast.LiteralInt, Value: p.cur.Value}
		p.advance()
		return lit
	case token.FLOAT:
		lit := &ast.Literal{StartPos: pos, EndPos: pos, Type: ast.LiteralFloat, Value: p.cur.Value}
		p.advance()
		return lit
	default:
		p.errorf("expected literal in PIVOT IN list, got %v", p.cur.Type)
		return nil
	}
}

func (p *Parser) parseUnpivot(src ast.TableExpr) ast.TableExpr {
	ue := &ast.UnpivotExpr{StartPos: p.cur.Pos, Source: src}
	p.advance() // consume UNPIVOT

	if !p.expect(token.LPAREN) {
		return nil
	}

	if !p.curIsIdent() {
		p.errorf("expected value column name")
		return nil
	}
	ue.ValueCol = p.curIdentValue()
	p.advance()

	if !p.expect(token.FOR) {
		return nil
	}

	if !p.curIsIdent() {
		p.errorf("expected key column name")
		return nil
	}
	ue.KeyCol = p.curIdentValue()
	p.advance()

	if !p.expect(token.IN) {
		return nil
	}
	if !p.curIs(token.LPAREN) {
		p.errorf("expected column list after IN")
		return nil
	}
	ue.Columns = p.parseColumnNameList()
	if !p.expect(token.RPAREN) {
		return nil
	}

	ue.EndPos = p.cur.Pos
	return ue
}

// ORDER BY / LIMIT

func (p *Parser) parseOrderBy() []*ast.OrderByExpr {
	p.advance() // consume ORDER
	if !p.expect(token.BY) {
		return nil
	}

	var items []*ast.OrderByExpr
	for {
		pos := p.cur.Pos
		expr := p.parseExpr()
		if expr == nil {
			break
		}

		item := &ast.OrderByExpr{StartPos: pos, Expr: expr}

		if p.curIs(token.ASC) {
			p.advance()
		} else if p.curIs(token.DESC) {
			item.Desc = true
			p.advance()
		}

		// NULLS FIRST/LAST
		if p.curIs(token.NULLS) {
			p.advance()
			if p.curIs(token.FIRST) {
				t := true
				item.NullsFirst = &t
				p.advance()
			} else if p.curIs(token.LAST) {
				f := false
				item.NullsFirst = &f
				p.advance()
			} else {
				p.errorf("expected FIRST or LAST after NULLS")
			}
		}

		item.EndPos = p.cur.Pos
		items = append(items, item)

		if !p.curIs(token.COMMA) {
			break
		}
		p.advance()
	}

	return items
}

func (p *Parser) parseLimit() *ast.Limit {
	pos := p.cur.Pos
	p.advance() // consume LIMIT

	limit := &ast.Limit{StartPos: pos}
	limit.Count = p.parseExpr()

	if p.curIs(token.OFFSET) {
		p.advance()
		limit.Offset = p.parseExpr()
	}

	limit.EndPos = p.cur.Pos
	return limit
}

// WINDOW clause

func (p *Parser) parseWindowDefs() []*ast.WindowDef {
	p.advance() // consume WINDOW

	var defs []*ast.WindowDef
	for {
		if !p.curIs(token.IDENT) {
			break
		}

		def := &ast.WindowDef{Name: p.cur.Value}
		p.advance()

		if !p.expect(token.AS) {
			break
		}

		def.Spec = p.parseWindowSpecBody()
		defs = append(defs, def)

		if !p.curIs(token.COMMA) {
			break
		}
		p.advance()
	}

	return defs
}

func (p *Parser) parseWindowSpec() *ast.WindowSpec {
	p.advance() // consume OVER

	// OVER window_name
	if p.curIs(token.IDENT) {
		spec := &ast.WindowSpec{StartPos: p.cur.Pos, Name: p.cur.Value}
		p.advance()
		spec.EndPos = p.cur.Pos
		return spec
	}

	return p.parseWindowSpecBody()
}

func (p *Parser) parseWindowSpecBody() *ast.WindowSpec {
	pos := p.cur.Pos
	if !p.expect(token.LPAREN) {
		return nil
	}

	spec := &ast.WindowSpec{StartPos: pos}

	// PARTITION BY
	if p.curIs(token.PARTITION) {
		p.advance()
		if !p.expect(token.BY) {
			return nil
		}
		spec.PartitionBy = p.parseExprList()
	}

	// ORDER BY
	if p.curIs(token.ORDER) {
		spec.OrderBy = p.parseOrderBy()
	}

	// Frame clause
	if p.curIs(token.ROWS) || p.curIs(token.RANGE) {
		spec.Frame = p.parseWindowFrame()
	}

	p.expect(token.RPAREN)
	spec.EndPos = p.cur.Pos
	return spec
}

func (p *Parser) parseWindowFrame() *ast.WindowFrame {
	frame := &ast.WindowFrame{}

	if p.curIs(token.RANGE) {
		frame.Type = ast.FrameRange
	} else {
		frame.Type = ast.FrameRows
	}
	p.advance()

	if p.curIs(token.BETWEEN) {
		p.advance()
		frame.Start = p.parseFrameBound()
		if !p.expect(token.AND) {
			return nil
		}
		frame.End = p.parseFrameBound()
	} else {
		frame.Start = p.parseFrameBound()
	}

	return frame
}

func (p *Parser) parseFrameBound() *ast.FrameBound {
	bound := &ast.FrameBound{}

	if p.curIs(token.CURRENT) {
		p.advance()
		p.expect(token.ROW)
		bound.Type = ast.BoundCurrentRow
	} else if p.curIs(token.UNBOUNDED) {
		p.advance()
		if p.curIs(token.PRECEDING) {
			p.advance()
			bound.Type = ast.BoundUnboundedPreceding
		} else if p.curIs(token.FOLLOWING) {
			p.advance()
			bound.Type = ast.BoundUnboundedFollowing
		} else {
			p.errorf("expected PRECEDING or FOLLOWING after UNBOUNDED")
		}
	} else {
		bound.Offset = p.parseExpr()
		if p.curIs(token.PRECEDING) {
			p.advance()
			bound.Type = ast.BoundPreceding
		} else if p.curIs(token.FOLLOWING) {
			p.advance()
			bound.Type = ast.BoundFollowing
		} else {
			p.errorf("expected PRECEDING or FOLLOWING in frame bound")
		}
	}

	return bound
}
