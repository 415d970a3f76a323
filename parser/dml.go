package parser

import (
	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/token"
)

func (p *Parser) parseInsert() ast.Statement {
	pos := p.cur.Pos
	stmt := &ast.InsertStmt{StartPos: pos}
	p.advance() // consume INSERT

	if !p.expect(token.INTO) {
		return nil
	}

	stmt.Table = p.parseTableName()
	if stmt.Table == nil {
		return nil
	}

	// Optional column list
	if p.curIs(token.LPAREN) && !p.peekIs(token.SELECT) && !p.peekIs(token.WITH) {
		stmt.Columns = p.parseColumnNameList()
	}

	switch {
	case p.curIs(token.VALUES):
		p.advance()
		stmt.Rows = p.parseValuesRows()
	case p.curIs(token.SELECT), p.curIs(token.WITH), p.curIs(token.LPAREN):
		stmt.Select = p.parseQuery()
	default:
		p.errorf("expected VALUES or SELECT in INSERT")
		return nil
	}

	stmt.EndPos = p.cur.Pos
	return stmt
}

func (p *Parser) parseValuesRows() [][]ast.Expr {
	var rows [][]ast.Expr
	for {
		if !p.expect(token.LPAREN) {
			return rows
		}

		var row []ast.Expr
		if !p.curIs(token.RPAREN) {
			row = p.parseExprList()
		}
		rows = append(rows, row)

		if !p.expect(token.RPAREN) {
			return rows
		}

		if !p.curIs(token.COMMA) {
			break
		}
		p.advance()
	}
	return rows
}

func (p *Parser) parseUpdate() ast.Statement {
	pos := p.cur.Pos
	stmt := &ast.UpdateStmt{StartPos: pos}
	p.advance() // consume UPDATE

	stmt.Table = p.parseTableName()
	if stmt.Table == nil {
		return nil
	}

	if !p.expect(token.SET) {
		return nil
	}

	stmt.Set = p.parseAssignments()
	if stmt.Set == nil {
		return nil
	}

	if p.curIs(token.WHERE) {
		p.advance()
		stmt.Where = p.parseExpr()
	}

	stmt.EndPos = p.cur.Pos
	return stmt
}

func (p *Parser) parseAssignments() []*ast.Assignment {
	var set []*ast.Assignment
	for {
		if !p.curIsIdent() {
			p.errorf("expected column name in SET")
			return nil
		}
		col := &ast.ColName{
			StartPos: p.cur.Pos,
			EndPos:   p.cur.Pos,
			Parts:    []string{p.curIdentValue()},
		}
		p.advance()

		if !p.expect(token.EQ) {
			return nil
		}

		expr := p.parseExpr()
		if expr == nil {
			return nil
		}
		set = append(set, &ast.Assignment{Column: col, Expr: expr})

		if !p.curIs(token.COMMA) {
			break
		}
		p.advance()
	}
	return set
}

func (p *Parser) parseDelete() ast.Statement {
	pos := p.cur.Pos
	stmt := &ast.DeleteStmt{StartPos: pos}
	p.advance() // consume DELETE

	if !p.expect(token.FROM) {
		return nil
	}

	stmt.Table = p.parseTableName()
	if stmt.Table == nil {
		return nil
	}

	if p.curIs(token.WHERE) {
		p.advance()
		stmt.Where = p.parseExpr()
	}

	stmt.EndPos = p.cur.Pos
	return stmt
}

func (p *Parser) parseMerge() ast.Statement {
	pos := p.cur.Pos
	stmt := &ast.MergeStmt{StartPos: pos}
	p.advance() // consume MERGE

	if !p.expect(token.INTO) {
		return nil
	}

	stmt.Target = p.parseTableName()
	if stmt.Target == nil {
		return nil
	}

	// Optional target alias
	if p.curIs(token.AS) {
		p.advance()
		if !p.curIs(token.IDENT) {
			p.errorf("expected alias after AS")
			return nil
		}
		stmt.Alias = p.cur.Value
		p.advance()
	} else if p.curIs(token.IDENT) {
		stmt.Alias = p.cur.Value
		p.advance()
	}

	if !p.expect(token.USING) {
		return nil
	}

	stmt.Source = p.parseTablePrimary()
	if stmt.Source == nil {
		return nil
	}

	if !p.expect(token.ON) {
		return nil
	}

	stmt.On = p.parseExpr()
	if stmt.On == nil {
		return nil
	}

	for p.curIs(token.WHEN) {
		when := p.parseMergeWhen()
		if when == nil {
			return nil
		}
		stmt.Whens = append(stmt.Whens, when)
	}

	if len(stmt.Whens) == 0 {
		p.errorf("expected at least one WHEN clause in MERGE")
		return nil
	}

	stmt.EndPos = p.cur.Pos
	return stmt
}

func (p *Parser) parseMergeWhen() *ast.MergeWhen {
	p.advance() // consume WHEN

	when := &ast.MergeWhen{}

	if p.curIs(token.NOT) {
		p.advance()
		if !p.expect(token.MATCHED) {
			return nil
		}
	} else {
		if !p.expect(token.MATCHED) {
			return nil
		}
		when.Matched = true
	}

	if p.curIs(token.AND) {
		p.advance()
		when.Cond = p.parseExpr()
		if when.Cond == nil {
			return nil
		}
	}

	if !p.expect(token.THEN) {
		return nil
	}

	switch p.cur.Type {
	case token.UPDATE:
		if !when.Matched {
			p.errorf("UPDATE requires WHEN MATCHED")
			return nil
		}
		p.advance()
		if !p.expect(token.SET) {
			return nil
		}
		when.Action = ast.MergeUpdate
		when.Set = p.parseAssignments()
		if when.Set == nil {
			return nil
		}

	case token.DELETE:
		if !when.Matched {
			p.errorf("DELETE requires WHEN MATCHED")
			return nil
		}
		p.advance()
		when.Action = ast.MergeDelete

	case token.INSERT:
		if when.Matched {
			p.errorf("INSERT requires WHEN NOT MATCHED")
			return nil
		}
		p.advance()
		when.Action = ast.MergeInsert
		if p.curIs(token.LPAREN) {
			when.Columns = p.parseColumnNameList()
		}
		if !p.expect(token.VALUES) {
			return nil
		}
		if !p.expect(token.LPAREN) {
			return nil
		}
		when.Values = p.parseExprList()
		if !p.expect(token.RPAREN) {
			return nil
		}

	default:
		p.errorf("expected UPDATE, DELETE, or INSERT in MERGE WHEN clause")
		return nil
	}

	return when
}
