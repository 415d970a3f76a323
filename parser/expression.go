package parser

import (
	"strings"

	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/token"
)

// Operator precedence levels (higher = tighter binding)
const (
	precLowest     = 0
	precOr         = 1 // OR
	precAnd        = 2 // AND
	precNot        = 3 // NOT (prefix)
	precComparison = 4 // =, <>, <, >, <=, >=, IS, LIKE, IN, BETWEEN
	precConcat     = 5 // ||
	precAdditive   = 6 // +, -
	precMultiply   = 7 // *, /, %
	precUnary      = 8 // -, +
	precCast       = 9 // :: (postfix)
)

// precedence returns the precedence of a binary operator.
func precedence(t token.Token) int {
	switch t {
	case token.OR:
		return precOr
	case token.AND:
		return precAnd
	case token.EQ, token.NEQ, token.LT, token.GT, token.LTE, token.GTE:
		return precComparison
	case token.CONCAT:
		return precConcat
	case token.PLUS, token.MINUS:
		return precAdditive
	case token.ASTERISK, token.SLASH, token.PERCENT:
		return precMultiply
	default:
		return precLowest
	}
}

func isBinaryOp(t token.Token) bool {
	switch t {
	case token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.PERCENT,
		token.EQ, token.NEQ, token.LT, token.GT, token.LTE, token.GTE,
		token.AND, token.OR, token.CONCAT:
		return true
	default:
		return false
	}
}

// parseExpr parses an expression using precedence climbing.
func (p *Parser) parseExpr() ast.Expr {
	return p.parseExprPrec(precLowest)
}

// parseExprPrec implements precedence climbing.
func (p *Parser) parseExprPrec(minPrec int) ast.Expr {
	left := p.parsePrimaryExpr()
	if left == nil {
		return nil
	}

	for {
		op := p.cur.Type

		// Postfix cast binds tightest
		if op == token.DCOLON {
			left = p.parsePostfixCast(left)
			if left == nil {
				return nil
			}
			continue
		}

		// Comparison-level special forms
		if minPrec <= precComparison {
			switch {
			case op == token.IS:
				left = p.parseIsExpr(left)
				if left == nil {
					return nil
				}
				continue
			case op == token.IN:
				left = p.parseInExpr(left, false)
				if left == nil {
					return nil
				}
				continue
			case op == token.BETWEEN:
				left = p.parseBetweenExpr(left, false)
				if left == nil {
					return nil
				}
				continue
			case op == token.LIKE:
				left = p.parseLikeExpr(left, false)
				if left == nil {
					return nil
				}
				continue
			case op == token.NOT:
				switch p.peek().Type {
				case token.IN:
					p.advance() // consume NOT
					left = p.parseInExpr(left, true)
				case token.BETWEEN:
					p.advance()
					left = p.parseBetweenExpr(left, true)
				case token.LIKE:
					p.advance()
					left = p.parseLikeExpr(left, true)
				default:
					return left
				}
				if left == nil {
					return nil
				}
				continue
			}
		}

		// Standard binary operators
		prec := precedence(op)
		if prec < minPrec || prec == precLowest {
			break
		}
		if !isBinaryOp(op) {
			break
		}

		pos := p.cur.Pos
		p.advance() // consume operator

		right := p.parseExprPrec(prec + 1)
		if right == nil {
			return nil
		}

		left = &ast.BinaryExpr{
			StartPos: pos,
			Op:       op,
			Left:     left,
			Right:    right,
		}
	}

	return left
}

// parsePrimaryExpr parses primary expressions (atoms and prefix operators).
func (p *Parser) parsePrimaryExpr() ast.Expr {
	p.skipComments()

	switch p.cur.Type {
	case token.INT:
		return p.parseLiteral(ast.LiteralInt)
	case token.FLOAT:
		return p.parseLiteral(ast.LiteralFloat)
	case token.STRING:
		return p.parseLiteral(ast.LiteralString)
	case token.NULL:
		pos := p.cur.Pos
		p.advance()
		return &ast.Literal{StartPos: pos, EndPos: pos, Type: ast.LiteralNull, Value: "NULL"}
	case token.TRUE:
		pos := p.cur.Pos
		p.advance()
		return &ast.Literal{StartPos: pos, EndPos: pos, Type: ast.LiteralBool, Value: "TRUE"}
	case token.FALSE:
		pos := p.cur.Pos
		p.advance()
		return &ast.Literal{StartPos: pos, EndPos: pos, Type: ast.LiteralBool, Value: "FALSE"}
	case token.DATE:
		if p.peekIs(token.STRING) {
			return p.parseTypedLiteral(ast.LiteralDate)
		}
		return p.parseIdentifierOrFunc()
	case token.TIMESTAMP:
		if p.peekIs(token.STRING) {
			return p.parseTypedLiteral(ast.LiteralTimestamp)
		}
		return p.parseIdentifierOrFunc()
	case token.TIME:
		if p.peekIs(token.STRING) {
			return p.parseTypedLiteral(ast.LiteralTime)
		}
		return p.parseIdentifierOrFunc()
	case token.INTERVAL:
		return p.parseIntervalExpr()
	case token.IDENT:
		return p.parseIdentifierOrFunc()
	case token.PARAM:
		p.errorf("bind parameters are not supported")
		return nil
	case token.LPAREN:
		return p.parseParenOrSubquery()
	case token.NOT:
		return p.parseNotExpr()
	case token.MINUS, token.PLUS:
		return p.parseUnarySign()
	case token.EXISTS:
		return p.parseExistsExpr()
	case token.CASE:
		return p.parseCaseExpr()
	case token.CAST:
		return p.parseCastExpr(false)
	case token.TRY_CAST:
		return p.parseCastExpr(true)
	case token.EXTRACT:
		return p.parseExtractExpr()
	case token.TRIM:
		return p.parseTrimExpr()
	case token.SUBSTRING:
		return p.parseSubstringExpr()
	case token.POSITION:
		return p.parsePositionExpr()
	case token.ASTERISK:
		pos := p.cur.Pos
		p.advance()
		return &ast.StarExpr{StartPos: pos, EndPos: pos}
	default:
		// A few keywords double as function names (LEFT(s, 2), ...)
		if p.cur.Type.IsKeyword() && p.peekIs(token.LPAREN) {
			switch p.cur.Type {
			case token.LEFT, token.RIGHT, token.REPLACE:
				return p.parseIdentifierOrFunc()
			}
		}
		p.errorf("unexpected token %v in expression", p.cur.Type)
		return nil
	}
}

func (p *Parser) parseLiteral(litType ast.LiteralType) *ast.Literal {
	lit := &ast.Literal{
		StartPos: p.cur.Pos,
		EndPos:   p.cur.Pos,
		Type:     litType,
		Value:    p.cur.Value,
	}
	p.advance()
	return lit
}

// parseTypedLiteral handles DATE '...', TIMESTAMP '...', TIME '...'.
func (p *Parser) parseTypedLiteral(litType ast.LiteralType) *ast.Literal {
	pos := p.cur.Pos
	p.advance() // consume type keyword
	lit := &ast.Literal{
		StartPos: pos,
		EndPos:   p.cur.Pos,
		Type:     litType,
		Value:    p.cur.Value,
	}
	p.advance() // consume string
	return lit
}

func (p *Parser) parseIdentifierOrFunc() ast.Expr {
	pos := p.cur.Pos
	name := p.cur.Value
	p.advance()

	// Function call
	if p.curIs(token.LPAREN) {
		return p.parseFuncCall(pos, name)
	}

	parts := []string{name}
	endPos := pos

	for p.curIs(token.DOT) {
		p.advance()

		// table.* (qualified star)
		if p.curIs(token.ASTERISK) {
			endPos = p.cur.Pos
			p.advance()
			return &ast.StarExpr{
				StartPos:  pos,
				EndPos:    endPos,
				TableName: parts[len(parts)-1],
			}
		}

		if !p.curIsIdent() {
			p.errorf("expected identifier after '.'")
			return nil
		}

		parts = append(parts, p.curIdentValue())
		endPos = p.cur.Pos
		p.advance()
	}

	return &ast.ColName{
		StartPos: pos,
		EndPos:   endPos,
		Parts:    parts,
	}
}

func (p *Parser) parseFuncCall(pos token.Pos, name string) ast.Expr {
	p.advance() // consume '('

	fn := &ast.FuncExpr{
		StartPos: pos,
		Name:     strings.ToUpper(name),
	}

	if p.curIs(token.DISTINCT) {
		fn.Distinct = true
		p.advance()
	}

	if !p.curIs(token.RPAREN) {
		if p.curIs(token.ASTERISK) {
			// COUNT(*)
			fn.Star = true
			p.advance()
		} else {
			for {
				arg := p.parseExpr()
				if arg == nil {
					return nil
				}
				fn.Args = append(fn.Args, arg)
				if !p.curIs(token.COMMA) {
					break
				}
				p.advance() // consume comma
			}
		}
	}

	if !p.expect(token.RPAREN) {
		return nil
	}
	fn.EndPos = p.cur.Pos

	// OVER clause (window function)
	if p.curIs(token.OVER) {
		fn.Over = p.parseWindowSpec()
		if fn.Over == nil {
			return nil
		}
	}

	return fn
}

func (p *Parser) parseParenOrSubquery() ast.Expr {
	pos := p.cur.Pos
	p.advance() // consume '('

	// Scalar subquery
	if p.curIs(token.SELECT) || p.curIs(token.WITH) {
		stmt := p.parseQuery()
		if stmt == nil {
			return nil
		}
		if !p.expect(token.RPAREN) {
			return nil
		}
		return &ast.Subquery{StartPos: pos, EndPos: p.cur.Pos, Select: stmt}
	}

	expr := p.parseExpr()
	if !p.expect(token.RPAREN) {
		return nil
	}
	return &ast.ParenExpr{StartPos: pos, EndPos: p.cur.Pos, Expr: expr}
}

func (p *Parser) parseNotExpr() ast.Expr {
	pos := p.cur.Pos
	p.advance() // consume NOT

	operand := p.parseExprPrec(precNot)
	if operand == nil {
		return nil
	}
	return &ast.UnaryExpr{
		StartPos: pos,
		EndPos:   operand.End(),
		Op:       token.NOT,
		Operand:  operand,
	}
}

func (p *Parser) parseUnarySign() ast.Expr {
	pos := p.cur.Pos
	op := p.cur.Type
	p.advance()

	operand := p.parseExprPrec(precUnary)
	if operand == nil {
		return nil
	}
	return &ast.UnaryExpr{
		StartPos: pos,
		EndPos:   operand.End(),
		Op:       op,
		Operand:  operand,
	}
}

func (p *Parser) parseExistsExpr() ast.Expr {
	pos := p.cur.Pos
	p.advance() // consume EXISTS

	if !p.expect(token.LPAREN) {
		return nil
	}

	stmt := p.parseQuery()
	if stmt == nil {
		return nil
	}

	if !p.expect(token.RPAREN) {
		return nil
	}

	return &ast.ExistsExpr{
		StartPos: pos,
		EndPos:   p.cur.Pos,
		Subquery: &ast.Subquery{Select: stmt},
	}
}

func (p *Parser) parseCaseExpr() ast.Expr {
	pos := p.cur.Pos
	p.advance() // consume CASE

	caseExpr := &ast.CaseExpr{StartPos: pos}

	// Simple CASE (CASE expr WHEN ...)
	if !p.curIs(token.WHEN) {
		caseExpr.Operand = p.parseExpr()
	}

	for p.curIs(token.WHEN) {
		p.advance() // consume WHEN
		cond := p.parseExpr()
		if !p.expect(token.THEN) {
			return nil
		}
		result := p.parseExpr()
		caseExpr.Whens = append(caseExpr.Whens, &ast.When{
			Cond:   cond,
			Result: result,
		})
	}

	if len(caseExpr.Whens) == 0 {
		p.errorf("expected WHEN in CASE expression")
		return nil
	}

	if p.curIs(token.ELSE) {
		p.advance()
		caseExpr.Else = p.parseExpr()
	}

	if !p.expect(token.END) {
		return nil
	}

	caseExpr.EndPos = p.cur.Pos
	return caseExpr
}

func (p *Parser) parseCastExpr(try bool) ast.Expr {
	pos := p.cur.Pos
	p.advance() // consume CAST or TRY_CAST

	if !p.expect(token.LPAREN) {
		return nil
	}

	expr := p.parseExpr()

	if !p.expect(token.AS) {
		return nil
	}

	dataType := p.parseDataType()

	if !p.expect(token.RPAREN) {
		return nil
	}

	return &ast.CastExpr{
		StartPos: pos,
		EndPos:   p.cur.Pos,
		Expr:     expr,
		Type:     dataType,
		Try:      try,
	}
}

func (p *Parser) parsePostfixCast(left ast.Expr) ast.Expr {
	p.advance() // consume ::
	dataType := p.parseDataType()

	return &ast.CastExpr{
		StartPos: left.Pos(),
		EndPos:   p.cur.Pos,
		Expr:     left,
		Type:     dataType,
	}
}

func (p *Parser) parseIntervalExpr() ast.Expr {
	pos := p.cur.Pos
	p.advance() // consume INTERVAL

	expr := &ast.IntervalExpr{StartPos: pos}
	expr.Value = p.parsePrimaryExpr()

	if p.cur.Type.IsKeyword() || p.curIs(token.IDENT) {
		expr.Unit = strings.ToUpper(p.cur.Value)
		p.advance()
	}

	expr.EndPos = p.cur.Pos
	return expr
}

func (p *Parser) parseExtractExpr() ast.Expr {
	pos := p.cur.Pos
	p.advance() // consume EXTRACT

	if !p.expect(token.LPAREN) {
		return nil
	}

	expr := &ast.ExtractExpr{StartPos: pos}

	if p.cur.Type.IsKeyword() || p.curIs(token.IDENT) {
		expr.Field = strings.ToUpper(p.cur.Value)
		p.advance()
	} else {
		p.errorf("expected field name in EXTRACT")
		return nil
	}

	if !p.expect(token.FROM) {
		return nil
	}

	expr.Source = p.parseExpr()

	if !p.expect(token.RPAREN) {
		return nil
	}

	expr.EndPos = p.cur.Pos
	return expr
}

func (p *Parser) parseTrimExpr() ast.Expr {
	pos := p.cur.Pos
	p.advance() // consume TRIM

	if !p.expect(token.LPAREN) {
		return nil
	}

	expr := &ast.TrimExpr{StartPos: pos}
	expr.Expr = p.parseExpr()

	if !p.expect(token.RPAREN) {
		return nil
	}

	expr.EndPos = p.cur.Pos
	return expr
}

func (p *Parser) parseSubstringExpr() ast.Expr {
	pos := p.cur.Pos
	p.advance() // consume SUBSTRING

	if !p.expect(token.LPAREN) {
		return nil
	}

	expr := &ast.SubstringExpr{StartPos: pos}
	expr.Expr = p.parseExpr()

	if p.curIs(token.FROM) || p.curIs(token.COMMA) {
		p.advance()
		expr.From = p.parseExpr()
	}

	if p.curIs(token.FOR) || p.curIs(token.COMMA) {
		p.advance()
		expr.For = p.parseExpr()
	}

	if !p.expect(token.RPAREN) {
		return nil
	}

	expr.EndPos = p.cur.Pos
	return expr
}

func (p *Parser) parsePositionExpr() ast.Expr {
	pos := p.cur.Pos
	p.advance() // consume POSITION

	if !p.expect(token.LPAREN) {
		return nil
	}

	expr := &ast.PositionExpr{StartPos: pos}
	expr.Needle = p.parseExprPrec(precConcat)

	if !p.expect(token.IN) {
		return nil
	}

	expr.Haystack = p.parseExpr()

	if !p.expect(token.RPAREN) {
		return nil
	}

	expr.EndPos = p.cur.Pos
	return expr
}

func (p *Parser) parseIsExpr(left ast.Expr) ast.Expr {
	pos := left.Pos()
	p.advance() // consume IS

	not := false
	if p.curIs(token.NOT) {
		not = true
		p.advance()
	}

	// IS [NOT] DISTINCT FROM
	if p.curIs(token.DISTINCT) {
		p.advance()
		if !p.expect(token.FROM) {
			return nil
		}
		right := p.parseExprPrec(precComparison + 1)
		if right == nil {
			return nil
		}
		return &ast.DistinctFromExpr{
			StartPos: pos,
			EndPos:   right.End(),
			Left:     left,
			Right:    right,
			Not:      not,
		}
	}

	expr := &ast.IsExpr{
		StartPos: pos,
		Expr:     left,
		Not:      not,
	}

	switch p.cur.Type {
	case token.NULL:
		expr.What = ast.IsNull
	case token.TRUE:
		expr.What = ast.IsTrue
	case token.FALSE:
		expr.What = ast.IsFalse
	case token.UNKNOWN:
		expr.What = ast.IsUnknown
	default:
		p.errorf("expected NULL, TRUE, FALSE, UNKNOWN, or DISTINCT FROM after IS")
		return nil
	}

	p.advance()
	expr.EndPos = p.cur.Pos
	return expr
}

func (p *Parser) parseInExpr(left ast.Expr, not bool) ast.Expr {
	pos := left.Pos()
	p.advance() // consume IN

	if !p.expect(token.LPAREN) {
		return nil
	}

	expr := &ast.InExpr{
		StartPos: pos,
		Expr:     left,
		Not:      not,
	}

	// Subquery form
	if p.curIs(token.SELECT) || p.curIs(token.WITH) {
		stmt := p.parseQuery()
		if stmt == nil {
			return nil
		}
		sel, ok := stmt.(*ast.SelectStmt)
		if !ok {
			p.errorf("expected a single SELECT in IN subquery")
			return nil
		}
		expr.Select = sel
	} else {
		for {
			val := p.parseExpr()
			if val == nil {
				return nil
			}
			expr.Values = append(expr.Values, val)
			if !p.curIs(token.COMMA) {
				break
			}
			p.advance()
		}
	}

	if !p.expect(token.RPAREN) {
		return nil
	}

	expr.EndPos = p.cur.Pos
	return expr
}

func (p *Parser) parseBetweenExpr(left ast.Expr, not bool) ast.Expr {
	pos := left.Pos()
	p.advance() // consume BETWEEN

	expr := &ast.BetweenExpr{
		StartPos: pos,
		Expr:     left,
		Not:      not,
	}

	expr.Low = p.parseExprPrec(precComparison + 1)

	if !p.expect(token.AND) {
		return nil
	}

	expr.High = p.parseExprPrec(precComparison + 1)
	if expr.High == nil {
		return nil
	}

	expr.EndPos = p.cur.Pos
	return expr
}

func (p *Parser) parseLikeExpr(left ast.Expr, not bool) ast.Expr {
	pos := left.Pos()
	p.advance() // consume LIKE

	expr := &ast.LikeExpr{
		StartPos: pos,
		Expr:     left,
		Not:      not,
	}

	expr.Pattern = p.parseExprPrec(precComparison + 1)
	if expr.Pattern == nil {
		return nil
	}

	expr.EndPos = p.cur.Pos
	return expr
}

func (p *Parser) parseExprList() []ast.Expr {
	var exprs []ast.Expr
	for {
		expr := p.parseExpr()
		if expr == nil {
			break
		}
		exprs = append(exprs, expr)
		if !p.curIs(token.COMMA) {
			break
		}
		p.advance()
	}
	return exprs
}
