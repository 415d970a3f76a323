// Package parser provides a recursive descent SQL parser.
package parser

import (
	"fmt"
	"sync"

	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/lexer"
	"github.com/vjrajchauhan/pivot-engine/token"
)

// Parser is a recursive descent SQL parser.
type Parser struct {
	lexer  *lexer.Lexer
	errors []error
	cur    token.Item // current token
}

// ParseError represents a parse error with position.
type ParseError struct {
	Pos     token.Pos
	Message string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// New creates a new parser for the given input.
func New(input string) *Parser {
	p := &Parser{
		lexer: lexer.New(input),
	}
	p.advance() // Prime the first token
	return p
}

var parserPool = sync.Pool{
	New: func() any { return &Parser{} },
}

// Get returns a parser from the pool for the given input.
// Call Put(p) when done to return it to the pool.
func Get(input string) *Parser {
	p := parserPool.Get().(*Parser)
	p.lexer = lexer.Get(input)
	p.errors = p.errors[:0]
	p.cur = token.Item{}
	p.advance()
	return p
}

// Put returns the parser and its lexer to the pool.
func Put(p *Parser) {
	if p.lexer != nil {
		lexer.Put(p.lexer)
		p.lexer = nil
	}
	parserPool.Put(p)
}

// Parse parses a single statement.
func (p *Parser) Parse() (ast.Statement, error) {
	p.skipComments()
	if p.curIs(token.EOF) {
		return nil, nil
	}
	stmt := p.parseStatement()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	// Verify all input was consumed (allow trailing semicolons and comments)
	p.skipComments()
	for p.curIs(token.SEMICOLON) {
		p.advance()
		p.skipComments()
	}
	if !p.curIs(token.EOF) {
		p.errorf("unexpected token %v after statement", p.cur.Type)
		return nil, p.errors[0]
	}
	return stmt, nil
}

// ParseAll parses all statements until EOF.
func (p *Parser) ParseAll() ([]ast.Statement, error) {
	var stmts []ast.Statement
	for !p.curIs(token.EOF) {
		p.skipComments()
		if p.curIs(token.EOF) {
			break
		}
		stmt := p.parseStatement()
		if len(p.errors) > 0 {
			return stmts, p.errors[0]
		}
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		// Skip optional semicolons between statements
		for p.curIs(token.SEMICOLON) {
			p.advance()
		}
		p.skipComments()
	}
	if len(p.errors) > 0 {
		return stmts, p.errors[0]
	}
	return stmts, nil
}

// Token navigation methods

func (p *Parser) advance() {
	p.cur = p.lexer.Next()
	for p.cur.Type == token.COMMENT {
		p.cur = p.lexer.Next()
	}
	if p.cur.Type == token.ILLEGAL {
		if lerr := p.lexer.Err(); lerr != nil {
			p.errors = append(p.errors, lerr)
		} else {
			p.errorf("illegal token %q", p.cur.Value)
		}
	}
}

func (p *Parser) curIs(t token.Token) bool {
	return p.cur.Type == t
}

// curIsIdent returns true if the current token can be used as an identifier.
// This includes both IDENT tokens and keywords (which can be used as
// identifiers in contexts like table/column names).
func (p *Parser) curIsIdent() bool {
	return p.cur.Type == token.IDENT || p.cur.Type.IsKeyword()
}

// curIdentValue returns the identifier value of the current token.
func (p *Parser) curIdentValue() string {
	return p.cur.Value
}

func (p *Parser) peek() token.Item {
	return p.lexer.Peek()
}

func (p *Parser) peekIs(t token.Token) bool {
	return p.peek().Type == t
}

func (p *Parser) expect(t token.Token) bool {
	if p.curIs(t) {
		p.advance()
		return true
	}
	p.errorf("expected %v, got %v", t, p.cur.Type)
	return false
}

func (p *Parser) skipComments() {
	for p.curIs(token.COMMENT) {
		p.advance()
	}
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, ParseError{
		Pos:     p.cur.Pos,
		Message: fmt.Sprintf(format, args...),
	})
}

// parseStatement dispatches to the appropriate statement parser.
func (p *Parser) parseStatement() ast.Statement {
	switch p.cur.Type {
	case token.SELECT, token.WITH, token.LPAREN:
		return p.parseQuery()
	case token.INSERT:
		return p.parseInsert()
	case token.UPDATE:
		return p.parseUpdate()
	case token.DELETE:
		return p.parseDelete()
	case token.MERGE:
		return p.parseMerge()
	case token.CREATE:
		return p.parseCreate()
	case token.ALTER:
		return p.parseAlter()
	case token.DROP:
		return p.parseDrop()
	case token.BEGIN:
		return p.parseBegin()
	case token.COMMIT:
		pos := p.cur.Pos
		p.advance()
		return &ast.CommitStmt{StartPos: pos, EndPos: p.cur.Pos}
	case token.ROLLBACK:
		return p.parseRollback()
	case token.SAVEPOINT:
		return p.parseSavepoint()
	case token.RELEASE:
		return p.parseRelease()
	case token.SHOW:
		return p.parseShow()
	case token.DESCRIBE:
		return p.parseDescribe()
	case token.EXPLAIN:
		return p.parseExplain()
	default:
		p.errorf("unexpected token %v at start of statement", p.cur.Type)
		p.advance() // Skip to recover
		return nil
	}
}

func (p *Parser) parseWithClause() *ast.WithClause {
	p.advance() // consume WITH

	with := &ast.WithClause{}

	if p.curIs(token.RECURSIVE) {
		with.Recursive = true
		p.advance()
	}

	for {
		cte := p.parseCTE()
		if cte == nil {
			break
		}
		with.CTEs = append(with.CTEs, cte)

		if !p.curIs(token.COMMA) {
			break
		}
		p.advance() // consume comma
	}

	return with
}

func (p *Parser) parseCTE() *ast.CTE {
	if !p.curIs(token.IDENT) {
		p.errorf("expected CTE name")
		return nil
	}

	cte := &ast.CTE{
		Name: p.cur.Value,
	}
	p.advance()

	// Optional column list
	if p.curIs(token.LPAREN) {
		cte.Columns = p.parseColumnNameList()
	}

	if !p.expect(token.AS) {
		return nil
	}

	if !p.expect(token.LPAREN) {
		return nil
	}

	cte.Query = p.parseQuery()

	if !p.expect(token.RPAREN) {
		return nil
	}

	return cte
}

func (p *Parser) parseColumnNameList() []string {
	p.advance() // consume (

	var names []string
	for {
		if !p.curIsIdent() {
			break
		}
		names = append(names, p.curIdentValue())
		p.advance()

		if !p.curIs(token.COMMA) {
			break
		}
		p.advance() // consume comma
	}

	p.expect(token.RPAREN)
	return names
}

// DDL statements

func (p *Parser) parseCreate() ast.Statement {
	pos := p.cur.Pos
	p.advance() // consume CREATE

	switch p.cur.Type {
	case token.TABLE:
		return p.parseCreateTable(pos)
	case token.VIEW:
		return p.parseCreateView(pos, false)
	case token.OR:
		p.advance()
		if !p.expect(token.REPLACE) {
			return nil
		}
		if !p.curIs(token.VIEW) {
			p.errorf("expected VIEW after CREATE OR REPLACE")
			return nil
		}
		return p.parseCreateView(pos, true)
	default:
		p.errorf("expected TABLE or VIEW after CREATE")
		return nil
	}
}

func (p *Parser) parseCreateTable(pos token.Pos) ast.Statement {
	p.advance() // consume TABLE

	stmt := &ast.CreateTableStmt{StartPos: pos}

	if p.curIs(token.IF) {
		p.advance()
		if !p.expect(token.NOT) {
			return nil
		}
		if !p.expect(token.EXISTS) {
			return nil
		}
		stmt.IfNotExists = true
	}

	stmt.Table = p.parseTableName()
	if stmt.Table == nil {
		return nil
	}

	// CREATE TABLE AS SELECT
	if p.curIs(token.AS) {
		p.advance()
		stmt.As = p.parseQuery()
		stmt.EndPos = p.cur.Pos
		return stmt
	}

	if !p.expect(token.LPAREN) {
		return nil
	}

	// Parse column definitions and table constraints
	for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
		if p.curIs(token.PRIMARY) || p.curIs(token.UNIQUE) && p.peekIs(token.LPAREN) ||
			p.curIs(token.CHECK) || p.curIs(token.CONSTRAINT) {
			constraint := p.parseTableConstraint()
			if constraint != nil {
				stmt.Constraints = append(stmt.Constraints, constraint)
			}
		} else {
			col := p.parseColumnDef()
			if col != nil {
				stmt.Columns = append(stmt.Columns, col)
			}
		}
		if len(p.errors) > 0 {
			return nil
		}

		if !p.curIs(token.COMMA) {
			break
		}
		p.advance()
	}

	p.expect(token.RPAREN)
	stmt.EndPos = p.cur.Pos
	return stmt
}

func (p *Parser) parseColumnDef() *ast.ColumnDef {
	if !p.curIsIdent() {
		p.errorf("expected column name")
		return nil
	}

	col := &ast.ColumnDef{
		Name: p.curIdentValue(),
	}
	p.advance()

	col.Type = p.parseDataType()
	col.Constraints = p.parseColumnConstraints()

	return col
}

func (p *Parser) parseDataType() *ast.DataType {
	dt := &ast.DataType{}

	switch p.cur.Type {
	case token.BOOLEAN, token.INTEGER, token.BIGINT, token.DOUBLE, token.FLOAT_TYPE,
		token.VARCHAR, token.TEXT, token.DATE, token.TIME, token.TIMESTAMP,
		token.INTERVAL, token.DECIMAL:
		dt.Name = p.cur.Type.String()
		p.advance()
	default:
		p.errorf("expected data type, got %v", p.cur.Type)
		return dt
	}

	// Parse length/precision
	if p.curIs(token.LPAREN) {
		p.advance()
		if p.curIs(token.INT) {
			n := parseInt(p.cur.Value)
			dt.Precision = &n
			p.advance()

			if p.curIs(token.COMMA) {
				p.advance()
				if p.curIs(token.INT) {
					s := parseInt(p.cur.Value)
					dt.Scale = &s
					p.advance()
				}
			}
		}
		p.expect(token.RPAREN)
	}

	return dt
}

func (p *Parser) parseColumnConstraints() []*ast.ColumnConstraint {
	var constraints []*ast.ColumnConstraint

	for {
		var constraint *ast.ColumnConstraint

		// Optional CONSTRAINT name
		name := ""
		if p.curIs(token.CONSTRAINT) {
			p.advance()
			if p.curIs(token.IDENT) {
				name = p.cur.Value
				p.advance()
			}
		}

		switch p.cur.Type {
		case token.NOT:
			p.advance()
			if !p.expect(token.NULL) {
				return constraints
			}
			constraint = &ast.ColumnConstraint{
				Name: name,
				Type: ast.ConstraintNotNull,
			}
		case token.NULL:
			p.advance()
			// NULL is the default, no constraint needed
		case token.PRIMARY:
			p.advance()
			if !p.expect(token.KEY) {
				return constraints
			}
			constraint = &ast.ColumnConstraint{
				Name: name,
				Type: ast.ConstraintPrimaryKey,
			}
		case token.UNIQUE:
			p.advance()
			constraint = &ast.ColumnConstraint{
				Name: name,
				Type: ast.ConstraintUnique,
			}
		case token.DEFAULT:
			p.advance()
			constraint = &ast.ColumnConstraint{
				Name:    name,
				Type:    ast.ConstraintDefault,
				Default: p.parseExpr(),
			}
		case token.CHECK:
			p.advance()
			if !p.expect(token.LPAREN) {
				return constraints
			}
			constraint = &ast.ColumnConstraint{
				Name:  name,
				Type:  ast.ConstraintCheck,
				Check: p.parseExpr(),
			}
			p.expect(token.RPAREN)
		default:
			return constraints
		}

		if constraint != nil {
			constraints = append(constraints, constraint)
		}
	}
}

func (p *Parser) parseTableConstraint() *ast.TableConstraint {
	tc := &ast.TableConstraint{}

	// Optional CONSTRAINT name
	if p.curIs(token.CONSTRAINT) {
		p.advance()
		if p.curIs(token.IDENT) {
			tc.Name = p.cur.Value
			p.advance()
		}
	}

	switch p.cur.Type {
	case token.PRIMARY:
		p.advance()
		p.expect(token.KEY)
		tc.Type = ast.ConstraintPrimaryKey
		if p.curIs(token.LPAREN) {
			tc.Columns = p.parseColumnNameList()
		}
	case token.UNIQUE:
		p.advance()
		tc.Type = ast.ConstraintUnique
		if p.curIs(token.LPAREN) {
			tc.Columns = p.parseColumnNameList()
		}
	case token.CHECK:
		p.advance()
		tc.Type = ast.ConstraintCheck
		p.expect(token.LPAREN)
		tc.Check = p.parseExpr()
		p.expect(token.RPAREN)
	default:
		p.errorf("expected PRIMARY, UNIQUE, or CHECK")
		return nil
	}

	return tc
}

func (p *Parser) parseCreateView(pos token.Pos, orReplace bool) ast.Statement {
	p.advance() // consume VIEW

	stmt := &ast.CreateViewStmt{StartPos: pos, OrReplace: orReplace}

	if p.curIs(token.IF) {
		p.advance()
		if !p.expect(token.NOT) {
			return nil
		}
		if !p.expect(token.EXISTS) {
			return nil
		}
		stmt.IfNotExists = true
	}

	stmt.Name = p.parseTableName()
	if stmt.Name == nil {
		return nil
	}

	if p.curIs(token.LPAREN) {
		stmt.Columns = p.parseColumnNameList()
	}

	if !p.expect(token.AS) {
		return nil
	}

	stmt.Select = p.parseQuery()
	stmt.EndPos = p.cur.Pos
	return stmt
}

func (p *Parser) parseAlter() ast.Statement {
	pos := p.cur.Pos
	p.advance() // consume ALTER

	if !p.expect(token.TABLE) {
		return nil
	}

	stmt := &ast.AlterTableStmt{
		StartPos: pos,
		Table:    p.parseTableName(),
	}
	if stmt.Table == nil {
		return nil
	}

	switch p.cur.Type {
	case token.ADD:
		p.advance()
		if p.curIs(token.COLUMN) {
			p.advance()
		}
		stmt.Action = &ast.AddColumn{Column: p.parseColumnDef()}

	case token.DROP:
		p.advance()
		if p.curIs(token.COLUMN) {
			p.advance()
		}
		if !p.curIsIdent() {
			p.errorf("expected column name")
			return nil
		}
		stmt.Action = &ast.DropColumn{Name: p.curIdentValue()}
		p.advance()

	case token.RENAME:
		p.advance()
		if p.curIs(token.TO) {
			p.advance()
			tn := p.parseTableName()
			if tn == nil {
				return nil
			}
			stmt.Action = &ast.RenameTable{NewName: tn.Name}
			break
		}
		if p.curIs(token.COLUMN) {
			p.advance()
		}
		if !p.curIsIdent() {
			p.errorf("expected column name")
			return nil
		}
		action := &ast.RenameColumn{OldName: p.curIdentValue()}
		p.advance()
		if !p.expect(token.TO) {
			return nil
		}
		if !p.curIsIdent() {
			p.errorf("expected new column name")
			return nil
		}
		action.NewName = p.curIdentValue()
		p.advance()
		stmt.Action = action

	default:
		p.errorf("expected ADD, DROP, or RENAME after ALTER TABLE")
		return nil
	}

	stmt.EndPos = p.cur.Pos
	return stmt
}

func (p *Parser) parseDrop() ast.Statement {
	pos := p.cur.Pos
	p.advance() // consume DROP

	switch p.cur.Type {
	case token.TABLE:
		return p.parseDropTable(pos)
	case token.VIEW:
		return p.parseDropView(pos)
	default:
		p.errorf("expected TABLE or VIEW after DROP")
		return nil
	}
}

func (p *Parser) parseDropTable(pos token.Pos) ast.Statement {
	p.advance() // consume TABLE

	stmt := &ast.DropTableStmt{StartPos: pos}

	if p.curIs(token.IF) {
		p.advance()
		p.expect(token.EXISTS)
		stmt.IfExists = true
	}

	for {
		tn := p.parseTableName()
		if tn == nil {
			return nil
		}
		stmt.Tables = append(stmt.Tables, tn)
		if !p.curIs(token.COMMA) {
			break
		}
		p.advance()
	}

	stmt.EndPos = p.cur.Pos
	return stmt
}

func (p *Parser) parseDropView(pos token.Pos) ast.Statement {
	p.advance() // consume VIEW

	stmt := &ast.DropViewStmt{StartPos: pos}

	if p.curIs(token.IF) {
		p.advance()
		p.expect(token.EXISTS)
		stmt.IfExists = true
	}

	stmt.Name = p.parseTableName()
	if stmt.Name == nil {
		return nil
	}

	stmt.EndPos = p.cur.Pos
	return stmt
}

// Transaction statements

func (p *Parser) parseBegin() ast.Statement {
	pos := p.cur.Pos
	p.advance() // consume BEGIN
	if p.curIs(token.TRANSACTION) {
		p.advance()
	}
	return &ast.BeginStmt{StartPos: pos, EndPos: p.cur.Pos}
}

func (p *Parser) parseRollback() ast.Statement {
	pos := p.cur.Pos
	p.advance() // consume ROLLBACK

	stmt := &ast.RollbackStmt{StartPos: pos}
	if p.curIs(token.TO) {
		p.advance()
		if p.curIs(token.SAVEPOINT) {
			p.advance()
		}
		if !p.curIsIdent() {
			p.errorf("expected savepoint name")
			return nil
		}
		stmt.Savepoint = p.curIdentValue()
		p.advance()
	}
	stmt.EndPos = p.cur.Pos
	return stmt
}

func (p *Parser) parseSavepoint() ast.Statement {
	pos := p.cur.Pos
	p.advance() // consume SAVEPOINT
	if !p.curIsIdent() {
		p.errorf("expected savepoint name")
		return nil
	}
	name := p.curIdentValue()
	p.advance()
	return &ast.SavepointStmt{StartPos: pos, EndPos: p.cur.Pos, Name: name}
}

func (p *Parser) parseRelease() ast.Statement {
	pos := p.cur.Pos
	p.advance() // consume RELEASE
	if p.curIs(token.SAVEPOINT) {
		p.advance()
	}
	if !p.curIsIdent() {
		p.errorf("expected savepoint name")
		return nil
	}
	name := p.curIdentValue()
	p.advance()
	return &ast.ReleaseStmt{StartPos: pos, EndPos: p.cur.Pos, Name: name}
}

// Introspection statements

func (p *Parser) parseShow() ast.Statement {
	pos := p.cur.Pos
	p.advance() // consume SHOW
	if !p.expect(token.TABLES) {
		return nil
	}
	return &ast.ShowTablesStmt{StartPos: pos, EndPos: p.cur.Pos}
}

func (p *Parser) parseDescribe() ast.Statement {
	pos := p.cur.Pos
	p.advance() // consume DESCRIBE
	stmt := &ast.DescribeStmt{StartPos: pos}
	stmt.Name = p.parseTableName()
	if stmt.Name == nil {
		return nil
	}
	stmt.EndPos = p.cur.Pos
	return stmt
}

func (p *Parser) parseExplain() ast.Statement {
	pos := p.cur.Pos
	p.advance() // consume EXPLAIN

	stmt := &ast.ExplainStmt{StartPos: pos}
	stmt.Stmt = p.parseStatement()
	stmt.EndPos = p.cur.Pos
	return stmt
}

func (p *Parser) parseTableName() *ast.TableName {
	if !p.curIsIdent() {
		p.errorf("expected table name")
		return nil
	}

	tn := &ast.TableName{
		StartPos: p.cur.Pos,
		Name:     p.curIdentValue(),
	}
	p.advance()
	tn.EndPos = p.cur.Pos
	return tn
}

func parseInt(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}
