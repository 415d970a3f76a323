package engine

import (
	"github.com/pkg/errors"

	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/catalog"
	"github.com/vjrajchauhan/pivot-engine/funcs"
	"github.com/vjrajchauhan/pivot-engine/parser"
)

// Engine owns one catalog, its stores, and the transaction state, and
// executes one statement at a time to completion. An Engine is not safe
// for concurrent use.
type Engine struct {
	cat       *catalog.Catalog
	txn       txnState
	cteFrames []map[string]*relation
	fctx      *funcs.Ctx
}

// New creates an engine with an empty catalog.
func New() *Engine {
	return &Engine{cat: catalog.New()}
}

// Catalog exposes the engine's catalog for programmatic table loading.
func (e *Engine) Catalog() *catalog.Catalog { return e.cat }

// Execute parses and runs a single SQL statement.
func (e *Engine) Execute(sql string) (*QueryResult, error) {
	p := parser.Get(sql)
	stmt, err := p.Parse()
	parser.Put(p)
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}
	if stmt == nil {
		return statusResult("OK"), nil
	}
	return e.ExecuteStmt(stmt)
}

// ExecuteScript runs every statement in the input and returns the last
// result.
func (e *Engine) ExecuteScript(sql string) (*QueryResult, error) {
	p := parser.Get(sql)
	stmts, err := p.ParseAll()
	parser.Put(p)
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}
	res := statusResult("OK")
	for _, stmt := range stmts {
		res, err = e.ExecuteStmt(stmt)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// ExecuteStmt runs one parsed statement. Mutating statements run inside
// the active transaction, or an implicit one that commits on success
// and rolls back on error.
func (e *Engine) ExecuteStmt(stmt ast.Statement) (*QueryResult, error) {
	// The statement clock is pinned once so NOW() is stable within it.
	e.fctx = funcs.NewCtx()
	defer func() { e.fctx = nil }()

	switch s := stmt.(type) {
	case *ast.SelectStmt, *ast.SetOp:
		rel, err := e.execQuery(stmt)
		if err != nil {
			return nil, err
		}
		return rel.result(), nil

	case *ast.ShowTablesStmt:
		return e.execShowTables(), nil

	case *ast.DescribeStmt:
		return e.execDescribe(s)

	case *ast.ExplainStmt:
		return e.execExplain(s)

	case *ast.BeginStmt:
		return e.execBegin()

	case *ast.CommitStmt:
		return e.execCommit()

	case *ast.RollbackStmt:
		return e.execRollback(s)

	case *ast.SavepointStmt:
		return e.execSavepoint(s)

	case *ast.ReleaseStmt:
		return e.execRelease(s)

	default:
		return e.executeMutation(stmt)
	}
}

// executeMutation wraps a mutating statement in transactional undo: any
// error rolls back exactly the mutations the statement performed.
func (e *Engine) executeMutation(stmt ast.Statement) (*QueryResult, error) {
	mark := len(e.txn.undo)
	implicit := !e.txn.active
	if implicit {
		e.txn.active = true
	}

	res, err := e.execMutation(stmt)
	if err != nil {
		if rbErr := e.txn.rollbackTo(e, mark); rbErr != nil {
			return nil, rbErr
		}
		if implicit {
			e.txn.reset()
		}
		return nil, err
	}

	if implicit {
		// Implicit transaction commits by discarding its undo log.
		e.txn.reset()
	}
	return res, nil
}

func (e *Engine) execMutation(stmt ast.Statement) (*QueryResult, error) {
	switch s := stmt.(type) {
	case *ast.InsertStmt:
		return e.execInsert(s)
	case *ast.UpdateStmt:
		return e.execUpdate(s)
	case *ast.DeleteStmt:
		return e.execDelete(s)
	case *ast.MergeStmt:
		return e.execMerge(s)
	case *ast.CreateTableStmt:
		return e.execCreateTable(s)
	case *ast.DropTableStmt:
		return e.execDropTable(s)
	case *ast.AlterTableStmt:
		return e.execAlterTable(s)
	case *ast.CreateViewStmt:
		return e.execCreateView(s)
	case *ast.DropViewStmt:
		return e.execDropView(s)
	default:
		return nil, planErrf("unsupported statement type %T", stmt)
	}
}

// CTE frame handling: recursive CTE evaluation binds working relations
// by name; FROM resolution consults these before the catalog.

func (e *Engine) pushCTEFrame(frame map[string]*relation) {
	e.cteFrames = append(e.cteFrames, frame)
}

func (e *Engine) popCTEFrame() {
	e.cteFrames = e.cteFrames[:len(e.cteFrames)-1]
}

func (e *Engine) lookupCTE(name string) (*relation, bool) {
	for i := len(e.cteFrames) - 1; i >= 0; i-- {
		if rel, ok := e.cteFrames[i][lowerName(name)]; ok {
			return rel, true
		}
	}
	return nil, false
}
