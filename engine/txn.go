package engine

import (
	"github.com/pkg/errors"

	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/catalog"
	"github.com/vjrajchauhan/pivot-engine/storage"
	"github.com/vjrajchauhan/pivot-engine/value"
)

// The undo log records the inverse of every mutation. COMMIT discards
// it; ROLLBACK replays it in reverse. There is no MVCC.

type undoEntry interface {
	undo(e *Engine) error
}

type savepoint struct {
	name string
	mark int
}

type txnState struct {
	active     bool
	undo       []undoEntry
	savepoints []savepoint
}

func (t *txnState) reset() {
	t.active = false
	t.undo = t.undo[:0]
	t.savepoints = t.savepoints[:0]
}

func (t *txnState) record(e undoEntry) {
	t.undo = append(t.undo, e)
}

// rollbackTo replays the undo log in reverse down to mark and truncates
// it.
func (t *txnState) rollbackTo(e *Engine, mark int) error {
	for i := len(t.undo) - 1; i >= mark; i-- {
		if err := t.undo[i].undo(e); err != nil {
			return errors.Wrap(err, "rollback")
		}
	}
	t.undo = t.undo[:mark]
	return nil
}

// Transaction-control statements

func (e *Engine) execBegin() (*QueryResult, error) {
	if e.txn.active {
		return nil, txnErrf("a transaction is already active")
	}
	e.txn.active = true
	return statusResult("BEGIN"), nil
}

func (e *Engine) execCommit() (*QueryResult, error) {
	if !e.txn.active {
		return nil, txnErrf("no transaction is active")
	}
	e.txn.reset()
	return statusResult("COMMIT"), nil
}

func (e *Engine) execRollback(s *ast.RollbackStmt) (*QueryResult, error) {
	if !e.txn.active {
		return nil, txnErrf("no transaction is active")
	}

	if s.Savepoint != "" {
		sp, idx := e.txn.findSavepoint(s.Savepoint)
		if idx < 0 {
			return nil, txnErrf("savepoint %q does not exist", s.Savepoint)
		}
		if err := e.txn.rollbackTo(e, sp.mark); err != nil {
			return nil, err
		}
		// Savepoints created after the target are gone; the target stays
		// so it can be rolled back to again.
		e.txn.savepoints = e.txn.savepoints[:idx+1]
		return statusResult("ROLLBACK"), nil
	}

	if err := e.txn.rollbackTo(e, 0); err != nil {
		return nil, err
	}
	e.txn.reset()
	return statusResult("ROLLBACK"), nil
}

func (e *Engine) execSavepoint(s *ast.SavepointStmt) (*QueryResult, error) {
	if !e.txn.active {
		return nil, txnErrf("no transaction is active")
	}
	e.txn.savepoints = append(e.txn.savepoints, savepoint{name: lowerName(s.Name), mark: len(e.txn.undo)})
	return statusResult("SAVEPOINT"), nil
}

func (e *Engine) execRelease(s *ast.ReleaseStmt) (*QueryResult, error) {
	if !e.txn.active {
		return nil, txnErrf("no transaction is active")
	}
	_, idx := e.txn.findSavepoint(s.Name)
	if idx < 0 {
		return nil, txnErrf("savepoint %q does not exist", s.Name)
	}
	e.txn.savepoints = e.txn.savepoints[:idx]
	return statusResult("RELEASE"), nil
}

func (t *txnState) findSavepoint(name string) (savepoint, int) {
	key := lowerName(name)
	for i := len(t.savepoints) - 1; i >= 0; i-- {
		if t.savepoints[i].name == key {
			return t.savepoints[i], i
		}
	}
	return savepoint{}, -1
}

// Undo entry types

type undoInsertRow struct {
	table string
	row   int
}

func (u *undoInsertRow) undo(e *Engine) error {
	store, err := e.cat.GetTable(u.table)
	if err != nil {
		return err
	}
	store.DeleteRow(u.row)
	return nil
}

type undoDeleteRow struct {
	table string
	row   int
	vals  []value.Value
}

func (u *undoDeleteRow) undo(e *Engine) error {
	store, err := e.cat.GetTable(u.table)
	if err != nil {
		return err
	}
	store.InsertRowAt(u.row, u.vals)
	return nil
}

type undoUpdateCell struct {
	table string
	row   int
	col   int
	old   value.Value
}

func (u *undoUpdateCell) undo(e *Engine) error {
	store, err := e.cat.GetTable(u.table)
	if err != nil {
		return err
	}
	store.RestoreValue(u.row, u.col, u.old)
	return nil
}

type undoAddColumn struct {
	table string
	name  string
}

func (u *undoAddColumn) undo(e *Engine) error {
	store, err := e.cat.GetTable(u.table)
	if err != nil {
		return err
	}
	_, _, _, err = store.DropColumn(u.name)
	return err
}

type undoDropColumn struct {
	table string
	idx   int
	def   storage.Column
	vals  []value.Value
	mask  *storage.NullMask
}

func (u *undoDropColumn) undo(e *Engine) error {
	store, err := e.cat.GetTable(u.table)
	if err != nil {
		return err
	}
	store.RestoreColumn(u.idx, u.def, u.vals, u.mask)
	return nil
}

type undoRenameColumn struct {
	table   string
	oldName string
	newName string
}

func (u *undoRenameColumn) undo(e *Engine) error {
	store, err := e.cat.GetTable(u.table)
	if err != nil {
		return err
	}
	return store.RenameColumn(u.newName, u.oldName)
}

type undoCreateTable struct {
	name string
}

func (u *undoCreateTable) undo(e *Engine) error {
	_, err := e.cat.Drop(u.name)
	return err
}

type undoDropTable struct {
	entry *catalog.Entry
}

func (u *undoDropTable) undo(e *Engine) error {
	if u.entry.Kind == catalog.KindView {
		return e.cat.CreateView(u.entry.Name, u.entry.ViewQuery, u.entry.ViewColumns, false)
	}
	return e.cat.Register(u.entry.Name, u.entry.Store)
}

type undoRenameTable struct {
	oldName string
	newName string
}

func (u *undoRenameTable) undo(e *Engine) error {
	return e.cat.Rename(u.newName, u.oldName)
}

type undoCreateView struct {
	name string
}

func (u *undoCreateView) undo(e *Engine) error {
	_, err := e.cat.Drop(u.name)
	return err
}

type undoReplaceView struct {
	name      string
	prevQuery ast.Statement
	prevCols  []string
}

func (u *undoReplaceView) undo(e *Engine) error {
	return e.cat.CreateView(u.name, u.prevQuery, u.prevCols, true)
}
