package engine

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/catalog"
	"github.com/vjrajchauhan/pivot-engine/storage"
	"github.com/vjrajchauhan/pivot-engine/value"
)

// mutableTable resolves a DML target: it must be a table, not a view.
func (e *Engine) mutableTable(name string) (*storage.Store, error) {
	entry, err := e.cat.Get(name)
	if err != nil {
		return nil, err
	}
	if entry.Kind != catalog.KindTable {
		return nil, planErrf("%q is a view and cannot be modified", name)
	}
	return entry.Store, nil
}

// schemaRelation builds the single-table relation used to evaluate
// CHECK constraints and DML predicates.
func schemaRelation(store *storage.Store, qualifier string) *relation {
	schema := store.Schema()
	cols := make([]relCol, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = relCol{Table: qualifier, Name: c.Name, Type: c.Type}
	}
	return newRelation(cols)
}

// checkRow evaluates all CHECK constraints for a candidate row. A CHECK
// passes unless it evaluates to False (Unknown passes, per standard
// SQL).
func (e *Engine) checkRow(tableName string, store *storage.Store, row []value.Value) error {
	schema := store.Schema()
	rel := schemaRelation(store, tableName)
	ctx := &evalCtx{e: e, rel: rel, row: row}

	for _, col := range schema.Columns {
		if col.Check == nil {
			continue
		}
		t, err := ctx.predicate(col.Check)
		if err != nil {
			return err
		}
		if t == value.False {
			return &storage.ConstraintViolation{Constraint: "CHECK", Column: col.Name}
		}
	}
	for _, chk := range schema.Checks {
		t, err := ctx.predicate(chk)
		if err != nil {
			return err
		}
		if t == value.False {
			return &storage.ConstraintViolation{Constraint: "CHECK"}
		}
	}
	return nil
}

// buildInsertRow assembles a full table row from the targeted columns,
// filling the rest from column defaults (NULL without one).
func (e *Engine) buildInsertRow(store *storage.Store, targets []int, vals []value.Value) ([]value.Value, error) {
	schema := store.Schema()
	row := make([]value.Value, len(schema.Columns))
	set := make([]bool, len(schema.Columns))
	for i, ci := range targets {
		row[ci] = vals[i]
		set[ci] = true
	}
	for ci, col := range schema.Columns {
		if set[ci] {
			continue
		}
		if col.Default != nil {
			v, err := (&evalCtx{e: e}).eval(col.Default)
			if err != nil {
				return nil, err
			}
			row[ci] = v
		} else {
			row[ci] = value.Null()
		}
	}
	for ci, col := range schema.Columns {
		v, err := value.Coerce(row[ci], col.Type)
		if err != nil {
			return nil, err
		}
		row[ci] = v
	}
	return row, nil
}

// resolveInsertColumns maps a column-name list (or the full schema when
// absent) to column indexes.
func resolveInsertColumns(store *storage.Store, names []string) ([]int, error) {
	schema := store.Schema()
	if len(names) == 0 {
		targets := make([]int, len(schema.Columns))
		for i := range targets {
			targets[i] = i
		}
		return targets, nil
	}
	targets := make([]int, len(names))
	seen := make(map[int]bool, len(names))
	for i, name := range names {
		ci, ok := schema.ColumnIndex(name)
		if !ok {
			return nil, storage.Schemaf("unknown column %q", name)
		}
		if seen[ci] {
			return nil, storage.Schemaf("column %q specified twice", name)
		}
		seen[ci] = true
		targets[i] = ci
	}
	return targets, nil
}

func (e *Engine) execInsert(s *ast.InsertStmt) (*QueryResult, error) {
	store, err := e.mutableTable(s.Table.Name)
	if err != nil {
		return nil, err
	}
	targets, err := resolveInsertColumns(store, s.Columns)
	if err != nil {
		return nil, err
	}

	var sourceRows [][]value.Value
	if s.Select != nil {
		rel, err := e.execQuery(s.Select)
		if err != nil {
			return nil, err
		}
		sourceRows = rel.rows
	} else {
		for _, exprRow := range s.Rows {
			vals := make([]value.Value, len(exprRow))
			for i, ex := range exprRow {
				v, err := (&evalCtx{e: e}).eval(ex)
				if err != nil {
					return nil, err
				}
				vals[i] = v
			}
			sourceRows = append(sourceRows, vals)
		}
	}

	inserted := 0
	for _, vals := range sourceRows {
		if len(vals) != len(targets) {
			return nil, storage.Schemaf("INSERT has %d target columns but %d values", len(targets), len(vals))
		}
		row, err := e.buildInsertRow(store, targets, vals)
		if err != nil {
			return nil, errors.Wrap(err, "insert")
		}
		if err := e.checkRow(s.Table.Name, store, row); err != nil {
			return nil, errors.Wrap(err, "insert")
		}
		idx, err := store.AppendRow(row)
		if err != nil {
			return nil, errors.Wrap(err, "insert")
		}
		e.txn.record(&undoInsertRow{table: s.Table.Name, row: idx})
		inserted++
	}

	return statusResult(fmt.Sprintf("INSERT %d", inserted)), nil
}

func (e *Engine) execUpdate(s *ast.UpdateStmt) (*QueryResult, error) {
	store, err := e.mutableTable(s.Table.Name)
	if err != nil {
		return nil, err
	}
	schema := store.Schema()
	rel := schemaRelation(store, s.Table.Name)

	assignIdx := make([]int, len(s.Set))
	for i, a := range s.Set {
		ci, ok := schema.ColumnIndex(a.Column.Name())
		if !ok {
			return nil, storage.Schemaf("unknown column %q", a.Column.Name())
		}
		assignIdx[i] = ci
	}

	// Collect matching rows against the pre-statement snapshot.
	var matched []int
	for r := 0; r < store.RowCount(); r++ {
		row := store.Row(r)
		if s.Where != nil {
			ctx := &evalCtx{e: e, rel: rel, row: row}
			t, err := ctx.predicate(s.Where)
			if err != nil {
				return nil, err
			}
			if t != value.True {
				continue
			}
		}
		matched = append(matched, r)
	}

	for _, r := range matched {
		oldRow := store.Row(r)
		ctx := &evalCtx{e: e, rel: rel, row: oldRow}

		newRow := append([]value.Value(nil), oldRow...)
		newVals := make([]value.Value, len(s.Set))
		for i, a := range s.Set {
			v, err := ctx.eval(a.Expr)
			if err != nil {
				return nil, err
			}
			coerced, err := value.Coerce(v, schema.Columns[assignIdx[i]].Type)
			if err != nil {
				return nil, errors.Wrap(err, "update")
			}
			newVals[i] = coerced
			newRow[assignIdx[i]] = coerced
		}

		if err := e.checkRow(s.Table.Name, store, newRow); err != nil {
			return nil, errors.Wrap(err, "update")
		}

		for i, ci := range assignIdx {
			e.txn.record(&undoUpdateCell{table: s.Table.Name, row: r, col: ci, old: oldRow[ci]})
			if err := store.SetValue(r, ci, newVals[i]); err != nil {
				return nil, errors.Wrap(err, "update")
			}
		}
	}

	return statusResult(fmt.Sprintf("UPDATE %d", len(matched))), nil
}

func (e *Engine) execDelete(s *ast.DeleteStmt) (*QueryResult, error) {
	store, err := e.mutableTable(s.Table.Name)
	if err != nil {
		return nil, err
	}
	rel := schemaRelation(store, s.Table.Name)

	var matched []int
	for r := 0; r < store.RowCount(); r++ {
		if s.Where != nil {
			ctx := &evalCtx{e: e, rel: rel, row: store.Row(r)}
			t, err := ctx.predicate(s.Where)
			if err != nil {
				return nil, err
			}
			if t != value.True {
				continue
			}
		}
		matched = append(matched, r)
	}

	// Delete from the highest index down so earlier indexes stay valid.
	for i := len(matched) - 1; i >= 0; i-- {
		r := matched[i]
		e.txn.record(&undoDeleteRow{table: s.Table.Name, row: r, vals: store.Row(r)})
		store.DeleteRow(r)
	}

	return statusResult(fmt.Sprintf("DELETE %d", len(matched))), nil
}

// MERGE

type mergeOpKind int

const (
	mergeOpUpdate mergeOpKind = iota
	mergeOpDelete
	mergeOpInsert
)

type mergeOp struct {
	kind      mergeOpKind
	targetRow int
	cols      []int
	vals      []value.Value
	insertRow []value.Value
}

// execMerge evaluates the source once, scans the target per source row,
// and applies the first WHEN clause whose predicate holds. All
// mutations are deferred until the scan completes so the scan sees a
// stable target.
func (e *Engine) execMerge(s *ast.MergeStmt) (*QueryResult, error) {
	store, err := e.mutableTable(s.Target.Name)
	if err != nil {
		return nil, err
	}
	schema := store.Schema()

	qual := s.Target.Name
	if s.Alias != "" {
		qual = s.Alias
	}
	targetRel := fromStore(store, qual)
	sourceRel, err := e.resolveFrom(s.Source, nil)
	if err != nil {
		return nil, err
	}

	combined := newRelation(joinedCols(targetRel, sourceRel))

	var ops []mergeOp
	for _, srow := range sourceRel.rows {
		matchedAny := false

		for ti, trow := range targetRel.rows {
			row := combineRows(trow, srow)
			ctx := &evalCtx{e: e, rel: combined, row: row}
			t, err := ctx.predicate(s.On)
			if err != nil {
				return nil, err
			}
			if t != value.True {
				continue
			}
			matchedAny = true

			for _, when := range s.Whens {
				if !when.Matched {
					continue
				}
				if when.Cond != nil {
					t, err := ctx.predicate(when.Cond)
					if err != nil {
						return nil, err
					}
					if t != value.True {
						continue
					}
				}

				switch when.Action {
				case ast.MergeUpdate:
					op := mergeOp{kind: mergeOpUpdate, targetRow: ti}
					for _, a := range when.Set {
						ci, ok := schema.ColumnIndex(a.Column.Name())
						if !ok {
							return nil, storage.Schemaf("unknown column %q", a.Column.Name())
						}
						v, err := ctx.eval(a.Expr)
						if err != nil {
							return nil, err
						}
						op.cols = append(op.cols, ci)
						op.vals = append(op.vals, v)
					}
					ops = append(ops, op)
				case ast.MergeDelete:
					ops = append(ops, mergeOp{kind: mergeOpDelete, targetRow: ti})
				}
				break
			}
		}

		if matchedAny {
			continue
		}

		// NOT MATCHED clauses see only the source row.
		srcCtx := &evalCtx{e: e, rel: sourceRel, row: srow}
		for _, when := range s.Whens {
			if when.Matched {
				continue
			}
			if when.Cond != nil {
				t, err := srcCtx.predicate(when.Cond)
				if err != nil {
					return nil, err
				}
				if t != value.True {
					continue
				}
			}

			targets, err := resolveInsertColumns(store, when.Columns)
			if err != nil {
				return nil, err
			}
			if len(when.Values) != len(targets) {
				return nil, storage.Schemaf("MERGE INSERT has %d target columns but %d values",
					len(targets), len(when.Values))
			}
			vals := make([]value.Value, len(when.Values))
			for i, ex := range when.Values {
				v, err := srcCtx.eval(ex)
				if err != nil {
					return nil, err
				}
				vals[i] = v
			}
			row, err := e.buildInsertRow(store, targets, vals)
			if err != nil {
				return nil, err
			}
			ops = append(ops, mergeOp{kind: mergeOpInsert, insertRow: row})
			break
		}
	}

	// Apply: updates in place, deletions from the highest index down,
	// insertions appended.
	affected := 0
	var deletes []int
	for _, op := range ops {
		switch op.kind {
		case mergeOpUpdate:
			oldRow := store.Row(op.targetRow)
			newRow := append([]value.Value(nil), oldRow...)
			for i, ci := range op.cols {
				coerced, err := value.Coerce(op.vals[i], schema.Columns[ci].Type)
				if err != nil {
					return nil, errors.Wrap(err, "merge")
				}
				newRow[ci] = coerced
			}
			if err := e.checkRow(s.Target.Name, store, newRow); err != nil {
				return nil, errors.Wrap(err, "merge")
			}
			for i, ci := range op.cols {
				e.txn.record(&undoUpdateCell{table: s.Target.Name, row: op.targetRow, col: ci, old: oldRow[ci]})
				if err := store.SetValue(op.targetRow, ci, op.vals[i]); err != nil {
					return nil, errors.Wrap(err, "merge")
				}
			}
			affected++
		case mergeOpDelete:
			deletes = append(deletes, op.targetRow)
			affected++
		}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(deletes)))
	for _, r := range deletes {
		e.txn.record(&undoDeleteRow{table: s.Target.Name, row: r, vals: store.Row(r)})
		store.DeleteRow(r)
	}

	for _, op := range ops {
		if op.kind != mergeOpInsert {
			continue
		}
		if err := e.checkRow(s.Target.Name, store, op.insertRow); err != nil {
			return nil, errors.Wrap(err, "merge")
		}
		idx, err := store.AppendRow(op.insertRow)
		if err != nil {
			return nil, errors.Wrap(err, "merge")
		}
		e.txn.record(&undoInsertRow{table: s.Target.Name, row: idx})
		affected++
	}

	return statusResult(fmt.Sprintf("MERGE %d", affected)), nil
}
