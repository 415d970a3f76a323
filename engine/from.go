package engine

import (
	"strings"

	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/catalog"
	"github.com/vjrajchauhan/pivot-engine/funcs"
	"github.com/vjrajchauhan/pivot-engine/token"
	"github.com/vjrajchauhan/pivot-engine/value"
)

// cartesianLimit caps the output of a single join node.
const cartesianLimit = 10_000_000

// resolveFrom materializes a from-item into a relation.
func (e *Engine) resolveFrom(te ast.TableExpr, outer *evalCtx) (*relation, error) {
	if te == nil {
		return oneEmptyRow(), nil
	}

	switch t := te.(type) {
	case *ast.TableName:
		return e.resolveTableName(t.Name)

	case *ast.AliasedTableExpr:
		inner, err := e.resolveFrom(t.Expr, outer)
		if err != nil {
			return nil, err
		}
		return inner.withQualifier(t.Alias, t.ColAliases)

	case *ast.ParenTableExpr:
		return e.resolveFrom(t.Expr, outer)

	case *ast.Subquery:
		return e.execQueryCtx(t.Select, outer)

	case *ast.JoinExpr:
		return e.execJoin(t, outer)

	case *ast.PivotExpr:
		return e.execPivot(t, outer)

	case *ast.UnpivotExpr:
		return e.execUnpivot(t, outer)

	default:
		return nil, planErrf("unsupported from-item %T", te)
	}
}

// resolveTableName resolves a name against CTE bindings first, then the
// catalog. Views substitute their defining query as a derived table on
// every use.
func (e *Engine) resolveTableName(name string) (*relation, error) {
	if rel, ok := e.lookupCTE(name); ok {
		return rel.withQualifier(name, nil)
	}

	entry, err := e.cat.Get(name)
	if err != nil {
		return nil, err
	}

	if entry.Kind == catalog.KindTable {
		return fromStore(entry.Store, name), nil
	}

	rel, err := e.execQueryCtx(entry.ViewQuery, nil)
	if err != nil {
		return nil, err
	}
	return rel.withQualifier(name, entry.ViewColumns)
}

// Joins

func (e *Engine) execJoin(j *ast.JoinExpr, outer *evalCtx) (*relation, error) {
	left, err := e.resolveFrom(j.Left, outer)
	if err != nil {
		return nil, err
	}
	right, err := e.resolveFrom(j.Right, outer)
	if err != nil {
		return nil, err
	}

	if j.Type == ast.JoinCross {
		return crossJoin(left, right)
	}

	// NATURAL and USING derive equi-keys from column names; the output
	// schema deduplicates the join keys.
	if j.Natural || len(j.Using) > 0 {
		pairs, err := namedJoinKeys(left, right, j)
		if err != nil {
			return nil, err
		}
		if len(pairs) == 0 {
			// NATURAL with no shared columns degenerates to a cross join
			return crossJoin(left, right)
		}
		joined, err := e.hashJoin(j.Type, left, right, pairs, nil, outer)
		if err != nil {
			return nil, err
		}
		return dedupJoinKeys(joined, left, pairs), nil
	}

	if j.On == nil {
		return nil, planErrf("%s JOIN requires an ON or USING clause", j.Type)
	}

	pairs, residual := extractEquiKeys(j.On, left, right)
	if len(pairs) > 0 {
		return e.hashJoin(j.Type, left, right, pairs, residual, outer)
	}
	return e.nestedLoopJoin(j.Type, left, right, j.On, outer)
}

func joinedCols(left, right *relation) []relCol {
	cols := make([]relCol, 0, len(left.cols)+len(right.cols))
	cols = append(cols, left.cols...)
	cols = append(cols, right.cols...)
	return cols
}

func combineRows(l, r []value.Value) []value.Value {
	row := make([]value.Value, 0, len(l)+len(r))
	row = append(row, l...)
	return append(row, r...)
}

func nullRow(n int) []value.Value {
	return make([]value.Value, n)
}

func crossJoin(left, right *relation) (*relation, error) {
	if len(left.rows)*len(right.rows) > cartesianLimit {
		return nil, runtimeErrf("join would produce more than %d rows", cartesianLimit)
	}
	out := newRelation(joinedCols(left, right))
	for _, l := range left.rows {
		for _, r := range right.rows {
			out.rows = append(out.rows, combineRows(l, r))
		}
	}
	return out, nil
}

// keyPair is one equi-join key: column indexes on each side.
type keyPair struct {
	left  int
	right int
}

// namedJoinKeys derives key pairs for NATURAL (shared names) and USING.
func namedJoinKeys(left, right *relation, j *ast.JoinExpr) ([]keyPair, error) {
	var pairs []keyPair
	if j.Natural {
		for li, lc := range left.cols {
			for ri, rc := range right.cols {
				if strings.EqualFold(lc.Name, rc.Name) {
					pairs = append(pairs, keyPair{left: li, right: ri})
					break
				}
			}
		}
		return pairs, nil
	}
	for _, name := range j.Using {
		li, err := left.columnIndex("", name)
		if err != nil {
			return nil, err
		}
		ri, err := right.columnIndex("", name)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, keyPair{left: li, right: ri})
	}
	return pairs, nil
}

// dedupJoinKeys projects away the right side's copies of the join keys
// and coalesces the key values so FULL/RIGHT non-matches keep them.
func dedupJoinKeys(joined, left *relation, pairs []keyPair) *relation {
	nLeft := len(left.cols)
	drop := make(map[int]int, len(pairs)) // joined col index -> left key index
	for _, p := range pairs {
		drop[nLeft+p.right] = p.left
	}

	var cols []relCol
	var keep []int
	for i, c := range joined.cols {
		if _, isDup := drop[i]; isDup {
			continue
		}
		cols = append(cols, c)
		keep = append(keep, i)
	}

	out := newRelation(cols)
	for _, row := range joined.rows {
		// Preserved-side NULL extension leaves the left key empty; fill
		// it from the right copy before dropping it.
		for ri, li := range drop {
			if row[li].IsNull() {
				row[li] = row[ri]
			}
		}
		newRow := make([]value.Value, len(keep))
		for i, idx := range keep {
			newRow[i] = row[idx]
		}
		out.rows = append(out.rows, newRow)
	}
	return out
}

// extractEquiKeys splits an ON predicate into hash-joinable column
// equalities and a residual predicate list. Only a top-level AND
// conjunction is examined; the key columns' types must match.
func extractEquiKeys(on ast.Expr, left, right *relation) ([]keyPair, []ast.Expr) {
	var conjuncts []ast.Expr
	var collect func(ex ast.Expr)
	collect = func(ex ast.Expr) {
		if b, ok := ex.(*ast.BinaryExpr); ok && b.Op == token.AND {
			collect(b.Left)
			collect(b.Right)
			return
		}
		if p, ok := ex.(*ast.ParenExpr); ok {
			collect(p.Expr)
			return
		}
		conjuncts = append(conjuncts, ex)
	}
	collect(on)

	var pairs []keyPair
	var residual []ast.Expr
	for _, c := range conjuncts {
		b, ok := c.(*ast.BinaryExpr)
		if !ok || b.Op != token.EQ {
			residual = append(residual, c)
			continue
		}
		lc, lok := b.Left.(*ast.ColName)
		rc, rok := b.Right.(*ast.ColName)
		if !lok || !rok {
			residual = append(residual, c)
			continue
		}

		li, lerr := left.columnIndex(lc.Table(), lc.Name())
		ri, rerr := right.columnIndex(rc.Table(), rc.Name())
		if lerr == nil && rerr == nil && left.cols[li].Type.Kind == right.cols[ri].Type.Kind {
			pairs = append(pairs, keyPair{left: li, right: ri})
			continue
		}
		// Try the flipped orientation
		ri2, rerr2 := right.columnIndex(lc.Table(), lc.Name())
		li2, lerr2 := left.columnIndex(rc.Table(), rc.Name())
		if lerr2 == nil && rerr2 == nil && left.cols[li2].Type.Kind == right.cols[ri2].Type.Kind {
			pairs = append(pairs, keyPair{left: li2, right: ri2})
			continue
		}
		residual = append(residual, c)
	}
	return pairs, residual
}

// hashJoin builds a hash table on the smaller side and probes with the
// larger, preserving the probe side's row order. NULL keys never match.
func (e *Engine) hashJoin(jt ast.JoinType, left, right *relation, pairs []keyPair, residual []ast.Expr, outer *evalCtx) (*relation, error) {
	out := newRelation(joinedCols(left, right))

	leftKeys := make([]int, len(pairs))
	rightKeys := make([]int, len(pairs))
	for i, p := range pairs {
		leftKeys[i] = p.left
		rightKeys[i] = p.right
	}

	buildLeft := len(left.rows) <= len(right.rows)
	var build, probe *relation
	var buildKeys, probeKeys []int
	if buildLeft {
		build, probe = left, right
		buildKeys, probeKeys = leftKeys, rightKeys
	} else {
		build, probe = right, left
		buildKeys, probeKeys = rightKeys, leftKeys
	}

	table := make(map[string][]int, len(build.rows))
	for i, row := range build.rows {
		if hasNullAt(row, buildKeys) {
			continue
		}
		k := rowKey(row, buildKeys)
		table[k] = append(table[k], i)
	}

	leftMatched := make([]bool, len(left.rows))
	rightMatched := make([]bool, len(right.rows))

	emit := func(li, ri int) error {
		row := combineRows(left.rows[li], right.rows[ri])
		keep, err := e.evalResidual(out, row, residual, outer)
		if err != nil {
			return err
		}
		if keep {
			leftMatched[li] = true
			rightMatched[ri] = true
			out.rows = append(out.rows, row)
			if len(out.rows) > cartesianLimit {
				return runtimeErrf("join would produce more than %d rows", cartesianLimit)
			}
		}
		return nil
	}

	for pi, prow := range probe.rows {
		if hasNullAt(prow, probeKeys) {
			continue
		}
		for _, bi := range table[rowKey(prow, probeKeys)] {
			var li, ri int
			if buildLeft {
				li, ri = bi, pi
			} else {
				li, ri = pi, bi
			}
			if err := emit(li, ri); err != nil {
				return nil, err
			}
		}
	}

	appendOuterRows(out, jt, left, right, leftMatched, rightMatched)
	return out, nil
}

func (e *Engine) nestedLoopJoin(jt ast.JoinType, left, right *relation, on ast.Expr, outer *evalCtx) (*relation, error) {
	if len(left.rows)*len(right.rows) > cartesianLimit {
		return nil, runtimeErrf("join would produce more than %d rows", cartesianLimit)
	}

	out := newRelation(joinedCols(left, right))
	leftMatched := make([]bool, len(left.rows))
	rightMatched := make([]bool, len(right.rows))

	for li, lrow := range left.rows {
		for ri, rrow := range right.rows {
			row := combineRows(lrow, rrow)
			ctx := &evalCtx{e: e, rel: out, row: row, outer: outer}
			t, err := ctx.predicate(on)
			if err != nil {
				return nil, err
			}
			if t == value.True {
				leftMatched[li] = true
				rightMatched[ri] = true
				out.rows = append(out.rows, row)
			}
		}
	}

	appendOuterRows(out, jt, left, right, leftMatched, rightMatched)
	return out, nil
}

// appendOuterRows adds NULL-extended rows for the preserved side(s) of
// an outer join.
func appendOuterRows(out *relation, jt ast.JoinType, left, right *relation, leftMatched, rightMatched []bool) {
	if jt == ast.JoinLeft || jt == ast.JoinFull {
		for li, matched := range leftMatched {
			if !matched {
				out.rows = append(out.rows, combineRows(left.rows[li], nullRow(len(right.cols))))
			}
		}
	}
	if jt == ast.JoinRight || jt == ast.JoinFull {
		for ri, matched := range rightMatched {
			if !matched {
				out.rows = append(out.rows, combineRows(nullRow(len(left.cols)), right.rows[ri]))
			}
		}
	}
}

func (e *Engine) evalResidual(rel *relation, row []value.Value, residual []ast.Expr, outer *evalCtx) (bool, error) {
	for _, pred := range residual {
		ctx := &evalCtx{e: e, rel: rel, row: row, outer: outer}
		t, err := ctx.predicate(pred)
		if err != nil {
			return false, err
		}
		if t != value.True {
			return false, nil
		}
	}
	return true, nil
}

func hasNullAt(row []value.Value, idxs []int) bool {
	for _, i := range idxs {
		if row[i].IsNull() {
			return true
		}
	}
	return false
}

// PIVOT / UNPIVOT

// execPivot reshapes the source: grouping columns are all columns other
// than the aggregate's value column and the key column; each IN value
// becomes one output column holding the aggregate over the partition's
// rows with that key.
func (e *Engine) execPivot(p *ast.PivotExpr, outer *evalCtx) (*relation, error) {
	src, err := e.resolveFrom(p.Source, outer)
	if err != nil {
		return nil, err
	}

	agg, ok := funcs.LookupAggregate(p.Agg.Name)
	if !ok {
		return nil, planErrf("%s is not an aggregate function", p.Agg.Name)
	}
	if len(p.Agg.Args) != 1 {
		return nil, planErrf("PIVOT aggregate must take exactly one argument")
	}
	valCol, ok := p.Agg.Args[0].(*ast.ColName)
	if !ok {
		return nil, planErrf("PIVOT aggregate argument must be a column")
	}
	valIdx, err := src.columnIndex(valCol.Table(), valCol.Name())
	if err != nil {
		return nil, err
	}
	keyIdx, err := src.columnIndex("", p.Key.Name())
	if err != nil {
		return nil, err
	}

	// Grouping columns: everything except value and key.
	var groupIdx []int
	var cols []relCol
	for i, c := range src.cols {
		if i == valIdx || i == keyIdx {
			continue
		}
		groupIdx = append(groupIdx, i)
		cols = append(cols, relCol{Name: c.Name, Type: c.Type})
	}

	inVals := make([]value.Value, len(p.In))
	for i, lit := range p.In {
		v, err := evalLiteral(lit)
		if err != nil {
			return nil, err
		}
		inVals[i] = v
		cols = append(cols, relCol{Name: v.Text()})
	}

	type pivotGroup struct {
		rep    []value.Value
		states []funcs.AggState
		filled []bool
	}
	groups := make(map[string]*pivotGroup)
	var order []string

	for _, row := range src.rows {
		k := rowKey(row, groupIdx)
		g, seen := groups[k]
		if !seen {
			g = &pivotGroup{
				rep:    row,
				states: make([]funcs.AggState, len(inVals)),
				filled: make([]bool, len(inVals)),
			}
			for i := range g.states {
				g.states[i] = agg.NewState()
			}
			groups[k] = g
			order = append(order, k)
		}
		for i, iv := range inVals {
			if value.Eq3(row[keyIdx], iv) == value.True {
				g.filled[i] = true
				if err := g.states[i].Add([]value.Value{row[valIdx]}); err != nil {
					return nil, &RuntimeError{Msg: err.Error()}
				}
			}
		}
	}

	out := newRelation(cols)
	for _, k := range order {
		g := groups[k]
		row := make([]value.Value, 0, len(cols))
		for _, gi := range groupIdx {
			row = append(row, g.rep[gi])
		}
		for i := range inVals {
			if !g.filled[i] {
				row = append(row, value.Null())
				continue
			}
			row = append(row, g.states[i].Result())
		}
		out.rows = append(out.rows, row)
	}
	return out, nil
}

// execUnpivot emits one row per listed column per input row, dropping
// rows whose unpivoted value is NULL.
func (e *Engine) execUnpivot(u *ast.UnpivotExpr, outer *evalCtx) (*relation, error) {
	src, err := e.resolveFrom(u.Source, outer)
	if err != nil {
		return nil, err
	}

	listed := make([]int, len(u.Columns))
	listedSet := make(map[int]bool, len(u.Columns))
	for i, name := range u.Columns {
		idx, err := src.columnIndex("", name)
		if err != nil {
			return nil, err
		}
		listed[i] = idx
		listedSet[idx] = true
	}

	var keepIdx []int
	var cols []relCol
	for i, c := range src.cols {
		if listedSet[i] {
			continue
		}
		keepIdx = append(keepIdx, i)
		cols = append(cols, relCol{Name: c.Name, Type: c.Type})
	}
	cols = append(cols,
		relCol{Name: u.KeyCol, Type: value.Type{Kind: value.KindUtf8}},
		relCol{Name: u.ValueCol})

	out := newRelation(cols)
	for _, row := range src.rows {
		for _, ci := range listed {
			if row[ci].IsNull() {
				continue
			}
			newRow := make([]value.Value, 0, len(cols))
			for _, ki := range keepIdx {
				newRow = append(newRow, row[ki])
			}
			newRow = append(newRow, value.Str(src.cols[ci].Name), row[ci])
			out.rows = append(out.rows, newRow)
		}
	}
	return out, nil
}
