package engine

import (
	"sort"
	"strconv"
	"strings"

	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/format"
	"github.com/vjrajchauhan/pivot-engine/funcs"
	"github.com/vjrajchauhan/pivot-engine/storage"
	"github.com/vjrajchauhan/pivot-engine/value"
	"github.com/vjrajchauhan/pivot-engine/visitor"
)

// recursionLimit bounds recursive-CTE iteration.
const recursionLimit = 10_000

func (e *Engine) execQuery(stmt ast.Statement) (*relation, error) {
	return e.execQueryCtx(stmt, nil)
}

// execQueryCtx evaluates a query statement (SELECT block or set-op
// tree) with an optional outer row context for correlation.
func (e *Engine) execQueryCtx(stmt ast.Statement, outer *evalCtx) (*relation, error) {
	switch s := stmt.(type) {
	case *ast.SelectStmt:
		if s.With != nil {
			body := *s
			body.With = nil
			return e.execWith(s.With, &body, outer)
		}
		return e.execSelectBlock(s, outer)

	case *ast.SetOp:
		if s.With != nil {
			body := *s
			body.With = nil
			return e.execWith(s.With, &body, outer)
		}
		return e.execSetOp(s, outer)

	default:
		return nil, planErrf("expected a query, got %T", stmt)
	}
}

// execWith evaluates a WITH clause. Non-recursive CTEs are inlined into
// the body as derived tables (AST substitution, copy-on-write);
// WITH RECURSIVE materializes each CTE by semi-naive fixpoint and binds
// it by name.
func (e *Engine) execWith(with *ast.WithClause, body ast.Statement, outer *evalCtx) (*relation, error) {
	if !with.Recursive {
		return e.execQueryCtx(inlineCTEs(body, with.CTEs), outer)
	}

	frame := make(map[string]*relation, len(with.CTEs))
	e.pushCTEFrame(frame)
	defer e.popCTEFrame()

	for _, cte := range with.CTEs {
		rel, err := e.evalRecursiveCTE(cte)
		if err != nil {
			return nil, err
		}
		frame[lowerName(cte.Name)] = rel
	}
	return e.execQueryCtx(body, outer)
}

// inlineCTEs substitutes each CTE body for the table names that
// reference it, in declaration order so later CTEs can use earlier
// ones.
func inlineCTEs(body ast.Statement, ctes []*ast.CTE) ast.Statement {
	type def struct {
		query ast.Statement
		cols  []string
	}
	defs := make(map[string]def, len(ctes))

	substitute := func(stmt ast.Statement) ast.Statement {
		return visitor.RewriteTables(stmt, func(tn *ast.TableName) ast.TableExpr {
			d, ok := defs[lowerName(tn.Name)]
			if !ok {
				return nil
			}
			return &ast.AliasedTableExpr{
				Expr:       &ast.Subquery{Select: d.query},
				Alias:      tn.Name,
				ColAliases: d.cols,
			}
		})
	}

	for _, cte := range ctes {
		defs[lowerName(cte.Name)] = def{query: substitute(cte.Query), cols: cte.Columns}
	}
	return substitute(body)
}

// evalRecursiveCTE materializes one CTE of a WITH RECURSIVE clause. A
// CTE whose body does not reference itself evaluates directly; a
// self-referencing UNION evaluates by semi-naive fixpoint: the
// recursive term sees only the newest frontier until it produces
// nothing new.
func (e *Engine) evalRecursiveCTE(cte *ast.CTE) (*relation, error) {
	name := lowerName(cte.Name)

	setop, isSetOp := cte.Query.(*ast.SetOp)
	selfRef := false
	if isSetOp && setop.Type == ast.Union {
		visitor.WalkFunc(setop.Right, func(n ast.Node) bool {
			if tn, ok := n.(*ast.TableName); ok && lowerName(tn.Name) == name {
				selfRef = true
			}
			return true
		})
	}

	if !selfRef {
		rel, err := e.execQuery(cte.Query)
		if err != nil {
			return nil, err
		}
		return applyCTEColumns(rel, cte)
	}

	anchor, err := e.execQuery(setop.Left)
	if err != nil {
		return nil, err
	}
	anchor, err = applyCTEColumns(anchor, cte)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(anchor.rows))
	result := newRelation(anchor.cols)
	var working [][]value.Value
	for _, row := range anchor.rows {
		if !setop.All {
			k := valuesKey(row)
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		result.rows = append(result.rows, row)
		working = append(working, row)
	}

	for iter := 0; len(working) > 0; iter++ {
		if iter >= recursionLimit {
			return nil, runtimeErrf("recursive CTE %q exceeded %d iterations", cte.Name, recursionLimit)
		}

		e.pushCTEFrame(map[string]*relation{
			name: {cols: result.cols, rows: working},
		})
		frontier, err := e.execQuery(setop.Right)
		e.popCTEFrame()
		if err != nil {
			return nil, err
		}
		if len(frontier.cols) != len(result.cols) {
			return nil, storage.Schemaf("recursive term of %q returns %d columns, anchor returns %d",
				cte.Name, len(frontier.cols), len(result.cols))
		}

		working = working[:0]
		for _, row := range frontier.rows {
			if !setop.All {
				k := valuesKey(row)
				if seen[k] {
					continue
				}
				seen[k] = true
			}
			result.rows = append(result.rows, row)
			working = append(working, row)
		}
	}

	return result, nil
}

func applyCTEColumns(rel *relation, cte *ast.CTE) (*relation, error) {
	if len(cte.Columns) == 0 {
		return rel, nil
	}
	return rel.withQualifier(cte.Name, cte.Columns)
}

// srcRow is one output-candidate row with everything needed to evaluate
// expressions over it: the representative input row, the group it
// stands for, active grouping-set NULL overrides, and its window slot.
type srcRow struct {
	row      []value.Value
	group    [][]value.Value
	nullOver map[string]bool
	winIdx   int
}

func (e *Engine) srcCtx(rel *relation, sr *srcRow, outer *evalCtx, windows map[*ast.FuncExpr][]value.Value) *evalCtx {
	return &evalCtx{
		e:         e,
		rel:       rel,
		row:       sr.row,
		outer:     outer,
		groupRows: sr.group,
		nullOver:  sr.nullOver,
		windows:   windows,
		rowIdx:    sr.winIdx,
	}
}

// execSelectBlock runs the logical pipeline for one SELECT block:
// FROM, WHERE, grouping, HAVING, windows, QUALIFY, projection,
// DISTINCT, ORDER BY, LIMIT.
func (e *Engine) execSelectBlock(sel *ast.SelectStmt, outer *evalCtx) (*relation, error) {
	rel, err := e.resolveFrom(sel.From, outer)
	if err != nil {
		return nil, err
	}

	// WHERE: keep rows whose predicate is True.
	if sel.Where != nil {
		var kept [][]value.Value
		for _, row := range rel.rows {
			ctx := &evalCtx{e: e, rel: rel, row: row, outer: outer}
			t, err := ctx.predicate(sel.Where)
			if err != nil {
				return nil, err
			}
			if t == value.True {
				kept = append(kept, row)
			}
		}
		rel = &relation{cols: rel.cols, rows: kept}
	}

	// Grouping.
	grouped := sel.GroupBy != nil || sel.Having != nil ||
		containsAggregate(selectExprList(sel.Columns)) ||
		containsAggregate(orderByExprList(sel.OrderBy))
	var outRows []*srcRow
	if grouped {
		outRows, err = e.groupRows(sel, rel, outer)
		if err != nil {
			return nil, err
		}
	} else {
		outRows = make([]*srcRow, len(rel.rows))
		for i, row := range rel.rows {
			outRows[i] = &srcRow{row: row}
		}
	}

	// HAVING: predicate over the group context.
	if sel.Having != nil {
		var kept []*srcRow
		for _, sr := range outRows {
			ctx := e.srcCtx(rel, sr, outer, nil)
			t, err := ctx.predicate(sel.Having)
			if err != nil {
				return nil, err
			}
			if t == value.True {
				kept = append(kept, sr)
			}
		}
		outRows = kept
	}

	// Window functions: computed after HAVING, before projection.
	winCalls := collectWindowCalls(sel)
	var windows map[*ast.FuncExpr][]value.Value
	if len(winCalls) > 0 {
		for i, sr := range outRows {
			sr.winIdx = i
		}
		windows, err = e.computeWindows(winCalls, outRows, rel, outer, sel.WindowDefs)
		if err != nil {
			return nil, err
		}
	}

	// QUALIFY: filter on window expressions.
	if sel.Qualify != nil {
		var kept []*srcRow
		for _, sr := range outRows {
			ctx := e.srcCtx(rel, sr, outer, windows)
			t, err := ctx.predicate(sel.Qualify)
			if err != nil {
				return nil, err
			}
			if t == value.True {
				kept = append(kept, sr)
			}
		}
		outRows = kept
	}

	// Projection.
	items, err := expandProjection(sel.Columns, rel)
	if err != nil {
		return nil, err
	}
	outCols := make([]relCol, len(items))
	for i, item := range items {
		outCols[i] = relCol{Name: item.name}
		if item.colIdx >= 0 {
			outCols[i].Type = rel.cols[item.colIdx].Type
		}
	}

	out := newRelation(outCols)
	srcOf := make([]*srcRow, 0, len(outRows))
	for _, sr := range outRows {
		ctx := e.srcCtx(rel, sr, outer, windows)
		row := make([]value.Value, len(items))
		for i, item := range items {
			if item.colIdx >= 0 {
				row[i] = sr.row[item.colIdx]
				continue
			}
			v, err := ctx.eval(item.expr)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		out.rows = append(out.rows, row)
		srcOf = append(srcOf, sr)
	}

	// DISTINCT: NULL equals NULL for deduplication.
	if sel.Distinct {
		seen := make(map[string]bool, len(out.rows))
		var rows [][]value.Value
		var srcs []*srcRow
		for i, row := range out.rows {
			k := valuesKey(row)
			if seen[k] {
				continue
			}
			seen[k] = true
			rows = append(rows, row)
			srcs = append(srcs, srcOf[i])
		}
		out.rows = rows
		srcOf = srcs
	}

	// ORDER BY: stable sort; ordinals and output aliases resolve
	// against the projection, everything else against the source rows.
	if len(sel.OrderBy) > 0 {
		if err := e.sortProjected(out, srcOf, rel, sel.OrderBy, outer, windows); err != nil {
			return nil, err
		}
	}

	// OFFSET then LIMIT.
	if sel.Limit != nil {
		if err := e.applyLimit(out, sel.Limit); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// groupRows partitions the relation's rows per the statement's grouping
// sets, producing one srcRow per group in set-declaration order.
func (e *Engine) groupRows(sel *ast.SelectStmt, rel *relation, outer *evalCtx) ([]*srcRow, error) {
	sets, all := expandGroupingSets(sel.GroupBy)

	multiSet := len(sets) > 1
	var out []*srcRow
	for _, set := range sets {
		var nullOver map[string]bool
		if multiSet {
			inSet := make(map[string]bool, len(set))
			for _, ex := range set {
				inSet[format.Expr(ex)] = true
			}
			nullOver = make(map[string]bool)
			for _, ex := range all {
				if fp := format.Expr(ex); !inSet[fp] {
					nullOver[fp] = true
				}
			}
		}

		// Implicit single group: no grouping expressions means the
		// whole relation is one group, even when it is empty.
		if len(set) == 0 {
			group := &srcRow{
				row:      nullRow(len(rel.cols)),
				group:    rel.rows,
				nullOver: nullOver,
			}
			if len(rel.rows) > 0 {
				group.row = rel.rows[0]
			}
			if group.group == nil {
				group.group = [][]value.Value{}
			}
			out = append(out, group)
			continue
		}

		type grp struct {
			rep  []value.Value
			rows [][]value.Value
		}
		groups := make(map[string]*grp)
		var order []string
		for _, row := range rel.rows {
			ctx := &evalCtx{e: e, rel: rel, row: row, outer: outer}
			var b strings.Builder
			for _, ex := range set {
				v, err := ctx.eval(ex)
				if err != nil {
					return nil, err
				}
				v.Key(&b)
			}
			k := b.String()
			g, ok := groups[k]
			if !ok {
				g = &grp{rep: row}
				groups[k] = g
				order = append(order, k)
			}
			g.rows = append(g.rows, row)
		}

		for _, k := range order {
			g := groups[k]
			out = append(out, &srcRow{row: g.rep, group: g.rows, nullOver: nullOver})
		}
	}
	return out, nil
}

// expandGroupingSets normalizes the GROUP BY clause into explicit
// grouping sets: ROLLUP(a,b,c) is ((a,b,c),(a,b),(a),()); CUBE is every
// subset in mask order from full to empty.
func expandGroupingSets(gb *ast.GroupByClause) (sets [][]ast.Expr, all []ast.Expr) {
	if gb == nil {
		return [][]ast.Expr{{}}, nil
	}

	switch gb.Mode {
	case ast.GroupByPlain:
		return [][]ast.Expr{gb.Exprs}, gb.Exprs

	case ast.GroupByRollup:
		for n := len(gb.Exprs); n >= 0; n-- {
			sets = append(sets, gb.Exprs[:n])
		}
		return sets, gb.Exprs

	case ast.GroupByCube:
		n := len(gb.Exprs)
		for mask := (1 << n) - 1; mask >= 0; mask-- {
			var set []ast.Expr
			for i := 0; i < n; i++ {
				if mask&(1<<(n-1-i)) != 0 {
					set = append(set, gb.Exprs[i])
				}
			}
			sets = append(sets, set)
		}
		return sets, gb.Exprs

	default: // GroupBySets
		seen := make(map[string]bool)
		for _, set := range gb.Sets {
			for _, ex := range set {
				if fp := format.Expr(ex); !seen[fp] {
					seen[fp] = true
					all = append(all, ex)
				}
			}
		}
		return gb.Sets, all
	}
}

// projItem is one projection output: either a direct column of the
// input relation (star expansion) or a computed expression.
type projItem struct {
	expr   ast.Expr
	colIdx int
	name   string
}

func expandProjection(items []ast.SelectExpr, rel *relation) ([]projItem, error) {
	var out []projItem
	for _, item := range items {
		switch it := item.(type) {
		case *ast.StarExpr:
			matched := false
			for i, c := range rel.cols {
				if it.TableName != "" && !strings.EqualFold(c.Table, it.TableName) {
					continue
				}
				out = append(out, projItem{colIdx: i, name: c.Name})
				matched = true
			}
			if it.TableName != "" && !matched {
				return nil, storage.Schemaf("unknown table %q in select list", it.TableName)
			}
			if it.TableName == "" && len(rel.cols) == 0 {
				return nil, storage.Schemaf("SELECT * with no FROM clause")
			}

		case *ast.AliasedExpr:
			name := it.Alias
			if name == "" {
				name = format.ColumnName(it.Expr)
			}
			out = append(out, projItem{expr: it.Expr, colIdx: -1, name: name})

		default:
			return nil, planErrf("unsupported select item %T", item)
		}
	}
	if len(out) == 0 {
		return nil, planErrf("empty select list")
	}
	return out, nil
}

// Aggregate and window detection walk expressions but stop at subquery
// boundaries: a nested query's aggregates are its own.

func selectExprList(items []ast.SelectExpr) []ast.Expr {
	var out []ast.Expr
	for _, item := range items {
		if ae, ok := item.(*ast.AliasedExpr); ok {
			out = append(out, ae.Expr)
		}
	}
	return out
}

func orderByExprList(items []*ast.OrderByExpr) []ast.Expr {
	var out []ast.Expr
	for _, o := range items {
		out = append(out, o.Expr)
	}
	return out
}

func containsAggregate(exprs []ast.Expr) bool {
	found := false
	for _, ex := range exprs {
		visitor.WalkFunc(ex, func(n ast.Node) bool {
			switch fn := n.(type) {
			case *ast.SelectStmt, *ast.SetOp:
				return false
			case *ast.FuncExpr:
				if fn.Over == nil && funcs.IsAggregate(fn.Name) {
					found = true
				}
			}
			return true
		})
	}
	return found
}

func collectWindowCalls(sel *ast.SelectStmt) []*ast.FuncExpr {
	var calls []*ast.FuncExpr
	seen := make(map[*ast.FuncExpr]bool)
	scan := func(ex ast.Expr) {
		visitor.WalkFunc(ex, func(n ast.Node) bool {
			switch fn := n.(type) {
			case *ast.SelectStmt, *ast.SetOp:
				return false
			case *ast.FuncExpr:
				if fn.Over != nil && !seen[fn] {
					seen[fn] = true
					calls = append(calls, fn)
				}
			}
			return true
		})
	}
	for _, ex := range selectExprList(sel.Columns) {
		scan(ex)
	}
	if sel.Qualify != nil {
		scan(sel.Qualify)
	}
	for _, o := range sel.OrderBy {
		scan(o.Expr)
	}
	return calls
}

// Sorting

// sortProjected orders the projected rows. Integer literals are
// 1-based output ordinals; bare names matching an output column use the
// projected value; everything else evaluates against the source row.
func (e *Engine) sortProjected(out *relation, srcOf []*srcRow, rel *relation, orderBy []*ast.OrderByExpr, outer *evalCtx, windows map[*ast.FuncExpr][]value.Value) error {
	keys := make([][]value.Value, len(out.rows))
	for i := range keys {
		keys[i] = make([]value.Value, len(orderBy))
	}

	for oi, item := range orderBy {
		// Ordinal reference
		if lit, ok := item.Expr.(*ast.Literal); ok && lit.Type == ast.LiteralInt {
			ord, err := strconv.Atoi(lit.Value)
			if err != nil || ord < 1 || ord > len(out.cols) {
				return planErrf("ORDER BY position %s is out of range", lit.Value)
			}
			for i, row := range out.rows {
				keys[i][oi] = row[ord-1]
			}
			continue
		}

		// Output column (alias) reference
		if col, ok := item.Expr.(*ast.ColName); ok && col.Table() == "" {
			idx, found := -1, 0
			for ci, c := range out.cols {
				if strings.EqualFold(c.Name, col.Name()) {
					idx = ci
					found++
				}
			}
			if found == 1 {
				for i, row := range out.rows {
					keys[i][oi] = row[idx]
				}
				continue
			}
		}

		// General expression over the source rows
		if srcOf == nil {
			return planErrf("cannot order by %s here", format.Expr(item.Expr))
		}
		for i := range out.rows {
			ctx := e.srcCtx(rel, srcOf[i], outer, windows)
			v, err := ctx.eval(item.Expr)
			if err != nil {
				return err
			}
			keys[i][oi] = v
		}
	}

	idx := make([]int, len(out.rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return compareOrderKeys(keys[idx[a]], keys[idx[b]], orderBy) < 0
	})

	rows := make([][]value.Value, len(out.rows))
	for i, j := range idx {
		rows[i] = out.rows[j]
	}
	out.rows = rows
	if srcOf != nil {
		srcs := make([]*srcRow, len(srcOf))
		for i, j := range idx {
			srcs[i] = srcOf[j]
		}
		copy(srcOf, srcs)
	}
	return nil
}

// compareOrderKeys compares two key tuples under the ORDER BY items'
// direction and null placement. The default places NULLs last for ASC
// and first for DESC.
func compareOrderKeys(a, b []value.Value, orderBy []*ast.OrderByExpr) int {
	for i, item := range orderBy {
		av, bv := a[i], b[i]

		if av.IsNull() || bv.IsNull() {
			if av.IsNull() && bv.IsNull() {
				continue
			}
			nullsFirst := item.Desc
			if item.NullsFirst != nil {
				nullsFirst = *item.NullsFirst
			}
			if av.IsNull() {
				if nullsFirst {
					return -1
				}
				return 1
			}
			if nullsFirst {
				return 1
			}
			return -1
		}

		ord := value.Compare(av, bv)
		if ord == value.Equal || ord == value.Incomparable {
			continue
		}
		less := ord == value.Less
		if item.Desc {
			less = !less
		}
		if less {
			return -1
		}
		return 1
	}
	return 0
}

func (e *Engine) applyLimit(out *relation, limit *ast.Limit) error {
	bare := &evalCtx{e: e}

	offset := 0
	if limit.Offset != nil {
		v, err := bare.eval(limit.Offset)
		if err != nil {
			return err
		}
		if !v.IsNull() {
			n, err := value.Cast(v, value.Type{Kind: value.KindInt64}, true)
			if err != nil {
				return err
			}
			offset = int(n.Int())
			if offset < 0 {
				offset = 0
			}
		}
	}
	if offset >= len(out.rows) {
		out.rows = nil
		return nil
	}
	out.rows = out.rows[offset:]

	if limit.Count != nil {
		v, err := bare.eval(limit.Count)
		if err != nil {
			return err
		}
		if !v.IsNull() {
			n, err := value.Cast(v, value.Type{Kind: value.KindInt64}, true)
			if err != nil {
				return err
			}
			count := int(n.Int())
			if count < 0 {
				count = 0
			}
			if count < len(out.rows) {
				out.rows = out.rows[:count]
			}
		}
	}
	return nil
}

// Set operations

func (e *Engine) execSetOp(s *ast.SetOp, outer *evalCtx) (*relation, error) {
	left, err := e.execQueryCtx(s.Left, outer)
	if err != nil {
		return nil, err
	}
	right, err := e.execQueryCtx(s.Right, outer)
	if err != nil {
		return nil, err
	}
	if len(left.cols) != len(right.cols) {
		return nil, storage.Schemaf("%s requires equal column counts (%d vs %d)",
			s.Type, len(left.cols), len(right.cols))
	}

	// Unify column types through the coercion lattice.
	unified := make([]value.Type, len(left.cols))
	cols := make([]relCol, len(left.cols))
	for i := range left.cols {
		unified[i] = value.Unify(left.cols[i].Type, right.cols[i].Type)
		cols[i] = relCol{Name: left.cols[i].Name, Type: unified[i]}
	}
	coerceRows := func(rel *relation) error {
		for _, row := range rel.rows {
			for i := range row {
				if unified[i].Kind == value.KindNull || row[i].Kind() == unified[i].Kind {
					continue
				}
				v, err := value.Coerce(row[i], unified[i])
				if err != nil {
					return err
				}
				row[i] = v
			}
		}
		return nil
	}
	if err := coerceRows(left); err != nil {
		return nil, err
	}
	if err := coerceRows(right); err != nil {
		return nil, err
	}

	out := newRelation(cols)
	switch s.Type {
	case ast.Union:
		if s.All {
			out.rows = append(out.rows, left.rows...)
			out.rows = append(out.rows, right.rows...)
		} else {
			seen := make(map[string]bool)
			for _, rows := range [][][]value.Value{left.rows, right.rows} {
				for _, row := range rows {
					k := valuesKey(row)
					if seen[k] {
						continue
					}
					seen[k] = true
					out.rows = append(out.rows, row)
				}
			}
		}

	case ast.Intersect:
		counts := make(map[string]int)
		for _, row := range right.rows {
			counts[valuesKey(row)]++
		}
		emitted := make(map[string]bool)
		for _, row := range left.rows {
			k := valuesKey(row)
			if counts[k] <= 0 {
				continue
			}
			if s.All {
				counts[k]--
				out.rows = append(out.rows, row)
			} else if !emitted[k] {
				emitted[k] = true
				out.rows = append(out.rows, row)
			}
		}

	case ast.Except:
		counts := make(map[string]int)
		for _, row := range right.rows {
			counts[valuesKey(row)]++
		}
		emitted := make(map[string]bool)
		for _, row := range left.rows {
			k := valuesKey(row)
			if s.All {
				if counts[k] > 0 {
					counts[k]--
					continue
				}
				out.rows = append(out.rows, row)
			} else {
				if counts[k] > 0 || emitted[k] {
					continue
				}
				emitted[k] = true
				out.rows = append(out.rows, row)
			}
		}
	}

	if len(s.OrderBy) > 0 {
		if err := e.sortProjected(out, nil, out, s.OrderBy, outer, nil); err != nil {
			return nil, err
		}
	}
	if s.Limit != nil {
		if err := e.applyLimit(out, s.Limit); err != nil {
			return nil, err
		}
	}
	return out, nil
}
