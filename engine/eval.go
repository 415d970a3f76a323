package engine

import (
	"strconv"
	"strings"

	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/format"
	"github.com/vjrajchauhan/pivot-engine/funcs"
	"github.com/vjrajchauhan/pivot-engine/storage"
	"github.com/vjrajchauhan/pivot-engine/token"
	"github.com/vjrajchauhan/pivot-engine/value"
)

func lowerName(s string) string { return strings.ToLower(s) }

// evalCtx is the row context an expression evaluates against: the
// current relation and row, an outer-row stack for correlated
// subqueries, an optional group context for aggregates, and precomputed
// window values.
type evalCtx struct {
	e   *Engine
	rel *relation
	row []value.Value

	// outer chains to the enclosing query's context for correlation.
	outer *evalCtx

	// groupRows, when non-nil, makes this a group context: aggregate
	// calls fold over these rows.
	groupRows [][]value.Value

	// nullOver maps rendered grouping expressions to NULL for grouping
	// sets whose active set excludes them.
	nullOver map[string]bool

	// windows holds per-output-row window call results; rowIdx selects
	// the current row's slot.
	windows map[*ast.FuncExpr][]value.Value
	rowIdx  int
}

func (ctx *evalCtx) child(row []value.Value) *evalCtx {
	return &evalCtx{e: ctx.e, rel: ctx.rel, row: row, outer: ctx.outer, nullOver: ctx.nullOver}
}

// eval evaluates a scalar expression to a value.
func (ctx *evalCtx) eval(expr ast.Expr) (value.Value, error) {
	if ctx.nullOver != nil {
		if _, isLit := expr.(*ast.Literal); !isLit {
			if ctx.nullOver[format.Expr(expr)] {
				return value.Null(), nil
			}
		}
	}

	switch ex := expr.(type) {
	case *ast.Literal:
		return evalLiteral(ex)

	case *ast.ColName:
		return ctx.evalColumn(ex)

	case *ast.ParenExpr:
		return ctx.eval(ex.Expr)

	case *ast.BinaryExpr:
		return ctx.evalBinary(ex)

	case *ast.UnaryExpr:
		return ctx.evalUnary(ex)

	case *ast.FuncExpr:
		return ctx.evalFunc(ex)

	case *ast.CastExpr:
		return ctx.evalCast(ex)

	case *ast.CaseExpr:
		return ctx.evalCase(ex)

	case *ast.InExpr:
		return ctx.evalIn(ex)

	case *ast.BetweenExpr:
		return ctx.evalBetween(ex)

	case *ast.LikeExpr:
		return ctx.evalLike(ex)

	case *ast.IsExpr:
		return ctx.evalIs(ex)

	case *ast.DistinctFromExpr:
		l, err := ctx.eval(ex.Left)
		if err != nil {
			return value.Null(), err
		}
		r, err := ctx.eval(ex.Right)
		if err != nil {
			return value.Null(), err
		}
		same := value.DistinctEqual(l, r)
		if ex.Not {
			return value.Bool(same), nil
		}
		return value.Bool(!same), nil

	case *ast.ExistsExpr:
		rel, err := ctx.e.execQueryCtx(ex.Subquery.Select, ctx)
		if err != nil {
			return value.Null(), err
		}
		found := len(rel.rows) > 0
		if ex.Not {
			found = !found
		}
		return value.Bool(found), nil

	case *ast.Subquery:
		return ctx.evalScalarSubquery(ex)

	case *ast.IntervalExpr:
		amount, err := ctx.eval(ex.Value)
		if err != nil {
			return value.Null(), err
		}
		if amount.IsNull() {
			return value.Null(), nil
		}
		iv, err := value.ParseInterval(amount.Text(), ex.Unit)
		if err != nil {
			return value.Null(), &RuntimeError{Msg: err.Error()}
		}
		return value.NewInterval(iv), nil

	case *ast.ExtractExpr:
		src, err := ctx.eval(ex.Source)
		if err != nil {
			return value.Null(), err
		}
		out, err := funcs.Extract(ex.Field, src)
		if err != nil {
			return value.Null(), &RuntimeError{Msg: err.Error()}
		}
		return out, nil

	case *ast.TrimExpr:
		return ctx.callScalar("TRIM", []ast.Expr{ex.Expr})

	case *ast.SubstringExpr:
		args := []ast.Expr{ex.Expr}
		if ex.From != nil {
			args = append(args, ex.From)
		}
		if ex.For != nil {
			args = append(args, ex.For)
		}
		return ctx.callScalar("SUBSTRING", args)

	case *ast.PositionExpr:
		return ctx.callScalar("POSITION", []ast.Expr{ex.Needle, ex.Haystack})

	case *ast.StarExpr:
		return value.Null(), planErrf("'*' is not valid in this context")

	default:
		return value.Null(), planErrf("unsupported expression %T", expr)
	}
}

// predicate evaluates an expression as a three-valued condition.
func (ctx *evalCtx) predicate(expr ast.Expr) (value.TriBool, error) {
	v, err := ctx.eval(expr)
	if err != nil {
		return value.Unknown, err
	}
	return v.Tri(), nil
}

func evalLiteral(lit *ast.Literal) (value.Value, error) {
	switch lit.Type {
	case ast.LiteralNull:
		return value.Null(), nil
	case ast.LiteralBool:
		return value.Bool(strings.EqualFold(lit.Value, "TRUE")), nil
	case ast.LiteralInt:
		if n, err := strconv.ParseInt(lit.Value, 10, 64); err == nil {
			return value.Int(n), nil
		}
		// Out-of-range integer literals widen to float
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return value.Null(), runtimeErrf("invalid numeric literal %q", lit.Value)
		}
		return value.Float(f), nil
	case ast.LiteralFloat:
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return value.Null(), runtimeErrf("invalid numeric literal %q", lit.Value)
		}
		return value.Float(f), nil
	case ast.LiteralString:
		return value.Str(lit.Value), nil
	case ast.LiteralDate:
		days, err := value.ParseDate(lit.Value)
		if err != nil {
			return value.Null(), &RuntimeError{Msg: err.Error()}
		}
		return value.Date(days), nil
	case ast.LiteralTimestamp:
		us, err := value.ParseTimestamp(lit.Value)
		if err != nil {
			return value.Null(), &RuntimeError{Msg: err.Error()}
		}
		return value.Timestamp(us), nil
	case ast.LiteralTime:
		us, err := value.ParseTimeOfDay(lit.Value)
		if err != nil {
			return value.Null(), &RuntimeError{Msg: err.Error()}
		}
		return value.TimeOfDay(us), nil
	default:
		return value.Null(), planErrf("unknown literal type")
	}
}

func (ctx *evalCtx) evalColumn(col *ast.ColName) (value.Value, error) {
	for c := ctx; c != nil; c = c.outer {
		if c.rel == nil {
			continue
		}
		idx, ambiguous, found := c.rel.lookup(col.Table(), col.Name())
		if ambiguous {
			return value.Null(), storage.Schemaf("ambiguous column reference %q", strings.Join(col.Parts, "."))
		}
		if found {
			return c.row[idx], nil
		}
	}
	return value.Null(), storage.Schemaf("unknown column %q", strings.Join(col.Parts, "."))
}

func (ctx *evalCtx) evalBinary(ex *ast.BinaryExpr) (value.Value, error) {
	// Three-valued AND/OR short-circuit on definite values.
	switch ex.Op {
	case token.AND:
		l, err := ctx.predicate(ex.Left)
		if err != nil {
			return value.Null(), err
		}
		if l == value.False {
			return value.Bool(false), nil
		}
		r, err := ctx.predicate(ex.Right)
		if err != nil {
			return value.Null(), err
		}
		return l.And(r).Value(), nil

	case token.OR:
		l, err := ctx.predicate(ex.Left)
		if err != nil {
			return value.Null(), err
		}
		if l == value.True {
			return value.Bool(true), nil
		}
		r, err := ctx.predicate(ex.Right)
		if err != nil {
			return value.Null(), err
		}
		return l.Or(r).Value(), nil
	}

	l, err := ctx.eval(ex.Left)
	if err != nil {
		return value.Null(), err
	}
	r, err := ctx.eval(ex.Right)
	if err != nil {
		return value.Null(), err
	}

	switch ex.Op {
	case token.EQ, token.NEQ, token.LT, token.LTE, token.GT, token.GTE:
		return evalComparison(ex.Op, l, r), nil
	case token.PLUS:
		return value.Add(l, r)
	case token.MINUS:
		return value.Sub(l, r)
	case token.ASTERISK:
		return value.Mul(l, r)
	case token.SLASH:
		return value.Div(l, r)
	case token.PERCENT:
		return value.Mod(l, r)
	case token.CONCAT:
		return value.Concat(l, r)
	default:
		return value.Null(), planErrf("unsupported operator %v", ex.Op)
	}
}

func evalComparison(op token.Token, l, r value.Value) value.Value {
	ord := value.Compare(l, r)
	if ord == value.Incomparable {
		return value.Null()
	}
	var res bool
	switch op {
	case token.EQ:
		res = ord == value.Equal
	case token.NEQ:
		res = ord != value.Equal
	case token.LT:
		res = ord == value.Less
	case token.LTE:
		res = ord != value.Greater
	case token.GT:
		res = ord == value.Greater
	case token.GTE:
		res = ord != value.Less
	}
	return value.Bool(res)
}

func (ctx *evalCtx) evalUnary(ex *ast.UnaryExpr) (value.Value, error) {
	switch ex.Op {
	case token.NOT:
		t, err := ctx.predicate(ex.Operand)
		if err != nil {
			return value.Null(), err
		}
		return t.Not().Value(), nil
	case token.MINUS:
		v, err := ctx.eval(ex.Operand)
		if err != nil {
			return value.Null(), err
		}
		return value.Neg(v)
	case token.PLUS:
		return ctx.eval(ex.Operand)
	default:
		return value.Null(), planErrf("unsupported unary operator %v", ex.Op)
	}
}

func (ctx *evalCtx) evalFunc(fn *ast.FuncExpr) (value.Value, error) {
	// Window call: values were computed by the window stage.
	if fn.Over != nil {
		if ctx.windows != nil {
			if vals, ok := ctx.windows[fn]; ok {
				return vals[ctx.rowIdx], nil
			}
		}
		return value.Null(), planErrf("window function %s is not valid in this context", fn.Name)
	}

	if funcs.IsWindowOnly(fn.Name) {
		return value.Null(), planErrf("window function %s requires an OVER clause", fn.Name)
	}

	// Aggregate call: fold over the group context.
	if agg, ok := funcs.LookupAggregate(fn.Name); ok {
		return ctx.evalAggregate(fn, agg)
	}

	s, ok := funcs.LookupScalar(fn.Name)
	if !ok {
		return value.Null(), planErrf("unknown function %s", fn.Name)
	}
	args := make([]value.Value, len(fn.Args))
	for i, a := range fn.Args {
		v, err := ctx.eval(a)
		if err != nil {
			return value.Null(), err
		}
		args[i] = v
	}
	out, err := s.Call(ctx.e.fctx, args)
	if err != nil {
		if _, isType := err.(*value.TypeError); isType {
			return value.Null(), err
		}
		return value.Null(), &RuntimeError{Msg: err.Error()}
	}
	return out, nil
}

func (ctx *evalCtx) callScalar(name string, argExprs []ast.Expr) (value.Value, error) {
	s, ok := funcs.LookupScalar(name)
	if !ok {
		return value.Null(), planErrf("unknown function %s", name)
	}
	args := make([]value.Value, len(argExprs))
	for i, a := range argExprs {
		v, err := ctx.eval(a)
		if err != nil {
			return value.Null(), err
		}
		args[i] = v
	}
	out, err := s.Call(ctx.e.fctx, args)
	if err != nil {
		return value.Null(), &RuntimeError{Msg: err.Error()}
	}
	return out, nil
}

func (ctx *evalCtx) evalAggregate(fn *ast.FuncExpr, agg *funcs.Aggregate) (value.Value, error) {
	if ctx.groupRows == nil {
		return value.Null(), planErrf("aggregate %s is not allowed in this context", fn.Name)
	}
	if fn.Distinct && !agg.Distinct {
		return value.Null(), planErrf("DISTINCT is not supported for %s", fn.Name)
	}

	state := agg.NewState()
	var seen map[string]bool
	if fn.Distinct {
		seen = make(map[string]bool)
	}

	for _, row := range ctx.groupRows {
		rowCtx := ctx.child(row)

		if fn.Star {
			if err := state.Add(nil); err != nil {
				return value.Null(), &RuntimeError{Msg: err.Error()}
			}
			continue
		}

		args := make([]value.Value, len(fn.Args))
		for i, a := range fn.Args {
			v, err := rowCtx.eval(a)
			if err != nil {
				return value.Null(), err
			}
			args[i] = v
		}
		if len(args) == 0 {
			// COUNT() behaves as COUNT(*)
			if err := state.Add(nil); err != nil {
				return value.Null(), &RuntimeError{Msg: err.Error()}
			}
			continue
		}

		if seen != nil && !args[0].IsNull() {
			var b strings.Builder
			args[0].Key(&b)
			k := b.String()
			if seen[k] {
				continue
			}
			seen[k] = true
		}

		if err := state.Add(args); err != nil {
			return value.Null(), &RuntimeError{Msg: err.Error()}
		}
	}

	return state.Result(), nil
}

func (ctx *evalCtx) evalCast(ex *ast.CastExpr) (value.Value, error) {
	v, err := ctx.eval(ex.Expr)
	if err != nil {
		return value.Null(), err
	}
	t, err := typeFromAST(ex.Type)
	if err != nil {
		return value.Null(), err
	}
	return value.Cast(v, t, !ex.Try)
}

func typeFromAST(dt *ast.DataType) (value.Type, error) {
	prec, scale := 0, 0
	if dt.Precision != nil {
		prec = *dt.Precision
	}
	if dt.Scale != nil {
		scale = *dt.Scale
	}
	t, ok := value.TypeFromName(dt.Name, prec, scale)
	if !ok {
		return value.Type{}, planErrf("unknown type %s", dt.Name)
	}
	return t, nil
}

func (ctx *evalCtx) evalCase(ex *ast.CaseExpr) (value.Value, error) {
	if ex.Operand != nil {
		operand, err := ctx.eval(ex.Operand)
		if err != nil {
			return value.Null(), err
		}
		for _, when := range ex.Whens {
			w, err := ctx.eval(when.Cond)
			if err != nil {
				return value.Null(), err
			}
			if value.Eq3(operand, w) == value.True {
				return ctx.eval(when.Result)
			}
		}
	} else {
		for _, when := range ex.Whens {
			t, err := ctx.predicate(when.Cond)
			if err != nil {
				return value.Null(), err
			}
			if t == value.True {
				return ctx.eval(when.Result)
			}
		}
	}
	if ex.Else != nil {
		return ctx.eval(ex.Else)
	}
	return value.Null(), nil
}

func (ctx *evalCtx) evalIn(ex *ast.InExpr) (value.Value, error) {
	needle, err := ctx.eval(ex.Expr)
	if err != nil {
		return value.Null(), err
	}

	var candidates []value.Value
	if ex.Select != nil {
		rel, err := ctx.e.execQueryCtx(ex.Select, ctx)
		if err != nil {
			return value.Null(), err
		}
		if len(rel.cols) != 1 {
			return value.Null(), planErrf("IN subquery must return exactly one column")
		}
		for _, row := range rel.rows {
			candidates = append(candidates, row[0])
		}
	} else {
		for _, v := range ex.Values {
			c, err := ctx.eval(v)
			if err != nil {
				return value.Null(), err
			}
			candidates = append(candidates, c)
		}
	}

	result := value.False
	for _, c := range candidates {
		switch value.Eq3(needle, c) {
		case value.True:
			result = value.True
		case value.Unknown:
			if result == value.False {
				result = value.Unknown
			}
		}
		if result == value.True {
			break
		}
	}

	if ex.Not {
		result = result.Not()
	}
	return result.Value(), nil
}

func (ctx *evalCtx) evalBetween(ex *ast.BetweenExpr) (value.Value, error) {
	v, err := ctx.eval(ex.Expr)
	if err != nil {
		return value.Null(), err
	}
	low, err := ctx.eval(ex.Low)
	if err != nil {
		return value.Null(), err
	}
	high, err := ctx.eval(ex.High)
	if err != nil {
		return value.Null(), err
	}

	ge := evalComparison(token.GTE, v, low).Tri()
	le := evalComparison(token.LTE, v, high).Tri()
	result := ge.And(le)
	if ex.Not {
		result = result.Not()
	}
	return result.Value(), nil
}

func (ctx *evalCtx) evalLike(ex *ast.LikeExpr) (value.Value, error) {
	v, err := ctx.eval(ex.Expr)
	if err != nil {
		return value.Null(), err
	}
	pattern, err := ctx.eval(ex.Pattern)
	if err != nil {
		return value.Null(), err
	}
	if v.IsNull() || pattern.IsNull() {
		return value.Null(), nil
	}

	matched := likeMatch([]rune(v.Text()), []rune(pattern.Text()))
	if ex.Not {
		matched = !matched
	}
	return value.Bool(matched), nil
}

// likeMatch implements SQL LIKE: % matches zero or more characters,
// _ matches exactly one. Matching is case-sensitive.
func likeMatch(s, p []rune) bool {
	// Iterative matcher with backtracking over the last %
	si, pi := 0, 0
	starSi, starPi := -1, -1
	for si < len(s) {
		switch {
		case pi < len(p) && p[pi] == '%':
			starSi, starPi = si, pi
			pi++
		case pi < len(p) && (p[pi] == '_' || p[pi] == s[si]):
			si++
			pi++
		case starPi >= 0:
			starSi++
			si = starSi
			pi = starPi + 1
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '%' {
		pi++
	}
	return pi == len(p)
}

func (ctx *evalCtx) evalIs(ex *ast.IsExpr) (value.Value, error) {
	v, err := ctx.eval(ex.Expr)
	if err != nil {
		return value.Null(), err
	}

	var res bool
	switch ex.What {
	case ast.IsNull:
		res = v.IsNull()
	case ast.IsTrue:
		res = v.Tri() == value.True
	case ast.IsFalse:
		res = v.Tri() == value.False
	case ast.IsUnknown:
		res = v.Tri() == value.Unknown
	}
	if ex.Not {
		res = !res
	}
	return value.Bool(res), nil
}

func (ctx *evalCtx) evalScalarSubquery(sq *ast.Subquery) (value.Value, error) {
	rel, err := ctx.e.execQueryCtx(sq.Select, ctx)
	if err != nil {
		return value.Null(), err
	}
	if len(rel.cols) != 1 {
		return value.Null(), planErrf("scalar subquery must return exactly one column")
	}
	switch len(rel.rows) {
	case 0:
		return value.Null(), nil
	case 1:
		return rel.rows[0][0], nil
	default:
		return value.Null(), runtimeErrf("scalar subquery returned %d rows", len(rel.rows))
	}
}
