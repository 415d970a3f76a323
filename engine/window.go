package engine

import (
	"strings"

	"github.com/vjrajchauhan/pivot-engine/ast"
	"github.com/vjrajchauhan/pivot-engine/funcs"
	"github.com/vjrajchauhan/pivot-engine/value"
)

// computeWindows evaluates every window call over the post-HAVING rows.
// Each call partitions the rows by its PARTITION BY keys, sorts each
// partition by its ORDER BY (stable), and computes one value per row
// under the call's frame.
func (e *Engine) computeWindows(calls []*ast.FuncExpr, outRows []*srcRow, rel *relation, outer *evalCtx, defs []*ast.WindowDef) (map[*ast.FuncExpr][]value.Value, error) {
	named := make(map[string]*ast.WindowSpec, len(defs))
	for _, d := range defs {
		named[lowerName(d.Name)] = d.Spec
	}

	out := make(map[*ast.FuncExpr][]value.Value, len(calls))
	for _, call := range calls {
		spec := call.Over
		if spec.Name != "" {
			resolved, ok := named[lowerName(spec.Name)]
			if !ok {
				return nil, planErrf("unknown window %q", spec.Name)
			}
			spec = resolved
		}

		vals, err := e.computeOneWindow(call, spec, outRows, rel, outer)
		if err != nil {
			return nil, err
		}
		out[call] = vals
	}
	return out, nil
}

func (e *Engine) computeOneWindow(call *ast.FuncExpr, spec *ast.WindowSpec, outRows []*srcRow, rel *relation, outer *evalCtx) ([]value.Value, error) {
	vals := make([]value.Value, len(outRows))

	// Partition the rows, preserving arrival order within partitions.
	partitions := make(map[string][]int)
	var order []string
	for i, sr := range outRows {
		ctx := e.srcCtx(rel, sr, outer, nil)
		var b strings.Builder
		for _, ex := range spec.PartitionBy {
			v, err := ctx.eval(ex)
			if err != nil {
				return nil, err
			}
			v.Key(&b)
		}
		k := b.String()
		if _, ok := partitions[k]; !ok {
			order = append(order, k)
		}
		partitions[k] = append(partitions[k], i)
	}

	for _, k := range order {
		part := partitions[k]

		// Sort the partition by the window's ORDER BY.
		var keys [][]value.Value
		if len(spec.OrderBy) > 0 {
			keys = make([][]value.Value, len(part))
			for pi, ri := range part {
				ctx := e.srcCtx(rel, outRows[ri], outer, nil)
				key := make([]value.Value, len(spec.OrderBy))
				for oi, item := range spec.OrderBy {
					v, err := ctx.eval(item.Expr)
					if err != nil {
						return nil, err
					}
					key[oi] = v
				}
				keys[pi] = key
			}
			idx := make([]int, len(part))
			for i := range idx {
				idx[i] = i
			}
			stableSortBy(idx, func(a, b int) int {
				return compareOrderKeys(keys[a], keys[b], spec.OrderBy)
			})
			sorted := make([]int, len(part))
			sortedKeys := make([][]value.Value, len(part))
			for i, j := range idx {
				sorted[i] = part[j]
				sortedKeys[i] = keys[j]
			}
			part = sorted
			keys = sortedKeys
		}

		if err := e.fillWindowValues(call, spec, part, keys, outRows, rel, outer, vals); err != nil {
			return nil, err
		}
	}

	return vals, nil
}

func stableSortBy(idx []int, cmp func(a, b int) int) {
	// Insertion sort keeps the implementation dependency-free and
	// stable; partitions are small relative to the full input.
	for i := 1; i < len(idx); i++ {
		for j := i; j > 0 && cmp(idx[j], idx[j-1]) < 0; j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
}

// fillWindowValues computes one window call for every row of one sorted
// partition.
func (e *Engine) fillWindowValues(call *ast.FuncExpr, spec *ast.WindowSpec, part []int, keys [][]value.Value, outRows []*srcRow, rel *relation, outer *evalCtx, vals []value.Value) error {
	n := len(part)
	name := strings.ToLower(call.Name)

	rowCtx := func(pi int) *evalCtx {
		return e.srcCtx(rel, outRows[part[pi]], outer, nil)
	}
	samePeer := func(a, b int) bool {
		if keys == nil {
			return true
		}
		return compareOrderKeys(keys[a], keys[b], spec.OrderBy) == 0
	}

	switch name {
	case "row_number":
		for i := 0; i < n; i++ {
			vals[part[i]] = value.Int(int64(i + 1))
		}
		return nil

	case "rank":
		rank := 1
		for i := 0; i < n; i++ {
			if i > 0 && !samePeer(i, i-1) {
				rank = i + 1
			}
			vals[part[i]] = value.Int(int64(rank))
		}
		return nil

	case "dense_rank":
		rank := 1
		for i := 0; i < n; i++ {
			if i > 0 && !samePeer(i, i-1) {
				rank++
			}
			vals[part[i]] = value.Int(int64(rank))
		}
		return nil

	case "ntile":
		if len(call.Args) != 1 {
			return planErrf("NTILE requires one argument")
		}
		kv, err := (&evalCtx{e: e}).eval(call.Args[0])
		if err != nil {
			return err
		}
		ki, err := value.Cast(kv, value.Type{Kind: value.KindInt64}, true)
		if err != nil {
			return err
		}
		k := int(ki.Int())
		if k <= 0 {
			return runtimeErrf("NTILE argument must be positive")
		}
		base := n / k
		extra := n % k
		pos := 0
		for bucket := 1; bucket <= k && pos < n; bucket++ {
			size := base
			if bucket <= extra {
				size++
			}
			for j := 0; j < size && pos < n; j++ {
				vals[part[pos]] = value.Int(int64(bucket))
				pos++
			}
		}
		return nil

	case "lag", "lead":
		if len(call.Args) < 1 || len(call.Args) > 3 {
			return planErrf("%s takes 1 to 3 arguments", call.Name)
		}
		offset := int64(1)
		if len(call.Args) >= 2 {
			ov, err := (&evalCtx{e: e}).eval(call.Args[1])
			if err != nil {
				return err
			}
			oi, err := value.Cast(ov, value.Type{Kind: value.KindInt64}, true)
			if err != nil {
				return err
			}
			offset = oi.Int()
		}
		for i := 0; i < n; i++ {
			target := i - int(offset)
			if name == "lead" {
				target = i + int(offset)
			}
			if target >= 0 && target < n {
				v, err := rowCtx(target).eval(call.Args[0])
				if err != nil {
					return err
				}
				vals[part[i]] = v
				continue
			}
			if len(call.Args) == 3 {
				v, err := rowCtx(i).eval(call.Args[2])
				if err != nil {
					return err
				}
				vals[part[i]] = v
			} else {
				vals[part[i]] = value.Null()
			}
		}
		return nil

	case "first_value", "last_value":
		if len(call.Args) != 1 {
			return planErrf("%s requires one argument", call.Name)
		}
		for i := 0; i < n; i++ {
			start, end, err := frameBounds(e, spec, i, n)
			if err != nil {
				return err
			}
			if start > end {
				vals[part[i]] = value.Null()
				continue
			}
			target := start
			if name == "last_value" {
				target = end
			}
			v, err := rowCtx(target).eval(call.Args[0])
			if err != nil {
				return err
			}
			vals[part[i]] = v
		}
		return nil
	}

	// Any aggregate used as a window function computes over the frame.
	agg, ok := funcs.LookupAggregate(call.Name)
	if !ok {
		return planErrf("%s is not a window function", call.Name)
	}
	for i := 0; i < n; i++ {
		start, end, err := frameBounds(e, spec, i, n)
		if err != nil {
			return err
		}
		state := agg.NewState()
		for j := start; j <= end && j < n; j++ {
			if j < 0 {
				continue
			}
			if call.Star {
				if err := state.Add(nil); err != nil {
					return &RuntimeError{Msg: err.Error()}
				}
				continue
			}
			args := make([]value.Value, len(call.Args))
			ctx := rowCtx(j)
			for ai, a := range call.Args {
				v, err := ctx.eval(a)
				if err != nil {
					return err
				}
				args[ai] = v
			}
			if len(args) == 0 {
				err = state.Add(nil)
			} else {
				err = state.Add(args)
			}
			if err != nil {
				return &RuntimeError{Msg: err.Error()}
			}
		}
		vals[part[i]] = state.Result()
	}
	return nil
}

// frameBounds resolves the window frame for the row at position j of an
// n-row partition. The default frame runs from the partition start to
// the current row when an ORDER BY is present, and over the whole
// partition otherwise. ROWS frames support every bound; RANGE is
// accepted only for the combinations equivalent to the defaults.
func frameBounds(e *Engine, spec *ast.WindowSpec, j, n int) (int, int, error) {
	f := spec.Frame
	if f == nil {
		if len(spec.OrderBy) > 0 {
			return 0, j, nil
		}
		return 0, n - 1, nil
	}

	if f.Type == ast.FrameRange {
		startOK := f.Start != nil && f.Start.Type == ast.BoundUnboundedPreceding
		endOK := f.End == nil || f.End.Type == ast.BoundCurrentRow || f.End.Type == ast.BoundUnboundedFollowing
		if !startOK || !endOK {
			return 0, 0, planErrf("unsupported window frame: RANGE with offset bounds")
		}
		if f.End != nil && f.End.Type == ast.BoundUnboundedFollowing {
			return 0, n - 1, nil
		}
		return 0, j, nil
	}

	resolve := func(b *ast.FrameBound, isStart bool) (int, error) {
		if b == nil {
			return j, nil // missing end bound means CURRENT ROW
		}
		switch b.Type {
		case ast.BoundUnboundedPreceding:
			return 0, nil
		case ast.BoundUnboundedFollowing:
			if isStart {
				return 0, planErrf("unsupported window frame: frame cannot start at UNBOUNDED FOLLOWING")
			}
			return n - 1, nil
		case ast.BoundCurrentRow:
			return j, nil
		case ast.BoundPreceding, ast.BoundFollowing:
			ov, err := (&evalCtx{e: e}).eval(b.Offset)
			if err != nil {
				return 0, err
			}
			oi, err := value.Cast(ov, value.Type{Kind: value.KindInt64}, true)
			if err != nil {
				return 0, err
			}
			off := int(oi.Int())
			if off < 0 {
				return 0, runtimeErrf("frame offset must not be negative")
			}
			if b.Type == ast.BoundPreceding {
				return j - off, nil
			}
			return j + off, nil
		default:
			return 0, planErrf("unsupported frame bound")
		}
	}

	start, err := resolve(f.Start, true)
	if err != nil {
		return 0, 0, err
	}
	end, err := resolve(f.End, false)
	if err != nil {
		return 0, 0, err
	}
	if start < 0 {
		start = 0
	}
	if end > n-1 {
		end = n - 1
	}
	return start, end, nil
}
