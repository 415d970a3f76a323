package funcs

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/vjrajchauhan/pivot-engine/value"
)

// Aggregates skip NULL inputs (COUNT(*) counts rows, not values). The
// executor handles DISTINCT by deduplicating before Add.

func init() {
	registerAgg(&Aggregate{Name: "COUNT", MinArgs: 0, MaxArgs: 1, Distinct: true,
		NewState: func() AggState { return &countState{} }})
	registerAgg(&Aggregate{Name: "SUM", MinArgs: 1, MaxArgs: 1, Distinct: true,
		NewState: func() AggState { return &sumState{} }})
	registerAgg(&Aggregate{Name: "AVG", MinArgs: 1, MaxArgs: 1, Distinct: true,
		NewState: func() AggState { return &avgState{} }})
	registerAgg(&Aggregate{Name: "MIN", MinArgs: 1, MaxArgs: 1,
		NewState: func() AggState { return &minMaxState{want: value.Less} }})
	registerAgg(&Aggregate{Name: "MAX", MinArgs: 1, MaxArgs: 1,
		NewState: func() AggState { return &minMaxState{want: value.Greater} }})
	registerAgg(&Aggregate{Name: "STDDEV", MinArgs: 1, MaxArgs: 1,
		NewState: func() AggState { return &varianceState{mode: varStddevSamp} }})
	registerAgg(&Aggregate{Name: "STDDEV_SAMP", MinArgs: 1, MaxArgs: 1,
		NewState: func() AggState { return &varianceState{mode: varStddevSamp} }})
	registerAgg(&Aggregate{Name: "STDDEV_POP", MinArgs: 1, MaxArgs: 1,
		NewState: func() AggState { return &varianceState{mode: varStddevPop} }})
	registerAgg(&Aggregate{Name: "VARIANCE", MinArgs: 1, MaxArgs: 1,
		NewState: func() AggState { return &varianceState{mode: varSamp} }})
	registerAgg(&Aggregate{Name: "VAR_SAMP", MinArgs: 1, MaxArgs: 1,
		NewState: func() AggState { return &varianceState{mode: varSamp} }})
	registerAgg(&Aggregate{Name: "VAR_POP", MinArgs: 1, MaxArgs: 1,
		NewState: func() AggState { return &varianceState{mode: varPop} }})
	registerAgg(&Aggregate{Name: "MEDIAN", MinArgs: 1, MaxArgs: 1,
		NewState: func() AggState { return &medianState{} }})
	registerAgg(&Aggregate{Name: "MODE", MinArgs: 1, MaxArgs: 1,
		NewState: func() AggState { return &modeState{counts: map[string]int{}} }})
	registerAgg(&Aggregate{Name: "STRING_AGG", MinArgs: 1, MaxArgs: 2, Distinct: true,
		NewState: func() AggState { return &stringAggState{sep: ","} }})
	registerAgg(&Aggregate{Name: "GROUP_CONCAT", MinArgs: 1, MaxArgs: 2, Distinct: true,
		NewState: func() AggState { return &stringAggState{sep: ","} }})
}

type countState struct {
	n int64
}

func (s *countState) Add(args []value.Value) error {
	if args == nil {
		// COUNT(*)
		s.n++
		return nil
	}
	if !args[0].IsNull() {
		s.n++
	}
	return nil
}

func (s *countState) Result() value.Value {
	return value.Int(s.n)
}

type sumState struct {
	intSum   int64
	floatSum float64
	isFloat  bool
	seen     bool
}

func (s *sumState) Add(args []value.Value) error {
	v := args[0]
	if v.IsNull() {
		return nil
	}
	if !v.Kind().IsNumeric() {
		return fmt.Errorf("SUM: expected a numeric argument, got %s", v.Kind())
	}
	s.seen = true
	if !s.isFloat && v.Kind() == value.KindInt64 {
		sum := s.intSum + v.Int()
		if (s.intSum > 0 && v.Int() > 0 && sum < 0) || (s.intSum < 0 && v.Int() < 0 && sum >= 0) {
			s.isFloat = true
			s.floatSum = float64(s.intSum) + float64(v.Int())
			return nil
		}
		s.intSum = sum
		return nil
	}
	if !s.isFloat {
		s.isFloat = true
		s.floatSum = float64(s.intSum)
	}
	s.floatSum += v.AsFloat()
	return nil
}

func (s *sumState) Result() value.Value {
	if !s.seen {
		return value.Null()
	}
	if s.isFloat {
		return value.Float(s.floatSum)
	}
	return value.Int(s.intSum)
}

type avgState struct {
	sum float64
	n   int64
}

func (s *avgState) Add(args []value.Value) error {
	v := args[0]
	if v.IsNull() {
		return nil
	}
	if !v.Kind().IsNumeric() {
		return fmt.Errorf("AVG: expected a numeric argument, got %s", v.Kind())
	}
	s.sum += v.AsFloat()
	s.n++
	return nil
}

func (s *avgState) Result() value.Value {
	if s.n == 0 {
		return value.Null()
	}
	return value.Float(s.sum / float64(s.n))
}

type minMaxState struct {
	want value.Ordering
	best value.Value
	seen bool
}

func (s *minMaxState) Add(args []value.Value) error {
	v := args[0]
	if v.IsNull() {
		return nil
	}
	if !s.seen {
		s.best = v
		s.seen = true
		return nil
	}
	if value.Compare(v, s.best) == s.want {
		s.best = v
	}
	return nil
}

func (s *minMaxState) Result() value.Value {
	if !s.seen {
		return value.Null()
	}
	return s.best
}

type varMode int

const (
	varSamp varMode = iota
	varPop
	varStddevSamp
	varStddevPop
)

// varianceState uses Welford's online algorithm.
type varianceState struct {
	mode varMode
	n    int64
	mean float64
	m2   float64
}

func (s *varianceState) Add(args []value.Value) error {
	v := args[0]
	if v.IsNull() {
		return nil
	}
	if !v.Kind().IsNumeric() {
		return fmt.Errorf("STDDEV: expected a numeric argument, got %s", v.Kind())
	}
	x := v.AsFloat()
	s.n++
	delta := x - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (x - s.mean)
	return nil
}

func (s *varianceState) Result() value.Value {
	switch s.mode {
	case varPop, varStddevPop:
		if s.n == 0 {
			return value.Null()
		}
		v := s.m2 / float64(s.n)
		if s.mode == varStddevPop {
			return value.Float(math.Sqrt(v))
		}
		return value.Float(v)
	default:
		if s.n < 2 {
			return value.Null()
		}
		v := s.m2 / float64(s.n-1)
		if s.mode == varStddevSamp {
			return value.Float(math.Sqrt(v))
		}
		return value.Float(v)
	}
}

type medianState struct {
	vals []float64
}

func (s *medianState) Add(args []value.Value) error {
	v := args[0]
	if v.IsNull() {
		return nil
	}
	if !v.Kind().IsNumeric() {
		return fmt.Errorf("MEDIAN: expected a numeric argument, got %s", v.Kind())
	}
	s.vals = append(s.vals, v.AsFloat())
	return nil
}

func (s *medianState) Result() value.Value {
	if len(s.vals) == 0 {
		return value.Null()
	}
	sort.Float64s(s.vals)
	mid := len(s.vals) / 2
	if len(s.vals)%2 == 1 {
		return value.Float(s.vals[mid])
	}
	return value.Float((s.vals[mid-1] + s.vals[mid]) / 2)
}

// modeState returns the most frequent value; ties break toward the
// first-seen value, keeping results deterministic.
type modeState struct {
	counts map[string]int
	order  []value.Value
	keys   []string
}

func (s *modeState) Add(args []value.Value) error {
	v := args[0]
	if v.IsNull() {
		return nil
	}
	var b strings.Builder
	v.Key(&b)
	k := b.String()
	if _, seen := s.counts[k]; !seen {
		s.order = append(s.order, v)
		s.keys = append(s.keys, k)
	}
	s.counts[k]++
	return nil
}

func (s *modeState) Result() value.Value {
	if len(s.order) == 0 {
		return value.Null()
	}
	best, bestCount := s.order[0], s.counts[s.keys[0]]
	for i := 1; i < len(s.order); i++ {
		if c := s.counts[s.keys[i]]; c > bestCount {
			best, bestCount = s.order[i], c
		}
	}
	return best
}

type stringAggState struct {
	sep    string
	sepSet bool
	parts  []string
	seen   bool
}

func (s *stringAggState) Add(args []value.Value) error {
	if len(args) == 2 && !s.sepSet && !args[1].IsNull() {
		s.sep = args[1].Text()
		s.sepSet = true
	}
	v := args[0]
	if v.IsNull() {
		return nil
	}
	s.seen = true
	s.parts = append(s.parts, v.Text())
	return nil
}

func (s *stringAggState) Result() value.Value {
	if !s.seen {
		return value.Null()
	}
	return value.Str(strings.Join(s.parts, s.sep))
}
