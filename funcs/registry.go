// Package funcs is the engine's function library: scalar functions,
// aggregates, and the dispatch metadata (arity, NULL-propagation
// policy) the evaluator consults.
package funcs

import (
	"fmt"
	"strings"
	"time"

	"github.com/vjrajchauhan/pivot-engine/value"
)

// Ctx carries per-statement evaluation state. Now is fixed once per
// statement so NOW() is stable within it.
type Ctx struct {
	Now time.Time
}

// NewCtx returns a context pinned to the current wall clock.
func NewCtx() *Ctx {
	return &Ctx{Now: time.Now().UTC()}
}

// Scalar describes one scalar function.
type Scalar struct {
	Name    string
	MinArgs int
	MaxArgs int // -1 means variadic
	Strict  bool
	Fn      func(ctx *Ctx, args []value.Value) (value.Value, error)
}

// Call checks arity, applies the NULL policy, and invokes the kernel.
func (s *Scalar) Call(ctx *Ctx, args []value.Value) (value.Value, error) {
	if len(args) < s.MinArgs || (s.MaxArgs >= 0 && len(args) > s.MaxArgs) {
		return value.Null(), fmt.Errorf("%s: wrong number of arguments (%d)", s.Name, len(args))
	}
	if s.Strict {
		for _, a := range args {
			if a.IsNull() {
				return value.Null(), nil
			}
		}
	}
	return s.Fn(ctx, args)
}

// AggState accumulates one group's rows for an aggregate.
type AggState interface {
	// Add feeds one row's evaluated arguments. COUNT(*) receives nil.
	Add(args []value.Value) error
	// Result finalizes the accumulator.
	Result() value.Value
}

// Aggregate describes one aggregate function.
type Aggregate struct {
	Name     string
	MinArgs  int
	MaxArgs  int
	Distinct bool // supports DISTINCT
	NewState func() AggState
}

var scalars = map[string]*Scalar{}
var aggregates = map[string]*Aggregate{}

func register(s *Scalar) {
	scalars[strings.ToLower(s.Name)] = s
}

func registerAgg(a *Aggregate) {
	aggregates[strings.ToLower(a.Name)] = a
}

// LookupScalar finds a scalar function by case-insensitive name.
func LookupScalar(name string) (*Scalar, bool) {
	s, ok := scalars[strings.ToLower(name)]
	return s, ok
}

// LookupAggregate finds an aggregate by case-insensitive name.
func LookupAggregate(name string) (*Aggregate, bool) {
	a, ok := aggregates[strings.ToLower(name)]
	return a, ok
}

// IsAggregate reports whether name is an aggregate function.
func IsAggregate(name string) bool {
	_, ok := aggregates[strings.ToLower(name)]
	return ok
}

// windowOnly lists the rank-family functions only valid with OVER.
var windowOnly = map[string]struct{}{
	"row_number":  {},
	"rank":        {},
	"dense_rank":  {},
	"ntile":       {},
	"lag":         {},
	"lead":        {},
	"first_value": {},
	"last_value":  {},
}

// IsWindowOnly reports whether name must carry an OVER clause.
func IsWindowOnly(name string) bool {
	_, ok := windowOnly[strings.ToLower(name)]
	return ok
}
