package funcs

import (
	"github.com/vjrajchauhan/pivot-engine/value"
)

// The conditional functions are the enumerated exceptions to strict
// NULL propagation.

func init() {
	register(&Scalar{Name: "COALESCE", MinArgs: 1, MaxArgs: -1, Strict: false, Fn: fnCoalesce})
	register(&Scalar{Name: "IFNULL", MinArgs: 2, MaxArgs: 2, Strict: false, Fn: fnCoalesce})
	register(&Scalar{Name: "NULLIF", MinArgs: 2, MaxArgs: 2, Strict: false, Fn: fnNullif})
	register(&Scalar{Name: "IIF", MinArgs: 3, MaxArgs: 3, Strict: false, Fn: fnIif})
}

func fnCoalesce(_ *Ctx, args []value.Value) (value.Value, error) {
	for _, a := range args {
		if !a.IsNull() {
			return a, nil
		}
	}
	return value.Null(), nil
}

func fnNullif(_ *Ctx, args []value.Value) (value.Value, error) {
	if value.Eq3(args[0], args[1]) == value.True {
		return value.Null(), nil
	}
	return args[0], nil
}

func fnIif(_ *Ctx, args []value.Value) (value.Value, error) {
	if args[0].Tri() == value.True {
		return args[1], nil
	}
	return args[2], nil
}
