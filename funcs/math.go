package funcs

import (
	"fmt"
	"math"

	"github.com/vjrajchauhan/pivot-engine/value"
)

// Numeric kernels follow IEEE-754: out-of-domain inputs produce NaN or
// infinities rather than errors.

func init() {
	register(&Scalar{Name: "ABS", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnAbs})
	register(&Scalar{Name: "SIGN", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnSign})
	register(&Scalar{Name: "ROUND", MinArgs: 1, MaxArgs: 2, Strict: true, Fn: fnRound})
	register(&Scalar{Name: "CEIL", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnCeil})
	register(&Scalar{Name: "CEILING", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnCeil})
	register(&Scalar{Name: "FLOOR", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnFloor})
	register(&Scalar{Name: "POWER", MinArgs: 2, MaxArgs: 2, Strict: true, Fn: fnPower})
	register(&Scalar{Name: "POW", MinArgs: 2, MaxArgs: 2, Strict: true, Fn: fnPower})
	register(&Scalar{Name: "SQRT", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnSqrt})
	register(&Scalar{Name: "EXP", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnExp})
	register(&Scalar{Name: "LN", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnLn})
	register(&Scalar{Name: "LOG", MinArgs: 1, MaxArgs: 2, Strict: true, Fn: fnLog})
	register(&Scalar{Name: "LOG2", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnLog2})
	register(&Scalar{Name: "LOG10", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnLog10})
	register(&Scalar{Name: "GREATEST", MinArgs: 1, MaxArgs: -1, Strict: true, Fn: fnGreatest})
	register(&Scalar{Name: "LEAST", MinArgs: 1, MaxArgs: -1, Strict: true, Fn: fnLeast})
	register(&Scalar{Name: "PI", MinArgs: 0, MaxArgs: 0, Strict: true, Fn: fnPi})
	register(&Scalar{Name: "SIN", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnSin})
	register(&Scalar{Name: "COS", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnCos})
	register(&Scalar{Name: "TAN", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnTan})
	register(&Scalar{Name: "DEGREES", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnDegrees})
	register(&Scalar{Name: "RADIANS", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnRadians})
	register(&Scalar{Name: "TYPEOF", MinArgs: 1, MaxArgs: 1, Strict: false, Fn: fnTypeof})
}

func argFloat(v value.Value) (float64, error) {
	if !v.Kind().IsNumeric() {
		c, err := value.Cast(v, value.Type{Kind: value.KindFloat64}, true)
		if err != nil {
			return 0, err
		}
		return c.Float(), nil
	}
	return v.AsFloat(), nil
}

func floatFn(f func(float64) float64) func(*Ctx, []value.Value) (value.Value, error) {
	return func(_ *Ctx, args []value.Value) (value.Value, error) {
		x, err := argFloat(args[0])
		if err != nil {
			return value.Null(), err
		}
		return value.Float(f(x)), nil
	}
}

func fnAbs(_ *Ctx, args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind() {
	case value.KindInt64:
		if v.Int() == math.MinInt64 {
			return value.Float(-float64(math.MinInt64)), nil
		}
		if v.Int() < 0 {
			return value.Int(-v.Int()), nil
		}
		return v, nil
	default:
		x, err := argFloat(v)
		if err != nil {
			return value.Null(), err
		}
		return value.Float(math.Abs(x)), nil
	}
}

func fnSign(_ *Ctx, args []value.Value) (value.Value, error) {
	x, err := argFloat(args[0])
	if err != nil {
		return value.Null(), err
	}
	switch {
	case x > 0:
		return value.Int(1), nil
	case x < 0:
		return value.Int(-1), nil
	default:
		return value.Int(0), nil
	}
}

func fnRound(_ *Ctx, args []value.Value) (value.Value, error) {
	x, err := argFloat(args[0])
	if err != nil {
		return value.Null(), err
	}
	digits := int64(0)
	if len(args) == 2 {
		if digits, err = argInt(args[1]); err != nil {
			return value.Null(), err
		}
	}
	scale := math.Pow(10, float64(digits))
	rounded := math.Round(x*scale) / scale
	if len(args) == 1 && args[0].Kind() == value.KindInt64 {
		return args[0], nil
	}
	return value.Float(rounded), nil
}

func fnCeil(_ *Ctx, args []value.Value) (value.Value, error) {
	if args[0].Kind() == value.KindInt64 {
		return args[0], nil
	}
	x, err := argFloat(args[0])
	if err != nil {
		return value.Null(), err
	}
	return value.Float(math.Ceil(x)), nil
}

func fnFloor(_ *Ctx, args []value.Value) (value.Value, error) {
	if args[0].Kind() == value.KindInt64 {
		return args[0], nil
	}
	x, err := argFloat(args[0])
	if err != nil {
		return value.Null(), err
	}
	return value.Float(math.Floor(x)), nil
}

func fnPower(_ *Ctx, args []value.Value) (value.Value, error) {
	x, err := argFloat(args[0])
	if err != nil {
		return value.Null(), err
	}
	y, err := argFloat(args[1])
	if err != nil {
		return value.Null(), err
	}
	return value.Float(math.Pow(x, y)), nil
}

func fnSqrt(_ *Ctx, args []value.Value) (value.Value, error) {
	return floatFn(math.Sqrt)(nil, args)
}

func fnExp(_ *Ctx, args []value.Value) (value.Value, error) {
	return floatFn(math.Exp)(nil, args)
}

func fnLn(_ *Ctx, args []value.Value) (value.Value, error) {
	return floatFn(math.Log)(nil, args)
}

// fnLog is natural log with one argument, LOG(base, x) with two.
func fnLog(_ *Ctx, args []value.Value) (value.Value, error) {
	x, err := argFloat(args[0])
	if err != nil {
		return value.Null(), err
	}
	if len(args) == 1 {
		return value.Float(math.Log(x)), nil
	}
	y, err := argFloat(args[1])
	if err != nil {
		return value.Null(), err
	}
	return value.Float(math.Log(y) / math.Log(x)), nil
}

func fnLog2(_ *Ctx, args []value.Value) (value.Value, error) {
	return floatFn(math.Log2)(nil, args)
}

func fnLog10(_ *Ctx, args []value.Value) (value.Value, error) {
	return floatFn(math.Log10)(nil, args)
}

func fnGreatest(_ *Ctx, args []value.Value) (value.Value, error) {
	best := args[0]
	for _, a := range args[1:] {
		switch value.Compare(a, best) {
		case value.Greater:
			best = a
		case value.Incomparable:
			return value.Null(), fmt.Errorf("GREATEST: incomparable arguments %s and %s", best.Kind(), a.Kind())
		}
	}
	return best, nil
}

func fnLeast(_ *Ctx, args []value.Value) (value.Value, error) {
	best := args[0]
	for _, a := range args[1:] {
		switch value.Compare(a, best) {
		case value.Less:
			best = a
		case value.Incomparable:
			return value.Null(), fmt.Errorf("LEAST: incomparable arguments %s and %s", best.Kind(), a.Kind())
		}
	}
	return best, nil
}

func fnPi(_ *Ctx, _ []value.Value) (value.Value, error) {
	return value.Float(math.Pi), nil
}

func fnSin(_ *Ctx, args []value.Value) (value.Value, error) {
	return floatFn(math.Sin)(nil, args)
}

func fnCos(_ *Ctx, args []value.Value) (value.Value, error) {
	return floatFn(math.Cos)(nil, args)
}

func fnTan(_ *Ctx, args []value.Value) (value.Value, error) {
	return floatFn(math.Tan)(nil, args)
}

func fnDegrees(_ *Ctx, args []value.Value) (value.Value, error) {
	return floatFn(func(x float64) float64 { return x * 180 / math.Pi })(nil, args)
}

func fnRadians(_ *Ctx, args []value.Value) (value.Value, error) {
	return floatFn(func(x float64) float64 { return x * math.Pi / 180 })(nil, args)
}

func fnTypeof(_ *Ctx, args []value.Value) (value.Value, error) {
	return value.Str(args[0].Type().String()), nil
}
