package value

import "math"

const microsPerDay = int64(24) * 60 * 60 * 1000 * 1000

// Add evaluates a + b. NULL operands propagate; integer overflow
// promotes to Float64; dates and timestamps accept integer day offsets
// and intervals.
func Add(a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null(), nil
	}

	switch {
	case a.kind.IsNumeric() && b.kind.IsNumeric():
		if a.kind == KindInt64 && b.kind == KindInt64 {
			sum := a.i + b.i
			if (a.i > 0 && b.i > 0 && sum < 0) || (a.i < 0 && b.i < 0 && sum >= 0) {
				return Float(float64(a.i) + float64(b.i)), nil
			}
			return Int(sum), nil
		}
		return Float(a.AsFloat() + b.AsFloat()), nil

	case a.kind == KindDate && b.kind == KindInt64:
		return Date(a.Days() + int32(b.i)), nil
	case a.kind == KindInt64 && b.kind == KindDate:
		return Date(b.Days() + int32(a.i)), nil

	case a.kind == KindDate && b.kind == KindInterval:
		return addIntervalToDate(a, b.iv, 1), nil
	case a.kind == KindInterval && b.kind == KindDate:
		return addIntervalToDate(b, a.iv, 1), nil
	case a.kind == KindTimestamp && b.kind == KindInterval:
		return addIntervalToTimestamp(a, b.iv, 1), nil
	case a.kind == KindInterval && b.kind == KindTimestamp:
		return addIntervalToTimestamp(b, a.iv, 1), nil
	case a.kind == KindTime && b.kind == KindInterval:
		return TimeOfDay(wrapTime(a.i + b.iv.Micros)), nil

	default:
		return Null(), &TypeError{Op: "+", Left: a.kind, Right: b.kind}
	}
}

// Sub evaluates a - b. Date - Date yields the day difference as Int64.
func Sub(a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null(), nil
	}

	switch {
	case a.kind.IsNumeric() && b.kind.IsNumeric():
		if a.kind == KindInt64 && b.kind == KindInt64 {
			diff := a.i - b.i
			if (a.i >= 0 && b.i < 0 && diff < 0) || (a.i < 0 && b.i > 0 && diff >= 0) {
				return Float(float64(a.i) - float64(b.i)), nil
			}
			return Int(diff), nil
		}
		return Float(a.AsFloat() - b.AsFloat()), nil

	case a.kind == KindDate && b.kind == KindInt64:
		return Date(a.Days() - int32(b.i)), nil
	case a.kind == KindDate && b.kind == KindDate:
		return Int(int64(a.Days()) - int64(b.Days())), nil
	case a.kind == KindTimestamp && b.kind == KindTimestamp:
		return NewInterval(Interval{Micros: a.i - b.i}), nil

	case a.kind == KindDate && b.kind == KindInterval:
		return addIntervalToDate(a, b.iv, -1), nil
	case a.kind == KindTimestamp && b.kind == KindInterval:
		return addIntervalToTimestamp(a, b.iv, -1), nil
	case a.kind == KindTime && b.kind == KindInterval:
		return TimeOfDay(wrapTime(a.i - b.iv.Micros)), nil

	default:
		return Null(), &TypeError{Op: "-", Left: a.kind, Right: b.kind}
	}
}

// Mul evaluates a * b over numerics.
func Mul(a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null(), nil
	}
	if !a.kind.IsNumeric() || !b.kind.IsNumeric() {
		return Null(), &TypeError{Op: "*", Left: a.kind, Right: b.kind}
	}
	if a.kind == KindInt64 && b.kind == KindInt64 {
		if a.i == 0 || b.i == 0 {
			return Int(0), nil
		}
		prod := a.i * b.i
		if prod/b.i != a.i || (a.i == math.MinInt64 && b.i == -1) {
			return Float(float64(a.i) * float64(b.i)), nil
		}
		return Int(prod), nil
	}
	return Float(a.AsFloat() * b.AsFloat()), nil
}

// Div evaluates a / b. Division by zero yields NULL. Integer division
// truncates toward zero.
func Div(a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null(), nil
	}
	if !a.kind.IsNumeric() || !b.kind.IsNumeric() {
		return Null(), &TypeError{Op: "/", Left: a.kind, Right: b.kind}
	}
	if a.kind == KindInt64 && b.kind == KindInt64 {
		if b.i == 0 {
			return Null(), nil
		}
		if a.i == math.MinInt64 && b.i == -1 {
			return Float(-float64(math.MinInt64)), nil
		}
		return Int(a.i / b.i), nil
	}
	d := b.AsFloat()
	if d == 0 {
		return Null(), nil
	}
	return Float(a.AsFloat() / d), nil
}

// Mod evaluates a % b. A zero divisor yields NULL.
func Mod(a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null(), nil
	}
	if !a.kind.IsNumeric() || !b.kind.IsNumeric() {
		return Null(), &TypeError{Op: "%", Left: a.kind, Right: b.kind}
	}
	if a.kind == KindInt64 && b.kind == KindInt64 {
		if b.i == 0 {
			return Null(), nil
		}
		if a.i == math.MinInt64 && b.i == -1 {
			return Int(0), nil
		}
		return Int(a.i % b.i), nil
	}
	d := b.AsFloat()
	if d == 0 {
		return Null(), nil
	}
	return Float(math.Mod(a.AsFloat(), d)), nil
}

// Neg evaluates -a.
func Neg(a Value) (Value, error) {
	switch a.kind {
	case KindNull:
		return Null(), nil
	case KindInt64:
		if a.i == math.MinInt64 {
			return Float(-float64(math.MinInt64)), nil
		}
		return Int(-a.i), nil
	case KindFloat64:
		return Float(-a.f), nil
	case KindDecimal:
		return Decimal(-a.f, int(a.prec), int(a.scale)), nil
	case KindInterval:
		return NewInterval(Interval{
			Years:  -a.iv.Years,
			Months: -a.iv.Months,
			Days:   -a.iv.Days,
			Micros: -a.iv.Micros,
		}), nil
	default:
		return Null(), &TypeError{Op: "-", Left: a.kind}
	}
}

// Concat evaluates a || b, string concatenation with NULL propagation.
func Concat(a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null(), nil
	}
	return Str(a.Text() + b.Text()), nil
}

func wrapTime(us int64) int64 {
	us %= microsPerDay
	if us < 0 {
		us += microsPerDay
	}
	return us
}
