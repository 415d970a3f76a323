package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TypeError reports an impossible coercion or an operator applied to
// incompatible operand types.
type TypeError struct {
	Op    string // operator form: "+" on (Left, Right)
	Left  Kind
	Right Kind
	From  Kind // cast form: From -> To
	To    Kind
	Val   string
}

func (e *TypeError) Error() string {
	if e.Op != "" {
		if e.Right == KindNull {
			return fmt.Sprintf("operator %s is not defined for %s", e.Op, e.Left)
		}
		return fmt.Sprintf("operator %s is not defined for %s and %s", e.Op, e.Left, e.Right)
	}
	if e.Val != "" {
		return fmt.Sprintf("cannot cast %s %q to %s", e.From, e.Val, e.To)
	}
	return fmt.Sprintf("cannot cast %s to %s", e.From, e.To)
}

// Coerce converts v to the target type for storage or type unification.
// NULL coerces to NULL of any type; an impossible conversion is an
// error.
func Coerce(v Value, t Type) (Value, error) {
	return Cast(v, t, true)
}

// Cast converts v to the target type. Under strict mode a failed
// conversion returns a TypeError; otherwise (TRY_CAST) it yields NULL.
func Cast(v Value, t Type, strict bool) (Value, error) {
	out, err := cast(v, t)
	if err != nil && !strict {
		return Null(), nil
	}
	return out, err
}

func cast(v Value, t Type) (Value, error) {
	if v.IsNull() {
		return Null(), nil
	}
	if v.kind == t.Kind {
		if t.Kind == KindDecimal {
			return Decimal(v.f, t.Prec, t.Scale), nil
		}
		return v, nil
	}

	fail := func() (Value, error) {
		return Null(), &TypeError{From: v.kind, To: t.Kind, Val: v.Text()}
	}

	switch t.Kind {
	case KindBoolean:
		switch v.kind {
		case KindInt64:
			return Bool(v.i != 0), nil
		case KindFloat64, KindDecimal:
			return Bool(v.f != 0), nil
		case KindUtf8:
			switch strings.ToLower(strings.TrimSpace(v.s)) {
			case "true", "t", "1":
				return Bool(true), nil
			case "false", "f", "0":
				return Bool(false), nil
			}
			return fail()
		}
		return fail()

	case KindInt64:
		switch v.kind {
		case KindBoolean:
			return Int(v.i), nil
		case KindFloat64, KindDecimal:
			f := math.Round(v.f)
			if f > math.MaxInt64 || f < math.MinInt64 || math.IsNaN(f) {
				return fail()
			}
			return Int(int64(f)), nil
		case KindUtf8:
			s := strings.TrimSpace(v.s)
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return Int(n), nil
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return Int(int64(math.Round(f))), nil
			}
			return fail()
		}
		return fail()

	case KindFloat64:
		switch v.kind {
		case KindBoolean:
			return Float(float64(v.i)), nil
		case KindInt64:
			return Float(float64(v.i)), nil
		case KindDecimal:
			return Float(v.f), nil
		case KindUtf8:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64); err == nil {
				return Float(f), nil
			}
			return fail()
		}
		return fail()

	case KindDecimal:
		switch v.kind {
		case KindInt64:
			return Decimal(float64(v.i), t.Prec, t.Scale), nil
		case KindFloat64:
			return Decimal(v.f, t.Prec, t.Scale), nil
		case KindUtf8:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64); err == nil {
				return Decimal(f, t.Prec, t.Scale), nil
			}
			return fail()
		}
		return fail()

	case KindUtf8:
		return Str(v.Text()), nil

	case KindDate:
		switch v.kind {
		case KindUtf8:
			days, err := ParseDate(strings.TrimSpace(v.s))
			if err != nil {
				return fail()
			}
			return Date(days), nil
		case KindTimestamp:
			return Date(int32(floorDiv(v.i, microsPerDay))), nil
		}
		return fail()

	case KindTimestamp:
		switch v.kind {
		case KindUtf8:
			us, err := ParseTimestamp(strings.TrimSpace(v.s))
			if err != nil {
				return fail()
			}
			return Timestamp(us), nil
		case KindDate:
			return Timestamp(v.i * microsPerDay), nil
		}
		return fail()

	case KindTime:
		switch v.kind {
		case KindUtf8:
			us, err := ParseTimeOfDay(strings.TrimSpace(v.s))
			if err != nil {
				return fail()
			}
			return TimeOfDay(us), nil
		case KindTimestamp:
			return TimeOfDay(v.i - floorDiv(v.i, microsPerDay)*microsPerDay), nil
		}
		return fail()

	case KindInterval:
		return fail()
	}

	return fail()
}

// Unify returns the common type two column types coerce to, following
// the lattice Int64 -> Float64 -> Decimal, with Utf8 as the fallback for
// unrelated kinds.
func Unify(a, b Type) Type {
	if a.Kind == KindNull {
		return b
	}
	if b.Kind == KindNull {
		return a
	}
	if a.Kind == b.Kind {
		return a
	}
	if a.Kind.IsNumeric() && b.Kind.IsNumeric() {
		if a.Kind == KindDecimal || b.Kind == KindDecimal {
			if a.Kind == KindDecimal {
				return a
			}
			return b
		}
		return Type{Kind: KindFloat64}
	}
	if (a.Kind == KindDate && b.Kind == KindTimestamp) || (a.Kind == KindTimestamp && b.Kind == KindDate) {
		return Type{Kind: KindTimestamp}
	}
	return Type{Kind: KindUtf8}
}
