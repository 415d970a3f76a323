// Package value implements the tagged scalar values the engine computes
// with: NULL, booleans, 64-bit integers and floats, UTF-8 strings,
// dates, timestamps, times, intervals, and decimals.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the runtime type of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBoolean
	KindInt64
	KindFloat64
	KindUtf8
	KindDate      // days since 1970-01-01, signed 32-bit
	KindTimestamp // microseconds since 1970-01-01 UTC
	KindTime      // microseconds since midnight
	KindInterval
	KindDecimal // float64 magnitude tagged with (precision, scale)
)

var kindNames = [...]string{
	KindNull:      "NULL",
	KindBoolean:   "BOOLEAN",
	KindInt64:     "BIGINT",
	KindFloat64:   "DOUBLE",
	KindUtf8:      "VARCHAR",
	KindDate:      "DATE",
	KindTimestamp: "TIMESTAMP",
	KindTime:      "TIME",
	KindInterval:  "INTERVAL",
	KindDecimal:   "DECIMAL",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// IsNumeric reports whether the kind participates in numeric promotion.
func (k Kind) IsNumeric() bool {
	return k == KindInt64 || k == KindFloat64 || k == KindDecimal
}

// IsTemporal reports whether the kind is a date/time kind.
func (k Kind) IsTemporal() bool {
	return k == KindDate || k == KindTimestamp || k == KindTime
}

// Interval is a calendar interval: years, months, days, and microseconds.
type Interval struct {
	Years  int32
	Months int32
	Days   int32
	Micros int64
}

// IsZero reports whether all interval fields are zero.
func (iv Interval) IsZero() bool {
	return iv.Years == 0 && iv.Months == 0 && iv.Days == 0 && iv.Micros == 0
}

// Type is a declared data type: a kind plus decimal precision/scale.
type Type struct {
	Kind  Kind
	Prec  int
	Scale int
}

func (t Type) String() string {
	if t.Kind == KindDecimal && t.Prec > 0 {
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Prec, t.Scale)
	}
	return t.Kind.String()
}

// TypeFromName resolves a SQL type keyword to a Type.
func TypeFromName(name string, prec, scale int) (Type, bool) {
	switch strings.ToUpper(name) {
	case "BOOLEAN", "BOOL":
		return Type{Kind: KindBoolean}, true
	case "INTEGER", "INT", "BIGINT":
		return Type{Kind: KindInt64}, true
	case "DOUBLE", "FLOAT":
		return Type{Kind: KindFloat64}, true
	case "VARCHAR", "TEXT":
		return Type{Kind: KindUtf8}, true
	case "DATE":
		return Type{Kind: KindDate}, true
	case "TIMESTAMP":
		return Type{Kind: KindTimestamp}, true
	case "TIME":
		return Type{Kind: KindTime}, true
	case "INTERVAL":
		return Type{Kind: KindInterval}, true
	case "DECIMAL", "NUMERIC":
		return Type{Kind: KindDecimal, Prec: prec, Scale: scale}, true
	default:
		return Type{}, false
	}
}

// Value is a tagged scalar. The zero Value is NULL.
type Value struct {
	kind  Kind
	i     int64 // Int64, Boolean (0/1), Date (days), Timestamp (us), Time (us)
	f     float64
	s     string
	iv    Interval
	prec  uint8
	scale uint8
}

// Null returns the NULL value.
func Null() Value {
	return Value{}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBoolean}
	if b {
		v.i = 1
	}
	return v
}

// Int returns an Int64 value.
func Int(i int64) Value {
	return Value{kind: KindInt64, i: i}
}

// Float returns a Float64 value.
func Float(f float64) Value {
	return Value{kind: KindFloat64, f: f}
}

// Str returns a Utf8 value.
func Str(s string) Value {
	return Value{kind: KindUtf8, s: s}
}

// Date returns a date value from days since the epoch.
func Date(days int32) Value {
	return Value{kind: KindDate, i: int64(days)}
}

// Timestamp returns a timestamp value from microseconds since the epoch.
func Timestamp(micros int64) Value {
	return Value{kind: KindTimestamp, i: micros}
}

// TimeOfDay returns a time value from microseconds since midnight.
func TimeOfDay(micros int64) Value {
	return Value{kind: KindTime, i: micros}
}

// NewInterval returns an interval value.
func NewInterval(iv Interval) Value {
	return Value{kind: KindInterval, iv: iv}
}

// Decimal returns a decimal value with the given precision and scale.
func Decimal(f float64, prec, scale int) Value {
	return Value{kind: KindDecimal, f: f, prec: uint8(prec), scale: uint8(scale)}
}

// Kind returns the runtime type tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload.
func (v Value) Bool() bool { return v.i != 0 }

// Int returns the integer payload.
func (v Value) Int() int64 { return v.i }

// Float returns the float payload.
func (v Value) Float() float64 { return v.f }

// Str returns the string payload.
func (v Value) Str() string { return v.s }

// Days returns the date payload (days since the epoch).
func (v Value) Days() int32 { return int32(v.i) }

// Micros returns the timestamp or time payload in microseconds.
func (v Value) Micros() int64 { return v.i }

// Interval returns the interval payload.
func (v Value) Interval() Interval { return v.iv }

// DecimalPrec returns the decimal precision tag.
func (v Value) DecimalPrec() int { return int(v.prec) }

// DecimalScale returns the decimal scale tag.
func (v Value) DecimalScale() int { return int(v.scale) }

// Type returns the declared-type view of the value.
func (v Value) Type() Type {
	return Type{Kind: v.kind, Prec: int(v.prec), Scale: int(v.scale)}
}

// AsFloat returns the numeric payload widened to float64. Callers must
// check IsNumeric first.
func (v Value) AsFloat() float64 {
	if v.kind == KindInt64 {
		return float64(v.i)
	}
	return v.f
}

// Key appends a hashable encoding of the value to b. NULL encodes as a
// distinct sentinel, so NULL keys group together but never collide with
// real values.
func (v Value) Key(b *strings.Builder) {
	switch v.kind {
	case KindNull:
		b.WriteByte(0x00)
	case KindBoolean:
		b.WriteByte(0x01)
		if v.i != 0 {
			b.WriteByte(1)
		} else {
			b.WriteByte(0)
		}
	case KindInt64:
		// Numeric family keys must collide across Int64/Float64/Decimal
		// when equal, so integers key through their float form when it
		// is exact; the huge ones keep an exact decimal form instead.
		if int64(float64(v.i)) == v.i {
			b.WriteByte(0x02)
			b.WriteString(strconv.FormatFloat(float64(v.i), 'g', -1, 64))
		} else {
			b.WriteByte(0x02)
			b.WriteString(strconv.FormatInt(v.i, 10))
		}
	case KindDate, KindTimestamp, KindTime:
		b.WriteByte(0x03 + byte(v.kind))
		b.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat64, KindDecimal:
		b.WriteByte(0x02)
		b.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case KindUtf8:
		b.WriteByte(0x10)
		b.WriteString(v.s)
	case KindInterval:
		b.WriteByte(0x11)
		fmt.Fprintf(b, "%d/%d/%d/%d", v.iv.Years, v.iv.Months, v.iv.Days, v.iv.Micros)
	}
	b.WriteByte(0x1f)
}

// TriBool is a three-valued boolean: True, False, or Unknown.
type TriBool int8

const (
	False TriBool = iota
	True
	Unknown
)

// TriOf lifts a Go bool into a TriBool.
func TriOf(b bool) TriBool {
	if b {
		return True
	}
	return False
}

// And implements three-valued AND.
func (t TriBool) And(o TriBool) TriBool {
	if t == False || o == False {
		return False
	}
	if t == Unknown || o == Unknown {
		return Unknown
	}
	return True
}

// Or implements three-valued OR.
func (t TriBool) Or(o TriBool) TriBool {
	if t == True || o == True {
		return True
	}
	if t == Unknown || o == Unknown {
		return Unknown
	}
	return False
}

// Not implements three-valued NOT.
func (t TriBool) Not() TriBool {
	switch t {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

// Value converts the TriBool to a scalar: Unknown becomes NULL.
func (t TriBool) Value() Value {
	if t == Unknown {
		return Null()
	}
	return Bool(t == True)
}

// Tri converts a scalar to a TriBool: NULL is Unknown, booleans map
// directly, and nonzero numerics count as true.
func (v Value) Tri() TriBool {
	switch v.kind {
	case KindNull:
		return Unknown
	case KindBoolean:
		return TriOf(v.i != 0)
	case KindInt64:
		return TriOf(v.i != 0)
	case KindFloat64, KindDecimal:
		return TriOf(v.f != 0)
	default:
		return Unknown
	}
}
