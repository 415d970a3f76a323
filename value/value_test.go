package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	assert.Equal(t, Less, Compare(Int(1), Int(2)))
	assert.Equal(t, Equal, Compare(Int(2), Int(2)))
	assert.Equal(t, Greater, Compare(Int(3), Int(2)))

	// Mixed numerics promote to float
	assert.Equal(t, Equal, Compare(Int(2), Float(2.0)))
	assert.Equal(t, Less, Compare(Float(1.5), Int(2)))
	assert.Equal(t, Equal, Compare(Decimal(2.5, 10, 2), Float(2.5)))

	// Strings are lexicographic
	assert.Equal(t, Less, Compare(Str("abc"), Str("abd")))

	// NULL is incomparable with everything, including itself
	assert.Equal(t, Incomparable, Compare(Null(), Null()))
	assert.Equal(t, Incomparable, Compare(Null(), Int(1)))

	// Unrelated kinds are incomparable
	assert.Equal(t, Incomparable, Compare(Str("1"), Int(1)))
	assert.Equal(t, Incomparable, Compare(Bool(true), Int(1)))

	// Dates compare with timestamps
	assert.Equal(t, Equal, Compare(Date(1), Timestamp(86400*1e6)))
	assert.Equal(t, Less, Compare(Date(0), Timestamp(1)))
}

func TestThreeValuedLogic(t *testing.T) {
	assert.Equal(t, Unknown, Eq3(Null(), Null()))
	assert.Equal(t, Unknown, Eq3(Null(), Int(1)))
	assert.Equal(t, True, Eq3(Int(1), Int(1)))
	assert.Equal(t, False, Eq3(Int(1), Int(2)))

	assert.Equal(t, False, True.And(False))
	assert.Equal(t, Unknown, True.And(Unknown))
	assert.Equal(t, False, False.And(Unknown))
	assert.Equal(t, True, True.Or(Unknown))
	assert.Equal(t, Unknown, False.Or(Unknown))
	assert.Equal(t, Unknown, Unknown.Not())
}

func TestDistinctEqual(t *testing.T) {
	assert.True(t, DistinctEqual(Null(), Null()))
	assert.False(t, DistinctEqual(Null(), Int(1)))
	assert.True(t, DistinctEqual(Int(1), Int(1)))
	assert.False(t, DistinctEqual(Int(1), Int(2)))
}

func TestArithmetic(t *testing.T) {
	v, err := Add(Int(2), Int(3))
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.Int())

	// NULL propagation
	v, err = Add(Null(), Int(1))
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	// Integer overflow promotes to float
	v, err = Add(Int(math.MaxInt64), Int(1))
	require.NoError(t, err)
	assert.Equal(t, KindFloat64, v.Kind())

	v, err = Mul(Int(math.MaxInt64), Int(2))
	require.NoError(t, err)
	assert.Equal(t, KindFloat64, v.Kind())

	// Division by zero yields NULL
	v, err = Div(Int(1), Int(0))
	require.NoError(t, err)
	assert.True(t, v.IsNull())
	v, err = Div(Float(1), Float(0))
	require.NoError(t, err)
	assert.True(t, v.IsNull())
	v, err = Mod(Int(1), Int(0))
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	// Date arithmetic
	v, err = Add(Date(10), Int(5))
	require.NoError(t, err)
	assert.Equal(t, int32(15), v.Days())
	v, err = Sub(Date(10), Date(3))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.Int())

	// Type mismatch is an error
	_, err = Mul(Str("a"), Int(1))
	assert.Error(t, err)
}

func TestCast(t *testing.T) {
	v, err := Cast(Str("42"), Type{Kind: KindInt64}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int())

	v, err = Cast(Str("2.5"), Type{Kind: KindFloat64}, true)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v.Float())

	v, err = Cast(Bool(true), Type{Kind: KindInt64}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int())

	v, err = Cast(Int(0), Type{Kind: KindBoolean}, true)
	require.NoError(t, err)
	assert.False(t, v.Bool())

	v, err = Cast(Str("2024-01-31"), Type{Kind: KindDate}, true)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-31", v.Text())

	v, err = Cast(Str("2024-01-31 10:30:00"), Type{Kind: KindTimestamp}, true)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-31 10:30:00", v.Text())

	// Strict cast fails; TRY_CAST yields NULL
	_, err = Cast(Str("nope"), Type{Kind: KindInt64}, true)
	assert.Error(t, err)
	v, err = Cast(Str("nope"), Type{Kind: KindInt64}, false)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	// NULL casts to NULL of any type
	v, err = Cast(Null(), Type{Kind: KindDate}, true)
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestUnify(t *testing.T) {
	assert.Equal(t, KindFloat64, Unify(Type{Kind: KindInt64}, Type{Kind: KindFloat64}).Kind)
	assert.Equal(t, KindDecimal, Unify(Type{Kind: KindInt64}, Type{Kind: KindDecimal, Prec: 10}).Kind)
	assert.Equal(t, KindInt64, Unify(Type{Kind: KindNull}, Type{Kind: KindInt64}).Kind)
	assert.Equal(t, KindTimestamp, Unify(Type{Kind: KindDate}, Type{Kind: KindTimestamp}).Kind)
	assert.Equal(t, KindUtf8, Unify(Type{Kind: KindBoolean}, Type{Kind: KindInt64}).Kind)
}

func TestTemporalParseFormat(t *testing.T) {
	days, err := ParseDate("1970-01-02")
	require.NoError(t, err)
	assert.Equal(t, int32(1), days)

	days, err = ParseDate("1969-12-31")
	require.NoError(t, err)
	assert.Equal(t, int32(-1), days)
	assert.Equal(t, "1969-12-31", FormatDate(days))

	us, err := ParseTimestamp("2024-06-15 12:34:56.500000")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-15 12:34:56.500000", FormatTimestamp(us))

	us, err = ParseTimeOfDay("01:02:03")
	require.NoError(t, err)
	assert.Equal(t, "01:02:03", FormatTimeOfDay(us))

	_, err = ParseDate("not-a-date")
	assert.Error(t, err)
}

func TestIntervalParseFormat(t *testing.T) {
	iv, err := ParseInterval("3", "DAY")
	require.NoError(t, err)
	assert.Equal(t, int32(3), iv.Days)

	iv, err = ParseInterval("2", "HOURS")
	require.NoError(t, err)
	assert.Equal(t, int64(2*3600*1e6), iv.Micros)

	assert.Equal(t, "P1Y2M3DT4S", FormatInterval(Interval{Years: 1, Months: 2, Days: 3, Micros: 4}))

	_, err = ParseInterval("1", "FORTNIGHT")
	assert.Error(t, err)
}

func TestTextRendering(t *testing.T) {
	assert.Equal(t, "NULL", Null().Text())
	assert.Equal(t, "true", Bool(true).Text())
	assert.Equal(t, "false", Bool(false).Text())
	assert.Equal(t, "42", Int(42).Text())
	assert.Equal(t, "2.5", Float(2.5).Text())
	assert.Equal(t, "hello", Str("hello").Text())
	assert.Equal(t, "1970-01-01", Date(0).Text())
	assert.Equal(t, "00:00:01", TimeOfDay(1e6).Text())
}

func TestInterval_AddToDate(t *testing.T) {
	d, err := Cast(Str("2024-01-31"), Type{Kind: KindDate}, true)
	require.NoError(t, err)
	v, err := Add(d, NewInterval(Interval{Months: 1}))
	require.NoError(t, err)
	// Proleptic Gregorian month arithmetic normalizes the overflow day
	assert.Equal(t, "2024-03-02", v.Text())

	v, err = Add(d, NewInterval(Interval{Days: 1}))
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", v.Text())
}
