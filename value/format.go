package value

import "strconv"

// Text renders the scalar in its canonical textual form: booleans as
// true/false, numbers as their shortest round-trippable decimal, dates
// and times in ISO form, intervals as P{Y}Y{M}M{D}DT{us}S. NULL renders
// as "NULL"; codecs that need a different NULL spelling (CSV's empty
// string) test IsNull first.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindBoolean:
		if v.i != 0 {
			return "true"
		}
		return "false"
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindFloat64, KindDecimal:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindUtf8:
		return v.s
	case KindDate:
		return FormatDate(v.Days())
	case KindTimestamp:
		return FormatTimestamp(v.i)
	case KindTime:
		return FormatTimeOfDay(v.i)
	case KindInterval:
		return FormatInterval(v.iv)
	default:
		return "NULL"
	}
}
