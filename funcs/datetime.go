package funcs

import (
	"fmt"
	"strings"
	"time"

	"github.com/vjrajchauhan/pivot-engine/value"
)

// Date arithmetic is proleptic Gregorian; all clock reads come from the
// statement context so NOW() is stable within a statement.

func init() {
	register(&Scalar{Name: "NOW", MinArgs: 0, MaxArgs: 0, Strict: true, Fn: fnNow})
	register(&Scalar{Name: "CURRENT_TIMESTAMP", MinArgs: 0, MaxArgs: 0, Strict: true, Fn: fnNow})
	register(&Scalar{Name: "CURRENT_DATE", MinArgs: 0, MaxArgs: 0, Strict: true, Fn: fnCurrentDate})
	register(&Scalar{Name: "CURRENT_TIME", MinArgs: 0, MaxArgs: 0, Strict: true, Fn: fnCurrentTime})
	register(&Scalar{Name: "DATE_TRUNC", MinArgs: 2, MaxArgs: 2, Strict: true, Fn: fnDateTrunc})
	register(&Scalar{Name: "DATE_ADD", MinArgs: 2, MaxArgs: 2, Strict: true, Fn: fnDateAdd})
	register(&Scalar{Name: "DATE_SUB", MinArgs: 2, MaxArgs: 2, Strict: true, Fn: fnDateSub})
	register(&Scalar{Name: "DATE_DIFF", MinArgs: 3, MaxArgs: 3, Strict: true, Fn: fnDateDiff})
	register(&Scalar{Name: "DATEDIFF", MinArgs: 3, MaxArgs: 3, Strict: true, Fn: fnDateDiff})
	register(&Scalar{Name: "MAKE_DATE", MinArgs: 3, MaxArgs: 3, Strict: true, Fn: fnMakeDate})
	register(&Scalar{Name: "TO_TIMESTAMP", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnToTimestamp})
	register(&Scalar{Name: "DAYNAME", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnDayname})
	register(&Scalar{Name: "MONTHNAME", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnMonthname})
	register(&Scalar{Name: "LAST_DAY", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnLastDay})
	register(&Scalar{Name: "EPOCH", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnEpoch})
	register(&Scalar{Name: "EPOCH_MS", MinArgs: 1, MaxArgs: 1, Strict: true, Fn: fnEpochMs})
	register(&Scalar{Name: "AGE", MinArgs: 1, MaxArgs: 2, Strict: true, Fn: fnAge})
	register(&Scalar{Name: "EXTRACT", MinArgs: 2, MaxArgs: 2, Strict: true, Fn: fnExtract})
	register(&Scalar{Name: "DATE_PART", MinArgs: 2, MaxArgs: 2, Strict: true, Fn: fnExtract})
}

func argTemporal(v value.Value) (time.Time, value.Kind, error) {
	switch v.Kind() {
	case value.KindDate, value.KindTimestamp:
		return v.ToTime(), v.Kind(), nil
	case value.KindUtf8:
		if us, err := value.ParseTimestamp(v.Str()); err == nil {
			return time.UnixMicro(us).UTC(), value.KindTimestamp, nil
		}
		return time.Time{}, value.KindNull, fmt.Errorf("invalid timestamp %q", v.Str())
	default:
		return time.Time{}, value.KindNull, fmt.Errorf("expected a date or timestamp, got %s", v.Kind())
	}
}

func fnNow(ctx *Ctx, _ []value.Value) (value.Value, error) {
	return value.Timestamp(ctx.Now.UnixMicro()), nil
}

func fnCurrentDate(ctx *Ctx, _ []value.Value) (value.Value, error) {
	return value.DateFromTime(ctx.Now), nil
}

func fnCurrentTime(ctx *Ctx, _ []value.Value) (value.Value, error) {
	h, m, s := ctx.Now.Clock()
	us := int64(h)*3600*1e6 + int64(m)*60*1e6 + int64(s)*1e6 + int64(ctx.Now.Nanosecond()/1000)
	return value.TimeOfDay(us), nil
}

func fnDateTrunc(_ *Ctx, args []value.Value) (value.Value, error) {
	unit := strings.ToLower(argStr(args[0]))
	t, kind, err := argTemporal(args[1])
	if err != nil {
		return value.Null(), err
	}

	y, mo, d := t.Date()
	var out time.Time
	switch unit {
	case "year":
		out = time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	case "quarter":
		q := (int(mo)-1)/3*3 + 1
		out = time.Date(y, time.Month(q), 1, 0, 0, 0, 0, time.UTC)
	case "month":
		out = time.Date(y, mo, 1, 0, 0, 0, 0, time.UTC)
	case "week":
		// Truncate to Monday
		back := (int(t.Weekday()) + 6) % 7
		out = time.Date(y, mo, d-back, 0, 0, 0, 0, time.UTC)
	case "day":
		out = time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	case "hour":
		out = t.Truncate(time.Hour)
	case "minute":
		out = t.Truncate(time.Minute)
	case "second":
		out = t.Truncate(time.Second)
	default:
		return value.Null(), fmt.Errorf("DATE_TRUNC: unknown unit %q", unit)
	}

	if kind == value.KindDate {
		return value.DateFromTime(out), nil
	}
	return value.Timestamp(out.UnixMicro()), nil
}

// fnDateAdd adds a day count to a date or timestamp.
func fnDateAdd(_ *Ctx, args []value.Value) (value.Value, error) {
	n, err := argInt(args[1])
	if err != nil {
		return value.Null(), err
	}
	switch args[0].Kind() {
	case value.KindDate:
		return value.Date(args[0].Days() + int32(n)), nil
	case value.KindTimestamp:
		return value.Timestamp(args[0].Micros() + n*24*3600*1e6), nil
	case value.KindUtf8:
		days, err := value.ParseDate(args[0].Str())
		if err != nil {
			return value.Null(), err
		}
		return value.Date(days + int32(n)), nil
	default:
		return value.Null(), fmt.Errorf("DATE_ADD: expected a date, got %s", args[0].Kind())
	}
}

// fnDateSub subtracts an interval from a date or timestamp.
func fnDateSub(_ *Ctx, args []value.Value) (value.Value, error) {
	if args[1].Kind() == value.KindInterval {
		return value.Sub(args[0], args[1])
	}
	n, err := argInt(args[1])
	if err != nil {
		return value.Null(), err
	}
	return value.Sub(args[0], value.Int(n))
}

func fnDateDiff(_ *Ctx, args []value.Value) (value.Value, error) {
	unit := strings.ToLower(argStr(args[0]))
	a, _, err := argTemporal(args[1])
	if err != nil {
		return value.Null(), err
	}
	b, _, err := argTemporal(args[2])
	if err != nil {
		return value.Null(), err
	}

	switch unit {
	case "year":
		return value.Int(int64(b.Year() - a.Year())), nil
	case "quarter":
		return value.Int(int64((b.Year()-a.Year())*4 + (int(b.Month())-1)/3 - (int(a.Month())-1)/3)), nil
	case "month":
		return value.Int(int64((b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month()))), nil
	case "week":
		return value.Int(daysBetween(a, b) / 7), nil
	case "day":
		return value.Int(daysBetween(a, b)), nil
	case "hour":
		return value.Int(b.Unix()/3600 - a.Unix()/3600), nil
	case "minute":
		return value.Int(b.Unix()/60 - a.Unix()/60), nil
	case "second":
		return value.Int(b.Unix() - a.Unix()), nil
	default:
		return value.Null(), fmt.Errorf("DATE_DIFF: unknown unit %q", unit)
	}
}

func daysBetween(a, b time.Time) int64 {
	ad := a.Unix() / 86400
	bd := b.Unix() / 86400
	if a.Unix() < 0 && a.Unix()%86400 != 0 {
		ad--
	}
	if b.Unix() < 0 && b.Unix()%86400 != 0 {
		bd--
	}
	return bd - ad
}

func fnMakeDate(_ *Ctx, args []value.Value) (value.Value, error) {
	y, err := argInt(args[0])
	if err != nil {
		return value.Null(), err
	}
	m, err := argInt(args[1])
	if err != nil {
		return value.Null(), err
	}
	d, err := argInt(args[2])
	if err != nil {
		return value.Null(), err
	}
	t := time.Date(int(y), time.Month(m), int(d), 0, 0, 0, 0, time.UTC)
	return value.DateFromTime(t), nil
}

func fnToTimestamp(_ *Ctx, args []value.Value) (value.Value, error) {
	secs, err := argFloat(args[0])
	if err != nil {
		return value.Null(), err
	}
	return value.Timestamp(int64(secs * 1e6)), nil
}

func fnDayname(_ *Ctx, args []value.Value) (value.Value, error) {
	t, _, err := argTemporal(args[0])
	if err != nil {
		return value.Null(), err
	}
	return value.Str(t.Weekday().String()), nil
}

func fnMonthname(_ *Ctx, args []value.Value) (value.Value, error) {
	t, _, err := argTemporal(args[0])
	if err != nil {
		return value.Null(), err
	}
	return value.Str(t.Month().String()), nil
}

func fnLastDay(_ *Ctx, args []value.Value) (value.Value, error) {
	t, _, err := argTemporal(args[0])
	if err != nil {
		return value.Null(), err
	}
	y, m, _ := t.Date()
	firstOfNext := time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
	return value.DateFromTime(firstOfNext.AddDate(0, 0, -1)), nil
}

func fnEpoch(_ *Ctx, args []value.Value) (value.Value, error) {
	t, _, err := argTemporal(args[0])
	if err != nil {
		return value.Null(), err
	}
	return value.Int(t.Unix()), nil
}

func fnEpochMs(_ *Ctx, args []value.Value) (value.Value, error) {
	t, _, err := argTemporal(args[0])
	if err != nil {
		return value.Null(), err
	}
	return value.Int(t.UnixMilli()), nil
}

// fnAge returns the interval between two timestamps, or between the
// statement clock and one timestamp.
func fnAge(ctx *Ctx, args []value.Value) (value.Value, error) {
	var from, to time.Time
	var err error
	if len(args) == 2 {
		to, _, err = argTemporal(args[0])
		if err != nil {
			return value.Null(), err
		}
		from, _, err = argTemporal(args[1])
		if err != nil {
			return value.Null(), err
		}
	} else {
		to = ctx.Now
		from, _, err = argTemporal(args[0])
		if err != nil {
			return value.Null(), err
		}
	}

	sign := int64(1)
	if to.Before(from) {
		from, to = to, from
		sign = -1
	}

	years := to.Year() - from.Year()
	months := int(to.Month()) - int(from.Month())
	days := to.Day() - from.Day()
	if days < 0 {
		months--
		prev := time.Date(to.Year(), to.Month(), 0, 0, 0, 0, 0, time.UTC)
		days += prev.Day()
	}
	if months < 0 {
		years--
		months += 12
	}

	fromClock := int64(from.Hour())*3600*1e6 + int64(from.Minute())*60*1e6 + int64(from.Second())*1e6 + int64(from.Nanosecond()/1000)
	toClock := int64(to.Hour())*3600*1e6 + int64(to.Minute())*60*1e6 + int64(to.Second())*1e6 + int64(to.Nanosecond()/1000)
	micros := toClock - fromClock
	if micros < 0 {
		days--
		micros += 24 * 3600 * 1e6
		if days < 0 {
			months--
			prev := time.Date(to.Year(), to.Month(), 0, 0, 0, 0, 0, time.UTC)
			days += prev.Day()
			if months < 0 {
				years--
				months += 12
			}
		}
	}

	return value.NewInterval(value.Interval{
		Years:  int32(sign) * int32(years),
		Months: int32(sign) * int32(months),
		Days:   int32(sign) * int32(days),
		Micros: sign * micros,
	}), nil
}

// Extract evaluates EXTRACT(field FROM v). Exported because the parser
// has a dedicated node for the EXTRACT syntax.
func Extract(field string, v value.Value) (value.Value, error) {
	if v.IsNull() {
		return value.Null(), nil
	}

	if v.Kind() == value.KindTime {
		us := v.Micros()
		switch strings.ToUpper(field) {
		case "HOUR":
			return value.Int(us / (3600 * 1e6)), nil
		case "MINUTE":
			return value.Int(us / (60 * 1e6) % 60), nil
		case "SECOND":
			return value.Int(us / 1e6 % 60), nil
		default:
			return value.Null(), fmt.Errorf("EXTRACT: field %s is not valid for TIME", field)
		}
	}

	t, _, err := argTemporal(v)
	if err != nil {
		return value.Null(), err
	}

	switch strings.ToUpper(field) {
	case "YEAR":
		return value.Int(int64(t.Year())), nil
	case "MONTH":
		return value.Int(int64(t.Month())), nil
	case "DAY":
		return value.Int(int64(t.Day())), nil
	case "HOUR":
		return value.Int(int64(t.Hour())), nil
	case "MINUTE":
		return value.Int(int64(t.Minute())), nil
	case "SECOND":
		return value.Int(int64(t.Second())), nil
	case "DOW":
		// 0 = Sunday
		return value.Int(int64(t.Weekday())), nil
	case "QUARTER":
		return value.Int(int64((int(t.Month())-1)/3 + 1)), nil
	case "WEEK":
		_, week := t.ISOWeek()
		return value.Int(int64(week)), nil
	case "EPOCH":
		return value.Int(t.Unix()), nil
	default:
		return value.Null(), fmt.Errorf("EXTRACT: unknown field %q", field)
	}
}

func fnExtract(_ *Ctx, args []value.Value) (value.Value, error) {
	return Extract(argStr(args[0]), args[1])
}
