package value

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Temporal values use the proleptic Gregorian calendar throughout, with
// the Unix epoch (1970-01-01) as day zero.

// DateFromTime converts a UTC time to a date value.
func DateFromTime(t time.Time) Value {
	return Date(int32(floorDiv(t.Unix(), 86400)))
}

// ToTime converts a Date or Timestamp value to a UTC time.Time.
func (v Value) ToTime() time.Time {
	switch v.kind {
	case KindDate:
		return time.Unix(v.i*86400, 0).UTC()
	case KindTimestamp:
		return time.UnixMicro(v.i).UTC()
	default:
		return time.Time{}
	}
}

// ParseDate parses YYYY-MM-DD into days since the epoch.
func ParseDate(s string) (int32, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q", s)
	}
	return int32(floorDiv(t.Unix(), 86400)), nil
}

// ParseTimestamp parses YYYY-MM-DD HH:MM:SS[.ffffff] into microseconds
// since the epoch. A bare date is accepted as midnight.
func ParseTimestamp(s string) (int64, error) {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMicro(), nil
		}
	}
	return 0, fmt.Errorf("invalid timestamp %q", s)
}

// ParseTimeOfDay parses HH:MM:SS[.ffffff] into microseconds since
// midnight.
func ParseTimeOfDay(s string) (int64, error) {
	for _, layout := range []string{
		"15:04:05.999999",
		"15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			h, m, sec := t.Clock()
			return int64(h)*3600*1e6 + int64(m)*60*1e6 + int64(sec)*1e6 + int64(t.Nanosecond()/1000), nil
		}
	}
	return 0, fmt.Errorf("invalid time %q", s)
}

// ParseInterval parses the amount of an INTERVAL '<n>' <unit> literal
// into an Interval.
func ParseInterval(amount string, unit string) (Interval, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(amount), 10, 64)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid interval amount %q", amount)
	}
	switch strings.ToUpper(unit) {
	case "YEAR", "YEARS":
		return Interval{Years: int32(n)}, nil
	case "MONTH", "MONTHS":
		return Interval{Months: int32(n)}, nil
	case "WEEK", "WEEKS":
		return Interval{Days: int32(n) * 7}, nil
	case "DAY", "DAYS":
		return Interval{Days: int32(n)}, nil
	case "HOUR", "HOURS":
		return Interval{Micros: n * 3600 * 1e6}, nil
	case "MINUTE", "MINUTES":
		return Interval{Micros: n * 60 * 1e6}, nil
	case "SECOND", "SECONDS":
		return Interval{Micros: n * 1e6}, nil
	default:
		return Interval{}, fmt.Errorf("unknown interval unit %q", unit)
	}
}

// FormatDate renders days-since-epoch as YYYY-MM-DD.
func FormatDate(days int32) string {
	return time.Unix(int64(days)*86400, 0).UTC().Format("2006-01-02")
}

// FormatTimestamp renders epoch microseconds as
// YYYY-MM-DD HH:MM:SS[.ffffff]; the fraction appears only when nonzero.
func FormatTimestamp(us int64) string {
	t := time.UnixMicro(us).UTC()
	if us%1e6 == 0 {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format("2006-01-02 15:04:05.000000")
}

// FormatTimeOfDay renders midnight-relative microseconds as
// HH:MM:SS[.ffffff].
func FormatTimeOfDay(us int64) string {
	frac := us % 1e6
	sec := us / 1e6
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	if frac == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%06d", h, m, s, frac)
}

// FormatInterval renders an interval as P{Y}Y{M}M{D}DT{us}S.
func FormatInterval(iv Interval) string {
	return fmt.Sprintf("P%dY%dM%dDT%dS", iv.Years, iv.Months, iv.Days, iv.Micros)
}

func addIntervalToDate(v Value, iv Interval, sign int) Value {
	t := v.ToTime().AddDate(int(iv.Years)*sign, int(iv.Months)*sign, int(iv.Days)*sign)
	if iv.Micros != 0 {
		return Timestamp(t.UnixMicro() + int64(sign)*iv.Micros)
	}
	return DateFromTime(t)
}

func addIntervalToTimestamp(v Value, iv Interval, sign int) Value {
	t := v.ToTime().AddDate(int(iv.Years)*sign, int(iv.Months)*sign, int(iv.Days)*sign)
	return Timestamp(t.UnixMicro() + int64(sign)*iv.Micros)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
