package util

import (
	"strconv"
	"time"
)

// TradingDay returns the calendar day of t in loc, formatted YYYY-MM-DD.
// Daily risk limits and reporting are anchored to this day, not to UTC.
func TradingDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// SameTradingDay reports whether a and b fall on the same calendar day in loc.
func SameTradingDay(a, b time.Time, loc *time.Location) bool {
	return TradingDay(a, loc) == TradingDay(b, loc)
}

// StartOfTradingDay returns midnight of t's day in loc.
func StartOfTradingDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// ParseTime tries RFC3339, RFC3339Nano, unix seconds, and unix milliseconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return FromUnixFlexible(ts), true
	}
	return time.Time{}, false
}

// FromUnixFlexible interprets ts as unix milliseconds when it is too large
// to be a plausible unix-seconds value.
func FromUnixFlexible(ts int64) time.Time {
	if ts > 1e11 {
		return time.UnixMilli(ts)
	}
	return time.Unix(ts, 0)
}
