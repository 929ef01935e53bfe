package util

import (
    "strconv"
    "time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ParseTime tries RFC3339, RFC3339Nano, YYYY-MM-DD and unix seconds. Returns (t, true) if any worked.
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
    if t, err := time.Parse(DateLayout, s); err == nil {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0), true
    }
    return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
    if t, ok := ParseTime(s); ok {
        return t
    }
    return def
}

// ParseDate parses s with ParseTime and truncates to a UTC calendar date.
// Empty input yields the zero time and ok=true.
func ParseDate(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, true
    }
    t, ok := ParseTime(s)
    if !ok {
        return time.Time{}, false
    }
    return DateOnly(t), true
}

// DateOnly drops the clock part and pins the date to UTC.
func DateOnly(t time.Time) time.Time {
    y, m, d := t.Date()
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a calendar date.
func FormatDate(t time.Time) string {
    return t.Format(DateLayout)
}

// Today returns the current UTC date.
func Today() time.Time {
    return DateOnly(time.Now().UTC())
}

// MonthStart is the first day of t's month.
func MonthStart(t time.Time) time.Time {
    return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// QuarterStart is the first day of t's calendar quarter (Jan, Apr, Jul, Oct).
func QuarterStart(t time.Time) time.Time {
    q := (int(t.Month()) - 1) / 3
    return time.Date(t.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
}

// YearStart is January 1st of t's year.
func YearStart(t time.Time) time.Time {
    return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}
