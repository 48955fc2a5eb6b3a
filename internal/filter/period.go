package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	periodSeparator = "_"
	day             = 24 * time.Hour
)

// QuickPeriods are the relative windows offered as one-click choices.
var QuickPeriods = []int{30, 60, 90}

// Period is a submission window. It is empty, relative ("30d": now through
// now+30 days, resolved at evaluation time) or absolute ("<start>_<end>",
// compared by calendar date).
type Period struct {
	days       int
	start, end time.Time
	// startText and endText keep parsed bounds as written, so String
	// reproduces the exact address text.
	startText, endText string
}

// Relative returns the window [now, now+days]. Non-positive days yield the
// empty period.
func Relative(days int) Period {
	if days <= 0 {
		return Period{}
	}
	return Period{days: days}
}

// Between returns the absolute window covering the calendar dates of start
// and end.
func Between(start, end time.Time) Period {
	return Period{
		start: time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		end:   time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC),
	}
}

// ParsePeriod decodes the channel encoding. The empty string is the empty
// period; anything that is neither "<N>d" nor "<ISO8601>_<ISO8601>" fails
// with ErrInvalidValue.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Period{}, nil
	}

	if startRaw, endRaw, ok := strings.Cut(s, periodSeparator); ok {
		startRaw, endRaw = strings.TrimSpace(startRaw), strings.TrimSpace(endRaw)
		start, err := parseBound(startRaw)
		if err != nil {
			return Period{}, fmt.Errorf("%w: period start %q", ErrInvalidValue, startRaw)
		}
		end, err := parseBound(endRaw)
		if err != nil {
			return Period{}, fmt.Errorf("%w: period end %q", ErrInvalidValue, endRaw)
		}
		return Period{start: start, end: end, startText: startRaw, endText: endRaw}, nil
	}

	if digits, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(digits)
		if err == nil && days > 0 && digits[0] != '+' {
			return Period{days: days}, nil
		}
	}

	return Period{}, fmt.Errorf("%w: period %q", ErrInvalidValue, s)
}

// parseBound accepts a bare date first, then RFC 3339 with or without
// fractional seconds.
func parseBound(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

func formatBound(t time.Time, text string) string {
	if text != "" {
		return text
	}
	return t.Format(dateLayout)
}

// String returns the channel encoding; ParsePeriod(p.String()) equals p.
func (p Period) String() string {
	switch {
	case p.days > 0:
		return strconv.Itoa(p.days) + "d"
	case !p.start.IsZero() || !p.end.IsZero():
		return formatBound(p.start, p.startText) + periodSeparator + formatBound(p.end, p.endText)
	}
	return ""
}

func (p Period) IsZero() bool {
	return p.days == 0 && p.start.IsZero() && p.end.IsZero()
}

// Days returns the relative window length, or false for empty and absolute
// periods.
func (p Period) Days() (int, bool) {
	return p.days, p.days > 0
}

// Dates returns the absolute bounds, or false for empty and relative periods.
func (p Period) Dates() (start, end time.Time, ok bool) {
	if p.days > 0 || p.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	return p.start, p.end, true
}

// Equal reports whether both periods have the same address encoding.
func (p Period) Equal(o Period) bool {
	return p.String() == o.String()
}

// Window resolves the period against now. Relative periods return the
// instants [now, now+days]; absolute periods return their bounds truncated to
// calendar dates.
func (p Period) Window(now time.Time) (from, to time.Time, ok bool) {
	if p.days > 0 {
		return now, now.Add(time.Duration(p.days) * day), true
	}
	if start, end, ok := p.Dates(); ok {
		return civilDate(start), civilDate(end), true
	}
	return time.Time{}, time.Time{}, false
}

// Contains reports whether due falls inside the window at the given instant.
// The empty period contains everything.
func (p Period) Contains(due, now time.Time) bool {
	if p.days > 0 {
		from, to, _ := p.Window(now)
		return !due.Before(from) && !due.After(to)
	}
	from, to, ok := p.Window(now)
	if !ok {
		return true
	}
	d := civilDate(due)
	return !d.Before(from) && !d.After(to)
}

// civilDate drops the time of day, keeping the date as written in t's own
// location.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
