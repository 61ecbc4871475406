package habit

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-day format used for completion dates.
const DateLayout = "2006-01-02"

// Today returns now's calendar date in loc, formatted with DateLayout.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// ValidRange reports whether start is not after end. Either side may be empty.
func ValidRange(start, end string) bool {
	if start == "" || end == "" {
		return true
	}
	return start <= end
}
