package chrono

import (
	"fmt"
	"time"
)

// DateLayout is the canonical YYYY-MM-DD business date layout.
const DateLayout = "2006-01-02"

// SlashDateLayout is the layout the merchant backend's date pickers accept.
const SlashDateLayout = "2006/01/02"

// ParseDate parses a YYYY-MM-DD date at midnight in Asia/Shanghai.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, shanghai)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate formats a time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.In(shanghai).Format(DateLayout)
}

// Yesterday returns the business date before now.
func Yesterday(clock TimeAPI) string {
	return FormatDate(clock.Now().AddDate(0, 0, -1))
}

// DateRange is an inclusive range of business dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange parses an inclusive YYYY-MM-DD range, an empty end means a
// single day range.
func NewDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	if end == "" {
		return DateRange{Start: s, End: s}, nil
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	if e.Before(s) {
		return DateRange{}, fmt.Errorf("date range end %s is before start %s", end, start)
	}
	return DateRange{Start: s, End: e}, nil
}

// SingleDay returns a range covering one date.
func SingleDay(t time.Time) DateRange {
	return DateRange{Start: t, End: t}
}

// Days lists every date in the range, inclusive of both ends.
func (r DateRange) Days() []time.Time {
	var days []time.Time
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (r DateRange) String() string {
	if r.Start.Equal(r.End) {
		return FormatDate(r.Start)
	}
	return fmt.Sprintf("%s..%s", FormatDate(r.Start), FormatDate(r.End))
}
