package report

import (
	"errors"
	"fmt"
	"time"
)

// PeriodType is the unit used to auto-compute a reporting date range from a
// single anchor date.
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
	PeriodYearly  PeriodType = "yearly"
	PeriodCustom  PeriodType = "custom"
)

// ErrCustomBounds indicates a custom period needs both ends supplied
// explicitly instead of an anchor date.
var ErrCustomBounds = errors.New("report: custom period requires explicit start and end")

// ParsePeriodType validates a period string coming from the API.
func ParsePeriodType(value string) (PeriodType, error) {
	switch PeriodType(value) {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly, PeriodCustom:
		return PeriodType(value), nil
	default:
		return "", fmt.Errorf("report: unknown period type %q", value)
	}
}

// DateRange is an inclusive day range.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the timestamp falls inside the range, comparing
// at day granularity on both ends.
func (r DateRange) Contains(ts time.Time) bool {
	day := truncateToDay(ts)
	return !day.Before(r.Start) && !day.After(r.End)
}

// ResolveRange converts a period type plus anchor date into a concrete
// range: daily spans the anchor day, weekly adds 6 days, monthly 29 and
// yearly 364. Custom ranges are never resolved from an anchor.
func ResolveRange(period PeriodType, anchor time.Time) (DateRange, error) {
	start := truncateToDay(anchor)
	switch period {
	case PeriodDaily:
		return DateRange{Start: start, End: start}, nil
	case PeriodWeekly:
		return DateRange{Start: start, End: start.AddDate(0, 0, 6)}, nil
	case PeriodMonthly:
		return DateRange{Start: start, End: start.AddDate(0, 0, 29)}, nil
	case PeriodYearly:
		return DateRange{Start: start, End: start.AddDate(0, 0, 364)}, nil
	case PeriodCustom:
		return DateRange{}, ErrCustomBounds
	default:
		return DateRange{}, fmt.Errorf("report: unknown period type %q", period)
	}
}

func truncateToDay(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
}
