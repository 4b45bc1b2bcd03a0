package reporting

import (
	"log/slog"
	"time"
)

// DateRange is an inclusive [Start, End] calendar span.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ResolvePeriod maps a period key to its date range relative to now:
//
//	"month"    current calendar month
//	"quarter"  current calendar quarter
//	"year"     current calendar year
//	"YYYY-MM"  that specific month
//
// Anything else logs a warning and falls back to the current month.
func ResolvePeriod(period string, now time.Time) DateRange {
	switch period {
	case "month":
		return monthRange(now)
	case "quarter":
		quarterStartMonth := ((int(now.Month())-1)/3)*3 + 1
		start := time.Date(now.Year(), time.Month(quarterStartMonth), 1, 0, 0, 0, 0, now.Location())
		end := start.AddDate(0, 3, -1)
		return DateRange{Start: start, End: end}
	case "year":
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		end := time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, now.Location())
		return DateRange{Start: start, End: end}
	default:
		if parsed, err := time.ParseInLocation("2006-01-02", period+"-01", now.Location()); err == nil {
			return monthRange(parsed)
		}
		slog.Warn("unknown report period, defaulting to current month", "period", period)
		return monthRange(now)
	}
}

func monthRange(t time.Time) DateRange {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 1, -1)
	return DateRange{Start: start, End: end}
}
