package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolvePeriodMonth(t *testing.T) {
	r := ResolvePeriod("month", time.Date(2025, time.February, 14, 9, 30, 0, 0, time.UTC))
	assert.Equal(t, date(2025, time.February, 1), r.Start)
	assert.Equal(t, date(2025, time.February, 28), r.End)
}

func TestResolvePeriodQuarter(t *testing.T) {
	cases := []struct {
		now        time.Time
		start, end time.Time
	}{
		{date(2025, time.January, 10), date(2025, time.January, 1), date(2025, time.March, 31)},
		{date(2025, time.March, 31), date(2025, time.January, 1), date(2025, time.March, 31)},
		{date(2025, time.April, 1), date(2025, time.April, 1), date(2025, time.June, 30)},
		{date(2025, time.August, 26), date(2025, time.July, 1), date(2025, time.September, 30)},
		{date(2025, time.December, 31), date(2025, time.October, 1), date(2025, time.December, 31)},
	}
	for _, tc := range cases {
		r := ResolvePeriod("quarter", tc.now)
		assert.Equal(t, tc.start, r.Start, "start for %s", tc.now)
		assert.Equal(t, tc.end, r.End, "end for %s", tc.now)
	}
}

func TestResolvePeriodYear(t *testing.T) {
	r := ResolvePeriod("year", date(2024, time.July, 4))
	assert.Equal(t, date(2024, time.January, 1), r.Start)
	assert.Equal(t, date(2024, time.December, 31), r.End)
}

func TestResolvePeriodExplicitMonth(t *testing.T) {
	r := ResolvePeriod("2024-02", date(2025, time.August, 1))
	assert.Equal(t, date(2024, time.February, 1), r.Start)
	// 2024 is a leap year.
	assert.Equal(t, date(2024, time.February, 29), r.End)
}

func TestResolvePeriodUnknownFallsBackToCurrentMonth(t *testing.T) {
	now := date(2025, time.May, 20)
	for _, bad := range []string{"", "weekly", "2024-13", "2024"} {
		r := ResolvePeriod(bad, now)
		assert.Equal(t, date(2025, time.May, 1), r.Start, "period %q", bad)
		assert.Equal(t, date(2025, time.May, 31), r.End, "period %q", bad)
	}
}
