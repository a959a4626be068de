package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePeriod(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Kyiv")
	require.NoError(t, err)

	// A fixed mid-quarter reference point
	now := time.Date(2025, time.May, 15, 14, 30, 0, 0, loc)

	tests := []struct {
		name      string
		period    string
		wantStart time.Time
	}{
		{"all_time", PeriodAllTime, time.Date(2000, time.January, 1, 0, 0, 0, 0, loc)},
		{"ytd", PeriodYTD, time.Date(2025, time.January, 1, 0, 0, 0, 0, loc)},
		{"qtd", PeriodQTD, time.Date(2025, time.April, 1, 0, 0, 0, 0, loc)},
		{"last_90", PeriodLast90, now.AddDate(0, 0, -90)},
		{"last_30", PeriodLast30, now.AddDate(0, 0, -30)},
		{"last_14", PeriodLast14, now.AddDate(0, 0, -14)},
		{"last_7", PeriodLast7, now.AddDate(0, 0, -7)},
		{"today", PeriodToday, time.Date(2025, time.May, 15, 0, 0, 0, 0, loc)},
		{"last_24h", PeriodLast24h, now.Add(-24 * time.Hour)},
		{"last_3h", PeriodLast3h, now.Add(-3 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := ResolvePeriod(tt.period, now, loc)
			assert.True(t, tt.wantStart.Equal(start), "start: want %v, got %v", tt.wantStart, start)
			assert.True(t, now.Equal(end), "end should be now")
			assert.False(t, end.Before(start), "start must not exceed end")
		})
	}
}

func TestResolvePeriodUnknownTokenFallsBack(t *testing.T) {
	now := time.Date(2025, time.May, 15, 14, 30, 0, 0, time.UTC)

	for _, period := range []string{"", "lastweek", "LAST_7", "30d"} {
		start, end := ResolvePeriod(period, now, time.UTC)
		defStart, _ := ResolvePeriod(DefaultPeriod, now, time.UTC)
		assert.True(t, defStart.Equal(start), "token %q should resolve like %s", period, DefaultPeriod)
		assert.True(t, now.Equal(end))
	}
}

func TestResolvePeriodQTDQuarterBoundaries(t *testing.T) {
	tests := []struct {
		month     time.Month
		wantMonth time.Month
	}{
		{time.January, time.January},
		{time.March, time.January},
		{time.April, time.April},
		{time.June, time.April},
		{time.July, time.July},
		{time.October, time.October},
		{time.December, time.October},
	}

	for _, tt := range tests {
		now := time.Date(2025, tt.month, 20, 10, 0, 0, 0, time.UTC)
		start, _ := ResolvePeriod(PeriodQTD, now, time.UTC)
		assert.Equal(t, tt.wantMonth, start.Month(), "quarter start for %s", tt.month)
		assert.Equal(t, 1, start.Day())
	}
}

func TestResolvePeriodNilLocationDefaultsToUTC(t *testing.T) {
	now := time.Date(2025, time.May, 15, 14, 30, 0, 0, time.UTC)
	start, end := ResolvePeriod(PeriodToday, now, nil)
	assert.Equal(t, time.UTC, start.Location())
	assert.Equal(t, time.UTC, end.Location())
}
