package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLeapFebruary(t *testing.T) {
	dates := Generate(time.Date(2024, time.February, 17, 0, 0, 0, 0, time.UTC))

	require.Len(t, dates, 29)
	assert.Equal(t, "2024-02-01", dates[0])
	assert.Equal(t, "2024-02-29", dates[28])
}

func TestGenerateEveryMonth(t *testing.T) {
	for year := 1999; year <= 2031; year++ {
		for month := time.January; month <= time.December; month++ {
			anchor := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
			dates := Generate(anchor)

			want := daysIn(year, month)
			require.Len(t, dates, want, "%d-%02d", year, month)
			assert.Equal(t, anchor.Format("2006-01-02"), dates[0])
			assert.Equal(t, time.Date(year, month, want, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), dates[len(dates)-1])
			for i := 1; i < len(dates); i++ {
				assert.Less(t, dates[i-1], dates[i])
			}
		}
	}
}

func daysIn(year int, month time.Month) int {
	switch month {
	case time.February:
		if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	}
	return 31
}

func TestGenerateIgnoresTimeOfDayAndZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	anchor := time.Date(2024, time.March, 1, 0, 30, 0, 0, tokyo)

	dates := Generate(anchor)

	require.Len(t, dates, 31)
	assert.Equal(t, "2024-03-01", dates[0])
	assert.Equal(t, Generate(anchor), dates)
}

func TestShiftAcrossYearBoundary(t *testing.T) {
	dec := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-01", FormatMonth(Shift(dec, 1)))
	assert.Equal(t, "2024-11", FormatMonth(Shift(dec, -1)))
	assert.Equal(t, "2023-12", FormatMonth(Shift(time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), -1)))

	jan := Generate(Shift(dec, 1))
	assert.Equal(t, "2025-01-01", jan[0])
	assert.Equal(t, "2025-01-31", jan[30])
}

func TestParseMonth(t *testing.T) {
	anchor, err := ParseMonth("2024-02")
	require.NoError(t, err)
	assert.Len(t, Generate(anchor), 29)

	_, err = ParseMonth("2024/02")
	assert.Error(t, err)
}

func TestIndexOf(t *testing.T) {
	dates := Generate(time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, 0, IndexOf(dates, "2024-02-01"))
	assert.Equal(t, 28, IndexOf(dates, "2024-02-29"))
	assert.Equal(t, -1, IndexOf(dates, "2024-03-01"))
}
