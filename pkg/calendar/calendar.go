package calendar

import (
	"time"

	"github.com/arnavshah/shiftflow-api/pkg/apperr"
	"github.com/arnavshah/shiftflow-api/pkg/models"
)

// MonthLayout is the layout used for month anchors in requests.
const MonthLayout = "2006-01"

// Generate returns every date of the anchor's month, ascending, as DateKeys.
// Only the calendar year and month of the anchor are used.
func Generate(anchor time.Time) []string {
	first := FirstOfMonth(anchor)
	last := first.AddDate(0, 1, -1)

	dates := make([]string, 0, last.Day())
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(models.DateLayout))
	}
	return dates
}

// FirstOfMonth normalizes an anchor to midnight UTC on the 1st of its month.
func FirstOfMonth(anchor time.Time) time.Time {
	return time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Shift moves an anchor by offset months, landing on the 1st.
func Shift(anchor time.Time, offset int) time.Time {
	return time.Date(anchor.Year(), anchor.Month()+time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
}

// ParseMonth parses a "YYYY-MM" month anchor.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return time.Time{}, apperr.ErrValidation.WithMessage("month must be YYYY-MM, got %q", s)
	}
	return t, nil
}

// FormatMonth renders an anchor as "YYYY-MM".
func FormatMonth(anchor time.Time) string {
	return FirstOfMonth(anchor).Format(MonthLayout)
}

// IndexOf returns the column of date within dates, or -1.
func IndexOf(dates []string, date string) int {
	for i, d := range dates {
		if d == date {
			return i
		}
	}
	return -1
}
