package service

import (
	"time"

	"pharmapos/internal/pricing"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// money renders a monetary value with exactly two decimal places.
func money(d decimal.Decimal) string {
	return d.StringFixed(pricing.MoneyPlaces)
}

// startOfDay is midnight of t's calendar day in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// calendarDay is midnight in loc of the calendar date t names in its own
// location. Unlike startOfDay it never shifts the date across zones.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// parseDate reads a YYYY-MM-DD calendar date as midnight in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, invalidf("date %q must be YYYY-MM-DD", s)
	}
	return t, nil
}

// dayRange returns the half-open instant range [day 00:00, next day 00:00).
func dayRange(day time.Time, loc *time.Location) (time.Time, time.Time) {
	from := startOfDay(day, loc)
	return from, from.AddDate(0, 0, 1)
}
