// Package pricing holds the expiry-based markdown policy. Everything here is a
// pure function of its inputs; money is handled with shopspring/decimal only.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Discount bands, expressed as the last day (inclusive) each band covers.
const (
	band35MaxDays = 60
	band25MaxDays = 120
	band15MaxDays = 180
)

// MoneyPlaces is the scale of every persisted price column (numeric(10,2)).
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Quote is the price of one unit of a batch on a given day.
type Quote struct {
	DiscountPercentage int
	UnitPrice          decimal.Decimal
}

// DaysUntil returns the number of whole calendar days from asOf's date to
// expiration's date. Expiration is a calendar date and is read as-is; asOf is
// read in its own location. The time of day never shifts a batch between bands.
func DaysUntil(expiration, asOf time.Time) int {
	return int(dateOf(expiration).Sub(dateOf(asOf)).Hours() / 24)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DiscountPercentage maps days-to-expiry to a markdown in {0, 15, 25, 35}.
// Bands are inclusive of their upper day count: day 60 → 35, day 61 → 25.
// Already expired batches fall in the 35% band.
func DiscountPercentage(expiration, asOf time.Time) int {
	switch days := DaysUntil(expiration, asOf); {
	case days <= band35MaxDays:
		return 35
	case days <= band25MaxDays:
		return 25
	case days <= band15MaxDays:
		return 15
	default:
		return 0
	}
}

// DiscountedPrice returns sellingPrice * (1 - pct/100) rounded to two places,
// half away from zero, which is what PostgreSQL does on a numeric(10,2) write.
func DiscountedPrice(sellingPrice decimal.Decimal, pct int) decimal.Decimal {
	factor := hundred.Sub(decimal.NewFromInt(int64(pct))).Div(hundred)
	return sellingPrice.Mul(factor).Round(MoneyPlaces)
}

// QuoteFor prices one unit of a batch with the given selling price and expiry.
func QuoteFor(sellingPrice decimal.Decimal, expiration, asOf time.Time) Quote {
	pct := DiscountPercentage(expiration, asOf)
	return Quote{
		DiscountPercentage: pct,
		UnitPrice:          DiscountedPrice(sellingPrice, pct),
	}
}
