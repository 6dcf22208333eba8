package orders

import "github.com/shopspring/decimal"

// minorUnits converts a major-unit amount to integer minor units, rounding
// half away from zero on the cent boundary (19.999 -> 2000).
func minorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}

// money rounds to two decimal places.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
