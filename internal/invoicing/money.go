package invoicing

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Stored precision of rates and row inputs.
const (
	TaxRatePlaces   = 2
	ItemValuePlaces = 4
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.New(5, -1)
)

// Round2 rounds to two decimal places, ties toward positive infinity.
func Round2(x decimal.Decimal) decimal.Decimal {
	return x.Mul(hundred).Add(half).Floor().Shift(-2)
}

// IsCents reports whether x carries at most two fractional digits.
func IsCents(x decimal.Decimal) bool {
	return HasPlaces(x, 2)
}

// HasPlaces reports whether x carries at most places fractional digits.
func HasPlaces(x decimal.Decimal, places int32) bool {
	return x.Equal(x.Truncate(places))
}

// Sum adds the values and rounds the result.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	return Round2(lo.Reduce(values, func(acc decimal.Decimal, v decimal.Decimal, _ int) decimal.Decimal {
		return acc.Add(v)
	}, decimal.Zero))
}
