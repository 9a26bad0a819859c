package common

import (
	"strings"

	"github.com/shopspring/decimal"
)

// StepFromPrecision returns 10^-precision.
func StepFromPrecision(precision int) float64 {
	f, _ := decimal.New(1, -int32(precision)).Float64()
	return f
}

// PrecisionFromStep counts the significant decimals of an exchange step
// string such as "0.00100000" (3) or "1.00000000" (0).
func PrecisionFromStep(step string) int {
	step = strings.TrimSpace(step)
	dot := strings.IndexByte(step, '.')
	if dot < 0 {
		return 0
	}
	frac := strings.TrimRight(step[dot+1:], "0")
	return len(frac)
}

// RoundQuantity floors qty to a multiple of the lot size.
func (c Contract) RoundQuantity(qty float64) float64 {
	if c.LotSize <= 0 || qty <= 0 {
		return 0
	}
	lot := decimal.NewFromFloat(c.LotSize)
	steps := decimal.NewFromFloat(qty).Div(lot).Floor()
	f, _ := steps.Mul(lot).Round(int32(c.QuantityPrecision)).Float64()
	return f
}

// RoundPrice rounds price to the nearest multiple of the tick size.
func (c Contract) RoundPrice(price float64) float64 {
	if c.TickSize <= 0 {
		return price
	}
	tick := decimal.NewFromFloat(c.TickSize)
	steps := decimal.NewFromFloat(price).Div(tick).Round(0)
	f, _ := steps.Mul(tick).Round(int32(c.PricePrecision)).Float64()
	return f
}

// FormatPrice renders price with exactly PricePrecision decimals.
func (c Contract) FormatPrice(price float64) string {
	return decimal.NewFromFloat(price).StringFixed(int32(c.PricePrecision))
}

// FormatQuantity renders qty with exactly QuantityPrecision decimals.
func (c Contract) FormatQuantity(qty float64) string {
	return decimal.NewFromFloat(qty).StringFixed(int32(c.QuantityPrecision))
}
