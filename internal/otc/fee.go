// Package otc prices and books over-the-counter trades for large amounts.
package otc

import (
	"github.com/shopspring/decimal"
)

var (
	// MinimumAmount is the smallest trade the desk accepts, in USD.
	MinimumAmount = decimal.NewFromInt(50_000)

	hundred = decimal.NewFromInt(100)
)

// tiers are checked from the top; Threshold is inclusive.
var tiers = []struct {
	Threshold  decimal.Decimal
	Percentage decimal.Decimal
}{
	{decimal.NewFromInt(500_000), decimal.RequireFromString("0.20")},
	{decimal.NewFromInt(100_000), decimal.RequireFromString("0.25")},
	{decimal.Zero, decimal.RequireFromString("0.30")},
}

// Fee is the desk's charge on a trade. Percentage is in percent (0.25 = 25bp).
type Fee struct {
	Percentage decimal.Decimal
	Fee        decimal.Decimal
	Net        decimal.Decimal
}

// FeePercentage returns the tier for amount.
func FeePercentage(amount decimal.Decimal) decimal.Decimal {
	for _, t := range tiers {
		if amount.GreaterThanOrEqual(t.Threshold) {
			return t.Percentage
		}
	}
	return tiers[len(tiers)-1].Percentage
}

// CalculateFee computes fee = amount * percentage / 100 exactly.
func CalculateFee(amount decimal.Decimal) Fee {
	pct := FeePercentage(amount)
	fee := amount.Mul(pct).Div(hundred)
	return Fee{
		Percentage: pct,
		Fee:        fee,
		Net:        amount.Sub(fee),
	}
}

// ExchangeRate is the desk's indicative rate from currency to target.
func ExchangeRate(currency, target string) decimal.Decimal {
	if currency == "USD" && target == "BTC" {
		return decimal.RequireFromString("0.000033")
	}
	return decimal.NewFromInt(1)
}
