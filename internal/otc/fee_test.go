package otc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateFee(t *testing.T) {
	tests := []struct {
		amount string
		pct    string
		fee    string
		net    string
	}{
		{"50000", "0.30", "150", "49850"},
		{"75000", "0.30", "225", "74775"},
		{"99999.99", "0.30", "299.99997", "99699.99003"},
		{"100000", "0.25", "250", "99750"},
		{"250000", "0.25", "625", "249375"},
		{"499999", "0.25", "1249.9975", "498749.0025"},
		{"500000", "0.20", "1000", "499000"},
		{"750000", "0.20", "1500", "748500"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got := CalculateFee(d(tt.amount))
			assert.True(t, got.Percentage.Equal(d(tt.pct)), "pct %s", got.Percentage)
			assert.True(t, got.Fee.Equal(d(tt.fee)), "fee %s", got.Fee)
			assert.True(t, got.Net.Equal(d(tt.net)), "net %s", got.Net)
		})
	}
}

func TestCalculateFee_Properties(t *testing.T) {
	allowed := []decimal.Decimal{d("0.30"), d("0.25"), d("0.20")}
	prev := d("100")

	// Walk from the minimum past both tier boundaries.
	for amount := MinimumAmount; amount.LessThanOrEqual(d("1000000")); amount = amount.Add(d("12345.67")) {
		got := CalculateFee(amount)

		inSet := false
		for _, a := range allowed {
			if got.Percentage.Equal(a) {
				inSet = true
			}
		}
		assert.True(t, inSet, "amount %s pct %s", amount, got.Percentage)
		assert.True(t, got.Percentage.LessThanOrEqual(prev), "pct increased at %s", amount)
		assert.True(t, got.Fee.Equal(amount.Mul(got.Percentage).Div(hundred)), "fee not exact at %s", amount)
		assert.True(t, got.Fee.Add(got.Net).Equal(amount))
		prev = got.Percentage
	}
}

func TestExchangeRate(t *testing.T) {
	assert.True(t, ExchangeRate("USD", "BTC").Equal(d("0.000033")))
	assert.True(t, ExchangeRate("USD", "USDC").Equal(d("1")))
	assert.True(t, ExchangeRate("BTC", "USD").Equal(d("1")))
}
