package vault

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCatalog(t *testing.T) {
	vaults := List()
	require.Len(t, vaults, 3)
	assert.Equal(t, []string{"safe", "growth", "opportunity"}, []string{vaults[0].ID, vaults[1].ID, vaults[2].ID})

	growth, err := Get("growth")
	require.NoError(t, err)
	assert.Equal(t, "10.2", growth.APY.String())
	assert.Equal(t, "Medium", growth.RiskLevel)

	_, err = Get("degen")
	assert.ErrorIs(t, err, ErrUnknownVault)
}

func TestDepositFee(t *testing.T) {
	tests := []struct {
		vault  string
		amount string
		fee    string
		net    string
	}{
		{"safe", "1000", "0", "1000"},
		{"growth", "1000", "0.5", "999.5"},
		{"opportunity", "2500", "2.5", "2497.5"},
	}
	for _, tt := range tests {
		t.Run(tt.vault, func(t *testing.T) {
			fee, net, err := DepositFee(tt.vault, d(tt.amount))
			require.NoError(t, err)
			assert.True(t, d(tt.fee).Equal(fee), "fee %s", fee)
			assert.True(t, d(tt.net).Equal(net), "net %s", net)
		})
	}

	_, _, err := DepositFee("nope", d("1"))
	assert.ErrorIs(t, err, ErrUnknownVault)
}

func TestProjectEarnings(t *testing.T) {
	assert.Equal(t, "4.33", ProjectEarnings(d("1000"), d("5.2"), 1).StringFixed(2))
	assert.Equal(t, "52.00", ProjectEarnings(d("1000"), d("5.2"), 12).StringFixed(2))
	assert.Equal(t, "0.00", ProjectEarnings(d("1000"), d("5.2"), 0).StringFixed(2))

	opp, err := Get("opportunity")
	require.NoError(t, err)
	assert.Equal(t, "19.75", opp.MonthlyEarnings(d("1500")).StringFixed(2))
}

func TestHistoricalPrices(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	pts, err := HistoricalPrices("safe", "", now)
	require.NoError(t, err)
	require.Len(t, pts, 7)
	assert.Equal(t, "2026-03-04", pts[0].Date)
	assert.Equal(t, "2026-03-10", pts[6].Date)
	assert.Equal(t, 1.0, pts[0].Price)
	for i := 1; i < len(pts); i++ {
		assert.Greater(t, pts[i].Price, pts[i-1].Price)
	}

	for _, p := range Periods() {
		pts, err := HistoricalPrices("growth", p, now)
		require.NoError(t, err)
		assert.Len(t, pts, periodDays[p])
	}

	year, err := HistoricalPrices("opportunity", "1y", now)
	require.NoError(t, err)
	assert.InDelta(t, 1.171, year[len(year)-1].Price, 0.001)

	_, err = HistoricalPrices("nope", "7d", now)
	assert.ErrorIs(t, err, ErrUnknownVault)
	_, err = HistoricalPrices("safe", "2w", now)
	assert.ErrorIs(t, err, ErrUnknownPeriod)
}
