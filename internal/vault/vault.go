// Package vault describes the yield vaults and computes their fees,
// projections and NAV history.
package vault

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownVault  = errors.New("unknown vault")
	ErrUnknownPeriod = errors.New("unknown period")
)

// Vault is one product in the catalog. Rates are percentages.
type Vault struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	APY           decimal.Decimal `json:"apy"`
	DepositFee    decimal.Decimal `json:"depositFee"`
	WithdrawalFee decimal.Decimal `json:"withdrawalFee"`
	RiskLevel     string          `json:"riskLevel"`
	LockPeriod    string          `json:"lockPeriod"`
}

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var catalog = []Vault{
	{ID: "safe", Name: "Amera Safe Vault", APY: pct("5.2"), DepositFee: pct("0"), WithdrawalFee: pct("0"), RiskLevel: "Low", LockPeriod: "None"},
	{ID: "growth", Name: "Amera Growth Vault", APY: pct("10.2"), DepositFee: pct("0.05"), WithdrawalFee: pct("0.1"), RiskLevel: "Medium", LockPeriod: "None"},
	{ID: "opportunity", Name: "Amera Opportunity Vault", APY: pct("15.8"), DepositFee: pct("0.1"), WithdrawalFee: pct("0.2"), RiskLevel: "Higher", LockPeriod: "None"},
}

// List returns the catalog, safest first.
func List() []Vault {
	return append([]Vault(nil), catalog...)
}

// Get returns the vault with id.
func Get(id string) (Vault, error) {
	for _, v := range catalog {
		if v.ID == id {
			return v, nil
		}
	}
	return Vault{}, fmt.Errorf("%w: %q", ErrUnknownVault, id)
}

var hundred = decimal.NewFromInt(100)
var twelve = decimal.NewFromInt(12)

// DepositFeeFor is the fee charged on depositing amount, in USD.
func (v Vault) DepositFeeFor(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(v.DepositFee).Div(hundred)
}

// WithdrawalFeeFor is the fee charged on withdrawing amount, in USD.
func (v Vault) WithdrawalFeeFor(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(v.WithdrawalFee).Div(hundred)
}

// DepositFee returns the fee and the net amount credited for a deposit.
func DepositFee(vaultID string, amount decimal.Decimal) (fee, net decimal.Decimal, err error) {
	v, err := Get(vaultID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	fee = v.DepositFeeFor(amount)
	return fee, amount.Sub(fee), nil
}

// ProjectEarnings is simple interest on amount at apy percent over months.
func ProjectEarnings(amount, apy decimal.Decimal, months int) decimal.Decimal {
	return amount.Mul(apy).Div(hundred).Div(twelve).Mul(decimal.NewFromInt(int64(months))).Round(2)
}

// MonthlyEarnings is the one-month projection shown next to a deposit.
func (v Vault) MonthlyEarnings(amount decimal.Decimal) decimal.Decimal {
	return ProjectEarnings(amount, v.APY, 1)
}

// DefaultPeriod is used when no period is requested.
const DefaultPeriod = "7d"

var periodDays = map[string]int{
	"7d":  7,
	"30d": 30,
	"90d": 90,
	"1y":  365,
}

// Periods lists the supported history periods.
func Periods() []string {
	return []string{"7d", "30d", "90d", "1y"}
}

// PricePoint is one daily NAV sample.
type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// HistoricalPrices returns a daily NAV series for the vault ending on the
// day of now. NAV starts at 1.0 and compounds daily at the vault's APY.
func HistoricalPrices(vaultID, period string, now time.Time) ([]PricePoint, error) {
	v, err := Get(vaultID)
	if err != nil {
		return nil, err
	}
	if period == "" {
		period = DefaultPeriod
	}
	days, ok := periodDays[period]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}

	daily := decimal.NewFromInt(1).Add(v.APY.Div(hundred).Div(decimal.NewFromInt(365)))
	nav := decimal.NewFromInt(1)
	start := now.UTC().AddDate(0, 0, -(days - 1))

	out := make([]PricePoint, days)
	for i := 0; i < days; i++ {
		out[i] = PricePoint{
			Date:  start.AddDate(0, 0, i).Format(time.DateOnly),
			Price: nav.Round(6).InexactFloat64(),
		}
		nav = nav.Mul(daily).Round(16)
	}
	return out, nil
}
