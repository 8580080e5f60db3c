package swap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrTokenNotFound = errors.New("token not found")
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrSameToken     = errors.New("cannot swap a token for itself")
)

// Pool depth used for the price impact estimate, in USD.
var poolDepthUSD = decimal.NewFromInt(10_000_000)

// maxImpact caps the reported price impact, in percent.
var maxImpact = decimal.NewFromInt(50)

// Quote is an indicative swap result.
type Quote struct {
	ChainID     int64           `json:"chainId"`
	Dex         string          `json:"dex"`
	From        Token           `json:"from"`
	To          Token           `json:"to"`
	FromAmount  decimal.Decimal `json:"fromAmount"`
	ToAmount    decimal.Decimal `json:"toAmount"`
	Rate        decimal.Decimal `json:"rate"`
	PriceImpact decimal.Decimal `json:"priceImpact"`
	Route       []string        `json:"route"`
}

// PriceImpactString renders the impact the way the UI shows it ("0.25%").
func (q *Quote) PriceImpactString() string {
	return q.PriceImpact.StringFixed(2) + "%"
}

// GetQuote prices amount of from in units of to. Tokens are referenced by
// address or symbol. The rate is the ratio of the two list prices; price
// impact is the trade's USD size against a fixed pool depth.
func GetQuote(chainID int64, from, to string, amount decimal.Decimal) (*Quote, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	fromTok, ok := FindToken(chainID, from)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, from)
	}
	toTok, ok := FindToken(chainID, to)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, to)
	}
	if strings.EqualFold(fromTok.Address, toTok.Address) {
		return nil, ErrSameToken
	}

	rate := fromTok.Price.DivRound(toTok.Price, 18)
	return &Quote{
		ChainID:     chainID,
		Dex:         DexName(chainID),
		From:        fromTok,
		To:          toTok,
		FromAmount:  amount,
		ToAmount:    amount.Mul(rate).Round(int32(toTok.Decimals)),
		Rate:        rate,
		PriceImpact: priceImpact(amount.Mul(fromTok.Price)),
		Route:       []string{fromTok.Symbol, toTok.Symbol},
	}, nil
}

func priceImpact(usd decimal.Decimal) decimal.Decimal {
	impact := usd.Div(poolDepthUSD).Mul(decimal.NewFromInt(100)).Round(2)
	if impact.GreaterThan(maxImpact) {
		return maxImpact
	}
	return impact
}
