package swap

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/amera/internal/chain"
)

func TestTokensForChain(t *testing.T) {
	assert.Len(t, TokensForChain(chain.EthereumID), 5)
	assert.Len(t, TokensForChain(chain.BaseID), 4)
	assert.Len(t, TokensForChain(chain.TronID), 4)
	assert.Equal(t, TokensForChain(chain.EthereumID), TokensForChain(42161))

	list := TokensForChain(chain.EthereumID)
	list[0].Symbol = "MUTATED"
	assert.Equal(t, "WETH", TokensForChain(chain.EthereumID)[0].Symbol)
}

func TestFindToken(t *testing.T) {
	tok, ok := FindToken(chain.BaseID, "cbeth")
	require.True(t, ok)
	assert.Equal(t, "0x2Ae3F1Ec7F1F5012CFEab0185bfc7aa3cf0DEc22", tok.Address)

	tok, ok = FindToken(chain.EthereumID, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	require.True(t, ok)
	assert.Equal(t, "USDC", tok.Symbol)

	_, ok = FindToken(chain.TronID, "WETH")
	assert.False(t, ok)
}

func TestDexName(t *testing.T) {
	assert.Equal(t, "Uniswap", DexName(chain.EthereumID))
	assert.Equal(t, "Uniswap", DexName(chain.BaseID))
	assert.Equal(t, "SunSwap", DexName(chain.TronID))
	assert.Equal(t, "Uniswap", DexName(137))

	assert.True(t, IsSupportedChain(chain.TronID))
	assert.False(t, IsSupportedChain(137))
}

func TestGetQuote(t *testing.T) {
	q, err := GetQuote(chain.EthereumID, "WETH", "USDC", decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.Equal(t, "7000", q.ToAmount.String())
	assert.Equal(t, "3500", q.Rate.String())
	assert.Equal(t, []string{"WETH", "USDC"}, q.Route)
	assert.Equal(t, "Uniswap", q.Dex)
	assert.Equal(t, "0.07%", q.PriceImpactString())

	q, err = GetQuote(chain.EthereumID, "USDC", "WBTC", decimal.NewFromInt(1300))
	require.NoError(t, err)
	assert.Equal(t, "0.02", q.ToAmount.String())

	q, err = GetQuote(chain.TronID, "USDT", "WTRX", decimal.NewFromInt(12))
	require.NoError(t, err)
	assert.Equal(t, "100", q.ToAmount.String())
	assert.Equal(t, "SunSwap", q.Dex)
}

func TestGetQuoteDeterministic(t *testing.T) {
	a, err := GetQuote(chain.BaseID, "WETH", "USDC", decimal.NewFromInt(10))
	require.NoError(t, err)
	b, err := GetQuote(chain.BaseID, "WETH", "USDC", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, a.PriceImpact.Equal(b.PriceImpact))
}

func TestPriceImpactCapped(t *testing.T) {
	q, err := GetQuote(chain.EthereumID, "WBTC", "USDC", decimal.NewFromInt(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, "50.00%", q.PriceImpactString())
}

func TestGetQuoteErrors(t *testing.T) {
	_, err := GetQuote(chain.EthereumID, "NOPE", "USDC", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = GetQuote(chain.EthereumID, "USDC", "usdc", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrSameToken)

	_, err = GetQuote(chain.EthereumID, "WETH", "USDC", decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
