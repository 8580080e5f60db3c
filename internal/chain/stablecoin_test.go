package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatUnits(t *testing.T) {
	t.Run("nil amount", func(t *testing.T) {
		assert.Equal(t, "0.0", FormatUnits(nil, 18))
	})

	t.Run("one and a half ether", func(t *testing.T) {
		wei, _ := new(big.Int).SetString("1500000000000000000", 10)
		assert.Equal(t, "1.5", FormatEther(wei))
	})

	t.Run("whole amount keeps one fractional digit", func(t *testing.T) {
		assert.Equal(t, "2.0", FormatUnits(big.NewInt(2_000_000), 6))
	})

	t.Run("one wei is not rounded away", func(t *testing.T) {
		assert.Equal(t, "0.000000000000000001", FormatEther(big.NewInt(1)))
	})

	t.Run("zero decimals", func(t *testing.T) {
		assert.Equal(t, "42.0", FormatUnits(big.NewInt(42), 0))
	})

	t.Run("negative amount", func(t *testing.T) {
		assert.Equal(t, "-1.25", FormatUnits(big.NewInt(-125), 2))
	})
}

func TestStablecoinAddress(t *testing.T) {
	addr, ok := StablecoinAddress(EthereumID)
	assert.True(t, ok)
	assert.Equal(t, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", addr)

	addr, ok = StablecoinAddress(BaseID)
	assert.True(t, ok)
	assert.Equal(t, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", addr)

	_, ok = StablecoinAddress(137)
	assert.False(t, ok)
}

func TestStableTokens(t *testing.T) {
	tokens := StableTokens(TronID)
	assert.Len(t, tokens, 3)

	tokens[0].Symbol = "mutated"
	assert.Equal(t, "USDC", StableTokens(TronID)[0].Symbol)
}

func TestDemoTokenBalances(t *testing.T) {
	balances := DemoTokenBalances()
	assert.Len(t, balances, 3)
	assert.Equal(t, "1500.0", FormatUnits(balances[0].Balance, balances[0].Decimals))
	assert.Equal(t, "500.0", FormatUnits(balances[1].Balance, balances[1].Decimals))
	assert.Equal(t, "200.0", FormatUnits(balances[2].Balance, balances[2].Decimals))
}
