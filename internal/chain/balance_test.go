package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBalance(t *testing.T) {
	oneEth, _ := new(big.Int).SetString("1000000000000000000", 10)

	tests := []struct {
		name     string
		balance  *big.Int
		decimals uint8
		want     string
	}{
		{"nil", nil, 18, "0"},
		{"zero", big.NewInt(0), 18, "0.000000"},
		{"one ether", oneEth, 18, "1.000000"},
		{"dust rounds away", big.NewInt(1), 18, "0.000000"},
		{"usdc", big.NewInt(100_000_000), 6, "100.000000"},
		{"two decimals", big.NewInt(10_000), 2, "100.00"},
		{"no decimals", big.NewInt(12_345), 0, "12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBalance(tt.balance, tt.decimals))
		})
	}
}

func TestDecodeString(t *testing.T) {
	t.Run("bytes32 symbol", func(t *testing.T) {
		data := make([]byte, 32)
		copy(data, "MKR")
		assert.Equal(t, "MKR", decodeString(data))
	})

	t.Run("dynamic string", func(t *testing.T) {
		data := make([]byte, 96)
		data[31] = 32
		data[63] = 4
		copy(data[64:], "TEST")
		assert.Equal(t, "TEST", decodeString(data))
	})

	t.Run("length past end of data", func(t *testing.T) {
		data := make([]byte, 64)
		data[31] = 32
		data[63] = 255
		assert.Equal(t, "", decodeString(data))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "", decodeString(nil))
	})
}

func TestERC20ABI(t *testing.T) {
	holder := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	data, err := erc20ABI.Pack("balanceOf", holder)
	require.NoError(t, err)
	assert.Equal(t, common.Hex2Bytes("70a08231"), data[:4])
	assert.Len(t, data, 36)

	data, err = erc20ABI.Pack("decimals")
	require.NoError(t, err)
	assert.Equal(t, common.Hex2Bytes("313ce567"), data)
}

func TestLookupStable(t *testing.T) {
	tok, ok := lookupStable(BaseID, common.HexToAddress("0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"))
	require.True(t, ok)
	assert.Equal(t, "USDC", tok.Symbol)
	assert.Equal(t, uint8(6), tok.Decimals)

	_, ok = lookupStable(TronID, common.HexToAddress("0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"))
	assert.False(t, ok)
}

func TestPortfolioStableTotal(t *testing.T) {
	p := &Portfolio{TokenBalances: map[string][]*TokenBalance{
		"ethereum": DemoTokenBalances(),
		"base": {
			{Symbol: "USDC", Balance: big.NewInt(250_000), Decimals: 6},
			{Symbol: "WETH", Balance: big.NewInt(1e18), Decimals: 18},
		},
	}}
	assert.True(t, decimal.RequireFromString("2200.25").Equal(p.StableTotal()))
}

func TestGetPortfolioRecordsFailures(t *testing.T) {
	client := NewClient(nil)
	defer client.Close()

	p, err := client.GetPortfolio(context.Background(), common.HexToAddress("0x01"), []string{"nowhere", "tron"})
	require.NoError(t, err)
	assert.Empty(t, p.NativeBalances)
	assert.Contains(t, p.Errors["nowhere"], "unknown chain")
	assert.Contains(t, p.Errors["tron"], "no EVM JSON-RPC endpoint")
}

func TestGetPortfolioCancelled(t *testing.T) {
	client := NewClient(nil)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.GetPortfolio(ctx, common.HexToAddress("0x01"), []string{"nowhere"})
	assert.ErrorIs(t, err, context.Canceled)
}
