package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Digital USD is the product's name for a USDC balance.
const (
	DigitalUSDSymbol = "USDC"
	DigitalUSDName   = "Digital USD"
)

// StableToken is a stablecoin contract the app knows on a given chain.
type StableToken struct {
	Symbol      string
	Name        string
	Address     string
	Decimals    uint8
	CoinGeckoID string
}

func usdc(addr string) StableToken {
	return StableToken{Symbol: "USDC", Name: "USD Coin", Address: addr, Decimals: 6, CoinGeckoID: "usd-coin"}
}

func usdt(addr string) StableToken {
	return StableToken{Symbol: "USDT", Name: "Tether", Address: addr, Decimals: 6, CoinGeckoID: "tether"}
}

func dai(addr string) StableToken {
	return StableToken{Symbol: "DAI", Name: "Dai", Address: addr, Decimals: 18, CoinGeckoID: "dai"}
}

// stableTokens lists USDC/USDT/DAI per chain. USDC backs the Digital USD balance.
// TRON addresses are base58 and can't be queried over JSON-RPC.
var stableTokens = map[int64][]StableToken{
	EthereumID: {
		usdc("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		usdt("0xdAC17F958D2ee523a2206206994597C13D831ec7"),
		dai("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
	},
	BaseID: {
		usdc("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		usdt("0xfde4C96c8593536E31F229EA8f37b2ADa2699bb2"),
		dai("0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb"),
	},
	TronID: {
		usdc("TEkxiTehnzSmSe2XqrBj4w32RUN966rdz8"),
		usdt("TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"),
		dai("TMJWuBDvwvcm6QUWXDaC6GqTyq4ewv7Ub2"),
	},
}

// StableTokens returns the stablecoins known on a chain.
func StableTokens(chainID int64) []StableToken {
	return append([]StableToken(nil), stableTokens[chainID]...)
}

// IsStableSymbol reports whether symbol is one of the tracked stablecoins.
func IsStableSymbol(symbol string) bool {
	switch strings.ToUpper(symbol) {
	case "USDC", "USDT", "DAI":
		return true
	}
	return false
}

func lookupStable(chainID int64, token common.Address) (StableToken, bool) {
	for _, t := range stableTokens[chainID] {
		if common.IsHexAddress(t.Address) && common.HexToAddress(t.Address) == token {
			return t, true
		}
	}
	return StableToken{}, false
}

// StablecoinAddress returns the contract backing Digital USD on a chain.
func StablecoinAddress(chainID int64) (string, bool) {
	for _, t := range stableTokens[chainID] {
		if t.Symbol == DigitalUSDSymbol {
			return t.Address, true
		}
	}
	return "", false
}

// GetDigitalUSDBalance returns the holder's Digital USD (USDC) balance on a chain.
func (c *Client) GetDigitalUSDBalance(ctx context.Context, chainName string, holder common.Address) (*TokenBalance, error) {
	cfg, err := c.GetChainConfig(chainName)
	if err != nil {
		return nil, err
	}
	addr, ok := StablecoinAddress(cfg.ChainIDInt)
	if !ok || !common.IsHexAddress(addr) {
		return nil, fmt.Errorf("no Digital USD contract on %s", chainName)
	}

	bal, err := c.GetTokenBalance(ctx, chainName, common.HexToAddress(addr), holder)
	if err != nil {
		return nil, err
	}
	bal.Name = DigitalUSDName
	return bal, nil
}

// DemoTokenBalances are shown for demo sessions in place of on-chain reads.
func DemoTokenBalances() []*TokenBalance {
	return []*TokenBalance{
		{TokenAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Name: "USD Coin", Balance: big.NewInt(1_500_000_000), Decimals: 6},
		{TokenAddress: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Symbol: "USDT", Name: "Tether", Balance: big.NewInt(500_000_000), Decimals: 6},
		{TokenAddress: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Symbol: "DAI", Name: "Dai", Balance: new(big.Int).Mul(big.NewInt(200), big.NewInt(1e18)), Decimals: 18},
	}
}

// FormatUnits renders an integer amount with the given decimals exactly,
// trimming trailing zeros but keeping one fractional digit ("1.5", "2.0").
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0.0"
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(abs, divisor, new(big.Int))

	fracStr := ""
	if decimals > 0 {
		digits := frac.String()
		fracStr = strings.Repeat("0", int(decimals)-len(digits)) + digits
		fracStr = strings.TrimRight(fracStr, "0")
	}
	if fracStr == "" {
		fracStr = "0"
	}

	out := whole.String() + "." + fracStr
	if neg {
		out = "-" + out
	}
	return out
}

// FormatEther renders a wei amount in ether.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, 18)
}
