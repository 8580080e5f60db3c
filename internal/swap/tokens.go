// Package swap quotes token swaps against fixed per-chain price lists.
package swap

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yolodolo42/amera/internal/chain"
)

// Token is a swappable token on one chain. Price is the indicative USD price.
type Token struct {
	ChainID     int64           `json:"chainId"`
	Address     string          `json:"address"`
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	Decimals    uint8           `json:"decimals"`
	LogoURI     string          `json:"logoURI,omitempty"`
	Price       decimal.Decimal `json:"price"`
	CoinGeckoID string          `json:"id,omitempty"`
}

const logoBase = "https://assets.coingecko.com/coins/images/"

func tok(chainID int64, addr, name, symbol string, decimals uint8, logo, price, cgID string) Token {
	return Token{
		ChainID:     chainID,
		Address:     addr,
		Name:        name,
		Symbol:      symbol,
		Decimals:    decimals,
		LogoURI:     logoBase + logo,
		Price:       decimal.RequireFromString(price),
		CoinGeckoID: cgID,
	}
}

var tokenLists = map[int64][]Token{
	chain.EthereumID: {
		tok(chain.EthereumID, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "Wrapped Ether", "WETH", 18, "2518/thumb/weth.png", "3500", "ethereum"),
		tok(chain.EthereumID, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "USD Coin", "USDC", 6, "6319/thumb/USD_Coin_icon.png", "1", "usd-coin"),
		tok(chain.EthereumID, "0xdAC17F958D2ee523a2206206994597C13D831ec7", "Tether", "USDT", 6, "325/thumb/Tether.png", "1", ""),
		tok(chain.EthereumID, "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", "Wrapped Bitcoin", "WBTC", 8, "7598/thumb/wrapped_bitcoin_wbtc.png", "65000", ""),
		tok(chain.EthereumID, "0x6B175474E89094C44Da98b954EedeAC495271d0F", "Dai Stablecoin", "DAI", 18, "9956/thumb/4943.png", "1", ""),
	},
	chain.BaseID: {
		tok(chain.BaseID, "0x4200000000000000000000000000000000000006", "Wrapped Ether", "WETH", 18, "2518/thumb/weth.png", "3500", ""),
		tok(chain.BaseID, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", "USD Coin", "USDC", 6, "6319/thumb/USD_Coin_icon.png", "1", ""),
		tok(chain.BaseID, "0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb", "Tether", "USDT", 6, "325/thumb/Tether.png", "1", ""),
		tok(chain.BaseID, "0x2Ae3F1Ec7F1F5012CFEab0185bfc7aa3cf0DEc22", "Coinbase Wrapped Staked ETH", "cbETH", 18, "27008/thumb/cbeth.png", "3800", ""),
	},
	chain.TronID: {
		tok(chain.TronID, "TXYZopYRdj2D9XRtbG411XZZ3kM5VkAeBf", "Wrapped TRON", "WTRX", 6, "1094/thumb/tron-logo.png", "0.12", ""),
		tok(chain.TronID, "TEkxiTehnzSmSe2XqrBj4w32RUN966rdz8", "USD Coin", "USDC", 6, "6319/thumb/USD_Coin_icon.png", "1", ""),
		tok(chain.TronID, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", "Tether", "USDT", 6, "325/thumb/Tether.png", "1", ""),
		tok(chain.TronID, "TLa2f6VPqDgRE67v1736s7bJ8Ray5wYjU7", "JUST", "JST", 18, "12330/thumb/just-logo.png", "0.03", ""),
	},
}

// TokensForChain returns the token list for chainID. Unknown chains get the
// Ethereum list.
func TokensForChain(chainID int64) []Token {
	list, ok := tokenLists[chainID]
	if !ok {
		list = tokenLists[chain.EthereumID]
	}
	return append([]Token(nil), list...)
}

// FindToken looks a token up by address or symbol, case-insensitively.
func FindToken(chainID int64, ref string) (Token, bool) {
	for _, t := range TokensForChain(chainID) {
		if strings.EqualFold(t.Address, ref) || strings.EqualFold(t.Symbol, ref) {
			return t, true
		}
	}
	return Token{}, false
}

// IsSupportedChain reports whether a DEX is available on chainID.
func IsSupportedChain(chainID int64) bool {
	return chain.Supported(chainID)
}

// DexName names the DEX used on chainID.
func DexName(chainID int64) string {
	if chainID == chain.TronID {
		return "SunSwap"
	}
	return "Uniswap"
}
