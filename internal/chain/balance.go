package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const erc20JSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

var erc20ABI = mustParseABI(erc20JSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// portfolioConcurrency bounds parallel RPC fan-out per portfolio read.
const portfolioConcurrency = 4

// TokenBalance is an ERC-20 balance in base units.
type TokenBalance struct {
	TokenAddress string   `json:"token_address"`
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name"`
	Balance      *big.Int `json:"balance"`
	Decimals     uint8    `json:"decimals"`
}

// NativeBalance is a gas-token balance in base units.
type NativeBalance struct {
	Chain    string   `json:"chain"`
	Symbol   string   `json:"symbol"`
	Balance  *big.Int `json:"balance"`
	Decimals uint8    `json:"decimals"`
}

// Portfolio holds balances for one address, keyed by chain.
type Portfolio struct {
	Address        string                     `json:"address"`
	NativeBalances map[string]*NativeBalance  `json:"native_balances"`
	TokenBalances  map[string][]*TokenBalance `json:"token_balances"`
	Errors         map[string]string          `json:"errors,omitempty"`
}

// GetNativeBalance returns the gas-token balance for an address.
func (c *Client) GetNativeBalance(ctx context.Context, chainName string, address common.Address) (*NativeBalance, error) {
	cfg, err := c.GetChainConfig(chainName)
	if err != nil {
		return nil, err
	}
	balance, err := c.GetBalance(ctx, chainName, address)
	if err != nil {
		return nil, err
	}
	return &NativeBalance{
		Chain:    chainName,
		Symbol:   cfg.NativeCurrency,
		Balance:  balance,
		Decimals: cfg.NativeDecimals,
	}, nil
}

func (c *Client) callERC20(ctx context.Context, chainName string, token common.Address, method string, args ...interface{}) ([]interface{}, []byte, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := c.CallContract(ctx, chainName, ethereum.CallMsg{To: &token, Data: data})
	if err != nil {
		return nil, nil, err
	}
	out, err := erc20ABI.Unpack(method, raw)
	return out, raw, err
}

// GetTokenBalance returns an ERC-20 balance. Metadata for known stablecoins
// comes from the local table; anything else is read from the contract.
func (c *Client) GetTokenBalance(ctx context.Context, chainName string, token, holder common.Address) (*TokenBalance, error) {
	out, _, err := c.callERC20(ctx, chainName, token, "balanceOf", holder)
	if err != nil {
		return nil, fmt.Errorf("token balance: %w", err)
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("token balance: unexpected result %T", out[0])
	}

	tb := &TokenBalance{TokenAddress: token.Hex(), Balance: balance}
	cfg, err := c.GetChainConfig(chainName)
	if err == nil {
		if known, ok := lookupStable(cfg.ChainIDInt, token); ok {
			tb.Symbol = known.Symbol
			tb.Name = known.Name
			tb.Decimals = known.Decimals
			return tb, nil
		}
	}

	tb.Symbol = c.tokenString(ctx, chainName, token, "symbol")
	tb.Name = c.tokenString(ctx, chainName, token, "name")
	tb.Decimals = 18
	if out, _, err := c.callERC20(ctx, chainName, token, "decimals"); err == nil {
		if d, ok := out[0].(uint8); ok {
			tb.Decimals = d
		}
	}
	return tb, nil
}

// tokenString reads symbol() or name(). Older tokens return bytes32 rather
// than a dynamic string.
func (c *Client) tokenString(ctx context.Context, chainName string, token common.Address, method string) string {
	out, raw, err := c.callERC20(ctx, chainName, token, method)
	if err == nil {
		if s, ok := out[0].(string); ok {
			return s
		}
	}
	return decodeString(raw)
}

func decodeString(data []byte) string {
	if len(data) < 64 {
		return strings.TrimRight(string(data), "\x00")
	}
	length := new(big.Int).SetBytes(data[32:64])
	if !length.IsInt64() || length.Int64() == 0 || length.Int64() > int64(len(data)-64) {
		return ""
	}
	return string(data[64 : 64+length.Int64()])
}

// GetPortfolio reads native and stablecoin balances for address on each
// chain in parallel. A chain that fails is recorded in Errors and skipped;
// the call itself only fails when ctx is done.
func (c *Client) GetPortfolio(ctx context.Context, address common.Address, chains []string) (*Portfolio, error) {
	portfolio := &Portfolio{
		Address:        address.Hex(),
		NativeBalances: make(map[string]*NativeBalance),
		TokenBalances:  make(map[string][]*TokenBalance),
		Errors:         make(map[string]string),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(portfolioConcurrency)

	for _, chainName := range chains {
		chainName := chainName
		g.Go(func() error {
			native, err := c.GetNativeBalance(gctx, chainName, address)
			if err != nil {
				mu.Lock()
				portfolio.Errors[chainName] = err.Error()
				mu.Unlock()
				return nil
			}

			var tokens []*TokenBalance
			if cfg, err := c.GetChainConfig(chainName); err == nil {
				for _, st := range stableTokens[cfg.ChainIDInt] {
					if !common.IsHexAddress(st.Address) {
						continue
					}
					tb, err := c.GetTokenBalance(gctx, chainName, common.HexToAddress(st.Address), address)
					if err != nil {
						continue
					}
					if st.Symbol == DigitalUSDSymbol {
						tb.Name = DigitalUSDName
					}
					tokens = append(tokens, tb)
				}
			}

			mu.Lock()
			portfolio.NativeBalances[chainName] = native
			if len(tokens) > 0 {
				portfolio.TokenBalances[chainName] = tokens
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return portfolio, nil
}

// StableTotal sums every stablecoin balance in the portfolio, valued 1:1
// against the dollar.
func (p *Portfolio) StableTotal() decimal.Decimal {
	total := decimal.Zero
	for _, tokens := range p.TokenBalances {
		for _, tb := range tokens {
			if !IsStableSymbol(tb.Symbol) || tb.Balance == nil {
				continue
			}
			total = total.Add(decimal.NewFromBigInt(tb.Balance, -int32(tb.Decimals)))
		}
	}
	return total
}

func unitsToFloat(amount *big.Int, decimals uint8) *big.Float {
	if amount == nil {
		return new(big.Float)
	}
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	return new(big.Float).Quo(new(big.Float).SetInt(amount), divisor)
}

// FormatBalance renders a balance with at most six fractional digits.
func FormatBalance(balance *big.Int, decimals uint8) string {
	if balance == nil {
		return "0"
	}
	prec := int(decimals)
	if prec > 6 {
		prec = 6
	}
	return unitsToFloat(balance, decimals).Text('f', prec)
}
