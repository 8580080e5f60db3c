package chain

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrUnknownChain is returned when a chain key or ID is not in the registry.
var ErrUnknownChain = errors.New("unknown chain")

// Chain IDs the product supports end to end. TRON has no EVM chain ID so the
// app uses a private identifier for it.
const (
	EthereumID int64 = 1
	BaseID     int64 = 8453
	TronID     int64 = 1000001
)

// ChainConfig holds configuration for a chain.
// Invariant: ChainID and ChainIDInt must always represent the same value.
// ChainIDInt exists for YAML serialization (big.Int doesn't serialize cleanly).
type ChainConfig struct {
	Key            string   `yaml:"key"`
	Name           string   `yaml:"name"`
	ChainID        *big.Int `yaml:"-"`
	ChainIDInt     int64    `yaml:"chain_id"`
	RPCURLs        []string `yaml:"rpc_urls"`
	ExplorerURL    string   `yaml:"explorer_url"`
	NativeCurrency string   `yaml:"native_currency"`
	NativeName     string   `yaml:"native_name"`
	NativeDecimals uint8    `yaml:"native_decimals"`
	IsTestnet      bool     `yaml:"is_testnet"`
	IsEVM          bool     `yaml:"is_evm"`
}

// AddChainParameters is the metadata a wallet needs to register a network
// it does not know yet (EIP-3085 wallet_addEthereumChain).
type AddChainParameters struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls"`
}

// NativeCurrency describes a chain's gas token.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// AddChainParams builds the add-chain request for a configured chain.
func AddChainParams(cfg *ChainConfig) AddChainParameters {
	params := AddChainParameters{
		ChainID:   HexChainID(cfg.ChainIDInt),
		ChainName: cfg.Name,
		NativeCurrency: NativeCurrency{
			Name:     cfg.NativeName,
			Symbol:   cfg.NativeCurrency,
			Decimals: cfg.NativeDecimals,
		},
		RPCURLs: append([]string(nil), cfg.RPCURLs...),
	}
	if cfg.ExplorerURL != "" {
		params.BlockExplorerURLs = []string{cfg.ExplorerURL}
	}
	return params
}

// HexChainID renders a chain ID the way wallet RPC methods expect it ("0x2105").
func HexChainID(id int64) string {
	return "0x" + strconv.FormatInt(id, 16)
}

// ParseHexChainID parses a 0x-prefixed chain ID.
func ParseHexChainID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, fmt.Errorf("chain id %q: missing 0x prefix", s)
	}
	id, err := strconv.ParseInt(s[2:], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("chain id %q: %w", s, err)
	}
	return id, nil
}

func evmChain(key, name string, id int64, rpcs []string, explorer string, testnet bool) *ChainConfig {
	return &ChainConfig{
		Key:            key,
		Name:           name,
		ChainID:        big.NewInt(id),
		ChainIDInt:     id,
		RPCURLs:        rpcs,
		ExplorerURL:    explorer,
		NativeCurrency: "ETH",
		NativeName:     "Ether",
		NativeDecimals: 18,
		IsTestnet:      testnet,
		IsEVM:          true,
	}
}

// DefaultChains returns the default chain configurations
func DefaultChains() map[string]*ChainConfig {
	polygon := evmChain("polygon", "Polygon", 137,
		[]string{"https://polygon-rpc.com", "https://polygon.llamarpc.com"}, "https://polygonscan.com", false)
	polygon.NativeCurrency = "MATIC"
	polygon.NativeName = "Matic"

	return map[string]*ChainConfig{
		"ethereum": evmChain("ethereum", "Ethereum Mainnet", EthereumID,
			[]string{"https://eth.llamarpc.com", "https://rpc.ankr.com/eth"}, "https://etherscan.io", false),
		"base": evmChain("base", "Base Mainnet", BaseID,
			[]string{"https://mainnet.base.org", "https://base.llamarpc.com"}, "https://basescan.org", false),
		"tron": {
			Key:            "tron",
			Name:           "TRON Network",
			ChainID:        big.NewInt(TronID),
			ChainIDInt:     TronID,
			RPCURLs:        []string{"https://api.trongrid.io"},
			ExplorerURL:    "https://tronscan.org",
			NativeCurrency: "TRX",
			NativeName:     "TRON",
			NativeDecimals: 6,
		},
		"arbitrum": evmChain("arbitrum", "Arbitrum One", 42161,
			[]string{"https://arb1.arbitrum.io/rpc", "https://arbitrum.llamarpc.com"}, "https://arbiscan.io", false),
		"optimism": evmChain("optimism", "Optimism", 10,
			[]string{"https://mainnet.optimism.io", "https://optimism.llamarpc.com"}, "https://optimistic.etherscan.io", false),
		"polygon": polygon,
		"sepolia": evmChain("sepolia", "Sepolia Testnet", 11155111,
			[]string{"https://rpc.sepolia.org", "https://sepolia.drpc.org"}, "https://sepolia.etherscan.io", true),
		"base-sepolia": evmChain("base-sepolia", "Base Sepolia Testnet", 84532,
			[]string{"https://sepolia.base.org"}, "https://sepolia.basescan.org", true),
	}
}

// Registry is a concurrency-safe lookup table of chain configurations.
type Registry struct {
	mu     sync.RWMutex
	chains map[string]*ChainConfig
}

// NewRegistry returns a registry seeded with DefaultChains.
func NewRegistry() *Registry {
	return &Registry{chains: DefaultChains()}
}

// Add adds or overrides a chain configuration
func (r *Registry) Add(key string, cfg *ChainConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg.Key == "" {
		cfg.Key = key
	}
	if cfg.ChainID == nil {
		cfg.ChainID = big.NewInt(cfg.ChainIDInt)
	}
	r.chains[key] = cfg
}

// Get returns the configuration for a chain key.
func (r *Registry) Get(key string) (*ChainConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.chains[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, key)
	}
	return cfg, nil
}

// ByID returns the configuration for a numeric chain ID.
func (r *Registry) ByID(id int64) (*ChainConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cfg := range r.chains {
		if cfg.ChainIDInt == id {
			return cfg, nil
		}
	}
	return nil, fmt.Errorf("%w: chain id %d", ErrUnknownChain, id)
}

// List returns all chain keys in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.chains))
	for key := range r.chains {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Supported reports whether the product fully supports a chain (ETH, BASE, TRON).
// Other registry chains still work for balances but may lack token lists.
func Supported(id int64) bool {
	switch id {
	case EthereumID, BaseID, TronID:
		return true
	}
	return false
}
