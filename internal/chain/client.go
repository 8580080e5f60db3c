package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/singleflight"
)

// ErrNotEVM is returned for JSON-RPC calls against a chain without an EVM endpoint.
var ErrNotEVM = errors.New("chain has no EVM JSON-RPC endpoint")

const (
	dialTimeout      = 10 * time.Second
	chainIDTimeout   = 5 * time.Second
	receiptPollEvery = 2 * time.Second
)

// Client keeps one RPC connection per chain, dialed lazily on first use.
type Client struct {
	registry *Registry
	dials    singleflight.Group

	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

// NewClient creates a new multi-chain client over the given registry.
// A nil registry uses the default chains.
func NewClient(registry *Registry) *Client {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Client{
		registry: registry,
		clients:  make(map[string]*ethclient.Client),
	}
}

// Registry returns the chain registry backing the client.
func (c *Client) Registry() *Registry {
	return c.registry
}

// GetChainConfig returns the configuration for a chain
func (c *Client) GetChainConfig(chainName string) (*ChainConfig, error) {
	return c.registry.Get(chainName)
}

// getClient returns the cached connection for chainName or dials one.
// Concurrent callers for the same chain share a single dial.
func (c *Client) getClient(chainName string) (*ethclient.Client, error) {
	cfg, err := c.registry.Get(chainName)
	if err != nil {
		return nil, err
	}
	if !cfg.IsEVM {
		return nil, fmt.Errorf("%s: %w", chainName, ErrNotEVM)
	}

	c.mu.Lock()
	client, ok := c.clients[chainName]
	c.mu.Unlock()
	if ok {
		return client, nil
	}

	v, err, _ := c.dials.Do(chainName, func() (interface{}, error) {
		c.mu.Lock()
		existing, ok := c.clients[chainName]
		c.mu.Unlock()
		if ok {
			return existing, nil
		}

		client, err := dial(cfg)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.clients[chainName] = client
		c.mu.Unlock()
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ethclient.Client), nil
}

// dial tries each RPC URL in order and keeps the first whose reported chain
// ID matches the configuration.
func dial(cfg *ChainConfig) (*ethclient.Client, error) {
	if len(cfg.RPCURLs) == 0 {
		return nil, fmt.Errorf("%s: no RPC URLs configured", cfg.Key)
	}

	var lastErr error
	for _, rpcURL := range cfg.RPCURLs {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		client, err := ethclient.DialContext(ctx, rpcURL)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}

		ctx, cancel = context.WithTimeout(context.Background(), chainIDTimeout)
		id, err := client.ChainID(ctx)
		cancel()
		switch {
		case err != nil:
			lastErr = err
		case id.Cmp(cfg.ChainID) != 0:
			lastErr = fmt.Errorf("chain ID mismatch: expected %s, got %s", cfg.ChainID, id)
		default:
			return client, nil
		}
		client.Close()
	}
	return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Key, lastErr)
}

func call[T any](c *Client, chainName string, fn func(*ethclient.Client) (T, error)) (T, error) {
	client, err := c.getClient(chainName)
	if err != nil {
		var zero T
		return zero, err
	}
	return fn(client)
}

// ChainID returns the chain ID reported by the chain's RPC endpoint
func (c *Client) ChainID(ctx context.Context, chainName string) (*big.Int, error) {
	return call(c, chainName, func(ec *ethclient.Client) (*big.Int, error) {
		return ec.ChainID(ctx)
	})
}

// GetBalance returns the native token balance for an address on a chain
func (c *Client) GetBalance(ctx context.Context, chainName string, address common.Address) (*big.Int, error) {
	return call(c, chainName, func(ec *ethclient.Client) (*big.Int, error) {
		return ec.BalanceAt(ctx, address, nil)
	})
}

// GetNonce returns the pending nonce for an address.
func (c *Client) GetNonce(ctx context.Context, chainName string, address common.Address) (uint64, error) {
	return call(c, chainName, func(ec *ethclient.Client) (uint64, error) {
		return ec.PendingNonceAt(ctx, address)
	})
}

// EstimateGas estimates gas for a transaction
func (c *Client) EstimateGas(ctx context.Context, chainName string, msg ethereum.CallMsg) (uint64, error) {
	return call(c, chainName, func(ec *ethclient.Client) (uint64, error) {
		return ec.EstimateGas(ctx, msg)
	})
}

// SuggestGasPrice returns the suggested legacy gas price.
func (c *Client) SuggestGasPrice(ctx context.Context, chainName string) (*big.Int, error) {
	return call(c, chainName, func(ec *ethclient.Client) (*big.Int, error) {
		return ec.SuggestGasPrice(ctx)
	})
}

// SuggestGasTipCap returns the suggested EIP-1559 priority fee.
func (c *Client) SuggestGasTipCap(ctx context.Context, chainName string) (*big.Int, error) {
	return call(c, chainName, func(ec *ethclient.Client) (*big.Int, error) {
		return ec.SuggestGasTipCap(ctx)
	})
}

// SendTransaction broadcasts a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, chainName string, tx *types.Transaction) error {
	_, err := call(c, chainName, func(ec *ethclient.Client) (struct{}, error) {
		return struct{}{}, ec.SendTransaction(ctx, tx)
	})
	return err
}

// WaitMined polls for a receipt until the transaction is mined or ctx ends.
// Errors other than "not found" end the wait.
func (c *Client) WaitMined(ctx context.Context, chainName string, txHash common.Hash) (*types.Receipt, error) {
	client, err := c.getClient(chainName)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(receiptPollEvery)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// CallContract executes a read-only contract call at the latest block.
func (c *Client) CallContract(ctx context.Context, chainName string, msg ethereum.CallMsg) ([]byte, error) {
	return call(c, chainName, func(ec *ethclient.Client) ([]byte, error) {
		return ec.CallContract(ctx, msg, nil)
	})
}

// Close closes all client connections
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, client := range c.clients {
		client.Close()
	}
	c.clients = make(map[string]*ethclient.Client)
}
