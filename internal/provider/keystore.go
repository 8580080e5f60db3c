package provider

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/rs/zerolog"
	"github.com/yolodolo42/amera/internal/chain"
	"github.com/yolodolo42/amera/internal/wallet"
)

// PasswordFunc asks the user for the keystore password. Returning an error or
// an empty password counts as the user rejecting the request.
type PasswordFunc func(ctx context.Context) (string, error)

// KeystoreOptions configures a Keystore provider.
type KeystoreOptions struct {
	Keys     *wallet.KeystoreManager
	Chains   *chain.Client
	ChainID  int64
	Password PasswordFunc
	Logger   zerolog.Logger

	// Authorized and KnownChains restore grants from an earlier run, the way
	// an extension remembers which accounts a site may see.
	Authorized  []common.Address
	KnownChains []int64
}

// Keystore is a local wallet backed by the on-disk keystore. It behaves like a
// browser extension: accounts stay hidden until the password unlocks them, and
// only chains it has been told about can be switched to.
type Keystore struct {
	keys     *wallet.KeystoreManager
	chains   *chain.Client
	password PasswordFunc
	log      zerolog.Logger

	mu         sync.Mutex
	authorized []common.Address
	chainID    int64
	known      map[int64]bool

	accountsFeed event.Feed
	chainFeed    event.Feed
	scope        event.SubscriptionScope
}

var _ Provider = (*Keystore)(nil)

// NewKeystore returns a locked keystore provider on opts.ChainID.
func NewKeystore(opts KeystoreOptions) *Keystore {
	chains := opts.Chains
	if chains == nil {
		chains = chain.NewClient(nil)
	}
	k := &Keystore{
		keys:       opts.Keys,
		chains:     chains,
		password:   opts.Password,
		log:        opts.Logger,
		chainID:    opts.ChainID,
		known:      map[int64]bool{opts.ChainID: true},
		authorized: copyAddrs(opts.Authorized),
	}
	for _, id := range opts.KnownChains {
		k.known[id] = true
	}
	return k
}

// KnownChains returns the chain IDs the wallet can switch to, sorted.
func (k *Keystore) KnownChains() []int64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	ids := make([]int64, 0, len(k.known))
	for id := range k.known {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (k *Keystore) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	k.mu.Lock()
	if len(k.authorized) > 0 {
		defer k.mu.Unlock()
		return copyAddrs(k.authorized), nil
	}
	k.mu.Unlock()

	if k.password == nil || k.keys == nil {
		return nil, userRejected()
	}
	pw, err := k.password(ctx)
	if err != nil || pw == "" {
		return nil, userRejected()
	}

	unlocked := k.keys.Verify(pw)
	if len(unlocked) == 0 {
		k.log.Debug().Msg("keystore password matched no accounts")
		return nil, userRejected()
	}

	k.mu.Lock()
	k.authorized = unlocked
	k.mu.Unlock()

	k.accountsFeed.Send(copyAddrs(unlocked))
	return copyAddrs(unlocked), nil
}

func (k *Keystore) Accounts(ctx context.Context) ([]common.Address, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return copyAddrs(k.authorized), nil
}

func (k *Keystore) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	k.mu.Lock()
	id := k.chainID
	k.mu.Unlock()

	cfg, err := k.chains.Registry().ByID(id)
	if err != nil {
		return nil, err
	}
	bal, err := k.chains.GetBalance(ctx, cfg.Key, addr)
	if err != nil {
		return nil, fmt.Errorf("balance on %s: %w", cfg.Key, err)
	}
	return bal, nil
}

func (k *Keystore) ChainID(ctx context.Context) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.chainID, nil
}

func (k *Keystore) SwitchChain(ctx context.Context, chainID int64) error {
	k.mu.Lock()
	if !k.known[chainID] {
		k.mu.Unlock()
		return unrecognizedChain(chainID)
	}
	changed := k.chainID != chainID
	k.chainID = chainID
	k.mu.Unlock()

	if changed {
		k.chainFeed.Send(chainID)
	}
	return nil
}

// AddChain makes a chain switchable. Only EVM networks can be added; the
// registry entry is created when the chain is not configured yet.
func (k *Keystore) AddChain(ctx context.Context, params chain.AddChainParameters) error {
	id, err := chain.ParseHexChainID(params.ChainID)
	if err != nil {
		return &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}

	reg := k.chains.Registry()
	cfg, err := reg.ByID(id)
	switch {
	case err == nil && !cfg.IsEVM:
		return &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("%s is not an EVM network", cfg.Name)}
	case err != nil:
		if params.ChainName == "" || len(params.RPCURLs) == 0 {
			return &RPCError{Code: CodeInvalidParams, Message: "chainName and rpcUrls are required"}
		}
		added := &chain.ChainConfig{
			Name:           params.ChainName,
			ChainIDInt:     id,
			RPCURLs:        params.RPCURLs,
			NativeCurrency: params.NativeCurrency.Symbol,
			NativeName:     params.NativeCurrency.Name,
			NativeDecimals: params.NativeCurrency.Decimals,
			IsEVM:          true,
		}
		if len(params.BlockExplorerURLs) > 0 {
			added.ExplorerURL = params.BlockExplorerURLs[0]
		}
		reg.Add(fmt.Sprintf("chain-%d", id), added)
	}

	k.mu.Lock()
	k.known[id] = true
	k.mu.Unlock()

	k.log.Info().Int64("chain_id", id).Str("name", params.ChainName).Msg("chain added to wallet")
	return nil
}

// Lock hides all accounts again and notifies subscribers.
func (k *Keystore) Lock() {
	k.mu.Lock()
	had := len(k.authorized) > 0
	k.authorized = nil
	k.mu.Unlock()

	if had {
		k.accountsFeed.Send([]common.Address{})
	}
}

func (k *Keystore) SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription {
	return k.scope.Track(k.accountsFeed.Subscribe(ch))
}

func (k *Keystore) SubscribeChainChanged(ch chan<- int64) event.Subscription {
	return k.scope.Track(k.chainFeed.Subscribe(ch))
}

// Close ends every outstanding subscription.
func (k *Keystore) Close() {
	k.scope.Close()
}
