package provider

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/yolodolo42/amera/internal/chain"
)

// Fake is a scriptable in-memory Provider for tests.
type Fake struct {
	mu sync.Mutex

	Addrs    []common.Address
	Exposed  bool // accounts already authorized before RequestAccounts
	Chain    int64
	Balances map[common.Address]*big.Int
	// Known limits which chains SwitchChain accepts; nil accepts all.
	Known map[int64]bool

	RequestErr error
	BalanceErr error
	ChainErr   error
	SwitchErr  error
	AddErr     error

	// Gate, when set, blocks RequestAccounts until it is closed.
	Gate chan struct{}

	calls        map[string]int
	added        []chain.AddChainParameters
	accountsFeed event.Feed
	chainFeed    event.Feed
}

var _ Provider = (*Fake)(nil)

// NewFake returns a Fake exposing addrs on chainID once requested.
func NewFake(chainID int64, addrs ...common.Address) *Fake {
	return &Fake{
		Addrs:    addrs,
		Chain:    chainID,
		Balances: map[common.Address]*big.Int{},
		calls:    map[string]int{},
	}
}

func (f *Fake) record(name string) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
}

// Calls reports how many times a method ran.
func (f *Fake) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// TotalCalls counts every provider method invocation.
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Added returns the add-chain requests received.
func (f *Fake) Added() []chain.AddChainParameters {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chain.AddChainParameters(nil), f.added...)
}

func (f *Fake) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	f.mu.Lock()
	f.record("RequestAccounts")
	gate := f.Gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RequestErr != nil {
		return nil, f.RequestErr
	}
	f.Exposed = true
	return copyAddrs(f.Addrs), nil
}

func (f *Fake) Accounts(ctx context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Accounts")
	if !f.Exposed {
		return []common.Address{}, nil
	}
	return copyAddrs(f.Addrs), nil
}

func (f *Fake) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Balance")
	if f.BalanceErr != nil {
		return nil, f.BalanceErr
	}
	if b, ok := f.Balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *Fake) ChainID(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ChainID")
	if f.ChainErr != nil {
		return 0, f.ChainErr
	}
	return f.Chain, nil
}

func (f *Fake) SwitchChain(ctx context.Context, chainID int64) error {
	f.mu.Lock()
	f.record("SwitchChain")
	if f.SwitchErr != nil {
		defer f.mu.Unlock()
		return f.SwitchErr
	}
	if f.Known != nil && !f.Known[chainID] {
		f.mu.Unlock()
		return unrecognizedChain(chainID)
	}
	f.Chain = chainID
	f.mu.Unlock()
	return nil
}

func (f *Fake) AddChain(ctx context.Context, params chain.AddChainParameters) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AddChain")
	if f.AddErr != nil {
		return f.AddErr
	}
	id, err := chain.ParseHexChainID(params.ChainID)
	if err != nil {
		return &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}
	f.added = append(f.added, params)
	if f.Known != nil {
		f.Known[id] = true
	}
	return nil
}

func (f *Fake) SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription {
	return f.accountsFeed.Subscribe(ch)
}

func (f *Fake) SubscribeChainChanged(ch chan<- int64) event.Subscription {
	return f.chainFeed.Subscribe(ch)
}

// EmitAccounts simulates the wallet reporting an account change.
func (f *Fake) EmitAccounts(addrs []common.Address) int {
	f.mu.Lock()
	f.Addrs = copyAddrs(addrs)
	f.Exposed = len(addrs) > 0
	f.mu.Unlock()
	return f.accountsFeed.Send(copyAddrs(addrs))
}

// EmitChain simulates the wallet reporting a network change.
func (f *Fake) EmitChain(id int64) int {
	f.mu.Lock()
	f.Chain = id
	f.mu.Unlock()
	return f.chainFeed.Send(id)
}
