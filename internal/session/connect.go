package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/yolodolo42/amera/internal/chain"
	"github.com/yolodolo42/amera/internal/provider"
)

// watchTimeout bounds each provider round trip made in response to an event.
const watchTimeout = 30 * time.Second

// Outcome classifies a Connect attempt.
type Outcome int

const (
	OutcomeConnected Outcome = iota
	OutcomeNoProvider
	OutcomeUserRejected
	OutcomeNetworkError
	OutcomeInProgress
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConnected:
		return "connected"
	case OutcomeNoProvider:
		return "no provider"
	case OutcomeUserRejected:
		return "user rejected"
	case OutcomeNetworkError:
		return "network error"
	case OutcomeInProgress:
		return "in progress"
	case OutcomeCanceled:
		return "canceled"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// ConnectResult reports what Connect did. Demo is set when the attempt failed
// and the demo identity was adopted instead; Err still carries the cause.
type ConnectResult struct {
	Outcome  Outcome
	Err      error
	Demo     bool
	Snapshot Snapshot
}

// OK reports whether a real wallet is now connected.
func (r ConnectResult) OK() bool {
	return r.Outcome == OutcomeConnected
}

// Connect asks the provider for account access. A call while another Connect
// is running returns OutcomeInProgress and changes nothing.
func (m *Manager) Connect(ctx context.Context) ConnectResult {
	if m.provider == nil {
		return m.fail(OutcomeNoProvider, ErrNoProvider)
	}

	m.mu.Lock()
	if m.state.ConnectionState == Connecting {
		out := m.state.clone()
		m.mu.Unlock()
		return ConnectResult{Outcome: OutcomeInProgress, Err: ErrInProgress, Snapshot: out}
	}
	prev := m.state.ConnectionState
	m.state.ConnectionState = Connecting
	gen := m.gen
	connecting := m.state.clone()
	m.mu.Unlock()
	m.publish(connecting)

	addr, chainID, balance, err := m.readWallet(ctx, true)
	if err != nil {
		outcome := classify(err)
		m.log.Warn().Err(err).Stringer("outcome", outcome).Msg("wallet connect failed")

		var superseded bool
		snap := m.commit(func(s *Snapshot) {
			superseded = m.gen != gen
			if !superseded && s.ConnectionState == Connecting {
				s.ConnectionState = prev
			}
		})
		if superseded {
			return ConnectResult{Outcome: OutcomeCanceled, Err: ErrSuperseded, Snapshot: snap}
		}
		if outcome == OutcomeCanceled {
			return ConnectResult{Outcome: outcome, Err: err, Snapshot: snap}
		}
		return m.fail(outcome, err)
	}

	var superseded bool
	snap := m.commit(func(s *Snapshot) {
		if m.gen != gen {
			superseded = true
			return
		}
		adoptWallet(s, addr, chainID, balance)
	})
	if superseded {
		return ConnectResult{Outcome: OutcomeCanceled, Err: ErrSuperseded, Snapshot: snap}
	}

	if !chain.Supported(chainID) {
		m.log.Warn().Int64("chain_id", chainID).Msg("connected to a chain that may not be fully supported")
	}
	m.log.Info().Str("address", addr.Hex()).Int64("chain_id", chainID).Msg("wallet connected")
	return ConnectResult{Outcome: OutcomeConnected, Snapshot: snap}
}

// fail settles a failed connect, adopting the demo identity when allowed.
func (m *Manager) fail(outcome Outcome, err error) ConnectResult {
	if m.demoFallback {
		return ConnectResult{Outcome: outcome, Err: err, Demo: true, Snapshot: m.ConnectDemo()}
	}
	return ConnectResult{Outcome: outcome, Err: err, Snapshot: m.Snapshot()}
}

func classify(err error) Outcome {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.Is(err, ErrUserRejected), provider.IsUserRejected(err):
		return OutcomeUserRejected
	default:
		return OutcomeNetworkError
	}
}

// readWallet gathers account, chain and balance. prompt selects
// RequestAccounts over the silent Accounts.
func (m *Manager) readWallet(ctx context.Context, prompt bool) (common.Address, int64, string, error) {
	var (
		accounts []common.Address
		err      error
	)
	if prompt {
		accounts, err = m.provider.RequestAccounts(ctx)
	} else {
		accounts, err = m.provider.Accounts(ctx)
	}
	if err != nil {
		if provider.IsUserRejected(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return common.Address{}, 0, "", err
		}
		return common.Address{}, 0, "", fmt.Errorf("%w: accounts: %w", ErrNetwork, err)
	}
	if len(accounts) == 0 {
		return common.Address{}, 0, "", ErrUserRejected
	}
	addr := accounts[0]

	chainID, err := m.provider.ChainID(ctx)
	if err != nil {
		return common.Address{}, 0, "", fmt.Errorf("%w: chain id: %w", ErrNetwork, err)
	}
	wei, err := m.provider.Balance(ctx, addr)
	if err != nil {
		return common.Address{}, 0, "", fmt.Errorf("%w: balance: %w", ErrNetwork, err)
	}
	return addr, chainID, m.formatBalance(chainID, wei), nil
}

// Restore adopts accounts the provider already exposes, without prompting.
// It reports whether a wallet is connected afterwards.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	if m.provider == nil {
		return false, nil
	}

	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	addr, chainID, balance, err := m.readWallet(ctx, false)
	if errors.Is(err, ErrUserRejected) {
		// nothing exposed yet
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ok := true
	m.commit(func(s *Snapshot) {
		if m.gen != gen {
			ok = false
			return
		}
		adoptWallet(s, addr, chainID, balance)
	})
	return ok, nil
}

// Refresh re-reads chain and balance for the connected account. The demo
// identity has nothing to refresh.
func (m *Manager) Refresh(ctx context.Context) error {
	s := m.Snapshot()
	if s.IsMock {
		return nil
	}
	if !s.Connected() || s.Address == nil {
		return ErrNotConnected
	}
	if m.provider == nil {
		return ErrNoProvider
	}

	chainID, err := m.provider.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("%w: chain id: %w", ErrNetwork, err)
	}
	wei, err := m.provider.Balance(ctx, *s.Address)
	if err != nil {
		return fmt.Errorf("%w: balance: %w", ErrNetwork, err)
	}
	balance := m.formatBalance(chainID, wei)

	m.commit(func(st *Snapshot) {
		if st.Address == nil || *st.Address != *s.Address || st.IsMock {
			return
		}
		st.ChainID = &chainID
		st.Balance = balance
	})
	return nil
}

// SwitchChain moves the wallet to chainID. Under the demo identity the chain
// changes immediately with no provider call. Otherwise an unrecognized chain
// is added from the registry and the switch retried, and chain-dependent
// state is re-read afterwards.
func (m *Manager) SwitchChain(ctx context.Context, chainID int64) error {
	m.mu.Lock()
	if m.state.IsMock {
		id := chainID
		m.state.ChainID = &id
		out := m.state.clone()
		m.mu.Unlock()
		m.publish(out)
		return nil
	}
	state := m.state.ConnectionState
	m.mu.Unlock()

	if m.provider == nil {
		return ErrNoProvider
	}
	if state == Connecting {
		return ErrInProgress
	}

	err := m.provider.SwitchChain(ctx, chainID)
	if provider.IsUnrecognizedChain(err) {
		cfg, lookupErr := m.registry.ByID(chainID)
		if lookupErr != nil {
			return lookupErr
		}
		m.log.Info().Int64("chain_id", chainID).Str("name", cfg.Name).Msg("chain unknown to wallet, adding")
		if err := m.provider.AddChain(ctx, chain.AddChainParams(cfg)); err != nil {
			return fmt.Errorf("add chain %s: %w", cfg.Name, err)
		}
		err = m.provider.SwitchChain(ctx, chainID)
	}
	if err != nil {
		return fmt.Errorf("switch chain: %w", err)
	}

	if state != Connected {
		return nil
	}
	return m.Refresh(ctx)
}

// Watch follows the provider's account and chain notifications until ctx
// ends, unsubscribing on return. An empty account list disconnects, a new
// account is restored and a chain change triggers Refresh.
func (m *Manager) Watch(ctx context.Context) error {
	if m.provider == nil {
		return ErrNoProvider
	}

	accountsCh := make(chan []common.Address, 4)
	chainCh := make(chan int64, 4)
	accSub := m.provider.SubscribeAccountsChanged(accountsCh)
	defer accSub.Unsubscribe()
	chainSub := m.provider.SubscribeChainChanged(chainCh)
	defer chainSub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-accSub.Err():
			return err
		case err := <-chainSub.Err():
			return err
		case accounts := <-accountsCh:
			m.accountsChanged(ctx, accounts)
		case id := <-chainCh:
			m.log.Debug().Int64("chain_id", id).Msg("wallet chain changed")
			m.chainChanged(ctx)
		}
	}
}

func (m *Manager) accountsChanged(ctx context.Context, accounts []common.Address) {
	if len(accounts) == 0 {
		m.log.Info().Msg("wallet reported no accounts, disconnecting")
		m.Disconnect()
		return
	}
	ctx, cancel := context.WithTimeout(ctx, watchTimeout)
	defer cancel()
	if _, err := m.Restore(ctx); err != nil {
		m.log.Warn().Err(err).Msg("account change refresh failed")
	}
}

func (m *Manager) chainChanged(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, watchTimeout)
	defer cancel()
	if err := m.Refresh(ctx); err != nil && !errors.Is(err, ErrNotConnected) {
		m.log.Warn().Err(err).Msg("chain change refresh failed")
	}
}
