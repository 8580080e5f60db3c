// Package session owns the wallet session: which account is connected, on
// which chain, and who is signed in. Consumers read Snapshots and subscribe
// to changes; all mutation goes through Manager methods.
package session

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/rs/zerolog"
	"github.com/yolodolo42/amera/internal/chain"
	"github.com/yolodolo42/amera/internal/provider"
)

// The demo identity shown when no real wallet can be used.
const (
	DemoAddress = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"
	DemoBalance = "1.5"
	DemoChainID = chain.EthereumID
)

var (
	ErrNoProvider      = errors.New("no wallet provider detected")
	ErrUserRejected    = errors.New("user rejected the connection")
	ErrNetwork         = errors.New("wallet network error")
	ErrNotConnected    = errors.New("wallet not connected")
	ErrInProgress      = errors.New("wallet operation already in progress")
	ErrSuperseded      = errors.New("connect superseded by disconnect")
	ErrInvalidIdentity = errors.New("invalid identity")
)

// IdentityStore persists the signed-in identity between runs.
type IdentityStore interface {
	// LoadIdentity returns nil, nil when nothing is stored.
	LoadIdentity() (*Identity, error)
	SaveIdentity(Identity) error
	ClearIdentity() error
}

// Options configures a Manager.
type Options struct {
	// Provider is the injected wallet; nil means none was detected.
	Provider provider.Provider
	Store    IdentityStore
	Registry *chain.Registry
	Logger   zerolog.Logger
	// DemoFallback adopts the demo identity when Connect fails for any reason
	// other than an in-progress connect or cancellation.
	DemoFallback   bool
	DefaultChainID int64
}

// Manager is the single source of truth for the wallet session.
type Manager struct {
	provider     provider.Provider
	store        IdentityStore
	registry     *chain.Registry
	log          zerolog.Logger
	demoFallback bool
	defaultChain int64

	mu    sync.Mutex
	state Snapshot
	// gen increments on Disconnect/Logout so an in-flight Connect can tell
	// it was overtaken.
	gen uint64

	feed  event.Feed
	scope event.SubscriptionScope
}

// New builds a Manager and loads any persisted identity. A stored email
// identity starts the session authenticated but disconnected.
func New(opts Options) (*Manager, error) {
	m := &Manager{
		provider:     opts.Provider,
		store:        opts.Store,
		registry:     opts.Registry,
		log:          opts.Logger,
		demoFallback: opts.DemoFallback,
		defaultChain: opts.DefaultChainID,
		state:        emptySnapshot(),
	}
	if m.registry == nil {
		m.registry = chain.NewRegistry()
	}
	if m.defaultChain == 0 {
		m.defaultChain = DemoChainID
	}

	if m.store != nil {
		ident, err := m.store.LoadIdentity()
		if err != nil {
			return nil, fmt.Errorf("load identity: %w", err)
		}
		if ident != nil && ident.Email != "" {
			m.state.Identity = ident
			m.state.IdentitySource = SourceEmail
			m.state.AuthState = Authenticated
		}
	}
	return m, nil
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Subscribe delivers a Snapshot after every change. Subscribers must keep
// draining ch; delivery is synchronous.
func (m *Manager) Subscribe(ch chan<- Snapshot) event.Subscription {
	return m.scope.Track(m.feed.Subscribe(ch))
}

// Close ends all subscriptions.
func (m *Manager) Close() {
	m.scope.Close()
}

func (m *Manager) publish(s Snapshot) {
	m.feed.Send(s)
}

// commit applies fn under the lock and publishes the result.
func (m *Manager) commit(fn func(s *Snapshot)) Snapshot {
	m.mu.Lock()
	fn(&m.state)
	out := m.state.clone()
	m.mu.Unlock()

	m.publish(out)
	return out
}

// DisplayName is the identity's name, or a shortened address for wallet users.
func (m *Manager) DisplayName() string {
	s := m.Snapshot()
	if s.Identity != nil && s.Identity.Name != "" {
		return s.Identity.Name
	}
	if s.Address != nil {
		return WalletUserName(*s.Address)
	}
	return ""
}

func (m *Manager) formatBalance(chainID int64, wei *big.Int) string {
	decimals := uint8(18)
	if cfg, err := m.registry.ByID(chainID); err == nil {
		decimals = cfg.NativeDecimals
	}
	return chain.FormatUnits(wei, decimals)
}

func adoptDemo(s *Snapshot) {
	addr := common.HexToAddress(DemoAddress)
	id := DemoChainID
	s.Address = &addr
	s.ChainID = &id
	s.Balance = DemoBalance
	s.ConnectionState = Connected
	s.IsMock = true
	s.AuthState = Authenticated
	if s.IdentitySource == SourceNone {
		s.IdentitySource = SourceWallet
	}
}

// adoptWallet marks the session connected to a real account.
func adoptWallet(s *Snapshot, addr common.Address, chainID int64, balance string) {
	s.Address = &addr
	s.ChainID = &chainID
	s.Balance = balance
	s.ConnectionState = Connected
	s.IsMock = false
	s.AuthState = Authenticated
	if s.IdentitySource != SourceEmail {
		s.IdentitySource = SourceWallet
		s.Identity = &Identity{Name: WalletUserName(addr), Address: addr.Hex()}
	}
}

func clearWallet(s *Snapshot) {
	s.Address = nil
	s.ChainID = nil
	s.Balance = "0"
	s.ConnectionState = Disconnected
	s.IsMock = false
}

// ConnectDemo adopts the demo identity without touching the provider.
func (m *Manager) ConnectDemo() Snapshot {
	m.log.Info().Str("address", DemoAddress).Msg("using demo wallet")
	return m.commit(adoptDemo)
}

// Disconnect drops the wallet. An email identity stays signed in; a
// wallet-only identity is cleared with it.
func (m *Manager) Disconnect() Snapshot {
	return m.commit(func(s *Snapshot) {
		m.gen++
		clearWallet(s)
		if s.IdentitySource != SourceEmail {
			s.AuthState = Unauthenticated
			s.Identity = nil
			s.IdentitySource = SourceNone
		}
	})
}

// SetIdentity signs in an email user. A supplied wallet address is adopted
// directly without going through Connect.
func (m *Manager) SetIdentity(email, name, address, encryptedSecret string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidIdentity)
	}
	if address != "" && !common.IsHexAddress(address) {
		return fmt.Errorf("%w: bad address %q", ErrInvalidIdentity, address)
	}

	ident := Identity{Email: email, Name: name, Address: address, EncryptedSecret: encryptedSecret}
	if m.store != nil {
		if err := m.store.SaveIdentity(ident); err != nil {
			return fmt.Errorf("save identity: %w", err)
		}
	}

	m.commit(func(s *Snapshot) {
		stored := ident
		s.Identity = &stored
		s.IdentitySource = SourceEmail
		s.AuthState = Authenticated
		if address != "" {
			addr := common.HexToAddress(address)
			s.Address = &addr
			if s.ChainID == nil {
				id := m.defaultChain
				s.ChainID = &id
			}
			if s.ConnectionState != Connected {
				s.Balance = "0"
			}
			s.ConnectionState = Connected
			s.IsMock = false
		}
	})
	m.log.Info().Str("email", email).Bool("with_wallet", address != "").Msg("identity set")
	return nil
}

// Logout resets wallet and identity and clears persisted state.
func (m *Manager) Logout() error {
	m.commit(func(s *Snapshot) {
		m.gen++
		*s = emptySnapshot()
	})
	if m.store != nil {
		if err := m.store.ClearIdentity(); err != nil {
			return fmt.Errorf("clear identity: %w", err)
		}
	}
	return nil
}
