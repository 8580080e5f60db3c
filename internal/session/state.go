package session

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ConnectionState tracks the wallet link.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("ConnectionState(%d)", int(s))
}

// AuthState is independent of ConnectionState: an email login is
// authenticated with no wallet attached.
type AuthState int

const (
	Unauthenticated AuthState = iota
	Authenticated
)

func (s AuthState) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// IdentitySource records where the current identity came from. Only email
// identities survive a wallet disconnect.
type IdentitySource string

const (
	SourceNone   IdentitySource = ""
	SourceWallet IdentitySource = "wallet"
	SourceEmail  IdentitySource = "email"
)

// Identity is the signed-in user. EncryptedSecret is an opaque keystore blob
// that this package never decrypts.
type Identity struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	Address         string `json:"address,omitempty"`
	EncryptedSecret string `json:"encrypted_private_key,omitempty"`
}

// Snapshot is an immutable copy of the session.
type Snapshot struct {
	Address         *common.Address `json:"address"`
	ChainID         *int64          `json:"chain_id"`
	Balance         string          `json:"balance"`
	ConnectionState ConnectionState `json:"-"`
	IsMock          bool            `json:"is_mock"`
	AuthState       AuthState       `json:"-"`
	Identity        *Identity       `json:"identity,omitempty"`
	IdentitySource  IdentitySource  `json:"identity_source,omitempty"`
}

// Connected reports whether a wallet address is active.
func (s Snapshot) Connected() bool {
	return s.ConnectionState == Connected
}

func (s Snapshot) Authenticated() bool {
	return s.AuthState == Authenticated
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.Address != nil {
		a := *s.Address
		out.Address = &a
	}
	if s.ChainID != nil {
		id := *s.ChainID
		out.ChainID = &id
	}
	if s.Identity != nil {
		ident := *s.Identity
		out.Identity = &ident
	}
	return out
}

func emptySnapshot() Snapshot {
	return Snapshot{Balance: "0"}
}

// WalletUserName is the display name given to wallet-only users.
func WalletUserName(addr common.Address) string {
	hex := addr.Hex()
	return fmt.Sprintf("Wallet User (%s...%s)", hex[:6], hex[len(hex)-4:])
}
