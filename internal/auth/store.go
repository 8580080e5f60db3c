package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/yolodolo42/amera/internal/session"
)

const (
	authFileName = "auth.json"
	filePerms    = 0600 // Owner read/write only
)

// ErrNoCredential is returned when nothing is stored for a provider.
var ErrNoCredential = errors.New("no credential stored")

// ProviderID names an upstream integration with stored credentials.
type ProviderID string

const ProviderBanxa ProviderID = "banxa"

// Credential holds partner API credentials for an upstream provider.
type Credential struct {
	PartnerID string `json:"partner_id,omitempty"`
	APIKey    string `json:"api_key,omitempty"`
	Secret    string `json:"secret,omitempty"`
	APIURL    string `json:"api_url,omitempty"`
}

// WalletGrant remembers which accounts and chains the local wallet has
// exposed, so a CLI session survives between commands.
type WalletGrant struct {
	Addresses []string `json:"addresses,omitempty"`
	ChainID   int64    `json:"chain_id"`
	Chains    []int64  `json:"chains,omitempty"`
	Demo      bool     `json:"demo,omitempty"`
}

// AuthData is the structure of auth.json
type AuthData struct {
	Version   int                       `json:"version"`
	Identity  *session.Identity         `json:"identity,omitempty"`
	Wallet    *WalletGrant              `json:"wallet,omitempty"`
	Providers map[ProviderID]Credential `json:"providers"`
}

// Store persists the signed-in identity and provider credentials in one
// owner-only JSON file. It implements session.IdentityStore.
type Store struct {
	mu       sync.RWMutex
	filePath string
	data     *AuthData
}

var _ session.IdentityStore = (*Store)(nil)

// NewStore creates a new credential store
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &Store{
		filePath: filepath.Join(dataDir, authFileName),
		data: &AuthData{
			Version:   1,
			Providers: make(map[ProviderID]Credential),
		},
	}

	if err := store.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load auth data: %w", err)
	}

	return store, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var authData AuthData
	if err := json.Unmarshal(data, &authData); err != nil {
		return fmt.Errorf("failed to parse auth file: %w", err)
	}

	// Providers is never nil, even for hand-edited files.
	if authData.Providers == nil {
		authData.Providers = make(map[ProviderID]Credential)
	}

	s.data = &authData
	return nil
}

// save writes the auth file atomically. Callers hold s.mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal auth data: %w", err)
	}

	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, filePerms); err != nil {
		return fmt.Errorf("failed to write auth file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		_ = os.Remove(tmpPath) // Best-effort cleanup of temp file
		return fmt.Errorf("failed to save auth file: %w", err)
	}

	return nil
}

// LoadIdentity returns the stored identity, or nil when signed out.
func (s *Store) LoadIdentity() (*session.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data.Identity == nil {
		return nil, nil
	}
	ident := *s.data.Identity
	return &ident, nil
}

func (s *Store) SaveIdentity(ident session.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Identity = &ident
	return s.save()
}

// ClearIdentity signs out. Provider credentials are kept.
func (s *Store) ClearIdentity() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Identity = nil
	return s.save()
}

// LoadGrant returns the remembered wallet grant, or nil.
func (s *Store) LoadGrant() *WalletGrant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data.Wallet == nil {
		return nil
	}
	g := *s.data.Wallet
	g.Addresses = append([]string(nil), g.Addresses...)
	g.Chains = append([]int64(nil), g.Chains...)
	return &g
}

func (s *Store) SaveGrant(g WalletGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Wallet = &g
	return s.save()
}

func (s *Store) ClearGrant() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Wallet = nil
	return s.save()
}

// GetCredential returns the credential for a provider
func (s *Store) GetCredential(providerID ProviderID) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.data.Providers[providerID]
	if !ok {
		return Credential{}, fmt.Errorf("%w for provider: %s", ErrNoCredential, providerID)
	}

	return cred, nil
}

// SetCredential stores a credential for a provider
func (s *Store) SetCredential(providerID ProviderID, cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Providers[providerID] = cred
	return s.save()
}

// RemoveCredential removes credentials for a provider
func (s *Store) RemoveCredential(providerID ProviderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data.Providers, providerID)
	return s.save()
}

// ListProviders returns all providers with stored credentials, sorted.
func (s *Store) ListProviders() []ProviderID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]ProviderID, 0, len(s.data.Providers))
	for id := range s.data.Providers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
