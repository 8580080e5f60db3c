package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountLocked   = errors.New("account is locked")
	ErrInvalidKey      = errors.New("invalid private key")
)

// KeystoreSigner implements Signer using go-ethereum's encrypted keystore
type KeystoreSigner struct {
	// mu protects key from concurrent access. Prevents signing operations from
	// racing with Lock() which zeros the key material.
	mu      sync.RWMutex
	account accounts.Account
	key     *ecdsa.PrivateKey // nil when locked
}

// KeystoreManager manages the keystore directory and accounts
type KeystoreManager struct {
	ks      *keystore.KeyStore
	dataDir string
	scryptN int
	scryptP int
}

// Option configures a KeystoreManager.
type Option func(*KeystoreManager)

// WithLightScrypt trades key-derivation cost for speed. Meant for tests and
// throwaway demo keystores only.
func WithLightScrypt() Option {
	return func(km *KeystoreManager) {
		km.scryptN = keystore.LightScryptN
		km.scryptP = keystore.LightScryptP
	}
}

// NewKeystoreManager opens (or creates) dataDir/keystore.
func NewKeystoreManager(dataDir string, opts ...Option) (*KeystoreManager, error) {
	keystoreDir := filepath.Join(dataDir, "keystore")
	if err := os.MkdirAll(keystoreDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}

	km := &KeystoreManager{
		dataDir: dataDir,
		scryptN: keystore.StandardScryptN,
		scryptP: keystore.StandardScryptP,
	}
	for _, opt := range opts {
		opt(km)
	}
	km.ks = keystore.NewKeyStore(keystoreDir, km.scryptN, km.scryptP)

	return km, nil
}

// CreateAccount creates a new account with the given password
func (km *KeystoreManager) CreateAccount(password string) (accounts.Account, error) {
	return km.ks.NewAccount(password)
}

// ImportKey imports a private key and encrypts it with the password
func (km *KeystoreManager) ImportKey(privateKeyHex string, password string) (accounts.Account, error) {
	privateKey, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return accounts.Account{}, err
	}
	return km.ks.ImportECDSA(privateKey, password)
}

// ListAccounts returns all accounts in the keystore
func (km *KeystoreManager) ListAccounts() []accounts.Account {
	return km.ks.Accounts()
}

// HasAccount reports whether the keystore holds a key for address.
func (km *KeystoreManager) HasAccount(address common.Address) bool {
	return km.ks.HasAddress(address)
}

func (km *KeystoreManager) find(address common.Address) (accounts.Account, error) {
	for _, acc := range km.ks.Accounts() {
		if acc.Address == address {
			return acc, nil
		}
	}
	return accounts.Account{}, ErrAccountNotFound
}

// Verify checks password against every account and returns the addresses it
// unlocks. A wallet extension exposes exactly these accounts after approval.
func (km *KeystoreManager) Verify(password string) []common.Address {
	var unlocked []common.Address
	for _, acc := range km.ks.Accounts() {
		keyJSON, err := os.ReadFile(acc.URL.Path)
		if err != nil {
			continue
		}
		if _, err := keystore.DecryptKey(keyJSON, password); err == nil {
			unlocked = append(unlocked, acc.Address)
		}
	}
	return unlocked
}

// Export returns the keystore JSON for address re-encrypted under newPassword.
func (km *KeystoreManager) Export(address common.Address, password, newPassword string) ([]byte, error) {
	acc, err := km.find(address)
	if err != nil {
		return nil, err
	}
	return km.ks.Export(acc, password, newPassword)
}

// GetSigner returns a signer for the given address
func (km *KeystoreManager) GetSigner(address common.Address, password string) (*KeystoreSigner, error) {
	acc, err := km.find(address)
	if err != nil {
		return nil, err
	}

	keyJSON, err := os.ReadFile(acc.URL.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("failed to unlock account: %w", err)
	}

	return &KeystoreSigner{
		account: acc,
		key:     key.PrivateKey,
	}, nil
}

// Address returns the address of the signer
func (ks *KeystoreSigner) Address() common.Address {
	return ks.account.Address
}

// SignTransaction signs a transaction
func (ks *KeystoreSigner) SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if ks.key == nil {
		return nil, ErrAccountLocked
	}

	signer := types.LatestSignerForChainID(chainID)
	return types.SignTx(tx, signer, ks.key)
}

// SignMessage signs an arbitrary message using EIP-191 personal sign
func (ks *KeystoreSigner) SignMessage(message []byte) ([]byte, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if ks.key == nil {
		return nil, ErrAccountLocked
	}

	sig, err := crypto.Sign(accounts.TextHash(message), ks.key)
	if err != nil {
		return nil, err
	}

	// V goes from 0/1 to 27/28 for ecrecover/MetaMask compatibility.
	sig[64] += 27

	return sig, nil
}

// Lock zeros private key material. Safe to call multiple times. After Lock(),
// all signing operations return ErrAccountLocked.
func (ks *KeystoreSigner) Lock() {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.key != nil {
		ks.key.D.SetInt64(0)
		ks.key = nil
	}
}

func parsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return privateKey, nil
}
