package wallet

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

var (
	ErrDecrypt    = errors.New("could not decrypt key with given password")
	ErrNoMnemonic = errors.New("wallet has no mnemonic phrase")
)

// GeneratedKey is a freshly generated account with its plaintext key.
type GeneratedKey struct {
	Address       string
	PrivateKeyHex string
}

// NewRandomKey generates a new secp256k1 account.
func NewRandomKey() (*GeneratedKey, error) {
	pk, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &GeneratedKey{
		Address:       crypto.PubkeyToAddress(pk.PublicKey).Hex(),
		PrivateKeyHex: hexutil.Encode(crypto.FromECDSA(pk)),
	}, nil
}

// Encrypter turns private keys into password-protected keystore (v3) JSON.
// The scrypt cost is fixed per Encrypter.
type Encrypter struct {
	ScryptN int
	ScryptP int
}

// DefaultEncrypter uses go-ethereum's standard scrypt parameters.
var DefaultEncrypter = Encrypter{ScryptN: keystore.StandardScryptN, ScryptP: keystore.StandardScryptP}

// Encrypt returns keystore JSON protecting privateKeyHex under password.
func (e Encrypter) Encrypt(privateKeyHex, password string) (string, error) {
	pk, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return "", err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("key id: %w", err)
	}
	key := &keystore.Key{
		Id:         id,
		Address:    crypto.PubkeyToAddress(pk.PublicKey),
		PrivateKey: pk,
	}

	blob, err := keystore.EncryptKey(key, password, e.ScryptN, e.ScryptP)
	if err != nil {
		return "", fmt.Errorf("encrypt key: %w", err)
	}
	return string(blob), nil
}

// EncryptPrivateKey encrypts with the standard scrypt cost.
func EncryptPrivateKey(privateKeyHex, password string) (string, error) {
	return DefaultEncrypter.Encrypt(privateKeyHex, password)
}

// DecryptPrivateKey recovers the 0x-prefixed private key from keystore JSON.
func DecryptPrivateKey(encryptedJSON, password string) (string, error) {
	key, err := keystore.DecryptKey([]byte(encryptedJSON), password)
	if err != nil {
		if errors.Is(err, keystore.ErrDecrypt) {
			return "", ErrDecrypt
		}
		return "", fmt.Errorf("decrypt key: %w", err)
	}
	return hexutil.Encode(crypto.FromECDSA(key.PrivateKey)), nil
}

// ExportMnemonic always fails: keys created or imported here are raw secp256k1
// keys, not HD-derived, so there is no phrase to give back.
func ExportMnemonic(privateKeyHex string) (string, error) {
	if _, err := parsePrivateKey(privateKeyHex); err != nil {
		return "", err
	}
	return "", ErrNoMnemonic
}

// Provisioned is a server-side wallet created during email signup.
type Provisioned struct {
	Address         string
	EncryptedSecret string
}

// Provision creates a wallet for a new email user and returns only the
// encrypted form of its key.
func (e Encrypter) Provision(password string) (*Provisioned, error) {
	gen, err := NewRandomKey()
	if err != nil {
		return nil, err
	}
	blob, err := e.Encrypt(gen.PrivateKeyHex, password)
	if err != nil {
		return nil, err
	}
	return &Provisioned{Address: gen.Address, EncryptedSecret: blob}, nil
}
