package wallet

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrBadSignature is returned for signatures that are not 65 bytes or carry
// an invalid recovery id.
var ErrBadSignature = errors.New("malformed signature")

// Signer signs transactions and personal messages for one address.
type Signer interface {
	Address() common.Address
	SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
	// SignMessage produces an EIP-191 personal_sign signature with V in {27,28}.
	SignMessage(message []byte) ([]byte, error)
}

var _ Signer = (*KeystoreSigner)(nil)

// RecoverMessageSigner returns the address that produced an EIP-191
// signature over message. Both 0/1 and 27/28 recovery ids are accepted.
func RecoverMessageSigner(message, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrBadSignature
	}
	norm := append([]byte(nil), sig...)
	if norm[64] >= 27 {
		norm[64] -= 27
	}
	if norm[64] > 1 {
		return common.Address{}, ErrBadSignature
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), norm)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyMessage reports whether sig is want's signature over message.
func VerifyMessage(want common.Address, message, sig []byte) (bool, error) {
	got, err := RecoverMessageSigner(message, sig)
	if err != nil {
		return false, err
	}
	return got == want, nil
}
