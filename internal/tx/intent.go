package tx

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrValueMissing   = errors.New("value missing")
	ErrDenied         = errors.New("destination denied by policy")
	ErrNotAllowed     = errors.New("destination not in allowlist")
	ErrOverLimit      = errors.New("value exceeds max per tx limit")
	ErrZeroRecipient  = errors.New("recipient is the zero address")
	ErrTokenOverLimit = errors.New("token amount exceeds max per tx limit")
)

// Backend is the subset of chain.Client needed to prepare a transaction.
type Backend interface {
	GetNonce(ctx context.Context, chainName string, address common.Address) (uint64, error)
	EstimateGas(ctx context.Context, chainName string, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context, chainName string) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context, chainName string) (*big.Int, error)
	CallContract(ctx context.Context, chainName string, msg ethereum.CallMsg) ([]byte, error)
}

// Intent captures a state-changing transaction the user wants to perform.
type Intent struct {
	Chain       string         // chain key (e.g., "base")
	ChainID     *big.Int       // optional; set on the returned tx when known
	From        common.Address // signer address
	To          common.Address // recipient or token contract
	ValueWei    *big.Int       // native value
	Data        []byte         // calldata (empty for native send)
	Nonce       *uint64        // optional override
	GasLimit    *uint64        // optional override
	MaxFeePerG  *big.Int       // optional override
	MaxPriority *big.Int       // optional override

	// Recipient and TokenAmount are set for Digital USD transfers, where To is
	// the token contract and the real beneficiary lives in the calldata.
	Recipient   common.Address
	TokenAmount *big.Int
}

// Policy enforces safety constraints before sending.
type Policy struct {
	MaxPerTxWei   *big.Int
	MaxPerTxToken *big.Int
	AllowTo       []common.Address
	DenyTo        []common.Address
}

// SuggestedFees carries gas estimates so the caller can render them.
type SuggestedFees struct {
	GasLimit         uint64
	MaxFeePerGas     *big.Int
	MaxPriorityFee   *big.Int
	EstimatedCostWei *big.Int
}

// beneficiary is who actually receives funds.
func (i Intent) beneficiary() common.Address {
	if i.TokenAmount != nil {
		return i.Recipient
	}
	return i.To
}

// Validate applies simple allow/deny and spend limits.
func Validate(intent Intent, policy Policy) error {
	if intent.ValueWei == nil {
		return ErrValueMissing
	}
	to := intent.beneficiary()
	if to == (common.Address{}) {
		return ErrZeroRecipient
	}

	for _, a := range policy.DenyTo {
		if a == to {
			return ErrDenied
		}
	}
	if len(policy.AllowTo) > 0 {
		allowed := false
		for _, a := range policy.AllowTo {
			if a == to {
				allowed = true
				break
			}
		}
		if !allowed {
			return ErrNotAllowed
		}
	}
	if policy.MaxPerTxWei != nil && intent.ValueWei.Cmp(policy.MaxPerTxWei) > 0 {
		return ErrOverLimit
	}
	if policy.MaxPerTxToken != nil && intent.TokenAmount != nil && intent.TokenAmount.Cmp(policy.MaxPerTxToken) > 0 {
		return ErrTokenOverLimit
	}
	return nil
}

// BuildUnsignedTx simulates and prepares an unsigned EIP-1559 transaction.
func BuildUnsignedTx(ctx context.Context, b Backend, intent Intent) (*types.Transaction, SuggestedFees, error) {
	if intent.ValueWei == nil {
		return nil, SuggestedFees{}, ErrValueMissing
	}

	nonce := uint64(0)
	if intent.Nonce != nil {
		nonce = *intent.Nonce
	} else {
		n, err := b.GetNonce(ctx, intent.Chain, intent.From)
		if err != nil {
			return nil, SuggestedFees{}, fmt.Errorf("nonce: %w", err)
		}
		nonce = n
	}

	maxFee := intent.MaxFeePerG
	maxPrio := intent.MaxPriority
	if maxFee == nil || maxPrio == nil {
		tip, err := b.SuggestGasTipCap(ctx, intent.Chain)
		if err != nil {
			return nil, SuggestedFees{}, fmt.Errorf("tip cap: %w", err)
		}
		fee, err := b.SuggestGasPrice(ctx, intent.Chain)
		if err != nil {
			return nil, SuggestedFees{}, fmt.Errorf("gas price: %w", err)
		}
		if maxPrio == nil {
			maxPrio = tip
		}
		if maxFee == nil {
			maxFee = fee
		}
	}

	gasLimit := uint64(0)
	if intent.GasLimit != nil {
		gasLimit = *intent.GasLimit
	} else {
		gl, err := b.EstimateGas(ctx, intent.Chain, ethereum.CallMsg{
			From:      intent.From,
			To:        &intent.To,
			GasFeeCap: maxFee,
			GasTipCap: maxPrio,
			Value:     intent.ValueWei,
			Data:      intent.Data,
		})
		if err != nil {
			return nil, SuggestedFees{}, fmt.Errorf("estimate gas: %w", err)
		}
		gasLimit = gl
	}

	// Dry run; a revert here is surfaced again by EstimateGas on most nodes.
	_, _ = b.CallContract(ctx, intent.Chain, ethereum.CallMsg{
		From:      intent.From,
		To:        &intent.To,
		Gas:       gasLimit,
		GasFeeCap: maxFee,
		GasTipCap: maxPrio,
		Value:     intent.ValueWei,
		Data:      intent.Data,
	})

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   intent.ChainID,
		Nonce:     nonce,
		GasTipCap: maxPrio,
		GasFeeCap: maxFee,
		Gas:       gasLimit,
		To:        &intent.To,
		Value:     intent.ValueWei,
		Data:      intent.Data,
	})

	total := new(big.Int).Mul(maxFee, new(big.Int).SetUint64(gasLimit))
	total.Add(total, intent.ValueWei)

	return tx, SuggestedFees{
		GasLimit:         gasLimit,
		MaxFeePerGas:     maxFee,
		MaxPriorityFee:   maxPrio,
		EstimatedCostWei: total,
	}, nil
}
