// Package provider adapts an external wallet to the capability set the session
// manager needs: account access, balance and chain queries, chain switching,
// and account/chain change notifications.
package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/yolodolo42/amera/internal/chain"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnrecognizedChain = 4902
	CodeInvalidParams     = -32602
)

// Provider is an injected wallet. Implementations must be safe for concurrent use.
type Provider interface {
	// RequestAccounts asks the user to expose accounts, prompting if needed.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Accounts returns accounts already exposed, without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	ChainID(ctx context.Context) (int64, error)
	// SwitchChain returns an *RPCError with CodeUnrecognizedChain when the
	// wallet does not know the chain yet.
	SwitchChain(ctx context.Context, chainID int64) error
	AddChain(ctx context.Context, params chain.AddChainParameters) error

	SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription
	SubscribeChainChanged(ch chan<- int64) event.Subscription
}

// RPCError is an error reported by the wallet itself.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// ErrorCode returns the provider error code carried by err, or 0.
func ErrorCode(err error) int {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code
	}
	return 0
}

func IsUserRejected(err error) bool {
	return ErrorCode(err) == CodeUserRejected
}

func IsUnrecognizedChain(err error) bool {
	return ErrorCode(err) == CodeUnrecognizedChain
}

func userRejected() error {
	return &RPCError{Code: CodeUserRejected, Message: "User rejected the request."}
}

func unrecognizedChain(id int64) error {
	return &RPCError{
		Code:    CodeUnrecognizedChain,
		Message: fmt.Sprintf("Unrecognized chain ID %q. Try adding the chain using wallet_addEthereumChain first.", chain.HexChainID(id)),
	}
}

func copyAddrs(in []common.Address) []common.Address {
	return append([]common.Address{}, in...)
}
