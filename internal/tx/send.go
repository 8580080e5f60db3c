package tx

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

// Broadcaster submits signed transactions and waits for them.
type Broadcaster interface {
	SendTransaction(ctx context.Context, chainName string, tx *types.Transaction) error
	WaitMined(ctx context.Context, chainName string, txHash common.Hash) (*types.Receipt, error)
}

// TxSigner signs for one address.
type TxSigner interface {
	Address() common.Address
	SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

const (
	sendTimeout = 20 * time.Second
	waitTimeout = 2 * time.Minute
)

// Sender signs, broadcasts and records transfers.
type Sender struct {
	Chain    Broadcaster
	Receipts *ReceiptStore // optional
	Log      zerolog.Logger
}

// SendResult is what a finished send reports back.
type SendResult struct {
	Tx      *types.Transaction
	Receipt *types.Receipt // nil when not waited for or not mined in time
}

// Send signs unsigned with signer and broadcasts it on chainName. When wait is
// set it blocks until the receipt is available or the wait times out; a
// timeout is not an error since the transaction is already in flight.
func (s *Sender) Send(ctx context.Context, chainName string, signer TxSigner, unsigned *types.Transaction, record Transfer, wait bool) (*SendResult, error) {
	signed, err := signer.SignTransaction(unsigned, unsigned.ChainId())
	if err != nil {
		return nil, fmt.Errorf("failed to sign tx: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := s.Chain.SendTransaction(sendCtx, chainName, signed); err != nil {
		return nil, fmt.Errorf("failed to send tx: %w", err)
	}

	log := s.Log.With().Str("chain", chainName).Str("tx", signed.Hash().Hex()).Logger()
	log.Info().Msg("transaction submitted")

	record.Chain = chainName
	record.TxHash = signed.Hash().Hex()
	record.From = signer.Address().Hex()
	if s.Receipts != nil {
		if err := s.Receipts.RecordSubmitted(ctx, record); err != nil {
			log.Warn().Err(err).Msg("could not record transfer")
		}
	}

	res := &SendResult{Tx: signed}
	if !wait {
		return res, nil
	}

	waitCtx, cancelWait := context.WithTimeout(ctx, waitTimeout)
	defer cancelWait()
	receipt, err := s.Chain.WaitMined(waitCtx, chainName, signed.Hash())
	if err != nil || receipt == nil {
		log.Warn().Err(err).Msg("receipt not available yet")
		return res, nil
	}
	res.Receipt = receipt

	if s.Receipts != nil {
		if err := s.Receipts.RecordReceipt(ctx, chainName, receipt); err != nil {
			log.Warn().Err(err).Msg("could not record receipt")
		}
	}
	log.Info().Uint64("status", receipt.Status).Uint64("gas_used", receipt.GasUsed).Msg("transaction mined")
	return res, nil
}
