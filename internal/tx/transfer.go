package tx

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// transfer(address,uint256)
var transferSelector = common.Hex2Bytes("a9059cbb")

// ERC20TransferData encodes transfer(to, amount) calldata.
func ERC20TransferData(to common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 68)
	data = append(data, transferSelector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}

// TokenTransferIntent builds an intent that moves amount of token to recipient.
func TokenTransferIntent(chainName string, from, token, recipient common.Address, amount *big.Int) Intent {
	return Intent{
		Chain:       chainName,
		From:        from,
		To:          token,
		ValueWei:    new(big.Int),
		Data:        ERC20TransferData(recipient, amount),
		Recipient:   recipient,
		TokenAmount: amount,
	}
}

// ParseUnits converts a human amount ("12.5") into base units for decimals.
// More fractional digits than decimals is an error rather than a silent truncation.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive: %s", amount)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", amount, decimals)
	}
	return scaled.BigInt(), nil
}
