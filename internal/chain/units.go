package chain

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

var ErrNegativeAmount = errors.New("negative amount")

// ToWei converts whole QT into token base units.
func ToWei(qt int64, decimals int32) (*big.Int, error) {
	if qt < 0 {
		return nil, ErrNegativeAmount
	}
	return decimal.NewFromInt(qt).Shift(decimals).BigInt(), nil
}

// FromWei converts token base units into whole QT, dropping the fraction.
func FromWei(wei *big.Int, decimals int32) (int64, error) {
	if wei == nil {
		return 0, nil
	}
	if wei.Sign() < 0 {
		return 0, ErrNegativeAmount
	}
	d := decimal.NewFromBigInt(wei, -decimals).Truncate(0)
	if !d.BigInt().IsInt64() {
		return 0, errors.New("amount overflows int64")
	}
	return d.IntPart(), nil
}

// FormatQT renders base units as a decimal QT string for logs and API responses.
func FormatQT(wei *big.Int, decimals int32) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -decimals).String()
}
