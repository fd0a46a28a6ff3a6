package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimals of ether and of every property
// token created through the factory.
const EtherDecimals = 18

// ErrInvalidAmount is returned for amounts that cannot be represented in
// base units.
var ErrInvalidAmount = errors.New("invalid amount")

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(EtherDecimals), nil)

// ParseUnits converts a decimal string into base units. Negative values
// and values with more fractional digits than decimals are rejected.
func ParseUnits(value string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, value)
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, value, decimals)
	}
	return scaled.BigInt(), nil
}

// FormatUnits renders base units as a decimal string. Whole values keep a
// trailing ".0".
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0.0"
	}
	s := decimal.NewFromBigInt(value, -int32(decimals)).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func ParseEther(value string) (*big.Int, error) {
	return ParseUnits(value, EtherDecimals)
}

func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, EtherDecimals)
}

// PurchaseValue is the wei owed for amount token base units at
// pricePerToken wei per whole token: amount * price / 1e18, rounded down.
func PurchaseValue(amount, pricePerToken *big.Int) *big.Int {
	if amount == nil || pricePerToken == nil {
		return new(big.Int)
	}
	v := new(big.Int).Mul(amount, pricePerToken)
	return v.Quo(v, weiPerEther)
}
