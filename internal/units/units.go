package units

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Token decimal conventions used across the exchange contracts.
const (
	USDDecimals     = 6  // mock USDC and order book prices
	WrappedDecimals = 18 // ERC-20 wrappers around credit tokens
)

// ToBaseUnits converts a human decimal string ("12.5") into base units at the
// given precision. Values that do not land on a whole base unit are rejected
// rather than silently truncated.
func ToBaseUnits(value string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal amount %q: %w", value, err)
	}
	if d.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative: %s", value)
	}

	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", value, decimals)
	}

	return scaled.BigInt(), nil
}

// FromBaseUnits renders base units as a human decimal string at the given
// precision, with trailing zeros trimmed.
func FromBaseUnits(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}

// MulPrice multiplies a 6-decimal unit price by an integer quantity, giving
// the monetary value in USD base units. Order fills approve exactly this.
func MulPrice(price *big.Int, quantity *big.Int) *big.Int {
	return new(big.Int).Mul(price, quantity)
}
