package amm

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

// ErrNoLiquidity is returned when either pool reserve is zero
var ErrNoLiquidity = errors.New("pool has no liquidity")

// Swap fee: 0.3%, applied to the input amount
const (
	feeNumerator   = 997
	feeDenominator = 1000
)

// QuoteOutput computes the constant-product swap output with the 0.3% fee
// applied to the input. All math is integer-exact:
//
//	out = floor(amountIn*997*reserveOut / (reserveIn*1000 + amountIn*997))
//
// A zero amountIn quotes zero without error; a zero reserve is an error.
func QuoteOutput(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if amountIn == nil || reserveIn == nil || reserveOut == nil {
		return nil, fmt.Errorf("nil quote input")
	}
	if amountIn.Sign() < 0 {
		return nil, fmt.Errorf("amountIn must not be negative")
	}
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, ErrNoLiquidity
	}
	if amountIn.Sign() == 0 {
		return big.NewInt(0), nil
	}

	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(feeNumerator))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(feeDenominator))
	denominator.Add(denominator, amountInWithFee)

	return numerator.Div(numerator, denominator), nil
}

// ApplySlippage computes the minimum acceptable output for a slippage
// tolerance in basis points. This value, not the raw quote, goes on-chain.
//
//	minOut = floor(out * (10000 - slippageBps) / 10000)
func ApplySlippage(amountOut *big.Int, slippageBps uint16) *big.Int {
	if amountOut == nil {
		return big.NewInt(0)
	}
	if slippageBps >= 10000 {
		return big.NewInt(0)
	}

	result := new(big.Int).Mul(amountOut, big.NewInt(int64(10000-slippageBps)))
	return result.Div(result, big.NewInt(10000))
}

// PriceImpact approximates the relative price degradation of a quote against
// the spot rate. Display only; never feeds a transaction parameter.
func PriceImpact(amountIn, amountOut, reserveIn, reserveOut *big.Int) float64 {
	if amountIn == nil || amountOut == nil || reserveIn == nil || reserveOut == nil {
		return 0
	}
	if amountIn.Sign() == 0 || reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return 0
	}

	idealRate := bigFloat(reserveOut) / bigFloat(reserveIn)
	if idealRate == 0 {
		return 0
	}
	executionRate := bigFloat(amountOut) / bigFloat(amountIn)

	return math.Max(0, 1-executionRate/idealRate)
}

func bigFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
