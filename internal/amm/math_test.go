package amm

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteOutput(t *testing.T) {
	out, err := QuoteOutput(big.NewInt(100), big.NewInt(1000), big.NewInt(2000))
	require.NoError(t, err)
	assert.Equal(t, int64(181), out.Int64())
}

func TestQuoteOutput_ZeroAmountIn(t *testing.T) {
	out, err := QuoteOutput(big.NewInt(0), big.NewInt(1000), big.NewInt(2000))
	require.NoError(t, err)
	assert.Zero(t, out.Sign())
}

func TestQuoteOutput_NoLiquidity(t *testing.T) {
	_, err := QuoteOutput(big.NewInt(100), big.NewInt(0), big.NewInt(2000))
	assert.ErrorIs(t, err, ErrNoLiquidity)

	_, err = QuoteOutput(big.NewInt(100), big.NewInt(1000), big.NewInt(0))
	assert.ErrorIs(t, err, ErrNoLiquidity)
}

func TestQuoteOutput_NegativeAmountIn(t *testing.T) {
	_, err := QuoteOutput(big.NewInt(-1), big.NewInt(1000), big.NewInt(2000))
	assert.Error(t, err)
}

func TestQuoteOutput_BoundedByReserveOut(t *testing.T) {
	reserveIn := big.NewInt(1000)
	reserveOut := big.NewInt(2000)

	// Even absurdly large inputs can never drain the output reserve.
	huge, ok := new(big.Int).SetString("1000000000000000000000000000000", 10)
	require.True(t, ok)

	out, err := QuoteOutput(huge, reserveIn, reserveOut)
	require.NoError(t, err)
	assert.True(t, out.Cmp(reserveOut) < 0, "out %s must stay below reserveOut %s", out, reserveOut)
	assert.True(t, out.Sign() >= 0)
}

func TestQuoteOutput_MonotoneInAmountIn(t *testing.T) {
	reserveIn := big.NewInt(1_000_000)
	reserveOut := big.NewInt(5_000_000)

	prev := big.NewInt(-1)
	for _, in := range []int64{0, 1, 10, 100, 1000, 10_000, 100_000, 1_000_000, 10_000_000} {
		out, err := QuoteOutput(big.NewInt(in), reserveIn, reserveOut)
		require.NoError(t, err)
		assert.True(t, out.Cmp(prev) >= 0, "output must not decrease as input grows")
		prev = out
	}
}

func TestQuoteOutput_LargeReserves(t *testing.T) {
	// 18-decimal reserves overflow uint64; the math must stay exact.
	reserveIn, ok := new(big.Int).SetString("123456789000000000000000000", 10)
	require.True(t, ok)
	reserveOut, ok := new(big.Int).SetString("987654321000000000000000000", 10)
	require.True(t, ok)
	amountIn, ok := new(big.Int).SetString("1000000000000000000", 10)
	require.True(t, ok)

	out, err := QuoteOutput(amountIn, reserveIn, reserveOut)
	require.NoError(t, err)
	assert.True(t, out.Sign() > 0)
	assert.True(t, out.Cmp(reserveOut) < 0)
}

func TestApplySlippage(t *testing.T) {
	tests := []struct {
		name        string
		out         int64
		slippageBps uint16
		want        int64
	}{
		{name: "half percent", out: 10000, slippageBps: 50, want: 9950},
		{name: "one percent", out: 181, slippageBps: 100, want: 179},
		{name: "zero slippage", out: 181, slippageBps: 0, want: 181},
		{name: "floor rounding", out: 999, slippageBps: 1, want: 998},
		{name: "full slippage", out: 181, slippageBps: 10000, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplySlippage(big.NewInt(tt.out), tt.slippageBps)
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestPriceImpact(t *testing.T) {
	// Small trade against deep reserves: impact near zero.
	small := PriceImpact(big.NewInt(1), big.NewInt(1), big.NewInt(1_000_000), big.NewInt(1_000_000))
	assert.Less(t, small, 0.01)

	// Trading 10% of the reserve must show meaningful impact.
	out, err := QuoteOutput(big.NewInt(100_000), big.NewInt(1_000_000), big.NewInt(1_000_000))
	require.NoError(t, err)
	impact := PriceImpact(big.NewInt(100_000), out, big.NewInt(1_000_000), big.NewInt(1_000_000))
	assert.Greater(t, impact, 0.05)
	assert.Less(t, impact, 0.2)

	// Degenerate inputs report zero instead of NaN.
	assert.Zero(t, PriceImpact(big.NewInt(0), big.NewInt(0), big.NewInt(1), big.NewInt(1)))
	assert.Zero(t, PriceImpact(nil, nil, nil, nil))
}
