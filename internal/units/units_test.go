package units

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		decimals int32
		want     string
		wantErr  bool
	}{
		{name: "whole usd", value: "12", decimals: USDDecimals, want: "12000000"},
		{name: "fractional usd", value: "12.5", decimals: USDDecimals, want: "12500000"},
		{name: "full precision usd", value: "0.000001", decimals: USDDecimals, want: "1"},
		{name: "zero", value: "0", decimals: USDDecimals, want: "0"},
		{name: "wrapped 18 dec", value: "1.5", decimals: WrappedDecimals, want: "1500000000000000000"},
		{name: "too many decimals", value: "0.0000001", decimals: USDDecimals, wantErr: true},
		{name: "negative", value: "-1", decimals: USDDecimals, wantErr: true},
		{name: "not a number", value: "abc", decimals: USDDecimals, wantErr: true},
		{name: "empty", value: "", decimals: USDDecimals, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBaseUnits(tt.value, tt.decimals)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestFromBaseUnits(t *testing.T) {
	v, ok := new(big.Int).SetString("12500000", 10)
	require.True(t, ok)
	assert.Equal(t, "12.5", FromBaseUnits(v, USDDecimals))

	w, ok := new(big.Int).SetString("1500000000000000000", 10)
	require.True(t, ok)
	assert.Equal(t, "1.5", FromBaseUnits(w, WrappedDecimals))

	assert.Equal(t, "0", FromBaseUnits(nil, USDDecimals))
	assert.Equal(t, "0", FromBaseUnits(big.NewInt(0), USDDecimals))
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"0.000001", "1", "123456.789", "999999.999999"} {
		base, err := ToBaseUnits(s, USDDecimals)
		require.NoError(t, err)
		assert.Equal(t, s, FromBaseUnits(base, USDDecimals))
	}
}

func TestMulPrice(t *testing.T) {
	// 2.50 USD per credit, 40 credits => 100 USD
	price := big.NewInt(2_500_000)
	got := MulPrice(price, big.NewInt(40))
	assert.Equal(t, "100000000", got.String())
}
