package orderbook

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidFill marks a fill request outside the order's open remainder
var ErrInvalidFill = errors.New("invalid fill")

// Order mirrors one entry of the on-chain order book. Prices are 6-decimal
// USD fixed point; amounts are whole credit units.
type Order struct {
	ID           uint64         `json:"id"`
	Maker        common.Address `json:"maker"`
	TokenID      *big.Int       `json:"token_id"`
	IsBuy        bool           `json:"is_buy"`
	Price        *big.Int       `json:"price"`
	Amount       *big.Int       `json:"amount"`
	Filled       *big.Int       `json:"filled"`
	Expiration   *big.Int       `json:"expiration"` // unix seconds, 0 = never
	MinAmountOut *big.Int       `json:"min_amount_out"`
	Referrer     common.Address `json:"referrer"`
	Active       bool           `json:"active"`
}

// Remaining returns the unfilled quantity. The contract maintains
// filled <= amount, so this never goes negative on honest data.
func (o *Order) Remaining() *big.Int {
	if o.Amount == nil || o.Filled == nil {
		return big.NewInt(0)
	}
	rem := new(big.Int).Sub(o.Amount, o.Filled)
	if rem.Sign() < 0 {
		return big.NewInt(0)
	}
	return rem
}

// Expired reports whether the order's expiration has passed. Zero means no
// expiration.
func (o *Order) Expired(now time.Time) bool {
	if o.Expiration == nil || o.Expiration.Sign() == 0 {
		return false
	}
	return o.Expiration.Int64() <= now.Unix()
}

// ValidateFill checks a requested fill quantity against the open remainder
func (o *Order) ValidateFill(fillAmount *big.Int) error {
	if fillAmount == nil || fillAmount.Sign() < 1 {
		return fmt.Errorf("%w: amount must be at least 1", ErrInvalidFill)
	}
	rem := o.Remaining()
	if fillAmount.Cmp(rem) > 0 {
		return fmt.Errorf("%w: amount %s exceeds remaining %s on order %d", ErrInvalidFill, fillAmount, rem, o.ID)
	}
	return nil
}

// FillValue returns the USD base-unit cost of filling fillAmount at the
// order's price. This is the exact amount a buyer must have approved.
func (o *Order) FillValue(fillAmount *big.Int) *big.Int {
	return new(big.Int).Mul(o.Price, fillAmount)
}

// Book is a partitioned snapshot of the scanned order range
type Book struct {
	Buys      []*Order `json:"buys"`
	Sells     []*Order `json:"sells"`
	Completed []*Order `json:"completed"`
	NextID    uint64   `json:"next_id"`
	ScannedAt time.Time `json:"scanned_at"`
}
