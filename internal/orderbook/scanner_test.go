package orderbook

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	nextID  uint64
	orders  map[uint64]*Order
	failIDs map[uint64]bool
}

func (f *fakeReader) NextOrderID(ctx context.Context) (uint64, error) {
	return f.nextID, nil
}

func (f *fakeReader) OrderAt(ctx context.Context, id uint64) (*Order, error) {
	if f.failIDs[id] {
		return nil, fmt.Errorf("rpc timeout fetching order %d", id)
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("no such order %d", id)
	}
	return o, nil
}

func makeOrder(id uint64, isBuy bool, amount, filled int64, active bool) *Order {
	return &Order{
		ID:           id,
		Maker:        common.HexToAddress("0x1111111111111111111111111111111111111111"),
		TokenID:      big.NewInt(1),
		IsBuy:        isBuy,
		Price:        big.NewInt(2_500_000),
		Amount:       big.NewInt(amount),
		Filled:       big.NewInt(filled),
		Expiration:   big.NewInt(0),
		MinAmountOut: big.NewInt(0),
		Active:       active,
	}
}

func TestScanner_Partition(t *testing.T) {
	reader := &fakeReader{
		nextID: 6,
		orders: map[uint64]*Order{
			1: makeOrder(1, true, 100, 0, true),    // active buy
			2: makeOrder(2, false, 50, 10, true),   // active sell
			3: makeOrder(3, true, 30, 30, false),   // fully filled
			4: makeOrder(4, false, 20, 5, false),   // cancelled
			5: makeOrder(5, true, 10, 0, true),     // active buy
		},
	}

	s := NewScanner(reader, 500, 4, nil)
	book, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, book.Buys, 2)
	require.Len(t, book.Sells, 1)
	require.Len(t, book.Completed, 2)
	assert.Equal(t, uint64(6), book.NextID)

	// Descending by id within each partition.
	assert.Equal(t, uint64(5), book.Buys[0].ID)
	assert.Equal(t, uint64(1), book.Buys[1].ID)
	assert.Equal(t, uint64(2), book.Sells[0].ID)
	assert.Equal(t, uint64(4), book.Completed[0].ID)
	assert.Equal(t, uint64(3), book.Completed[1].ID)
}

func TestScanner_SkipsFailedOrders(t *testing.T) {
	reader := &fakeReader{
		nextID: 5,
		orders: map[uint64]*Order{
			1: makeOrder(1, true, 100, 0, true),
			2: makeOrder(2, false, 50, 0, true),
			4: makeOrder(4, true, 10, 0, true),
		},
		failIDs: map[uint64]bool{3: true},
	}

	s := NewScanner(reader, 500, 4, nil)
	book, err := s.Scan(context.Background())
	require.NoError(t, err, "a single failed id must not fail the scan")

	assert.Len(t, book.Buys, 2)
	assert.Len(t, book.Sells, 1)
	for _, o := range append(book.Buys, book.Sells...) {
		assert.NotEqual(t, uint64(3), o.ID)
	}
}

func TestScanner_Window(t *testing.T) {
	orders := make(map[uint64]*Order)
	for id := uint64(1); id < 1000; id++ {
		orders[id] = makeOrder(id, id%2 == 0, 10, 0, true)
	}
	reader := &fakeReader{nextID: 1000, orders: orders}

	s := NewScanner(reader, 500, 8, nil)
	book, err := s.Scan(context.Background())
	require.NoError(t, err)

	total := len(book.Buys) + len(book.Sells)
	assert.Equal(t, 500, total, "only the trailing window is scanned")
	for _, o := range append(book.Buys, book.Sells...) {
		assert.GreaterOrEqual(t, o.ID, uint64(500))
	}
}

func TestScanner_WindowLargerThanBook(t *testing.T) {
	reader := &fakeReader{
		nextID: 3,
		orders: map[uint64]*Order{
			1: makeOrder(1, true, 10, 0, true),
			2: makeOrder(2, false, 10, 0, true),
		},
	}

	s := NewScanner(reader, 500, 4, nil)
	book, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, book.Buys, 1)
	assert.Len(t, book.Sells, 1)
}

func TestScanner_EmptyBook(t *testing.T) {
	reader := &fakeReader{nextID: 1, orders: map[uint64]*Order{}}

	s := NewScanner(reader, 500, 4, nil)
	book, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, book.Buys)
	assert.Empty(t, book.Sells)
	assert.Empty(t, book.Completed)
}

func TestScanner_UninitializedBook(t *testing.T) {
	// A contract that has never taken an order reports nextOrderId 0,
	// below the clamped window start.
	reader := &fakeReader{nextID: 0, orders: map[uint64]*Order{}}

	s := NewScanner(reader, 500, 4, nil)
	book, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, book.Buys)
	assert.Empty(t, book.Sells)
	assert.Empty(t, book.Completed)
	assert.Equal(t, uint64(0), book.NextID)
}

func TestScanner_Idempotent(t *testing.T) {
	reader := &fakeReader{
		nextID: 8,
		orders: map[uint64]*Order{
			1: makeOrder(1, true, 100, 0, true),
			2: makeOrder(2, false, 50, 10, true),
			3: makeOrder(3, true, 30, 30, false),
			5: makeOrder(5, false, 40, 0, true),
			7: makeOrder(7, true, 20, 0, true),
		},
		failIDs: map[uint64]bool{4: true, 6: true},
	}

	s := NewScanner(reader, 500, 4, nil)

	first, err := s.Scan(context.Background())
	require.NoError(t, err)
	second, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Equal(t, len(first.Buys), len(second.Buys))
	require.Equal(t, len(first.Sells), len(second.Sells))
	require.Equal(t, len(first.Completed), len(second.Completed))
	for i := range first.Buys {
		assert.Equal(t, first.Buys[i].ID, second.Buys[i].ID)
	}
	for i := range first.Sells {
		assert.Equal(t, first.Sells[i].ID, second.Sells[i].ID)
	}
}

func TestScanner_ExpiredOrdersComplete(t *testing.T) {
	expired := makeOrder(1, true, 100, 0, true)
	expired.Expiration = big.NewInt(time.Now().Add(-time.Hour).Unix())

	open := makeOrder(2, true, 100, 0, true)
	open.Expiration = big.NewInt(time.Now().Add(time.Hour).Unix())

	reader := &fakeReader{nextID: 3, orders: map[uint64]*Order{1: expired, 2: open}}

	s := NewScanner(reader, 500, 4, nil)
	book, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, book.Buys, 1)
	assert.Equal(t, uint64(2), book.Buys[0].ID)
	require.Len(t, book.Completed, 1)
	assert.Equal(t, uint64(1), book.Completed[0].ID)
}

func TestOrder_ValidateFill(t *testing.T) {
	o := makeOrder(1, false, 100, 40, true)

	assert.Equal(t, int64(60), o.Remaining().Int64())

	// Over the remainder is rejected.
	err := o.ValidateFill(big.NewInt(70))
	assert.Error(t, err)

	// Exactly the remainder is fine.
	assert.NoError(t, o.ValidateFill(big.NewInt(60)))
	assert.NoError(t, o.ValidateFill(big.NewInt(1)))

	// Zero and negative fills are rejected.
	assert.Error(t, o.ValidateFill(big.NewInt(0)))
	assert.Error(t, o.ValidateFill(big.NewInt(-5)))
	assert.Error(t, o.ValidateFill(nil))
}

func TestOrder_FillValue(t *testing.T) {
	o := makeOrder(1, false, 100, 40, true) // price 2.50 USD
	v := o.FillValue(big.NewInt(40))
	assert.Equal(t, "100000000", v.String()) // 100 USD in 6-dec base units
}
