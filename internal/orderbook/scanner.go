package orderbook

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/greendex-labs/greendex-gateway/internal/contracts"
	"github.com/greendex-labs/greendex-gateway/internal/ethrpc"
)

// Reader abstracts the order book contract so the scanner can be tested
// against a fake chain.
type Reader interface {
	NextOrderID(ctx context.Context) (uint64, error)
	OrderAt(ctx context.Context, id uint64) (*Order, error)
}

// ChainReader reads orders over JSON-RPC
type ChainReader struct {
	contract *contracts.Contract
}

func NewChainReader(book *contracts.AddressBook, rpc *ethrpc.Client) *ChainReader {
	return &ChainReader{contract: contracts.Bind(contracts.OrderbookABI, book.Orderbook, rpc)}
}

func (r *ChainReader) NextOrderID(ctx context.Context) (uint64, error) {
	vals, err := r.contract.Call(ctx, "nextOrderId")
	if err != nil {
		return 0, err
	}
	next, ok := vals[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected nextOrderId result type %T", vals[0])
	}
	return next.Uint64(), nil
}

func (r *ChainReader) OrderAt(ctx context.Context, id uint64) (*Order, error) {
	vals, err := r.contract.Call(ctx, "orders", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	if len(vals) != 9 {
		return nil, fmt.Errorf("unexpected orders result arity %d", len(vals))
	}

	active, err := r.contract.Call(ctx, "orderActive", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}

	return &Order{
		ID:           id,
		Maker:        vals[0].(common.Address),
		TokenID:      vals[1].(*big.Int),
		IsBuy:        vals[2].(bool),
		Price:        vals[3].(*big.Int),
		Amount:       vals[4].(*big.Int),
		Filled:       vals[5].(*big.Int),
		Expiration:   vals[6].(*big.Int),
		MinAmountOut: vals[7].(*big.Int),
		Referrer:     vals[8].(common.Address),
		Active:       active[0].(bool),
	}, nil
}

// Scanner aggregates a trailing window of order ids into a Book snapshot
type Scanner struct {
	reader      Reader
	window      uint64
	concurrency int
	logger      *logrus.Logger
	now         func() time.Time
}

func NewScanner(reader Reader, window int, concurrency int, logger *logrus.Logger) *Scanner {
	if window < 1 {
		window = 1
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		reader:      reader,
		window:      uint64(window),
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// Scan fetches ids [max(1, nextOrderId-window), nextOrderId) concurrently and
// partitions them. An id that fails to load is skipped, never fatal: a single
// bad order must not blank the whole book.
func (s *Scanner) Scan(ctx context.Context) (*Book, error) {
	nextID, err := s.reader.NextOrderID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read next order id: %w", err)
	}

	start := uint64(1)
	if nextID > s.window {
		start = nextID - s.window
	}

	// A fresh book reports nextOrderId 0 or 1; the scan range is then empty.
	var span uint64
	if nextID > start {
		span = nextID - start
	}

	orders := make([]*Order, 0, span)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for id := start; id < nextID; id++ {
		g.Go(func() error {
			order, err := s.reader.OrderAt(gctx, id)
			if err != nil {
				s.logger.WithError(err).WithField("order_id", id).Warn("skipping unreadable order")
				return nil
			}

			mu.Lock()
			orders = append(orders, order)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	book := &Book{
		Buys:      []*Order{},
		Sells:     []*Order{},
		Completed: []*Order{},
		NextID:    nextID,
		ScannedAt: s.now().UTC(),
	}

	now := s.now()
	for _, o := range orders {
		switch {
		case o.Active && !o.Expired(now) && o.Remaining().Sign() > 0:
			if o.IsBuy {
				book.Buys = append(book.Buys, o)
			} else {
				book.Sells = append(book.Sells, o)
			}
		case o.Amount != nil && o.Amount.Sign() > 0:
			book.Completed = append(book.Completed, o)
		}
	}

	sortByIDDesc(book.Buys)
	sortByIDDesc(book.Sells)
	sortByIDDesc(book.Completed)

	return book, nil
}

func sortByIDDesc(orders []*Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].ID > orders[j].ID
	})
}
