package amm

import (
	"context"
	"errors"
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

// ErrPoolNotFound is returned when the factory has no pair for a token pair
var ErrPoolNotFound = errors.New("pool not found")

// Pool is a snapshot of one factory pair
type Pool struct {
	Address  common.Address `json:"address"`
	Token0   common.Address `json:"token0"`
	Token1   common.Address `json:"token1"`
	Reserve0 *big.Int       `json:"reserve0"`
	Reserve1 *big.Int       `json:"reserve1"`
}

// Quote is the result of pricing a swap against current reserves
type Quote struct {
	TokenIn      common.Address `json:"token_in"`
	TokenOut     common.Address `json:"token_out"`
	AmountIn     *big.Int       `json:"amount_in"`
	AmountOut    *big.Int       `json:"amount_out"`
	MinAmountOut *big.Int       `json:"min_amount_out"`
	SlippageBps  uint16         `json:"slippage_bps"`
	PriceImpact  float64        `json:"price_impact"`
	ReserveIn    *big.Int       `json:"reserve_in"`
	ReserveOut   *big.Int       `json:"reserve_out"`
	QuotedAt     time.Time      `json:"quoted_at"`
}

// Service reads pools and reserves from the AMM factory
type Service struct {
	factory *contracts.Contract
	rpc     *ethrpc.Client
	logger  *logrus.Logger

	concurrency int
}

func NewService(book *contracts.AddressBook, rpc *ethrpc.Client, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		factory:     contracts.Bind(contracts.AMMFactoryABI, book.AMMFactory, rpc),
		rpc:         rpc,
		logger:      logger,
		concurrency: 8,
	}
}

// PairFor resolves the pair address for two tokens. The factory returns the
// zero address when no pair has been created.
func (s *Service) PairFor(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	vals, err := s.factory.Call(ctx, "getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	pair, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected getPair result type %T", vals[0])
	}
	if pair == (common.Address{}) {
		return common.Address{}, ErrPoolNotFound
	}
	return pair, nil
}

// PoolAt reads the tokens and reserves of a deployed pair
func (s *Service) PoolAt(ctx context.Context, pair common.Address) (*Pool, error) {
	c := contracts.Bind(contracts.PairABI, pair, s.rpc)

	t0, err := c.Call(ctx, "token0")
	if err != nil {
		return nil, err
	}
	t1, err := c.Call(ctx, "token1")
	if err != nil {
		return nil, err
	}
	reserves, err := c.Call(ctx, "getReserves")
	if err != nil {
		return nil, err
	}

	r0, ok0 := reserves[0].(*big.Int)
	r1, ok1 := reserves[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, fmt.Errorf("unexpected getReserves result types %T, %T", reserves[0], reserves[1])
	}

	return &Pool{
		Address:  pair,
		Token0:   t0[0].(common.Address),
		Token1:   t1[0].(common.Address),
		Reserve0: r0,
		Reserve1: r1,
	}, nil
}

// ReservesFor returns reserves oriented as (reserveIn, reserveOut) for a swap
// from tokenIn to tokenOut
func (s *Service) ReservesFor(ctx context.Context, tokenIn, tokenOut common.Address) (*big.Int, *big.Int, error) {
	pair, err := s.PairFor(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, nil, err
	}
	pool, err := s.PoolAt(ctx, pair)
	if err != nil {
		return nil, nil, err
	}
	if pool.Token0 == tokenIn {
		return pool.Reserve0, pool.Reserve1, nil
	}
	return pool.Reserve1, pool.Reserve0, nil
}

// ListPools enumerates every factory pair and snapshots its reserves. Pair
// reads run concurrently; a pair that fails to load is skipped with a warning.
func (s *Service) ListPools(ctx context.Context) ([]*Pool, error) {
	vals, err := s.factory.Call(ctx, "allPairsLength")
	if err != nil {
		return nil, fmt.Errorf("read pool count: %w", err)
	}
	count, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allPairsLength result type %T", vals[0])
	}

	n := int(count.Int64())
	pools := make([]*Pool, 0, n)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			vals, err := s.factory.Call(gctx, "allPairs", big.NewInt(int64(i)))
			if err != nil {
				s.logger.WithError(err).WithField("index", i).Warn("skipping unreadable pair index")
				return nil
			}
			pair := vals[0].(common.Address)

			pool, err := s.PoolAt(gctx, pair)
			if err != nil {
				s.logger.WithError(err).WithField("pair", pair.Hex()).Warn("skipping unreadable pair")
				return nil
			}

			mu.Lock()
			pools = append(pools, pool)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(pools, func(i, j int) bool {
		return pools[i].Address.Hex() < pools[j].Address.Hex()
	})
	return pools, nil
}

// GetQuote prices a swap against live reserves and applies the slippage
// tolerance to produce the on-chain minimum output.
func (s *Service) GetQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, slippageBps uint16) (*Quote, error) {
	reserveIn, reserveOut, err := s.ReservesFor(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}

	amountOut, err := QuoteOutput(amountIn, reserveIn, reserveOut)
	if err != nil {
		if errors.Is(err, ErrNoLiquidity) {
			return nil, ErrPoolNotFound
		}
		return nil, err
	}

	return &Quote{
		TokenIn:      tokenIn,
		TokenOut:     tokenOut,
		AmountIn:     amountIn,
		AmountOut:    amountOut,
		MinAmountOut: ApplySlippage(amountOut, slippageBps),
		SlippageBps:  slippageBps,
		PriceImpact:  PriceImpact(amountIn, amountOut, reserveIn, reserveOut),
		ReserveIn:    reserveIn,
		ReserveOut:   reserveOut,
		QuotedAt:     time.Now().UTC(),
	}, nil
}
