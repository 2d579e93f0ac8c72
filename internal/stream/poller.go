package stream

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/greendex-labs/greendex-gateway/internal/amm"
	"github.com/greendex-labs/greendex-gateway/internal/contracts"
	"github.com/greendex-labs/greendex-gateway/internal/ethrpc"
	"github.com/greendex-labs/greendex-gateway/internal/models"
	"github.com/greendex-labs/greendex-gateway/internal/orderbook"
	"github.com/greendex-labs/greendex-gateway/internal/storage"
	"github.com/greendex-labs/greendex-gateway/internal/units"
)

// Poller snapshots pool reserves and the order book on an interval and turns
// state deltas into trade events. A reserve move on a pair is reported as a
// swap; a filled-quantity move on an order is reported as an order fill.
type Poller struct {
	amm      *amm.Service
	scanner  *orderbook.Scanner
	rpc      *ethrpc.Client
	book     *contracts.AddressBook
	cache    storage.TradeCache
	interval time.Duration
	logger   *logrus.Logger

	mu         sync.RWMutex
	running    bool
	handler    storage.TradeHandler
	lastPools  map[common.Address]*amm.Pool
	lastFilled map[uint64]*big.Int
	symbols    map[common.Address]string
	decimals   map[common.Address]int32
}

// PollerConfig holds configuration for the market poller
type PollerConfig struct {
	AMM          *amm.Service
	Scanner      *orderbook.Scanner
	RPC          *ethrpc.Client
	Book         *contracts.AddressBook
	Cache        storage.TradeCache // optional, for spot price updates
	PollInterval time.Duration
	Logger       *logrus.Logger
}

// NewPoller creates a new market poller
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}

	return &Poller{
		amm:        cfg.AMM,
		scanner:    cfg.Scanner,
		rpc:        cfg.RPC,
		book:       cfg.Book,
		cache:      cfg.Cache,
		interval:   cfg.PollInterval,
		logger:     cfg.Logger,
		lastPools:  make(map[common.Address]*amm.Pool),
		lastFilled: make(map[uint64]*big.Int),
		symbols:    make(map[common.Address]string),
		decimals:   make(map[common.Address]int32),
	}
}

// Start begins polling for market events
func (p *Poller) Start(ctx context.Context, handler storage.TradeHandler) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	p.running = true
	p.handler = handler
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.WithField("interval", p.interval).Info("starting market polling")

	// First cycle establishes the baseline without emitting events.
	if err := p.poll(ctx, nil); err != nil {
		p.logger.WithError(err).Warn("baseline poll failed")
	}

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
			return ctx.Err()

		case <-ticker.C:
			if err := p.poll(ctx, handler); err != nil {
				p.logger.WithError(err).Error("poll error")
			}
		}
	}
}

// Refresh forces an immediate snapshot cycle, used after a confirmed
// transaction so cached prices and trades catch up without waiting a tick
func (p *Poller) Refresh(ctx context.Context) {
	p.mu.RLock()
	handler := p.handler
	p.mu.RUnlock()

	if err := p.poll(ctx, handler); err != nil {
		p.logger.WithError(err).Warn("refresh poll failed")
	}
}

// Stop stops the poller
func (p *Poller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	return nil
}

// poll snapshots the chain and emits deltas since the previous cycle
func (p *Poller) poll(ctx context.Context, handler storage.TradeHandler) error {
	block, err := p.rpc.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to get block number: %w", err)
	}

	if err := p.pollPools(ctx, block, handler); err != nil {
		p.logger.WithError(err).Error("pool poll failed")
	}
	if err := p.pollOrderBook(ctx, block, handler); err != nil {
		p.logger.WithError(err).Error("order book poll failed")
	}
	return nil
}

func (p *Poller) pollPools(ctx context.Context, block uint64, handler storage.TradeHandler) error {
	pools, err := p.amm.ListPools(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, pool := range pools {
		p.publishSpotPrice(ctx, pool)

		p.mu.RLock()
		prev := p.lastPools[pool.Address]
		p.mu.RUnlock()

		if prev != nil && handler != nil {
			if trade := p.diffReserves(prev, pool, block, now); trade != nil {
				p.logger.WithFields(logrus.Fields{
					"pair":       trade.Pair,
					"amount_in":  fmt.Sprintf("%.4f %s", trade.AmountIn, trade.TokenIn),
					"amount_out": fmt.Sprintf("%.4f %s", trade.AmountOut, trade.TokenOut),
					"price":      fmt.Sprintf("%.4f", trade.Price),
				}).Info("observed pool swap")
				handler(trade)
			}
		}

		p.mu.Lock()
		p.lastPools[pool.Address] = pool
		p.mu.Unlock()
	}
	return nil
}

// diffReserves interprets a reserve delta as one net swap. Same-direction
// moves on both sides mean liquidity was added or removed, not traded.
func (p *Poller) diffReserves(prev, cur *amm.Pool, block uint64, now time.Time) *models.TradeEvent {
	d0 := new(big.Int).Sub(cur.Reserve0, prev.Reserve0)
	d1 := new(big.Int).Sub(cur.Reserve1, prev.Reserve1)
	if d0.Sign() == 0 || d1.Sign() == 0 || d0.Sign() == d1.Sign() {
		return nil
	}

	var tokenIn, tokenOut common.Address
	var amountIn, amountOut *big.Int
	if d0.Sign() > 0 {
		tokenIn, amountIn = cur.Token0, d0
		tokenOut, amountOut = cur.Token1, new(big.Int).Neg(d1)
	} else {
		tokenIn, amountIn = cur.Token1, d1
		tokenOut, amountOut = cur.Token0, new(big.Int).Neg(d0)
	}

	inSym, outSym := p.symbolFor(tokenIn), p.symbolFor(tokenOut)
	in := p.toFloat(tokenIn, amountIn)
	out := p.toFloat(tokenOut, amountOut)
	if in == 0 || out == 0 {
		return nil
	}

	return &models.TradeEvent{
		TxHash:    fmt.Sprintf("amm:%s:%d", cur.Address.Hex(), block),
		Timestamp: now,
		Pair:      fmt.Sprintf("%s/%s", inSym, outSym),
		TokenIn:   inSym,
		TokenOut:  outSym,
		AmountIn:  in,
		AmountOut: out,
		Price:     out / in,
		Pool:      cur.Address.Hex(),
		Venue:     "amm",
	}
}

// publishSpotPrice derives the USD price of the pool's non-USD side from
// current reserves and writes it to the cache.
func (p *Poller) publishSpotPrice(ctx context.Context, pool *amm.Pool) {
	if p.cache == nil {
		return
	}

	var usdReserve, tokenReserve *big.Int
	var token common.Address
	switch {
	case pool.Token0 == p.book.USDC:
		usdReserve, tokenReserve, token = pool.Reserve0, pool.Reserve1, pool.Token1
	case pool.Token1 == p.book.USDC:
		usdReserve, tokenReserve, token = pool.Reserve1, pool.Reserve0, pool.Token0
	default:
		return
	}

	tokens := p.toFloat(token, tokenReserve)
	if tokens == 0 {
		return
	}
	price := p.toFloat(p.book.USDC, usdReserve) / tokens

	if err := p.cache.UpdatePrice(ctx, p.symbolFor(token), price); err != nil {
		p.logger.WithError(err).Warn("failed to update spot price")
	}
}

func (p *Poller) pollOrderBook(ctx context.Context, block uint64, handler storage.TradeHandler) error {
	book, err := p.scanner.Scan(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	all := make([]*orderbook.Order, 0, len(book.Buys)+len(book.Sells)+len(book.Completed))
	all = append(all, book.Buys...)
	all = append(all, book.Sells...)
	all = append(all, book.Completed...)

	for _, o := range all {
		if o.Filled == nil {
			continue
		}

		p.mu.RLock()
		prev := p.lastFilled[o.ID]
		p.mu.RUnlock()

		if prev != nil && handler != nil {
			delta := new(big.Int).Sub(o.Filled, prev)
			if delta.Sign() > 0 {
				trade := p.fillTrade(o, delta, block, now)
				p.logger.WithFields(logrus.Fields{
					"order":  o.ID,
					"pair":   trade.Pair,
					"amount": trade.AmountIn,
					"price":  trade.Price,
				}).Info("observed order fill")
				handler(trade)
			}
		}

		p.mu.Lock()
		p.lastFilled[o.ID] = new(big.Int).Set(o.Filled)
		p.mu.Unlock()
	}
	return nil
}

// fillTrade reports a fill from the taker's perspective: filling a buy order
// sells credits for USD, filling a sell order buys credits with USD.
func (p *Poller) fillTrade(o *orderbook.Order, delta *big.Int, block uint64, now time.Time) *models.TradeEvent {
	credit := "CREDIT-" + o.TokenID.String()
	filled, _ := strconv.ParseFloat(delta.String(), 64)
	value := p.toFloat(p.book.USDC, o.FillValue(delta))
	price := p.toFloat(p.book.USDC, o.Price)

	trade := &models.TradeEvent{
		TxHash:    fmt.Sprintf("orderbook:%d:%d", o.ID, block),
		Timestamp: now,
		Price:     price,
		Pool:      p.book.Orderbook.Hex(),
		Venue:     "orderbook",
	}
	if o.IsBuy {
		trade.Pair = fmt.Sprintf("%s/USDC", credit)
		trade.TokenIn, trade.AmountIn = credit, filled
		trade.TokenOut, trade.AmountOut = "USDC", value
	} else {
		trade.Pair = fmt.Sprintf("USDC/%s", credit)
		trade.TokenIn, trade.AmountIn = "USDC", value
		trade.TokenOut, trade.AmountOut = credit, filled
	}
	return trade
}

// symbolFor resolves and caches an ERC-20 symbol, falling back to a
// shortened address when the call fails.
func (p *Poller) symbolFor(token common.Address) string {
	p.mu.RLock()
	sym, ok := p.symbols[token]
	p.mu.RUnlock()
	if ok {
		return sym
	}

	sym = shortAddress(token)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := contracts.Bind(contracts.ERC20ABI, token, p.rpc)
	if vals, err := c.Call(ctx, "symbol"); err == nil {
		if s, ok := vals[0].(string); ok && s != "" {
			sym = s
		}
	}

	p.mu.Lock()
	p.symbols[token] = sym
	p.mu.Unlock()
	return sym
}

// decimalsFor resolves and caches token decimals, defaulting to 18
func (p *Poller) decimalsFor(token common.Address) int32 {
	p.mu.RLock()
	dec, ok := p.decimals[token]
	p.mu.RUnlock()
	if ok {
		return dec
	}

	dec = units.WrappedDecimals
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := contracts.Bind(contracts.ERC20ABI, token, p.rpc)
	if vals, err := c.Call(ctx, "decimals"); err == nil {
		if d, ok := vals[0].(uint8); ok {
			dec = int32(d)
		}
	}

	p.mu.Lock()
	p.decimals[token] = dec
	p.mu.Unlock()
	return dec
}

func (p *Poller) toFloat(token common.Address, v *big.Int) float64 {
	f, _ := strconv.ParseFloat(units.FromBaseUnits(v, p.decimalsFor(token)), 64)
	return f
}

func shortAddress(a common.Address) string {
	s := a.Hex()
	return s[:6] + "..." + s[len(s)-4:]
}
