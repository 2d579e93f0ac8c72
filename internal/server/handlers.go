package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/greendex-labs/greendex-gateway/internal/ai"
	"github.com/greendex-labs/greendex-gateway/internal/amm"
	"github.com/greendex-labs/greendex-gateway/internal/contracts"
	"github.com/greendex-labs/greendex-gateway/internal/engine"
	"github.com/greendex-labs/greendex-gateway/internal/ethrpc"
	"github.com/greendex-labs/greendex-gateway/internal/flags"
	"github.com/greendex-labs/greendex-gateway/internal/orderbook"
	"github.com/greendex-labs/greendex-gateway/internal/storage"
	"github.com/greendex-labs/greendex-gateway/internal/units"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Cache        storage.TradeCache  // Redis-backed trade data cache
	Flags        *flags.Store        // Redis-backed feature flags store
	AI           *ai.Agent           // AI agent for market questions
	AIBaseConfig ai.AgentConfig      // Base configuration for AI agents
	Engine       *engine.Engine      // Transaction orchestrator (operator wallet)
	AMM          *amm.Service        // Pool reads and quotes
	Scanner      *orderbook.Scanner  // Order book aggregation
	Book         *contracts.AddressBook
	RPC          *ethrpc.Client
	ChainID      int64
	DevMode      bool           // Enable detailed error responses in development
	Logger       *logrus.Logger // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// decimalsFor picks the display precision for a token address: the mock USD
// token runs at 6 decimals, everything else (wrappers, LP) at 18.
func (h *Handlers) decimalsFor(token common.Address) int32 {
	if token == h.Book.USDC {
		return units.USDDecimals
	}
	return units.WrappedDecimals
}

func parseAddress(s string) (common.Address, bool) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseBigInt(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true, ChainID: h.ChainID})
}

// Echo returns the received JSON payload as-is (useful for testing)
func (h *Handlers) Echo(c echo.Context) error {
	var v any
	dec := json.NewDecoder(c.Request().Body)
	if err := dec.Decode(&v); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	return c.JSON(http.StatusOK, v)
}

// Quote prices a swap against live reserves without executing anything.
// Amounts are human decimals; precision follows the input token.
func (h *Handlers) Quote(c echo.Context) error {
	tokenIn, ok := parseAddress(c.QueryParam("tokenIn"))
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid tokenIn", map[string]any{"tokenIn": "must be a hex address"})
	}
	tokenOut, ok := parseAddress(c.QueryParam("tokenOut"))
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid tokenOut", map[string]any{"tokenOut": "must be a hex address"})
	}

	amountIn, err := units.ToBaseUnits(c.QueryParam("amountIn"), h.decimalsFor(tokenIn))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amountIn", map[string]any{"amountIn": err.Error()})
	}

	slippageBps := uint16(50)
	if v := strings.TrimSpace(c.QueryParam("slippageBps")); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil || n > 10000 {
			return h.err(c, http.StatusBadRequest, "invalid slippageBps", map[string]any{"slippageBps": "must be 0-10000"})
		}
		slippageBps = uint16(n)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	quote, err := h.AMM.GetQuote(ctx, tokenIn, tokenOut, amountIn, slippageBps)
	if err != nil {
		if errors.Is(err, amm.ErrPoolNotFound) {
			return h.err(c, http.StatusNotFound, "pool not found", nil)
		}
		return h.err(c, http.StatusBadGateway, "quote failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, quote)
}

// Pools lists every factory pair with current reserves
func (h *Handlers) Pools(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	pools, err := h.AMM.ListPools(ctx)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "failed to list pools", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": pools})
}

// Orderbook returns the aggregated open order book, optionally filtered to
// one credit token id
func (h *Handlers) Orderbook(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	book, err := h.Scanner.Scan(ctx)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "failed to scan order book", map[string]any{"err": err.Error()})
	}

	if v := strings.TrimSpace(c.QueryParam("tokenId")); v != "" {
		tokenID, ok := parseBigInt(v)
		if !ok {
			return h.err(c, http.StatusBadRequest, "invalid tokenId", nil)
		}
		book.Buys = filterByToken(book.Buys, tokenID)
		book.Sells = filterByToken(book.Sells, tokenID)
		book.Completed = filterByToken(book.Completed, tokenID)
	}

	return c.JSON(http.StatusOK, book)
}

// OrderbookCompleted returns only filled, cancelled, and expired orders
func (h *Handlers) OrderbookCompleted(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	book, err := h.Scanner.Scan(ctx)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "failed to scan order book", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": book.Completed})
}

func filterByToken(orders []*orderbook.Order, tokenID *big.Int) []*orderbook.Order {
	out := make([]*orderbook.Order, 0, len(orders))
	for _, o := range orders {
		if o.TokenID != nil && o.TokenID.Cmp(tokenID) == 0 {
			out = append(out, o)
		}
	}
	return out
}

// Balances reports one address's holdings across the exchange tokens
func (h *Handlers) Balances(c echo.Context) error {
	addr, ok := parseAddress(c.Param("address"))
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid address", nil)
	}

	tokenID := big.NewInt(1)
	if v := strings.TrimSpace(c.QueryParam("tokenId")); v != "" {
		parsed, ok := parseBigInt(v)
		if !ok {
			return h.err(c, http.StatusBadRequest, "invalid tokenId", nil)
		}
		tokenID = parsed
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	native, err := h.RPC.BalanceAt(ctx, addr)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "failed to read native balance", map[string]any{"err": err.Error()})
	}

	usdc := contracts.Bind(contracts.ERC20ABI, h.Book.USDC, h.RPC)
	usdVals, err := usdc.Call(ctx, "balanceOf", addr)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "failed to read usd balance", map[string]any{"err": err.Error()})
	}

	credit := contracts.Bind(contracts.CreditTokenABI, h.Book.CreditToken, h.RPC)
	creditVals, err := credit.Call(ctx, "balanceOf", addr, tokenID)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "failed to read credit balance", map[string]any{"err": err.Error()})
	}

	// Wrapped balance is zero when no wrapper exists for the token id.
	wrapped := big.NewInt(0)
	factory := contracts.Bind(contracts.WrapperFactoryABI, h.Book.WrapperFactory, h.RPC)
	wVals, err := factory.Call(ctx, "wrapperOf", tokenID)
	if err == nil {
		if wrapperAddr := wVals[0].(common.Address); wrapperAddr != (common.Address{}) {
			wrapper := contracts.Bind(contracts.WrapperABI, wrapperAddr, h.RPC)
			balVals, err := wrapper.Call(ctx, "balanceOf", addr)
			if err == nil {
				wrapped = balVals[0].(*big.Int)
			}
		}
	}

	return c.JSON(http.StatusOK, BalancesResponse{
		Address: addr.Hex(),
		Native:  units.FromBaseUnits(native, 18),
		USD:     units.FromBaseUnits(usdVals[0].(*big.Int), units.USDDecimals),
		TokenID: tokenID.String(),
		Credits: creditVals[0].(*big.Int).String(),
		Wrapped: units.FromBaseUnits(wrapped, units.WrappedDecimals),
	})
}

// Wrappers enumerates every deployed credit wrapper
func (h *Handlers) Wrappers(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	factory := contracts.Bind(contracts.WrapperFactoryABI, h.Book.WrapperFactory, h.RPC)
	totalVals, err := factory.Call(ctx, "totalWrappers")
	if err != nil {
		return h.err(c, http.StatusBadGateway, "failed to read wrapper count", map[string]any{"err": err.Error()})
	}
	total := int(totalVals[0].(*big.Int).Int64())

	items := make([]WrapperInfo, 0, total)
	for i := 0; i < total; i++ {
		addrVals, err := factory.Call(ctx, "allWrappers", big.NewInt(int64(i)))
		if err != nil {
			h.Logger.WithError(err).WithField("index", i).Warn("skipping unreadable wrapper index")
			continue
		}
		wrapperAddr := addrVals[0].(common.Address)
		wrapper := contracts.Bind(contracts.WrapperABI, wrapperAddr, h.RPC)

		info := WrapperInfo{Address: wrapperAddr.Hex()}
		if vals, err := wrapper.Call(ctx, "tokenId"); err == nil {
			info.TokenID = vals[0].(*big.Int).String()
		}
		if vals, err := wrapper.Call(ctx, "name"); err == nil {
			info.Name = vals[0].(string)
		}
		if vals, err := wrapper.Call(ctx, "symbol"); err == nil {
			info.Symbol = vals[0].(string)
		}
		items = append(items, info)
	}

	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Faucet reports claim availability for the operator wallet
func (h *Handlers) Faucet(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	info, err := h.Engine.GetFaucetInfo(ctx)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "failed to read faucet info", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, info)
}

// RecentTrades returns the most recent trade events with optional limit parameter
// Accepts limit query parameter (default: 100, range: 1-200)
func (h *Handlers) RecentTrades(c echo.Context) error {
	limitStr := c.QueryParam("limit")
	limit := 100
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 200 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 200"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Cache.GetRecentTrades(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get trades", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Price returns the current price for a given token symbol
// Token parameter is case-insensitive and will be normalized to uppercase
func (h *Handlers) Price(c echo.Context) error {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		return h.err(c, http.StatusBadRequest, "invalid token", nil)
	}
	token = strings.ToUpper(token)

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	price, err := h.Cache.GetPrice(ctx, token)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get price", nil)
	}
	return c.JSON(http.StatusOK, PriceResponse{Token: token, Price: price})
}

// FlagsUpsert creates or updates a feature flag with the given key and value
// Validates key format and returns the created/updated flag
func (h *Handlers) FlagsUpsert(c echo.Context) error {
	var req FlagUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := flags.ValidateKey(req.Key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, req.Key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to upsert flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsUpdate updates an existing feature flag with the given key
// Validates key format and returns the updated flag
func (h *Handlers) FlagsUpdate(c echo.Context) error {
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to update flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsGet retrieves a feature flag by its key
// Returns 404 if flag doesn't exist
func (h *Handlers) FlagsGet(c echo.Context) error {
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Get(ctx, key)
	if err != nil {
		if errors.Is(err, flags.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "flag not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsList returns all feature flags in the system
func (h *Handlers) FlagsList(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list flags", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// FlagsDelete removes a feature flag by its key
// Returns 204 No Content on successful deletion
func (h *Handlers) FlagsDelete(c echo.Context) error {
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Flags.Delete(ctx, key); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete flag", nil)
	}
	return c.NoContent(http.StatusNoContent)
}

// AIAsk answers market questions using the AI agent and live exchange data.
// Gated behind the ai.enabled flag; supports a one-off model override.
func (h *Handlers) AIAsk(c echo.Context) error {
	if h.AI == nil {
		return h.err(c, http.StatusBadRequest, "ai is not configured", nil)
	}
	if h.Flags != nil && !h.Flags.Enabled(c.Request().Context(), "ai.enabled", true) {
		return h.err(c, http.StatusServiceUnavailable, "ai is disabled", nil)
	}

	var req AIAskRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return h.err(c, http.StatusBadRequest, "question is required", map[string]any{"question": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	start := time.Now()

	// Use default AI agent or create temporary one with custom model
	agent := h.AI
	if m := strings.TrimSpace(req.Model); m != "" {
		cfg := h.AIBaseConfig
		cfg.Model = m
		a, err := ai.NewAgent(ctx, cfg)
		if err != nil {
			return h.err(c, http.StatusInternalServerError, "failed to create ai agent", nil)
		}
		a.WithTools(h.aiTools()...)
		agent = a
		defer func() {
			_ = a.Close() // Clean up temporary agent
		}()
	}

	res, err := agent.Ask(ctx, req.Question)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "ai ask failed", map[string]any{"err": err.Error()})
	}

	return c.JSON(http.StatusOK, AIAskResponse{
		Answer:      res.Answer,
		HasRealData: res.HasRealData,
		ToolsUsed:   res.ToolsUsed,
		Confidence:  res.Confidence,
		TookMs:      time.Since(start).Milliseconds(),
	})
}

// aiTools builds the live data tool set handed to ad-hoc agents
func (h *Handlers) aiTools() []ai.Tool {
	var tools []ai.Tool
	if h.Scanner != nil {
		tools = append(tools, ai.OrderBookTool(h.Scanner))
	}
	if h.AMM != nil {
		tools = append(tools, ai.PoolsTool(h.AMM))
	}
	if h.Cache != nil {
		tools = append(tools, ai.RecentTradesTool(h.Cache))
	}
	return tools
}
