package server

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/greendex-labs/greendex-gateway/internal/amm"
	"github.com/greendex-labs/greendex-gateway/internal/engine"
	"github.com/greendex-labs/greendex-gateway/internal/ethrpc"
	"github.com/greendex-labs/greendex-gateway/internal/orderbook"
	"github.com/greendex-labs/greendex-gateway/internal/units"
)

// Write endpoints run real transactions through the operator wallet, so they
// get a generous timeout covering approval plus action confirmation.
const txHandlerTimeout = 4 * time.Minute

// engineErr maps orchestrator failures onto HTTP statuses. Revert reasons
// from simulation are passed through verbatim so callers see the contract's
// own message.
func (h *Handlers) engineErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, engine.ErrActionInFlight):
		return h.err(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, engine.ErrOrderNotFound),
		errors.Is(err, engine.ErrNoWrapper),
		errors.Is(err, amm.ErrPoolNotFound):
		return h.err(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, engine.ErrInsufficientBalance),
		errors.Is(err, engine.ErrInsufficientAllowance),
		errors.Is(err, engine.ErrCreditFrozen),
		errors.Is(err, engine.ErrCreditRevoked),
		errors.Is(err, engine.ErrOrderInactive),
		errors.Is(err, engine.ErrWrapperExists):
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}

	var rpcErr *ethrpc.RPCError
	if errors.As(err, &rpcErr) {
		if reason, ok := rpcErr.RevertReason(); ok {
			return h.err(c, http.StatusBadRequest, reason, map[string]any{"err": err.Error()})
		}
	}
	return h.err(c, http.StatusBadGateway, "transaction failed", map[string]any{"err": err.Error()})
}

// Swap executes a pool swap: quote, balance check, approval if needed, swap
func (h *Handlers) Swap(c echo.Context) error {
	var req SwapRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	tokenIn, ok := parseAddress(req.TokenIn)
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid token_in", nil)
	}
	tokenOut, ok := parseAddress(req.TokenOut)
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid token_out", nil)
	}
	amountIn, err := units.ToBaseUnits(req.AmountIn, h.decimalsFor(tokenIn))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount_in", map[string]any{"amount_in": err.Error()})
	}
	if req.SlippageBps == 0 {
		req.SlippageBps = 50
	}
	if req.SlippageBps > 10000 {
		return h.err(c, http.StatusBadRequest, "invalid slippage_bps", map[string]any{"slippage_bps": "must be 0-10000"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), txHandlerTimeout)
	defer cancel()

	res, err := h.Engine.Swap(ctx, tokenIn, tokenOut, amountIn, req.SlippageBps)
	if err != nil {
		return h.engineErr(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// LiquidityAdd supplies both sides of a pool
func (h *Handlers) LiquidityAdd(c echo.Context) error {
	var req LiquidityAddRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	tokenA, ok := parseAddress(req.TokenA)
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid token_a", nil)
	}
	tokenB, ok := parseAddress(req.TokenB)
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid token_b", nil)
	}
	amountA, err := units.ToBaseUnits(req.AmountA, h.decimalsFor(tokenA))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount_a", map[string]any{"amount_a": err.Error()})
	}
	amountB, err := units.ToBaseUnits(req.AmountB, h.decimalsFor(tokenB))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount_b", map[string]any{"amount_b": err.Error()})
	}
	if req.SlippageBps == 0 {
		req.SlippageBps = 50
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), txHandlerTimeout)
	defer cancel()

	out, err := h.Engine.AddLiquidity(ctx, tokenA, tokenB, amountA, amountB, req.SlippageBps)
	if err != nil {
		return h.engineErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// LiquidityRemove burns LP tokens back into both pool tokens
func (h *Handlers) LiquidityRemove(c echo.Context) error {
	var req LiquidityRemoveRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	tokenA, ok := parseAddress(req.TokenA)
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid token_a", nil)
	}
	tokenB, ok := parseAddress(req.TokenB)
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid token_b", nil)
	}
	liquidity, ok := parseBigInt(req.Liquidity)
	if !ok || liquidity.Sign() == 0 {
		return h.err(c, http.StatusBadRequest, "invalid liquidity", nil)
	}

	var minA, minB *big.Int
	if req.AmountAMin != "" {
		if minA, ok = parseBigInt(req.AmountAMin); !ok {
			return h.err(c, http.StatusBadRequest, "invalid amount_a_min", nil)
		}
	}
	if req.AmountBMin != "" {
		if minB, ok = parseBigInt(req.AmountBMin); !ok {
			return h.err(c, http.StatusBadRequest, "invalid amount_b_min", nil)
		}
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), txHandlerTimeout)
	defer cancel()

	out, err := h.Engine.RemoveLiquidity(ctx, tokenA, tokenB, liquidity, minA, minB)
	if err != nil {
		return h.engineErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// PlaceOrder posts a new order book entry
func (h *Handlers) PlaceOrder(c echo.Context) error {
	var req PlaceOrderRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	tokenID, ok := parseBigInt(req.TokenID)
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid token_id", nil)
	}
	price, err := units.ToBaseUnits(req.Price, units.USDDecimals)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid price", map[string]any{"price": err.Error()})
	}
	amount, ok := parseBigInt(req.Amount)
	if !ok || amount.Sign() == 0 {
		return h.err(c, http.StatusBadRequest, "invalid amount", nil)
	}
	if req.Expiration < 0 {
		return h.err(c, http.StatusBadRequest, "invalid expiration", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), txHandlerTimeout)
	defer cancel()

	out, err := h.Engine.PlaceOrder(ctx, engine.PlaceOrderParams{
		TokenID:    tokenID,
		IsBuy:      req.IsBuy,
		Price:      price,
		Amount:     amount,
		Expiration: big.NewInt(req.Expiration),
	})
	if err != nil {
		return h.engineErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func parseOrderID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// FillOrder takes the other side of an open order
func (h *Handlers) FillOrder(c echo.Context) error {
	id, ok := parseOrderID(c)
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid order id", nil)
	}

	var req FillOrderRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	amount, ok := parseBigInt(req.Amount)
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid amount", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), txHandlerTimeout)
	defer cancel()

	out, err := h.Engine.FillOrder(ctx, id, amount)
	if err != nil {
		if errors.Is(err, orderbook.ErrInvalidFill) {
			return h.err(c, http.StatusBadRequest, err.Error(), nil)
		}
		return h.engineErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// CancelOrder withdraws one of the operator's own orders
func (h *Handlers) CancelOrder(c echo.Context) error {
	id, ok := parseOrderID(c)
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid order id", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), txHandlerTimeout)
	defer cancel()

	out, err := h.Engine.CancelOrder(ctx, id)
	if err != nil {
		return h.engineErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// CreateWrapper deploys an ERC-20 wrapper for a credit token id
func (h *Handlers) CreateWrapper(c echo.Context) error {
	var req CreateWrapperRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	tokenID, ok := parseBigInt(req.TokenID)
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid token_id", nil)
	}
	if req.Name == "" || req.Symbol == "" {
		return h.err(c, http.StatusBadRequest, "name and symbol are required", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), txHandlerTimeout)
	defer cancel()

	out, err := h.Engine.CreateWrapper(ctx, tokenID, req.Name, req.Symbol)
	if err != nil {
		return h.engineErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Wrap converts whole credit units into wrapper tokens
func (h *Handlers) Wrap(c echo.Context) error {
	var req WrapRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	tokenID, ok := parseBigInt(req.TokenID)
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid token_id", nil)
	}
	amount, ok := parseBigInt(req.Amount)
	if !ok || amount.Sign() == 0 {
		return h.err(c, http.StatusBadRequest, "invalid amount", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), txHandlerTimeout)
	defer cancel()

	out, err := h.Engine.Wrap(ctx, tokenID, amount)
	if err != nil {
		return h.engineErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Unwrap burns wrapper tokens back into credits. Amounts are human decimals
// of the 18-dec wrapper token.
func (h *Handlers) Unwrap(c echo.Context) error {
	var req WrapRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	tokenID, ok := parseBigInt(req.TokenID)
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid token_id", nil)
	}
	amount, err := units.ToBaseUnits(req.Amount, units.WrappedDecimals)
	if err != nil || amount.Sign() == 0 {
		return h.err(c, http.StatusBadRequest, "invalid amount", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), txHandlerTimeout)
	defer cancel()

	out, err := h.Engine.Unwrap(ctx, tokenID, amount)
	if err != nil {
		return h.engineErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// FaucetClaim claims test USD for the operator wallet
func (h *Handlers) FaucetClaim(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), txHandlerTimeout)
	defer cancel()

	out, err := h.Engine.ClaimFaucet(ctx)
	if err != nil {
		return h.engineErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
