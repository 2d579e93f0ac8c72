package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/greendex-labs/greendex-gateway/internal/amm"
	"github.com/greendex-labs/greendex-gateway/internal/contracts"
	"github.com/greendex-labs/greendex-gateway/internal/ethrpc"
)

// How long a router transaction stays valid after signing
const txDeadline = 20 * time.Minute

// run wraps an operation with the in-flight guard and post-success refresh.
// Phase failures abort the remainder; nothing is retried automatically.
func (e *Engine) run(ctx context.Context, action string, fn func(context.Context) (*TxOutcome, error)) (*TxOutcome, error) {
	if !e.guard.acquire(action) {
		return nil, fmt.Errorf("%w: %s", ErrActionInFlight, action)
	}
	defer e.guard.release(action)

	start := time.Now()
	out, err := fn(ctx)
	if err != nil {
		e.logger.WithError(err).WithField("action", action).Warn("operation failed")
		return nil, err
	}

	out.Action = action
	out.Duration = time.Since(start)
	e.logger.WithFields(map[string]interface{}{
		"action":  action,
		"tx_hash": out.TxHash.Hex(),
		"block":   out.BlockNumber,
	}).Info("operation confirmed")

	e.refresh(ctx)
	return out, nil
}

func outcome(receipt *ethrpc.Receipt, approval *common.Hash) *TxOutcome {
	return &TxOutcome{
		TxHash:         receipt.TxHash,
		ApprovalTxHash: approval,
		BlockNumber:    uint64(receipt.BlockNumber),
		GasUsed:        uint64(receipt.GasUsed),
	}
}

func deadline() *big.Int {
	return big.NewInt(time.Now().Add(txDeadline).Unix())
}

// SwapResult pairs a confirmed swap with the quote it executed against
type SwapResult struct {
	*TxOutcome
	Quote *amm.Quote `json:"quote"`
}

// Swap quotes tokenIn->tokenOut against live reserves, then runs the
// approve-then-swap sequence through the router.
func (e *Engine) Swap(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, slippageBps uint16) (*SwapResult, error) {
	var quote *amm.Quote

	out, err := e.run(ctx, ActionSwap, func(ctx context.Context) (*TxOutcome, error) {
		q, err := e.amm.GetQuote(ctx, tokenIn, tokenOut, amountIn, slippageBps)
		if err != nil {
			return nil, err
		}
		quote = q

		if err := e.requireERC20Balance(ctx, tokenIn, amountIn); err != nil {
			return nil, err
		}

		approval, err := e.ensureERC20Approval(ctx, tokenIn, e.book.AMMRouter, amountIn)
		if err != nil {
			return nil, err
		}

		receipt, err := e.backend.Execute(ctx, e.book.AMMRouter, contracts.RouterABI, "swapExactTokensForTokens",
			amountIn, q.MinAmountOut, []common.Address{tokenIn, tokenOut}, e.backend.Operator(), deadline())
		if err != nil {
			return nil, err
		}
		return outcome(receipt, approval), nil
	})
	if err != nil {
		return nil, err
	}
	return &SwapResult{TxOutcome: out, Quote: quote}, nil
}

// AddLiquidity supplies both sides of a pair, approving each token first.
// Minimum amounts are derived from the slippage tolerance.
func (e *Engine) AddLiquidity(ctx context.Context, tokenA, tokenB common.Address, amountA, amountB *big.Int, slippageBps uint16) (*TxOutcome, error) {
	return e.run(ctx, ActionAddLiquidity, func(ctx context.Context) (*TxOutcome, error) {
		if err := e.requireERC20Balance(ctx, tokenA, amountA); err != nil {
			return nil, err
		}
		if err := e.requireERC20Balance(ctx, tokenB, amountB); err != nil {
			return nil, err
		}

		approvalA, err := e.ensureERC20Approval(ctx, tokenA, e.book.AMMRouter, amountA)
		if err != nil {
			return nil, err
		}
		if _, err := e.ensureERC20Approval(ctx, tokenB, e.book.AMMRouter, amountB); err != nil {
			return nil, err
		}

		receipt, err := e.backend.Execute(ctx, e.book.AMMRouter, contracts.RouterABI, "addLiquidity",
			tokenA, tokenB, amountA, amountB,
			amm.ApplySlippage(amountA, slippageBps), amm.ApplySlippage(amountB, slippageBps),
			e.backend.Operator(), deadline())
		if err != nil {
			return nil, err
		}
		return outcome(receipt, approvalA), nil
	})
}

// RemoveLiquidity burns LP tokens through the router. The pair contract is
// itself the LP ERC-20, so the approval targets the pair address.
func (e *Engine) RemoveLiquidity(ctx context.Context, tokenA, tokenB common.Address, liquidity, minA, minB *big.Int) (*TxOutcome, error) {
	return e.run(ctx, ActionRemoveLiquidity, func(ctx context.Context) (*TxOutcome, error) {
		pair, err := e.amm.PairFor(ctx, tokenA, tokenB)
		if err != nil {
			return nil, err
		}

		if err := e.requireERC20Balance(ctx, pair, liquidity); err != nil {
			return nil, err
		}

		approval, err := e.ensureERC20Approval(ctx, pair, e.book.AMMRouter, liquidity)
		if err != nil {
			return nil, err
		}

		if minA == nil {
			minA = big.NewInt(0)
		}
		if minB == nil {
			minB = big.NewInt(0)
		}

		receipt, err := e.backend.Execute(ctx, e.book.AMMRouter, contracts.RouterABI, "removeLiquidity",
			tokenA, tokenB, liquidity, minA, minB, e.backend.Operator(), deadline())
		if err != nil {
			return nil, err
		}
		return outcome(receipt, approval), nil
	})
}

// PlaceOrderParams describes a new order book entry
type PlaceOrderParams struct {
	TokenID      *big.Int
	IsBuy        bool
	Price        *big.Int // 6-dec USD per credit
	Amount       *big.Int // whole credit units
	Expiration   *big.Int // unix seconds, 0 = never
	MinAmountOut *big.Int
	Referrer     common.Address
}

// PlaceOrder posts an order. Buy orders escrow USD, so the full monetary
// value needs an allowance; sell orders escrow credits, so the book needs
// operator approval and the credits must be usable.
func (e *Engine) PlaceOrder(ctx context.Context, p PlaceOrderParams) (*TxOutcome, error) {
	return e.run(ctx, ActionPlaceOrder, func(ctx context.Context) (*TxOutcome, error) {
		if p.Amount == nil || p.Amount.Sign() < 1 {
			return nil, fmt.Errorf("order amount must be at least 1")
		}
		if p.Price == nil || p.Price.Sign() < 1 {
			return nil, fmt.Errorf("order price must be positive")
		}
		if p.Expiration == nil {
			p.Expiration = big.NewInt(0)
		}
		if p.MinAmountOut == nil {
			p.MinAmountOut = big.NewInt(0)
		}

		var approval *common.Hash
		if p.IsBuy {
			value := new(big.Int).Mul(p.Price, p.Amount)
			if err := e.requireERC20Balance(ctx, e.book.USDC, value); err != nil {
				return nil, err
			}
			a, err := e.ensureERC20Approval(ctx, e.book.USDC, e.book.Orderbook, value)
			if err != nil {
				return nil, err
			}
			approval = a
		} else {
			if err := e.requireCreditUsable(ctx, p.TokenID); err != nil {
				return nil, err
			}
			if err := e.requireCreditBalance(ctx, p.TokenID, p.Amount); err != nil {
				return nil, err
			}
			a, err := e.ensureOperatorApproval(ctx, e.book.Orderbook)
			if err != nil {
				return nil, err
			}
			approval = a
		}

		receipt, err := e.backend.Execute(ctx, e.book.Orderbook, contracts.OrderbookABI, "placeOrder",
			p.TokenID, p.IsBuy, p.Price, p.Amount, p.Expiration, p.MinAmountOut, p.Referrer)
		if err != nil {
			return nil, err
		}
		return outcome(receipt, approval), nil
	})
}

// FillOrder takes the other side of an existing order. Filling a sell order
// costs price*amount USD; filling a buy order supplies credits.
func (e *Engine) FillOrder(ctx context.Context, id uint64, amount *big.Int) (*TxOutcome, error) {
	return e.run(ctx, ActionFillOrder, func(ctx context.Context) (*TxOutcome, error) {
		order, err := e.orders.OrderAt(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
		}
		if !order.Active || order.Expired(time.Now()) {
			return nil, fmt.Errorf("%w: %d", ErrOrderInactive, id)
		}
		if err := order.ValidateFill(amount); err != nil {
			return nil, err
		}

		var approval *common.Hash
		if order.IsBuy {
			// Maker buys; we deliver credits.
			if err := e.requireCreditUsable(ctx, order.TokenID); err != nil {
				return nil, err
			}
			if err := e.requireCreditBalance(ctx, order.TokenID, amount); err != nil {
				return nil, err
			}
			a, err := e.ensureOperatorApproval(ctx, e.book.Orderbook)
			if err != nil {
				return nil, err
			}
			approval = a
		} else {
			// Maker sells; we pay exactly the fill value.
			value := order.FillValue(amount)
			if err := e.requireERC20Balance(ctx, e.book.USDC, value); err != nil {
				return nil, err
			}
			a, err := e.ensureERC20Approval(ctx, e.book.USDC, e.book.Orderbook, value)
			if err != nil {
				return nil, err
			}
			approval = a
		}

		receipt, err := e.backend.Execute(ctx, e.book.Orderbook, contracts.OrderbookABI, "fillOrder",
			new(big.Int).SetUint64(id), amount)
		if err != nil {
			return nil, err
		}
		return outcome(receipt, approval), nil
	})
}

// CancelOrder withdraws one of the operator's own orders. Ownership is
// enforced by the contract and surfaces as a revert in simulation.
func (e *Engine) CancelOrder(ctx context.Context, id uint64) (*TxOutcome, error) {
	return e.run(ctx, ActionCancelOrder, func(ctx context.Context) (*TxOutcome, error) {
		receipt, err := e.backend.Execute(ctx, e.book.Orderbook, contracts.OrderbookABI, "cancelOrder",
			new(big.Int).SetUint64(id))
		if err != nil {
			return nil, err
		}
		return outcome(receipt, nil), nil
	})
}

// Wrap converts whole credit units into their 18-decimal ERC-20 wrapper
func (e *Engine) Wrap(ctx context.Context, tokenID, amount *big.Int) (*TxOutcome, error) {
	return e.run(ctx, ActionWrap, func(ctx context.Context) (*TxOutcome, error) {
		if err := e.requireCreditUsable(ctx, tokenID); err != nil {
			return nil, err
		}
		if err := e.requireCreditBalance(ctx, tokenID, amount); err != nil {
			return nil, err
		}

		wrapper, err := e.wrapperFor(ctx, tokenID)
		if err != nil {
			return nil, err
		}

		approval, err := e.ensureOperatorApproval(ctx, wrapper)
		if err != nil {
			return nil, err
		}

		receipt, err := e.backend.Execute(ctx, wrapper, contracts.WrapperABI, "wrap", amount)
		if err != nil {
			return nil, err
		}
		return outcome(receipt, approval), nil
	})
}

// Unwrap burns wrapper tokens back into credits. The wrapper burns its own
// supply, so no approval phase is needed.
func (e *Engine) Unwrap(ctx context.Context, tokenID, amount *big.Int) (*TxOutcome, error) {
	return e.run(ctx, ActionUnwrap, func(ctx context.Context) (*TxOutcome, error) {
		wrapper, err := e.wrapperFor(ctx, tokenID)
		if err != nil {
			return nil, err
		}

		if err := e.requireERC20Balance(ctx, wrapper, amount); err != nil {
			return nil, err
		}

		receipt, err := e.backend.Execute(ctx, wrapper, contracts.WrapperABI, "unwrap", amount)
		if err != nil {
			return nil, err
		}
		return outcome(receipt, nil), nil
	})
}

// CreateWrapper deploys the ERC-20 wrapper for a credit token id. At most
// one wrapper per id.
func (e *Engine) CreateWrapper(ctx context.Context, tokenID *big.Int, name, symbol string) (*TxOutcome, error) {
	return e.run(ctx, ActionCreateWrapper, func(ctx context.Context) (*TxOutcome, error) {
		_, err := e.wrapperFor(ctx, tokenID)
		if err == nil {
			return nil, fmt.Errorf("%w: token %s", ErrWrapperExists, tokenID)
		}
		if !errors.Is(err, ErrNoWrapper) {
			return nil, err
		}

		receipt, err := e.backend.Execute(ctx, e.book.WrapperFactory, contracts.WrapperFactoryABI, "createWrapper",
			tokenID, name, symbol)
		if err != nil {
			return nil, err
		}
		return outcome(receipt, nil), nil
	})
}

// FaucetInfo reports claim availability for the operator
type FaucetInfo struct {
	Amount    *big.Int `json:"amount"`
	Cooldown  *big.Int `json:"cooldown"`
	LastClaim *big.Int `json:"last_claim"`
	CanClaim  bool     `json:"can_claim"`
}

// GetFaucetInfo reads the mock-USD faucet state for the operator
func (e *Engine) GetFaucetInfo(ctx context.Context) (*FaucetInfo, error) {
	vals, err := e.backend.CallView(ctx, e.book.USDC, contracts.FaucetABI, "getFaucetInfo", e.backend.Operator())
	if err != nil {
		return nil, fmt.Errorf("read faucet info: %w", err)
	}
	return &FaucetInfo{
		Amount:    vals[0].(*big.Int),
		Cooldown:  vals[1].(*big.Int),
		LastClaim: vals[2].(*big.Int),
		CanClaim:  vals[3].(bool),
	}, nil
}

// ClaimFaucet claims test USD, refusing locally while the cooldown is live
func (e *Engine) ClaimFaucet(ctx context.Context) (*TxOutcome, error) {
	return e.run(ctx, ActionClaimFaucet, func(ctx context.Context) (*TxOutcome, error) {
		info, err := e.GetFaucetInfo(ctx)
		if err != nil {
			return nil, err
		}
		if !info.CanClaim {
			return nil, fmt.Errorf("faucet cooldown active, last claim at %s", info.LastClaim)
		}

		receipt, err := e.backend.Execute(ctx, e.book.USDC, contracts.FaucetABI, "faucet")
		if err != nil {
			return nil, err
		}
		return outcome(receipt, nil), nil
	})
}
