package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/greendex-labs/greendex-gateway/internal/contracts"
)

// erc20Allowance reads the operator's ERC-20 allowance toward a spender
func (e *Engine) erc20Allowance(ctx context.Context, token, spender common.Address) (*big.Int, error) {
	vals, err := e.backend.CallView(ctx, token, contracts.ERC20ABI, "allowance", e.backend.Operator(), spender)
	if err != nil {
		return nil, fmt.Errorf("read allowance: %w", err)
	}
	return vals[0].(*big.Int), nil
}

// erc20Balance reads the operator's ERC-20 balance
func (e *Engine) erc20Balance(ctx context.Context, token common.Address) (*big.Int, error) {
	vals, err := e.backend.CallView(ctx, token, contracts.ERC20ABI, "balanceOf", e.backend.Operator())
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	return vals[0].(*big.Int), nil
}

// creditBalance reads the operator's ERC-1155 credit balance for a token id
func (e *Engine) creditBalance(ctx context.Context, tokenID *big.Int) (*big.Int, error) {
	vals, err := e.backend.CallView(ctx, e.book.CreditToken, contracts.CreditTokenABI, "balanceOf", e.backend.Operator(), tokenID)
	if err != nil {
		return nil, fmt.Errorf("read credit balance: %w", err)
	}
	return vals[0].(*big.Int), nil
}

// requireERC20Balance fails before gas is spent if the operator cannot cover
// the amount
func (e *Engine) requireERC20Balance(ctx context.Context, token common.Address, required *big.Int) error {
	bal, err := e.erc20Balance(ctx, token)
	if err != nil {
		return err
	}
	if bal.Cmp(required) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, bal, required)
	}
	return nil
}

// requireCreditBalance checks the operator's credit holdings for a token id
func (e *Engine) requireCreditBalance(ctx context.Context, tokenID, required *big.Int) error {
	bal, err := e.creditBalance(ctx, tokenID)
	if err != nil {
		return err
	}
	if bal.Cmp(required) < 0 {
		return fmt.Errorf("%w: have %s credits of token %s, need %s", ErrInsufficientBalance, bal, tokenID, required)
	}
	return nil
}

// requireCreditUsable rejects frozen or revoked credits before any transfer
// path touches them
func (e *Engine) requireCreditUsable(ctx context.Context, tokenID *big.Int) error {
	frozen, err := e.backend.CallView(ctx, e.book.CreditToken, contracts.CreditTokenABI, "isUserTokenFrozen", e.backend.Operator(), tokenID)
	if err != nil {
		return fmt.Errorf("read frozen state: %w", err)
	}
	if frozen[0].(bool) {
		return ErrCreditFrozen
	}

	revoked, err := e.backend.CallView(ctx, e.book.CreditToken, contracts.CreditTokenABI, "isRevoked", tokenID)
	if err != nil {
		return fmt.Errorf("read revoked state: %w", err)
	}
	if revoked[0].(bool) {
		return ErrCreditRevoked
	}
	return nil
}

// ensureERC20Approval grants the spender at least the required allowance.
// When the current allowance already covers it, no transaction is sent.
func (e *Engine) ensureERC20Approval(ctx context.Context, token, spender common.Address, required *big.Int) (*common.Hash, error) {
	current, err := e.erc20Allowance(ctx, token, spender)
	if err != nil {
		return nil, err
	}
	if current.Cmp(required) >= 0 {
		return nil, nil
	}

	e.logger.WithFields(map[string]interface{}{
		"token":   token.Hex(),
		"spender": spender.Hex(),
		"amount":  required.String(),
	}).Info("submitting erc20 approval")

	// A failed approval leaves the allowance short, so the action phase
	// could only revert.
	receipt, err := e.backend.Execute(ctx, token, contracts.ERC20ABI, "approve", spender, required)
	if err != nil {
		return nil, fmt.Errorf("%w: approve failed: %w", ErrInsufficientAllowance, err)
	}
	hash := receipt.TxHash
	return &hash, nil
}

// ensureOperatorApproval grants an ERC-1155 operator if not already set
func (e *Engine) ensureOperatorApproval(ctx context.Context, operator common.Address) (*common.Hash, error) {
	vals, err := e.backend.CallView(ctx, e.book.CreditToken, contracts.CreditTokenABI, "isApprovedForAll", e.backend.Operator(), operator)
	if err != nil {
		return nil, fmt.Errorf("read operator approval: %w", err)
	}
	if vals[0].(bool) {
		return nil, nil
	}

	e.logger.WithField("operator", operator.Hex()).Info("submitting setApprovalForAll")

	receipt, err := e.backend.Execute(ctx, e.book.CreditToken, contracts.CreditTokenABI, "setApprovalForAll", operator, true)
	if err != nil {
		return nil, fmt.Errorf("%w: setApprovalForAll failed: %w", ErrInsufficientAllowance, err)
	}
	hash := receipt.TxHash
	return &hash, nil
}

// wrapperFor resolves the ERC-20 wrapper for a credit token id. The factory
// returns the zero address when none exists.
func (e *Engine) wrapperFor(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	vals, err := e.backend.CallView(ctx, e.book.WrapperFactory, contracts.WrapperFactoryABI, "wrapperOf", tokenID)
	if err != nil {
		return common.Address{}, fmt.Errorf("read wrapper address: %w", err)
	}
	addr := vals[0].(common.Address)
	if addr == (common.Address{}) {
		return common.Address{}, ErrNoWrapper
	}
	return addr, nil
}
