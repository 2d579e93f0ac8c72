package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/greendex-labs/greendex-gateway/internal/ethrpc"
)

// TxRequest describes a contract transaction to build and sign
type TxRequest struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64 // 0 = estimate
}

// VerifyChainID checks the node against the configured chain id. Called once
// at startup so a gateway pointed at the wrong network refuses to sign.
func (w *Wallet) VerifyChainID(ctx context.Context) error {
	remote, err := w.rpc.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	if remote.Cmp(w.chainID) != 0 {
		return fmt.Errorf("wrong network: node reports chain id %s, configured %s", remote, w.chainID)
	}
	return nil
}

// Balance returns the operator's native token balance
func (w *Wallet) Balance(ctx context.Context) (*big.Int, error) {
	return w.rpc.BalanceAt(ctx, w.address)
}

// Simulate runs the transaction as an eth_call from the operator address.
// A revert surfaces here with its reason, before any gas is spent.
func (w *Wallet) Simulate(ctx context.Context, req TxRequest) error {
	_, err := w.rpc.CallContract(ctx, ethrpc.CallMsg{
		From:  w.address,
		To:    req.To,
		Data:  req.Data,
		Value: req.Value,
	})
	return err
}

// BuildTransaction assembles an unsigned transaction with current nonce, gas
// price, and gas estimate
func (w *Wallet) BuildTransaction(ctx context.Context, req TxRequest) (*types.Transaction, error) {
	nonce, err := w.rpc.PendingNonceAt(ctx, w.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := w.rpc.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		estimate, err := w.rpc.EstimateGas(ctx, ethrpc.CallMsg{
			From:  w.address,
			To:    req.To,
			Data:  req.Data,
			Value: req.Value,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to estimate gas: %w", err)
		}
		// Headroom for state drift between estimate and inclusion.
		gasLimit = estimate + estimate/5
	}
	if gasLimit > w.cfg.GasLimitCap {
		return nil, fmt.Errorf("gas limit %d exceeds cap %d", gasLimit, w.cfg.GasLimitCap)
	}

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &req.To,
		Value:    value,
		Data:     req.Data,
	}), nil
}

// SignTx signs a transaction with the operator key
func (w *Wallet) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(w.chainID), w.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// SendTx broadcasts a signed transaction and returns its hash
func (w *Wallet) SendTx(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	hash, err := w.rpc.SendRawTransaction(ctx, raw)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sendRawTransaction failed: %w", err)
	}
	return hash, nil
}

// WaitMined polls for the transaction receipt until it is mined or the
// timeout passes. A mined-but-reverted transaction is an error.
func (w *Wallet) WaitMined(ctx context.Context, txHash common.Hash, timeout time.Duration) (*ethrpc.Receipt, error) {
	deadline := time.Now().Add(timeout)
	backoff := 500 * time.Millisecond
	maxBackoff := 4 * time.Second

	for time.Now().Before(deadline) {
		receipt, err := w.rpc.TransactionReceipt(ctx, txHash)
		if err != nil && !errors.Is(err, ethrpc.ErrReceiptNotFound) {
			return nil, fmt.Errorf("failed to check receipt: %w", err)
		}

		if receipt != nil {
			if !receipt.Succeeded() {
				return receipt, fmt.Errorf("transaction %s reverted on-chain", txHash.Hex())
			}
			return receipt, nil
		}

		// Exponential backoff
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	return nil, fmt.Errorf("transaction confirmation timeout after %v", timeout)
}

// SignAndSend builds, simulates, signs, broadcasts, and waits for one
// confirmation of a transaction
func (w *Wallet) SignAndSend(ctx context.Context, req TxRequest, confirmTimeout time.Duration) (*ethrpc.Receipt, error) {
	if err := w.Simulate(ctx, req); err != nil {
		return nil, err
	}

	tx, err := w.BuildTransaction(ctx, req)
	if err != nil {
		return nil, err
	}

	signed, err := w.SignTx(tx)
	if err != nil {
		return nil, err
	}

	hash, err := w.SendTx(ctx, signed)
	if err != nil {
		return nil, err
	}

	return w.WaitMined(ctx, hash, confirmTimeout)
}
