package engine

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/greendex-labs/greendex-gateway/internal/ethrpc"
	"github.com/greendex-labs/greendex-gateway/internal/wallet"
)

// Backend is the engine's view of the chain. The production implementation
// signs with the operator wallet; tests substitute a fake to count calls.
type Backend interface {
	// Operator returns the signing address
	Operator() common.Address

	// CallView performs a read-only contract call and unpacks the outputs
	CallView(ctx context.Context, target common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error)

	// Execute simulates, signs, broadcasts a state-changing call, and waits
	// for one confirmation
	Execute(ctx context.Context, target common.Address, parsed abi.ABI, method string, args ...interface{}) (*ethrpc.Receipt, error)
}

type walletBackend struct {
	wallet         *wallet.Wallet
	confirmTimeout time.Duration
}

// NewWalletBackend wraps the operator wallet as an engine Backend
func NewWalletBackend(w *wallet.Wallet, confirmTimeout time.Duration) Backend {
	if confirmTimeout <= 0 {
		confirmTimeout = 90 * time.Second
	}
	return &walletBackend{wallet: w, confirmTimeout: confirmTimeout}
}

func (b *walletBackend) Operator() common.Address {
	return b.wallet.Address()
}

func (b *walletBackend) CallView(ctx context.Context, target common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := b.wallet.RPC().CallContract(ctx, ethrpc.CallMsg{
		From: b.wallet.Address(),
		To:   target,
		Data: data,
	})
	if err != nil {
		return nil, err
	}
	return parsed.Unpack(method, out)
}

func (b *walletBackend) Execute(ctx context.Context, target common.Address, parsed abi.ABI, method string, args ...interface{}) (*ethrpc.Receipt, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	return b.wallet.SignAndSend(ctx, wallet.TxRequest{To: target, Data: data}, b.confirmTimeout)
}
