package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/greendex-labs/greendex-gateway/internal/ethrpc"
)

type WalletConfig struct {
	RPCURL       string
	ChainID      int64
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	PrivateKey string // hex-encoded secp256k1 key, 0x prefix optional

	GasLimitCap uint64 // upper bound applied to gas estimates
}

type Wallet struct {
	cfg     WalletConfig
	rpc     *ethrpc.Client
	priv    *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

func NewWallet(cfg WalletConfig) (*Wallet, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("wallet: RPCURL is required")
	}
	if cfg.ChainID <= 0 {
		return nil, fmt.Errorf("wallet: ChainID is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 1 * time.Second
	}
	if cfg.GasLimitCap == 0 {
		cfg.GasLimitCap = 5_000_000
	}
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, fmt.Errorf("wallet: PrivateKey is required")
	}

	priv, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	rpcClient := ethrpc.NewClient(ethrpc.ClientConfig{
		BaseURL:      cfg.RPCURL,
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	})

	return &Wallet{
		cfg:     cfg,
		rpc:     rpcClient,
		priv:    priv,
		address: crypto.PubkeyToAddress(priv.PublicKey),
		chainID: big.NewInt(cfg.ChainID),
	}, nil
}

func NewWalletFromEnv() (*Wallet, error) {
	chainID, _ := strconv.ParseInt(os.Getenv("CHAIN_ID"), 10, 64)
	cfg := WalletConfig{
		RPCURL:     os.Getenv("EVM_RPC_URL"),
		ChainID:    chainID,
		PrivateKey: os.Getenv("OPERATOR_PRIVATE_KEY"),
	}
	return NewWallet(cfg)
}

func (w *Wallet) Address() common.Address { return w.address }
func (w *Wallet) ChainID() *big.Int       { return new(big.Int).Set(w.chainID) }
func (w *Wallet) RPC() *ethrpc.Client     { return w.rpc }
func (w *Wallet) Close() error            { return nil }

func parsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0x")

	priv, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid hex private key: %w", err)
	}
	return priv, nil
}
