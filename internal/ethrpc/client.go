package ethrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
)

// Client is an HTTP client with retry and timeout support for EVM JSON-RPC
type Client struct {
	httpClient   *http.Client
	baseURL      string
	maxRetries   int
	retryBackoff time.Duration
	logger       *logrus.Logger
}

// ClientConfig holds configuration for the RPC client
type ClientConfig struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *logrus.Logger
}

// NewClient creates a new RPC client with retry support
func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:      cfg.BaseURL,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       cfg.Logger,
	}
}

// Call makes a JSON-RPC call, retrying transport failures with exponential
// backoff. RPC-level errors (reverts, bad params) are returned without retry.
func (c *Client) Call(ctx context.Context, method string, params interface{}, result interface{}) error {
	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"backoff": backoff,
				"method":  method,
			}).Debug("retrying RPC call")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2 // exponential backoff
		}

		resp, err := c.doRequest(ctx, data)
		if err != nil {
			lastErr = err
			continue
		}

		var envelope rpcResponse
		if err := json.Unmarshal(resp, &envelope); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if envelope.Error != nil {
			return envelope.Error
		}
		if result != nil {
			if err := json.Unmarshal(envelope.Result, result); err != nil {
				return fmt.Errorf("failed to unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewBuffer(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Handle rate limiting
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (429)")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

// ChainID returns the chain id reported by the node
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var out hexutil.Big
	if err := c.Call(ctx, "eth_chainId", []interface{}{}, &out); err != nil {
		return nil, err
	}
	return out.ToInt(), nil
}

// BlockNumber returns the latest block number
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var out hexutil.Uint64
	if err := c.Call(ctx, "eth_blockNumber", []interface{}{}, &out); err != nil {
		return 0, err
	}
	return uint64(out), nil
}

// CallContract performs an eth_call against the latest block and returns the
// raw return data. Reverts come back as an *RPCError carrying the revert data.
func (c *Client) CallContract(ctx context.Context, msg CallMsg) ([]byte, error) {
	var out hexutil.Bytes
	if err := c.Call(ctx, "eth_call", []interface{}{msg.toArg(), "latest"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BalanceAt returns the native token balance of an account
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	var out hexutil.Big
	if err := c.Call(ctx, "eth_getBalance", []interface{}{account, "latest"}, &out); err != nil {
		return nil, err
	}
	return out.ToInt(), nil
}

// PendingNonceAt returns the next nonce for an account including pending txs
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var out hexutil.Uint64
	if err := c.Call(ctx, "eth_getTransactionCount", []interface{}{account, "pending"}, &out); err != nil {
		return 0, err
	}
	return uint64(out), nil
}

// GasPrice returns the node's suggested gas price
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	var out hexutil.Big
	if err := c.Call(ctx, "eth_gasPrice", []interface{}{}, &out); err != nil {
		return nil, err
	}
	return out.ToInt(), nil
}

// EstimateGas estimates gas for the given message
func (c *Client) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	var out hexutil.Uint64
	if err := c.Call(ctx, "eth_estimateGas", []interface{}{msg.toArg()}, &out); err != nil {
		return 0, err
	}
	return uint64(out), nil
}

// SendRawTransaction broadcasts a signed, RLP-encoded transaction
func (c *Client) SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error) {
	var out common.Hash
	if err := c.Call(ctx, "eth_sendRawTransaction", []interface{}{hexutil.Encode(rawTx)}, &out); err != nil {
		return common.Hash{}, err
	}
	return out, nil
}

// TransactionReceipt returns the receipt for a mined transaction, or
// ErrReceiptNotFound while the transaction is still pending.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	var out *Receipt
	if err := c.Call(ctx, "eth_getTransactionReceipt", []interface{}{txHash}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrReceiptNotFound
	}
	return out, nil
}
