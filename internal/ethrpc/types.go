package ethrpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrReceiptNotFound is returned while a transaction is still pending
var ErrReceiptNotFound = errors.New("transaction receipt not found")

// RPCError represents a JSON-RPC error response
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if reason, ok := e.RevertReason(); ok {
		return fmt.Sprintf("execution reverted: %s", reason)
	}
	return e.Message
}

// RevertReason decodes an Error(string) payload from the error data, if any.
// Nodes report revert data either as a bare hex string or nested in an object.
func (e *RPCError) RevertReason() (string, bool) {
	raw := extractHexData(e.Data)
	if raw == "" {
		return "", false
	}
	data, err := hexutil.Decode(raw)
	if err != nil {
		return "", false
	}
	reason, err := abi.UnpackRevert(data)
	if err != nil {
		return "", false
	}
	return reason, true
}

func extractHexData(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil && strings.HasPrefix(s, "0x") {
		return s
	}
	var obj struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && strings.HasPrefix(obj.Data, "0x") {
		return obj.Data
	}
	return ""
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// CallMsg describes a contract call or transaction for eth_call / eth_estimateGas
type CallMsg struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
}

func (m CallMsg) toArg() map[string]interface{} {
	arg := map[string]interface{}{
		"to": m.To,
	}
	if (m.From != common.Address{}) {
		arg["from"] = m.From
	}
	if len(m.Data) > 0 {
		arg["data"] = hexutil.Encode(m.Data)
	}
	if m.Value != nil && m.Value.Sign() > 0 {
		arg["value"] = (*hexutil.Big)(m.Value)
	}
	return arg
}

// Receipt is the subset of a transaction receipt this service inspects
type Receipt struct {
	TxHash      common.Hash    `json:"transactionHash"`
	Status      hexutil.Uint64 `json:"status"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	GasUsed     hexutil.Uint64 `json:"gasUsed"`
}

// Succeeded reports whether the transaction executed without reverting
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == 1
}
