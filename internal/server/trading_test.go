package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greendex-labs/greendex-gateway/internal/amm"
	"github.com/greendex-labs/greendex-gateway/internal/engine"
	"github.com/greendex-labs/greendex-gateway/internal/ethrpc"
)

func testContext(t *testing.T) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/swap", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// revertData encodes an Error(string) payload the way a node reports it.
func revertData(t *testing.T, reason string) json.RawMessage {
	t.Helper()
	typ, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: typ}}.Pack(reason)
	require.NoError(t, err)
	data := append(hexutil.MustDecode("0x08c379a0"), packed...)
	return json.RawMessage(fmt.Sprintf("%q", hexutil.Encode(data)))
}

func TestEngineErr_RevertReasonPassedThrough(t *testing.T) {
	h := &Handlers{Logger: logrus.New()}

	rpcErr := &ethrpc.RPCError{
		Code: 3,
		Data: revertData(t, "Orderbook: order expired"),
	}
	c, rec := testContext(t)

	require.NoError(t, h.engineErr(c, fmt.Errorf("fill order: %w", rpcErr)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "Orderbook: order expired", resp.Error)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestEngineErr_RPCErrorWithoutRevertData(t *testing.T) {
	h := &Handlers{Logger: logrus.New()}

	rpcErr := &ethrpc.RPCError{Code: -32000, Message: "nonce too low"}
	c, rec := testContext(t)

	require.NoError(t, h.engineErr(c, fmt.Errorf("swap: %w", rpcErr)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "transaction failed", decodeError(t, rec).Error)
}

func TestEngineErr_SentinelStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"in flight", engine.ErrActionInFlight, http.StatusConflict},
		{"order not found", engine.ErrOrderNotFound, http.StatusNotFound},
		{"no wrapper", engine.ErrNoWrapper, http.StatusNotFound},
		{"pool not found", amm.ErrPoolNotFound, http.StatusNotFound},
		{"insufficient balance", engine.ErrInsufficientBalance, http.StatusBadRequest},
		{"insufficient allowance", engine.ErrInsufficientAllowance, http.StatusBadRequest},
		{"credit frozen", engine.ErrCreditFrozen, http.StatusBadRequest},
		{"credit revoked", engine.ErrCreditRevoked, http.StatusBadRequest},
		{"order inactive", engine.ErrOrderInactive, http.StatusBadRequest},
		{"wrapper exists", engine.ErrWrapperExists, http.StatusBadRequest},
		{"unknown failure", fmt.Errorf("rpc connection refused"), http.StatusBadGateway},
	}

	h := &Handlers{Logger: logrus.New()}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := testContext(t)
			require.NoError(t, h.engineErr(c, fmt.Errorf("op: %w", tc.err)))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
