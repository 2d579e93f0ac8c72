package engine

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors callers branch on. HTTP handlers map these to status codes.
var (
	ErrActionInFlight        = errors.New("action already in flight")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrCreditFrozen          = errors.New("credit token is frozen for this account")
	ErrCreditRevoked         = errors.New("credit token has been revoked")
	ErrNoWrapper             = errors.New("no wrapper deployed for this token")
	ErrWrapperExists         = errors.New("wrapper already deployed for this token")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderInactive         = errors.New("order is not active")
)

// Action names used by the in-flight guard and surfaced in outcomes
const (
	ActionSwap            = "swap"
	ActionAddLiquidity    = "add_liquidity"
	ActionRemoveLiquidity = "remove_liquidity"
	ActionPlaceOrder      = "place_order"
	ActionFillOrder       = "fill_order"
	ActionCancelOrder     = "cancel_order"
	ActionWrap            = "wrap"
	ActionUnwrap          = "unwrap"
	ActionCreateWrapper   = "create_wrapper"
	ActionClaimFaucet     = "claim_faucet"
)

// TxOutcome reports a completed orchestration
type TxOutcome struct {
	Action         string        `json:"action"`
	TxHash         common.Hash   `json:"tx_hash"`
	ApprovalTxHash *common.Hash  `json:"approval_tx_hash,omitempty"`
	BlockNumber    uint64        `json:"block_number"`
	GasUsed        uint64        `json:"gas_used"`
	Duration       time.Duration `json:"duration"`
}
