package domain

import "time"

// Flow identifies which orchestration path an action ran through.
type Flow string

const (
	FlowApprove       Flow = "approve"
	FlowOpen          Flow = "open"
	FlowOpenLeveraged Flow = "open_leveraged"
	FlowOperate       Flow = "operate"
	FlowFlashLoan     Flow = "flash_loan"
	FlowAdmin         Flow = "admin"
)

// ActionStatus tracks the lifecycle of a submitted action.
type ActionStatus string

const (
	ActionStatusSubmitted ActionStatus = "submitted"
	ActionStatusConfirmed ActionStatus = "confirmed"
	ActionStatusReverted  ActionStatus = "reverted"
	// ActionStatusPending means the receipt poll timed out; the transaction
	// may still land. It is never rolled back.
	ActionStatusPending ActionStatus = "pending_timeout"
	ActionStatusFailed  ActionStatus = "failed"
)

// Action is the persisted record of one orchestrated on-chain action. The
// RequestID is client-chosen (or server-generated) and makes retry explicit:
// re-submitting the same RequestID while an attempt is in flight is rejected
// rather than producing a second transaction.
type Action struct {
	RequestID        string       `json:"request_id"`
	Wallet           string       `json:"wallet"`
	Flow             Flow         `json:"flow"`
	Pool             string       `json:"pool,omitempty"`
	CollateralToken  string       `json:"collateral_token,omitempty"`
	CollateralAmount BigInt       `json:"collateral_amount"`
	DebtAmount       BigInt       `json:"debt_amount"`
	Leverage         float64      `json:"leverage,omitempty"`
	TxHash           string       `json:"tx_hash,omitempty"`
	Status           ActionStatus `json:"status"`
	ErrorCode        string       `json:"error_code,omitempty"`
	ErrorDetail      string       `json:"error_detail,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// TxOutcome is the classified result of waiting for a receipt.
type TxOutcome struct {
	TxHash  string       `json:"tx_hash"`
	Status  ActionStatus `json:"status"`
	GasUsed uint64       `json:"gas_used,omitempty"`
	Block   uint64       `json:"block,omitempty"`
}
