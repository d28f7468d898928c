package domain

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateRequest    = errors.New("duplicate request")
	ErrWalletNotConfigured = errors.New("wallet not configured")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSigningRejected     = errors.New("signing rejected")
	ErrInsufficientGas     = errors.New("insufficient funds for gas")
	ErrContractRevert      = errors.New("contract reverted")
	ErrReceiverPrecheck    = errors.New("receiver precondition failed")
	ErrReceiptTimeout      = errors.New("receipt timeout")
	ErrNetwork             = errors.New("network error")
	ErrAccessControl       = errors.New("access control denied")
	ErrMalformedResponse   = errors.New("malformed contract response")
	ErrRateLimited         = errors.New("rate limited")
	ErrLockHeld            = errors.New("lock already held")
)

// RevertError carries the raw revert reason extracted from a failed call.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "contract reverted"
	}
	return fmt.Sprintf("contract reverted: %s", e.Reason)
}

func (e *RevertError) Is(target error) bool {
	return target == ErrContractRevert
}

// BalanceError reports a balance check failure with both figures so callers
// can show the user exactly how short they are.
type BalanceError struct {
	Token string
	Have  *big.Int
	Want  *big.Int
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: have %s, need %s", e.Token, e.Have, e.Want)
}

func (e *BalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// ErrorCode maps a domain error to its stable machine-readable code.
// Unclassified errors map to "unknown_network_error".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrWalletNotConfigured):
		return "wallet_not_connected"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrSigningRejected):
		return "user_rejected_signature"
	case errors.Is(err, ErrInsufficientGas):
		return "insufficient_gas_funds"
	case errors.Is(err, ErrAccessControl):
		return "access_control"
	case errors.Is(err, ErrContractRevert):
		return "contract_revert"
	case errors.Is(err, ErrReceiverPrecheck):
		return "receiver_precondition_failed"
	case errors.Is(err, ErrReceiptTimeout):
		return "receipt_timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate_request"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "unknown_network_error"
	}
}
