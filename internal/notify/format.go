package notify

import (
	"fmt"
	"strings"

	"github.com/cinafi/leverbot/internal/domain"
)

// EventForAction maps an action's flow and status to the notification event
// type used for filtering.
func EventForAction(a domain.Action) string {
	if a.Flow == domain.FlowFlashLoan && a.Status == domain.ActionStatusConfirmed {
		return "flashloan_executed"
	}
	if a.Status == domain.ActionStatusFailed {
		return "error"
	}
	return "action_" + string(a.Status)
}

// FormatAction renders an action into a notification title and body.
func FormatAction(a domain.Action) (title, message string) {
	title = fmt.Sprintf("%s %s", flowLabel(a.Flow), statusLabel(a.Status))

	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n", a.RequestID)
	if a.Wallet != "" {
		fmt.Fprintf(&b, "Wallet: %s\n", a.Wallet)
	}
	if a.CollateralToken != "" && a.CollateralAmount.Value() != nil {
		fmt.Fprintf(&b, "Amount: %s %s\n", a.CollateralAmount.Value(), a.CollateralToken)
	}
	if a.TxHash != "" {
		fmt.Fprintf(&b, "Tx: %s\n", a.TxHash)
	}
	if a.ErrorCode != "" {
		fmt.Fprintf(&b, "Error: %s", a.ErrorCode)
		if a.ErrorDetail != "" {
			fmt.Fprintf(&b, " (%s)", truncate(a.ErrorDetail, 200))
		}
	}
	return title, strings.TrimRight(b.String(), "\n")
}

func flowLabel(f domain.Flow) string {
	switch f {
	case domain.FlowApprove:
		return "Approval"
	case domain.FlowOpen:
		return "Position open"
	case domain.FlowOpenLeveraged:
		return "Leveraged open"
	case domain.FlowOperate:
		return "Position operate"
	case domain.FlowFlashLoan:
		return "Flash loan"
	case domain.FlowAdmin:
		return "Admin update"
	default:
		return string(f)
	}
}

func statusLabel(s domain.ActionStatus) string {
	switch s {
	case domain.ActionStatusSubmitted:
		return "submitted"
	case domain.ActionStatusConfirmed:
		return "confirmed"
	case domain.ActionStatusReverted:
		return "reverted"
	case domain.ActionStatusPending:
		return "awaiting receipt"
	case domain.ActionStatusFailed:
		return "failed"
	default:
		return string(s)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
