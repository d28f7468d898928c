package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cinafi/leverbot/internal/domain"
)

// Approver is the slice of the approval service the handler uses.
type Approver interface {
	EnsureApproved(ctx context.Context, token, spender common.Address, amount *big.Int) (string, error)
}

// ApproveHandler serves the standalone approval endpoint.
type ApproveHandler struct {
	approver Approver
	meta     domain.ChainMeta
	logger   *slog.Logger
}

// NewApproveHandler creates an ApproveHandler.
func NewApproveHandler(approver Approver, meta domain.ChainMeta, logger *slog.Logger) *ApproveHandler {
	return &ApproveHandler{approver: approver, meta: meta, logger: logger}
}

type approveRequest struct {
	Token   string `json:"token"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// Approve ensures an exact-amount allowance from the configured wallet to the
// spender. Responds with the approval tx hash, or skipped=true when the
// current allowance already covers the amount.
// POST /api/approve
func (h *ApproveHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_input")
		return
	}

	token, ok := h.meta.TokenBySymbol(req.Token)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown token "+req.Token, "invalid_input")
		return
	}
	if !common.IsHexAddress(req.Spender) {
		writeError(w, http.StatusBadRequest, "spender is not a valid address", "invalid_input")
		return
	}
	amount, err := domain.ParseAmount(req.Amount, token.Decimals)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	txHash, err := h.approver.EnsureApproved(r.Context(),
		common.HexToAddress(token.Address), common.HexToAddress(req.Spender), amount)
	if err != nil {
		h.logger.Error("approve failed", "token", req.Token, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tx_hash": txHash,
		"skipped": txHash == "",
	})
}
