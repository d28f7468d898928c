package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cinafi/leverbot/internal/domain"
	"github.com/cinafi/leverbot/internal/service"
)

// FlashLoanExecutor is the slice of the flash loan service the handler uses.
type FlashLoanExecutor interface {
	Execute(ctx context.Context, req service.FlashLoanRequest) (domain.Action, error)
	Check(ctx context.Context, receiver, asset common.Address, amount *big.Int) (service.Preflight, error)
}

// FlashLoanHandler serves the flash loan endpoints.
type FlashLoanHandler struct {
	loans  FlashLoanExecutor
	meta   domain.ChainMeta
	logger *slog.Logger
}

// NewFlashLoanHandler creates a FlashLoanHandler.
func NewFlashLoanHandler(loans FlashLoanExecutor, meta domain.ChainMeta, logger *slog.Logger) *FlashLoanHandler {
	return &FlashLoanHandler{loans: loans, meta: meta, logger: logger}
}

// Execute runs the preflight checks and submits a flash loan.
// POST /api/flashloan
func (h *FlashLoanHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req service.FlashLoanRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_input")
		return
	}

	action, err := h.loans.Execute(r.Context(), req)
	if err != nil {
		h.logger.Error("flash loan failed", "request_id", req.RequestID, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, action)
}

type preflightRequest struct {
	Receiver string `json:"receiver"`
	Asset    string `json:"asset,omitempty"`
	Amount   string `json:"amount"`
}

// Preflight validates a flash loan without executing it, returning the fee
// and every failed check.
// POST /api/flashloan/preflight
func (h *FlashLoanHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	var req preflightRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_input")
		return
	}
	if !common.IsHexAddress(req.Receiver) {
		writeError(w, http.StatusBadRequest, "receiver is not a valid address", "invalid_input")
		return
	}

	assetSym := req.Asset
	if assetSym == "" {
		assetSym = "WBTC"
	}
	token, ok := h.meta.TokenBySymbol(assetSym)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown asset "+assetSym, "invalid_input")
		return
	}
	amount, err := domain.ParseAmount(req.Amount, token.Decimals)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	pf, err := h.loans.Check(r.Context(), common.HexToAddress(req.Receiver), common.HexToAddress(token.Address), amount)
	if err != nil {
		h.logger.Error("flash loan preflight failed", "receiver", req.Receiver, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pf)
}
