package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cinafi/leverbot/internal/chain"
	"github.com/cinafi/leverbot/internal/domain"
)

// AdminOperator is the slice of the admin service the handler uses.
type AdminOperator interface {
	UpdateRateProvider(ctx context.Context, token, provider common.Address) (string, error)
	UpdatePoolCapacity(ctx context.Context, pool common.Address, collateralCap, debtCap *big.Int) (string, error)
	PoolInfo(ctx context.Context, pool common.Address) (domain.PoolInfo, error)
	TokenRate(ctx context.Context, token common.Address) (chain.TokenRate, error)
}

// AdminHandler serves the role-gated setters and pool reads.
type AdminHandler struct {
	admin  AdminOperator
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admin AdminOperator, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

type rateProviderRequest struct {
	Token    string `json:"token"`
	Provider string `json:"provider"`
}

// UpdateRateProvider sets the rate provider for a token.
// POST /api/admin/rate-provider
func (h *AdminHandler) UpdateRateProvider(w http.ResponseWriter, r *http.Request) {
	var req rateProviderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_input")
		return
	}
	if !common.IsHexAddress(req.Token) || !common.IsHexAddress(req.Provider) {
		writeError(w, http.StatusBadRequest, "token and provider must be valid addresses", "invalid_input")
		return
	}

	txHash, err := h.admin.UpdateRateProvider(r.Context(),
		common.HexToAddress(req.Token), common.HexToAddress(req.Provider))
	if err != nil {
		h.logger.Error("rate provider update failed", "token", req.Token, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tx_hash": txHash})
}

type poolCapacityRequest struct {
	Pool          string `json:"pool"`
	CollateralCap string `json:"collateral_cap"`
	DebtCap       string `json:"debt_cap"`
}

// UpdatePoolCapacity sets a pool's collateral and debt caps, in wei.
// POST /api/admin/pool-capacity
func (h *AdminHandler) UpdatePoolCapacity(w http.ResponseWriter, r *http.Request) {
	var req poolCapacityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_input")
		return
	}
	if !common.IsHexAddress(req.Pool) {
		writeError(w, http.StatusBadRequest, "pool is not a valid address", "invalid_input")
		return
	}
	collateralCap, ok := new(big.Int).SetString(req.CollateralCap, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "collateral_cap is not a valid integer", "invalid_input")
		return
	}
	debtCap, ok := new(big.Int).SetString(req.DebtCap, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "debt_cap is not a valid integer", "invalid_input")
		return
	}

	txHash, err := h.admin.UpdatePoolCapacity(r.Context(), common.HexToAddress(req.Pool), collateralCap, debtCap)
	if err != nil {
		h.logger.Error("pool capacity update failed", "pool", req.Pool, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tx_hash": txHash})
}

// GetPool returns a pool's capacity and reward wiring.
// GET /api/pools/{address}
func (h *AdminHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	if !common.IsHexAddress(addr) {
		writeError(w, http.StatusBadRequest, "address is not a valid address", "invalid_input")
		return
	}

	info, err := h.admin.PoolInfo(r.Context(), common.HexToAddress(addr))
	if err != nil {
		h.logger.Error("pool info read failed", "pool", addr, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// GetTokenRate returns the rate and provider configured for a token.
// GET /api/tokens/{address}/rate
func (h *AdminHandler) GetTokenRate(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	if !common.IsHexAddress(addr) {
		writeError(w, http.StatusBadRequest, "address is not a valid address", "invalid_input")
		return
	}

	rate, err := h.admin.TokenRate(r.Context(), common.HexToAddress(addr))
	if err != nil {
		h.logger.Error("token rate read failed", "token", addr, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}
