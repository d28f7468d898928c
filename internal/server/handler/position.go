package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cinafi/leverbot/internal/domain"
	"github.com/cinafi/leverbot/internal/service"
)

// PositionOrchestrator is the slice of the position service the handler uses.
type PositionOrchestrator interface {
	Open(ctx context.Context, req service.OpenRequest) (domain.Action, error)
	OpenLeveraged(ctx context.Context, req service.OpenLeveragedRequest) (domain.Action, error)
	Operate(ctx context.Context, req service.OperateRequest) (domain.Action, error)
	ListPositions(ctx context.Context, user string) ([]domain.CachedPosition, error)
	RefreshPosition(ctx context.Context, user string, pool string, id uint64) (domain.CachedPosition, error)
}

// PositionHandler serves the position endpoints.
type PositionHandler struct {
	positions PositionOrchestrator
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions PositionOrchestrator, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{positions: positions, logger: logger}
}

// ListPositions returns the wallet's positions, cache first with on-chain
// discovery fallback.
// GET /api/positions?wallet=0x...
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet query parameter required", "invalid_input")
		return
	}

	positions, err := h.positions.ListPositions(r.Context(), wallet)
	if err != nil {
		h.logger.Error("list positions failed", "wallet", wallet, "err", err)
		writeDomainError(w, err)
		return
	}
	if positions == nil {
		positions = []domain.CachedPosition{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}

// Open opens a plain position against the pool manager.
// POST /api/positions/open
func (h *PositionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req service.OpenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_input")
		return
	}

	action, err := h.positions.Open(r.Context(), req)
	if err != nil {
		h.logger.Error("open failed", "request_id", req.RequestID, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, action)
}

// OpenLeveraged opens a leveraged position through the router.
// POST /api/positions/open-leveraged
func (h *PositionHandler) OpenLeveraged(w http.ResponseWriter, r *http.Request) {
	var req service.OpenLeveragedRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_input")
		return
	}

	action, err := h.positions.OpenLeveraged(r.Context(), req)
	if err != nil {
		h.logger.Error("leveraged open failed", "request_id", req.RequestID, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, action)
}

// Operate applies signed collateral and debt deltas to an existing position.
// POST /api/positions/operate
func (h *PositionHandler) Operate(w http.ResponseWriter, r *http.Request) {
	var req service.OperateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_input")
		return
	}

	action, err := h.positions.Operate(r.Context(), req)
	if err != nil {
		h.logger.Error("operate failed", "request_id", req.RequestID, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, action)
}

// Refresh re-reads one position from the chain and upserts it into the cache.
// POST /api/positions/{id}/refresh?wallet=0x...&pool=0x...
func (h *PositionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "position id must be a positive integer", "invalid_input")
		return
	}
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet query parameter required", "invalid_input")
		return
	}

	p, err := h.positions.RefreshPosition(r.Context(), wallet, r.URL.Query().Get("pool"), id)
	if err != nil {
		h.logger.Error("refresh position failed", "wallet", wallet, "id", id, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
