package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cinafi/leverbot/internal/domain"
)

// ActionReader is the read slice of the action store the handler uses.
type ActionReader interface {
	GetByID(ctx context.Context, requestID string) (domain.Action, error)
	ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Action, error)
}

// Retrier re-runs a failed or timed-out action under its original request ID.
type Retrier interface {
	Retry(ctx context.Context, requestID string) (domain.Action, error)
}

// ActionHandler serves the action history endpoints.
type ActionHandler struct {
	actions ActionReader
	retrier Retrier
	logger  *slog.Logger
}

// NewActionHandler creates an ActionHandler.
func NewActionHandler(actions ActionReader, retrier Retrier, logger *slog.Logger) *ActionHandler {
	return &ActionHandler{actions: actions, retrier: retrier, logger: logger}
}

// ListActions returns a wallet's action history, newest first.
// GET /api/actions?wallet=0x...&limit=50&offset=0
func (h *ActionHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet query parameter required", "invalid_input")
		return
	}

	actions, err := h.actions.ListByWallet(r.Context(), domain.NormalizeAddress(wallet), parseListOpts(r))
	if err != nil {
		h.logger.Error("list actions failed", "wallet", wallet, "err", err)
		writeDomainError(w, err)
		return
	}
	if actions == nil {
		actions = []domain.Action{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

// GetAction returns one action by request ID.
// GET /api/actions/{id}
func (h *ActionHandler) GetAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing action id", "invalid_input")
		return
	}

	action, err := h.actions.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

// RetryAction explicitly re-runs a failed, reverted or timed-out action.
// POST /api/actions/{id}/retry
func (h *ActionHandler) RetryAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing action id", "invalid_input")
		return
	}

	action, err := h.retrier.Retry(r.Context(), id)
	if err != nil {
		h.logger.Error("retry failed", "request_id", id, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}
