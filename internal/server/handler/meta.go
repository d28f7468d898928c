package handler

import (
	"net/http"

	"github.com/cinafi/leverbot/internal/domain"
)

// MetaHandler serves the immutable chain description so clients can render
// token amounts and link transactions without hardcoding the deployment.
type MetaHandler struct {
	meta   domain.ChainMeta
	wallet string
	mode   string
}

// NewMetaHandler creates a MetaHandler. wallet may be empty in read-only
// deployments.
func NewMetaHandler(meta domain.ChainMeta, wallet, mode string) *MetaHandler {
	return &MetaHandler{meta: meta, wallet: wallet, mode: mode}
}

// GetMeta returns the chain metadata, configured wallet and run mode.
// GET /api/meta
func (h *MetaHandler) GetMeta(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"chain":  h.meta,
		"wallet": h.wallet,
		"mode":   h.mode,
	})
}
