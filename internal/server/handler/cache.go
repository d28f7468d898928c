package handler

import (
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cinafi/leverbot/internal/domain"
)

// CacheHandler serves explicit position-cache management.
type CacheHandler struct {
	cache  domain.PositionCache
	logger *slog.Logger
}

// NewCacheHandler creates a CacheHandler.
func NewCacheHandler(cache domain.PositionCache, logger *slog.Logger) *CacheHandler {
	return &CacheHandler{cache: cache, logger: logger}
}

// ClearCache drops the wallet's cached positions. The next list request
// rebuilds them from chain discovery.
// DELETE /api/cache/{wallet}
func (h *CacheHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("wallet")
	if !common.IsHexAddress(wallet) {
		writeError(w, http.StatusBadRequest, "wallet is not a valid address", "invalid_input")
		return
	}

	if err := h.cache.ClearCachedPositions(r.Context(), wallet); err != nil {
		h.logger.Error("cache clear failed", "wallet", wallet, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "cleared",
		"wallet": domain.NormalizeAddress(wallet),
	})
}
