package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cinafi/leverbot/internal/domain"
)

// writeJSON marshals v and writes it with the given status. A marshal failure
// falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error","code":"unknown_network_error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// errorResponse is the wire shape of every error the API returns.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError sends a JSON error with an explicit taxonomy code.
func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeDomainError maps a service error onto an HTTP status and its stable
// error code.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error(), domain.ErrorCode(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAccessControl):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrInsufficientGas),
		errors.Is(err, domain.ErrReceiverPrecheck),
		errors.Is(err, domain.ErrContractRevert):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrWalletNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrReceiptTimeout):
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

// parseListOpts extracts pagination from the query string. Defaults: limit 50,
// capped at 500.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{Limit: limit, Offset: offset}
}

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
