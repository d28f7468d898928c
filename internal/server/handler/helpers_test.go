package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cinafi/leverbot/internal/domain"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrDuplicateRequest, http.StatusConflict},
		{domain.ErrAccessControl, http.StatusForbidden},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{domain.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{domain.ErrContractRevert, http.StatusUnprocessableEntity},
		{domain.ErrReceiverPrecheck, http.StatusUnprocessableEntity},
		{domain.ErrWalletNotConfigured, http.StatusServiceUnavailable},
		{domain.ErrReceiptTimeout, http.StatusAccepted},
		{domain.ErrNetwork, http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, statusFor(c.err), "error %v", c.err)
	}

	// Wrapped errors keep their mapping.
	wrapped := fmt.Errorf("service: open: %w", domain.ErrInsufficientBalance)
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(wrapped))
}

func TestWriteDomainError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDomainError(rec, fmt.Errorf("%w: leverage 12.00 out of range", domain.ErrInvalidInput))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"invalid_input"`)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestParseListOpts(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/actions?limit=10&offset=20", nil)
	opts := parseListOpts(r)
	assert.Equal(t, 10, opts.Limit)
	assert.Equal(t, 20, opts.Offset)

	// Defaults and the cap.
	r = httptest.NewRequest(http.MethodGet, "/api/actions", nil)
	opts = parseListOpts(r)
	assert.Equal(t, 50, opts.Limit)
	assert.Equal(t, 0, opts.Offset)

	r = httptest.NewRequest(http.MethodGet, "/api/actions?limit=9999", nil)
	assert.Equal(t, 500, parseListOpts(r).Limit)
}
