package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinafi/leverbot/internal/domain"
)

type fakeActionReader struct {
	byID map[string]domain.Action
	list []domain.Action
}

func (f *fakeActionReader) GetByID(_ context.Context, id string) (domain.Action, error) {
	a, ok := f.byID[id]
	if !ok {
		return domain.Action{}, domain.ErrNotFound
	}
	return a, nil
}

func (f *fakeActionReader) ListByWallet(context.Context, string, domain.ListOpts) ([]domain.Action, error) {
	return f.list, nil
}

type fakeRetrier struct {
	result domain.Action
	err    error
}

func (f *fakeRetrier) Retry(context.Context, string) (domain.Action, error) {
	return f.result, f.err
}

func newActionHandler(reader *fakeActionReader, retrier *fakeRetrier) *ActionHandler {
	return NewActionHandler(reader, retrier, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGetAction(t *testing.T) {
	h := newActionHandler(&fakeActionReader{byID: map[string]domain.Action{
		"req-1": {RequestID: "req-1", Status: domain.ActionStatusConfirmed},
	}}, &fakeRetrier{})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/actions/{id}", h.GetAction)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/actions/req-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Action
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "req-1", got.RequestID)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/actions/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"not_found"`)
}

func TestListActionsRequiresWallet(t *testing.T) {
	h := newActionHandler(&fakeActionReader{}, &fakeRetrier{})

	rec := httptest.NewRecorder()
	h.ListActions(rec, httptest.NewRequest(http.MethodGet, "/api/actions", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListActionsEmptyIsArray(t *testing.T) {
	h := newActionHandler(&fakeActionReader{}, &fakeRetrier{})

	rec := httptest.NewRecorder()
	h.ListActions(rec, httptest.NewRequest(http.MethodGet, "/api/actions?wallet=0xabc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"actions":[]`)
}

func TestRetryActionConflict(t *testing.T) {
	h := newActionHandler(&fakeActionReader{}, &fakeRetrier{err: domain.ErrDuplicateRequest})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/actions/{id}/retry", h.RetryAction)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/actions/req-1/retry", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"duplicate_request"`)
}
