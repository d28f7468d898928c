package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinafi/leverbot/internal/domain"
)

type fakeActionStore struct {
	actions map[string]domain.Action
}

func newFakeActionStore(actions ...domain.Action) *fakeActionStore {
	s := &fakeActionStore{actions: make(map[string]domain.Action)}
	for _, a := range actions {
		s.actions[a.RequestID] = a
	}
	return s
}

func (s *fakeActionStore) Create(_ context.Context, a domain.Action) error {
	s.actions[a.RequestID] = a
	return nil
}

func (s *fakeActionStore) UpdateStatus(_ context.Context, requestID string, status domain.ActionStatus, txHash string) error {
	a, ok := s.actions[requestID]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = status
	a.TxHash = txHash
	a.UpdatedAt = time.Now().UTC()
	s.actions[requestID] = a
	return nil
}

func (s *fakeActionStore) SetError(_ context.Context, requestID, code, detail string) error {
	a := s.actions[requestID]
	a.ErrorCode = code
	a.ErrorDetail = detail
	s.actions[requestID] = a
	return nil
}

func (s *fakeActionStore) GetByID(_ context.Context, requestID string) (domain.Action, error) {
	a, ok := s.actions[requestID]
	if !ok {
		return domain.Action{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *fakeActionStore) ListByWallet(context.Context, string, domain.ListOpts) ([]domain.Action, error) {
	return nil, nil
}

func (s *fakeActionStore) ListByStatus(_ context.Context, status domain.ActionStatus, _ domain.ListOpts) ([]domain.Action, error) {
	var out []domain.Action
	for _, a := range s.actions {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeActionStore) ListBefore(context.Context, time.Time) ([]domain.Action, error) {
	return nil, nil
}

func (s *fakeActionStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fakeWaiter struct {
	outcome *domain.TxOutcome
	err     error
	calls   int
}

func (w *fakeWaiter) WaitMined(context.Context, common.Hash) (*domain.TxOutcome, error) {
	w.calls++
	return w.outcome, w.err
}

type fakeBus struct {
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		published: make(map[string][][]byte),
		streamed:  make(map[string][][]byte),
	}
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.streamed[stream] = append(b.streamed[stream], payload)
	return nil
}

func (b *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staleAction(id string, status domain.ActionStatus) domain.Action {
	return domain.Action{
		RequestID: id,
		Wallet:    "0xabc",
		Flow:      domain.FlowOpen,
		TxHash:    "0x" + fmt.Sprintf("%064d", 1),
		Status:    status,
		UpdatedAt: time.Now().UTC().Add(-10 * time.Minute),
	}
}

func TestReceiptWatcherResolvesStaleAction(t *testing.T) {
	store := newFakeActionStore(staleAction("req-1", domain.ActionStatusSubmitted))
	waiter := &fakeWaiter{outcome: &domain.TxOutcome{
		TxHash: staleAction("req-1", "").TxHash,
		Status: domain.ActionStatusConfirmed,
		Block:  42,
	}}
	bus := newFakeBus()

	w := NewReceiptWatcher(store, waiter, bus, time.Minute, testLogger())
	w.Scan(context.Background())

	got, err := store.GetByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionStatusConfirmed, got.Status)
	assert.Len(t, bus.published["actions"], 1)
	assert.Len(t, bus.streamed["stream:actions"], 1)
}

func TestReceiptWatcherMarksPendingOnTimeout(t *testing.T) {
	store := newFakeActionStore(staleAction("req-1", domain.ActionStatusSubmitted))
	waiter := &fakeWaiter{err: fmt.Errorf("%w: no receipt", domain.ErrReceiptTimeout)}

	w := NewReceiptWatcher(store, waiter, newFakeBus(), time.Minute, testLogger())
	w.Scan(context.Background())

	got, err := store.GetByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionStatusPending, got.Status)
}

func TestReceiptWatcherSkipsFreshActions(t *testing.T) {
	fresh := staleAction("req-1", domain.ActionStatusSubmitted)
	fresh.UpdatedAt = time.Now().UTC()
	store := newFakeActionStore(fresh)
	waiter := &fakeWaiter{outcome: &domain.TxOutcome{Status: domain.ActionStatusConfirmed}}

	w := NewReceiptWatcher(store, waiter, newFakeBus(), time.Minute, testLogger())
	w.Scan(context.Background())

	assert.Zero(t, waiter.calls)
	got, _ := store.GetByID(context.Background(), "req-1")
	assert.Equal(t, domain.ActionStatusSubmitted, got.Status)
}

func TestReceiptWatcherRoutesFlashLoanChannel(t *testing.T) {
	a := staleAction("fl-1", domain.ActionStatusPending)
	a.Flow = domain.FlowFlashLoan
	store := newFakeActionStore(a)
	waiter := &fakeWaiter{outcome: &domain.TxOutcome{
		TxHash: a.TxHash,
		Status: domain.ActionStatusConfirmed,
	}}
	bus := newFakeBus()

	w := NewReceiptWatcher(store, waiter, bus, time.Minute, testLogger())
	w.Scan(context.Background())

	assert.Len(t, bus.published["flashloans"], 1)
	assert.Empty(t, bus.published["actions"])
}
