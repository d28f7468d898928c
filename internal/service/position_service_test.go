package service

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinafi/leverbot/internal/chain"
	"github.com/cinafi/leverbot/internal/config"
	"github.com/cinafi/leverbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTx() *types.Transaction {
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	return types.NewTx(&types.LegacyTx{Nonce: 1, To: &to, Gas: 21_000, GasPrice: big.NewInt(1), Value: big.NewInt(0)})
}

// fakeChain satisfies the per-flow chain slices with canned reads and records
// every submission.
type fakeChain struct {
	balance   *big.Int
	allowance *big.Int
	hasCode   bool
	premium   int64
	outcome   *domain.TxOutcome

	approveAmounts []*big.Int
	operateCalls   int
	openCalls      int
	flashCalls     int
}

func (f *fakeChain) Sender() common.Address {
	return common.HexToAddress("0x00000000000000000000000000000000000000f1")
}

func (f *fakeChain) Router() common.Address {
	return common.HexToAddress("0x00000000000000000000000000000000000000e1")
}

func (f *fakeChain) PoolManager() common.Address {
	return common.HexToAddress("0x00000000000000000000000000000000000000e2")
}

func (f *fakeChain) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	if f.balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeChain) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	if f.allowance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeChain) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	f.approveAmounts = append(f.approveAmounts, new(big.Int).Set(amount))
	return newTx(), nil
}

func (f *fakeChain) Operate(ctx context.Context, pool common.Address, positionID uint64, collateralDelta, debtDelta *big.Int) (*types.Transaction, error) {
	f.operateCalls++
	return newTx(), nil
}

func (f *fakeChain) OpenOrAddPosition(ctx context.Context, params chain.ConvertParams, pool common.Address, positionID uint64, minOut *big.Int, data []byte) (*types.Transaction, error) {
	f.openCalls++
	return newTx(), nil
}

func (f *fakeChain) NextPositionID(ctx context.Context) (uint64, error) { return 7, nil }

func (f *fakeChain) GetPosition(ctx context.Context, pool common.Address, positionID uint64) (chain.PositionState, error) {
	return chain.PositionState{Collateral: big.NewInt(1), Debt: big.NewInt(1)}, nil
}

func (f *fakeChain) DiscoverPositionIDs(ctx context.Context, owner common.Address) ([]uint64, error) {
	return nil, nil
}

func (f *fakeChain) HasCode(ctx context.Context, addr common.Address) (bool, error) {
	return f.hasCode, nil
}

func (f *fakeChain) FlashLoanPremiumBps(ctx context.Context) (int64, error) {
	return f.premium, nil
}

func (f *fakeChain) FlashLoanSimple(ctx context.Context, receiver, asset common.Address, amount *big.Int, params []byte, referralCode uint16) (*types.Transaction, error) {
	f.flashCalls++
	return newTx(), nil
}

func (f *fakeChain) WaitMined(ctx context.Context, txHash common.Hash) (*domain.TxOutcome, error) {
	if f.outcome != nil {
		return f.outcome, nil
	}
	return &domain.TxOutcome{TxHash: txHash.Hex(), Status: domain.ActionStatusConfirmed, GasUsed: 21_000}, nil
}

type fakeActions struct {
	mu      sync.Mutex
	actions map[string]domain.Action
}

func newFakeActions() *fakeActions {
	return &fakeActions{actions: make(map[string]domain.Action)}
}

func (s *fakeActions) Create(ctx context.Context, a domain.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[a.RequestID] = a
	return nil
}

func (s *fakeActions) UpdateStatus(ctx context.Context, requestID string, status domain.ActionStatus, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.actions[requestID]
	a.Status = status
	a.TxHash = txHash
	s.actions[requestID] = a
	return nil
}

func (s *fakeActions) SetError(ctx context.Context, requestID, code, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.actions[requestID]
	a.Status = domain.ActionStatusFailed
	a.ErrorCode = code
	a.ErrorDetail = detail
	s.actions[requestID] = a
	return nil
}

func (s *fakeActions) GetByID(ctx context.Context, requestID string) (domain.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[requestID]
	if !ok {
		return domain.Action{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *fakeActions) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Action, error) {
	return nil, nil
}

func (s *fakeActions) ListByStatus(ctx context.Context, status domain.ActionStatus, opts domain.ListOpts) ([]domain.Action, error) {
	return nil, nil
}

func (s *fakeActions) ListBefore(ctx context.Context, before time.Time) ([]domain.Action, error) {
	return nil, nil
}

func (s *fakeActions) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (s *fakeActions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions)
}

type fakeCache struct {
	mu        sync.Mutex
	positions map[string][]domain.CachedPosition
}

func newFakeCache() *fakeCache {
	return &fakeCache{positions: make(map[string][]domain.CachedPosition)}
}

func (c *fakeCache) GetCachedPositions(ctx context.Context, user string) ([]domain.CachedPosition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positions[user], nil
}

func (c *fakeCache) SetCachedPositions(ctx context.Context, user string, positions []domain.CachedPosition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions[user] = positions
	return nil
}

func (c *fakeCache) AddOrUpdateCachedPosition(ctx context.Context, user string, p domain.CachedPosition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions[user] = append(c.positions[user], p)
	return nil
}

func (c *fakeCache) RemoveCachedPosition(ctx context.Context, user string, id uint64) error { return nil }

func (c *fakeCache) ClearCachedPositions(ctx context.Context, user string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.positions, user)
	return nil
}

type fakeGuard struct {
	mu     sync.Mutex
	claims []string
}

func (g *fakeGuard) Begin(ctx context.Context, requestID string, ttl time.Duration) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.claims = append(g.claims, requestID)
	return func() {}, nil
}

type fakeSignalBus struct {
	mu        sync.Mutex
	published map[string]int
}

func (b *fakeSignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published == nil {
		b.published = make(map[string]int)
	}
	b.published[channel]++
	return nil
}

func (b *fakeSignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *fakeSignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	return nil
}

func (b *fakeSignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *fakeAudit) Log(ctx context.Context, event string, detail map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAudit) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (a *fakeAudit) ListBefore(ctx context.Context, before time.Time) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (a *fakeAudit) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func newTestPositionService(fc *fakeChain) (*PositionService, *fakeActions, *fakeGuard) {
	cfg := config.Defaults().Chain
	actions := newFakeActions()
	guard := &fakeGuard{}
	approvals := NewApprovalService(fc, cfg, testLogger())
	svc := NewPositionService(fc, approvals, actions, newFakeCache(), guard, &fakeSignalBus{}, &fakeAudit{}, cfg, testLogger())
	return svc, actions, guard
}

func TestOpenHaltsOnInsufficientBalance(t *testing.T) {
	fc := &fakeChain{balance: wei("500000000000000000000")} // 500 WRMB
	svc, actions, _ := newTestPositionService(fc)

	_, err := svc.Open(context.Background(), OpenRequest{
		RequestID:        "r-halt",
		CollateralToken:  "WRMB",
		CollateralAmount: "1000",
		DebtAmount:       "100",
	})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// Both figures surface so the caller sees how short the wallet is.
	assert.Contains(t, err.Error(), "500000000000000000000")
	assert.Contains(t, err.Error(), "1000000000000000000000")

	// The halt happens before any transaction, approval included.
	assert.Zero(t, fc.operateCalls)
	assert.Empty(t, fc.approveAmounts)
	assert.Zero(t, actions.count())
}

func TestOpenGeneratesRequestID(t *testing.T) {
	fc := &fakeChain{balance: wei("1000000000000000000000000"), allowance: wei("1000000000000000000000000")}
	svc, _, guard := newTestPositionService(fc)

	action, err := svc.Open(context.Background(), OpenRequest{
		CollateralToken:  "WRMB",
		CollateralAmount: "100",
		DebtAmount:       "50",
	})
	require.NoError(t, err)

	_, perr := uuid.Parse(action.RequestID)
	require.NoError(t, perr, "absent request id gets a server-generated uuid")
	assert.Equal(t, domain.ActionStatusConfirmed, action.Status)
	assert.Equal(t, 1, fc.operateCalls)
	assert.Equal(t, []string{action.RequestID}, guard.claims)
}

func TestRetryRejectsTimedOutAction(t *testing.T) {
	fc := &fakeChain{balance: wei("1000000000000000000000000")}
	svc, actions, _ := newTestPositionService(fc)

	// A timed-out submission may still land; only the receipt watcher moves
	// it forward, so an explicit retry must not put a second tx on chain.
	require.NoError(t, actions.Create(context.Background(), domain.Action{
		RequestID:        "r-pending",
		Flow:             domain.FlowOpen,
		CollateralToken:  "WRMB",
		CollateralAmount: domain.NewBigInt(wei("1000000000000000000")),
		DebtAmount:       domain.NewBigInt(wei("1000000000000000000")),
		Status:           domain.ActionStatusPending,
	}))

	_, err := svc.Retry(context.Background(), "r-pending")
	require.ErrorIs(t, err, domain.ErrDuplicateRequest)
	assert.Zero(t, fc.operateCalls)
}

func TestRetryResubmitsFailedAction(t *testing.T) {
	fc := &fakeChain{balance: wei("1000000000000000000000000"), allowance: wei("1000000000000000000000000")}
	svc, actions, _ := newTestPositionService(fc)

	require.NoError(t, actions.Create(context.Background(), domain.Action{
		RequestID:        "r-failed",
		Flow:             domain.FlowOpen,
		CollateralToken:  "WRMB",
		CollateralAmount: domain.NewBigInt(wei("1000000000000000000")),
		DebtAmount:       domain.NewBigInt(wei("1000000000000000000")),
		Status:           domain.ActionStatusFailed,
	}))

	action, err := svc.Retry(context.Background(), "r-failed")
	require.NoError(t, err)
	assert.Equal(t, "r-failed", action.RequestID)
	assert.Equal(t, domain.ActionStatusConfirmed, action.Status)
	assert.Equal(t, 1, fc.operateCalls)
}
