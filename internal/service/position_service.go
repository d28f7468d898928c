package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/cinafi/leverbot/internal/chain"
	"github.com/cinafi/leverbot/internal/config"
	"github.com/cinafi/leverbot/internal/domain"
)

// Event channels and streams the position flows publish to.
const (
	ChannelActions = "actions"
	StreamActions  = "stream:actions"
)

// PositionService orchestrates the position flows end to end: input
// validation, balance and allowance checks, submission, receipt tracking and
// the per-user position cache.
type PositionService struct {
	chain     PositionChain
	approvals *ApprovalService
	actions   domain.ActionStore
	cache     domain.PositionCache
	guard     domain.RequestGuard
	bus       domain.SignalBus
	audit     domain.AuditStore
	cfg       config.ChainConfig
	meta      domain.ChainMeta
	logger    *slog.Logger
}

// NewPositionService creates a PositionService with all required dependencies.
func NewPositionService(
	c PositionChain,
	approvals *ApprovalService,
	actions domain.ActionStore,
	cache domain.PositionCache,
	guard domain.RequestGuard,
	bus domain.SignalBus,
	audit domain.AuditStore,
	cfg config.ChainConfig,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		chain:     c,
		approvals: approvals,
		actions:   actions,
		cache:     cache,
		guard:     guard,
		bus:       bus,
		audit:     audit,
		cfg:       cfg,
		meta:      cfg.Meta(),
		logger:    logger.With("component", "position"),
	}
}

// OpenRequest opens a plain position through the pool manager: deposit
// collateral, mint debt, no conversion step.
type OpenRequest struct {
	RequestID        string  `json:"request_id"`
	Pool             string  `json:"pool,omitempty"`
	CollateralToken  string  `json:"collateral_token"`
	CollateralAmount string  `json:"collateral_amount"`
	DebtAmount       string  `json:"debt_amount"`
	Leverage         float64 `json:"leverage,omitempty"`
}

// OpenLeveragedRequest opens a leveraged position through the router: WRMB
// collateral is sized into a WBTC leg at the fixed price divisor and the
// flash-loan-backed open mints leverage-scaled stable against it.
type OpenLeveragedRequest struct {
	RequestID  string  `json:"request_id"`
	WRMBAmount string  `json:"wrmb_amount"`
	Leverage   float64 `json:"leverage"`
}

// OperateRequest adjusts an existing position with signed collateral and
// debt deltas. Negative deltas withdraw collateral or repay debt.
type OperateRequest struct {
	RequestID       string `json:"request_id"`
	Pool            string `json:"pool,omitempty"`
	PositionID      uint64 `json:"position_id"`
	CollateralToken string `json:"collateral_token,omitempty"`
	CollateralDelta string `json:"collateral_delta"`
	DebtDelta       string `json:"debt_delta"`
}

// Open runs the simple open flow. The collateral token must be configured;
// the pool defaults to the configured funding pool.
func (s *PositionService) Open(ctx context.Context, req OpenRequest) (domain.Action, error) {
	req.RequestID = ensureRequestID(req.RequestID)
	pool := s.resolvePool(req.Pool)

	token, ok := s.meta.TokenBySymbol(req.CollateralToken)
	if !ok {
		return domain.Action{}, fmt.Errorf("%w: unknown collateral token %q", domain.ErrInvalidInput, req.CollateralToken)
	}
	collateralWei, err := domain.ParseAmount(req.CollateralAmount, token.Decimals)
	if err != nil {
		return domain.Action{}, err
	}

	fxusd, ok := s.meta.TokenBySymbol("FXUSD")
	if !ok {
		return domain.Action{}, fmt.Errorf("%w: FXUSD is not configured", domain.ErrInvalidInput)
	}
	debtWei, err := domain.ParseAmount(req.DebtAmount, fxusd.Decimals)
	if err != nil {
		return domain.Action{}, err
	}

	tokenAddr := common.HexToAddress(token.Address)
	if err := s.checkBalance(ctx, token.Symbol, tokenAddr, collateralWei); err != nil {
		return domain.Action{}, err
	}

	action := domain.Action{
		RequestID:        req.RequestID,
		Wallet:           s.chain.Sender().Hex(),
		Flow:             domain.FlowOpen,
		Pool:             pool.Hex(),
		CollateralToken:  token.Symbol,
		CollateralAmount: domain.NewBigInt(collateralWei),
		DebtAmount:       domain.NewBigInt(debtWei),
		Leverage:         req.Leverage,
		Status:           domain.ActionStatusSubmitted,
		CreatedAt:        time.Now().UTC(),
	}

	return s.run(ctx, action, func(ctx context.Context) (*types.Transaction, error) {
		if _, err := s.approvals.EnsureApproved(ctx, tokenAddr, s.chain.PoolManager(), collateralWei); err != nil {
			return nil, err
		}
		// Position id zero opens a new position.
		return s.chain.Operate(ctx, pool, 0, collateralWei, debtWei)
	})
}

// OpenLeveraged runs the leveraged open flow through the router.
func (s *PositionService) OpenLeveraged(ctx context.Context, req OpenLeveragedRequest) (domain.Action, error) {
	req.RequestID = ensureRequestID(req.RequestID)
	if !validLeverage(req.Leverage) {
		return domain.Action{}, fmt.Errorf("%w: leverage %.2f out of range [1, 10]", domain.ErrInvalidInput, req.Leverage)
	}

	wrmb, ok := s.meta.TokenBySymbol("WRMB")
	if !ok {
		return domain.Action{}, fmt.Errorf("%w: WRMB is not configured", domain.ErrInvalidInput)
	}
	wrmbWei, err := domain.ParseAmount(req.WRMBAmount, wrmb.Decimals)
	if err != nil {
		return domain.Action{}, err
	}

	wrmbAddr := common.HexToAddress(wrmb.Address)
	if err := s.checkBalance(ctx, wrmb.Symbol, wrmbAddr, wrmbWei); err != nil {
		return domain.Action{}, err
	}

	plan := s.PlanLeveragedOpen(wrmbWei, req.Leverage)
	pool := s.resolvePool("")

	action := domain.Action{
		RequestID:        req.RequestID,
		Wallet:           s.chain.Sender().Hex(),
		Flow:             domain.FlowOpenLeveraged,
		Pool:             pool.Hex(),
		CollateralToken:  wrmb.Symbol,
		CollateralAmount: domain.NewBigInt(wrmbWei),
		DebtAmount:       domain.NewBigInt(plan.MinFxUSDMint),
		Leverage:         req.Leverage,
		Status:           domain.ActionStatusSubmitted,
		CreatedAt:        time.Now().UTC(),
	}

	return s.run(ctx, action, func(ctx context.Context) (*types.Transaction, error) {
		if _, err := s.approvals.EnsureApproved(ctx, wrmbAddr, s.chain.Router(), wrmbWei); err != nil {
			return nil, err
		}
		params := chain.ConvertParams{
			TokenIn: wrmbAddr,
			Amount:  wrmbWei,
		}
		return s.chain.OpenOrAddPosition(ctx, params, pool, 0, plan.MinFxUSDMint, nil)
	})
}

// Operate runs signed deltas against an existing position.
func (s *PositionService) Operate(ctx context.Context, req OperateRequest) (domain.Action, error) {
	req.RequestID = ensureRequestID(req.RequestID)
	if req.PositionID == 0 {
		return domain.Action{}, fmt.Errorf("%w: position_id is required", domain.ErrInvalidInput)
	}
	pool := s.resolvePool(req.Pool)

	tokenSym := req.CollateralToken
	if tokenSym == "" {
		tokenSym = "WRMB"
	}
	token, ok := s.meta.TokenBySymbol(tokenSym)
	if !ok {
		return domain.Action{}, fmt.Errorf("%w: unknown collateral token %q", domain.ErrInvalidInput, tokenSym)
	}
	fxusd, ok := s.meta.TokenBySymbol("FXUSD")
	if !ok {
		return domain.Action{}, fmt.Errorf("%w: FXUSD is not configured", domain.ErrInvalidInput)
	}

	collateralDelta, err := parseDelta(req.CollateralDelta, token.Decimals)
	if err != nil {
		return domain.Action{}, err
	}
	debtDelta, err := parseDelta(req.DebtDelta, fxusd.Decimals)
	if err != nil {
		return domain.Action{}, err
	}
	if collateralDelta.Sign() == 0 && debtDelta.Sign() == 0 {
		return domain.Action{}, fmt.Errorf("%w: both deltas are zero", domain.ErrInvalidInput)
	}

	tokenAddr := common.HexToAddress(token.Address)
	if collateralDelta.Sign() > 0 {
		if err := s.checkBalance(ctx, token.Symbol, tokenAddr, collateralDelta); err != nil {
			return domain.Action{}, err
		}
	}

	action := domain.Action{
		RequestID:        req.RequestID,
		Wallet:           s.chain.Sender().Hex(),
		Flow:             domain.FlowOperate,
		Pool:             pool.Hex(),
		CollateralToken:  token.Symbol,
		CollateralAmount: domain.NewBigInt(new(big.Int).Abs(collateralDelta)),
		DebtAmount:       domain.NewBigInt(new(big.Int).Abs(debtDelta)),
		Status:           domain.ActionStatusSubmitted,
		CreatedAt:        time.Now().UTC(),
	}

	positionID := req.PositionID
	return s.run(ctx, action, func(ctx context.Context) (*types.Transaction, error) {
		if collateralDelta.Sign() > 0 {
			if _, err := s.approvals.EnsureApproved(ctx, tokenAddr, s.chain.PoolManager(), collateralDelta); err != nil {
				return nil, err
			}
		}
		return s.chain.Operate(ctx, pool, positionID, collateralDelta, debtDelta)
	})
}

// Retry re-runs a previously failed or reverted action under its original
// request ID. In-flight, timed-out and confirmed actions are rejected: a
// timed-out submission may still land, and only the receipt watcher moves it
// forward, so re-running it here could put a second transaction on chain.
func (s *PositionService) Retry(ctx context.Context, requestID string) (domain.Action, error) {
	prev, err := s.actions.GetByID(ctx, requestID)
	if err != nil {
		return domain.Action{}, err
	}
	if !retryable(prev.Status) {
		return prev, fmt.Errorf("%w: action %s is %s", domain.ErrDuplicateRequest, requestID, prev.Status)
	}

	switch prev.Flow {
	case domain.FlowOpen:
		token, _ := s.meta.TokenBySymbol(prev.CollateralToken)
		fxusd, _ := s.meta.TokenBySymbol("FXUSD")
		return s.Open(ctx, OpenRequest{
			RequestID:        requestID,
			Pool:             prev.Pool,
			CollateralToken:  prev.CollateralToken,
			CollateralAmount: domain.FormatAmount(prev.CollateralAmount.Value(), token.Decimals),
			DebtAmount:       domain.FormatAmount(prev.DebtAmount.Value(), fxusd.Decimals),
			Leverage:         prev.Leverage,
		})
	case domain.FlowOpenLeveraged:
		wrmb, _ := s.meta.TokenBySymbol("WRMB")
		return s.OpenLeveraged(ctx, OpenLeveragedRequest{
			RequestID:  requestID,
			WRMBAmount: domain.FormatAmount(prev.CollateralAmount.Value(), wrmb.Decimals),
			Leverage:   prev.Leverage,
		})
	default:
		return prev, fmt.Errorf("%w: flow %s cannot be retried", domain.ErrInvalidInput, prev.Flow)
	}
}

func retryable(status domain.ActionStatus) bool {
	switch status {
	case domain.ActionStatusFailed, domain.ActionStatusReverted:
		return true
	default:
		return false
	}
}

// LeveragePlan is the sized WBTC leg and the mint floor for a leveraged open.
// The router ABI carries a single minOut slot, the minted-stable floor, so
// the slippage tolerance is folded into it; the swap leg has no separate
// floor of its own.
type LeveragePlan struct {
	WBTCAmount   *big.Int `json:"wbtc_amount"`
	MinFxUSDMint *big.Int `json:"min_fxusd_mint"`
}

// PlanLeveragedOpen sizes the WBTC leg for a WRMB-collateralized open and
// derives the slippage-protected mint floor.
func (s *PositionService) PlanLeveragedOpen(wrmbWei *big.Int, leverage float64) LeveragePlan {
	leverageBps := LeverageToBps(leverage)
	wbtcWei := wbtcForWRMB(wrmbWei, s.cfg.WRMBPriceDivisor, leverageBps)
	return LeveragePlan{
		WBTCAmount:   wbtcWei,
		MinFxUSDMint: minMintForLeverage(wbtcWei, leverageBps, s.cfg.SlippageBps),
	}
}

// ListPositions returns the user's cached positions, falling back to on-chain
// discovery when the cache is empty. Discovery is best effort; a failure
// there returns the (empty) cache rather than an error.
func (s *PositionService) ListPositions(ctx context.Context, user string) ([]domain.CachedPosition, error) {
	cached, err := s.cache.GetCachedPositions(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		return cached, nil
	}

	owner := common.HexToAddress(user)
	ids, err := s.chain.DiscoverPositionIDs(ctx, owner)
	if err != nil {
		s.logger.Warn("position discovery failed", "user", user, "err", err)
		return cached, nil
	}

	pool := s.resolvePool("")
	now := time.Now().UnixMilli()
	var discovered []domain.CachedPosition
	for _, id := range ids {
		state, err := s.chain.GetPosition(ctx, pool, id)
		if err != nil {
			s.logger.Warn("position read failed during discovery", "id", id, "err", err)
			continue
		}
		if state.Collateral.Sign() == 0 && state.Debt.Sign() == 0 {
			continue // closed position
		}
		discovered = append(discovered, domain.CachedPosition{
			Position: domain.Position{
				ID:               id,
				Pool:             pool.Hex(),
				CollateralToken:  "WRMB",
				CollateralAmount: domain.NewBigInt(state.Collateral),
				DebtAmount:       domain.NewBigInt(state.Debt),
				Source:           domain.PositionSourceChain,
			},
			UserAddress: domain.NormalizeAddress(user),
			Timestamp:   now,
		})
	}

	if len(discovered) > 0 {
		if err := s.cache.SetCachedPositions(ctx, user, discovered); err != nil {
			s.logger.Warn("caching discovered positions failed", "user", user, "err", err)
		}
	}
	return discovered, nil
}

// RefreshPosition re-reads one position from the chain and updates the
// user's cache entry with authoritative figures.
func (s *PositionService) RefreshPosition(ctx context.Context, user string, poolHex string, id uint64) (domain.CachedPosition, error) {
	pool := s.resolvePool(poolHex)
	state, err := s.chain.GetPosition(ctx, pool, id)
	if err != nil {
		return domain.CachedPosition{}, err
	}

	entry := domain.CachedPosition{
		Position: domain.Position{
			ID:               id,
			Pool:             pool.Hex(),
			CollateralToken:  "WRMB",
			CollateralAmount: domain.NewBigInt(state.Collateral),
			DebtAmount:       domain.NewBigInt(state.Debt),
			Source:           domain.PositionSourceChain,
		},
		UserAddress: domain.NormalizeAddress(user),
		Timestamp:   time.Now().UnixMilli(),
	}
	if err := s.cache.AddOrUpdateCachedPosition(ctx, user, entry); err != nil {
		return entry, err
	}
	return entry, nil
}

// run executes the shared submission skeleton: duplicate rejection, request
// claim, persistence, submission, receipt wait and event publication.
func (s *PositionService) run(ctx context.Context, action domain.Action, submit func(context.Context) (*types.Transaction, error)) (domain.Action, error) {
	// A finished record under this ID means this is an accidental
	// resubmission, not an explicit retry.
	if existing, err := s.actions.GetByID(ctx, action.RequestID); err == nil {
		if !retryable(existing.Status) {
			return existing, fmt.Errorf("%w: %s", domain.ErrDuplicateRequest, action.RequestID)
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Action{}, err
	}

	release, err := s.guard.Begin(ctx, action.RequestID, s.cfg.RequestTTL.Duration)
	if err != nil {
		return domain.Action{}, err
	}

	if err := s.ensureRecord(ctx, action); err != nil {
		release()
		return domain.Action{}, err
	}

	// Read the position id the contract will assign before submitting, so
	// the optimistic cache entry carries the right id.
	var nextID uint64
	if action.Flow == domain.FlowOpen || action.Flow == domain.FlowOpenLeveraged {
		if id, err := s.chain.NextPositionID(ctx); err == nil {
			nextID = id
		} else {
			s.logger.Warn("next position id read failed", "err", err)
		}
	}

	tx, err := submit(ctx)
	if err != nil {
		// The claim is released so an explicit retry can reuse the ID
		// immediately instead of waiting out the TTL.
		release()
		s.failAction(ctx, &action, err)
		return action, err
	}

	action.TxHash = tx.Hash().Hex()
	action.Status = domain.ActionStatusSubmitted
	if err := s.actions.UpdateStatus(ctx, action.RequestID, action.Status, action.TxHash); err != nil {
		s.logger.Warn("status update failed", "request_id", action.RequestID, "err", err)
	}
	s.publish(ctx, action)

	if nextID != 0 {
		s.writePlaceholder(ctx, action, nextID)
	}

	outcome, err := s.chain.WaitMined(ctx, tx.Hash())
	if err != nil {
		if errors.Is(err, domain.ErrReceiptTimeout) {
			// Never rolled back: the transaction may still land, and the
			// receipt watcher keeps polling it.
			action.Status = domain.ActionStatusPending
			if uerr := s.actions.UpdateStatus(ctx, action.RequestID, action.Status, action.TxHash); uerr != nil {
				s.logger.Warn("status update failed", "request_id", action.RequestID, "err", uerr)
			}
			s.publish(ctx, action)
			return action, nil
		}
		release()
		s.failAction(ctx, &action, err)
		return action, err
	}
	release()

	action.Status = outcome.Status
	if err := s.actions.UpdateStatus(ctx, action.RequestID, action.Status, action.TxHash); err != nil {
		s.logger.Warn("status update failed", "request_id", action.RequestID, "err", err)
	}
	s.publish(ctx, action)

	if action.Status == domain.ActionStatusConfirmed && nextID != 0 {
		s.reconcileCache(ctx, action, nextID)
	}

	if action.Status == domain.ActionStatusReverted {
		return action, fmt.Errorf("service: %s: transaction %s: %w", action.Flow, action.TxHash, domain.ErrContractRevert)
	}
	return action, nil
}

func (s *PositionService) ensureRecord(ctx context.Context, action domain.Action) error {
	if _, err := s.actions.GetByID(ctx, action.RequestID); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return s.actions.Create(ctx, action)
}

func (s *PositionService) failAction(ctx context.Context, action *domain.Action, cause error) {
	action.Status = domain.ActionStatusFailed
	action.ErrorCode = domain.ErrorCode(cause)
	action.ErrorDetail = cause.Error()
	if err := s.actions.SetError(ctx, action.RequestID, action.ErrorCode, action.ErrorDetail); err != nil {
		s.logger.Warn("error persist failed", "request_id", action.RequestID, "err", err)
	}
	s.publish(ctx, *action)
}

// writePlaceholder records an optimistic cache entry right after submission.
// Its debt figure is zero until the post-confirmation read succeeds, and its
// source marks it as non-authoritative.
func (s *PositionService) writePlaceholder(ctx context.Context, action domain.Action, id uint64) {
	entry := domain.CachedPosition{
		Position: domain.Position{
			ID:               id,
			Pool:             action.Pool,
			CollateralToken:  action.CollateralToken,
			CollateralAmount: action.CollateralAmount,
			DebtAmount:       domain.NewBigInt(nil),
			Leverage:         action.Leverage,
			Source:           domain.PositionSourceCache,
		},
		UserAddress: domain.NormalizeAddress(action.Wallet),
		Timestamp:   time.Now().UnixMilli(),
	}
	if err := s.cache.AddOrUpdateCachedPosition(ctx, action.Wallet, entry); err != nil {
		s.logger.Warn("placeholder cache write failed", "request_id", action.RequestID, "err", err)
	}
}

// reconcileCache replaces the placeholder with authoritative on-chain state.
func (s *PositionService) reconcileCache(ctx context.Context, action domain.Action, id uint64) {
	if _, err := s.RefreshPosition(ctx, action.Wallet, action.Pool, id); err != nil {
		s.logger.Warn("post-confirm position read failed", "request_id", action.RequestID, "position_id", id, "err", err)
	}
}

// publish pushes the action update onto the live channel and the durable
// stream, and appends an audit row. All three are best effort.
func (s *PositionService) publish(ctx context.Context, action domain.Action) {
	payload, err := json.Marshal(action)
	if err != nil {
		s.logger.Warn("action marshal failed", "request_id", action.RequestID, "err", err)
		return
	}
	if err := s.bus.Publish(ctx, ChannelActions, payload); err != nil {
		s.logger.Warn("publish failed", "channel", ChannelActions, "err", err)
	}
	if err := s.bus.StreamAppend(ctx, StreamActions, payload); err != nil {
		s.logger.Warn("stream append failed", "stream", StreamActions, "err", err)
	}
	if err := s.audit.Log(ctx, "action_"+string(action.Status), map[string]any{
		"request_id": action.RequestID,
		"wallet":     action.Wallet,
		"flow":       string(action.Flow),
		"tx_hash":    action.TxHash,
		"error_code": action.ErrorCode,
	}); err != nil {
		s.logger.Warn("audit log failed", "request_id", action.RequestID, "err", err)
	}
}

func (s *PositionService) checkBalance(ctx context.Context, symbol string, token common.Address, need *big.Int) error {
	have, err := s.chain.BalanceOf(ctx, token, s.chain.Sender())
	if err != nil {
		return fmt.Errorf("service: reading %s balance: %w", symbol, err)
	}
	if have.Cmp(need) < 0 {
		return &domain.BalanceError{Token: symbol, Have: have, Want: need}
	}
	return nil
}

func (s *PositionService) resolvePool(poolHex string) common.Address {
	if poolHex != "" {
		return common.HexToAddress(poolHex)
	}
	return common.HexToAddress(s.cfg.DefaultPool)
}
