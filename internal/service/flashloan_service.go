package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/cinafi/leverbot/internal/config"
	"github.com/cinafi/leverbot/internal/domain"
)

// Event channels and streams the flash-loan flow publishes to.
const (
	ChannelFlashLoans = "flashloans"
	StreamFlashLoans  = "stream:flashloans"
)

// FlashLoanService orchestrates flashLoanSimple calls against the lending
// pool, with preflight checks that catch guaranteed-revert conditions before
// any gas is spent.
type FlashLoanService struct {
	chain   FlashLoanChain
	actions domain.ActionStore
	guard   domain.RequestGuard
	bus     domain.SignalBus
	audit   domain.AuditStore
	cfg     config.ChainConfig
	meta    domain.ChainMeta
	logger  *slog.Logger
}

// NewFlashLoanService creates a FlashLoanService.
func NewFlashLoanService(
	c FlashLoanChain,
	actions domain.ActionStore,
	guard domain.RequestGuard,
	bus domain.SignalBus,
	audit domain.AuditStore,
	cfg config.ChainConfig,
	logger *slog.Logger,
) *FlashLoanService {
	return &FlashLoanService{
		chain:   c,
		actions: actions,
		guard:   guard,
		bus:     bus,
		audit:   audit,
		cfg:     cfg,
		meta:    cfg.Meta(),
		logger:  logger.With("component", "flashloan"),
	}
}

// FlashLoanRequest describes one flash loan execution.
type FlashLoanRequest struct {
	RequestID string `json:"request_id"`
	// Receiver is the deployed contract implementing executeOperation.
	Receiver string `json:"receiver"`
	// Asset is the borrowed token symbol; defaults to WBTC.
	Asset string `json:"asset,omitempty"`
	// Amount is the principal in human units.
	Amount string `json:"amount"`
	// Params is optional hex-encoded data forwarded to executeOperation.
	Params       string `json:"params,omitempty"`
	ReferralCode uint16 `json:"referral_code,omitempty"`
}

// Preflight is the result of validating a flash loan without executing it.
type Preflight struct {
	PremiumBps      int64    `json:"premium_bps"`
	Fee             *big.Int `json:"fee"`
	ReceiverIsCode  bool     `json:"receiver_is_contract"`
	ReceiverBalance *big.Int `json:"receiver_balance"`
	Errors          []string `json:"errors,omitempty"`
}

// OK reports whether every preflight check passed.
func (p Preflight) OK() bool { return len(p.Errors) == 0 }

// Premium returns the pool's current flash loan premium in basis points,
// falling back to the configured default when the read fails. The Aave
// deployment charges 5 bps.
func (s *FlashLoanService) Premium(ctx context.Context) int64 {
	premium, err := s.chain.FlashLoanPremiumBps(ctx)
	if err != nil {
		s.logger.Warn("premium read failed, using default", "default_bps", s.cfg.FlashLoanPremiumBps, "err", err)
		return s.cfg.FlashLoanPremiumBps
	}
	return premium
}

// Fee computes the premium charged on the given principal.
func (s *FlashLoanService) Fee(ctx context.Context, amount *big.Int) *big.Int {
	return flashLoanFee(amount, s.Premium(ctx))
}

// Check runs the preflight validations: positive principal, receiver is a
// deployed contract, and the receiver holds at least the fee (the pool funds
// the principal itself). The two chain reads run concurrently.
func (s *FlashLoanService) Check(ctx context.Context, receiver common.Address, asset common.Address, amount *big.Int) (Preflight, error) {
	pf := Preflight{}
	if amount == nil || amount.Sign() <= 0 {
		pf.Errors = append(pf.Errors, "borrow amount must be positive")
	}

	pf.PremiumBps = s.Premium(ctx)
	pf.Fee = flashLoanFee(amount, pf.PremiumBps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hasCode, err := s.chain.HasCode(gctx, receiver)
		if err != nil {
			return fmt.Errorf("service: checking receiver code: %w", err)
		}
		pf.ReceiverIsCode = hasCode
		return nil
	})
	g.Go(func() error {
		balance, err := s.chain.BalanceOf(gctx, asset, receiver)
		if err != nil {
			return fmt.Errorf("service: reading receiver balance: %w", err)
		}
		pf.ReceiverBalance = balance
		return nil
	})
	if err := g.Wait(); err != nil {
		return pf, err
	}

	if !pf.ReceiverIsCode {
		pf.Errors = append(pf.Errors, "receiver has no deployed code")
	}
	if pf.ReceiverBalance != nil && pf.ReceiverBalance.Cmp(pf.Fee) < 0 {
		pf.Errors = append(pf.Errors, fmt.Sprintf("receiver balance %s below required fee %s", pf.ReceiverBalance, pf.Fee))
	}
	return pf, nil
}

// Execute validates and submits a flash loan, tracking it like any other
// orchestrated action.
func (s *FlashLoanService) Execute(ctx context.Context, req FlashLoanRequest) (domain.Action, error) {
	req.RequestID = ensureRequestID(req.RequestID)
	if !common.IsHexAddress(req.Receiver) {
		return domain.Action{}, fmt.Errorf("%w: receiver %q is not an address", domain.ErrInvalidInput, req.Receiver)
	}
	receiver := common.HexToAddress(req.Receiver)

	assetSym := req.Asset
	if assetSym == "" {
		assetSym = "WBTC"
	}
	token, ok := s.meta.TokenBySymbol(assetSym)
	if !ok {
		return domain.Action{}, fmt.Errorf("%w: unknown asset %q", domain.ErrInvalidInput, assetSym)
	}
	asset := common.HexToAddress(token.Address)

	amount, err := domain.ParseAmount(req.Amount, token.Decimals)
	if err != nil {
		return domain.Action{}, err
	}

	var params []byte
	if req.Params != "" {
		params, err = hex.DecodeString(strings.TrimPrefix(req.Params, "0x"))
		if err != nil {
			return domain.Action{}, fmt.Errorf("%w: params is not valid hex", domain.ErrInvalidInput)
		}
	}

	pf, err := s.Check(ctx, receiver, asset, amount)
	if err != nil {
		return domain.Action{}, err
	}
	if !pf.OK() {
		return domain.Action{}, fmt.Errorf("%w: %s", domain.ErrReceiverPrecheck, strings.Join(pf.Errors, "; "))
	}

	if existing, err := s.actions.GetByID(ctx, req.RequestID); err == nil {
		if !retryable(existing.Status) {
			return existing, fmt.Errorf("%w: %s", domain.ErrDuplicateRequest, req.RequestID)
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Action{}, err
	}

	release, err := s.guard.Begin(ctx, req.RequestID, s.cfg.RequestTTL.Duration)
	if err != nil {
		return domain.Action{}, err
	}

	action := domain.Action{
		RequestID:        req.RequestID,
		Wallet:           s.chain.Sender().Hex(),
		Flow:             domain.FlowFlashLoan,
		CollateralToken:  token.Symbol,
		CollateralAmount: domain.NewBigInt(amount),
		DebtAmount:       domain.NewBigInt(pf.Fee),
		Status:           domain.ActionStatusSubmitted,
		CreatedAt:        time.Now().UTC(),
	}
	if _, err := s.actions.GetByID(ctx, action.RequestID); errors.Is(err, domain.ErrNotFound) {
		if err := s.actions.Create(ctx, action); err != nil {
			release()
			return domain.Action{}, err
		}
	}

	tx, err := s.chain.FlashLoanSimple(ctx, receiver, asset, amount, params, req.ReferralCode)
	if err != nil {
		release()
		action.Status = domain.ActionStatusFailed
		action.ErrorCode = domain.ErrorCode(err)
		action.ErrorDetail = err.Error()
		if serr := s.actions.SetError(ctx, action.RequestID, action.ErrorCode, action.ErrorDetail); serr != nil {
			s.logger.Warn("error persist failed", "request_id", action.RequestID, "err", serr)
		}
		s.publish(ctx, action)
		return action, err
	}

	action.TxHash = tx.Hash().Hex()
	if err := s.actions.UpdateStatus(ctx, action.RequestID, action.Status, action.TxHash); err != nil {
		s.logger.Warn("status update failed", "request_id", action.RequestID, "err", err)
	}
	s.publish(ctx, action)

	outcome, err := s.chain.WaitMined(ctx, tx.Hash())
	if err != nil {
		if errors.Is(err, domain.ErrReceiptTimeout) {
			action.Status = domain.ActionStatusPending
			if uerr := s.actions.UpdateStatus(ctx, action.RequestID, action.Status, action.TxHash); uerr != nil {
				s.logger.Warn("status update failed", "request_id", action.RequestID, "err", uerr)
			}
			s.publish(ctx, action)
			return action, nil
		}
		release()
		action.Status = domain.ActionStatusFailed
		action.ErrorCode = domain.ErrorCode(err)
		action.ErrorDetail = err.Error()
		if serr := s.actions.SetError(ctx, action.RequestID, action.ErrorCode, action.ErrorDetail); serr != nil {
			s.logger.Warn("error persist failed", "request_id", action.RequestID, "err", serr)
		}
		s.publish(ctx, action)
		return action, err
	}
	release()

	action.Status = outcome.Status
	if err := s.actions.UpdateStatus(ctx, action.RequestID, action.Status, action.TxHash); err != nil {
		s.logger.Warn("status update failed", "request_id", action.RequestID, "err", err)
	}
	s.publish(ctx, action)

	if action.Status == domain.ActionStatusReverted {
		return action, fmt.Errorf("service: flash loan %s: %w", action.TxHash, domain.ErrContractRevert)
	}
	s.logger.Info("flash loan confirmed", "tx", action.TxHash, "asset", token.Symbol, "amount", amount.String(), "fee", pf.Fee.String())
	return action, nil
}

func (s *FlashLoanService) publish(ctx context.Context, action domain.Action) {
	payload, err := json.Marshal(action)
	if err != nil {
		s.logger.Warn("action marshal failed", "request_id", action.RequestID, "err", err)
		return
	}
	if err := s.bus.Publish(ctx, ChannelFlashLoans, payload); err != nil {
		s.logger.Warn("publish failed", "channel", ChannelFlashLoans, "err", err)
	}
	if err := s.bus.StreamAppend(ctx, StreamFlashLoans, payload); err != nil {
		s.logger.Warn("stream append failed", "stream", StreamFlashLoans, "err", err)
	}
	if err := s.audit.Log(ctx, "flashloan_"+string(action.Status), map[string]any{
		"request_id": action.RequestID,
		"wallet":     action.Wallet,
		"asset":      action.CollateralToken,
		"tx_hash":    action.TxHash,
		"error_code": action.ErrorCode,
	}); err != nil {
		s.logger.Warn("audit log failed", "request_id", action.RequestID, "err", err)
	}
}
