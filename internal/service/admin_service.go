package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cinafi/leverbot/internal/chain"
	"github.com/cinafi/leverbot/internal/config"
	"github.com/cinafi/leverbot/internal/domain"
)

// DefaultAdminRole is the zero bytes32 role that guards the pool manager
// setters.
var DefaultAdminRole = [32]byte{}

// AdminService wraps the role-gated pool manager setters and the read views
// that back the admin endpoints.
type AdminService struct {
	chain  AdminChain
	bus    domain.SignalBus
	audit  domain.AuditStore
	cfg    config.ChainConfig
	logger *slog.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(c AdminChain, bus domain.SignalBus, audit domain.AuditStore, cfg config.ChainConfig, logger *slog.Logger) *AdminService {
	return &AdminService{
		chain:  c,
		bus:    bus,
		audit:  audit,
		cfg:    cfg,
		logger: logger.With("component", "admin"),
	}
}

// requireAdmin checks the sender's admin role before a setter is submitted.
// A failed role read aborts the call rather than letting the transaction
// revert on chain.
func (s *AdminService) requireAdmin(ctx context.Context) error {
	caller := s.chain.Sender()
	ok, err := s.chain.HasRole(ctx, DefaultAdminRole, caller)
	if err != nil {
		return fmt.Errorf("service: role check for %s: %w", caller.Hex(), err)
	}
	if !ok {
		return fmt.Errorf("%w: %s lacks admin role", domain.ErrAccessControl, caller.Hex())
	}
	return nil
}

// UpdateRateProvider sets the rate provider for a token, gated on the admin
// role.
func (s *AdminService) UpdateRateProvider(ctx context.Context, token, provider common.Address) (string, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return "", err
	}

	tx, err := s.chain.UpdateRateProvider(ctx, token, provider)
	if err != nil {
		return "", fmt.Errorf("service: update rate provider: %w", err)
	}

	outcome, err := s.chain.WaitMined(ctx, tx.Hash())
	if err != nil {
		return tx.Hash().Hex(), fmt.Errorf("service: waiting for %s: %w", tx.Hash().Hex(), err)
	}
	if outcome.Status == domain.ActionStatusReverted {
		return tx.Hash().Hex(), fmt.Errorf("service: update rate provider %s: %w", tx.Hash().Hex(), domain.ErrContractRevert)
	}

	s.logger.Info("rate provider updated", "token", token.Hex(), "provider", provider.Hex(), "tx", tx.Hash().Hex())
	s.publish(ctx, "rate_provider", map[string]any{
		"token":    token.Hex(),
		"provider": provider.Hex(),
		"tx_hash":  tx.Hash().Hex(),
	})
	return tx.Hash().Hex(), nil
}

// UpdatePoolCapacity sets a pool's collateral and debt caps, gated on the
// admin role.
func (s *AdminService) UpdatePoolCapacity(ctx context.Context, pool common.Address, collateralCap, debtCap *big.Int) (string, error) {
	if collateralCap == nil || debtCap == nil || collateralCap.Sign() < 0 || debtCap.Sign() < 0 {
		return "", fmt.Errorf("%w: capacities must be non-negative", domain.ErrInvalidInput)
	}
	if err := s.requireAdmin(ctx); err != nil {
		return "", err
	}

	tx, err := s.chain.UpdatePoolCapacity(ctx, pool, collateralCap, debtCap)
	if err != nil {
		return "", fmt.Errorf("service: update pool capacity: %w", err)
	}

	outcome, err := s.chain.WaitMined(ctx, tx.Hash())
	if err != nil {
		return tx.Hash().Hex(), fmt.Errorf("service: waiting for %s: %w", tx.Hash().Hex(), err)
	}
	if outcome.Status == domain.ActionStatusReverted {
		return tx.Hash().Hex(), fmt.Errorf("service: update pool capacity %s: %w", tx.Hash().Hex(), domain.ErrContractRevert)
	}

	s.logger.Info("pool capacity updated", "pool", pool.Hex(), "collateral_cap", collateralCap.String(), "debt_cap", debtCap.String(), "tx", tx.Hash().Hex())
	s.publish(ctx, "pool_capacity", map[string]any{
		"pool":           pool.Hex(),
		"collateral_cap": collateralCap.String(),
		"debt_cap":       debtCap.String(),
		"tx_hash":        tx.Hash().Hex(),
	})
	return tx.Hash().Hex(), nil
}

// PoolInfo returns the pool's capacity and reward wiring.
func (s *AdminService) PoolInfo(ctx context.Context, pool common.Address) (domain.PoolInfo, error) {
	return s.chain.GetPoolInfo(ctx, pool)
}

// TokenRate returns the configured rate and provider for a token.
func (s *AdminService) TokenRate(ctx context.Context, token common.Address) (chain.TokenRate, error) {
	return s.chain.TokenRates(ctx, token)
}

// IsAdmin reports whether the configured wallet holds the admin role.
func (s *AdminService) IsAdmin(ctx context.Context) (bool, error) {
	return s.chain.HasRole(ctx, DefaultAdminRole, s.chain.Sender())
}

func (s *AdminService) publish(ctx context.Context, what string, detail map[string]any) {
	detail["event"] = "admin_updated"
	detail["setter"] = what
	if payload, err := json.Marshal(detail); err == nil {
		if perr := s.bus.Publish(ctx, ChannelActions, payload); perr != nil {
			s.logger.Warn("publish failed", "channel", ChannelActions, "err", perr)
		}
	}
	if err := s.audit.Log(ctx, "admin_updated", detail); err != nil {
		s.logger.Warn("audit log failed", "setter", what, "err", err)
	}
}
