// Package service implements the orchestration flows: token approval,
// position opening, flash loans and the admin operations.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cinafi/leverbot/internal/config"
	"github.com/cinafi/leverbot/internal/domain"
)

// ApprovalService ensures ERC-20 spend allowances before a flow moves tokens.
type ApprovalService struct {
	chain  ApprovalChain
	cfg    config.ChainConfig
	logger *slog.Logger
}

// NewApprovalService creates an ApprovalService.
func NewApprovalService(c ApprovalChain, cfg config.ChainConfig, logger *slog.Logger) *ApprovalService {
	return &ApprovalService{
		chain:  c,
		cfg:    cfg,
		logger: logger.With("component", "approval"),
	}
}

// EnsureApproved checks the current allowance from the wallet to spender and
// submits an exact-amount approve when it falls short. It returns the
// approval transaction hash, or an empty hash when the existing allowance
// already covered the amount and no transaction was sent.
//
// An allowance read failure is logged and treated as zero: the flow proceeds
// to approve rather than aborting, since a redundant approve is harmless
// while a skipped one breaks the follow-up transfer.
func (s *ApprovalService) EnsureApproved(ctx context.Context, token, spender common.Address, amount *big.Int) (string, error) {
	owner := s.chain.Sender()

	allowance, err := s.chain.Allowance(ctx, token, owner, spender)
	if err != nil {
		s.logger.Warn("allowance read failed, approving anyway",
			"token", token.Hex(), "spender", spender.Hex(), "err", err)
		allowance = big.NewInt(0)
	}

	if allowance.Cmp(amount) >= 0 {
		s.logger.Debug("allowance sufficient, skipping approve",
			"token", token.Hex(), "allowance", allowance.String(), "amount", amount.String())
		return "", nil
	}

	// Exact-amount approval; no unlimited allowances.
	tx, err := s.chain.Approve(ctx, token, spender, amount)
	if err != nil {
		return "", fmt.Errorf("service: approve %s: %w", token.Hex(), err)
	}

	// Instant-mining development chains confirm before the first poll; skip
	// the wait there to keep local iteration fast.
	if s.cfg.FastLocal {
		s.logger.Info("approval sent", "token", token.Hex(), "tx", tx.Hash().Hex(), "waited", false)
		return tx.Hash().Hex(), nil
	}

	outcome, err := s.chain.WaitMined(ctx, tx.Hash())
	if err != nil {
		return tx.Hash().Hex(), fmt.Errorf("service: waiting for approval %s: %w", tx.Hash().Hex(), err)
	}
	if outcome.Status == domain.ActionStatusReverted {
		return tx.Hash().Hex(), fmt.Errorf("service: approval %s: %w", tx.Hash().Hex(), domain.ErrContractRevert)
	}

	s.logger.Info("approval confirmed", "token", token.Hex(), "tx", tx.Hash().Hex(), "gas_used", outcome.GasUsed)
	return tx.Hash().Hex(), nil
}
