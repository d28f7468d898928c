package service

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/cinafi/leverbot/internal/chain"
	"github.com/cinafi/leverbot/internal/domain"
)

// The services see the chain client through per-flow slices so each flow
// declares exactly the reads and submissions it performs. *chain.Client
// satisfies all of them.

// ApprovalChain is the chain surface of the approval flow.
type ApprovalChain interface {
	Sender() common.Address
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Transaction, error)
	WaitMined(ctx context.Context, txHash common.Hash) (*domain.TxOutcome, error)
}

// PositionChain is the chain surface of the position flows.
type PositionChain interface {
	Sender() common.Address
	Router() common.Address
	PoolManager() common.Address
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Operate(ctx context.Context, pool common.Address, positionID uint64, collateralDelta, debtDelta *big.Int) (*types.Transaction, error)
	OpenOrAddPosition(ctx context.Context, params chain.ConvertParams, pool common.Address, positionID uint64, minOut *big.Int, data []byte) (*types.Transaction, error)
	NextPositionID(ctx context.Context) (uint64, error)
	GetPosition(ctx context.Context, pool common.Address, positionID uint64) (chain.PositionState, error)
	DiscoverPositionIDs(ctx context.Context, owner common.Address) ([]uint64, error)
	WaitMined(ctx context.Context, txHash common.Hash) (*domain.TxOutcome, error)
}

// FlashLoanChain is the chain surface of the flash loan flow.
type FlashLoanChain interface {
	Sender() common.Address
	HasCode(ctx context.Context, addr common.Address) (bool, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	FlashLoanPremiumBps(ctx context.Context) (int64, error)
	FlashLoanSimple(ctx context.Context, receiver, asset common.Address, amount *big.Int, params []byte, referralCode uint16) (*types.Transaction, error)
	WaitMined(ctx context.Context, txHash common.Hash) (*domain.TxOutcome, error)
}

// AdminChain is the chain surface of the role-gated setters and pool reads.
type AdminChain interface {
	Sender() common.Address
	HasRole(ctx context.Context, role [32]byte, account common.Address) (bool, error)
	UpdateRateProvider(ctx context.Context, token, provider common.Address) (*types.Transaction, error)
	UpdatePoolCapacity(ctx context.Context, pool common.Address, collateralCap, debtCap *big.Int) (*types.Transaction, error)
	GetPoolInfo(ctx context.Context, pool common.Address) (domain.PoolInfo, error)
	TokenRates(ctx context.Context, token common.Address) (chain.TokenRate, error)
	WaitMined(ctx context.Context, txHash common.Hash) (*domain.TxOutcome, error)
}

var (
	_ ApprovalChain  = (*chain.Client)(nil)
	_ PositionChain  = (*chain.Client)(nil)
	_ FlashLoanChain = (*chain.Client)(nil)
	_ AdminChain     = (*chain.Client)(nil)
)
