package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/cinafi/leverbot/internal/domain"
)

// PositionState is the raw collateral/debt pair reported by the contracts.
type PositionState struct {
	Collateral *big.Int
	Debt       *big.Int
}

// TokenRate is the rate entry the pool manager keeps per collateral token.
type TokenRate struct {
	Rate     *big.Int
	Provider common.Address
}

// Operate submits operate(pool, positionId, collateralDelta, debtDelta) on
// the pool manager. A positionId of zero opens a new position.
func (c *Client) Operate(ctx context.Context, pool common.Address, positionID uint64, collateralDelta, debtDelta *big.Int) (*types.Transaction, error) {
	calldata, err := poolManagerABI.Pack("operate", pool, new(big.Int).SetUint64(positionID), collateralDelta, debtDelta)
	if err != nil {
		return nil, fmt.Errorf("chain: packing operate: %w", err)
	}
	return c.submit(ctx, c.poolManager, calldata)
}

// NextPositionID returns the id the pool manager will assign to the next
// opened position.
func (c *Client) NextPositionID(ctx context.Context) (uint64, error) {
	vals, err := c.call(ctx, c.poolManager, poolManagerABI, "nextPositionId")
	if err != nil {
		return 0, err
	}
	n, err := asBigInt("nextPositionId", vals)
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// GetPosition reads the collateral/debt state of one position.
func (c *Client) GetPosition(ctx context.Context, pool common.Address, positionID uint64) (PositionState, error) {
	vals, err := c.call(ctx, c.poolManager, poolManagerABI, "getPosition", pool, new(big.Int).SetUint64(positionID))
	if err != nil {
		return PositionState{}, err
	}
	if len(vals) != 2 {
		return PositionState{}, fmt.Errorf("%w: getPosition returned %d values", domain.ErrMalformedResponse, len(vals))
	}
	coll, okC := vals[0].(*big.Int)
	debt, okD := vals[1].(*big.Int)
	if !okC || !okD {
		return PositionState{}, fmt.Errorf("%w: getPosition returned %T, %T", domain.ErrMalformedResponse, vals[0], vals[1])
	}
	return PositionState{Collateral: coll, Debt: debt}, nil
}

// GetPoolInfo reads the capacity and reward wiring of a pool.
func (c *Client) GetPoolInfo(ctx context.Context, pool common.Address) (domain.PoolInfo, error) {
	vals, err := c.call(ctx, c.poolManager, poolManagerABI, "getPoolInfo", pool)
	if err != nil {
		return domain.PoolInfo{}, err
	}
	if len(vals) != 4 {
		return domain.PoolInfo{}, fmt.Errorf("%w: getPoolInfo returned %d values", domain.ErrMalformedResponse, len(vals))
	}
	collCap, okA := vals[0].(*big.Int)
	debtCap, okB := vals[1].(*big.Int)
	gauge, okC := vals[2].(common.Address)
	rewarder, okD := vals[3].(common.Address)
	if !okA || !okB || !okC || !okD {
		return domain.PoolInfo{}, fmt.Errorf("%w: getPoolInfo returned unexpected types", domain.ErrMalformedResponse)
	}
	return domain.PoolInfo{
		CollateralCapacity: domain.NewBigInt(collCap),
		DebtCapacity:       domain.NewBigInt(debtCap),
		Gauge:              gauge.Hex(),
		Rewarder:           rewarder.Hex(),
	}, nil
}

// HasRole checks an AccessControl role on the pool manager.
func (c *Client) HasRole(ctx context.Context, role [32]byte, account common.Address) (bool, error) {
	vals, err := c.call(ctx, c.poolManager, poolManagerABI, "hasRole", role, account)
	if err != nil {
		return false, err
	}
	ok, cast := vals[0].(bool)
	if !cast {
		return false, fmt.Errorf("%w: hasRole returned %T", domain.ErrMalformedResponse, vals[0])
	}
	return ok, nil
}

// UpdateRateProvider submits updateRateProvider(token, provider). Passing the
// zero address as provider selects the default fixed rate.
func (c *Client) UpdateRateProvider(ctx context.Context, token, provider common.Address) (*types.Transaction, error) {
	calldata, err := poolManagerABI.Pack("updateRateProvider", token, provider)
	if err != nil {
		return nil, fmt.Errorf("chain: packing updateRateProvider: %w", err)
	}
	return c.submit(ctx, c.poolManager, calldata)
}

// UpdatePoolCapacity submits updatePoolCapacity(pool, collateralCap, debtCap).
func (c *Client) UpdatePoolCapacity(ctx context.Context, pool common.Address, collateralCap, debtCap *big.Int) (*types.Transaction, error) {
	calldata, err := poolManagerABI.Pack("updatePoolCapacity", pool, collateralCap, debtCap)
	if err != nil {
		return nil, fmt.Errorf("chain: packing updatePoolCapacity: %w", err)
	}
	return c.submit(ctx, c.poolManager, calldata)
}

// TokenRates reads the configured rate for a collateral token.
func (c *Client) TokenRates(ctx context.Context, token common.Address) (TokenRate, error) {
	vals, err := c.call(ctx, c.poolManager, poolManagerABI, "tokenRates", token)
	if err != nil {
		return TokenRate{}, err
	}
	if len(vals) != 2 {
		return TokenRate{}, fmt.Errorf("%w: tokenRates returned %d values", domain.ErrMalformedResponse, len(vals))
	}
	rate, okR := vals[0].(*big.Int)
	provider, okP := vals[1].(common.Address)
	if !okR || !okP {
		return TokenRate{}, fmt.Errorf("%w: tokenRates returned %T, %T", domain.ErrMalformedResponse, vals[0], vals[1])
	}
	return TokenRate{Rate: rate, Provider: provider}, nil
}
