package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/cinafi/leverbot/internal/domain"
)

// ConvertParams describes the optional input-token conversion step the
// router performs before funding a position. Leave Target zero and Data
// empty when the collateral goes in unconverted.
type ConvertParams struct {
	TokenIn common.Address
	Amount  *big.Int
	Target  common.Address
	Data    []byte
}

// OpenOrAddPosition submits openOrAddPositionFlashLoanV2 on the router.
// A positionID of zero opens a new position; a non-zero id adds collateral
// and debt to an existing one. minOut is the slippage-protected minimum of
// minted stable.
func (c *Client) OpenOrAddPosition(ctx context.Context, params ConvertParams, pool common.Address, positionID uint64, minOut *big.Int, data []byte) (*types.Transaction, error) {
	if params.Amount == nil {
		params.Amount = big.NewInt(0)
	}
	if params.Data == nil {
		params.Data = []byte{}
	}
	if data == nil {
		data = []byte{}
	}

	calldata, err := routerABI.Pack("openOrAddPositionFlashLoanV2",
		params, pool, new(big.Int).SetUint64(positionID), minOut, data)
	if err != nil {
		return nil, fmt.Errorf("chain: packing openOrAddPositionFlashLoanV2: %w", err)
	}
	return c.submit(ctx, c.router, calldata)
}

// CloseOrRemovePosition submits closeOrRemovePositionFlashLoanV2 on the
// router, unwinding amountOut of collateral from positionID.
func (c *Client) CloseOrRemovePosition(ctx context.Context, params ConvertParams, positionID uint64, pool common.Address, amountOut, minOut *big.Int, data []byte) (*types.Transaction, error) {
	if params.Amount == nil {
		params.Amount = big.NewInt(0)
	}
	if params.Data == nil {
		params.Data = []byte{}
	}
	if data == nil {
		data = []byte{}
	}

	calldata, err := routerABI.Pack("closeOrRemovePositionFlashLoanV2",
		params, new(big.Int).SetUint64(positionID), pool, amountOut, minOut, data)
	if err != nil {
		return nil, fmt.Errorf("chain: packing closeOrRemovePositionFlashLoanV2: %w", err)
	}
	return c.submit(ctx, c.router, calldata)
}

// RouterPosition reads the raw collateral/debt of a router-managed position.
func (c *Client) RouterPosition(ctx context.Context, positionID uint64) (PositionState, error) {
	vals, err := c.call(ctx, c.router, routerABI, "getPosition", new(big.Int).SetUint64(positionID))
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

// PositionDebtRatio reads the current debt ratio of a router position, a
// proxy for its health factor.
func (c *Client) PositionDebtRatio(ctx context.Context, positionID uint64) (*big.Int, error) {
	vals, err := c.call(ctx, c.router, routerABI, "getPositionDebtRatio", new(big.Int).SetUint64(positionID))
	if err != nil {
		return nil, err
	}
	return asBigInt("getPositionDebtRatio", vals)
}

// RouterNextPositionID returns the router's next position id counter.
func (c *Client) RouterNextPositionID(ctx context.Context) (uint64, error) {
	vals, err := c.call(ctx, c.router, routerABI, "getNextPositionId")
	if err != nil {
		return 0, err
	}
	n, ok := vals[0].(uint32)
	if !ok {
		return 0, fmt.Errorf("%w: getNextPositionId returned %T", domain.ErrMalformedResponse, vals[0])
	}
	return uint64(n), nil
}
