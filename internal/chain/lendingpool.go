package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/cinafi/leverbot/internal/domain"
)

// FlashLoanSimple submits flashLoanSimple on the lending pool. The pool
// transfers amount of asset to receiver, invokes its executeOperation
// callback and pulls back principal plus premium in the same transaction.
func (c *Client) FlashLoanSimple(ctx context.Context, receiver, asset common.Address, amount *big.Int, params []byte, referralCode uint16) (*types.Transaction, error) {
	if params == nil {
		params = []byte{}
	}
	calldata, err := lendingPoolABI.Pack("flashLoanSimple", receiver, asset, amount, params, referralCode)
	if err != nil {
		return nil, fmt.Errorf("chain: packing flashLoanSimple: %w", err)
	}
	return c.submit(ctx, c.lendingPool, calldata)
}

// FlashLoanPremiumBps reads FLASHLOAN_PREMIUM_TOTAL, the fee rate in basis
// points charged on top of the borrowed principal.
func (c *Client) FlashLoanPremiumBps(ctx context.Context) (int64, error) {
	vals, err := c.call(ctx, c.lendingPool, lendingPoolABI, "FLASHLOAN_PREMIUM_TOTAL")
	if err != nil {
		return 0, err
	}
	n, ok := vals[0].(*big.Int)
	if !ok || n == nil {
		return 0, fmt.Errorf("%w: FLASHLOAN_PREMIUM_TOTAL returned %T", domain.ErrMalformedResponse, vals[0])
	}
	return n.Int64(), nil
}
