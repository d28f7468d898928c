package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/cinafi/leverbot/internal/domain"
)

// BalanceOf returns the ERC-20 balance of owner.
func (c *Client) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	vals, err := c.call(ctx, token, erc20ABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return asBigInt("balanceOf", vals)
}

// Allowance returns the amount spender may currently move from owner.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	vals, err := c.call(ctx, token, erc20ABI, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asBigInt("allowance", vals)
}

// Approve submits an ERC-20 approve(spender, amount) transaction.
func (c *Client) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	calldata, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("chain: packing approve: %w", err)
	}
	return c.submit(ctx, token, calldata)
}

// TokenDecimals returns the token's decimals() value.
func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	vals, err := c.call(ctx, token, erc20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := vals[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: decimals returned %T", domain.ErrMalformedResponse, vals[0])
	}
	return d, nil
}

// TokenSymbol returns the token's symbol() value.
func (c *Client) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	vals, err := c.call(ctx, token, erc20ABI, "symbol")
	if err != nil {
		return "", err
	}
	s, ok := vals[0].(string)
	if !ok {
		return "", fmt.Errorf("%w: symbol returned %T", domain.ErrMalformedResponse, vals[0])
	}
	return s, nil
}

// asBigInt asserts the first unpacked value to *big.Int.
func asBigInt(method string, vals []any) (*big.Int, error) {
	if len(vals) == 0 {
		return nil, fmt.Errorf("%w: %s returned no values", domain.ErrMalformedResponse, method)
	}
	n, ok := vals[0].(*big.Int)
	if !ok || n == nil {
		return nil, fmt.Errorf("%w: %s returned %T", domain.ErrMalformedResponse, method, vals[0])
	}
	return n, nil
}
