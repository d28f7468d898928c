// Package chain wraps the JSON-RPC connection to the configured network and
// exposes typed bindings for the fixed contract deployment.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/cinafi/leverbot/internal/config"
	"github.com/cinafi/leverbot/internal/domain"
	"github.com/cinafi/leverbot/internal/wallet"
)

// Client is the single RPC connection shared by all services. All reads go
// through eth_call against "latest"; all writes are signed locally and
// submitted as raw transactions.
type Client struct {
	eth    *ethclient.Client
	wallet *wallet.Wallet // nil in read-only modes
	log    *slog.Logger

	router      common.Address
	poolManager common.Address
	lendingPool common.Address

	gasCeiling      uint64
	gasFallback     uint64
	receiptTimeout  time.Duration
	receiptInterval time.Duration
}

// New dials the configured RPC endpoint and verifies the remote chain ID
// matches the configuration. w may be nil for modes that never submit.
func New(ctx context.Context, cfg config.ChainConfig, w *wallet.Wallet, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dialing rpc %s: %w", cfg.RPCURL, err)
	}

	remoteID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: fetching chain id: %w", err)
	}
	if remoteID.Int64() != cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("chain: chain id mismatch: config says %d, rpc says %s", cfg.ChainID, remoteID)
	}

	return &Client{
		eth:             eth,
		wallet:          w,
		log:             logger.With("component", "chain"),
		router:          common.HexToAddress(cfg.Router),
		poolManager:     common.HexToAddress(cfg.PoolManager),
		lendingPool:     common.HexToAddress(cfg.LendingPool),
		gasCeiling:      cfg.GasCeiling,
		gasFallback:     cfg.GasFallback,
		receiptTimeout:  cfg.ReceiptTimeout.Duration,
		receiptInterval: cfg.ReceiptInterval.Duration,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() error {
	c.eth.Close()
	return nil
}

// Sender returns the wallet address used for submissions, or the zero address
// when no wallet is configured.
func (c *Client) Sender() common.Address {
	if c.wallet == nil {
		return common.Address{}
	}
	return c.wallet.Address()
}

// Router returns the position router address.
func (c *Client) Router() common.Address { return c.router }

// PoolManager returns the pool manager address.
func (c *Client) PoolManager() common.Address { return c.poolManager }

// LendingPool returns the flash-loan lending pool address.
func (c *Client) LendingPool() common.Address { return c.lendingPool }

// HasCode reports whether addr has deployed bytecode at the latest block.
func (c *Client) HasCode(ctx context.Context, addr common.Address) (bool, error) {
	code, err := c.eth.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, fmt.Errorf("chain: eth_getCode %s: %w", addr.Hex(), err)
	}
	return len(code) > 0, nil
}

// EthBalance returns the native balance of addr.
func (c *Client) EthBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: eth_getBalance %s: %w", addr.Hex(), err)
	}
	return bal, nil
}

// call packs a view call, executes it against the latest block and unpacks
// the result. An empty return payload maps to domain.ErrMalformedResponse;
// view functions in this deployment never legitimately return no data.
func (c *Client) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	calldata, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: packing %s: %w", method, err)
	}

	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: calldata}, nil)
	if err != nil {
		return nil, classifyCallError(method, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s returned no data", domain.ErrMalformedResponse, method)
	}

	vals, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: unpacking %s: %v", domain.ErrMalformedResponse, method, err)
	}
	return vals, nil
}

// submit signs and sends a state-changing transaction and returns it without
// waiting for inclusion. Gas is estimated against the node with the
// configured fallback when estimation fails, then clamped to the ceiling.
func (c *Client) submit(ctx context.Context, to common.Address, calldata []byte) (*types.Transaction, error) {
	if c.wallet == nil {
		return nil, domain.ErrWalletNotConfigured
	}
	from := c.wallet.Address()

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("chain: fetching nonce: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: suggesting gas price: %w", err)
	}

	estimate, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &to,
		GasPrice: gasPrice,
		Data:     calldata,
	})
	if err != nil {
		// Estimation failing usually means the call would revert; surface
		// that now instead of burning gas on a doomed transaction.
		if classified := classifyCallError("estimate", err); classified != nil {
			if isRevert(classified) {
				return nil, classified
			}
		}
		c.log.Warn("gas estimate failed, using fallback", "to", to.Hex(), "fallback", c.gasFallback, "err", err)
		estimate = c.gasFallback
	}
	gasLimit := clampGas(estimate, c.gasCeiling)

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, calldata)
	signed, err := c.wallet.SignTx(tx)
	if err != nil {
		return nil, err
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, classifySendError(err)
	}

	c.log.Info("transaction sent", "to", to.Hex(), "tx", signed.Hash().Hex(), "gas", gasLimit)
	return signed, nil
}

// clampGas adds a 20% buffer on top of the estimate and caps the result at
// the configured ceiling.
func clampGas(estimate, ceiling uint64) uint64 {
	buffered := estimate + estimate/5
	if ceiling > 0 && buffered > ceiling {
		return ceiling
	}
	return buffered
}

// WaitMined polls for the receipt of txHash until it lands or the configured
// timeout elapses. A timeout maps to domain.ErrReceiptTimeout; the caller
// records the action as pending rather than failed, since the transaction
// may still confirm later.
func (c *Client) WaitMined(ctx context.Context, txHash common.Hash) (*domain.TxOutcome, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.receiptInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(waitCtx, txHash)
		if err == nil {
			outcome := &domain.TxOutcome{
				TxHash:  txHash.Hex(),
				GasUsed: receipt.GasUsed,
				Status:  domain.ActionStatusConfirmed,
			}
			if receipt.BlockNumber != nil {
				outcome.Block = receipt.BlockNumber.Uint64()
			}
			if receipt.Status != types.ReceiptStatusSuccessful {
				outcome.Status = domain.ActionStatusReverted
			}
			return outcome, nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: no receipt for %s after %s", domain.ErrReceiptTimeout, txHash.Hex(), c.receiptTimeout)
		case <-ticker.C:
		}
	}
}
