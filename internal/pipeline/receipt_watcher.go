// Package pipeline contains the background workers: receipt resolution for
// actions left in flight, the notification event bridge, and the cold-storage
// archive loop.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cinafi/leverbot/internal/domain"
	"github.com/cinafi/leverbot/internal/service"
)

// staleAfter is how long an action must sit unchanged before the watcher
// touches it. Fresher actions are still being awaited inline by the service
// that submitted them.
const staleAfter = 2 * time.Minute

// ReceiptWaiter polls for a transaction receipt.
type ReceiptWaiter interface {
	WaitMined(ctx context.Context, txHash common.Hash) (*domain.TxOutcome, error)
}

// ReceiptWatcher resolves actions stuck in submitted or pending_timeout by
// re-polling their receipts. Transactions can land minutes after the inline
// wait gave up, so this is the only path that moves pending_timeout forward.
type ReceiptWatcher struct {
	actions  domain.ActionStore
	receipts ReceiptWaiter
	bus      domain.SignalBus
	interval time.Duration
	logger   *slog.Logger
}

// NewReceiptWatcher creates a ReceiptWatcher that scans every interval.
func NewReceiptWatcher(actions domain.ActionStore, receipts ReceiptWaiter, bus domain.SignalBus, interval time.Duration, logger *slog.Logger) *ReceiptWatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ReceiptWatcher{
		actions:  actions,
		receipts: receipts,
		bus:      bus,
		interval: interval,
		logger:   logger.With("component", "receipt_watcher"),
	}
}

// RunLoop scans immediately and then on every tick until the context is
// cancelled.
func (w *ReceiptWatcher) RunLoop(ctx context.Context) error {
	w.Scan(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Scan(ctx)
		}
	}
}

// Scan runs one pass over unresolved actions. Failures on individual actions
// are logged and skipped; the next pass retries them.
func (w *ReceiptWatcher) Scan(ctx context.Context) {
	for _, status := range []domain.ActionStatus{domain.ActionStatusSubmitted, domain.ActionStatusPending} {
		actions, err := w.actions.ListByStatus(ctx, status, domain.ListOpts{Limit: 100})
		if err != nil {
			w.logger.Error("list unresolved actions failed", "status", string(status), "err", err)
			continue
		}
		for _, a := range actions {
			if a.TxHash == "" {
				continue
			}
			if time.Since(a.UpdatedAt) < staleAfter {
				continue
			}
			w.resolve(ctx, a)
		}
	}
}

func (w *ReceiptWatcher) resolve(ctx context.Context, a domain.Action) {
	outcome, err := w.receipts.WaitMined(ctx, common.HexToHash(a.TxHash))
	if err != nil {
		if errors.Is(err, domain.ErrReceiptTimeout) {
			if a.Status == domain.ActionStatusSubmitted {
				if uerr := w.actions.UpdateStatus(ctx, a.RequestID, domain.ActionStatusPending, a.TxHash); uerr != nil {
					w.logger.Error("mark pending failed", "request_id", a.RequestID, "err", uerr)
					return
				}
				a.Status = domain.ActionStatusPending
				w.publish(ctx, a)
			}
			return
		}
		w.logger.Warn("receipt poll failed", "request_id", a.RequestID, "tx", a.TxHash, "err", err)
		return
	}

	if err := w.actions.UpdateStatus(ctx, a.RequestID, outcome.Status, outcome.TxHash); err != nil {
		w.logger.Error("update action failed", "request_id", a.RequestID, "err", err)
		return
	}
	a.Status = outcome.Status
	a.TxHash = outcome.TxHash
	w.publish(ctx, a)

	w.logger.Info("resolved action",
		"request_id", a.RequestID,
		"status", string(outcome.Status),
		"block", outcome.Block,
	)
}

func (w *ReceiptWatcher) publish(ctx context.Context, a domain.Action) {
	payload, err := json.Marshal(a)
	if err != nil {
		return
	}
	channel := service.ChannelActions
	stream := service.StreamActions
	if a.Flow == domain.FlowFlashLoan {
		channel = service.ChannelFlashLoans
		stream = service.StreamFlashLoans
	}
	if err := w.bus.Publish(ctx, channel, payload); err != nil {
		w.logger.Warn("publish failed", "channel", channel, "err", err)
	}
	if err := w.bus.StreamAppend(ctx, stream, payload); err != nil {
		w.logger.Warn("stream append failed", "stream", stream, "err", err)
	}
}
