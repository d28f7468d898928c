package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/cinafi/leverbot/internal/domain"
	"github.com/cinafi/leverbot/internal/notify"
	"github.com/cinafi/leverbot/internal/service"
)

// EventBridge subscribes to the action channels and forwards lifecycle events
// to the configured notification channels.
type EventBridge struct {
	bus      domain.SignalBus
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewEventBridge creates an EventBridge over the given bus and notifier.
func NewEventBridge(bus domain.SignalBus, notifier *notify.Notifier, logger *slog.Logger) *EventBridge {
	return &EventBridge{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With("component", "event_bridge"),
	}
}

// Run consumes both action channels until the context is cancelled.
func (b *EventBridge) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, channel := range []string{service.ChannelActions, service.ChannelFlashLoans} {
		ch := channel
		g.Go(func() error {
			return b.pump(ctx, ch)
		})
	}
	return g.Wait()
}

func (b *EventBridge) pump(ctx context.Context, channel string) error {
	msgCh, err := b.bus.Subscribe(ctx, channel)
	if err != nil {
		return err
	}
	b.logger.Info("subscribed", "channel", channel)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-msgCh:
			if !ok {
				b.logger.Warn("subscription closed", "channel", channel)
				return nil
			}
			b.handle(ctx, data)
		}
	}
}

// handle dispatches one bus payload. Action payloads carry a request_id;
// everything else (admin updates) carries an explicit event field.
func (b *EventBridge) handle(ctx context.Context, data []byte) {
	var a domain.Action
	if err := json.Unmarshal(data, &a); err == nil && a.RequestID != "" {
		title, message := notify.FormatAction(a)
		if err := b.notifier.Notify(ctx, notify.EventForAction(a), title, message); err != nil {
			b.logger.Warn("notify failed", "request_id", a.RequestID, "err", err)
		}
		return
	}

	var generic struct {
		Event  string `json:"event"`
		Setter string `json:"setter"`
	}
	if err := json.Unmarshal(data, &generic); err != nil || generic.Event == "" {
		return
	}
	title := "Admin update"
	if generic.Setter != "" {
		title = "Admin update: " + generic.Setter
	}
	if err := b.notifier.Notify(ctx, generic.Event, title, string(data)); err != nil {
		b.logger.Warn("notify failed", "event", generic.Event, "err", err)
	}
}
