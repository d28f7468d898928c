package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinafi/leverbot/internal/domain"
	"github.com/cinafi/leverbot/internal/notify"
)

type fakeSender struct {
	titles   []string
	messages []string
}

func (f *fakeSender) Send(_ context.Context, title, message string) error {
	f.titles = append(f.titles, title)
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeSender) Name() string { return "fake" }

func newTestBridge(sender *fakeSender) *EventBridge {
	notifier := notify.NewNotifier([]notify.Sender{sender}, nil, testLogger())
	return NewEventBridge(newFakeBus(), notifier, testLogger())
}

func TestEventBridgeForwardsAction(t *testing.T) {
	sender := &fakeSender{}
	b := newTestBridge(sender)

	payload, err := json.Marshal(domain.Action{
		RequestID: "req-1",
		Wallet:    "0xabc",
		Flow:      domain.FlowOpenLeveraged,
		Status:    domain.ActionStatusConfirmed,
		TxHash:    "0xdeadbeef",
	})
	require.NoError(t, err)

	b.handle(context.Background(), payload)

	require.Len(t, sender.titles, 1)
	assert.Equal(t, "Leveraged open confirmed", sender.titles[0])
	assert.Contains(t, sender.messages[0], "req-1")
	assert.Contains(t, sender.messages[0], "0xdeadbeef")
}

func TestEventBridgeForwardsAdminEvent(t *testing.T) {
	sender := &fakeSender{}
	b := newTestBridge(sender)

	b.handle(context.Background(), []byte(`{"event":"admin_updated","setter":"rate_provider","tx_hash":"0x1"}`))

	require.Len(t, sender.titles, 1)
	assert.Equal(t, "Admin update: rate_provider", sender.titles[0])
}

func TestEventBridgeIgnoresGarbage(t *testing.T) {
	sender := &fakeSender{}
	b := newTestBridge(sender)

	b.handle(context.Background(), []byte(`not json`))
	b.handle(context.Background(), []byte(`{"unrelated":true}`))

	assert.Empty(t, sender.titles)
}

func TestEventBridgeRespectsFilter(t *testing.T) {
	sender := &fakeSender{}
	notifier := notify.NewNotifier([]notify.Sender{sender}, []string{"error"}, testLogger())
	b := NewEventBridge(newFakeBus(), notifier, testLogger())

	confirmed, _ := json.Marshal(domain.Action{RequestID: "req-1", Status: domain.ActionStatusConfirmed})
	failed, _ := json.Marshal(domain.Action{RequestID: "req-2", Status: domain.ActionStatusFailed})

	b.handle(context.Background(), confirmed)
	b.handle(context.Background(), failed)

	require.Len(t, sender.titles, 1)
	assert.Contains(t, sender.messages[0], "req-2")
}
