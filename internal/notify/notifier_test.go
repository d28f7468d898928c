package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinafi/leverbot/internal/domain"
)

type fakeSender struct {
	name  string
	sent  []string
	fail  bool
	count int
}

func (f *fakeSender) Send(_ context.Context, title, _ string) error {
	f.count++
	if f.fail {
		return errors.New("boom")
	}
	f.sent = append(f.sent, title)
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersEvents(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{"action_confirmed"}, testLogger())

	require.NoError(t, n.Notify(context.Background(), "action_submitted", "skip", "x"))
	require.NoError(t, n.Notify(context.Background(), "action_confirmed", "deliver", "x"))

	assert.Equal(t, []string{"deliver"}, s.sent)
}

func TestNotifyEmptyFilterAllowsAll(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, testLogger())

	require.NoError(t, n.Notify(context.Background(), "anything", "t", "m"))
	assert.Len(t, s.sent, 1)
}

func TestDispatchContinuesPastFailedSender(t *testing.T) {
	bad := &fakeSender{name: "bad", fail: true}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.sent, 1)
}

func TestEventForAction(t *testing.T) {
	assert.Equal(t, "action_confirmed", EventForAction(domain.Action{
		Flow: domain.FlowOpen, Status: domain.ActionStatusConfirmed,
	}))
	assert.Equal(t, "flashloan_executed", EventForAction(domain.Action{
		Flow: domain.FlowFlashLoan, Status: domain.ActionStatusConfirmed,
	}))
	assert.Equal(t, "error", EventForAction(domain.Action{
		Flow: domain.FlowOpen, Status: domain.ActionStatusFailed,
	}))
	assert.Equal(t, "action_pending_timeout", EventForAction(domain.Action{
		Flow: domain.FlowOperate, Status: domain.ActionStatusPending,
	}))
}

func TestFormatAction(t *testing.T) {
	title, msg := FormatAction(domain.Action{
		RequestID:        "req-1",
		Wallet:           "0xabc",
		Flow:             domain.FlowOpenLeveraged,
		CollateralToken:  "WRMB",
		CollateralAmount: domain.NewBigInt(big.NewInt(1000)),
		TxHash:           "0xdeadbeef",
		Status:           domain.ActionStatusConfirmed,
	})

	assert.Equal(t, "Leveraged open confirmed", title)
	assert.Contains(t, msg, "req-1")
	assert.Contains(t, msg, "1000 WRMB")
	assert.Contains(t, msg, "0xdeadbeef")
}
