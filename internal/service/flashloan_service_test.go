package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinafi/leverbot/internal/config"
	"github.com/cinafi/leverbot/internal/domain"
)

func newTestFlashLoanService(fc *fakeChain) (*FlashLoanService, *fakeActions) {
	actions := newFakeActions()
	svc := NewFlashLoanService(fc, actions, &fakeGuard{}, &fakeSignalBus{}, &fakeAudit{}, config.Defaults().Chain, testLogger())
	return svc, actions
}

func TestFlashLoanExecuteRejectsBadInput(t *testing.T) {
	svc, _ := newTestFlashLoanService(&fakeChain{})
	ctx := context.Background()

	receiver := "0x1111111111111111111111111111111111111111"

	_, err := svc.Execute(ctx, FlashLoanRequest{RequestID: "r1", Receiver: "nope", Amount: "1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "malformed receiver")

	_, err = svc.Execute(ctx, FlashLoanRequest{RequestID: "r1", Receiver: receiver, Asset: "DOGE", Amount: "1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "unknown asset")

	_, err = svc.Execute(ctx, FlashLoanRequest{RequestID: "r1", Receiver: receiver, Amount: "zero"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "unparseable amount")

	_, err = svc.Execute(ctx, FlashLoanRequest{RequestID: "r1", Receiver: receiver, Amount: "1", Params: "0xzz"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "invalid params hex")
}

func TestFlashLoanPreflightFailureSubmitsNothing(t *testing.T) {
	// The receiver is deployed but holds nothing, so it cannot cover the
	// premium and the loan is guaranteed to revert.
	fc := &fakeChain{hasCode: true, balance: wei("0"), premium: 5}
	svc, actions := newTestFlashLoanService(fc)

	_, err := svc.Execute(context.Background(), FlashLoanRequest{
		RequestID: "r-fee",
		Receiver:  "0x1111111111111111111111111111111111111111",
		Amount:    "10",
	})
	require.ErrorIs(t, err, domain.ErrReceiverPrecheck)
	assert.Contains(t, err.Error(), "below required fee")

	// Failing preflight spends no gas and records no action.
	assert.Zero(t, fc.flashCalls)
	assert.Zero(t, actions.count())
}

func TestFlashLoanExecuteGeneratesRequestID(t *testing.T) {
	fc := &fakeChain{hasCode: true, balance: wei("1000000000000000000"), premium: 5}
	svc, _ := newTestFlashLoanService(fc)

	action, err := svc.Execute(context.Background(), FlashLoanRequest{
		Receiver: "0x1111111111111111111111111111111111111111",
		Amount:   "1",
	})
	require.NoError(t, err)

	_, perr := uuid.Parse(action.RequestID)
	require.NoError(t, perr, "absent request id gets a server-generated uuid")
	assert.Equal(t, domain.ActionStatusConfirmed, action.Status)
	assert.Equal(t, 1, fc.flashCalls)
}

func TestPreflightOK(t *testing.T) {
	pf := Preflight{}
	assert.True(t, pf.OK())

	pf.Errors = append(pf.Errors, "receiver has no deployed code")
	assert.False(t, pf.OK())
}
