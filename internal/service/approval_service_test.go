package service

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinafi/leverbot/internal/config"
	"github.com/cinafi/leverbot/internal/domain"
)

func TestEnsureApprovedSkipsWhenAllowanceCovers(t *testing.T) {
	fc := &fakeChain{allowance: wei("1000")}
	svc := NewApprovalService(fc, config.Defaults().Chain, testLogger())

	token := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	spender := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	hash, err := svc.EnsureApproved(context.Background(), token, spender, wei("500"))
	require.NoError(t, err)
	assert.Empty(t, hash, "sufficient allowance sends nothing")
	assert.Empty(t, fc.approveAmounts)
}

func TestEnsureApprovedSubmitsExactAmount(t *testing.T) {
	fc := &fakeChain{allowance: wei("100")}
	svc := NewApprovalService(fc, config.Defaults().Chain, testLogger())

	token := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	spender := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	hash, err := svc.EnsureApproved(context.Background(), token, spender, wei("750"))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	// Exactly one approval, for exactly the requested amount, never unlimited.
	require.Len(t, fc.approveAmounts, 1)
	assert.Equal(t, wei("750"), fc.approveAmounts[0])
}

func TestEnsureApprovedSurfacesRevert(t *testing.T) {
	fc := &fakeChain{outcome: &domain.TxOutcome{Status: domain.ActionStatusReverted}}
	svc := NewApprovalService(fc, config.Defaults().Chain, testLogger())

	token := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	spender := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	hash, err := svc.EnsureApproved(context.Background(), token, spender, wei("10"))
	require.ErrorIs(t, err, domain.ErrContractRevert)
	assert.NotEmpty(t, hash, "the reverted tx hash still comes back for inspection")
}
