package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

func TestPackOperateSelector(t *testing.T) {
	calldata, err := poolManagerABI.Pack("operate",
		common.HexToAddress("0xAb20B978021333091CA307BB09E022Cec26E8608"),
		big.NewInt(0), big.NewInt(1_000), big.NewInt(500))
	require.NoError(t, err)
	assert.Equal(t, selector("operate(address,uint256,int256,int256)"), calldata[:4])
}

func TestPackFlashLoanSimpleSelector(t *testing.T) {
	calldata, err := lendingPoolABI.Pack("flashLoanSimple",
		common.HexToAddress("0x29f2D40B0605204364af54EC677bD022dA425d03"),
		common.HexToAddress("0x29f2D40B0605204364af54EC677bD022dA425d03"),
		big.NewInt(1), []byte{}, uint16(0))
	require.NoError(t, err)
	assert.Equal(t, selector("flashLoanSimple(address,address,uint256,bytes,uint16)"), calldata[:4])
}

func TestPackOpenOrAddPositionSelector(t *testing.T) {
	params := ConvertParams{
		TokenIn: common.HexToAddress("0x795751385c9ab8f832fda7f69a83e3804ee1d7f3"),
		Amount:  big.NewInt(1),
		Data:    []byte{},
	}
	calldata, err := routerABI.Pack("openOrAddPositionFlashLoanV2",
		params, common.HexToAddress("0xAb20B978021333091CA307BB09E022Cec26E8608"),
		big.NewInt(0), big.NewInt(0), []byte{})
	require.NoError(t, err)
	assert.Equal(t,
		selector("openOrAddPositionFlashLoanV2((address,uint256,address,bytes),address,uint256,uint256,bytes)"),
		calldata[:4])
}

func TestPackHasRole(t *testing.T) {
	var role [32]byte // DEFAULT_ADMIN_ROLE is the zero hash
	calldata, err := poolManagerABI.Pack("hasRole", role,
		common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"))
	require.NoError(t, err)
	assert.Equal(t, selector("hasRole(bytes32,address)"), calldata[:4])
	assert.Len(t, calldata, 4+64)
}

func TestRoundTripGetPosition(t *testing.T) {
	// Encode a fake return payload and make sure Unpack yields what the
	// typed accessor expects.
	method := poolManagerABI.Methods["getPosition"]
	out, err := method.Outputs.Pack(big.NewInt(12345), big.NewInt(678))
	require.NoError(t, err)

	vals, err := poolManagerABI.Unpack("getPosition", out)
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.Equal(t, big.NewInt(12345), vals[0].(*big.Int))
	assert.Equal(t, big.NewInt(678), vals[1].(*big.Int))
}
