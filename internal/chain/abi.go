package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract ABIs, limited to the functions this service calls.

const erc20ABIJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"name":"name","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

const poolManagerABIJSON = `[
	{"name":"operate","type":"function","stateMutability":"nonpayable","inputs":[{"name":"pool","type":"address"},{"name":"positionId","type":"uint256"},{"name":"collateralAmount","type":"int256"},{"name":"debtAmount","type":"int256"}],"outputs":[]},
	{"name":"nextPositionId","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"getPosition","type":"function","stateMutability":"view","inputs":[{"name":"pool","type":"address"},{"name":"positionId","type":"uint256"}],"outputs":[{"name":"collateral","type":"uint256"},{"name":"debt","type":"uint256"}]},
	{"name":"getPoolInfo","type":"function","stateMutability":"view","inputs":[{"name":"pool","type":"address"}],"outputs":[{"name":"collateralCapacity","type":"uint256"},{"name":"debtCapacity","type":"uint256"},{"name":"gauge","type":"address"},{"name":"rewarder","type":"address"}]},
	{"name":"hasRole","type":"function","stateMutability":"view","inputs":[{"name":"role","type":"bytes32"},{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"updateRateProvider","type":"function","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"rateProvider","type":"address"}],"outputs":[]},
	{"name":"tokenRates","type":"function","stateMutability":"view","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"rate","type":"uint256"},{"name":"provider","type":"address"}]},
	{"name":"updatePoolCapacity","type":"function","stateMutability":"nonpayable","inputs":[{"name":"pool","type":"address"},{"name":"collateralCapacity","type":"uint256"},{"name":"debtCapacity","type":"uint256"}],"outputs":[]}
]`

const routerABIJSON = `[
	{"name":"openOrAddPositionFlashLoanV2","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"convertParams","type":"tuple","components":[
			{"name":"tokenIn","type":"address"},
			{"name":"amount","type":"uint256"},
			{"name":"target","type":"address"},
			{"name":"data","type":"bytes"}
		]},
		{"name":"pool","type":"address"},
		{"name":"positionId","type":"uint256"},
		{"name":"minOut","type":"uint256"},
		{"name":"data","type":"bytes"}
	],"outputs":[]},
	{"name":"closeOrRemovePositionFlashLoanV2","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"convertParams","type":"tuple","components":[
			{"name":"tokenIn","type":"address"},
			{"name":"amount","type":"uint256"},
			{"name":"target","type":"address"},
			{"name":"data","type":"bytes"}
		]},
		{"name":"positionId","type":"uint256"},
		{"name":"pool","type":"address"},
		{"name":"amountOut","type":"uint256"},
		{"name":"minOut","type":"uint256"},
		{"name":"data","type":"bytes"}
	],"outputs":[]},
	{"name":"getPosition","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"rawColls","type":"uint256"},{"name":"rawDebts","type":"uint256"}]},
	{"name":"getPositionDebtRatio","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"debtRatio","type":"uint256"}]},
	{"name":"getNextPositionId","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint32"}]}
]`

const lendingPoolABIJSON = `[
	{"name":"flashLoanSimple","type":"function","stateMutability":"nonpayable","inputs":[{"name":"receiverAddress","type":"address"},{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"params","type":"bytes"},{"name":"referralCode","type":"uint16"}],"outputs":[]},
	{"name":"FLASHLOAN_PREMIUM_TOTAL","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint128"}]}
]`

var (
	erc20ABI       abi.ABI
	poolManagerABI abi.ABI
	routerABI      abi.ABI
	lendingPoolABI abi.ABI
)

func init() {
	erc20ABI = mustParseABI("erc20", erc20ABIJSON)
	poolManagerABI = mustParseABI("pool manager", poolManagerABIJSON)
	routerABI = mustParseABI("router", routerABIJSON)
	lendingPoolABI = mustParseABI("lending pool", lendingPoolABIJSON)
}

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("chain: parsing " + name + " abi: " + err.Error())
	}
	return parsed
}
