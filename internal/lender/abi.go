package lender

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const balancerVaultABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "recipient", "type": "address"},
      {"internalType": "address[]", "name": "tokens", "type": "address[]"},
      {"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"},
      {"internalType": "bytes", "name": "userData", "type": "bytes"}
    ],
    "name": "flashLoan",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

// getReserveData returns a static struct, so its encoding matches a flat output list.
const aavePoolABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "receiverAddress", "type": "address"},
      {"internalType": "address", "name": "asset", "type": "address"},
      {"internalType": "uint256", "name": "amount", "type": "uint256"},
      {"internalType": "bytes", "name": "params", "type": "bytes"},
      {"internalType": "uint16", "name": "referralCode", "type": "uint16"}
    ],
    "name": "flashLoanSimple",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "address", "name": "asset", "type": "address"}],
    "name": "getReserveData",
    "outputs": [
      {"internalType": "uint256", "name": "configuration", "type": "uint256"},
      {"internalType": "uint128", "name": "liquidityIndex", "type": "uint128"},
      {"internalType": "uint128", "name": "currentLiquidityRate", "type": "uint128"},
      {"internalType": "uint128", "name": "variableBorrowIndex", "type": "uint128"},
      {"internalType": "uint128", "name": "currentVariableBorrowRate", "type": "uint128"},
      {"internalType": "uint128", "name": "currentStableBorrowRate", "type": "uint128"},
      {"internalType": "uint40", "name": "lastUpdateTimestamp", "type": "uint40"},
      {"internalType": "uint16", "name": "id", "type": "uint16"},
      {"internalType": "address", "name": "aTokenAddress", "type": "address"},
      {"internalType": "address", "name": "stableDebtTokenAddress", "type": "address"},
      {"internalType": "address", "name": "variableDebtTokenAddress", "type": "address"},
      {"internalType": "address", "name": "interestRateStrategyAddress", "type": "address"},
      {"internalType": "uint128", "name": "accruedToTreasury", "type": "uint128"},
      {"internalType": "uint128", "name": "unbacked", "type": "uint128"},
      {"internalType": "uint128", "name": "isolationModeTotalDebt", "type": "uint128"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	balancerVaultABI     abi.ABI
	balancerVaultABIOnce sync.Once
	balancerVaultABIErr  error

	aavePoolABI     abi.ABI
	aavePoolABIOnce sync.Once
	aavePoolABIErr  error
)

// BalancerVaultABI returns the parsed vault flash loan ABI.
func BalancerVaultABI() (abi.ABI, error) {
	balancerVaultABIOnce.Do(func() {
		balancerVaultABI, balancerVaultABIErr = abi.JSON(strings.NewReader(balancerVaultABIJSON))
	})
	return balancerVaultABI, balancerVaultABIErr
}

// AavePoolABI returns the parsed Aave v3 pool ABI subset.
func AavePoolABI() (abi.ABI, error) {
	aavePoolABIOnce.Do(func() {
		aavePoolABI, aavePoolABIErr = abi.JSON(strings.NewReader(aavePoolABIJSON))
	})
	return aavePoolABI, aavePoolABIErr
}
