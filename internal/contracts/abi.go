package contracts

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Method names used across the pricing rounds.
const (
	MethodBondingCurveSupply = "bondingCurveSupply"
	MethodListed             = "listed"
	MethodTotalSupply        = "totalSupply"
	MethodGetPrice           = "getPrice"
	MethodGetReserves        = "getReserves"
	MethodToken0             = "token0"
	MethodGetPair            = "getPair"
)

const curveTokenABIJSON = `[
  {"inputs": [], "name": "bondingCurveSupply", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "listed", "outputs": [{"internalType": "bool", "name": "", "type": "bool"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIJSON = `[
  {"inputs": [], "name": "totalSupply", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const poolABIJSON = `[
  {
    "inputs": [
      {"internalType": "uint256", "name": "supply", "type": "uint256"},
      {"internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "getPrice",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const pairABIJSON = `[
  {
    "inputs": [],
    "name": "getReserves",
    "outputs": [
      {"internalType": "uint112", "name": "reserve0", "type": "uint112"},
      {"internalType": "uint112", "name": "reserve1", "type": "uint112"},
      {"internalType": "uint32", "name": "blockTimestampLast", "type": "uint32"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {"inputs": [], "name": "token0", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"}
]`

const factoryABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "", "type": "address"},
      {"internalType": "address", "name": "", "type": "address"}
    ],
    "name": "getPair",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

type lazyABI struct {
	json   string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.json))
	})
	return l.parsed, l.err
}

var (
	curveTokenABI = &lazyABI{json: curveTokenABIJSON}
	erc20ABI      = &lazyABI{json: erc20ABIJSON}
	poolABI       = &lazyABI{json: poolABIJSON}
	pairABI       = &lazyABI{json: pairABIJSON}
	factoryABI    = &lazyABI{json: factoryABIJSON}
)

// CurveTokenABI returns the bonding-curve token ABI (bondingCurveSupply, listed).
func CurveTokenABI() (abi.ABI, error) { return curveTokenABI.get() }

// ERC20ABI returns the totalSupply-only ERC20 ABI.
func ERC20ABI() (abi.ABI, error) { return erc20ABI.get() }

// PoolABI returns the versioned bonding-curve pool ABI (getPrice).
func PoolABI() (abi.ABI, error) { return poolABI.get() }

// PairABI returns the V2 pair ABI (getReserves, token0).
func PairABI() (abi.ABI, error) { return pairABI.get() }

// FactoryABI returns the V2 factory ABI (getPair).
func FactoryABI() (abi.ABI, error) { return factoryABI.get() }

// ABIFor returns the ABI that declares method.
func ABIFor(method string) (abi.ABI, error) {
	switch method {
	case MethodBondingCurveSupply, MethodListed:
		return CurveTokenABI()
	case MethodTotalSupply:
		return ERC20ABI()
	case MethodGetPrice:
		return PoolABI()
	case MethodGetReserves, MethodToken0:
		return PairABI()
	case MethodGetPair:
		return FactoryABI()
	default:
		return abi.ABI{}, errUnknownMethod(method)
	}
}
