package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"tagScope/internal/chain"
)

func errUnknownMethod(method string) error {
	return fmt.Errorf("unknown contract method %q", method)
}

// NewCall packs method with args into a call against target.
func NewCall(target common.Address, method string, args ...interface{}) (chain.Call, error) {
	parsed, err := ABIFor(method)
	if err != nil {
		return chain.Call{}, err
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return chain.Call{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return chain.Call{Target: target, Method: method, Data: data}, nil
}

// BondingCurveSupplyCall reads the curve-internal supply counter of token.
func BondingCurveSupplyCall(token common.Address) (chain.Call, error) {
	return NewCall(token, MethodBondingCurveSupply)
}

// ListedCall reads whether token has migrated to a DEX pair.
func ListedCall(token common.Address) (chain.Call, error) {
	return NewCall(token, MethodListed)
}

// TotalSupplyCall reads the ERC20 total supply of token.
func TotalSupplyCall(token common.Address) (chain.Call, error) {
	return NewCall(token, MethodTotalSupply)
}

// GetPairCall looks up the factory pair for (token, quote).
func GetPairCall(factory, token, quote common.Address) (chain.Call, error) {
	return NewCall(factory, MethodGetPair, token, quote)
}

// GetPriceCall quotes amount tokens on pool at the given curve supply.
func GetPriceCall(pool common.Address, supply, amount *big.Int) (chain.Call, error) {
	return NewCall(pool, MethodGetPrice, supply, amount)
}

// GetReservesCall reads pair reserves.
func GetReservesCall(pair common.Address) (chain.Call, error) {
	return NewCall(pair, MethodGetReserves)
}

// Token0Call reads the pair's first token.
func Token0Call(pair common.Address) (chain.Call, error) {
	return NewCall(pair, MethodToken0)
}

func unpack(method string, data []byte) ([]interface{}, error) {
	parsed, err := ABIFor(method)
	if err != nil {
		return nil, err
	}
	values, err := parsed.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty output", method)
	}
	return values, nil
}

// UnpackUint256 decodes a single uint256 output.
func UnpackUint256(method string, data []byte) (*big.Int, error) {
	values, err := unpack(method, data)
	if err != nil {
		return nil, err
	}
	v, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return v, nil
}

// UnpackBool decodes a single bool output.
func UnpackBool(method string, data []byte) (bool, error) {
	values, err := unpack(method, data)
	if err != nil {
		return false, err
	}
	v, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("%s: unsupported bool type %T", method, values[0])
	}
	return v, nil
}

// UnpackAddress decodes a single address output.
func UnpackAddress(method string, data []byte) (common.Address, error) {
	values, err := unpack(method, data)
	if err != nil {
		return common.Address{}, err
	}
	v, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", method, err)
	}
	return v, nil
}

// Reserves are the two pair reserves; the timestamp is discarded.
type Reserves struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
}

// UnpackReserves decodes getReserves.
func UnpackReserves(data []byte) (Reserves, error) {
	values, err := unpack(MethodGetReserves, data)
	if err != nil {
		return Reserves{}, err
	}
	if len(values) < 2 {
		return Reserves{}, fmt.Errorf("getReserves return size %d", len(values))
	}
	r0, err := asBigInt(values[0])
	if err != nil {
		return Reserves{}, fmt.Errorf("reserve0: %w", err)
	}
	r1, err := asBigInt(values[1])
	if err != nil {
		return Reserves{}, fmt.Errorf("reserve1: %w", err)
	}
	return Reserves{Reserve0: r0, Reserve1: r1}, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
