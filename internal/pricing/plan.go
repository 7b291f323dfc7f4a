package pricing

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"tagScope/internal/chain"
	"tagScope/internal/contracts"
	"tagScope/internal/model"
)

// Field is a round-one read that may have failed. A failed read keeps the zero Value.
type Field[T any] struct {
	Value T
	OK    bool
}

func fieldOf[T any](v T) Field[T] {
	return Field[T]{Value: v, OK: true}
}

// BondingCurveInfo is what round one learns about a bonding-curve token.
type BondingCurveInfo struct {
	CurveSupply Field[*big.Int]
	TotalSupply Field[*big.Int]
	Listed      Field[bool]
	Pair        Field[common.Address]
}

// DEXListed reports whether the token has migrated to a live pair.
func (i BondingCurveInfo) DEXListed() bool {
	return i.Listed.Value && i.Pair.Value != (common.Address{})
}

func (i BondingCurveInfo) curveSupply() *big.Int {
	if i.CurveSupply.OK && i.CurveSupply.Value != nil {
		return i.CurveSupply.Value
	}
	return new(big.Int)
}

// Round one reads, per token, in this order.
const (
	readCurveSupply = iota
	readListed
	readPair
	readTotalSupply
	roundOneReads
)

func planRoundOne(tokens []CurveToken, d contracts.Deployment) ([]chain.Call, error) {
	calls := make([]chain.Call, 0, len(tokens)*roundOneReads)
	for _, t := range tokens {
		batch := make([]chain.Call, roundOneReads)
		var err error
		if batch[readCurveSupply], err = contracts.BondingCurveSupplyCall(t.Address); err != nil {
			return nil, err
		}
		if batch[readListed], err = contracts.ListedCall(t.Address); err != nil {
			return nil, err
		}
		if batch[readPair], err = contracts.GetPairCall(d.Factory, t.Address, d.WrappedNative); err != nil {
			return nil, err
		}
		if batch[readTotalSupply], err = contracts.TotalSupplyCall(t.Address); err != nil {
			return nil, err
		}
		calls = append(calls, batch...)
	}
	return calls, nil
}

func decodeRoundOne(tokens []CurveToken, results []chain.Result, logger *zap.Logger) ([]BondingCurveInfo, error) {
	if err := checkResults(len(tokens)*roundOneReads, results); err != nil {
		return nil, err
	}
	infos := make([]BondingCurveInfo, len(tokens))
	for i, t := range tokens {
		rs := results[i*roundOneReads : (i+1)*roundOneReads]
		info := &infos[i]
		if data, ok := success(rs[readCurveSupply]); ok {
			if v, err := contracts.UnpackUint256(contracts.MethodBondingCurveSupply, data); err == nil {
				info.CurveSupply = fieldOf(v)
			} else {
				logger.Debug("decode curve supply failed", zap.String("token", t.Key), zap.Error(err))
			}
		}
		if data, ok := success(rs[readListed]); ok {
			if v, err := contracts.UnpackBool(contracts.MethodListed, data); err == nil {
				info.Listed = fieldOf(v)
			} else {
				logger.Debug("decode listed failed", zap.String("token", t.Key), zap.Error(err))
			}
		}
		if data, ok := success(rs[readPair]); ok {
			if v, err := contracts.UnpackAddress(contracts.MethodGetPair, data); err == nil {
				info.Pair = fieldOf(v)
			} else {
				logger.Debug("decode pair failed", zap.String("token", t.Key), zap.Error(err))
			}
		}
		if data, ok := success(rs[readTotalSupply]); ok {
			if v, err := contracts.UnpackUint256(contracts.MethodTotalSupply, data); err == nil {
				info.TotalSupply = fieldOf(v)
			} else {
				logger.Debug("decode total supply failed", zap.String("token", t.Key), zap.Error(err))
			}
		}
	}
	return infos, nil
}

// roundOneSupplies emits the total supply of every token whose read succeeded.
func roundOneSupplies(tokens []CurveToken, infos []BondingCurveInfo) map[string]float64 {
	out := make(map[string]float64, len(tokens))
	for i, t := range tokens {
		if infos[i].TotalSupply.OK {
			out[t.Key] = contracts.FromWei(infos[i].TotalSupply.Value)
		}
	}
	return out
}

// Price path chosen for a token in round two.
type pricePath int

const (
	pathCurve pricePath = iota
	pathDEX
)

func (p pricePath) String() string {
	if p == pathDEX {
		return "dex"
	}
	return "curve"
}

type roundTwoStep struct {
	Token  CurveToken
	Path   pricePath
	Pair   common.Address
	Offset int
}

type roundTwoPlan struct {
	Calls []chain.Call
	Steps []roundTwoStep
}

func planRoundTwo(tokens []CurveToken, infos []BondingCurveInfo, d contracts.Deployment) (roundTwoPlan, error) {
	if len(tokens) != len(infos) {
		return roundTwoPlan{}, fmt.Errorf("round two: %d tokens but %d round-one records", len(tokens), len(infos))
	}
	var plan roundTwoPlan
	for i, t := range tokens {
		step := roundTwoStep{Token: t, Offset: len(plan.Calls)}
		if infos[i].DEXListed() {
			step.Path = pathDEX
			step.Pair = infos[i].Pair.Value
			reserves, err := contracts.GetReservesCall(step.Pair)
			if err != nil {
				return roundTwoPlan{}, err
			}
			token0, err := contracts.Token0Call(step.Pair)
			if err != nil {
				return roundTwoPlan{}, err
			}
			plan.Calls = append(plan.Calls, reserves, token0)
		} else {
			step.Path = pathCurve
			quote, err := contracts.GetPriceCall(d.VersionPool(t.Version), infos[i].curveSupply(), contracts.OneToken())
			if err != nil {
				return roundTwoPlan{}, err
			}
			plan.Calls = append(plan.Calls, quote)
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan, nil
}

func decodeRoundTwo(plan roundTwoPlan, results []chain.Result, logger *zap.Logger) (map[string]float64, error) {
	if err := checkResults(len(plan.Calls), results); err != nil {
		return nil, err
	}
	prices := make(map[string]float64, len(plan.Steps))
	for _, step := range plan.Steps {
		switch step.Path {
		case pathDEX:
			price, ok := decodeDEXPrice(step.Token.Address, results[step.Offset], results[step.Offset+1])
			if !ok {
				logger.Debug("dex price unavailable", zap.String("token", step.Token.Key), zap.String("pair", step.Pair.Hex()))
				continue
			}
			prices[step.Token.Key] = price
		default:
			price, ok := decodeCurvePrice(results[step.Offset])
			if !ok {
				logger.Debug("curve price unavailable", zap.String("token", step.Token.Key), zap.Int("version", step.Token.Version))
				continue
			}
			prices[step.Token.Key] = price
		}
	}
	return prices, nil
}

func decodeCurvePrice(res chain.Result) (float64, bool) {
	data, ok := success(res)
	if !ok {
		return 0, false
	}
	v, err := contracts.UnpackUint256(contracts.MethodGetPrice, data)
	if err != nil || v.Sign() <= 0 {
		return 0, false
	}
	return contracts.FromWei(v), true
}

// decodeDEXPrice prices token in the pair's other asset: other reserve over
// the token's own reserve, oriented by token0.
func decodeDEXPrice(token common.Address, reservesRes, token0Res chain.Result) (float64, bool) {
	reservesData, ok := success(reservesRes)
	if !ok {
		return 0, false
	}
	token0Data, ok := success(token0Res)
	if !ok {
		return 0, false
	}
	reserves, err := contracts.UnpackReserves(reservesData)
	if err != nil {
		return 0, false
	}
	token0, err := contracts.UnpackAddress(contracts.MethodToken0, token0Data)
	if err != nil {
		return 0, false
	}
	return PriceFromReserves(token, token0, reserves)
}

// PriceFromReserves returns the spot price of token given the pair's token0 and reserves.
// It reports false when either reserve is zero, so an empty pool reads as unknown.
func PriceFromReserves(token, token0 common.Address, reserves contracts.Reserves) (float64, bool) {
	own, other := reserves.Reserve1, reserves.Reserve0
	if token0 == token {
		own, other = reserves.Reserve0, reserves.Reserve1
	}
	if own == nil || own.Sign() <= 0 || other == nil || other.Sign() <= 0 {
		return 0, false
	}
	price, ok := contracts.Ratio(other, own)
	if !ok || price <= 0 {
		return 0, false
	}
	return price, true
}

// Import reads, per token, in this order. Total supply is only planned when requested.
const (
	readReserves = iota
	readToken0
	readImportSupply
)

func importReads(withSupply bool) int {
	if withSupply {
		return 3
	}
	return 2
}

func planImport(tokens []ImportToken, withSupply bool) ([]chain.Call, error) {
	calls := make([]chain.Call, 0, len(tokens)*importReads(withSupply))
	for _, t := range tokens {
		reserves, err := contracts.GetReservesCall(t.Pair)
		if err != nil {
			return nil, err
		}
		token0, err := contracts.Token0Call(t.Pair)
		if err != nil {
			return nil, err
		}
		calls = append(calls, reserves, token0)
		if withSupply {
			supply, err := contracts.TotalSupplyCall(t.Address)
			if err != nil {
				return nil, err
			}
			calls = append(calls, supply)
		}
	}
	return calls, nil
}

func decodeImport(tokens []ImportToken, results []chain.Result, withSupply bool, logger *zap.Logger) (model.PriceSet, error) {
	stride := importReads(withSupply)
	if err := checkResults(len(tokens)*stride, results); err != nil {
		return model.PriceSet{}, err
	}
	out := model.NewPriceSet()
	for i, t := range tokens {
		rs := results[i*stride : (i+1)*stride]
		// Without both pair reads the token is skipped entirely.
		if !rs[readReserves].Success || !rs[readToken0].Success {
			logger.Debug("pair reads failed", zap.String("token", t.Key), zap.String("pair", t.Pair.Hex()))
			continue
		}
		if price, ok := decodeDEXPrice(t.Address, rs[readReserves], rs[readToken0]); ok {
			out.Prices[t.Key] = price
		} else {
			logger.Debug("pair price unavailable", zap.String("token", t.Key), zap.String("pair", t.Pair.Hex()))
		}
		if !withSupply {
			continue
		}
		if data, ok := success(rs[readImportSupply]); ok {
			if v, err := contracts.UnpackUint256(contracts.MethodTotalSupply, data); err == nil {
				out.Supplies[t.Key] = contracts.FromWei(v)
			}
		}
	}
	return out, nil
}

func planSupplies(tokens []SupplyToken) ([]chain.Call, error) {
	calls := make([]chain.Call, 0, len(tokens))
	for _, t := range tokens {
		call, err := contracts.TotalSupplyCall(t.Address)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, nil
}

func decodeSupplies(tokens []SupplyToken, results []chain.Result, logger *zap.Logger) (map[string]float64, error) {
	if err := checkResults(len(tokens), results); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(tokens))
	for i, t := range tokens {
		data, ok := success(results[i])
		if !ok {
			logger.Debug("total supply read failed", zap.String("token", t.Key))
			continue
		}
		v, err := contracts.UnpackUint256(contracts.MethodTotalSupply, data)
		if err != nil {
			logger.Debug("decode total supply failed", zap.String("token", t.Key), zap.Error(err))
			continue
		}
		out[t.Key] = contracts.FromWei(v)
	}
	return out, nil
}

func success(res chain.Result) ([]byte, bool) {
	if !res.Success || len(res.Data) == 0 {
		return nil, false
	}
	return res.Data, true
}

func checkResults(want int, results []chain.Result) error {
	if len(results) != want {
		return fmt.Errorf("%w: want %d got %d", chain.ErrLengthMismatch, want, len(results))
	}
	return nil
}
