package pricing

import (
	"context"
	"errors"
	"math"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tagScope/internal/chain"
	"tagScope/internal/contracts"
	"tagScope/internal/model"
)

var (
	tokenA = common.HexToAddress("0x0000000000000000000000000000000000000AAA")
	tokenB = common.HexToAddress("0x0000000000000000000000000000000000000BBB")
	pairC  = common.HexToAddress("0x0000000000000000000000000000000000000CCC")
	tokenD = common.HexToAddress("0x0000000000000000000000000000000000000DDD")
	pairE  = common.HexToAddress("0x0000000000000000000000000000000000000EEE")
	wbnb   = common.HexToAddress("0x0000000000000000000000000000000000000F00")
)

func testDeployment() contracts.Deployment {
	d := contracts.BSCMainnet()
	d.WrappedNative = wbnb
	return d
}

func key(addr common.Address) string {
	return addressKey(addr)
}

func wei(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), contracts.OneToken())
}

// stubChain answers calls by exact (target, calldata); anything unanswered fails.
type stubChain struct {
	mu      sync.Mutex
	answers map[string][]byte
	reads   int
	calls   []chain.Call
	err     error
}

func newStubChain() *stubChain {
	return &stubChain{answers: make(map[string][]byte)}
}

func callKey(c chain.Call) string {
	return c.Target.Hex() + ":" + common.Bytes2Hex(c.Data)
}

func (s *stubChain) on(t *testing.T, call chain.Call, err error, data []byte) {
	t.Helper()
	require.NoError(t, err)
	s.answers[callKey(call)] = data
}

func (s *stubChain) Read(_ context.Context, calls []chain.Call) ([]chain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	s.calls = append(s.calls, calls...)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]chain.Result, len(calls))
	for i, c := range calls {
		if data, ok := s.answers[callKey(c)]; ok {
			out[i] = chain.Result{Success: true, Data: data}
		}
	}
	return out, nil
}

func (s *stubChain) called(target common.Address, method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Target == target && c.Method == method {
			n++
		}
	}
	return n
}

func packOutput(t *testing.T, method string, values ...interface{}) []byte {
	t.Helper()
	parsed, err := contracts.ABIFor(method)
	require.NoError(t, err)
	data, err := parsed.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return data
}

// curveToken stubs round one for a token that has not migrated.
func (s *stubChain) curveToken(t *testing.T, d contracts.Deployment, token common.Address, curveSupply, totalSupply *big.Int) {
	t.Helper()
	call, err := contracts.BondingCurveSupplyCall(token)
	s.on(t, call, err, packOutput(t, contracts.MethodBondingCurveSupply, curveSupply))
	call, err = contracts.ListedCall(token)
	s.on(t, call, err, packOutput(t, contracts.MethodListed, false))
	call, err = contracts.GetPairCall(d.Factory, token, d.WrappedNative)
	s.on(t, call, err, packOutput(t, contracts.MethodGetPair, common.Address{}))
	call, err = contracts.TotalSupplyCall(token)
	s.on(t, call, err, packOutput(t, contracts.MethodTotalSupply, totalSupply))
}

func (s *stubChain) curvePrice(t *testing.T, pool common.Address, supply, price *big.Int) {
	t.Helper()
	call, err := contracts.GetPriceCall(pool, supply, contracts.OneToken())
	s.on(t, call, err, packOutput(t, contracts.MethodGetPrice, price))
}

func (s *stubChain) pair(t *testing.T, pair, token0 common.Address, r0, r1 *big.Int) {
	t.Helper()
	call, err := contracts.GetReservesCall(pair)
	s.on(t, call, err, packOutput(t, contracts.MethodGetReserves, r0, r1, uint32(1700000000)))
	call, err = contracts.Token0Call(pair)
	s.on(t, call, err, packOutput(t, contracts.MethodToken0, token0))
}

func (s *stubChain) totalSupply(t *testing.T, token common.Address, supply *big.Int) {
	t.Helper()
	call, err := contracts.TotalSupplyCall(token)
	s.on(t, call, err, packOutput(t, contracts.MethodTotalSupply, supply))
}

func TestResolveEmptyInputMakesNoCalls(t *testing.T) {
	stub := newStubChain()
	r := NewResolver(stub, testDeployment(), nil)
	ctx := context.Background()

	for _, descs := range [][]model.TokenDescriptor{nil, {}, {{Address: ""}, {Address: "not-an-address"}}} {
		prices, err := r.ResolvePrices(ctx, descs)
		require.NoError(t, err)
		require.Empty(t, prices)

		set, err := r.ResolvePricesAndSupplies(ctx, descs)
		require.NoError(t, err)
		require.Empty(t, set.Prices)
		require.Empty(t, set.Supplies)

		supplies, err := r.ResolveSupplies(ctx, descs)
		require.NoError(t, err)
		require.Empty(t, supplies)
	}
	require.Equal(t, 0, stub.reads)
}

func TestResolveEndToEnd(t *testing.T) {
	d := testDeployment()
	stub := newStubChain()
	curveSupply := wei(1000)
	stub.curveToken(t, d, tokenA, curveSupply, wei(1_000_000_000))
	stub.curvePrice(t, d.VersionPool(3), curveSupply, big.NewInt(2e16))
	stub.pair(t, pairC, tokenB, wei(50), wei(200))
	stub.totalSupply(t, tokenB, wei(21_000_000))

	r := NewResolver(stub, d, nil)
	descs := []model.TokenDescriptor{
		{Address: tokenA.Hex(), Version: model.VersionOf(3)},
		{Address: tokenB.Hex(), IsImport: true, PairAddress: pairC.Hex()},
	}

	prices, err := r.ResolvePrices(context.Background(), descs)
	require.NoError(t, err)
	require.Equal(t, map[string]float64{key(tokenA): 0.02, key(tokenB): 4}, prices)

	set, err := r.ResolvePricesAndSupplies(context.Background(), descs)
	require.NoError(t, err)
	require.Equal(t, map[string]float64{key(tokenA): 0.02, key(tokenB): 4}, set.Prices)
	require.Equal(t, map[string]float64{key(tokenA): 1_000_000_000, key(tokenB): 21_000_000}, set.Supplies)
}

func TestVersionClampSelectsPool(t *testing.T) {
	cases := []struct {
		name    string
		version model.Version
		pool    int
	}{
		{name: "zero", version: model.VersionOf(0), pool: 1},
		{name: "negative", version: model.VersionOf(-3), pool: 1},
		{name: "too large", version: model.VersionOf(999), pool: 6},
		{name: "absent", version: model.Version{}, pool: 2},
		{name: "not finite", version: model.VersionOf(math.Inf(1)), pool: 2},
		{name: "fractional", version: model.VersionOf(4.8), pool: 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := testDeployment()
			stub := newStubChain()
			stub.curveToken(t, d, tokenA, wei(10), wei(100))
			stub.curvePrice(t, d.VersionPool(tc.pool), wei(10), big.NewInt(5e17))

			prices, err := NewResolver(stub, d, nil).ResolvePrices(context.Background(), []model.TokenDescriptor{
				{Address: tokenA.Hex(), Version: tc.version},
			})
			require.NoError(t, err)
			require.Equal(t, map[string]float64{key(tokenA): 0.5}, prices)
			for v := contracts.MinVersion; v <= contracts.MaxVersion; v++ {
				want := 0
				if v == tc.pool {
					want = 1
				}
				require.Equal(t, want, stub.called(d.VersionPool(v), contracts.MethodGetPrice), "pool %d", v)
			}
		})
	}
}

func TestImportWithoutPairIsDropped(t *testing.T) {
	d := testDeployment()
	stub := newStubChain()
	stub.pair(t, pairE, tokenD, wei(1), wei(2))

	r := NewResolver(stub, d, nil)
	set, err := r.ResolvePricesAndSupplies(context.Background(), []model.TokenDescriptor{
		{Address: tokenB.Hex(), IsImport: true},
		{Address: tokenD.Hex(), IsImport: true, PairAddress: pairE.Hex()},
	})
	require.NoError(t, err)
	require.NotContains(t, set.Prices, key(tokenB))
	require.NotContains(t, set.Supplies, key(tokenB))
	require.Contains(t, set.Prices, key(tokenD))
	for _, c := range stub.calls {
		require.NotEqual(t, tokenB, c.Target, "no read may target the dropped token")
	}
	require.Equal(t, 1, stub.called(pairE, contracts.MethodGetReserves))
}

func TestResolveIsDeterministic(t *testing.T) {
	d := testDeployment()
	stub := newStubChain()
	stub.curveToken(t, d, tokenA, wei(7), wei(70))
	stub.curvePrice(t, d.VersionPool(2), wei(7), big.NewInt(3e15))
	stub.pair(t, pairC, tokenB, wei(3), wei(9))
	stub.totalSupply(t, tokenB, wei(11))

	r := NewResolver(stub, d, nil)
	descs := []model.TokenDescriptor{
		{Address: tokenA.Hex()},
		{Address: tokenB.Hex(), IsImport: true, PairAddress: pairC.Hex()},
	}
	first, err := r.ResolvePricesAndSupplies(context.Background(), descs)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.ResolvePricesAndSupplies(context.Background(), descs)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestReserveOrientation(t *testing.T) {
	cases := []struct {
		name   string
		token0 common.Address
		want   float64
	}{
		{name: "token is token0", token0: tokenB, want: 0.05},
		{name: "token is token1", token0: wbnb, want: 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := newStubChain()
			stub.pair(t, pairC, tc.token0, big.NewInt(100), big.NewInt(5))
			prices, err := NewResolver(stub, testDeployment(), nil).ResolvePrices(context.Background(), []model.TokenDescriptor{
				{Address: tokenB.Hex(), IsImport: true, PairAddress: pairC.Hex()},
			})
			require.NoError(t, err)
			require.InDelta(t, tc.want, prices[key(tokenB)], 1e-12)
		})
	}
}

func TestListedTokenUsesDEXPath(t *testing.T) {
	d := testDeployment()
	stub := newStubChain()
	call, err := contracts.BondingCurveSupplyCall(tokenA)
	stub.on(t, call, err, packOutput(t, contracts.MethodBondingCurveSupply, wei(5)))
	call, err = contracts.ListedCall(tokenA)
	stub.on(t, call, err, packOutput(t, contracts.MethodListed, true))
	call, err = contracts.GetPairCall(d.Factory, tokenA, d.WrappedNative)
	stub.on(t, call, err, packOutput(t, contracts.MethodGetPair, pairC))
	stub.totalSupply(t, tokenA, wei(1000))
	stub.pair(t, pairC, d.WrappedNative, wei(8), wei(2))
	stub.curvePrice(t, d.VersionPool(2), wei(5), big.NewInt(1))

	set, err := NewResolver(stub, d, nil).ResolvePricesAndSupplies(context.Background(), []model.TokenDescriptor{
		{Address: tokenA.Hex()},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]float64{key(tokenA): 4}, set.Prices)
	require.Equal(t, map[string]float64{key(tokenA): 1000}, set.Supplies)
	for v := contracts.MinVersion; v <= contracts.MaxVersion; v++ {
		require.Zero(t, stub.called(d.VersionPool(v), contracts.MethodGetPrice))
	}
}

func TestUnlistedTokenWithPairUsesCurve(t *testing.T) {
	d := testDeployment()
	stub := newStubChain()
	stub.curveToken(t, d, tokenA, wei(5), wei(50))
	// A pair exists but the token has not migrated.
	call, err := contracts.GetPairCall(d.Factory, tokenA, d.WrappedNative)
	stub.on(t, call, err, packOutput(t, contracts.MethodGetPair, pairC))
	stub.curvePrice(t, d.VersionPool(2), wei(5), big.NewInt(1e17))

	prices, err := NewResolver(stub, d, nil).ResolvePrices(context.Background(), []model.TokenDescriptor{
		{Address: tokenA.Hex()},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]float64{key(tokenA): 0.1}, prices)
	require.Zero(t, stub.called(pairC, contracts.MethodGetReserves))
}

func TestPartialRoundTwoFailure(t *testing.T) {
	d := testDeployment()
	stub := newStubChain()
	stub.curveToken(t, d, tokenA, wei(1), wei(10))
	stub.curveToken(t, d, tokenB, wei(2), wei(20))
	stub.curveToken(t, d, tokenD, wei(3), wei(30))
	stub.curvePrice(t, d.VersionPool(2), wei(1), big.NewInt(1e16))
	// No quote for tokenB: its getPrice fails.
	stub.curvePrice(t, d.VersionPool(2), wei(3), big.NewInt(3e16))

	set, err := NewResolver(stub, d, nil).ResolvePricesAndSupplies(context.Background(), []model.TokenDescriptor{
		{Address: tokenA.Hex()},
		{Address: tokenB.Hex()},
		{Address: tokenD.Hex()},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]float64{key(tokenA): 0.01, key(tokenD): 0.03}, set.Prices)
	require.Len(t, set.Supplies, 3)
}

func TestNonPositiveCurvePriceIsOmitted(t *testing.T) {
	d := testDeployment()
	stub := newStubChain()
	stub.curveToken(t, d, tokenA, wei(1), wei(10))
	stub.curvePrice(t, d.VersionPool(2), wei(1), big.NewInt(0))

	prices, err := NewResolver(stub, d, nil).ResolvePrices(context.Background(), []model.TokenDescriptor{{Address: tokenA.Hex()}})
	require.NoError(t, err)
	require.Empty(t, prices)
}

func TestImportSupplyWithoutPrice(t *testing.T) {
	d := testDeployment()
	stub := newStubChain()
	// Token-side reserve is zero: no price, supply still reported.
	stub.pair(t, pairC, tokenB, big.NewInt(0), wei(10))
	stub.totalSupply(t, tokenB, wei(42))
	// tokenD's pair reads fail entirely: nothing is reported.
	stub.totalSupply(t, tokenD, wei(7))

	set, err := NewResolver(stub, d, nil).ResolvePricesAndSupplies(context.Background(), []model.TokenDescriptor{
		{Address: tokenB.Hex(), IsImport: true, PairAddress: pairC.Hex()},
		{Address: tokenD.Hex(), IsImport: true, PairAddress: pairE.Hex()},
	})
	require.NoError(t, err)
	require.Empty(t, set.Prices)
	require.Equal(t, map[string]float64{key(tokenB): 42}, set.Supplies)
}

func TestEmptyBaseReserveIsOmitted(t *testing.T) {
	d := testDeployment()

	t.Run("imported", func(t *testing.T) {
		stub := newStubChain()
		stub.pair(t, pairC, tokenB, big.NewInt(100), big.NewInt(0))
		prices, err := NewResolver(stub, d, nil).ResolvePrices(context.Background(), []model.TokenDescriptor{
			{Address: tokenB.Hex(), IsImport: true, PairAddress: pairC.Hex()},
		})
		require.NoError(t, err)
		require.NotContains(t, prices, key(tokenB))
	})

	t.Run("listed bonding curve", func(t *testing.T) {
		stub := newStubChain()
		call, err := contracts.BondingCurveSupplyCall(tokenA)
		stub.on(t, call, err, packOutput(t, contracts.MethodBondingCurveSupply, wei(5)))
		call, err = contracts.ListedCall(tokenA)
		stub.on(t, call, err, packOutput(t, contracts.MethodListed, true))
		call, err = contracts.GetPairCall(d.Factory, tokenA, d.WrappedNative)
		stub.on(t, call, err, packOutput(t, contracts.MethodGetPair, pairC))
		stub.totalSupply(t, tokenA, wei(1000))
		stub.pair(t, pairC, tokenA, big.NewInt(100), big.NewInt(0))

		set, err := NewResolver(stub, d, nil).ResolvePricesAndSupplies(context.Background(), []model.TokenDescriptor{
			{Address: tokenA.Hex()},
		})
		require.NoError(t, err)
		require.NotContains(t, set.Prices, key(tokenA))
		require.Equal(t, map[string]float64{key(tokenA): 1000}, set.Supplies)
	})
}

func TestPriceFromReservesRejectsEmptySides(t *testing.T) {
	cases := []struct {
		name     string
		reserves contracts.Reserves
	}{
		{name: "token side empty", reserves: contracts.Reserves{Reserve0: big.NewInt(0), Reserve1: big.NewInt(5)}},
		{name: "base side empty", reserves: contracts.Reserves{Reserve0: big.NewInt(100), Reserve1: big.NewInt(0)}},
		{name: "missing reserves", reserves: contracts.Reserves{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := PriceFromReserves(tokenB, tokenB, tc.reserves)
			require.False(t, ok)
		})
	}
}

func TestResolveSuppliesCoversEveryKind(t *testing.T) {
	stub := newStubChain()
	stub.totalSupply(t, tokenA, wei(1))
	stub.totalSupply(t, tokenB, wei(2))
	stub.totalSupply(t, tokenD, wei(3))

	supplies, err := NewResolver(stub, testDeployment(), nil).ResolveSupplies(context.Background(), []model.TokenDescriptor{
		{Address: tokenA.Hex(), Version: model.VersionOf(5)},
		{Address: tokenB.Hex(), IsImport: true, PairAddress: pairC.Hex()},
		{Address: tokenD.Hex(), IsImport: true},
		{Address: tokenA.Hex()},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]float64{key(tokenA): 1, key(tokenB): 2, key(tokenD): 3}, supplies)
	require.Equal(t, 1, stub.reads)
	require.Len(t, stub.calls, 3)
}

func TestBatchFailureIsReturned(t *testing.T) {
	stub := newStubChain()
	stub.err = errors.New("dial tcp: connection refused")

	r := NewResolver(stub, testDeployment(), nil)
	descs := []model.TokenDescriptor{
		{Address: tokenA.Hex()},
		{Address: tokenB.Hex(), IsImport: true, PairAddress: pairC.Hex()},
	}
	_, err := r.ResolvePricesAndSupplies(context.Background(), descs)
	require.ErrorIs(t, err, stub.err)
	_, err = r.ResolveSupplies(context.Background(), descs)
	require.ErrorIs(t, err, stub.err)
}

func TestDecodeRoundOneDistinguishesFailedReads(t *testing.T) {
	tokens := []CurveToken{{Key: key(tokenA), Address: tokenA, Version: 2}}
	results := make([]chain.Result, roundOneReads)
	results[readListed] = chain.Result{Success: true, Data: packOutput(t, contracts.MethodListed, false)}
	results[readTotalSupply] = chain.Result{Success: true, Data: packOutput(t, contracts.MethodTotalSupply, wei(3))}

	infos, err := decodeRoundOne(tokens, results, zap.NewNop())
	require.NoError(t, err)
	info := infos[0]
	require.True(t, info.Listed.OK)
	require.False(t, info.Listed.Value)
	require.False(t, info.CurveSupply.OK)
	require.False(t, info.Pair.OK)
	require.Equal(t, 0, info.curveSupply().Sign())
	require.True(t, info.TotalSupply.OK)
	require.False(t, info.DEXListed())

	plan, err := planRoundTwo(tokens, infos, testDeployment())
	require.NoError(t, err)
	require.Len(t, plan.Calls, 1)
	require.Equal(t, pathCurve, plan.Steps[0].Path)
	require.Equal(t, contracts.MethodGetPrice, plan.Calls[0].Method)
}

func TestDecodeRejectsShortResults(t *testing.T) {
	tokens := []CurveToken{{Key: key(tokenA), Address: tokenA, Version: 2}}
	_, err := decodeRoundOne(tokens, make([]chain.Result, 3), zap.NewNop())
	require.ErrorIs(t, err, chain.ErrLengthMismatch)
}

func TestClassify(t *testing.T) {
	work := Classify([]model.TokenDescriptor{
		{Address: tokenA.Hex(), Version: model.VersionOf(3)},
		{Address: "0x0000000000000000000000000000000000000aaa", IsImport: true, PairAddress: pairC.Hex()},
		{Address: tokenB.Hex(), IsImport: true, PairAddress: pairC.Hex()},
		{Address: tokenD.Hex(), IsImport: true, PairAddress: "bogus"},
		{Version: model.VersionOf(1)},
	})
	require.Equal(t, []CurveToken{{Key: key(tokenA), Address: tokenA, Version: 3}}, work.BondingCurve)
	require.Equal(t, []ImportToken{{Key: key(tokenB), Address: tokenB, Pair: pairC}}, work.Imported)
}

func TestShortAddressCountsAsMissing(t *testing.T) {
	stub := newStubChain()
	prices, err := NewResolver(stub, testDeployment(), nil).ResolvePrices(context.Background(), []model.TokenDescriptor{
		{Address: "0xAAA", Version: model.VersionOf(2)},
		{Address: "0xBBB", IsImport: true, PairAddress: "0xCCC"},
	})
	require.NoError(t, err)
	require.Empty(t, prices)
	require.Zero(t, stub.reads)
}
