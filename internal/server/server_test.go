package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"

	"tagScope/internal/feedapi"
	"tagScope/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePricer struct {
	err       error
	got       []model.TokenDescriptor
	supplyHit bool
}

func (f *fakePricer) ResolvePrices(_ context.Context, descs []model.TokenDescriptor) (map[string]float64, error) {
	f.got = descs
	if f.err != nil {
		return nil, f.err
	}
	return map[string]float64{"0xaa": 0.02}, nil
}

func (f *fakePricer) ResolvePricesAndSupplies(_ context.Context, descs []model.TokenDescriptor) (model.PriceSet, error) {
	f.got = descs
	f.supplyHit = true
	if f.err != nil {
		return model.PriceSet{}, f.err
	}
	set := model.NewPriceSet()
	set.Prices["0xaa"] = 0.02
	set.Supplies["0xaa"] = 4
	return set, nil
}

func (f *fakePricer) ResolveSupplies(_ context.Context, descs []model.TokenDescriptor) (map[string]float64, error) {
	f.got = descs
	if f.err != nil {
		return nil, f.err
	}
	return map[string]float64{"0xaa": 4}, nil
}

type fakeSnapshots struct {
	sort  feedapi.Sort
	first int
}

func (f *fakeSnapshots) MarketCaps(_ context.Context, sort feedapi.Sort, first, _ int) ([]model.MarketCapRecord, error) {
	f.sort, f.first = sort, first
	return []model.MarketCapRecord{{Tick: "CLAW", Token: "0xaa", SnapshotAt: time.Unix(0, 0).UTC()}}, nil
}

func (f *fakeSnapshots) AgentRewards(_ context.Context, first, _ int) ([]model.AgentRewardTotal, error) {
	f.first = first
	return []model.AgentRewardTotal{{AgentID: "a1"}}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestPricesWithoutSupply(t *testing.T) {
	pricer := &fakePricer{}
	h := New(pricer, nil, nil, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/prices", `{"tokens":[{"token":"0xaa","version":3},{"token":"0xbb","isImport":true,"pair":"0xcc"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, pricer.supplyHit)
	require.Len(t, pricer.got, 2)
	require.Equal(t, model.VersionOf(3), pricer.got[0].Version)
	require.Equal(t, "0xcc", pricer.got[1].PairAddress)

	out := decode(t, rec)
	require.Equal(t, map[string]interface{}{"0xaa": 0.02}, out["prices"])
	require.NotContains(t, out, "supplies")
}

func TestPricesWithSupply(t *testing.T) {
	pricer := &fakePricer{}
	h := New(pricer, nil, nil, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/prices", `{"tokens":[{"token":"0xaa"}],"withSupply":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, pricer.supplyHit)
	out := decode(t, rec)
	require.Equal(t, map[string]interface{}{"0xaa": 4.0}, out["supplies"])
}

func TestPricesBadBody(t *testing.T) {
	h := New(&fakePricer{}, nil, nil, nil)
	rec := do(t, h, http.MethodPost, "/api/v1/prices", `{"tokens":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPricesUpstreamFailure(t *testing.T) {
	h := New(&fakePricer{err: errors.New("rpc down")}, nil, nil, nil)
	rec := do(t, h, http.MethodPost, "/api/v1/prices", `{"tokens":[{"token":"0xaa"}]}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, decode(t, rec)["error"], "rpc down")
}

func TestSupplies(t *testing.T) {
	h := New(&fakePricer{}, nil, nil, nil)
	rec := do(t, h, http.MethodPost, "/api/v1/supplies", `{"tokens":[{"token":"0xaa"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]interface{}{"0xaa": 4.0}, decode(t, rec)["supplies"])
}

func TestMarketCapsQuery(t *testing.T) {
	snaps := &fakeSnapshots{}
	h := New(&fakePricer{}, snaps, []string{"https://tagai.fun"}, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/communities/marketcaps?sort=trending&page=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, feedapi.SortTrending, snaps.sort)
	require.Equal(t, 3, snaps.first)

	rec = do(t, h, http.MethodGet, "/api/v1/communities/marketcaps?sort=oldest", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/communities/marketcaps?page=0", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgentRewardsDefaultsToFirstPage(t *testing.T) {
	snaps := &fakeSnapshots{}
	h := New(&fakePricer{}, snaps, nil, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/agents/rewards", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, snaps.first)
	require.Len(t, decode(t, rec)["agents"], 1)
}

func TestSnapshotRoutesAbsentWithoutBuilder(t *testing.T) {
	h := New(&fakePricer{}, nil, nil, nil)
	rec := do(t, h, http.MethodGet, "/api/v1/agents/rewards", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	h := New(&fakePricer{}, nil, nil, nil)
	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decode(t, rec)["status"])
}
