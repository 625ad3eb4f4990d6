package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"swapquote/internal/aggregator"
	"swapquote/internal/aggregator/aggregatortest"
	"swapquote/internal/api"
	"swapquote/internal/chain"
	"swapquote/internal/currency"
	"swapquote/internal/leaderboard"
	"swapquote/internal/logger"
	"swapquote/internal/quote"
)

var (
	baseChain, _ = chain.ByID(chain.Base)
	usdc         = currency.New("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", "USD Coin", "USDC", 6)
	trader       = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

type staticSource struct {
	entries []leaderboard.Entry
	err     error
}

func (s staticSource) Leaderboard(context.Context, uint64) ([]leaderboard.Entry, error) {
	return s.entries, s.err
}

func (s staticSource) UserVolume(_ context.Context, _ uint64, addr common.Address) (leaderboard.Volume, error) {
	return leaderboard.Volume{Address: addr, VolumeUSD: 1234.5, Trades: 3}, s.err
}

func newServer(t *testing.T, aggs []aggregator.Aggregator, board api.Leaderboard) http.Handler {
	t.Helper()
	svc := quote.NewService(baseChain, aggs, nil, logger.Nop())
	return api.NewServer(api.Config{}, []api.Quotes{svc}, board, logger.Nop()).Handler()
}

func defaultAggs() []aggregator.Aggregator {
	prices := currency.Prices{}
	prices.Set(usdc.Address, 1)
	prices.Set(currency.Native, 3000)
	return []aggregator.Aggregator{
		&aggregatortest.Fake{FakeName: "Small", Catalog: []currency.Currency{usdc}, PriceMap: prices, AmountOut: big.NewInt(1_000_000)},
		&aggregatortest.Fake{FakeName: "Large", Catalog: []currency.Currency{usdc}, AmountOut: big.NewInt(2_000_000)},
	}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := get(t, newServer(t, nil, nil), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestChainParam(t *testing.T) {
	t.Parallel()

	h := newServer(t, defaultAggs(), nil)
	require.Equal(t, http.StatusBadRequest, get(t, h, "/api/chains/base/currencies").Code)
	require.Equal(t, http.StatusNotFound, get(t, h, "/api/chains/1/currencies").Code)
}

func TestCurrencies(t *testing.T) {
	t.Parallel()

	rec := get(t, newServer(t, defaultAggs(), nil), "/api/chains/8453/currencies")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Currencies []currency.Currency `json:"currencies"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Currencies, 2)
	require.Equal(t, "ETH", body.Currencies[0].Symbol)
	require.Equal(t, "USDC", body.Currencies[1].Symbol)
}

func TestPrices(t *testing.T) {
	t.Parallel()

	rec := get(t, newServer(t, defaultAggs(), nil), "/api/chains/8453/prices")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Prices map[string]float64 `json:"prices"`
	}
	decode(t, rec, &body)
	require.Equal(t, 3000.0, body.Prices[currency.Native.Hex()])
}

func TestQuote(t *testing.T) {
	t.Parallel()

	// Arrange
	h := newServer(t, defaultAggs(), nil)

	// Act
	rec := get(t, h, "/api/chains/8453/quote?in=0x0000000000000000000000000000000000000000&out="+usdc.Key()+"&amount=1000000000000000000")

	// Assert
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Best struct {
			Aggregator      string  `json:"aggregator"`
			AmountIn        string  `json:"amountIn"`
			AmountOut       string  `json:"amountOut"`
			NetAmountOutUSD float64 `json:"netAmountOutUsd"`
		} `json:"best"`
		All     []json.RawMessage `json:"all"`
		Ranking string            `json:"ranking"`
	}
	decode(t, rec, &body)
	require.Equal(t, "Large", body.Best.Aggregator)
	require.Equal(t, "1000000000000000000", body.Best.AmountIn)
	require.Equal(t, "2000000", body.Best.AmountOut)
	require.InDelta(t, 2.0, body.Best.NetAmountOutUSD, 1e-9)
	require.Len(t, body.All, 2)
	require.Equal(t, "usd", body.Ranking)
}


// catalogCounter counts catalog reads across concurrent requests.
type catalogCounter struct {
	aggregatortest.Fake
	reads atomic.Int32
}

func (c *catalogCounter) Currencies(ctx context.Context) ([]currency.Currency, error) {
	c.reads.Add(1)
	return c.Fake.Currencies(ctx)
}

func TestQuote_ReadsCatalogOncePerRequest(t *testing.T) {
	t.Parallel()

	// Arrange
	weth := currency.New("0x4200000000000000000000000000000000000006", "Wrapped Ether", "WETH", 18)
	agg := &catalogCounter{Fake: aggregatortest.Fake{
		FakeName: "Only", Catalog: []currency.Currency{usdc, weth}, AmountOut: big.NewInt(5),
	}}
	h := newServer(t, []aggregator.Aggregator{agg}, nil)

	// Act: both sides of the pair are catalog tokens.
	rec := get(t, h, "/api/chains/8453/quote?in="+weth.Key()+"&out="+usdc.Key()+"&amount=1000")

	// Assert
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, int32(1), agg.reads.Load())
}
func TestQuote_BadInput(t *testing.T) {
	t.Parallel()

	h := newServer(t, defaultAggs(), nil)
	native := currency.Native.Hex()
	tests := map[string]string{
		"missing in":     "out=" + usdc.Key() + "&amount=1",
		"same tokens":    "in=" + native + "&out=" + native + "&amount=1",
		"zero amount":    "in=" + native + "&out=" + usdc.Key() + "&amount=0",
		"decimal amount": "in=" + native + "&out=" + usdc.Key() + "&amount=1.5",
		"slippage":       "in=" + native + "&out=" + usdc.Key() + "&amount=1&slippage=101",
		"gas price":      "in=" + native + "&out=" + usdc.Key() + "&amount=1&gasPrice=abc",
		"user":           "in=" + native + "&out=" + usdc.Key() + "&amount=1&user=0x12",
		"unknown token":  "in=" + native + "&out=0x1111111111111111111111111111111111111111&amount=1",
	}
	for name, query := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			rec := get(t, h, "/api/chains/8453/quote?"+query)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestQuote_NoQuotes(t *testing.T) {
	t.Parallel()

	aggs := []aggregator.Aggregator{
		&aggregatortest.Fake{FakeName: "Down", Catalog: []currency.Currency{usdc}, Err: errors.New("boom")},
	}
	rec := get(t, newServer(t, aggs, nil), "/api/chains/8453/quote?in="+currency.Native.Hex()+"&out="+usdc.Key()+"&amount=1")

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.JSONEq(t, `{"error":"no quotes available"}`, rec.Body.String())
}

func TestQuote_ForwardsUser(t *testing.T) {
	t.Parallel()

	fake := &aggregatortest.Fake{
		FakeName:  "Exec",
		Catalog:   []currency.Currency{usdc},
		AmountOut: big.NewInt(5),
		Tx:        &aggregator.Transaction{To: common.HexToAddress("0x0000000000000000000000000000000000000bee")},
	}
	h := newServer(t, []aggregator.Aggregator{fake}, nil)

	rec := get(t, h, "/api/chains/8453/quote?in="+currency.Native.Hex()+"&out="+usdc.Key()+"&amount=7&slippage=1&gasPrice=100&user="+trader.Hex())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"transaction"`)
	require.NotNil(t, fake.LastRequest)
	require.Equal(t, trader, *fake.LastRequest.User)
	require.Equal(t, 1.0, fake.LastRequest.SlippageLimitPercent)
	require.Equal(t, int64(100), fake.LastRequest.GasPrice.Int64())
}

func TestLeaderboard(t *testing.T) {
	t.Parallel()

	src := staticSource{entries: []leaderboard.Entry{{Rank: 1, Address: trader, PnLUSD: 10, VolumeUSD: 100, Trades: 2}}}
	board := leaderboard.NewService(src, nil, leaderboard.TTL, logger.Nop())
	h := newServer(t, defaultAggs(), board)

	rec := get(t, h, "/api/chains/8453/leaderboard")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "public, max-age=60, stale-while-revalidate=30", rec.Header().Get("Cache-Control"))

	var body struct {
		Leaderboard []leaderboard.Entry `json:"leaderboard"`
	}
	decode(t, rec, &body)
	require.Equal(t, src.entries, body.Leaderboard)
}

func TestUserVolume(t *testing.T) {
	t.Parallel()

	board := leaderboard.NewService(staticSource{}, nil, leaderboard.TTL, logger.Nop())
	h := newServer(t, defaultAggs(), board)

	require.Equal(t, http.StatusBadRequest, get(t, h, "/api/chains/8453/users/nope/volume").Code)

	rec := get(t, h, "/api/chains/8453/users/"+trader.Hex()+"/volume")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Cache-Control"))
	var v leaderboard.Volume
	decode(t, rec, &v)
	require.Equal(t, trader, v.Address)
	require.Equal(t, int64(3), v.Trades)
}

func TestLeaderboard_Errors(t *testing.T) {
	t.Parallel()

	h := newServer(t, defaultAggs(), nil)
	require.Equal(t, http.StatusServiceUnavailable, get(t, h, "/api/chains/8453/leaderboard").Code)

	failing := leaderboard.NewService(staticSource{err: errors.New("db down")}, nil, leaderboard.TTL, logger.Nop())
	rec := get(t, newServer(t, defaultAggs(), failing), "/api/chains/8453/leaderboard")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	h := newServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/chains/8453/quote", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
