package odos_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"swapquote/internal/aggregator"
	"swapquote/internal/aggregator/odos"
	"swapquote/internal/chain"
	"swapquote/internal/currency"
)

var (
	base, _ = chain.ByID(chain.Base)
	router  = common.HexToAddress("0x19cEeAd7105607Cd444F5ad10dd51356436095a1")
	user    = common.HexToAddress("0x000000000000000000000000000000000000bEEF")
	usdc    = currency.New("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", "USD Coin", "USDC", 6)
)

func jsonResponse(t *testing.T, status int, body any) *http.Response {
	t.Helper()
	buffer := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buffer).Encode(body))
	return &http.Response{StatusCode: status, Body: io.NopCloser(buffer)}
}

func newAggregator(httpClient odos.HTTPClient) *odos.Aggregator {
	client := odos.NewClient(odos.WithHTTPClient(httpClient), odos.WithBaseURL("http://odos.test"))
	return odos.New(client, base, router, 7)
}

func TestQuote_PriceDiscoveryOnly(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock http client
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: only the quote endpoint is called, with a clamped slippage.
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "http://odos.test/sor/quote/v2", req.URL.String())
			var body odos.QuoteRequest
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			require.Equal(t, uint64(8453), body.ChainID)
			require.Equal(t, "1000000000000000000", body.InputTokens[0].Amount)
			require.Equal(t, usdc.Key(), body.OutputTokens[0].TokenAddress)
			require.Equal(t, 100.0, body.SlippageLimitPercent)
			require.Equal(t, 2.5, body.GasPrice)
			require.Empty(t, body.UserAddr)
			require.Equal(t, uint64(7), body.ReferralCode)

			_, hasDeadline := req.Context().Deadline()
			require.True(t, hasDeadline)

			return jsonResponse(t, http.StatusOK, map[string]any{
				"pathId": "p1", "outAmounts": []string{"3012345678"}, "gasEstimate": 181234.0,
			}), nil
		}).
		Times(1)

	// Act
	q, err := newAggregator(httpClient).Quote(t.Context(), aggregator.Request{
		In: base.NativeCurrency, Out: usdc, AmountIn: big.NewInt(1e18),
		SlippageLimitPercent: 250, GasPrice: big.NewInt(2_500_000_000),
	})

	// Assert
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3012345678), q.AmountOut)
	require.Equal(t, uint64(181234), q.GasLimit)
	require.Nil(t, q.Transaction)
	require.Equal(t, "Odos", q.AggregatorName())
}

func TestQuote_AssemblesForSigner(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	gomock.InOrder(
		httpClient.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.True(t, strings.HasSuffix(req.URL.Path, "/sor/quote/v2"))
			return jsonResponse(t, http.StatusOK, map[string]any{
				"pathId": "p2", "outAmounts": []string{"42"}, "gasEstimate": 100000.0,
			}), nil
		}),
		httpClient.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.True(t, strings.HasSuffix(req.URL.Path, "/sor/assemble"))
			var body odos.AssembleRequest
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			require.Equal(t, "p2", body.PathID)
			require.Equal(t, user.Hex(), body.UserAddr)
			return jsonResponse(t, http.StatusOK, map[string]any{
				"transaction": map[string]any{
					"to": router.Hex(), "from": user.Hex(), "data": "0xabcdef",
					"value": "1000", "gas": 250000, "chainId": 8453,
				},
			}), nil
		}),
	)

	q, err := newAggregator(httpClient).Quote(t.Context(), aggregator.Request{
		In: base.NativeCurrency, Out: usdc, AmountIn: big.NewInt(1000), User: &user, GasPrice: big.NewInt(1e9),
	})
	require.NoError(t, err)
	require.NotNil(t, q.Transaction)
	require.Equal(t, router, q.Transaction.To)
	require.Equal(t, user, q.Transaction.From)
	require.Equal(t, []byte{0xab, 0xcd, 0xef}, []byte(q.Transaction.Data))
	require.Equal(t, big.NewInt(1000), q.Transaction.Value)
	require.Equal(t, uint64(250000), q.Transaction.Gas)
	require.Equal(t, uint64(250000), q.GasLimit)
	require.Equal(t, big.NewInt(1e9), q.Transaction.GasPrice)
}

func TestQuote_NegativeAssembledGas(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	gomock.InOrder(
		httpClient.EXPECT().Do(gomock.Any()).DoAndReturn(func(*http.Request) (*http.Response, error) {
			return jsonResponse(t, http.StatusOK, map[string]any{
				"pathId": "p3", "outAmounts": []string{"42"}, "gasEstimate": 100000.0,
			}), nil
		}),
		httpClient.EXPECT().Do(gomock.Any()).DoAndReturn(func(*http.Request) (*http.Response, error) {
			return jsonResponse(t, http.StatusOK, map[string]any{
				"transaction": map[string]any{
					"to": router.Hex(), "from": user.Hex(), "data": "0x", "value": "0", "gas": -5,
				},
			}), nil
		}),
	)

	// Act
	_, err := newAggregator(httpClient).Quote(t.Context(), aggregator.Request{
		In: base.NativeCurrency, Out: usdc, AmountIn: big.NewInt(1000), User: &user,
	})

	// Assert
	require.ErrorContains(t, err, "bad gas")
}

func TestQuote_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*http.Request) (*http.Response, error){
		"status": func(*http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusBadRequest, Body: io.NopCloser(strings.NewReader("no path"))}, nil
		},
		"transport": func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection reset")
		},
		"malformed": func(*http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{"))}, nil
		},
		"empty route": func(*http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{"outAmounts":[]}`))}, nil
		},
		"negative gas": func(*http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{"outAmounts":["5"],"gasEstimate":-1}`))}, nil
		},
		"gas overflow": func(*http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{"outAmounts":["5"],"gasEstimate":1e30}`))}, nil
		},
	}
	for name, do := range cases {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			httpClient := NewMockHTTPClient(ctrl)
			httpClient.EXPECT().Do(gomock.Any()).DoAndReturn(do)

			_, err := newAggregator(httpClient).Quote(t.Context(), aggregator.Request{
				In: base.NativeCurrency, Out: usdc, AmountIn: big.NewInt(1),
			})
			require.Error(t, err)
		})
	}
}

func TestQuote_InvalidAmountSkipsHTTP(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	_, err := newAggregator(httpClient).Quote(t.Context(), aggregator.Request{In: usdc, Out: usdc, AmountIn: big.NewInt(-1)})
	require.ErrorIs(t, err, aggregator.ErrInvalidAmount)
}

func TestQuote_Timeout(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err := newAggregator(httpClient).Quote(ctx, aggregator.Request{In: usdc, Out: base.NativeCurrency, AmountIn: big.NewInt(1)})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPricesAndCurrencies(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		switch req.URL.Path {
		case "/pricing/token/8453":
			return jsonResponse(t, http.StatusOK, map[string]any{
				"currencyId": "USD",
				"tokenPrices": map[string]any{
					"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913": 0.9998,
					"0x0000000000000000000000000000000000000000": 3120.5,
				},
			}), nil
		case "/info/tokens/8453":
			return jsonResponse(t, http.StatusOK, map[string]any{
				"tokenMap": map[string]any{
					"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913": map[string]any{"name": "USD Coin", "symbol": "USDC", "decimals": 6},
					"not-an-address": map[string]any{"name": "x", "symbol": "X", "decimals": 1},
				},
			}), nil
		}
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader(""))}, nil
	}).Times(2)

	a := newAggregator(httpClient)

	prices, err := a.Prices(t.Context())
	require.NoError(t, err)
	p, ok := prices.Get(usdc.Address)
	require.True(t, ok)
	require.Equal(t, 0.9998, p)
	require.Contains(t, prices, usdc.Key())
	native, ok := prices.Get(currency.Native)
	require.True(t, ok)
	require.Equal(t, 3120.5, native)

	cs, err := a.Currencies(t.Context())
	require.NoError(t, err)
	require.Equal(t, []currency.Currency{usdc}, cs)
}
