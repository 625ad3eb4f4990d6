package openocean

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"swapquote/internal/httpx"
)

const baseURL = "https://open-api.openocean.finance"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=openocean_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the OpenOcean v3 API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// query contains additional query parameters to be sent with each request.
	query url.Values
}

// ClientOption is a configuration option for the OpenOcean client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewClient creates a new OpenOcean client. A non-empty referrer is sent
// with every quote.
func NewClient(referrer string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
	}
	if referrer != "" {
		c.query.Set("referrer", referrer)
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// envelope is the wrapper around every v3 response.
type envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Data    T      `json:"data"`
}

// APIError is returned when the envelope code is not 200.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openocean: code %d: %s", e.Code, e.Message)
}

// QuoteParams are the query parameters of quote and swap_quote. Amount is
// decimal-adjusted and GasPrice is in gwei.
type QuoteParams struct {
	InTokenAddress  string
	OutTokenAddress string
	Amount          string
	GasPrice        string
	Slippage        string
	Account         string
}

func (p QuoteParams) values() url.Values {
	v := url.Values{}
	v.Set("inTokenAddress", p.InTokenAddress)
	v.Set("outTokenAddress", p.OutTokenAddress)
	v.Set("amount", p.Amount)
	v.Set("gasPrice", p.GasPrice)
	v.Set("slippage", p.Slippage)
	if p.Account != "" {
		v.Set("account", p.Account)
	}
	return v
}

type QuoteData struct {
	InAmount     string      `json:"inAmount"`
	OutAmount    string      `json:"outAmount"`
	EstimatedGas json.Number `json:"estimatedGas"`
	// Transaction fields, only filled by swap_quote.
	From     string      `json:"from"`
	To       string      `json:"to"`
	Data     string      `json:"data"`
	Value    json.Number `json:"value"`
	GasPrice json.Number `json:"gasPrice"`
}

type Token struct {
	Address  string      `json:"address"`
	Name     string      `json:"name"`
	Symbol   string      `json:"symbol"`
	Decimals uint8       `json:"decimals"`
	Icon     string      `json:"icon"`
	USD      json.Number `json:"usd"`
}

// Quote calls /v3/{chain}/quote for price discovery.
func (c *Client) Quote(ctx context.Context, chainID uint64, p QuoteParams) (*QuoteData, error) {
	return c.quote(ctx, chainID, "quote", p)
}

// SwapQuote calls /v3/{chain}/swap_quote, which also returns calldata for p.Account.
func (c *Client) SwapQuote(ctx context.Context, chainID uint64, p QuoteParams) (*QuoteData, error) {
	return c.quote(ctx, chainID, "swap_quote", p)
}

func (c *Client) quote(ctx context.Context, chainID uint64, path string, p QuoteParams) (*QuoteData, error) {
	q := p.values()
	for k, vs := range c.query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	var out envelope[*QuoteData]
	if err := httpx.GetJSON(ctx, c.httpClient, c.url(chainID, path, q), c.header, &out); err != nil {
		return nil, err
	}
	if err := out.check(); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, &APIError{Code: out.Code, Message: "empty data"}
	}
	return out.Data, nil
}

// TokenList returns the catalog with USD prices.
func (c *Client) TokenList(ctx context.Context, chainID uint64) ([]Token, error) {
	var out envelope[[]Token]
	if err := httpx.GetJSON(ctx, c.httpClient, c.url(chainID, "tokenList", nil), c.header, &out); err != nil {
		return nil, err
	}
	if err := out.check(); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) url(chainID uint64, path string, q url.Values) string {
	u := fmt.Sprintf("%s/v3/%d/%s", c.baseURL, chainID, path)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (e envelope[T]) check() error {
	if e.Code == http.StatusOK {
		return nil
	}
	msg := e.Message
	if msg == "" {
		msg = e.Error
	}
	return &APIError{Code: e.Code, Message: msg}
}
