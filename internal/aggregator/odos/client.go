package odos

import (
	"context"
	"fmt"
	"net/http"

	"swapquote/internal/httpx"
)

const baseURL = "https://api.odos.xyz"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=odos_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the Odos smart order router API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// ClientOption is a configuration option for the Odos client.
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

// NewClient creates a new Odos client.
func NewClient(options ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

type TokenAmount struct {
	TokenAddress string `json:"tokenAddress"`
	Amount       string `json:"amount"`
}

type TokenProportion struct {
	TokenAddress string  `json:"tokenAddress"`
	Proportion   float64 `json:"proportion"`
}

// QuoteRequest is the body of POST /sor/quote/v2.
type QuoteRequest struct {
	ChainID              uint64            `json:"chainId"`
	InputTokens          []TokenAmount     `json:"inputTokens"`
	OutputTokens         []TokenProportion `json:"outputTokens"`
	GasPrice             float64           `json:"gasPrice,omitempty"`
	UserAddr             string            `json:"userAddr,omitempty"`
	SlippageLimitPercent float64           `json:"slippageLimitPercent"`
	SourceBlacklist      []string          `json:"sourceBlacklist,omitempty"`
	ReferralCode         uint64            `json:"referralCode,omitempty"`
	DisableRFQs          bool              `json:"disableRFQs"`
	Compact              bool              `json:"compact"`
}

type QuoteResponse struct {
	PathID      string   `json:"pathId"`
	OutAmounts  []string `json:"outAmounts"`
	GasEstimate float64  `json:"gasEstimate"`
	NetOutValue float64  `json:"netOutValue"`
}

type AssembleRequest struct {
	UserAddr string `json:"userAddr"`
	PathID   string `json:"pathId"`
	Simulate bool   `json:"simulate"`
}

type AssembledTransaction struct {
	To       string `json:"to"`
	From     string `json:"from"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	Gas      int64  `json:"gas"`
	GasPrice int64  `json:"gasPrice"`
	ChainID  uint64 `json:"chainId"`
}

type AssembleResponse struct {
	Transaction AssembledTransaction `json:"transaction"`
}

type TokenPricesResponse struct {
	CurrencyID  string             `json:"currencyId"`
	TokenPrices map[string]float64 `json:"tokenPrices"`
}

type TokenInfo struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type TokensResponse struct {
	TokenMap map[string]TokenInfo `json:"tokenMap"`
}

// Quote requests a routed path; the pathId is valid for assembly for a short time.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	var out QuoteResponse
	if err := httpx.PostJSON(ctx, c.httpClient, c.baseURL+"/sor/quote/v2", c.header, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Assemble turns a quoted path into calldata for the user.
func (c *Client) Assemble(ctx context.Context, req AssembleRequest) (*AssembleResponse, error) {
	var out AssembleResponse
	if err := httpx.PostJSON(ctx, c.httpClient, c.baseURL+"/sor/assemble", c.header, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TokenPrices(ctx context.Context, chainID uint64) (*TokenPricesResponse, error) {
	var out TokenPricesResponse
	url := fmt.Sprintf("%s/pricing/token/%d", c.baseURL, chainID)
	if err := httpx.GetJSON(ctx, c.httpClient, url, c.header, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Tokens(ctx context.Context, chainID uint64) (*TokensResponse, error) {
	var out TokensResponse
	url := fmt.Sprintf("%s/info/tokens/%d", c.baseURL, chainID)
	if err := httpx.GetJSON(ctx, c.httpClient, url, c.header, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
