package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"swapquote/internal/httpx"
)

// Client posts GraphQL queries to a single subgraph endpoint.
type Client struct {
	url    string
	doer   httpx.Doer
	header http.Header
}

type Option func(*Client)

// WithDoer replaces the HTTP client.
func WithDoer(d httpx.Doer) Option {
	return func(c *Client) { c.doer = d }
}

// WithHeader adds headers sent with every query, e.g. an API key.
func WithHeader(h http.Header) Option {
	return func(c *Client) {
		for k, vs := range h {
			for _, v := range vs {
				c.header.Add(k, v)
			}
		}
	}
}

func New(url string, opts ...Option) *Client {
	c := &Client{url: url, doer: http.DefaultClient, header: http.Header{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []Error         `json:"errors"`
}

// Error is one entry of a GraphQL "errors" array.
type Error struct {
	Message string `json:"message"`
}

// QueryError is returned when the endpoint answers with GraphQL errors.
type QueryError struct {
	Errors []Error
}

func (e *QueryError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, m := range e.Errors {
		msgs = append(msgs, m.Message)
	}
	return "subgraph: " + strings.Join(msgs, "; ")
}

// Query runs query with vars and decodes the "data" object into out.
func (c *Client) Query(ctx context.Context, query string, vars map[string]any, out any) error {
	var resp response
	if err := httpx.PostJSON(ctx, c.doer, c.url, c.header, request{Query: query, Variables: vars}, &resp); err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return &QueryError{Errors: resp.Errors}
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return fmt.Errorf("subgraph: empty data")
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
