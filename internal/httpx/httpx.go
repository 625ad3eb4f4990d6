package httpx

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net"
    "net/http"
    "time"
)

// Doer is the subset of *http.Client the aggregators depend on.
type Doer interface {
    Do(req *http.Request) (*http.Response, error)
}

// Client is a small wrapper around http.Client with sane defaults for
// short-lived aggregator calls.
type Client struct {
    HTTP      *http.Client
    UserAgent string
    Headers   map[string]string
}

func New(timeout time.Duration) *Client {
    transport := &http.Transport{
        Proxy: http.ProxyFromEnvironment,
        DialContext: (&net.Dialer{Timeout: 2 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
        MaxIdleConns:          100,
        MaxIdleConnsPerHost:   20,
        ForceAttemptHTTP2:     true,
        IdleConnTimeout:       90 * time.Second,
        TLSHandshakeTimeout:   2 * time.Second,
        ExpectContinueTimeout: 1 * time.Second,
        ResponseHeaderTimeout: 4 * time.Second,
    }
    return &Client{HTTP: &http.Client{Timeout: timeout, Transport: transport}, UserAgent: "swapquote/1.0"}
}

// Do sets default headers and sends req.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
    if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
        req.Header.Set("User-Agent", c.UserAgent)
    }
    for k, v := range c.Headers {
        if req.Header.Get(k) == "" {
            req.Header.Set(k, v)
        }
    }
    return c.HTTP.Do(req)
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
    Method string
    URL    string
    Code   int
    Body   string
}

func (e *StatusError) Error() string {
    return fmt.Sprintf("%s %s -> %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// GetJSON issues a GET and decodes a 2xx JSON body into out.
func GetJSON(ctx context.Context, d Doer, url string, header http.Header, out any) error {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
    if err != nil {
        return fmt.Errorf("creating request: %w", err)
    }
    for k, vs := range header {
        for _, v := range vs { req.Header.Add(k, v) }
    }
    req.Header.Set("Accept", "application/json")
    return doJSON(d, req, out)
}

// PostJSON encodes body, POSTs it, and decodes a 2xx JSON body into out.
func PostJSON(ctx context.Context, d Doer, url string, header http.Header, body, out any) error {
    b, err := json.Marshal(body)
    if err != nil {
        return fmt.Errorf("encoding body: %w", err)
    }
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
    if err != nil {
        return fmt.Errorf("creating request: %w", err)
    }
    for k, vs := range header {
        for _, v := range vs { req.Header.Add(k, v) }
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("Accept", "application/json")
    return doJSON(d, req, out)
}

func doJSON(d Doer, req *http.Request, out any) error {
    resp, err := d.Do(req)
    if err != nil {
        return fmt.Errorf("performing request: %w", err)
    }
    defer resp.Body.Close()
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
        return &StatusError{Method: req.Method, URL: req.URL.String(), Code: resp.StatusCode, Body: string(b)}
    }
    if out == nil {
        return nil
    }
    dec := json.NewDecoder(resp.Body)
    dec.UseNumber()
    if err := dec.Decode(out); err != nil {
        return fmt.Errorf("decode: %w", err)
    }
    return nil
}
