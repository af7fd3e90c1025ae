package signalapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBody = 512

// Option configures Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// Client calls the signal backend endpoints.
type Client struct {
	base    string
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a backend client rooted at baseURL. An empty baseURL issues
// relative-to-root requests and is only useful with a custom transport.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Signal calls GET /run.
func (c *Client) Signal(ctx context.Context, ticker string, interval Interval) (SignalResponse, error) {
	q := url.Values{"ticker": {ticker}}
	if interval != "" {
		q.Set("interval", string(interval))
	}
	var out SignalResponse
	if err := c.getJSON(ctx, "/run", q, &out); err != nil {
		return SignalResponse{}, err
	}
	return out, nil
}

// Logo calls GET /logo.
func (c *Client) Logo(ctx context.Context, ticker string) (LogoResponse, error) {
	var out LogoResponse
	if err := c.getJSON(ctx, "/logo", url.Values{"ticker": {ticker}}, &out); err != nil {
		return LogoResponse{}, err
	}
	return out, nil
}

// News calls GET /news. A JSON object instead of a list (the backend's error shape)
// is reported as a decode error.
func (c *Client) News(ctx context.Context, ticker string) ([]NewsArticle, error) {
	var out []NewsArticle
	if err := c.getJSON(ctx, "/news", url.Values{"ticker": {ticker}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Backtest calls GET /backtest. The request must already be prepared.
func (c *Client) Backtest(ctx context.Context, req BacktestRequest) (BacktestResponse, error) {
	q := url.Values{
		"ticker":   {req.Ticker},
		"interval": {string(req.Interval)},
		"start":    {req.Start},
		"end":      {req.End},
	}
	var out BacktestResponse
	if err := c.getJSON(ctx, "/backtest", q, &out); err != nil {
		return BacktestResponse{}, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dest any) error {
	endpoint := c.base + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return newError(CodeTransport, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return newError(CodeTransport, "request "+path+" failed", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Debug("signalapi response close failed", "path", path, "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &CodedError{
			Code:    CodeHTTPStatus,
			Message: fmt.Sprintf("%s returned status %d", path, resp.StatusCode),
			Status:  resp.StatusCode,
			Cause:   backendError(body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return newError(CodeDecode, "decode "+path+" response", err)
	}
	return nil
}

// backendError extracts {"error": "..."} from an error body when present.
func backendError(body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return errors.New(payload.Error)
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return errors.New(s)
	}
	return nil
}
