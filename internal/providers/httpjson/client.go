// Package httpjson is the shared GET-and-decode client behind every HTTP
// provider adapter.
package httpjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tokenrisk/internal/providers"
	"github.com/sawpanic/tokenrisk/internal/ratelimit"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
	userAgent      = "tokenrisk/1.0"
)

// Config configures one provider client.
type Config struct {
	Provider string
	BaseURL  string
	Headers  map[string]string
	Timeout  time.Duration
}

// Client issues GET requests against one provider and decodes JSON bodies.
type Client struct {
	provider string
	baseURL  string
	headers  map[string]string
	http     *http.Client
	limiter  *ratelimit.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLimiter shares a keyed limiter; the provider name is the key.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// New creates a client.
func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		provider: cfg.Provider,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		headers:  cfg.Headers,
		http:     &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the provider name used in errors.
func (c *Client) Provider() string { return c.provider }

// GetJSON fetches path (relative to the base URL) with query parameters and
// decodes the body into out. Every failure is a *providers.ProviderError.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx, c.provider); err != nil {
		return c.fail(providers.KindRateLimit, 0, fmt.Errorf("rate limit wait: %w", err))
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return c.fail(providers.KindTransport, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range c.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return c.fail(providers.KindTimeout, 0, err)
		}
		return c.fail(providers.KindTransport, 0, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("provider", c.provider).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Provider request completed")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return c.fail(providers.KindNotFound, resp.StatusCode, errors.New("token not found"))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return c.fail(providers.KindStatus, resp.StatusCode, fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(snippet))))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		if isTimeout(ctx, err) {
			return c.fail(providers.KindTimeout, resp.StatusCode, err)
		}
		return c.fail(providers.KindDecode, resp.StatusCode, err)
	}
	return nil
}

func (c *Client) fail(kind providers.ErrorKind, status int, err error) error {
	return &providers.ProviderError{Provider: c.provider, Kind: kind, StatusCode: status, Err: err}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
