// Package apiclient is the single choke point for calls to the storefront
// REST API. It attaches the bearer token, applies the request timeout,
// classifies failures and broadcasts session expiry on 401 responses.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/storage"
)

const (
	DefaultTimeout = 10 * time.Second
	apiPrefix      = "/api/v1"
)

// TokenSource supplies the current bearer token. An empty string means
// no in-memory token is available.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a plain function to TokenSource
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Config holds client settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Options are per-request extras
type Options struct {
	Query  url.Values
	Header http.Header
}

// Response is a successful (2xx) response with its body fully read
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	store      storage.Storage
	bus        *events.Bus

	mu     sync.RWMutex
	tokens TokenSource
}

// New creates a client. store and bus may be nil.
func New(cfg Config, store storage.Storage, bus *events.Bus) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		store:      store,
		bus:        bus,
	}
}

// SetTokenSource installs the in-memory token provider, usually the session
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// BaseURL returns the configured API root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send performs one request. body, when non-nil, is sent as JSON.
// Non-2xx responses return *APIError, network failures *TransportError.
// Nothing is retried.
func (c *Client) Send(ctx context.Context, method, path string, body any, opts *Options) (*Response, error) {
	target := c.baseURL + path
	if opts != nil && len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts != nil {
		for k, vs := range opts.Header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}
	if token := c.token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newTransportError(method, path, err)
	}
	defer resp.Body.Close()

	// broadcast before reading so a truncated 401 body still expires the session
	if resp.StatusCode == http.StatusUnauthorized {
		log.Printf("[HTTP] %s %s: unauthorized, broadcasting session expiry", method, path)
		if c.bus != nil {
			c.bus.Emit(events.SessionExpired, "http")
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: extractMessage(resp.StatusCode, data),
			Body:    data,
		}
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// token prefers the in-memory session and falls back to durable storage
// when the session has not hydrated yet
func (c *Client) token(ctx context.Context) string {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()

	if ts != nil {
		if token := ts.Token(); token != "" {
			return token
		}
	}
	if c.store == nil {
		return ""
	}
	token, ok, err := c.store.Get(ctx, storage.KeyToken)
	if err != nil {
		log.Printf("[HTTP] Failed to read stored token: %v", err)
		return ""
	}
	if !ok {
		return ""
	}
	return token
}

// call sends and decodes the response into out
func (c *Client) call(ctx context.Context, method, path string, body, out any, opts *Options) error {
	resp, err := c.Send(ctx, method, path, body, opts)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}
