// Package transport implements the HTTP request layer used by the storefront
// client. It attaches the current bearer credential to every request, reports
// authentication failures back to the session owner and returns raw responses;
// classifying them is the caller's job.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	HeaderAuthorization  = "Authorization"
	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"

	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "go-storefront"
	maxResponseBytes = 4 << 20
)

// Response is the raw result of a request that reached the server.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	RequestID string
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the body into v. Empty bodies are a no-op.
func (r *Response) Decode(v any) error {
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("transport: decode %d response: %w", r.Status, err)
	}
	return nil
}

// NetworkError is returned when a request never produced a response.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// CredentialSource returns the bearer credential to attach, or "" for none.
type CredentialSource func() string

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The client transport is
// used as is, without telemetry instrumentation. hc is never modified; when it
// has no timeout a copy carrying the configured timeout is used.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCredentialSource sets the function queried for the bearer credential.
func WithCredentialSource(src CredentialSource) Option {
	return func(c *Client) {
		c.credential = src
	}
}

// WithUnauthorizedHandler registers the callback invoked synchronously, before
// Request returns, whenever the server answers 401.
func WithUnauthorizedHandler(fn func(ctx context.Context)) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// Client is an HTTP implementation of the storefront transport contract.
type Client struct {
	baseURL        string
	http           *http.Client
	timeout        time.Duration
	userAgent      string
	credential     CredentialSource
	onUnauthorized func(ctx context.Context)
}

// New returns a Client rooted at baseURL (e.g. http://localhost:8080/api/v1).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	switch {
	case c.http == nil:
		c.http = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   c.timeout,
		}
	case c.http.Timeout == 0:
		// the caller owns hc
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}

	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request sends a JSON request. body may be nil. A non-nil error is always a
// *NetworkError; any HTTP status, including 4xx and 5xx, is returned as a
// Response.
func (c *Client) Request(ctx context.Context, method, path string, body any) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &NetworkError{Method: method, Path: path, Err: fmt.Errorf("encode body: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}

	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(HeaderRequestID, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := IdempotencyKeyFromContext(ctx); key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	if c.credential != nil {
		if token := c.credential(); token != "" {
			req.Header.Set(HeaderAuthorization, "Bearer "+token)
		}
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Method: method, Path: path, Err: fmt.Errorf("read body: %w", err)}
	}

	if res.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil && !skipUnauthorized(ctx) {
		c.onUnauthorized(ctx)
	}

	return &Response{
		Status:    res.StatusCode,
		Header:    res.Header,
		Body:      data,
		RequestID: requestID,
	}, nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}
