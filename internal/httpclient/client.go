package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// DefaultUserAgent identifies meteofetch to upstream providers.
const DefaultUserAgent = "meteofetch/1.0 (+https://github.com/joshuadavidthomas/meteofetch)"

// Client wraps net/http.Client with convenience methods for JSON APIs.
type Client struct {
	http      *http.Client
	userAgent string
}

// Response holds the status code, body bytes and optional JSON decode error
// of a completed request. The underlying body is already closed.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	JSONErr    error
	Elapsed    time.Duration
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// New creates a Client with a 30-second timeout.
func New() *Client {
	return NewWithTimeout(30 * time.Second)
}

// NewWithTimeout creates a Client with the given overall timeout. Callers
// should still bound individual requests with a context deadline.
func NewWithTimeout(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}, userAgent: DefaultUserAgent}
}

// NewFromConfig creates a Client using a timeout in seconds, falling back to
// 30s when the value is zero or negative.
func NewFromConfig(timeoutSeconds float64) *Client {
	if timeoutSeconds <= 0 {
		return New()
	}
	return NewWithTimeout(time.Duration(timeoutSeconds * float64(time.Second)))
}

// RequestOption configures an http.Request before it is sent.
type RequestOption func(*http.Request)

// DoCtx sends a request and reads the full body. A non-nil error means a
// transport failure, timeout or cancellation; HTTP error statuses are
// reported in Response.StatusCode.
func (c *Client) DoCtx(ctx context.Context, method, rawURL string, body io.Reader, opts ...RequestOption) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
		Elapsed:    time.Since(start),
	}, nil
}

// GetCtx sends a GET request without decoding the body.
func (c *Client) GetCtx(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return c.DoCtx(ctx, http.MethodGet, rawURL, nil, opts...)
}

// GetJSONCtx sends a GET request and decodes the body into out. Decode
// failures are captured in Response.JSONErr rather than returned.
func (c *Client) GetJSONCtx(ctx context.Context, rawURL string, out any, opts ...RequestOption) (*Response, error) {
	resp, err := c.GetCtx(ctx, rawURL, opts...)
	if err != nil {
		return nil, err
	}
	if out != nil {
		resp.JSONErr = json.Unmarshal(resp.Body, out)
	}
	return resp, nil
}
