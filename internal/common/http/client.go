// internal/common/http/client.go
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultMaxBodyBytes int64 = 4 << 20

type Client struct {
	httpClient   *http.Client
	maxBodyBytes int64
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxBodyBytes: defaultMaxBodyBytes,
	}
}

// WithMaxBodyBytes caps how much of a response body Get reads. Values <= 0
// keep the default.
func (c *Client) WithMaxBodyBytes(n int64) *Client {
	if n > 0 {
		c.maxBodyBytes = n
	}
	return c
}

// RequestOption mutates an outgoing request before it is sent.
type RequestOption func(*http.Request)

func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		if value != "" {
			r.Header.Set(key, value)
		}
	}
}

func WithCookies(cookies []*http.Cookie) RequestOption {
	return func(r *http.Request) {
		for _, c := range cookies {
			if c != nil {
				r.AddCookie(c)
			}
		}
	}
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Body       []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Get issues a GET and reads the body. A non-2xx status is not an error;
// callers inspect Response.StatusCode.
func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", c.maxBodyBytes)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
