// Package httpclient implements the workflow.Requester capability on top of
// net/http, with connection-pool tuning suited to load generation.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stampede-load/stampede/internal/workflow"
)

// Config contains HTTP client configuration.
type Config struct {
	// Timeout for the whole request/response exchange.
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle connections.
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host.
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits the total connections per host. Zero is
	// unlimited.
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive.
	IdleConnTimeout time.Duration

	// DisableKeepAlives disables HTTP keep-alives.
	DisableKeepAlives bool

	// InsecureSkipVerify skips TLS certificate verification.
	InsecureSkipVerify bool
}

// DefaultConfig returns sensible defaults for load testing: a large shared
// connection pool and a 30s timeout.
func DefaultConfig() Config {
	return Config{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     0,
		IdleConnTimeout:     90 * time.Second,
	}
}

// Client sends workflow requests over HTTP. One Client is shared by all VUs
// so connections pool across workers.
type Client struct {
	hc             *http.Client
	defaultHeaders map[string]string
}

// New creates a client. defaultHeaders are applied to every request unless
// the step sets the same header itself.
func New(config Config, defaultHeaders map[string]string) *Client {
	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		MaxConnsPerHost:     config.MaxConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		DisableKeepAlives:   config.DisableKeepAlives,
	}
	if config.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		hc: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		defaultHeaders: defaultHeaders,
	}
}

// Send performs one HTTP exchange and reports status, latency, and body.
//
// There is no automatic retry. A transport failure returns a non-nil
// Response carrying the latency measured up to the failure, plus the error.
func (c *Client) Send(ctx context.Context, req workflow.Request) (*workflow.Response, error) {
	start := time.Now()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return &workflow.Response{LatencyMs: msSince(start)}, fmt.Errorf("building request: %w", err)
	}
	for k, v := range c.defaultHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return &workflow.Response{LatencyMs: msSince(start)}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	latency := msSince(start)
	if err != nil {
		return &workflow.Response{
			Status:    resp.StatusCode,
			LatencyMs: latency,
			Headers:   resp.Header,
		}, fmt.Errorf("reading response body: %w", err)
	}

	return &workflow.Response{
		Status:    resp.StatusCode,
		LatencyMs: latency,
		Body:      respBody,
		Headers:   resp.Header,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.hc.CloseIdleConnections()
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

var _ workflow.Requester = (*Client)(nil)
