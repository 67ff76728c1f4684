package workflow

import (
	"context"
	"net/http"
)

// Request describes one HTTP exchange a step wants performed.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is what the injected request capability reports back.
// Latency is wall-clock milliseconds for the whole exchange.
type Response struct {
	Status    int
	LatencyMs float64
	Body      []byte
	Headers   http.Header
}

// Requester performs one HTTP exchange. The engine never retries; a returned
// error is a transport failure (timeout, connection refused) and is treated
// as a failed check for the step that issued the request.
//
// Implementations must return a non-nil Response carrying the measured
// latency even when they return an error.
type Requester interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// RequesterFunc adapts a function to the Requester interface.
type RequesterFunc func(ctx context.Context, req Request) (*Response, error)

// Send calls f.
func (f RequesterFunc) Send(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
