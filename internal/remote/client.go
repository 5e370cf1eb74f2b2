// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package remote is the shared HTTP plumbing of the outbound API clients:
// egress rate limiting, a circuit breaker, tracing, metrics and error
// classification.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	xglog "github.com/ManuGH/imjs-viewer/internal/log"
	"github.com/ManuGH/imjs-viewer/internal/metrics"
	"github.com/ManuGH/imjs-viewer/internal/resilience"
	"github.com/ManuGH/imjs-viewer/internal/telemetry"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	maxErrorBody    = 512
	maxResponseBody = 32 << 20
)

// Config configures a Client.
type Config struct {
	// Name labels metrics, logs and the circuit breaker.
	Name    string
	Timeout time.Duration
	// RateLimit is requests per second; <= 0 disables limiting.
	RateLimit        float64
	Burst            int
	BreakerThreshold int
	BreakerReset     time.Duration
	// MaxResponseBody caps a successful body; <= 0 uses 32 MiB.
	MaxResponseBody int64
}

// Client executes requests against one upstream service.
type Client struct {
	name    string
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
	maxBody int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the traced default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for cfg.Name.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		name:    cfg.Name,
		http:    telemetry.NewHTTPClient(cfg.Timeout),
		logger:  xglog.WithComponent(cfg.Name),
		maxBody: cfg.MaxResponseBody,
		breaker: resilience.NewCircuitBreaker(cfg.Name, cfg.BreakerThreshold, cfg.BreakerReset,
			resilience.WithFailureClassifier(IsTransient)),
	}
	if c.maxBody <= 0 {
		c.maxBody = maxResponseBody
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RateLimit) + 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the configured upstream name.
func (c *Client) Name() string { return c.name }

// BreakerState returns the circuit breaker state ("closed", "open", "half-open").
func (c *Client) BreakerState() string { return string(c.breaker.State()) }

// Response is a successful raw response.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Do sends req and returns the body of a 2xx response. Any other outcome is an *Error.
func (c *Client) Do(req *http.Request, operation string) (*Response, error) {
	ctx := req.Context()
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Sentinel: ErrTimeout, Service: c.name, Operation: operation, Err: err}
		}
	}
	if rid := xglog.RequestIDFromContext(ctx); rid != "" {
		req.Header.Set("X-Correlation-ID", rid)
	}

	var out *Response
	err := c.breaker.Execute(func() error {
		var err error
		out, err = c.do(req, operation)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, &Error{Sentinel: ErrUnavailable, Service: c.name, Operation: operation, Err: err}
	}
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, c.name+".request_failed").
			Str(xglog.FieldOperation, operation).
			Msg("upstream request failed")
		return nil, err
	}
	return out, nil
}

func (c *Client) do(req *http.Request, operation string) (*Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveRemoteRequest(c.name, operation, "transport_error", time.Since(start))
		return nil, &Error{Sentinel: sentinelForTransport(err), Service: c.name, Operation: operation, Err: err}
	}
	defer resp.Body.Close()
	metrics.ObserveRemoteRequest(c.name, operation, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{
			Sentinel:  SentinelForStatus(resp.StatusCode),
			Service:   c.name,
			Operation: operation,
			Status:    resp.StatusCode,
			Body:      strings.TrimSpace(string(snippet)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &Error{Sentinel: ErrUnavailable, Service: c.name, Operation: operation, Err: err}
	}
	if int64(len(body)) > c.maxBody {
		return nil, &Error{
			Sentinel:  ErrBadResponse,
			Service:   c.name,
			Operation: operation,
			Status:    resp.StatusCode,
			Err:       fmt.Errorf("response body exceeds %d bytes", c.maxBody),
		}
	}
	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// DoJSON sends req and decodes a JSON body into out (skipped for nil out or empty body).
func (c *Client) DoJSON(req *http.Request, operation string, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.Do(req, operation)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &Error{Sentinel: ErrBadResponse, Service: c.name, Operation: operation, Status: resp.Status, Err: err}
	}
	return nil
}

// BearerRequest builds a request with an Authorization header.
func BearerRequest(ctx context.Context, method, url, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
