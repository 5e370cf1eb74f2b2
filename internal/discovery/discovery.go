// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package discovery resolves logical service names to base URLs through the
// buddi URL discovery service.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	xglog "github.com/ManuGH/imjs-viewer/internal/log"
	"github.com/ManuGH/imjs-viewer/internal/metrics"
	"github.com/ManuGH/imjs-viewer/internal/outbound"
	"github.com/ManuGH/imjs-viewer/internal/telemetry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrDiscoveryFailure is returned when a lookup fails or resolves to nothing.
var ErrDiscoveryFailure = errors.New("discovery failure")

const maxResponseBytes = 64 << 10

// Client performs URL discovery lookups. Successful results are cached for
// the configured TTL and concurrent lookups of the same key share one request.
type Client struct {
	baseURL string
	http    *http.Client
	ttl     time.Duration
	now     func() time.Time
	logger  zerolog.Logger
	policy  outbound.Policy

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]cached
}

type cached struct {
	url       string
	expiresAt time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the traced default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithPolicy restricts the hosts a lookup may resolve to.
func WithPolicy(p outbound.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a discovery client for the service at baseURL.
// ttl <= 0 disables caching; timeout bounds each lookup.
func New(baseURL string, ttl, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    telemetry.NewHTTPClient(timeout),
		ttl:     ttl,
		now:     time.Now,
		logger:  xglog.WithComponent("discovery"),
		cache:   make(map[string]cached),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type getURLResponse struct {
	Result struct {
		URL string `json:"url"`
	} `json:"result"`
}

// DiscoverURL resolves serviceName in region (empty for the default region).
func (c *Client) DiscoverURL(ctx context.Context, serviceName, region string) (string, error) {
	key := serviceName + "|" + region
	if u, ok := c.lookupCache(key); ok {
		metrics.RecordDiscoveryLookup("hit")
		return u, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		u, err := c.fetch(ctx, serviceName, region)
		if err != nil {
			return "", err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			c.cache[key] = cached{url: u, expiresAt: c.now().Add(c.ttl)}
			c.mu.Unlock()
		}
		return u, nil
	})
	if err != nil {
		metrics.RecordDiscoveryLookup("error")
		c.logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "discovery.failed").
			Str("service", serviceName).
			Str("region", region).
			Msg("url discovery failed")
		return "", err
	}
	metrics.RecordDiscoveryLookup("miss")
	u := v.(string)
	c.logger.Debug().
		Str(xglog.FieldEvent, "discovery.resolved").
		Str("service", serviceName).
		Str(xglog.FieldBaseURL, outbound.SanitizeURL(u)).
		Bool("shared", shared).
		Msg("url discovered")
	return u, nil
}

// Invalidate drops every cached result.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.cache = make(map[string]cached)
	c.mu.Unlock()
}

func (c *Client) lookupCache(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.cache[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return "", false
	}
	return e.url, true
}

func (c *Client) fetch(ctx context.Context, serviceName, region string) (string, error) {
	q := url.Values{}
	q.Set("url", serviceName)
	if region != "" {
		q.Set("region", region)
	}
	endpoint := c.baseURL + "/GetUrl/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrDiscoveryFailure, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveRemoteRequest("discovery", "GetUrl", "transport_error", time.Since(start))
		return "", fmt.Errorf("%w: %s: %v", ErrDiscoveryFailure, serviceName, err)
	}
	defer resp.Body.Close()
	metrics.ObserveRemoteRequest("discovery", "GetUrl", fmt.Sprint(resp.StatusCode), time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrDiscoveryFailure, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s: HTTP %d", ErrDiscoveryFailure, serviceName, resp.StatusCode)
	}

	var out getURLResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrDiscoveryFailure, err)
	}
	u := strings.TrimSpace(out.Result.URL)
	if u == "" {
		return "", fmt.Errorf("%w: %s resolved to an empty url", ErrDiscoveryFailure, serviceName)
	}
	u, err = c.policy.ValidateBaseURL(u)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrDiscoveryFailure, serviceName, err)
	}
	return u, nil
}
