// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xglog "github.com/ManuGH/imjs-viewer/internal/log"
)

func TestErrorUnwrapsSentinel(t *testing.T) {
	err := &Error{Sentinel: ErrNotFound, Service: "platform", Operation: "projects", Status: 404, Body: "no such project"}
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "platform: projects: upstream: resource not found (HTTP 404): no such project", err.Error())
}

func TestSentinelForStatus(t *testing.T) {
	tests := map[int]error{
		400: ErrBadRequest,
		401: ErrUnauthorized,
		403: ErrForbidden,
		404: ErrNotFound,
		408: ErrTimeout,
		429: ErrUnavailable,
		500: ErrUpstream,
		503: ErrUpstream,
		504: ErrTimeout,
	}
	for status, want := range tests {
		assert.ErrorIs(t, SentinelForStatus(status), want, "status %d", status)
	}
}

func TestDoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "rid-7", r.Header.Get("X-Correlation-ID"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":42}`))
	}))
	defer srv.Close()

	c := New(Config{Name: "test-json", Timeout: time.Second})
	ctx := xglog.ContextWithRequestID(context.Background(), "rid-7")
	req, err := BearerRequest(ctx, http.MethodGet, srv.URL, "tok", nil)
	require.NoError(t, err)

	var out struct{ Value int }
	require.NoError(t, c.DoJSON(req, "get", &out))
	assert.Equal(t, 42, out.Value)
}

func TestDoJSON_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := New(Config{Name: "test-badbody", Timeout: time.Second})
	req, _ := BearerRequest(context.Background(), http.MethodGet, srv.URL, "", nil)
	var out map[string]any
	assert.ErrorIs(t, c.DoJSON(req, "get", &out), ErrBadResponse)
}

func TestDo_BreakerOpensOnlyForTransientErrors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusNotFound)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	c := New(Config{Name: "test-breaker", Timeout: time.Second, BreakerThreshold: 2, BreakerReset: time.Hour})
	call := func() error {
		req, _ := BearerRequest(context.Background(), http.MethodGet, srv.URL, "", nil)
		_, err := c.Do(req, "get")
		return err
	}

	for i := 0; i < 4; i++ {
		assert.ErrorIs(t, call(), ErrNotFound)
	}
	assert.Equal(t, int32(4), calls.Load())

	status.Store(http.StatusBadGateway)
	assert.ErrorIs(t, call(), ErrUpstream)
	assert.ErrorIs(t, call(), ErrUpstream)
	err := call()
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(6), calls.Load(), "open breaker must not reach the upstream")
}

func TestDo_TransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{Name: "test-transport", Timeout: time.Second})
	req, _ := BearerRequest(context.Background(), http.MethodGet, url, "", nil)
	_, err := c.Do(req, "get")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDo_OversizedBodyIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 17)))
	}))
	defer srv.Close()

	c := New(Config{Name: "test-oversized", Timeout: time.Second, MaxResponseBody: 16})
	req, _ := BearerRequest(context.Background(), http.MethodGet, srv.URL, "", nil)
	_, err := c.Do(req, "get")
	assert.ErrorIs(t, err, ErrBadResponse)

	c = New(Config{Name: "test-exact", Timeout: time.Second, MaxResponseBody: 17})
	req, _ = BearerRequest(context.Background(), http.MethodGet, srv.URL, "", nil)
	resp, err := c.Do(req, "get")
	require.NoError(t, err)
	assert.Len(t, resp.Body, 17)
}
