// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/imjs-viewer/internal/config"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(context.Context) CheckResult {
	return CheckResult{Status: m.status}
}

func TestManager_Health(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "healthy", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.GreaterOrEqual(t, resp.Uptime, int64(0))
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestManager_Ready(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []Checker
		wantReady  bool
		wantStatus Status
	}{
		{"no checkers", nil, true, StatusHealthy},
		{"all healthy", []Checker{&mockChecker{"a", StatusHealthy}}, true, StatusHealthy},
		{"degraded stays ready", []Checker{&mockChecker{"a", StatusHealthy}, &mockChecker{"b", StatusDegraded}}, true, StatusDegraded},
		{"unhealthy wins", []Checker{&mockChecker{"a", StatusUnhealthy}, &mockChecker{"b", StatusDegraded}}, false, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("v")
			for _, c := range tt.checkers {
				m.RegisterChecker(c)
			}
			resp := m.Ready(context.Background())
			assert.Equal(t, tt.wantReady, resp.Ready)
			assert.Equal(t, tt.wantStatus, resp.Status)
		})
	}
}

func TestManager_ServeHealth(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "store", status: StatusUnhealthy})

	w := httptest.NewRecorder()
	m.ServeHealth(w, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Contains(t, resp.Checks, "store")
}

func TestManager_ServeReady(t *testing.T) {
	m := NewManager("v1.0.0")
	w := httptest.NewRecorder()
	m.ServeReady(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	m.RegisterChecker(&mockChecker{name: "store", status: StatusUnhealthy})
	w = httptest.NewRecorder()
	m.ServeReady(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ReadinessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Ready)
}

func TestPingChecker(t *testing.T) {
	ok := NewPingChecker("store", func(context.Context) error { return nil }, time.Second)
	assert.Equal(t, "store", ok.Name())
	assert.Equal(t, StatusHealthy, ok.Check(context.Background()).Status)

	bad := NewPingChecker("store", func(context.Context) error { return errors.New("connection refused") }, 0)
	r := bad.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, r.Status)
	assert.Equal(t, "connection refused", r.Error)

	slow := NewPingChecker("store", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond)
	assert.Equal(t, StatusUnhealthy, slow.Check(context.Background()).Status)
}

func TestBreakerChecker(t *testing.T) {
	state := "closed"
	c := NewBreakerChecker("rpc", func() string { return state })
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	state = "open"
	r := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, r.Status)
	assert.Equal(t, "circuit open", r.Message)
}

func TestFuncChecker(t *testing.T) {
	c := NewFuncChecker("backend", func(context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy, Message: "https://backend.example.com"}
	})
	assert.Equal(t, "backend", c.Name())
	assert.Equal(t, "https://backend.example.com", c.Check(context.Background()).Message)
}

func TestPerformStartupChecks(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	require.NoError(t, PerformStartupChecks(cfg))
	assert.DirExists(t, cfg.DataDir)

	cfg.Server.ListenAddr = "no-port"
	assert.Error(t, PerformStartupChecks(cfg))

	cfg.Server.ListenAddr = ":3000"
	cfg.Metrics.ListenAddr = ":99999"
	assert.Error(t, PerformStartupChecks(cfg))
}

func TestPerformStartupChecks_DataDirIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	cfg := config.Default()
	cfg.DataDir = file
	assert.Error(t, PerformStartupChecks(cfg))
}
