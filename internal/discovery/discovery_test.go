// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/imjs-viewer/internal/outbound"
)

const serviceKey = "iModelJsOrchestrator.K8S"

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscoverURL_Success(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/GetUrl/", r.URL.Path)
		assert.Equal(t, serviceKey, r.URL.Query().Get("url"))
		assert.Equal(t, "102", r.URL.Query().Get("region"))
		_, _ = w.Write([]byte(`{"result":{"url":"https://connect-imodelweb.example.com/"}}`))
	})

	c := New(srv.URL, time.Minute, time.Second)
	u, err := c.DiscoverURL(context.Background(), serviceKey, "102")
	require.NoError(t, err)
	assert.Equal(t, "https://connect-imodelweb.example.com", u)
}

func TestDiscoverURL_EmptyResultIsFailure(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"url":""}}`))
	})

	_, err := New(srv.URL, time.Minute, time.Second).DiscoverURL(context.Background(), serviceKey, "")
	assert.ErrorIs(t, err, ErrDiscoveryFailure)
}

func TestDiscoverURL_HTTPErrorIsFailure(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := New(srv.URL, time.Minute, time.Second).DiscoverURL(context.Background(), serviceKey, "")
	require.ErrorIs(t, err, ErrDiscoveryFailure)
	assert.Contains(t, err.Error(), "502")
}

func TestDiscoverURL_CachesUntilTTL(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"result":{"url":"https://backend.example.com"}}`))
	})

	now := time.Unix(1_700_000_000, 0)
	var mu sync.Mutex
	clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }
	c := New(srv.URL, 10*time.Minute, time.Second, WithClock(clock))

	for i := 0; i < 3; i++ {
		_, err := c.DiscoverURL(context.Background(), serviceKey, "")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())

	mu.Lock()
	now = now.Add(11 * time.Minute)
	mu.Unlock()
	_, err := c.DiscoverURL(context.Background(), serviceKey, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	c.Invalidate()
	_, err = c.DiscoverURL(context.Background(), serviceKey, "")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDiscoverURL_FailuresAreNotCached(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"result":{"url":"https://backend.example.com"}}`))
	})

	c := New(srv.URL, time.Minute, time.Second)
	_, err := c.DiscoverURL(context.Background(), serviceKey, "")
	require.Error(t, err)
	u, err := c.DiscoverURL(context.Background(), serviceKey, "")
	require.NoError(t, err)
	assert.Equal(t, "https://backend.example.com", u)
}

func TestDiscoverURL_ConcurrentLookupsShareRequest(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"result":{"url":"https://backend.example.com"}}`))
	})

	c := New(srv.URL, 0, 5*time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := c.DiscoverURL(context.Background(), serviceKey, "")
			assert.NoError(t, err)
			assert.Equal(t, "https://backend.example.com", u)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestDiscoverURL_PolicyRejectsForeignHost(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"url":"https://backend.attacker.example"}}`))
	})
	policy, err := outbound.NewPolicy([]string{".bentley.com"})
	require.NoError(t, err)

	_, err = New(srv.URL, time.Minute, time.Second, WithPolicy(policy)).DiscoverURL(context.Background(), serviceKey, "")
	require.ErrorIs(t, err, ErrDiscoveryFailure)
	assert.ErrorIs(t, err, outbound.ErrNotAllowed)
}

func TestDiscoverURL_RejectsNonHTTPResult(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"url":"file:///etc/passwd"}}`))
	})

	_, err := New(srv.URL, time.Minute, time.Second).DiscoverURL(context.Background(), serviceKey, "")
	assert.ErrorIs(t, err, outbound.ErrInvalidURL)
}
