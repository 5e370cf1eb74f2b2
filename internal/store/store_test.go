// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/imjs-viewer/internal/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// backendCase bundles a store with a way to move its notion of time forward.
type backendCase struct {
	name    string
	open    func(t *testing.T) (Store, func(time.Duration))
	slowTTL bool
}

func backends() []backendCase {
	return []backendCase{
		{
			name: "memory",
			open: func(t *testing.T) (Store, func(time.Duration)) {
				clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
				s := NewMemoryStore(0, WithClock(clk.Now))
				return s, clk.Advance
			},
		},
		{
			name: "redis",
			open: func(t *testing.T) (Store, func(time.Duration)) {
				mr := miniredis.RunT(t)
				s, err := NewRedisStore(context.Background(), RedisConfig{Addr: mr.Addr(), Prefix: "test:"})
				require.NoError(t, err)
				return s, mr.FastForward
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T) (Store, func(time.Duration)) {
				s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "kv.db"), 0)
				require.NoError(t, err)
				clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
				s.now = clk.Now
				return s, clk.Advance
			},
		},
		{
			name: "badger",
			open: func(t *testing.T) (Store, func(time.Duration)) {
				s, err := OpenBadgerStore(t.TempDir())
				require.NoError(t, err)
				return s, nil
			},
			slowTTL: true,
		},
	}
}

func TestBackends(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("PutGetDelete", func(t *testing.T) {
				s, _ := bc.open(t)
				defer s.Close()

				_, err := s.Get(ctx, "missing")
				assert.ErrorIs(t, err, ErrNotFound)

				require.NoError(t, s.Put(ctx, "sess-1", []byte(`{"id":"sess-1"}`), time.Hour))
				got, err := s.Get(ctx, "sess-1")
				require.NoError(t, err)
				assert.JSONEq(t, `{"id":"sess-1"}`, string(got))

				require.NoError(t, s.Put(ctx, "sess-1", []byte(`{"id":"sess-1","v":2}`), time.Hour))
				got, err = s.Get(ctx, "sess-1")
				require.NoError(t, err)
				assert.JSONEq(t, `{"id":"sess-1","v":2}`, string(got))

				require.NoError(t, s.Delete(ctx, "sess-1"))
				require.NoError(t, s.Delete(ctx, "sess-1"))
				_, err = s.Get(ctx, "sess-1")
				assert.ErrorIs(t, err, ErrNotFound)

				assert.NoError(t, s.Ping(ctx))
			})

			t.Run("Expiry", func(t *testing.T) {
				s, advance := bc.open(t)
				defer s.Close()

				if bc.slowTTL {
					require.NoError(t, s.Put(ctx, "short", []byte("x"), time.Second))
					require.NoError(t, s.Put(ctx, "forever", []byte("y"), 0))
					assert.Eventually(t, func() bool {
						_, err := s.Get(ctx, "short")
						return err == ErrNotFound
					}, 5*time.Second, 100*time.Millisecond)
					_, err := s.Get(ctx, "forever")
					assert.NoError(t, err)
					return
				}

				require.NoError(t, s.Put(ctx, "short", []byte("x"), time.Minute))
				require.NoError(t, s.Put(ctx, "forever", []byte("y"), 0))
				advance(59 * time.Second)
				_, err := s.Get(ctx, "short")
				require.NoError(t, err)

				advance(2 * time.Second)
				_, err = s.Get(ctx, "short")
				assert.ErrorIs(t, err, ErrNotFound)
				_, err = s.Get(ctx, "forever")
				assert.NoError(t, err)
			})
		})
	}
}

func TestMemoryStore_DeleteExpiredAndClose(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStore(time.Hour, WithClock(clk.Now))
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, s.Put(ctx, "b", []byte("2"), time.Hour))
	clk.Advance(time.Minute)

	assert.Equal(t, 1, s.deleteExpired())
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("abc"), 0))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	got[0] = 'z'

	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestSQLiteStore_Sweep(t *testing.T) {
	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "kv.db"), 0)
	require.NoError(t, err)
	defer s.Close()
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s.now = clk.Now
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, s.Put(ctx, "b", []byte("2"), 0))
	clk.Advance(time.Minute)

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOpen_Backends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	mr := miniredis.RunT(t)

	for _, cfg := range []config.SessionConfig{
		{Backend: "memory"},
		{Backend: ""},
		{Backend: "redis", RedisAddr: mr.Addr()},
		{Backend: "sqlite", Path: "nested/sessions.db"},
		{Backend: "badger"},
	} {
		s, err := Open(ctx, cfg, dir)
		require.NoError(t, err, cfg.Backend)
		require.NoError(t, s.Put(ctx, "k", []byte("v"), time.Minute))
		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", string(got))
		require.NoError(t, s.Close())
	}

	_, err := Open(ctx, config.SessionConfig{Backend: "etcd"}, dir)
	assert.Error(t, err)
}
