// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/imjs-viewer/internal/config"
	xglog "github.com/ManuGH/imjs-viewer/internal/log"
)

const defaultShutdownTimeout = 10 * time.Second

// Closer is a resource released once the listeners have stopped.
type Closer interface {
	Close(ctx context.Context) error
}

// CloserFunc adapts a function to Closer.
type CloserFunc func(ctx context.Context) error

// Close calls f.
func (f CloserFunc) Close(ctx context.Context) error { return f(ctx) }

type namedCloser struct {
	name string
	c    Closer
}

type listenerSpec struct {
	name    string
	addr    string
	handler http.Handler
	// limited applies the full server timeouts and header limit.
	limited bool
}

type listener struct {
	name string
	srv  *http.Server
	ln   net.Listener
}

type managerState int

const (
	stateIdle managerState = iota
	stateServing
	stateStopping
)

// Manager runs the viewer listener and the optional metrics listener, and
// releases the registered closers after both are down.
type Manager struct {
	cfg    config.ServerRuntimeConfig
	deps   Deps
	logger zerolog.Logger

	mu        sync.Mutex
	state     managerState
	stopping  chan struct{}
	listeners []*listener
	closers   []namedCloser
}

// NewManager validates deps and returns an idle manager.
func NewManager(cfg config.ServerRuntimeConfig, deps Deps) (*Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger.With().Str(xglog.FieldComponent, "manager").Logger(),
		stopping: make(chan struct{}),
	}, nil
}

// AddCloser registers c to be closed during shutdown. Closers run in reverse
// registration order.
func (m *Manager) AddCloser(name string, c Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closers = append(m.closers, namedCloser{name: name, c: c})
}

// Start binds the listeners and serves until ctx is cancelled or a listener
// fails, then shuts down. A bind failure is returned before anything serves.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != stateIdle {
		m.mu.Unlock()
		return errors.New("manager already started")
	}
	m.state = stateServing
	m.mu.Unlock()

	listeners, err := m.bind()
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.state != stateServing {
		m.mu.Unlock()
		for _, l := range listeners {
			_ = l.ln.Close()
		}
		return nil
	}
	m.listeners = listeners
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range listeners {
		g.Go(func() error {
			m.logger.Info().
				Str(xglog.FieldEvent, "listener.started").
				Str("listener", l.name).
				Str("addr", l.ln.Addr().String()).
				Msg("listening")
			if err := l.srv.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				m.logger.Error().
					Err(err).
					Str(xglog.FieldEvent, "listener.failed").
					Str("listener", l.name).
					Msg("listener failed")
				return fmt.Errorf("%s listener: %w", l.name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return m.Shutdown(context.WithoutCancel(ctx))
		case <-m.stopping:
			return nil
		}
	})
	return g.Wait()
}

func (m *Manager) bind() ([]*listener, error) {
	specs := []listenerSpec{{name: "api", addr: m.cfg.ListenAddr, handler: m.deps.APIHandler, limited: true}}
	if m.deps.MetricsHandler != nil && m.deps.MetricsAddr != "" {
		specs = append(specs, listenerSpec{name: "metrics", addr: m.deps.MetricsAddr, handler: m.deps.MetricsHandler})
	}

	var out []*listener
	for _, s := range specs {
		ln, err := net.Listen("tcp", s.addr)
		if err != nil {
			for _, l := range out {
				_ = l.ln.Close()
			}
			return nil, fmt.Errorf("bind %s listener on %s: %w", s.name, s.addr, err)
		}
		srv := &http.Server{
			Handler:           s.handler,
			ReadHeaderTimeout: m.cfg.ReadTimeout / 2,
		}
		if s.limited {
			srv.ReadTimeout = m.cfg.ReadTimeout
			srv.WriteTimeout = m.cfg.WriteTimeout
			srv.IdleTimeout = m.cfg.IdleTimeout
			srv.MaxHeaderBytes = m.cfg.MaxHeaderBytes
		}
		out = append(out, &listener{name: s.name, srv: srv, ln: ln})
	}
	return out, nil
}

// Shutdown drains the listeners within the configured timeout and then runs
// the closers. A second call is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case stateIdle:
		m.mu.Unlock()
		return ErrManagerNotStarted
	case stateStopping:
		m.mu.Unlock()
		return nil
	}
	m.state = stateStopping
	close(m.stopping)
	listeners := m.listeners
	closers := m.closers
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	for _, l := range listeners {
		if err := l.srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s listener: %w", l.name, err))
		}
	}
	for i := len(closers) - 1; i >= 0; i-- {
		nc := closers[i]
		start := time.Now()
		if err := nc.c.Close(ctx); err != nil {
			m.logger.Error().
				Err(err).
				Str(xglog.FieldEvent, "closer.failed").
				Str("closer", nc.name).
				Dur("duration", time.Since(start)).
				Msg("close failed")
			errs = append(errs, fmt.Errorf("close %s: %w", nc.name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	m.logger.Info().
		Str(xglog.FieldEvent, "daemon.stopped").
		Int("closers", len(closers)).
		Msg("stopped cleanly")
	return nil
}
