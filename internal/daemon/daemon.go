// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the viewer process together and manages its lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/imjs-viewer/internal/api"
	"github.com/ManuGH/imjs-viewer/internal/bootstrap"
	"github.com/ManuGH/imjs-viewer/internal/config"
	"github.com/ManuGH/imjs-viewer/internal/health"
	xglog "github.com/ManuGH/imjs-viewer/internal/log"
	"github.com/ManuGH/imjs-viewer/internal/metrics"
	"github.com/ManuGH/imjs-viewer/internal/store"
	"github.com/ManuGH/imjs-viewer/internal/telemetry"
	"github.com/ManuGH/imjs-viewer/internal/viewer"
)

const serviceName = "imjs-viewer"

// Options customizes Build.
type Options struct {
	Version string
	// ConfigHolder enables hot reload of log levels. Optional.
	ConfigHolder *config.ConfigHolder
	// HTTPClient replaces the outbound client of every remote call. Optional.
	HTTPClient *http.Client
}

// Daemon is a fully wired viewer process.
type Daemon struct {
	Runtime *bootstrap.Runtime
	Health  *health.Manager
	Handler http.Handler

	app     *App
	manager *Manager
	logger  zerolog.Logger
}

// Build performs startup: telemetry, environment checks, session store and
// the viewer runtime. Any failure aborts before a listener is bound.
func Build(ctx context.Context, cfg config.AppConfig, opts Options) (d *Daemon, err error) {
	logger := xglog.WithComponent("daemon")
	var cleanup []func(context.Context) error
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanup) - 1; i >= 0; i-- {
			_ = cleanup[i](context.Background())
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: opts.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}
	cleanup = append(cleanup, tp.Shutdown)

	if err := health.PerformStartupChecks(cfg); err != nil {
		return nil, err
	}

	sessionStore, err := store.Open(ctx, cfg.Session, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	cleanup = append(cleanup, func(context.Context) error { return sessionStore.Close() })

	var bootOpts []bootstrap.Option
	if opts.HTTPClient != nil {
		bootOpts = append(bootOpts, bootstrap.WithHTTPClient(opts.HTTPClient))
	}
	rt, err := bootstrap.Run(ctx, cfg, opts.Version, bootOpts...)
	if err != nil {
		return nil, err
	}

	hm := health.NewManager(opts.Version)
	registerChecks(hm, rt, sessionStore)

	tracing := ""
	if tp.Enabled() {
		tracing = serviceName
	}
	srv := api.New(rt, viewer.NewSessions(sessionStore, cfg.Session.TTL), hm, api.Config{
		CookieName:     cfg.Session.CookieName,
		SessionTTL:     cfg.Session.TTL,
		ServeMetrics:   cfg.Metrics.ListenAddr == "",
		TracingService: tracing,
	})

	deps := Deps{
		Logger:     logger,
		APIHandler: srv.Handler(),
	}
	if cfg.Metrics.ListenAddr != "" {
		deps.MetricsHandler = promhttp.Handler()
		deps.MetricsAddr = cfg.Metrics.ListenAddr
	}
	mgr, err := NewManager(cfg.Server, deps)
	if err != nil {
		return nil, err
	}
	mgr.AddCloser("telemetry", CloserFunc(tp.Shutdown))
	mgr.AddCloser("session_store", storeCloser{sessionStore})

	metrics.SetBuildInfo(opts.Version)

	return &Daemon{
		Runtime: rt,
		Health:  hm,
		Handler: srv.Handler(),
		app:     NewApp(logger, mgr, opts.ConfigHolder),
		manager: mgr,
		logger:  logger,
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info().
		Str(xglog.FieldEvent, "daemon.start").
		Str(xglog.FieldBaseURL, d.Runtime.Connection.BaseURL).
		Msg("starting viewer")
	err := d.app.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type storeCloser struct{ s store.Store }

func (c storeCloser) Close(context.Context) error { return c.s.Close() }

func registerChecks(hm *health.Manager, rt *bootstrap.Runtime, s store.Store) {
	hm.RegisterChecker(health.NewPingChecker("session_store", s.Ping, 2*time.Second))
	hm.RegisterChecker(health.NewBreakerChecker("rpc_backend", rt.RPC.BreakerState))
	hm.RegisterChecker(health.NewBreakerChecker("platform", rt.Platform.BreakerState))

	disc := rt.Config.Discovery
	hm.RegisterChecker(health.NewFuncChecker("discovery", func(ctx context.Context) health.CheckResult {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if _, err := rt.Discovery.DiscoverURL(checkCtx, disc.ServiceName, disc.Region); err != nil {
			// The backend URL is fixed at startup; a failing lookup does not stop serving.
			return health.CheckResult{Status: health.StatusDegraded, Error: err.Error()}
		}
		return health.CheckResult{Status: health.StatusHealthy}
	}))
}
