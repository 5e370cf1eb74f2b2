// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the viewer's screens and its JSON and tile endpoints.
package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/imjs-viewer/internal/api/middleware"
	"github.com/ManuGH/imjs-viewer/internal/bootstrap"
	"github.com/ManuGH/imjs-viewer/internal/health"
	"github.com/ManuGH/imjs-viewer/internal/viewer"
)

// Config holds the HTTP settings of the Server.
type Config struct {
	CookieName string
	SessionTTL time.Duration
	// ServeMetrics mounts /metrics on this router. It is off when metrics
	// have their own listener.
	ServeMetrics bool
	// TracingService enables request tracing under this service name.
	TracingService string
}

// Server represents the HTTP server of the viewer.
type Server struct {
	rt       *bootstrap.Runtime
	sessions *viewer.Sessions
	health   *health.Manager
	cfg      Config

	redirectURI string
	router      chi.Router
}

// New builds the server and its routes.
func New(rt *bootstrap.Runtime, sessions *viewer.Sessions, hm *health.Manager, cfg Config) *Server {
	s := &Server{
		rt:          rt,
		sessions:    sessions,
		health:      hm,
		cfg:         cfg,
		redirectURI: rt.Identity.Config().RedirectURI,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         true,
		EnableCSRF:            true,
		AllowedOrigins:        originOf(s.redirectURI),
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	if s.cfg.ServeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Get("/", s.handleIndex)
	r.Get(s.rt.Identity.RedirectPath(), s.handleCallback)
	r.With(middleware.SignInRateLimit()).Post("/signin", s.handleSignIn)
	r.Post("/signout", s.handleSignOut)

	r.Route("/imodel", func(r chi.Router) {
		r.With(middleware.OpenRateLimit()).Post("/open", s.handleOpen)
		r.Post("/close", s.handleClose)
		r.Get("/tiles/{treeID}", s.handleTileTree)
		r.Get("/tiles/{treeID}/*", s.handleTileContent)
	})

	r.Get("/api/state", s.handleState)
	r.Get("/api/openapi.yaml", handleOpenAPI)
	return r
}

// originOf returns the origin of the public URL, if it has one.
func originOf(raw string) []string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return []string{u.Scheme + "://" + u.Host}
}
