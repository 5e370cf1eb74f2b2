// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bootstrap performs the one-time startup of the viewer: identity
// provider discovery, backend URL discovery, remote interface registration
// and UI initialization.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/imjs-viewer/internal/config"
	"github.com/ManuGH/imjs-viewer/internal/discovery"
	"github.com/ManuGH/imjs-viewer/internal/identity"
	"github.com/ManuGH/imjs-viewer/internal/imodel"
	xglog "github.com/ManuGH/imjs-viewer/internal/log"
	"github.com/ManuGH/imjs-viewer/internal/outbound"
	"github.com/ManuGH/imjs-viewer/internal/platform"
	"github.com/ManuGH/imjs-viewer/internal/remote"
	"github.com/ManuGH/imjs-viewer/internal/rpc"
	"github.com/ManuGH/imjs-viewer/internal/viewer"
	"github.com/ManuGH/imjs-viewer/internal/views"
	"github.com/ManuGH/imjs-viewer/internal/webui"
)

// Runtime is the explicitly constructed application context shared by every
// request handler.
type Runtime struct {
	Version string
	Config  config.AppConfig

	Identity   *identity.Provider
	Discovery  *discovery.Client
	Connection rpc.ConnectionInfo
	RPC        *rpc.Client
	Platform   *platform.Client
	Selector   *imodel.Selector
	Resolver   *views.Resolver
	Opener     *viewer.Opener
	UI         *webui.Renderer
}

// Option customizes Run.
type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient routes every outbound call through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// Run initializes the runtime. Any error aborts startup.
func Run(ctx context.Context, cfg config.AppConfig, version string, opts ...Option) (*Runtime, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := xglog.WithComponent(xglog.AppComponent)
	start := time.Now()

	rt := &Runtime{Version: version, Config: cfg}

	var idOpts []identity.Option
	if o.httpClient != nil {
		idOpts = append(idOpts, identity.WithHTTPClient(o.httpClient))
	}
	provider, err := identity.NewProvider(ctx, identity.ConfigFrom(cfg.OIDC), idOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialize identity: %w", err)
	}
	rt.Identity = provider

	var discOpts []discovery.Option
	var remoteOpts []remote.Option
	if o.httpClient != nil {
		discOpts = append(discOpts, discovery.WithHTTPClient(o.httpClient))
		remoteOpts = append(remoteOpts, remote.WithHTTPClient(o.httpClient))
	}
	policy, err := outbound.NewPolicy(cfg.Discovery.AllowedHosts)
	if err != nil {
		return nil, fmt.Errorf("initialize discovery: %w", err)
	}
	discOpts = append(discOpts, discovery.WithPolicy(policy))
	rt.Discovery = discovery.New(cfg.Discovery.URL, cfg.Discovery.CacheTTL, cfg.Discovery.Timeout, discOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		baseURL, err := rt.Discovery.DiscoverURL(gctx, cfg.Discovery.ServiceName, cfg.Discovery.Region)
		if err != nil {
			return fmt.Errorf("initialize rpc: %w", err)
		}
		rt.Connection = rpc.ConnectionInfo{
			ServiceTitle:   cfg.RPC.Title,
			ServiceVersion: cfg.RPC.Version,
			BaseURL:        baseURL,
		}
		rt.RPC = rpc.NewClient(rpc.Config{Info: rt.Connection, Timeout: cfg.RPC.Timeout},
			rpc.NewRegistry(rpc.DefaultInterfaces()...), remoteOpts...)
		return nil
	})
	g.Go(func() error {
		ui, err := webui.Load()
		if err != nil {
			return fmt.Errorf("initialize ui: %w", err)
		}
		rt.UI = ui
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rt.Platform = platform.New(platform.Config{
		BaseURL:   cfg.Platform.BaseURL,
		Timeout:   cfg.Platform.Timeout,
		RateLimit: cfg.Platform.RateLimit,
		Burst:     cfg.Platform.RateLimitBurst,
	}, remoteOpts...)
	rt.Selector = imodel.NewSelector(rt.Platform, rt.RPC)
	rt.Resolver = views.NewResolver(rt.RPC)
	rt.Opener = viewer.NewOpener(rt.Selector, rt.Resolver, cfg.IModel.EffectiveProject(), cfg.IModel.Name)

	logger.Info().
		Str(xglog.FieldEvent, "bootstrap.ready").
		Str(xglog.FieldBaseURL, rt.Connection.BaseURL).
		Strs("interfaces", interfaceNames(rt.RPC.Registry().List())).
		Dur("duration", time.Since(start)).
		Msg("runtime initialized")
	return rt, nil
}

func interfaceNames(ifaces []rpc.Interface) []string {
	out := make([]string, len(ifaces))
	for i, iface := range ifaces {
		out[i] = iface.String()
	}
	return out
}
