// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// SessionBackends lists the accepted values of session.backend.
var SessionBackends = []string{"memory", "redis", "badger", "sqlite"}

// Validate reports every problem of cfg at once. Missing required values
// wrap ErrConfigurationMissing, malformed ones ErrInvalidValue.
func Validate(cfg AppConfig) error {
	var errs []error

	missing := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrConfigurationMissing, key))
		}
	}
	invalid := func(key, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidValue, key, fmt.Sprintf(format, args...)))
	}

	missing(EnvClientID, cfg.OIDC.ClientID)
	missing(EnvRedirectURI, cfg.OIDC.RedirectURI)
	missing(EnvScope, cfg.OIDC.Scope)
	missing(EnvIModelName, cfg.IModel.Name)
	missing(EnvAuthority, cfg.OIDC.Authority)
	missing(EnvDiscoveryURL, cfg.Discovery.URL)
	missing(EnvDiscoveryName, cfg.Discovery.ServiceName)
	missing(EnvRPCTitle, cfg.RPC.Title)
	missing(EnvRPCVersion, cfg.RPC.Version)
	missing(EnvPlatformURL, cfg.Platform.BaseURL)

	for key, raw := range map[string]string{
		EnvRedirectURI:  cfg.OIDC.RedirectURI,
		EnvAuthority:    cfg.OIDC.Authority,
		EnvDiscoveryURL: cfg.Discovery.URL,
		EnvPlatformURL:  cfg.Platform.BaseURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			invalid(key, "not an absolute URL: %q", raw)
		}
	}

	for key, lvl := range map[string]string{EnvLogLevel: cfg.LogLevel, EnvAppLogLevel: cfg.AppLogLevel} {
		if lvl == "" {
			continue
		}
		if _, err := zerolog.ParseLevel(strings.ToLower(lvl)); err != nil {
			invalid(key, "unknown level %q", lvl)
		}
	}

	if !containsString(SessionBackends, cfg.Session.Backend) {
		invalid(EnvSessionBackend, "%q (want one of %s)", cfg.Session.Backend, strings.Join(SessionBackends, ", "))
	}
	if (cfg.Session.Backend == "badger" || cfg.Session.Backend == "sqlite") && cfg.Session.Path == "" && cfg.DataDir == "" {
		missing(EnvSessionPath, "")
	}
	if cfg.Session.TTL <= 0 {
		invalid(EnvSessionTTL, "must be positive, got %s", cfg.Session.TTL)
	}
	if cfg.Platform.RateLimit < 0 {
		invalid(EnvPlatformRate, "must not be negative, got %v", cfg.Platform.RateLimit)
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		invalid(EnvSamplingRate, "must be within [0,1], got %v", cfg.Telemetry.SamplingRate)
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Exporter != "grpc" && cfg.Telemetry.Exporter != "http" {
		invalid(EnvTelemetryExp, "%q (want grpc or http)", cfg.Telemetry.Exporter)
	}

	return errors.Join(errs...)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
