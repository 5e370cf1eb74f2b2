// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Defaults mirroring the browser template this service replaces.
const (
	DefaultAuthority       = "https://ims.bentley.com"
	DefaultDiscoveryURL    = "https://buddi.bentley.com/WebService"
	DefaultDiscoveryKey    = "iModelJsOrchestrator.K8S"
	DefaultRPCTitle        = "general-purpose-imodeljs-backend"
	DefaultRPCVersion      = "v2.0"
	DefaultPlatformURL     = "https://api.bentley.com"
	DefaultSessionCookie   = "imjs_session"
	DefaultListenAddr      = ":3000"
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultMaxHeaderBytes  = 1 << 20
	defaultShutdownTimeout = 15 * time.Second
)

// Default returns the configuration used before file and environment are applied.
func Default() AppConfig {
	return AppConfig{
		DataDir:     "/tmp/imjs-viewer",
		LogLevel:    "warn",
		AppLogLevel: "info",
		OIDC: OIDCConfig{
			Authority: DefaultAuthority,
		},
		Discovery: DiscoveryConfig{
			URL:         DefaultDiscoveryURL,
			ServiceName: DefaultDiscoveryKey,
			CacheTTL:    10 * time.Minute,
			Timeout:     30 * time.Second,
		},
		RPC: RPCConfig{
			Title:   DefaultRPCTitle,
			Version: DefaultRPCVersion,
			Timeout: 30 * time.Second,
		},
		Platform: PlatformConfig{
			BaseURL:        DefaultPlatformURL,
			Timeout:        30 * time.Second,
			RateLimit:      10,
			RateLimitBurst: 20,
		},
		Session: SessionConfig{
			Backend:    "memory",
			TTL:        24 * time.Hour,
			CookieName: DefaultSessionCookie,
			RedisAddr:  "localhost:6379",
		},
		Server: ServerRuntimeConfig{
			ListenAddr:      DefaultListenAddr,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			MaxHeaderBytes:  defaultMaxHeaderBytes,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			Environment:  "production",
			SamplingRate: 1.0,
		},
	}
}
