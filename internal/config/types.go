// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strings"
	"time"
)

// AppConfig is the fully resolved configuration of the viewer daemon.
// The YAML tags double as the file schema.
type AppConfig struct {
	Version     string `yaml:"-"`
	DataDir     string `yaml:"dataDir"`
	LogLevel    string `yaml:"logLevel"`
	AppLogLevel string `yaml:"appLogLevel"`

	OIDC      OIDCConfig          `yaml:"oidc"`
	IModel    IModelConfig        `yaml:"imodel"`
	Discovery DiscoveryConfig     `yaml:"discovery"`
	RPC       RPCConfig           `yaml:"rpc"`
	Platform  PlatformConfig      `yaml:"platform"`
	Session   SessionConfig       `yaml:"session"`
	Server    ServerRuntimeConfig `yaml:"server"`
	Metrics   MetricsConfig       `yaml:"metrics"`
	Telemetry TelemetryConfig     `yaml:"telemetry"`
}

// OIDCConfig configures the authorization-code sign-in flow.
type OIDCConfig struct {
	Authority              string `yaml:"authority"`
	ClientID               string `yaml:"clientId"`
	ClientSecret           string `yaml:"clientSecret"`
	RedirectURI            string `yaml:"redirectUri"`
	Scope                  string `yaml:"scope"`
	PostSignoutRedirectURI string `yaml:"postSignoutRedirectUri"`
}

// Scopes splits the space separated scope string.
func (c OIDCConfig) Scopes() []string {
	return strings.Fields(c.Scope)
}

// IModelConfig names the container opened by the selection screen.
type IModelConfig struct {
	Name    string `yaml:"name"`
	Project string `yaml:"project"`
}

// EffectiveProject returns the project name, defaulting to the container name.
func (c IModelConfig) EffectiveProject() string {
	if p := strings.TrimSpace(c.Project); p != "" {
		return p
	}
	return c.Name
}

// DiscoveryConfig configures the URL discovery lookup of the backend.
type DiscoveryConfig struct {
	URL         string        `yaml:"url"`
	ServiceName string        `yaml:"serviceName"`
	Region      string        `yaml:"region"`
	CacheTTL    time.Duration `yaml:"cacheTTL"`
	Timeout     time.Duration `yaml:"timeout"`

	// AllowedHosts limits resolved backend URLs; ".example.com" matches subdomains.
	AllowedHosts []string `yaml:"allowedHosts,omitempty"`
}

// RPCConfig identifies the backend service the RPC client talks to.
type RPCConfig struct {
	Title   string        `yaml:"title"`
	Version string        `yaml:"version"`
	Timeout time.Duration `yaml:"timeout"`
}

// PlatformConfig configures the project / iModel lookup API.
type PlatformConfig struct {
	BaseURL        string        `yaml:"baseURL"`
	Timeout        time.Duration `yaml:"timeout"`
	RateLimit      float64       `yaml:"rateLimit"`
	RateLimitBurst int           `yaml:"rateLimitBurst"`
}

// SessionConfig selects the browser session store.
type SessionConfig struct {
	Backend       string        `yaml:"backend"`
	TTL           time.Duration `yaml:"ttl"`
	CookieName    string        `yaml:"cookieName"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
	Path          string        `yaml:"path"`
}

// ServerRuntimeConfig holds HTTP listener settings.
type ServerRuntimeConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	MaxHeaderBytes  int           `yaml:"maxHeaderBytes"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// String renders a redacted one-line summary suitable for logs.
func (c AppConfig) String() string {
	var b strings.Builder
	b.WriteString("imodel=")
	b.WriteString(c.IModel.Name)
	b.WriteString(" project=")
	b.WriteString(c.IModel.EffectiveProject())
	b.WriteString(" authority=")
	b.WriteString(c.OIDC.Authority)
	b.WriteString(" client_id=")
	b.WriteString(c.OIDC.ClientID)
	if c.OIDC.ClientSecret != "" {
		b.WriteString(" client_secret=***")
	}
	b.WriteString(" discovery=")
	b.WriteString(c.Discovery.URL)
	b.WriteString(" session=")
	b.WriteString(c.Session.Backend)
	return b.String()
}
