// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment keys. The lower-case names are kept from the browser template.
const (
	EnvClientID       = "imjs_browser_test_client_id"
	EnvRedirectURI    = "imjs_browser_test_redirect_uri"
	EnvScope          = "imjs_browser_test_scope"
	EnvIModelName     = "imjs_test_imodel"
	EnvProjectName    = "imjs_test_project"
	EnvConfigPath     = "IMJS_CONFIG"
	EnvLogLevel       = "IMJS_LOG_LEVEL"
	EnvAppLogLevel    = "IMJS_APP_LOG_LEVEL"
	EnvDataDir        = "IMJS_DATA"
	EnvAuthority      = "IMJS_OIDC_AUTHORITY"
	EnvClientSecret   = "IMJS_OIDC_CLIENT_SECRET"
	EnvPostSignout    = "IMJS_OIDC_POST_SIGNOUT_REDIRECT_URI"
	EnvDiscoveryURL   = "IMJS_DISCOVERY_URL"
	EnvDiscoveryName  = "IMJS_DISCOVERY_SERVICE"
	EnvDiscoveryRgn   = "IMJS_DISCOVERY_REGION"
	EnvDiscoveryTTL   = "IMJS_DISCOVERY_CACHE_TTL"
	EnvDiscoveryHosts = "IMJS_DISCOVERY_ALLOWED_HOSTS"
	EnvRPCTitle       = "IMJS_RPC_TITLE"
	EnvRPCVersion     = "IMJS_RPC_VERSION"
	EnvRPCTimeout     = "IMJS_RPC_TIMEOUT"
	EnvPlatformURL    = "IMJS_PLATFORM_URL"
	EnvPlatformTO     = "IMJS_PLATFORM_TIMEOUT"
	EnvPlatformRate   = "IMJS_PLATFORM_RATE_LIMIT"
	EnvSessionBackend = "IMJS_SESSION_BACKEND"
	EnvSessionTTL     = "IMJS_SESSION_TTL"
	EnvRedisAddr      = "IMJS_REDIS_ADDR"
	EnvRedisPassword  = "IMJS_REDIS_PASSWORD"
	EnvSessionPath    = "IMJS_SESSION_PATH"
	EnvListen         = "IMJS_LISTEN"
	EnvMetricsListen  = "IMJS_METRICS_LISTEN"
	EnvTelemetry      = "IMJS_TELEMETRY_ENABLED"
	EnvTelemetryExp   = "IMJS_TELEMETRY_EXPORTER"
	EnvOTLPEndpoint   = "IMJS_OTLP_ENDPOINT"
	EnvSamplingRate   = "IMJS_SAMPLING_RATE"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty path means ENV-only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path the loader reads.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load resolves the configuration: defaults, then the strict YAML file, then ENV,
// then Validate. A configuration that fails validation is never returned.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Default()
	cfg.Version = l.version

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("load config file %s: %w", l.configPath, err)
		}
	}

	l.mergeEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// loadFile decodes a YAML file on top of cfg. Unknown fields are fatal.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.AppLogLevel = l.envString(EnvAppLogLevel, cfg.AppLogLevel)
	cfg.DataDir = l.envString(EnvDataDir, cfg.DataDir)

	cfg.OIDC.Authority = l.envString(EnvAuthority, cfg.OIDC.Authority)
	cfg.OIDC.ClientID = l.envString(EnvClientID, cfg.OIDC.ClientID)
	cfg.OIDC.ClientSecret = l.envString(EnvClientSecret, cfg.OIDC.ClientSecret)
	cfg.OIDC.RedirectURI = l.envString(EnvRedirectURI, cfg.OIDC.RedirectURI)
	cfg.OIDC.Scope = l.envString(EnvScope, cfg.OIDC.Scope)
	cfg.OIDC.PostSignoutRedirectURI = l.envString(EnvPostSignout, cfg.OIDC.PostSignoutRedirectURI)

	cfg.IModel.Name = l.envString(EnvIModelName, cfg.IModel.Name)
	cfg.IModel.Project = l.envString(EnvProjectName, cfg.IModel.Project)

	cfg.Discovery.URL = l.envString(EnvDiscoveryURL, cfg.Discovery.URL)
	cfg.Discovery.ServiceName = l.envString(EnvDiscoveryName, cfg.Discovery.ServiceName)
	cfg.Discovery.Region = l.envString(EnvDiscoveryRgn, cfg.Discovery.Region)
	cfg.Discovery.CacheTTL = l.envDuration(EnvDiscoveryTTL, cfg.Discovery.CacheTTL)
	if hosts := l.envString(EnvDiscoveryHosts, ""); hosts != "" {
		cfg.Discovery.AllowedHosts = splitList(hosts)
	}

	cfg.RPC.Title = l.envString(EnvRPCTitle, cfg.RPC.Title)
	cfg.RPC.Version = l.envString(EnvRPCVersion, cfg.RPC.Version)
	cfg.RPC.Timeout = l.envDuration(EnvRPCTimeout, cfg.RPC.Timeout)

	cfg.Platform.BaseURL = l.envString(EnvPlatformURL, cfg.Platform.BaseURL)
	cfg.Platform.Timeout = l.envDuration(EnvPlatformTO, cfg.Platform.Timeout)
	cfg.Platform.RateLimit = l.envFloat(EnvPlatformRate, cfg.Platform.RateLimit)

	cfg.Session.Backend = strings.ToLower(l.envString(EnvSessionBackend, cfg.Session.Backend))
	cfg.Session.TTL = l.envDuration(EnvSessionTTL, cfg.Session.TTL)
	cfg.Session.RedisAddr = l.envString(EnvRedisAddr, cfg.Session.RedisAddr)
	cfg.Session.RedisPassword = l.envString(EnvRedisPassword, cfg.Session.RedisPassword)
	cfg.Session.Path = l.envString(EnvSessionPath, cfg.Session.Path)

	cfg.Server.ListenAddr = l.envString(EnvListen, cfg.Server.ListenAddr)
	cfg.Metrics.ListenAddr = l.envString(EnvMetricsListen, cfg.Metrics.ListenAddr)

	cfg.Telemetry.Enabled = l.envBool(EnvTelemetry, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvTelemetryExp, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvOTLPEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvSamplingRate, cfg.Telemetry.SamplingRate)
}
