// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/imjs-viewer/internal/config"
	"github.com/ManuGH/imjs-viewer/internal/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version.Version)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = execute(t, "config", "init", "--config", path)
	require.Error(t, err, "existing file is kept without --force")

	_, err = execute(t, "config", "init", "--config", path, "--force")
	require.NoError(t, err)
}

func TestConfigShow_MissingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	_, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)

	_, err = execute(t, "config", "show", "--config", path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrConfigurationMissing))
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvDataDir, dir)
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv(config.EnvClientID, "spa-client")
	t.Setenv(config.EnvRedirectURI, "http://localhost:3000/signin-callback")
	t.Setenv(config.EnvScope, "openid profile")
	t.Setenv(config.EnvIModelName, "Bay Town")
	t.Setenv(config.EnvClientSecret, "s3cret-value")

	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "spa-client")
	assert.Contains(t, out, "***")
	assert.NotContains(t, out, "s3cret-value")
}

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvDataDir, dir)
	t.Setenv(config.EnvConfigPath, "")

	cmd := newRootCmd()
	assert.Empty(t, resolveConfigPath(cmd), "no file, no flag, no env")

	auto := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(auto, []byte("logLevel: info\n"), 0o600))
	assert.Equal(t, auto, resolveConfigPath(cmd))

	t.Setenv(config.EnvConfigPath, "/etc/imjs/env.yaml")
	assert.Equal(t, "/etc/imjs/env.yaml", resolveConfigPath(cmd))

	require.NoError(t, cmd.PersistentFlags().Set("config", "/etc/imjs/flag.yaml"))
	assert.Equal(t, "/etc/imjs/flag.yaml", resolveConfigPath(cmd))
}

func TestHealthcheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz":
			w.WriteHeader(http.StatusOK)
		case "/readyz":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	out, err := execute(t, "healthcheck", "--mode", "live", "--url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "OK")

	_, err = execute(t, "healthcheck", "--mode", "ready", "--url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	_, err = execute(t, "healthcheck", "--mode", "bogus", "--url", srv.URL)
	require.Error(t, err)
}
