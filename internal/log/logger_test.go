// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		out = append(out, entry)
	}
	return out
}

func TestConfigure_DefaultIsWarn(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	defer Configure(Config{})

	l := WithComponent("rpc")
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
	assert.Equal(t, "rpc", lines[0][FieldComponent])
}

func TestConfigure_AppComponentOverride(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{
		Level:           "warn",
		Output:          &buf,
		Service:         "viewer-test",
		Version:         "v0.0.1",
		ComponentLevels: map[string]string{AppComponent: "info"},
	})
	defer Configure(Config{})

	discovery := WithComponent("discovery")
	discovery.Info().Msg("hidden")
	app := App()
	app.Info().Msg("app info")
	app.Debug().Msg("app debug hidden")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "app info", lines[0]["message"])
	assert.Equal(t, AppComponent, lines[0][FieldComponent])
	assert.Equal(t, "viewer-test", lines[0]["service"])
	assert.Equal(t, "v0.0.1", lines[0]["version"])
}

func TestSetComponentLevel(t *testing.T) {
	Configure(Config{Level: "warn"})
	defer Configure(Config{})

	require.NoError(t, SetComponentLevel("store", "debug"))
	assert.Equal(t, zerolog.DebugLevel, ComponentLevel("store"))

	require.NoError(t, SetComponentLevel("store", ""))
	assert.Equal(t, zerolog.WarnLevel, ComponentLevel("store"))

	assert.Error(t, SetComponentLevel("store", "loud"))
}

func TestMiddleware_LogsServerErrors(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "info", Output: &buf})
	defer Configure(Config{})

	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info().Msg("inside")
		w.WriteHeader(http.StatusBadGateway)
	}))

	req := httptest.NewRequest(http.MethodGet, "/imodel/open", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "rid-1"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "inside", lines[0]["message"])
	assert.Equal(t, "request.handled", lines[1][FieldEvent])
	assert.Equal(t, float64(http.StatusBadGateway), lines[1]["status"])
	assert.Equal(t, "rid-1", lines[1][FieldRequestID])
	assert.Equal(t, "error", lines[1]["level"])
}
