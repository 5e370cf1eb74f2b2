// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package webui

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEveryPage(t *testing.T) {
	r, err := Load()
	require.NoError(t, err)

	for _, page := range Pages {
		t.Run(page, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, r.Render(w, http.StatusOK, page, PageData{}))
			assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
			assert.Contains(t, w.Body.String(), `data-screen="`+page+`"`)
		})
	}
}

func TestRender_AlertIsEscapedDialog(t *testing.T) {
	r, err := Load()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	require.NoError(t, r.Render(w, http.StatusUnprocessableEntity, "needs_container_selection", PageData{
		Alert: `no views available <script>`,
	}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<dialog open")
	assert.Contains(t, body, "no views available &lt;script&gt;")
}

func TestRender_Viewing(t *testing.T) {
	r, err := Load()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	require.NoError(t, r.Render(w, http.StatusOK, "viewing", PageData{ProjectID: "p1", IModelID: "m1", ViewID: "0x20"}))
	assert.Contains(t, w.Body.String(), `data-view-id="0x20"`)
	assert.Contains(t, w.Body.String(), `data-imodel-id="m1"`)
}

func TestRender_UnknownPage(t *testing.T) {
	r, err := Load()
	require.NoError(t, err)
	assert.Error(t, r.Render(httptest.NewRecorder(), http.StatusOK, "nope", PageData{}))
}
