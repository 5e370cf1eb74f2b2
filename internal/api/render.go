// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ManuGH/imjs-viewer/internal/auth"
	xglog "github.com/ManuGH/imjs-viewer/internal/log"
	"github.com/ManuGH/imjs-viewer/internal/metrics"
	"github.com/ManuGH/imjs-viewer/internal/viewer"
	"github.com/ManuGH/imjs-viewer/internal/webui"
)

// currentURL reconstructs the URL the browser requested.
func currentURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func (s *Server) screenFor(r *http.Request, rec *viewer.Record) viewer.Screen {
	return viewer.SelectScreen(rec.App, currentURL(r), s.redirectURI)
}

// renderScreen renders screen for rec. alert, when set, is shown as a
// blocking dialog.
func (s *Server) renderScreen(ctx context.Context, w http.ResponseWriter, status int, screen viewer.Screen, rec *viewer.Record, alert string) {
	data := webui.PageData{
		Alert:      alert,
		IModelName: s.rt.Config.IModel.Name,
	}
	if p := auth.PrincipalFromContext(ctx); p != nil {
		data.User = p.DisplayName()
	}
	if h := rec.App.Container(); h != nil {
		data.ProjectID = h.ProjectID
		data.IModelID = h.IModelID
		if h.Name != "" {
			data.IModelName = h.Name
		}
	}
	data.ViewID = string(rec.App.ViewID())

	metrics.RecordScreen(screen.String())
	if err := s.rt.UI.Render(w, status, screen.String(), data); err != nil {
		logger := xglog.WithComponentFromContext(ctx, "api")
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "ui.render_failed").
			Str(xglog.FieldScreen, screen.String()).
			Msg("failed to render screen")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
