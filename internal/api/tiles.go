// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/imjs-viewer/internal/imodel"
	xglog "github.com/ManuGH/imjs-viewer/internal/log"
	"github.com/ManuGH/imjs-viewer/internal/remote"
)

// tileSession returns the access token and open container of r, or writes
// the error response and returns ok=false.
func (s *Server) tileSession(w http.ResponseWriter, r *http.Request) (token string, h *imodel.Handle, ok bool) {
	rec, ctx, err := s.loadSession(r)
	if err != nil {
		s.internalError(ctx, w, "session.load_failed", err)
		return "", nil, false
	}
	token = s.accessToken(rec)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return "", nil, false
	}
	h = rec.App.Container()
	if h == nil {
		writeError(w, http.StatusConflict, "no iModel open")
		return "", nil, false
	}
	return token, h, true
}

func (s *Server) handleTileTree(w http.ResponseWriter, r *http.Request) {
	token, h, ok := s.tileSession(w, r)
	if !ok {
		return
	}
	treeID := chi.URLParam(r, "treeID")
	props, err := s.rt.RPC.RequestTileTreeProps(r.Context(), token, h.Props(), treeID)
	if err != nil {
		s.upstreamError(w, r, "tile.tree_failed", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(props)
}

func (s *Server) handleTileContent(w http.ResponseWriter, r *http.Request) {
	token, h, ok := s.tileSession(w, r)
	if !ok {
		return
	}
	treeID := chi.URLParam(r, "treeID")
	contentID := chi.URLParam(r, "*")
	if contentID == "" {
		writeError(w, http.StatusBadRequest, "missing content id")
		return
	}
	tile, err := s.rt.RPC.GenerateTileContent(r.Context(), token, h.Props(), treeID, contentID, r.URL.Query().Get("guid"))
	if err != nil {
		s.upstreamError(w, r, "tile.content_failed", err)
		return
	}
	w.Header().Set("Content-Type", tileContentType(tile.ContentType))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Length", strconv.Itoa(len(tile.Data)))
	// Tiles are immutable for a given guid.
	if r.URL.Query().Get("guid") != "" {
		w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(tile.Data)
}

// tileMediaTypes are the tile formats passed through to the browser.
var tileMediaTypes = map[string]bool{
	"application/octet-stream": true,
	"model/gltf-binary":        true,
	"image/png":                true,
	"image/jpeg":               true,
}

// tileContentType returns ct when it names a tile format, else
// application/octet-stream.
func tileContentType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil || !tileMediaTypes[mt] {
		return "application/octet-stream"
	}
	return mt
}

// statusForUpstream maps a backend failure to the status returned to the browser.
func statusForUpstream(err error) int {
	switch {
	case errors.Is(err, remote.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, remote.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, remote.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, remote.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, remote.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, remote.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) upstreamError(w http.ResponseWriter, r *http.Request, event string, err error) {
	status := statusForUpstream(err)
	logger := xglog.WithComponentFromContext(r.Context(), "api")
	logger.Warn().
		Err(err).
		Str(xglog.FieldEvent, event).
		Int("status", status).
		Msg("tile request failed")
	writeError(w, status, err.Error())
}
