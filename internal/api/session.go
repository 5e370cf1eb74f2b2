// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"net/http"

	"github.com/ManuGH/imjs-viewer/internal/auth"
	"github.com/ManuGH/imjs-viewer/internal/identity"
	xglog "github.com/ManuGH/imjs-viewer/internal/log"
	"github.com/ManuGH/imjs-viewer/internal/viewer"
)

// browserSession is the per-request view of one browser session: its stored
// record, the authorization client rebuilt from it and the controller
// subscribed to that client.
type browserSession struct {
	rec    *viewer.Record
	client *identity.Client
	ctrl   *viewer.SessionController
}

// sessionID returns the session id of r, issuing a new cookie when r has none.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	id := auth.SessionID(r, s.cfg.CookieName)
	if id == "" {
		id = auth.NewSessionID()
	}
	auth.SetSessionCookie(w, r, s.cfg.CookieName, id, s.cfg.SessionTTL)
	return id
}

// withSession runs fn on the session of r and persists the result.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, bs *browserSession) error) (*viewer.Record, context.Context, error) {
	id := s.sessionID(w, r)
	ctx := xglog.ContextWithSessionID(r.Context(), id)

	rec, err := s.sessions.Update(ctx, id, func(rec *viewer.Record) error {
		client := identity.NewClient(s.rt.Identity, rec.Auth)
		ctrl := viewer.NewSessionController(client, rec.App.Session)
		ctrl.Mount()
		defer ctrl.Unmount()

		bs := &browserSession{rec: rec, client: client, ctrl: ctrl}
		fnErr := fn(auth.WithPrincipal(ctx, client.Principal()), bs)

		rec.Auth = client.State()
		rec.App.Session = ctrl.State()
		return fnErr
	})
	if rec != nil {
		ctx = auth.WithPrincipal(ctx, rec.Auth.Principal)
	}
	return rec, ctx, err
}

// loadSession reads the session of r without changing it.
func (s *Server) loadSession(r *http.Request) (*viewer.Record, context.Context, error) {
	id := auth.SessionID(r, s.cfg.CookieName)
	if id == "" {
		return &viewer.Record{}, r.Context(), nil
	}
	ctx := xglog.ContextWithSessionID(r.Context(), id)
	rec, err := s.sessions.Load(ctx, id)
	if err != nil {
		return nil, ctx, err
	}
	return rec, auth.WithPrincipal(ctx, rec.Auth.Principal), nil
}

// accessToken returns the usable access token of rec, or "".
func (s *Server) accessToken(rec *viewer.Record) string {
	return identity.NewClient(s.rt.Identity, rec.Auth).AccessToken()
}
