// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ManuGH/imjs-viewer/internal/auth"
	xglog "github.com/ManuGH/imjs-viewer/internal/log"
	"github.com/ManuGH/imjs-viewer/internal/viewer"
)

// pendingSignInTimeout ends the loading state of a sign-in the browser never
// came back from.
const pendingSignInTimeout = 10 * time.Minute

var errNotSignedIn = errors.New("not signed in")

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	rec, ctx, err := s.withSession(w, r, func(ctx context.Context, bs *browserSession) error {
		st := bs.client.State()
		if bs.ctrl.State().IsLoading && (st.Pending == nil || time.Since(st.Pending.StartedAt) > pendingSignInTimeout) {
			bs.ctrl.OnUserStateChanged()
		}
		if !bs.client.IsAuthorized() && bs.client.CanSignInSilently() {
			if err := bs.client.SignInSilent(ctx); err != nil {
				logger := xglog.WithComponentFromContext(ctx, "api")
				logger.Debug().
					Err(err).
					Str(xglog.FieldEvent, "session.silent_signin_failed").
					Msg("silent sign-in failed, interactive sign-in required")
			}
		}
		return nil
	})
	if err != nil {
		s.internalError(ctx, w, "session.load_failed", err)
		return
	}
	s.renderScreen(ctx, w, http.StatusOK, s.screenFor(r, rec), rec, "")
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var target string
	rec, ctx, err := s.withSession(w, r, func(ctx context.Context, bs *browserSession) error {
		u, err := bs.ctrl.StartSignIn(ctx)
		target = u
		return err
	})
	if err != nil {
		if rec == nil {
			s.internalError(ctx, w, "session.load_failed", err)
			return
		}
		s.renderScreen(ctx, w, http.StatusInternalServerError, viewer.ScreenNeedsSignIn, rec, err.Error())
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("code") == "" && q.Get("error") == "" {
		rec, ctx, err := s.loadSession(r)
		if err != nil {
			s.internalError(ctx, w, "session.load_failed", err)
			return
		}
		s.renderScreen(ctx, w, http.StatusOK, s.screenFor(r, rec), rec, "")
		return
	}

	rec, ctx, err := s.withSession(w, r, func(ctx context.Context, bs *browserSession) error {
		return bs.client.HandleCallback(ctx, q)
	})
	if err != nil {
		if rec == nil {
			s.internalError(ctx, w, "session.load_failed", err)
			return
		}
		logger := xglog.WithComponentFromContext(ctx, "api")
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "session.callback_rejected").
			Msg("sign-in callback rejected")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	var target string
	rec, ctx, err := s.withSession(w, r, func(ctx context.Context, bs *browserSession) error {
		if h := bs.rec.App.Container(); h != nil {
			if err := s.rt.Opener.Close(ctx, bs.client.AccessToken(), &bs.rec.App); err != nil {
				logger := xglog.WithComponentFromContext(ctx, "api")
				logger.Warn().
					Err(err).
					Str(xglog.FieldEvent, "imodel.close_failed").
					Str(xglog.FieldIModelID, h.IModelID).
					Msg("could not close iModel on sign-out")
			}
		}
		u, err := bs.ctrl.SignOut(ctx)
		target = u
		return err
	})
	if rec == nil {
		s.internalError(ctx, w, "session.load_failed", err)
		return
	}
	if err != nil {
		logger := xglog.WithComponentFromContext(ctx, "api")
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "session.signout_failed").
			Msg("sign-out failed")
	}
	if err := s.sessions.Delete(ctx, rec.ID); err != nil {
		logger := xglog.WithComponentFromContext(ctx, "api")
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "session.delete_failed").
			Msg("could not delete session")
	}
	auth.ClearSessionCookie(w, r, s.cfg.CookieName)

	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	rec, ctx, err := s.withSession(w, r, func(ctx context.Context, bs *browserSession) error {
		if !bs.client.IsAuthorized() {
			return errNotSignedIn
		}
		return s.rt.Opener.Open(ctx, bs.client.AccessToken(), &bs.rec.App)
	})
	switch {
	case rec == nil:
		s.internalError(ctx, w, "session.load_failed", err)
	case errors.Is(err, errNotSignedIn):
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case err != nil:
		// The raw message is what the user sees; there is no retry.
		s.renderScreen(ctx, w, http.StatusUnprocessableEntity, viewer.ScreenNeedsContainerSelection, rec, err.Error())
	default:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	rec, ctx, err := s.withSession(w, r, func(ctx context.Context, bs *browserSession) error {
		return s.rt.Opener.Close(ctx, bs.client.AccessToken(), &bs.rec.App)
	})
	if rec == nil {
		s.internalError(ctx, w, "session.load_failed", err)
		return
	}
	if err != nil {
		logger := xglog.WithComponentFromContext(ctx, "api")
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "imodel.close_failed").
			Msg("could not close iModel")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type stateResponse struct {
	Screen    viewer.Screen       `json:"screen"`
	Session   viewer.SessionState `json:"session"`
	Project   string              `json:"projectId,omitempty"`
	IModel    string              `json:"iModelId,omitempty"`
	ViewID    string              `json:"viewId,omitempty"`
	User      string              `json:"user,omitempty"`
	Changeset string              `json:"changesetId,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	rec, ctx, err := s.loadSession(r)
	if err != nil {
		s.internalError(ctx, w, "session.load_failed", err)
		return
	}
	// Reflect token expiry without touching the stored record.
	rec.App.Session.IsAuthorized = s.accessToken(rec) != ""

	resp := stateResponse{
		Screen:  s.screenFor(r, rec),
		Session: rec.App.Session,
		ViewID:  string(rec.App.ViewID()),
	}
	if h := rec.App.Container(); h != nil {
		resp.Project = h.ProjectID
		resp.IModel = h.IModelID
		resp.Changeset = h.ChangesetID
	}
	if p := auth.PrincipalFromContext(ctx); p != nil {
		resp.User = p.DisplayName()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) internalError(ctx context.Context, w http.ResponseWriter, event string, err error) {
	logger := xglog.WithComponentFromContext(ctx, "api")
	logger.Error().
		Err(err).
		Str(xglog.FieldEvent, event).
		Msg("request failed")
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
