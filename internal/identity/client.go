// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package identity

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/ManuGH/imjs-viewer/internal/auth"
	xglog "github.com/ManuGH/imjs-viewer/internal/log"
	"github.com/ManuGH/imjs-viewer/internal/metrics"
)

// Pending is an interactive sign-in awaiting its callback.
type Pending struct {
	State     string    `json:"state"`
	Verifier  string    `json:"verifier"`
	StartedAt time.Time `json:"startedAt"`
}

// State is the persisted authorization state of one browser session.
type State struct {
	Token     *oauth2.Token   `json:"token,omitempty"`
	IDToken   string          `json:"idToken,omitempty"`
	Pending   *Pending        `json:"pending,omitempty"`
	Principal *auth.Principal `json:"principal,omitempty"`
}

// Client is the browser authorization client of one session.
type Client struct {
	p       *Provider
	changed Event

	mu sync.Mutex
	st State
}

// NewClient restores a session's client from its persisted state.
func NewClient(p *Provider, st State) *Client {
	return &Client{p: p, st: st}
}

// State returns a copy of the state to persist.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

// IsAuthorized reports whether the session holds a valid access token.
func (c *Client) IsAuthorized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.Token != nil && c.st.Token.Valid()
}

// AccessToken returns the current access token, or "".
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.Token == nil || !c.st.Token.Valid() {
		return ""
	}
	return c.st.Token.AccessToken
}

// Principal returns the signed-in user, or nil.
func (c *Client) Principal() *auth.Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.Principal
}

// CanSignInSilently reports whether an expired session can be renewed without
// user interaction.
func (c *Client) CanSignInSilently() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.Token != nil && !c.st.Token.Valid() && c.st.Token.RefreshToken != ""
}

// OnUserStateChanged registers fn for sign-in and sign-out notifications.
func (c *Client) OnUserStateChanged(fn func()) *Subscription {
	return c.changed.Subscribe(fn)
}

// SignIn starts an interactive sign-in and returns the URL to send the
// browser to.
func (c *Client) SignIn(ctx context.Context) (string, error) {
	pending := &Pending{
		State:     uuid.NewString(),
		Verifier:  oauth2.GenerateVerifier(),
		StartedAt: time.Now().UTC(),
	}
	c.mu.Lock()
	c.st.Pending = pending
	c.mu.Unlock()

	metrics.RecordSignIn("interactive", "started")
	logger := xglog.WithComponentFromContext(ctx, "identity")
	logger.Debug().
		Str(xglog.FieldEvent, "identity.signin_started").
		Msg("redirecting to identity provider")
	return c.p.AuthCodeURL(pending.State, pending.Verifier), nil
}

// HandleCallback completes a pending sign-in from the redirect query. Listeners
// are notified whether or not it succeeds.
func (c *Client) HandleCallback(ctx context.Context, q url.Values) error {
	err := c.completeCallback(ctx, q)
	outcome := "success"
	if err != nil {
		outcome = "failure"
		logger := xglog.WithComponentFromContext(ctx, "identity")
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "identity.callback_failed").
			Msg("sign-in callback failed")
	}
	metrics.RecordSignIn("callback", outcome)
	c.changed.Raise()
	return err
}

func (c *Client) completeCallback(ctx context.Context, q url.Values) error {
	c.mu.Lock()
	pending := c.st.Pending
	c.st.Pending = nil
	c.mu.Unlock()

	if pending == nil {
		return fmt.Errorf("%w: no sign-in in progress", ErrAuthFailure)
	}
	if e := q.Get("error"); e != "" {
		if d := q.Get("error_description"); d != "" {
			e += ": " + d
		}
		return fmt.Errorf("%w: %s", ErrAuthFailure, e)
	}
	if !auth.Equal(q.Get("state"), pending.State) {
		return fmt.Errorf("%w: state mismatch", ErrAuthFailure)
	}
	code := q.Get("code")
	if code == "" {
		return fmt.Errorf("%w: missing code", ErrAuthFailure)
	}

	tok, err := c.p.Exchange(ctx, code, pending.Verifier)
	if err != nil {
		return err
	}
	return c.adopt(ctx, tok)
}

// SignInSilent renews the session with its refresh token. On failure the
// stale tokens and principal are dropped so the session falls back to
// interactive sign-in; a pending interactive sign-in is kept.
func (c *Client) SignInSilent(ctx context.Context) error {
	c.mu.Lock()
	current := c.st.Token
	c.mu.Unlock()

	tok, err := c.p.Refresh(ctx, current)
	if err == nil {
		if tok.RefreshToken == "" && current != nil {
			tok.RefreshToken = current.RefreshToken
		}
		err = c.adopt(ctx, tok)
	}
	if err != nil {
		c.mu.Lock()
		c.st.Token = nil
		c.st.IDToken = ""
		c.st.Principal = nil
		c.mu.Unlock()
		metrics.RecordSignIn("silent", "failure")
		return err
	}
	metrics.RecordSignIn("silent", "success")
	c.changed.Raise()
	return nil
}

// SignOut forgets the session's tokens and returns the provider's end-session
// URL, which is "" when the provider has none.
func (c *Client) SignOut(ctx context.Context) (string, error) {
	c.mu.Lock()
	idToken := c.st.IDToken
	c.st = State{}
	c.mu.Unlock()

	metrics.RecordSignOut()
	logger := xglog.WithComponentFromContext(ctx, "identity")
	logger.Info().
		Str(xglog.FieldEvent, "identity.signed_out").
		Msg("signed out")
	c.changed.Raise()
	return c.p.EndSessionURL(idToken), nil
}

func (c *Client) adopt(ctx context.Context, tok *oauth2.Token) error {
	principal, err := c.p.Principal(ctx, tok)
	if err != nil {
		return err
	}
	idToken, _ := tok.Extra("id_token").(string)

	c.mu.Lock()
	c.st.Token = &oauth2.Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if idToken != "" {
		c.st.IDToken = idToken
	}
	c.st.Principal = principal
	c.mu.Unlock()

	logger := xglog.WithComponentFromContext(ctx, "identity")
	logger.Info().
		Str(xglog.FieldEvent, "identity.signed_in").
		Str(xglog.FieldSubject, principal.ID).
		Msg("signed in")
	return nil
}
