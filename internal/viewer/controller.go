// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package viewer

import (
	"context"
	"errors"
	"sync"

	"github.com/ManuGH/imjs-viewer/internal/identity"
	xglog "github.com/ManuGH/imjs-viewer/internal/log"
)

// ErrNoAuthClient is returned by StartSignIn when no authorization client is configured.
var ErrNoAuthClient = errors.New("no authorization client configured")

// AuthClient is the part of the browser authorization client the controller uses.
type AuthClient interface {
	SignIn(ctx context.Context) (string, error)
	SignOut(ctx context.Context) (string, error)
	IsAuthorized() bool
	OnUserStateChanged(fn func()) *identity.Subscription
}

// SessionController owns the SessionState of one browser session.
type SessionController struct {
	client AuthClient

	mu    sync.Mutex
	state SessionState
	sub   *identity.Subscription
}

// NewSessionController starts from initial. IsAuthorized is taken from client
// when one is configured.
func NewSessionController(client AuthClient, initial SessionState) *SessionController {
	if client != nil {
		initial.IsAuthorized = client.IsAuthorized()
	}
	return &SessionController{client: client, state: initial}
}

// State returns the current session state.
func (c *SessionController) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Mount subscribes to user-state-changed notifications. Mounting twice keeps
// a single subscription.
func (c *SessionController) Mount() {
	if c.client == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub == nil {
		c.sub = c.client.OnUserStateChanged(c.OnUserStateChanged)
	}
}

// Unmount releases the subscription. It is safe to call repeatedly.
func (c *SessionController) Unmount() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	sub.Unsubscribe()
}

// StartSignIn marks the session as loading and starts an interactive
// sign-in. The returned URL is where the browser goes next.
func (c *SessionController) StartSignIn(ctx context.Context) (string, error) {
	if c.client == nil {
		return "", ErrNoAuthClient
	}
	c.setState(func(s *SessionState) { s.IsLoading = true })
	return c.client.SignIn(ctx)
}

// OnUserStateChanged refreshes authorization from the client and ends loading.
func (c *SessionController) OnUserStateChanged() {
	authorized := c.client != nil && c.client.IsAuthorized()
	c.setState(func(s *SessionState) {
		s.IsAuthorized = authorized
		s.IsLoading = false
	})
}

// SignOut delegates to the client and returns the end-session URL, if any.
func (c *SessionController) SignOut(ctx context.Context) (string, error) {
	if c.client == nil {
		logger := xglog.WithComponentFromContext(ctx, xglog.AppComponent)
		logger.Warn().
			Str(xglog.FieldEvent, "session.signout_skipped").
			Msg("sign-out requested without an authorization client")
		return "", nil
	}
	return c.client.SignOut(ctx)
}

func (c *SessionController) setState(fn func(*SessionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.state
	fn(&c.state)
	if old != c.state {
		logger := xglog.WithComponent(xglog.AppComponent)
		logger.Debug().
			Str(xglog.FieldEvent, "session.state_changed").
			Interface(xglog.FieldOldState, old).
			Interface(xglog.FieldNewState, c.state).
			Msg("session state changed")
	}
}
