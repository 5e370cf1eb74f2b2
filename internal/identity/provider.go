// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package identity implements the OpenID Connect authorization-code flow
// (with PKCE) on behalf of browser sessions.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/ManuGH/imjs-viewer/internal/auth"
	"github.com/ManuGH/imjs-viewer/internal/config"
	xglog "github.com/ManuGH/imjs-viewer/internal/log"
	"github.com/ManuGH/imjs-viewer/internal/telemetry"
)

// ErrAuthFailure marks a failed sign-in, callback, or refresh.
var ErrAuthFailure = errors.New("authorization failure")

// Config is the identity configuration resolved at startup.
type Config struct {
	Authority              string
	ClientID               string
	ClientSecret           string
	RedirectURI            string
	Scopes                 []string
	PostSignoutRedirectURI string
}

// ConfigFrom maps the application configuration.
func ConfigFrom(c config.OIDCConfig) Config {
	return Config{
		Authority:              c.Authority,
		ClientID:               c.ClientID,
		ClientSecret:           c.ClientSecret,
		RedirectURI:            c.RedirectURI,
		Scopes:                 c.Scopes(),
		PostSignoutRedirectURI: c.PostSignoutRedirectURI,
	}
}

// Validate reports every missing value the flow cannot run without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ClientID) == "" {
		errs = append(errs, fmt.Errorf("%w: client id", config.ErrConfigurationMissing))
	}
	if strings.TrimSpace(c.RedirectURI) == "" {
		errs = append(errs, fmt.Errorf("%w: redirect uri", config.ErrConfigurationMissing))
	}
	if len(c.Scopes) == 0 {
		errs = append(errs, fmt.Errorf("%w: scope", config.ErrConfigurationMissing))
	}
	if strings.TrimSpace(c.Authority) == "" {
		errs = append(errs, fmt.Errorf("%w: authority", config.ErrConfigurationMissing))
	}
	return errors.Join(errs...)
}

// Option customizes a Provider.
type Option func(*Provider)

// WithHTTPClient sets the client used for discovery, token and userinfo calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) { p.httpClient = hc }
}

// Provider is a discovered OIDC issuer bound to one client registration.
type Provider struct {
	cfg        Config
	oauth      *oauth2.Config
	oidc       *oidc.Provider
	verifier   *oidc.IDTokenVerifier
	endSession string
	httpClient *http.Client
}

// NewProvider validates cfg and runs OIDC discovery against its authority.
func NewProvider(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Provider{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	if p.httpClient == nil {
		p.httpClient = telemetry.NewHTTPClient(30 * time.Second)
	}

	issuer := strings.TrimRight(cfg.Authority, "/")
	op, err := oidc.NewProvider(p.clientContext(ctx), issuer)
	if err != nil {
		return nil, fmt.Errorf("identity: discover %s: %w", issuer, err)
	}
	p.oidc = op
	p.verifier = op.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	var meta struct {
		EndSession string `json:"end_session_endpoint"`
	}
	if err := op.Claims(&meta); err == nil {
		p.endSession = meta.EndSession
	}

	p.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint:     op.Endpoint(),
	}

	logger := xglog.WithComponent("identity")
	logger.Info().
		Str(xglog.FieldEvent, "identity.discovered").
		Str("issuer", issuer).
		Bool("end_session", p.endSession != "").
		Msg("identity provider ready")
	return p, nil
}

// Config returns the configuration the provider was built from.
func (p *Provider) Config() Config { return p.cfg }

// RedirectPath is the path of the redirect URI, served as the callback route.
func (p *Provider) RedirectPath() string {
	u, err := url.Parse(p.cfg.RedirectURI)
	if err != nil || u.Path == "" {
		return "/signin-callback"
	}
	return u.Path
}

// AuthCodeURL builds the authorization request for state with a S256 PKCE challenge.
func (p *Provider) AuthCodeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code for tokens.
func (p *Provider) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	tok, err := p.oauth.Exchange(p.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: exchange code: %w", ErrAuthFailure, err)
	}
	return tok, nil
}

// Refresh obtains a new access token from tok's refresh token.
func (p *Provider) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", ErrAuthFailure)
	}
	// Force a refresh by dropping the access token.
	src := p.oauth.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: tok.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: refresh: %w", ErrAuthFailure, err)
	}
	return fresh, nil
}

// Principal identifies the user behind tok. The ID token is preferred; the
// userinfo endpoint fills in what it lacks.
func (p *Provider) Principal(ctx context.Context, tok *oauth2.Token) (*auth.Principal, error) {
	var subject, name, email string

	if raw, ok := tok.Extra("id_token").(string); ok && raw != "" {
		idt, err := p.verifier.Verify(p.clientContext(ctx), raw)
		if err != nil {
			return nil, fmt.Errorf("%w: verify id token: %w", ErrAuthFailure, err)
		}
		var claims struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		_ = idt.Claims(&claims)
		subject, name, email = idt.Subject, claims.Name, claims.Email
	}

	if name == "" || email == "" {
		info, err := p.oidc.UserInfo(p.clientContext(ctx), oauth2.StaticTokenSource(tok))
		if err != nil {
			logger := xglog.WithComponentFromContext(ctx, "identity")
			logger.Debug().Err(err).Msg("userinfo unavailable")
		} else {
			var claims struct {
				Name string `json:"name"`
			}
			_ = info.Claims(&claims)
			if subject == "" {
				subject = info.Subject
			}
			if name == "" {
				name = claims.Name
			}
			if email == "" {
				email = info.Email
			}
		}
	}

	return auth.NewPrincipal(subject, name, email, tok.AccessToken, p.cfg.Scopes), nil
}

// EndSessionURL returns the RP-initiated logout URL, or "" when the issuer
// does not advertise one.
func (p *Provider) EndSessionURL(idToken string) string {
	if p.endSession == "" {
		return ""
	}
	u, err := url.Parse(p.endSession)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("client_id", p.cfg.ClientID)
	if idToken != "" {
		q.Set("id_token_hint", idToken)
	}
	if p.cfg.PostSignoutRedirectURI != "" {
		q.Set("post_logout_redirect_uri", p.cfg.PostSignoutRedirectURI)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, p.httpClient)
}
