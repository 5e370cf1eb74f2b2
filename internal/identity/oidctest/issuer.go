// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package oidctest provides a minimal OpenID provider for tests: discovery,
// authorization-code with PKCE, refresh and userinfo.
package oidctest

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// Issuer is an in-process OpenID provider.
type Issuer struct {
	*httptest.Server

	mu          sync.Mutex
	challenges  map[string]string // code -> PKCE challenge
	refresh     map[string]bool
	access      map[string]bool
	nextCode    int
	endSession  bool
	userinfoDoc map[string]any
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithoutEndSession omits end_session_endpoint from the discovery document.
func WithoutEndSession() Option {
	return func(i *Issuer) { i.endSession = false }
}

// NewIssuer starts an issuer that is closed with the test.
func NewIssuer(t testing.TB, opts ...Option) *Issuer {
	t.Helper()
	i := &Issuer{
		challenges: make(map[string]string),
		refresh:    make(map[string]bool),
		access:     make(map[string]bool),
		endSession: true,
		userinfoDoc: map[string]any{
			"sub": "user-1", "name": "Ada Lovelace", "email": "ada@example.com",
		},
	}
	for _, opt := range opts {
		opt(i)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", i.discovery)
	mux.HandleFunc("/connect/token", i.token)
	mux.HandleFunc("/connect/userinfo", i.userinfo)
	i.Server = httptest.NewServer(mux)
	t.Cleanup(i.Close)
	return i
}

// IssueCode simulates the user approving an authorization request with the
// given PKCE challenge.
func (i *Issuer) IssueCode(challenge string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.nextCode++
	code := fmt.Sprintf("code-%d", i.nextCode)
	i.challenges[code] = challenge
	return code
}

// Authorize plays the browser: it reads an authorization URL and returns the
// callback query the provider would redirect back with.
func (i *Issuer) Authorize(authURL string) (url.Values, error) {
	u, err := url.Parse(authURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	if q.Get("code_challenge_method") != "S256" {
		return nil, errors.New("authorization request without S256 challenge")
	}
	return url.Values{
		"state": {q.Get("state")},
		"code":  {i.IssueCode(q.Get("code_challenge"))},
	}, nil
}

// AllowRefresh makes token an accepted refresh token.
func (i *Issuer) AllowRefresh(token string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.refresh[token] = true
}

// RevokeAll rejects every refresh and access token issued so far.
func (i *Issuer) RevokeAll() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.refresh = make(map[string]bool)
	i.access = make(map[string]bool)
}

func (i *Issuer) discovery(w http.ResponseWriter, _ *http.Request) {
	doc := map[string]any{
		"issuer":                                i.URL,
		"authorization_endpoint":                i.URL + "/connect/authorize",
		"token_endpoint":                        i.URL + "/connect/token",
		"userinfo_endpoint":                     i.URL + "/connect/userinfo",
		"jwks_uri":                              i.URL + "/.well-known/jwks",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	}
	if i.endSession {
		doc["end_session_endpoint"] = i.URL + "/connect/endsession"
	}
	writeJSON(w, http.StatusOK, doc)
}

func (i *Issuer) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	invalidGrant := map[string]string{"error": "invalid_grant"}
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		code := r.PostForm.Get("code")
		challenge, ok := i.challenges[code]
		delete(i.challenges, code)
		sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
		if !ok || base64.RawURLEncoding.EncodeToString(sum[:]) != challenge {
			writeJSON(w, http.StatusBadRequest, invalidGrant)
			return
		}
	case "refresh_token":
		if !i.refresh[r.PostForm.Get("refresh_token")] {
			writeJSON(w, http.StatusBadRequest, invalidGrant)
			return
		}
	default:
		http.Error(w, "unsupported grant", http.StatusBadRequest)
		return
	}

	n := len(i.access) + 1
	access := fmt.Sprintf("access-%d", n)
	refresh := fmt.Sprintf("refresh-%d", n)
	i.access[access] = true
	i.refresh[refresh] = true
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"token_type":    "Bearer",
		"refresh_token": refresh,
		"expires_in":    3600,
	})
}

func (i *Issuer) userinfo(w http.ResponseWriter, r *http.Request) {
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	i.mu.Lock()
	ok := i.access[tok]
	i.mu.Unlock()
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, i.userinfoDoc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
