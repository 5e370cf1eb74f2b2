// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Principal represents the signed-in user of a browser session.
type Principal struct {
	// ID is the stable identifier: the OIDC subject, or a hash of the access
	// token when the provider did not reveal one.
	ID     string   `json:"id"`
	Name   string   `json:"name,omitempty"`
	Email  string   `json:"email,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}

// NewPrincipal creates a Principal. An empty subject falls back to a hash of accessToken.
func NewPrincipal(subject, name, email, accessToken string, scopes []string) *Principal {
	id := subject
	if id == "" {
		hash := sha256.Sum256([]byte(accessToken))
		id = "t_" + hex.EncodeToString(hash[:])[:16]
	}
	return &Principal{ID: id, Name: name, Email: email, Scopes: scopes}
}

// DisplayName returns the best human readable label.
func (p *Principal) DisplayName() string {
	switch {
	case p == nil:
		return ""
	case p.Name != "":
		return p.Name
	case p.Email != "":
		return p.Email
	default:
		return p.ID
	}
}

type principalKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal attached to ctx, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
