// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package outbound validates service URLs before the daemon talks to them.
package outbound

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrInvalidURL marks a URL that is not a plain http(s) endpoint.
	ErrInvalidURL = errors.New("invalid outbound url")
	// ErrNotAllowed marks a URL whose host is outside the allowlist.
	ErrNotAllowed = errors.New("outbound url not allowed")
)

// Policy restricts which hosts resolved service URLs may point to.
// An empty Hosts list allows every host.
type Policy struct {
	Hosts []string
}

// NewPolicy normalizes hosts. Entries starting with "." match any subdomain.
func NewPolicy(hosts []string) (Policy, error) {
	var p Policy
	for _, raw := range hosts {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		wildcard := strings.HasPrefix(raw, ".")
		h, err := NormalizeHost(strings.TrimPrefix(raw, "."))
		if err != nil {
			return Policy{}, err
		}
		if wildcard {
			h = "." + h
		}
		p.Hosts = append(p.Hosts, h)
	}
	return p, nil
}

// ValidateBaseURL checks raw is an absolute http(s) URL without credentials
// or fragment whose host the policy allows. It returns raw without a
// trailing slash.
func (p Policy) ValidateBaseURL(raw string) (string, error) {
	u, ok := ParseDirectHTTPURL(raw)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, SanitizeURL(raw))
	}
	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !p.allows(host) {
		return "", fmt.Errorf("%w: %s", ErrNotAllowed, host)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func (p Policy) allows(host string) bool {
	if len(p.Hosts) == 0 {
		return true
	}
	for _, h := range p.Hosts {
		if strings.HasPrefix(h, ".") {
			if strings.HasSuffix(host, h) || host == h[1:] {
				return true
			}
			continue
		}
		if host == h {
			return true
		}
	}
	return false
}

// NormalizeHost validates and lower-cases a bare host for comparison.
// Internationalized names are converted to their ASCII form.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.ContainsAny(host, "/@") || strings.Contains(host, "://") {
		return "", fmt.Errorf("host must be bare: %s", raw)
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, "%") {
		return "", fmt.Errorf("host must not include zone: %s", raw)
	}
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// ParseDirectHTTPURL accepts http and https URLs with a host and without
// user info or fragment.
func ParseDirectHTTPURL(s string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, false
	}
	if u.Host == "" || u.User != nil || u.Fragment != "" {
		return nil, false
	}
	return u, true
}

// SanitizeURL removes user info and query for logging.
func SanitizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
