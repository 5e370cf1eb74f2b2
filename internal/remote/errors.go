// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound     = errors.New("upstream: resource not found")
	ErrUnauthorized = errors.New("upstream: not authorized")
	ErrForbidden    = errors.New("upstream: access forbidden")
	ErrUnavailable  = errors.New("upstream: host unreachable or transport failure")
	ErrUpstream     = errors.New("upstream: internal error (5xx)")
	ErrBadRequest   = errors.New("upstream: request rejected (4xx)")
	ErrBadResponse  = errors.New("upstream: invalid response format or malformed data")
	ErrTimeout      = errors.New("upstream: request timed out")
)

// Error is a rich error type that wraps a sentinel with request context.
type Error struct {
	Sentinel  error
	Service   string
	Operation string
	Status    int
	Body      string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s: %v", e.Service, e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Sentinel
}

// SentinelForStatus maps a non-2xx HTTP status to a sentinel.
func SentinelForStatus(status int) error {
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrTimeout
	case status == http.StatusTooManyRequests:
		return ErrUnavailable
	case status >= 500:
		return ErrUpstream
	default:
		return ErrBadRequest
	}
}

// sentinelForTransport classifies an error returned by http.Client.Do.
func sentinelForTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return ErrUnavailable
}

// IsTransient reports whether err indicates an unhealthy upstream rather than
// a problem with the request itself. Only transient errors trip breakers.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrUpstream) || errors.Is(err, ErrTimeout)
}
