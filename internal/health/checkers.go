// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"time"
)

// PingChecker reports a dependency unhealthy when its ping fails.
type PingChecker struct {
	name    string
	ping    func(context.Context) error
	timeout time.Duration
}

// NewPingChecker creates a checker calling ping with timeout.
func NewPingChecker(name string, ping func(context.Context) error, timeout time.Duration) *PingChecker {
	return &PingChecker{name: name, ping: ping, timeout: timeout}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// FuncChecker adapts a function to Checker.
type FuncChecker struct {
	name string
	fn   func(context.Context) CheckResult
}

// NewFuncChecker creates a checker from fn.
func NewFuncChecker(name string, fn func(context.Context) CheckResult) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(ctx context.Context) CheckResult { return c.fn(ctx) }

// BreakerChecker reports degraded while a circuit breaker is not closed.
type BreakerChecker struct {
	name  string
	state func() string
}

// NewBreakerChecker creates a checker for a breaker whose state() is
// "closed", "half-open" or "open".
func NewBreakerChecker(name string, state func() string) *BreakerChecker {
	return &BreakerChecker{name: name, state: state}
}

func (c *BreakerChecker) Name() string { return c.name }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	switch s := c.state(); s {
	case "closed":
		return CheckResult{Status: StatusHealthy}
	default:
		return CheckResult{Status: StatusDegraded, Message: "circuit " + s}
	}
}
