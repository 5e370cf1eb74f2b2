// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package rpc calls the backend's remote interfaces over the cloud request
// shape: one POST per operation carrying a JSON array of arguments.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	xglog "github.com/ManuGH/imjs-viewer/internal/log"
	"github.com/ManuGH/imjs-viewer/internal/remote"
	"github.com/ManuGH/imjs-viewer/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client invokes registered interfaces on the backend described by ConnectionInfo.
type Client struct {
	info     ConnectionInfo
	registry *Registry
	remote   *remote.Client
	tracer   trace.Tracer
}

// Config configures a Client.
type Config struct {
	Info      ConnectionInfo
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

// NewClient creates a client. registry nil means DefaultInterfaces.
func NewClient(cfg Config, registry *Registry, opts ...remote.Option) *Client {
	if registry == nil {
		registry = NewRegistry(DefaultInterfaces()...)
	}
	cfg.Info.BaseURL = strings.TrimRight(cfg.Info.BaseURL, "/")
	return &Client{
		info:     cfg.Info,
		registry: registry,
		remote: remote.New(remote.Config{
			Name:             "rpc",
			Timeout:          cfg.Timeout,
			RateLimit:        cfg.RateLimit,
			Burst:            cfg.Burst,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		}, opts...),
		tracer: telemetry.Tracer("imjs-viewer/rpc"),
	}
}

// Info returns the connection info the client was configured with.
func (c *Client) Info() ConnectionInfo { return c.info }

// BreakerState reports the backend circuit breaker state.
func (c *Client) BreakerState() string { return c.remote.BreakerState() }

// Registry returns the set of callable interfaces.
func (c *Client) Registry() *Registry { return c.registry }

// OperationURL builds the request URL of iface.operation for props.
func (c *Client) OperationURL(iface Interface, operation string, props IModelProps) string {
	changeset := props.Changeset.ID
	if changeset == "" {
		changeset = "0"
	}
	return fmt.Sprintf("%s/%s/%s/mode/1/context/%s/imodel/%s/changeset/%s/%s-%s-%s",
		c.info.BaseURL,
		c.info.ServiceTitle,
		c.info.ServiceVersion,
		url.PathEscape(props.ContextID),
		url.PathEscape(props.IModelID),
		url.PathEscape(changeset),
		iface.Name,
		iface.Version,
		operation,
	)
}

// invoke performs one call and returns the raw response.
func (c *Client) invoke(ctx context.Context, token string, iface Interface, operation string, props IModelProps, args ...any) (*remote.Response, error) {
	if err := c.registry.Check(iface); err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, iface.Name+"."+operation, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(telemetry.RPCAttributes(iface.Name, operation)...)
	span.SetAttributes(telemetry.IModelAttributes(props.ContextID, props.IModelID, props.Changeset.ID)...)

	payload, err := json.Marshal(append([]any{props}, args...))
	if err != nil {
		return nil, fmt.Errorf("rpc: encode %s arguments: %w", operation, err)
	}
	req, err := remote.BearerRequest(ctx, http.MethodPost, c.OperationURL(iface, operation, props), token, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	resp, err := c.remote.Do(req, iface.Name+"-"+operation)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger := xglog.WithComponentFromContext(ctx, "rpc")
		logger.Debug().
			Err(err).
			Str(xglog.FieldInterface, iface.Name).
			Str(xglog.FieldOperation, operation).
			Msg("rpc call failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.body.size", len(resp.Body)))
	return resp, nil
}

func (c *Client) invokeJSON(ctx context.Context, token string, iface Interface, operation string, props IModelProps, out any, args ...any) error {
	resp, err := c.invoke(ctx, token, iface, operation, props, args...)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &remote.Error{Sentinel: remote.ErrBadResponse, Service: "rpc", Operation: operation, Err: err}
	}
	return nil
}
