// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rpc

import (
	"context"
	"fmt"

	"github.com/ManuGH/imjs-viewer/internal/id64"
)

// OpenForRead opens a read-only connection to the container named by props.
func (c *Client) OpenForRead(ctx context.Context, token string, props IModelProps) (*ConnectionProps, error) {
	props.OpenMode = OpenModeReadonly
	var out ConnectionProps
	if err := c.invokeJSON(ctx, token, IModelReadRpcInterface, "openForRead", props, &out); err != nil {
		return nil, err
	}
	if out.Key == "" {
		out.Key = props.IModelID
	}
	if out.IModelID == "" {
		out.IModelID = props.IModelID
	}
	if out.ContextID == "" {
		out.ContextID = props.ContextID
	}
	if out.OpenMode == 0 {
		out.OpenMode = OpenModeReadonly
	}
	return &out, nil
}

// Close releases the backend connection of props.
func (c *Client) Close(ctx context.Context, token string, props IModelProps) error {
	return c.invokeJSON(ctx, token, IModelReadRpcInterface, "close", props, nil)
}

// GetDefaultViewID returns the stored default view pointer, which may be invalid.
func (c *Client) GetDefaultViewID(ctx context.Context, token string, props IModelProps) (id64.ID, error) {
	var out id64.ID
	if err := c.invokeJSON(ctx, token, IModelReadRpcInterface, "getDefaultViewId", props, &out); err != nil {
		return "", err
	}
	return out, nil
}

// QueryElementProps returns the elements matching query.
func (c *Client) QueryElementProps(ctx context.Context, token string, props IModelProps, query ElementQuery) ([]ElementProps, error) {
	var out []ElementProps
	if err := c.invokeJSON(ctx, token, IModelReadRpcInterface, "queryElementProps", props, &out, query); err != nil {
		return nil, err
	}
	return out, nil
}

// ViewList returns the public view definitions of class (e.g. "BisCore:SpatialViewDefinition").
func (c *Client) ViewList(ctx context.Context, token string, props IModelProps, class string) ([]ElementProps, error) {
	views, err := c.QueryElementProps(ctx, token, props, ElementQuery{
		From:  class,
		Where: "IsPrivate=FALSE",
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", class, err)
	}
	return views, nil
}
