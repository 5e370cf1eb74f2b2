// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rpc

import (
	"context"
	"encoding/json"
)

// RequestTileTreeProps returns the JSON description of tile tree treeID.
func (c *Client) RequestTileTreeProps(ctx context.Context, token string, props IModelProps, treeID string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.invokeJSON(ctx, token, IModelTileRpcInterface, "requestTileTreeProps", props, &out, treeID); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateTileContent returns the binary content of one tile.
func (c *Client) GenerateTileContent(ctx context.Context, token string, props IModelProps, treeID, contentID, guid string) (*TileContent, error) {
	args := []any{treeID, contentID}
	if guid != "" {
		args = append(args, guid)
	}
	resp, err := c.invoke(ctx, token, IModelTileRpcInterface, "generateTileContent", props, args...)
	if err != nil {
		return nil, err
	}
	ct := resp.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &TileContent{ContentType: ct, Data: resp.Body}, nil
}
