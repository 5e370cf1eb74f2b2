// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package platform looks up projects and iModels by name on the platform REST API.
package platform

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/imjs-viewer/internal/normalize"
	"github.com/ManuGH/imjs-viewer/internal/remote"
)

// AcceptHeader selects the v1 representation of the platform API.
const AcceptHeader = "application/vnd.bentley.itwin-platform.v1+json"

// Project is a project (context) on the platform.
type Project struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Number      string `json:"projectNumber,omitempty"`
}

// IModel is a container within a project.
type IModel struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Name        string `json:"name"`
	ProjectID   string `json:"projectId,omitempty"`
	State       string `json:"state,omitempty"`
}

// Label returns the display name, falling back to name.
func (m IModel) Label() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Name
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

// Client calls the projects and imodels endpoints.
type Client struct {
	baseURL string
	remote  *remote.Client
}

// New creates a platform client.
func New(cfg Config, opts ...remote.Option) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		remote: remote.New(remote.Config{
			Name:             "platform",
			Timeout:          cfg.Timeout,
			RateLimit:        cfg.RateLimit,
			Burst:            cfg.Burst,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		}, opts...),
	}
}

// Projects returns the projects whose display name equals name exactly, in
// the order the API returned them.
func (c *Client) Projects(ctx context.Context, token, name string) ([]Project, error) {
	q := url.Values{}
	q.Set("$search", name)
	var out struct {
		Projects []Project `json:"projects"`
	}
	if err := c.get(ctx, token, "/projects/?"+q.Encode(), "projects", &out); err != nil {
		return nil, err
	}
	matches := out.Projects[:0]
	for _, p := range out.Projects {
		if normalize.SameName(p.DisplayName, name) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

// IModels returns the iModels of projectID named name exactly.
func (c *Client) IModels(ctx context.Context, token, projectID, name string) ([]IModel, error) {
	q := url.Values{}
	q.Set("projectId", projectID)
	q.Set("name", name)
	var out struct {
		IModels []IModel `json:"iModels"`
	}
	if err := c.get(ctx, token, "/imodels/?"+q.Encode(), "imodels", &out); err != nil {
		return nil, err
	}
	matches := out.IModels[:0]
	for _, m := range out.IModels {
		if normalize.SameName(m.Name, name) || normalize.SameName(m.DisplayName, name) {
			if m.ProjectID == "" {
				m.ProjectID = projectID
			}
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// BreakerState reports the upstream circuit breaker state.
func (c *Client) BreakerState() string { return c.remote.BreakerState() }

func (c *Client) get(ctx context.Context, token, path, operation string, out any) error {
	req, err := remote.BearerRequest(ctx, http.MethodGet, c.baseURL+path, token, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")
	if err := c.remote.DoJSON(req, operation, out); err != nil {
		return err
	}
	return nil
}
