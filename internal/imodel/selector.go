// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package imodel resolves named projects and iModels and opens read-only
// connections to them.
package imodel

import (
	"context"
	"errors"
	"fmt"

	xglog "github.com/ManuGH/imjs-viewer/internal/log"
	"github.com/ManuGH/imjs-viewer/internal/platform"
	"github.com/ManuGH/imjs-viewer/internal/remote"
	"github.com/ManuGH/imjs-viewer/internal/rpc"
	"github.com/ManuGH/imjs-viewer/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrNotFound is returned when no project or iModel matches a name.
var ErrNotFound = errors.New("not found")

// Lookup finds projects and iModels by exact name.
type Lookup interface {
	Projects(ctx context.Context, token, name string) ([]platform.Project, error)
	IModels(ctx context.Context, token, projectID, name string) ([]platform.IModel, error)
}

// Connector opens and closes backend connections.
type Connector interface {
	OpenForRead(ctx context.Context, token string, props rpc.IModelProps) (*rpc.ConnectionProps, error)
	Close(ctx context.Context, token string, props rpc.IModelProps) error
}

// Identifiers are the resolved ids of a named project and iModel.
type Identifiers struct {
	ProjectID string
	IModelID  string
}

// Handle is an open read-only connection.
type Handle struct {
	ProjectID   string       `json:"projectId"`
	IModelID    string       `json:"iModelId"`
	ChangesetID string       `json:"changesetId,omitempty"`
	Key         string       `json:"key"`
	Name        string       `json:"name,omitempty"`
	OpenMode    rpc.OpenMode `json:"openMode"`
}

// Props returns the identification sent with every call on the connection.
func (h *Handle) Props() rpc.IModelProps {
	return rpc.IModelProps{
		Key:       h.Key,
		ContextID: h.ProjectID,
		IModelID:  h.IModelID,
		Changeset: rpc.ChangesetProps{ID: h.ChangesetID},
		OpenMode:  h.OpenMode,
	}
}

// Selector is the model selector.
type Selector struct {
	lookup Lookup
	conn   Connector
}

// NewSelector creates a selector.
func NewSelector(lookup Lookup, conn Connector) *Selector {
	return &Selector{lookup: lookup, conn: conn}
}

// ResolveIdentifiers finds projectName, then iModelName within it. The first
// match wins; additional matches are logged.
func (s *Selector) ResolveIdentifiers(ctx context.Context, token, projectName, iModelName string) (Identifiers, error) {
	logger := xglog.WithComponentFromContext(ctx, xglog.AppComponent)

	projects, err := s.lookup.Projects(ctx, token, projectName)
	if err != nil {
		return Identifiers{}, mapLookupError(fmt.Sprintf("project %q", projectName), err)
	}
	if len(projects) == 0 {
		return Identifiers{}, fmt.Errorf("project %q: %w", projectName, ErrNotFound)
	}
	if len(projects) > 1 {
		logger.Warn().
			Str(xglog.FieldEvent, "imodel.ambiguous_project").
			Str(xglog.FieldProjectName, projectName).
			Int("matches", len(projects)).
			Str(xglog.FieldProjectID, projects[0].ID).
			Msg("several projects share the name, using the first")
	}
	projectID := projects[0].ID

	imodels, err := s.lookup.IModels(ctx, token, projectID, iModelName)
	if err != nil {
		return Identifiers{}, mapLookupError(fmt.Sprintf("iModel %q", iModelName), err)
	}
	if len(imodels) == 0 {
		return Identifiers{}, fmt.Errorf("iModel %q in project %q: %w", iModelName, projectName, ErrNotFound)
	}
	if len(imodels) > 1 {
		logger.Warn().
			Str(xglog.FieldEvent, "imodel.ambiguous_imodel").
			Str(xglog.FieldIModelName, iModelName).
			Int("matches", len(imodels)).
			Str(xglog.FieldIModelID, imodels[0].ID).
			Msg("several iModels share the name, using the first")
	}

	ids := Identifiers{ProjectID: projectID, IModelID: imodels[0].ID}
	logger.Info().
		Str(xglog.FieldEvent, "imodel.resolved").
		Str(xglog.FieldProjectID, ids.ProjectID).
		Str(xglog.FieldIModelID, ids.IModelID).
		Msg("resolved project and iModel")
	return ids, nil
}

// Open opens a read-only connection. Errors are returned unchanged.
func (s *Selector) Open(ctx context.Context, token, projectID, iModelID string) (*Handle, error) {
	ctx, span := telemetry.Tracer("imjs-viewer/imodel").Start(ctx, "imodel.Open")
	defer span.End()
	span.SetAttributes(telemetry.IModelAttributes(projectID, iModelID, "")...)

	conn, err := s.conn.OpenForRead(ctx, token, rpc.IModelProps{
		ContextID: projectID,
		IModelID:  iModelID,
		OpenMode:  rpc.OpenModeReadonly,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("imjs.imodel_key", conn.Key))

	return &Handle{
		ProjectID:   conn.ContextID,
		IModelID:    conn.IModelID,
		ChangesetID: conn.Changeset.ID,
		Key:         conn.Key,
		Name:        conn.Name,
		OpenMode:    conn.OpenMode,
	}, nil
}

// Close closes h on the backend. A nil handle is a no-op.
func (s *Selector) Close(ctx context.Context, token string, h *Handle) error {
	if h == nil {
		return nil
	}
	return s.conn.Close(ctx, token, h.Props())
}

func mapLookupError(what string, err error) error {
	if errors.Is(err, remote.ErrNotFound) {
		return fmt.Errorf("%s: %w: %w", what, ErrNotFound, err)
	}
	return fmt.Errorf("look up %s: %w", what, err)
}
