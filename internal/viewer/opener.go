// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package viewer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/imjs-viewer/internal/id64"
	"github.com/ManuGH/imjs-viewer/internal/imodel"
	xglog "github.com/ManuGH/imjs-viewer/internal/log"
	"github.com/ManuGH/imjs-viewer/internal/metrics"
	"github.com/ManuGH/imjs-viewer/internal/views"
)

var errNoConnection = errors.New("open returned no connection")

// ContainerSelector resolves and opens containers.
type ContainerSelector interface {
	ResolveIdentifiers(ctx context.Context, token, projectName, iModelName string) (imodel.Identifiers, error)
	Open(ctx context.Context, token, projectID, iModelID string) (*imodel.Handle, error)
	Close(ctx context.Context, token string, h *imodel.Handle) error
}

// ViewResolver picks the view of an open container.
type ViewResolver interface {
	Resolve(ctx context.Context, token string, h *imodel.Handle) (id64.ID, error)
}

// Opener runs the container selection flow for the configured names.
type Opener struct {
	selector    ContainerSelector
	resolver    ViewResolver
	projectName string
	iModelName  string
}

// NewOpener creates an opener for iModelName in projectName.
func NewOpener(selector ContainerSelector, resolver ViewResolver, projectName, iModelName string) *Opener {
	return &Opener{selector: selector, resolver: resolver, projectName: projectName, iModelName: iModelName}
}

// Open resolves, opens and picks a view, then selects the result in app.
// A previously selected container is closed first. On any failure app ends
// with neither container nor view, and a connection opened along the way is
// closed again.
func (o *Opener) Open(ctx context.Context, token string, app *AppState) error {
	start := time.Now()
	logger := xglog.WithComponentFromContext(ctx, xglog.AppComponent)

	if prev := app.Container(); prev != nil {
		metrics.DecOpenIModels()
		o.closeQuietly(ctx, token, prev)
		app.Clear()
	}

	h, viewID, err := o.open(ctx, token)
	if err != nil {
		app.Clear()
		metrics.RecordIModelOpen(openOutcome(err), time.Since(start))
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "imodel.open_failed").
			Str(xglog.FieldIModelName, o.iModelName).
			Msg("could not open iModel")
		return err
	}

	app.Select(h, viewID)
	metrics.IncOpenIModels()
	metrics.RecordIModelOpen("success", time.Since(start))
	logger.Info().
		Str(xglog.FieldEvent, "imodel.opened").
		Str(xglog.FieldProjectID, h.ProjectID).
		Str(xglog.FieldIModelID, h.IModelID).
		Str(xglog.FieldViewID, viewID.String()).
		Dur("duration", time.Since(start)).
		Msg("iModel opened")
	return nil
}

func (o *Opener) open(ctx context.Context, token string) (*imodel.Handle, id64.ID, error) {
	ids, err := o.selector.ResolveIdentifiers(ctx, token, o.projectName, o.iModelName)
	if err != nil {
		return nil, "", err
	}
	h, err := o.selector.Open(ctx, token, ids.ProjectID, ids.IModelID)
	if err != nil {
		return nil, "", err
	}
	if h == nil {
		return nil, "", errNoConnection
	}
	viewID, err := o.resolver.Resolve(ctx, token, h)
	if err == nil && !id64.IsValid(viewID) {
		err = fmt.Errorf("%w: resolved view id %q is invalid", views.ErrNoViewsAvailable, viewID)
	}
	if err != nil {
		o.closeQuietly(ctx, token, h)
		return nil, "", err
	}
	return h, viewID, nil
}

// Close closes the selected container, if any, and clears app.
func (o *Opener) Close(ctx context.Context, token string, app *AppState) error {
	h := app.Container()
	app.Clear()
	if h == nil {
		return nil
	}
	metrics.DecOpenIModels()
	return o.selector.Close(ctx, token, h)
}

func (o *Opener) closeQuietly(ctx context.Context, token string, h *imodel.Handle) {
	if err := o.selector.Close(ctx, token, h); err != nil {
		logger := xglog.WithComponentFromContext(ctx, xglog.AppComponent)
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "imodel.close_failed").
			Str(xglog.FieldIModelID, h.IModelID).
			Msg("could not close iModel")
	}
}

func openOutcome(err error) string {
	switch {
	case errors.Is(err, imodel.ErrNotFound):
		return "not_found"
	case errors.Is(err, views.ErrNoViewsAvailable):
		return "no_views"
	default:
		return "error"
	}
}
