// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package views picks the view a freshly opened iModel is displayed with.
package views

import (
	"context"
	"errors"

	"github.com/ManuGH/imjs-viewer/internal/id64"
	"github.com/ManuGH/imjs-viewer/internal/imodel"
	xglog "github.com/ManuGH/imjs-viewer/internal/log"
	"github.com/ManuGH/imjs-viewer/internal/metrics"
	"github.com/ManuGH/imjs-viewer/internal/rpc"
)

// ErrNoViewsAvailable is returned when an iModel has no usable view.
var ErrNoViewsAvailable = errors.New("no views available")

// View classes tried after the default view, in order.
const (
	SpatialViewClass = "BisCore:SpatialViewDefinition"
	DrawingViewClass = "BisCore:DrawingViewDefinition"
)

// Where a resolved view id came from.
const (
	SourceDefault = "default"
	SourceSpatial = "spatial"
	SourceDrawing = "drawing"
	SourceNone    = "none"
)

// Source reads view information from an open iModel.
type Source interface {
	GetDefaultViewID(ctx context.Context, token string, props rpc.IModelProps) (id64.ID, error)
	ViewList(ctx context.Context, token string, props rpc.IModelProps, class string) ([]rpc.ElementProps, error)
}

// Resolver is the view resolver.
type Resolver struct {
	src Source
}

// NewResolver creates a resolver reading from src.
func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// Resolve returns the stored default view if valid, else the first spatial
// view, else the first drawing view. Listed views with an invalid id are
// skipped.
func (r *Resolver) Resolve(ctx context.Context, token string, h *imodel.Handle) (id64.ID, error) {
	props := h.Props()

	def, err := r.src.GetDefaultViewID(ctx, token, props)
	if err != nil {
		return id64.Invalid, err
	}
	if id64.IsValid(def) {
		return r.found(ctx, h, def, SourceDefault), nil
	}

	for _, c := range []struct{ class, source string }{
		{SpatialViewClass, SourceSpatial},
		{DrawingViewClass, SourceDrawing},
	} {
		list, err := r.src.ViewList(ctx, token, props, c.class)
		if err != nil {
			return id64.Invalid, err
		}
		for _, v := range list {
			if id64.IsValid(v.ID) {
				return r.found(ctx, h, v.ID, c.source), nil
			}
		}
	}

	metrics.RecordViewResolution(SourceNone)
	return id64.Invalid, ErrNoViewsAvailable
}

func (r *Resolver) found(ctx context.Context, h *imodel.Handle, id id64.ID, source string) id64.ID {
	metrics.RecordViewResolution(source)
	logger := xglog.WithComponentFromContext(ctx, xglog.AppComponent)
	logger.Debug().
		Str(xglog.FieldEvent, "views.resolved").
		Str(xglog.FieldIModelID, h.IModelID).
		Str(xglog.FieldViewID, id.String()).
		Str(xglog.FieldViewSource, source).
		Msg("resolved view")
	return id
}
