// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package viewer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/imjs-viewer/internal/id64"
	"github.com/ManuGH/imjs-viewer/internal/imodel"
	"github.com/ManuGH/imjs-viewer/internal/platform"
	"github.com/ManuGH/imjs-viewer/internal/rpc"
	"github.com/ManuGH/imjs-viewer/internal/views"
)

type fakeSelector struct {
	resolveErr error
	openErr    error
	closed     []string
	closeErr   error
	opens      int
}

func (f *fakeSelector) ResolveIdentifiers(_ context.Context, _, project, name string) (imodel.Identifiers, error) {
	if f.resolveErr != nil {
		return imodel.Identifiers{}, f.resolveErr
	}
	return imodel.Identifiers{ProjectID: "p-" + project, IModelID: "m-" + name}, nil
}

func (f *fakeSelector) Open(_ context.Context, _, projectID, iModelID string) (*imodel.Handle, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opens++
	return &imodel.Handle{ProjectID: projectID, IModelID: iModelID, Key: fmt.Sprintf("%s:%d", iModelID, f.opens)}, nil
}

func (f *fakeSelector) Close(_ context.Context, _ string, h *imodel.Handle) error {
	f.closed = append(f.closed, h.Key)
	return f.closeErr
}

func openIModels(t *testing.T) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "imjs_open_imodels" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	return 0
}

type fakeResolver struct {
	id  id64.ID
	err error
}

func (f fakeResolver) Resolve(context.Context, string, *imodel.Handle) (id64.ID, error) {
	return f.id, f.err
}

func TestOpener_Success(t *testing.T) {
	sel := &fakeSelector{}
	o := NewOpener(sel, fakeResolver{id: "0x10"}, "Proj", "Bay")

	var app AppState
	require.NoError(t, o.Open(context.Background(), "tok", &app))
	require.NotNil(t, app.Container())
	assert.Equal(t, "p-Proj", app.Container().ProjectID)
	assert.Equal(t, "m-Bay", app.Container().IModelID)
	assert.Equal(t, id64.ID("0x10"), app.ViewID())
	assert.Empty(t, sel.closed)
}

func TestOpener_Failures(t *testing.T) {
	tests := []struct {
		name       string
		sel        *fakeSelector
		res        fakeResolver
		wantErr    error
		wantClosed []string
	}{
		{"not found", &fakeSelector{resolveErr: imodel.ErrNotFound}, fakeResolver{id: "0x1"}, imodel.ErrNotFound, nil},
		{"open fails", &fakeSelector{openErr: errors.New("403 forbidden")}, fakeResolver{id: "0x1"}, nil, nil},
		{"no views closes connection", &fakeSelector{}, fakeResolver{err: views.ErrNoViewsAvailable}, views.ErrNoViewsAvailable, []string{"m-Bay:1"}},
		{"invalid view id closes connection", &fakeSelector{}, fakeResolver{id: ""}, views.ErrNoViewsAvailable, []string{"m-Bay:1"}},
		{"close failure still reports view error", &fakeSelector{closeErr: errors.New("gone")}, fakeResolver{err: views.ErrNoViewsAvailable}, views.ErrNoViewsAvailable, []string{"m-Bay:1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := openIModels(t)
			var app AppState
			app.Session.IsAuthorized = true
			err := NewOpener(tt.sel, tt.res, "Proj", "Bay").Open(context.Background(), "tok", &app)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Nil(t, app.Container())
			assert.Empty(t, app.ViewID())
			assert.Equal(t, tt.wantClosed, tt.sel.closed)
			assert.Equal(t, before, openIModels(t))
			assert.Equal(t, ScreenNeedsContainerSelection, SelectScreen(app, "http://localhost/", redirectURI))
		})
	}
}

func TestOpener_ReopenClosesPrevious(t *testing.T) {
	sel := &fakeSelector{}
	o := NewOpener(sel, fakeResolver{id: "0x10"}, "Proj", "Bay")
	var app AppState

	require.NoError(t, o.Open(context.Background(), "tok", &app))
	require.NoError(t, o.Open(context.Background(), "tok", &app))
	assert.Equal(t, []string{"m-Bay:1"}, sel.closed)
	assert.Equal(t, "m-Bay:2", app.Container().Key)
}

func TestOpener_Close(t *testing.T) {
	sel := &fakeSelector{}
	o := NewOpener(sel, fakeResolver{id: "0x10"}, "Proj", "Bay")
	var app AppState

	require.NoError(t, o.Close(context.Background(), "tok", &app))
	assert.Empty(t, sel.closed)

	require.NoError(t, o.Open(context.Background(), "tok", &app))
	require.NoError(t, o.Close(context.Background(), "tok", &app))
	assert.Nil(t, app.Container())
	assert.Empty(t, app.ViewID())
	assert.Equal(t, []string{"m-Bay:1"}, sel.closed)
}

func TestOpener_EndToEnd(t *testing.T) {
	lookup := platform.NewMockServer()
	defer lookup.Close()
	lookup.AddProject(platform.Project{ID: "p1", DisplayName: "Bay Town"})
	lookup.AddIModel(platform.IModel{ID: "m1", Name: "Bay Town", ProjectID: "p1"})

	backend := rpc.NewMockServer("general-purpose-imodeljs-backend", "v2.0")
	defer backend.Close()
	backend.AddIModel("m1", rpc.MockIModel{
		Name:  "Bay Town",
		Views: map[string][]rpc.ElementProps{views.SpatialViewClass: {{ID: "0x99"}}},
	})

	client := rpc.NewClient(rpc.Config{Info: backend.Info(), Timeout: time.Second}, nil)
	selector := imodel.NewSelector(platform.New(platform.Config{BaseURL: lookup.URL, Timeout: time.Second}), client)
	o := NewOpener(selector, views.NewResolver(client), "Bay Town", "Bay Town")

	app := AppState{Session: SessionState{IsAuthorized: true}}
	require.NoError(t, o.Open(context.Background(), "tok", &app))
	assert.Equal(t, id64.ID("0x99"), app.ViewID())
	assert.True(t, backend.IsOpen("m1"))
	assert.Equal(t, ScreenViewing, SelectScreen(app, "http://localhost:3000/", redirectURI))

	require.NoError(t, o.Close(context.Background(), "tok", &app))
	assert.False(t, backend.IsOpen("m1"))
}

func TestOpener_UnusableViewsAgainstMockBackend(t *testing.T) {
	lookup := platform.NewMockServer()
	defer lookup.Close()
	lookup.AddProject(platform.Project{ID: "p1", DisplayName: "Bay Town"})
	lookup.AddIModel(platform.IModel{ID: "m1", Name: "Bay Town", ProjectID: "p1"})

	backend := rpc.NewMockServer("general-purpose-imodeljs-backend", "v2.0")
	defer backend.Close()
	backend.AddIModel("m1", rpc.MockIModel{
		Name:        "Bay Town",
		DefaultView: "0",
		Views:       map[string][]rpc.ElementProps{views.SpatialViewClass: {{ID: ""}}},
	})

	client := rpc.NewClient(rpc.Config{Info: backend.Info(), Timeout: time.Second}, nil)
	selector := imodel.NewSelector(platform.New(platform.Config{BaseURL: lookup.URL, Timeout: time.Second}), client)
	o := NewOpener(selector, views.NewResolver(client), "Bay Town", "Bay Town")

	before := openIModels(t)
	app := AppState{Session: SessionState{IsAuthorized: true}}
	err := o.Open(context.Background(), "tok", &app)
	assert.ErrorIs(t, err, views.ErrNoViewsAvailable)
	assert.Nil(t, app.Container())
	assert.False(t, backend.IsOpen("m1"))
	assert.Equal(t, before, openIModels(t))
}
