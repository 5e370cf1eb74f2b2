// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rpc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/ManuGH/imjs-viewer/internal/id64"
)

// MockIModel is the backend-side content of one container in a MockServer.
type MockIModel struct {
	Name        string
	DefaultView id64.ID
	// Views maps a view class (e.g. "BisCore:SpatialViewDefinition") to its definitions.
	Views map[string][]ElementProps
	Trees map[string]json.RawMessage
	// Tiles maps "treeID/contentID" to tile bytes.
	Tiles map[string][]byte
	// TileTypes overrides the application/octet-stream content type per tile.
	TileTypes map[string]string
}

// MockCall records one request received by a MockServer.
type MockCall struct {
	Interface string
	Version   string
	Operation string
	ContextID string
	IModelID  string
	Changeset string
	Token     string
	Args      []json.RawMessage
}

// MockServer is an httptest backend speaking the cloud request shape.
type MockServer struct {
	*httptest.Server
	Title   string
	Version string

	mu       sync.Mutex
	imodels  map[string]*MockIModel
	open     map[string]bool
	calls    []MockCall
	failures map[string]int // operation -> HTTP status to answer with
}

// NewMockServer starts a mock backend for service title and version.
func NewMockServer(title, version string) *MockServer {
	m := &MockServer{
		Title:    title,
		Version:  version,
		imodels:  make(map[string]*MockIModel),
		open:     make(map[string]bool),
		failures: make(map[string]int),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// Info returns the ConnectionInfo addressing this server.
func (m *MockServer) Info() ConnectionInfo {
	return ConnectionInfo{ServiceTitle: m.Title, ServiceVersion: m.Version, BaseURL: m.URL}
}

// AddIModel registers container content under iModelID.
func (m *MockServer) AddIModel(iModelID string, im MockIModel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imodels[iModelID] = &im
}

// FailOperation makes every call of operation answer with status; 0 clears it.
func (m *MockServer) FailOperation(operation string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status == 0 {
		delete(m.failures, operation)
		return
	}
	m.failures[operation] = status
}

// IsOpen reports whether iModelID has an open connection.
func (m *MockServer) IsOpen(iModelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open[iModelID]
}

// Calls returns a copy of the received calls.
func (m *MockServer) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

func (m *MockServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// /{title}/{version}/mode/1/context/{c}/imodel/{m}/changeset/{cs}/{iface}-{ver}-{op}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 11 || parts[0] != m.Title || parts[1] != m.Version ||
		parts[2] != "mode" || parts[4] != "context" || parts[6] != "imodel" || parts[8] != "changeset" {
		http.Error(w, "unknown route", http.StatusNotFound)
		return
	}
	opParts := strings.SplitN(parts[10], "-", 3)
	if len(opParts) != 3 {
		http.Error(w, "malformed operation", http.StatusBadRequest)
		return
	}

	var args []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil || len(args) == 0 {
		http.Error(w, "arguments must be a non-empty JSON array", http.StatusBadRequest)
		return
	}

	call := MockCall{
		Interface: opParts[0],
		Version:   opParts[1],
		Operation: opParts[2],
		ContextID: parts[5],
		IModelID:  parts[7],
		Changeset: parts[9],
		Token:     strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
		Args:      args,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)

	if status, ok := m.failures[call.Operation]; ok {
		http.Error(w, call.Operation+" failed", status)
		return
	}
	if call.Token == "" {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	im, ok := m.imodels[call.IModelID]
	if !ok {
		http.Error(w, "iModel not found", http.StatusNotFound)
		return
	}

	switch call.Operation {
	case "openForRead":
		m.open[call.IModelID] = true
		writeMockJSON(w, ConnectionProps{
			IModelProps: IModelProps{
				Key:       call.IModelID + ":" + call.Changeset,
				ContextID: call.ContextID,
				IModelID:  call.IModelID,
				Changeset: ChangesetProps{ID: call.Changeset},
				OpenMode:  OpenModeReadonly,
			},
			Name: im.Name,
		})
	case "close":
		delete(m.open, call.IModelID)
		writeMockJSON(w, true)
	case "getDefaultViewId":
		writeMockJSON(w, im.DefaultView)
	case "queryElementProps":
		var q ElementQuery
		if len(args) < 2 || json.Unmarshal(args[1], &q) != nil {
			http.Error(w, "missing query", http.StatusBadRequest)
			return
		}
		views := im.Views[q.From]
		if views == nil {
			views = []ElementProps{}
		}
		writeMockJSON(w, views)
	case "requestTileTreeProps":
		var treeID string
		if len(args) < 2 || json.Unmarshal(args[1], &treeID) != nil {
			http.Error(w, "missing tree id", http.StatusBadRequest)
			return
		}
		tree, ok := im.Trees[treeID]
		if !ok {
			http.Error(w, "tile tree not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(tree)
	case "generateTileContent":
		var treeID, contentID string
		if len(args) < 3 || json.Unmarshal(args[1], &treeID) != nil || json.Unmarshal(args[2], &contentID) != nil {
			http.Error(w, "missing tile ids", http.StatusBadRequest)
			return
		}
		data, ok := im.Tiles[treeID+"/"+contentID]
		if !ok {
			http.Error(w, "tile not found", http.StatusNotFound)
			return
		}
		ct := im.TileTypes[treeID+"/"+contentID]
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		_, _ = w.Write(data)
	default:
		http.Error(w, "unknown operation", http.StatusNotFound)
	}
}

func writeMockJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
