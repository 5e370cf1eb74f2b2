// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package platform

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/ManuGH/imjs-viewer/internal/normalize"
)

// MockServer is an httptest stand-in for the platform API.
type MockServer struct {
	*httptest.Server

	mu       sync.Mutex
	projects []Project
	imodels  []IModel
	status   int
	requests int
}

// NewMockServer starts an empty mock platform.
func NewMockServer() *MockServer {
	m := &MockServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/projects/", m.handleProjects)
	mux.HandleFunc("/imodels/", m.handleIModels)
	m.Server = httptest.NewServer(mux)
	return m
}

// AddProject registers a project.
func (m *MockServer) AddProject(p Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects = append(m.projects, p)
}

// AddIModel registers an iModel; ProjectID must be set.
func (m *MockServer) AddIModel(im IModel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imodels = append(m.imodels, im)
}

// FailWith makes every request answer with status; 0 restores normal answers.
func (m *MockServer) FailWith(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// Requests returns the number of requests served.
func (m *MockServer) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

func (m *MockServer) begin(w http.ResponseWriter, r *http.Request) bool {
	m.mu.Lock()
	m.requests++
	status := m.status
	m.mu.Unlock()
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return false
	}
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		http.Error(w, `{"error":{"code":"HeaderNotFound"}}`, http.StatusUnauthorized)
		return false
	}
	return true
}

func (m *MockServer) handleProjects(w http.ResponseWriter, r *http.Request) {
	if !m.begin(w, r) {
		return
	}
	search := strings.ToLower(normalize.Name(r.URL.Query().Get("$search")))
	m.mu.Lock()
	out := []Project{}
	for _, p := range m.projects {
		if strings.Contains(strings.ToLower(normalize.Name(p.DisplayName)), search) {
			out = append(out, p)
		}
	}
	m.mu.Unlock()
	writeJSON(w, map[string]any{"projects": out})
}

func (m *MockServer) handleIModels(w http.ResponseWriter, r *http.Request) {
	if !m.begin(w, r) {
		return
	}
	projectID := r.URL.Query().Get("projectId")
	name := r.URL.Query().Get("name")
	m.mu.Lock()
	out := []IModel{}
	for _, im := range m.imodels {
		if im.ProjectID == projectID && (name == "" || normalize.SameName(im.Name, name)) {
			out = append(out, im)
		}
	}
	m.mu.Unlock()
	writeJSON(w, map[string]any{"iModels": out})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
