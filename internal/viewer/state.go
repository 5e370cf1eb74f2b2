// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package viewer

import (
	"encoding/json"

	"github.com/ManuGH/imjs-viewer/internal/id64"
	"github.com/ManuGH/imjs-viewer/internal/imodel"
)

// SessionState is the sign-in state of one browser session.
type SessionState struct {
	IsAuthorized bool `json:"isAuthorized"`
	IsLoading    bool `json:"isLoading"`
}

// AppState is the UI state of one browser session. The container and the
// view are only ever set or cleared together.
type AppState struct {
	Session SessionState

	container *imodel.Handle
	viewID    id64.ID
}

// Select records an open container and the view to display it with.
func (s *AppState) Select(h *imodel.Handle, viewID id64.ID) {
	if h == nil || viewID == "" {
		s.Clear()
		return
	}
	s.container = h
	s.viewID = viewID
}

// Clear forgets the container and the view.
func (s *AppState) Clear() {
	s.container = nil
	s.viewID = ""
}

// Container returns the open container, or nil.
func (s AppState) Container() *imodel.Handle { return s.container }

// ViewID returns the selected view, or "".
func (s AppState) ViewID() id64.ID { return s.viewID }

type appStateJSON struct {
	Session   SessionState   `json:"session"`
	Container *imodel.Handle `json:"container,omitempty"`
	ViewID    id64.ID        `json:"viewId,omitempty"`
}

func (s AppState) MarshalJSON() ([]byte, error) {
	return json.Marshal(appStateJSON{Session: s.Session, Container: s.container, ViewID: s.viewID})
}

func (s *AppState) UnmarshalJSON(data []byte) error {
	var raw appStateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Session = raw.Session
	s.Select(raw.Container, raw.ViewID)
	return nil
}
