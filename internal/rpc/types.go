// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rpc

import "github.com/ManuGH/imjs-viewer/internal/id64"

// ConnectionInfo addresses the backend. It is resolved once at startup.
type ConnectionInfo struct {
	ServiceTitle   string
	ServiceVersion string
	BaseURL        string
}

// OpenMode of a remote connection.
type OpenMode int

const (
	OpenModeReadonly  OpenMode = 1
	OpenModeReadWrite OpenMode = 2
)

// ChangesetProps identifies a changeset.
type ChangesetProps struct {
	ID string `json:"id"`
}

// IModelProps identifies an opened (or to-be-opened) container in every call.
type IModelProps struct {
	Key       string         `json:"key"`
	ContextID string         `json:"contextId"`
	IModelID  string         `json:"iModelId"`
	Changeset ChangesetProps `json:"changeset"`
	OpenMode  OpenMode       `json:"openMode"`
}

// ConnectionProps is returned by openForRead.
type ConnectionProps struct {
	IModelProps
	Name        string         `json:"name"`
	RootSubject map[string]any `json:"rootSubject,omitempty"`
}

// ElementQuery narrows queryElementProps.
type ElementQuery struct {
	From  string `json:"from"`
	Where string `json:"where,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// ElementProps is the subset of element properties the viewer reads.
type ElementProps struct {
	ID            id64.ID `json:"id"`
	ClassFullName string  `json:"classFullName"`
	UserLabel     string  `json:"userLabel,omitempty"`
	Code          struct {
		Value string `json:"value,omitempty"`
	} `json:"code"`
}

// Label returns the most readable name of the element.
func (e ElementProps) Label() string {
	if e.UserLabel != "" {
		return e.UserLabel
	}
	return e.Code.Value
}

// TileContent is a binary tile payload.
type TileContent struct {
	ContentType string
	Data        []byte
}
