// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import "go.opentelemetry.io/otel/attribute"

// Attribute keys shared by the viewer's spans.
const (
	ProjectIDKey    = "imjs.project_id"
	IModelIDKey     = "imjs.imodel_id"
	ChangesetIDKey  = "imjs.changeset_id"
	ViewIDKey       = "imjs.view_id"
	ViewSourceKey   = "imjs.view_source"
	RPCInterfaceKey = "imjs.rpc.interface"
	RPCOperationKey = "imjs.rpc.operation"
	ScreenKey       = "imjs.screen"
	ErrorTypeKey    = "error.type"
)

// IModelAttributes describes the container a span operates on.
func IModelAttributes(projectID, iModelID, changesetID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(ProjectIDKey, projectID),
		attribute.String(IModelIDKey, iModelID),
	}
	if changesetID != "" {
		attrs = append(attrs, attribute.String(ChangesetIDKey, changesetID))
	}
	return attrs
}

// RPCAttributes describes a remote interface call.
func RPCAttributes(iface, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RPCInterfaceKey, iface),
		attribute.String(RPCOperationKey, operation),
	}
}
