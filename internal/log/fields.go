// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"
	FieldSubject   = "subject"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Domain fields
	FieldProjectID   = "project_id"
	FieldProjectName = "project_name"
	FieldIModelID    = "imodel_id"
	FieldIModelName  = "imodel_name"
	FieldViewID      = "view_id"
	FieldViewSource  = "view_source"
	FieldScreen      = "screen"
	FieldInterface   = "rpc_interface"
	FieldOperation   = "operation"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
