// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for imjs-viewer.
//
// Values are resolved with the precedence ENV > YAML file > defaults. The
// environment names inherited from the browser template (imjs_browser_test_*,
// imjs_test_*) are kept verbatim; everything else uses the IMJS_ prefix.
package config
