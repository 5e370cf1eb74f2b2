// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "errors"

var (
	// ErrConfigurationMissing is returned when a required value is absent.
	// It is always wrapped with the name of the missing key.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrInvalidValue classifies values that are present but unusable.
	ErrInvalidValue = errors.New("invalid configuration value")

	// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
	ErrUnknownConfigField = errors.New("unknown config field")
)
