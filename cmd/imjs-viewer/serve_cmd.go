// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/imjs-viewer/internal/config"
	"github.com/ManuGH/imjs-viewer/internal/daemon"
	xglog "github.com/ManuGH/imjs-viewer/internal/log"
	"github.com/ManuGH/imjs-viewer/internal/version"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the viewer daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, resolveConfigPath(cmd))
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	// Safe defaults until the configuration is loaded.
	xglog.Configure(xglog.Config{Level: "info", Service: "imjs-viewer", Version: version.Version})
	logger := xglog.WithComponent("daemon")

	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", configPath).
			Msg("failed to load configuration")
		return fmt.Errorf("load configuration: %w", err)
	}

	xglog.Configure(xglog.Config{
		Level:           cfg.LogLevel,
		Service:         "imjs-viewer",
		Version:         cfg.Version,
		ComponentLevels: map[string]string{xglog.AppComponent: cfg.AppLogLevel},
	})
	logger = xglog.WithComponent("daemon")

	source := "env+defaults"
	if configPath != "" {
		source = "file"
	}
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str(xglog.FieldPath, configPath).
		Str("config", cfg.String()).
		Msg("configuration loaded")

	var holder *config.ConfigHolder
	if configPath != "" {
		holder = config.NewConfigHolder(cfg, loader)
	}

	d, err := daemon.Build(ctx, cfg, daemon.Options{Version: version.Version, ConfigHolder: holder})
	if err != nil {
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "startup.failed").
			Msg("startup failed")
		return err
	}
	return d.Run(ctx)
}
