// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/imjs-viewer/internal/config"
	xglog "github.com/ManuGH/imjs-viewer/internal/log"
)

// PerformStartupChecks validates the environment before any listener is bound.
func PerformStartupChecks(cfg config.AppConfig) error {
	logger := xglog.WithComponent("startup-check")

	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	for name, addr := range map[string]string{"listen": cfg.Server.ListenAddr, "metrics": cfg.Metrics.ListenAddr} {
		if err := checkListenAddr(addr); err != nil {
			return fmt.Errorf("invalid %s address: %w", name, err)
		}
	}

	switch strings.ToLower(cfg.Session.Backend) {
	case "memory":
		logger.Warn().
			Str(xglog.FieldEvent, "startup.ephemeral_sessions").
			Msg("sessions are kept in memory and lost on restart")
	case "badger", "sqlite":
		tempDir := filepath.Clean(os.TempDir())
		dataDir := filepath.Clean(cfg.DataDir)
		if cfg.Session.Path == "" && tempDir != "." &&
			(dataDir == tempDir || strings.HasPrefix(dataDir, tempDir+string(filepath.Separator))) {
			logger.Warn().
				Str("data_dir", cfg.DataDir).
				Msg("data directory is under temp; sessions may be lost on reboot")
		}
	}

	logger.Info().Str(xglog.FieldEvent, "startup.checks_passed").Msg("startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	if path == "" {
		return fmt.Errorf("not configured")
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", path, err)
	}
	_ = os.Remove(testFile)

	logger.Debug().Str(xglog.FieldPath, path).Msg("data directory is writable")
	return nil
}

func checkListenAddr(addr string) error {
	if addr == "" {
		return nil
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid port %q in %q", port, addr)
	}
	return nil
}
