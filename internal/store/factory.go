// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/imjs-viewer/internal/config"
	xglog "github.com/ManuGH/imjs-viewer/internal/log"
)

const sweepInterval = time.Minute

// Open creates the session store selected by cfg.Backend. Relative or empty
// paths of the file based backends resolve below dataDir.
func Open(ctx context.Context, cfg config.SessionConfig, dataDir string) (Store, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "memory"
	}
	logger := xglog.WithComponent("store")

	var (
		s   Store
		err error
	)
	switch backend {
	case "memory":
		s = NewMemoryStore(sweepInterval)
	case "redis":
		s, err = NewRedisStore(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "imjs:session:",
		})
	case "badger":
		var dir string
		if dir, err = resolvePath(cfg.Path, dataDir, "sessions.badger"); err == nil {
			s, err = OpenBadgerStore(dir)
		}
	case "sqlite":
		var file string
		if file, err = resolvePath(cfg.Path, dataDir, "sessions.db"); err == nil {
			s, err = OpenSQLiteStore(file, sweepInterval)
		}
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str(xglog.FieldEvent, "store.opened").
		Str("backend", backend).
		Msg("session store ready")
	return Instrument(s, backend), nil
}

func resolvePath(path, dataDir, fallback string) (string, error) {
	if path == "" {
		path = fallback
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(dataDir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create store dir: %w", err)
	}
	return path, nil
}
