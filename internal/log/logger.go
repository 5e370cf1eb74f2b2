// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AppComponent is the component name used for the viewer's own messages.
// It is usually configured one level more verbose than the default.
const AppComponent = "imjs-app"

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // default level for every component ("warn" when empty)
	Output  io.Writer // optional writer (defaults to os.Stdout)
	Service string    // optional service name attached to every log entry
	Version string    // optional build version attached to every log entry

	// ComponentLevels overrides Level for individual components.
	ComponentLevels map[string]string
}

var (
	mu         sync.RWMutex
	base       zerolog.Logger
	defaultLvl = zerolog.WarnLevel
	compLevels = map[string]zerolog.Level{}
)

// Configure (re)initialises the global zerolog logger.
// Loggers obtained before the call keep their previous configuration.
func Configure(cfg Config) {
	level := zerolog.WarnLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level)); err == nil {
			level = parsed
		}
	} else if env := os.Getenv("LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}

	overrides := make(map[string]zerolog.Level, len(cfg.ComponentLevels))
	for name, raw := range cfg.ComponentLevels {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil && raw != "" {
			overrides[name] = parsed
		}
	}

	// Per-logger levels do the filtering; the global floor must not hide overrides.
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	zerolog.TimeFieldFormat = time.RFC3339

	writer := cfg.Output
	if writer == nil {
		writer = os.Stdout
	}

	service := cfg.Service
	if service == "" {
		service = os.Getenv("LOG_SERVICE")
		if service == "" {
			service = "imjs-viewer"
		}
	}

	ctx := zerolog.New(writer).With().
		Timestamp().
		Str("service", service)
	if cfg.Version != "" {
		ctx = ctx.Str("version", cfg.Version)
	}

	mu.Lock()
	base = ctx.Logger().Level(level)
	defaultLvl = level
	compLevels = overrides
	mu.Unlock()
}

// SetComponentLevel changes the level override of a single component.
// An empty level removes the override.
func SetComponentLevel(component, level string) error {
	mu.Lock()
	defer mu.Unlock()
	if level == "" {
		delete(compLevels, component)
		return nil
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	compLevels[component] = parsed
	return nil
}

// ComponentLevel reports the effective level of a component.
func ComponentLevel(component string) zerolog.Level {
	mu.RLock()
	defer mu.RUnlock()
	if lvl, ok := compLevels[component]; ok {
		return lvl
	}
	return defaultLvl
}

// Base returns the configured base logger instance.
func Base() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// L is shorthand for a pointer to the base logger.
func L() *zerolog.Logger {
	l := Base()
	return &l
}

// WithComponent returns a child logger annotated with the given component name.
// The child uses the component's override level when one is configured.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger().Level(ComponentLevel(component))
}

// App returns the logger for the viewer's own messages.
func App() zerolog.Logger {
	return WithComponent(AppComponent)
}

// Derive attaches arbitrary fields to a child logger using the provided builder function.
func Derive(build func(*zerolog.Context)) zerolog.Logger {
	ctx := Base().With()
	if build != nil {
		build(&ctx)
	}
	return ctx.Logger()
}

func init() {
	Configure(Config{})
}

// SetLevel changes the default level of every component without an override.
func SetLevel(level string) error {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	defaultLvl = parsed
	base = base.Level(parsed)
	return nil
}
