// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command imjs-viewer serves the iModel viewer.
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/imjs-viewer/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "imjs-viewer",
		Short:         "Browser viewer for iModels",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringP("config", "c", "", "path to config file (YAML); defaults to $IMJS_CONFIG or $IMJS_DATA/config.yaml")

	root.AddCommand(
		newServeCmd(),
		newConfigCmd(),
		newHealthcheckCmd(),
		newVersionCmd(),
	)
	return root
}

// resolveConfigPath picks the config file: --config, then $IMJS_CONFIG, then
// $IMJS_DATA/config.yaml when it exists. "" means ENV and defaults only.
func resolveConfigPath(cmd *cobra.Command) string {
	if flag := configFlag(cmd); flag != "" {
		return flag
	}
	if env := strings.TrimSpace(os.Getenv(config.EnvConfigPath)); env != "" {
		return env
	}
	auto := defaultConfigPath()
	if _, err := os.Stat(auto); err == nil {
		return auto
	}
	return ""
}

// configFlag returns the --config value, also when cmd was not executed.
func configFlag(cmd *cobra.Command) string {
	f := cmd.Flag("config")
	if f == nil {
		return ""
	}
	return strings.TrimSpace(f.Value.String())
}

func defaultConfigPath() string {
	dataDir := strings.TrimSpace(os.Getenv(config.EnvDataDir))
	if dataDir == "" {
		dataDir = config.Default().DataDir
	}
	return filepath.Join(dataDir, "config.yaml")
}
