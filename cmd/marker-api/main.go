// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the marker-api CLI: an HTTP service
// that turns uploaded PDFs into structured Markdown with Marker, plus batch
// conversion and history commands that share its configuration.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/marker-api/internal/secrets"
	"github.com/pdiddy/marker-api/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is resolved from flags, env, and config file before any command runs.
	cfg types.Config

	// loadedSecrets holds API keys loaded from .secrets/ at startup.
	loadedSecrets secrets.Set

	// configErr is set when a config file exists but cannot be read.
	configErr error
)

// rootCmd is the base command for the marker-api CLI.
var rootCmd = &cobra.Command{
	Use:   "marker-api",
	Short: "Scanned PDF to structured Markdown over HTTP",
	Long: `marker-api wraps the Marker PDF converter. "serve" exposes POST /convert,
which accepts a PDF upload and returns the Markdown together with a heading
summary. "convert" runs the same backend over local files, and "history"
lists recent conversions recorded by the server.

PORT and PRELOAD_MODELS are honored as plain environment variables. Every
other setting can come from marker-api.yaml or MARKER_API_* variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configErr != nil {
			return configErr
		}
		c, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		cfg = c

		logger, err := newLogger(os.Stderr, cfg.Server.LogLevel, cfg.Server.LogFormat)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		if f := viper.ConfigFileUsed(); f != "" {
			logger.Debug("using config file", "path", f)
		}

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			logger.Debug("loaded secrets", "keys", slices.Sorted(maps.Keys(s)))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./marker-api.yaml or ~/.config/marker-api/marker-api.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().String("backend", "container", "conversion backend: container, command, or server")

	_ = viper.BindPFlag("server.log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("server.log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("converter.backend", rootCmd.PersistentFlags().Lookup("backend"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("marker-api")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "marker-api"))
		}
	}

	configureEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			configErr = fmt.Errorf("reading config: %w", err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
