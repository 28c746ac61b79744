package main

import (
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/pdiddy/marker-api/internal/convert"
	"github.com/pdiddy/marker-api/internal/server"
	"github.com/pdiddy/marker-api/pkg/types"
)

const envPrefix = "MARKER_API"

// configureEnv maps MARKER_API_SERVER_PORT style variables onto nested keys
// and keeps the bare PORT and PRELOAD_MODELS variables working.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("server.port", envPrefix+"_SERVER_PORT", "PORT")
	_ = v.BindEnv("server.preload_models", envPrefix+"_SERVER_PRELOAD_MODELS", "PRELOAD_MODELS")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.preload_models", false)
	v.SetDefault("server.workers", 1)
	v.SetDefault("server.max_upload_bytes", server.DefaultMaxUploadBytes)
	v.SetDefault("server.temp_dir", "")
	v.SetDefault("server.history_db", "data/marker-api.db")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", string(types.LogText))

	v.SetDefault("converter.backend", string(types.BackendContainer))
	v.SetDefault("converter.image", convert.DefaultImage)
	v.SetDefault("converter.model_cache_dir", "")
	v.SetDefault("converter.command", convert.DefaultCommand)
	v.SetDefault("converter.server_url", "")
	v.SetDefault("converter.api_key", "")
	v.SetDefault("converter.max_retries", 5)
	v.SetDefault("converter.timeout", 10*time.Minute)
	v.SetDefault("converter.user_agent", "marker-api/"+version)
}

// loadConfig resolves the typed configuration from v and rejects values the
// service cannot run with.
func loadConfig(v *viper.Viper) (types.Config, error) {
	setDefaults(v)

	var c types.Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		envBool,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&c, hook); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return types.Config{}, fmt.Errorf("invalid port %d", c.Server.Port)
	}
	switch c.Converter.Backend {
	case types.BackendContainer, types.BackendCommand, types.BackendServer:
	default:
		return types.Config{}, fmt.Errorf("unknown backend %q (want container, command, or server)", c.Converter.Backend)
	}
	switch c.Server.LogFormat {
	case types.LogText, types.LogJSON:
	default:
		return types.Config{}, fmt.Errorf("unknown log format %q (want text or json)", c.Server.LogFormat)
	}
	return c, nil
}

// envBool decodes string settings into bools the way PRELOAD_MODELS has
// always been read: "true" in any case is true, anything else is false.
func envBool(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Bool {
		return data, nil
	}
	return strings.EqualFold(strings.TrimSpace(reflect.ValueOf(data).String()), "true"), nil
}

// newLogger builds the process logger from the configured level and format.
func newLogger(w io.Writer, level string, format types.LogFormat) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == types.LogJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
