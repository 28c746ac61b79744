package types

import "time"

// HTTPConfig holds shared HTTP settings used by backends that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "marker-api/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// ConversionBackend identifies how Marker is reached.
type ConversionBackend string

const (
	// BackendContainer runs the Marker image through docker or podman.
	BackendContainer ConversionBackend = "container"
	// BackendCommand runs a marker_single binary found on PATH.
	BackendCommand ConversionBackend = "command"
	// BackendServer posts PDFs to a running marker_server.
	BackendServer ConversionBackend = "server"
)

// ConverterConfig holds settings for the conversion backends.
type ConverterConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Backend selects the conversion backend: container, command, or server.
	Backend ConversionBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Image is the Marker container image (container backend).
	Image string `json:"image" yaml:"image" mapstructure:"image"`

	// ModelCacheDir is a host directory mounted into the container so model
	// weights are downloaded once (container backend). Empty disables the mount.
	ModelCacheDir string `json:"model_cache_dir" yaml:"model_cache_dir" mapstructure:"model_cache_dir"`

	// Command is the marker_single binary name or path (command backend).
	Command string `json:"command" yaml:"command" mapstructure:"command"`

	// ServerURL is the base URL of a marker_server (server backend).
	ServerURL string `json:"server_url" yaml:"server_url" mapstructure:"server_url"`

	// APIKey is sent as a bearer token to the marker server when set.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries bounds retries on 429/503 from the marker server (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogText LogFormat = "text"
	LogJSON LogFormat = "json"
)

// ServerConfig holds settings for the HTTP service.
type ServerConfig struct {
	// Port is the TCP port to listen on (default 5000).
	Port int `json:"port" yaml:"port" mapstructure:"port"`

	// Host is the interface to bind (default 0.0.0.0).
	Host string `json:"host" yaml:"host" mapstructure:"host"`

	// PreloadModels loads the converter before the listener starts instead
	// of on the first request.
	PreloadModels bool `json:"preload_models" yaml:"preload_models" mapstructure:"preload_models"`

	// Workers is the number of conversions allowed to run at once (default 1).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// MaxUploadBytes caps the request body size (default 100 MiB).
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`

	// TempDir is where uploads are staged. Empty uses the OS temp dir.
	TempDir string `json:"temp_dir" yaml:"temp_dir" mapstructure:"temp_dir"`

	// HistoryDB is the SQLite file for conversion history. Empty disables history.
	HistoryDB string `json:"history_db" yaml:"history_db" mapstructure:"history_db"`

	// ShutdownTimeout bounds graceful shutdown (default 30s).
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	LogLevel  string    `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogFormat LogFormat `json:"log_format" yaml:"log_format" mapstructure:"log_format"`
}

// Config groups all settings read from flags, environment, and config file.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
	Converter ConverterConfig `json:"converter" yaml:"converter" mapstructure:"converter"`
}
