// Package config provides centralized configuration management for svr.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server  ServerConfig
	Poll    PollConfig
	Ingest  IngestConfig
	Local   LocalConfig
	Remote  RemoteConfig
	Source  SourceConfig
	Display DisplayConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including draining in-flight
	// ingestions (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// PollConfig holds the refresh cadence.
type PollConfig struct {
	// Tick is the clock period (default: 1s)
	Tick time.Duration `env:"POLL_TICK" default:"1s"`

	// GateTicks is how many ticks pass between source checks (default: 5)
	GateTicks int `env:"POLL_GATE_TICKS" default:"5"`
}

// IngestConfig bounds concurrent reads and fetches.
type IngestConfig struct {
	// MaxConcurrent is the number of ingestions allowed to run at once (default: 4)
	MaxConcurrent int `env:"INGEST_MAX_CONCURRENT" default:"4"`

	// MaxWait is how long a dispatched ingestion waits for a slot before it
	// is dropped (default: 30s)
	MaxWait time.Duration `env:"INGEST_MAX_WAIT" default:"30s"`
}

// LocalConfig holds settings for local files.
type LocalConfig struct {
	// Encoding of delimited text: utf-8, latin1 or windows-1252 (default: utf-8)
	Encoding string `env:"LOCAL_ENCODING" default:"utf-8"`

	// XLSXSheet is the sheet read from .xlsx workbooks; empty means the first
	XLSXSheet string `env:"LOCAL_XLSX_SHEET"`
}

// RemoteConfig holds Google Sheets settings.
type RemoteConfig struct {
	// CredentialsFile is the service-account key (default: credentials.json)
	CredentialsFile string `env:"REMOTE_CREDENTIALS_FILE" envAlt:"GOOGLE_APPLICATION_CREDENTIALS" default:"credentials.json"`

	// Timeout bounds a single values request (default: 30s)
	Timeout time.Duration `env:"REMOTE_TIMEOUT" default:"30s"`
}

// SourceConfig selects the source at startup. CLI flags take precedence.
type SourceConfig struct {
	Path  string `env:"SOURCE_PATH"`
	URL   string `env:"SOURCE_URL"`
	Sheet string `env:"SOURCE_SHEET"`
}

// DisplayConfig holds presentation settings shared by the web and terminal views.
type DisplayConfig struct {
	// Theme is dark or light (default: dark)
	Theme string `env:"DISPLAY_THEME" default:"dark"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File receives logs while the terminal viewer owns the screen.
	// Empty discards them.
	File string `env:"LOG_FILE"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
