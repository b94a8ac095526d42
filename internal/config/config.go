// Package config loads process-wide configuration from the environment.
//
// Configuration is constructed once at startup and treated as read-only by
// every other package.
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Execution ExecutionConfig
	Sessions  SessionConfig
	Security  SecurityConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// ExecutionConfig bounds what a single execution may consume.
type ExecutionConfig struct {
	PythonCmd        string `envconfig:"PYTHON_CMD" default:"python3"`
	MaxExecutionTime int    `envconfig:"MAX_EXECUTION_TIME" default:"30"`
	MaxOutputLines   int    `envconfig:"MAX_OUTPUT_LINES" default:"150"`
	MaxOutputChars   int    `envconfig:"MAX_OUTPUT_CHARS" default:"50000"`
	AllowShell       bool   `envconfig:"ALLOW_SHELL" default:"true"`
	AllowPipInstall  bool   `envconfig:"ALLOW_PIP_INSTALL" default:"true"`
}

// SessionConfig bounds session lifetime and workspace quotas.
type SessionConfig struct {
	TimeoutMinutes       int    `envconfig:"SESSION_TIMEOUT_MINUTES" default:"30"`
	MaxSessions          int    `envconfig:"MAX_SESSIONS" default:"10"`
	MaxFilesPerSession   int    `envconfig:"MAX_FILES_PER_SESSION" default:"50"`
	MaxFileSizeBytes     int    `envconfig:"MAX_FILE_SIZE_BYTES" default:"10485760"`
	AllowFilePersistence bool   `envconfig:"ALLOW_FILE_PERSISTENCE" default:"true"`
	WorkspaceRoot        string `envconfig:"WORKSPACE_ROOT" default:""`
}

// SecurityConfig holds the static denylists checked before execution.
// Lists are comma-separated for environment editability.
type SecurityConfig struct {
	BlockedImports       string `envconfig:"BLOCKED_IMPORTS" default:"subprocess,multiprocessing,ctypes,_thread"`
	BlockedShellPatterns string `envconfig:"BLOCKED_SHELL_PATTERNS" default:"rm\\s+-rf\\s+/,mkfs\\.,dd\\s+if=,:\\(\\)\\{,>\\s*/dev/sd,chmod\\s+-R\\s+777\\s+/"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8090",
			Host: "0.0.0.0",
		},
		Execution: ExecutionConfig{
			PythonCmd:        "python3",
			MaxExecutionTime: 30,
			MaxOutputLines:   150,
			MaxOutputChars:   50000,
			AllowShell:       true,
			AllowPipInstall:  true,
		},
		Sessions: SessionConfig{
			TimeoutMinutes:       30,
			MaxSessions:          10,
			MaxFilesPerSession:   50,
			MaxFileSizeBytes:     10485760,
			AllowFilePersistence: true,
		},
		Security: SecurityConfig{
			BlockedImports:       "subprocess,multiprocessing,ctypes,_thread",
			BlockedShellPatterns: `rm\s+-rf\s+/,mkfs\.,dd\s+if=,:\(\)\{,>\s*/dev/sd,chmod\s+-R\s+777\s+/`,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}

// BlockedImportList splits the comma-separated import denylist.
func (s SecurityConfig) BlockedImportList() []string {
	return splitList(s.BlockedImports)
}

// BlockedShellPatternList splits the comma-separated shell pattern denylist.
// Order is preserved: the first pattern in the list wins on multiple matches.
func (s SecurityConfig) BlockedShellPatternList() []string {
	return splitList(s.BlockedShellPatterns)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
