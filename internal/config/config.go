// Package config resolves CLI settings from flags with environment fallback.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"agcred/internal/logging"
)

// Environment variables read by Resolve.
const (
	EnvAgent     = "AGCRED_AGENT"
	EnvLogLevel  = "AGCRED_LOG_LEVEL"
	EnvLogFormat = "AGCRED_LOG_FORMAT"
)

// Config holds the settings shared by every agcred subcommand.
type Config struct {
	AgentPath string
	LogLevel  slog.Level
	LogFormat string
}

// Resolve picks each value from its flag, then its environment variable, then
// the default: agent "." , level "warn", format "text". A flag set to the
// empty string counts as unset.
func Resolve(agentFlag, levelFlag, formatFlag string, getenv func(string) string) (*Config, error) {
	agent := resolveValue(agentFlag, getenv(EnvAgent), ".")

	levelRaw := resolveValue(levelFlag, getenv(EnvLogLevel), "warn")
	level, err := logging.ParseLevel(levelRaw)
	if err != nil {
		return nil, fmt.Errorf("--log-level/%s: %w", EnvLogLevel, err)
	}

	format := strings.ToLower(resolveValue(formatFlag, getenv(EnvLogFormat), "text"))
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("--log-format/%s: invalid log format %q", EnvLogFormat, format)
	}

	return &Config{
		AgentPath: agent,
		LogLevel:  level,
		LogFormat: format,
	}, nil
}

func resolveValue(flagValue, envValue, def string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v := strings.TrimSpace(envValue); v != "" {
		return v
	}
	return def
}
