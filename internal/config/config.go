// Package config loads service settings from the environment and an optional
// config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"modgate/internal/moderation"

	"github.com/spf13/viper"
)

// Storage backends for moderation state
const (
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// Config holds everything the server needs at startup.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	Backend         string
	DBPath          string
	ContentDBPath   string
	RedisURL        string
	ReviewersConfig string
	InternalToken   string

	OTLPEndpoint    string
	MetricsInterval time.Duration
	ShutdownTimeout time.Duration

	Policy moderation.Policy
}

// env maps config keys to the environment variables that set them.
var env = map[string]string{
	"port":                 "PORT",
	"log_level":            "LOG_LEVEL",
	"log_format":           "LOG_FORMAT",
	"backend":              "MODGATE_BACKEND",
	"db_path":              "MODGATE_DB_PATH",
	"content_db_path":      "MODGATE_CONTENT_DB_PATH",
	"redis_url":            "REDIS_URL",
	"reviewers_config":     "MODGATE_REVIEWERS_CONFIG",
	"internal_token":       "MODGATE_INTERNAL_TOKEN",
	"otlp_endpoint":        "OTEL_EXPORTER_OTLP_ENDPOINT",
	"metrics_interval":     "METRICS_INTERVAL",
	"shutdown_timeout":     "SHUTDOWN_TIMEOUT",
	"report_threshold":     "REPORT_THRESHOLD",
	"reject_suspension":    "REJECT_SUSPENSION",
	"new_account_cooldown": "NEW_ACCOUNT_COOLDOWN",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("backend", BackendBolt)
	v.SetDefault("db_path", "modgate.db")
	v.SetDefault("content_db_path", "modgate-content.sqlite")
	v.SetDefault("metrics_interval", 30*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("report_threshold", moderation.DefaultReportThreshold)
	v.SetDefault("reject_suspension", moderation.DefaultRejectSuspension)
	v.SetDefault("new_account_cooldown", moderation.DefaultNewAccountCooldown)
}

// Load reads the configuration. Environment variables override values from
// the file at path; an empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Port:            v.GetString("port"),
		LogLevel:        strings.ToLower(v.GetString("log_level")),
		LogFormat:       strings.ToLower(v.GetString("log_format")),
		Backend:         strings.ToLower(v.GetString("backend")),
		DBPath:          v.GetString("db_path"),
		ContentDBPath:   v.GetString("content_db_path"),
		RedisURL:        v.GetString("redis_url"),
		ReviewersConfig: v.GetString("reviewers_config"),
		InternalToken:   v.GetString("internal_token"),
		OTLPEndpoint:    v.GetString("otlp_endpoint"),
		MetricsInterval: v.GetDuration("metrics_interval"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		Policy: moderation.Policy{
			ReportThreshold:    v.GetInt("report_threshold"),
			RejectSuspension:   v.GetDuration("reject_suspension"),
			NewAccountCooldown: v.GetDuration("new_account_cooldown"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendBolt, BackendSQLite:
	default:
		return fmt.Errorf("invalid config: unknown backend %q", c.Backend)
	}
	if c.Port == "" {
		return fmt.Errorf("invalid config: port is required")
	}
	if c.Policy.ReportThreshold < 1 {
		return fmt.Errorf("invalid config: report threshold must be at least 1, got %d", c.Policy.ReportThreshold)
	}
	if c.Policy.RejectSuspension <= 0 {
		return fmt.Errorf("invalid config: reject suspension must be positive")
	}
	if c.Policy.NewAccountCooldown < 0 {
		return fmt.Errorf("invalid config: new account cooldown must not be negative")
	}
	if c.MetricsInterval <= 0 {
		return fmt.Errorf("invalid config: metrics interval must be positive")
	}
	return nil
}
