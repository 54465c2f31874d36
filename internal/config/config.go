// Package config loads grocer settings from defaults, an optional YAML file
// and GROCER_* environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dukerupert/grocer/internal/backup"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Port   string        `yaml:"port"`
	DBPath string        `yaml:"db_path"`
	Log    LogConfig     `yaml:"log"`
	AMQP   AMQPConfig    `yaml:"amqp"`
	HTTP   HTTPConfig    `yaml:"http"`
	Backup backup.Config `yaml:"backup"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// AMQPConfig configures the optional change-event publisher. An empty URL
// disables it.
type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// HTTPConfig holds server limits.
type HTTPConfig struct {
	// RateLimit is the number of write requests allowed per client IP per
	// minute. Zero disables rate limiting.
	RateLimit int `yaml:"rate_limit"`
	// TrustProxy keys rate limiting on CF-Connecting-IP or X-Forwarded-For.
	// Enable only behind a proxy that sets those headers.
	TrustProxy bool `yaml:"trust_proxy"`
	// Origins are cross-origin host patterns allowed to open /ws, for
	// example "app.example.com" or "*.example.com".
	Origins []string `yaml:"origins"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:   "8080",
		DBPath: "grocer.db",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		AMQP: AMQPConfig{
			Exchange: "grocer.events",
		},
		HTTP: HTTPConfig{
			RateLimit: 120,
		},
		Backup: backup.Config{
			Region: "us-east-1",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"GROCER_PORT", &c.Port},
		{"GROCER_DB_PATH", &c.DBPath},
		{"GROCER_LOG_LEVEL", &c.Log.Level},
		{"GROCER_LOG_FORMAT", &c.Log.Format},
		{"GROCER_AMQP_URL", &c.AMQP.URL},
		{"GROCER_AMQP_EXCHANGE", &c.AMQP.Exchange},
		{"GROCER_BACKUP_ENDPOINT", &c.Backup.Endpoint},
		{"GROCER_BACKUP_BUCKET", &c.Backup.Bucket},
		{"GROCER_BACKUP_REGION", &c.Backup.Region},
		{"GROCER_BACKUP_ACCESS_KEY", &c.Backup.AccessKey},
		{"GROCER_BACKUP_SECRET_KEY", &c.Backup.SecretKey},
		{"GROCER_BACKUP_PREFIX", &c.Backup.Prefix},
		{"GROCER_BACKUP_PASSPHRASE", &c.Backup.Passphrase},
	}
	for _, s := range strs {
		if v := getenv(s.key); v != "" {
			*s.dst = v
		}
	}

	if v := getenv("GROCER_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GROCER_RATE_LIMIT: %w", err)
		}
		c.HTTP.RateLimit = n
	}
	if v := getenv("GROCER_TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GROCER_TRUST_PROXY: %w", err)
		}
		c.HTTP.TrustProxy = b
	}
	if v := getenv("GROCER_WS_ORIGINS"); v != "" {
		c.HTTP.Origins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.HTTP.Origins = append(c.HTTP.Origins, o)
			}
		}
	}
	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
