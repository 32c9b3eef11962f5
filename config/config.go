package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config is assembled from an optional YAML file overlaid by environment
// variables. YAML keys are the lower-cased variable names (PORT -> port).
type Config struct {
	Port        string `koanf:"port"`
	DatabaseURL string `koanf:"database_url"`
	FrontendURL string `koanf:"frontend_url"`
	DataBackend string `koanf:"data_backend"`

	JWTSecret         string        `koanf:"jwt_secret"`
	DataEncryptionKey string        `koanf:"data_encryption_key"`
	AccessTokenTTL    time.Duration `koanf:"access_token_ttl"`
	RefreshTokenTTL   time.Duration `koanf:"refresh_token_ttl"`

	ResendAPIKey string `koanf:"resend_api_key"`
	FromEmail    string `koanf:"from_email"`

	GinMode     string `koanf:"gin_mode"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	AMQPURL      string `koanf:"amqp_url"`
	AMQPExchange string `koanf:"amqp_exchange"`
	AMQPQueue    string `koanf:"amqp_queue"`

	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`

	SchedulerEnabled  bool          `koanf:"scheduler_enabled"`
	SchedulerInterval time.Duration `koanf:"scheduler_interval"`
	ReminderDaysAhead int           `koanf:"reminder_days_ahead"`
}

func DefaultConfig() *Config {
	return &Config{
		Port:               "8080",
		FrontendURL:        "http://localhost:5173",
		DataBackend:        BackendPostgres,
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		FromEmail:          "noreply@financas.app",
		GinMode:            "debug",
		LogLevel:           "INFO",
		AMQPExchange:       "financas",
		AMQPQueue:          "lembretes",
		RateLimitPerMinute: 120,
		SchedulerEnabled:   true,
		SchedulerInterval:  24 * time.Hour,
		ReminderDaysAhead:  3,
	}
}

// Load reads the YAML file at path when it exists, then overlays the process
// environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

// Production reports whether the process runs in release mode.
func (c *Config) Production() bool {
	return c.GinMode == "release" || c.Environment == "production"
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using the postgres backend")
		}
	case BackendMemory:
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [postgres memory]", c.DataBackend))
	}

	if len(c.JWTSecret) < 16 {
		errors = append(errors, "JWT_SECRET must be at least 16 characters")
	}
	if c.DataEncryptionKey != "" && len(c.DataEncryptionKey) != 32 {
		errors = append(errors, "DATA_ENCRYPTION_KEY must be exactly 32 characters")
	}
	if c.AccessTokenTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid access token ttl %v: must be positive", c.AccessTokenTTL))
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		errors = append(errors, fmt.Sprintf("invalid refresh token ttl %v: must be longer than the access token ttl", c.RefreshTokenTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.SchedulerInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid scheduler interval %v: must be at least 1 minute", c.SchedulerInterval))
	}
	if c.ReminderDaysAhead < 0 || c.ReminderDaysAhead > 30 {
		errors = append(errors, fmt.Sprintf("invalid reminder days %d: must be between 0 and 30", c.ReminderDaysAhead))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
