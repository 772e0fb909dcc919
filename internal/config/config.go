// Package config loads client settings from environment variables and an
// optional .env file. It uses viper for flexible configuration management
// with sensible defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds settings read from the environment.
// Priority: environment variables > .env file > defaults.
type Config struct {
	URL          string        // Evaluation service root
	AuthToken    string        // Client token, sent as "Bearer <token>"
	AuthJWT      string        // JWT, sent as "JWT <token>"; wins over AuthToken
	Timeout      time.Duration // Per-call timeout
	Namespace    string        // Default namespace for commands
	LogLevel     string        // zerolog level name
	OTLPEndpoint string        // OTLP/HTTP endpoint for traces; empty disables tracing
	OTLPInsecure bool          // Use plain HTTP for the OTLP exporter

	// Explicit holds the keys given by the environment or .env rather than
	// by a default. Callers layering other sources use it to rank values.
	Explicit map[string]bool
}

// Load reads configuration from environment variables and .env (if present).
// It does not validate; call Validate before use.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env") // Optional; silently ignored if file doesn't exist
	v.SetConfigType("env")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	setConfigDefaults(v)

	return &Config{
		URL:          v.GetString("FLIPT_URL"),
		AuthToken:    v.GetString("FLIPT_AUTH_TOKEN"),
		AuthJWT:      v.GetString("FLIPT_AUTH_JWT"),
		Timeout:      time.Duration(v.GetInt("FLIPT_TIMEOUT")) * time.Second,
		Namespace:    v.GetString("FLIPT_NAMESPACE"),
		LogLevel:     v.GetString("FLIPT_LOG_LEVEL"),
		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure: v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		Explicit:     explicitKeys(v),
	}, nil
}

var settingKeys = []string{
	"FLIPT_URL", "FLIPT_AUTH_TOKEN", "FLIPT_AUTH_JWT", "FLIPT_TIMEOUT",
	"FLIPT_NAMESPACE", "FLIPT_LOG_LEVEL", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_EXPORTER_OTLP_INSECURE",
}

// explicitKeys reports which keys came from a non-empty environment
// variable or the .env file. viper's IsSet also counts defaults.
func explicitKeys(v *viper.Viper) map[string]bool {
	explicit := make(map[string]bool)
	for _, key := range settingKeys {
		if env, ok := os.LookupEnv(key); (ok && env != "") || v.InConfig(key) {
			explicit[key] = true
		}
	}
	return explicit
}

// IsExplicit reports whether key was set by the environment or .env.
func (c *Config) IsExplicit(key string) bool {
	return c.Explicit[key]
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("FLIPT_URL", "http://localhost:8080")
	v.SetDefault("FLIPT_TIMEOUT", 60)
	v.SetDefault("FLIPT_NAMESPACE", "default")
	v.SetDefault("FLIPT_LOG_LEVEL", "info")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
}

// ValidationError describes the first invalid setting.
type ValidationError struct {
	Field   string // Name of the environment variable
	Message string // Human-readable error message
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// Validate checks the settings:
//  1. FLIPT_URL must be an absolute http(s) URL
//  2. FLIPT_TIMEOUT must be positive
//  3. FLIPT_NAMESPACE must be non-empty
//  4. FLIPT_LOG_LEVEL must be a zerolog level name
func (c *Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ValidationError{
			Field:   "FLIPT_URL",
			Message: fmt.Sprintf("must be an absolute http(s) URL, got '%s'", c.URL),
		}
	}

	if c.Timeout <= 0 {
		return ValidationError{
			Field:   "FLIPT_TIMEOUT",
			Message: "timeout must be a positive number of seconds",
		}
	}

	if strings.TrimSpace(c.Namespace) == "" {
		return ValidationError{
			Field:   "FLIPT_NAMESPACE",
			Message: "namespace cannot be empty",
		}
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return ValidationError{
			Field:   "FLIPT_LOG_LEVEL",
			Message: fmt.Sprintf("unknown log level '%s'", c.LogLevel),
		}
	}

	return nil
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
