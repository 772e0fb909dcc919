package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var envKeys = []string{
	"FLIPT_URL", "FLIPT_AUTH_TOKEN", "FLIPT_AUTH_JWT", "FLIPT_TIMEOUT",
	"FLIPT_NAMESPACE", "FLIPT_LOG_LEVEL", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_EXPORTER_OTLP_INSECURE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.URL != "http://localhost:8080" {
		t.Errorf("Expected URL='http://localhost:8080', got '%s'", cfg.URL)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("Expected Timeout=60s, got %s", cfg.Timeout)
	}
	if cfg.Namespace != "default" {
		t.Errorf("Expected Namespace='default', got '%s'", cfg.Namespace)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected LogLevel='info', got '%s'", cfg.LogLevel)
	}
	if cfg.AuthToken != "" {
		t.Errorf("Expected empty AuthToken, got '%s'", cfg.AuthToken)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLIPT_URL", "https://flipt.example.com")
	t.Setenv("FLIPT_AUTH_TOKEN", "secret")
	t.Setenv("FLIPT_TIMEOUT", "5")
	t.Setenv("FLIPT_NAMESPACE", "payments")
	t.Setenv("FLIPT_LOG_LEVEL", "debug")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.URL != "https://flipt.example.com" {
		t.Errorf("Expected URL override, got '%s'", cfg.URL)
	}
	if cfg.AuthToken != "secret" {
		t.Errorf("Expected AuthToken='secret', got '%s'", cfg.AuthToken)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Expected Timeout=5s, got %s", cfg.Timeout)
	}
	if cfg.Namespace != "payments" {
		t.Errorf("Expected Namespace='payments', got '%s'", cfg.Namespace)
	}
	if cfg.Level() != zerolog.DebugLevel {
		t.Errorf("Expected debug level, got %s", cfg.Level())
	}
	if cfg.OTLPEndpoint != "localhost:4318" {
		t.Errorf("Expected OTLP endpoint override, got '%s'", cfg.OTLPEndpoint)
	}
}

func TestLoad_ExplicitKeys(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	if err := os.WriteFile(".env", []byte("FLIPT_NAMESPACE=from-dotenv\n"), 0600); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}
	t.Setenv("FLIPT_AUTH_TOKEN", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Namespace != "from-dotenv" {
		t.Errorf("Expected Namespace='from-dotenv', got '%s'", cfg.Namespace)
	}
	if !cfg.IsExplicit("FLIPT_NAMESPACE") {
		t.Error("Expected FLIPT_NAMESPACE from .env to be explicit")
	}
	if !cfg.IsExplicit("FLIPT_AUTH_TOKEN") {
		t.Error("Expected FLIPT_AUTH_TOKEN from the environment to be explicit")
	}
	if cfg.IsExplicit("FLIPT_URL") {
		t.Error("Expected defaulted FLIPT_URL not to be explicit")
	}
	if cfg.IsExplicit("FLIPT_TIMEOUT") {
		t.Error("Expected defaulted FLIPT_TIMEOUT not to be explicit")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			URL:       "http://localhost:8080",
			Timeout:   time.Second,
			Namespace: "default",
			LogLevel:  "info",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"relative url", func(c *Config) { c.URL = "localhost:8080" }, "FLIPT_URL"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "FLIPT_TIMEOUT"},
		{"empty namespace", func(c *Config) { c.Namespace = " " }, "FLIPT_NAMESPACE"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "FLIPT_LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			var vErr ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("Expected field '%s', got '%s'", tt.field, vErr.Field)
			}
		})
	}
}
