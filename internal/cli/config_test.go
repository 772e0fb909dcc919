package cli

import (
	"path/filepath"
	"testing"

	"github.com/TimurManjosov/goflipt/internal/config"
)

func useTempConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flipt", "config.yaml")
	configPathOverride = path
	t.Cleanup(func() { configPathOverride = "" })
	for _, key := range []string{"FLIPT_URL", "FLIPT_NAMESPACE", "FLIPT_AUTH_TOKEN", "FLIPT_AUTH_JWT"} {
		t.Setenv(key, "")
	}
	return path
}

func defaultEnv() *config.Config {
	return &config.Config{URL: "http://localhost:8080", Namespace: "default"}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	useTempConfig(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.DefaultProfile != "default" {
		t.Errorf("Expected default profile 'default', got '%s'", cfg.DefaultProfile)
	}
	if len(cfg.Profiles) != 0 {
		t.Errorf("Expected no profiles, got %d", len(cfg.Profiles))
	}
}

func TestInitConfig_RoundTrip(t *testing.T) {
	useTempConfig(t)

	if err := InitConfig(); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.DefaultProfile != "local" {
		t.Errorf("Expected default profile 'local', got '%s'", cfg.DefaultProfile)
	}
	if cfg.Profiles["prod"].URL != "https://flipt.example.com" {
		t.Errorf("Unexpected prod URL '%s'", cfg.Profiles["prod"].URL)
	}
}

func TestResolve_Priority(t *testing.T) {
	useTempConfig(t)
	err := SaveConfig(&Config{
		DefaultProfile: "staging",
		Profiles: map[string]Profile{
			"staging": {URL: "https://staging.example.com", Token: "file-token", Namespace: "team"},
			"prod":    {URL: "https://prod.example.com", JWT: "file-jwt"},
		},
	})
	if err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	t.Run("profile beats defaults", func(t *testing.T) {
		p, err := Resolve(Overrides{}, defaultEnv())
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if p.URL != "https://staging.example.com" || p.Namespace != "team" || p.Token != "file-token" {
			t.Errorf("Unexpected profile %+v", p)
		}
	})

	t.Run("environment beats profile", func(t *testing.T) {
		env := defaultEnv()
		env.URL = "https://env.example.com"
		env.AuthToken = "env-token"
		env.Explicit = map[string]bool{"FLIPT_URL": true, "FLIPT_AUTH_TOKEN": true}

		p, err := Resolve(Overrides{}, env)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if p.URL != "https://env.example.com" {
			t.Errorf("Expected env URL, got '%s'", p.URL)
		}
		if p.Token != "env-token" {
			t.Errorf("Expected env token, got '%s'", p.Token)
		}
	})

	t.Run("dotenv namespace beats profile", func(t *testing.T) {
		env := defaultEnv()
		env.Namespace = "from-dotenv"
		env.Explicit = map[string]bool{"FLIPT_NAMESPACE": true}

		p, err := Resolve(Overrides{}, env)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if p.Namespace != "from-dotenv" {
			t.Errorf("Expected .env namespace, got '%s'", p.Namespace)
		}
		if p.URL != "https://staging.example.com" {
			t.Errorf("Expected profile URL, got '%s'", p.URL)
		}
	})

	t.Run("flags beat everything", func(t *testing.T) {
		env := defaultEnv()
		env.URL = "https://env.example.com"
		env.Explicit = map[string]bool{"FLIPT_URL": true}

		p, err := Resolve(Overrides{Profile: "prod", URL: "http://flag:9000", Token: "flag-token", Namespace: "ns"}, env)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if p.URL != "http://flag:9000" || p.Token != "flag-token" || p.Namespace != "ns" {
			t.Errorf("Unexpected profile %+v", p)
		}
		if p.JWT != "" {
			t.Errorf("Expected flag token to clear JWT, got '%s'", p.JWT)
		}
	})

	t.Run("unknown profile", func(t *testing.T) {
		if _, err := Resolve(Overrides{Profile: "missing"}, defaultEnv()); err == nil {
			t.Error("Expected error for unknown profile")
		}
	})
}

func TestResolve_FallsBackToDefaults(t *testing.T) {
	useTempConfig(t)

	p, err := Resolve(Overrides{}, defaultEnv())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.URL != "http://localhost:8080" {
		t.Errorf("Expected default URL, got '%s'", p.URL)
	}
	if p.Namespace != "default" {
		t.Errorf("Expected default namespace, got '%s'", p.Namespace)
	}
}

func TestProfile_GetSet(t *testing.T) {
	var p Profile
	for _, key := range ProfileKeys {
		if err := p.Set(key, key+"-value"); err != nil {
			t.Fatalf("Set(%s) failed: %v", key, err)
		}
		got, err := p.Get(key)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", key, err)
		}
		if got != key+"-value" {
			t.Errorf("Expected '%s-value', got '%s'", key, got)
		}
	}

	if err := p.Set("color", "blue"); err == nil {
		t.Error("Expected error for unknown key")
	}
}
