package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/TimurManjosov/goflipt/internal/config"
	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration file
type Config struct {
	DefaultProfile string             `yaml:"default_profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile holds connection settings for one evaluation service
type Profile struct {
	URL       string `yaml:"url"`
	Token     string `yaml:"token,omitempty"`
	JWT       string `yaml:"jwt,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

// ProfileKeys lists the settable keys of a profile
var ProfileKeys = []string{"url", "token", "jwt", "namespace"}

// configPathOverride is used by tests
var configPathOverride string

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	if configPathOverride != "" {
		return configPathOverride, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".flipt", "config.yaml"), nil
}

// LoadConfig loads the configuration from file
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{
				DefaultProfile: "default",
				Profiles:       make(map[string]Profile),
			}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to file
func SaveConfig(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Get returns a profile value by key
func (p Profile) Get(key string) (string, error) {
	switch key {
	case "url":
		return p.URL, nil
	case "token":
		return p.Token, nil
	case "jwt":
		return p.JWT, nil
	case "namespace":
		return p.Namespace, nil
	default:
		return "", fmt.Errorf("unknown key '%s', valid keys: %v", key, ProfileKeys)
	}
}

// Set updates a profile value by key
func (p *Profile) Set(key, value string) error {
	switch key {
	case "url":
		p.URL = value
	case "token":
		p.Token = value
	case "jwt":
		p.JWT = value
	case "namespace":
		p.Namespace = value
	default:
		return fmt.Errorf("unknown key '%s', valid keys: %v", key, ProfileKeys)
	}
	return nil
}

// Overrides carries values given as command-line flags
type Overrides struct {
	Profile   string
	URL       string
	Token     string
	Namespace string
}

// Resolve returns the effective connection settings.
// Priority: command flags > environment variables > config file profile > defaults.
// A profile named explicitly must exist; the default profile is optional.
func Resolve(flags Overrides, env *config.Config) (*Profile, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	profileName := flags.Profile
	profile, ok := cfg.Profiles[profileName]
	if profileName == "" {
		profileName = cfg.DefaultProfile
		profile = cfg.Profiles[profileName]
	} else if !ok {
		return nil, fmt.Errorf("profile '%s' not found in config", profileName)
	}

	resolved := Profile{
		URL:       first(flags.URL, explicit(env, "FLIPT_URL", env.URL), profile.URL, env.URL),
		Token:     first(flags.Token, env.AuthToken, profile.Token),
		JWT:       first(env.AuthJWT, profile.JWT),
		Namespace: first(flags.Namespace, explicit(env, "FLIPT_NAMESPACE", env.Namespace), profile.Namespace, env.Namespace),
	}
	if flags.Token != "" {
		// an explicit token on the command line wins over any JWT
		resolved.JWT = ""
	}

	if resolved.URL == "" {
		return nil, fmt.Errorf("url must be configured for profile '%s'", profileName)
	}

	return &resolved, nil
}

// explicit returns value only when key was set by the environment or .env,
// so that built-in defaults do not shadow the profile.
func explicit(env *config.Config, key, value string) string {
	if !env.IsExplicit(key) {
		return ""
	}
	return value
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// InitConfig creates a default config file
func InitConfig() error {
	cfg := &Config{
		DefaultProfile: "local",
		Profiles: map[string]Profile{
			"local": {
				URL:       "http://localhost:8080",
				Namespace: "default",
			},
			"staging": {
				URL:       "https://flipt.staging.example.com",
				Token:     "staging-token",
				Namespace: "default",
			},
			"prod": {
				URL:       "https://flipt.example.com",
				Token:     "prod-token",
				Namespace: "default",
			},
		},
	}

	return SaveConfig(cfg)
}
