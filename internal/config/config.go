package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models sidequest.yml.
type Config struct {
	Backend struct {
		URL       string `yaml:"url"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"backend"`
	Refine struct {
		Provider string `yaml:"provider"`
		APIKey   string `yaml:"api_key"`
		Model    string `yaml:"model"`
	} `yaml:"refine"`
	Features struct {
		Haptics bool `yaml:"haptics"`
	} `yaml:"features"`
}

// Available reports whether a backend is configured; when false, publish is
// short-circuited to the offline notice.
func (c *Config) Available() bool {
	return c != nil && c.Backend.URL != "" && c.Backend.JWTSecret != ""
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Backend.URL != "" && c.Backend.JWTSecret == "" {
		return fmt.Errorf("config.backend.jwt_secret is required when backend.url is set")
	}
	switch c.Refine.Provider {
	case "", "heuristic":
	case "gemini":
		if c.Refine.APIKey == "" {
			return fmt.Errorf("config.refine.api_key is required for provider gemini")
		}
	default:
		return fmt.Errorf("config.refine.provider must be heuristic or gemini")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "sidequest.yml")
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it with sq config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `backend:
  # URL of the mission backend; leave empty to work offline.
  url: ""
  # Shared secret used to sign device bearer tokens.
  jwt_secret: ""

refine:
  # heuristic (local, no network) or gemini
  provider: heuristic
  api_key: ""
  model: gemini-1.5-flash

features:
  haptics: true
`
