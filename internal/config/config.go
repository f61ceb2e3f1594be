// Package config loads the service configuration from a YAML file with
// environment variable expansion, so secrets stay out of the file itself.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Anthropic  AnthropicConfig  `yaml:"anthropic"`
	Encryption EncryptionConfig `yaml:"encryption"`
	OAuth      OAuthConfig      `yaml:"oauth"`
	Assistant  AssistantConfig  `yaml:"assistant"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// BaseURL is the externally visible origin, used to build OAuth
	// redirect URIs and post-callback redirects.
	BaseURL string `yaml:"baseUrl"`
	// SettingsURL is where OAuth callbacks redirect the browser.
	SettingsURL string `yaml:"settingsUrl"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
}

type AnthropicConfig struct {
	APIKey    string `yaml:"apiKey"`
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"maxTokens"`
}

type EncryptionConfig struct {
	Secret string `yaml:"secret"`
}

type OAuthConfig struct {
	Google OAuthClientConfig `yaml:"google"`
	Asana  OAuthClientConfig `yaml:"asana"`
}

type OAuthClientConfig struct {
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
}

type AssistantConfig struct {
	DefaultName     string `yaml:"defaultName"`
	DefaultTimezone string `yaml:"defaultTimezone"`
}

// Load reads the YAML file at path, expands ${VAR} references from the
// environment, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration suitable for local development,
// populated entirely from the environment.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		Database:   DatabaseConfig{Path: "adjutant.db"},
		Auth:       AuthConfig{JWTSecret: os.Getenv("JWT_SECRET")},
		Anthropic:  AnthropicConfig{APIKey: os.Getenv("ANTHROPIC_API_KEY")},
		Encryption: EncryptionConfig{Secret: os.Getenv("ENCRYPTION_SECRET")},
		OAuth: OAuthConfig{
			Google: OAuthClientConfig{
				ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
				ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			},
			Asana: OAuthClientConfig{
				ClientID:     os.Getenv("ASANA_CLIENT_ID"),
				ClientSecret: os.Getenv("ASANA_CLIENT_SECRET"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8090
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if c.Server.SettingsURL == "" {
		c.Server.SettingsURL = c.Server.BaseURL + "/settings"
	}
	if c.Database.Path == "" {
		c.Database.Path = "adjutant.db"
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = "claude-sonnet-4-20250514"
	}
	if c.Anthropic.MaxTokens == 0 {
		c.Anthropic.MaxTokens = 4096
	}
	if c.Assistant.DefaultName == "" {
		c.Assistant.DefaultName = "Chief of Staff"
	}
	if c.Assistant.DefaultTimezone == "" {
		c.Assistant.DefaultTimezone = "America/Phoenix"
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
