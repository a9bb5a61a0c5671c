// ABOUTME: Configuration loading for the mcai chat client
// ABOUTME: Loads TOML config from XDG path with environment variable expansion

package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

const defaultTimeout = 90 * time.Second

type Config struct {
	Server ServerConfig `toml:"server"`
	Client ClientConfig `toml:"client"`
}

type ServerConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

type ClientConfig struct {
	StatePath string `toml:"state_path"`
	// Timeout covers a whole request including the model's reply.
	Timeout string `toml:"timeout"`

	timeout time.Duration
}

// RequestTimeout returns the parsed timeout.
func (c ClientConfig) RequestTimeout() time.Duration {
	return c.timeout
}

// configPath returns the path to the client config file.
// Priority: --config flag > MCAI_CLIENT_CONFIG env var > XDG_CONFIG_HOME/minecraft-ai/client.toml > ~/.config/minecraft-ai/client.toml
func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv("MCAI_CLIENT_CONFIG"); envPath != "" {
		return envPath
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "client.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "minecraft-ai", "client.toml")
}

// defaultStatePath is where the active conversation is remembered.
func defaultStatePath() string {
	dataDir := os.Getenv("XDG_STATE_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "mcai.db"
		}
		dataDir = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(dataDir, "minecraft-ai", "mcai.db")
}

// LoadConfig reads config from the given path, expanding environment variables.
// MCAI_SERVER_URL and MCAI_API_KEY override the file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if _, err := toml.Decode(expandEnvVars(string(data)), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case os.IsNotExist(err):
		// Environment-only configuration is allowed.
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if v := os.Getenv("MCAI_SERVER_URL"); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv("MCAI_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if cfg.Client.StatePath == "" {
		cfg.Client.StatePath = defaultStatePath()
	}

	cfg.Client.timeout = defaultTimeout
	if cfg.Client.Timeout != "" {
		cfg.Client.timeout, err = time.ParseDuration(cfg.Client.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parsing client.timeout %q: %w", cfg.Client.Timeout, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required (or set MCAI_SERVER_URL)")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.url must use http or https scheme")
	}
	if c.Server.APIKey == "" {
		return fmt.Errorf("server.api_key is required (or set MCAI_API_KEY)")
	}
	if c.Client.timeout <= 0 {
		return fmt.Errorf("client.timeout must be positive")
	}
	return nil
}
