// ABOUTME: Configuration loading and parsing for minecraft-ai
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Agent providers
const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Rate limit defaults: 10 requests per minute per key.
const (
	DefaultRateLimitRequests = 10
	DefaultRateLimitPeriod   = 60 * time.Second
	DefaultRateLimitMaxKeys  = 10_000
)

// Config represents the complete minecraft-ai configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Agent     AgentConfig     `yaml:"agent"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	MCP       MCPConfig       `yaml:"mcp"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AuthConfig holds the API keys accepted in the X-API-Key header.
// Each key is also the owner identity of the conversations it creates.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	HTTPS     bool   `yaml:"https"`  // Serve HTTPS on :443 with Tailscale certs
	Funnel    bool   `yaml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig selects and locates the conversation store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite (default) or postgres
	Path   string `yaml:"path"`   // sqlite file path
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// AgentConfig configures the LLM behind the agent invoker.
type AgentConfig struct {
	Provider     string  `yaml:"provider"`
	Model        string  `yaml:"model"`
	APIKey       string  `yaml:"api_key"`
	BaseURL      string  `yaml:"base_url"`
	SystemPrompt string  `yaml:"system_prompt"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// RateLimitConfig bounds requests per API key per fixed window.
type RateLimitConfig struct {
	Disabled bool `yaml:"disabled"`
	Requests int  `yaml:"requests"`
	MaxKeys  int  `yaml:"max_keys"`

	Period    time.Duration `yaml:"-"`
	PeriodRaw string        `yaml:"period"`
}

// MCPConfig toggles the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Requests enables one access log line per HTTP request.
	Requests bool `yaml:"requests"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, applying env expansion, environment
// fallbacks, defaults and validation.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyEnvFallbacks(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnvFallbacks fills secrets from well-known environment variables.
func applyEnvFallbacks(cfg *Config) {
	if key := strings.TrimSpace(os.Getenv("MINECRAFT_AI_API_KEY")); key != "" && !slices.Contains(cfg.Auth.APIKeys, key) {
		cfg.Auth.APIKeys = append(cfg.Auth.APIKeys, key)
	}

	if path := os.Getenv("MCAI_DB_PATH"); path != "" {
		cfg.Database.Path = path
	}

	if cfg.Agent.APIKey == "" {
		switch cfg.Agent.Provider {
		case ProviderOpenAI, "":
			cfg.Agent.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderAnthropic:
			cfg.Agent.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Agent.Provider == "" {
		cfg.Agent.Provider = ProviderOpenAI
	}
	if cfg.Agent.Model == "" {
		switch cfg.Agent.Provider {
		case ProviderOpenAI:
			cfg.Agent.Model = "gpt-4.1"
		case ProviderAnthropic:
			cfg.Agent.Model = "claude-sonnet-4-5"
		case ProviderOllama:
			cfg.Agent.Model = "llama3.1"
		}
	}
	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit.Requests = DefaultRateLimitRequests
	}
	if cfg.RateLimit.Period == 0 {
		cfg.RateLimit.Period = DefaultRateLimitPeriod
	}
	if cfg.RateLimit.MaxKeys == 0 {
		cfg.RateLimit.MaxKeys = DefaultRateLimitMaxKeys
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported (use sqlite or postgres)", c.Database.Driver)
	}

	if len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth.api_keys requires at least one key (or set MINECRAFT_AI_API_KEY)")
	}
	for i, key := range c.Auth.APIKeys {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("auth.api_keys[%d] is empty", i)
		}
	}

	switch c.Agent.Provider {
	case ProviderNone, ProviderOpenAI, ProviderAnthropic, ProviderOllama:
	default:
		return fmt.Errorf("agent.provider %q is not supported", c.Agent.Provider)
	}
	if c.Agent.MaxTokens < 0 {
		return fmt.Errorf("agent.max_tokens must not be negative")
	}
	if c.Agent.Timeout < 0 {
		return fmt.Errorf("agent.timeout must not be negative")
	}

	if c.RateLimit.Requests < 0 {
		return fmt.Errorf("rate_limit.requests must not be negative")
	}
	if c.RateLimit.Period < 0 {
		return fmt.Errorf("rate_limit.period must not be negative")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use text or json)", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Agent.TimeoutRaw != "" {
		cfg.Agent.Timeout, err = time.ParseDuration(cfg.Agent.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing agent.timeout %q: %w", cfg.Agent.TimeoutRaw, err)
		}
	}

	if cfg.RateLimit.PeriodRaw != "" {
		cfg.RateLimit.Period, err = time.ParseDuration(cfg.RateLimit.PeriodRaw)
		if err != nil {
			return fmt.Errorf("parsing rate_limit.period %q: %w", cfg.RateLimit.PeriodRaw, err)
		}
	}

	return nil
}
