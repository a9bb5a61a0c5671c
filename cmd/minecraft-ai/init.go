// ABOUTME: Interactive config file creation for the init subcommand
// ABOUTME: Generates a random API key and writes a commented YAML config

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/2389/minecraft-ai/internal/config"
)

// initAnswers are the values collected by runInit.
type initAnswers struct {
	HTTPAddr     string
	DBPath       string
	APIKey       string
	Provider     string
	Model        string
	Tailscale    bool
	TSHostname   string
	TSFunnel     bool
	LogLevel     string
	LogFormat    string
	EnableMCP    bool
	RateRequests string
}

func runInit(in io.Reader, out io.Writer, defaultConfigPath string) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "minecraft-ai configuration setup")
	fmt.Fprintln(out, "================================")
	fmt.Fprintln(out)

	outputFile := prompt(reader, out, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, out, "File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return err
	}

	var a initAnswers
	fmt.Fprintln(out, "\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, out, "HTTP address", "localhost:8080")
	a.DBPath = prompt(reader, out, "SQLite database path", filepath.Join(getDataPath(), "chat.db"))
	a.APIKey = prompt(reader, out, "API key for the game server", apiKey)

	fmt.Fprintln(out, "\n--- Agent Configuration ---")
	a.Provider = prompt(reader, out, "LLM provider (openai/anthropic/ollama/none)", config.ProviderOpenAI)
	a.Model = prompt(reader, out, "Model (empty for provider default)", "")

	fmt.Fprintln(out, "\n--- Features ---")
	a.RateRequests = prompt(reader, out, "Requests per minute per key", "10")
	a.EnableMCP = yes(prompt(reader, out, "Enable MCP endpoint?", "yes"))

	fmt.Fprintln(out, "\n--- Tailscale Configuration ---")
	a.Tailscale = yes(prompt(reader, out, "Enable Tailscale?", "no"))
	if a.Tailscale {
		a.TSHostname = prompt(reader, out, "Tailscale hostname", "minecraft-ai")
		a.TSFunnel = yes(prompt(reader, out, "Enable Funnel (public HTTPS)?", "no"))
	}

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, out, "Log format (text/json)", "text")

	content := renderConfig(a)

	// Refuse to write something the server would reject.
	if _, err := config.Parse([]byte(content)); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// The file holds an API key.
	if err := os.WriteFile(outputFile, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(a.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintf(out, "Data directory: %s\n", dataDir)
	fmt.Fprintf(out, "API key: %s\n", a.APIKey)
	if a.Provider == config.ProviderOpenAI || a.Provider == config.ProviderAnthropic {
		fmt.Fprintf(out, "\nSet %s in the environment or in .env before starting.\n", providerKeyEnv(a.Provider))
	}
	fmt.Fprintln(out, "\nTo start the server:")
	fmt.Fprintln(out, "  minecraft-ai serve")

	return nil
}

// renderConfig writes the answers as YAML.
func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# minecraft-ai configuration\n")
	cfg.WriteString("# Generated by minecraft-ai init\n\n")

	cfg.WriteString("server:\n")
	fmt.Fprintf(&cfg, "  http_addr: %q\n\n", a.HTTPAddr)

	cfg.WriteString("database:\n")
	cfg.WriteString("  driver: \"sqlite\"\n")
	fmt.Fprintf(&cfg, "  path: %q\n\n", a.DBPath)

	cfg.WriteString("auth:\n")
	cfg.WriteString("  # Each key owns the conversations it creates.\n")
	cfg.WriteString("  api_keys:\n")
	fmt.Fprintf(&cfg, "    - %q\n\n", a.APIKey)

	cfg.WriteString("agent:\n")
	fmt.Fprintf(&cfg, "  provider: %q\n", a.Provider)
	if a.Model != "" {
		fmt.Fprintf(&cfg, "  model: %q\n", a.Model)
	}
	if env := providerKeyEnv(a.Provider); env != "" {
		fmt.Fprintf(&cfg, "  api_key: \"${%s}\"\n", env)
	}
	cfg.WriteString("  timeout: \"60s\"\n\n")

	cfg.WriteString("rate_limit:\n")
	fmt.Fprintf(&cfg, "  requests: %s\n", a.RateRequests)
	cfg.WriteString("  period: \"60s\"\n\n")

	cfg.WriteString("mcp:\n")
	fmt.Fprintf(&cfg, "  enabled: %t\n\n", a.EnableMCP)

	cfg.WriteString("tailscale:\n")
	fmt.Fprintf(&cfg, "  enabled: %t\n", a.Tailscale)
	if a.Tailscale {
		fmt.Fprintf(&cfg, "  hostname: %q\n", a.TSHostname)
		fmt.Fprintf(&cfg, "  funnel: %t\n", a.TSFunnel)
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	fmt.Fprintf(&cfg, "  level: %q\n", a.LogLevel)
	fmt.Fprintf(&cfg, "  format: %q\n", a.LogFormat)
	cfg.WriteString("  # one line per HTTP request (method, path, status, duration, key fingerprint)\n")
	cfg.WriteString("  requests: false\n")

	return cfg.String()
}

func providerKeyEnv(provider string) string {
	switch provider {
	case config.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case config.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// generateAPIKey returns 32 random bytes, hex encoded.
func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating API key: %w", err)
	}
	return "mcai_" + hex.EncodeToString(b), nil
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
