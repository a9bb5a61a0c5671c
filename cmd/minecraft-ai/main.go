// ABOUTME: Entry point for the minecraft-ai chat server
// ABOUTME: Subcommands to serve, create and validate config, and check a running server

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/minecraft-ai/internal/config"
	"github.com/2389/minecraft-ai/internal/gateway"
	"github.com/2389/minecraft-ai/internal/ratelimit"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
           _                           __ _              _
 _ __ ___ (_)_ __   ___  ___ _ __ __ _ / _| |_       __ _(_)
| '_ ' _ \| | '_ \ / _ \/ __| '__/ _' | |_| __|____ / _' | |
| | | | | | | | | |  __/ (__| | | (_| |  _| ||_____| (_| | |
|_| |_| |_|_|_| |_|\___|\___|_|  \__,_|_|  \__|     \__,_|_|
`

// getConfigPath returns the path to the server config file.
// Priority: --config flag > MCAI_CONFIG env var > XDG_CONFIG_HOME/minecraft-ai/config.yaml > ~/.config/minecraft-ai/config.yaml
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv("MCAI_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "minecraft-ai", "config.yaml")
}

// getDataPath returns the path to the minecraft-ai data directory.
// Priority: XDG_DATA_HOME/minecraft-ai > ~/.local/share/minecraft-ai
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "minecraft-ai")
}

func usage() {
	fmt.Println("Usage: minecraft-ai <command> [--config PATH]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve      Start the chat server")
	fmt.Println("  init       Create a new config file interactively")
	fmt.Println("  validate   Check a config file and print a summary")
	fmt.Println("  health     Check a running server's health and readiness")
	fmt.Println("  version    Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	if _, err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configFlag := fs.String("config", "", "path to config file")
	_ = fs.Parse(args)
	configPath := getConfigPath(*configFlag)

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx, configPath)
	case "init":
		err = runInit(os.Stdin, os.Stdout, configPath)
	case "validate":
		err = runValidate(os.Stdout, configPath)
	case "health":
		err = runHealth(ctx, os.Stdout, configPath)
	case "version":
		fmt.Printf("minecraft-ai %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, configPath string) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(os.Stdout, cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", databaseLabel(cfg.Database))
	green.Print("    ▶ ")
	fmt.Printf("Agent:     %s / %s\n", cfg.Agent.Provider, cfg.Agent.Model)

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting minecraft-ai",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"database", cfg.Database.Driver,
	)

	gateway.Version = version
	gw, err := gateway.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// databaseLabel describes the store without leaking a postgres password.
func databaseLabel(db config.DatabaseConfig) string {
	if db.Driver == config.DriverPostgres {
		return "postgres"
	}
	return "sqlite " + db.Path
}

func runValidate(out io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	rateLimit := "disabled"
	if !cfg.RateLimit.Disabled {
		rateLimit = ratelimit.Describe(cfg.RateLimit.Requests, cfg.RateLimit.Period)
	}
	agentKey := "missing"
	if cfg.Agent.APIKey != "" || cfg.Agent.Provider == config.ProviderOllama {
		agentKey = "present"
	}

	fmt.Fprintf(out, "%s is valid\n", configPath)
	fmt.Fprintf(out, "  http_addr:   %s\n", cfg.Server.HTTPAddr)
	fmt.Fprintf(out, "  database:    %s\n", databaseLabel(cfg.Database))
	fmt.Fprintf(out, "  api keys:    %d\n", len(cfg.Auth.APIKeys))
	fmt.Fprintf(out, "  agent:       %s / %s (credentials %s)\n", cfg.Agent.Provider, cfg.Agent.Model, agentKey)
	fmt.Fprintf(out, "  rate limit:  %s\n", rateLimit)
	fmt.Fprintf(out, "  mcp:         %t\n", cfg.MCP.Enabled)
	fmt.Fprintf(out, "  request log: %t\n", cfg.Logging.Requests)
	return nil
}

func runHealth(ctx context.Context, out io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	base := fmt.Sprintf("http://%s", cfg.Server.HTTPAddr)

	if _, err := getHealth(ctx, client, base+"/health"); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	fmt.Fprintln(out, "healthy")

	body, err := getHealth(ctx, client, base+"/health/ready")
	if err != nil {
		return fmt.Errorf("not ready: %w", err)
	}
	fmt.Fprintln(out, body)
	return nil
}

// getHealth GETs url and returns its body, failing on any non-200 status.
func getHealth(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return string(body), nil
}
