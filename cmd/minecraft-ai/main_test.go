// ABOUTME: Tests for the server CLI: config discovery, init, validate, health and logging
// ABOUTME: Drives subcommands with in-memory readers and writers

package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/minecraft-ai/internal/config"
)

func TestGetConfigPath(t *testing.T) {
	t.Setenv("MCAI_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	t.Setenv("HOME", "/home/alex")

	assert.Equal(t, "/flag.yaml", getConfigPath("/flag.yaml"))
	assert.Equal(t, "/xdg/minecraft-ai/config.yaml", getConfigPath(""))

	t.Setenv("MCAI_CONFIG", "/env.yaml")
	assert.Equal(t, "/env.yaml", getConfigPath(""))
	assert.Equal(t, "/flag.yaml", getConfigPath("/flag.yaml"))

	t.Setenv("MCAI_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "")
	assert.Equal(t, "/home/alex/.config/minecraft-ai/config.yaml", getConfigPath(""))
}

func TestGetDataPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, "/data/minecraft-ai", getDataPath())

	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "/home/alex")
	assert.Equal(t, "/home/alex/.local/share/minecraft-ai", getDataPath())
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"MINECRAFT_AI_API_KEY", "MCAI_DB_PATH", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestRunInit(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "conf", "config.yaml")
	dbPath := filepath.Join(dir, "data", "chat.db")

	answers := strings.Join([]string{
		cfgPath,          // config path
		"127.0.0.1:9090", // http addr
		dbPath,           // db path
		"my-server-key",  // api key
		"none",           // provider
		"",               // model
		"5",              // requests per minute
		"no",             // mcp
		"no",             // tailscale
		"debug",          // log level
		"json",           // log format
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, runInit(strings.NewReader(answers), &out, "unused.yaml"))
	assert.Contains(t, out.String(), "Config written to "+cfgPath)

	info, err := os.Stat(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.DirExists(t, filepath.Dir(dbPath))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.HTTPAddr)
	assert.Equal(t, dbPath, cfg.Database.Path)
	assert.Equal(t, []string{"my-server-key"}, cfg.Auth.APIKeys)
	assert.Equal(t, config.ProviderNone, cfg.Agent.Provider)
	assert.Equal(t, 5, cfg.RateLimit.Requests)
	assert.False(t, cfg.MCP.Enabled)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestRunInit_DefaultsGenerateKey(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	// Accept every default after the path.
	var out bytes.Buffer
	require.NoError(t, runInit(strings.NewReader(cfgPath+"\n"), &out, "unused.yaml"))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	require.Len(t, cfg.Auth.APIKeys, 1)
	assert.True(t, strings.HasPrefix(cfg.Auth.APIKeys[0], "mcai_"))
	assert.Len(t, cfg.Auth.APIKeys[0], len("mcai_")+64)
	assert.Equal(t, config.ProviderOpenAI, cfg.Agent.Provider)
	assert.True(t, cfg.MCP.Enabled)
	assert.Contains(t, out.String(), "OPENAI_API_KEY")
}

func TestRunInit_KeepsExistingFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("original"), 0600))

	var out bytes.Buffer
	require.NoError(t, runInit(strings.NewReader(cfgPath+"\nno\n"), &out, ""))
	assert.Contains(t, out.String(), "Aborted.")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func writeConfig(t *testing.T, addr string) string {
	t.Helper()
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "server:\n  http_addr: \"" + addr + "\"\n" +
		"database:\n  path: \"" + filepath.Join(t.TempDir(), "chat.db") + "\"\n" +
		"auth:\n  api_keys: [\"k1\", \"k2\"]\n" +
		"agent:\n  provider: \"none\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestRunValidate(t *testing.T) {
	path := writeConfig(t, "localhost:8080")

	var out bytes.Buffer
	require.NoError(t, runValidate(&out, path))
	assert.Contains(t, out.String(), "is valid")
	assert.Contains(t, out.String(), "api keys:    2")
	assert.Contains(t, out.String(), "10 requests per 60 seconds")
	assert.Contains(t, out.String(), "request log: false")
	assert.NotContains(t, out.String(), "k1")
}

func TestRunValidate_Invalid(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_addr: \"x:1\"\n"), 0600))

	err := runValidate(&bytes.Buffer{}, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.path")
}

func TestRunHealth(t *testing.T) {
	var notReady atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte("OK"))
		case "/health/ready":
			if notReady.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("agent not configured"))
				return
			}
			_, _ = w.Write([]byte("ready"))
		}
	}))
	defer srv.Close()

	path := writeConfig(t, strings.TrimPrefix(srv.URL, "http://"))

	var out bytes.Buffer
	require.NoError(t, runHealth(context.Background(), &out, path))
	assert.Equal(t, "healthy\nready\n", out.String())

	notReady.Store(true)
	err := runHealth(context.Background(), &bytes.Buffer{}, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent not configured")
}

func TestSetupLogger(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := setupLogger(&buf, config.LoggingConfig{Level: "warn", Format: "text"})

		logger.Info("hidden")
		logger.With("component", "gateway").WithGroup("req").Warn("slow", "ms", 1200)

		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "WRN slow")
		assert.Contains(t, out, "component=gateway")
		assert.Contains(t, out, "req.ms=1200")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := setupLogger(&buf, config.LoggingConfig{Level: "debug", Format: "json"})
		logger.Debug("hello", "k", "v")
		assert.Contains(t, buf.String(), `"msg":"hello"`)
		assert.Contains(t, buf.String(), `"k":"v"`)
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("loud"))
}
