// ABOUTME: Tests for the opt-in HTTP access log
// ABOUTME: Checks one line per request with status, level and key fingerprint, and that it is off by default

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/minecraft-ai/internal/auth"
	"github.com/2389/minecraft-ai/internal/store"
)

// accessLines returns the decoded "http request" records written to buf.
func accessLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &rec), raw)
		if rec["msg"] == "http request" {
			lines = append(lines, rec)
		}
	}
	return lines
}

func newLoggingGateway(t *testing.T, enabled bool) (*Gateway, *bytes.Buffer) {
	t.Helper()
	cfg := testConfig(t)
	cfg.Logging.Requests = enabled
	cfg.RateLimit.Requests = 2

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	gw, err := newGateway(cfg, s, echoInvoker(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })
	return gw, &buf
}

func TestRequestLog(t *testing.T) {
	gw, buf := newLoggingGateway(t, true)

	serve(t, gw, http.MethodGet, "/health", "", "")
	serve(t, gw, http.MethodGet, "/chats", "wrong-key", "")
	serve(t, gw, http.MethodPost, "/chats", "key-a", `{"topic":"Test"}`)
	serve(t, gw, http.MethodGet, "/chats", "key-a", "")
	serve(t, gw, http.MethodGet, "/chats", "key-a", "")

	lines := accessLines(t, buf)
	require.Len(t, lines, 5)

	want := []struct {
		method string
		path   string
		status float64
		level  string
		key    string
	}{
		{"GET", "/health", 200, "INFO", ""},
		{"GET", "/chats", 401, "WARN", ""},
		{"POST", "/chats", 201, "INFO", auth.Fingerprint("key-a")},
		{"GET", "/chats", 200, "INFO", auth.Fingerprint("key-a")},
		{"GET", "/chats", 429, "WARN", auth.Fingerprint("key-a")},
	}
	for i, w := range want {
		line := lines[i]
		assert.Equal(t, w.method, line["method"], "line %d", i)
		assert.Equal(t, w.path, line["path"], "line %d", i)
		assert.Equal(t, w.status, line["status"], "line %d", i)
		assert.Equal(t, w.level, line["level"], "line %d", i)
		assert.Equal(t, "http", line["component"], "line %d", i)
		assert.Contains(t, line, "duration", "line %d", i)
		if w.key == "" {
			assert.NotContains(t, line, "key", "line %d", i)
		} else {
			assert.Equal(t, w.key, line["key"], "line %d", i)
		}
	}

	assert.NotContains(t, buf.String(), `"key-a"`, "raw keys never reach the log")
}

func TestRequestLog_DisabledByDefault(t *testing.T) {
	gw, buf := newLoggingGateway(t, false)

	serve(t, gw, http.MethodGet, "/health", "", "")
	serve(t, gw, http.MethodGet, "/chats", "key-a", "")

	assert.Empty(t, accessLines(t, buf))
}

func TestLogRequests_ServerErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := logRequests(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.WriteHeader(http.StatusOK) // superfluous, ignored by the recorder
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/chat", nil))

	lines := accessLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "ERROR", lines[0]["level"])
	assert.Equal(t, float64(500), lines[0]["status"])
}
