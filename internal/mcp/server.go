// ABOUTME: MCP-compatible HTTP server exposing the chat service as tools.
// ABOUTME: Implements Streamable HTTP transport (2025-11-25) with per-key session ownership.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/minecraft-ai/internal/auth"
	"github.com/2389/minecraft-ai/internal/conversation"
	"github.com/2389/minecraft-ai/internal/store"
)

// Supported MCP protocol versions
var supportedProtocolVersions = map[string]bool{
	"2025-03-26": true,
	"2025-11-25": true,
}

// latestProtocolVersion is the version we advertise in initialize responses
const latestProtocolVersion = "2025-11-25"

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// JSON-RPC 2.0 types

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// MCP-specific types

// MCPToolInfo represents an MCP tool definition.
type MCPToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// MCPListToolsResult is the result for tools/list.
type MCPListToolsResult struct {
	Tools []MCPToolInfo `json:"tools"`
}

// MCPCallToolParams are the params for tools/call.
type MCPCallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// MCPCallToolResult is the result for tools/call.
type MCPCallToolResult struct {
	Content []MCPContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

// MCPContent represents content in a tool result.
type MCPContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ChatService is the subset of the conversation service the tools call.
type ChatService interface {
	CreateConversation(ctx context.Context, owner string, params conversation.CreateParams) (*store.Conversation, error)
	ListConversations(ctx context.Context, owner string, filter conversation.ListFilter) ([]*store.Conversation, error)
	AddMessage(ctx context.Context, owner, conversationID, body string) (*store.Message, error)
	Ask(ctx context.Context, body string) (string, error)
}

// Session limits used when Config leaves them zero.
const (
	DefaultSessionIdleTimeout  = 30 * time.Minute
	DefaultMaxSessionsPerOwner = 16
)

// mcpSession tracks an active MCP client session.
type mcpSession struct {
	id              string
	protocolVersion string
	owner           string // API key that initialized the session
	createdAt       time.Time
	lastSeen        time.Time
}

// sessionStore manages active MCP sessions (in-memory).
// Sessions idle longer than idleTimeout are dropped on the next create or
// lookup, and each owner keeps at most maxPerOwner, oldest evicted first.
type sessionStore struct {
	mu          sync.Mutex
	sessions    map[string]*mcpSession
	idleTimeout time.Duration
	maxPerOwner int
	now         func() time.Time
}

func newSessionStore(idleTimeout time.Duration, maxPerOwner int) *sessionStore {
	if idleTimeout <= 0 {
		idleTimeout = DefaultSessionIdleTimeout
	}
	if maxPerOwner <= 0 {
		maxPerOwner = DefaultMaxSessionsPerOwner
	}
	return &sessionStore{
		sessions:    make(map[string]*mcpSession),
		idleTimeout: idleTimeout,
		maxPerOwner: maxPerOwner,
		now:         time.Now,
	}
}

func (s *sessionStore) create(protocolVersion, owner string) *mcpSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	var owned []*mcpSession
	for _, sess := range s.sessions {
		if sess.owner == owner {
			owned = append(owned, sess)
		}
	}
	for len(owned) >= s.maxPerOwner {
		oldest := 0
		for i, sess := range owned {
			if sess.lastSeen.Before(owned[oldest].lastSeen) {
				oldest = i
			}
		}
		delete(s.sessions, owned[oldest].id)
		owned = append(owned[:oldest], owned[oldest+1:]...)
	}

	sess := &mcpSession{
		id:              uuid.New().String(),
		protocolVersion: protocolVersion,
		owner:           owner,
		createdAt:       now,
		lastSeen:        now,
	}
	s.sessions[sess.id] = sess
	return sess
}

// get returns a live session and marks it as used.
func (s *sessionStore) get(id string) (*mcpSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if now.Sub(sess.lastSeen) > s.idleTimeout {
		delete(s.sessions, id)
		return nil, false
	}
	sess.lastSeen = now
	return sess, true
}

func (s *sessionStore) delete(id string) bool {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	return existed
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *sessionStore) clear() {
	s.mu.Lock()
	clear(s.sessions)
	s.mu.Unlock()
}

// sweepLocked drops idle sessions. Must be called with mu held.
func (s *sessionStore) sweepLocked(now time.Time) {
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.idleTimeout {
			delete(s.sessions, id)
		}
	}
}

// Config holds configuration for the MCP server.
type Config struct {
	Service ChatService
	Logger  *slog.Logger
	Name    string // serverInfo.name, defaults to "minecraft-ai"
	Version string // serverInfo.version

	SessionIdleTimeout  time.Duration // defaults to DefaultSessionIdleTimeout
	MaxSessionsPerOwner int           // defaults to DefaultMaxSessionsPerOwner
}

// Server implements MCP-compatible HTTP endpoints for external agents.
// Requests must already carry an authenticated owner in their context.
type Server struct {
	service  ChatService
	logger   *slog.Logger
	name     string
	version  string
	sessions *sessionStore
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("chat service is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "minecraft-ai"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	return &Server{
		service:  cfg.Service,
		logger:   logger,
		name:     name,
		version:  version,
		sessions: newSessionStore(cfg.SessionIdleTimeout, cfg.MaxSessionsPerOwner),
	}, nil
}

// Handler returns the single MCP endpoint. Mount it behind the API key
// middleware so every request has an owner.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleMCP)
}

// Close drops all sessions.
func (s *Server) Close() {
	s.sessions.clear()
}

// handleMCP supports POST and DELETE per the Streamable HTTP transport.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodGet:
		// We don't support server-initiated SSE streams
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, GET, DELETE")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleDelete terminates a session. Only the key that created it may end it.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}

	sess, ok := s.sessions.get(sessionID)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if sess.owner != auth.OwnerFromContext(r.Context()) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	s.sessions.delete(sessionID)
	s.logger.Info("MCP session terminated", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// handlePost processes JSON-RPC messages sent via HTTP POST.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	if authCtx == nil || authCtx.Owner == "" {
		s.sendJSONRPCError(w, nil, JSONRPCInvalidRequest, "authentication required", nil)
		return
	}

	sessionID := r.Header.Get("Mcp-Session-Id")
	protoVersion := r.Header.Get("Mcp-Protocol-Version")

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.sendJSONRPCError(w, nil, JSONRPCParseError, "failed to read request body", nil)
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.sendJSONRPCError(w, nil, JSONRPCInvalidRequest, "request body too large", nil)
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.sendJSONRPCError(w, nil, JSONRPCParseError, "invalid JSON", nil)
		return
	}

	if req.JSONRPC != "2.0" {
		s.sendJSONRPCError(w, req.ID, JSONRPCInvalidRequest, "invalid JSON-RPC version", nil)
		return
	}

	isInitialize := req.Method == "initialize"
	isNotification := len(req.ID) == 0 || string(req.ID) == "null"

	// Protocol version header is not required on initialize
	if !isInitialize && protoVersion != "" && !supportedProtocolVersions[protoVersion] {
		http.Error(w, "Bad Request: unsupported MCP-Protocol-Version", http.StatusBadRequest)
		return
	}

	if !isInitialize {
		if sessionID == "" {
			http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
			return
		}
		sess, ok := s.sessions.get(sessionID)
		if !ok {
			// Session expired or invalid - client must re-initialize
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		if sess.owner != authCtx.Owner {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	s.logger.Debug("MCP request",
		"method", req.Method,
		"is_notification", isNotification,
		"session_id", sessionID,
		"key", authCtx.Fingerprint,
	)

	// Handle notifications: accept and return HTTP 202 with no body
	if isNotification {
		if !strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Warn("received notification for non-notification method", "method", req.Method)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	switch req.Method {
	case "initialize":
		s.handleInitialize(w, req, authCtx)
	case "ping":
		s.sendJSONRPCResult(w, req.ID, struct{}{})
	case "tools/list":
		s.sendJSONRPCResult(w, req.ID, MCPListToolsResult{Tools: toolInfos()})
	case "tools/call":
		s.handleToolsCall(w, r, req, authCtx.Owner)
	default:
		s.sendJSONRPCError(w, req.ID, JSONRPCMethodNotFound, "method not found", nil)
	}
}

// handleInitialize handles the MCP initialize handshake and creates a session.
func (s *Server) handleInitialize(w http.ResponseWriter, req JSONRPCRequest, authCtx *auth.AuthContext) {
	sess := s.sessions.create(latestProtocolVersion, authCtx.Owner)

	s.logger.Info("MCP session created",
		"session_id", sess.id,
		"protocol_version", sess.protocolVersion,
		"key", authCtx.Fingerprint,
	)

	w.Header().Set("Mcp-Session-Id", sess.id)

	result := map[string]any{
		"protocolVersion": latestProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.name,
			"version": s.version,
		},
	}
	s.sendJSONRPCResult(w, req.ID, result)
}

// handleToolsCall runs one tool for owner.
func (s *Server) handleToolsCall(w http.ResponseWriter, r *http.Request, req JSONRPCRequest, owner string) {
	var params MCPCallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "invalid params", nil)
			return
		}
	}

	if params.Name == "" {
		s.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "tool name is required", nil)
		return
	}

	t, ok := lookupTool(params.Name)
	if !ok {
		s.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "tool not found", nil)
		return
	}

	args := params.Arguments
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}

	s.logger.Debug("tools/call", "tool_name", params.Name)

	out, err := t.call(r.Context(), s.service, owner, args)
	if err != nil {
		s.sendJSONRPCResult(w, req.ID, s.toolErrorResult(params.Name, err))
		return
	}

	text, err := json.Marshal(out)
	if err != nil {
		s.sendJSONRPCError(w, req.ID, JSONRPCInternalError, "failed to encode tool output", nil)
		return
	}
	s.sendJSONRPCResult(w, req.ID, MCPCallToolResult{
		Content: []MCPContent{{Type: "text", Text: string(text)}},
	})
}

// toolErrorResult reports service failures inside the tool result so the
// calling model can see them.
func (s *Server) toolErrorResult(toolName string, err error) MCPCallToolResult {
	message := "tool execution failed"

	var ve *conversation.ValidationError
	switch {
	case errors.As(err, &ve):
		message = "invalid input: " + ve.Error()
	case errors.Is(err, errBadArguments):
		message = err.Error()
	case errors.Is(err, conversation.ErrNotFound):
		message = "conversation not found"
	case errors.Is(err, conversation.ErrServiceUnavailable):
		message = "agent service unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		message = "tool execution timed out"
	case errors.Is(err, context.Canceled):
		message = "request cancelled"
	default:
		s.logger.Error("tool execution failed", "tool_name", toolName, "error", err)
	}

	return MCPCallToolResult{
		Content: []MCPContent{{Type: "text", Text: message}},
		IsError: true,
	}
}

// sendJSONRPCResult sends a successful JSON-RPC response.
func (s *Server) sendJSONRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}

// sendJSONRPCError sends a JSON-RPC error response.
func (s *Server) sendJSONRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string, data any) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC error response", "error", err)
	}
}
