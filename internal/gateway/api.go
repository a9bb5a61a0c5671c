// ABOUTME: HTTP API handlers for conversations, messages and stateless chat.
// ABOUTME: Maps conversation service errors to status codes in one place.

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/2389/minecraft-ai/internal/auth"
	"github.com/2389/minecraft-ai/internal/conversation"
	"github.com/2389/minecraft-ai/internal/render"
	"github.com/2389/minecraft-ai/internal/store"
)

// maxRequestBodySize caps JSON request bodies (1MB).
const maxRequestBodySize = 1 << 20

// CreateChatRequest is the JSON request body for POST /chats.
type CreateChatRequest struct {
	Topic          string `json:"topic,omitempty"`
	PlayerUUID     string `json:"player_uuid,omitempty"`
	PlayerUsername string `json:"player_username,omitempty"`
}

// ChatResponse is the JSON form of a conversation.
type ChatResponse struct {
	ID             string `json:"id"`
	CreatedAt      string `json:"created_at"`
	Topic          string `json:"topic"`
	PlayerUUID     string `json:"player_uuid,omitempty"`
	PlayerUsername string `json:"player_username,omitempty"`
}

// ListChatsResponse is the JSON response for GET /chats.
type ListChatsResponse struct {
	Conversations []ChatResponse `json:"conversations"`
}

// MessageRequest is the JSON request body for POST /chats/{id}/messages and POST /chat.
type MessageRequest struct {
	Message string `json:"message"`
}

// ReplyResponse carries the assistant reply.
type ReplyResponse struct {
	Reply string `json:"reply"`
}

// MessageResponse is the JSON form of a stored message.
type MessageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Body      string `json:"body"`
	Ordinal   int    `json:"ordinal"`
	CreatedAt string `json:"created_at"`
}

// ListMessagesResponse is the JSON response for GET /chats/{id}/messages.
type ListMessagesResponse struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []MessageResponse `json:"messages"`
}

// handleChats handles POST /chats (create) and GET /chats (list).
func (g *Gateway) handleChats(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		g.handleCreateChat(w, r)
	case http.MethodGet:
		g.handleListChats(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (g *Gateway) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		g.sendJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	owner := auth.OwnerFromContext(r.Context())
	conv, err := g.conversation.CreateConversation(r.Context(), owner, conversation.CreateParams{
		Topic:          req.Topic,
		PlayerUUID:     req.PlayerUUID,
		PlayerUsername: req.PlayerUsername,
	})
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}

	g.logger.Info("conversation created",
		"conversation_id", conv.ID,
		"key", auth.FingerprintFromContext(r.Context()),
	)
	g.writeJSON(w, http.StatusCreated, toChatResponse(conv))
}

func (g *Gateway) handleListChats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	convs, err := g.conversation.ListConversations(r.Context(), auth.OwnerFromContext(r.Context()), conversation.ListFilter{
		PlayerUUID:     q.Get("player_uuid"),
		PlayerUsername: q.Get("player_username"),
	})
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}

	resp := ListChatsResponse{Conversations: make([]ChatResponse, 0, len(convs))}
	for _, c := range convs {
		resp.Conversations = append(resp.Conversations, toChatResponse(c))
	}
	g.writeJSON(w, http.StatusOK, resp)
}

// handleChatRoutes dispatches /chats/{id}/messages.
func (g *Gateway) handleChatRoutes(w http.ResponseWriter, r *http.Request) {
	// Parse path: /chats/{id}/messages
	path := strings.TrimPrefix(r.URL.Path, "/chats/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "messages" {
		g.sendJSONError(w, http.StatusNotFound, "not found")
		return
	}
	conversationID := parts[0]

	switch r.Method {
	case http.MethodPost:
		g.handleAddMessage(w, r, conversationID)
	case http.MethodGet:
		g.handleListMessages(w, r, conversationID)
	default:
		w.Header().Set("Allow", "GET, POST")
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (g *Gateway) handleAddMessage(w http.ResponseWriter, r *http.Request, conversationID string) {
	var req MessageRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		g.sendJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	reply, err := g.conversation.AddMessage(r.Context(), auth.OwnerFromContext(r.Context()), conversationID, req.Message)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}
	g.writeJSON(w, http.StatusOK, ReplyResponse{Reply: reply.Body})
}

func (g *Gateway) handleListMessages(w http.ResponseWriter, r *http.Request, conversationID string) {
	owner := auth.OwnerFromContext(r.Context())
	msgs, err := g.conversation.History(r.Context(), owner, conversationID)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		resp := ListMessagesResponse{
			ConversationID: conversationID,
			Messages:       make([]MessageResponse, 0, len(msgs)),
		}
		for _, m := range msgs {
			resp.Messages = append(resp.Messages, MessageResponse{
				ID:        m.ID,
				Role:      string(m.Role),
				Body:      m.Body,
				Ordinal:   m.Ordinal,
				CreatedAt: formatTime(m.CreatedAt),
			})
		}
		g.writeJSON(w, http.StatusOK, resp)
	case "markdown", "html":
		conv, err := g.conversation.Conversation(r.Context(), owner, conversationID)
		if err != nil {
			g.writeServiceError(w, r, err)
			return
		}
		g.writeTranscript(w, r, format, conv, msgs)
	default:
		g.sendJSONError(w, http.StatusUnprocessableEntity, "format: must be json, markdown or html")
	}
}

func (g *Gateway) writeTranscript(w http.ResponseWriter, r *http.Request, format string, conv *store.Conversation, msgs []*store.Message) {
	if format == "markdown" {
		w.Header().Set("Content-Type", render.ContentTypeMarkdown)
		_, _ = w.Write(render.Markdown(conv, msgs))
		return
	}
	page, err := render.HTML(conv, msgs)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", render.ContentTypeHTML)
	_, _ = w.Write(page)
}

// handleChat handles POST /chat, a one-shot question with no stored history.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req MessageRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		g.sendJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	reply, err := g.conversation.Ask(r.Context(), req.Message)
	if err != nil {
		g.writeServiceError(w, r, err)
		return
	}
	g.writeJSON(w, http.StatusOK, ReplyResponse{Reply: reply})
}

// decodeBody reads a JSON object into v. An empty body is accepted only when
// allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("request body too large")
		}
		return errors.New("invalid JSON body")
	}
	// Exactly one value: {"message":"hi"}garbage is malformed.
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON body")
	}
	return nil
}

// writeServiceError maps conversation service errors to HTTP responses.
func (g *Gateway) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *conversation.ValidationError
	switch {
	case errors.As(err, &ve):
		g.sendJSONError(w, http.StatusUnprocessableEntity, ve.Error())
	case errors.Is(err, conversation.ErrValidation):
		g.sendJSONError(w, http.StatusUnprocessableEntity, "validation failed")
	case errors.Is(err, conversation.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, conversation.ErrServiceUnavailable):
		g.sendJSONError(w, http.StatusServiceUnavailable, "agent service unavailable")
	default:
		g.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes v as a JSON response with the given status.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Warn("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, map[string]string{"error": message})
}

func toChatResponse(c *store.Conversation) ChatResponse {
	return ChatResponse{
		ID:             c.ID,
		CreatedAt:      formatTime(c.CreatedAt),
		Topic:          c.Topic,
		PlayerUUID:     c.PlayerUUID,
		PlayerUsername: c.PlayerUsername,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
