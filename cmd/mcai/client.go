// ABOUTME: HTTP client for the minecraft-ai chat API
// ABOUTME: Sends the X-API-Key header and turns JSON error bodies into APIError values

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Conversation mirrors the server's conversation JSON.
type Conversation struct {
	ID             string `json:"id"`
	CreatedAt      string `json:"created_at"`
	Topic          string `json:"topic"`
	PlayerUUID     string `json:"player_uuid,omitempty"`
	PlayerUsername string `json:"player_username,omitempty"`
}

// Message mirrors the server's message JSON.
type Message struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Body      string `json:"body"`
	Ordinal   int    `json:"ordinal"`
	CreatedAt string `json:"created_at"`
}

// NewConversation holds the optional attributes sent to POST /chats.
type NewConversation struct {
	Topic          string `json:"topic,omitempty"`
	PlayerUUID     string `json:"player_uuid,omitempty"`
	PlayerUsername string `json:"player_username,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status     int
	Message    string
	RetryAfter string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
	if e.RetryAfter != "" {
		msg += fmt.Sprintf(" (retry in %ss)", e.RetryAfter)
	}
	return msg
}

// APIClient communicates with the minecraft-ai HTTP API.
type APIClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewAPIClient creates a new API client.
func NewAPIClient(baseURL, apiKey string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// CreateConversation starts a conversation.
func (c *APIClient) CreateConversation(ctx context.Context, req NewConversation) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, http.MethodPost, "/chats", req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations lists the key's conversations, optionally for one player.
func (c *APIClient) ListConversations(ctx context.Context, playerUsername string) ([]Conversation, error) {
	path := "/chats"
	if playerUsername != "" {
		path += "?" + url.Values{"player_username": {playerUsername}}.Encode()
	}
	var resp struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// SendMessage adds a message to a conversation and returns the reply.
func (c *APIClient) SendMessage(ctx context.Context, conversationID, message string) (string, error) {
	var resp struct {
		Reply string `json:"reply"`
	}
	path := "/chats/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"message": message}, &resp); err != nil {
		return "", err
	}
	return resp.Reply, nil
}

// History returns a conversation's messages in order.
func (c *APIClient) History(ctx context.Context, conversationID string) ([]Message, error) {
	var resp struct {
		Messages []Message `json:"messages"`
	}
	path := "/chats/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Transcript returns the rendered Markdown transcript.
func (c *APIClient) Transcript(ctx context.Context, conversationID string) (string, error) {
	path := "/chats/" + url.PathEscape(conversationID) + "/messages?format=markdown"
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return string(body), nil
}

// Ask sends a one-shot question.
func (c *APIClient) Ask(ctx context.Context, message string) (string, error) {
	var resp struct {
		Reply string `json:"reply"`
	}
	if err := c.do(ctx, http.MethodPost, "/chat", map[string]string{"message": message}, &resp); err != nil {
		return "", err
	}
	return resp.Reply, nil
}

// do sends a JSON request and decodes a JSON response into out.
func (c *APIClient) do(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.send(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// send performs the request and returns the response if it is 2xx.
func (c *APIClient) send(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, errorFromResponse(resp)
	}
	return resp, nil
}

// errorFromResponse extracts the error message from a non-2xx response.
func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{
		Status:     resp.StatusCode,
		RetryAfter: resp.Header.Get("Retry-After"),
	}
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		apiErr.Message = errResp.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
