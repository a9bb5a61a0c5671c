// ABOUTME: Store interface and data types for minecraft-ai persistence
// ABOUTME: Defines Conversation, Message structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when a conversation ID is reused
var ErrDuplicateConversation = errors.New("conversation already exists")

// DefaultTopic is stored when a conversation is created without a topic.
const DefaultTopic = "Untitled"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Conversation is an owned thread of messages. Owner is the API key that
// created it and never changes.
type Conversation struct {
	ID             string
	Owner          string
	Topic          string
	PlayerUUID     string // optional Minecraft player UUID
	PlayerUsername string // optional Minecraft player name
	CreatedAt      time.Time
}

// Message is a single immutable entry in a conversation.
// Ordinal is the 1-based insertion position, assigned by the store.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Body           string
	Ordinal        int
	CreatedAt      time.Time
}

// ConversationFilter narrows ListConversations. Empty fields match everything.
type ConversationFilter struct {
	PlayerUUID     string
	PlayerUsername string
}

// Store defines the persistence operations for conversations and messages.
type Store interface {
	// CreateConversation persists a new conversation.
	CreateConversation(ctx context.Context, conv *Conversation) error

	// GetConversation returns the conversation only if it belongs to owner.
	// Returns ErrNotFound for unknown IDs and for IDs owned by someone else.
	GetConversation(ctx context.Context, owner, id string) (*Conversation, error)

	// ListConversations returns owner's conversations in creation order.
	ListConversations(ctx context.Context, owner string, filter ConversationFilter) ([]*Conversation, error)

	// AppendMessage persists msg at the end of its conversation and sets
	// msg.Ordinal. Returns ErrNotFound if the conversation does not exist.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListMessages returns every message of a conversation ordered by Ordinal.
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases database resources.
	Close() error
}
