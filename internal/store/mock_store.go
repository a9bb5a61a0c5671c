// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation // keyed by conversation ID
	order         []string                 // conversation IDs in creation order
	messages      map[string][]*Message    // keyed by conversation ID

	// AppendErr, when set, is returned by AppendMessage for the given role.
	AppendErr map[Role]error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]*Message),
	}
}

// CreateConversation stores a new conversation.
func (m *MockStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[conv.ID]; exists {
		return ErrDuplicateConversation
	}

	// Make a copy to avoid external modification
	c := *conv
	m.conversations[c.ID] = &c
	m.order = append(m.order, c.ID)
	return nil
}

// GetConversation retrieves a conversation by ID, scoped to owner.
func (m *MockStore) GetConversation(ctx context.Context, owner, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok || c.Owner != owner {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

// ListConversations returns owner's conversations in creation order.
func (m *MockStore) ListConversations(ctx context.Context, owner string, filter ConversationFilter) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*Conversation{}
	for _, id := range m.order {
		c := m.conversations[id]
		if c.Owner != owner {
			continue
		}
		if filter.PlayerUUID != "" && c.PlayerUUID != filter.PlayerUUID {
			continue
		}
		if filter.PlayerUsername != "" && c.PlayerUsername != filter.PlayerUsername {
			continue
		}
		cp := *c
		result = append(result, &cp)
	}
	return result, nil
}

// AppendMessage stores msg at the end of its conversation.
func (m *MockStore) AppendMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.AppendErr[msg.Role]; err != nil {
		return err
	}
	if _, ok := m.conversations[msg.ConversationID]; !ok {
		return ErrNotFound
	}

	msg.Ordinal = len(m.messages[msg.ConversationID]) + 1
	cp := *msg
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], &cp)
	return nil
}

// ListMessages returns all messages of a conversation in insertion order.
func (m *MockStore) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.messages[conversationID]
	result := make([]*Message, len(stored))
	for i, msg := range stored {
		cp := *msg
		result[i] = &cp
	}
	return result, nil
}

// Ping always succeeds.
func (m *MockStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// MessageCount returns the number of stored messages across all conversations.
func (m *MockStore) MessageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, msgs := range m.messages {
		n += len(msgs)
	}
	return n
}

var _ Store = (*MockStore)(nil)
