// ABOUTME: ConversationService is the central layer for message persistence
// ABOUTME: All messages flow through here - history is the source of truth, not a side effect

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/minecraft-ai/internal/agent"
	"github.com/2389/minecraft-ai/internal/store"
)

// persistTimeout bounds writes that must survive a cancelled request.
const persistTimeout = 5 * time.Second

// ConversationStore defines what the service needs from storage
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *store.Conversation) error
	GetConversation(ctx context.Context, owner, id string) (*store.Conversation, error)
	ListConversations(ctx context.Context, owner string, filter store.ConversationFilter) ([]*store.Conversation, error)
	AppendMessage(ctx context.Context, msg *store.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*store.Message, error)
}

// Service is the central conversation layer that ensures the user message is
// persisted before the agent is asked for a reply.
type Service struct {
	store   ConversationStore
	invoker agent.Invoker
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a new ConversationService. A nil invoker behaves as an
// unconfigured agent.
func New(store ConversationStore, invoker agent.Invoker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if invoker == nil {
		invoker = agent.Unconfigured{}
	}
	return &Service{
		store:   store,
		invoker: invoker,
		logger:  logger.With("component", "conversation"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateParams are the optional attributes of a new conversation.
type CreateParams struct {
	Topic          string
	PlayerUUID     string
	PlayerUsername string
}

// ListFilter narrows ListConversations to one Minecraft player.
type ListFilter struct {
	PlayerUUID     string
	PlayerUsername string
}

// CreateConversation starts an empty conversation owned by owner.
// A blank topic is stored as store.DefaultTopic.
func (s *Service) CreateConversation(ctx context.Context, owner string, params CreateParams) (*store.Conversation, error) {
	if owner == "" {
		return nil, invalid("owner", "must not be empty")
	}

	topic := strings.TrimSpace(params.Topic)
	if topic == "" {
		topic = store.DefaultTopic
	}

	conv := &store.Conversation{
		ID:             uuid.New().String(),
		Owner:          owner,
		Topic:          topic,
		PlayerUUID:     strings.TrimSpace(params.PlayerUUID),
		PlayerUsername: strings.TrimSpace(params.PlayerUsername),
		CreatedAt:      s.now(),
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Info("conversation created",
		"conversation_id", conv.ID,
		"topic", conv.Topic,
		"player", conv.PlayerUsername)
	return conv, nil
}

// ListConversations returns owner's conversations in creation order.
func (s *Service) ListConversations(ctx context.Context, owner string, filter ListFilter) ([]*store.Conversation, error) {
	if owner == "" {
		return nil, invalid("owner", "must not be empty")
	}

	convs, err := s.store.ListConversations(ctx, owner, store.ConversationFilter{
		PlayerUUID:     filter.PlayerUUID,
		PlayerUsername: filter.PlayerUsername,
	})
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	s.logger.Debug("conversations listed", "count", len(convs))
	return convs, nil
}

// Conversation returns one of owner's conversations.
func (s *Service) Conversation(ctx context.Context, owner, conversationID string) (*store.Conversation, error) {
	return s.lookup(ctx, owner, conversationID)
}

// History returns the ordered transcript of one of owner's conversations.
func (s *Service) History(ctx context.Context, owner, conversationID string) ([]*store.Message, error) {
	if _, err := s.lookup(ctx, owner, conversationID); err != nil {
		return nil, err
	}

	msgs, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return msgs, nil
}

// AddMessage records body as a user message, asks the agent for a reply with
// the full history, and records the reply.
//
// Key principle: Record first, then act. The user message is saved BEFORE the
// agent is invoked and stays saved when the agent fails.
func (s *Service) AddMessage(ctx context.Context, owner, conversationID, body string) (*store.Message, error) {
	// 1. Ownership check comes before body validation.
	if _, err := s.lookup(ctx, owner, conversationID); err != nil {
		return nil, err
	}

	// 2. Validate
	if strings.TrimSpace(body) == "" {
		return nil, invalid("message", "must not be empty or whitespace")
	}

	// 3. Record user message FIRST
	userMsg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           store.RoleUser,
		Body:           body,
		CreatedAt:      s.now(),
	}
	if err := s.store.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("recording user message: %w", err)
	}

	s.logger.Debug("user message recorded",
		"conversation_id", conversationID,
		"message_id", userMsg.ID,
		"ordinal", userMsg.Ordinal)

	// 4. Load history including the message just written
	history, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	// 5 + 6. Invoke once; a failure leaves the user message in place.
	reply, err := s.invoke(ctx, conversationID, toTurns(history))
	if err != nil {
		return nil, err
	}

	// 7. Record the reply even if the caller has gone away.
	assistantMsg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           store.RoleAssistant,
		Body:           reply,
		CreatedAt:      s.now(),
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.store.AppendMessage(saveCtx, assistantMsg); err != nil {
		return nil, fmt.Errorf("recording assistant message: %w", err)
	}

	s.logger.Info("exchange recorded",
		"conversation_id", conversationID,
		"user_ordinal", userMsg.Ordinal,
		"assistant_ordinal", assistantMsg.Ordinal,
		"history_len", len(history))
	return assistantMsg, nil
}

// Ask sends a single message to the agent without touching the store.
func (s *Service) Ask(ctx context.Context, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", invalid("message", "must not be empty or whitespace")
	}
	return s.invoke(ctx, "", []agent.Turn{{Role: agent.RoleUser, Content: body}})
}

// AgentConfigured reports whether replies can be produced at all.
func (s *Service) AgentConfigured() bool {
	return agent.Configured(s.invoker)
}

// invoke calls the agent and validates its tagged result.
func (s *Service) invoke(ctx context.Context, conversationID string, turns []agent.Turn) (string, error) {
	res := s.invoker.Invoke(ctx, turns)
	if !res.OK() {
		err := res.Err()
		s.logger.Warn("agent invocation failed",
			"conversation_id", conversationID,
			"kind", res.Kind().String(),
			"error", err)
		return "", fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
	return res.Text(), nil
}

// lookup translates store.ErrNotFound into ErrNotFound.
func (s *Service) lookup(ctx context.Context, owner, conversationID string) (*store.Conversation, error) {
	if owner == "" || conversationID == "" {
		return nil, ErrNotFound
	}
	conv, err := s.store.GetConversation(ctx, owner, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up conversation: %w", err)
	}
	return conv, nil
}

func toTurns(msgs []*store.Message) []agent.Turn {
	turns := make([]agent.Turn, len(msgs))
	for i, m := range msgs {
		role := agent.RoleUser
		if m.Role == store.RoleAssistant {
			role = agent.RoleAssistant
		}
		turns[i] = agent.Turn{Role: role, Content: m.Body}
	}
	return turns
}
