// ABOUTME: PostgreSQL implementation of the Store interface using lib/pq
// ABOUTME: Shares semantics with SQLiteStore; ordinals are assigned under a row lock

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"
)

// PostgresStore implements the Store interface on PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore connects to dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	logger := slog.Default().With("component", "store")

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	s := &PostgresStore{db: db, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("Postgres store initialized")
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			seq             BIGSERIAL UNIQUE,
			id              TEXT PRIMARY KEY,
			owner           TEXT NOT NULL,
			topic           TEXT NOT NULL,
			player_uuid     TEXT NOT NULL DEFAULT '',
			player_username TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_owner ON conversations(owner)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			role            TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
			body            TEXT NOT NULL,
			ordinal         INTEGER NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL,
			UNIQUE (conversation_id, ordinal)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateConversation stores a new conversation.
func (s *PostgresStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	stmt := `INSERT INTO conversations (id, owner, topic, player_uuid, player_username, created_at)
	         VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, stmt,
		conv.ID, conv.Owner, conv.Topic, conv.PlayerUUID, conv.PlayerUsername, conv.CreatedAt.UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateConversation
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID, scoped to owner.
func (s *PostgresStore) GetConversation(ctx context.Context, owner, id string) (*Conversation, error) {
	query := `SELECT id, owner, topic, player_uuid, player_username, created_at
	          FROM conversations WHERE id = $1 AND owner = $2`
	conv := &Conversation{}
	err := s.db.QueryRowContext(ctx, query, id, owner).
		Scan(&conv.ID, &conv.Owner, &conv.Topic, &conv.PlayerUUID, &conv.PlayerUsername, &conv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	conv.CreatedAt = conv.CreatedAt.UTC()
	return conv, nil
}

// ListConversations returns owner's conversations in creation order.
func (s *PostgresStore) ListConversations(ctx context.Context, owner string, filter ConversationFilter) ([]*Conversation, error) {
	where, args := []string{"owner = $1"}, []any{owner}
	if v := filter.PlayerUUID; v != "" {
		where, args = append(where, "player_uuid = "+placeholder(len(args)+1)), append(args, v)
	}
	if v := filter.PlayerUsername; v != "" {
		where, args = append(where, "player_username = "+placeholder(len(args)+1)), append(args, v)
	}
	query := fmt.Sprintf(
		`SELECT id, owner, topic, player_uuid, player_username, created_at
		 FROM conversations WHERE %s ORDER BY created_at ASC, seq ASC`,
		strings.Join(where, " AND "),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	convs := []*Conversation{}
	for rows.Next() {
		conv := &Conversation{}
		if err := rows.Scan(&conv.ID, &conv.Owner, &conv.Topic, &conv.PlayerUUID, &conv.PlayerUsername, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		conv.CreatedAt = conv.CreatedAt.UTC()
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// AppendMessage inserts msg after the last message of its conversation.
// The conversation row is locked for the duration so concurrent appends
// serialize on it.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM conversations WHERE id = $1 FOR UPDATE`, msg.ConversationID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("locking conversation: %w", err)
	}

	var ordinal int
	err = tx.QueryRowContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, body, ordinal, created_at)
		 VALUES ($1, $2, $3, $4,
		         (SELECT COALESCE(MAX(ordinal), 0) + 1 FROM messages WHERE conversation_id = $2),
		         $5)
		 RETURNING ordinal`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Body, msg.CreatedAt.UTC(),
	).Scan(&ordinal)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}
	msg.Ordinal = ordinal
	return nil
}

// ListMessages returns all messages of a conversation in insertion order.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, body, ordinal, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY ordinal ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		msg := &Message{}
		var role string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Body, &msg.Ordinal, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = Role(role)
		msg.CreatedAt = msg.CreatedAt.UTC()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

var _ Store = (*PostgresStore)(nil)
