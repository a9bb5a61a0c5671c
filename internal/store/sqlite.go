// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	inMemory := path == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if !inMemory {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each :memory: connection is its own database.
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			topic TEXT NOT NULL,
			player_uuid TEXT NOT NULL DEFAULT '',
			player_username TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_owner
			ON conversations(owner);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
			body TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id),
			UNIQUE (conversation_id, ordinal)
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateConversation stores a new conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	query := `
		INSERT INTO conversations (id, owner, topic, player_uuid, player_username, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.Owner,
		conv.Topic,
		conv.PlayerUUID,
		conv.PlayerUsername,
		conv.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateConversation
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	return nil
}

// GetConversation retrieves a conversation by ID, scoped to owner.
func (s *SQLiteStore) GetConversation(ctx context.Context, owner, id string) (*Conversation, error) {
	query := `
		SELECT id, owner, topic, player_uuid, player_username, created_at
		FROM conversations
		WHERE id = ? AND owner = ?
	`

	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, id, owner))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	return conv, nil
}

// ListConversations returns owner's conversations in creation order.
func (s *SQLiteStore) ListConversations(ctx context.Context, owner string, filter ConversationFilter) ([]*Conversation, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, owner, topic, player_uuid, player_username, created_at
		FROM conversations
		WHERE owner = ?`)
	args := []any{owner}

	if filter.PlayerUUID != "" {
		sb.WriteString(" AND player_uuid = ?")
		args = append(args, filter.PlayerUUID)
	}
	if filter.PlayerUsername != "" {
		sb.WriteString(" AND player_username = ?")
		args = append(args, filter.PlayerUsername)
	}
	sb.WriteString(" ORDER BY created_at ASC, rowid ASC")

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	convs := []*Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}

	return convs, nil
}

// AppendMessage inserts msg after the last message of its conversation.
// The ordinal is computed inside the INSERT so the write lock covers it.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, role, body, ordinal, created_at)
		SELECT ?, c.id, ?, ?,
			(SELECT COALESCE(MAX(m.ordinal), 0) + 1 FROM messages m WHERE m.conversation_id = c.id),
			?
		FROM conversations c
		WHERE c.id = ?
		RETURNING ordinal
	`

	var ordinal int
	err := s.db.QueryRowContext(ctx, query,
		msg.ID,
		string(msg.Role),
		msg.Body,
		msg.CreatedAt.UTC().Format(timeLayout),
		msg.ConversationID,
	).Scan(&ordinal)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	msg.Ordinal = ordinal
	return nil
}

// ListMessages returns all messages of a conversation in insertion order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	query := `
		SELECT id, conversation_id, role, body, ordinal, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY ordinal ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		var msg Message
		var role, createdAt string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Body, &msg.Ordinal, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = Role(role)
		if msg.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing message created_at: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return messages, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var conv Conversation
	var createdAt string
	if err := row.Scan(&conv.ID, &conv.Owner, &conv.Topic, &conv.PlayerUUID, &conv.PlayerUsername, &createdAt); err != nil {
		return nil, err
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing conversation created_at: %w", err)
	}
	conv.CreatedAt = t
	return &conv, nil
}

// isUniqueViolation matches the constraint error text of both SQLite and
// Postgres drivers.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

var _ Store = (*SQLiteStore)(nil)
