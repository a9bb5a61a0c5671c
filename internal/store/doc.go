// Package store provides persistent storage for conversations and messages.
//
// # Backends
//
//   - SQLiteStore: default, pure Go via modernc.org/sqlite, WAL mode
//   - PostgresStore: github.com/lib/pq, for shared deployments
//   - MockStore: in-memory, for unit tests
//
// All three satisfy the Store interface and share the same semantics.
//
// # Ownership
//
// A Conversation's Owner is the API key that created it. Lookups take the
// owner alongside the ID and report ErrNotFound when they do not match, so
// callers cannot distinguish "missing" from "someone else's".
//
// # Ordering
//
// Conversations list in creation order. Messages carry an Ordinal assigned by
// the store at insert time, inside the same statement or transaction that
// writes the row, so concurrent appends to one conversation never share a
// position. UNIQUE(conversation_id, ordinal) backs this up at the schema level.
//
// Nothing is ever updated or deleted.
//
// # Usage
//
//	s, err := store.NewSQLiteStore("~/.local/share/minecraft-ai/chat.db")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	conv := &store.Conversation{ID: uuid.NewString(), Owner: key, Topic: store.DefaultTopic, CreatedAt: time.Now().UTC()}
//	err = s.CreateConversation(ctx, conv)
//
//	msg := &store.Message{ID: uuid.NewString(), ConversationID: conv.ID, Role: store.RoleUser, Body: "hi", CreatedAt: time.Now().UTC()}
//	err = s.AppendMessage(ctx, msg) // msg.Ordinal is now 1
package store
