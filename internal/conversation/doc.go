// Package conversation provides the conversation service behind the chat API.
//
// # Overview
//
// The service sits between the HTTP/MCP handlers and the store and agent
// invoker. Both dependencies are injected through New:
//
//	svc := conversation.New(store, invoker, logger)
//
// Key operations:
//
//   - CreateConversation(ctx, owner, params): start an empty conversation
//   - ListConversations(ctx, owner, filter): owner's conversations, oldest first
//   - AddMessage(ctx, owner, id, body): record, invoke agent, record reply
//   - History(ctx, owner, id): ordered transcript
//   - Ask(ctx, body): one-shot question, nothing stored
//
// # Ownership
//
// Owner is the caller's API key. Every lookup is scoped to it and a
// conversation belonging to another key is reported as ErrNotFound.
//
// # AddMessage Flow
//
//  1. Look up the conversation for owner (ErrNotFound)
//  2. Reject empty or whitespace-only bodies (ErrValidation)
//  3. Append the user message
//  4. Load the full ordered history, including that message
//  5. Invoke the agent once
//  6. On failure return ErrServiceUnavailable; the user message stays
//  7. Append the assistant reply and return it
//
// The reply is written with a context detached from the request so a client
// that disconnects mid-call does not lose it.
//
// # Errors
//
//	errors.Is(err, conversation.ErrNotFound)
//	errors.Is(err, conversation.ErrValidation)         // *ValidationError carries the field
//	errors.Is(err, conversation.ErrServiceUnavailable) // also matches agent.ErrUnavailable
package conversation
