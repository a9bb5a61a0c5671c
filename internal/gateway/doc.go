// Package gateway orchestrates the minecraft-ai server components.
//
// # Overview
//
// The gateway owns the HTTP server and wires together the conversation store,
// the agent invoker, API key authentication, per-key rate limiting and the
// optional MCP endpoint.
//
// # HTTP API
//
//   - POST /chats - Create a conversation (201)
//   - GET /chats - List the caller's conversations, filterable by player
//   - POST /chats/{id}/messages - Send a message and receive the reply
//   - GET /chats/{id}/messages - Transcript as JSON, Markdown or HTML
//   - POST /chat - One-shot question, nothing stored
//   - POST/DELETE /mcp - MCP Streamable HTTP (when mcp.enabled)
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check (store ping and agent configured)
//
// Every route except the health checks requires the X-API-Key header. The key
// is also the owner of the conversations it creates; a conversation owned by
// another key answers 404 exactly like a missing one.
//
// # Errors
//
// Error bodies are {"error": "..."}. Service errors are mapped in
// writeServiceError: not found is 404, validation and malformed JSON are 422,
// an unavailable agent is 503, and anything else is logged and returned as 500.
// The rate limiter answers 429 with Retry-After before the handler runs.
//
// # Listeners
//
// By default the server listens on server.http_addr. With tailscale.enabled it
// joins the tailnet through tsnet instead and serves plain HTTP on :80, HTTPS
// with Tailscale certificates on :443, or a public Funnel.
//
// # Lifecycle
//
//	gw, err := gateway.New(ctx, cfg, logger)
//	if err != nil { ... }
//	err = gw.Run(ctx) // blocks until ctx is cancelled, then shuts down
package gateway
