// Package mcp implements the Model Context Protocol server for the chat service.
//
// # Overview
//
// MCP (Model Context Protocol) is a standard for AI tool integration. This
// package exposes the Minecraft assistant as MCP tools so that external AI
// clients can ask questions and manage saved conversations.
//
// # Protocol
//
// The server speaks JSON-RPC 2.0 over the Streamable HTTP transport on a
// single endpoint:
//
//   - POST /mcp - initialize, ping, tools/list, tools/call
//   - DELETE /mcp - end the session named by Mcp-Session-Id
//
// Server-initiated SSE streams are not supported, so GET returns 405.
//
// # Authentication
//
// The endpoint is mounted behind the same X-API-Key middleware as the REST
// routes. The key that sends initialize owns the session; later requests on
// that session must present the same key or they get 403.
//
// # Tools
//
//	chat                 {message}                         -> {reply}
//	create_conversation  {topic?, player_uuid?, player_username?}
//	list_conversations   {player_uuid?, player_username?}  -> {conversations}
//	send_message         {conversation_id, message}        -> {reply}
//
// Service failures such as an unknown conversation or an unavailable agent are
// reported as tool results with isError set, not as JSON-RPC errors.
package mcp
