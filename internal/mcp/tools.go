// ABOUTME: Tool catalog for the MCP server: schemas and handlers
// ABOUTME: Each tool decodes its arguments and calls the chat service as the session owner

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2389/minecraft-ai/internal/conversation"
	"github.com/2389/minecraft-ai/internal/store"
)

// errBadArguments marks tool arguments that failed to decode.
var errBadArguments = errors.New("invalid arguments")

type toolFunc func(ctx context.Context, svc ChatService, owner string, args json.RawMessage) (any, error)

type tool struct {
	name        string
	description string
	schema      string
	call        toolFunc
}

// conversationOutput is the JSON shape of a conversation in tool output.
type conversationOutput struct {
	ID             string `json:"id"`
	Topic          string `json:"topic"`
	PlayerUUID     string `json:"player_uuid,omitempty"`
	PlayerUsername string `json:"player_username,omitempty"`
	CreatedAt      string `json:"created_at"`
}

type replyOutput struct {
	Reply string `json:"reply"`
}

var tools = []tool{
	{
		name:        "chat",
		description: "Ask the Minecraft assistant a single question without saving it to any conversation.",
		schema: `{"type":"object","properties":{` +
			`"message":{"type":"string","description":"The question to ask"}},` +
			`"required":["message"]}`,
		call: callChat,
	},
	{
		name:        "create_conversation",
		description: "Start a new saved conversation with the Minecraft assistant.",
		schema: `{"type":"object","properties":{` +
			`"topic":{"type":"string","description":"Short topic, defaults to Untitled"},` +
			`"player_uuid":{"type":"string","description":"Minecraft player UUID"},` +
			`"player_username":{"type":"string","description":"Minecraft player name"}}}`,
		call: callCreateConversation,
	},
	{
		name:        "list_conversations",
		description: "List your saved conversations in creation order, optionally for one player.",
		schema: `{"type":"object","properties":{` +
			`"player_uuid":{"type":"string"},` +
			`"player_username":{"type":"string"}}}`,
		call: callListConversations,
	},
	{
		name:        "send_message",
		description: "Send a message in a saved conversation and get the assistant's reply.",
		schema: `{"type":"object","properties":{` +
			`"conversation_id":{"type":"string"},` +
			`"message":{"type":"string"}},` +
			`"required":["conversation_id","message"]}`,
		call: callSendMessage,
	},
}

func toolInfos() []MCPToolInfo {
	infos := make([]MCPToolInfo, len(tools))
	for i, t := range tools {
		infos[i] = MCPToolInfo{
			Name:        t.name,
			Description: t.description,
			InputSchema: json.RawMessage(t.schema),
		}
	}
	return infos
}

func lookupTool(name string) (tool, bool) {
	for _, t := range tools {
		if t.name == name {
			return t, true
		}
	}
	return tool{}, false
}

func decodeArgs(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", errBadArguments, err)
	}
	return nil
}

func callChat(ctx context.Context, svc ChatService, _ string, args json.RawMessage) (any, error) {
	var in struct {
		Message string `json:"message"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	reply, err := svc.Ask(ctx, in.Message)
	if err != nil {
		return nil, err
	}
	return replyOutput{Reply: reply}, nil
}

func callCreateConversation(ctx context.Context, svc ChatService, owner string, args json.RawMessage) (any, error) {
	var in struct {
		Topic          string `json:"topic"`
		PlayerUUID     string `json:"player_uuid"`
		PlayerUsername string `json:"player_username"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	conv, err := svc.CreateConversation(ctx, owner, conversation.CreateParams{
		Topic:          in.Topic,
		PlayerUUID:     in.PlayerUUID,
		PlayerUsername: in.PlayerUsername,
	})
	if err != nil {
		return nil, err
	}
	return toConversationOutput(conv), nil
}

func callListConversations(ctx context.Context, svc ChatService, owner string, args json.RawMessage) (any, error) {
	var in struct {
		PlayerUUID     string `json:"player_uuid"`
		PlayerUsername string `json:"player_username"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	convs, err := svc.ListConversations(ctx, owner, conversation.ListFilter{
		PlayerUUID:     in.PlayerUUID,
		PlayerUsername: in.PlayerUsername,
	})
	if err != nil {
		return nil, err
	}
	out := make([]conversationOutput, len(convs))
	for i, c := range convs {
		out[i] = toConversationOutput(c)
	}
	return map[string]any{"conversations": out}, nil
}

func callSendMessage(ctx context.Context, svc ChatService, owner string, args json.RawMessage) (any, error) {
	var in struct {
		ConversationID string `json:"conversation_id"`
		Message        string `json:"message"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	msg, err := svc.AddMessage(ctx, owner, in.ConversationID, in.Message)
	if err != nil {
		return nil, err
	}
	return replyOutput{Reply: msg.Body}, nil
}

func toConversationOutput(c *store.Conversation) conversationOutput {
	return conversationOutput{
		ID:             c.ID,
		Topic:          c.Topic,
		PlayerUUID:     c.PlayerUUID,
		PlayerUsername: c.PlayerUsername,
		CreatedAt:      c.CreatedAt.UTC().Format(time.RFC3339),
	}
}
