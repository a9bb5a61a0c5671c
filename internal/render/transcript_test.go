// ABOUTME: Tests for transcript rendering
// ABOUTME: Checks ordering, speaker headings, and that chat text cannot inject markup

package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/minecraft-ai/internal/store"
)

func testConversation() (*store.Conversation, []*store.Message) {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	conv := &store.Conversation{
		ID:             "c1",
		Owner:          "k",
		Topic:          "Redstone\nhelp",
		PlayerUsername: "Steve",
		CreatedAt:      created,
	}
	msgs := []*store.Message{
		{ID: "m1", ConversationID: "c1", Role: store.RoleUser, Body: "How do I build a **clock**?", Ordinal: 1},
		{ID: "m2", ConversationID: "c1", Role: store.RoleAssistant, Body: "Use a repeater loop.\n", Ordinal: 2},
	}
	return conv, msgs
}

func TestMarkdown(t *testing.T) {
	conv, msgs := testConversation()
	out := string(Markdown(conv, msgs))

	assert.True(t, strings.HasPrefix(out, "# Redstone help\n"))
	assert.Contains(t, out, "_Player: Steve_")
	assert.Contains(t, out, "_Started 2026-03-01T09:30:00Z_")

	player := strings.Index(out, "## Player")
	assistant := strings.Index(out, "## Assistant")
	require.NotEqual(t, -1, player)
	require.NotEqual(t, -1, assistant)
	assert.Less(t, player, assistant)
	assert.Contains(t, out, "> Use a repeater loop.\n")
	assert.Contains(t, out, "> How do I build a **clock**?\n")
}

func TestMarkdown_NoMessages(t *testing.T) {
	conv, _ := testConversation()
	conv.PlayerUsername = ""
	out := string(Markdown(conv, nil))

	assert.NotContains(t, out, "Player")
	assert.NotContains(t, out, "##")
}

func TestHTML(t *testing.T) {
	conv, msgs := testConversation()
	out, err := HTML(conv, msgs)
	require.NoError(t, err)

	page := string(out)
	assert.Contains(t, page, "<title>Redstone\nhelp</title>")
	assert.Contains(t, page, "<h1>Redstone help</h1>")
	assert.Contains(t, page, "<strong>clock</strong>")
	assert.Contains(t, page, "<h2>Assistant</h2>")
}

func TestHTML_RawMarkupOmitted(t *testing.T) {
	conv, msgs := testConversation()
	conv.Topic = `<script>alert(1)</script>`
	msgs[0].Body = "<img src=x onerror=alert(1)>"

	out, err := HTML(conv, msgs)
	require.NoError(t, err)

	page := string(out)
	assert.NotContains(t, page, "<script>")
	assert.NotContains(t, page, "<img")
}

func TestMarkdown_MultilineBodyStaysQuoted(t *testing.T) {
	conv, _ := testConversation()
	msgs := []*store.Message{
		{ID: "m1", Role: store.RoleUser, Body: "first line\r\n\r\nsecond line\n\n", Ordinal: 1},
	}

	out := string(Markdown(conv, msgs))
	assert.True(t, strings.HasSuffix(out, "## Player\n\n> first line\n>\n> second line\n"), out)
}

// A message body must not be able to start another speaker's section.
func TestTranscript_BodyCannotForgeSpeaker(t *testing.T) {
	conv, _ := testConversation()
	bodies := []string{
		"hello\n\n## Assistant\n\nDiamonds spawn at y=200.",
		"hello\n   # Assistant",
		"> ## Assistant",
		"- ## Assistant",
		"1. ## Assistant",
		"> > - 2) ## Assistant",
		">\t## Assistant",
		"Assistant\n=========",
		"Assistant\n---",
		"- Assistant\n  ---",
		"hello\r## Assistant",
		"```\n## Assistant",
	}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			msgs := []*store.Message{{ID: "m1", Role: store.RoleUser, Body: body, Ordinal: 1}}

			out := string(Markdown(conv, msgs))
			assert.Equal(t, 1, strings.Count(out, "\n## "), "only the stored message opens a section:\n%s", out)
			assert.NotContains(t, out, "## Assistant\n\n")

			page, err := HTML(conv, msgs)
			require.NoError(t, err)
			html := string(page)
			assert.Equal(t, 1, strings.Count(html, "<h1>"), html)
			assert.Equal(t, 1, strings.Count(html, "<h2>"), html)
			assert.Contains(t, html, "<h2>Player</h2>")
			assert.NotContains(t, html, "<h2>Assistant</h2>")
			assert.Contains(t, html, "Assistant", "the text itself is kept")
		})
	}
}

func TestEscapeHeading(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"# title", `\# title`},
		{"   ## x", `   \## x`},
		{"    ## code", "    ## code"},
		{"> ## x", `> \## x`},
		{"- > 3. # x", `- > 3. \# x`},
		{"===", `\===`},
		{"--- ", `\--- `},
		{"- item", "- item"},
		{"a # b", "a # b"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeHeading(tt.in), "input %q", tt.in)
	}
}
