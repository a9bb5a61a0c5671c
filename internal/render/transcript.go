// ABOUTME: Renders conversation transcripts as Markdown and as HTML pages
// ABOUTME: HTML goes through goldmark so chat text never reaches the page as raw markup

package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/minecraft-ai/internal/store"
)

// Content types for the rendered formats.
const (
	ContentTypeMarkdown = "text/markdown; charset=utf-8"
	ContentTypeHTML     = "text/html; charset=utf-8"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Linkify))

var pageTmpl = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<article class="transcript">
{{.Body}}
</article>
</body>
</html>
`))

// Markdown renders the conversation as a Markdown document: a heading with the
// topic, then one section per message in order. Each body is a blockquote with
// its headings escaped, so only stored messages produce speaker headings.
func Markdown(conv *store.Conversation, msgs []*store.Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", oneLine(conv.Topic))
	if conv.PlayerUsername != "" {
		fmt.Fprintf(&b, "_Player: %s_\n\n", oneLine(conv.PlayerUsername))
	}
	fmt.Fprintf(&b, "_Started %s_\n", conv.CreatedAt.UTC().Format(time.RFC3339))

	for _, m := range msgs {
		fmt.Fprintf(&b, "\n## %s\n\n", speaker(m.Role))
		writeQuoted(&b, m.Body)
	}
	return b.Bytes()
}

// HTML renders the conversation as a standalone HTML page.
func HTML(conv *store.Conversation, msgs []*store.Message) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert(Markdown(conv, msgs), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	var page bytes.Buffer
	err := pageTmpl.Execute(&page, struct {
		Title string
		Body  template.HTML
	}{
		Title: conv.Topic,
		// goldmark omits raw HTML unless WithUnsafe is set.
		Body: template.HTML(body.String()), //nolint:gosec
	})
	if err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return page.Bytes(), nil
}

func speaker(role store.Role) string {
	switch role {
	case store.RoleUser:
		return "Player"
	case store.RoleAssistant:
		return "Assistant"
	default:
		return string(role)
	}
}

// writeQuoted writes body as a blockquote. Every line is prefixed, so nothing in
// the body can close the quote and continue at the top level.
func writeQuoted(b *bytes.Buffer, body string) {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")
	body = strings.TrimRight(body, "\n")
	for _, line := range strings.Split(body, "\n") {
		line = escapeHeading(line)
		if line == "" {
			b.WriteString(">\n")
			continue
		}
		b.WriteString("> ")
		b.WriteString(line)
		b.WriteString("\n")
	}
}

// escapeHeading backslash-escapes an ATX heading ("## x") or setext underline
// ("===", "---") so it renders as literal text, including one nested inside
// quote or list markers ("> ## x", "- ## x", "1. ## x").
func escapeHeading(line string) string {
	i := contentStart(line)
	rest := line[i:]
	if rest == "" {
		return line
	}
	if rest[0] == '#' || isSetextUnderline(rest) {
		return line[:i] + `\` + rest
	}
	return line
}

// contentStart skips indentation and any run of blockquote or list markers.
func contentStart(line string) int {
	i := 0
	for {
		j := i
		for j < len(line) && j-i < 3 && line[j] == ' ' {
			j++
		}
		if j >= len(line) {
			return j
		}
		switch c := line[j]; {
		case c == '>':
			j++
			if j < len(line) && (line[j] == ' ' || line[j] == '\t') {
				j++
			}
		case (c == '-' || c == '*' || c == '+') && j+1 < len(line) && (line[j+1] == ' ' || line[j+1] == '\t'):
			j += 2
		case c >= '0' && c <= '9':
			k := j
			for k < len(line) && k-j < 9 && line[k] >= '0' && line[k] <= '9' {
				k++
			}
			if k+1 < len(line) && (line[k] == '.' || line[k] == ')') && (line[k+1] == ' ' || line[k+1] == '\t') {
				j = k + 2
			} else {
				return j
			}
		default:
			return j
		}
		i = j
	}
}

func isSetextUnderline(s string) bool {
	s = strings.TrimRight(s, " \t")
	if s == "" {
		return false
	}
	return strings.Trim(s, "=") == "" || strings.Trim(s, "-") == ""
}

// oneLine keeps headings on a single line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
