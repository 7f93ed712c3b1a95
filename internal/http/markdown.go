package http

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// insightRenderer turns insight markdown into HTML. Raw HTML in the source
// is not passed through.
type insightRenderer struct {
	md goldmark.Markdown
}

func newInsightRenderer() *insightRenderer {
	return &insightRenderer{
		md: goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Table)),
	}
}

// Render converts text to HTML. Outer code fences that some generators wrap
// their answer in are stripped first.
func (r *insightRenderer) Render(text string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(cleanMarkdown(text)), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func cleanMarkdown(input string) string {
	cleaned := strings.TrimSpace(input)
	if !strings.HasPrefix(cleaned, "```") || !strings.HasSuffix(cleaned, "```") || len(cleaned) < 6 {
		return cleaned
	}
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimPrefix(cleaned, "```markdown")
	cleaned = strings.TrimPrefix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
