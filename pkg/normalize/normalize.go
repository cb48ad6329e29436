// Package normalize flattens markdown and HTML memory content to plain
// text before it is embedded or length-checked. Chat transcripts arrive
// with formatting the embedding model only pays a token tax for.
package normalize

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
)

// Normalizer converts formatted memory content to plain text
type Normalizer struct {
	md goldmark.Markdown
}

// New creates a content normalizer
func New() *Normalizer {
	return &Normalizer{
		md: goldmark.New(),
	}
}

// Flatten renders markdown to HTML, strips every tag, and collapses
// whitespace. Plain text passes through unchanged apart from whitespace
// normalization. On any parse failure the input is returned trimmed.
func (n *Normalizer) Flatten(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	var html bytes.Buffer
	if err := n.md.Convert([]byte(trimmed), &html); err != nil {
		return collapseWhitespace(trimmed)
	}

	doc, err := goquery.NewDocumentFromReader(&html)
	if err != nil {
		return collapseWhitespace(trimmed)
	}

	return collapseWhitespace(doc.Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
