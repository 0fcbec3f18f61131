// Package markdown renders note content to sanitized HTML.
package markdown

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	once   sync.Once
	md     goldmark.Markdown
	policy *bluemonday.Policy
)

func setup() {
	once.Do(func() {
		md = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		)

		p := bluemonday.UGCPolicy()
		p.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
		p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code")
		p.AllowAttrs("type", "checked", "disabled").OnElements("input")
		p.RequireNoFollowOnLinks(true)
		p.AddTargetBlankToFullyQualifiedLinks(true)
		policy = p
	})
}

// Render converts markdown source to HTML safe to embed in a page.
func Render(source string) (string, error) {
	setup()
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("markdown: render: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}

// Excerpt returns the first n characters of source followed by "..." when
// it is longer, as shown on list cards.
func Excerpt(source string, n int) string {
	source = strings.TrimSpace(source)
	runes := []rune(source)
	if n <= 0 || len(runes) <= n {
		return source
	}
	return string(runes[:n]) + "..."
}
