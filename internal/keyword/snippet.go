package keyword

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/zmahayni/SEC-Crypto-Analysis/internal/model"
)

// Snippet extraction bounds.
const (
	defaultRadius  = 200
	maxSnippetsDoc = 20
)

// Snippets returns up to maxSnippetsDoc matched occurrences in text, each
// with at most radius bytes of context on either side. A non-positive radius
// uses the default.
func (m *Matcher) Snippets(text string, radius int) []model.Snippet {
	if radius <= 0 {
		radius = defaultRadius
	}
	locs := m.re.FindAllStringIndex(text, maxSnippetsDoc)
	snippets := make([]model.Snippet, 0, len(locs))
	for _, loc := range locs {
		start := loc[0] - radius
		if start < 0 {
			start = 0
		}
		end := loc[1] + radius
		if end > len(text) {
			end = len(text)
		}
		snippets = append(snippets, model.Snippet{
			Keyword: Canonical(text[loc[0]:loc[1]]),
			Context: collapseSpace(text[start:end]),
		})
	}
	return snippets
}

// HTMLSnippets tokenizes HTML, drops markup and script/style content, and
// extracts snippets from the remaining text.
func (m *Matcher) HTMLSnippets(markup string, radius int) []model.Snippet {
	return m.Snippets(StripTags(markup), radius)
}

// StripTags returns the visible text content of an HTML fragment. Invalid
// markup degrades gracefully: the tokenizer yields whatever text it can.
func StripTags(markup string) string {
	tz := html.NewTokenizer(strings.NewReader(markup))
	var b strings.Builder
	skipDepth := 0
	for {
		switch tz.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			name, _ := tz.TagName()
			if skippedTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tz.TagName()
			if skippedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tz.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func skippedTag(name string) bool {
	return name == "script" || name == "style"
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
