package keyword

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnippetsRadiusAndCollapse(t *testing.T) {
	t.Parallel()

	m := New()
	text := strings.Repeat("a ", 300) + "the  bitcoin\n\tposition " + strings.Repeat("b ", 300)
	snips := m.Snippets(text, 20)
	require.Len(t, snips, 1)
	require.Equal(t, "bitcoin", snips[0].Keyword)
	require.Contains(t, snips[0].Context, "the bitcoin position", "whitespace runs collapse to single spaces")
	require.LessOrEqual(t, len(snips[0].Context), len("bitcoin")+2*20)
}

func TestSnippetsCapped(t *testing.T) {
	t.Parallel()

	m := New()
	text := strings.Repeat("bitcoin and more text here. ", 50)
	snips := m.Snippets(text, 10)
	require.Len(t, snips, maxSnippetsDoc)
}

func TestSnippetsAtTextEdges(t *testing.T) {
	t.Parallel()

	m := New()
	snips := m.Snippets("ethereum", 100)
	require.Len(t, snips, 1)
	require.Equal(t, "ethereum", snips[0].Context)
}

func TestStripTags(t *testing.T) {
	t.Parallel()

	markup := `<html><head><style>body { color: red }</style>
<script>var bitcoin = "nope";</script></head>
<body><p>Our <b>blockchain</b> strategy.</p></body></html>`

	text := StripTags(markup)
	require.Contains(t, text, "blockchain")
	require.Contains(t, text, "Our")
	require.NotContains(t, text, "nope", "script content is dropped")
	require.NotContains(t, text, "color", "style content is dropped")
}

func TestStripTagsMalformed(t *testing.T) {
	t.Parallel()

	// Unclosed tags still yield the text the tokenizer can recover.
	require.Contains(t, StripTags("<p>digital <b>asset"), "digital")
}

func TestHTMLSnippets(t *testing.T) {
	t.Parallel()

	m := New()
	snips := m.HTMLSnippets("<div>we hold <i>crypto-asset</i> exposure directly</div>", 50)
	require.Len(t, snips, 1)
	require.Equal(t, "crypto asset", snips[0].Keyword)
	require.Contains(t, snips[0].Context, "we hold crypto-asset")
}
