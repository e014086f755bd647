package confluence

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockElements delimit paragraphs in the extracted text.
var blockElements = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.Br:         true,
	atom.Li:         true,
	atom.Ul:         true,
	atom.Ol:         true,
	atom.Table:      true,
	atom.Tr:         true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Blockquote: true,
	atom.Pre:        true,
	atom.Section:    true,
	atom.Article:    true,
}

// ExtractText converts Confluence storage-format HTML to plain text.
// Script and style contents are dropped, block elements become paragraph
// breaks, and entities are unescaped by the tokenizer. Paragraphs are
// separated by a blank line; lines inside a paragraph are trimmed.
func ExtractText(source string) string {
	node, err := html.Parse(strings.NewReader(source))
	if err != nil {
		// The parser is lenient; a hard failure means garbage in.
		return ""
	}

	var b strings.Builder
	collectText(node, &b)

	return normalizeWhitespace(b.String())
}

func collectText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
			return
		}
		if blockElements[n.DataAtom] {
			b.WriteString("\n\n")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}

	if n.Type == html.ElementNode && blockElements[n.DataAtom] {
		b.WriteString("\n\n")
	}
}

// normalizeWhitespace trims every line and collapses runs of blank lines
// into single paragraph breaks.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")

	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, "\n"))
			current = nil
		}
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return strings.Join(paragraphs, "\n\n")
}
