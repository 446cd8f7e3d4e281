package browser

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// extractVisibleText walks an HTML document and collects the text a user
// would see, skipping script, style, and other non-rendered subtrees.
// Whitespace is collapsed and block-ish boundaries become newlines.
func extractVisibleText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "head", "iframe", "svg":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.Join(strings.Fields(n.Data), " ")
			if text != "" {
				if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlockElement(n.Data) {
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteByte('\n')
			}
		}
	}
	walk(doc)

	return strings.TrimSpace(b.String()), nil
}

func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "section", "article", "header", "footer", "li", "ul", "ol",
		"table", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "br", "form", "nav", "main":
		return true
	}
	return false
}
