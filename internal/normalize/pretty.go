package normalize

import (
	"strings"

	"golang.org/x/net/html"
)

// Elements whose content is emitted exactly as parsed
var verbatimElements = map[string]bool{
	"pre":       true,
	"code":      true,
	"li":        true,
	"textarea":  true,
	"script":    true,
	"style":     true,
	"noscript":  true,
	"iframe":    true,
	"noembed":   true,
	"noframes":  true,
	"xmp":       true,
	"plaintext": true,
	"template":  true,
}

var inlineElements = map[string]bool{
	"a": true, "abbr": true, "b": true, "bdi": true, "bdo": true, "br": true,
	"cite": true, "code": true, "data": true, "dfn": true, "em": true, "font": true,
	"i": true, "img": true, "input": true, "kbd": true, "label": true, "mark": true,
	"q": true, "s": true, "samp": true, "small": true, "span": true, "strike": true,
	"strong": true, "sub": true, "sup": true, "textarea": true, "time": true, "tt": true,
	"u": true, "var": true, "wbr": true,
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "keygen": true, "link": true, "meta": true, "param": true,
	"source": true, "track": true, "wbr": true,
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", `"`, "&quot;")
)

// Pretty renders the tree rooted at root with one block node per line.
// Inline-only elements stay on a single line with collapsed whitespace and
// verbatim elements keep their content byte for byte.
func Pretty(root *html.Node, indent string) string {
	p := &printer{indent: indent}
	p.node(root, 0)
	return p.b.String()
}

type printer struct {
	b      strings.Builder
	indent string
}

func (p *printer) line(depth int, s string) {
	for i := 0; i < depth; i++ {
		p.b.WriteString(p.indent)
	}
	p.b.WriteString(s)
	p.b.WriteByte('\n')
}

func (p *printer) node(n *html.Node, depth int) {
	switch n.Type {
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			p.node(c, depth)
		}
	case html.DoctypeNode:
		p.line(depth, render(n))
	case html.CommentNode:
		p.line(depth, "<!--"+n.Data+"-->")
	case html.TextNode:
		if text := trimSpace(collapseSpace(n.Data)); text != "" {
			p.line(depth, textEscaper.Replace(text))
		}
	case html.ElementNode:
		p.element(n, depth)
	}
}

func (p *printer) element(n *html.Node, depth int) {
	if isVerbatim(n) {
		p.line(depth, render(n))
		return
	}

	start := startTag(n)
	switch {
	case isVoid(n):
		p.line(depth, start)
	case n.FirstChild == nil:
		p.line(depth, start+endTag(n))
	case hasInlineContent(n):
		p.line(depth, start+trimSpace(inlineChildren(n))+endTag(n))
	default:
		p.line(depth, start)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			p.node(c, depth+1)
		}
		p.line(depth, endTag(n))
	}
}

// hasInlineContent reports whether every descendant of n can share one line
func hasInlineContent(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
		case html.ElementNode:
			if c.Namespace != "" || !inlineElements[c.Data] {
				return false
			}
			if !isVerbatim(c) && !hasInlineContent(c) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func inlineChildren(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			b.WriteString(textEscaper.Replace(collapseSpace(c.Data)))
		case isVerbatim(c):
			b.WriteString(render(c))
		case isVoid(c):
			b.WriteString(startTag(c))
		default:
			b.WriteString(startTag(c))
			b.WriteString(inlineChildren(c))
			b.WriteString(endTag(c))
		}
	}
	return b.String()
}

func isVerbatim(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Namespace == "" && verbatimElements[n.Data]
}

func isVoid(n *html.Node) bool {
	return n.Namespace == "" && voidElements[n.Data]
}

func startTag(n *html.Node) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(n.Data)
	for _, a := range n.Attr {
		b.WriteByte(' ')
		if a.Namespace != "" {
			b.WriteString(a.Namespace)
			b.WriteByte(':')
		}
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(attrEscaper.Replace(a.Val))
		b.WriteByte('"')
	}
	b.WriteByte('>')
	return b.String()
}

func endTag(n *html.Node) string {
	return "</" + n.Data + ">"
}

func render(n *html.Node) string {
	var b strings.Builder
	// strings.Builder never fails
	_ = html.Render(&b, n)
	return b.String()
}

// collapseSpace folds runs of HTML whitespace into one space. Non-breaking spaces are content.
func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for i := 0; i < len(s); i++ {
		if isSpace(s[i]) {
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteByte(s[i])
	}
	return b.String()
}

func trimSpace(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r < 0x80 && isSpace(byte(r))
	})
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}
