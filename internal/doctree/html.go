package doctree

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
)

// Elements folded into their parent's text instead of becoming nodes.
var inlineTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "bdi": true, "bdo": true, "cite": true,
	"code": true, "data": true, "del": true, "dfn": true, "em": true, "i": true,
	"ins": true, "kbd": true, "mark": true, "q": true, "s": true, "samp": true,
	"small": true, "span": true, "strike": true, "strong": true, "sub": true,
	"sup": true, "time": true, "u": true, "var": true, "label": true, "font": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "head": true,
}

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

// MarkdownToHTML renders Markdown (GFM, raw HTML passed through) to HTML.
func MarkdownToHTML(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := md.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	return buf.Bytes(), nil
}

// FromMarkdown renders src to HTML and parses the result into a DOM.
func FromMarkdown(src []byte) (*Node, error) {
	h, err := MarkdownToHTML(src)
	if err != nil {
		return nil, err
	}
	return FromHTML(bytes.NewReader(h))
}

// FromHTML parses an HTML document or fragment and returns its body as a
// Node tree.
func FromHTML(r io.Reader) (*Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if body := FindElement(doc, "body"); body != nil {
		return FromHTMLNode(body), nil
	}
	return FromHTMLNode(doc), nil
}

// FromHTMLNode converts an x/net/html element and its descendants.
func FromHTMLNode(n *html.Node) *Node {
	out := &Node{Tag: n.Data}
	if n.Type == html.DocumentNode {
		out.Tag = "document"
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			sb.WriteString(c.Data)
		case html.ElementNode:
			switch {
			case skipTags[c.Data]:
			case c.Data == "br":
				sb.WriteString("\n")
			case inlineTags[c.Data]:
				inlineText(&sb, c)
			default:
				out.Children = append(out.Children, FromHTMLNode(c))
			}
		}
	}
	out.Text = sb.String()
	return out
}

func inlineText(sb *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			sb.WriteString(c.Data)
		case html.ElementNode:
			if c.Data == "br" {
				sb.WriteString("\n")
				continue
			}
			if !skipTags[c.Data] {
				inlineText(sb, c)
			}
		}
	}
}

// FindElement returns the first element with the given tag in document
// order, or nil.
func FindElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := FindElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
