package parser

import (
	"fmt"
	"io"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/dgallion1/docsplit/internal/doctree"
)

// HTMLParser handles HTML files.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = baseTitle(filename)
	}

	// Skip non-content elements.
	doc.Find("script, style, noscript, nav, footer, header").Remove()

	body := doc.Find("body").First()
	if body.Length() == 0 {
		body = doc.Selection
	}

	converter := md.NewConverter("", true, nil)
	markdown := converter.Convert(body)

	return &doctree.Document{
		Title:    title,
		Markdown: strings.TrimSpace(markdown) + "\n",
		Root:     doctree.FromHTMLNode(body.Nodes[0]),
	}, nil
}
