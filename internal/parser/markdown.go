package parser

import (
	"io"

	"github.com/dgallion1/docsplit/internal/doctree"
)

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	root, err := doctree.FromMarkdown(src)
	if err != nil {
		return nil, err
	}

	// The first level-one heading names the document.
	title := baseTitle(filename)
	for _, c := range root.Children {
		if c.Tag == "h1" && c.TextContent() != "" {
			title = c.TextContent()
			break
		}
	}

	return &doctree.Document{Title: title, Markdown: string(src), Root: root}, nil
}
