package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docsplit/internal/doctree"
)

var ErrUnsupportedFormat = errors.New("unsupported file extension")

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// Options tunes parser construction.
type Options struct {
	PDFFallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// baseTitle strips the extension from a filename.
func baseTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// builder assembles a flat body of headings and paragraphs together with
// the matching Markdown.
type builder struct {
	root *doctree.Node
	md   strings.Builder
}

func newBuilder() *builder {
	return &builder{root: &doctree.Node{Tag: "body"}}
}

func (b *builder) heading(level int, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	level = min(max(level, 1), 6)
	b.root.Children = append(b.root.Children, &doctree.Node{Tag: fmt.Sprintf("h%d", level), Text: text})
	b.md.WriteString(strings.Repeat("#", level))
	b.md.WriteString(" ")
	b.md.WriteString(text)
	b.md.WriteString("\n\n")
}

func (b *builder) paragraph(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.root.Children = append(b.root.Children, &doctree.Node{Tag: "p", Text: text})
	b.md.WriteString(text)
	b.md.WriteString("\n\n")
}

func (b *builder) document(title string) *doctree.Document {
	md := strings.TrimSpace(b.md.String())
	if md != "" {
		md += "\n"
	}
	return &doctree.Document{Title: title, Markdown: md, Root: b.root}
}
