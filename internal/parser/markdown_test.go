package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/docsplit/internal/doctree"
)

func tags(n *doctree.Node) []string {
	var out []string
	for _, c := range n.Children {
		out = append(out, c.Tag)
	}
	return out
}

func TestMarkdownParser_BlockStructure(t *testing.T) {
	input := `# Title

Intro text.

## Section A

- one
- two

` + "```go\nfmt.Println(1)\n```\n"

	doc, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Title" {
		t.Errorf("expected title %q, got %q", "Title", doc.Title)
	}
	if doc.Markdown != input {
		t.Errorf("markdown should be the source unchanged")
	}

	got := strings.Join(tags(doc.Root), ",")
	if got != "h1,p,h2,ul,pre" {
		t.Fatalf("unexpected body structure %q", got)
	}
	if doc.Root.Children[4].Text != "fmt.Println(1)\n" {
		t.Errorf("code block text = %q", doc.Root.Children[4].Text)
	}
}

func TestMarkdownParser_TitleFallsBackToFilename(t *testing.T) {
	doc, err := (&MarkdownParser{}).Parse(strings.NewReader("Just text.\n\n## Not a title\n"), "notes/plain.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "plain" {
		t.Errorf("expected title %q, got %q", "plain", doc.Title)
	}
}

func TestHTMLParser_StripsChromeAndConverts(t *testing.T) {
	input := `<html><head><title>Page Title</title><style>p{}</style></head>
<body><nav>menu</nav><h1>Heading</h1><p>Body <b>bold</b> text.</p><script>evil()</script><footer>foot</footer></body></html>`

	doc, err := (&HTMLParser{}).Parse(strings.NewReader(input), "page.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Page Title" {
		t.Errorf("expected title %q, got %q", "Page Title", doc.Title)
	}
	if got := strings.Join(tags(doc.Root), ","); got != "h1,p" {
		t.Errorf("unexpected body structure %q", got)
	}
	if doc.Root.Children[1].Text != "Body bold text." {
		t.Errorf("paragraph text = %q", doc.Root.Children[1].Text)
	}
	if !strings.Contains(doc.Markdown, "# Heading") || !strings.Contains(doc.Markdown, "**bold**") {
		t.Errorf("markdown missing converted content: %q", doc.Markdown)
	}
	for _, unwanted := range []string{"menu", "evil", "foot"} {
		if strings.Contains(doc.Markdown, unwanted) || strings.Contains(doc.Root.TextContent(), unwanted) {
			t.Errorf("%q should have been stripped", unwanted)
		}
	}
}

func TestForFile(t *testing.T) {
	for _, name := range []string{"a.txt", "a.md", "a.MARKDOWN", "a.csv", "a.html", "a.htm", "a.pdf", "a.docx"} {
		if _, err := ForFile(name, Options{}); err != nil {
			t.Errorf("ForFile(%q): %v", name, err)
		}
		if !IsSupportedExtension(name) {
			t.Errorf("IsSupportedExtension(%q) = false", name)
		}
	}
	if _, err := ForFile("a.exe", Options{}); err == nil {
		t.Error("expected error for .exe")
	}
}
