package doctree

import (
	"reflect"
	"strings"
	"testing"
)

func TestFromHTML_InlineFoldedIntoText(t *testing.T) {
	root, err := FromHTML(strings.NewReader(`<p>Hello <strong>bold</strong> and <a href="#">link</a> end</p>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if root.Tag != "body" {
		t.Errorf("expected root tag body, got %q", root.Tag)
	}
	if len(root.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(root.Children))
	}
	p := root.Children[0]
	if p.Tag != "p" {
		t.Errorf("expected tag p, got %q", p.Tag)
	}
	if p.Text != "Hello bold and link end" {
		t.Errorf("expected folded inline text, got %q", p.Text)
	}
	if len(p.Children) != 0 {
		t.Errorf("expected no children, got %d", len(p.Children))
	}
}

func TestFromHTML_BlockChildren(t *testing.T) {
	root, err := FromHTML(strings.NewReader(`<ul><li>one<ul><li>nested</li></ul></li><li>two</li></ul><script>x()</script>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(root.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(root.Children))
	}
	ul := root.Children[0]
	if len(ul.Children) != 2 {
		t.Fatalf("expected 2 list items, got %d", len(ul.Children))
	}
	if ul.Children[0].Text != "one" {
		t.Errorf("item 0: expected %q, got %q", "one", ul.Children[0].Text)
	}
	if len(ul.Children[0].Children) != 1 {
		t.Fatalf("expected nested list under item 0, got %d children", len(ul.Children[0].Children))
	}
	if got := ul.Children[0].Children[0].Children[0].Text; got != "nested" {
		t.Errorf("nested item: expected %q, got %q", "nested", got)
	}
	if ul.Children[1].Text != "two" {
		t.Errorf("item 1: expected %q, got %q", "two", ul.Children[1].Text)
	}
	if root.Len() != 6 {
		t.Errorf("expected 6 nodes, got %d", root.Len())
	}
}

func TestFromMarkdown(t *testing.T) {
	src := "# Title\n\nSome **bold** text.\n\n- a\n- b\n\n| A | B |\n| --- | --- |\n| 1 | 2 |\n"
	root, err := FromMarkdown([]byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var tags []string
	for _, c := range root.Children {
		tags = append(tags, c.Tag)
	}
	if want := []string{"h1", "p", "ul", "table"}; !reflect.DeepEqual(tags, want) {
		t.Fatalf("expected tags %q, got %q", want, tags)
	}
	if root.Children[0].Text != "Title" {
		t.Errorf("heading: expected %q, got %q", "Title", root.Children[0].Text)
	}
	if root.Children[1].Text != "Some bold text." {
		t.Errorf("paragraph: expected %q, got %q", "Some bold text.", root.Children[1].Text)
	}
}

func TestFromMarkdown_RawHTMLKept(t *testing.T) {
	root, err := FromMarkdown([]byte("plain <strong>x</strong> <u>y</u>\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(root.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(root.Children))
	}
	if got := root.Children[0].Text; got != "plain x y" {
		t.Errorf("expected %q, got %q", "plain x y", got)
	}
}

func TestTextContent(t *testing.T) {
	n := &Node{Tag: "div", Text: "  top ", Children: []*Node{
		{Tag: "p", Text: "first"},
		{Tag: "p", Text: "   "},
		{Tag: "p", Text: "second"},
	}}
	if got := n.TextContent(); got != "top\nfirst\nsecond" {
		t.Errorf("expected %q, got %q", "top\nfirst\nsecond", got)
	}
}
