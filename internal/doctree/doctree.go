package doctree

import "strings"

// Document is a parsed source ready for chunking.
type Document struct {
	Title    string // Document title (from metadata or filename)
	Markdown string // Markdown rendering of the source, for previews
	Root     *Node  // Block-level DOM
}

// Node is a block-level element. Text holds the element's own text in
// document order, inline descendants included; nested block elements are
// Children.
type Node struct {
	Tag      string
	Text     string
	Children []*Node
}

// Len returns the number of nodes in the subtree rooted at n.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += c.Len()
	}
	return total
}

// TextContent returns all text of the subtree, one node per line.
func (n *Node) TextContent() string {
	var sb strings.Builder
	n.writeText(&sb)
	return strings.TrimSpace(sb.String())
}

func (n *Node) writeText(sb *strings.Builder) {
	if n == nil {
		return
	}
	if t := strings.TrimSpace(n.Text); t != "" {
		sb.WriteString(t)
		sb.WriteString("\n")
	}
	for _, c := range n.Children {
		c.writeText(sb)
	}
}
