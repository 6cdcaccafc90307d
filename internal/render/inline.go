package render

import (
	"net/url"
	"strings"

	"github.com/dgallion1/docsplit/internal/block"
)

// text writes the inline rendering of t followed by a newline. A nil text
// yields just the newline.
func (r *Renderer) text(sb *strings.Builder, t *block.Text) {
	if t != nil {
		inline := len(t.Elements) > 1
		for i := range t.Elements {
			r.element(sb, &t.Elements[i], inline)
		}
	}
	sb.WriteString("\n")
}

func (r *Renderer) element(sb *strings.Builder, e *block.Element, inline bool) {
	switch {
	case e.TextRun != nil:
		r.textRun(sb, e.TextRun)
	case e.MentionUser != nil:
		sb.WriteString(e.MentionUser.UserID)
	case e.MentionDoc != nil:
		sb.WriteString("[")
		sb.WriteString(e.MentionDoc.Title)
		sb.WriteString("(")
		sb.WriteString(unescape(e.MentionDoc.URL))
		sb.WriteString(")]")
	case e.Equation != nil:
		sym := "$$"
		if inline {
			sym = "$"
		}
		sb.WriteString(sym)
		sb.WriteString(strings.TrimPrefix(e.Equation.Content, "\n"))
		sb.WriteString(sym)
	}
}

// textRun applies at most one style, in the order bold, italic,
// strikethrough, underline, inline code, link.
func (r *Renderer) textRun(sb *strings.Builder, run *block.TextRun) {
	var pre, post string
	if s := run.Style; s != nil {
		switch {
		case s.Bold:
			pre, post = r.pair("<strong>", "</strong>", "**")
		case s.Italic:
			pre, post = r.pair("<em>", "</em>", "_")
		case s.Strikethrough:
			pre, post = r.pair("<del>", "</del>", "~~")
		case s.Underline:
			pre, post = "<u>", "</u>"
		case s.InlineCode:
			pre, post = "`", "`"
		case s.Link != nil:
			pre, post = "[", "]("+unescape(s.Link.URL)+")"
		}
	}
	sb.WriteString(pre)
	sb.WriteString(run.Content)
	sb.WriteString(post)
}

func (r *Renderer) pair(htmlOpen, htmlClose, marker string) (string, string) {
	if r.opts.UseHTMLTags {
		return htmlOpen, htmlClose
	}
	return marker, marker
}

// unescape percent-decodes s, returning it unchanged when it is not a
// valid escape sequence.
func unescape(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}
