// Package render serializes a Lark block tree into Markdown.
package render

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgallion1/docsplit/internal/block"
)

// DefaultMaxDepth bounds block nesting. Real documents stay far below it.
const DefaultMaxDepth = 256

var (
	// ErrTooDeep is returned when nesting exceeds the renderer's MaxDepth.
	ErrTooDeep = errors.New("document too deeply nested")
	// ErrUnsupported is the conventional error for strict-mode hooks.
	ErrUnsupported = errors.New("unsupported block type")
)

// MissingBlockError reports an id that did not resolve in the block map.
type MissingBlockError struct {
	ID       string
	Referrer string
}

func (e *MissingBlockError) Error() string {
	if e.Referrer == "" {
		return fmt.Sprintf("block %q not found", e.ID)
	}
	return fmt.Sprintf("block %q referenced by %q not found", e.ID, e.Referrer)
}

func (e *MissingBlockError) Unwrap() error { return block.ErrMalformedReference }

// UnsupportedFunc is called for every block the renderer has no Markdown
// form for. A non-nil return aborts the render.
type UnsupportedFunc func(b *block.Block) error

// Options configures a Renderer.
type Options struct {
	// UseHTMLTags emits <strong>, <em> and <del> instead of Markdown
	// emphasis markers.
	UseHTMLTags bool
	// MaxDepth is the deepest nesting accepted; 0 means DefaultMaxDepth.
	MaxDepth int
	// OnUnsupported, when set, observes blocks rendered as empty.
	OnUnsupported UnsupportedFunc
}

// Renderer converts blocks to Markdown. It holds no per-document state and
// is safe for concurrent use.
type Renderer struct {
	opts Options
}

func New(opts Options) *Renderer {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Renderer{opts: opts}
}

// Document renders the whole map starting at its root block.
func (r *Renderer) Document(m *block.Map) (string, error) {
	root, ok := m.Root()
	if !ok {
		return "", fmt.Errorf("%w: no root block", block.ErrMalformedReference)
	}
	return r.Render(m, root, 0)
}

// Render returns the Markdown for the subtree rooted at rootID, indented by
// level tabs.
func (r *Renderer) Render(m *block.Map, rootID string, level int) (string, error) {
	b, ok := m.Get(rootID)
	if !ok {
		return "", &MissingBlockError{ID: rootID}
	}
	var sb strings.Builder
	if err := r.block(&sb, m, b, level, 0); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (r *Renderer) block(sb *strings.Builder, m *block.Map, b *block.Block, level, depth int) error {
	if depth > r.opts.MaxDepth {
		return fmt.Errorf("%w: block %s at depth %d", ErrTooDeep, b.ID, depth)
	}
	sb.WriteString(strings.Repeat("\t", level))

	switch t := b.Type; {
	case t == block.TypePage:
		sb.WriteString("# ")
		r.text(sb, b.Text)
		sb.WriteString("\n")
		return r.children(sb, m, b, 0, depth, "\n")
	case t == block.TypeText:
		r.text(sb, b.Text)
	case t.HeadingLevel() > 0:
		sb.WriteString(strings.Repeat("#", t.HeadingLevel()))
		sb.WriteString(" ")
		r.text(sb, b.Text)
	case t == block.TypeBullet:
		sb.WriteString("- ")
		r.text(sb, b.Text)
		return r.children(sb, m, b, level+1, depth, "")
	case t == block.TypeOrdered:
		n, err := orderedNumber(m, b)
		if err != nil {
			return err
		}
		sb.WriteString(strconv.Itoa(n))
		sb.WriteString(". ")
		r.text(sb, b.Text)
		return r.children(sb, m, b, level+1, depth, "")
	case t == block.TypeCode:
		var lang block.CodeLanguage
		if b.Text != nil {
			lang = b.Text.Style.Language
		}
		var code strings.Builder
		r.text(&code, b.Text)
		sb.WriteString("```")
		sb.WriteString(lang.Alias())
		sb.WriteString("\n")
		sb.WriteString(strings.TrimSpace(code.String()))
		sb.WriteString("\n```\n")
	case t == block.TypeQuote:
		sb.WriteString("> ")
		r.text(sb, b.Text)
	case t == block.TypeEquation:
		var eq strings.Builder
		r.text(&eq, b.Text)
		sb.WriteString("$$\n")
		sb.WriteString(strings.TrimSuffix(eq.String(), "\n"))
		sb.WriteString("\n$$\n")
	case t == block.TypeTodo:
		if b.Text != nil && b.Text.Style.Done {
			sb.WriteString("- [x] ")
		} else {
			sb.WriteString("- [ ] ")
		}
		r.text(sb, b.Text)
	case t == block.TypeDivider:
		sb.WriteString("---\n")
	case t == block.TypeImage:
		sb.WriteString("![](")
		if b.Image != nil {
			sb.WriteString(unescape(b.Image.Token))
		}
		sb.WriteString(")")
	case t == block.TypeTableCell:
		return r.children(sb, m, b, 0, depth, "")
	case t == block.TypeTable:
		return r.table(sb, m, b, depth)
	case t == block.TypeQuoteContainer, t == block.TypeCallout:
		for _, id := range b.Children {
			child, ok := m.Get(id)
			if !ok {
				return &MissingBlockError{ID: id, Referrer: b.ID}
			}
			sb.WriteString("> ")
			if err := r.block(sb, m, child, 0, depth+1); err != nil {
				return err
			}
		}
	default:
		if r.opts.OnUnsupported != nil {
			if err := r.opts.OnUnsupported(b); err != nil {
				return err
			}
		}
	}
	return nil
}

// children renders each child of b in order at the given level, writing
// sep after every child.
func (r *Renderer) children(sb *strings.Builder, m *block.Map, b *block.Block, level, depth int, sep string) error {
	for _, id := range b.Children {
		child, ok := m.Get(id)
		if !ok {
			return &MissingBlockError{ID: id, Referrer: b.ID}
		}
		if err := r.block(sb, m, child, level, depth+1); err != nil {
			return err
		}
		sb.WriteString(sep)
	}
	return nil
}

// orderedNumber counts the contiguous run of ordered siblings ending at b.
func orderedNumber(m *block.Map, b *block.Block) (int, error) {
	if b.ParentID == "" {
		return 1, nil
	}
	parent, ok := m.Get(b.ParentID)
	if !ok {
		return 0, &MissingBlockError{ID: b.ParentID, Referrer: b.ID}
	}
	pos := -1
	for i, id := range parent.Children {
		if id == b.ID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return 1, nil
	}
	n := 0
	for i := pos; i >= 0; i-- {
		sib, ok := m.Get(parent.Children[i])
		if !ok {
			return 0, &MissingBlockError{ID: parent.Children[i], Referrer: parent.ID}
		}
		if sib.Type != block.TypeOrdered {
			break
		}
		n++
	}
	return n, nil
}
