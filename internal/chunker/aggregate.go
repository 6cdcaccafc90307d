package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docsplit/internal/doctree"
)

var (
	ErrTooDeep      = errors.New("document too deeply nested")
	ErrTooManyNodes = errors.New("document has too many nodes")
)

// Aggregator walks a DOM depth-first, splitting oversized text and packing
// small sibling fragments together.
type Aggregator struct {
	splitter  *LeafSplitter
	chunkSize int
	maxDepth  int
	maxNodes  int
}

func NewAggregator(cfg Config) *Aggregator {
	cfg = cfg.normalized()
	return &Aggregator{
		splitter:  NewLeafSplitter(cfg.ChunkSize, cfg.LeafOverlap),
		chunkSize: cfg.ChunkSize,
		maxDepth:  cfg.MaxDepth,
		maxNodes:  cfg.MaxNodes,
	}
}

// Aggregate returns the chunks of the subtree rooted at node in document
// order.
func (a *Aggregator) Aggregate(node *doctree.Node) ([]string, error) {
	if node == nil {
		return nil, nil
	}
	visited := 0
	return a.walk(node, 0, &visited)
}

func (a *Aggregator) walk(n *doctree.Node, depth int, visited *int) ([]string, error) {
	if depth > a.maxDepth {
		return nil, fmt.Errorf("%w: depth %d exceeds %d", ErrTooDeep, depth, a.maxDepth)
	}
	*visited++
	if *visited > a.maxNodes {
		return nil, fmt.Errorf("%w: more than %d", ErrTooManyNodes, a.maxNodes)
	}

	var out []string
	buf := pending{limit: a.chunkSize}
	buf.add(&out, a.splitter.Split(n.Text))
	for _, c := range n.Children {
		cs, err := a.walk(c, depth+1, visited)
		if err != nil {
			return nil, err
		}
		buf.add(&out, cs)
	}
	buf.flush(&out)
	return out, nil
}

// pending accumulates single-chunk results until they outgrow the limit. A
// chunk already over the limit is never packed with its neighbours.
type pending struct {
	sb     strings.Builder
	length int
	limit  int
}

func (p *pending) add(out *[]string, chunks []string) {
	switch len(chunks) {
	case 0:
		return
	case 1:
		if utf8.RuneCountInString(chunks[0]) > p.limit {
			p.flush(out)
			*out = append(*out, chunks[0])
			return
		}
		if p.sb.Len() > 0 {
			p.sb.WriteByte(' ')
		}
		p.sb.WriteString(chunks[0])
		p.length += utf8.RuneCountInString(chunks[0])
		if p.length > p.limit {
			p.flush(out)
		}
	default:
		p.flush(out)
		*out = append(*out, chunks...)
	}
}

func (p *pending) flush(out *[]string) {
	if p.sb.Len() == 0 {
		return
	}
	*out = append(*out, p.sb.String())
	p.sb.Reset()
	p.length = 0
}
