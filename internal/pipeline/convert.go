package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dgallion1/docsplit/internal/block"
	"github.com/dgallion1/docsplit/internal/chunker"
	"github.com/dgallion1/docsplit/internal/doctree"
	"github.com/dgallion1/docsplit/internal/lark"
	"github.com/dgallion1/docsplit/internal/metrics"
	"github.com/dgallion1/docsplit/internal/parser"
	"github.com/dgallion1/docsplit/internal/render"
)

// ErrLarkDisabled is returned by Lark operations when no app credentials
// are configured.
var ErrLarkDisabled = errors.New("lark integration is not configured")

// previewChunks is how many chunks an Estimate carries.
const previewChunks = 5

// Fetcher downloads a Lark document by link.
type Fetcher interface {
	Fetch(ctx context.Context, link string) (*lark.Source, error)
}

// ConverterOptions configures a Converter.
type ConverterOptions struct {
	Render render.Options
	// Strict fails a render on the first block type without a Markdown form.
	Strict bool
	Chunk  chunker.Config
	Parser parser.Options
}

// Converter turns block trees, Lark links and uploaded files into Markdown
// and chunks. It is safe for concurrent use.
type Converter struct {
	fetcher   Fetcher
	renderer  *render.Renderer
	chunkCfg  chunker.Config
	parseOpts parser.Options
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewConverter builds a Converter. fetcher and m may be nil.
func NewConverter(fetcher Fetcher, opts ConverterOptions, m *metrics.Metrics, log zerolog.Logger) *Converter {
	c := &Converter{
		fetcher:   fetcher,
		chunkCfg:  opts.Chunk,
		parseOpts: opts.Parser,
		metrics:   m,
		log:       log,
	}
	ropts := opts.Render
	ropts.OnUnsupported = c.onUnsupported(opts.Strict)
	c.renderer = render.New(ropts)
	return c
}

// ChunkConfig returns the chunking thresholds in use.
func (c *Converter) ChunkConfig() chunker.Config {
	return c.chunkCfg
}

func (c *Converter) onUnsupported(strict bool) render.UnsupportedFunc {
	return func(b *block.Block) error {
		c.log.Warn().Str("block_id", b.ID).Str("block_type", b.Type.String()).Msg("unsupported block rendered as empty")
		if c.metrics != nil {
			c.metrics.UnsupportedBlocks.WithLabelValues(b.Type.String()).Inc()
		}
		if strict {
			return fmt.Errorf("%w: %s (%s)", render.ErrUnsupported, b.ID, b.Type)
		}
		return nil
	}
}

// RenderBlocks renders a flat block list to Markdown. An empty rootID
// renders from the page block.
func (c *Converter) RenderBlocks(blocks []block.Block, rootID string) (string, error) {
	out, err := c.renderBlocks(blocks, rootID)
	if c.metrics != nil {
		c.metrics.RecordRender(err)
	}
	return out, err
}

func (c *Converter) renderBlocks(blocks []block.Block, rootID string) (string, error) {
	m, err := block.NewMap(blocks)
	if err != nil {
		return "", err
	}
	if err := m.Validate(); err != nil {
		return "", err
	}
	if rootID == "" {
		return c.renderer.Document(m)
	}
	return c.renderer.Render(m, rootID, 0)
}

// Fetch downloads a Lark document.
func (c *Converter) Fetch(ctx context.Context, link string) (*lark.Source, error) {
	if c.fetcher == nil {
		return nil, ErrLarkDisabled
	}
	return c.fetcher.Fetch(ctx, link)
}

// SourceMarkdown renders a fetched document from its page block. Legacy
// documents already carry their content as text.
func (c *Converter) SourceMarkdown(src *lark.Source) (string, error) {
	if src.Type == lark.TypeDoc {
		return src.RawContent, nil
	}
	return c.RenderBlocks(src.Blocks, src.DocumentID)
}

// FetchMarkdown downloads a Lark document and renders it.
func (c *Converter) FetchMarkdown(ctx context.Context, link string) (*doctree.Document, error) {
	src, err := c.Fetch(ctx, link)
	if err != nil {
		return nil, err
	}
	markdown, err := c.SourceMarkdown(src)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", src.DocumentID, err)
	}
	return MarkdownDocument(src.Title, markdown)
}

// MarkdownDocument builds a Document from rendered Markdown.
func MarkdownDocument(title, markdown string) (*doctree.Document, error) {
	root, err := doctree.FromMarkdown([]byte(markdown))
	if err != nil {
		return nil, err
	}
	return &doctree.Document{Title: title, Markdown: markdown, Root: root}, nil
}

// ParseFile parses an uploaded file by its extension.
func (c *Converter) ParseFile(data []byte, filename string) (*doctree.Document, error) {
	p, err := parser.ForFile(filename, c.parseOpts)
	if err != nil {
		return nil, err
	}
	return p.Parse(bytes.NewReader(data), filename)
}

// ChunkDocument splits a parsed document into chunks.
func (c *Converter) ChunkDocument(doc *doctree.Document) ([]string, error) {
	return c.chunkTree(doc.Root, c.chunkCfg)
}

// ChunkMarkdown splits Markdown text into chunks.
func (c *Converter) ChunkMarkdown(markdown string) ([]string, error) {
	return c.ChunkMarkdownWith(markdown, c.chunkCfg)
}

// ChunkMarkdownWith is ChunkMarkdown with caller-supplied thresholds.
func (c *Converter) ChunkMarkdownWith(markdown string, cfg chunker.Config) ([]string, error) {
	doc, err := MarkdownDocument("", markdown)
	if err != nil {
		return nil, err
	}
	return c.chunkTree(doc.Root, cfg)
}

func (c *Converter) chunkTree(root *doctree.Node, cfg chunker.Config) ([]string, error) {
	chunks, err := chunker.ChunkTree(root, cfg)
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.ChunksPerDocument.Observe(float64(len(chunks)))
	}
	return chunks, nil
}

// Estimate summarizes what indexing a set of chunks would produce.
type Estimate struct {
	TotalChunks int      `json:"total_chunks"`
	Tokens      int      `json:"tokens"`
	Preview     []string `json:"preview"`
}

func (c *Converter) Estimate(chunks []string) Estimate {
	preview := chunks[:min(len(chunks), previewChunks)]
	return Estimate{
		TotalChunks: len(chunks),
		Tokens:      chunker.EstimateTotal(chunks),
		Preview:     append([]string{}, preview...),
	}
}
