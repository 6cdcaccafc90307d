package chunker

import (
	"github.com/dgallion1/docsplit/internal/doctree"
)

const (
	DefaultChunkSize      = 150
	DefaultLeafOverlap    = 20
	DefaultMergeThreshold = 20
	DefaultMergeRatio     = 2.0
	DefaultMaxDepth       = 256
	DefaultMaxNodes       = 200000
)

// Config controls chunking behavior. Lengths are in code points.
type Config struct {
	ChunkSize      int     // Longest leaf piece, and the packing limit for sibling fragments.
	LeafOverlap    int     // Overlap between consecutive leaf pieces.
	MergeThreshold int     // Chunks shorter than this may be folded into the next one.
	MergeRatio     float64 // Successor must be more than this many times longer.
	MaxDepth       int
	MaxNodes       int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ChunkSize:      DefaultChunkSize,
		LeafOverlap:    DefaultLeafOverlap,
		MergeThreshold: DefaultMergeThreshold,
		MergeRatio:     DefaultMergeRatio,
		MaxDepth:       DefaultMaxDepth,
		MaxNodes:       DefaultMaxNodes,
	}
}

func (c Config) normalized() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.LeafOverlap < 0 {
		c.LeafOverlap = DefaultLeafOverlap
	}
	if c.MergeThreshold < 0 {
		c.MergeThreshold = DefaultMergeThreshold
	}
	if c.MergeRatio <= 0 {
		c.MergeRatio = DefaultMergeRatio
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.MaxNodes <= 0 {
		c.MaxNodes = DefaultMaxNodes
	}
	return c
}

// ChunkTree aggregates the DOM and then folds short chunks into their
// successors.
func ChunkTree(root *doctree.Node, cfg Config) ([]string, error) {
	cfg = cfg.normalized()
	chunks, err := NewAggregator(cfg).Aggregate(root)
	if err != nil {
		return nil, err
	}
	return MergeShort(chunks, cfg.MergeThreshold, cfg.MergeRatio), nil
}

// ChunkMarkdown renders Markdown to a DOM and chunks it.
func ChunkMarkdown(src string, cfg Config) ([]string, error) {
	root, err := doctree.FromMarkdown([]byte(src))
	if err != nil {
		return nil, err
	}
	return ChunkTree(root, cfg)
}
