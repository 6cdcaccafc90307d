// Command docsplit renders Lark documents to Markdown and splits documents
// into retrieval chunks from the command line.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgallion1/docsplit/internal/block"
	"github.com/dgallion1/docsplit/internal/chunker"
	"github.com/dgallion1/docsplit/internal/config"
	"github.com/dgallion1/docsplit/internal/doctree"
	"github.com/dgallion1/docsplit/internal/lark"
	"github.com/dgallion1/docsplit/internal/logger"
	"github.com/dgallion1/docsplit/internal/pipeline"
)

var (
	configFile     string
	logLevel       string
	chunkSize      int
	leafOverlap    int
	mergeThreshold int
	mergeRatio     float64
	htmlTags       bool
	strict         bool
	pretty         bool
	asJSON         bool
	rootID         string
	splitFetched   bool
)

var rootCmd = &cobra.Command{
	Use:   "docsplit",
	Short: "Convert Lark documents to Markdown and split documents into chunks",
	Long: `docsplit renders Lark (Feishu) block trees to Markdown and splits Markdown,
HTML, text, CSV, PDF and DOCX files into chunks sized for retrieval indexes.

Settings come from the optional --config YAML file, a .env file and the
environment, in that order; flags override all of them.`,
	SilenceUsage: true,
}

var renderCmd = &cobra.Command{
	Use:   "render <blocks.json>",
	Short: "Render a Lark block list to Markdown",
	Long: `render reads a JSON block list, either a bare array, {"blocks": [...]}
or a Lark list-blocks response ({"data": {"items": [...]}}), and prints Markdown.
Use "-" to read standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var splitCmd = &cobra.Command{
	Use:   "split <file>",
	Short: "Split a document into chunks",
	Long: `split parses a file by its extension and prints its chunks. A .json file is
treated as a Lark block list and rendered first.`,
	Args: cobra.ExactArgs(1),
	RunE: runSplit,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch a Lark document and print it as Markdown",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file")
	pf.StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.IntVar(&chunkSize, "chunk-size", chunker.DefaultChunkSize, "Maximum leaf piece length in characters")
	pf.IntVar(&leafOverlap, "leaf-overlap", chunker.DefaultLeafOverlap, "Overlap between leaf pieces in characters")
	pf.IntVar(&mergeThreshold, "merge-threshold", chunker.DefaultMergeThreshold, "Chunks shorter than this may merge forward")
	pf.Float64Var(&mergeRatio, "merge-ratio", chunker.DefaultMergeRatio, "Successor must be this many times longer to absorb a short chunk")
	pf.BoolVar(&htmlTags, "html-tags", false, "Emit <strong>/<em>/<del> instead of Markdown emphasis")
	pf.BoolVar(&strict, "strict", false, "Fail on block types without a Markdown form")
	pf.BoolVar(&pretty, "pretty", false, "Render Markdown for the terminal when stdout is a TTY")
	pf.BoolVar(&asJSON, "json", false, "Print machine-readable JSON")

	renderCmd.Flags().StringVar(&rootID, "root", "", "Render only the subtree under this block id")
	fetchCmd.Flags().BoolVar(&splitFetched, "split", false, "Print chunks instead of Markdown")

	rootCmd.AddCommand(renderCmd, splitCmd, fetchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges the configuration sources with any flags set on cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("chunk-size") {
		cfg.Chunk.Size = chunkSize
	}
	if flags.Changed("leaf-overlap") {
		cfg.Chunk.LeafOverlap = leafOverlap
	}
	if flags.Changed("merge-threshold") {
		cfg.Chunk.MergeThreshold = mergeThreshold
	}
	if flags.Changed("merge-ratio") {
		cfg.Chunk.MergeRatio = mergeRatio
	}
	if flags.Changed("html-tags") {
		cfg.Render.UseHTMLTags = htmlTags
	}
	if flags.Changed("strict") {
		cfg.Render.Strict = strict
	}
	return cfg, cfg.Validate()
}

func newLogger() zerolog.Logger {
	return logger.New(logger.Config{Level: logLevel, Pretty: true, Output: os.Stderr})
}

func newConverter(cfg config.Config, fetcher pipeline.Fetcher, log zerolog.Logger) *pipeline.Converter {
	return pipeline.NewConverter(fetcher, pipeline.ConverterOptions{
		Render: cfg.RenderOptions(),
		Strict: cfg.Render.Strict,
		Chunk:  cfg.ChunkConfig(),
		Parser: cfg.ParserOptions(),
	}, nil, log)
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := readInput(args[0])
	if err != nil {
		return err
	}
	blocks, err := decodeBlocks(data)
	if err != nil {
		return err
	}
	markdown, err := newConverter(cfg, nil, newLogger()).RenderBlocks(blocks, rootID)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), map[string]string{"markdown": markdown})
	}
	return printMarkdown(cmd.OutOrStdout(), markdown)
}

func runSplit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	conv := newConverter(cfg, nil, newLogger())

	data, err := readInput(args[0])
	if err != nil {
		return err
	}
	var doc *doctree.Document
	if strings.EqualFold(filepath.Ext(args[0]), ".json") {
		blocks, err := decodeBlocks(data)
		if err != nil {
			return err
		}
		markdown, err := conv.RenderBlocks(blocks, "")
		if err != nil {
			return err
		}
		doc, err = pipeline.MarkdownDocument(filepath.Base(args[0]), markdown)
		if err != nil {
			return err
		}
	} else {
		doc, err = conv.ParseFile(data, args[0])
		if err != nil {
			return err
		}
	}

	chunks, err := conv.ChunkDocument(doc)
	if err != nil {
		return err
	}
	return printChunks(cmd.OutOrStdout(), conv, doc.Title, chunks)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.LarkEnabled() {
		return fmt.Errorf("%w: set LARK_APP_ID and LARK_APP_SECRET", pipeline.ErrLarkDisabled)
	}
	log := newLogger()
	client, err := lark.NewClient(lark.Config{
		AppID:       cfg.Lark.AppID,
		AppSecret:   cfg.Lark.AppSecret,
		BaseURL:     cfg.Lark.BaseURL,
		HostPattern: cfg.Lark.HostPattern,
	}, logger.Component(log, "lark"))
	if err != nil {
		return err
	}
	conv := newConverter(cfg, client, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	doc, err := conv.FetchMarkdown(ctx, args[0])
	if err != nil {
		return err
	}

	if splitFetched {
		chunks, err := conv.ChunkDocument(doc)
		if err != nil {
			return err
		}
		return printChunks(cmd.OutOrStdout(), conv, doc.Title, chunks)
	}
	if asJSON {
		return printJSON(cmd.OutOrStdout(), map[string]string{"title": doc.Title, "content": doc.Markdown})
	}
	return printMarkdown(cmd.OutOrStdout(), doc.Markdown)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// decodeBlocks accepts a bare block array, {"blocks": [...]}, or a Lark
// list-blocks response.
func decodeBlocks(data []byte) ([]block.Block, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var blocks []block.Block
		if err := json.Unmarshal(data, &blocks); err != nil {
			return nil, fmt.Errorf("decode blocks: %w", err)
		}
		return blocks, nil
	}
	var wrapped struct {
		Blocks []block.Block `json:"blocks"`
		Items  []block.Block `json:"items"`
		Data   struct {
			Items []block.Block `json:"items"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode blocks: %w", err)
	}
	for _, blocks := range [][]block.Block{wrapped.Blocks, wrapped.Items, wrapped.Data.Items} {
		if len(blocks) > 0 {
			return blocks, nil
		}
	}
	return nil, fmt.Errorf("no blocks found in input")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMarkdown(w io.Writer, markdown string) error {
	if pretty && term.IsTerminal(int(os.Stdout.Fd())) {
		width := 100
		if cols, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && cols > 0 {
			width = cols
		}
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
		if err == nil {
			if out, err := r.Render(markdown); err == nil {
				markdown = out
			}
		}
	}
	_, err := io.WriteString(w, markdown)
	return err
}

func printChunks(w io.Writer, conv *pipeline.Converter, title string, chunks []string) error {
	if asJSON {
		est := conv.Estimate(chunks)
		return printJSON(w, map[string]any{
			"title":        title,
			"chunks":       chunks,
			"total_chunks": est.TotalChunks,
			"tokens":       est.Tokens,
		})
	}
	for i, c := range chunks {
		if _, err := fmt.Fprintf(w, "--- chunk %d (%d chars, ~%d tokens) ---\n%s\n", i+1, len([]rune(c)), chunker.EstimateTokens(c), c); err != nil {
			return err
		}
	}
	return nil
}
