package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dgallion1/docsplit/internal/chunker"
	"github.com/dgallion1/docsplit/internal/doctree"
	"github.com/dgallion1/docsplit/internal/metrics"
)

// Worker processes a single import job.
type Worker struct {
	conv    *Converter
	jobs    *JobStore
	stats   *LatencyStats
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewWorker(conv *Converter, jobs *JobStore, stats *LatencyStats, m *metrics.Metrics, log zerolog.Logger) *Worker {
	return &Worker{
		conv:    conv,
		jobs:    jobs,
		stats:   stats,
		metrics: m,
		log:     log,
	}
}

// Process runs the import pipeline for a job: load, dedup, chunk. The
// final status is published after metrics are recorded.
func (w *Worker) Process(ctx context.Context, job *Job) {
	start := time.Now()
	log := w.log.With().Str("job_id", job.ID).Str("source", string(job.Source)).Logger()

	status, phase := w.run(ctx, job, log)

	elapsed := time.Since(start)
	if w.stats != nil {
		w.stats.Record(elapsed, status == StatusFailed)
	}
	if w.metrics != nil {
		w.metrics.RecordJob(string(job.Source), string(status), elapsed)
	}
	job.SetStatus(status, phase)
	log.Info().Str("status", string(status)).Dur("elapsed", elapsed).Msg("job finished")
}

func (w *Worker) run(ctx context.Context, job *Job, log zerolog.Logger) (JobStatus, string) {
	fail := func(phase string, err error) (JobStatus, string) {
		log.Error().Err(err).Str("phase", phase).Msg("job failed")
		job.AddError(fmt.Sprintf("%s: %s", phase, err))
		return StatusFailed, phase
	}

	// Phase 1: load the document.
	var doc *doctree.Document
	switch job.Source {
	case SourceLark:
		job.SetStatus(StatusFetching, "fetching")
		src, err := w.conv.Fetch(ctx, job.URL)
		if err != nil {
			return fail("fetching", err)
		}
		job.SetStatus(StatusRendering, "rendering")
		markdown, err := w.conv.SourceMarkdown(src)
		if err != nil {
			return fail("rendering", err)
		}
		if doc, err = MarkdownDocument(src.Title, markdown); err != nil {
			return fail("rendering", err)
		}
	case SourceUpload:
		job.SetStatus(StatusParsing, "parsing")
		var err error
		doc, err = w.conv.ParseFile(job.FileData(), job.Filename)
		job.releaseInput()
		if err != nil {
			return fail("parsing", err)
		}
	default:
		return fail("queued", fmt.Errorf("unknown source %q", job.Source))
	}
	if err := ctx.Err(); err != nil {
		return fail(job.Snapshot().Phase, err)
	}
	job.SetTitle(doc.Title)

	// Phase 2: skip content that an earlier job already chunked.
	hash := ContentHashHex([]byte(doc.Root.TextContent()))
	job.SetContentHash(hash)
	if prev := w.jobs.FindCompleted(hash, job.ID); prev != nil {
		log.Info().Str("duplicate_of", prev.ID).Msg("duplicate document, reusing chunks")
		job.MarkDuplicate(prev)
		return StatusDupSkipped, "dedup"
	}

	// Phase 3: chunk.
	job.SetStatus(StatusChunking, "chunking")
	chunks, err := w.conv.ChunkDocument(doc)
	if err != nil {
		return fail("chunking", err)
	}
	if len(chunks) == 0 {
		log.Warn().Msg("no chunks produced")
		job.AddError("no extractable content")
		return StatusFailed, "chunking"
	}
	tokens := chunker.EstimateTotal(chunks)
	log.Info().Int("chunks", len(chunks)).Int("tokens", tokens).Msg("chunked document")

	job.SetResult(doc.Markdown, chunks, tokens)
	return StatusCompleted, "done"
}
