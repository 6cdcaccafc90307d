package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dgallion1/docsplit/internal/metrics"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("pipeline is stopped")
)

const cleanupInterval = 5 * time.Minute

// Config sizes the worker pool.
type Config struct {
	Workers   int
	QueueSize int
	JobTTL    time.Duration
}

// Orchestrator runs import jobs on a fixed pool of workers.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	conv    *Converter
	stats   *LatencyStats
	metrics *metrics.Metrics
	log     zerolog.Logger
	cfg     Config

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg Config, conv *Converter, m *metrics.Metrics, log zerolog.Logger) *Orchestrator {
	cfg.Workers = max(cfg.Workers, 1)
	cfg.QueueSize = max(cfg.QueueSize, 1)
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.QueueSize),
		conv:    conv,
		stats:   NewLatencyStats(cfg.JobTTL),
		metrics: m,
		log:     log,
		cfg:     cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := range o.cfg.Workers {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.conv, o.jobs, o.stats, o.metrics, o.log.With().Int("worker", i).Logger())
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.observeQueue()
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
	o.log.Info().Int("workers", o.cfg.Workers).Int("queue_size", o.cfg.QueueSize).Msg("pipeline started")
}

// Stop cancels running jobs and waits for workers to exit.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit queues a job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		return ErrStopped
	}

	o.jobs.Put(job)
	select {
	case o.queue <- job:
		o.observeQueue()
		return nil
	default:
		job.AddError("queue full")
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.QueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Converter returns the converter used by workers, for synchronous callers.
func (o *Orchestrator) Converter() *Converter {
	return o.conv
}

// Stats is the pipeline summary reported by the stats endpoint.
type Stats struct {
	Workers    int             `json:"workers"`
	QueueDepth int             `json:"queue_depth"`
	QueueSize  int             `json:"queue_size"`
	Jobs       int             `json:"jobs"`
	Latency    LatencySnapshot `json:"latency"`
}

func (o *Orchestrator) Stats() Stats {
	return Stats{
		Workers:    o.cfg.Workers,
		QueueDepth: o.QueueDepth(),
		QueueSize:  o.cfg.QueueSize,
		Jobs:       o.jobs.Len(),
		Latency:    o.stats.Snapshot(),
	}
}

func (o *Orchestrator) observeQueue() {
	if o.metrics != nil {
		o.metrics.QueueDepth.Set(float64(len(o.queue)))
	}
}
