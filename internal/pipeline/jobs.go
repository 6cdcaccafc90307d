package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of an import job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusFetching   JobStatus = "fetching"
	StatusParsing    JobStatus = "parsing"
	StatusRendering  JobStatus = "rendering"
	StatusChunking   JobStatus = "chunking"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Source says where a job's document comes from.
type Source string

const (
	SourceUpload Source = "upload"
	SourceLark   Source = "lark"
)

// Job tracks the state of a single document import.
type Job struct {
	mu sync.Mutex

	ID     string `json:"job_id"`
	Source Source `json:"source"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename,omitempty"`
	URL      string    `json:"url,omitempty"`
	Title    string    `json:"title"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	markdown string
	chunks   []string
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalChunks int      `json:"total_chunks"`
	Tokens      int      `json:"tokens"`
	Errors      []string `json:"errors"`
}

// NewUploadJob creates a queued job for an uploaded file.
func NewUploadJob(filename string, data []byte) *Job {
	j := newJob(SourceUpload)
	j.Filename = filename
	j.fileData = data
	return j
}

// NewLarkJob creates a queued job for a Lark document link.
func NewLarkJob(link string) *Job {
	j := newJob(SourceLark)
	j.URL = link
	return j
}

func newJob(src Source) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Source:    src,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// FindCompleted returns a completed job other than excludeID whose content
// hash matches, or nil.
func (s *JobStore) FindCompleted(hash, excludeID string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		if id == excludeID {
			continue
		}
		job.mu.Lock()
		match := job.Status == StatusCompleted && job.ContentHash == hash
		job.mu.Unlock()
		if match {
			return job
		}
	}
	return nil
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetTitle records the document title.
func (j *Job) SetTitle(title string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Title = title
	j.UpdatedAt = time.Now()
}

// SetContentHash records the hash of the parsed content.
func (j *Job) SetContentHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = h
}

// SetResult stores the rendered Markdown and chunks.
func (j *Job) SetResult(markdown string, chunks []string, tokens int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.markdown = markdown
	j.chunks = chunks
	j.Progress.TotalChunks = len(chunks)
	j.Progress.Tokens = tokens
	j.UpdatedAt = time.Now()
}

// MarkDuplicate copies the result of an earlier job with the same content.
// The caller sets the final status.
func (j *Job) MarkDuplicate(of *Job) {
	markdown, chunks := of.Result()
	of.mu.Lock()
	tokens := of.Progress.Tokens
	of.mu.Unlock()

	j.SetResult(markdown, chunks, tokens)
	j.mu.Lock()
	j.DuplicateOf = of.ID
	j.mu.Unlock()
}

// Result returns the rendered Markdown and chunks.
func (j *Job) Result() (string, []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.markdown, j.chunks
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// releaseInput drops the upload once it has been parsed.
func (j *Job) releaseInput() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Source      Source    `json:"source"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename,omitempty"`
	URL         string    `json:"url,omitempty"`
	Title       string    `json:"title"`
	ContentHash string    `json:"content_hash,omitempty"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
	Progress    Progress  `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	return JobSnapshot{
		ID:          j.ID,
		Source:      j.Source,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		URL:         j.URL,
		Title:       j.Title,
		ContentHash: j.ContentHash,
		DuplicateOf: j.DuplicateOf,
		Progress: Progress{
			TotalChunks: j.Progress.TotalChunks,
			Tokens:      j.Progress.Tokens,
			Errors:      errs,
		},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// Done reports whether the job reached a final state.
func (s JobSnapshot) Done() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed || s.Status == StatusDupSkipped
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
