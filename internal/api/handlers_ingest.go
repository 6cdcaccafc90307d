package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docsplit/internal/parser"
	"github.com/dgallion1/docsplit/internal/pipeline"
)

const maxBatchFiles = 10

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.Pipeline.MaxUploadBytes
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > maxBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", maxBytes), http.StatusRequestEntityTooLarge)
		return
	}

	job := pipeline.NewUploadJob(filename, data)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, accepted(job))
}

func (s *Server) handleBatchIngest(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.Pipeline.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes*maxBatchFiles+10<<20)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	if len(files) > maxBatchFiles {
		jsonError(w, fmt.Sprintf("at most %d files per batch", maxBatchFiles), http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		data, err := readUpload(fh, filename, maxBytes)
		if err != nil {
			results = append(results, map[string]any{"filename": filename, "error": err.Error()})
			continue
		}

		job := pipeline.NewUploadJob(filename, data)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{"filename": filename, "error": err.Error()})
			continue
		}
		results = append(results, accepted(job))
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func readUpload(fh *multipart.FileHeader, filename string, maxBytes int64) ([]byte, error) {
	if !parser.IsSupportedExtension(filename) {
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil || int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("file too large or read error")
	}
	return data, nil
}

type larkIngestRequest struct {
	Link  string   `json:"link"`
	Links []string `json:"links"`
}

func (s *Server) handleLarkIngest(w http.ResponseWriter, r *http.Request) {
	var req larkIngestRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	links := req.Links
	if req.Link != "" {
		links = append([]string{req.Link}, links...)
	}
	if len(links) == 0 {
		jsonError(w, "link or links is required", http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(links))
	for _, link := range links {
		job := pipeline.NewLarkJob(strings.TrimSpace(link))
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{"url": link, "error": err.Error()})
			continue
		}
		results = append(results, accepted(job))
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleIngestChunks(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	if snap.Status != pipeline.StatusCompleted && snap.Status != pipeline.StatusDupSkipped {
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
		return
	}
	markdown, chunks := job.Result()
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":   snap.ID,
		"title":    snap.Title,
		"markdown": markdown,
		"chunks":   chunks,
		"tokens":   snap.Progress.Tokens,
	})
}

func accepted(job *pipeline.Job) map[string]any {
	snap := job.Snapshot()
	out := map[string]any{
		"job_id":   snap.ID,
		"status":   snap.Status,
		"poll_url": fmt.Sprintf("/api/ingest/%s/status", snap.ID),
	}
	if snap.Filename != "" {
		out["filename"] = snap.Filename
	}
	if snap.URL != "" {
		out["url"] = snap.URL
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
