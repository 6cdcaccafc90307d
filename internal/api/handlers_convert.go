package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/docsplit/internal/block"
	"github.com/dgallion1/docsplit/internal/chunker"
	"github.com/dgallion1/docsplit/internal/lark"
	"github.com/dgallion1/docsplit/internal/pipeline"
	"github.com/dgallion1/docsplit/internal/render"
)

type renderRequest struct {
	Blocks []block.Block `json:"blocks"`
	RootID string        `json:"root_id"`
}

// splitRequest carries either Markdown or a block list. Unset thresholds
// fall back to the server configuration.
type splitRequest struct {
	Markdown string        `json:"markdown"`
	Blocks   []block.Block `json:"blocks"`

	ChunkSize      *int     `json:"chunk_size"`
	LeafOverlap    *int     `json:"leaf_overlap"`
	MergeThreshold *int     `json:"merge_threshold"`
	MergeRatio     *float64 `json:"merge_ratio"`
}

func (req splitRequest) config(base chunker.Config) chunker.Config {
	if req.ChunkSize != nil {
		base.ChunkSize = *req.ChunkSize
	}
	if req.LeafOverlap != nil {
		base.LeafOverlap = *req.LeafOverlap
	}
	if req.MergeThreshold != nil {
		base.MergeThreshold = *req.MergeThreshold
	}
	if req.MergeRatio != nil {
		base.MergeRatio = *req.MergeRatio
	}
	return base
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Blocks) == 0 {
		jsonError(w, "blocks are required", http.StatusBadRequest)
		return
	}
	markdown, err := s.conv.RenderBlocks(req.Blocks, req.RootID)
	if err != nil {
		jsonError(w, err.Error(), conversionStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markdown": markdown})
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	chunks, ok := s.splitBody(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chunks":       chunks,
		"total_chunks": len(chunks),
		"tokens":       chunker.EstimateTotal(chunks),
	})
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	chunks, ok := s.splitBody(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.conv.Estimate(chunks))
}

// splitBody decodes a splitRequest and chunks it, writing any error.
func (s *Server) splitBody(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var req splitRequest
	if !s.decodeJSON(w, r, &req) {
		return nil, false
	}
	markdown := req.Markdown
	if len(req.Blocks) > 0 {
		var err error
		if markdown, err = s.conv.RenderBlocks(req.Blocks, ""); err != nil {
			jsonError(w, err.Error(), conversionStatus(err))
			return nil, false
		}
	}
	chunks, err := s.conv.ChunkMarkdownWith(markdown, req.config(s.conv.ChunkConfig()))
	if err != nil {
		jsonError(w, err.Error(), conversionStatus(err))
		return nil, false
	}
	if chunks == nil {
		chunks = []string{}
	}
	return chunks, true
}

func (s *Server) handleLarkPreview(w http.ResponseWriter, r *http.Request) {
	link := r.URL.Query().Get("link")
	fail := func(msg string) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"title": "", "content": "", "error": msg})
	}
	if link == "" {
		fail("link is required")
		return
	}
	doc, err := s.conv.FetchMarkdown(r.Context(), link)
	if err != nil {
		s.log.Warn().Err(err).Str("link", link).Msg("lark preview failed")
		fail(err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"title": doc.Title, "content": doc.Markdown})
}

// conversionStatus maps render, chunk and Lark errors to HTTP codes.
func conversionStatus(err error) int {
	var apiErr *lark.APIError
	switch {
	case errors.Is(err, block.ErrMalformedReference),
		errors.Is(err, block.ErrDuplicateID),
		errors.Is(err, block.ErrEmptyID),
		errors.Is(err, render.ErrTooDeep),
		errors.Is(err, render.ErrUnsupported),
		errors.Is(err, chunker.ErrTooDeep),
		errors.Is(err, chunker.ErrTooManyNodes):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lark.ErrInvalidURL), errors.Is(err, lark.ErrUnsupportedDocType):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrLarkDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Pipeline.MaxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
