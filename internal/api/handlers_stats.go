package api

import "net/http"

func (s *Server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.Stats())
}
