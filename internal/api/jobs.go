package api

import "net/http"

// handleRunPoll triggers one poll scheduler invocation and returns its
// summary. The HTTP status reflects whether the run started, not
// whether every controller succeeded; per-controller failures are in
// the summary body.
func (s *Server) handleRunPoll(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runner.RunPoll(r.Context())
	if err != nil {
		s.logger.Error("poll run failed to start", "error", err)
		writeInternalError(w, "poll run failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleRunWorkflows executes every active workflow once and returns
// the aggregated result.
func (s *Server) handleRunWorkflows(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runner.RunWorkflows(r.Context())
	if err != nil {
		s.logger.Error("workflow run failed to start", "error", err)
		writeInternalError(w, "workflow run failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleRunSunlight evaluates every active dimmer config once and
// returns the aggregated result.
func (s *Server) handleRunSunlight(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runner.RunSunlight(r.Context())
	if err != nil {
		s.logger.Error("sunlight run failed to start", "error", err)
		writeInternalError(w, "sunlight run failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
