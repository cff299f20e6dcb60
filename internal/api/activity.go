package api

import (
	"net/http"
	"strconv"

	"github.com/verdantops/canopy-core/internal/activity"
)

// handleListActivity returns the paginated activity feed, newest first.
//
// Query parameters: kind, controller_id, workflow_id, result, limit, offset.
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := activity.Filter{
		Kind:         activity.Kind(q.Get("kind")),
		ControllerID: q.Get("controller_id"),
		WorkflowID:   q.Get("workflow_id"),
		Result:       activity.Result(q.Get("result")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.activity.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing activity", "error", err)
		writeInternalError(w, "failed to list activity")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
