package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/verdantops/canopy-core/internal/workflow"
)

// createWorkflowRequest is the request body for POST /workflows.
type createWorkflowRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Graph         json.RawMessage `json:"graph"`
	ControllerIDs []string        `json:"controller_ids"`
	IsActive      *bool           `json:"is_active"`
}

// updateWorkflowRequest is the request body for PATCH /workflows/{id}.
// Nil fields are left unchanged.
type updateWorkflowRequest struct {
	Name          *string         `json:"name"`
	Description   *string         `json:"description"`
	Graph         json.RawMessage `json:"graph"`
	ControllerIDs *[]string       `json:"controller_ids"`
	IsActive      *bool           `json:"is_active"`
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.workflows.ListActive(r.Context())
	if err != nil {
		s.logger.Error("listing workflows", "error", err)
		writeInternalError(w, "failed to list workflows")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workflows": workflows,
		"count":     len(workflows),
	})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflows.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			writeNotFound(w, "workflow not found")
			return
		}
		s.logger.Error("loading workflow", "error", err)
		writeInternalError(w, "failed to load workflow")
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	graph, err := workflow.ParseGraph(req.Graph)
	if err != nil {
		writeBadRequest(w, "invalid graph: "+err.Error())
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	wf := &workflow.Workflow{
		ID:            "wf-" + uuid.NewString()[:8],
		Name:          req.Name,
		Description:   req.Description,
		Graph:         *graph,
		ControllerIDs: req.ControllerIDs,
		IsActive:      active,
	}

	if err := s.workflows.Create(r.Context(), wf); err != nil {
		s.logger.Error("creating workflow", "error", err)
		writeInternalError(w, "failed to create workflow")
		return
	}

	s.logger.Info("workflow created", "id", wf.ID, "name", wf.Name)
	s.recordAudit(r, "create", "workflow", wf.ID, map[string]any{"name": wf.Name})
	writeJSON(w, http.StatusCreated, wf)
}

func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflows.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			writeNotFound(w, "workflow not found")
			return
		}
		s.logger.Error("loading workflow", "error", err)
		writeInternalError(w, "failed to load workflow")
		return
	}

	var req updateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	if req.Name != nil {
		wf.Name = *req.Name
	}
	if req.Description != nil {
		wf.Description = *req.Description
	}
	if req.ControllerIDs != nil {
		wf.ControllerIDs = *req.ControllerIDs
	}
	if req.IsActive != nil {
		wf.IsActive = *req.IsActive
	}
	if req.Graph != nil {
		graph, err := workflow.ParseGraph(req.Graph)
		if err != nil {
			writeBadRequest(w, "invalid graph: "+err.Error())
			return
		}
		wf.Graph = *graph
	}

	if err := s.workflows.Update(r.Context(), wf); err != nil {
		s.logger.Error("updating workflow", "error", err)
		writeInternalError(w, "failed to update workflow")
		return
	}
	s.recordAudit(r, "update", "workflow", wf.ID, nil)
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.workflows.Delete(r.Context(), id); err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			writeNotFound(w, "workflow not found")
			return
		}
		s.logger.Error("deleting workflow", "error", err)
		writeInternalError(w, "failed to delete workflow")
		return
	}
	s.recordAudit(r, "delete", "workflow", id, nil)
	w.WriteHeader(http.StatusNoContent)
}
