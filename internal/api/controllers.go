package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/verdantops/canopy-core/internal/controller"
)

// credentialsRequest is the plaintext cloud-account login supplied when
// provisioning a controller. It is encrypted at rest and never returned
// by any endpoint.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// createControllerRequest is the request body for POST /controllers.
type createControllerRequest struct {
	Name         string                   `json:"name"`
	Brand        string                   `json:"brand"`
	ControllerID string                   `json:"controller_id"`
	Credentials  *credentialsRequest      `json:"credentials"`
	Capabilities controller.CapabilitySet `json:"capabilities"`
	IsActive     *bool                    `json:"is_active"`
}

// updateControllerRequest is the request body for PATCH /controllers/{id}.
// Nil fields are left unchanged.
type updateControllerRequest struct {
	Name         *string                   `json:"name"`
	Credentials  *credentialsRequest       `json:"credentials"`
	Capabilities *controller.CapabilitySet `json:"capabilities"`
	IsActive     *bool                     `json:"is_active"`
}

func (s *Server) handleListControllers(w http.ResponseWriter, r *http.Request) {
	controllers, err := s.controllers.List(r.Context())
	if err != nil {
		s.logger.Error("listing controllers", "error", err)
		writeInternalError(w, "failed to list controllers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"controllers": controllers,
		"count":       len(controllers),
	})
}

func (s *Server) handleGetController(w http.ResponseWriter, r *http.Request) {
	ctl, err := s.controllers.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, controller.ErrNotFound) {
			writeNotFound(w, "controller not found")
			return
		}
		s.logger.Error("loading controller", "error", err)
		writeInternalError(w, "failed to load controller")
		return
	}
	writeJSON(w, http.StatusOK, ctl)
}

func (s *Server) handleCreateController(w http.ResponseWriter, r *http.Request) {
	var req createControllerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.Name == "" || req.Brand == "" || req.ControllerID == "" {
		writeBadRequest(w, "name, brand, and controller_id are required")
		return
	}
	if req.Credentials == nil || req.Credentials.Email == "" {
		writeBadRequest(w, "credentials with an email are required")
		return
	}

	ciphertext, err := s.sealCredentials(req.Credentials)
	if err != nil {
		s.logger.Error("encrypting credentials", "error", err)
		writeInternalError(w, "failed to encrypt credentials")
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	ctl := &controller.Controller{
		ID:           "ctl-" + uuid.NewString()[:8],
		Name:         req.Name,
		Brand:        req.Brand,
		ControllerID: req.ControllerID,
		Credentials:  ciphertext,
		Capabilities: req.Capabilities,
		Status:       controller.StatusInitializing,
		IsActive:     active,
	}

	if err := s.controllers.Create(r.Context(), ctl); err != nil {
		if errors.Is(err, controller.ErrExists) {
			writeConflict(w, "a controller with this brand and controller_id already exists")
			return
		}
		s.logger.Error("creating controller", "error", err)
		writeInternalError(w, "failed to create controller")
		return
	}

	s.logger.Info("controller created", "id", ctl.ID, "brand", ctl.Brand)
	s.recordAudit(r, "create", "controller", ctl.ID, map[string]any{"name": ctl.Name, "brand": ctl.Brand})
	writeJSON(w, http.StatusCreated, ctl)
}

func (s *Server) handleUpdateController(w http.ResponseWriter, r *http.Request) {
	ctl, err := s.controllers.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, controller.ErrNotFound) {
			writeNotFound(w, "controller not found")
			return
		}
		s.logger.Error("loading controller", "error", err)
		writeInternalError(w, "failed to load controller")
		return
	}

	var req updateControllerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	if req.Name != nil {
		ctl.Name = *req.Name
	}
	if req.Capabilities != nil {
		ctl.Capabilities = *req.Capabilities
	}
	if req.IsActive != nil {
		ctl.IsActive = *req.IsActive
	}
	if req.Credentials != nil {
		ciphertext, err := s.sealCredentials(req.Credentials)
		if err != nil {
			s.logger.Error("encrypting credentials", "error", err)
			writeInternalError(w, "failed to encrypt credentials")
			return
		}
		ctl.Credentials = ciphertext
	}

	if err := s.controllers.Update(r.Context(), ctl); err != nil {
		s.logger.Error("updating controller", "error", err)
		writeInternalError(w, "failed to update controller")
		return
	}
	s.recordAudit(r, "update", "controller", ctl.ID, map[string]any{"credentials_rotated": req.Credentials != nil})
	writeJSON(w, http.StatusOK, ctl)
}

func (s *Server) handleDeleteController(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.controllers.Delete(r.Context(), id); err != nil {
		if errors.Is(err, controller.ErrNotFound) {
			writeNotFound(w, "controller not found")
			return
		}
		s.logger.Error("deleting controller", "error", err)
		writeInternalError(w, "failed to delete controller")
		return
	}
	s.recordAudit(r, "delete", "controller", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// sealCredentials marshals and encrypts a plaintext login for storage.
func (s *Server) sealCredentials(creds *credentialsRequest) (string, error) {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}
	return s.vault.Encrypt(plaintext)
}
