package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/verdantops/canopy-core/internal/curve"
)

func (s *Server) handleListDimmers(w http.ResponseWriter, r *http.Request) {
	var (
		configs []curve.DimmerConfig
		err     error
	)
	if ctlID := r.URL.Query().Get("controller_id"); ctlID != "" {
		configs, err = s.dimmers.ListByController(r.Context(), ctlID)
	} else {
		configs, err = s.dimmers.ListActive(r.Context())
	}
	if err != nil {
		s.logger.Error("listing dimmer configs", "error", err)
		writeInternalError(w, "failed to list dimmer configs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"configs": configs,
		"count":   len(configs),
	})
}

func (s *Server) handleGetDimmer(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.dimmers.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, curve.ErrConfigNotFound) {
			writeNotFound(w, "dimmer config not found")
			return
		}
		s.logger.Error("loading dimmer config", "error", err)
		writeInternalError(w, "failed to load dimmer config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleCreateDimmer(w http.ResponseWriter, r *http.Request) {
	var cfg curve.DimmerConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if err := validateDimmer(&cfg); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	cfg.ID = "dim-" + uuid.NewString()[:8]
	if err := s.dimmers.Create(r.Context(), &cfg); err != nil {
		s.logger.Error("creating dimmer config", "error", err)
		writeInternalError(w, "failed to create dimmer config")
		return
	}

	s.logger.Info("dimmer config created",
		"id", cfg.ID, "controller_id", cfg.ControllerID, "port", cfg.DimmerPort)
	s.recordAudit(r, "create", "dimmer_config", cfg.ID, map[string]any{
		"controller_id": cfg.ControllerID, "port": cfg.DimmerPort,
	})
	writeJSON(w, http.StatusCreated, cfg)
}

func (s *Server) handleUpdateDimmer(w http.ResponseWriter, r *http.Request) {
	existing, err := s.dimmers.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, curve.ErrConfigNotFound) {
			writeNotFound(w, "dimmer config not found")
			return
		}
		s.logger.Error("loading dimmer config", "error", err)
		writeInternalError(w, "failed to load dimmer config")
		return
	}

	// PATCH body decodes over the stored config, so absent fields keep
	// their current values.
	cfg := *existing
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	cfg.ID = existing.ID
	if err := validateDimmer(&cfg); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.dimmers.Update(r.Context(), &cfg); err != nil {
		s.logger.Error("updating dimmer config", "error", err)
		writeInternalError(w, "failed to update dimmer config")
		return
	}
	s.recordAudit(r, "update", "dimmer_config", cfg.ID, nil)
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleDeleteDimmer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.dimmers.Delete(r.Context(), id); err != nil {
		if errors.Is(err, curve.ErrConfigNotFound) {
			writeNotFound(w, "dimmer config not found")
			return
		}
		s.logger.Error("deleting dimmer config", "error", err)
		writeInternalError(w, "failed to delete dimmer config")
		return
	}
	s.recordAudit(r, "delete", "dimmer_config", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// validateDimmer rejects configs that would fail at evaluation time.
func validateDimmer(cfg *curve.DimmerConfig) error {
	if cfg.ControllerID == "" {
		return errors.New("controller_id is required")
	}
	if cfg.DimmerPort < 1 {
		return errors.New("dimmer_port must be at least 1")
	}
	if _, err := curve.ParseClock(cfg.SunriseTime); err != nil {
		return errors.New("sunrise_time must be HH:MM")
	}
	if _, err := curve.ParseClock(cfg.SunsetTime); err != nil {
		return errors.New("sunset_time must be HH:MM")
	}
	if cfg.SunriseDuration < 1 || cfg.SunsetDuration < 1 {
		return errors.New("ramp durations must be at least 1 minute")
	}
	if cfg.TargetIntensity < 0 || cfg.TargetIntensity > 100 {
		return errors.New("target_intensity must be between 0 and 100")
	}
	return nil
}
