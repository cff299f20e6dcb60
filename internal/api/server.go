// Package api provides the HTTP REST API for Canopy Core.
//
// It exposes controller, workflow, and dimmer config management, the
// activity feed, and run-now endpoints for the three periodic jobs.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/verdantops/canopy-core/internal/activity"
	"github.com/verdantops/canopy-core/internal/audit"
	"github.com/verdantops/canopy-core/internal/controller"
	"github.com/verdantops/canopy-core/internal/curve"
	"github.com/verdantops/canopy-core/internal/infrastructure/config"
	"github.com/verdantops/canopy-core/internal/infrastructure/logging"
	"github.com/verdantops/canopy-core/internal/jobs"
	"github.com/verdantops/canopy-core/internal/secrets"
	"github.com/verdantops/canopy-core/internal/workflow"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// JobRunner is the subset of the job runner the API invokes for the
// run-now endpoints. Satisfied by *jobs.Runner.
type JobRunner interface {
	RunPoll(ctx context.Context) (jobs.PollSummary, error)
	RunWorkflows(ctx context.Context) (jobs.WorkflowSummary, error)
	RunSunlight(ctx context.Context) (jobs.SunlightSummary, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	Logger      *logging.Logger
	Runner      JobRunner
	Controllers controller.Repository
	Workflows   workflow.Repository
	Dimmers     curve.Repository
	Activity    activity.Repository
	Audit       audit.Repository // optional: configuration change history
	Vault       *secrets.Vault
	Version     string
}

// Server is the HTTP API server for Canopy Core.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	logger      *logging.Logger
	runner      JobRunner
	controllers controller.Repository
	workflows   workflow.Repository
	dimmers     curve.Repository
	activity    activity.Repository
	audit       audit.Repository
	vault       *secrets.Vault
	version     string
	server      *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, runner, repositories)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("job runner is required")
	}
	if deps.Controllers == nil {
		return nil, fmt.Errorf("controller repository is required")
	}
	if deps.Vault == nil {
		return nil, fmt.Errorf("secrets vault is required")
	}

	return &Server{
		cfg:         deps.Config,
		logger:      deps.Logger,
		runner:      deps.Runner,
		controllers: deps.Controllers,
		workflows:   deps.Workflows,
		dimmers:     deps.Dimmers,
		activity:    deps.Activity,
		audit:       deps.Audit,
		vault:       deps.Vault,
		version:     deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
