package activity

import "context"

// Logger defines the logging interface used by the Recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder is the fire-and-forget front of the activity log.
//
// Record swallows persistence failures: losing an activity entry is
// acceptable, failing a poll or workflow run because of one is not.
// A nil *Recorder is valid and records nothing, so callers never need
// a nil check.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a recorder over a repository.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, logger: noopLogger{}}
}

// SetLogger sets the logger used for dropped-entry warnings.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Record appends one activity entry. Failures are logged, never returned.
//
// controllerID and workflowID may be empty when the entry is not tied
// to one (a poll entry has no workflow; a run-level summary may have
// no controller).
func (r *Recorder) Record(ctx context.Context, kind Kind, controllerID, workflowID string, result Result, metadata map[string]any) {
	if r == nil {
		return
	}

	entry := &Entry{
		Kind:         kind,
		ControllerID: controllerID,
		WorkflowID:   workflowID,
		Result:       result,
		Metadata:     metadata,
	}

	if err := r.repo.Create(ctx, entry); err != nil {
		r.logger.Warn("dropping activity entry",
			"kind", kind, "controller_id", controllerID, "error", err)
	}
}
