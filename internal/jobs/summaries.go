package jobs

import (
	"time"

	"github.com/verdantops/canopy-core/internal/poller"
	"github.com/verdantops/canopy-core/internal/workflow"
)

// PollSummary is a poll run plus its overall success flag, shaped for
// event payloads and API responses.
type PollSummary struct {
	poller.Summary
	OK bool `json:"ok"`
}

// WorkflowSummary aggregates one graph-walker job run.
type WorkflowSummary struct {
	// Workflows is the number of active workflows considered.
	Workflows int `json:"workflows"`

	// Runs is the number of (workflow, controller) walks attempted.
	Runs      int `json:"runs"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`

	// NotFired counts walks whose trigger did not fire; they are
	// clean no-ops, not failures.
	NotFired int `json:"not_fired"`

	// Actions and Skipped sum the per-run counters.
	Actions int `json:"actions"`
	Skipped int `json:"skipped"`

	Duration time.Duration `json:"duration"`
	OK       bool          `json:"ok"`

	Results []workflow.RunResult `json:"results"`
}

// SunlightStatus classifies one dimmer config's evaluation.
type SunlightStatus string

const (
	SunlightApplied  SunlightStatus = "applied"
	SunlightInactive SunlightStatus = "inactive"
	SunlightFailed   SunlightStatus = "failed"
)

// SunlightDetail is the per-config record of a sunlight run.
type SunlightDetail struct {
	ConfigID     string         `json:"config_id"`
	ControllerID string         `json:"controller_id"`
	Port         int            `json:"port"`
	Status       SunlightStatus `json:"status"`
	Event        string         `json:"event,omitempty"`
	Intensity    int            `json:"intensity,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// SunlightSummary aggregates one sunlight job run.
type SunlightSummary struct {
	Configs  int `json:"configs"`
	Applied  int `json:"applied"`
	Inactive int `json:"inactive"`
	Failed   int `json:"failed"`

	Duration time.Duration `json:"duration"`
	OK       bool          `json:"ok"`

	Details []SunlightDetail `json:"details"`
}
