package mqtt

import "fmt"

// Topic prefixes for Canopy MQTT events.
//
// Core publishes under the flat scheme: canopy/{category}/{id}/{event}
const (
	// TopicPrefix is the base for all Canopy topics.
	TopicPrefix = "canopy"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "canopy/system"
)

// Topics provides builders for Canopy MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	pollTopic := topics.PollOutcome("ctl-a1b2c3d4")
//	// Returns: "canopy/controller/ctl-a1b2c3d4/poll"
type Topics struct{}

// PollOutcome returns the topic for per-controller poll outcomes.
// Each outcome carries the controller's resulting status, so
// subscribers see every status transition here.
//
// Example: canopy/controller/ctl-a1b2c3d4/poll
func (Topics) PollOutcome(controllerID string) string {
	return fmt.Sprintf("%s/controller/%s/poll", TopicPrefix, controllerID)
}

// WorkflowRun returns the topic for workflow run results.
//
// Example: canopy/workflow/wf-9f8e7d6c/run
func (Topics) WorkflowRun(workflowID string) string {
	return fmt.Sprintf("%s/workflow/%s/run", TopicPrefix, workflowID)
}

// SunlightRun returns the topic for sunrise/sunset execution results.
//
// Example: canopy/sunlight/run
func (Topics) SunlightRun() string {
	return fmt.Sprintf("%s/sunlight/run", TopicPrefix)
}

// JobSummary returns the topic for whole-invocation job summaries.
//
// Example: canopy/job/poll/summary
func (Topics) JobSummary(job string) string {
	return fmt.Sprintf("%s/job/%s/summary", TopicPrefix, job)
}

// SystemStatus returns the system status topic.
//
// Example: canopy/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllTopics returns a pattern matching all Canopy topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: canopy/#
func (Topics) AllTopics() string {
	return "canopy/#"
}
