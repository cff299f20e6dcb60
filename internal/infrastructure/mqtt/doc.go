// Package mqtt provides the event-publishing client for Canopy Core.
//
// Core is a publisher only: poll outcomes (which carry each
// controller's resulting status), workflow run results and job
// summaries are announced over MQTT so dashboards and external
// consumers can react without polling the API. The wrapper adds
// connection lifecycle management, Last Will and Testament for offline
// detection, and payload validation on publish.
//
// Topic layout (see topics.go for builders):
//
//	canopy/controller/{id}/poll     per-controller poll outcomes
//	canopy/workflow/{id}/run        workflow run results
//	canopy/job/{name}/summary       whole-invocation summaries
//	canopy/system/status            retained online/offline status
//
// The client is optional infrastructure: every caller holds it behind a
// nil-safe publisher interface, and a missing broker never fails a run.
package mqtt
