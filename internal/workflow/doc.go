// Package workflow executes automation graphs against controllers.
//
// A graph is a single trigger node plus condition, action, and delay
// nodes joined by edges; condition branches are selected by edge
// labels. ParseGraph decodes the stored JSON document into a tagged
// union per node type and validates structure up front, so the walker
// never re-checks shape mid-run.
//
// The Walker visits the trigger-reachable subgraph once per
// (workflow, controller) pair. Each walk owns a visited set (cycles
// terminate) and a run-scoped sensor cache (one ReadSensors per walk),
// both discarded when the walk returns. Failures are contained at the
// node and controller boundary; one controller's broken adapter never
// stops its siblings.
package workflow
