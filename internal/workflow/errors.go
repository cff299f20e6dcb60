package workflow

import "errors"

// Domain-specific errors for workflow graphs and persistence.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound is returned when a workflow does not exist.
	ErrNotFound = errors.New("workflow: not found")

	// ErrInvalidGraph wraps all graph validation failures.
	ErrInvalidGraph = errors.New("workflow: invalid graph")

	// ErrNoTrigger is returned for graphs without a trigger node.
	// Such a graph can never execute anything.
	ErrNoTrigger = errors.New("workflow: graph has no trigger node")

	// ErrMultipleTriggers is returned for graphs with more than one
	// trigger node. A run walks the reachable subgraph of exactly one.
	ErrMultipleTriggers = errors.New("workflow: graph has multiple trigger nodes")

	// ErrInvalidOperator is returned for condition nodes using an
	// operator outside >, <, >=, <=, ==, !=.
	ErrInvalidOperator = errors.New("workflow: invalid condition operator")
)
