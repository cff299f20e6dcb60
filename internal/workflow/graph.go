package workflow

import (
	"encoding/json"
	"fmt"
)

// NodeType discriminates the graph node union.
type NodeType string

const (
	NodeTrigger   NodeType = "trigger"
	NodeCondition NodeType = "condition"
	NodeAction    NodeType = "action"
	NodeDelay     NodeType = "delay"
)

// Branch labels on edges leaving condition nodes. An empty label is an
// unconditional continuation.
const (
	BranchTrue  = "true"
	BranchFalse = "false"
)

// Trigger variants.
const (
	TriggerTimer    = "timer"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerSensor   = "sensor"
)

// Action variants with fixed levels. Any variant starting with "set_"
// uses the node's explicit level instead.
const (
	ActionTurnOn  = "turn_on"
	ActionTurnOff = "turn_off"
)

// TriggerData is the payload of a trigger node.
type TriggerData struct {
	Variant string `json:"variant"`
}

// ConditionData is the payload of a condition node: compare the most
// recent reading of SensorType against Threshold.
type ConditionData struct {
	SensorType string  `json:"sensorType"`
	Operator   string  `json:"operator"`
	Threshold  float64 `json:"threshold"`
}

// ActionData is the payload of an action node. Port and Level are
// pointers because their absence is meaningful: a node missing a
// required field is skipped at walk time, not rejected at load time.
type ActionData struct {
	Variant string `json:"variant"`
	Port    *int   `json:"port,omitempty"`
	Level   *int   `json:"level,omitempty"`
}

// DelayData is the payload of a delay node, in seconds.
type DelayData struct {
	Duration int `json:"duration"`
}

// Node is one vertex of a workflow graph. Exactly one of the payload
// pointers matching Type is set after a successful parse; unknown
// types keep only their raw data for forward compatibility.
type Node struct {
	ID   string          `json:"id"`
	Type NodeType        `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`

	Trigger   *TriggerData   `json:"-"`
	Condition *ConditionData `json:"-"`
	Action    *ActionData    `json:"-"`
	Delay     *DelayData     `json:"-"`
}

// Edge connects two nodes. Branch is consulted only when Source is a
// condition node.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Branch string `json:"branch,omitempty"`
}

// Graph is a workflow's node and edge set. Construct via ParseGraph so
// the union payloads are decoded and validated.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// ParseGraph decodes and validates a stored graph document.
func ParseGraph(raw []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, err)
	}
	if err := g.decode(); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// decode fills the typed payload for each node from its raw data bag.
func (g *Graph) decode() error {
	for i := range g.Nodes {
		n := &g.Nodes[i]
		data := n.Data
		if data == nil {
			data = json.RawMessage("{}")
		}

		var err error
		switch n.Type {
		case NodeTrigger:
			n.Trigger = &TriggerData{}
			err = json.Unmarshal(data, n.Trigger)
		case NodeCondition:
			n.Condition = &ConditionData{}
			err = json.Unmarshal(data, n.Condition)
		case NodeAction:
			n.Action = &ActionData{}
			err = json.Unmarshal(data, n.Action)
		case NodeDelay:
			n.Delay = &DelayData{}
			err = json.Unmarshal(data, n.Delay)
		default:
			// Unknown node types pass through untouched; the walker
			// treats them as transparent continuations.
		}
		if err != nil {
			return fmt.Errorf("%w: node %q data: %w", ErrInvalidGraph, n.ID, err)
		}
	}
	return nil
}

// Validate checks structural invariants: unique node IDs, edges that
// reference real nodes, valid branch labels and condition operators,
// and exactly one trigger node.
func (g *Graph) Validate() error {
	ids := make(map[string]bool, len(g.Nodes))
	triggers := 0

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.ID == "" {
			return fmt.Errorf("%w: node %d has no id", ErrInvalidGraph, i)
		}
		if ids[n.ID] {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidGraph, n.ID)
		}
		ids[n.ID] = true

		if n.Type == NodeTrigger {
			triggers++
		}
		if n.Type == NodeCondition && n.Condition != nil && n.Condition.Operator != "" {
			if !validOperator(n.Condition.Operator) {
				return fmt.Errorf("%w: node %q operator %q", ErrInvalidOperator, n.ID, n.Condition.Operator)
			}
		}
	}

	if triggers == 0 {
		return ErrNoTrigger
	}
	if triggers > 1 {
		return ErrMultipleTriggers
	}

	for _, e := range g.Edges {
		if !ids[e.Source] {
			return fmt.Errorf("%w: edge references unknown source %q", ErrInvalidGraph, e.Source)
		}
		if !ids[e.Target] {
			return fmt.Errorf("%w: edge references unknown target %q", ErrInvalidGraph, e.Target)
		}
		if e.Branch != "" && e.Branch != BranchTrue && e.Branch != BranchFalse {
			return fmt.Errorf("%w: edge %s->%s branch %q", ErrInvalidGraph, e.Source, e.Target, e.Branch)
		}
	}
	return nil
}

// syncData refreshes each node's raw data bag from its typed payload,
// so programmatically built graphs marshal the same as parsed ones.
func (g *Graph) syncData() error {
	for i := range g.Nodes {
		n := &g.Nodes[i]

		var payload any
		switch {
		case n.Trigger != nil:
			payload = n.Trigger
		case n.Condition != nil:
			payload = n.Condition
		case n.Action != nil:
			payload = n.Action
		case n.Delay != nil:
			payload = n.Delay
		default:
			continue
		}

		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%w: node %q data: %w", ErrInvalidGraph, n.ID, err)
		}
		n.Data = raw
	}
	return nil
}

// TriggerNode returns the graph's single trigger node.
// Only meaningful after a successful Validate.
func (g *Graph) TriggerNode() *Node {
	for i := range g.Nodes {
		if g.Nodes[i].Type == NodeTrigger {
			return &g.Nodes[i]
		}
	}
	return nil
}

// node returns a node by ID, or nil.
func (g *Graph) node(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// edgesFrom returns a node's outgoing edges in declaration order.
// Declaration order is the walk order contract, so this never sorts.
func (g *Graph) edgesFrom(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

func validOperator(op string) bool {
	switch op {
	case ">", "<", ">=", "<=", "==", "!=":
		return true
	}
	return false
}
