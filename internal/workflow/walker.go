package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/verdantops/canopy-core/internal/adapter"
)

// Logger defines the logging interface used by the Walker.
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

// DefaultMaxDelay bounds delay nodes so one walk cannot stall a whole
// scheduler tick. Durations outside (0, max] execute as zero delay.
const DefaultMaxDelay = 30 * time.Second

// RunResult is the outcome of walking one workflow graph against one
// controller. Terminal and immutable once returned.
type RunResult struct {
	WorkflowID   string `json:"workflow_id"`
	ControllerID string `json:"controller_id"`

	// Fired is false when the trigger did not fire; the walk then ends
	// with zero actions and no error.
	Fired bool `json:"fired"`

	// Actions counts successfully executed action nodes.
	Actions int `json:"actions"`

	// Skipped counts nodes passed over for missing fields or missing
	// sensor readings. Skips are not failures.
	Skipped int `json:"skipped"`

	// Err aggregates per-node failures (adapter errors, sensor read
	// failures). Non-nil marks the controller's run as failed, but the
	// walk still visits everything it can reach.
	Err error `json:"-"`
}

// Walker executes workflow graphs against controller sessions.
//
// A Walker is stateless between runs; each Run gets its own visited
// set and sensor cache, both discarded when the walk returns.
type Walker struct {
	maxDelay time.Duration
	logger   Logger

	// sleep is replaceable in tests so delay nodes don't slow suites.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWalker creates a walker with the default delay bound.
func NewWalker() *Walker {
	return &Walker{
		maxDelay: DefaultMaxDelay,
		logger:   noopLogger{},
		sleep:    sleepContext,
	}
}

// SetLogger sets the logger for the walker.
func (w *Walker) SetLogger(logger Logger) {
	w.logger = logger
}

// SetMaxDelay overrides the delay-node bound. Non-positive values keep
// the default.
func (w *Walker) SetMaxDelay(d time.Duration) {
	if d > 0 {
		w.maxDelay = d
	}
}

// Run walks a workflow graph once for one controller.
//
// The session must already be connected. Every failure is contained:
// adapter errors, malformed nodes, and panics all land in the result
// rather than propagating, so sibling controllers in the same job run
// are never affected.
func (w *Walker) Run(ctx context.Context, wf *Workflow, controllerID string, session adapter.Adapter) (result RunResult) {
	result = RunResult{WorkflowID: wf.ID, ControllerID: controllerID}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("workflow walk panicked",
				"workflow_id", wf.ID, "controller_id", controllerID, "panic", r)
			result.Err = errors.Join(result.Err, fmt.Errorf("walk panicked: %v", r))
		}
	}()

	trigger := wf.Graph.TriggerNode()
	if trigger == nil {
		result.Err = ErrNoTrigger
		return result
	}

	if !triggerFires(trigger) {
		w.logger.Debug("trigger did not fire", "workflow_id", wf.ID)
		return result
	}
	result.Fired = true

	walk := &walkState{
		walker:  w,
		graph:   &wf.Graph,
		session: session,
		visited: map[string]bool{trigger.ID: true},
		result:  &result,
	}

	for _, edge := range wf.Graph.edgesFrom(trigger.ID) {
		walk.follow(ctx, edge)
	}
	return result
}

// triggerFires decides whether a trigger variant fires under periodic
// invocation. Sensor triggers always fire here; their threshold lives
// in descendant condition nodes.
func triggerFires(trigger *Node) bool {
	if trigger.Trigger == nil {
		return false
	}
	switch trigger.Trigger.Variant {
	case TriggerTimer, TriggerSchedule, TriggerSensor:
		return true
	case TriggerManual:
		return false
	default:
		return false
	}
}

// walkState carries one run's mutable state. The sensor cache is
// loaded at most once per walk and discarded with the state.
type walkState struct {
	walker  *Walker
	graph   *Graph
	session adapter.Adapter
	visited map[string]bool
	result  *RunResult

	readings       map[string]float64
	readingsLoaded bool
}

// follow visits an edge's target unless this walk already has.
// The visited set guarantees termination on graphs with cycles.
func (s *walkState) follow(ctx context.Context, edge Edge) {
	if ctx.Err() != nil {
		return
	}
	if s.visited[edge.Target] {
		return
	}
	s.visited[edge.Target] = true

	node := s.graph.node(edge.Target)
	if node == nil {
		return
	}
	s.visit(ctx, node)
}

func (s *walkState) visit(ctx context.Context, node *Node) {
	switch node.Type {
	case NodeAction:
		s.runAction(ctx, node)
		s.followAll(ctx, node)
	case NodeCondition:
		s.runCondition(ctx, node)
	case NodeDelay:
		s.runDelay(ctx, node)
		s.followAll(ctx, node)
	default:
		// Unknown node types (and nested triggers) are transparent
		// continuations.
		s.walker.logger.Debug("passing through node",
			"node_id", node.ID, "type", node.Type)
		s.followAll(ctx, node)
	}
}

// followAll continues through every outgoing edge in declaration order.
func (s *walkState) followAll(ctx context.Context, node *Node) {
	for _, edge := range s.graph.edgesFrom(node.ID) {
		s.follow(ctx, edge)
	}
}

// runAction executes a device control derived from the node variant.
// Missing fields skip the node; adapter failures fail the run but not
// the walk.
func (s *walkState) runAction(ctx context.Context, node *Node) {
	data := node.Action

	level, ok := actionLevel(data)
	if !ok || data.Port == nil {
		s.walker.logger.Warn("skipping action node with missing fields",
			"node_id", node.ID, "variant", data.Variant)
		s.result.Skipped++
		return
	}

	if err := s.session.ControlDevice(ctx, *data.Port, level); err != nil {
		s.walker.logger.Warn("action failed",
			"node_id", node.ID, "port", *data.Port, "error", err)
		s.result.Err = errors.Join(s.result.Err,
			fmt.Errorf("action %s (port %d): %w", node.ID, *data.Port, err))
		return
	}

	s.result.Actions++
	s.walker.logger.Debug("action executed",
		"node_id", node.ID, "port", *data.Port, "level", level)
}

// actionLevel derives the target level from the action variant.
func actionLevel(data *ActionData) (int, bool) {
	switch {
	case data.Variant == ActionTurnOn:
		return 100, true
	case data.Variant == ActionTurnOff:
		return 0, true
	case strings.HasPrefix(data.Variant, "set_"):
		if data.Level == nil {
			return 0, false
		}
		return *data.Level, true
	default:
		if data.Level == nil {
			return 0, false
		}
		return *data.Level, true
	}
}

// runCondition evaluates the node and follows matching branches.
// Unlabeled edges are unconditional continuations and are followed
// regardless of the outcome, including when the node is skipped.
func (s *walkState) runCondition(ctx context.Context, node *Node) {
	held, evaluated := s.evaluateCondition(ctx, node)
	if !evaluated {
		s.result.Skipped++
	}

	for _, edge := range s.graph.edgesFrom(node.ID) {
		switch edge.Branch {
		case "":
			s.follow(ctx, edge)
		case BranchTrue:
			if evaluated && held {
				s.follow(ctx, edge)
			}
		case BranchFalse:
			if evaluated && !held {
				s.follow(ctx, edge)
			}
		}
	}
}

func (s *walkState) evaluateCondition(ctx context.Context, node *Node) (held, evaluated bool) {
	data := node.Condition
	if data.SensorType == "" {
		s.walker.logger.Warn("skipping condition node with no sensor type", "node_id", node.ID)
		return false, false
	}

	value, ok := s.reading(ctx, data.SensorType)
	if !ok {
		s.walker.logger.Warn("skipping condition node with no reading",
			"node_id", node.ID, "sensor_type", data.SensorType)
		return false, false
	}

	held, err := compare(value, data.Operator, data.Threshold)
	if err != nil {
		s.walker.logger.Warn("skipping condition node",
			"node_id", node.ID, "error", err)
		return false, false
	}

	s.walker.logger.Debug("condition evaluated",
		"node_id", node.ID, "sensor_type", data.SensorType,
		"value", value, "operator", data.Operator,
		"threshold", data.Threshold, "held", held)
	return held, true
}

// reading returns the cached value for a sensor type, loading the
// cache from the session on first use. One walk reads sensors at most
// once.
func (s *walkState) reading(ctx context.Context, sensorType string) (float64, bool) {
	if !s.readingsLoaded {
		s.readingsLoaded = true
		s.readings = make(map[string]float64)

		readings, err := s.session.ReadSensors(ctx)
		if err != nil {
			s.result.Err = errors.Join(s.result.Err,
				fmt.Errorf("reading sensors: %w", err))
			return 0, false
		}
		for _, r := range readings {
			s.readings[r.Type] = r.Value
		}
	}

	value, ok := s.readings[sensorType]
	return value, ok
}

func compare(value float64, operator string, threshold float64) (bool, error) {
	switch operator {
	case ">":
		return value > threshold, nil
	case "<":
		return value < threshold, nil
	case ">=":
		return value >= threshold, nil
	case "<=":
		return value <= threshold, nil
	case "==":
		return value == threshold, nil
	case "!=":
		return value != threshold, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidOperator, operator)
	}
}

// runDelay suspends the walk for the node duration, bounded by the
// walker's maximum. Out-of-band durations execute as zero delay.
func (s *walkState) runDelay(ctx context.Context, node *Node) {
	d := time.Duration(node.Delay.Duration) * time.Second
	if d <= 0 || d > s.walker.maxDelay {
		s.walker.logger.Debug("delay out of bounds, continuing immediately",
			"node_id", node.ID, "duration", node.Delay.Duration)
		return
	}

	if err := s.walker.sleep(ctx, d); err != nil {
		s.result.Err = errors.Join(s.result.Err, err)
	}
}

// sleepContext blocks for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
