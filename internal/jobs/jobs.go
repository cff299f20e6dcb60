// Package jobs exposes the three periodic engines as idempotent
// run-once operations: poll all controllers, execute all workflows,
// and apply sunrise/sunset ramps. An external timer (cron in the main
// binary, or the run-now API) decides when; each job decides what and
// returns a structured summary of everything it did.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/verdantops/canopy-core/internal/activity"
	"github.com/verdantops/canopy-core/internal/adapter"
	"github.com/verdantops/canopy-core/internal/controller"
	"github.com/verdantops/canopy-core/internal/curve"
	"github.com/verdantops/canopy-core/internal/infrastructure/mqtt"
	"github.com/verdantops/canopy-core/internal/poller"
	"github.com/verdantops/canopy-core/internal/secrets"
	"github.com/verdantops/canopy-core/internal/workflow"
)

// Logger defines the logging interface used by the Runner.
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

// EventPublisher pushes job events to the message broker.
// Satisfied by the mqtt client; leave unset to disable events.
type EventPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// DimmerSink receives applied dimmer levels for telemetry charting.
// Satisfied by the InfluxDB client; leave unset to disable.
type DimmerSink interface {
	WriteDimmerIntensity(controllerID string, port int, event string, intensity int)
}

// Runner owns the three job entry points and the dependencies they
// share. All jobs are safe to invoke repeatedly; none keeps state
// between runs beyond the adapter session cache.
type Runner struct {
	controllers controller.Repository
	workflows   workflow.Repository
	dimmers     curve.Repository
	decryptor   secrets.Decryptor
	registry    *adapter.Registry
	sessions    *adapter.SessionStore
	scheduler   *poller.Scheduler
	walker      *workflow.Walker

	recorder *activity.Recorder
	events   EventPublisher
	sink     DimmerSink
	logger   Logger
	topics   mqtt.Topics

	now func() time.Time
}

// NewRunner wires a job runner from its required dependencies.
// Optional collaborators (recorder, events, telemetry) attach via
// setters.
func NewRunner(
	controllers controller.Repository,
	workflows workflow.Repository,
	dimmers curve.Repository,
	decryptor secrets.Decryptor,
	registry *adapter.Registry,
	sessions *adapter.SessionStore,
	scheduler *poller.Scheduler,
	walker *workflow.Walker,
) *Runner {
	return &Runner{
		controllers: controllers,
		workflows:   workflows,
		dimmers:     dimmers,
		decryptor:   decryptor,
		registry:    registry,
		sessions:    sessions,
		scheduler:   scheduler,
		walker:      walker,
		logger:      noopLogger{},
		now:         time.Now,
	}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	r.logger = logger
}

// SetRecorder sets the activity recorder. Nil records nothing.
func (r *Runner) SetRecorder(recorder *activity.Recorder) {
	r.recorder = recorder
}

// SetEventPublisher enables MQTT job events. Only call with a live
// client; a typed-nil publisher would pass the interface nil check.
func (r *Runner) SetEventPublisher(events EventPublisher) {
	r.events = events
}

// SetDimmerSink enables dimmer telemetry.
func (r *Runner) SetDimmerSink(sink DimmerSink) {
	r.sink = sink
}

// sessionFor returns a connected adapter session for a controller,
// reusing the cache the poll scheduler shares. The returned release
// func holds the controller's session lock; the caller must invoke it
// after its last call on the session. On error no lock is held.
func (r *Runner) sessionFor(ctx context.Context, ctl *controller.Controller) (adapter.Adapter, func(), error) {
	credentials, err := r.decryptor.Decrypt(ctl.Credentials)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypting credentials: %w", err)
	}

	key := adapter.SessionKey(ctl.Brand, ctl.ControllerID)
	release := r.sessions.Acquire(key)

	session, ok := r.sessions.Get(key)
	if !ok {
		if session, err = r.registry.New(ctl); err != nil {
			release()
			return nil, nil, err
		}
	}

	if !session.Connected() {
		if err := session.Connect(ctx, credentials); err != nil {
			release()
			return nil, nil, fmt.Errorf("connecting: %w", err)
		}
	}
	r.sessions.Put(key, session)
	return session, release, nil
}

// publish sends one JSON event, logging rather than failing on error.
// Job results never depend on broker availability.
func (r *Runner) publish(topic string, payload any) {
	if r.events == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn("marshalling event payload", "topic", topic, "error", err)
		return
	}
	if err := r.events.Publish(topic, body, 1, false); err != nil {
		r.logger.Warn("publishing event", "topic", topic, "error", err)
	}
}
