package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/verdantops/canopy-core/internal/activity"
	"github.com/verdantops/canopy-core/internal/adapter"
	"github.com/verdantops/canopy-core/internal/controller"
	"github.com/verdantops/canopy-core/internal/secrets"
)

// Logger defines the logging interface used by the Scheduler.
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

// ReadingSink receives every sensor reading a poll collects.
// Implemented by the InfluxDB telemetry client; nil disables it.
type ReadingSink interface {
	WriteSensorReading(controllerID string, port int, sensorType string, value float64, unit string, timestamp time.Time)
}

// Config tunes one scheduler instance. Zero values take defaults.
type Config struct {
	// Spacing is the mandatory delay between consecutive calls inside
	// one rate-limit domain. Violating it trips vendor account
	// throttling that degrades every controller on the account.
	Spacing time.Duration

	// MaxConcurrentDomains bounds the cross-domain worker pool.
	MaxConcurrentDomains int

	// ControllerTimeout caps one controller's connect plus read, so a
	// hung vendor call cannot stall the whole run.
	ControllerTimeout time.Duration

	// RecencyWindow keeps recently-seen controllers eligible even when
	// their status has lapsed from online.
	RecencyWindow time.Duration
}

const (
	defaultSpacing       = 1500 * time.Millisecond
	defaultMaxDomains    = 4
	defaultTimeout       = 30 * time.Second
	defaultRecencyWindow = 30 * time.Minute
)

// Scheduler polls all active controllers once per Run, grouped into
// rate-limit domains derived from decrypted account identity.
type Scheduler struct {
	cfg       Config
	repo      controller.Repository
	decryptor secrets.Decryptor
	registry  *adapter.Registry
	sessions  *adapter.SessionStore

	recorder *activity.Recorder
	sink     ReadingSink
	logger   Logger

	// sleep and now are replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewScheduler creates a poll scheduler. Zero-valued Config fields
// fall back to defaults.
func NewScheduler(cfg Config, repo controller.Repository, decryptor secrets.Decryptor, registry *adapter.Registry, sessions *adapter.SessionStore) *Scheduler {
	if cfg.Spacing <= 0 {
		cfg.Spacing = defaultSpacing
	}
	if cfg.MaxConcurrentDomains <= 0 {
		cfg.MaxConcurrentDomains = defaultMaxDomains
	}
	if cfg.ControllerTimeout <= 0 {
		cfg.ControllerTimeout = defaultTimeout
	}
	if cfg.RecencyWindow <= 0 {
		cfg.RecencyWindow = defaultRecencyWindow
	}

	return &Scheduler{
		cfg:       cfg,
		repo:      repo,
		decryptor: decryptor,
		registry:  registry,
		sessions:  sessions,
		logger:    noopLogger{},
		sleep:     sleepContext,
		now:       time.Now,
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// SetRecorder sets the activity recorder. Nil records nothing.
func (s *Scheduler) SetRecorder(recorder *activity.Recorder) {
	s.recorder = recorder
}

// SetReadingSink sets the telemetry sink. Nil disables telemetry.
func (s *Scheduler) SetReadingSink(sink ReadingSink) {
	s.sink = sink
}

// task is one controller's unit of work after partitioning.
type task struct {
	ctl         controller.Controller
	credentials []byte
	decryptErr  error
	domain      string
}

// Run polls the current eligible controller set once.
//
// Domains execute concurrently up to the configured bound; within a
// domain, controllers are polled strictly in sequence with the
// mandatory spacing between calls. Every controller yields exactly one
// Outcome; the only error Run itself returns is a failure to load the
// controller set.
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	start := s.now()
	var summary Summary

	controllers, err := s.repo.ListActive(ctx)
	if err != nil {
		return summary, fmt.Errorf("loading controllers: %w", err)
	}

	domains, order, skipped := s.partition(controllers)

	var mu sync.Mutex
	outcomes := make([]Outcome, 0, len(controllers))
	record := func(o Outcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	}

	for _, o := range skipped {
		record(o)
		s.recordActivity(ctx, o)
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrentDomains)

	for _, key := range order {
		tasks := domains[key]
		g.Go(func() error {
			for i, t := range tasks {
				if i > 0 {
					if err := s.sleep(ctx, s.cfg.Spacing); err != nil {
						record(Outcome{
							ControllerID: t.ctl.ID,
							Status:       StatusFailed,
							Error:        err.Error(),
							Domain:       t.domain,
						})
						continue
					}
				}
				o := s.pollOne(ctx, t)
				record(o)
				s.recordActivity(ctx, o)
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors; failures live in outcomes

	summary.Outcomes = outcomes
	for _, o := range outcomes {
		summary.tally(o)
	}
	summary.Duration = s.now().Sub(start)

	s.logger.Info("poll run complete",
		"total", summary.Total, "succeeded", summary.Succeeded,
		"degraded", summary.Degraded, "failed", summary.Failed,
		"skipped", summary.Skipped, "readings", summary.Readings,
		"duration", summary.Duration)
	return summary, nil
}

// partition splits controllers into skipped outcomes and rate-limit
// domains. Domain order follows first appearance, so runs are
// deterministic for a given controller set.
func (s *Scheduler) partition(controllers []controller.Controller) (map[string][]task, []string, []Outcome) {
	domains := make(map[string][]task)
	var order []string
	var skipped []Outcome

	for _, ctl := range controllers {
		if !s.eligible(&ctl) {
			skipped = append(skipped, Outcome{
				ControllerID: ctl.ID,
				Status:       StatusSkipped,
			})
			continue
		}

		t := task{ctl: ctl}
		t.credentials, t.decryptErr = s.decryptor.Decrypt(ctl.Credentials)
		t.domain = s.domainKey(&ctl, t.credentials, t.decryptErr)

		if _, exists := domains[t.domain]; !exists {
			order = append(order, t.domain)
		}
		domains[t.domain] = append(domains[t.domain], t)
	}
	return domains, order, skipped
}

// eligible applies the generous inclusion filter: currently online, or
// seen within the recency window, or never errored. Transient blips
// must not permanently exclude a controller.
func (s *Scheduler) eligible(ctl *controller.Controller) bool {
	if ctl.Status == controller.StatusOnline {
		return true
	}
	if ctl.LastSeen != nil && s.now().Sub(*ctl.LastSeen) <= s.cfg.RecencyWindow {
		return true
	}
	return ctl.LastError == nil
}

// accountIdentity is the slice of a credential document that names the
// vendor account. Rate limits are per account, not per device.
type accountIdentity struct {
	Email string `json:"email"`
}

// domainKey derives the rate-limit domain for a controller.
// Controllers whose account cannot be resolved become singleton
// domains keyed by their own ID.
func (s *Scheduler) domainKey(ctl *controller.Controller, credentials []byte, decryptErr error) string {
	if decryptErr == nil {
		var id accountIdentity
		if err := json.Unmarshal(credentials, &id); err == nil && id.Email != "" {
			return ctl.Brand + "/" + strings.ToLower(id.Email)
		}
	}
	return "singleton/" + ctl.ID
}

// pollOne executes a single controller's attempt and classifies it.
// Panics and timeouts are contained here; nothing escapes to abort the
// batch.
func (s *Scheduler) pollOne(ctx context.Context, t task) (outcome Outcome) {
	outcome = Outcome{ControllerID: t.ctl.ID, Domain: t.domain}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("poll attempt panicked",
				"controller_id", t.ctl.ID, "panic", r)
			outcome.Status = StatusFailed
			outcome.Error = fmt.Sprintf("poll panicked: %v", r)
			s.markError(ctx, t.ctl.ID, outcome.Error)
		}
	}()

	if t.decryptErr != nil {
		outcome.Status = StatusFailed
		outcome.Error = fmt.Sprintf("decrypting credentials: %v", t.decryptErr)
		s.markError(ctx, t.ctl.ID, outcome.Error)
		return outcome
	}

	tctx, cancel := context.WithTimeout(ctx, s.cfg.ControllerTimeout)
	defer cancel()

	// Holding the session lock keeps a concurrent workflow or sunlight
	// run off this controller's adapter while we use it.
	key := adapter.SessionKey(t.ctl.Brand, t.ctl.ControllerID)
	release := s.sessions.Acquire(key)
	defer release()

	session, ok := s.sessions.Get(key)
	if !ok {
		var err error
		session, err = s.registry.New(&t.ctl)
		if err != nil {
			outcome.Status = StatusFailed
			outcome.Error = err.Error()
			s.markError(ctx, t.ctl.ID, outcome.Error)
			return outcome
		}
	}

	if !session.Connected() {
		if err := session.Connect(tctx, t.credentials); err != nil {
			outcome.Status = StatusFailed
			outcome.Error = fmt.Sprintf("connecting: %v", err)
			s.markError(ctx, t.ctl.ID, outcome.Error)
			return outcome
		}
	}
	s.sessions.Put(key, session)

	readings, err := session.ReadSensors(tctx)
	seen := s.now().UTC()
	if err != nil {
		// The session connected, so the controller is reachable;
		// a failed read degrades the attempt without marking the
		// controller errored.
		outcome.Status = StatusDegraded
		outcome.Error = fmt.Sprintf("reading sensors: %v", err)
		msg := outcome.Error
		s.updateHealth(ctx, t.ctl.ID, controller.StatusOnline, &seen, &msg)
		return outcome
	}

	outcome.Status = StatusSuccess
	outcome.Readings = len(readings)
	s.updateHealth(ctx, t.ctl.ID, controller.StatusOnline, &seen, nil)

	if s.sink != nil {
		for _, r := range readings {
			s.sink.WriteSensorReading(t.ctl.ID, r.Port, r.Type, r.Value, r.Unit, r.Timestamp)
		}
	}
	return outcome
}

// markError transitions a controller to error status after a failed
// attempt. The previous last_seen is preserved.
func (s *Scheduler) markError(ctx context.Context, id, msg string) {
	s.updateHealth(ctx, id, controller.StatusError, nil, &msg)
}

// updateHealth persists a health transition. Store failures are logged
// and swallowed: one controller's bookkeeping must not change its own
// or any sibling's outcome.
func (s *Scheduler) updateHealth(ctx context.Context, id string, status controller.Status, lastSeen *time.Time, lastErr *string) {
	if err := s.repo.UpdateHealth(ctx, id, status, lastSeen, lastErr); err != nil {
		s.logger.Warn("updating controller health failed",
			"controller_id", id, "status", status, "error", err)
	}
}

func (s *Scheduler) recordActivity(ctx context.Context, o Outcome) {
	result := activity.ResultSuccess
	switch o.Status {
	case StatusFailed, StatusDegraded:
		result = activity.ResultFailed
	case StatusSkipped:
		result = activity.ResultSkipped
	}

	metadata := map[string]any{"status": string(o.Status), "readings": o.Readings}
	if o.Error != "" {
		metadata["error"] = o.Error
	}
	s.recorder.Record(ctx, activity.KindPoll, o.ControllerID, "", result, metadata)
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
