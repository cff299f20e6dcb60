package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/verdantops/canopy-core/internal/adapter"
	"github.com/verdantops/canopy-core/internal/controller"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

// mockRepo implements controller.Repository over a fixed slice.
// When static is true, UpdateHealth is a no-op so eligibility state
// never changes between runs.
type mockRepo struct {
	mu          sync.Mutex
	controllers []controller.Controller
	listErr     error
	static      bool
	health      map[string]controller.Status
}

func newMockRepo(controllers ...controller.Controller) *mockRepo {
	return &mockRepo{
		controllers: controllers,
		health:      make(map[string]controller.Status),
	}
}

func (m *mockRepo) ListActive(context.Context) ([]controller.Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]controller.Controller, len(m.controllers))
	copy(out, m.controllers)
	return out, nil
}

func (m *mockRepo) UpdateHealth(_ context.Context, id string, status controller.Status, lastSeen *time.Time, lastErr *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health[id] = status
	if m.static {
		return nil
	}
	for i := range m.controllers {
		if m.controllers[i].ID != id {
			continue
		}
		m.controllers[i].Status = status
		if lastSeen != nil {
			seen := *lastSeen
			m.controllers[i].LastSeen = &seen
		}
		m.controllers[i].LastError = lastErr
	}
	return nil
}

func (m *mockRepo) GetByID(context.Context, string) (*controller.Controller, error) {
	return nil, controller.ErrNotFound
}
func (m *mockRepo) List(context.Context) ([]controller.Controller, error) { return nil, nil }
func (m *mockRepo) Create(context.Context, *controller.Controller) error  { return nil }
func (m *mockRepo) Update(context.Context, *controller.Controller) error  { return nil }
func (m *mockRepo) Delete(context.Context, string) error                  { return nil }

// fakeDecryptor maps ciphertexts to plaintexts.
type fakeDecryptor struct {
	plaintexts map[string]string
}

func (d fakeDecryptor) Decrypt(ciphertext string) ([]byte, error) {
	p, ok := d.plaintexts[ciphertext]
	if !ok {
		return nil, errors.New("decrypt failed")
	}
	return []byte(p), nil
}

// ctlBehavior scripts one controller's adapter.
type ctlBehavior struct {
	connectErr  error
	readErr     error
	panicOnRead bool
	readings    int
}

type apiCall struct {
	controllerID string
	at           time.Time
}

// mockBackend is shared by all mock adapters in one test so call
// interleaving across controllers can be asserted.
type mockBackend struct {
	mu        sync.Mutex
	behaviors map[string]*ctlBehavior
	calls     []apiCall
	connects  map[string]int
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		behaviors: make(map[string]*ctlBehavior),
		connects:  make(map[string]int),
	}
}

func (b *mockBackend) behavior(id string) *ctlBehavior {
	if bh, ok := b.behaviors[id]; ok {
		return bh
	}
	return &ctlBehavior{readings: 2}
}

func (b *mockBackend) factory(ctl *controller.Controller) adapter.Adapter {
	return &mockAdapter{backend: b, id: ctl.ControllerID}
}

type mockAdapter struct {
	backend   *mockBackend
	id        string
	connected bool
}

func (m *mockAdapter) Connect(context.Context, []byte) error {
	m.backend.mu.Lock()
	defer m.backend.mu.Unlock()
	m.backend.connects[m.id]++
	if err := m.backend.behavior(m.id).connectErr; err != nil {
		return err
	}
	m.connected = true
	return nil
}

func (m *mockAdapter) ReadSensors(context.Context) ([]adapter.SensorReading, error) {
	m.backend.mu.Lock()
	bh := m.backend.behavior(m.id)
	m.backend.calls = append(m.backend.calls, apiCall{m.id, time.Now()})
	m.backend.mu.Unlock()

	if bh.panicOnRead {
		panic("vendor SDK exploded")
	}
	if bh.readErr != nil {
		return nil, bh.readErr
	}

	readings := make([]adapter.SensorReading, bh.readings)
	for i := range readings {
		readings[i] = adapter.SensorReading{
			Port: i + 1, Type: "temperature", Value: 75, Unit: "F", Timestamp: time.Now(),
		}
	}
	return readings, nil
}

func (m *mockAdapter) ControlDevice(context.Context, int, int) error { return nil }
func (m *mockAdapter) Disconnect(context.Context) error              { m.connected = false; return nil }
func (m *mockAdapter) Connected() bool                               { return m.connected }

// capturedReading is what the sink saw.
type capturedSink struct {
	mu       sync.Mutex
	readings int
}

func (s *capturedSink) WriteSensorReading(string, int, string, float64, string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings++
}

// ─── Fixtures ───────────────────────────────────────────────────────────────

func onlineController(id, vendorID, ciphertext string) controller.Controller {
	return controller.Controller{
		ID:           id,
		Name:         "Tent " + id,
		Brand:        "mock",
		ControllerID: vendorID,
		Credentials:  ciphertext,
		Status:       controller.StatusOnline,
		IsActive:     true,
	}
}

func setupScheduler(t *testing.T, cfg Config, repo *mockRepo, backend *mockBackend, decryptor fakeDecryptor) *Scheduler {
	t.Helper()

	registry := adapter.NewRegistry()
	registry.Register("mock", backend.factory)

	s := NewScheduler(cfg, repo, decryptor, registry, adapter.NewSessionStore())
	// Tests use the tightest legal spacing unless they measure it.
	if cfg.Spacing == 0 {
		s.cfg.Spacing = time.Millisecond
	}
	return s
}

func sharedAccountDecryptor() fakeDecryptor {
	return fakeDecryptor{plaintexts: map[string]string{
		"enc-a": `{"email":"Grower@Example.com","password":"p"}`,
		"enc-b": `{"email":"grower@example.com","password":"p"}`,
		"enc-c": `{"email":"other@example.com","password":"p"}`,
	}}
}

func outcomeByID(s Summary, id string) Outcome {
	for _, o := range s.Outcomes {
		if o.ControllerID == id {
			return o
		}
	}
	return Outcome{}
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestScheduler_SuccessfulRun(t *testing.T) {
	repo := newMockRepo(
		onlineController("ctl-a", "dev-a", "enc-a"),
		onlineController("ctl-c", "dev-c", "enc-c"),
	)
	backend := newMockBackend()
	sink := &capturedSink{}

	s := setupScheduler(t, Config{}, repo, backend, sharedAccountDecryptor())
	s.SetReadingSink(sink)

	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Total != 2 || summary.Succeeded != 2 || summary.Failed != 0 {
		t.Errorf("summary: %+v", summary)
	}
	if summary.Readings != 4 {
		t.Errorf("readings: got %d, want 4", summary.Readings)
	}
	if !summary.OK() {
		t.Error("clean run should be OK")
	}
	if sink.readings != 4 {
		t.Errorf("sink received %d readings, want 4", sink.readings)
	}
	if repo.health["ctl-a"] != controller.StatusOnline {
		t.Errorf("health: %v", repo.health)
	}
}

func TestScheduler_Classification(t *testing.T) {
	repo := newMockRepo(
		onlineController("ctl-a", "dev-a", "enc-a"),
		onlineController("ctl-b", "dev-b", "enc-b"),
		onlineController("ctl-c", "dev-c", "enc-missing"),
	)
	backend := newMockBackend()
	backend.behaviors["dev-a"] = &ctlBehavior{readErr: errors.New("vendor 500")}
	backend.behaviors["dev-b"] = &ctlBehavior{connectErr: errors.New("bad token")}

	s := setupScheduler(t, Config{}, repo, backend, sharedAccountDecryptor())

	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := outcomeByID(summary, "ctl-a"); got.Status != StatusDegraded {
		t.Errorf("read failure: got %s, want degraded (%+v)", got.Status, got)
	}
	if got := outcomeByID(summary, "ctl-b"); got.Status != StatusFailed {
		t.Errorf("connect failure: got %s, want failed", got.Status)
	}
	if got := outcomeByID(summary, "ctl-c"); got.Status != StatusFailed {
		t.Errorf("decrypt failure: got %s, want failed", got.Status)
	}

	// Degraded keeps the controller online; hard failures mark error.
	if repo.health["ctl-a"] != controller.StatusOnline {
		t.Errorf("degraded controller status: %s", repo.health["ctl-a"])
	}
	if repo.health["ctl-b"] != controller.StatusError {
		t.Errorf("failed controller status: %s", repo.health["ctl-b"])
	}
	if summary.OK() {
		t.Error("run with failures should not be OK")
	}
}

func TestScheduler_IneligibleControllersSkipped(t *testing.T) {
	stale := time.Now().Add(-2 * time.Hour).UTC()
	msg := "old failure"
	cold := onlineController("ctl-cold", "dev-cold", "enc-a")
	cold.Status = controller.StatusError
	cold.LastSeen = &stale
	cold.LastError = &msg

	repo := newMockRepo(onlineController("ctl-a", "dev-a", "enc-a"), cold)
	backend := newMockBackend()

	s := setupScheduler(t, Config{RecencyWindow: 30 * time.Minute}, repo, backend, sharedAccountDecryptor())

	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := outcomeByID(summary, "ctl-cold"); got.Status != StatusSkipped {
		t.Errorf("cold controller: got %s, want skipped", got.Status)
	}
	if summary.Skipped != 1 || summary.Succeeded != 1 {
		t.Errorf("summary: %+v", summary)
	}

	// Skipped controllers never reach the adapter.
	for _, c := range backend.calls {
		if c.controllerID == "dev-cold" {
			t.Error("skipped controller was polled")
		}
	}
}

func TestScheduler_EligibilityHeuristic(t *testing.T) {
	now := time.Now().UTC()
	recent := now.Add(-10 * time.Minute)
	errMsg := "boom"

	tests := []struct {
		name string
		ctl  controller.Controller
		want bool
	}{
		{"online", controller.Controller{Status: controller.StatusOnline, LastError: &errMsg}, true},
		{"recently seen", controller.Controller{Status: controller.StatusError, LastSeen: &recent, LastError: &errMsg}, true},
		{"never errored", controller.Controller{Status: controller.StatusInitializing}, true},
		{"cold and errored", controller.Controller{Status: controller.StatusError, LastError: &errMsg}, false},
	}

	s := setupScheduler(t, Config{RecencyWindow: 30 * time.Minute}, newMockRepo(), newMockBackend(), sharedAccountDecryptor())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.eligible(&tt.ctl); got != tt.want {
				t.Errorf("eligible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScheduler_DomainPartitioning(t *testing.T) {
	// a and b share an account (case-insensitive email match); c is
	// separate; d's credentials cannot be resolved.
	d := onlineController("ctl-d", "dev-d", "enc-missing")
	repo := newMockRepo(
		onlineController("ctl-a", "dev-a", "enc-a"),
		onlineController("ctl-b", "dev-b", "enc-b"),
		onlineController("ctl-c", "dev-c", "enc-c"),
		d,
	)

	s := setupScheduler(t, Config{}, repo, newMockBackend(), sharedAccountDecryptor())

	controllers, _ := repo.ListActive(context.Background())
	domains, order, skipped := s.partition(controllers)

	if len(skipped) != 0 {
		t.Fatalf("unexpected skips: %v", skipped)
	}
	if len(order) != 3 {
		t.Fatalf("domains: got %d (%v), want 3", len(order), order)
	}
	if got := len(domains["mock/grower@example.com"]); got != 2 {
		t.Errorf("shared account domain has %d controllers, want 2", got)
	}
	if got := len(domains["singleton/ctl-d"]); got != 1 {
		t.Errorf("unresolvable account should be a singleton domain: %v", domains)
	}
}

func TestScheduler_RateLimitSpacing(t *testing.T) {
	const spacing = 3 * time.Millisecond

	repo := newMockRepo(
		onlineController("ctl-a", "dev-a", "enc-a"),
		onlineController("ctl-b", "dev-b", "enc-b"),
	)
	backend := newMockBackend()
	s := setupScheduler(t, Config{Spacing: spacing}, repo, backend, sharedAccountDecryptor())

	ctx := context.Background()
	for run := 0; run < 100; run++ {
		if _, err := s.Run(ctx); err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
	}

	calls := backend.calls
	if len(calls) != 200 {
		t.Fatalf("calls: got %d, want 200", len(calls))
	}
	// Both controllers share one domain, so calls are strictly
	// sequential and every adjacent pair inside a run respects the
	// spacing.
	for i := 1; i < len(calls); i += 2 {
		gap := calls[i].at.Sub(calls[i-1].at)
		if gap < spacing {
			t.Fatalf("call %d issued %v after previous, want >= %v", i, gap, spacing)
		}
	}
}

func TestScheduler_PartialFailureIsolation(t *testing.T) {
	repo := newMockRepo(
		onlineController("ctl-a", "dev-a", "enc-a"),
		onlineController("ctl-b", "dev-b", "enc-b"),
		onlineController("ctl-c", "dev-c", "enc-c"),
	)
	backend := newMockBackend()
	backend.behaviors["dev-b"] = &ctlBehavior{panicOnRead: true}

	s := setupScheduler(t, Config{}, repo, backend, sharedAccountDecryptor())

	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := outcomeByID(summary, "ctl-b"); got.Status != StatusFailed || got.Error == "" {
		t.Errorf("panicking controller: %+v", got)
	}
	for _, id := range []string{"ctl-a", "ctl-c"} {
		if got := outcomeByID(summary, id); got.Status != StatusSuccess {
			t.Errorf("%s affected by sibling panic: %+v", id, got)
		}
	}
	if len(summary.Outcomes) != 3 {
		t.Errorf("every controller needs exactly one outcome: %d", len(summary.Outcomes))
	}
}

func TestScheduler_ClassificationIsIdempotent(t *testing.T) {
	repo := newMockRepo(
		onlineController("ctl-a", "dev-a", "enc-a"),
		onlineController("ctl-b", "dev-b", "enc-missing"),
	)
	repo.static = true // freeze state between runs
	backend := newMockBackend()

	s := setupScheduler(t, Config{}, repo, backend, sharedAccountDecryptor())
	ctx := context.Background()

	first, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	for _, o := range first.Outcomes {
		if again := outcomeByID(second, o.ControllerID); again.Status != o.Status {
			t.Errorf("%s flapped: %s then %s", o.ControllerID, o.Status, again.Status)
		}
	}
}

func TestScheduler_SessionsAreReused(t *testing.T) {
	repo := newMockRepo(onlineController("ctl-a", "dev-a", "enc-a"))
	backend := newMockBackend()

	s := setupScheduler(t, Config{}, repo, backend, sharedAccountDecryptor())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Run(ctx); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	if got := backend.connects["dev-a"]; got != 1 {
		t.Errorf("connects: got %d, want 1 (session reuse)", got)
	}
}

func TestScheduler_ListFailure(t *testing.T) {
	repo := newMockRepo()
	repo.listErr = fmt.Errorf("database locked")

	s := setupScheduler(t, Config{}, repo, newMockBackend(), sharedAccountDecryptor())

	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("list failure should surface as a run error")
	}
}
