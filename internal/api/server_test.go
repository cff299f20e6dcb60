package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/verdantops/canopy-core/internal/activity"
	"github.com/verdantops/canopy-core/internal/audit"
	"github.com/verdantops/canopy-core/internal/controller"
	"github.com/verdantops/canopy-core/internal/curve"
	"github.com/verdantops/canopy-core/internal/infrastructure/config"
	"github.com/verdantops/canopy-core/internal/infrastructure/logging"
	"github.com/verdantops/canopy-core/internal/jobs"
	"github.com/verdantops/canopy-core/internal/poller"
	"github.com/verdantops/canopy-core/internal/secrets"
	"github.com/verdantops/canopy-core/internal/workflow"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

type stubRunner struct {
	pollErr error
}

func (s *stubRunner) RunPoll(context.Context) (jobs.PollSummary, error) {
	if s.pollErr != nil {
		return jobs.PollSummary{}, s.pollErr
	}
	return jobs.PollSummary{
		Summary: poller.Summary{Total: 2, Succeeded: 2},
		OK:      true,
	}, nil
}

func (s *stubRunner) RunWorkflows(context.Context) (jobs.WorkflowSummary, error) {
	return jobs.WorkflowSummary{Workflows: 1, Runs: 1, Succeeded: 1, OK: true}, nil
}

func (s *stubRunner) RunSunlight(context.Context) (jobs.SunlightSummary, error) {
	return jobs.SunlightSummary{Configs: 1, Applied: 1, OK: true}, nil
}

type memControllerRepo struct {
	controllers map[string]*controller.Controller
}

func newMemControllerRepo() *memControllerRepo {
	return &memControllerRepo{controllers: make(map[string]*controller.Controller)}
}

func (m *memControllerRepo) GetByID(_ context.Context, id string) (*controller.Controller, error) {
	ctl, ok := m.controllers[id]
	if !ok {
		return nil, controller.ErrNotFound
	}
	return ctl.DeepCopy(), nil
}

func (m *memControllerRepo) List(context.Context) ([]controller.Controller, error) {
	var out []controller.Controller
	for _, ctl := range m.controllers {
		out = append(out, *ctl.DeepCopy())
	}
	return out, nil
}

func (m *memControllerRepo) ListActive(context.Context) ([]controller.Controller, error) {
	return m.List(context.Background())
}

func (m *memControllerRepo) Create(_ context.Context, ctl *controller.Controller) error {
	m.controllers[ctl.ID] = ctl.DeepCopy()
	return nil
}

func (m *memControllerRepo) Update(_ context.Context, ctl *controller.Controller) error {
	if _, ok := m.controllers[ctl.ID]; !ok {
		return controller.ErrNotFound
	}
	m.controllers[ctl.ID] = ctl.DeepCopy()
	return nil
}

func (m *memControllerRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.controllers[id]; !ok {
		return controller.ErrNotFound
	}
	delete(m.controllers, id)
	return nil
}

func (m *memControllerRepo) UpdateHealth(context.Context, string, controller.Status, *time.Time, *string) error {
	return nil
}

type stubActivityRepo struct {
	lastFilter activity.Filter
}

func (s *stubActivityRepo) Create(context.Context, *activity.Entry) error { return nil }

func (s *stubActivityRepo) List(_ context.Context, filter activity.Filter) (*activity.ListResult, error) {
	s.lastFilter = filter
	return &activity.ListResult{
		Entries: []activity.Entry{{ID: "act-1", Kind: activity.KindPoll, Result: activity.ResultSuccess}},
		Total:   1,
	}, nil
}

type stubAuditRepo struct {
	entries []audit.Entry
}

func (s *stubAuditRepo) Create(_ context.Context, entry *audit.Entry) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *stubAuditRepo) List(context.Context, audit.Filter) (*audit.ListResult, error) {
	return &audit.ListResult{Entries: s.entries, Total: len(s.entries)}, nil
}

type stubWorkflowRepo struct{}

func (stubWorkflowRepo) GetByID(context.Context, string) (*workflow.Workflow, error) {
	return nil, workflow.ErrNotFound
}
func (stubWorkflowRepo) ListActive(context.Context) ([]workflow.Workflow, error) { return nil, nil }
func (stubWorkflowRepo) Create(context.Context, *workflow.Workflow) error        { return nil }
func (stubWorkflowRepo) Update(context.Context, *workflow.Workflow) error        { return nil }
func (stubWorkflowRepo) Delete(context.Context, string) error                    { return nil }

type stubDimmerRepo struct{}

func (stubDimmerRepo) GetByID(context.Context, string) (*curve.DimmerConfig, error) {
	return nil, curve.ErrConfigNotFound
}
func (stubDimmerRepo) ListActive(context.Context) ([]curve.DimmerConfig, error) { return nil, nil }
func (stubDimmerRepo) ListByController(context.Context, string) ([]curve.DimmerConfig, error) {
	return nil, nil
}
func (stubDimmerRepo) Create(context.Context, *curve.DimmerConfig) error { return nil }
func (stubDimmerRepo) Update(context.Context, *curve.DimmerConfig) error { return nil }
func (stubDimmerRepo) Delete(context.Context, string) error              { return nil }

// ─── Fixtures ───────────────────────────────────────────────────────────────

type apiFixture struct {
	handler  http.Handler
	ctls     *memControllerRepo
	activity *stubActivityRepo
	audit    *stubAuditRepo
	runner   *stubRunner
	vault    *secrets.Vault
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()

	vault, err := secrets.NewVault(bytes.Repeat([]byte{0x2b}, 32))
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	ctls := newMemControllerRepo()
	acts := &stubActivityRepo{}
	trail := &stubAuditRepo{}
	runner := &stubRunner{}

	server, err := New(Deps{
		Config:      config.APIConfig{Host: "127.0.0.1", Port: 8080},
		Logger:      logging.New(config.LoggingConfig{Level: "error", Output: "stderr"}, "test"),
		Runner:      runner,
		Controllers: ctls,
		Workflows:   stubWorkflowRepo{},
		Dimmers:     stubDimmerRepo{},
		Activity:    acts,
		Audit:       trail,
		Vault:       vault,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &apiFixture{
		handler:  server.buildRouter(),
		ctls:     ctls,
		activity: acts,
		audit:    trail,
		runner:   runner,
		vault:    vault,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return v
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestHandleHealth(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	body := decodeBody[map[string]any](t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestHandleRunPoll(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodPost, "/api/v1/jobs/poll/run", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	summary := decodeBody[jobs.PollSummary](t, rec)
	if summary.Total != 2 || !summary.OK {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestHandleRunPoll_StartFailure(t *testing.T) {
	f := setupAPI(t)
	f.runner.pollErr = errors.New("repository unavailable")

	rec := f.do(t, http.MethodPost, "/api/v1/jobs/poll/run", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rec.Code)
	}
}

func TestHandleCreateController(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodPost, "/api/v1/controllers", map[string]any{
		"name":          "Veg Tent",
		"brand":         "simulated",
		"controller_id": "sim-001",
		"credentials":   map[string]string{"email": "grower@example.com", "password": "hunter2"},
		"capabilities": map[string]any{
			"sensors": []map[string]any{{"port": 1, "type": "temperature", "unit": "F"}},
			"devices": []map[string]any{{"port": 1, "kind": "fan", "levels": 10}},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201: %s", rec.Code, rec.Body.String())
	}

	created := decodeBody[controller.Controller](t, rec)
	if created.ID == "" || created.Status != controller.StatusInitializing {
		t.Errorf("unexpected controller: %+v", created)
	}

	// Credentials must be encrypted at rest and absent from responses.
	if bytes.Contains(rec.Body.Bytes(), []byte("hunter2")) {
		t.Error("plaintext password leaked into response")
	}
	stored := f.ctls.controllers[created.ID]
	plaintext, err := f.vault.Decrypt(stored.Credentials)
	if err != nil {
		t.Fatalf("stored credentials not decryptable: %v", err)
	}
	var creds struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(plaintext, &creds); err != nil || creds.Email != "grower@example.com" {
		t.Errorf("stored credentials: %s (err %v)", plaintext, err)
	}

	// Mutation should land in the audit trail.
	if len(f.audit.entries) != 1 {
		t.Fatalf("audit entries: got %d, want 1", len(f.audit.entries))
	}
	if got := f.audit.entries[0]; got.Action != "create" || got.EntityType != "controller" || got.EntityID != created.ID {
		t.Errorf("unexpected audit entry: %+v", got)
	}
}

func TestHandleCreateController_MissingFields(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodPost, "/api/v1/controllers", map[string]any{"name": "incomplete"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
}

func TestHandleGetController_NotFound(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodGet, "/api/v1/controllers/ctl-missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
}

func TestHandleCreateWorkflow_InvalidGraph(t *testing.T) {
	f := setupAPI(t)

	// Two triggers is never a valid graph.
	rec := f.do(t, http.MethodPost, "/api/v1/workflows", map[string]any{
		"name": "double trigger",
		"graph": map[string]any{
			"nodes": []map[string]any{
				{"id": "t1", "type": "trigger", "data": map[string]any{"variant": "timer"}},
				{"id": "t2", "type": "trigger", "data": map[string]any{"variant": "timer"}},
			},
			"edges": []map[string]any{},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCreateDimmer_Validation(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodPost, "/api/v1/dimmers", map[string]any{
		"controller_id": "ctl-1", "dimmer_port": 2,
		"sunrise_time": "26:00", "sunrise_duration": 60, "sunrise_curve": "linear",
		"sunset_time": "20:00", "sunset_duration": 60, "sunset_curve": "linear",
		"target_intensity": 80,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleListActivity_Filters(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodGet, "/api/v1/activity?kind=poll&controller_id=ctl-1&limit=10&offset=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	got := f.activity.lastFilter
	if got.Kind != activity.KindPoll || got.ControllerID != "ctl-1" || got.Limit != 10 || got.Offset != 5 {
		t.Errorf("filter not forwarded: %+v", got)
	}

	result := decodeBody[activity.ListResult](t, rec)
	if result.Total != 1 || len(result.Entries) != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("New should reject missing dependencies")
	}
}
