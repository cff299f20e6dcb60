package activity

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE activity_logs (
			id            TEXT PRIMARY KEY,
			kind          TEXT NOT NULL,
			controller_id TEXT,
			workflow_id   TEXT,
			result        TEXT NOT NULL,
			metadata      TEXT,
			created_at    TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	entry := &Entry{
		Kind:         KindPoll,
		ControllerID: "ctl-1",
		Result:       ResultSuccess,
		Metadata:     map[string]any{"readings": 4},
	}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if entry.ID == "" || entry.CreatedAt.IsZero() {
		t.Errorf("Create did not populate defaults: %+v", entry)
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 1 || len(result.Entries) != 1 {
		t.Fatalf("got total=%d entries=%d, want 1", result.Total, len(result.Entries))
	}

	got := result.Entries[0]
	if got.Kind != KindPoll || got.ControllerID != "ctl-1" || got.Result != ResultSuccess {
		t.Errorf("entry not round-tripped: %+v", got)
	}
	if got.Metadata["readings"] != float64(4) {
		t.Errorf("metadata: %+v", got.Metadata)
	}
}

func TestSQLiteRepository_ListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	seed := []*Entry{
		{Kind: KindPoll, ControllerID: "ctl-1", Result: ResultSuccess},
		{Kind: KindPoll, ControllerID: "ctl-2", Result: ResultFailed},
		{Kind: KindWorkflow, ControllerID: "ctl-1", WorkflowID: "wf-1", Result: ResultSuccess},
		{Kind: KindSunlight, ControllerID: "ctl-1", Result: ResultSkipped},
	}
	for _, e := range seed {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"by kind", Filter{Kind: KindPoll}, 2},
		{"by controller", Filter{ControllerID: "ctl-1"}, 3},
		{"by workflow", Filter{WorkflowID: "wf-1"}, 1},
		{"by result", Filter{Result: ResultFailed}, 1},
		{"combined", Filter{Kind: KindPoll, ControllerID: "ctl-1"}, 1},
		{"no match", Filter{ControllerID: "ctl-9"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if result.Total != tt.want {
				t.Errorf("total: got %d, want %d", result.Total, tt.want)
			}
		})
	}
}

func TestSQLiteRepository_ListPagination(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.Create(ctx, &Entry{Kind: KindPoll, Result: ResultSuccess}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 5 || len(result.Entries) != 2 {
		t.Errorf("page 1: total=%d entries=%d, want 5/2", result.Total, len(result.Entries))
	}

	last, err := repo.List(ctx, Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(last.Entries) != 1 {
		t.Errorf("last page: got %d entries, want 1", len(last.Entries))
	}
}

// ─── Recorder ───────────────────────────────────────────────────────────────

// failingRepo always fails Create, for testing fire-and-forget behavior.
type failingRepo struct{}

func (failingRepo) Create(context.Context, *Entry) error {
	return errors.New("disk full")
}

func (failingRepo) List(context.Context, Filter) (*ListResult, error) {
	return nil, errors.New("disk full")
}

// captureLogger records Warn calls.
type captureLogger struct {
	mu    sync.Mutex
	warns int
}

func (l *captureLogger) Debug(string, ...any) {}
func (l *captureLogger) Info(string, ...any)  {}
func (l *captureLogger) Error(string, ...any) {}
func (l *captureLogger) Warn(string, ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns++
}

func TestRecorder_FireAndForget(t *testing.T) {
	logger := &captureLogger{}
	rec := NewRecorder(failingRepo{})
	rec.SetLogger(logger)

	// Must not panic or surface the failure.
	rec.Record(context.Background(), KindPoll, "ctl-1", "", ResultFailed, nil)

	if logger.warns != 1 {
		t.Errorf("dropped entry warnings: got %d, want 1", logger.warns)
	}
}

func TestRecorder_NilIsSafe(t *testing.T) {
	var rec *Recorder
	rec.Record(context.Background(), KindWorkflow, "", "wf-1", ResultSuccess, nil)
}

func TestRecorder_PersistsEntries(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	rec := NewRecorder(repo)
	ctx := context.Background()

	rec.Record(ctx, KindSunlight, "ctl-1", "", ResultSuccess, map[string]any{"intensity": 40})

	result, err := repo.List(ctx, Filter{Kind: KindSunlight})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("recorded entries: got %d, want 1", result.Total)
	}
}
