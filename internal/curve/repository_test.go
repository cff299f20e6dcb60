package curve

import (
	"context"
	"database/sql"
	"errors"
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
		CREATE TABLE dimmer_configs (
			id               TEXT PRIMARY KEY,
			controller_id    TEXT NOT NULL,
			dimmer_port      INTEGER NOT NULL,
			sunrise_time     TEXT NOT NULL,
			sunrise_duration INTEGER NOT NULL,
			sunrise_curve    TEXT NOT NULL DEFAULT 'linear',
			sunset_time      TEXT NOT NULL,
			sunset_duration  INTEGER NOT NULL,
			sunset_curve     TEXT NOT NULL DEFAULT 'linear',
			target_intensity INTEGER NOT NULL,
			is_active        INTEGER NOT NULL DEFAULT 1,
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL
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

func testConfig(id, controllerID string, port int) *DimmerConfig {
	return &DimmerConfig{
		ID:           id,
		ControllerID: controllerID,
		DimmerPort:   port,
		SunriseTime:  "06:00", SunriseDuration: 45, SunriseCurve: KindSigmoid,
		SunsetTime: "20:00", SunsetDuration: 45, SunsetCurve: KindLinear,
		TargetIntensity: 85,
		IsActive:        true,
	}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	cfg := testConfig("dim-1", "ctl-1", 2)
	if err := repo.Create(ctx, cfg); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, "dim-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ControllerID != "ctl-1" || got.DimmerPort != 2 {
		t.Errorf("identity: %+v", got)
	}
	if got.SunriseCurve != KindSigmoid || got.SunsetCurve != KindLinear {
		t.Errorf("curves not round-tripped: %+v", got)
	}
	if got.TargetIntensity != 85 || !got.IsActive {
		t.Errorf("fields not round-tripped: %+v", got)
	}
}

func TestSQLiteRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	if _, err := repo.GetByID(context.Background(), "dim-missing"); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("got %v, want ErrConfigNotFound", err)
	}
}

func TestSQLiteRepository_ListActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	active := testConfig("dim-1", "ctl-1", 1)
	retired := testConfig("dim-2", "ctl-1", 2)
	retired.IsActive = false

	for _, cfg := range []*DimmerConfig{active, retired} {
		if err := repo.Create(ctx, cfg); err != nil {
			t.Fatalf("Create %s: %v", cfg.ID, err)
		}
	}

	got, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(got) != 1 || got[0].ID != "dim-1" {
		t.Errorf("ListActive returned %d configs, want only dim-1", len(got))
	}
}

func TestSQLiteRepository_ListByController(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	for i, id := range []string{"dim-1", "dim-2"} {
		if err := repo.Create(ctx, testConfig(id, "ctl-1", i+1)); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := repo.Create(ctx, testConfig("dim-3", "ctl-2", 1)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.ListByController(ctx, "ctl-1")
	if err != nil {
		t.Fatalf("ListByController: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d configs for ctl-1, want 2", len(got))
	}
}

func TestSQLiteRepository_UpdateAndDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	cfg := testConfig("dim-1", "ctl-1", 1)
	if err := repo.Create(ctx, cfg); err != nil {
		t.Fatalf("Create: %v", err)
	}

	cfg.TargetIntensity = 60
	cfg.SunriseCurve = KindExponential
	if err := repo.Update(ctx, cfg); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := repo.GetByID(ctx, "dim-1")
	if got.TargetIntensity != 60 || got.SunriseCurve != KindExponential {
		t.Errorf("update not persisted: %+v", got)
	}

	if err := repo.Delete(ctx, "dim-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, "dim-1"); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("second delete: got %v, want ErrConfigNotFound", err)
	}

	missing := testConfig("dim-ghost", "ctl-1", 1)
	if err := repo.Update(ctx, missing); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("update missing: got %v, want ErrConfigNotFound", err)
	}
}
