package curve

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrConfigNotFound is returned when a dimmer config does not exist.
var ErrConfigNotFound = errors.New("curve: dimmer config not found")

// Repository defines the interface for dimmer config persistence.
type Repository interface {
	// GetByID retrieves a dimmer config by its unique identifier.
	// Returns ErrConfigNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*DimmerConfig, error)

	// ListActive retrieves active configs, the set the sunlight job
	// evaluates every run.
	ListActive(ctx context.Context) ([]DimmerConfig, error)

	// ListByController retrieves all configs for one controller.
	ListByController(ctx context.Context, controllerID string) ([]DimmerConfig, error)

	// Create inserts a new dimmer config.
	Create(ctx context.Context, cfg *DimmerConfig) error

	// Update modifies an existing config.
	// Returns ErrConfigNotFound if it does not exist.
	Update(ctx context.Context, cfg *DimmerConfig) error

	// Delete removes a config by ID.
	// Returns ErrConfigNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const dimmerColumns = `id, controller_id, dimmer_port, sunrise_time, sunrise_duration,
	sunrise_curve, sunset_time, sunset_duration, sunset_curve,
	target_intensity, is_active, created_at, updated_at`

// GetByID retrieves a dimmer config by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*DimmerConfig, error) {
	query := `SELECT ` + dimmerColumns + ` FROM dimmer_configs WHERE id = ?`

	cfg, err := scanDimmerConfig(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("querying dimmer config: %w", err)
	}
	return cfg, nil
}

// ListActive retrieves active configs.
func (r *SQLiteRepository) ListActive(ctx context.Context) ([]DimmerConfig, error) {
	query := `SELECT ` + dimmerColumns + ` FROM dimmer_configs WHERE is_active = 1 ORDER BY controller_id, dimmer_port`
	return r.queryConfigs(ctx, query)
}

// ListByController retrieves all configs for one controller.
func (r *SQLiteRepository) ListByController(ctx context.Context, controllerID string) ([]DimmerConfig, error) {
	query := `SELECT ` + dimmerColumns + ` FROM dimmer_configs WHERE controller_id = ? ORDER BY dimmer_port`
	return r.queryConfigs(ctx, query, controllerID)
}

// Create inserts a new dimmer config.
func (r *SQLiteRepository) Create(ctx context.Context, cfg *DimmerConfig) error {
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	query := `
		INSERT INTO dimmer_configs (` + dimmerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		cfg.ID, cfg.ControllerID, cfg.DimmerPort,
		cfg.SunriseTime, cfg.SunriseDuration, string(cfg.SunriseCurve),
		cfg.SunsetTime, cfg.SunsetDuration, string(cfg.SunsetCurve),
		cfg.TargetIntensity, boolToInt(cfg.IsActive),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting dimmer config: %w", err)
	}
	return nil
}

// Update modifies an existing config.
func (r *SQLiteRepository) Update(ctx context.Context, cfg *DimmerConfig) error {
	now := time.Now().UTC()
	cfg.UpdatedAt = now

	query := `
		UPDATE dimmer_configs
		SET controller_id = ?, dimmer_port = ?, sunrise_time = ?,
			sunrise_duration = ?, sunrise_curve = ?, sunset_time = ?,
			sunset_duration = ?, sunset_curve = ?, target_intensity = ?,
			is_active = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		cfg.ControllerID, cfg.DimmerPort,
		cfg.SunriseTime, cfg.SunriseDuration, string(cfg.SunriseCurve),
		cfg.SunsetTime, cfg.SunsetDuration, string(cfg.SunsetCurve),
		cfg.TargetIntensity, boolToInt(cfg.IsActive),
		now.Format(time.RFC3339), cfg.ID,
	)
	if err != nil {
		return fmt.Errorf("updating dimmer config: %w", err)
	}
	return requireRowAffected(result)
}

// Delete removes a config by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM dimmer_configs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting dimmer config: %w", err)
	}
	return requireRowAffected(result)
}

// ─── Internal Helpers ───────────────────────────────────────────────────────

type scanner interface {
	Scan(dest ...any) error
}

func scanDimmerConfig(row scanner) (*DimmerConfig, error) {
	var (
		cfg          DimmerConfig
		sunriseCurve string
		sunsetCurve  string
		isActive     int
		createdAt    string
		updatedAt    string
	)

	err := row.Scan(
		&cfg.ID, &cfg.ControllerID, &cfg.DimmerPort,
		&cfg.SunriseTime, &cfg.SunriseDuration, &sunriseCurve,
		&cfg.SunsetTime, &cfg.SunsetDuration, &sunsetCurve,
		&cfg.TargetIntensity, &isActive, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	cfg.SunriseCurve = Kind(sunriseCurve)
	cfg.SunsetCurve = Kind(sunsetCurve)
	cfg.IsActive = isActive != 0

	if cfg.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if cfg.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &cfg, nil
}

func (r *SQLiteRepository) queryConfigs(ctx context.Context, query string, args ...any) ([]DimmerConfig, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying dimmer configs: %w", err)
	}
	defer rows.Close()

	var configs []DimmerConfig
	for rows.Next() {
		cfg, err := scanDimmerConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning dimmer config row: %w", err)
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dimmer config rows: %w", err)
	}
	return configs, nil
}

func requireRowAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrConfigNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
