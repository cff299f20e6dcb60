package controller

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for controller persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a controller by its unique identifier.
	// Returns ErrNotFound if the controller does not exist.
	GetByID(ctx context.Context, id string) (*Controller, error)

	// List retrieves all controllers.
	List(ctx context.Context) ([]Controller, error)

	// ListActive retrieves controllers with is_active set. These are the
	// controllers the poll scheduler and jobs operate on.
	ListActive(ctx context.Context) ([]Controller, error)

	// Create inserts a new controller.
	// Returns ErrExists on an ID or brand + vendor identity collision.
	Create(ctx context.Context, ctl *Controller) error

	// Update modifies an existing controller.
	// Returns ErrNotFound if the controller does not exist.
	Update(ctx context.Context, ctl *Controller) error

	// Delete removes a controller by ID.
	// Returns ErrNotFound if the controller does not exist.
	Delete(ctx context.Context, id string) error

	// UpdateHealth updates only the health columns after a poll attempt.
	// lastSeen and lastErr may be nil to leave the column untouched and
	// clear it respectively; a successful poll passes a fresh lastSeen
	// and nil lastErr.
	UpdateHealth(ctx context.Context, id string, status Status, lastSeen *time.Time, lastErr *string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const controllerColumns = `id, name, brand, controller_id, credentials, capabilities,
	status, last_seen, last_error, is_active, created_at, updated_at`

// GetByID retrieves a controller by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Controller, error) {
	query := `SELECT ` + controllerColumns + ` FROM controllers WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	ctl, err := scanController(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying controller by id: %w", err)
	}
	return ctl, nil
}

// List retrieves all controllers.
func (r *SQLiteRepository) List(ctx context.Context) ([]Controller, error) {
	query := `SELECT ` + controllerColumns + ` FROM controllers ORDER BY name`
	return r.queryControllers(ctx, query)
}

// ListActive retrieves controllers with is_active set.
func (r *SQLiteRepository) ListActive(ctx context.Context) ([]Controller, error) {
	query := `SELECT ` + controllerColumns + ` FROM controllers WHERE is_active = 1 ORDER BY name`
	return r.queryControllers(ctx, query)
}

// Create inserts a new controller.
func (r *SQLiteRepository) Create(ctx context.Context, ctl *Controller) error {
	if !ctl.Status.Valid() {
		return ErrInvalidStatus
	}

	capsJSON, err := json.Marshal(ctl.Capabilities)
	if err != nil {
		return fmt.Errorf("marshalling capabilities: %w", err)
	}

	now := time.Now().UTC()
	ctl.CreatedAt = now
	ctl.UpdatedAt = now

	query := `
		INSERT INTO controllers (` + controllerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		ctl.ID, ctl.Name, ctl.Brand, ctl.ControllerID, ctl.Credentials,
		string(capsJSON), string(ctl.Status),
		timePtrToString(ctl.LastSeen), ctl.LastError, boolToInt(ctl.IsActive),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting controller: %w", err)
	}
	return nil
}

// Update modifies an existing controller.
func (r *SQLiteRepository) Update(ctx context.Context, ctl *Controller) error {
	if !ctl.Status.Valid() {
		return ErrInvalidStatus
	}

	capsJSON, err := json.Marshal(ctl.Capabilities)
	if err != nil {
		return fmt.Errorf("marshalling capabilities: %w", err)
	}

	now := time.Now().UTC()
	ctl.UpdatedAt = now

	query := `
		UPDATE controllers
		SET name = ?, brand = ?, controller_id = ?, credentials = ?,
			capabilities = ?, status = ?, last_seen = ?, last_error = ?,
			is_active = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		ctl.Name, ctl.Brand, ctl.ControllerID, ctl.Credentials,
		string(capsJSON), string(ctl.Status),
		timePtrToString(ctl.LastSeen), ctl.LastError, boolToInt(ctl.IsActive),
		now.Format(time.RFC3339), ctl.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrExists
		}
		return fmt.Errorf("updating controller: %w", err)
	}

	return requireRowAffected(result, "updating")
}

// Delete removes a controller by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM controllers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting controller: %w", err)
	}
	return requireRowAffected(result, "deleting")
}

// UpdateHealth updates only the health columns after a poll attempt.
func (r *SQLiteRepository) UpdateHealth(ctx context.Context, id string, status Status, lastSeen *time.Time, lastErr *string) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	// last_seen is only ever advanced; last_error is overwritten every
	// attempt so a recovery clears the previous failure.
	var setClauses []string
	args := []any{string(status)}
	setClauses = append(setClauses, "status = ?")

	if lastSeen != nil {
		setClauses = append(setClauses, "last_seen = ?")
		args = append(args, lastSeen.UTC().Format(time.RFC3339))
	}

	setClauses = append(setClauses, "last_error = ?", "updated_at = ?")
	args = append(args, lastErr, time.Now().UTC().Format(time.RFC3339), id)

	query := `UPDATE controllers SET ` + strings.Join(setClauses, ", ") + ` WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating controller health: %w", err)
	}
	return requireRowAffected(result, "updating health for")
}

// ─── Internal Helpers ───────────────────────────────────────────────────────

// scanner abstracts *sql.Row and *sql.Rows for shared scanning code.
type scanner interface {
	Scan(dest ...any) error
}

func scanController(row scanner) (*Controller, error) {
	var (
		ctl       Controller
		capsJSON  string
		status    string
		lastSeen  sql.NullString
		lastErr   sql.NullString
		isActive  int
		createdAt string
		updatedAt string
	)

	err := row.Scan(
		&ctl.ID, &ctl.Name, &ctl.Brand, &ctl.ControllerID, &ctl.Credentials,
		&capsJSON, &status, &lastSeen, &lastErr, &isActive,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(capsJSON), &ctl.Capabilities); err != nil {
		return nil, fmt.Errorf("unmarshalling capabilities: %w", err)
	}

	ctl.Status = Status(status)
	ctl.IsActive = isActive != 0

	if lastSeen.Valid {
		t, err := time.Parse(time.RFC3339, lastSeen.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen: %w", err)
		}
		ctl.LastSeen = &t
	}
	if lastErr.Valid {
		msg := lastErr.String
		ctl.LastError = &msg
	}

	if ctl.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if ctl.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &ctl, nil
}

func (r *SQLiteRepository) queryControllers(ctx context.Context, query string, args ...any) ([]Controller, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying controllers: %w", err)
	}
	defer rows.Close()

	var controllers []Controller
	for rows.Next() {
		ctl, err := scanController(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning controller row: %w", err)
		}
		controllers = append(controllers, *ctl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating controller rows: %w", err)
	}
	return controllers, nil
}

func requireRowAffected(result sql.Result, verb string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s controller, checking rows affected: %w", verb, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func timePtrToString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
