package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Workflow is a stored automation graph plus the controllers it runs
// against. Matches the workflows and workflow_controllers tables.
type Workflow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Graph Graph `json:"graph"`

	// ControllerIDs are the controllers this workflow executes
	// against, one independent walk each per run.
	ControllerIDs []string `json:"controller_ids"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository defines the interface for workflow persistence.
type Repository interface {
	// GetByID retrieves a workflow by ID, including its controller
	// bindings. Returns ErrNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Workflow, error)

	// ListActive retrieves active workflows with their controller
	// bindings, the set each graph-walker run executes.
	ListActive(ctx context.Context) ([]Workflow, error)

	// Create inserts a workflow and its controller bindings.
	// The graph is validated before anything is written.
	Create(ctx context.Context, wf *Workflow) error

	// Update replaces a workflow and its controller bindings.
	// Returns ErrNotFound if the workflow does not exist.
	Update(ctx context.Context, wf *Workflow) error

	// Delete removes a workflow; bindings cascade.
	// Returns ErrNotFound if the workflow does not exist.
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

// GetByID retrieves a workflow by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Workflow, error) {
	query := `SELECT id, name, description, graph, is_active, created_at, updated_at
		FROM workflows WHERE id = ?`

	wf, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying workflow: %w", err)
	}

	if wf.ControllerIDs, err = r.controllerIDs(ctx, wf.ID); err != nil {
		return nil, err
	}
	return wf, nil
}

// ListActive retrieves active workflows.
func (r *SQLiteRepository) ListActive(ctx context.Context) ([]Workflow, error) {
	query := `SELECT id, name, description, graph, is_active, created_at, updated_at
		FROM workflows WHERE is_active = 1 ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying workflows: %w", err)
	}
	defer rows.Close()

	var workflows []Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning workflow row: %w", err)
		}
		workflows = append(workflows, *wf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workflow rows: %w", err)
	}

	for i := range workflows {
		if workflows[i].ControllerIDs, err = r.controllerIDs(ctx, workflows[i].ID); err != nil {
			return nil, err
		}
	}
	return workflows, nil
}

// Create inserts a workflow and its controller bindings.
func (r *SQLiteRepository) Create(ctx context.Context, wf *Workflow) error {
	graphJSON, err := marshalValidGraph(&wf.Graph)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	wf.CreatedAt = now
	wf.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workflows (id, name, description, graph, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		wf.ID, wf.Name, wf.Description, graphJSON, boolToInt(wf.IsActive),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting workflow: %w", err)
	}

	if err := insertBindings(ctx, tx, wf.ID, wf.ControllerIDs); err != nil {
		return err
	}
	return tx.Commit()
}

// Update replaces a workflow and its controller bindings.
func (r *SQLiteRepository) Update(ctx context.Context, wf *Workflow) error {
	graphJSON, err := marshalValidGraph(&wf.Graph)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	wf.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	result, err := tx.ExecContext(ctx,
		`UPDATE workflows SET name = ?, description = ?, graph = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		wf.Name, wf.Description, graphJSON, boolToInt(wf.IsActive),
		now.Format(time.RFC3339), wf.ID,
	)
	if err != nil {
		return fmt.Errorf("updating workflow: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM workflow_controllers WHERE workflow_id = ?`, wf.ID); err != nil {
		return fmt.Errorf("clearing workflow bindings: %w", err)
	}
	if err := insertBindings(ctx, tx, wf.ID, wf.ControllerIDs); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a workflow by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting workflow: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Internal Helpers ───────────────────────────────────────────────────────

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row scanner) (*Workflow, error) {
	var (
		wf          Workflow
		description sql.NullString
		graphJSON   string
		isActive    int
		createdAt   string
		updatedAt   string
	)

	err := row.Scan(&wf.ID, &wf.Name, &description, &graphJSON, &isActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	graph, err := ParseGraph([]byte(graphJSON))
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", wf.ID, err)
	}
	wf.Graph = *graph

	wf.Description = description.String
	wf.IsActive = isActive != 0

	if wf.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if wf.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &wf, nil
}

func (r *SQLiteRepository) controllerIDs(ctx context.Context, workflowID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT controller_id FROM workflow_controllers WHERE workflow_id = ? ORDER BY controller_id`,
		workflowID)
	if err != nil {
		return nil, fmt.Errorf("querying workflow bindings: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning binding row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating binding rows: %w", err)
	}
	return ids, nil
}

func insertBindings(ctx context.Context, tx *sql.Tx, workflowID string, controllerIDs []string) error {
	for _, ctlID := range controllerIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO workflow_controllers (workflow_id, controller_id) VALUES (?, ?)`,
			workflowID, ctlID); err != nil {
			return fmt.Errorf("inserting workflow binding: %w", err)
		}
	}
	return nil
}

// marshalValidGraph validates a graph before persisting it, so broken
// graphs are rejected at write time rather than discovered mid-run.
func marshalValidGraph(g *Graph) (string, error) {
	if err := g.Validate(); err != nil {
		return "", err
	}
	if err := g.syncData(); err != nil {
		return "", err
	}
	b, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("marshalling graph: %w", err)
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
