// Package activity records what the engine did: every poll attempt,
// workflow run, and sunlight adjustment appends one entry to the
// activity_logs table.
//
// Recording is fire-and-forget. A failed insert is logged and dropped;
// it never fails the operation that produced it.
package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies which engine produced an entry.
type Kind string

const (
	KindPoll     Kind = "poll"
	KindWorkflow Kind = "workflow"
	KindSunlight Kind = "sunlight"
)

// Result is the outcome of the recorded operation.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailed  Result = "failed"
	ResultSkipped Result = "skipped"
)

// Entry represents a single activity log record.
type Entry struct {
	ID           string         `json:"id"`
	Kind         Kind           `json:"kind"`
	ControllerID string         `json:"controller_id,omitempty"`
	WorkflowID   string         `json:"workflow_id,omitempty"`
	Result       Result         `json:"result"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Kind         Kind   // optional: filter by producing engine
	ControllerID string // optional: filter by controller
	WorkflowID   string // optional: filter by workflow
	Result       Result // optional: filter by outcome
	Limit        int    // default 50, max 200
	Offset       int    // pagination offset
}

// ListResult contains the paginated activity results.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the interface for activity log persistence.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores activity logs in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new activity log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "act-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var metadataJSON *string
	if entry.Metadata != nil {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling activity metadata: %w", err)
		}
		s := string(b)
		metadataJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_logs (id, kind, controller_id, workflow_id, result, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.Kind),
		nullableString(entry.ControllerID), nullableString(entry.WorkflowID),
		string(entry.Result), metadataJSON,
		entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting activity log: %w", err)
	}
	return nil
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.ControllerID != "" {
		conditions = append(conditions, "controller_id = ?")
		args = append(args, filter.ControllerID)
	}
	if filter.WorkflowID != "" {
		conditions = append(conditions, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if filter.Result != "" {
		conditions = append(conditions, "result = ?")
		args = append(args, string(filter.Result))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activity_logs"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting activity logs: %w", err)
	}

	query := "SELECT id, kind, controller_id, workflow_id, result, metadata, created_at FROM activity_logs" +
		where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying activity logs: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, filter.Limit)
	for rows.Next() {
		var (
			entry        Entry
			kind, result string
			controllerID sql.NullString
			workflowID   sql.NullString
			metadataJSON sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&entry.ID, &kind, &controllerID, &workflowID, &result, &metadataJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning activity log row: %w", err)
		}

		entry.Kind = Kind(kind)
		entry.Result = Result(result)
		entry.ControllerID = controllerID.String
		entry.WorkflowID = workflowID.String

		if metadataJSON.Valid {
			if err := json.Unmarshal([]byte(metadataJSON.String), &entry.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshalling activity metadata: %w", err)
			}
		}
		if entry.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity log rows: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
