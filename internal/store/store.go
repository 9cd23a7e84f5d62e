// Package store persists tasks and the credit ledger behind a thin
// database/sql wrapper, the way the teacher's internal/db package persists
// projects and jobs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/bobarin/reelforge/internal/models"
)

// Store wraps a *sql.DB with the task/credit-ledger query surface the
// controller and reconciler need.
type Store struct {
	*sql.DB
}

func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{DB: db}, nil
}

// CreateTask inserts a new task in the queued state.
func (s *Store) CreateTask(ctx context.Context, task *models.Task) error {
	specJSON, err := json.Marshal(task.Spec)
	if err != nil {
		return fmt.Errorf("store: marshal spec: %w", err)
	}

	query := `
		INSERT INTO tasks (id, status, owner_key, spec)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	return s.QueryRowContext(ctx, query, task.ID, task.Status, task.OwnerKey, specJSON).
		Scan(&task.CreatedAt, &task.UpdatedAt)
}

// GetTask fetches a task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	query := `
		SELECT id, status, owner_key, spec, result, error, log_uri,
			started_at, finished_at, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`

	var specJSON, resultJSON []byte
	var errStr, logURI sql.NullString
	task := &models.Task{}
	err := s.QueryRowContext(ctx, query, id).Scan(
		&task.ID, &task.Status, &task.OwnerKey, &specJSON, &resultJSON, &errStr, &logURI,
		&task.StartedAt, &task.FinishedAt, &task.CreatedAt, &task.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get task: %w", err)
	}
	if errStr.Valid {
		task.Error = &errStr.String
	}
	if logURI.Valid {
		task.LogURI = &logURI.String
	}

	if err := json.Unmarshal(specJSON, &task.Spec); err != nil {
		return nil, fmt.Errorf("store: unmarshal spec: %w", err)
	}
	if len(resultJSON) > 0 {
		task.Result = &models.TaskResult{}
		if err := json.Unmarshal(resultJSON, task.Result); err != nil {
			return nil, fmt.Errorf("store: unmarshal result: %w", err)
		}
	}
	return task, nil
}

// StartTask transitions a task from queued to in_progress, writing
// started_at only on this first transition. Returns ErrNotTransitioned if
// the task was not in the queued state (it was already started, or it is
// terminal) — the controller treats that as a no-op for a terminal task and
// as an error otherwise.
func (s *Store) StartTask(ctx context.Context, id string) error {
	query := `
		UPDATE tasks
		SET status = $1, started_at = $2, updated_at = $2
		WHERE id = $3 AND status = $4 AND started_at IS NULL
	`
	res, err := s.ExecContext(ctx, query, models.TaskStatusInProgress, time.Now(), id, models.TaskStatusQueued)
	if err != nil {
		return fmt.Errorf("store: start task: %w", err)
	}
	return requireRowsAffected(res)
}

// FinishTask transitions a task to finished, writing finished_at and the
// result only on this first terminal transition. Rejects a transition out
// of an already-terminal state.
func (s *Store) FinishTask(ctx context.Context, id string, result *models.TaskResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("store: marshal result: %w", err)
	}

	query := `
		UPDATE tasks
		SET status = $1, result = $2, finished_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5 AND finished_at IS NULL
	`
	res, err := s.ExecContext(ctx, query, models.TaskStatusFinished, resultJSON, time.Now(), id, models.TaskStatusInProgress)
	if err != nil {
		return fmt.Errorf("store: finish task: %w", err)
	}
	return requireRowsAffected(res)
}

// FailTask transitions a task to failed from any non-terminal state, writing
// finished_at only on this first terminal transition.
func (s *Store) FailTask(ctx context.Context, id, reason string) error {
	query := `
		UPDATE tasks
		SET status = $1, error = $2, finished_at = $3, updated_at = $3
		WHERE id = $4 AND finished_at IS NULL
	`
	res, err := s.ExecContext(ctx, query, models.TaskStatusFailed, reason, time.Now(), id)
	if err != nil {
		return fmt.Errorf("store: fail task: %w", err)
	}
	return requireRowsAffected(res)
}

// ListStuckTasks returns non-terminal tasks older than cutoff, for the
// reconciler's stuck-task sweep.
func (s *Store) ListStuckTasks(ctx context.Context, cutoff time.Time) ([]models.Task, error) {
	query := `
		SELECT id, status, owner_key, spec, created_at
		FROM tasks
		WHERE status IN ($1, $2) AND created_at < $3
	`
	rows, err := s.QueryContext(ctx, query, models.TaskStatusQueued, models.TaskStatusInProgress, cutoff)
	if err != nil {
		return nil, fmt.Errorf("store: list stuck tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		var specJSON []byte
		if err := rows.Scan(&t.ID, &t.Status, &t.OwnerKey, &specJSON, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan stuck task: %w", err)
		}
		if err := json.Unmarshal(specJSON, &t.Spec); err != nil {
			return nil, fmt.Errorf("store: unmarshal stuck task spec: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListRecentlyFailed returns tasks that transitioned to failed since since,
// for the reconciler's grouped failure notification.
func (s *Store) ListRecentlyFailed(ctx context.Context, since time.Time) ([]models.Task, error) {
	query := `
		SELECT id, status, owner_key, error, created_at, finished_at
		FROM tasks
		WHERE status = $1 AND finished_at >= $2
	`
	rows, err := s.QueryContext(ctx, query, models.TaskStatusFailed, since)
	if err != nil {
		return nil, fmt.Errorf("store: list recently failed: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		var errStr sql.NullString
		if err := rows.Scan(&t.ID, &t.Status, &t.OwnerKey, &errStr, &t.CreatedAt, &t.FinishedAt); err != nil {
			return nil, fmt.Errorf("store: scan failed task: %w", err)
		}
		if errStr.Valid {
			t.Error = &errStr.String
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// DebitCredits appends a negative ledger entry for a successful task.
func (s *Store) DebitCredits(ctx context.Context, ownerKey, taskID string, amount int, reason string) error {
	return s.appendLedgerRow(ctx, ownerKey, taskID, -amount, reason)
}

// RefundCredits appends a positive ledger entry reversing a failed task's cost.
func (s *Store) RefundCredits(ctx context.Context, ownerKey, taskID string, amount int, reason string) error {
	return s.appendLedgerRow(ctx, ownerKey, taskID, amount, reason)
}

func (s *Store) appendLedgerRow(ctx context.Context, ownerKey, taskID string, delta int, reason string) error {
	query := `
		INSERT INTO credit_ledger (owner_key, delta, reason, task_id, timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.ExecContext(ctx, query, ownerKey, delta, reason, taskID, time.Now())
	if err != nil {
		return fmt.Errorf("store: append ledger row: %w", err)
	}
	return nil
}

// ResolveAPIKey maps an API key to its owning account's owner key, for
// authorizing a task-runner invocation against the task it names.
func (s *Store) ResolveAPIKey(ctx context.Context, apiKey string) (string, error) {
	query := `SELECT owner_key FROM api_keys WHERE key = $1`

	var ownerKey string
	err := s.QueryRowContext(ctx, query, apiKey).Scan(&ownerKey)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("api key not recognized")
	}
	if err != nil {
		return "", fmt.Errorf("store: resolve api key: %w", err)
	}
	return ownerKey, nil
}

// ErrNotTransitioned is returned when a state-machine transition query
// affects zero rows — the task was not in the expected source state.
var ErrNotTransitioned = fmt.Errorf("store: task was not in the expected state for this transition")

func requireRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotTransitioned
	}
	return nil
}
