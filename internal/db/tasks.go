package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"planvision/internal/util"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Task lifecycle. A failed task keeps the progress of its last completed
// stage so clients can show where it stopped.
const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

const (
	TaskKindGenerate = "generate"
	TaskKindClassify = "classify"
)

var ErrTaskNotFound = errors.New("task not found")

type GenerationTask struct {
	ID           string    `json:"id"`
	Owner        string    `json:"owner"`
	Title        string    `json:"title"`
	Kind         string    `json:"kind"`
	PricelistID  *string   `json:"pricelist_id"`
	Comment      string    `json:"comment"`
	Status       string    `json:"status"`
	Stage        string    `json:"stage"`
	Progress     int       `json:"progress"`
	ErrorMessage *string   `json:"error_message"`
	EstimateID   *string   `json:"estimate_id"`
	PdfKey       string    `json:"pdf_key"`
	PageCount    int       `json:"page_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreateTaskParams struct {
	Owner       string
	Title       string
	Kind        string
	PricelistID *string
	Comment     string
	PdfKey      string
}

func (q *Queries) CreateTask(ctx context.Context, params CreateTaskParams) (*GenerationTask, error) {
	id := uuid.NewString()
	_, err := q.conn.Exec(ctx, `
		INSERT INTO generation_tasks (id, owner, title, kind, pricelist_id, comment, pdf_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, params.Owner, util.SanitizePostgresText(params.Title), params.Kind,
		params.PricelistID, util.SanitizePostgresText(params.Comment), params.PdfKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return q.GetTask(ctx, id)
}

func scanTask(row pgx.Row) (*GenerationTask, error) {
	var t GenerationTask
	err := row.Scan(
		&t.ID, &t.Owner, &t.Title, &t.Kind, &t.PricelistID, &t.Comment,
		&t.Status, &t.Stage, &t.Progress, &t.ErrorMessage, &t.EstimateID,
		&t.PdfKey, &t.PageCount, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	return &t, nil
}

const taskColumns = `id, owner, title, kind, pricelist_id, comment, status, stage, progress,
	error_message, estimate_id, pdf_key, page_count, created_at, updated_at`

func (q *Queries) GetTask(ctx context.Context, id string) (*GenerationTask, error) {
	row := q.conn.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM generation_tasks WHERE id = $1`, id)
	return scanTask(row)
}

func (q *Queries) ListTasks(ctx context.Context, owner string, limit int) ([]GenerationTask, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.conn.Query(ctx,
		`SELECT `+taskColumns+` FROM generation_tasks
		 WHERE owner = $1 ORDER BY created_at DESC LIMIT $2`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []GenerationTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// TryStartTask claims a task for processing. Failed tasks are claimable
// again so the retry queue can re-attempt them; a message redelivered while
// the task is processing or completed becomes a no-op via ErrTaskNotFound.
func (q *Queries) TryStartTask(ctx context.Context, id string) error {
	tag, err := q.conn.Exec(ctx, `
		UPDATE generation_tasks
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status IN ($3, $4)`,
		id, TaskStatusProcessing, TaskStatusPending, TaskStatusFailed,
	)
	if err != nil {
		return fmt.Errorf("failed to start task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (q *Queries) UpdateTaskProgress(ctx context.Context, id string, stage string, progress int) error {
	_, err := q.conn.Exec(ctx, `
		UPDATE generation_tasks
		SET stage = $2, progress = GREATEST(progress, $3), updated_at = now()
		WHERE id = $1`,
		id, stage, progress,
	)
	if err != nil {
		return fmt.Errorf("failed to update task progress: %w", err)
	}
	return nil
}

func (q *Queries) SetTaskPageCount(ctx context.Context, id string, pages int) error {
	_, err := q.conn.Exec(ctx, `
		UPDATE generation_tasks SET page_count = $2, updated_at = now() WHERE id = $1`,
		id, pages,
	)
	if err != nil {
		return fmt.Errorf("failed to set task page count: %w", err)
	}
	return nil
}

func (q *Queries) MarkTaskCompleted(ctx context.Context, id string, estimateID *string) error {
	_, err := q.conn.Exec(ctx, `
		UPDATE generation_tasks
		SET status = $2, progress = 100, error_message = NULL, estimate_id = $3, updated_at = now()
		WHERE id = $1`,
		id, TaskStatusCompleted, estimateID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark task completed: %w", err)
	}
	return nil
}

func (q *Queries) MarkTaskFailed(ctx context.Context, id string, message string) error {
	_, err := q.conn.Exec(ctx, `
		UPDATE generation_tasks
		SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1`,
		id, TaskStatusFailed, message,
	)
	if err != nil {
		return fmt.Errorf("failed to mark task failed: %w", err)
	}
	return nil
}

func (q *Queries) DeleteTask(ctx context.Context, id string) error {
	tag, err := q.conn.Exec(ctx, `DELETE FROM generation_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// RecoverStaleTasks fails tasks left in processing by a dead worker. The
// single-worker model makes requeueing unsafe: a processing task with no
// worker holding it cannot be resumed mid-stage.
func (q *Queries) RecoverStaleTasks(ctx context.Context) (int64, error) {
	tag, err := q.conn.Exec(ctx, `
		UPDATE generation_tasks
		SET status = $1, error_message = $2, updated_at = now()
		WHERE status = $3`,
		TaskStatusFailed, "worker restarted while task was processing", TaskStatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to recover stale tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}
