package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/taskmanager/internal/apperrors"
	"github.com/nkiryanov/taskmanager/internal/models"
	"github.com/nkiryanov/taskmanager/internal/repository"
)

type TaskRepo struct {
	DB DBTX
}

const taskColumns = `id, user_id, title, description, status, priority, due_date, created_at, updated_at`

const createTask = `-- name: CreateTask
INSERT INTO tasks (id, user_id, title, description, status, priority, due_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + taskColumns

func (r *TaskRepo) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	rows, _ := r.DB.Query(ctx, createTask,
		t.ID, t.UserID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.CreatedAt, t.UpdatedAt,
	)
	task, err := pgx.CollectOneRow(rows, rowToTask)
	if err != nil {
		return task, fmt.Errorf("db error: %w", err)
	}
	return task, nil
}

const getTask = `-- name: GetTask
SELECT ` + taskColumns + `
FROM tasks
WHERE id = $1
`

func (r *TaskRepo) GetTask(ctx context.Context, taskID uuid.UUID) (models.Task, error) {
	rows, _ := r.DB.Query(ctx, getTask, taskID)
	return collectTask(rows)
}

const countTasks = `-- name: CountTasks
SELECT count(*)
FROM tasks
WHERE user_id = $1
  AND ($2 = '' OR status = $2)
  AND ($3 = '' OR priority = $3)
`

const listTasks = `-- name: ListTasks
SELECT ` + taskColumns + `
FROM tasks
WHERE user_id = $1
  AND ($2 = '' OR status = $2)
  AND ($3 = '' OR priority = $3)
ORDER BY created_at DESC, id DESC
LIMIT $4 OFFSET $5
`

func (r *TaskRepo) ListTasks(ctx context.Context, opts repository.ListTasksOpts) ([]models.Task, int, error) {
	rows, _ := r.DB.Query(ctx, countTasks, opts.UserID, opts.Status, opts.Priority)
	total, err := pgx.CollectOneRow(rows, pgx.RowTo[int])
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	rows, _ = r.DB.Query(ctx, listTasks, opts.UserID, opts.Status, opts.Priority, opts.Limit, opts.Offset)
	tasks, err := pgx.CollectRows(rows, rowToTask)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return tasks, total, nil
}

const updateTask = `-- name: UpdateTask
UPDATE tasks
SET title       = COALESCE($2, title),
    description = COALESCE($3, description),
    status      = COALESCE($4, status),
    priority    = COALESCE($5, priority),
    due_date    = COALESCE($6, due_date),
    updated_at  = $7
WHERE id = $1
RETURNING ` + taskColumns

func (r *TaskRepo) UpdateTask(ctx context.Context, taskID uuid.UUID, upd models.TaskUpdate, at time.Time) (models.Task, error) {
	rows, _ := r.DB.Query(ctx, updateTask,
		taskID, upd.Title, upd.Description, upd.Status, upd.Priority, upd.DueDate, at,
	)
	return collectTask(rows)
}

const deleteTask = `-- name: DeleteTask
DELETE FROM tasks
WHERE id = $1
`

func (r *TaskRepo) DeleteTask(ctx context.Context, taskID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteTask, taskID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTaskNotFound
	}
	return nil
}

func collectTask(rows pgx.Rows) (models.Task, error) {
	task, err := pgx.CollectOneRow(rows, rowToTask)

	switch {
	case err == nil:
		return task, nil
	case errors.Is(err, pgx.ErrNoRows):
		return task, apperrors.ErrTaskNotFound
	default:
		return task, fmt.Errorf("db error: %w", err)
	}
}

func rowToTask(row pgx.CollectableRow) (models.Task, error) {
	var t models.Task
	err := row.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}
