package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/taskmanager/internal/apperrors"
	"github.com/nkiryanov/taskmanager/internal/models"
	"github.com/nkiryanov/taskmanager/internal/repository"
)

type TaskRepo struct {
	DB DBTX
}

const taskColumns = `id, user_id, title, description, status, priority, due_date, created_at, updated_at`

const createTask = `INSERT INTO tasks (id, user_id, title, description, status, priority, due_date, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + taskColumns

func (r *TaskRepo) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	row := r.DB.QueryRowContext(ctx, createTask,
		t.ID, t.UserID, t.Title, t.Description, t.Status, t.Priority,
		toNullMicro(t.DueDate), toMicro(t.CreatedAt), toMicro(t.UpdatedAt),
	)
	task, err := scanTask(row)
	if err != nil {
		return task, fmt.Errorf("db error: %w", err)
	}
	return task, nil
}

func (r *TaskRepo) GetTask(ctx context.Context, taskID uuid.UUID) (models.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)
	return collectTask(row)
}

const taskFilter = `WHERE user_id = ?1
  AND (?2 = '' OR status = ?2)
  AND (?3 = '' OR priority = ?3)`

func (r *TaskRepo) ListTasks(ctx context.Context, opts repository.ListTasksOpts) ([]models.Task, int, error) {
	var total int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM tasks `+taskFilter,
		opts.UserID, opts.Status, opts.Priority,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks `+taskFilter+` ORDER BY created_at DESC, id DESC LIMIT ?4 OFFSET ?5`,
		opts.UserID, opts.Status, opts.Priority, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close() // nolint:errcheck

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return tasks, total, nil
}

const updateTask = `UPDATE tasks
SET title       = COALESCE(?2, title),
    description = COALESCE(?3, description),
    status      = COALESCE(?4, status),
    priority    = COALESCE(?5, priority),
    due_date    = COALESCE(?6, due_date),
    updated_at  = ?7
WHERE id = ?1
RETURNING ` + taskColumns

func (r *TaskRepo) UpdateTask(ctx context.Context, taskID uuid.UUID, upd models.TaskUpdate, at time.Time) (models.Task, error) {
	row := r.DB.QueryRowContext(ctx, updateTask,
		taskID, upd.Title, upd.Description, upd.Status, upd.Priority, toNullMicro(upd.DueDate), toMicro(at),
	)
	return collectTask(row)
}

func (r *TaskRepo) DeleteTask(ctx context.Context, taskID uuid.UUID) error {
	n, err := affected(r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID))
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrTaskNotFound
	}
	return nil
}

func collectTask(row *sql.Row) (models.Task, error) {
	task, err := scanTask(row)

	switch {
	case err == nil:
		return task, nil
	case errors.Is(err, sql.ErrNoRows):
		return task, apperrors.ErrTaskNotFound
	default:
		return task, fmt.Errorf("db error: %w", err)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (models.Task, error) {
	var (
		t                    models.Task
		description          sql.NullString
		dueDate              sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &description, &t.Status, &t.Priority, &dueDate, &createdAt, &updatedAt)
	t.Description = fromNullString(description)
	t.DueDate = fromNullMicro(dueDate)
	t.CreatedAt = fromMicro(createdAt)
	t.UpdatedAt = fromMicro(updatedAt)
	return t, err
}
