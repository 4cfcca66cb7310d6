package task

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/taskmanager/internal/apperrors"
	"github.com/nkiryanov/taskmanager/internal/models"
	"github.com/nkiryanov/taskmanager/internal/repository"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100

	// Largest page whose offset still fits into int
	MaxPage = math.MaxInt/MaxPageSize + 1

	defaultTimeout = 5 * time.Second
)

// Fields of the new task
type CreateTaskOpts struct {
	Title       string
	Description *string
	Status      string // models.TaskStatusTodo if empty
	Priority    string // models.TaskPriorityMedium if empty
	DueDate     *time.Time
}

type ListTasksOpts struct {
	Status   string
	Priority string
	Page     int
	PageSize int
}

// Task service
// Every operation is scoped by the user id so user never sees tasks of others
type TaskService struct {
	taskRepo repository.TaskRepo
	timeout  time.Duration
	now      func() time.Time
}

func NewService(taskRepo repository.TaskRepo, timeout time.Duration) *TaskService {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &TaskService{
		taskRepo: taskRepo,
		timeout:  timeout,
		now:      time.Now,
	}
}

func (s *TaskService) CreateTask(ctx context.Context, userID uuid.UUID, opts CreateTaskOpts) (models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if opts.Status == "" {
		opts.Status = models.TaskStatusTodo
	}
	if opts.Priority == "" {
		opts.Priority = models.TaskPriorityMedium
	}

	now := s.now()
	task, err := s.taskRepo.CreateTask(ctx, models.Task{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       opts.Title,
		Description: opts.Description,
		Status:      opts.Status,
		Priority:    opts.Priority,
		DueDate:     opts.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return task, fmt.Errorf("can't create task. Err: %w", err)
	}

	return task, nil
}

// Get task of the user
// Task of other user is reported as not found
func (s *TaskService) GetTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) (models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.getOwned(ctx, userID, taskID)
}

func (s *TaskService) ListTasks(ctx context.Context, userID uuid.UUID, opts ListTasksOpts) (models.TaskPage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if opts.Page <= 0 {
		opts.Page = DefaultPage
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	opts.PageSize = min(opts.PageSize, MaxPageSize)
	opts.Page = min(opts.Page, MaxPage)

	tasks, total, err := s.taskRepo.ListTasks(ctx, repository.ListTasksOpts{
		UserID:   userID,
		Status:   opts.Status,
		Priority: opts.Priority,
		Limit:    opts.PageSize,
		Offset:   (opts.Page - 1) * opts.PageSize,
	})
	if err != nil {
		return models.TaskPage{}, fmt.Errorf("can't list tasks. Err: %w", err)
	}

	return models.TaskPage{
		Tasks:    tasks,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.PageSize,
	}, nil
}

// Apply partial update to the task of the user
func (s *TaskService) UpdateTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID, upd models.TaskUpdate) (models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.getOwned(ctx, userID, taskID); err != nil {
		return models.Task{}, err
	}

	task, err := s.taskRepo.UpdateTask(ctx, taskID, upd, s.now())
	if err != nil {
		return task, fmt.Errorf("can't update task. Err: %w", err)
	}

	return task, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.getOwned(ctx, userID, taskID); err != nil {
		return err
	}

	if err := s.taskRepo.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("can't delete task. Err: %w", err)
	}

	return nil
}

func (s *TaskService) getOwned(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) (models.Task, error) {
	task, err := s.taskRepo.GetTask(ctx, taskID)
	switch {
	case errors.Is(err, apperrors.ErrTaskNotFound):
		return models.Task{}, err
	case err != nil:
		return models.Task{}, fmt.Errorf("can't get task. Err: %w", err)
	case task.UserID != userID:
		return models.Task{}, apperrors.ErrTaskNotFound
	}

	return task, nil
}
