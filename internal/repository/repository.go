package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/taskmanager/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// Uniqueness of email must be enforced by the storage itself, on write.
	// If user with the email exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, email string, passwordHash string, name *string) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	// Save token in repository
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Return the token even it is expired or revoked
	// If not found must return apperrors.ErrRefreshTokenNotFound
	Get(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Revoke the token if it belongs to the user
	// Must not overwrite revoked_at of already revoked token
	// If there is no such token for the user must return apperrors.ErrRefreshTokenNotFound
	Revoke(ctx context.Context, userID uuid.UUID, tokenString string, at time.Time) error

	// Revoke all live tokens of the user. Returns count of revoked tokens
	RevokeAll(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)

	// Keep 'keep' newest live tokens of the user, revoke the rest
	RevokeExcess(ctx context.Context, userID uuid.UUID, keep int, at time.Time) (int64, error)

	// Delete tokens expired or revoked before the moment
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

type TaskRepo interface {
	CreateTask(ctx context.Context, task models.Task) (models.Task, error)

	// Get task by primary key whoever owns it
	// If not found must return apperrors.ErrTaskNotFound
	GetTask(ctx context.Context, taskID uuid.UUID) (models.Task, error)

	// List tasks of the user only, newest first
	ListTasks(ctx context.Context, opts ListTasksOpts) ([]models.Task, int, error)

	// Apply update to the task and return the updated one
	// If not found must return apperrors.ErrTaskNotFound
	UpdateTask(ctx context.Context, taskID uuid.UUID, upd models.TaskUpdate, at time.Time) (models.Task, error)

	// If not found must return apperrors.ErrTaskNotFound
	DeleteTask(ctx context.Context, taskID uuid.UUID) error
}

type ListTasksOpts struct {
	UserID   uuid.UUID // required
	Status   string    // empty means any
	Priority string    // empty means any
	Limit    int
	Offset   int
}

// Storage gives access to all repositories bound to one connection or transaction
type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Task() TaskRepo

	// Run fn in transaction. Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
