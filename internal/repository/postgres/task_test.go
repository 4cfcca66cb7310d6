package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/taskmanager/internal/apperrors"
	"github.com/nkiryanov/taskmanager/internal/models"
	"github.com/nkiryanov/taskmanager/internal/repository"
	"github.com/nkiryanov/taskmanager/internal/testutil"
)

func Test_TaskRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	newTask := func(userID uuid.UUID, title string, createdAt time.Time) models.Task {
		return models.Task{
			ID:        uuid.New(),
			UserID:    userID,
			Title:     title,
			Status:    models.TaskStatusTodo,
			Priority:  models.TaskPriorityMedium,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}
	}

	withUsers := func(t *testing.T, tx pgx.Tx) (models.User, models.User) {
		r := UserRepo{DB: tx}
		alice, err := r.CreateUser(t.Context(), "alice@example.com", "hash", nil)
		require.NoError(t, err)
		bob, err := r.CreateUser(t.Context(), "bob@example.com", "hash", nil)
		require.NoError(t, err)
		return alice, bob
	}

	t.Run("create and get task", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := TaskRepo{DB: tx}
			alice, _ := withUsers(t, tx)
			task := newTask(alice.ID, "Buy milk", mustParseTime("2025-01-01 10:00:00Z"))
			task.Description = ptr("2 liters")
			task.DueDate = ptr(mustParseTime("2025-02-01 10:00:00Z"))

			created, err := repo.CreateTask(t.Context(), task)
			require.NoError(t, err)
			got, err := repo.GetTask(t.Context(), created.ID)
			require.NoError(t, err)

			assert.Equal(t, task.ID, got.ID)
			assert.Equal(t, alice.ID, got.UserID)
			assert.Equal(t, "Buy milk", got.Title)
			assert.Equal(t, "2 liters", *got.Description)
			assert.WithinDuration(t, *task.DueDate, *got.DueDate, 0)
			assert.Equal(t, models.TaskStatusTodo, got.Status)
		})
	})

	t.Run("get not existed task", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := TaskRepo{DB: tx}

			_, err := repo.GetTask(t.Context(), uuid.New())

			require.ErrorIs(t, err, apperrors.ErrTaskNotFound)
		})
	})

	t.Run("list only owner tasks newest first", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := TaskRepo{DB: tx}
			alice, bob := withUsers(t, tx)
			base := mustParseTime("2025-01-01 10:00:00Z")
			for i, title := range []string{"a1", "a2", "a3"} {
				_, err := repo.CreateTask(t.Context(), newTask(alice.ID, title, base.Add(time.Duration(i)*time.Minute)))
				require.NoError(t, err)
			}
			_, err := repo.CreateTask(t.Context(), newTask(bob.ID, "b1", base))
			require.NoError(t, err)

			tasks, total, err := repo.ListTasks(t.Context(), repository.ListTasksOpts{UserID: alice.ID, Limit: 2})

			require.NoError(t, err)
			assert.Equal(t, 3, total)
			require.Len(t, tasks, 2)
			assert.Equal(t, "a3", tasks[0].Title)
			assert.Equal(t, "a2", tasks[1].Title)
		})
	})

	t.Run("list with filters and offset", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := TaskRepo{DB: tx}
			alice, _ := withUsers(t, tx)
			base := mustParseTime("2025-01-01 10:00:00Z")
			done := newTask(alice.ID, "done-high", base)
			done.Status, done.Priority = models.TaskStatusDone, models.TaskPriorityHigh
			for _, task := range []models.Task{done, newTask(alice.ID, "todo-1", base.Add(time.Minute)), newTask(alice.ID, "todo-2", base.Add(2*time.Minute))} {
				_, err := repo.CreateTask(t.Context(), task)
				require.NoError(t, err)
			}

			byStatus, total, err := repo.ListTasks(t.Context(), repository.ListTasksOpts{UserID: alice.ID, Status: models.TaskStatusTodo, Limit: 10, Offset: 1})
			require.NoError(t, err)
			assert.Equal(t, 2, total)
			require.Len(t, byStatus, 1)
			assert.Equal(t, "todo-1", byStatus[0].Title)

			byPriority, total, err := repo.ListTasks(t.Context(), repository.ListTasksOpts{UserID: alice.ID, Priority: models.TaskPriorityHigh, Limit: 10})
			require.NoError(t, err)
			assert.Equal(t, 1, total)
			require.Len(t, byPriority, 1)
			assert.Equal(t, "done-high", byPriority[0].Title)
		})
	})

	t.Run("update task partially", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := TaskRepo{DB: tx}
			alice, _ := withUsers(t, tx)
			created, err := repo.CreateTask(t.Context(), newTask(alice.ID, "Buy milk", mustParseTime("2025-01-01 10:00:00Z")))
			require.NoError(t, err)
			at := mustParseTime("2025-01-02 10:00:00Z")

			got, err := repo.UpdateTask(t.Context(), created.ID, models.TaskUpdate{Status: ptr(models.TaskStatusDone)}, at)

			require.NoError(t, err)
			assert.Equal(t, models.TaskStatusDone, got.Status)
			assert.Equal(t, "Buy milk", got.Title, "title must stay untouched")
			assert.Equal(t, models.TaskPriorityMedium, got.Priority)
			assert.WithinDuration(t, at, got.UpdatedAt, 0)
			assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, 0)
		})
	})

	t.Run("update not existed task", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := TaskRepo{DB: tx}

			_, err := repo.UpdateTask(t.Context(), uuid.New(), models.TaskUpdate{Title: ptr("x")}, time.Now())

			require.ErrorIs(t, err, apperrors.ErrTaskNotFound)
		})
	})

	t.Run("delete task", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := TaskRepo{DB: tx}
			alice, _ := withUsers(t, tx)
			created, err := repo.CreateTask(t.Context(), newTask(alice.ID, "Buy milk", time.Now()))
			require.NoError(t, err)

			require.NoError(t, repo.DeleteTask(t.Context(), created.ID))

			_, err = repo.GetTask(t.Context(), created.ID)
			require.ErrorIs(t, err, apperrors.ErrTaskNotFound)
			require.ErrorIs(t, repo.DeleteTask(t.Context(), created.ID), apperrors.ErrTaskNotFound)
		})
	})
}
