package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nkiryanov/taskmanager/internal/handlers/middleware"
	"github.com/nkiryanov/taskmanager/internal/logger"
	"github.com/nkiryanov/taskmanager/internal/models"
	"github.com/nkiryanov/taskmanager/internal/service/auth"
	"github.com/nkiryanov/taskmanager/internal/service/task"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type RouterOpts struct {
	// Allowed CORS origin, '*' if empty
	WebOrigin string
}

func NewRouter(
	authService authService,
	taskService taskService,
	logger logger.Logger,
	opts RouterOpts,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService)

	mux := http.NewServeMux()

	mux.Handle("POST /auth/register", handleRegister(authService, logger))
	mux.Handle("POST /auth/login", handleLogin(authService, logger))
	mux.Handle("POST /auth/refresh", handleRefresh(authService, logger))
	mux.Handle("POST /auth/logout", withAuth(handleLogout(authService, logger)))

	mux.Handle("POST /tasks", withAuth(handleCreateTask(taskService, logger)))
	mux.Handle("GET /tasks", withAuth(handleListTasks(taskService, logger)))
	mux.Handle("GET /tasks/{id}", withAuth(handleGetTask(taskService, logger)))
	mux.Handle("PUT /tasks/{id}", withAuth(handleUpdateTask(taskService, logger)))
	mux.Handle("DELETE /tasks/{id}", withAuth(handleDeleteTask(taskService, logger)))

	mux.Handle("GET /health", handleHealth())

	handler := chain(mux,
		middleware.LoggerMiddleware(logger),
		middleware.CORSMiddleware(opts.WebOrigin),
	)

	return otelhttp.NewHandler(handler, "taskmanager",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

type authService interface {
	// Register user
	// Has to return apperrors.ErrUserAlreadyExists if user already exists
	Register(ctx context.Context, email string, password string, name *string) (models.User, error)

	// Login user with email and password
	// Has to return apperrors.ErrInvalidCredentials if user not found or password is wrong
	Login(ctx context.Context, email string, password string) (auth.LoginResult, error)

	// Issue new access token using refresh token
	// If token expired: has to return apperrors.ErrRefreshTokenExpired
	// If token not found or revoked: has to return apperrors.ErrRefreshTokenNotFound or apperrors.ErrRefreshTokenRevoked
	Refresh(ctx context.Context, refresh string) (models.IssuedToken, error)

	// Revoke refresh token of the user, or all of them
	Logout(ctx context.Context, claim models.AccessClaim, refresh string, all bool) error

	// Get request and return claim if it authenticated or error
	GetClaimFromRequest(r *http.Request) (models.AccessClaim, error)
}

type taskService interface {
	CreateTask(ctx context.Context, userID uuid.UUID, opts task.CreateTaskOpts) (models.Task, error)
	GetTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) (models.Task, error)
	ListTasks(ctx context.Context, userID uuid.UUID, opts task.ListTasksOpts) (models.TaskPage, error)
	UpdateTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID, upd models.TaskUpdate) (models.Task, error)
	DeleteTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) error
}
