package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nkiryanov/taskmanager/internal/db"
	"github.com/nkiryanov/taskmanager/internal/handlers"
	"github.com/nkiryanov/taskmanager/internal/logger"
	"github.com/nkiryanov/taskmanager/internal/repository"
	"github.com/nkiryanov/taskmanager/internal/repository/postgres"
	"github.com/nkiryanov/taskmanager/internal/repository/sqlite"
	"github.com/nkiryanov/taskmanager/internal/service/auth"
	"github.com/nkiryanov/taskmanager/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/taskmanager/internal/service/task"
	"github.com/nkiryanov/taskmanager/internal/service/tokensweeper"
	"github.com/nkiryanov/taskmanager/internal/telemetry"
)

const (
	serviceName     = "taskmanager"
	shutdownTimeout = 5 * time.Second
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger  logger.Logger
	sweeper *tokensweeper.Sweeper
	closers []func(context.Context) error
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	app := &ServerApp{ListenAddr: c.ListenAddr()}

	if err := app.build(ctx, c); err != nil {
		// Release everything already opened
		_ = app.close(context.Background())
		return nil, err
	}

	return app, nil
}

func (s *ServerApp) build(ctx context.Context, c *Config) error {
	var err error

	// Initialize logger
	s.logger, err = logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return fmt.Errorf("error while initializing logger: %w", err)
	}

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, c.OtelEndpoint)
	if err != nil {
		return fmt.Errorf("error while initializing tracing. Err: %w", err)
	}
	s.closers = append(s.closers, shutdownTracing)

	// Connect to the database and run migrations
	storage, err := s.openStorage(ctx, c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:        c.SecretKey,
		RefreshSecretKey: c.RefreshSecretKey,
	})
	if err != nil {
		return fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{
		MaxSessions: c.MaxSessions,
		Timeout:     c.RequestTimeout,
	}, tokenManager, storage)
	if err != nil {
		return fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	taskService := task.NewService(storage.Task(), c.RequestTimeout)

	s.sweeper = tokensweeper.New(
		tokensweeper.Config{Interval: c.TokenSweepInterval},
		storage.Refresh(),
		s.logger,
	)

	s.Handler = handlers.NewRouter(authService, taskService, s.logger, handlers.RouterOpts{
		WebOrigin: c.WebOrigin,
	})

	return nil
}

// Pick storage by dsn scheme
func (s *ServerApp) openStorage(ctx context.Context, dsn string) (repository.Storage, error) {
	switch db.Driver(dsn) {
	case db.DriverSQLite:
		conn, err := db.OpenSQLiteAndMigrate(ctx, dsn)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return conn.Close() })
		s.logger.Info("Using sqlite storage")
		return sqlite.NewStorage(conn), nil

	default:
		pool, err := db.ConnectAndMigrate(ctx, dsn)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { pool.Close(); return nil })
		s.logger.Info("Using postgres storage")
		return postgres.NewStorage(pool), nil
	}
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	sweeperStopped := s.sweeper.Run(srvCtx)
	idleConnsClosed := make(chan struct{})

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-sweeperStopped

	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if closeErr := s.close(timeoutCtx); closeErr != nil {
		s.logger.Error("Failed to release resources", "error", closeErr)
	}

	return err
}

// Release resources in reverse order of acquisition
func (s *ServerApp) close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i](ctx))
	}
	s.closers = nil
	return errors.Join(errs...)
}
