// Package tokensweeper periodically deletes refresh tokens nobody can use anymore.
package tokensweeper

import (
	"context"
	"time"

	"github.com/nkiryanov/taskmanager/internal/logger"
)

const (
	defaultInterval = time.Hour
	defaultGrace    = 24 * time.Hour
)

type tokenRepo interface {
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

type Config struct {
	// How often to sweep. Default is one hour
	Interval time.Duration

	// Tokens expired or revoked less than Grace ago are kept. Default is one day
	Grace time.Duration
}

type Sweeper struct {
	interval time.Duration
	grace    time.Duration
	repo     tokenRepo
	logger   logger.Logger
	now      func() time.Time
}

func New(cfg Config, repo tokenRepo, logger logger.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Grace <= 0 {
		cfg.Grace = defaultGrace
	}

	return &Sweeper{
		interval: cfg.Interval,
		grace:    cfg.Grace,
		repo:     repo,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeper in background until ctx is done
// Returned channel is closed when sweeper stopped
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting token sweeper", "interval", s.interval, "grace", s.grace)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Token sweeper stopped by context")
				return

			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()

	return idleStopped
}

// Delete stale tokens once
func (s *Sweeper) Sweep(ctx context.Context) {
	deleted, err := s.repo.DeleteStale(ctx, s.now().Add(-s.grace))
	if err != nil {
		s.logger.Error("Failed to delete stale refresh tokens", "error", err)
		return
	}

	if deleted > 0 {
		s.logger.Info("Stale refresh tokens deleted", "count", deleted)
	}
}
