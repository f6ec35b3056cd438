// AngelaMos | 2026
// sweeper.go

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

type TokenSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper deletes expired refresh tokens on a fixed interval for the life of
// the process.
type Sweeper struct {
	cron     *cron.Cron
	target   TokenSweeper
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	swept    prometheus.Counter
}

func NewSweeper(
	target TokenSweeper,
	interval time.Duration,
	logger *slog.Logger,
	swept prometheus.Counter,
) *Sweeper {
	cronLogger := cron.PrintfLogger(
		slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	)

	return &Sweeper{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		target:   target,
		interval: interval,
		timeout:  time.Minute,
		logger:   logger,
		swept:    swept,
	}
}

func (s *Sweeper) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("schedule token sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("refresh token sweeper started", "interval", s.interval)
	return nil
}

// Stop waits for an in-flight sweep or for ctx, whichever comes first.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("refresh token sweep failed", "error", err)
	}
}

func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	n, err := s.target.SweepExpired(ctx)
	if err != nil {
		return 0, err
	}

	if s.swept != nil {
		s.swept.Add(float64(n))
	}
	if n > 0 {
		s.logger.Info("expired refresh tokens swept", "count", n)
	}

	return n, nil
}
