// Package scheduler runs processing cycles on a fixed interval without ever
// overlapping them, in this process or across processes sharing a lock file.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mailtriage/internal/models"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

// ErrBusy is returned when a cycle is already running
var ErrBusy = errors.New("a processing cycle is already running")

// Runner executes one processing cycle
type Runner interface {
	RunCycle(ctx context.Context) (*models.CycleReport, error)
}

// Options configures a Scheduler
type Options struct {
	Interval   time.Duration
	RunOnStart bool
	// LockFile is shared by every process polling the same mailbox; empty disables it
	LockFile string
}

// Scheduler triggers cycles periodically
type Scheduler struct {
	runner Runner
	opts   Options
	mu     sync.Mutex
	lock   *flock.Flock
	logger zerolog.Logger
}

// New creates a scheduler
func New(runner Runner, opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	s := &Scheduler{
		runner: runner,
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
	if opts.LockFile != "" {
		s.lock = flock.New(opts.LockFile)
	}
	return s
}

// Start blocks until ctx is done, running a cycle on every tick
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.logger.Info().
		Str("schedule", Describe(s.opts.Interval)).
		Bool("run_on_start", s.opts.RunOnStart).
		Msg("Email processing scheduler started")

	if s.opts.RunOnStart {
		s.tick(ctx, "startup")
	}

	for {
		select {
		case <-ticker.C:
			s.tick(ctx, "interval")
		case <-ctx.Done():
			s.logger.Info().Msg("Email processing scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, trigger string) {
	_, err := s.RunNow(ctx)
	switch {
	case errors.Is(err, ErrBusy):
		s.logger.Warn().Str("trigger", trigger).Msg("Previous cycle still running, tick skipped")
	case err != nil:
		s.logger.Error().Err(err).Str("trigger", trigger).Msg("Scheduled cycle failed")
	}
}

// RunNow runs one cycle immediately unless another one holds the lock
func (s *Scheduler) RunNow(ctx context.Context) (*models.CycleReport, error) {
	if !s.mu.TryLock() {
		return nil, ErrBusy
	}
	defer s.mu.Unlock()

	if s.lock != nil {
		if err := os.MkdirAll(filepath.Dir(s.opts.LockFile), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create lock directory: %w", err)
		}
		locked, err := s.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire cycle lock: %w", err)
		}
		if !locked {
			return nil, ErrBusy
		}
		defer func() {
			if err := s.lock.Unlock(); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to release cycle lock")
			}
		}()
	}

	return s.runner.RunCycle(ctx)
}

// Describe returns a human-readable description of the polling interval
func Describe(interval time.Duration) string {
	minutes := int(interval / time.Minute)
	switch {
	case interval < time.Minute:
		return fmt.Sprintf("every %s", interval)
	case interval%time.Minute != 0:
		return fmt.Sprintf("every %s", interval)
	case minutes == 1:
		return "every minute"
	case minutes < 60:
		return fmt.Sprintf("every %d minutes", minutes)
	case minutes == 60:
		return "hourly"
	case minutes == 24*60:
		return "daily"
	case minutes%60 == 0:
		return fmt.Sprintf("every %d hours", minutes/60)
	default:
		return fmt.Sprintf("every %d minutes", minutes)
	}
}
