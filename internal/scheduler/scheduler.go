// Package scheduler triggers check cycles on a cron schedule. Overlapping
// ticks are skipped so two cycles never touch the store at once.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"course-tracker-backend/config"
	"course-tracker-backend/internal/checker"
)

// CycleRunner runs one check cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (checker.Summary, error)
}

// Scheduler owns the cron instance driving the runner.
type Scheduler struct {
	cron       *cron.Cron
	runner     CycleRunner
	timeout    time.Duration
	runOnStart bool
	log        *zap.Logger
	ctx        context.Context
}

// New validates the cron spec and registers the cycle job.
func New(cfg *config.ScheduleConfig, runner CycleRunner, log *zap.Logger) (*Scheduler, error) {
	cronLog := cronLogger{log: log.Sugar()}
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLog),
			cron.SkipIfStillRunning(cronLog),
		)),
		runner:     runner,
		timeout:    cfg.CycleTimeout,
		runOnStart: cfg.RunOnStart,
		log:        log,
		ctx:        context.Background(),
	}

	if _, err := s.cron.AddFunc(cfg.Cron, s.runOnce); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", cfg.Cron, err)
	}
	return s, nil
}

// Start begins scheduling; cycles inherit ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.log.Info("starting scheduler", zap.Bool("run_on_start", s.runOnStart))
	if s.runOnStart {
		go s.runOnce()
	}
	s.cron.Start()
}

// Stop halts scheduling and returns a context done once running cycles finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runOnce() {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if _, err := s.runner.RunCycle(ctx); err != nil {
		if errors.Is(err, checker.ErrCycleRunning) {
			s.log.Warn("previous check cycle still running, skipping")
			return
		}
		s.log.Error("check cycle failed", zap.Error(err))
	}
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
