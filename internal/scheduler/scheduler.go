package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"arcmigrate/internal/logging"
)

// RunFunc performs one bounded migration run.
type RunFunc func(ctx context.Context) error

// Scheduler triggers a run on every tick of a cron schedule. A tick that
// fires while the previous run is still going is skipped.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	run      RunFunc
	logger   *slog.Logger
}

// New parses spec (standard five-field cron or a descriptor such as
// "@daily") and returns a Scheduler for run.
func New(spec string, run RunFunc, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return &Scheduler{
		spec:     spec,
		schedule: schedule,
		run:      run,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
	}, nil
}

// Next returns the first activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run blocks until ctx is done, triggering runs on schedule. It waits for
// an in-flight run to return before it returns.
func (s *Scheduler) Run(ctx context.Context) error {
	adapter := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() {
		s.tick(ctx)
	}))

	c.Start()
	s.logger.Info("scheduler started",
		logging.String("schedule", s.spec),
		logging.String("next_run", s.Next(time.Now()).Format(time.RFC3339)),
	)
	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	started := time.Now()
	s.logger.Info("scheduled run starting", logging.String(logging.FieldEventType, "scheduled_run_start"))
	if err := s.run(ctx); err != nil {
		logging.ErrorWithContext(s.logger, "scheduled run failed", "scheduled_run_failed",
			logging.Error(err),
			logging.Duration("elapsed", time.Since(started).Round(time.Second)),
			logging.String(logging.FieldErrorHint, "the next tick retries; check the run log"),
		)
		return
	}
	s.logger.Info("scheduled run finished",
		logging.Duration("elapsed", time.Since(started).Round(time.Second)),
		logging.String("next_run", s.Next(time.Now()).Format(time.RFC3339)),
		logging.String(logging.FieldEventType, "scheduled_run_complete"),
	)
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{logging.Error(err)}, keysAndValues...)
	l.logger.Error("cron: "+msg, args...)
}
