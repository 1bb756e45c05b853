package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"arcmigrate/internal/config"
	"arcmigrate/internal/encoding"
	"arcmigrate/internal/logging"
	"arcmigrate/internal/migration"
	"arcmigrate/internal/notifications"
	"arcmigrate/internal/pathfix"
	"arcmigrate/internal/preflight"
	"arcmigrate/internal/report"
	"arcmigrate/internal/services"
	"arcmigrate/internal/services/catalog"
	"arcmigrate/internal/services/scan"
	"arcmigrate/internal/services/transfer"
	"arcmigrate/internal/workstore"
)

// ErrFatal marks a run that aborted before it could finish.
var ErrFatal = errors.New("migration run aborted")

// Dependencies are the collaborators of one Supervisor.
type Dependencies struct {
	Store    *workstore.Store
	Catalog  catalog.Service
	Encoder  encoding.Transcoder
	Scan     scan.Service
	Transfer transfer.Service
	Notifier notifications.Service
	// Preflight runs readiness checks before a run; nil skips them.
	Preflight func(context.Context, *config.Config) []preflight.Result
}

// NewDependencies builds the production collaborators for cfg.
func NewDependencies(cfg *config.Config, store *workstore.Store, logger *slog.Logger) Dependencies {
	deps := Dependencies{
		Store:     store,
		Catalog:   catalog.NewClient(cfg, logger),
		Encoder:   encoding.NewEncoder(cfg, logger),
		Scan:      scan.NewClient(cfg, logger),
		Notifier:  notifications.NewService(cfg),
		Preflight: preflight.RunAll,
	}
	if cfg.UsesTransferService() {
		deps.Transfer = transfer.NewClient(cfg, logger)
	}
	return deps
}

// RunOptions select the batch a run works on.
type RunOptions struct {
	// Helper resumes the newest existing batch instead of populating one.
	Helper bool
	// Date overrides the batch cut-off date (YYYY-MM-DD).
	Date string
}

// Outcome describes a finished run.
type Outcome struct {
	RunID     string
	Batch     string
	Mode      string
	Populated PopulateSummary
	Passes    []migration.Result
	Report    *report.Report
	Idle      bool
}

// Supervisor owns one migration run end to end: batch selection, the
// pipeline, the report and quarantine reconciliation.
type Supervisor struct {
	cfg       *config.Config
	store     *workstore.Store
	catalog   catalog.Service
	resolver  *pathfix.Resolver
	pipeline  *migration.Pipeline
	reports   *report.Builder
	notifier  notifications.Service
	preflight func(context.Context, *config.Config) []preflight.Result
	stop      *migration.StopFlag
	now       func() time.Time
	logger    *slog.Logger
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

// WithClock replaces the clock used to name batches.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

// New wires a Supervisor from cfg and deps.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger, opts ...Option) *Supervisor {
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	stop := migration.NewStopFlag(cfg.StopFilePath(), logger)
	resolver := pathfix.NewResolver(cfg, deps.Store, logger)
	producer := migration.NewTranscoder(cfg, deps.Store, resolver, deps.Encoder, stop, logger)
	consumer := migration.NewInserter(cfg, deps.Store, resolver, deps.Catalog, deps.Scan, migration.NewPlacer(cfg, deps.Transfer), logger)

	s := &Supervisor{
		cfg:       cfg,
		store:     deps.Store,
		catalog:   deps.Catalog,
		resolver:  resolver,
		pipeline:  migration.NewPipeline(producer, consumer, logger),
		reports:   report.NewBuilder(cfg, deps.Store, stop, logger),
		notifier:  notifier,
		preflight: deps.Preflight,
		stop:      stop,
		now:       time.Now,
		logger:    logging.NewComponentLogger(logger, "supervisor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one migration run. The returned error wraps ErrFatal when
// the run aborted; per-item failures never surface here.
func (s *Supervisor) Run(ctx context.Context, opts RunOptions) (outcome *Outcome, err error) {
	outcome = &Outcome{RunID: uuid.NewString()}
	ctx = services.WithRunID(ctx, outcome.RunID)
	logger := logging.WithContext(ctx, s.logger)

	lock, err := workstore.AcquireLock(s.cfg.LockPath())
	if err != nil {
		return outcome, err
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.Warn("release lock failed", logging.Error(releaseErr))
		}
	}()

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	if err := s.stop.Watch(watchCtx); err != nil {
		logging.WarnWithContext(logger, "soft stop watcher unavailable", "stop_watch_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stop file is re-read at every item instead"),
		)
	}

	defer func() {
		if r := recover(); r != nil {
			err = s.fatal(ctx, outcome.Batch, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := s.checkReadiness(ctx); err != nil {
		return outcome, s.fatal(ctx, "", err)
	}

	batch, mode, err := s.selectBatch(ctx, opts)
	if err != nil {
		return outcome, s.fatal(ctx, "", err)
	}
	outcome.Batch, outcome.Mode = batch, mode
	ctx = services.WithBatch(ctx, batch)
	logger = logging.WithContext(ctx, s.logger)

	if mode == workstore.ModeMain {
		outcome.Populated, err = s.Populate(ctx, batch)
		if err != nil {
			return outcome, s.fatal(ctx, batch, err)
		}
	} else {
		pending, err := s.store.ListIncomplete(ctx, batch)
		if err != nil {
			return outcome, s.fatal(ctx, batch, err)
		}
		if len(pending) == 0 {
			logger.Info("nothing to resume", logging.String(logging.FieldEventType, "run_idle"))
			outcome.Idle = true
			return outcome, nil
		}
	}

	total, err := s.store.Count(ctx, batch)
	if err != nil {
		return outcome, s.fatal(ctx, batch, err)
	}
	logger.Info("run started",
		logging.String("mode", mode),
		logging.Int64("items", total),
		logging.String(logging.FieldEventType, "run_start"),
	)
	s.notify(ctx, "run started", s.notifier.NotifyRunStarted(ctx, batch, mode, int(total)))

	rep, err := s.pass(ctx, outcome, batch)
	if err != nil {
		return outcome, s.fatal(ctx, batch, err)
	}
	if mode == workstore.ModeMain && !rep.Succeeded() && !s.stop.Requested() {
		logger.Info("batch incomplete; running helper pass")
		outcome.Mode = workstore.ModeHelper
		if rep, err = s.pass(ctx, outcome, batch); err != nil {
			return outcome, s.fatal(ctx, batch, err)
		}
	}
	outcome.Report = rep
	if _, err := s.CleanStaging(ctx); err != nil {
		logging.WarnWithContext(logger, "staging cleanup skipped", "staging_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "orphaned staged files remain until the next run"),
		)
	}
	return outcome, nil
}

// pass runs the pipeline once over batch, then reports and reconciles.
func (s *Supervisor) pass(ctx context.Context, outcome *Outcome, batch string) (*report.Report, error) {
	logger := logging.WithContext(ctx, s.logger)
	result, err := s.pipeline.Run(ctx, batch)
	outcome.Passes = append(outcome.Passes, result)
	if err != nil {
		return nil, err
	}

	rep, err := s.reports.Build(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}
	cleared, err := s.store.ReconcileQuarantine(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("reconcile quarantine: %w", err)
	}
	if cleared > 0 {
		logger.Info("quarantine entries cleared", logging.Int64("cleared", cleared))
	}

	message := rep.Message()
	if rep.Succeeded() {
		logger.Info("run report", logging.String("subject", rep.Subject()), logging.String("report", message),
			logging.String(logging.FieldEventType, "run_complete"))
	} else {
		logging.WarnWithContext(logger, "run report", "run_incomplete",
			logging.String("subject", rep.Subject()),
			logging.String("report", message),
			logging.String(logging.FieldErrorHint, "rerun with --helper or inspect `arcmigrate quarantine list`"),
			logging.String(logging.FieldImpact, "some items were not fully migrated"),
		)
	}
	s.notify(ctx, "run completed", s.notifier.NotifyRunCompleted(ctx, rep.Subject(), batch, message))
	return rep, nil
}

func (s *Supervisor) checkReadiness(ctx context.Context) error {
	if s.preflight == nil {
		return nil
	}
	failed := preflight.Failed(s.preflight(ctx, s.cfg))
	if len(failed) == 0 {
		return nil
	}
	first := failed[0]
	return services.Wrap(services.ErrConfiguration, "supervisor", "preflight",
		fmt.Sprintf("%d check(s) failed; first: %s: %s", len(failed), first.Name, first.Detail), nil)
}

func (s *Supervisor) selectBatch(ctx context.Context, opts RunOptions) (string, string, error) {
	if opts.Helper {
		if opts.Date != "" {
			ok, err := s.store.BatchExists(ctx, opts.Date)
			if err != nil {
				return "", "", err
			}
			if !ok {
				return "", "", fmt.Errorf("batch %s does not exist", opts.Date)
			}
			return opts.Date, workstore.ModeHelper, nil
		}
		latest, err := s.store.LatestBatch(ctx)
		if err != nil {
			return "", "", err
		}
		if latest == nil {
			return "", "", errors.New("no batch to resume")
		}
		return latest.Name, workstore.ModeHelper, nil
	}

	name := opts.Date
	if name == "" {
		name = s.now().Format(time.DateOnly)
	} else if _, err := time.Parse(time.DateOnly, name); err != nil {
		return "", "", fmt.Errorf("invalid batch date %q: %w", name, err)
	}
	exists, err := s.store.BatchExists(ctx, name)
	if err != nil {
		return "", "", err
	}
	if exists {
		s.logger.Info("batch already exists; resuming", logging.String(logging.FieldBatch, name))
		return name, workstore.ModeHelper, nil
	}
	return name, workstore.ModeMain, nil
}

// fatal handles an error that aborts the run: it notifies, attempts one
// report and returns the error marked ErrFatal.
func (s *Supervisor) fatal(ctx context.Context, batch string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, s.logger)
	logging.ErrorWithContext(logger, "run aborted", "run_fatal",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "work already done is persisted; rerun after fixing the cause"),
	)
	label := "run"
	if batch != "" {
		label = "run " + batch
	}
	s.notify(ctx, "fatal error", s.notifier.NotifyError(ctx, cause, label))

	if batch != "" {
		if rep, err := s.reports.Snapshot(ctx, batch); err == nil {
			logger.Info("partial report", logging.String("report", rep.Message()))
		} else {
			logger.Warn("partial report unavailable", logging.Error(err))
		}
	}
	return fmt.Errorf("%w: %w", ErrFatal, cause)
}

func (s *Supervisor) notify(ctx context.Context, what string, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "notification failed", "notify_failed",
		logging.String("notification", what),
		logging.Error(err),
		logging.String(logging.FieldImpact, "operators were not notified"),
	)
}
