package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"arcmigrate/internal/config"
	"arcmigrate/internal/fileutil"
	"arcmigrate/internal/logging"
	"arcmigrate/internal/pathfix"
	"arcmigrate/internal/payload"
	"arcmigrate/internal/services"
	"arcmigrate/internal/services/catalog"
	"arcmigrate/internal/services/scan"
	"arcmigrate/internal/workstore"
)

// InsertSummary counts what one pass of the insert stage did.
type InsertSummary struct {
	Received  int
	Completed int
	Partial   int
}

// Inserter is the consumer stage: for each delivered id it places the
// transcoded file, deregisters the old catalog entry, removes the original
// and re-indexes the new file. It never quarantines; a failed step leaves
// its flag unset for a later run.
type Inserter struct {
	cfg      *config.Config
	store    *workstore.Store
	resolver *pathfix.Resolver
	catalog  catalog.Service
	scan     scan.Service
	placer   Placer
	logger   *slog.Logger
}

// NewInserter builds the consumer stage.
func NewInserter(cfg *config.Config, store *workstore.Store, resolver *pathfix.Resolver, catalogSvc catalog.Service, scanSvc scan.Service, placer Placer, logger *slog.Logger) *Inserter {
	return &Inserter{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		catalog:  catalogSvc,
		scan:     scanSvc,
		placer:   placer,
		logger:   logging.NewComponentLogger(logger, "insert"),
	}
}

// Run drains ids until the channel is closed.
func (in *Inserter) Run(ctx context.Context, batch string, ids <-chan int64) InsertSummary {
	var summary InsertSummary
	ctx = services.WithStage(services.WithBatch(ctx, batch), "insert")
	for id := range ids {
		summary.Received++
		if in.Process(ctx, batch, id) {
			summary.Completed++
		} else {
			summary.Partial++
		}
	}
	logging.WithContext(ctx, in.logger).Info("insert stage finished",
		logging.Int("received", summary.Received),
		logging.Int("completed", summary.Completed),
		logging.Int("partial", summary.Partial),
		logging.String(logging.FieldEventType, "stage_complete"),
	)
	return summary
}

// insertStep performs one idempotent step. Each step returns nil without
// side effects when its flag is already set.
type insertStep struct {
	name string
	run  func(context.Context, *insertState) error
}

type insertState struct {
	batch     string
	item      *workstore.WorkItem
	env       *payload.Envelope
	placement pathfix.Placement
}

// Process runs the insert steps for one item in order, stopping at the
// first failure. The in-work claim is always cleared. It reports whether
// the item is complete afterwards.
func (in *Inserter) Process(ctx context.Context, batch string, id int64) (complete bool) {
	ctx = services.WithItemID(ctx, id)
	logger := logging.WithContext(ctx, in.logger)
	defer in.release(ctx, batch, id)

	item, err := in.store.Get(ctx, batch, id)
	if err != nil || item == nil {
		logging.ErrorWithContext(logger, "load item failed", "item_load_failed", logging.Error(err), logging.Int64(logging.FieldItemID, id))
		return false
	}
	ctx = services.WithClipID(ctx, item.ClipID)
	logger = logging.WithContext(ctx, in.logger)
	if item.Complete() {
		return true
	}
	if !item.Transcoded {
		logging.WarnWithContext(logger, "item delivered before it was transcoded", "insert_not_transcoded",
			logging.String(logging.FieldImpact, "item left for the next run"),
		)
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "insert panicked", "insert_panic", logging.String("panic", fmt.Sprint(r)))
			complete = false
		}
	}()

	env, err := item.Envelope()
	if err != nil {
		logging.ErrorWithContext(logger, "decode catalog record failed", "insert_decode_failed", logging.Error(err))
		return false
	}
	placement, err := in.resolver.Place(ctx, env)
	if err != nil {
		logging.ErrorWithContext(logger, "compute placement failed", "insert_placement_failed", logging.Error(err))
		return false
	}
	state := &insertState{batch: batch, item: item, env: env, placement: placement}

	for _, step := range in.steps() {
		stepCtx := services.WithStage(ctx, step.name)
		if err := step.run(stepCtx, state); err != nil {
			logging.ErrorWithContext(logging.WithContext(stepCtx, in.logger), "insert step failed", "insert_step_failed",
				logging.Error(err),
				logging.String("outcome", services.Classify(err).String()),
				logging.String(logging.FieldErrorHint, "the step is retried on the next run"),
			)
			return false
		}
	}
	logger.Info("item migrated",
		logging.String("destination", placement.Destination),
		logging.Int64("dst_size_bytes", item.DstSizeBytes),
		logging.String(logging.FieldEventType, "item_complete"),
	)
	return true
}

func (in *Inserter) steps() []insertStep {
	return []insertStep{
		{name: "remove_relocated", run: in.removeRelocated},
		{name: "copy", run: in.copyFile},
		{name: "catalog_delete", run: in.deleteCatalogEntry},
		{name: "remove_original", run: in.removeOriginal},
		{name: "scan", run: in.submitScan},
	}
}

// removeRelocated handles sources that already carry the output container.
// Without an alias the copy overwrites the source in place, so nothing is
// deleted. With an alias the source lives elsewhere and is removed now.
func (in *Inserter) removeRelocated(ctx context.Context, s *insertState) error {
	if s.item.FileRemoved {
		return nil
	}
	if !s.placement.InputHasContainerExt(in.cfg.Encoder.ContainerExt) {
		return nil
	}
	if s.placement.Alias != nil && s.placement.Input != s.placement.Destination {
		if _, err := fileutil.RemoveIfExists(s.placement.Input); err != nil {
			return fmt.Errorf("remove relocated original: %w", err)
		}
	}
	if err := in.store.MarkFileRemoved(ctx, s.batch, s.item.ID); err != nil {
		return err
	}
	s.item.FileRemoved = true
	return nil
}

func (in *Inserter) copyFile(ctx context.Context, s *insertState) error {
	if s.item.FileCopied {
		return nil
	}
	size, err := in.placer.Place(ctx, s.placement)
	if err != nil {
		return fmt.Errorf("place transcoded file: %w", err)
	}
	if err := in.store.MarkFileCopied(ctx, s.batch, s.item.ID, size); err != nil {
		return err
	}
	s.item.FileCopied = true
	s.item.DstSizeBytes = size
	if _, err := fileutil.RemoveIfExists(s.placement.Staging); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, in.logger), "staged copy not removed", "staging_cleanup_failed",
			logging.Error(err),
			logging.String("path", s.placement.Staging),
			logging.String(logging.FieldImpact, "staging area keeps a stale file"),
		)
	}
	return nil
}

func (in *Inserter) deleteCatalogEntry(ctx context.Context, s *insertState) error {
	if s.item.CatalogEntryDeleted {
		return nil
	}
	delay := time.Duration(in.cfg.Catalog.DeleteRecheckDelay) * time.Second
	err := services.Retry(ctx, in.cfg.Catalog.RetryAttempts, delay, func(ctx context.Context) error {
		return in.catalog.DeleteClip(ctx, s.item.ClipID)
	})
	if err != nil {
		return fmt.Errorf("delete catalog clip %d: %w", s.item.ClipID, err)
	}
	if err := in.store.MarkCatalogEntryDeleted(ctx, s.batch, s.item.ID); err != nil {
		return err
	}
	s.item.CatalogEntryDeleted = true
	return nil
}

func (in *Inserter) removeOriginal(ctx context.Context, s *insertState) error {
	if s.item.FileRemoved {
		return nil
	}
	if s.placement.Input != s.placement.Destination {
		if _, err := fileutil.RemoveIfExists(s.placement.Input); err != nil {
			return fmt.Errorf("remove original: %w", err)
		}
	}
	if err := in.store.MarkFileRemoved(ctx, s.batch, s.item.ID); err != nil {
		return err
	}
	s.item.FileRemoved = true
	return nil
}

func (in *Inserter) submitScan(ctx context.Context, s *insertState) error {
	if s.item.Scanned {
		return nil
	}
	req := BuildScanRequest(in.cfg, s.env, s.placement)
	id, err := in.scan.Submit(ctx, req)
	if err != nil {
		return fmt.Errorf("submit scan: %w", err)
	}
	if err := in.scan.Wait(ctx, id, scan.PollInterval(s.item.DstSizeBytes)); err != nil {
		return fmt.Errorf("scan %s: %w", id, err)
	}
	if err := in.store.MarkScanned(ctx, s.batch, s.item.ID); err != nil {
		return err
	}
	s.item.Scanned = true
	return nil
}

func (in *Inserter) release(ctx context.Context, batch string, id int64) {
	if err := in.store.Release(context.WithoutCancel(ctx), batch, id); err != nil {
		logging.ErrorWithContext(logging.WithContext(ctx, in.logger), "release claim failed", "release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `arcmigrate items release` before the next run"),
		)
	}
}
