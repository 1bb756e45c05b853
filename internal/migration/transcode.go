package migration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"arcmigrate/internal/config"
	"arcmigrate/internal/encoding"
	"arcmigrate/internal/logging"
	"arcmigrate/internal/pathfix"
	"arcmigrate/internal/payload"
	"arcmigrate/internal/services"
	"arcmigrate/internal/workstore"
)

// ProduceSummary counts what one pass of the transcode stage did.
type ProduceSummary struct {
	Visited       int
	Forwarded     int
	Quarantined   int
	Released      int
	Skipped       int
	NotTranscoded int
	Stopped       bool
}

// Transcoder is the producer stage: it claims items in id order, encodes
// them into the staging area and forwards transcoded ids downstream.
type Transcoder struct {
	cfg      *config.Config
	store    *workstore.Store
	resolver *pathfix.Resolver
	encoder  encoding.Transcoder
	stop     *StopFlag
	now      func() time.Time
	logger   *slog.Logger
}

// NewTranscoder builds the producer stage.
func NewTranscoder(cfg *config.Config, store *workstore.Store, resolver *pathfix.Resolver, encoder encoding.Transcoder, stop *StopFlag, logger *slog.Logger) *Transcoder {
	return &Transcoder{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		encoder:  encoder,
		stop:     stop,
		now:      time.Now,
		logger:   logging.NewComponentLogger(logger, "transcode"),
	}
}

// Run visits ids 1..max of batch, calling forward for every id that is
// transcoded. A failed item is released and quarantined; it never stops
// the loop.
func (t *Transcoder) Run(ctx context.Context, batch string, forward func(int64)) (ProduceSummary, error) {
	var summary ProduceSummary
	ctx = services.WithStage(services.WithBatch(ctx, batch), "transcode")
	logger := logging.WithContext(ctx, t.logger)

	maxID, err := t.store.MaxID(ctx, batch)
	if err != nil {
		return summary, fmt.Errorf("read batch size: %w", err)
	}
	logger.Info("transcode stage started",
		logging.Int64("items", maxID),
		logging.String(logging.FieldEventType, "stage_start"),
	)

	for id := int64(1); id <= maxID; id++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if t.stop.Requested() {
			summary.Stopped = true
			logger.Info("soft stop honoured", logging.Int64(logging.FieldItemID, id))
			break
		}
		summary.Visited++
		switch t.processItem(ctx, batch, id, forward) {
		case produceForwarded:
			summary.Forwarded++
		case produceQuarantined:
			summary.Quarantined++
		case produceReleased:
			summary.Released++
		default:
			summary.Skipped++
		}
	}

	stats, err := t.store.Stats(ctx, batch)
	if err != nil {
		return summary, fmt.Errorf("read batch stats: %w", err)
	}
	summary.NotTranscoded = stats.NotDone(workstore.FlagTranscoded)
	logger.Info("transcode stage finished",
		logging.Int("forwarded", summary.Forwarded),
		logging.Int("quarantined", summary.Quarantined),
		logging.Int("not_transcoded", summary.NotTranscoded),
		logging.Bool("soft_stopped", summary.Stopped),
		logging.String(logging.FieldEventType, "stage_complete"),
	)
	return summary, nil
}

type produceResult int

const (
	produceSkipped produceResult = iota
	produceForwarded
	produceReleased
	produceQuarantined
)

func (t *Transcoder) processItem(ctx context.Context, batch string, id int64, forward func(int64)) (result produceResult) {
	ctx = services.WithItemID(ctx, id)
	logger := logging.WithContext(ctx, t.logger)

	item, err := t.store.Get(ctx, batch, id)
	if err != nil {
		logging.ErrorWithContext(logger, "load item failed", "item_load_failed", logging.Error(err))
		return produceSkipped
	}
	if item == nil {
		logger.Warn("item id missing from batch; skipping",
			logging.String(logging.FieldEventType, "item_missing"),
			logging.String(logging.FieldErrorHint, "ids are dense unless rows were removed by hand"),
			logging.String(logging.FieldImpact, "nothing to process for this id"),
		)
		return produceSkipped
	}
	ctx = services.WithClipID(ctx, item.ClipID)
	logger = logging.WithContext(ctx, t.logger)

	claimed, err := t.store.Claim(ctx, batch, id)
	if err != nil {
		logging.ErrorWithContext(logger, "claim failed", "claim_failed", logging.Error(err))
		return produceSkipped
	}
	if !claimed {
		logger.Debug("item already in work; skipping")
		return produceSkipped
	}

	if item.Transcoded {
		logger.Debug("item already transcoded; forwarding")
		forward(id)
		return produceForwarded
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic during transcode: %v", r)
			result = t.fail(ctx, batch, item, err)
		}
	}()

	env, err := item.Envelope()
	if err != nil {
		return t.fail(ctx, batch, item, fmt.Errorf("decode catalog record: %w", err))
	}
	if len(env.CandidatePaths()) == 0 {
		logger.Info("item has no source path; releasing")
		t.release(ctx, batch, id)
		return produceReleased
	}

	placement, err := t.place(ctx, batch, item, env)
	if err != nil {
		return t.fail(ctx, batch, item, err)
	}
	created, err := encoding.CreationTime(env, t.cfg.Migration.MinPlausibleYear, t.now())
	if err != nil {
		return t.fail(ctx, batch, item, services.Wrap(services.ErrValidation, "transcode", "creation time", "", err))
	}

	started := time.Now()
	err = t.encoder.Transcode(ctx, encoding.Request{
		Source:          placement.Input,
		Output:          placement.Staging,
		Timecode:        env.Timecode(),
		CreationTime:    created,
		CatalogDuration: item.DurationSeconds,
	})
	if err != nil {
		return t.fail(ctx, batch, item, err)
	}
	if err := t.store.MarkTranscoded(ctx, batch, id); err != nil {
		return t.fail(ctx, batch, item, fmt.Errorf("persist transcoded flag: %w", err))
	}
	logger.Info("item transcoded",
		logging.String("source", placement.Input),
		logging.String("staging", placement.Staging),
		logging.Duration("elapsed", time.Since(started).Round(time.Second)),
		logging.String(logging.FieldEventType, "transcode_complete"),
	)
	forward(id)
	return produceForwarded
}

// place applies any recorded alias and re-resolves when the source has
// moved since the batch was populated. A re-resolved record is persisted so
// the insert stage computes the same placement.
func (t *Transcoder) place(ctx context.Context, batch string, item *workstore.WorkItem, env *payload.Envelope) (pathfix.Placement, error) {
	placement, err := t.resolver.Place(ctx, env)
	if err != nil {
		return pathfix.Placement{}, fmt.Errorf("look up alias: %w", err)
	}
	if _, statErr := os.Stat(placement.Input); statErr == nil {
		return placement, nil
	}
	res, err := t.resolver.Resolve(ctx, env)
	if err != nil {
		return pathfix.Placement{}, err
	}
	record, err := env.Marshal()
	if err != nil {
		return pathfix.Placement{}, fmt.Errorf("encode catalog record: %w", err)
	}
	if err := t.store.UpdateSource(ctx, batch, item.ID, string(record), res.SourcePath); err != nil {
		return pathfix.Placement{}, err
	}
	item.Payload = string(record)
	item.SourcePath = res.SourcePath
	logging.WithContext(ctx, t.logger).Info("source re-resolved",
		logging.String("strategy", res.Strategy),
		logging.String("source", res.SourcePath),
	)
	return t.resolver.Place(ctx, env)
}

func (t *Transcoder) fail(ctx context.Context, batch string, item *workstore.WorkItem, cause error) produceResult {
	logger := logging.WithContext(ctx, t.logger)
	logging.ErrorWithContext(logger, "transcode failed", "transcode_failed",
		logging.Error(cause),
		logging.String("outcome", services.Classify(cause).String()),
		logging.String(logging.FieldErrorHint, "inspect the quarantine list; the item is retried after the entry is cleared"),
	)
	t.release(ctx, batch, item.ID)

	inserted, err := t.store.AddQuarantine(context.WithoutCancel(ctx), workstore.QuarantineItem{
		ClipID:     item.ClipID,
		Payload:    item.Payload,
		SourcePath: item.SourcePath,
		Reason:     quarantineReason(cause),
	})
	if err != nil {
		logging.ErrorWithContext(logger, "quarantine failed", "quarantine_failed", logging.Error(err))
		return produceReleased
	}
	if !inserted {
		logger.Debug("clip already quarantined")
	}
	return produceQuarantined
}

func (t *Transcoder) release(ctx context.Context, batch string, id int64) {
	if err := t.store.Release(context.WithoutCancel(ctx), batch, id); err != nil {
		logging.ErrorWithContext(logging.WithContext(ctx, t.logger), "release claim failed", "release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `arcmigrate items release` before the next run"),
		)
	}
}

func quarantineReason(err error) string {
	if err == nil {
		return "unknown failure"
	}
	return err.Error()
}
