package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"arcmigrate/internal/logging"
	"arcmigrate/internal/payload"
	"arcmigrate/internal/services"
	"arcmigrate/internal/workstore"
)

// ReasonBigData is the quarantine reason for records too large to store.
const ReasonBigData = "BIG DATA"

// PopulateSummary counts what Populate did with the search results.
type PopulateSummary struct {
	Found       int
	Added       int
	Quarantined int
	Skipped     int
}

// Populate searches the catalog for candidates created before batch and
// records them as a new batch. Candidates that cannot be migrated are
// quarantined; already quarantined and offline candidates are skipped.
func (s *Supervisor) Populate(ctx context.Context, batch string) (PopulateSummary, error) {
	var summary PopulateSummary
	logger := logging.WithContext(ctx, s.logger)

	search, err := s.catalog.Search(ctx, batch)
	if err != nil {
		return summary, fmt.Errorf("catalog search: %w", err)
	}
	if err := services.Sleep(ctx, time.Duration(s.cfg.Catalog.SearchSettleSeconds)*time.Second); err != nil {
		return summary, err
	}
	records, err := s.catalog.Results(ctx, search.CacheID, s.cfg.Catalog.LimitFiles)
	if err != nil {
		return summary, fmt.Errorf("catalog results: %w", err)
	}
	if err := s.store.CreateBatch(ctx, batch, workstore.ModeMain, search.CacheID); err != nil {
		return summary, err
	}

	summary.Found = len(records)
	for _, raw := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		added, quarantined, err := s.populateOne(ctx, batch, raw)
		if err != nil {
			return summary, err
		}
		switch {
		case added:
			summary.Added++
		case quarantined:
			summary.Quarantined++
		default:
			summary.Skipped++
		}
	}
	logger.Info("batch populated",
		logging.Int("found", summary.Found),
		logging.Int("added", summary.Added),
		logging.Int("quarantined", summary.Quarantined),
		logging.Int("skipped", summary.Skipped),
		logging.String(logging.FieldEventType, "batch_populated"),
	)
	return summary, nil
}

func (s *Supervisor) populateOne(ctx context.Context, batch string, raw []byte) (added, quarantined bool, err error) {
	logger := logging.WithContext(ctx, s.logger)
	env, err := payload.Parse(raw)
	if err != nil {
		logging.WarnWithContext(logger, "skipping undecodable catalog record", "record_decode_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "record is not migrated"),
		)
		return false, false, nil
	}
	clipID := int64(env.ClipID)
	logger = logger.With(logging.Int64(logging.FieldClipID, clipID))

	already, err := s.store.IsQuarantined(ctx, clipID)
	if err != nil {
		return false, false, err
	}
	if already {
		logger.Debug("clip quarantined; skipping")
		return false, false, nil
	}
	if env.IsOffline() {
		logger.Info("clip offline; skipping", logging.String("status", env.StatusText()))
		return false, false, nil
	}

	size, err := env.SerializedSize()
	if err != nil {
		return false, false, fmt.Errorf("measure record %d: %w", clipID, err)
	}
	if size >= s.cfg.Migration.MaxPayloadBytes {
		logging.WarnWithContext(logger, "record too large to store", "record_too_large",
			logging.Int("size_bytes", size),
			logging.String(logging.FieldImpact, "clip quarantined"),
		)
		return false, s.quarantine(ctx, env, string(raw), "", ReasonBigData), nil
	}

	res, err := s.resolver.Resolve(ctx, env)
	if err != nil {
		if errors.Is(err, services.ErrUnrecoverablePath) {
			logging.WarnWithContext(logger, "no usable source file", "source_unrecoverable",
				logging.Error(err),
				logging.String(logging.FieldImpact, "clip quarantined"),
			)
			return false, s.quarantine(ctx, env, string(raw), firstPath(env), err.Error()), nil
		}
		return false, false, err
	}

	record, err := env.Marshal()
	if err != nil {
		return false, false, fmt.Errorf("encode record %d: %w", clipID, err)
	}
	_, err = s.store.AddItem(ctx, batch, workstore.NewItem{
		Payload:         string(record),
		DurationSeconds: env.DurationSeconds(),
		OrigSizeBytes:   env.FileSize(),
		SourcePath:      res.SourcePath,
		CapturedAt:      env.Data.Metadata.Captured,
		ClipID:          clipID,
	})
	if err != nil {
		return false, false, err
	}
	return true, false, nil
}

func (s *Supervisor) quarantine(ctx context.Context, env *payload.Envelope, record, sourcePath, reason string) bool {
	inserted, err := s.store.AddQuarantine(ctx, workstore.QuarantineItem{
		ClipID:     int64(env.ClipID),
		Payload:    record,
		SourcePath: sourcePath,
		Reason:     reason,
	})
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(ctx, s.logger), "quarantine failed", "quarantine_failed",
			logging.Error(err),
			logging.Int64(logging.FieldClipID, int64(env.ClipID)),
		)
		return false
	}
	return inserted
}

func firstPath(env *payload.Envelope) string {
	if paths := env.CandidatePaths(); len(paths) > 0 {
		return paths[0]
	}
	return ""
}
