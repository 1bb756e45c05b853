package supervisor

import (
	"context"
	"fmt"

	"arcmigrate/internal/logging"
	"arcmigrate/internal/pathfix"
	"arcmigrate/internal/staging"
	"arcmigrate/internal/workstore"
)

// PendingStaged returns the staging paths of every item, in any batch, that
// is transcoded but not yet copied. Those files are the only copy of the
// transcoded output and must not be cleaned up.
func PendingStaged(ctx context.Context, store *workstore.Store, resolver *pathfix.Resolver) (map[string]struct{}, error) {
	batches, err := store.ListBatches(ctx)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]struct{})
	for _, batch := range batches {
		items, err := store.ListIncomplete(ctx, batch.Name)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if !item.Transcoded || item.FileCopied {
				continue
			}
			env, err := item.Envelope()
			if err != nil {
				return nil, fmt.Errorf("item %s/%d: %w", batch.Name, item.ID, err)
			}
			placement, err := resolver.Place(ctx, env)
			if err != nil {
				return nil, err
			}
			if placement.Staging != "" {
				keep[placement.Staging] = struct{}{}
			}
		}
	}
	return keep, nil
}

// CleanStaging removes staged files no pending item needs.
func (s *Supervisor) CleanStaging(ctx context.Context) (staging.CleanResult, error) {
	keep, err := PendingStaged(ctx, s.store, s.resolver)
	if err != nil {
		return staging.CleanResult{}, err
	}
	result := staging.CleanOrphaned(ctx, s.cfg.Paths.StagingDir, keep, s.logger)
	if len(result.Removed) > 0 {
		s.logger.Info("staging cleaned",
			logging.Int("removed", len(result.Removed)),
			logging.Int64("freed_bytes", result.Freed),
			logging.Int("kept", len(keep)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return result, nil
}
