package migration

import (
	"context"
	"fmt"

	"arcmigrate/internal/config"
	"arcmigrate/internal/fileutil"
	"arcmigrate/internal/pathfix"
	"arcmigrate/internal/services/transfer"
)

// Placer moves a staged transcode to its destination and returns the size
// of the placed file.
type Placer interface {
	Place(ctx context.Context, placement pathfix.Placement) (int64, error)
}

// NewPlacer returns the placer selected by transfer.mode.
func NewPlacer(cfg *config.Config, copier transfer.Service) Placer {
	if cfg.UsesTransferService() && copier != nil {
		return servicePlacer{copier: copier}
	}
	return localPlacer{}
}

type localPlacer struct{}

func (localPlacer) Place(ctx context.Context, placement pathfix.Placement) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return fileutil.Place(placement.Staging, placement.Destination)
}

type servicePlacer struct {
	copier transfer.Service
}

func (s servicePlacer) Place(ctx context.Context, placement pathfix.Placement) (int64, error) {
	size, err := fileutil.Size(placement.Staging)
	if err != nil {
		return 0, fmt.Errorf("stat staged output: %w", err)
	}
	if err := s.copier.Copy(ctx, placement.Staging, placement.ScanFile()); err != nil {
		return 0, err
	}
	return size, nil
}
